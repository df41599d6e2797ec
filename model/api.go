package model

type CreateInstanceRequest struct {
	DefinitionId     string         `json:"definitionId"`
	VersionId        string         `json:"versionId,omitempty"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	Variables        map[string]any `json:"variables,omitempty"`
	Priority         string         `json:"priority,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	ParentInstanceId string         `json:"parentInstanceId,omitempty"`
}

type UpdateInstanceRequest struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type ExecuteNodeRequest struct {
	InstanceId string         `json:"instanceId"`
	NodeId     string         `json:"nodeId"`
	Input      map[string]any `json:"input,omitempty"`
}

type JumpToNodeRequest struct {
	InstanceId string `json:"instanceId"`
	NodeId     string `json:"nodeId"`
}

type PageRequest struct {
	PageNum  int `json:"pageNum"`
	PageSize int `json:"pageSize"`
}

func (p PageRequest) Normalize() PageRequest {
	if p.PageNum < 1 {
		p.PageNum = 1
	}
	if p.PageSize < 1 || p.PageSize > 500 {
		p.PageSize = 20
	}
	return p
}

type PageResult[T any] struct {
	Total    int `json:"total"`
	PageNum  int `json:"pageNum"`
	PageSize int `json:"pageSize"`
	List     []T `json:"list"`
}
