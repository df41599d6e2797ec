package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/procflow/procflow/engine"
	"github.com/procflow/procflow/executor"
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/metadata"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/util"
	"go.uber.org/zap"
)

var _ executor.SubProcessRunner = new(InstanceService)

// InstanceFilter narrows instance listings; zero values match
// everything.
type InstanceFilter struct {
	DefinitionId     string
	Status           model.InstanceStatus
	ParentInstanceId string
}

// InstanceService creates and queries instances and fronts the engine
// for lifecycle operations.
type InstanceService struct {
	instances persistence.InstanceDao
	logs      persistence.ExecutionLogDao
	devices   persistence.DeviceActionDao
	metadata  *metadata.MetadataService
	engine    *engine.FlowEngine
	states    engine.StateMachine
}

func NewInstanceService(storage *persistence.Storage, meta *metadata.MetadataService, eng *engine.FlowEngine) *InstanceService {
	return &InstanceService{
		instances: storage.Instances,
		logs:      storage.ExecutionLogs,
		devices:   storage.DeviceActions,
		metadata:  meta,
		engine:    eng,
	}
}

// CreateInstance builds a CREATED instance against an explicit version
// or, when none is given, the definition's current version.
func (s *InstanceService) CreateInstance(req *model.CreateInstanceRequest) (*model.FlowInstance, error) {
	var version *model.FlowVersion
	var err error
	switch {
	case req.VersionId != "":
		version, err = s.metadata.GetVersion(req.VersionId)
	case req.DefinitionId != "":
		version, err = s.metadata.GetCurrentVersion(req.DefinitionId)
	default:
		return nil, fmt.Errorf("definitionId or versionId is required")
	}
	if err != nil {
		return nil, err
	}
	if version.Status == model.FLOW_STATUS_DISABLED || version.Status == model.FLOW_STATUS_ARCHIVED {
		return nil, fmt.Errorf("version %s is %s and can not run new instances", version.Id, version.Status)
	}

	now := time.Now()
	instance := &model.FlowInstance{
		Id:               uuid.New().String(),
		DefinitionId:     version.DefinitionId,
		VersionId:        version.Id,
		Version:          version.Version,
		Name:             req.Name,
		Description:      req.Description,
		Status:           model.INSTANCE_STATUS_CREATED,
		Variables:        req.Variables,
		CreatedAt:        now,
		UpdatedAt:        now,
		ParentInstanceId: req.ParentInstanceId,
		Priority:         req.Priority,
		Tags:             req.Tags,
	}
	if instance.Variables == nil {
		instance.Variables = map[string]any{}
	}
	if err := s.instances.Save(instance); err != nil {
		return nil, err
	}
	logger.Info("flow instance created",
		zap.String("instanceId", instance.Id),
		zap.String("definitionId", instance.DefinitionId),
		zap.Int("version", instance.Version))
	return instance, nil
}

func (s *InstanceService) GetInstance(id string) (*model.FlowInstance, error) {
	return s.instances.Get(id)
}

// UpdateInstance touches descriptive fields only; execution state stays
// with the engine.
func (s *InstanceService) UpdateInstance(id string, req *model.UpdateInstanceRequest) (*model.FlowInstance, error) {
	instance, err := s.instances.Get(id)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		instance.Name = req.Name
	}
	if req.Description != "" {
		instance.Description = req.Description
	}
	if req.Priority != "" {
		instance.Priority = req.Priority
	}
	if req.Tags != nil {
		instance.Tags = req.Tags
	}
	instance.UpdatedAt = time.Now()
	if err := s.instances.Save(instance); err != nil {
		return nil, err
	}
	return instance, nil
}

// DeleteInstance removes a terminal instance. Live instances must be
// cancelled first.
func (s *InstanceService) DeleteInstance(id string) error {
	instance, err := s.instances.Get(id)
	if err != nil {
		return err
	}
	if err := s.states.Ensure(instance, engine.OP_DELETE); err != nil {
		return err
	}
	return s.instances.Delete(id)
}

func (s *InstanceService) ListInstances(filter InstanceFilter, page model.PageRequest) (*model.PageResult[*model.FlowInstance], error) {
	all, err := s.instances.List()
	if err != nil {
		return nil, err
	}
	var matched []*model.FlowInstance
	for _, instance := range all {
		if filter.DefinitionId != "" && instance.DefinitionId != filter.DefinitionId {
			continue
		}
		if filter.Status != "" && instance.Status != filter.Status {
			continue
		}
		if filter.ParentInstanceId != "" && instance.ParentInstanceId != filter.ParentInstanceId {
			continue
		}
		matched = append(matched, instance)
	}
	return util.Paginate(matched, page.Normalize()), nil
}

// StatusStatistics counts instances per status.
func (s *InstanceService) StatusStatistics() (map[model.InstanceStatus]int, error) {
	all, err := s.instances.List()
	if err != nil {
		return nil, err
	}
	stats := make(map[model.InstanceStatus]int)
	for _, instance := range all {
		stats[instance.Status]++
	}
	return stats, nil
}

func (s *InstanceService) StartInstance(id string) (*model.FlowInstance, error) {
	return s.engine.StartInstance(id)
}

func (s *InstanceService) SuspendInstance(id string) (*model.FlowInstance, error) {
	return s.engine.SuspendInstance(id)
}

func (s *InstanceService) ResumeInstance(id string) (*model.FlowInstance, error) {
	return s.engine.ResumeInstance(id)
}

func (s *InstanceService) CancelInstance(id string) (*model.FlowInstance, error) {
	return s.engine.CancelInstance(id)
}

func (s *InstanceService) ExecuteNode(instanceId string, nodeId string, input map[string]any) (map[string]any, error) {
	return s.engine.ExecuteNode(instanceId, nodeId, input)
}

func (s *InstanceService) JumpToNode(instanceId string, nodeId string) error {
	return s.engine.JumpToNode(instanceId, nodeId)
}

func (s *InstanceService) UpdateVariables(instanceId string, patch map[string]any) (*model.FlowInstance, error) {
	return s.engine.UpdateVariables(instanceId, patch)
}

func (s *InstanceService) GetVariables(instanceId string) (map[string]any, error) {
	return s.engine.GetInstanceVariables(instanceId)
}

func (s *InstanceService) GetActiveNodes(instanceId string) ([]string, error) {
	return s.engine.GetActiveNodes(instanceId)
}

func (s *InstanceService) GetExecutionLogs(instanceId string) ([]*model.ExecutionLog, error) {
	return s.logs.ListByInstance(instanceId)
}

func (s *InstanceService) GetDeviceActions(instanceId string) ([]*model.DeviceAction, error) {
	return s.devices.ListByInstance(instanceId)
}

// CreateChild spawns an instance of definitionId under a parent.
func (s *InstanceService) CreateChild(parentInstanceId string, definitionId string, variables map[string]any) (*model.FlowInstance, error) {
	parent, err := s.instances.Get(parentInstanceId)
	if err != nil {
		return nil, err
	}
	return s.CreateInstance(&model.CreateInstanceRequest{
		DefinitionId:     definitionId,
		Name:             fmt.Sprintf("%s/sub", parent.Name),
		Variables:        variables,
		Priority:         parent.Priority,
		ParentInstanceId: parent.Id,
	})
}

func (s *InstanceService) Start(instanceId string) (*model.FlowInstance, error) {
	return s.StartInstance(instanceId)
}
