package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/model"
	"go.uber.org/zap"
)

func (s *Server) HandleCreateDefinition(w http.ResponseWriter, r *http.Request) {
	var def model.FlowDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	defer r.Body.Close()
	created, err := s.metadataService.CreateDefinition(&def)
	if err != nil {
		logger.Error("error creating definition", zap.Error(err))
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (s *Server) HandleGetDefinition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	def, err := s.metadataService.GetDefinition(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, def)
}

func (s *Server) HandleUpdateDefinition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	defer r.Body.Close()
	def, err := s.metadataService.UpdateDefinition(id, req.Name, req.Description, req.Tags)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, def)
}

func (s *Server) HandleDeleteDefinition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.metadataService.DeleteDefinition(id); err != nil {
		respondWithError(w, err)
		return
	}
	respondOKWithoutBody(w)
}

func (s *Server) HandleArchiveDefinition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	def, err := s.metadataService.ArchiveDefinition(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, def)
}

func (s *Server) HandleListDefinitions(w http.ResponseWriter, r *http.Request) {
	result, err := s.metadataService.ListDefinitions(pageFromQuery(r))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (s *Server) HandleCreateVersion(w http.ResponseWriter, r *http.Request) {
	definitionId := mux.Vars(r)["id"]
	var req struct {
		FlowData    string `json:"flowData"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	defer r.Body.Close()
	version, err := s.metadataService.CreateVersion(definitionId, req.FlowData, req.Description)
	if err != nil {
		logger.Error("error creating version", zap.String("definitionId", definitionId), zap.Error(err))
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, version)
}

func (s *Server) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	definitionId := mux.Vars(r)["id"]
	versions, err := s.metadataService.ListVersions(definitionId)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, versions)
}

func (s *Server) HandleGetCurrentVersion(w http.ResponseWriter, r *http.Request) {
	definitionId := mux.Vars(r)["id"]
	version, err := s.metadataService.GetCurrentVersion(definitionId)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, version)
}

func (s *Server) HandleGetVersion(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	version, err := s.metadataService.GetVersion(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, version)
}

func (s *Server) HandleUpdateVersion(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		FlowData    string `json:"flowData"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	defer r.Body.Close()
	version, err := s.metadataService.UpdateVersion(id, req.FlowData, req.Description)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, version)
}

func (s *Server) HandlePublishVersion(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	publishedBy := r.URL.Query().Get("publishedBy")
	version, err := s.metadataService.PublishVersion(id, publishedBy)
	if err != nil {
		logger.Error("error publishing version", zap.String("versionId", id), zap.Error(err))
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, version)
}

func (s *Server) HandleDisableVersion(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	version, err := s.metadataService.DisableVersion(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, version)
}

func pageFromQuery(r *http.Request) model.PageRequest {
	page := model.PageRequest{}
	if v, err := strconv.Atoi(r.URL.Query().Get("pageNum")); err == nil {
		page.PageNum = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("pageSize")); err == nil {
		page.PageSize = v
	}
	return page.Normalize()
}
