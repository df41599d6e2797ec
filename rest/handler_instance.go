package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/service"
	"go.uber.org/zap"
)

func (s *Server) HandleCreateInstance(w http.ResponseWriter, r *http.Request) {
	var req model.CreateInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	defer r.Body.Close()
	instance, err := s.instanceService.CreateInstance(&req)
	if err != nil {
		logger.Error("error creating instance", zap.String("definitionId", req.DefinitionId), zap.Error(err))
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, instance)
}

func (s *Server) HandleListInstances(w http.ResponseWriter, r *http.Request) {
	filter := service.InstanceFilter{
		DefinitionId:     r.URL.Query().Get("definitionId"),
		Status:           model.InstanceStatus(r.URL.Query().Get("status")),
		ParentInstanceId: r.URL.Query().Get("parentInstanceId"),
	}
	result, err := s.instanceService.ListInstances(filter, pageFromQuery(r))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (s *Server) HandleInstanceStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.instanceService.StatusStatistics()
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func (s *Server) HandleGetInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	instance, err := s.instanceService.GetInstance(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, instance)
}

func (s *Server) HandleUpdateInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req model.UpdateInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	defer r.Body.Close()
	instance, err := s.instanceService.UpdateInstance(id, &req)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, instance)
}

func (s *Server) HandleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.instanceService.DeleteInstance(id); err != nil {
		respondWithError(w, err)
		return
	}
	respondOKWithoutBody(w)
}

func (s *Server) HandleStartInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	instance, err := s.instanceService.StartInstance(id)
	if err != nil {
		logger.Error("error starting instance", zap.String("instanceId", id), zap.Error(err))
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, instance)
}

func (s *Server) HandleSuspendInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	instance, err := s.instanceService.SuspendInstance(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, instance)
}

func (s *Server) HandleResumeInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	instance, err := s.instanceService.ResumeInstance(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, instance)
}

func (s *Server) HandleCancelInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	instance, err := s.instanceService.CancelInstance(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, instance)
}

func (s *Server) HandleGetVariables(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	variables, err := s.instanceService.GetVariables(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, variables)
}

func (s *Server) HandleUpdateVariables(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	defer r.Body.Close()
	instance, err := s.instanceService.UpdateVariables(id, patch)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, instance)
}

func (s *Server) HandleGetActiveNodes(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	nodes, err := s.instanceService.GetActiveNodes(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondOK(w, map[string]any{"activeNodeIds": nodes})
}

func (s *Server) HandleExecuteNode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req model.ExecuteNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	defer r.Body.Close()
	output, err := s.instanceService.ExecuteNode(id, req.NodeId, req.Input)
	if err != nil {
		logger.Error("error executing node",
			zap.String("instanceId", id), zap.String("nodeId", req.NodeId), zap.Error(err))
		respondWithError(w, err)
		return
	}
	respondOK(w, map[string]any{"output": output})
}

func (s *Server) HandleJumpToNode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req model.JumpToNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	defer r.Body.Close()
	if err := s.instanceService.JumpToNode(id, req.NodeId); err != nil {
		respondWithError(w, err)
		return
	}
	respondOKWithoutBody(w)
}

func (s *Server) HandleGetExecutionLogs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	logs, err := s.instanceService.GetExecutionLogs(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, logs)
}

func (s *Server) HandleGetDeviceActions(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	actions, err := s.instanceService.GetDeviceActions(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, actions)
}
