package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/metadata"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/service"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port            int
	metadataService *metadata.MetadataService
	instanceService *service.InstanceService
	eventService    *service.EventService
}

func NewServer(httpPort int, metadataService *metadata.MetadataService, instanceService *service.InstanceService, eventService *service.EventService) (*Server, error) {

	s := &Server{
		Server: http.Server{
			Addr:        fmt.Sprintf(":%d", httpPort),
			IdleTimeout: 2 * time.Second,
		},
		metadataService: metadataService,
		instanceService: instanceService,
		eventService:    eventService,
		Port:            httpPort,
	}

	router := mux.NewRouter()
	router.HandleFunc("/definitions", s.HandleCreateDefinition).Methods(http.MethodPost)
	router.HandleFunc("/definitions", s.HandleListDefinitions).Methods(http.MethodGet)
	router.HandleFunc("/definitions/{id}", s.HandleGetDefinition).Methods(http.MethodGet)
	router.HandleFunc("/definitions/{id}", s.HandleUpdateDefinition).Methods(http.MethodPut)
	router.HandleFunc("/definitions/{id}", s.HandleDeleteDefinition).Methods(http.MethodDelete)
	router.HandleFunc("/definitions/{id}/archive", s.HandleArchiveDefinition).Methods(http.MethodPost)
	router.HandleFunc("/definitions/{id}/versions", s.HandleCreateVersion).Methods(http.MethodPost)
	router.HandleFunc("/definitions/{id}/versions", s.HandleListVersions).Methods(http.MethodGet)
	router.HandleFunc("/definitions/{id}/versions/current", s.HandleGetCurrentVersion).Methods(http.MethodGet)

	router.HandleFunc("/versions/{id}", s.HandleGetVersion).Methods(http.MethodGet)
	router.HandleFunc("/versions/{id}", s.HandleUpdateVersion).Methods(http.MethodPut)
	router.HandleFunc("/versions/{id}/publish", s.HandlePublishVersion).Methods(http.MethodPost)
	router.HandleFunc("/versions/{id}/disable", s.HandleDisableVersion).Methods(http.MethodPost)

	router.HandleFunc("/instances", s.HandleCreateInstance).Methods(http.MethodPost)
	router.HandleFunc("/instances", s.HandleListInstances).Methods(http.MethodGet)
	router.HandleFunc("/instances/statistics", s.HandleInstanceStatistics).Methods(http.MethodGet)
	router.HandleFunc("/instances/{id}", s.HandleGetInstance).Methods(http.MethodGet)
	router.HandleFunc("/instances/{id}", s.HandleUpdateInstance).Methods(http.MethodPut)
	router.HandleFunc("/instances/{id}", s.HandleDeleteInstance).Methods(http.MethodDelete)
	router.HandleFunc("/instances/{id}/start", s.HandleStartInstance).Methods(http.MethodPost)
	router.HandleFunc("/instances/{id}/suspend", s.HandleSuspendInstance).Methods(http.MethodPost)
	router.HandleFunc("/instances/{id}/resume", s.HandleResumeInstance).Methods(http.MethodPost)
	router.HandleFunc("/instances/{id}/cancel", s.HandleCancelInstance).Methods(http.MethodPost)
	router.HandleFunc("/instances/{id}/variables", s.HandleGetVariables).Methods(http.MethodGet)
	router.HandleFunc("/instances/{id}/variables", s.HandleUpdateVariables).Methods(http.MethodPut)
	router.HandleFunc("/instances/{id}/active-nodes", s.HandleGetActiveNodes).Methods(http.MethodGet)
	router.HandleFunc("/instances/{id}/execute-node", s.HandleExecuteNode).Methods(http.MethodPost)
	router.HandleFunc("/instances/{id}/jump", s.HandleJumpToNode).Methods(http.MethodPost)
	router.HandleFunc("/instances/{id}/logs", s.HandleGetExecutionLogs).Methods(http.MethodGet)
	router.HandleFunc("/instances/{id}/device-actions", s.HandleGetDeviceActions).Methods(http.MethodGet)

	router.HandleFunc("/events", s.HandleTriggerEvent).Methods(http.MethodPost)
	router.HandleFunc("/events/publish", s.HandlePublishEvent).Methods(http.MethodPost)
	router.HandleFunc("/events/{id}", s.HandleGetEvent).Methods(http.MethodGet)

	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server")
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message map[string]any) {
	respondWithJSON(w, http.StatusOK, message)
}

func respondOKWithoutBody(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)
}

func respondWithError(w http.ResponseWriter, err error) {
	respondWithJSON(w, statusForError(err), map[string]string{"error": err.Error()})
}

// statusForError maps the domain error kinds onto http statuses.
func statusForError(err error) int {
	var notFound model.NotFoundError
	var state model.StateError
	var execution model.ExecutionError
	var noExecutor model.ExecutorNotFoundError
	var storage persistence.StorageLayerError
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &state):
		return http.StatusConflict
	case errors.As(err, &execution), errors.As(err, &noExecutor):
		return http.StatusUnprocessableEntity
	case errors.As(err, &storage):
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}
