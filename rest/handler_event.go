package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/model"
	"go.uber.org/zap"
)

func (s *Server) HandleTriggerEvent(w http.ResponseWriter, r *http.Request) {
	var event model.FlowEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	defer r.Body.Close()
	handled, err := s.eventService.Trigger(&event)
	if err != nil {
		logger.Error("error triggering event", zap.String("eventType", event.EventType), zap.Error(err))
		respondWithError(w, err)
		return
	}
	respondOK(w, map[string]any{"eventId": event.Id, "handled": handled})
}

func (s *Server) HandlePublishEvent(w http.ResponseWriter, r *http.Request) {
	var event model.FlowEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	defer r.Body.Close()
	if err := s.eventService.Publish(&event); err != nil {
		logger.Error("error publishing event", zap.String("eventType", event.EventType), zap.Error(err))
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]any{"eventId": event.Id})
}

func (s *Server) HandleGetEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	event, err := s.eventService.GetEvent(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, event)
}
