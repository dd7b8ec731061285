package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dyluth/discgraph/internal/ingest"
	"github.com/dyluth/discgraph/internal/query"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// UploadRequest is the body of POST /upload_discriminator/{program_id}.
// Both fields are hex encoded.
type UploadRequest struct {
	Discriminator string `json:"discriminator"`
	Instruction   string `json:"instruction"`
}

// UploadResponse acknowledges an upload.
type UploadResponse struct {
	Status        string `json:"status"`
	ProgramID     string `json:"program_id"`
	Discriminator string `json:"discriminator_key"`
	Instruction   string `json:"instruction_key"`
	PollerTaskID  string `json:"poller_task_id,omitempty"`
}

// PollerInfo describes one live polling task.
type PollerInfo struct {
	ProgramID string    `json:"program_id"`
	TaskID    string    `json:"task_id"`
	StartedAt time.Time `json:"started_at"`
}

func (s *Server) handleQueryDiscriminators(w http.ResponseWriter, r *http.Request) {
	programID := mux.Vars(r)["program_id"]

	views, err := s.svc.Discriminators(r.Context(), programID)
	if err != nil {
		if !query.IsNotFound(err) {
			s.logger.Warn("discriminator query failed",
				zap.String("event", "query_failed"),
				zap.String("program_id", programID),
				zap.Error(err))
		}
		respondQueryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleUploadDiscriminator(w http.ResponseWriter, r *http.Request) {
	programID := mux.Vars(r)["program_id"]

	userID := r.Header.Get(UserIDHeader)
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing user_id header", query.KindInvalidInput)
		return
	}

	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), query.KindInvalidInput)
		return
	}

	disc, err := hex.DecodeString(req.Discriminator)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("discriminator is not hex: %v", err), query.KindInvalidInput)
		return
	}
	instr, err := hex.DecodeString(req.Instruction)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("instruction is not hex: %v", err), query.KindInvalidInput)
		return
	}

	rec := ingest.Record{
		ProgramID:     programID,
		Discriminator: disc,
		Instruction:   instr,
		UserID:        userID,
	}
	if err := s.svc.IngestOne(r.Context(), rec); err != nil {
		respondQueryError(w, err)
		return
	}

	k, _ := ingest.DeriveKeys(rec)
	resp := UploadResponse{
		Status:        "Discriminator uploaded successfully",
		ProgramID:     programID,
		Discriminator: k.Discriminator,
		Instruction:   k.Instruction,
	}
	if s.reconciler != nil {
		resp.PollerTaskID = s.reconciler.Track(s.pollCtx, programID).ID
	}

	s.logger.Info("discriminator uploaded",
		zap.String("event", "discriminator_uploaded"),
		zap.String("program_id", programID),
		zap.String("user_id", userID),
		zap.String("key", k.Discriminator))
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQueryInstructions(w http.ResponseWriter, r *http.Request) {
	discriminatorID := mux.Vars(r)["discriminator_id"]

	views, err := s.svc.Instructions(r.Context(), discriminatorID)
	if err != nil {
		respondQueryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleListPrograms(w http.ResponseWriter, r *http.Request) {
	ids, err := s.svc.Programs(r.Context())
	if err != nil {
		respondQueryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ids)
}

func (s *Server) handleListPollers(w http.ResponseWriter, r *http.Request) {
	if s.reconciler == nil {
		respondError(w, http.StatusServiceUnavailable, "polling is disabled", "")
		return
	}

	pollers := []PollerInfo{}
	for _, id := range s.reconciler.Tracked() {
		if t, ok := s.reconciler.Task(id); ok {
			pollers = append(pollers, PollerInfo{ProgramID: id, TaskID: t.ID, StartedAt: t.StartedAt})
		}
	}
	respondJSON(w, http.StatusOK, pollers)
}

func (s *Server) handleStopPoller(w http.ResponseWriter, r *http.Request) {
	if s.reconciler == nil {
		respondError(w, http.StatusServiceUnavailable, "polling is disabled", "")
		return
	}

	programID := mux.Vars(r)["program_id"]
	if !s.reconciler.Untrack(programID) {
		respondError(w, http.StatusNotFound, "no poller for program "+programID, query.KindNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
