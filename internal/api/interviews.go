package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/mockinterview/internal/observe"
	"github.com/MrWong99/mockinterview/pkg/memory"
)

const errNotFound = "Interview not found"

type createInterviewRequest struct {
	Config json.RawMessage `json:"config"`
	Status memory.Status   `json:"status"`
}

// updateInterviewRequest leaves absent fields nil. A JSON null config
// arrives as the literal "null" and clears the stored config.
type updateInterviewRequest struct {
	Status   memory.Status     `json:"status"`
	Config   json.RawMessage   `json:"config"`
	Messages *[]memory.Message `json:"messages"`
}

type interviewSummary struct {
	ID           string           `json:"id"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
	Status       memory.Status    `json:"status"`
	Config       json.RawMessage  `json:"config"`
	MessageCount int              `json:"messageCount"`
	Transcript   []memory.Message `json:"transcript"`
}

type appendRequest struct {
	Message *memory.Message `json:"message"`
}

type appendResponse struct {
	Success bool `json:"success"`
	memory.AppendResult
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Deleted *int   `json:"deleted,omitempty"`
	Message string `json:"message,omitempty"`
}

// respondInterview writes iv with a null config when none is stored.
func respondInterview(w http.ResponseWriter, iv memory.Interview) {
	if iv.Config == nil {
		iv.Config = json.RawMessage("null")
	}
	respondJSON(w, http.StatusOK, iv)
}

func (s *Server) handleCreateInterview(w http.ResponseWriter, r *http.Request) {
	var req createInterviewRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Status != "" && !req.Status.Valid() {
		respondError(w, http.StatusBadRequest, "Invalid status")
		return
	}
	iv, err := s.store.Create(r.Context(), req.Status, memory.NormalizeConfig(req.Config))
	if err != nil {
		observe.Logger(r.Context()).Error("create interview", "err", err)
		respondError(w, http.StatusInternalServerError, "Failed to create interview")
		return
	}
	respondInterview(w, iv)
}

func (s *Server) handleListInterviews(w http.ResponseWriter, r *http.Request) {
	ivs, err := s.store.List(r.Context(), memory.DefaultListLimit)
	if err != nil {
		observe.Logger(r.Context()).Error("list interviews", "err", err)
		respondError(w, http.StatusInternalServerError, "Failed to list interviews")
		return
	}
	out := make([]interviewSummary, 0, len(ivs))
	for _, iv := range ivs {
		cfg := iv.Config
		if cfg == nil {
			cfg = json.RawMessage("null")
		}
		out = append(out, interviewSummary{
			ID:           iv.ID,
			CreatedAt:    iv.CreatedAt,
			UpdatedAt:    iv.UpdatedAt,
			Status:       iv.Status,
			Config:       cfg,
			MessageCount: len(iv.Messages),
			Transcript:   iv.Messages,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteAllInterviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("confirm") != "true" {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "Deletion requires confirmation. Add ?confirm=true to proceed.",
			Message: "This will delete all interviews. Use ?confirm=true&status=<status> to filter by status.",
		})
		return
	}
	status := memory.Status(q.Get("status"))

	n, err := s.store.DeleteAll(r.Context(), status)
	if err != nil {
		observe.Logger(r.Context()).Error("delete interviews", "err", err, "status", status)
		respondError(w, http.StatusInternalServerError, "Failed to delete interviews")
		return
	}

	var msg string
	switch {
	case n == 0:
		msg = "No interviews found to delete"
	case status != "":
		msg = fmt.Sprintf("Deleted %d interview(s) with status %q", n, status)
	default:
		msg = fmt.Sprintf("Deleted all %d interview(s)", n)
	}
	observe.Logger(r.Context()).Info("interviews deleted", "count", n, "status", status)
	respondJSON(w, http.StatusOK, deleteResponse{Success: true, Deleted: &n, Message: msg})
}

func (s *Server) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	iv, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, r, "get interview", err)
		return
	}
	respondInterview(w, iv)
}

func (s *Server) handleUpdateInterview(w http.ResponseWriter, r *http.Request) {
	var req updateInterviewRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Status != "" && !req.Status.Valid() {
		respondError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	u := memory.Update{Status: req.Status}
	if req.Config != nil {
		u.Config = req.Config
		if memory.NormalizeConfig(u.Config) == nil {
			u.Config = json.RawMessage("null")
		}
	}
	if req.Messages != nil {
		u.Messages = *req.Messages
		if u.Messages == nil {
			u.Messages = []memory.Message{}
		}
	}

	iv, err := s.store.Update(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		s.storeError(w, r, "update interview", err)
		return
	}
	respondInterview(w, iv)
}

func (s *Server) handleDeleteInterview(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.storeError(w, r, "delete interview", err)
		return
	}
	respondJSON(w, http.StatusOK, deleteResponse{Success: true})
}

func (s *Server) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == nil {
		respondError(w, http.StatusBadRequest, "Message is required")
		return
	}
	if err := memory.ValidateMessage(*req.Message); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	res, err := s.store.AppendMessage(r.Context(), id, *req.Message)
	if err != nil {
		s.metrics.RecordInterviewMessage(r.Context(), "error")
		s.storeError(w, r, "append message", err)
		return
	}
	outcome := "stored"
	if res.Duplicate {
		outcome = "duplicate"
	}
	s.metrics.RecordInterviewMessage(r.Context(), outcome)
	observe.Logger(r.Context()).Debug("message appended",
		"interview_id", id, "transcript_id", req.Message.TranscriptID, "outcome", outcome)
	respondJSON(w, http.StatusOK, appendResponse{Success: true, AppendResult: res})
}

// storeError maps store failures to responses: not found is 404, invalid
// input 400 and everything else 500.
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, memory.ErrNotFound):
		respondError(w, http.StatusNotFound, errNotFound)
	case errors.Is(err, memory.ErrInvalidMessage):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		observe.Logger(r.Context()).Error(op, "err", err)
		respondError(w, http.StatusInternalServerError, "Failed to "+op)
	}
}
