package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/MrWong99/mockinterview/internal/observe"
	"github.com/MrWong99/mockinterview/internal/questions"
)

type generateRequest struct {
	Config json.RawMessage `json:"config"`
}

type generateResponse struct {
	Questions []questions.Question `json:"questions"`
}

func (s *Server) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	log := observe.Logger(r.Context())
	if s.questions == nil {
		respondError(w, http.StatusServiceUnavailable, "Question generation is not configured")
		return
	}

	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Missing interview configuration")
		return
	}
	raw := bytes.TrimSpace(req.Config)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		respondError(w, http.StatusBadRequest, "Missing interview configuration")
		return
	}
	var cfg questions.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		respondError(w, http.StatusBadRequest, "Missing interview configuration")
		return
	}

	qs, err := s.questions.Generate(r.Context(), cfg)
	if err != nil {
		log.Error("generate questions", "err", err)
		respondError(w, http.StatusInternalServerError, "Failed to generate questions")
		return
	}
	respondJSON(w, http.StatusOK, generateResponse{Questions: qs})
}
