package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/MrWong99/mockinterview/internal/observe"
	"github.com/MrWong99/mockinterview/internal/token"
	"github.com/MrWong99/mockinterview/pkg/room/wsroom"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// CandidateIdentity returns "candidate-" followed by five random base36
// characters.
func CandidateIdentity() string {
	b := []byte("candidate-xxxxx")
	for i := len("candidate-"); i < len(b); i++ {
		b[i] = base36[rand.IntN(len(base36))]
	}
	return string(b)
}

// RoomName returns a fresh room name for requests that do not name one.
func RoomName() string {
	return "interview-" + uuid.NewString()
}

type tokenRequest struct {
	Config   json.RawMessage `json:"config"`
	RoomName string          `json:"roomName"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	URL         string `json:"url"`
}

func (s *Server) handleInterviewToken(w http.ResponseWriter, r *http.Request) {
	if s.signer == nil || s.roomURL == "" {
		respondError(w, http.StatusInternalServerError, "Server configuration missing")
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "Error generating token", Details: err.Error()})
		return
	}
	roomName := strings.TrimSpace(req.RoomName)
	if roomName == "" {
		roomName = s.newRoom()
	}

	// The client sends its form state verbatim. It becomes the participant
	// metadata the interviewer parses on join.
	metadata := "null"
	if cfg := bytes.TrimSpace(req.Config); len(cfg) > 0 {
		var compact bytes.Buffer
		if err := json.Compact(&compact, cfg); err == nil {
			metadata = compact.String()
		}
	}

	claims := token.Claims{
		Identity: s.newIdentity(),
		Room:     roomName,
		Metadata: metadata,
		Agent:    s.agentName,
	}
	tok, err := s.signer.Issue(claims)
	if err != nil {
		observe.Logger(r.Context()).Error("issue token", "err", err)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "Error generating token", Details: err.Error()})
		return
	}
	observe.Logger(r.Context()).Info("access token issued", "room", roomName, "identity", claims.Identity)
	respondJSON(w, http.StatusOK, tokenResponse{AccessToken: tok, URL: s.roomURL})
}

// TokenAuthenticator verifies the ?token= query parameter of a room upgrade
// and maps its claims to a wsroom identity.
func TokenAuthenticator(sg *token.Signer) wsroom.Authenticator {
	return func(r *http.Request) (wsroom.Identity, error) {
		tok := r.URL.Query().Get("token")
		if tok == "" {
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				tok = strings.TrimPrefix(h, "Bearer ")
			}
		}
		if tok == "" {
			return wsroom.Identity{}, token.ErrInvalidToken
		}
		c, err := sg.Verify(tok)
		if err != nil {
			return wsroom.Identity{}, err
		}
		return wsroom.Identity{Room: c.Room, Identity: c.Identity, Metadata: c.Metadata}, nil
	}
}
