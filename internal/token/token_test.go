package token_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/mockinterview/internal/token"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_750_000_000, 0)
	s, err := token.NewSigner("s3cret", token.WithClock(fixedClock(now)), token.WithTTL(time.Minute))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	in := token.Claims{
		Identity: "candidate-x7k2p",
		Room:     "interview-1",
		Metadata: `{"interviewer_role":"HR"}`,
		Agent:    "interviewer",
	}
	tok, err := s.Issue(in)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	got, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	in.ExpiresAt = now.Add(time.Minute).Unix()
	if got != in {
		t.Errorf("claims = %+v, want %+v", got, in)
	}
}

func TestVerify_Rejects(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_750_000_000, 0)
	s, _ := token.NewSigner("s3cret", token.WithClock(fixedClock(now)))
	other, _ := token.NewSigner("different", token.WithClock(fixedClock(now)))

	valid, _ := s.Issue(token.Claims{Identity: "c", Room: "r"})
	parts := strings.Split(valid, ".")
	header, body, sig := parts[0], parts[1], parts[2]
	none := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0." + body + "."
	foreign, _ := other.Issue(token.Claims{Identity: "c", Room: "r"})
	noRoom, _ := s.Issue(token.Claims{Identity: "c"})

	tests := []struct {
		name string
		tok  string
		want error
	}{
		{"empty", "", token.ErrInvalidToken},
		{"garbage", "not-a-token", token.ErrInvalidToken},
		{"tampered body", header + ".e30" + body[3:] + "." + sig, token.ErrInvalidToken},
		{"tampered sig", header + "." + body + "." + sig[:len(sig)-2] + "AA", token.ErrInvalidToken},
		{"alg none", none, token.ErrInvalidToken},
		{"wrong secret", foreign, token.ErrInvalidToken},
		{"missing room", noRoom, token.ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := s.Verify(tt.tok); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	issued := time.Unix(1_750_000_000, 0)
	s, _ := token.NewSigner("k", token.WithClock(fixedClock(issued)), token.WithTTL(time.Minute))
	tok, _ := s.Issue(token.Claims{Identity: "c", Room: "r"})

	later, _ := token.NewSigner("k", token.WithClock(fixedClock(issued.Add(2*time.Minute))))
	if _, err := later.Verify(tok); !errors.Is(err, token.ErrExpired) {
		t.Errorf("err = %v, want ErrExpired", err)
	}
}

func TestNewSigner_EmptySecret(t *testing.T) {
	t.Parallel()

	if _, err := token.NewSigner(""); !errors.Is(err, token.ErrNoSecret) {
		t.Errorf("err = %v, want ErrNoSecret", err)
	}
}
