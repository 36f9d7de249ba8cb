// Package token issues and verifies the access tokens candidates present
// when they join a room.
//
// Tokens are HS256 JWTs signed with the server secret. The subject is the
// participant identity; room, metadata and agent travel as private claims.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for malformed tokens and bad signatures.
	ErrInvalidToken = errors.New("token: invalid token")

	// ErrExpired is returned for a well-formed token past its expiry.
	ErrExpired = errors.New("token: expired")

	// ErrNoSecret is returned by NewSigner for an empty secret.
	ErrNoSecret = errors.New("token: signing secret is empty")
)

// DefaultTTL is how long issued tokens stay valid unless overridden.
const DefaultTTL = 15 * time.Minute

// Claims is what a token grants.
type Claims struct {
	Identity string
	Room     string
	Metadata string

	// Agent names the interviewer dispatched into the room.
	Agent string

	// ExpiresAt is unix seconds. Zero means the token does not expire.
	ExpiresAt int64
}

type jwtClaims struct {
	Room     string `json:"room"`
	Metadata string `json:"metadata,omitempty"`
	Agent    string `json:"agent,omitempty"`
	jwt.RegisteredClaims
}

// Option configures a [Signer].
type Option func(*Signer)

// WithTTL sets the lifetime of tokens minted by Issue.
func WithTTL(d time.Duration) Option {
	return func(s *Signer) { s.ttl = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// Signer mints and checks tokens. It is safe for concurrent use.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner returns a Signer keyed by secret.
func NewSigner(secret string, opts ...Option) (*Signer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	s := &Signer{secret: []byte(secret), ttl: DefaultTTL, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Issue fills in the expiry from the signer's TTL and signs c.
func (s *Signer) Issue(c Claims) (string, error) {
	c.ExpiresAt = s.now().Add(s.ttl).Unix()
	return s.Sign(c)
}

// Sign encodes and signs c as given.
func (s *Signer) Sign(c Claims) (string, error) {
	jc := jwtClaims{
		Room:     c.Room,
		Metadata: c.Metadata,
		Agent:    c.Agent,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  c.Identity,
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}
	if c.ExpiresAt != 0 {
		jc.ExpiresAt = jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0))
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jc).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return tok, nil
}

// Verify checks the signature and expiry of tok and returns its claims.
func (s *Signer) Verify(tok string) (Claims, error) {
	var jc jwtClaims
	_, err := jwt.ParseWithClaims(tok, &jc,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrExpired
	case err != nil:
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if jc.Subject == "" || jc.Room == "" {
		return Claims{}, fmt.Errorf("%w: missing identity or room", ErrInvalidToken)
	}

	c := Claims{Identity: jc.Subject, Room: jc.Room, Metadata: jc.Metadata, Agent: jc.Agent}
	if jc.ExpiresAt != nil {
		c.ExpiresAt = jc.ExpiresAt.Unix()
	}
	return c, nil
}
