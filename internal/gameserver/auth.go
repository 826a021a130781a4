package gameserver

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TicketIssuer signs and validates short-lived join tickets. Tickets are
// issued out of band (a lobby or matchmaker) and presented once in the
// websocket join handshake.
type TicketIssuer struct {
	secret []byte
	ttl    time.Duration
	nowFn  func() time.Time
}

// NewTicketIssuer creates a TicketIssuer with the given HMAC secret.
// An empty secret gets a random per-process one, so tickets do not
// survive a restart.
//
// Precondition: ttl must be positive.
func NewTicketIssuer(secret string, ttl time.Duration) *TicketIssuer {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic("generating ticket secret: " + err.Error())
		}
	}
	return &TicketIssuer{
		secret: key,
		ttl:    ttl,
		nowFn:  time.Now,
	}
}

// Issue signs a join ticket for the given player name.
//
// Precondition: name must be non-empty.
// Postcondition: Returns a signed ticket valid for the issuer's TTL.
func (t *TicketIssuer) Issue(name string) (string, error) {
	now := t.nowFn()
	claims := jwt.MapClaims{
		"sub": name,
		"exp": now.Add(t.ttl).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing ticket: %w", err)
	}
	return signed, nil
}

// Validate checks a ticket's signature and expiry and returns the player
// name it was issued for.
//
// Postcondition: Returns the name, or a non-nil error for any invalid ticket.
func (t *TicketIssuer) Validate(ticket string) (string, error) {
	token, err := jwt.Parse(ticket, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.nowFn))
	if err != nil {
		return "", fmt.Errorf("parsing ticket: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid ticket")
	}
	name, ok := claims["sub"].(string)
	if !ok || name == "" {
		return "", fmt.Errorf("invalid ticket claims")
	}
	return name, nil
}
