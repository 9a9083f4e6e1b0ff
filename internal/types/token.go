package types

import "github.com/google/uuid"

// TokenClaims holds the identity carried by a validated bearer token.
type TokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
}
