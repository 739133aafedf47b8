package domain

import "errors"

var (
	ErrUserNotFound         = errors.New("user-not-found")
	UnexpectedDatabaseError = errors.New("unexpected-database-error")

	// ErrNoEligibleWords means the dictionary has nothing left once the
	// day's exclusions are applied.
	ErrNoEligibleWords = errors.New("no-eligible-words")
)

// Token errors surfaced by the JWT manager.
var (
	ErrInvalidSigningAlg             = errors.New("invalid-signing-algorithm")
	ErrExpiredToken                  = errors.New("expired-token")
	ErrInvalidTokenSignature         = errors.New("invalid-token-signature")
	ErrCorruptedToken                = errors.New("corrupted-token")
	UnexpectedTokenGenerationError   = errors.New("unexpected-token-generation-error")
	UnexpectedTokenVerificationError = errors.New("unexpected-token-verification-error")
)
