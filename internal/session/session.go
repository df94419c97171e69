// Package session keeps the per-user chat state between webhook calls: the
// selected company and the unread rest of a paginated reply.
package session

import (
	"context"
	"time"
)

const (
	DefaultTTL = 6 * time.Hour
	// MaxContinuationLen caps the stored rest, in characters.
	MaxContinuationLen = 50000

	companyKeyPrefix      = "es:company:"
	continuationKeyPrefix = "es:continuation:"
)

// Store persists chat state per user. Missing values read as "".
type Store interface {
	Company(ctx context.Context, user string) (string, error)
	SetCompany(ctx context.Context, user, company string) error
	ClearCompany(ctx context.Context, user string) error

	Continuation(ctx context.Context, user string) (string, error)
	// SetContinuation stores rest, or clears the entry when rest is empty.
	SetContinuation(ctx context.Context, user, rest string) error
	ClearContinuation(ctx context.Context, user string) error

	Close() error
}

func companyKey(user string) string {
	return companyKeyPrefix + user
}

func continuationKey(user string) string {
	return continuationKeyPrefix + user
}

func capContinuation(rest string) string {
	runes := []rune(rest)
	if len(runes) <= MaxContinuationLen {
		return rest
	}
	return string(runes[:MaxContinuationLen])
}
