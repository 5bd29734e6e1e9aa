package events

import (
	"context"
	"time"
)

// Kind names the mutation an event reports on
type Kind string

const (
	KindFavorite   Kind = "favorite"
	KindUnfavorite Kind = "unfavorite"
	KindCreate     Kind = "create"
	KindDelete     Kind = "delete"
	KindEdit       Kind = "edit"
)

// Outcome is the terminal phase of a mutation
type Outcome string

const (
	// OutcomeReconciled means the server accepted the change and the cache holds its copy
	OutcomeReconciled Outcome = "reconciled"
	// OutcomeRolledBack means the server rejected the change and the optimistic patch was undone
	OutcomeRolledBack Outcome = "rolled_back"
	// OutcomeFailed means the server rejected a change that had no optimistic patch
	OutcomeFailed Outcome = "failed"
	// OutcomeRejected means the mutation never reached the server
	OutcomeRejected Outcome = "rejected"
)

// MutationEvent is published once per settled mutation
type MutationEvent struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	Slug    string    `json:"slug"`
	Outcome Outcome   `json:"outcome"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher delivers mutation events; implementations must be safe for concurrent use
type Publisher interface {
	Publish(ctx context.Context, event MutationEvent) error
	Close() error
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, MutationEvent) error { return nil }
func (NopPublisher) Close() error                                 { return nil }
