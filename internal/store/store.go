// Package store persists the destination master, the freight ledger, and the
// processed-document records.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/freight-cli/internal/model"
)

// ErrNotFound is returned when a destination does not exist.
var ErrNotFound = eris.New("store: not found")

// LedgerFilter selects ledger lines. Zero times leave that side open.
type LedgerFilter struct {
	From        time.Time
	To          time.Time
	Destination string
}

// Store is the persistence interface for the freight engine.
type Store interface {
	// Destination master
	UpsertDestination(ctx context.Context, d model.Destination) error
	ImportDestinations(ctx context.Context, ds []model.Destination) (int, error)
	GetDestination(ctx context.Context, name string) (*model.Destination, error)
	DeleteDestination(ctx context.Context, name string) error
	ListDestinations(ctx context.Context) ([]model.Destination, error)
	SearchDestinations(ctx context.Context, query string) ([]model.Destination, error)

	// Ledger. AppendLedger replaces any lines already recorded under
	// documentKey, so re-running a failed document does not duplicate rows.
	AppendLedger(ctx context.Context, documentKey string, items []model.ResolvedLineItem) (int, error)
	ListLedger(ctx context.Context, filter LedgerFilter) ([]model.ResolvedLineItem, error)

	// Processed documents. A done record is written once and never changed.
	HasProcessed(ctx context.Context, key string) (bool, error)
	MarkProcessed(ctx context.Context, key string) error
	// Reserve atomically claims key. A reservation older than staleAfter
	// (when > 0) may be reclaimed. It returns false if the key is done or
	// held by a live reservation.
	Reserve(ctx context.Context, key string, staleAfter time.Duration) (bool, error)
	Release(ctx context.Context, key string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const (
	stateReserved = "reserved"
	stateDone     = "done"
)
