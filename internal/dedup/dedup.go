// Package dedup guarantees that a source document is ingested at most once.
package dedup

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/freight-cli/internal/model"
)

// ErrAlreadyProcessed is returned by Acquire when the document was already
// ingested or is currently claimed by another worker.
var ErrAlreadyProcessed = eris.New("dedup: document already processed")

// Mode selects how Acquire gates a document.
type Mode string

const (
	// ModeCheck is a plain check-then-act: safe for a single sequential worker.
	ModeCheck Mode = "check"
	// ModeReserve atomically claims the key so concurrent workers never both
	// process the same document.
	ModeReserve Mode = "reserve"
)

// ParseMode parses a configured mode. Empty means ModeCheck.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeCheck:
		return ModeCheck, nil
	case ModeReserve:
		return ModeReserve, nil
	}
	return "", eris.Errorf("dedup: unknown mode %q (want check or reserve)", s)
}

// Backend records processed documents. Done records are written once and
// never changed; reservations may be released or reclaimed once stale.
type Backend interface {
	HasProcessed(ctx context.Context, key string) (bool, error)
	MarkProcessed(ctx context.Context, key string) error
	Reserve(ctx context.Context, key string, staleAfter time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Deduplicator gates documents by their composite key.
type Deduplicator struct {
	backend    Backend
	mode       Mode
	staleAfter time.Duration
}

// New creates a Deduplicator. staleAfter bounds how long an abandoned
// reservation blocks a key in ModeReserve; zero means forever.
func New(backend Backend, mode Mode, staleAfter time.Duration) *Deduplicator {
	if mode == "" {
		mode = ModeCheck
	}
	return &Deduplicator{backend: backend, mode: mode, staleAfter: staleAfter}
}

// Mode returns the configured gating mode.
func (d *Deduplicator) Mode() Mode { return d.mode }

// HasProcessed reports whether key was marked processed.
func (d *Deduplicator) HasProcessed(ctx context.Context, key model.DocumentKey) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	done, err := d.backend.HasProcessed(ctx, key.String())
	if err != nil {
		return false, eris.Wrapf(err, "dedup: has processed %s", key)
	}
	return done, nil
}

// MarkProcessed records key as done. Marking an already-done key is a no-op.
func (d *Deduplicator) MarkProcessed(ctx context.Context, key model.DocumentKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	return eris.Wrapf(d.backend.MarkProcessed(ctx, key.String()), "dedup: mark processed %s", key)
}

// Acquire admits key for processing or returns ErrAlreadyProcessed. In
// ModeReserve the caller must follow up with MarkProcessed or Abandon.
func (d *Deduplicator) Acquire(ctx context.Context, key model.DocumentKey) error {
	done, err := d.HasProcessed(ctx, key)
	if err != nil {
		return err
	}
	if done {
		return ErrAlreadyProcessed
	}
	if d.mode != ModeReserve {
		return nil
	}

	ok, err := d.backend.Reserve(ctx, key.String(), d.staleAfter)
	if err != nil {
		return eris.Wrapf(err, "dedup: reserve %s", key)
	}
	if !ok {
		zap.L().Info("dedup: document claimed by another worker", zap.String("key", key.String()))
		return ErrAlreadyProcessed
	}
	return nil
}

// Abandon gives up a key admitted by Acquire without marking it, so a later
// run can retry the document.
func (d *Deduplicator) Abandon(ctx context.Context, key model.DocumentKey) error {
	if d.mode != ModeReserve {
		return nil
	}
	return eris.Wrapf(d.backend.Release(ctx, key.String()), "dedup: release %s", key)
}
