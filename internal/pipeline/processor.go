// Package pipeline turns parsed source documents into ledger lines and order
// files, gated by the ingestion deduplicator.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/freight-cli/internal/dedup"
	"github.com/sells-group/freight-cli/internal/freight"
	"github.com/sells-group/freight-cli/internal/model"
	"github.com/sells-group/freight-cli/internal/resilience"
)

// Gate admits each document at most once. *dedup.Deduplicator satisfies it.
type Gate interface {
	Acquire(ctx context.Context, key model.DocumentKey) error
	Abandon(ctx context.Context, key model.DocumentKey) error
	MarkProcessed(ctx context.Context, key model.DocumentKey) error
}

// DestinationSource supplies the destination master.
type DestinationSource interface {
	ListDestinations(ctx context.Context) ([]model.Destination, error)
}

// Resolver schedules and prices line items. *freight.Aggregator satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, items []model.LineItem, table *freight.RateTable) ([]model.ResolvedLineItem, error)
}

// LedgerWriter persists resolved lines under a document key.
type LedgerWriter interface {
	AppendLedger(ctx context.Context, documentKey string, items []model.ResolvedLineItem) (int, error)
}

// OrderWriter generates order files for a processed document.
type OrderWriter interface {
	Write(ctx context.Context, doc *model.Document, items []model.ResolvedLineItem) ([]string, error)
}

// Options tunes a Processor.
type Options struct {
	// LedgerRetry governs retries of the ledger write-back.
	LedgerRetry resilience.RetryConfig
	// DocumentTimeout bounds each document in RunBatch; zero means none.
	DocumentTimeout time.Duration
}

// DocumentResult summarizes one processed document.
type DocumentResult struct {
	Key          model.DocumentKey        `json:"key"`
	Skipped      bool                     `json:"skipped"`
	Lines        int                      `json:"lines"`
	TotalFreight decimal.Decimal          `json:"total_freight"`
	OrderFiles   []string                 `json:"order_files,omitempty"`
	Items        []model.ResolvedLineItem `json:"-"`
}

// Processor runs the per-document pipeline.
type Processor struct {
	gate     Gate
	dests    DestinationSource
	resolver Resolver
	ledger   LedgerWriter
	orders   OrderWriter
	opts     Options
}

// NewProcessor wires a Processor. orders may be nil to skip order files.
func NewProcessor(gate Gate, dests DestinationSource, resolver Resolver, ledger LedgerWriter, orders OrderWriter, opts Options) *Processor {
	if opts.LedgerRetry.MaxAttempts == 0 {
		opts.LedgerRetry = resilience.DefaultRetryConfig()
	}
	return &Processor{
		gate:     gate,
		dests:    dests,
		resolver: resolver,
		ledger:   ledger,
		orders:   orders,
		opts:     opts,
	}
}

// Process ingests one document. A document that was already processed
// returns Skipped with no side effects. On any later failure the key is left
// unmarked so the document can be retried.
func (p *Processor) Process(ctx context.Context, doc *model.Document) (*DocumentResult, error) {
	if doc == nil {
		return nil, eris.New("pipeline: nil document")
	}
	key := doc.Key
	log := zap.L().With(zap.String("document", key.String()))
	result := &DocumentResult{Key: key}

	if err := p.gate.Acquire(ctx, key); err != nil {
		if errors.Is(err, dedup.ErrAlreadyProcessed) {
			log.Info("pipeline: document already processed, skipping")
			result.Skipped = true
			return result, nil
		}
		return nil, eris.Wrap(err, "pipeline: dedup gate")
	}

	resolved, err := p.run(ctx, doc, result)
	if err != nil {
		p.abandon(ctx, key, log)
		return nil, err
	}

	if err := p.gate.MarkProcessed(ctx, key); err != nil {
		p.abandon(ctx, key, log)
		return nil, eris.Wrap(err, "pipeline: mark processed")
	}

	result.Items = resolved
	log.Info("pipeline: document processed",
		zap.Int("lines", result.Lines),
		zap.String("total_freight", result.TotalFreight.String()),
		zap.Int("order_files", len(result.OrderFiles)),
	)
	return result, nil
}

// abandon releases the gate's claim on key so a later cycle redoes the
// document. It runs even when ctx is already cancelled.
func (p *Processor) abandon(ctx context.Context, key model.DocumentKey, log *zap.Logger) {
	if err := p.gate.Abandon(context.WithoutCancel(ctx), key); err != nil {
		log.Warn("pipeline: release reservation failed", zap.Error(err))
	}
}

func (p *Processor) run(ctx context.Context, doc *model.Document, result *DocumentResult) ([]model.ResolvedLineItem, error) {
	dests, err := p.dests.ListDestinations(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load destination master")
	}
	table := freight.NewRateTable(dests)

	resolved, err := p.resolver.Resolve(ctx, doc.Items, table)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: resolve freight")
	}

	docKey := doc.Key.String()
	total := decimal.Zero
	for i := range resolved {
		resolved[i].DocumentKey = docKey
		total = total.Add(resolved[i].TotalFreight)
	}

	retry := p.opts.LedgerRetry
	retry.OnRetry = resilience.LogRetry("ledger append", zap.String("document", docKey))
	err = resilience.Do(ctx, retry, func(ctx context.Context) error {
		_, err := p.ledger.AppendLedger(ctx, docKey, resolved)
		return err
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: write ledger")
	}

	if p.orders != nil {
		files, err := p.orders.Write(ctx, doc, resolved)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: write order files")
		}
		result.OrderFiles = files
	}

	result.Lines = len(resolved)
	result.TotalFreight = total
	return resolved, nil
}
