package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/freight-cli/internal/model"
)

// Job is a document waiting to be parsed and processed.
type Job struct {
	Key  model.DocumentKey
	Path string
}

// Parser turns a Job's file into a Document.
type Parser func(path string, key model.DocumentKey) (*model.Document, error)

// Failure records a document that could not be processed.
type Failure struct {
	Key model.DocumentKey `json:"key"`
	Err string            `json:"error"`
}

// BatchResult summarizes a RunBatch call.
type BatchResult struct {
	RunID        string           `json:"run_id"`
	Processed    int              `json:"processed"`
	Skipped      int              `json:"skipped"`
	Failed       int              `json:"failed"`
	TotalFreight decimal.Decimal  `json:"total_freight"`
	Results      []DocumentResult `json:"results"`
	Failures     []Failure        `json:"failures,omitempty"`
	Duration     time.Duration    `json:"duration"`
}

// RunBatch processes jobs one after another. A failing document is counted
// and logged; it never stops the batch. Cancelling ctx stops before the next
// document.
func (p *Processor) RunBatch(ctx context.Context, jobs []Job, parse Parser) *BatchResult {
	start := time.Now()
	res := &BatchResult{RunID: uuid.NewString(), TotalFreight: decimal.Zero}
	log := zap.L().With(zap.String("run_id", res.RunID))
	log.Info("pipeline: batch starting", zap.Int("documents", len(jobs)))

	for _, job := range jobs {
		if ctx.Err() != nil {
			log.Warn("pipeline: batch cancelled", zap.Error(ctx.Err()))
			break
		}

		dr, err := p.processJob(ctx, job, parse)
		if err != nil {
			res.Failed++
			res.Failures = append(res.Failures, Failure{Key: job.Key, Err: err.Error()})
			log.Error("pipeline: document failed",
				zap.String("document", job.Key.String()),
				zap.String("path", job.Path),
				zap.Error(err),
			)
			continue
		}
		if dr.Skipped {
			res.Skipped++
		} else {
			res.Processed++
			res.TotalFreight = res.TotalFreight.Add(dr.TotalFreight)
		}
		res.Results = append(res.Results, *dr)
	}

	res.Duration = time.Since(start)
	log.Info("pipeline: batch complete",
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", res.Duration),
	)
	return res
}

func (p *Processor) processJob(ctx context.Context, job Job, parse Parser) (*DocumentResult, error) {
	if p.opts.DocumentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.DocumentTimeout)
		defer cancel()
	}
	doc, err := parse(job.Path, job.Key)
	if err != nil {
		return nil, err
	}
	return p.Process(ctx, doc)
}
