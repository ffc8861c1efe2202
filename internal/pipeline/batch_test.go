package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/freight-cli/internal/dedup"
	"github.com/sells-group/freight-cli/internal/model"
)

func TestRunBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, dedup.ModeCheck)

	docs := map[string]*model.Document{
		"a.xlsx": testDoc("a.xlsx", 5),
		"c.xlsx": testDoc("c.xlsx", 1),
	}
	jobs := []Job{
		{Key: docs["a.xlsx"].Key, Path: "a.xlsx"},
		{Key: model.DocumentKey{MessageID: "m1", Timestamp: "1", Name: "b.xlsx"}, Path: "b.xlsx"},
		{Key: docs["c.xlsx"].Key, Path: "c.xlsx"},
		{Key: docs["a.xlsx"].Key, Path: "a.xlsx"},
	}
	parse := func(path string, key model.DocumentKey) (*model.Document, error) {
		if d, ok := docs[path]; ok {
			return d, nil
		}
		return nil, errors.New("ordersheet: pickup date missing in C1")
	}

	f.dests.On("ListDestinations", mock.Anything).Return([]model.Destination{tokyoDC()}, nil)
	f.ledger.On("AppendLedger", mock.Anything, mock.Anything, mock.Anything).Return(1, nil)
	f.orders.On("Write", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	res := f.proc.RunBatch(ctx, jobs, parse)
	_, err := uuid.Parse(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Skipped, "the repeated document is skipped")
	assert.Equal(t, 1, res.Failed, "a bad document does not stop the batch")
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "b.xlsx", res.Failures[0].Key.Name)
	assert.Len(t, res.Results, 3)
	assert.True(t, res.TotalFreight.Equal(decimal.NewFromInt(5*1000+1500)))
}

func TestRunBatch_Cancelled(t *testing.T) {
	f := newFixture(t, dedup.ModeCheck)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := f.proc.RunBatch(ctx, []Job{{Key: testDoc("a.xlsx").Key, Path: "a.xlsx"}}, func(string, model.DocumentKey) (*model.Document, error) {
		t.Fatal("parse must not run after cancellation")
		return nil, nil
	})
	assert.Zero(t, res.Processed+res.Skipped+res.Failed)
}
