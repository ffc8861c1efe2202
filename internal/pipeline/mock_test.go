package pipeline

import (
	"context"
	"errors"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/freight-cli/internal/dedup"
	"github.com/sells-group/freight-cli/internal/model"
)

// --- Destination source mock ---

type mockDestinations struct {
	mock.Mock
}

func (m *mockDestinations) ListDestinations(ctx context.Context) ([]model.Destination, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Destination), args.Error(1)
}

// --- Ledger mock ---

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) AppendLedger(ctx context.Context, documentKey string, items []model.ResolvedLineItem) (int, error) {
	args := m.Called(ctx, documentKey, items)
	return args.Int(0), args.Error(1)
}

// --- Order writer mock ---

type mockOrders struct {
	mock.Mock
}

func (m *mockOrders) Write(ctx context.Context, doc *model.Document, items []model.ResolvedLineItem) ([]string, error) {
	args := m.Called(ctx, doc, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// --- Dedup backend that fails MarkProcessed ---

type flakyMarkBackend struct {
	*dedup.MemoryBackend
	failures int
}

func (b *flakyMarkBackend) MarkProcessed(ctx context.Context, key string) error {
	if b.failures > 0 {
		b.failures--
		return errors.New("store down")
	}
	return b.MemoryBackend.MarkProcessed(ctx, key)
}
