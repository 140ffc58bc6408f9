// Package store keeps each customer's recent transaction history so the
// scoring service can compute windowed features for an incoming event.
//
// Only the feature lookback plus the transaction preceding it is needed to
// reproduce batch features exactly; older rows are evicted after the
// retention period.
package store

import (
	"context"
	"errors"
	"time"

	"lumina/fraud-lab/internal/domain"
)

// ErrDuplicateTransaction is returned when a transaction ID is submitted twice.
var ErrDuplicateTransaction = errors.New("transaction already exists")

// HistoryStore is a per-customer transaction history.
type HistoryStore interface {
	// History returns the customer's transactions at or before at that fall
	// inside the lookback window, preceded by the latest older transaction
	// if there is one. Rows are in chronological order.
	History(ctx context.Context, customerID string, at time.Time) ([]domain.Transaction, error)

	// Append records a transaction in its customer's history.
	Append(ctx context.Context, tx domain.Transaction) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// Options configures history windows.
type Options struct {
	Lookback  time.Duration
	Retention time.Duration
}

func (o Options) normalized() Options {
	if o.Retention < o.Lookback {
		o.Retention = o.Lookback
	}
	return o
}
