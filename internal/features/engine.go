// Package features derives temporal, spatial and velocity features from a
// customer's transaction history.
//
// The batch path (ComputeBatch) and the serving path (BuildFeatures) share
// one sequence computation, so a transaction gets the same features whether
// it is scored from a full dataset or from a history buffer. Features of a
// transaction depend only on that customer's earlier transactions and itself.
package features

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"lumina/fraud-lab/internal/domain"
	"lumina/fraud-lab/internal/geo"
)

const (
	// ShortWindow and LongWindow are the trailing velocity windows.
	ShortWindow = time.Hour
	LongWindow  = 24 * time.Hour

	// Lookback is how much history BuildFeatures needs before the raw
	// transaction: LongWindow plus the single transaction preceding it.
	Lookback = LongWindow

	LongDistanceKm = 300.0
	MaxSpeedKmh    = 20000.0
	NightEndHour   = 6
)

// ErrInvalidHistory is returned when a history buffer does not belong to the
// raw transaction's customer or is not in chronological order.
var ErrInvalidHistory = errors.New("features: invalid history")

// Row is a feature vector with the identifiers and labels of its transaction.
type Row struct {
	TransactionID string           `json:"transaction_id"`
	CustomerID    string           `json:"customer_id"`
	Timestamp     time.Time        `json:"timestamp"`
	Features      Vector           `json:"features"`
	IsFraud       bool             `json:"is_fraud"`
	FraudType     domain.FraudType `json:"fraud_type"`
}

// ComputeBatch computes features for every transaction. Rows come back sorted
// by customer and timestamp. txns is not modified.
func ComputeBatch(txns []domain.Transaction) []Row {
	sorted := slices.Clone(txns)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CustomerID != sorted[j].CustomerID {
			return sorted[i].CustomerID < sorted[j].CustomerID
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	rows := make([]Row, 0, len(sorted))
	for start := 0; start < len(sorted); {
		end := start + 1
		for end < len(sorted) && sorted[end].CustomerID == sorted[start].CustomerID {
			end++
		}
		seq := sorted[start:end]
		for k, v := range computeSequence(seq) {
			rows = append(rows, Row{
				TransactionID: seq[k].TransactionID,
				CustomerID:    seq[k].CustomerID,
				Timestamp:     seq[k].Timestamp,
				Features:      v,
				IsFraud:       seq[k].IsFraud,
				FraudType:     seq[k].FraudType,
			})
		}
		start = end
	}
	return rows
}

// BuildFeatures computes the features of raw given the customer's earlier
// transactions in chronological order. history may be trimmed to Lookback
// before raw plus one older transaction without changing the result.
// An empty history yields the features of a customer's first transaction.
func BuildFeatures(raw domain.Transaction, history []domain.Transaction) (Vector, error) {
	for i := range history {
		h := &history[i]
		if h.CustomerID != raw.CustomerID {
			return Vector{}, fmt.Errorf("%w: transaction %s belongs to %s, not %s",
				ErrInvalidHistory, h.TransactionID, h.CustomerID, raw.CustomerID)
		}
		if h.Timestamp.After(raw.Timestamp) {
			return Vector{}, fmt.Errorf("%w: transaction %s is later than %s",
				ErrInvalidHistory, h.TransactionID, raw.TransactionID)
		}
		if i > 0 && h.Timestamp.Before(history[i-1].Timestamp) {
			return Vector{}, fmt.Errorf("%w: not in chronological order at %s",
				ErrInvalidHistory, h.TransactionID)
		}
	}

	seq := make([]domain.Transaction, 0, len(history)+1)
	seq = append(seq, history...)
	seq = append(seq, raw)
	out := computeSequence(seq)
	return out[len(out)-1], nil
}

// computeSequence computes one vector per transaction of a single customer's
// chronologically ordered sequence.
func computeSequence(seq []domain.Transaction) []Vector {
	out := make([]Vector, len(seq))
	short, long := 0, 0 // first index inside each trailing window

	for k := range seq {
		cur := &seq[k]
		ts := cur.Timestamp

		for !seq[short].Timestamp.After(ts.Add(-ShortWindow)) {
			short++
		}
		for !seq[long].Timestamp.After(ts.Add(-LongWindow)) {
			long++
		}

		v := temporal(ts)
		v.Amount = cur.Amount
		v.DistanceKm = cur.DistanceFromHome
		v.IsLongDistance = cur.DistanceFromHome > LongDistanceKm

		v.TxnCount1h = k - short + 1
		v.TxnCount24h = k - long + 1

		var sum float64
		for j := long; j <= k; j++ {
			sum += seq[j].Amount
		}
		v.AvgAmount24h = sum / float64(v.TxnCount24h)
		v.AmountDeviation = cur.Amount - v.AvgAmount24h
		v.AmountDeviationLog = SignedLog1p(v.AmountDeviation)

		if k > 0 {
			prev := &seq[k-1]
			elapsed := ts.Sub(prev.Timestamp)
			v.TimeSinceLastSec = elapsed.Seconds()
			v.SpeedKmh = speed(prev, cur, elapsed)
		}
		out[k] = v
	}
	return out
}

func temporal(ts time.Time) Vector {
	hour := ts.Hour()
	dow := domain.Weekday(ts)
	angle := 2 * math.Pi * float64(hour) / 24
	return Vector{
		Hour:      hour,
		Day:       ts.Day(),
		DayOfWeek: dow,
		IsWeekend: dow >= 5,
		IsNight:   hour < NightEndHour,
		HourSin:   math.Sin(angle),
		HourCos:   math.Cos(angle),
	}
}

func speed(prev, cur *domain.Transaction, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	km := geo.Distance(prev.MerchantLat, prev.MerchantLong, cur.MerchantLat, cur.MerchantLong)
	return math.Min(km/elapsed.Hours(), MaxSpeedKmh)
}

// SignedLog1p returns sign(x) * log(1 + |x|).
func SignedLog1p(x float64) float64 {
	if x < 0 {
		return -math.Log1p(-x)
	}
	return math.Log1p(x)
}
