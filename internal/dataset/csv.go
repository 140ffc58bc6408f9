// Package dataset reads and writes the generated transaction table, the
// feature table and the run summary.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"lumina/fraud-lab/internal/domain"
	"lumina/fraud-lab/internal/features"
)

// ErrDataFormat is returned for rows that cannot be parsed. It is the one
// fatal data error of the pipeline.
var ErrDataFormat = errors.New("dataset: malformed data")

// Timestamp layouts. Fractional seconds are written only when present and
// are accepted on read.
const (
	TimestampLayout      = "2006-01-02 15:04:05.999999"
	timestampParseLayout = "2006-01-02 15:04:05"
)

// Columns is the transaction table header.
var Columns = []string{
	"transaction_id",
	"customer_id",
	"card_number",
	"timestamp",
	"amount",
	"merchant_id",
	"merchant_category",
	"merchant_lat",
	"merchant_long",
	"distance_from_home",
	"hour",
	"day_of_week",
	"month",
	"is_fraud",
	"fraud_type",
}

// ─── Transactions ─────────────────────────────────────────────────────────────

// WriteTransactions writes txns as CSV with a header row.
func WriteTransactions(w io.Writer, txns []domain.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for i := range txns {
		tx := &txns[i]
		record := []string{
			tx.TransactionID,
			tx.CustomerID,
			tx.CardNumber,
			tx.Timestamp.UTC().Format(TimestampLayout),
			formatFloat(tx.Amount),
			tx.MerchantID,
			tx.MerchantCategory,
			formatFloat(tx.MerchantLat),
			formatFloat(tx.MerchantLong),
			formatFloat(tx.DistanceFromHome),
			strconv.Itoa(tx.Hour),
			strconv.Itoa(tx.DayOfWeek),
			strconv.Itoa(tx.Month),
			formatBool(tx.IsFraud),
			string(tx.FraudType),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTransactions parses a transaction table. Columns may appear in any
// order but all of Columns must be present. Calendar fields are recomputed
// from the timestamp.
func ReadTransactions(r io.Reader) ([]domain.Transaction, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrDataFormat, err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	var missing []string
	for _, c := range Columns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %v", ErrDataFormat, missing)
	}

	var txns []domain.Transaction
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrDataFormat, line, err)
		}
		tx, err := parseRow(record, idx)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrDataFormat, line, err)
		}
		txns = append(txns, tx)
	}
	return txns, nil
}

func parseRow(record []string, idx map[string]int) (domain.Transaction, error) {
	field := func(name string) string { return record[idx[name]] }
	var firstErr error
	num := func(name string) float64 {
		v, err := strconv.ParseFloat(field(name), 64)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("column %s: %v", name, err)
		}
		return v
	}

	ts, err := time.Parse(timestampParseLayout, field("timestamp"))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("column timestamp: %v", err)
	}

	tx := domain.Transaction{
		TransactionID:    field("transaction_id"),
		CustomerID:       field("customer_id"),
		CardNumber:       field("card_number"),
		Amount:           num("amount"),
		MerchantID:       field("merchant_id"),
		MerchantCategory: field("merchant_category"),
		MerchantLat:      num("merchant_lat"),
		MerchantLong:     num("merchant_long"),
		DistanceFromHome: num("distance_from_home"),
	}
	if firstErr != nil {
		return domain.Transaction{}, firstErr
	}
	tx.SetTimestamp(ts)

	isFraud, err := strconv.ParseBool(field("is_fraud"))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("column is_fraud: %v", err)
	}
	ft := domain.FraudType(field("fraud_type"))
	if !ft.Valid() {
		return domain.Transaction{}, fmt.Errorf("column fraud_type: unknown label %q", ft)
	}
	tx.Label(ft)
	if tx.IsFraud != isFraud {
		return domain.Transaction{}, fmt.Errorf("is_fraud=%t contradicts fraud_type=%s", isFraud, ft)
	}
	return tx, nil
}

// ─── Features ─────────────────────────────────────────────────────────────────

// FeatureColumns is the feature table header.
func FeatureColumns() []string {
	cols := []string{"transaction_id", "customer_id", "timestamp"}
	cols = append(cols, features.Names...)
	return append(cols, "is_fraud", "fraud_type")
}

// WriteFeatures writes feature rows as CSV with a header row.
func WriteFeatures(w io.Writer, rows []features.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(FeatureColumns()); err != nil {
		return err
	}
	record := make([]string, 0, len(features.Names)+5)
	for _, r := range rows {
		record = record[:0]
		record = append(record, r.TransactionID, r.CustomerID, r.Timestamp.UTC().Format(TimestampLayout))
		for _, v := range r.Features.Values() {
			record = append(record, formatFloat(v))
		}
		record = append(record, formatBool(r.IsFraud), string(r.FraudType))
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
