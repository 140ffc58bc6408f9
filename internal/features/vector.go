package features

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Feature names in their canonical order.
const (
	FeatAmount             = "amount"
	FeatHour               = "hour"
	FeatDay                = "day"
	FeatDayOfWeek          = "day_of_week"
	FeatIsWeekend          = "is_weekend"
	FeatIsNight            = "is_night"
	FeatHourSin            = "hour_sin"
	FeatHourCos            = "hour_cos"
	FeatDistanceKm         = "txn_distance_km"
	FeatIsLongDistance     = "is_long_distance"
	FeatTimeSinceLastSec   = "time_since_last_txn_sec"
	FeatTxnCount1h         = "txn_count_1h"
	FeatTxnCount24h        = "txn_count_24h"
	FeatAvgAmount24h       = "avg_amount_24h"
	FeatAmountDeviation    = "amount_deviation"
	FeatAmountDeviationLog = "amount_deviation_log"
	FeatSpeedKmh           = "speed_kmh"
)

// Names lists every feature the engine produces, in column order.
var Names = []string{
	FeatAmount,
	FeatHour,
	FeatDay,
	FeatDayOfWeek,
	FeatIsWeekend,
	FeatIsNight,
	FeatHourSin,
	FeatHourCos,
	FeatDistanceKm,
	FeatIsLongDistance,
	FeatTimeSinceLastSec,
	FeatTxnCount1h,
	FeatTxnCount24h,
	FeatAvgAmount24h,
	FeatAmountDeviation,
	FeatAmountDeviationLog,
	FeatSpeedKmh,
}

// Vector holds the features of one transaction.
type Vector struct {
	Amount             float64 `json:"amount"`
	Hour               int     `json:"hour"`
	Day                int     `json:"day"`
	DayOfWeek          int     `json:"day_of_week"`
	IsWeekend          bool    `json:"is_weekend"`
	IsNight            bool    `json:"is_night"`
	HourSin            float64 `json:"hour_sin"`
	HourCos            float64 `json:"hour_cos"`
	DistanceKm         float64 `json:"txn_distance_km"`
	IsLongDistance     bool    `json:"is_long_distance"`
	TimeSinceLastSec   float64 `json:"time_since_last_txn_sec"`
	TxnCount1h         int     `json:"txn_count_1h"`
	TxnCount24h        int     `json:"txn_count_24h"`
	AvgAmount24h       float64 `json:"avg_amount_24h"`
	AmountDeviation    float64 `json:"amount_deviation"`
	AmountDeviationLog float64 `json:"amount_deviation_log"`
	SpeedKmh           float64 `json:"speed_kmh"`
}

// Map returns the vector keyed by feature name. Flags are encoded as 0 or 1.
func (v Vector) Map() map[string]float64 {
	return map[string]float64{
		FeatAmount:             v.Amount,
		FeatHour:               float64(v.Hour),
		FeatDay:                float64(v.Day),
		FeatDayOfWeek:          float64(v.DayOfWeek),
		FeatIsWeekend:          boolToFloat(v.IsWeekend),
		FeatIsNight:            boolToFloat(v.IsNight),
		FeatHourSin:            v.HourSin,
		FeatHourCos:            v.HourCos,
		FeatDistanceKm:         v.DistanceKm,
		FeatIsLongDistance:     boolToFloat(v.IsLongDistance),
		FeatTimeSinceLastSec:   v.TimeSinceLastSec,
		FeatTxnCount1h:         float64(v.TxnCount1h),
		FeatTxnCount24h:        float64(v.TxnCount24h),
		FeatAvgAmount24h:       v.AvgAmount24h,
		FeatAmountDeviation:    v.AmountDeviation,
		FeatAmountDeviationLog: v.AmountDeviationLog,
		FeatSpeedKmh:           v.SpeedKmh,
	}
}

// Values returns the vector in Names order.
func (v Vector) Values() []float64 {
	out, _ := v.Select(Names)
	return out
}

// Select returns the named features in the given order. If any name is not
// produced by the engine it returns a *MissingFeaturesError listing all of
// them.
func (v Vector) Select(names []string) ([]float64, error) {
	m := v.Map()
	out := make([]float64, len(names))
	var missing []string
	for i, name := range names {
		val, ok := m[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		out[i] = val
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingFeaturesError{Missing: slices.Compact(missing)}
	}
	return out, nil
}

// MissingFeaturesError reports required features that are not available.
type MissingFeaturesError struct {
	Missing []string
}

func (e *MissingFeaturesError) Error() string {
	return fmt.Sprintf("missing features: %s", strings.Join(e.Missing, ", "))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
