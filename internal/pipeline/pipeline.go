// Package pipeline runs one generation: entities, baseline stream and fraud
// injection, all drawing from a single seeded random source.
package pipeline

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"lumina/fraud-lab/internal/config"
	"lumina/fraud-lab/internal/dataset"
	"lumina/fraud-lab/internal/domain"
	"lumina/fraud-lab/internal/entity"
	"lumina/fraud-lab/internal/fraud"
	"lumina/fraud-lab/internal/simulate"
)

// Result is the output of a generation run.
type Result struct {
	Customers    []domain.Customer
	Merchants    []domain.Merchant
	Transactions []domain.Transaction // sorted by customer and timestamp
	Report       fraud.Report
	Summary      dataset.Summary
}

// NewRand returns the run's random source for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// Run generates a labelled dataset. The same configuration always produces
// the same transactions; only the summary's run ID and timestamp differ.
func Run(cfg config.Generation) (*Result, error) {
	rng := NewRand(cfg.Seed)

	gen, err := entity.New(cfg.Entities, rng)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	customers := gen.Customers()
	merchants := gen.Merchants()
	slog.Info("entities generated", "customers", len(customers), "merchants", len(merchants))

	sim, err := simulate.New(cfg.Simulation, customers, merchants, rng)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	txns := sim.Run()
	slog.Info("baseline stream simulated", "transactions", len(txns),
		"start", cfg.Simulation.Start, "days", cfg.Simulation.Days)

	report := fraud.New(cfg.Fraud, rng).Inject(txns)
	slog.Info("fraud injected",
		"card_cloning", report.Counts[domain.CardCloning],
		"account_takeover", report.Counts[domain.AccountTakeover],
		"merchant_collusion", report.Counts[domain.MerchantCollusion],
		"overwritten", report.Overwritten,
		"fraud_rate", report.FraudRate(),
	)

	summary := dataset.Summarize(txns)
	summary.RunID = uuid.NewString()
	summary.GeneratedAt = time.Now().UTC()
	summary.Seed = cfg.Seed
	summary.Customers = len(customers)
	summary.Merchants = len(merchants)
	summary.Start = cfg.Simulation.Start
	summary.End = cfg.Simulation.End()
	summary.Overwritten = report.Overwritten

	return &Result{
		Customers:    customers,
		Merchants:    merchants,
		Transactions: txns,
		Report:       report,
		Summary:      summary,
	}, nil
}
