package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"lumina/fraud-lab/internal/domain"
	"lumina/fraud-lab/internal/store"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

var base = time.Date(2024, time.June, 3, 12, 0, 0, 0, time.UTC)

func newTx(id, customer string, ts time.Time) domain.Transaction {
	tx := domain.Transaction{
		TransactionID: id,
		CustomerID:    customer,
		Amount:        50,
		MerchantID:    "MERCHANT_00001",
	}
	tx.SetTimestamp(ts)
	tx.Label(domain.FraudNone)
	return tx
}

func newMemory() *store.Memory {
	return store.NewMemory(store.Options{Lookback: 24 * time.Hour, Retention: 72 * time.Hour})
}

func ids(txns []domain.Transaction) []string {
	out := make([]string, len(txns))
	for i, tx := range txns {
		out[i] = tx.TransactionID
	}
	return out
}

func assertIDs(t *testing.T, got []domain.Transaction, want ...string) {
	t.Helper()
	g := ids(got)
	if fmt.Sprint(g) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, g)
	}
}

// ─── Append ───────────────────────────────────────────────────────────────────

func TestAppend_DuplicateID_ReturnsError(t *testing.T) {
	s := newMemory()
	ctx := context.Background()
	tx := newTx("dup-001", "C1", base)
	if err := s.Append(ctx, tx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Append(ctx, tx); err != store.ErrDuplicateTransaction {
		t.Errorf("expected ErrDuplicateTransaction, got %v", err)
	}
}

func TestAppend_OutOfOrderIsSorted(t *testing.T) {
	s := newMemory()
	ctx := context.Background()
	_ = s.Append(ctx, newTx("t3", "C1", base.Add(3*time.Hour)))
	_ = s.Append(ctx, newTx("t1", "C1", base.Add(1*time.Hour)))
	_ = s.Append(ctx, newTx("t2", "C1", base.Add(2*time.Hour)))

	got, _ := s.History(ctx, "C1", base.Add(4*time.Hour))
	assertIDs(t, got, "t1", "t2", "t3")
}

func TestAppend_EvictsBeyondRetention(t *testing.T) {
	s := newMemory()
	ctx := context.Background()
	_ = s.Append(ctx, newTx("old", "C1", base))
	_ = s.Append(ctx, newTx("mid", "C1", base.Add(48*time.Hour)))
	_ = s.Append(ctx, newTx("new", "C1", base.Add(80*time.Hour)))

	if n := s.Len("C1"); n != 2 {
		t.Errorf("expected 2 rows after eviction, got %d", n)
	}
	// Evicted IDs may be reused.
	if err := s.Append(ctx, newTx("old", "C1", base.Add(81*time.Hour))); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// ─── History ──────────────────────────────────────────────────────────────────

func TestHistory_UnknownCustomer_IsEmpty(t *testing.T) {
	got, err := newMemory().History(context.Background(), "nobody", base)
	if err != nil || len(got) != 0 {
		t.Errorf("expected empty history, got %v (%v)", got, err)
	}
}

func TestHistory_WindowPlusPrevious(t *testing.T) {
	s := newMemory()
	ctx := context.Background()
	_ = s.Append(ctx, newTx("a", "C1", base))
	_ = s.Append(ctx, newTx("b", "C1", base.Add(10*time.Hour)))
	_ = s.Append(ctx, newTx("c", "C1", base.Add(30*time.Hour)))
	_ = s.Append(ctx, newTx("d", "C1", base.Add(40*time.Hour)))

	// Window (16h, 40h] holds c and d; b is the latest older row.
	got, _ := s.History(ctx, "C1", base.Add(40*time.Hour))
	assertIDs(t, got, "b", "c", "d")
}

func TestHistory_ExcludesLaterRows(t *testing.T) {
	s := newMemory()
	ctx := context.Background()
	_ = s.Append(ctx, newTx("a", "C1", base))
	_ = s.Append(ctx, newTx("b", "C1", base.Add(time.Hour)))
	_ = s.Append(ctx, newTx("c", "C1", base.Add(2*time.Hour)))

	got, _ := s.History(ctx, "C1", base.Add(90*time.Minute))
	assertIDs(t, got, "a", "b")
}

func TestHistory_OnlyPreviousWhenWindowEmpty(t *testing.T) {
	s := newMemory()
	ctx := context.Background()
	_ = s.Append(ctx, newTx("a", "C1", base))
	_ = s.Append(ctx, newTx("b", "C1", base.Add(time.Hour)))

	got, _ := s.History(ctx, "C1", base.Add(48*time.Hour))
	assertIDs(t, got, "b")
}

func TestHistory_IsolatesCustomers(t *testing.T) {
	s := newMemory()
	ctx := context.Background()
	_ = s.Append(ctx, newTx("a", "C1", base))
	_ = s.Append(ctx, newTx("b", "C2", base))

	got, _ := s.History(ctx, "C2", base)
	assertIDs(t, got, "b")
}

func TestHistory_ReturnsCopy(t *testing.T) {
	s := newMemory()
	ctx := context.Background()
	_ = s.Append(ctx, newTx("a", "C1", base))

	got, _ := s.History(ctx, "C1", base)
	got[0].Amount = 999

	again, _ := s.History(ctx, "C1", base)
	if again[0].Amount != 50 {
		t.Error("history slice aliases store memory")
	}
}

// ─── Concurrency ──────────────────────────────────────────────────────────────

func TestConcurrentAppendAndRead(t *testing.T) {
	s := newMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for c := 0; c < 8; c++ {
		customer := fmt.Sprintf("C%d", c)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = s.Append(ctx, newTx(fmt.Sprintf("%s-%d", customer, i), customer, base.Add(time.Duration(i)*time.Minute)))
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, _ = s.History(ctx, customer, base.Add(time.Duration(i)*time.Minute))
			}
		}()
	}
	wg.Wait()

	for c := 0; c < 8; c++ {
		if n := s.Len(fmt.Sprintf("C%d", c)); n != 200 {
			t.Errorf("C%d: expected 200 rows, got %d", c, n)
		}
	}
}
