package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/dexrisk/internal/models"
)

func newTestStorage(t *testing.T, maxDecisions int) *Storage {
	t.Helper()
	s, err := New(maxDecisions, ":memory:")
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func executed(at time.Time) models.Outcome {
	return models.Outcome{
		Kind:   models.OutcomeExecuted,
		Symbol: "XPR_XMD",
		Intent: &models.OrderIntent{
			Side:     models.SideSell,
			Quantity: decimal.NewFromInt(7),
			Price:    decimal.NewFromInt(92),
		},
		Stats: &models.MarketStats{
			Average:     decimal.RequireFromString("97.5"),
			StdDev:      decimal.RequireFromString("4.330127"),
			Volatility:  decimal.RequireFromString("0.044411"),
			Trend:       models.TrendSell,
			TotalVolume: decimal.NewFromInt(40),
		},
		At: at,
	}
}

func noAction(reason string, at time.Time) models.Outcome {
	return models.Outcome{Kind: models.OutcomeNoAction, Symbol: "XPR_XMD", Reason: reason, At: at}
}

func TestStorage_AddAndGetDecision(t *testing.T) {
	s := newTestStorage(t, 100)
	now := time.Now()

	if err := s.AddDecision(executed(now)); err != nil {
		t.Fatalf("AddDecision: %v", err)
	}

	got, err := s.GetRecentDecisions(10)
	if err != nil {
		t.Fatalf("GetRecentDecisions: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d decisions, want 1", len(got))
	}
	d := got[0]
	if d.Kind != models.OutcomeExecuted || d.Symbol != "XPR_XMD" {
		t.Errorf("unexpected decision: %+v", d)
	}
	if d.Intent == nil {
		t.Fatal("intent not restored")
	}
	if d.Intent.Side != models.SideSell || !d.Intent.Quantity.Equal(decimal.NewFromInt(7)) || !d.Intent.Price.Equal(decimal.NewFromInt(92)) {
		t.Errorf("unexpected intent: %s", d.Intent)
	}
	if d.Stats == nil || d.Stats.Trend != models.TrendSell {
		t.Fatalf("stats not restored: %+v", d.Stats)
	}
	if !d.Stats.Volatility.Equal(decimal.RequireFromString("0.044411")) {
		t.Errorf("volatility = %s", d.Stats.Volatility)
	}
	if d.At.UnixNano() != now.UnixNano() {
		t.Errorf("timestamp = %v, want %v", d.At, now)
	}
}

func TestStorage_NoActionHasNoIntent(t *testing.T) {
	s := newTestStorage(t, 100)
	if err := s.AddDecision(noAction("orders on the books", time.Now())); err != nil {
		t.Fatalf("AddDecision: %v", err)
	}
	got, err := s.GetRecentDecisions(1)
	if err != nil {
		t.Fatalf("GetRecentDecisions: %v", err)
	}
	if got[0].Intent != nil || got[0].Stats != nil {
		t.Errorf("expected bare decision, got %+v", got[0])
	}
	if got[0].Reason != "orders on the books" {
		t.Errorf("reason = %q", got[0].Reason)
	}
}

func TestStorage_AddDecision_Invalid(t *testing.T) {
	s := newTestStorage(t, 100)
	if err := s.AddDecision(models.Outcome{Kind: models.OutcomeNoAction}); err == nil {
		t.Error("expected error for decision without symbol")
	}
}

func TestStorage_RecentDecisionsNewestFirst(t *testing.T) {
	s := newTestStorage(t, 100)
	base := time.Now()
	for i := 0; i < 5; i++ {
		if err := s.AddDecision(noAction(fmt.Sprintf("reason %d", i), base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("AddDecision: %v", err)
		}
	}

	got, err := s.GetRecentDecisions(3)
	if err != nil {
		t.Fatalf("GetRecentDecisions: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d decisions, want 3", len(got))
	}
	for i, want := range []string{"reason 4", "reason 3", "reason 2"} {
		if got[i].Reason != want {
			t.Errorf("decision %d reason = %q, want %q", i, got[i].Reason, want)
		}
	}
}

func TestStorage_EmptyJournal(t *testing.T) {
	s := newTestStorage(t, 100)
	got, err := s.GetRecentDecisions(5)
	if err != nil {
		t.Fatalf("GetRecentDecisions: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

func TestStorage_CapEnforcedOnInsert(t *testing.T) {
	s := newTestStorage(t, 3)
	base := time.Now()
	for i := 0; i < 5; i++ {
		if err := s.AddDecision(noAction(fmt.Sprintf("reason %d", i), base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("AddDecision: %v", err)
		}
	}

	n, err := s.CountDecisions("")
	if err != nil {
		t.Fatalf("CountDecisions: %v", err)
	}
	if n != 3 {
		t.Errorf("journal has %d rows, want 3", n)
	}
	got, _ := s.GetRecentDecisions(10)
	if got[len(got)-1].Reason != "reason 2" {
		t.Errorf("oldest kept = %q, want reason 2", got[len(got)-1].Reason)
	}
}

func TestStorage_CountByKind(t *testing.T) {
	s := newTestStorage(t, 100)
	now := time.Now()
	_ = s.AddDecision(executed(now))
	_ = s.AddDecision(noAction("sideways trend", now.Add(time.Second)))
	_ = s.AddDecision(noAction("volatility too high", now.Add(2*time.Second)))

	n, err := s.CountDecisions(models.OutcomeNoAction)
	if err != nil {
		t.Fatalf("CountDecisions: %v", err)
	}
	if n != 2 {
		t.Errorf("no-action count = %d, want 2", n)
	}
	n, _ = s.CountDecisions(models.OutcomeExecuted)
	if n != 1 {
		t.Errorf("executed count = %d, want 1", n)
	}
}

func TestStorage_RotateDecisions(t *testing.T) {
	s := newTestStorage(t, 100)
	base := time.Now()
	for i := 0; i < 4; i++ {
		_ = s.AddDecision(noAction("r", base.Add(time.Duration(i)*time.Second)))
	}
	s.maxDecisions = 2
	if err := s.RotateDecisions(); err != nil {
		t.Fatalf("RotateDecisions: %v", err)
	}
	n, _ := s.CountDecisions("")
	if n != 2 {
		t.Errorf("after rotate: %d rows, want 2", n)
	}
}

func TestStorage_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	s, err := New(10, path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.AddDecision(executed(time.Now())); err != nil {
		t.Fatalf("AddDecision: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = New(10, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	n, _ := s.CountDecisions(models.OutcomeExecuted)
	if n != 1 {
		t.Errorf("reopened journal has %d executed decisions, want 1", n)
	}
}
