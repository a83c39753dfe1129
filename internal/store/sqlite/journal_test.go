package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"signals-systemv1/internal/model"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(Config{DBPath: filepath.Join(t.TempDir(), "signals.db")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalSignalsRoundTrip(t *testing.T) {
	j := openTestJournal(t)

	in := []model.Verdict{
		{Direction: model.Buy, Confidence: 80, Rule: model.RuleTrendFollowing,
			Asset: "EURUSD", Period: 60, ProducedAt: time.Unix(1700000000, 0).UTC()},
		{Direction: model.Sell, Confidence: 65, Rule: model.RuleReversal,
			Asset: "EURUSD", Period: 60, ProducedAt: time.Unix(1700000060, 0).UTC()},
	}
	if err := j.insertSignals(in); err != nil {
		t.Fatalf("insertSignals: %v", err)
	}

	got, err := j.RecentSignals("EURUSD", 60, 10)
	if err != nil {
		t.Fatalf("RecentSignals: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d signals, want 2", len(got))
	}
	// Newest first.
	if got[0] != in[1] || got[1] != in[0] {
		t.Errorf("signals = %+v", got)
	}

	ts, err := j.LastSignalTime("EURUSD", 60)
	if err != nil {
		t.Fatalf("LastSignalTime: %v", err)
	}
	if ts != 1700000060 {
		t.Errorf("LastSignalTime = %d, want 1700000060", ts)
	}
}

func TestJournalLastSignalTimeEmpty(t *testing.T) {
	j := openTestJournal(t)
	ts, err := j.LastSignalTime("EURUSD", 60)
	if err != nil {
		t.Fatalf("LastSignalTime: %v", err)
	}
	if ts != 0 {
		t.Errorf("LastSignalTime on empty table = %d, want 0", ts)
	}
}

func TestJournalCandlesRoundTrip(t *testing.T) {
	j := openTestJournal(t)

	in := []model.Candle{
		{Asset: "EURUSD", Period: 60, TS: 1700000040, Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15, Volume: 3},
		{Asset: "EURUSD", Period: 60, TS: 1700000100, Open: 1.15, High: 1.18, Low: 1.12, Close: 1.16, Volume: 5},
	}
	if err := j.insertCandles(in); err != nil {
		t.Fatalf("insertCandles: %v", err)
	}
	// Replacing the same (asset, period, ts) keeps the latest row.
	in2 := []model.Candle{
		{Asset: "EURUSD", Period: 60, TS: 1700000100, Open: 1.15, High: 1.20, Low: 1.12, Close: 1.17, Volume: 6},
	}
	if err := j.insertCandles(in2); err != nil {
		t.Fatalf("insertCandles replace: %v", err)
	}

	got, err := j.ReadCandles("EURUSD", 60, 0)
	if err != nil {
		t.Fatalf("ReadCandles: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candles, want 2", len(got))
	}
	if got[0].TS != 1700000040 || got[1].TS != 1700000100 {
		t.Errorf("order = %d, %d", got[0].TS, got[1].TS)
	}
	if got[1].Close != 1.17 {
		t.Errorf("replaced candle close = %v, want 1.17", got[1].Close)
	}

	after, err := j.ReadCandles("EURUSD", 60, 1700000040)
	if err != nil {
		t.Fatalf("ReadCandles afterTS: %v", err)
	}
	if len(after) != 1 || after[0].TS != 1700000100 {
		t.Errorf("afterTS result = %+v", after)
	}
}

func TestJournalRunFlushes(t *testing.T) {
	j := openTestJournal(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	v := model.Verdict{Direction: model.Buy, Confidence: 80, Rule: model.RuleTrendFollowing,
		Asset: "GBPUSD", Period: 300, ProducedAt: time.Unix(1700000000, 0).UTC()}
	if err := j.OnSignal(ctx, v); err != nil {
		t.Fatalf("OnSignal: %v", err)
	}
	j.RecordCandle(model.Candle{Asset: "GBPUSD", Period: 300, TS: 1700000100, Open: 1, High: 1, Low: 1, Close: 1})

	// Wait for the delayed flush.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := j.RecentSignals("GBPUSD", 300, 1)
		if err != nil {
			t.Fatalf("RecentSignals: %v", err)
		}
		if len(got) == 1 {
			if got[0] != v {
				t.Errorf("signal = %+v, want %+v", got[0], v)
			}
			cancel()
			<-done
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("signal never flushed")
}
