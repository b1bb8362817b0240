package app

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/business/risk/domain"
	"github.com/fd1az/arbitrage-bot/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func testLimits() domain.Limits {
	return domain.Limits{
		MaxRiskPerTrade: decimal.RequireFromString("0.10"),
		MaxDailyLoss:    decimal.RequireFromString("0.05"),
		MaxNetExposure:  decimal.RequireFromString("0.50"),
	}
}

func TestRiskGateCanExecuteWithinLimits(t *testing.T) {
	g := New(testLimits(), decimal.RequireFromString("1000"), testLogger())

	ok, reason := g.CanExecute(context.Background(), decimal.RequireFromString("50"))
	if !ok || reason != domain.RejectNone {
		t.Fatalf("expected trade within caps to be allowed, got ok=%v reason=%s", ok, reason)
	}
}

func TestRiskGateRejectsOverPerTradeCap(t *testing.T) {
	g := New(testLimits(), decimal.RequireFromString("1000"), testLogger())

	ok, reason := g.CanExecute(context.Background(), decimal.RequireFromString("101"))
	if ok || reason != domain.RejectOverPerTrade {
		t.Fatalf("expected OVER_PER_TRADE_CAP rejection, got ok=%v reason=%s", ok, reason)
	}
}

func TestRiskGateRejectsOverNetExposureCap(t *testing.T) {
	g := New(testLimits(), decimal.RequireFromString("1000"), testLogger())
	g.RegisterTrade(decimal.RequireFromString("480"))

	ok, reason := g.CanExecute(context.Background(), decimal.RequireFromString("50"))
	if ok || reason != domain.RejectOverExposure {
		t.Fatalf("expected OVER_NET_EXPOSURE_CAP rejection, got ok=%v reason=%s", ok, reason)
	}
}

func TestRiskGateDailyLossEngagesKillSwitch(t *testing.T) {
	g := New(testLimits(), decimal.RequireFromString("1000"), testLogger())
	g.UpdatePnl(decimal.RequireFromString("-60")) // breaches 5% of 1000 = 50

	ok, reason := g.CanExecute(context.Background(), decimal.RequireFromString("10"))
	if ok || reason != domain.RejectDailyLoss {
		t.Fatalf("expected OVER_DAILY_LOSS_CAP rejection, got ok=%v reason=%s", ok, reason)
	}

	// Kill switch now engaged: even a trivially small, otherwise-compliant
	// trade must be rejected on the kill-switch branch, not re-evaluated.
	ok, reason = g.CanExecute(context.Background(), decimal.RequireFromString("1"))
	if ok || reason != domain.RejectKillSwitch {
		t.Fatalf("expected KILL_SWITCH rejection once engaged, got ok=%v reason=%s", ok, reason)
	}
}

func TestRiskGateDailyReset(t *testing.T) {
	g := New(testLimits(), decimal.RequireFromString("1000"), testLogger())
	day1 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return day1 }
	g.state.LastResetDate = domain.TodayUTC(day1)

	g.UpdatePnl(decimal.RequireFromString("-60"))
	ok, _ := g.CanExecute(context.Background(), decimal.RequireFromString("10"))
	if ok {
		t.Fatal("expected kill switch to be engaged on day 1")
	}

	day2 := day1.Add(24 * time.Hour)
	g.now = func() time.Time { return day2 }
	g.CanExecute(context.Background(), decimal.RequireFromString("10"))

	snap := g.Snapshot()
	if !snap.DailyPnl.IsZero() {
		t.Errorf("expected daily PnL reset to zero on new UTC day, got %s", snap.DailyPnl)
	}
	// The reset only clears dailyPnl/exposure; the kill switch itself is a
	// deliberate manual-intervention latch and is not cleared by a new day.
	if !snap.KillSwitch {
		t.Error("expected kill switch to remain engaged across a daily reset")
	}
}

func TestRiskGateBankrollIfFresh(t *testing.T) {
	g := New(testLimits(), decimal.RequireFromString("1000"), testLogger())

	if _, ok := g.BankrollIfFresh(); ok {
		t.Fatal("expected BankrollIfFresh to report stale before any sync")
	}

	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }
	g.SyncBalance(decimal.RequireFromString("2000"))

	g.now = func() time.Time { return fixed.Add(5 * time.Second) }
	bal, ok := g.BankrollIfFresh()
	if !ok || !bal.Equal(decimal.RequireFromString("2000")) {
		t.Fatalf("expected fresh bankroll 2000, got %s fresh=%v", bal, ok)
	}

	g.now = func() time.Time { return fixed.Add(11 * time.Second) }
	if _, ok := g.BankrollIfFresh(); ok {
		t.Error("expected bankroll to report stale past the 10s freshness window")
	}
}

func TestRiskGateConcurrentAccess(t *testing.T) {
	g := New(testLimits(), decimal.RequireFromString("100000"), testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			g.RegisterTrade(decimal.RequireFromString("1"))
		}()
		go func() {
			defer wg.Done()
			g.ClosePosition(decimal.RequireFromString("1"))
		}()
		go func() {
			defer wg.Done()
			g.CanExecute(context.Background(), decimal.RequireFromString("1"))
		}()
	}
	wg.Wait()
}
