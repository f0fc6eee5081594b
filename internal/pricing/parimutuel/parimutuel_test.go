package parimutuel

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/predyx-labs/predyxd/internal/domain"
)

func d(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func df(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var (
	createdAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cutoff    = createdAt.Add(10 * 24 * time.Hour)
)

func TestTimeMultiplier_ZeroDecay(t *testing.T) {
	// Exactly 1.0 regardless of where in the window we are.
	for _, now := range []time.Time{
		createdAt,
		createdAt.Add(5 * 24 * time.Hour),
		cutoff,
		cutoff.Add(time.Hour),
	} {
		m, err := TimeMultiplier(now, createdAt, cutoff, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !m.Equal(d(1)) {
			t.Errorf("multiplier at %s = %s, want exactly 1", now, m)
		}
	}
}

func TestTimeMultiplier_Range(t *testing.T) {
	const decay = 1000 // +-5%

	tests := []struct {
		name string
		now  time.Time
		want decimal.Decimal
	}{
		{"at creation", createdAt, df(1.05)},
		{"midpoint", createdAt.Add(5 * 24 * time.Hour), df(1.0)},
		{"at cutoff", cutoff, df(0.95)},
		{"after cutoff", cutoff.Add(48 * time.Hour), df(0.95)},
		{"before creation clamps", createdAt.Add(-time.Hour), df(1.05)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := TimeMultiplier(tt.now, createdAt, cutoff, decay)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !m.Equal(tt.want) {
				t.Errorf("multiplier = %s, want %s", m, tt.want)
			}
		})
	}
}

func TestTimeMultiplier_NonIncreasing(t *testing.T) {
	var prev decimal.Decimal
	for i := 0; i <= 10; i++ {
		now := createdAt.Add(time.Duration(i) * 24 * time.Hour)
		m, err := TimeMultiplier(now, createdAt, cutoff, 700)
		if err != nil {
			t.Fatalf("day %d: %v", i, err)
		}
		if i > 0 && m.GreaterThan(prev) {
			t.Errorf("day %d: multiplier %s increased from %s", i, m, prev)
		}
		prev = m
	}
}

func TestTimeMultiplier_ZeroWindow(t *testing.T) {
	// Degenerate window resolves to the neutral default, never divides by zero.
	m, err := TimeMultiplier(createdAt, createdAt, createdAt, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Equal(d(1)) {
		t.Errorf("multiplier = %s, want 1", m)
	}
}

func TestTimeMultiplier_InvalidDecay(t *testing.T) {
	for _, decay := range []int64{-1, 10001} {
		if _, err := TimeMultiplier(createdAt, createdAt, cutoff, decay); !errors.Is(err, domain.ErrInvalidFee) {
			t.Errorf("decay=%d: got %v, want ErrInvalidFee", decay, err)
		}
	}
}

func TestEffectiveShares(t *testing.T) {
	got := EffectiveShares(d(1000), df(1.05))
	if !got.Equal(d(1050)) {
		t.Errorf("EffectiveShares(1000, 1.05) = %s, want 1050", got)
	}
}

func TestImpliedProbability(t *testing.T) {
	if got := ImpliedProbability(d(0), d(0)); !got.Equal(df(0.5)) {
		t.Errorf("empty market = %s, want 0.5", got)
	}
	if got := ImpliedProbability(d(7500), d(2500)); !got.Equal(df(0.75)) {
		t.Errorf("got %s, want 0.75", got)
	}
}

func TestProjectedPayout_SpecScenario(t *testing.T) {
	// poolYes=12500, poolNo=8750, investment=1000 on YES, fee 500 bps,
	// multiplier 1.0: losingPool=8750, availableWinnings=8312.5.
	proj, err := ProjectedPayout(d(1000), domain.OutcomeYes, d(12_500), d(8_750), d(1), 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	available := df(8312.5)
	if proj.Profit.GreaterThanOrEqual(available) {
		t.Errorf("profit %s not strictly below available winnings %s", proj.Profit, available)
	}

	// profit = 8312.5 * 1000 / 13500
	want := available.Mul(d(1000)).Div(d(13_500))
	if !proj.Profit.Equal(want) {
		t.Errorf("profit = %s, want %s", proj.Profit, want)
	}

	wantROI := want.Div(d(1000)).Mul(d(100))
	if !proj.ROI.Equal(wantROI) {
		t.Errorf("roi = %s, want %s", proj.ROI, wantROI)
	}
	if !proj.Estimate {
		t.Error("projection must be flagged as an estimate")
	}
}

func TestProjectedPayout_ZeroInvestment(t *testing.T) {
	proj, err := ProjectedPayout(d(0), domain.OutcomeNo, d(5000), d(5000), d(1), 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !proj.Profit.IsZero() || !proj.ROI.IsZero() {
		t.Errorf("zero investment: profit=%s roi=%s, want 0/0", proj.Profit, proj.ROI)
	}
}

func TestProjectedPayout_Errors(t *testing.T) {
	if _, err := ProjectedPayout(d(-1), domain.OutcomeYes, d(100), d(100), d(1), 0); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("negative investment: got %v", err)
	}
	if _, err := ProjectedPayout(d(100), domain.OutcomeYes, d(100), d(100), d(1), 20_000); !errors.Is(err, domain.ErrInvalidFee) {
		t.Errorf("bad fee: got %v", err)
	}
}

func TestProjectedPayout_SideSelection(t *testing.T) {
	// Backing NO wins the YES pool.
	proj, err := ProjectedPayout(d(1000), domain.OutcomeNo, d(9000), d(1000), d(1), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// losing pool 9000, total effective 2000 -> profit 4500.
	if !proj.Profit.Equal(d(4500)) {
		t.Errorf("profit = %s, want 4500", proj.Profit)
	}
}

func TestProjectedPayout_EarlyBirdAdvantage(t *testing.T) {
	// Same stake, higher multiplier, strictly more profit.
	early, err := ProjectedPayout(d(1000), domain.OutcomeYes, d(10_000), d(10_000), df(1.05), 300)
	if err != nil {
		t.Fatalf("early: %v", err)
	}
	late, err := ProjectedPayout(d(1000), domain.OutcomeYes, d(10_000), d(10_000), df(0.95), 300)
	if err != nil {
		t.Fatalf("late: %v", err)
	}
	if !early.Profit.GreaterThan(late.Profit) {
		t.Errorf("early profit %s not greater than late profit %s", early.Profit, late.Profit)
	}
}
