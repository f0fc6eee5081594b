package fixedpoint

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestParseAmount_StakeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1", "1000000"},
		{"0.5", "500000"},
		{"12.50", "12500000"},
		{"0.000001", "1"},
		{"0", "0"},
		{" 3.25 ", "3250000"},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in, StakeDecimals)
		if err != nil {
			t.Fatalf("ParseAmount(%q): unexpected error: %v", tt.in, err)
		}
		if !got.Equal(d(tt.want)) {
			t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseAmount_Rejects(t *testing.T) {
	tests := []string{
		"",
		"  ",
		"-1",
		"0.0000001", // 7 places on a 6-decimal token
		"abc",
		"1.2.3",
	}
	for _, in := range tests {
		if _, err := ParseAmount(in, StakeDecimals); err == nil {
			t.Errorf("ParseAmount(%q): expected error, got nil", in)
		}
	}
}

func TestParseAmount_GovToken(t *testing.T) {
	got, err := ParseAmount("1.5", GovDecimals)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(d("1500000000000000000")) {
		t.Errorf("ParseAmount(1.5, 18) = %s", got)
	}
}

func TestRoundTrip(t *testing.T) {
	// parse(format(x)) == x for representable unit amounts.
	cases := []string{"0", "1", "999999", "1000000", "123456789", "1000000000000000000"}
	for _, c := range cases {
		units := d(c)
		for _, decimals := range []int32{StakeDecimals, GovDecimals} {
			back, err := ParseAmount(FormatAmount(units, decimals), decimals)
			if err != nil {
				t.Fatalf("round trip %s @%d: %v", c, decimals, err)
			}
			if !back.Equal(units) {
				t.Errorf("round trip %s @%d: got %s", c, decimals, back)
			}
		}
	}
}

func TestValidBps(t *testing.T) {
	for _, bps := range []int64{0, 1, 300, 10000} {
		if !ValidBps(bps) {
			t.Errorf("ValidBps(%d) = false", bps)
		}
	}
	for _, bps := range []int64{-1, 10001, 100000} {
		if ValidBps(bps) {
			t.Errorf("ValidBps(%d) = true", bps)
		}
	}
}

func TestApplyAndDeductBps(t *testing.T) {
	amount := d("10000")

	if got := ApplyBps(amount, 300); !got.Equal(d("300")) {
		t.Errorf("ApplyBps(10000, 300) = %s, want 300", got)
	}
	if got := DeductBps(amount, 300); !got.Equal(d("9700")) {
		t.Errorf("DeductBps(10000, 300) = %s, want 9700", got)
	}

	// Apply + Deduct partition the amount exactly — no drift.
	sum := ApplyBps(amount, 1234).Add(DeductBps(amount, 1234))
	if !sum.Equal(amount) {
		t.Errorf("ApplyBps + DeductBps = %s, want %s", sum, amount)
	}
}

func TestFraction(t *testing.T) {
	if got := Fraction(500); !got.Equal(d("0.05")) {
		t.Errorf("Fraction(500) = %s, want 0.05", got)
	}
	if got := Fraction(0); !got.IsZero() {
		t.Errorf("Fraction(0) = %s, want 0", got)
	}
}
