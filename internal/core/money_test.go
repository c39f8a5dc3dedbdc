package core

import "testing"

func TestFromMilliunits(t *testing.T) {
	cases := []struct {
		milli int64
		cents int64
	}{
		{0, 0},
		{1000, 100},       // one unit
		{-1000, -100},
		{123450, 12345},   // 123.45
		{-5000000, -500000},
		{12345, 1235},     // 12.345 rounds half away
		{-12345, -1235},
		{12344, 1234},
	}
	for i, tc := range cases {
		got := FromMilliunits(tc.milli)
		if got.Cents != tc.cents {
			t.Fatalf("case %d: FromMilliunits(%d) = %d cents, want %d", i, tc.milli, got.Cents, tc.cents)
		}
	}
}

// Every amount emerging from milliunit conversion differs from its input by
// exactly a factor of 1000 (10 in cents terms).
func TestMilliunitFactor(t *testing.T) {
	for _, milli := range []int64{1000, -1000, 2500000, -999990, 10} {
		m := FromMilliunits(milli)
		if m.Cents*10 != milli {
			t.Fatalf("FromMilliunits(%d) = %d cents, not an exact /10", milli, m.Cents)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		m    Money
		want string
	}{
		{Money{Cents: 0}, "0.00"},
		{Money{Cents: 7}, "0.07"},
		{Money{Cents: 12345}, "123.45"},
		{Money{Cents: -12345}, "-123.45"},
		{Money{Cents: -5}, "-0.05"},
	}
	for i, tc := range cases {
		if got := tc.m.String(); got != tc.want {
			t.Fatalf("case %d: got %q want %q", i, got, tc.want)
		}
	}
}

func TestPercentOf(t *testing.T) {
	if got := (Money{Cents: 2500}).PercentOf(Money{Cents: 5000}); got != 50 {
		t.Fatalf("got %v want 50", got)
	}
	if got := (Money{Cents: 2500}).PercentOf(Money{}); got != 0 {
		t.Fatalf("zero total should yield 0, got %v", got)
	}
}

func TestClampZero(t *testing.T) {
	if got := (Money{Cents: -50}).ClampZero(); !got.IsZero() {
		t.Fatalf("negative should clamp to zero, got %v", got)
	}
	if got := (Money{Cents: 50}).ClampZero(); got.Cents != 50 {
		t.Fatalf("positive should pass through, got %v", got)
	}
}
