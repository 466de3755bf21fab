package knapsack

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func decs(vs ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vs))
	for i, v := range vs {
		out[i] = decimal.NewFromInt(v)
	}
	return out
}

func TestSolve(t *testing.T) {
	cases := []struct {
		name     string
		values   []decimal.Decimal
		weights  []int64
		capacity int64
		want     int64
	}{
		{"classic", decs(60, 100, 120), []int64{10, 20, 30}, 50, 220},
		{"zero capacity", decs(60, 100, 120), []int64{10, 20, 30}, 0, 0},
		{"empty", nil, nil, 100, 0},
		{"capacity covers all", decs(60, 100, 120), []int64{10, 20, 30}, 60, 280},
		{"capacity above all", decs(60, 100, 120), []int64{10, 20, 30}, 1 << 40, 280},
		// greedy by order would take 10 then nothing else fits
		{"non greedy", decs(10, 9, 9), []int64{6, 5, 5}, 10, 18},
		{"nothing fits", decs(5, 7), []int64{11, 12}, 10, 0},
		{"zero weight level", decs(3, 4), []int64{0, 20}, 10, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Solve(tc.values, tc.weights, tc.capacity)
			if err != nil {
				t.Fatalf("Solve: %v", err)
			}
			if !got.Equal(decimal.NewFromInt(tc.want)) {
				t.Fatalf("expected %d, got %s", tc.want, got)
			}
		})
	}
}

func TestSolveDecimalValues(t *testing.T) {
	values := []decimal.Decimal{
		decimal.RequireFromString("0.1"),
		decimal.RequireFromString("0.2"),
		decimal.RequireFromString("0.3"),
	}
	got, err := Solve(values, []int64{1, 1, 1}, 2)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("expected exactly 0.5, got %s", got)
	}
}

func TestSolveTruncatesLevels(t *testing.T) {
	values := make([]decimal.Decimal, 60)
	weights := make([]int64, 60)
	for i := range values {
		values[i] = decimal.NewFromInt(1)
		weights[i] = 1
	}
	values[55] = decimal.NewFromInt(1000)

	got, err := Solve(values, weights, 10)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("level past the truncation point was used: %s", got)
	}

	all, err := Solve(values, weights, 100)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !all.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected sum of the first 50 levels, got %s", all)
	}
}

func TestSolveCapacityOverflow(t *testing.T) {
	s := Solver{MaxLevels: 50, MaxCapacity: 100}
	_, err := s.Solve(decs(1, 2), []int64{500, 600}, 700)
	if !errors.Is(err, ErrCapacityOverflow) {
		t.Fatalf("expected ErrCapacityOverflow, got %v", err)
	}

	// whole book consumable: no table is needed, so no bound applies
	got, err := s.Solve(decs(1, 2), []int64{500, 600}, 5000)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected 3, got %s", got)
	}
}

func TestSolveInvalidInput(t *testing.T) {
	if _, err := Solve(decs(1), []int64{1, 2}, 3); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for length mismatch, got %v", err)
	}
	if _, err := Solve(decs(1), []int64{-1}, 3); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative weight, got %v", err)
	}
	if _, err := Solve(decs(1), []int64{1}, -3); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative capacity, got %v", err)
	}
}

func TestSolveConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Solve(decs(60, 100, 120), []int64{10, 20, 30}, 50)
			if err != nil || !got.Equal(decimal.NewFromInt(220)) {
				t.Errorf("unexpected result %s, %v", got, err)
			}
		}()
	}
	wg.Wait()
}

func TestSolveWeightSumDoesNotWrap(t *testing.T) {
	s := Solver{MaxLevels: 50, MaxCapacity: 100}
	for _, capacity := range []int64{math.MaxInt64 - 1, math.MaxInt64} {
		_, err := s.Solve(decs(1, 2), []int64{math.MaxInt64 - 1, math.MaxInt64 - 1}, capacity)
		if !errors.Is(err, ErrCapacityOverflow) {
			t.Fatalf("capacity %d: expected ErrCapacityOverflow, got %v", capacity, err)
		}
	}
}

func TestSolveWorstCaseAtDefaultBound(t *testing.T) {
	values := make([]decimal.Decimal, DefaultMaxLevels)
	weights := make([]int64, DefaultMaxLevels)
	for i := range values {
		values[i] = decimal.New(int64(i+1)*100+25, -2) // i+1.25
		weights[i] = DefaultMaxCapacity/10 + 1
	}

	start := time.Now()
	got, err := Solve(values, weights, DefaultMaxCapacity)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	// nine levels fit; the best nine are the last ones
	if !got.Equal(decimal.RequireFromString("416.25")) {
		t.Fatalf("expected 416.25, got %s", got)
	}
	if elapsed > 3*time.Second {
		t.Fatalf("worst case took %s", elapsed)
	}
}

func TestSolveLargeValues(t *testing.T) {
	// values beyond int64 fixed point take the decimal table
	values := []decimal.Decimal{
		decimal.RequireFromString("1e30"),
		decimal.RequireFromString("2e30"),
		decimal.RequireFromString("0.5"),
	}
	got, err := Solve(values, []int64{5, 6, 1}, 7)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("2000000000000000000000000000000.5")) {
		t.Fatalf("unexpected total %s", got)
	}
}

func TestSolveCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, values := range map[string][]decimal.Decimal{
		"fixed point": decs(60, 100, 120),
		"decimal":     {decimal.RequireFromString("1e30"), decimal.NewFromInt(1), decimal.NewFromInt(2)},
	} {
		_, err := defaultSolver.SolveContext(ctx, values, []int64{10, 20, 30}, 50)
		if !errors.Is(err, ErrCanceled) || !errors.Is(err, context.Canceled) {
			t.Fatalf("%s: expected ErrCanceled wrapping context.Canceled, got %v", name, err)
		}
	}

	// the covering shortcut builds no table and ignores ctx
	if _, err := defaultSolver.SolveContext(ctx, decs(1, 2), []int64{1, 1}, 5); err != nil {
		t.Fatalf("covering solve: %v", err)
	}
}
