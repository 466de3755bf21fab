// Package knapsack solves the bounded 0/1 fill problem used to price quotes:
// pick whole book levels maximizing filled value without exceeding a
// discretized capacity.
package knapsack

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	DefaultMaxLevels   = 50
	DefaultMaxCapacity = 1 << 20
)

var (
	ErrCapacityOverflow = errors.New("knapsack capacity exceeds bound")
	ErrInvalidInput     = errors.New("invalid knapsack input")
	ErrCanceled         = errors.New("knapsack solve canceled")
)

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

// Solver carries the bounds of the DP table. Levels past MaxLevels are never
// considered; a capacity above MaxCapacity is refused.
type Solver struct {
	MaxLevels   int
	MaxCapacity int64
}

var defaultSolver = Solver{MaxLevels: DefaultMaxLevels, MaxCapacity: DefaultMaxCapacity}

// Solve runs the default solver.
func Solve(values []decimal.Decimal, weights []int64, capacity int64) (decimal.Decimal, error) {
	return defaultSolver.Solve(values, weights, capacity)
}

// Solve returns the largest total value of a subset of levels whose weights
// sum to at most capacity. Each level is taken whole or not at all.
func (s Solver) Solve(values []decimal.Decimal, weights []int64, capacity int64) (decimal.Decimal, error) {
	return s.SolveContext(context.Background(), values, weights, capacity)
}

// SolveContext is Solve with cancellation, checked once per level while the
// table is filled. A cancelled solve returns ErrCanceled wrapping ctx.Err().
func (s Solver) SolveContext(ctx context.Context, values []decimal.Decimal, weights []int64, capacity int64) (decimal.Decimal, error) {
	if len(values) != len(weights) {
		return decimal.Zero, fmt.Errorf("%w: %d values for %d weights", ErrInvalidInput, len(values), len(weights))
	}
	if capacity < 0 {
		return decimal.Zero, fmt.Errorf("%w: negative capacity %d", ErrInvalidInput, capacity)
	}
	if s.MaxLevels > 0 && len(values) > s.MaxLevels {
		values = values[:s.MaxLevels]
		weights = weights[:s.MaxLevels]
	}
	if capacity == 0 || len(values) == 0 {
		return decimal.Zero, nil
	}

	// covered stays true while the running weight fits in capacity; the
	// comparison form never overflows int64.
	var totalWeight int64
	covered := true
	for i, w := range weights {
		if w < 0 || values[i].IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: negative item at level %d", ErrInvalidInput, i)
		}
		if !covered {
			continue
		}
		if w > capacity-totalWeight {
			covered = false
			continue
		}
		totalWeight += w
	}
	if covered {
		return lo.Reduce(values, func(sum decimal.Decimal, v decimal.Decimal, _ int) decimal.Decimal {
			return sum.Add(v)
		}, decimal.Zero), nil
	}
	if s.MaxCapacity > 0 && capacity > s.MaxCapacity {
		return decimal.Zero, fmt.Errorf("%w: %d > %d", ErrCapacityOverflow, capacity, s.MaxCapacity)
	}

	if ints, exp, ok := fixedPoint(values); ok {
		best, err := solveInt(ctx, ints, weights, capacity)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.New(best, exp), nil
	}
	return solveDecimal(ctx, values, weights, capacity)
}

// fixedPoint rescales values to integers sharing the smallest exponent. It
// fails when the scaled total would not fit in an int64.
func fixedPoint(values []decimal.Decimal) ([]int64, int32, bool) {
	exp := int32(0)
	for _, v := range values {
		if e := v.Exponent(); e < exp {
			exp = e
		}
	}
	ints := make([]int64, len(values))
	var sum int64
	for i, v := range values {
		c := v.Shift(-exp)
		if c.GreaterThan(maxInt64) {
			return nil, 0, false
		}
		n := c.IntPart()
		if n > math.MaxInt64-sum {
			return nil, 0, false
		}
		sum += n
		ints[i] = n
	}
	return ints, exp, true
}

// best[c] is the best value reachable with total weight <= c. Walking c
// downwards keeps every level single-use.
func solveInt(ctx context.Context, values, weights []int64, capacity int64) (int64, error) {
	best := make([]int64, capacity+1)
	for i, w := range weights {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrCanceled, err)
		}
		if w > capacity {
			continue
		}
		v := values[i]
		for c := capacity; c >= w; c-- {
			if cand := best[c-w] + v; cand > best[c] {
				best[c] = cand
			}
		}
	}
	return best[capacity], nil
}

func solveDecimal(ctx context.Context, values []decimal.Decimal, weights []int64, capacity int64) (decimal.Decimal, error) {
	best := make([]decimal.Decimal, capacity+1)
	for i := range best {
		best[i] = decimal.Zero
	}
	for i, w := range weights {
		if err := ctx.Err(); err != nil {
			return decimal.Zero, fmt.Errorf("%w: %w", ErrCanceled, err)
		}
		if w > capacity {
			continue
		}
		v := values[i]
		for c := capacity; c >= w; c-- {
			if cand := best[c-w].Add(v); cand.GreaterThan(best[c]) {
				best[c] = cand
			}
		}
	}
	return best[capacity], nil
}
