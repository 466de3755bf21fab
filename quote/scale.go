package quote

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"coinquote/db"
	"coinquote/knapsack"
	"coinquote/orderbook"
)

var maxWeight = decimal.NewFromInt(math.MaxInt64)

// Scaled is a book side turned into solver input. Weights and Capacity are
// counted in Unit steps.
type Scaled struct {
	Unit     decimal.Decimal
	Values   []decimal.Decimal
	Weights  []int64
	Capacity int64
}

// Scale discretizes levels for the solver.
//
// When the request matches the product orientation the amount is in base
// currency: unit = base_min_size * quote_increment, weight = size / unit and
// value = price * size. When inverted the amount is in the product's quote
// currency: unit = quote_increment, weight = price * size / unit and
// value = size. Every division truncates toward zero on exact decimals.
func Scale(levels []orderbook.Level, amount decimal.Decimal, product db.Product, inverted bool) (Scaled, error) {
	unit := product.BaseMinSize.Mul(product.QuoteIncrement)
	if inverted {
		unit = product.QuoteIncrement
	}
	if !unit.IsPositive() {
		return Scaled{}, fmt.Errorf("%w: %s has no positive increment", knapsack.ErrInvalidInput, product.ID)
	}

	s := Scaled{
		Unit:    unit,
		Values:  make([]decimal.Decimal, len(levels)),
		Weights: make([]int64, len(levels)),
	}
	for i, l := range levels {
		notional := l.Price.Mul(l.Size)
		weighed, value := l.Size, notional
		if inverted {
			weighed, value = notional, l.Size
		}
		w, err := steps(weighed, unit)
		if err != nil {
			return Scaled{}, err
		}
		s.Values[i] = value
		s.Weights[i] = w
	}

	capacity, err := steps(amount, unit)
	if err != nil {
		return Scaled{}, err
	}
	s.Capacity = capacity
	return s, nil
}

func steps(x, unit decimal.Decimal) (int64, error) {
	q, _ := x.QuoRem(unit, 0)
	if q.GreaterThan(maxWeight) {
		return 0, fmt.Errorf("%w: %s / %s does not fit in int64", knapsack.ErrCapacityOverflow, x, unit)
	}
	return q.IntPart(), nil
}
