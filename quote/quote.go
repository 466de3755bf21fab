// Package quote prices a requested trade size against a live order book.
package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"coinquote/db"
	"coinquote/knapsack"
	"coinquote/metrics"
	"coinquote/orderbook"
)

const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"

	precision         = 2
	invertedPrecision = 8
)

var (
	ErrNoData         = errors.New("no data available yet")
	ErrUnknownProduct = errors.New("invalid exchange")
	ErrUnknownAction  = errors.New("unknown action type")
	ErrInvertedSell   = errors.New("base currency and quote currency reversed for sell quote")
	ErrInvalidAmount  = errors.New("amount must be positive")
)

// Books is the read side of the book registry.
type Books interface {
	Get(productID string) (orderbook.Repo, bool)
}

type Request struct {
	Base   string
	Quote  string
	Action string
	Amount decimal.Decimal
}

type Result struct {
	Price    string `json:"price"`
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

type Quoter struct {
	products db.Products
	books    Books
	solver   knapsack.Solver
	depth    int
	logger   zerolog.Logger
}

func NewQuoter(products db.Products, books Books, depth int, maxCapacity int64, logger zerolog.Logger) *Quoter {
	if depth <= 0 {
		depth = knapsack.DefaultMaxLevels
	}
	return &Quoter{
		products: products,
		books:    books,
		solver:   knapsack.Solver{MaxLevels: depth, MaxCapacity: maxCapacity},
		depth:    depth,
		logger:   logger.With().Str("component", "quoter").Logger(),
	}
}

// Match resolves BASE-QUOTE, falling back to QUOTE-BASE as an inverted pair.
func (q *Quoter) Match(base, quote string) (db.Product, bool, error) {
	if p, ok := q.products[base+"-"+quote]; ok {
		return p, false, nil
	}
	if p, ok := q.products[quote+"-"+base]; ok {
		return p, true, nil
	}
	return db.Product{}, false, fmt.Errorf("%w: %s/%s", ErrUnknownProduct, base, quote)
}

// Quote prices req against the current book. ctx bounds the solver.
func (q *Quoter) Quote(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res, err := q.quote(ctx, req)
	metrics.QuoteLatencyMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
	metrics.QuoteRequestsTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		q.logger.Debug().Err(err).Str("base", req.Base).Str("quote", req.Quote).Str("action", req.Action).Msg("quote refused")
	}
	return res, err
}

func (q *Quoter) quote(ctx context.Context, req Request) (Result, error) {
	if !req.Amount.IsPositive() {
		return Result{}, ErrInvalidAmount
	}
	product, inverted, err := q.Match(req.Base, req.Quote)
	if err != nil {
		return Result{}, err
	}
	book, ok := q.books.Get(product.ID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNoData, product.ID)
	}

	var side orderbook.Side
	switch req.Action {
	case ActionBuy:
		side = orderbook.Ask
	case ActionSell:
		if inverted {
			return Result{}, ErrInvertedSell
		}
		side = orderbook.Bid
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}

	levels := book.Levels(side, q.depth)
	if len(levels) == 0 {
		return Result{}, fmt.Errorf("%w: %s %s side is empty", ErrNoData, product.ID, side)
	}
	scaled, err := Scale(levels, req.Amount, product, inverted)
	if err != nil {
		return Result{}, err
	}
	metrics.SolverCapacity.Observe(float64(scaled.Capacity))

	total, err := q.solver.SolveContext(ctx, scaled.Values, scaled.Weights, scaled.Capacity)
	if err != nil {
		return Result{}, err
	}

	places := int32(precision)
	if inverted {
		places = invertedPrecision
	}
	return Result{
		Price:    total.Div(req.Amount).StringFixed(places),
		Total:    total.StringFixed(places),
		Currency: req.Quote,
	}, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoData):
		return "no_data"
	case errors.Is(err, knapsack.ErrCapacityOverflow):
		return "capacity_overflow"
	case errors.Is(err, knapsack.ErrCanceled):
		return "canceled"
	default:
		return "rejected"
	}
}
