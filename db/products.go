package db

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// Product is the static metadata of one tradable pair. Sizes and increments
// are exact decimals; they drive quote discretization.
type Product struct {
	ID             string          `json:"id"`
	DisplayName    string          `json:"display_name"`
	BaseCurrency   string          `json:"base_currency"`
	QuoteCurrency  string          `json:"quote_currency"`
	BaseMinSize    decimal.Decimal `json:"base_min_size"`
	BaseMaxSize    decimal.Decimal `json:"base_max_size"`
	QuoteIncrement decimal.Decimal `json:"quote_increment"`
}

type Products map[string]Product

func (p Products) IDs() []string {
	ids := make([]string, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type Repo interface {
	GetProducts(ctx context.Context) (Products, error)
}
