package orderbook

import (
	"github.com/shopspring/decimal"
)

type Side string

const (
	Bid Side = "bid"
	Ask Side = "ask"
)

// Level is one aggregated price level. Size is always positive while the
// level sits in a book.
type Level struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

type Change struct {
	Side  Side
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Message is a decoded book frame. The set of implementations is closed:
// *Snapshot and *Update.
type Message interface {
	Product() string
	isMessage()
}

type Snapshot struct {
	ProductID string
	Bids      []Level
	Asks      []Level
}

type Update struct {
	ProductID string
	Changes   []Change
}

func (s *Snapshot) Product() string { return s.ProductID }
func (u *Update) Product() string   { return u.ProductID }

func (*Snapshot) isMessage() {}
func (*Update) isMessage()   {}
