package orderbook

import (
	"errors"
	"sync"

	rbt "github.com/emirpasic/gods/trees/redblacktree"
	"github.com/shopspring/decimal"
)

var ErrEmptyBook = errors.New("order book side is empty")

type Repo interface {
	ProductID() string
	ApplySnapshot(bids, asks []Level)
	ApplyUpdate(changes []Change)
	Route(m Message) bool
	BestBid() (Level, error)
	BestAsk() (Level, error)
	Levels(side Side, limit int) []Level
	Depth() (bids, asks int)
}

// OrderBook keeps both sides of one product as red-black trees keyed by
// price. The comparators order each tree best-first, so an in-order walk
// yields bids descending and asks ascending.
//
// Every exported mutation holds the write lock for the whole message, so
// readers never see half of a snapshot or update.
type OrderBook struct {
	productID string

	mu   sync.RWMutex
	bids *rbt.Tree
	asks *rbt.Tree
}

var _ Repo = (*OrderBook)(nil)

func New(productID string) *OrderBook {
	return &OrderBook{
		productID: productID,
		bids:      rbt.NewWith(BidComparator),
		asks:      rbt.NewWith(AskComparator),
	}
}

func (o *OrderBook) ProductID() string {
	return o.productID
}

// ApplySnapshot replaces the whole book. Levels with a non-positive size are
// dropped so that a side only ever holds live levels.
func (o *OrderBook) ApplySnapshot(bids, asks []Level) {
	bidTree := rbt.NewWith(BidComparator)
	for _, l := range bids {
		if l.Size.IsPositive() {
			bidTree.Put(l.Price, l.Size)
		}
	}
	askTree := rbt.NewWith(AskComparator)
	for _, l := range asks {
		if l.Size.IsPositive() {
			askTree.Put(l.Price, l.Size)
		}
	}

	o.mu.Lock()
	o.bids = bidTree
	o.asks = askTree
	o.mu.Unlock()
}

// ApplyUpdate applies changes in order; a later change for the same price
// wins. A size of zero or less removes the level, removing an absent price
// is a no-op.
func (o *OrderBook) ApplyUpdate(changes []Change) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, c := range changes {
		var tree *rbt.Tree
		switch c.Side {
		case Bid:
			tree = o.bids
		case Ask:
			tree = o.asks
		default:
			continue
		}
		if c.Size.Sign() <= 0 {
			tree.Remove(c.Price)
		} else {
			tree.Put(c.Price, c.Size)
		}
	}
}

// Route applies m if it belongs to this book. Messages for another product
// are dropped and false is returned.
func (o *OrderBook) Route(m Message) bool {
	if m.Product() != o.productID {
		return false
	}
	switch msg := m.(type) {
	case *Snapshot:
		o.ApplySnapshot(msg.Bids, msg.Asks)
	case *Update:
		o.ApplyUpdate(msg.Changes)
	default:
		return false
	}
	return true
}

func (o *OrderBook) BestBid() (Level, error) {
	return o.best(Bid)
}

func (o *OrderBook) BestAsk() (Level, error) {
	return o.best(Ask)
}

func (o *OrderBook) best(side Side) (Level, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	node := o.tree(side).Left()
	if node == nil {
		return Level{}, ErrEmptyBook
	}
	return toLevel(node.Key, node.Value), nil
}

// Levels returns up to limit levels of side, best price first. A limit of
// zero or less returns the whole side.
func (o *OrderBook) Levels(side Side, limit int) []Level {
	o.mu.RLock()
	defer o.mu.RUnlock()
	tree := o.tree(side)
	n := tree.Size()
	if limit > 0 && limit < n {
		n = limit
	}
	levels := make([]Level, 0, n)
	it := tree.Iterator()
	for len(levels) < n && it.Next() {
		levels = append(levels, toLevel(it.Key(), it.Value()))
	}
	return levels
}

// Depth reports the number of levels held on each side.
func (o *OrderBook) Depth() (bids, asks int) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.bids.Size(), o.asks.Size()
}

func (o *OrderBook) tree(side Side) *rbt.Tree {
	if side == Bid {
		return o.bids
	}
	return o.asks
}

func toLevel(key, value interface{}) Level {
	return Level{Price: key.(decimal.Decimal), Size: value.(decimal.Decimal)}
}

func AskComparator(a, b interface{}) int {
	aAsserted := a.(decimal.Decimal)
	bAsserted := b.(decimal.Decimal)
	switch {
	case aAsserted.GreaterThan(bAsserted):
		return 1
	case aAsserted.LessThan(bAsserted):
		return -1
	default:
		return 0
	}
}

func BidComparator(a, b interface{}) int {
	aAsserted := a.(decimal.Decimal)
	bAsserted := b.(decimal.Decimal)
	switch {
	case aAsserted.GreaterThan(bAsserted):
		return -1
	case aAsserted.LessThan(bAsserted):
		return 1
	default:
		return 0
	}
}
