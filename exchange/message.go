package exchange

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"coinquote/orderbook"
)

const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeSnapshot    = "snapshot"
	TypeL2Update    = "l2update"
	TypeError       = "error"

	ChannelLevel2 = "level2"
)

var ErrDecode = errors.New("malformed feed frame")

type subscription struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

func encodeSubscription(kind string, productIDs []string) ([]byte, error) {
	return json.Marshal(subscription{Type: kind, ProductIDs: productIDs, Channels: []string{ChannelLevel2}})
}

// Frame is one decoded feed frame. Book is set for snapshot and l2update
// frames and nil for everything else (subscriptions, heartbeats, errors).
type Frame struct {
	Type      string
	ProductID string
	Message   string
	Reason    string
	Book      orderbook.Message
}

type wireFrame struct {
	Type      string       `json:"type"`
	ProductID string       `json:"product_id"`
	Message   string       `json:"message"`
	Reason    string       `json:"reason"`
	Bids      []wireLevel  `json:"bids"`
	Asks      []wireLevel  `json:"asks"`
	Changes   []wireChange `json:"changes"`
}

type wireLevel orderbook.Level

func (l *wireLevel) UnmarshalJSON(b []byte) error {
	var raw []decimal.Decimal
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) < 2 {
		return fmt.Errorf("level has %d fields, want 2", len(raw))
	}
	l.Price, l.Size = raw[0], raw[1]
	return nil
}

type wireChange orderbook.Change

func (c *wireChange) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) < 3 {
		return fmt.Errorf("change has %d fields, want 3", len(raw))
	}
	var side string
	if err := json.Unmarshal(raw[0], &side); err != nil {
		return err
	}
	switch side {
	case "buy":
		c.Side = orderbook.Bid
	case "sell":
		c.Side = orderbook.Ask
	default:
		return fmt.Errorf("unknown side %q", side)
	}
	if err := c.Price.UnmarshalJSON(raw[1]); err != nil {
		return err
	}
	return c.Size.UnmarshalJSON(raw[2])
}

// Decode parses one feed frame. Any structural problem, including a bad
// number inside a book frame, is reported as ErrDecode.
func Decode(data []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if w.Type == "" {
		return Frame{}, fmt.Errorf("%w: missing type", ErrDecode)
	}
	f := Frame{Type: w.Type, ProductID: w.ProductID, Message: w.Message, Reason: w.Reason}

	switch w.Type {
	case TypeSnapshot:
		if w.ProductID == "" {
			return Frame{}, fmt.Errorf("%w: snapshot without product_id", ErrDecode)
		}
		f.Book = &orderbook.Snapshot{
			ProductID: w.ProductID,
			Bids:      toLevels(w.Bids),
			Asks:      toLevels(w.Asks),
		}
	case TypeL2Update:
		if w.ProductID == "" {
			return Frame{}, fmt.Errorf("%w: l2update without product_id", ErrDecode)
		}
		changes := make([]orderbook.Change, len(w.Changes))
		for i, c := range w.Changes {
			changes[i] = orderbook.Change(c)
		}
		f.Book = &orderbook.Update{ProductID: w.ProductID, Changes: changes}
	}
	return f, nil
}

func toLevels(in []wireLevel) []orderbook.Level {
	out := make([]orderbook.Level, len(in))
	for i, l := range in {
		out[i] = orderbook.Level(l)
	}
	return out
}
