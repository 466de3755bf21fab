package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"coinquote/orderbook"
)

type bookResponse struct {
	Product  string            `json:"product"`
	BidDepth int               `json:"bid_depth"`
	AskDepth int               `json:"ask_depth"`
	Bids     []orderbook.Level `json:"bids"`
	Asks     []orderbook.Level `json:"asks"`
}

// book serves GET /books/{product}?depth=N, best levels first on both sides.
func (s *Server) book(w http.ResponseWriter, r *http.Request) {
	product := strings.ToUpper(chi.URLParam(r, "product"))

	depth := s.depth
	if raw := r.URL.Query().Get("depth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.sendError(w, http.StatusBadRequest, "invalid_request", "depth must be a positive integer")
			return
		}
		depth = n
	}

	book, ok := s.books.Get(product)
	if !ok {
		s.sendError(w, http.StatusNotFound, "no_data", "No data available yet for "+product)
		return
	}
	bidDepth, askDepth := book.Depth()
	s.sendJSON(w, http.StatusOK, bookResponse{
		Product:  product,
		BidDepth: bidDepth,
		AskDepth: askDepth,
		Bids:     book.Levels(orderbook.Bid, depth),
		Asks:     book.Levels(orderbook.Ask, depth),
	})
}
