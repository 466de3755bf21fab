package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"coinquote/knapsack"
	"coinquote/quote"
)

const maxBodyBytes = 1 << 16

const quoteRequestSchema = `{
  "type": "object",
  "required": ["base_currency", "quote_currency", "action", "amount"],
  "properties": {
    "base_currency":  {"type": "string", "minLength": 1, "maxLength": 16},
    "quote_currency": {"type": "string", "minLength": 1, "maxLength": 16},
    "action":         {"type": "string", "minLength": 1},
    "amount": {
      "anyOf": [
        {"type": "string", "pattern": "^\\s*-?([0-9]+\\.?[0-9]*|\\.[0-9]+)([eE][+-]?[0-9]+)?\\s*$"},
        {"type": "number"}
      ]
    }
  }
}`

type schemaValidator struct {
	schema *jsonschema.Schema
}

func newSchemaValidator(schema string) (*schemaValidator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource("quote.json", strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	compiled, err := compiler.Compile("quote.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &schemaValidator{schema: compiled}, nil
}

// decode parses and validates a request body, returning the document as
// generic JSON values with numbers kept as json.Number.
func (v *schemaValidator) decode(w http.ResponseWriter, r *http.Request) (map[string]interface{}, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("body is not valid JSON: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return nil, fmt.Errorf("validation failed: %s", ve.Error())
		}
		return nil, err
	}
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil, errors.New("body must be an object")
	}
	return obj, nil
}

func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	body, err := s.validator.decode(w, r)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	field := func(name string) string {
		return strings.ToUpper(strings.TrimSpace(fmt.Sprint(body[name])))
	}
	amount, err := decimal.NewFromString(field("amount"))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid_request", "amount is not a decimal number")
		return
	}
	req := quote.Request{
		Base:   field("base_currency"),
		Quote:  field("quote_currency"),
		Action: field("action"),
		Amount: amount,
	}

	res, err := s.quoter.Quote(r.Context(), req)
	if err != nil {
		status, code := errorStatus(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error().Err(err).Msg("quote failed")
		}
		s.sendError(w, status, code, err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, res)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, quote.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, quote.ErrUnknownProduct):
		return http.StatusBadRequest, "invalid_exchange"
	case errors.Is(err, quote.ErrUnknownAction):
		return http.StatusBadRequest, "unknown_action"
	case errors.Is(err, quote.ErrInvertedSell):
		return http.StatusBadRequest, "inverted_sell"
	case errors.Is(err, quote.ErrNoData):
		return http.StatusNotFound, "no_data"
	case errors.Is(err, knapsack.ErrCapacityOverflow):
		return http.StatusUnprocessableEntity, "capacity_overflow"
	case errors.Is(err, knapsack.ErrCanceled):
		return http.StatusServiceUnavailable, "timeout"
	case errors.Is(err, knapsack.ErrInvalidInput):
		return http.StatusUnprocessableEntity, "invalid_product"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
