package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"coinquote/db"
)

// ProductsClient fetches pair metadata from the exchange REST API.
type ProductsClient struct {
	apiURL     string
	httpClient *http.Client
}

var _ db.Repo = (*ProductsClient)(nil)

func NewProductsClient(apiURL string, timeout time.Duration) *ProductsClient {
	return &ProductsClient{
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *ProductsClient) GetProducts(ctx context.Context) (db.Products, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/products", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "coinquote/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET /products: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: GET /products: status %d: %s", ErrTransport, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var list []db.Product
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("%w: products: %v", ErrDecode, err)
	}
	products := make(db.Products, len(list))
	for _, p := range list {
		if p.ID == "" {
			continue
		}
		products[p.ID] = p
	}
	return products, nil
}
