package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type fakeRedis struct {
	data    map[string]string
	getErr  error
	setTTLs []time.Duration
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	f.setTTLs = append(f.setTTLs, expiration)
	return redis.NewStatusResult("OK", nil)
}

type countingRepo struct {
	calls    int
	products Products
	err      error
}

func (r *countingRepo) GetProducts(ctx context.Context) (Products, error) {
	r.calls++
	return r.products, r.err
}

func sampleProducts() Products {
	return Products{
		"BTC-USD": {
			ID:             "BTC-USD",
			BaseCurrency:   "BTC",
			QuoteCurrency:  "USD",
			BaseMinSize:    decimal.RequireFromString("0.001"),
			BaseMaxSize:    decimal.RequireFromString("10000.00"),
			QuoteIncrement: decimal.RequireFromString("0.01"),
		},
	}
}

func TestRedisCacheReadThrough(t *testing.T) {
	fake := &fakeRedis{data: map[string]string{}}
	upstream := &countingRepo{products: sampleProducts()}
	cache := newRedisCache(fake, time.Minute, upstream, zerolog.Nop())

	for i := 0; i < 3; i++ {
		products, err := cache.GetProducts(context.Background())
		if err != nil {
			t.Fatalf("GetProducts: %v", err)
		}
		p := products["BTC-USD"]
		if !p.BaseMinSize.Equal(decimal.RequireFromString("0.001")) || !p.QuoteIncrement.Equal(decimal.RequireFromString("0.01")) {
			t.Fatalf("decimal fields lost precision: %+v", p)
		}
	}
	if upstream.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", upstream.calls)
	}
	if len(fake.setTTLs) != 1 || fake.setTTLs[0] != time.Minute {
		t.Fatalf("expected one SET with ttl, got %v", fake.setTTLs)
	}
}

func TestRedisCacheFallsThroughOnError(t *testing.T) {
	fake := &fakeRedis{data: map[string]string{}, getErr: errors.New("connection refused")}
	upstream := &countingRepo{products: sampleProducts()}
	cache := newRedisCache(fake, time.Minute, upstream, zerolog.Nop())

	products, err := cache.GetProducts(context.Background())
	if err != nil {
		t.Fatalf("GetProducts: %v", err)
	}
	if len(products) != 1 || upstream.calls != 1 {
		t.Fatalf("expected upstream products, got %v after %d calls", products, upstream.calls)
	}
}

func TestRedisCacheUpstreamError(t *testing.T) {
	fake := &fakeRedis{data: map[string]string{}}
	boom := errors.New("boom")
	cache := newRedisCache(fake, time.Minute, &countingRepo{err: boom}, zerolog.Nop())

	if _, err := cache.GetProducts(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if len(fake.data) != 0 {
		t.Fatal("nothing should be cached on failure")
	}
}

func TestProductsIDsSorted(t *testing.T) {
	p := Products{"ETH-USD": {}, "BTC-USD": {}, "BTC-EUR": {}}
	ids := p.IDs()
	if len(ids) != 3 || ids[0] != "BTC-EUR" || ids[2] != "ETH-USD" {
		t.Fatalf("unexpected order %v", ids)
	}
}
