// Command seed populates the order engine with a demo catalog. Products and
// currency rates have no write endpoints and go in with direct SQL; promo
// codes are created through the running engine's HTTP API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/utafrali/orderengine/internal/config"
	"github.com/utafrali/orderengine/internal/domain"
	redisrepo "github.com/utafrali/orderengine/internal/repository/redis"
	"github.com/utafrali/orderengine/migrations"
	pkgconfig "github.com/utafrali/orderengine/pkg/config"
	"github.com/utafrali/orderengine/pkg/database"
	"github.com/utafrali/orderengine/pkg/httpclient"
	"github.com/utafrali/orderengine/pkg/logger"
	"github.com/utafrali/orderengine/pkg/slug"
)

type seedConfig struct {
	EngineURL string `env:"ENGINE_URL" envDefault:"http://localhost:8004"`
	Stock     int    `env:"SEED_STOCK" envDefault:"50"`
}

type productDef struct {
	name  string
	cents int64
}

var products = []productDef{
	{"Wireless Bluetooth Headphones", 7999},
	{"USB-C Hub Adapter", 3499},
	{"Mechanical Keyboard", 8999},
	{"4K Webcam", 12999},
	{"Portable SSD 1TB", 9999},
	{"Classic Cotton T-Shirt", 2499},
	{"Slim Fit Jeans", 4999},
	{"Running Shoes", 8999},
	{"Stainless Steel Cookware Set", 14999},
	{"Coffee Maker", 4999},
	{"Cast Iron Skillet", 3499},
	{"Yoga Mat Premium", 2999},
	{"Camping Tent 4-Person", 19999},
	{"Hiking Backpack 50L", 8999},
	{"The Go Programming Language", 3999},
	{"Designing Data-Intensive Apps", 4499},
}

var rates = []domain.CurrencyRate{
	{Code: "USD", Symbol: "$", Rate: decimal.NewFromInt(1), IsActive: true},
	{Code: "EUR", Symbol: "€", Rate: decimal.RequireFromString("0.92"), IsActive: true},
	{Code: "GBP", Symbol: "£", Rate: decimal.RequireFromString("0.79"), IsActive: true},
	{Code: "JPY", Symbol: "¥", Rate: decimal.RequireFromString("151.40"), IsActive: false},
}

var promos = []map[string]any{
	{"code": "WELCOME10", "kind": "percentage", "value": "10"},
	{"code": "TECH20", "kind": "fixed", "value": "20", "min_order": "100"},
	{"code": "SHIPFREE", "kind": "free_shipping", "min_order": "50"},
	{"code": "LAUNCH25", "kind": "percentage", "value": "25", "usage_cap": 100},
}

func main() {
	log := logger.New("order-engine-seed", "info")
	if err := run(log); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("seed complete")
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	var seed seedConfig
	if err := pkgconfig.Load(&seed); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if err := seedRates(ctx, pool, log); err != nil {
		return err
	}
	invalidateRateCache(ctx, cfg, log)
	if err := seedProducts(ctx, pool, cfg.BaseCurrency, seed.Stock, log); err != nil {
		return err
	}

	client := httpclient.New(httpclient.DefaultConfig())
	seedPromos(ctx, client, seed.EngineURL, log)
	return nil
}

func seedRates(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	for _, r := range rates {
		_, err := pool.Exec(ctx,
			`INSERT INTO currency_rates (code, symbol, rate, is_active)
			 VALUES ($1, $2, $3::numeric, $4)
			 ON CONFLICT (code) DO UPDATE
			 SET symbol = EXCLUDED.symbol, rate = EXCLUDED.rate, is_active = EXCLUDED.is_active, updated_at = NOW()`,
			r.Code, r.Symbol, r.Rate.String(), r.IsActive,
		)
		if err != nil {
			return fmt.Errorf("seed rate %s: %w", r.Code, err)
		}
	}
	log.Info("currency rates seeded", slog.Int("count", len(rates)))
	return nil
}

// invalidateRateCache drops the engine's cached rate snapshot so the seeded
// rates are visible before the TTL runs out. Redis is optional.
func invalidateRateCache(ctx context.Context, cfg *config.Config, log *slog.Logger) {
	redisCfg := cfg.Redis()
	client, err := database.NewRedisClient(ctx, redisCfg, nil)
	if err != nil {
		log.Warn("rate cache not invalidated", slog.String("addr", redisCfg.Addr()), slog.String("error", err.Error()))
		return
	}
	defer client.Close()

	if err := redisrepo.NewRateCache(client, cfg.RateCacheTTL()).Invalidate(ctx); err != nil {
		log.Warn("rate cache not invalidated", slog.String("error", err.Error()))
		return
	}
	log.Info("rate cache invalidated")
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, currency string, stock int, log *slog.Logger) error {
	seen := make(map[string]bool, len(products))
	for _, p := range products {
		id := slug.Unique(p.name, func(s string) bool { return seen[s] })
		seen[id] = true

		_, err := pool.Exec(ctx,
			`INSERT INTO products (id, name, price_cents, currency, stock, is_active)
			 VALUES ($1, $2, $3, $4, $5, TRUE)
			 ON CONFLICT (id) DO UPDATE
			 SET name = EXCLUDED.name, price_cents = EXCLUDED.price_cents, stock = EXCLUDED.stock, updated_at = NOW()`,
			id, p.name, p.cents, currency, stock,
		)
		if err != nil {
			return fmt.Errorf("seed product %q: %w", p.name, err)
		}
		log.Debug("product seeded", slog.String("id", id), slog.String("price", domain.FormatMoney(domain.FromMinorUnits(p.cents))))
	}
	log.Info("products seeded", slog.Int("count", len(products)), slog.Int("stock_each", stock))
	return nil
}

// seedPromos creates the demo codes. Existing codes and an unreachable engine
// are logged and skipped.
func seedPromos(ctx context.Context, client *httpclient.Client, engineURL string, log *slog.Logger) {
	created := 0
	for _, promo := range promos {
		status, err := postJSON(ctx, client, engineURL+"/api/v1/promos", promo)
		switch {
		case err != nil:
			log.Warn("promo code not seeded", slog.Any("code", promo["code"]), slog.String("error", err.Error()))
		case status == http.StatusConflict:
			log.Info("promo code already exists", slog.Any("code", promo["code"]))
		default:
			created++
		}
	}
	log.Info("promo codes seeded", slog.Int("created", created), slog.Int("total", len(promos)))
}

func postJSON(ctx context.Context, client *httpclient.Client, url string, body any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal body: %w", err)
	}

	resp, err := client.Post(ctx, url, "application/json", bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusConflict {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return resp.StatusCode, nil
}
