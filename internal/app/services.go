package app

import (
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory/valuation"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/reportcache"
	"github.com/odyssey-erp/odyssey-ledger/internal/stockledger"
)

// DocumentStore serves both journal generation and period aggregation.
type DocumentStore interface {
	documents.Reader
	documents.PeriodReader
}

// Stores groups the persistence ports the services read from.
type Stores struct {
	Ledger    stockledger.Store
	Catalog   masterdata.Catalog
	Documents DocumentStore
	// Remote is the optional shared report cache tier.
	Remote reportcache.Remote
}

// PostgresStores builds Stores over pool. The Redis report tier is attached
// only when REPORT_CACHE_REDIS is set and redisClient is non-nil.
func PostgresStores(cfg *Config, pool *pgxpool.Pool, redisClient *redis.Client) Stores {
	stores := Stores{
		Ledger:    stockledger.NewRepository(pool),
		Catalog:   masterdata.NewRepository(pool),
		Documents: documents.NewRepository(pool),
	}
	if cfg.ReportCacheRedis && redisClient != nil {
		stores.Remote = reportcache.NewRedisStore(redisClient)
	}
	return stores
}

// Services is the ledger service graph shared by the API and the worker.
type Services struct {
	Stock      *inventory.Service
	Valuation  *valuation.Service
	Journals   *accounting.Service
	ProfitLoss *reports.Aggregator
}

// NewServices wires the services over stores. Collectors go to reg.
func NewServices(cfg *Config, stores Stores, reg prometheus.Registerer, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cacheMetrics, err := reportcache.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("app: report cache metrics: %w", err)
	}

	stock := inventory.NewService(stores.Ledger, stores.Catalog, logger)
	plCache := reportcache.New[reports.ProfitLoss](reportcache.Options{
		TTL:       cfg.ReportCacheTTL,
		Retention: cfg.ReportCacheRetention,
		Remote:    stores.Remote,
		Metrics:   cacheMetrics,
		Logger:    logger,
	})

	return &Services{
		Stock:     stock,
		Valuation: valuation.NewService(stores.Ledger, stores.Catalog, cfg.GLConcurrency, logger),
		Journals:  accounting.NewService(stores.Documents, cfg.GLConcurrency, logger, accounting.NewMetrics(reg)),
		ProfitLoss: reports.NewAggregator(stock, stores.Documents, plCache, reports.Config{
			Location:            cfg.Location(),
			Timeout:             cfg.ReportTimeout,
			VarianceWarnPercent: cfg.VarianceWarnPercent(),
		}, logger),
	}, nil
}
