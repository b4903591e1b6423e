// Package geodex is the embedded SDK for the geodex dataset index: product
// registration, dataset indexing and searchable-field queries over a redis,
// postgres or in-memory backend.
package geodex

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/datalode/geodex/internal/db"
	dbMemory "github.com/datalode/geodex/internal/db/memory"
	dbPostgres "github.com/datalode/geodex/internal/db/postgres"
	dbRedis "github.com/datalode/geodex/internal/db/redis"
	"github.com/datalode/geodex/internal/domain/fields"
	datasetrepo "github.com/datalode/geodex/internal/repository/dataset"
	cataloguc "github.com/datalode/geodex/internal/usecase/catalog"
	searchuc "github.com/datalode/geodex/internal/usecase/search"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the geodex SDK entry point.
type Client struct {
	store      db.Store
	catalogSvc *cataloguc.Service
	datasets   *datasetrepo.Repo
	searchSvc  *searchuc.Service
}

// New creates a geodex Client and connects to the backend. With no driver
// option the client runs on the in-memory backend.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		driver: "memory",
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(cfg)
	}

	var catalogSvc *cataloguc.Service
	fieldLookup := func(name string) (fields.Lookup, bool) {
		p, err := catalogSvc.Get(name)
		if err != nil {
			return nil, false
		}
		return p.Fields().Lookup(), true
	}

	store, err := createStore(cfg, fieldLookup)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("geodex: database not ready: %w", err)
	}

	catalogSvc = cataloguc.New(store, cfg.logger)
	return &Client{
		store:      store,
		catalogSvc: catalogSvc,
		datasets:   datasetrepo.New(store, catalogSvc, cfg.logger, cfg.lenientDates),
		searchSvc:  searchuc.New(store, catalogSvc, cfg.logger),
	}, nil
}

func createStore(cfg *clientConfig, lookup dbMemory.FieldLookup) (db.Store, error) {
	switch cfg.driver {
	case "memory":
		return dbMemory.NewStore(lookup), nil
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Username: cfg.username,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("geodex: create redis store: %w", err)
		}
		return s, nil
	case "postgres":
		s, err := dbPostgres.NewStore(context.Background(), cfg.dsn)
		if err != nil {
			return nil, fmt.Errorf("geodex: create postgres store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("geodex: unknown driver %q", cfg.driver)
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks backend connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Products returns the product catalog service.
func (c *Client) Products() *ProductService {
	return &ProductService{svc: c.catalogSvc}
}

// Datasets returns the dataset lifecycle service.
func (c *Client) Datasets() *DatasetService {
	return &DatasetService{repo: c.datasets}
}

// Search starts a fluent query against one product.
func (c *Client) Search(product string) *SearchBuilder {
	return &SearchBuilder{svc: c.searchSvc, product: product}
}
