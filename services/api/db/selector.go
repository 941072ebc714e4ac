package db

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const defaultPingTimeout = 5 * time.Second

// Connect creates a pgx pool and validates it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("db: empty database url")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Selector decides once whether the relational backend is usable. A missing
// URL or a failed connection both select the file backend for the rest of
// the process lifetime.
type Selector struct {
	databaseURL string
	connect     func(ctx context.Context, databaseURL string) (*pgxpool.Pool, error)
	logger      *zap.Logger

	once  sync.Once
	pool  *pgxpool.Pool
	store *Store
}

// NewSelector returns a Selector for databaseURL, which may be empty.
func NewSelector(databaseURL string, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		databaseURL: strings.TrimSpace(databaseURL),
		connect:     Connect,
		logger:      logger,
	}
}

// HasBackend reports whether the relational store is available, connecting
// on the first call only.
func (s *Selector) HasBackend(ctx context.Context) bool {
	s.once.Do(func() {
		if s.databaseURL == "" {
			s.logger.Info("no database url configured, using file backend")
			return
		}
		pool, err := s.connect(ctx, s.databaseURL)
		if err != nil {
			s.logger.Error("postgres unavailable, using file backend", zap.Error(err))
			return
		}
		s.pool = pool
		s.store = NewStore(pool, s.logger)
		s.logger.Info("postgres connection pool initialized")
	})
	return s.store != nil
}

// Store returns the relational store, or nil when HasBackend is false.
func (s *Selector) Store() *Store {
	return s.store
}

// Close releases the pool resources.
func (s *Selector) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
