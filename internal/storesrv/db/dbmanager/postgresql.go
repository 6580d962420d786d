// Package dbmanager manages the PostgreSQL connection pool behind the catalog.
package dbmanager

import (
	"context"
	"database/sql"
	"sync/atomic"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/rs/zerolog/log"
)

const (
	lockTimeout      = "5s"
	statementTimeout = "10s"
)

type Pool interface {
	// Conn checks out a connection with the session timeouts applied.
	Conn(ctx context.Context) (Conn, error)
	Ping(ctx context.Context) error
	// Stats returns the number of connection requests and returns.
	Stats() (requests, returns uint64)
	Close()
}

type Conn interface {
	// Conn returns the underlying connection.
	Conn() *sql.Conn
	// Close returns the connection back to the pool.
	Close()
}

type postgresConn struct {
	conn   *sql.Conn
	cancel context.CancelFunc
	pool   *postgresPool
}

type postgresPool struct {
	connRequests atomic.Uint64
	connReturns  atomic.Uint64
	db           *sql.DB
}

// NewPostgresqlDb opens a pool over the pgx driver and verifies the server is reachable.
func NewPostgresqlDb(ctx context.Context, dsn string) (Pool, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to open db")
		return nil, err
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to ping db")
		sqlDB.Close()
		return nil, err
	}

	return &postgresPool{db: sqlDB}, nil
}

func (p *postgresPool) Conn(ctx context.Context) (Conn, error) {
	ctx, cancel := context.WithCancel(ctx)

	conn, err := p.db.Conn(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to obtain connection")
		cancel()
		return nil, err
	}

	for _, stmt := range []string{
		"SET lock_timeout = '" + lockTimeout + "'",
		"SET statement_timeout = '" + statementTimeout + "'",
	} {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("stmt", stmt).Msg("failed to set session timeout")
			conn.Close()
			cancel()
			return nil, err
		}
	}

	p.connRequests.Add(1)
	return &postgresConn{conn: conn, cancel: cancel, pool: p}, nil
}

func (p *postgresPool) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *postgresPool) Stats() (requests, returns uint64) {
	return p.connRequests.Load(), p.connReturns.Load()
}

func (p *postgresPool) Close() {
	p.db.Close()
}

func (h *postgresConn) Conn() *sql.Conn {
	return h.conn
}

func (h *postgresConn) Close() {
	if h.conn != nil {
		h.conn.Close()
	}
	if h.cancel != nil {
		h.cancel()
	}
	h.pool.connReturns.Add(1)
}
