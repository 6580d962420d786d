// Package postgresql implements the store catalog on PostgreSQL.
package postgresql

import (
	"context"
	"database/sql"
	_ "embed"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vicinaehq/backend/internal/common/apperrors"
	"github.com/vicinaehq/backend/internal/storesrv/db/dberror"
	"github.com/vicinaehq/backend/internal/storesrv/db/dbmanager"
)

//go:embed schema.sql
var schema string

type Catalog struct {
	pool dbmanager.Pool
	now  func() time.Time
}

func NewCatalog(pool dbmanager.Pool) *Catalog {
	return &Catalog{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (c *Catalog) Migrate(ctx context.Context) apperrors.Error {
	return c.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		if _, err := conn.ExecContext(ctx, schema); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to apply catalog schema")
			return dberror.ErrDatabase.MsgErr("failed to apply catalog schema", err)
		}
		return nil
	})
}

func (c *Catalog) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *Catalog) Close() {
	c.pool.Close()
}

func (c *Catalog) withConn(ctx context.Context, fn func(conn *sql.Conn) apperrors.Error) apperrors.Error {
	h, err := c.pool.Conn(ctx)
	if err != nil {
		return dberror.ErrDatabase.MsgErr("unable to get db connection", err)
	}
	defer h.Close()
	return fn(h.Conn())
}

func (c *Catalog) withTx(ctx context.Context, fn func(tx *sql.Tx) apperrors.Error) apperrors.Error {
	return c.withConn(ctx, func(conn *sql.Conn) (err apperrors.Error) {
		tx, errdb := conn.BeginTx(ctx, &sql.TxOptions{})
		if errdb != nil {
			log.Ctx(ctx).Error().Err(errdb).Msg("failed to start transaction")
			return dberror.ErrDatabase.Err(errdb)
		}
		defer func() {
			// Ensure transaction is rolled back if not committed
			if err != nil {
				tx.Rollback()
			}
		}()

		if err = fn(tx); err != nil {
			return err
		}
		if errdb = tx.Commit(); errdb != nil {
			log.Ctx(ctx).Error().Err(errdb).Msg("failed to commit transaction")
			return dberror.ErrDatabase.Err(errdb)
		}
		return nil
	})
}
