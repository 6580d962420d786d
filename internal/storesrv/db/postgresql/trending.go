package postgresql

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/vicinaehq/backend/internal/common/apperrors"
	"github.com/vicinaehq/backend/internal/storesrv/db/dberror"
	"github.com/vicinaehq/backend/internal/storesrv/db/models"
)

func (c *Catalog) ListRankingInputs(ctx context.Context) ([]models.RankingInput, apperrors.Error) {
	var out []models.RankingInput
	err := c.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		rows, err := conn.QueryContext(ctx, `SELECT id, download_count, created_at FROM extensions WHERE kill_listed_at IS NULL`)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to list ranking inputs")
			return dberror.ErrDatabase.Err(err)
		}
		defer rows.Close()
		for rows.Next() {
			var in models.RankingInput
			if err := rows.Scan(&in.ID, &in.DownloadCount, &in.CreatedAt); err != nil {
				return dberror.ErrDatabase.Err(err)
			}
			out = append(out, in)
		}
		if err := rows.Err(); err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Catalog) ApplyTrending(ctx context.Context, ids []uuid.UUID) apperrors.Error {
	idStrs := make([]string, 0, len(ids))
	for _, id := range ids {
		idStrs = append(idStrs, id.String())
	}
	return c.withTx(ctx, func(tx *sql.Tx) apperrors.Error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE extensions SET trending = true WHERE id = ANY($1::uuid[]) AND NOT trending`, pq.Array(idStrs)); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to set trending extensions")
			return dberror.ErrDatabase.Err(err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE extensions SET trending = false WHERE trending AND NOT (id = ANY($1::uuid[]))`, pq.Array(idStrs)); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to clear trending extensions")
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
}

func (c *Catalog) SetTrending(ctx context.Context, id uuid.UUID, trending bool) apperrors.Error {
	return c.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		res, err := conn.ExecContext(ctx, `UPDATE extensions SET trending = $2 WHERE id = $1`, id, trending)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("extension_id", id.String()).Msg("failed to set trending flag")
			return dberror.ErrDatabase.Err(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return dberror.ErrNotFound.Msg("extension not found")
		}
		return nil
	})
}
