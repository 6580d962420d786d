package postgresql

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/vicinaehq/backend/internal/common/apperrors"
	"github.com/vicinaehq/backend/internal/storesrv/db/dberror"
	"github.com/vicinaehq/backend/internal/storesrv/db/models"
)

func (c *Catalog) UpsertCategory(ctx context.Context, id, name string) (*models.Category, apperrors.Error) {
	if id == "" {
		return nil, dberror.ErrInvalidInput.Msg("empty category id")
	}
	// the no-op update makes RETURNING yield the existing row
	query := `
		INSERT INTO categories (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING id, name`

	var cat models.Category
	err := c.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		if err := conn.QueryRowContext(ctx, query, id, name).Scan(&cat.ID, &cat.Name); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("category", id).Msg("failed to upsert category")
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Catalog) ListCategories(ctx context.Context) ([]models.CategoryCount, apperrors.Error) {
	query := `
		SELECT c.id, c.name, COUNT(e.id)
		FROM categories c
		LEFT JOIN extension_categories ec ON ec.category_id = c.id
		LEFT JOIN extensions e ON e.id = ec.extension_id AND e.kill_listed_at IS NULL
		GROUP BY c.id, c.name
		ORDER BY c.name`

	var out []models.CategoryCount
	err := c.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to list categories")
			return dberror.ErrDatabase.Err(err)
		}
		defer rows.Close()
		for rows.Next() {
			var cc models.CategoryCount
			if err := rows.Scan(&cc.ID, &cc.Name, &cc.Extensions); err != nil {
				return dberror.ErrDatabase.Err(err)
			}
			out = append(out, cc)
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

func (c *Catalog) EnsurePlatforms(ctx context.Context, ids []string) apperrors.Error {
	if len(ids) == 0 {
		return nil
	}
	return c.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO platforms (id) SELECT unnest($1::text[]) ON CONFLICT DO NOTHING`, pq.Array(ids))
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Strs("platforms", ids).Msg("failed to ensure platforms")
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
}
