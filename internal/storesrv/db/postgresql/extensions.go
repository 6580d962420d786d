package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/vicinaehq/backend/internal/common/apperrors"
	"github.com/vicinaehq/backend/internal/storesrv/db/dberror"
	"github.com/vicinaehq/backend/internal/storesrv/db/models"
)

const extensionColumns = `e.id, e.author_id, e.name, e.title, e.description, e.api_version, e.storage_key,
	e.checksum, e.icon_light, e.icon_dark, e.readme_key, e.download_count, e.trending, e.kill_listed_at,
	e.created_at, e.updated_at, u.id, u.github_handle, u.name, u.created_at, u.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExtension(row rowScanner) (*models.Extension, error) {
	e := &models.Extension{Author: &models.User{}}
	err := row.Scan(&e.ID, &e.AuthorID, &e.Name, &e.Title, &e.Description, &e.APIVersion, &e.StorageKey,
		&e.Checksum, &e.IconLight, &e.IconDark, &e.ReadmeKey, &e.DownloadCount, &e.Trending, &e.KillListedAt,
		&e.CreatedAt, &e.UpdatedAt, &e.Author.ID, &e.Author.GitHubHandle, &e.Author.Name, &e.Author.CreatedAt,
		&e.Author.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// PublishExtension inserts a new extension or republishes an existing one. The extension row,
// its commands and its category and platform links change together or not at all.
func (c *Catalog) PublishExtension(ctx context.Context, authorID uuid.UUID, name string, content models.ExtensionContent) (*models.Extension, apperrors.Error) {
	now := c.now()
	candidate := models.NewExtension(authorID, name, content, now)

	// The conflict branch only touches content columns, mirroring Extension.Republish.
	upsert := `
		INSERT INTO extensions (id, author_id, name, title, description, api_version, storage_key, checksum,
			icon_light, icon_dark, readme_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT (author_id, name) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			api_version = EXCLUDED.api_version,
			storage_key = EXCLUDED.storage_key,
			checksum = EXCLUDED.checksum,
			icon_light = EXCLUDED.icon_light,
			icon_dark = EXCLUDED.icon_dark,
			readme_key = EXCLUDED.readme_key,
			updated_at = GREATEST(EXCLUDED.updated_at, extensions.created_at + interval '1 microsecond')
		RETURNING id, download_count, trending, kill_listed_at, created_at, updated_at`

	var ext *models.Extension
	err := c.withTx(ctx, func(tx *sql.Tx) apperrors.Error {
		var (
			id            uuid.UUID
			downloadCount int64
			trending      bool
			killListedAt  *time.Time
			createdAt     time.Time
			updatedAt     time.Time
		)
		row := tx.QueryRowContext(ctx, upsert, candidate.ID, authorID, name, content.Title, content.Description,
			content.APIVersion, content.StorageKey, content.Checksum, content.IconLight, content.IconDark,
			content.ReadmeKey, now)
		if err := row.Scan(&id, &downloadCount, &trending, &killListedAt, &createdAt, &updatedAt); err != nil {
			if isForeignKeyViolation(err) {
				return dberror.ErrInvalidUser
			}
			log.Ctx(ctx).Error().Err(err).Str("name", name).Msg("failed to upsert extension")
			return dberror.ErrDatabase.Err(err)
		}

		if id == candidate.ID {
			ext = candidate
		} else {
			ext = &models.Extension{
				ID:            id,
				AuthorID:      authorID,
				Name:          name,
				DownloadCount: downloadCount,
				Trending:      trending,
				KillListedAt:  killListedAt,
				CreatedAt:     createdAt,
			}
			ext.Republish(content, updatedAt)
		}
		ext.UpdatedAt = updatedAt

		return c.replaceRelations(ctx, tx, ext)
	})
	if err != nil {
		return nil, err
	}
	return ext, nil
}

func (c *Catalog) replaceRelations(ctx context.Context, tx *sql.Tx, ext *models.Extension) apperrors.Error {
	for _, stmt := range []string{
		`DELETE FROM commands WHERE extension_id = $1`,
		`DELETE FROM extension_categories WHERE extension_id = $1`,
		`DELETE FROM extension_platforms WHERE extension_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, ext.ID); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("extension_id", ext.ID.String()).Msg("failed to clear extension relations")
			return dberror.ErrDatabase.Err(err)
		}
	}

	insertCommand := `
		INSERT INTO commands (id, extension_id, position, name, title, subtitle, description, keywords, mode,
			disabled_by_default, beta, icon_light, icon_dark)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	for _, cmd := range ext.Commands {
		var keywords pgtype.JSONB
		kw := cmd.Keywords
		if kw == nil {
			kw = []string{}
		}
		if err := keywords.Set(kw); err != nil {
			return dberror.ErrInvalidInput.MsgErr("invalid command keywords", err)
		}
		_, err := tx.ExecContext(ctx, insertCommand, cmd.ID, cmd.ExtensionID, cmd.Position, cmd.Name, cmd.Title,
			cmd.Subtitle, cmd.Description, keywords, cmd.Mode, cmd.DisabledByDefault, cmd.Beta, cmd.IconLight, cmd.IconDark)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("command", cmd.Name).Msg("failed to insert command")
			return dberror.ErrDatabase.Err(err)
		}
	}

	if len(ext.CategoryIDs) > 0 {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO extension_categories (extension_id, category_id)
			SELECT $1, unnest($2::text[]) ON CONFLICT DO NOTHING`, ext.ID, pq.Array(ext.CategoryIDs))
		if err != nil {
			if isForeignKeyViolation(err) {
				return dberror.ErrInvalidInput.Msg("unknown category")
			}
			log.Ctx(ctx).Error().Err(err).Msg("failed to link categories")
			return dberror.ErrDatabase.Err(err)
		}
	}
	if len(ext.PlatformIDs) > 0 {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO extension_platforms (extension_id, platform_id)
			SELECT $1, unnest($2::text[]) ON CONFLICT DO NOTHING`, ext.ID, pq.Array(ext.PlatformIDs))
		if err != nil {
			if isForeignKeyViolation(err) {
				return dberror.ErrInvalidInput.Msg("unknown platform")
			}
			log.Ctx(ctx).Error().Err(err).Msg("failed to link platforms")
			return dberror.ErrDatabase.Err(err)
		}
	}
	return nil
}

func (c *Catalog) GetExtension(ctx context.Context, handle, name string) (*models.Extension, apperrors.Error) {
	query := `SELECT ` + extensionColumns + `
		FROM extensions e JOIN users u ON u.id = e.author_id
		WHERE u.github_handle = $1 AND e.name = $2`

	var ext *models.Extension
	err := c.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		var err error
		ext, err = scanExtension(conn.QueryRowContext(ctx, query, strings.ToLower(handle), name))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return dberror.ErrNotFound.Msg("extension not found")
			}
			log.Ctx(ctx).Error().Err(err).Str("author", handle).Str("name", name).Msg("failed to get extension")
			return dberror.ErrDatabase.Err(err)
		}
		return loadRelations(ctx, conn, []*models.Extension{ext})
	})
	if err != nil {
		return nil, err
	}
	return ext, nil
}

func (c *Catalog) ListExtensions(ctx context.Context, filter models.ExtensionFilter) ([]*models.Extension, int, apperrors.Error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if !filter.IncludeKillListed {
		conds = append(conds, "e.kill_listed_at IS NULL")
	}
	if filter.Category != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM extension_categories ec WHERE ec.extension_id = e.id AND ec.category_id = "+arg(filter.Category)+")")
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		p := arg("%" + escapeLike(q) + "%")
		conds = append(conds, "(e.name ILIKE "+p+" OR e.title ILIKE "+p+" OR e.description ILIKE "+p+")")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	from := ` FROM extensions e JOIN users u ON u.id = e.author_id` + where

	var (
		total int
		out   []*models.Extension
	)
	err := c.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		if err := conn.QueryRowContext(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to count extensions")
			return dberror.ErrDatabase.Err(err)
		}
		if total == 0 {
			return nil
		}

		limit := filter.Limit
		if limit <= 0 {
			limit = total
		}
		page := `SELECT ` + extensionColumns + from +
			` ORDER BY e.download_count DESC, e.created_at DESC, e.id LIMIT ` + arg(limit) + ` OFFSET ` + arg(filter.Offset)
		rows, err := conn.QueryContext(ctx, page, args...)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to list extensions")
			return dberror.ErrDatabase.Err(err)
		}
		defer rows.Close()
		for rows.Next() {
			ext, err := scanExtension(rows)
			if err != nil {
				return dberror.ErrDatabase.Err(err)
			}
			out = append(out, ext)
		}
		if err := rows.Err(); err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		rows.Close()
		return loadRelations(ctx, conn, out)
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// loadRelations fills categories, platforms and commands of the given extensions with one query each.
func loadRelations(ctx context.Context, conn *sql.Conn, exts []*models.Extension) apperrors.Error {
	if len(exts) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Extension, len(exts))
	ids := make([]string, 0, len(exts))
	for _, e := range exts {
		byID[e.ID] = e
		ids = append(ids, e.ID.String())
		e.Categories = []models.Category{}
		e.CategoryIDs = []string{}
		e.PlatformIDs = []string{}
		e.Commands = []models.Command{}
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT ec.extension_id, c.id, c.name FROM extension_categories ec
		JOIN categories c ON c.id = ec.category_id
		WHERE ec.extension_id = ANY($1::uuid[]) ORDER BY c.name`, pq.Array(ids))
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to load categories")
		return dberror.ErrDatabase.Err(err)
	}
	for rows.Next() {
		var extID uuid.UUID
		var cat models.Category
		if err := rows.Scan(&extID, &cat.ID, &cat.Name); err != nil {
			rows.Close()
			return dberror.ErrDatabase.Err(err)
		}
		e := byID[extID]
		e.Categories = append(e.Categories, cat)
		e.CategoryIDs = append(e.CategoryIDs, cat.ID)
	}
	rows.Close()

	rows, err = conn.QueryContext(ctx, `
		SELECT extension_id, platform_id FROM extension_platforms
		WHERE extension_id = ANY($1::uuid[]) ORDER BY platform_id`, pq.Array(ids))
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to load platforms")
		return dberror.ErrDatabase.Err(err)
	}
	for rows.Next() {
		var extID uuid.UUID
		var platform string
		if err := rows.Scan(&extID, &platform); err != nil {
			rows.Close()
			return dberror.ErrDatabase.Err(err)
		}
		byID[extID].PlatformIDs = append(byID[extID].PlatformIDs, platform)
	}
	rows.Close()

	rows, err = conn.QueryContext(ctx, `
		SELECT id, extension_id, position, name, title, subtitle, description, keywords, mode,
			disabled_by_default, beta, icon_light, icon_dark
		FROM commands WHERE extension_id = ANY($1::uuid[]) ORDER BY extension_id, position`, pq.Array(ids))
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to load commands")
		return dberror.ErrDatabase.Err(err)
	}
	defer rows.Close()
	for rows.Next() {
		var cmd models.Command
		var keywords pgtype.JSONB
		if err := rows.Scan(&cmd.ID, &cmd.ExtensionID, &cmd.Position, &cmd.Name, &cmd.Title, &cmd.Subtitle,
			&cmd.Description, &keywords, &cmd.Mode, &cmd.DisabledByDefault, &cmd.Beta, &cmd.IconLight, &cmd.IconDark); err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		if keywords.Status == pgtype.Present {
			if err := keywords.AssignTo(&cmd.Keywords); err != nil {
				return dberror.ErrDatabase.MsgErr("invalid command keywords", err)
			}
		}
		e := byID[cmd.ExtensionID]
		e.Commands = append(e.Commands, cmd)
	}
	if err := rows.Err(); err != nil {
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}

// IncrementDownloadCount adds one download in a single statement so concurrent increments never race.
func (c *Catalog) IncrementDownloadCount(ctx context.Context, id uuid.UUID) apperrors.Error {
	return c.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		res, err := conn.ExecContext(ctx, `UPDATE extensions SET download_count = download_count + 1 WHERE id = $1`, id)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("extension_id", id.String()).Msg("failed to increment download count")
			return dberror.ErrDatabase.Err(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return dberror.ErrNotFound.Msg("extension not found")
		}
		return nil
	})
}

// SetKillListed removes the extension from every listing when at is set, and restores it when nil.
// A kill listed extension also loses its trending flag.
func (c *Catalog) SetKillListed(ctx context.Context, id uuid.UUID, at *time.Time) apperrors.Error {
	return c.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		res, err := conn.ExecContext(ctx, `
			UPDATE extensions SET kill_listed_at = $2::timestamptz,
				trending = CASE WHEN $2::timestamptz IS NULL THEN trending ELSE false END
			WHERE id = $1`, id, at)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("extension_id", id.String()).Msg("failed to update kill list")
			return dberror.ErrDatabase.Err(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return dberror.ErrNotFound.Msg("extension not found")
		}
		return nil
	})
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
