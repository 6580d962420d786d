package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/vicinaehq/backend/internal/common/apperrors"
	"github.com/vicinaehq/backend/internal/common/uuid"
	"github.com/vicinaehq/backend/internal/storesrv/db/dberror"
	"github.com/vicinaehq/backend/internal/storesrv/db/models"
)

const userColumns = `id, github_handle, name, created_at, updated_at`

// UpsertUser inserts the author or refreshes the cached display name of an existing one.
func (c *Catalog) UpsertUser(ctx context.Context, handle, name string) (*models.User, apperrors.Error) {
	handle = strings.ToLower(handle)
	if handle == "" {
		return nil, dberror.ErrInvalidInput.Msg("empty github handle")
	}
	query := `
		INSERT INTO users (id, github_handle, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (github_handle) DO UPDATE SET name = EXCLUDED.name, updated_at = now()
		RETURNING ` + userColumns

	var u models.User
	err := c.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		row := conn.QueryRowContext(ctx, query, uuid.New(), handle, name)
		if err := row.Scan(&u.ID, &u.GitHubHandle, &u.Name, &u.CreatedAt, &u.UpdatedAt); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("handle", handle).Msg("failed to upsert user")
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Catalog) GetUserByHandle(ctx context.Context, handle string) (*models.User, apperrors.Error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE github_handle = $1`

	var u models.User
	err := c.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		row := conn.QueryRowContext(ctx, query, strings.ToLower(handle))
		if err := row.Scan(&u.ID, &u.GitHubHandle, &u.Name, &u.CreatedAt, &u.UpdatedAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return dberror.ErrNotFound.Msg("user not found")
			}
			log.Ctx(ctx).Error().Err(err).Str("handle", handle).Msg("failed to get user")
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}
