// Package db defines the store catalog: authors, categories, platforms, extensions and their commands.
package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vicinaehq/backend/internal/common/apperrors"
	"github.com/vicinaehq/backend/internal/storesrv/config"
	"github.com/vicinaehq/backend/internal/storesrv/db/dbmanager"
	"github.com/vicinaehq/backend/internal/storesrv/db/memstore"
	"github.com/vicinaehq/backend/internal/storesrv/db/models"
	"github.com/vicinaehq/backend/internal/storesrv/db/postgresql"
)

type UserManager interface {
	// UpsertUser creates the author on first publish and refreshes the cached display name after.
	UpsertUser(ctx context.Context, handle, name string) (*models.User, apperrors.Error)
	GetUserByHandle(ctx context.Context, handle string) (*models.User, apperrors.Error)
}

type TaxonomyManager interface {
	// UpsertCategory creates the category if missing. An existing display name is kept.
	UpsertCategory(ctx context.Context, id, name string) (*models.Category, apperrors.Error)
	// ListCategories returns every category with the number of listed extensions in it.
	ListCategories(ctx context.Context) ([]models.CategoryCount, apperrors.Error)
	EnsurePlatforms(ctx context.Context, ids []string) apperrors.Error
}

type ExtensionManager interface {
	// PublishExtension creates or republishes (authorID, name) in a single transaction, replacing
	// the command set and the category and platform links.
	PublishExtension(ctx context.Context, authorID uuid.UUID, name string, content models.ExtensionContent) (*models.Extension, apperrors.Error)
	// GetExtension loads an extension with its author, categories and commands, kill listed or not.
	GetExtension(ctx context.Context, handle, name string) (*models.Extension, apperrors.Error)
	// ListExtensions returns one page ordered by download count, and the total number of matches.
	ListExtensions(ctx context.Context, filter models.ExtensionFilter) ([]*models.Extension, int, apperrors.Error)
	IncrementDownloadCount(ctx context.Context, id uuid.UUID) apperrors.Error
	SetKillListed(ctx context.Context, id uuid.UUID, at *time.Time) apperrors.Error
}

type TrendingManager interface {
	// ListRankingInputs snapshots every extension that is not kill listed.
	ListRankingInputs(ctx context.Context) ([]models.RankingInput, apperrors.Error)
	// ApplyTrending flags exactly ids as trending and clears every other extension, atomically.
	ApplyTrending(ctx context.Context, ids []uuid.UUID) apperrors.Error
	// SetTrending overrides the flag of one extension until the next ranking run.
	SetTrending(ctx context.Context, id uuid.UUID, trending bool) apperrors.Error
}

type Catalog interface {
	UserManager
	TaxonomyManager
	ExtensionManager
	TrendingManager

	Ping(ctx context.Context) error
	Close()
}

var (
	_ Catalog = (*memstore.Store)(nil)
	_ Catalog = (*postgresql.Catalog)(nil)
)

// NewCatalog opens the catalog selected by the configured driver.
func NewCatalog(ctx context.Context, cfg config.CatalogConfig) (Catalog, error) {
	switch cfg.Driver {
	case config.CatalogDriverMemory:
		log.Ctx(ctx).Warn().Msg("using in-memory catalog, data is lost on restart")
		return memstore.New(), nil
	case config.CatalogDriverPostgres, "":
		pool, err := dbmanager.NewPostgresqlDb(ctx, cfg.ConnString())
		if err != nil {
			return nil, err
		}
		c := postgresql.NewCatalog(pool)
		if err := c.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return c, nil
	}
	return nil, apperrors.New("unsupported catalog driver: " + cfg.Driver)
}
