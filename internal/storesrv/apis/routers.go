// Package apis implements the /v1/store HTTP handlers and the local storage endpoint.
package apis

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vicinaehq/backend/internal/common/apperrors"
	"github.com/vicinaehq/backend/internal/common/httpx"
	"github.com/vicinaehq/backend/internal/storesrv/config"
	"github.com/vicinaehq/backend/internal/storesrv/contentstore"
	"github.com/vicinaehq/backend/internal/storesrv/db/models"
	"github.com/vicinaehq/backend/internal/storesrv/downloads"
	"github.com/vicinaehq/backend/internal/storesrv/metrics"
	"github.com/vicinaehq/backend/internal/storesrv/publish"
	"github.com/vicinaehq/backend/internal/storesrv/trending"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Catalog is the read side of the store catalog plus the admin switches the API exposes.
type Catalog interface {
	GetExtension(ctx context.Context, handle, name string) (*models.Extension, apperrors.Error)
	ListExtensions(ctx context.Context, filter models.ExtensionFilter) ([]*models.Extension, int, apperrors.Error)
	ListCategories(ctx context.Context) ([]models.CategoryCount, apperrors.Error)
	SetKillListed(ctx context.Context, id uuid.UUID, at *time.Time) apperrors.Error
	Ping(ctx context.Context) error
}

type Deps struct {
	Catalog   Catalog
	Store     contentstore.Store
	Publisher *publish.Publisher
	Counter   *downloads.Counter
	Ranker    *trending.Ranker
	Metrics   *metrics.Metrics
	Config    *config.ConfigParam
}

type Service struct {
	catalog   Catalog
	store     contentstore.Store
	publisher *publish.Publisher
	counter   *downloads.Counter
	ranker    *trending.Ranker
	metrics   *metrics.Metrics
	cfg       *config.ConfigParam
	markdown  goldmark.Markdown
	now       func() time.Time
}

func NewService(d Deps) *Service {
	cfg := d.Config
	if cfg == nil {
		cfg = config.Config()
	}
	return &Service{
		catalog:   d.Catalog,
		store:     d.Store,
		publisher: d.Publisher,
		counter:   d.Counter,
		ranker:    d.Ranker,
		metrics:   d.Metrics,
		cfg:       cfg,
		markdown:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
		now:       time.Now,
	}
}

func (s *Service) publicHandlers() []httpx.ResponseHandlerParam {
	return []httpx.ResponseHandlerParam{
		{
			Method:  http.MethodGet,
			Path:    "/list",
			Handler: s.listExtensions,
		},
		{
			Method:  http.MethodGet,
			Path:    "/search",
			Handler: s.searchExtensions,
		},
		{
			Method:  http.MethodGet,
			Path:    "/categories",
			Handler: s.listCategories,
		},
		{
			Method:  http.MethodGet,
			Path:    "/{author}/{name}",
			Handler: s.getExtension,
		},
		{
			Method:  http.MethodGet,
			Path:    "/{author}/{name}/download",
			Handler: s.downloadExtension,
		},
		{
			Method:  http.MethodGet,
			Path:    "/{author}/{name}/readme",
			Handler: s.getReadme,
		},
	}
}

func (s *Service) adminHandlers() []httpx.ResponseHandlerParam {
	return []httpx.ResponseHandlerParam{
		{
			Method:  http.MethodPost,
			Path:    "/extension/upload",
			Handler: s.uploadExtension,
		},
		{
			Method:  http.MethodPost,
			Path:    "/update-trending",
			Handler: s.updateTrending,
		},
		{
			Method:  http.MethodPut,
			Path:    "/{author}/{name}/kill-list",
			Handler: s.killList,
		},
		{
			Method:  http.MethodDelete,
			Path:    "/{author}/{name}/kill-list",
			Handler: s.restore,
		},
		{
			Method:  http.MethodPut,
			Path:    "/{author}/{name}/trending",
			Handler: s.markTrending,
		},
		{
			Method:  http.MethodDelete,
			Path:    "/{author}/{name}/trending",
			Handler: s.unmarkTrending,
		},
	}
}

// Router mounts the store routes on r, admin routes behind AdminAuth.
func (s *Service) Router(r chi.Router) {
	for _, handler := range s.publicHandlers() {
		r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
	}
	r.Group(func(r chi.Router) {
		r.Use(AdminAuth(s.cfg.APISecret, s.cfg.APISecretHash))
		for _, handler := range s.adminHandlers() {
			r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
		}
	})
}

// Ready reports whether the catalog answers.
func (s *Service) Ready(r *http.Request) (*httpx.Response, error) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.catalog.Ping(ctx); err != nil {
		return nil, ErrNotReady.Err(err)
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   map[string]string{"status": "ok"},
	}, nil
}
