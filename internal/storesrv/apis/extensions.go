package apis

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/vicinaehq/backend/internal/common/httpx"
	"github.com/vicinaehq/backend/internal/common/middleware"
	"github.com/vicinaehq/backend/internal/storesrv/contentstore"
	"github.com/vicinaehq/backend/internal/storesrv/db/dberror"
	"github.com/vicinaehq/backend/internal/storesrv/db/models"
	"github.com/vicinaehq/backend/internal/storesrv/downloads"
	"github.com/vicinaehq/backend/pkg/api"
)

// pageParams reads page and limit from the query. Unparsable values fall back to the
// defaults and out of range values are clamped.
func (s *Service) pageParams(r *http.Request) (page, limit int) {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err = strconv.Atoi(q.Get("limit"))
	if err != nil {
		limit = s.cfg.DefaultPageSize
	}
	limit = min(max(limit, 1), s.cfg.MaxPageSize)
	return page, limit
}

func (s *Service) listExtensions(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	page, limit := s.pageParams(r)
	filter := models.ExtensionFilter{
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		Offset:   (page - 1) * limit,
		Limit:    limit,
	}
	exts, total, err := s.catalog.ListExtensions(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &api.ListResponse{
			Extensions: s.extensionViews(ctx, exts),
			Pagination: api.NewPagination(page, limit, total),
		},
	}, nil
}

func (s *Service) searchExtensions(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		return nil, ErrMissingQuery
	}
	page, limit := s.pageParams(r)
	exts, total, err := s.catalog.ListExtensions(ctx, models.ExtensionFilter{
		Query:  query,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &api.SearchResponse{
			Extensions: s.extensionViews(ctx, exts),
			Pagination: api.NewPagination(page, limit, total),
			Query:      query,
		},
	}, nil
}

func (s *Service) listCategories(r *http.Request) (*httpx.Response, error) {
	categories, err := s.catalog.ListCategories(r.Context())
	if err != nil {
		return nil, err
	}
	rsp := make([]api.CategoryView, 0, len(categories))
	for _, c := range categories {
		rsp = append(rsp, api.CategoryView{ID: c.ID, Name: c.Name, Extensions: c.Extensions})
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}

// lookupExtension loads the extension named by the route. Kill listed extensions are only
// visible when includeKillListed is set.
func (s *Service) lookupExtension(r *http.Request, includeKillListed bool) (*models.Extension, error) {
	author := strings.ToLower(chi.URLParam(r, "author"))
	name := chi.URLParam(r, "name")
	ext, err := s.catalog.GetExtension(r.Context(), author, name)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, ErrExtensionNotFound
		}
		return nil, err
	}
	if ext.IsKillListed() && !includeKillListed {
		return nil, ErrExtensionNotFound
	}
	return ext, nil
}

func (s *Service) getExtension(r *http.Request) (*httpx.Response, error) {
	ext, err := s.lookupExtension(r, false)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   s.extensionView(r.Context(), ext),
	}, nil
}

// downloadExtension serves the latest archive. The download is counted once per client
// after the archive has been read.
func (s *Service) downloadExtension(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	ext, err := s.lookupExtension(r, false)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Get(ctx, ext.StorageKey)
	if err != nil {
		if errors.Is(err, contentstore.ErrObjectNotFound) {
			log.Ctx(ctx).Error().Str("key", ext.StorageKey).Msg("catalog entry without archive")
			return nil, ErrExtensionNotFound
		}
		return nil, err
	}

	clientID := middleware.ClientIPFromContext(ctx)
	key := downloads.Key(chi.URLParam(r, "author"), ext.Name)
	if s.counter != nil {
		// a failed increment is logged by the counter; the archive is served regardless
		_, _ = s.counter.Record(ctx, ext, key, clientID)
	}

	headers := http.Header{}
	headers.Set("Content-Disposition", `attachment; filename="`+ext.Name+`-latest.zip"`)
	return &httpx.Response{
		StatusCode:  http.StatusOK,
		ContentType: "application/zip",
		Body:        data,
		Headers:     headers,
	}, nil
}

// getReadme renders the stored README as HTML.
func (s *Service) getReadme(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	ext, err := s.lookupExtension(r, false)
	if err != nil {
		return nil, err
	}
	if ext.ReadmeKey == nil {
		return nil, ErrFileNotFound.Msg("extension has no readme")
	}
	source, err := s.store.Get(ctx, *ext.ReadmeKey)
	if err != nil {
		if errors.Is(err, contentstore.ErrObjectNotFound) {
			return nil, ErrFileNotFound.Msg("extension has no readme")
		}
		return nil, err
	}
	var buf bytes.Buffer
	if err := s.markdown.Convert(source, &buf); err != nil {
		return nil, ErrAPI.MsgErr("unable to render readme", err).SetStatusCode(http.StatusInternalServerError)
	}
	return &httpx.Response{
		StatusCode:  http.StatusOK,
		ContentType: "text/html; charset=utf-8",
		Body:        buf.Bytes(),
	}, nil
}
