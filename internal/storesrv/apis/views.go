package apis

import (
	"context"
	"net/url"

	"github.com/rs/zerolog/log"
	"github.com/vicinaehq/backend/internal/storesrv/db/models"
	"github.com/vicinaehq/backend/internal/storesrv/github"
	"github.com/vicinaehq/backend/pkg/api"
)

// resolveURL turns a stored object key into a client facing URL. Failures are logged and
// the field is left empty.
func (s *Service) resolveURL(ctx context.Context, key *string) *string {
	if key == nil || *key == "" {
		return nil
	}
	u, err := s.store.URL(ctx, *key, 0)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", *key).Msg("unable to resolve object url")
		return nil
	}
	return &u
}

func (s *Service) icons(ctx context.Context, light, dark *string) api.Icons {
	return api.Icons{
		Light: s.resolveURL(ctx, light),
		Dark:  s.resolveURL(ctx, dark),
	}
}

func authorView(u *models.User) api.AuthorView {
	if u == nil {
		return api.AuthorView{}
	}
	return api.AuthorView{
		Handle:     u.GitHubHandle,
		Name:       u.Name,
		AvatarURL:  github.AvatarURL(u.GitHubHandle),
		ProfileURL: github.ProfileURL(u.GitHubHandle),
	}
}

func (s *Service) downloadURL(author, name string) string {
	return s.cfg.BaseURL + "/v1/store/" + url.PathEscape(author) + "/" + url.PathEscape(name) + "/download"
}

func (s *Service) sourceURL(author, name string) string {
	return s.cfg.SourceRepoURL + "/" + author + "/" + name
}

func (s *Service) extensionView(ctx context.Context, e *models.Extension) api.ExtensionView {
	author := authorView(e.Author)
	v := api.ExtensionView{
		ID:            e.ID.String(),
		Name:          e.Name,
		Title:         e.Title,
		Description:   e.Description,
		Author:        author,
		DownloadCount: e.DownloadCount,
		APIVersion:    e.APIVersion,
		Checksum:      e.Checksum,
		Trending:      e.Trending,
		Icons:         s.icons(ctx, e.IconLight, e.IconDark),
		Categories:    make([]api.CategoryRef, 0, len(e.Categories)),
		Platforms:     make([]string, 0, len(e.PlatformIDs)),
		Commands:      make([]api.CommandView, 0, len(e.Commands)),
		SourceURL:     s.sourceURL(author.Handle, e.Name),
		ReadmeURL:     s.resolveURL(ctx, e.ReadmeKey),
		DownloadURL:   s.downloadURL(author.Handle, e.Name),
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
	for _, c := range e.Categories {
		v.Categories = append(v.Categories, api.CategoryRef{ID: c.ID, Name: c.Name})
	}
	v.Platforms = append(v.Platforms, e.PlatformIDs...)
	for _, c := range e.Commands {
		keywords := c.Keywords
		if keywords == nil {
			keywords = []string{}
		}
		v.Commands = append(v.Commands, api.CommandView{
			ID:                c.ID.String(),
			Name:              c.Name,
			Title:             c.Title,
			Subtitle:          c.Subtitle,
			Description:       c.Description,
			Keywords:          keywords,
			Mode:              c.Mode,
			DisabledByDefault: c.DisabledByDefault,
			Beta:              c.Beta,
			Icons:             s.icons(ctx, c.IconLight, c.IconDark),
		})
	}
	return v
}

func (s *Service) extensionViews(ctx context.Context, exts []*models.Extension) []api.ExtensionView {
	out := make([]api.ExtensionView, 0, len(exts))
	for _, e := range exts {
		out = append(out, s.extensionView(ctx, e))
	}
	return out
}
