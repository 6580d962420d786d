// Package publish turns an uploaded archive into a stored artifact and a catalog entry.
package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vicinaehq/backend/internal/common/apperrors"
	"github.com/vicinaehq/backend/internal/storesrv/archive"
	"github.com/vicinaehq/backend/internal/storesrv/catcommon"
	"github.com/vicinaehq/backend/internal/storesrv/config"
	"github.com/vicinaehq/backend/internal/storesrv/contentstore"
	"github.com/vicinaehq/backend/internal/storesrv/db/models"
	"github.com/vicinaehq/backend/internal/storesrv/github"
	"github.com/vicinaehq/backend/internal/storesrv/manifest"
	"github.com/vicinaehq/backend/internal/storesrv/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/vicinaehq/backend/internal/storesrv/publish"

// Catalog is the part of the store catalog publishing writes to.
type Catalog interface {
	UpsertUser(ctx context.Context, handle, name string) (*models.User, apperrors.Error)
	UpsertCategory(ctx context.Context, id, name string) (*models.Category, apperrors.Error)
	EnsurePlatforms(ctx context.Context, ids []string) apperrors.Error
	PublishExtension(ctx context.Context, authorID uuid.UUID, name string, content models.ExtensionContent) (*models.Extension, apperrors.Error)
}

// ProfileLookup resolves the display name of an author. It must not fail.
type ProfileLookup interface {
	DisplayName(ctx context.Context, handle string) string
}

type Upload struct {
	Filename    string
	ContentType string
	// Author, when set, must match the manifest author.
	Author string
	Data   []byte
}

type Author struct {
	Handle     string
	Name       string
	AvatarURL  string
	ProfileURL string
}

type Result struct {
	ID          uuid.UUID
	Key         string // author/name
	Name        string
	Title       string
	Author      Author
	Checksum    string
	DownloadURL string
	IsNew       bool
	Extension   *models.Extension
}

type Publisher struct {
	store         contentstore.Store
	catalog       Catalog
	profiles      ProfileLookup
	validator     *manifest.Validator
	metrics       *metrics.Metrics
	maxUploadSize int64
	tracer        trace.Tracer
}

type Option func(*Publisher)

func WithMaxUploadSize(n int64) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.maxUploadSize = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func WithValidator(v *manifest.Validator) Option {
	return func(p *Publisher) {
		p.validator = v
	}
}

func New(store contentstore.Store, catalog Catalog, profiles ProfileLookup, opts ...Option) *Publisher {
	p := &Publisher{
		store:         store,
		catalog:       catalog,
		profiles:      profiles,
		maxUploadSize: config.DefaultMaxUploadSize,
		tracer:        otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.validator == nil {
		p.validator = manifest.MustNewValidator()
	}
	return p
}

func (p *Publisher) MaxUploadSize() int64 {
	return p.maxUploadSize
}

// Publish validates the upload, writes the archive and its assets to the content store and
// records the extension in the catalog. Validation failures leave no trace anywhere. A failure
// after the first write can leave orphaned objects behind, which the next publish overwrites.
func (p *Publisher) Publish(ctx context.Context, up Upload) (result *Result, err error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "publish",
		trace.WithAttributes(attribute.Int("publish.size", len(up.Data))))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		p.metrics.ObservePublish(time.Since(start), err)
	}()

	if int64(len(up.Data)) > p.maxUploadSize {
		return nil, ErrPayloadTooLarge
	}
	if len(up.Data) == 0 {
		return nil, ErrEmptyUpload
	}
	if !isZipUpload(up) {
		return nil, ErrUnsupportedMediaType
	}

	decomposed, err := archive.NewDecomposer(p.validator, p.maxUploadSize).Decompose(up.Data)
	if err != nil {
		return nil, err
	}
	m := decomposed.Manifest

	sum := sha256.Sum256(up.Data)
	checksum := hex.EncodeToString(sum[:])

	author := strings.ToLower(m.Author)
	if up.Author != "" && !strings.EqualFold(up.Author, m.Author) {
		return nil, ErrAuthorMismatch.Msg("uploader " + up.Author + " cannot publish extensions of " + m.Author)
	}
	span.SetAttributes(attribute.String("extension.author", author), attribute.String("extension.name", m.Name))
	logger := log.Ctx(ctx).With().Str("author", author).Str("extension", m.Name).Logger()

	archiveKey := contentstore.ArchiveKey(author, m.Name)
	if err := p.store.Put(ctx, archiveKey, up.Data, contentstore.WithContentType("application/zip")); err != nil {
		logger.Error().Err(err).Str("key", archiveKey).Msg("failed to store archive")
		return nil, ErrStorageWriteFailed.Err(err)
	}
	for _, asset := range decomposed.Assets {
		key := contentstore.AssetKey(author, m.Name, asset.RelPath)
		if err := p.store.Put(ctx, key, asset.Data, contentstore.WithContentType(asset.ContentType)); err != nil {
			logger.Error().Err(err).Str("key", key).Msg("failed to store asset")
			return nil, ErrStorageWriteFailed.Err(err)
		}
	}

	displayName := m.Author
	if p.profiles != nil {
		displayName = p.profiles.DisplayName(ctx, m.Author)
	}
	user, err := p.catalog.UpsertUser(ctx, author, displayName)
	if err != nil {
		return nil, err
	}

	categoryIDs, err := p.upsertCategories(ctx, m.Categories)
	if err != nil {
		return nil, err
	}
	platforms := m.TargetPlatforms()
	if err := p.catalog.EnsurePlatforms(ctx, platforms); err != nil {
		return nil, err
	}

	content := buildContent(author, decomposed, archiveKey, checksum, categoryIDs, platforms)
	ext, err := p.catalog.PublishExtension(ctx, user.ID, m.Name, content)
	if err != nil {
		return nil, err
	}
	ext.Author = user

	downloadURL, urlErr := p.store.URL(ctx, archiveKey, 0)
	if urlErr != nil {
		logger.Warn().Err(urlErr).Msg("unable to resolve archive url")
	}

	logger.Info().Str("checksum", checksum).Bool("new", ext.IsNew()).Msg("extension published")
	return &Result{
		ID:    ext.ID,
		Key:   author + "/" + m.Name,
		Name:  m.Name,
		Title: m.Title,
		Author: Author{
			Handle:     author,
			Name:       user.Name,
			AvatarURL:  github.AvatarURL(author),
			ProfileURL: github.ProfileURL(author),
		},
		Checksum:    checksum,
		DownloadURL: downloadURL,
		IsNew:       ext.IsNew(),
		Extension:   ext,
	}, nil
}

// upsertCategories creates missing categories and returns their slugs in manifest order, without duplicates.
func (p *Publisher) upsertCategories(ctx context.Context, names []string) ([]string, error) {
	ids := make([]string, 0, len(names))
	seen := map[string]bool{}
	for _, name := range names {
		id := catcommon.Slugify(name)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, err := p.catalog.UpsertCategory(ctx, id, strings.TrimSpace(name)); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func buildContent(author string, d *archive.Decomposed, archiveKey, checksum string, categoryIDs, platforms []string) models.ExtensionContent {
	m := d.Manifest
	key := func(rel *string) *string {
		if rel == nil {
			return nil
		}
		k := contentstore.AssetKey(author, m.Name, *rel)
		return &k
	}

	content := models.ExtensionContent{
		Title:       m.Title,
		Description: m.Description,
		APIVersion:  m.APIVersion(),
		StorageKey:  archiveKey,
		Checksum:    checksum,
		IconLight:   key(d.ExtensionIcons.Light),
		IconDark:    key(d.ExtensionIcons.Dark),
		CategoryIDs: categoryIDs,
		PlatformIDs: platforms,
		Commands:    make([]models.Command, 0, len(m.Commands)),
	}
	if d.Readme != nil {
		content.ReadmeKey = key(&d.Readme.RelPath)
	}
	for i, cmd := range m.Commands {
		content.Commands = append(content.Commands, models.Command{
			Name:              cmd.Name,
			Title:             cmd.Title,
			Subtitle:          cmd.Subtitle,
			Description:       cmd.Description,
			Keywords:          cmd.Keywords,
			Mode:              cmd.Mode,
			DisabledByDefault: cmd.DisabledByDefault,
			Beta:              cmd.Beta,
			IconLight:         key(d.CommandIcons[i].Light),
			IconDark:          key(d.CommandIcons[i].Dark),
		})
	}
	return content
}

func isZipUpload(up Upload) bool {
	if strings.HasSuffix(strings.ToLower(up.Filename), ".zip") {
		return true
	}
	if mt, _, err := mime.ParseMediaType(up.ContentType); err == nil {
		if mt == "application/zip" || mt == "application/x-zip-compressed" {
			return true
		}
	}
	return archive.IsZip(up.Data)
}
