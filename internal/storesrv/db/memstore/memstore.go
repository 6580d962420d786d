// Package memstore is an in-memory catalog. It backs tests and single node deployments
// configured with driver = "memory".
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vicinaehq/backend/internal/common/apperrors"
	ids "github.com/vicinaehq/backend/internal/common/uuid"
	"github.com/vicinaehq/backend/internal/storesrv/db/dberror"
	"github.com/vicinaehq/backend/internal/storesrv/db/models"
	"github.com/vicinaehq/backend/internal/storesrv/manifest"
)

type extKey struct {
	authorID uuid.UUID
	name     string
}

// Store keeps every record by value and hands out copies, so callers can never
// mutate catalog state behind the lock.
type Store struct {
	mu         sync.RWMutex
	users      map[string]*models.User // by handle
	categories map[string]models.Category
	platforms  map[string]bool
	extensions map[uuid.UUID]*models.Extension
	byKey      map[extKey]uuid.UUID
	now        func() time.Time
	last       time.Time
}

func New() *Store {
	s := &Store{
		users:      map[string]*models.User{},
		categories: map[string]models.Category{},
		platforms:  map[string]bool{},
		extensions: map[uuid.UUID]*models.Extension{},
		byKey:      map[extKey]uuid.UUID{},
		now:        time.Now,
	}
	for _, p := range manifest.Platforms {
		s.platforms[p] = true
	}
	return s
}

// SetClock replaces the time source. Used by tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// tick returns a strictly increasing timestamp so a republish always moves UpdatedAt forward.
func (s *Store) tick() time.Time {
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

func (s *Store) UpsertUser(_ context.Context, handle, name string) (*models.User, apperrors.Error) {
	handle = strings.ToLower(handle)
	if handle == "" {
		return nil, dberror.ErrInvalidInput.Msg("empty github handle")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	u, ok := s.users[handle]
	if !ok {
		u = &models.User{ID: ids.New(), GitHubHandle: handle, CreatedAt: now}
		s.users[handle] = u
	}
	u.Name = name
	u.UpdatedAt = now
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByHandle(_ context.Context, handle string) (*models.User, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(handle)]
	if !ok {
		return nil, dberror.ErrNotFound.Msg("user not found")
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UpsertCategory(_ context.Context, id, name string) (*models.Category, apperrors.Error) {
	if id == "" {
		return nil, dberror.ErrInvalidInput.Msg("empty category id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		c = models.Category{ID: id, Name: name}
		s.categories[id] = c
	}
	return &c, nil
}

func (s *Store) ListCategories(context.Context) ([]models.CategoryCount, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[string]int{}
	for _, e := range s.extensions {
		if e.IsKillListed() {
			continue
		}
		for _, id := range e.CategoryIDs {
			counts[id]++
		}
	}
	out := make([]models.CategoryCount, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, models.CategoryCount{Category: c, Extensions: counts[c.ID]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) EnsurePlatforms(_ context.Context, ids []string) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.platforms[id] = true
	}
	return nil
}

func (s *Store) PublishExtension(_ context.Context, authorID uuid.UUID, name string, content models.ExtensionContent) (*models.Extension, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var author *models.User
	for _, u := range s.users {
		if u.ID == authorID {
			author = u
			break
		}
	}
	if author == nil {
		return nil, dberror.ErrInvalidUser
	}
	for _, id := range content.CategoryIDs {
		if _, ok := s.categories[id]; !ok {
			return nil, dberror.ErrInvalidInput.Msg("unknown category")
		}
	}
	for _, id := range content.PlatformIDs {
		if !s.platforms[id] {
			return nil, dberror.ErrInvalidInput.Msg("unknown platform")
		}
	}

	content = cloneContent(content)
	now := s.tick()
	key := extKey{authorID: authorID, name: name}
	var ext *models.Extension
	if id, ok := s.byKey[key]; ok {
		ext = s.extensions[id]
		ext.Republish(content, now)
	} else {
		ext = models.NewExtension(authorID, name, content, now)
		s.extensions[ext.ID] = ext
		s.byKey[key] = ext.ID
	}
	return s.view(ext), nil
}

func (s *Store) GetExtension(_ context.Context, handle, name string) (*models.Extension, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(handle)]
	if !ok {
		return nil, dberror.ErrNotFound.Msg("extension not found")
	}
	id, ok := s.byKey[extKey{authorID: u.ID, name: name}]
	if !ok {
		return nil, dberror.ErrNotFound.Msg("extension not found")
	}
	return s.view(s.extensions[id]), nil
}

func (s *Store) ListExtensions(_ context.Context, filter models.ExtensionFilter) ([]*models.Extension, int, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(strings.TrimSpace(filter.Query))
	var matches []*models.Extension
	for _, e := range s.extensions {
		if e.IsKillListed() && !filter.IncludeKillListed {
			continue
		}
		if filter.Category != "" && !contains(e.CategoryIDs, filter.Category) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(e.Name), q) &&
			!strings.Contains(strings.ToLower(e.Title), q) &&
			!strings.Contains(strings.ToLower(e.Description), q) {
			continue
		}
		matches = append(matches, e)
	}
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.DownloadCount != b.DownloadCount {
			return a.DownloadCount > b.DownloadCount
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	total := len(matches)
	start := min(max(filter.Offset, 0), total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	out := make([]*models.Extension, 0, end-start)
	for _, e := range matches[start:end] {
		out = append(out, s.view(e))
	}
	return out, total, nil
}

func (s *Store) IncrementDownloadCount(_ context.Context, id uuid.UUID) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.extensions[id]
	if !ok {
		return dberror.ErrNotFound.Msg("extension not found")
	}
	e.DownloadCount++
	return nil
}

func (s *Store) SetKillListed(_ context.Context, id uuid.UUID, at *time.Time) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.extensions[id]
	if !ok {
		return dberror.ErrNotFound.Msg("extension not found")
	}
	if at == nil {
		e.KillListedAt = nil
		return nil
	}
	t := *at
	e.KillListedAt = &t
	e.Trending = false
	return nil
}

func (s *Store) ListRankingInputs(context.Context) ([]models.RankingInput, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.RankingInput, 0, len(s.extensions))
	for _, e := range s.extensions {
		if e.IsKillListed() {
			continue
		}
		out = append(out, models.RankingInput{ID: e.ID, DownloadCount: e.DownloadCount, CreatedAt: e.CreatedAt})
	}
	return out, nil
}

func (s *Store) ApplyTrending(_ context.Context, ids []uuid.UUID) apperrors.Error {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.extensions {
		e.Trending = set[id]
	}
	return nil
}

func (s *Store) SetTrending(_ context.Context, id uuid.UUID, trending bool) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.extensions[id]
	if !ok {
		return dberror.ErrNotFound.Msg("extension not found")
	}
	e.Trending = trending
	return nil
}

// view returns a deep copy of e with the author and categories joined. Caller holds the lock.
func (s *Store) view(e *models.Extension) *models.Extension {
	cp := *e
	cp.ExtensionContent = cloneContent(e.ExtensionContent)
	for _, u := range s.users {
		if u.ID == e.AuthorID {
			author := *u
			cp.Author = &author
			break
		}
	}
	cp.Categories = make([]models.Category, 0, len(e.CategoryIDs))
	for _, id := range e.CategoryIDs {
		cp.Categories = append(cp.Categories, s.categories[id])
	}
	sort.Slice(cp.Categories, func(i, j int) bool { return cp.Categories[i].Name < cp.Categories[j].Name })
	if e.KillListedAt != nil {
		t := *e.KillListedAt
		cp.KillListedAt = &t
	}
	return &cp
}

func cloneContent(c models.ExtensionContent) models.ExtensionContent {
	c.CategoryIDs = append([]string{}, c.CategoryIDs...)
	c.PlatformIDs = append([]string{}, c.PlatformIDs...)
	sort.Strings(c.PlatformIDs)
	cmds := make([]models.Command, len(c.Commands))
	for i, cmd := range c.Commands {
		cmd.Keywords = append([]string{}, cmd.Keywords...)
		cmds[i] = cmd
	}
	c.Commands = cmds
	return c
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
