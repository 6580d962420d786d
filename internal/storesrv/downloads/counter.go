// Package downloads counts extension downloads once per client.
package downloads

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"github.com/vicinaehq/backend/internal/common/apperrors"
	"github.com/vicinaehq/backend/internal/common/middleware"
	"github.com/vicinaehq/backend/internal/storesrv/db/models"
	"github.com/vicinaehq/backend/internal/storesrv/metrics"
)

const (
	DefaultMaxTrackedExtensions   = 10000
	DefaultMaxClientsPerExtension = 50000
)

type Incrementer interface {
	IncrementDownloadCount(ctx context.Context, id uuid.UUID) apperrors.Error
}

// Counter remembers which clients downloaded which extension. The memory is bounded on
// both axes by LRU eviction: a client evicted from an extension's set, or an extension
// evicted altogether, is counted again on its next download.
type Counter struct {
	mu         sync.Mutex // serializes creation of per extension sets
	extensions *lru.Cache[string, *lru.Cache[string, struct{}]]
	maxClients int
	catalog    Incrementer
	metrics    *metrics.Metrics
}

func NewCounter(catalog Incrementer, maxExtensions, maxClients int, m *metrics.Metrics) (*Counter, error) {
	if maxExtensions <= 0 {
		maxExtensions = DefaultMaxTrackedExtensions
	}
	if maxClients <= 0 {
		maxClients = DefaultMaxClientsPerExtension
	}
	outer, err := lru.New[string, *lru.Cache[string, struct{}]](maxExtensions)
	if err != nil {
		return nil, err
	}
	return &Counter{
		extensions: outer,
		maxClients: maxClients,
		catalog:    catalog,
		metrics:    m,
	}, nil
}

// Key is the dedup key of an extension. Author handles are case insensitive.
func Key(author, name string) string {
	return strings.ToLower(author) + "/" + name
}

// Record counts the download if clientID has not been seen for extensionKey yet. When the
// increment fails the client is forgotten so a later download can still count.
func (c *Counter) Record(ctx context.Context, ext *models.Extension, extensionKey, clientID string) (bool, error) {
	if clientID == "" {
		clientID = middleware.UnknownClient
	}
	unknown := clientID == middleware.UnknownClient

	clients := c.clientsFor(extensionKey)
	if seen, _ := clients.ContainsOrAdd(clientID, struct{}{}); seen {
		c.metrics.ObserveDownload(false, unknown)
		return false, nil
	}

	if err := c.catalog.IncrementDownloadCount(ctx, ext.ID); err != nil {
		clients.Remove(clientID)
		log.Ctx(ctx).Error().Err(err).Str("extension", extensionKey).Msg("failed to count download")
		c.metrics.ObserveDownload(false, unknown)
		return false, err
	}
	c.metrics.ObserveDownload(true, unknown)
	return true, nil
}

func (c *Counter) clientsFor(extensionKey string) *lru.Cache[string, struct{}] {
	if clients, ok := c.extensions.Get(extensionKey); ok {
		return clients
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if clients, ok := c.extensions.Get(extensionKey); ok {
		return clients
	}
	// only fails for a non positive size
	clients, _ := lru.New[string, struct{}](c.maxClients)
	c.extensions.Add(extensionKey, clients)
	c.metrics.SetTrackedExtensions(c.extensions.Len())
	return clients
}

// TrackedExtensions returns how many extensions currently hold a client set.
func (c *Counter) TrackedExtensions() int {
	return c.extensions.Len()
}
