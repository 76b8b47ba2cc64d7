package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vilaca/mr-conflict-detector/internal/domain"
)

// CachingClient wraps a Client with a TTL cache.
// Follows Decorator pattern to add caching without modifying the underlying client.
// A scan with --post checks every involved merge request against the same open set.
type CachingClient struct {
	client      Client
	notesClient NotesClient // May be nil if the underlying client cannot post notes
	cache       *cache
	logger      *slog.Logger
}

// NewCachingClient creates a new caching client wrapper.
func NewCachingClient(client Client, cacheDuration time.Duration, logger *slog.Logger) *CachingClient {
	notesClient, _ := client.(NotesClient)
	if logger == nil {
		logger = slog.Default()
	}

	return &CachingClient{
		client:      client,
		notesClient: notesClient,
		cache:       newCache(cacheDuration),
		logger:      logger,
	}
}

// getCached retrieves a typed value from the cache.
func getCached[T any](c *cache, key string) (T, bool) {
	var zero T
	if cached, found := c.get(key); found {
		if value, ok := cached.(T); ok {
			return value, true
		}
	}
	return zero, false
}

// ListOpenMergeRequests retrieves open merge requests with caching.
func (c *CachingClient) ListOpenMergeRequests(ctx context.Context, projectID string) ([]domain.MergeRequestInfo, error) {
	key := fmt.Sprintf("ListOpenMergeRequests:%s", projectID)

	if mrs, found := getCached[[]domain.MergeRequestInfo](c.cache, key); found {
		c.logger.DebugContext(ctx, "cache hit", "key", key, "count", len(mrs))
		return mrs, nil
	}

	mrs, err := c.client.ListOpenMergeRequests(ctx, projectID)
	if err != nil {
		return nil, err
	}

	c.cache.set(key, mrs)
	c.logger.DebugContext(ctx, "cached", "key", key, "count", len(mrs))

	return mrs, nil
}

// GetMergeRequest is never cached: callers need the current lifecycle state.
func (c *CachingClient) GetMergeRequest(ctx context.Context, projectID string, iid int) (*domain.MergeRequestInfo, error) {
	return c.client.GetMergeRequest(ctx, projectID, iid)
}

// ChangedFiles retrieves the changed files of a merge request with caching.
func (c *CachingClient) ChangedFiles(ctx context.Context, projectID string, iid int) ([]string, error) {
	key := fmt.Sprintf("ChangedFiles:%s:%d", projectID, iid)

	if files, found := getCached[[]string](c.cache, key); found {
		c.logger.DebugContext(ctx, "cache hit", "key", key, "count", len(files))
		return files, nil
	}

	files, err := c.client.ChangedFiles(ctx, projectID, iid)
	if err != nil {
		return nil, err
	}

	c.cache.set(key, files)

	return files, nil
}

// ListNotes is never cached: the tool edits its own note between runs.
func (c *CachingClient) ListNotes(ctx context.Context, projectID string, iid int) ([]domain.Note, error) {
	if c.notesClient == nil {
		return nil, fmt.Errorf("underlying client does not support ListNotes")
	}
	return c.notesClient.ListNotes(ctx, projectID, iid)
}

// CreateNote delegates to the underlying client.
func (c *CachingClient) CreateNote(ctx context.Context, projectID string, iid int, body string) error {
	if c.notesClient == nil {
		return fmt.Errorf("underlying client does not support CreateNote")
	}
	return c.notesClient.CreateNote(ctx, projectID, iid, body)
}

// UpdateNote delegates to the underlying client.
func (c *CachingClient) UpdateNote(ctx context.Context, projectID string, iid, noteID int, body string) error {
	if c.notesClient == nil {
		return fmt.Errorf("underlying client does not support UpdateNote")
	}
	return c.notesClient.UpdateNote(ctx, projectID, iid, noteID, body)
}

// cache implements a thread-safe TTL cache.
type cache struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry
	duration time.Duration
}

// cacheEntry holds a cached value with expiry time.
type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// newCache creates a new cache with the specified duration.
func newCache(duration time.Duration) *cache {
	return &cache{
		entries:  make(map[string]*cacheEntry),
		duration: duration,
	}
}

// get retrieves a value from cache.
func (c *cache) get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		return nil, false
	}

	return entry.value, true
}

// set stores a value in cache with TTL and drops expired entries.
func (c *cache) set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, k)
		}
	}

	c.entries[key] = &cacheEntry{
		value:     value,
		expiresAt: now.Add(c.duration),
	}
}
