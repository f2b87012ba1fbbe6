package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hbollon/go-edlib"

	"github.com/talefetch/talefetch/pkg/titles"
)

const (
	defaultBookTTL = 7 * 24 * time.Hour
	searchTTL      = time.Hour
)

// Cache key prefixes
const (
	keyPrefixBook   = "book:"
	keyPrefixSearch = "search:"
)

// matchThreshold is the minimum Jaro-Winkler similarity for a fuzzy
// title fallback to be trusted.
const matchThreshold = 0.85

// Fetcher is the raw metadata API surface the Service wraps with caching
// and fuzzy fallback.
type Fetcher interface {
	ByExternalID(ctx context.Context, externalID string) (*Book, error)
	SearchByTitle(ctx context.Context, title string) ([]Book, error)
}

// Service provides cached access to the metadata store, with a fuzzy
// by-title fallback when the id lookup misses.
type Service struct {
	client  Fetcher
	cache   *Cache
	bookTTL time.Duration
	log     *slog.Logger
}

// NewService creates a metadata service. The cache may be nil to disable caching.
func NewService(client Fetcher, cache *Cache, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		client:  client,
		cache:   cache,
		bookTTL: defaultBookTTL,
		log:     log.With("component", "metadata"),
	}
}

// SetBookTTL overrides the cache lifetime for book records. Non-positive
// values are ignored.
func (s *Service) SetBookTTL(ttl time.Duration) {
	if ttl > 0 {
		s.bookTTL = ttl
	}
}

// ByExternalID returns the metadata record for the item id (cached).
func (s *Service) ByExternalID(ctx context.Context, externalID string) (*Book, error) {
	key := keyPrefixBook + externalID

	if s.cache != nil {
		if data, ok := s.cache.Get(ctx, key); ok {
			var book Book
			if err := json.Unmarshal(data, &book); err == nil {
				s.log.Debug("cache hit", "external_id", externalID)
				return &book, nil
			}
			// If unmarshal fails, treat as cache miss and fetch fresh data
			s.log.Warn("failed to unmarshal cached book", "external_id", externalID)
		}
	}

	book, err := s.client.ByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("metadata lookup: %w", err)
	}

	s.cacheBook(ctx, key, book)
	return book, nil
}

// ByTitle resolves metadata by fuzzy title match, used as a fallback when
// the id lookup misses. The best candidate below the similarity threshold
// is discarded and ErrNotFound returned.
func (s *Service) ByTitle(ctx context.Context, title string) (*Book, error) {
	key := keyPrefixSearch + titles.CleanTitle(title)

	if s.cache != nil {
		if data, ok := s.cache.Get(ctx, key); ok {
			var book Book
			if err := json.Unmarshal(data, &book); err == nil {
				return &book, nil
			}
		}
	}

	candidates, err := s.client.SearchByTitle(ctx, title)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("metadata search: %w", err)
	}

	best, score := bestMatch(title, candidates)
	if best == nil || score < matchThreshold {
		s.log.Debug("no confident title match", "title", title, "score", score)
		return nil, ErrNotFound
	}
	s.log.Debug("fuzzy title match", "title", title, "matched", best.Title, "score", score)

	s.cacheBook(ctx, key, best)
	return best, nil
}

func (s *Service) cacheBook(ctx context.Context, key string, book *Book) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(book)
	if err != nil {
		// Log but don't fail the operation
		s.log.Warn("failed to marshal book for cache", "key", key, "error", err)
		return
	}
	ttl := s.bookTTL
	if strings.HasPrefix(key, keyPrefixSearch) {
		ttl = searchTTL
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		s.log.Warn("failed to cache book", "key", key, "error", err)
	}
}

// bestMatch scores candidates with Jaro-Winkler similarity over normalized
// titles, which favors prefix matches (good for book titles).
func bestMatch(query string, candidates []Book) (*Book, float64) {
	normalizedQuery := titles.CleanTitle(query)

	var best *Book
	bestScore := 0.0
	for i := range candidates {
		normalizedCandidate := titles.CleanTitle(candidates[i].Title)
		score := float64(edlib.JaroWinklerSimilarity(normalizedQuery, normalizedCandidate))
		if score > bestScore {
			best = &candidates[i]
			bestScore = score
		}
	}
	return best, bestScore
}
