package domain

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// FeedService is the core domain service. It owns the business logic for
// matching candidate posts against the feed rules, persisting matches, and
// serving feed skeletons.
type FeedService struct {
	feedURI string
	matcher *Matcher
	store   PostStore
	logger  *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewFeedService creates a FeedService serving the feed identified by feedURI.
func NewFeedService(feedURI string, matcher *Matcher, store PostStore, logger *slog.Logger) *FeedService {
	return &FeedService{
		feedURI: feedURI,
		matcher: matcher,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// FeedURI returns the AT-URI of the feed this service serves.
func (s *FeedService) FeedURI() string {
	return s.feedURI
}

// ProcessPost checks a candidate post against the feed rules and persists it
// on a match, stamping IndexedAt at the moment of acceptance. Returns true if
// the post was saved.
func (s *FeedService) ProcessPost(ctx context.Context, rec *CandidateRecord) (bool, error) {
	if !s.matcher.Match(rec) {
		return false, nil
	}

	post := &Post{
		URI:       rec.URI(),
		CID:       rec.CID,
		IndexedAt: s.now().UTC(),
	}
	if err := s.store.Upsert(ctx, post); err != nil {
		return false, fmt.Errorf("upsert post: %w", err)
	}
	return true, nil
}

// GetFeedSkeleton returns up to limit skeleton entries, most recent first.
func (s *FeedService) GetFeedSkeleton(ctx context.Context, limit int) ([]SkeletonPost, error) {
	posts, err := s.store.Query(ctx, limit)
	if err != nil {
		s.logger.Error("feed query failed", "limit", limit, "error", err)
		return nil, fmt.Errorf("query posts: %w", err)
	}

	skeleton := make([]SkeletonPost, len(posts))
	for i, p := range posts {
		skeleton[i] = SkeletonPost{Post: p.URI}
	}
	return skeleton, nil
}
