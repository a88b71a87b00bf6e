package firehose

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/devfeeds/bsky-keyword-feed/internal/domain"
	"github.com/gorilla/websocket"
)

const postCollection = "app.bsky.feed.post"

// Subscriber connects to the Jetstream firehose, filters post-creation events
// through the feed service, and reconnects on any failure. It owns the
// websocket connection exclusively.
type Subscriber struct {
	url            string
	feedService    *domain.FeedService
	reconnectDelay time.Duration
	logger         *slog.Logger
}

// NewSubscriber creates a new firehose subscriber.
func NewSubscriber(
	firehoseURL string,
	feedService *domain.FeedService,
	reconnectDelay time.Duration,
	logger *slog.Logger,
) *Subscriber {
	return &Subscriber{
		url:            firehoseURL,
		feedService:    feedService,
		reconnectDelay: reconnectDelay,
		logger:         logger,
	}
}

// Run connects to the firehose and processes events until the context is
// cancelled. Dial failures and dropped connections are logged and retried
// after a fixed delay, indefinitely. There is no attempt cap: the subscriber
// is expected to outlive any upstream outage.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		if err := s.subscribe(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("firehose connection lost, reconnecting",
				"error", err,
				"delay", s.reconnectDelay,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *Subscriber) buildURL() (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("parse firehose url: %w", err)
	}
	q := u.Query()
	q.Set("wantedCollections", postCollection)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	wsURL, err := s.buildURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial firehose: %w", err)
	}
	defer conn.Close()

	s.logger.Info("connected to firehose", "url", wsURL)

	// Unblock ReadMessage when the context is cancelled.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var eventsReceived, postsMatched int64
	lastStatsLog := time.Now()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read message: %w", err)
		}

		eventsReceived++

		rec, ok := decodeCandidate(message)
		if !ok {
			continue
		}

		matched, err := s.feedService.ProcessPost(ctx, rec)
		if err != nil {
			s.logger.Error("failed to process post", "uri", rec.URI(), "error", err)
			continue
		}
		if matched {
			postsMatched++
			s.logger.Info("matched post",
				"uri", rec.URI(),
				"text_preview", truncate(rec.Text, 100),
			)
		}

		if time.Since(lastStatsLog) >= 30*time.Second {
			s.logger.Info("firehose stats",
				"events_received", eventsReceived,
				"posts_matched", postsMatched,
			)
			lastStatsLog = time.Now()
		}
	}
}

// decodeCandidate extracts a candidate post from a raw Jetstream message.
// Anything that is not a well-formed post creation is skipped, not an error.
func decodeCandidate(message []byte) (*domain.CandidateRecord, bool) {
	var event jetstreamEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return nil, false
	}

	if event.Kind != "commit" || event.Commit == nil {
		return nil, false
	}
	commit := event.Commit
	if commit.Operation != "create" || commit.Collection != postCollection {
		return nil, false
	}
	if commit.Record == nil || commit.CID == "" || commit.RKey == "" || event.DID == "" {
		return nil, false
	}

	return &domain.CandidateRecord{
		AuthorDID:  event.DID,
		Collection: commit.Collection,
		RKey:       commit.RKey,
		CID:        commit.CID,
		Text:       commit.Record.Text,
		Langs:      commit.Record.Langs,
	}, true
}

// truncate returns at most n bytes of s without splitting a rune, appending
// "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
