package firehose

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/devfeeds/bsky-keyword-feed/internal/domain"
	"github.com/gorilla/websocket"
)

func TestDecodeCandidate(t *testing.T) {
	tests := []struct {
		name    string
		message string
		ok      bool
	}{
		{
			name:    "valid post creation",
			message: `{"did":"did:plc:a","kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.post","rkey":"3l3q","cid":"bafy1","record":{"$type":"app.bsky.feed.post","text":"hello","langs":["en"]}}}`,
			ok:      true,
		},
		{
			name:    "not json",
			message: `not even close`,
			ok:      false,
		},
		{
			name:    "identity event",
			message: `{"did":"did:plc:a","kind":"identity"}`,
			ok:      false,
		},
		{
			name:    "delete operation",
			message: `{"did":"did:plc:a","kind":"commit","commit":{"operation":"delete","collection":"app.bsky.feed.post","rkey":"3l3q","cid":"bafy1"}}`,
			ok:      false,
		},
		{
			name:    "wrong collection",
			message: `{"did":"did:plc:a","kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.like","rkey":"3l3q","cid":"bafy1","record":{"$type":"app.bsky.feed.like"}}}`,
			ok:      false,
		},
		{
			name:    "missing record",
			message: `{"did":"did:plc:a","kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.post","rkey":"3l3q","cid":"bafy1"}}`,
			ok:      false,
		},
		{
			name:    "missing cid",
			message: `{"did":"did:plc:a","kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.post","rkey":"3l3q","record":{"text":"hello"}}}`,
			ok:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := decodeCandidate([]byte(tt.message))
			if ok != tt.ok {
				t.Fatalf("decodeCandidate ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if want := "at://did:plc:a/app.bsky.feed.post/3l3q"; rec.URI() != want {
				t.Errorf("URI = %q, want %q", rec.URI(), want)
			}
			if rec.CID != "bafy1" {
				t.Errorf("CID = %q, want bafy1", rec.CID)
			}
			if rec.Text != "hello" {
				t.Errorf("Text = %q, want hello", rec.Text)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short enough", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"ascii cut", "hello world", 5, "hello..."},
		{"multi-byte rune not split", "héllo", 2, "h..."},
		{"emoji not split", "a👍b", 3, "a..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.in, tt.n)
			}
		})
	}
}

type recordingStore struct {
	ch chan domain.Post
}

func (r *recordingStore) Upsert(_ context.Context, post *domain.Post) error {
	r.ch <- *post
	return nil
}

func (r *recordingStore) Query(_ context.Context, _ int) ([]domain.Post, error) {
	return nil, nil
}

// TestReconnectAfterClose drops the connection after every delivered event and
// expects the subscriber to redial on its own and keep accepting matches.
func TestReconnectAfterClose(t *testing.T) {
	upgrader := websocket.Upgrader{}

	var mu sync.Mutex
	dials := 0

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		dials++
		n := dials
		mu.Unlock()

		msg := fmt.Sprintf(
			`{"did":"did:plc:a","kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.post","rkey":"rk%d","cid":"bafy%d","record":{"$type":"app.bsky.feed.post","text":"a typescript post"}}}`,
			n, n,
		)
		conn.WriteMessage(websocket.TextMessage, []byte(msg))
		conn.Close()
	}))
	defer ts.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	matcher, err := domain.NewMatcher("en", []string{"typescript"}, nil)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	store := &recordingStore{ch: make(chan domain.Post, 16)}
	svc := domain.NewFeedService("at://did:plc:pub/app.bsky.feed.generator/test", matcher, store, logger)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	sub := NewSubscriber(wsURL, svc, 20*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sub.Run(ctx)
		close(done)
	}()

	// Two stored posts can only come from two separate connections.
	uris := make(map[string]bool)
	for len(uris) < 2 {
		select {
		case post := <-store.ch:
			uris[post.URI] = true
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for reconnect; saw %d posts", len(uris))
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not stop after context cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	if dials < 2 {
		t.Errorf("dials = %d, want at least 2", dials)
	}
}
