package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults for the filter rules. The plural form +s is taken care of in the
// keyword pattern, so only singular terms are listed.
var (
	defaultKeywords = []string{
		"bun.sh",
		"css",
		"deno",
		"devtool",
		"ecmascript",
		"frontend",
		"javascript",
		"markdown",
		"node.js",
		"npm",
		"package.json",
		"tsconfig",
		"typescript",
		"web dev",
		"web development",
	}
	defaultBlocklist = []string{"adult", "nsfw", "xxx"}
)

// Config holds all configuration for the application. It is read once at
// startup and never mutated afterwards.
type Config struct {
	// Hostname is the public hostname where this service is reachable (used for did:web).
	Hostname string

	// Port is the HTTP server port.
	Port int

	// PublisherDID is the DID of the account that published the feed generator record.
	PublisherDID string

	// RecordName is the record key of the feed generator record.
	RecordName string

	// DatabasePath is the SQLite database file path.
	DatabasePath string

	// FirehoseURL is the Jetstream WebSocket endpoint.
	FirehoseURL string

	// Lang is the language tag posts must carry to match. Posts without
	// language metadata always pass.
	Lang string

	// Keywords are the terms a post must contain (word-bounded) to match.
	Keywords []string

	// Blocklist are the terms that disqualify a post even when a keyword matches.
	Blocklist []string

	// FeedLimit is the maximum number of posts retained in the store.
	FeedLimit int

	// PageLimit is the default page size for feed reads.
	PageLimit int

	// ReconnectDelay is how long to wait before redialing the firehose after
	// a connection drops.
	ReconnectDelay time.Duration
}

// ServiceDID returns the did:web for this feed generator based on the hostname.
func (c *Config) ServiceDID() string {
	return "did:web:" + c.Hostname
}

// FeedURI returns the AT-URI of the feed generator record this deployment serves.
func (c *Config) FeedURI() string {
	return fmt.Sprintf("at://%s/app.bsky.feed.generator/%s", c.PublisherDID, c.RecordName)
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port := 3000
	if p := os.Getenv("PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
	}

	hostname := os.Getenv("FEEDGEN_HOSTNAME")
	if hostname == "" {
		hostname = "localhost"
	}

	publisherDID := os.Getenv("FEEDGEN_PUBLISHER_DID")
	if publisherDID == "" {
		return nil, fmt.Errorf("FEEDGEN_PUBLISHER_DID is required")
	}

	recordName := os.Getenv("FEEDGEN_RECORD_NAME")
	if recordName == "" {
		return nil, fmt.Errorf("FEEDGEN_RECORD_NAME is required")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "feed.db"
	}

	firehoseURL := os.Getenv("FEEDGEN_FIREHOSE_URL")
	if firehoseURL == "" {
		firehoseURL = "wss://jetstream1.us-east.bsky.network/subscribe"
	}

	lang := os.Getenv("FEEDGEN_LANG")
	if lang == "" {
		lang = "en"
	}

	keywords := splitTerms(os.Getenv("FEEDGEN_KEYWORDS"), defaultKeywords)
	if len(keywords) == 0 {
		return nil, fmt.Errorf("at least one keyword is required")
	}
	blocklist := splitTerms(os.Getenv("FEEDGEN_BLOCKLIST"), defaultBlocklist)

	return &Config{
		Hostname:       hostname,
		Port:           port,
		PublisherDID:   publisherDID,
		RecordName:     recordName,
		DatabasePath:   dbPath,
		FirehoseURL:    firehoseURL,
		Lang:           lang,
		Keywords:       keywords,
		Blocklist:      blocklist,
		FeedLimit:      300,
		PageLimit:      30,
		ReconnectDelay: 5 * time.Second,
	}, nil
}

// splitTerms parses a comma-separated env value into lowercase terms, falling
// back to defaults when the value is empty.
func splitTerms(value string, defaults []string) []string {
	if value == "" {
		return defaults
	}
	parts := strings.Split(value, ",")
	terms := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			terms = append(terms, p)
		}
	}
	return terms
}
