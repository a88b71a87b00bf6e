package domain

import "time"

// Post represents a matched BlueSky post retained in our store.
type Post struct {
	// URI is the AT-URI of the post (e.g. at://did:plc:abc/app.bsky.feed.post/3l3qo2vuowo2b).
	URI string

	// CID is the content identifier of the record revision.
	CID string

	// IndexedAt is when we accepted this post, not when it was authored.
	IndexedAt time.Time
}

// CandidateRecord is a decoded post from the firehose that hasn't been
// matched or persisted yet. It exists only for a single ingestion step.
type CandidateRecord struct {
	// AuthorDID is the DID of the post's author.
	AuthorDID string

	// Collection and RKey are the repo path components of the record.
	Collection string
	RKey       string

	// CID is the content identifier of the record.
	CID string

	// Text is the post body used for keyword matching.
	Text string

	// Langs is the list of language tags set by the author's client.
	Langs []string
}

// URI builds the AT-URI identifying the candidate's record.
func (c *CandidateRecord) URI() string {
	return "at://" + c.AuthorDID + "/" + c.Collection + "/" + c.RKey
}

// SkeletonPost is a single entry in a feed skeleton.
type SkeletonPost struct {
	// Post is the AT-URI of the post.
	Post string `json:"post"`
}
