// Package feed retrieves, authenticates and parses the announcement feed.
//
// Nothing leaves this package as trusted content unless the full
// verification pipeline in Authenticator passed first.
package feed

import "time"

// Resource names, joined onto the configured base URL.
const (
	SignatureResource = ".signature"
	BodyResource      = ".rss"
)

// Feed is one parsed publication of the announcement feed.
//
// PubDate keeps the channel's raw string: the stored progress record
// compares publications by exact string, so re-serializing through a
// time.Time must not change it.
type Feed struct {
	PubDate string
	PubTime time.Time
	Items   []Item
}

// Item is a single announcement. Immutable once parsed.
type Item struct {
	// ID is the stable identifier derived from the guid, repeatable
	// across runs for the same logical item.
	ID      string
	GUID    string
	Title   string
	Link    string
	PubDate string

	// PubTime is zero when the item's pubDate did not parse. Such items
	// are never considered new.
	PubTime time.Time
}
