package feed

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedFeed wraps any structural problem with the feed document.
var ErrMalformedFeed = errors.New("malformed feed")

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	PubDate string    `xml:"pubDate"`
	Items   []rssItem `xml:"item"`
}

type rssItem struct {
	GUID    string `xml:"guid"`
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
}

// RSS pubDate is RFC 1123, but feeds are sloppy about zones and padding.
var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
}

func parsePubDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ItemID derives the stable item identifier from the guid.
//
// md5 is kept deliberately: progress markers written by earlier deployments
// key on this exact digest, and the hash is an identifier, not a security
// boundary (authenticity is established before parsing).
func ItemID(guid string) string {
	sum := md5.Sum([]byte(guid))
	return hex.EncodeToString(sum[:])
}

// Parse turns an authenticated body into a Feed. Malformed input is an
// error, never a panic.
func Parse(body []byte) (*Feed, error) {
	var doc rssDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}

	pubDate := strings.TrimSpace(doc.Channel.PubDate)
	if pubDate == "" {
		return nil, fmt.Errorf("%w: channel has no pubDate", ErrMalformedFeed)
	}
	pubTime, _ := parsePubDate(pubDate)

	f := &Feed{
		PubDate: pubDate,
		PubTime: pubTime,
		Items:   make([]Item, 0, len(doc.Channel.Items)),
	}
	for _, it := range doc.Channel.Items {
		guid := strings.TrimSpace(it.GUID)
		t, _ := parsePubDate(it.PubDate)
		f.Items = append(f.Items, Item{
			ID:      ItemID(guid),
			GUID:    guid,
			Title:   strings.TrimSpace(it.Title),
			Link:    strings.TrimSpace(it.Link),
			PubDate: strings.TrimSpace(it.PubDate),
			PubTime: t,
		})
	}
	return f, nil
}
