package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"

	"github.com/kestrelhq/kestrel/internal/config"
)

const (
	defaultMaxStories = 10
	defaultDataFile   = "data/seen_articles.json"
	summaryMaxLen     = 500

	// noNewStories is the digest returned when every entry was already
	// seen.
	noNewStories = "No new stories found in the configured RSS feeds."
)

var markupTags = regexp.MustCompile(`<[^>]+>`)

// newsfeedTool fetches RSS/Atom feeds and reports stories that have not
// been seen before. Seen IDs persist in a SeenStore so a story is never
// reported twice, even when it exceeds the per-run cap.
type newsfeedTool struct {
	feedURLs   []string
	maxStories int
	store      *SeenStore
	parser     *gofeed.Parser
	logger     *slog.Logger
}

// story is one new feed entry collected during a run.
type story struct {
	id        string
	title     string
	link      string
	summary   string
	published string
	source    string
}

func newNewsfeedTool(cfg config.ToolConfig) (*newsfeedTool, error) {
	if len(cfg.FeedURLs) == 0 {
		return nil, errors.New("newsfeed tool requires feed_urls with at least one URL")
	}
	dataFile := cfg.DataFile
	if dataFile == "" {
		dataFile = defaultDataFile
	}
	maxStories := cfg.MaxStories
	if maxStories <= 0 {
		maxStories = defaultMaxStories
	}
	return &newsfeedTool{
		feedURLs:   cfg.FeedURLs,
		maxStories: maxStories,
		store:      NewSeenStore(dataFile),
		parser:     gofeed.NewParser(),
		logger:     slog.Default().With("component", "newsfeed"),
	}, nil
}

func (t *newsfeedTool) Name() string {
	return "RSSFeed"
}

// Execute runs one dedup cycle: load and prune the store, collect unseen
// entries across all feeds, persist the updated store, and return the
// digest of the newest stories up to the configured cap.
func (t *newsfeedTool) Execute(ctx context.Context, _ Context) (string, error) {
	now := time.Now()

	seen, err := t.store.Acquire(now)
	if err != nil {
		return fmt.Sprintf("Error: Could not fetch RSS feeds - %v", err), nil
	}

	var stories []story
	for _, feedURL := range t.feedURLs {
		feedStories, err := t.fetchFeed(ctx, feedURL, seen)
		if err != nil {
			// One broken feed never aborts the others.
			t.logger.Warn("skipping feed", "url", feedURL, "error", err)
			continue
		}
		stories = append(stories, feedStories...)
	}

	// Commit even with nothing new so legacy-shape migration and
	// pruning reach disk on every run.
	if len(stories) == 0 {
		if err := seen.Commit(now); err != nil {
			return fmt.Sprintf("Error: Could not fetch RSS feeds - %v", err), nil
		}
		return noNewStories, nil
	}

	// Newest first; lexicographic on the ISO-8601 stamp, missing
	// timestamps last.
	sort.SliceStable(stories, func(i, j int) bool {
		return stories[i].published > stories[j].published
	})

	// Every collected ID is marked seen, not just the reported subset,
	// so overflow stories are not re-reported next run.
	for _, s := range stories {
		seen.Add(s.id, now)
	}
	if err := seen.Commit(now); err != nil {
		return fmt.Sprintf("Error: Could not fetch RSS feeds - %v", err), nil
	}

	reported := stories
	if len(reported) > t.maxStories {
		reported = reported[:t.maxStories]
	}
	t.logger.Info("collected new stories", "found", len(stories), "reported", len(reported))
	return formatStories(reported), nil
}

func (t *newsfeedTool) fetchFeed(ctx context.Context, feedURL string, seen *SeenSet) ([]story, error) {
	feed, err := t.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	source := feed.Title
	if source == "" {
		source = feedURL
	}

	var stories []story
	for _, item := range feed.Items {
		id := articleID(item)
		if seen.Contains(id) {
			continue
		}
		stories = append(stories, story{
			id:        id,
			title:     itemTitle(item),
			link:      item.Link,
			summary:   cleanSummary(itemSummary(item)),
			published: publishedStamp(item),
			source:    source,
		})
	}
	return stories, nil
}

// articleID derives a stable identity for a feed entry: explicit GUID,
// then link, then a hash of the title.
func articleID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Link != "" {
		return item.Link
	}
	sum := sha256.Sum256([]byte(item.Title))
	return hex.EncodeToString(sum[:16])
}

func itemTitle(item *gofeed.Item) string {
	if item.Title == "" {
		return "Untitled"
	}
	return item.Title
}

func itemSummary(item *gofeed.Item) string {
	if item.Description != "" {
		return item.Description
	}
	return item.Content
}

// publishedStamp extracts the best-effort publication time as an
// ISO-8601 string, or empty when the feed gives none.
func publishedStamp(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC().Format(time.RFC3339)
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC().Format(time.RFC3339)
	}
	return ""
}

// cleanSummary strips markup, collapses whitespace, and caps the length
// with an ellipsis marker. The cap lands on a rune boundary so a
// multibyte character is never split.
func cleanSummary(summary string) string {
	clean := markupTags.ReplaceAllString(summary, "")
	clean = strings.Join(strings.Fields(clean), " ")
	if len(clean) > summaryMaxLen {
		cut := summaryMaxLen - 3
		for cut > 0 && !utf8.RuneStart(clean[cut]) {
			cut--
		}
		clean = clean[:cut] + "..."
	}
	return clean
}

func formatStories(stories []story) string {
	var b strings.Builder
	fmt.Fprintf(&b, "NEW STORIES (%d articles):\n\n", len(stories))
	for i, s := range stories {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, s.title)
		fmt.Fprintf(&b, "    Source: %s\n", s.source)
		if s.published != "" {
			fmt.Fprintf(&b, "    Published: %s\n", s.published)
		}
		if s.summary != "" {
			fmt.Fprintf(&b, "    Summary: %s\n", s.summary)
		}
		fmt.Fprintf(&b, "    Link: %s\n\n", s.link)
	}
	return b.String()
}
