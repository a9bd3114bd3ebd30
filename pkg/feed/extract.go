package feed

import (
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
)

const (
	maxTitleLen       = 500
	maxDescriptionLen = 1000
	maxContentLen     = 5000
	maxAuthorLen      = 200
)

// RawEntry is a normalized feed item ready for upsert.
type RawEntry struct {
	Title       string
	Link        string
	Description string
	Content     string
	Author      string
	PublishedAt time.Time
}

func (f *Fetcher) extract(feedURL string, parsed *gofeed.Feed) *Result {
	res := &Result{
		Title: cleanText(parsed.Title, maxTitleLen),
		Found: len(parsed.Items),
	}
	now := f.now()
	base := entryBase(feedURL, parsed.Link)

	for i, item := range parsed.Items {
		if item == nil {
			res.Skipped++
			continue
		}
		entry, err := extractEntry(item, base, now)
		if err != nil {
			var ee *EntryError
			if errors.As(err, &ee) {
				ee.Index = i
				f.log.WithFields(logrus.Fields{"url": feedURL, "link": ee.Link}).WithError(err).Warn("dropping feed entry")
			}
			res.Skipped++
			continue
		}
		if entry == nil {
			res.Skipped++
			continue
		}
		res.Entries = append(res.Entries, *entry)
	}
	return res
}

// entryBase is the URL relative entry links resolve against: the feed's own
// site link when it is absolute, otherwise the URL the feed was fetched from.
func entryBase(feedURL, siteLink string) *url.URL {
	for _, raw := range []string{siteLink, feedURL} {
		if u, err := url.Parse(strings.TrimSpace(raw)); err == nil && u.IsAbs() && u.Host != "" {
			return u
		}
	}
	return nil
}

// extractEntry returns nil, nil for entries without a title or link; those
// are skipped without logging. Relative links are resolved against base.
func extractEntry(item *gofeed.Item, base *url.URL, now time.Time) (*RawEntry, error) {
	title := cleanText(item.Title, maxTitleLen)
	link := strings.TrimSpace(item.Link)
	if link == "" && len(item.Links) > 0 {
		link = strings.TrimSpace(item.Links[0])
	}
	if title == "" || link == "" {
		return nil, nil
	}

	u, err := url.Parse(link)
	if err != nil {
		return nil, &EntryError{Link: link, Err: err}
	}
	if !u.IsAbs() && base != nil {
		u = base.ResolveReference(u)
		link = u.String()
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &EntryError{Link: link, Err: errors.New("link is not an absolute http(s) url")}
	}

	return &RawEntry{
		Title:       title,
		Link:        link,
		Description: cleanText(firstNonEmpty(descriptionCandidates(item)...), maxDescriptionLen),
		Content:     cleanText(firstNonEmpty(item.Content, item.Description), maxContentLen),
		Author:      cleanText(firstNonEmpty(authorCandidates(item)...), maxAuthorLen),
		PublishedAt: publishedAt(item, now),
	}, nil
}

func descriptionCandidates(item *gofeed.Item) []string {
	c := []string{item.Description}
	if item.ITunesExt != nil {
		c = append(c, item.ITunesExt.Summary, item.ITunesExt.Subtitle)
	}
	if item.DublinCoreExt != nil {
		c = append(c, item.DublinCoreExt.Description...)
	}
	return c
}

func authorCandidates(item *gofeed.Item) []string {
	var c []string
	if item.Author != nil {
		c = append(c, item.Author.Name, item.Author.Email)
	}
	for _, a := range item.Authors {
		if a != nil {
			c = append(c, a.Name)
		}
	}
	if item.DublinCoreExt != nil {
		c = append(c, item.DublinCoreExt.Creator...)
	}
	if item.ITunesExt != nil {
		c = append(c, item.ITunesExt.Author)
	}
	return c
}

// publishedAt picks the first parseable date, falling back to now.
func publishedAt(item *gofeed.Item, now time.Time) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}

	raw := []string{item.Published, item.Updated}
	if item.DublinCoreExt != nil {
		raw = append(raw, item.DublinCoreExt.Date...)
	}
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if t, err := dateparse.ParseAny(s); err == nil {
			return t.UTC()
		}
	}
	return now
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// cleanText strips markup, collapses whitespace and truncates to limit runes.
func cleanText(s string, limit int) string {
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	s = strings.Join(strings.Fields(s), " ")
	return truncateRunes(s, limit)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
