package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractEntryFallbacks(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	item := &gofeed.Item{
		Title: "  Pixel   10 review ",
		Links: []string{"https://example.com/pixel"},
		DublinCoreExt: &ext.DublinCoreExtension{
			Creator:     []string{"Sam"},
			Description: []string{"From dublin core"},
			Date:        []string{"2024-03-05T10:00:00Z"},
		},
	}

	e, err := extractEntry(item, nil, now)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "Pixel 10 review", e.Title)
	assert.Equal(t, "https://example.com/pixel", e.Link)
	assert.Equal(t, "From dublin core", e.Description)
	assert.Equal(t, "", e.Content)
	assert.Equal(t, "Sam", e.Author)
	assert.True(t, e.PublishedAt.Equal(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)))
}

func TestExtractEntryDefaultsPublishedToNow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e, err := extractEntry(&gofeed.Item{Title: "x", Link: "https://example.com/x", Published: "sometime soon"}, nil, now)
	require.NoError(t, err)
	assert.True(t, e.PublishedAt.Equal(now))
}

func TestExtractEntrySkipsMissingTitleOrLink(t *testing.T) {
	e, err := extractEntry(&gofeed.Item{Title: "   ", Link: "https://example.com/x"}, nil, time.Now())
	assert.NoError(t, err)
	assert.Nil(t, e)

	e, err = extractEntry(&gofeed.Item{Title: "x"}, nil, time.Now())
	assert.NoError(t, err)
	assert.Nil(t, e)
}

func TestExtractEntryResolvesRelativeLinks(t *testing.T) {
	now := time.Now()

	base := entryBase("https://feeds.example.com/rss.xml", "https://blog.example.com/")
	e, err := extractEntry(&gofeed.Item{Title: "x", Link: "/post/1"}, base, now)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "https://blog.example.com/post/1", e.Link)

	base = entryBase("https://feeds.example.com/tech/rss.xml", "")
	e, err = extractEntry(&gofeed.Item{Title: "x", Link: "post/2"}, base, now)
	require.NoError(t, err)
	assert.Equal(t, "https://feeds.example.com/tech/post/2", e.Link)

	_, err = extractEntry(&gofeed.Item{Title: "x", Link: "/post/3"}, nil, now)
	var ee *EntryError
	assert.ErrorAs(t, err, &ee)
}

func TestCleanTextTruncatesRunes(t *testing.T) {
	long := strings.Repeat("é", 1200)
	out := cleanText(long, maxDescriptionLen)
	assert.Equal(t, maxDescriptionLen, len([]rune(out)))

	assert.Equal(t, "Tom & Jerry", cleanText("<div>Tom &amp;\n\n Jerry</div>", 100))
}
