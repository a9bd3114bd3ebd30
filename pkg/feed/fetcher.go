package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
)

// DefaultUserAgent identifies as a desktop browser; several publishers
// reject unknown clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Options configures a Fetcher. Zero values take defaults.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxBodyBytes int64
	Client       *http.Client
	Logger       logrus.FieldLogger
}

// Result is one parsed feed.
type Result struct {
	Title   string
	Entries []RawEntry
	// Found counts every item in the feed, including skipped ones.
	Found   int
	Skipped int
	// Warning is a *MalformedFeedError when the feed needed cleanup.
	Warning error
}

// Fetcher downloads and parses feeds. It is safe for concurrent use.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	maxAttempts  int
	baseDelay    time.Duration
	maxBodyBytes int64
	log          logrus.FieldLogger
	now          func() time.Time
}

// NewFetcher creates a fetcher.
func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Fetcher{
		client:       client,
		userAgent:    opts.UserAgent,
		maxAttempts:  opts.MaxAttempts,
		baseDelay:    opts.BaseDelay,
		maxBodyBytes: opts.MaxBodyBytes,
		log:          logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Fetch downloads url, parses it and extracts entries. Transient failures
// are retried; everything else fails on the first attempt.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	body, err := f.download(ctx, url)
	if err != nil {
		return nil, err
	}

	parsed, warning, err := parse(url, body)
	if err != nil {
		return nil, err
	}
	if warning != nil {
		f.log.WithFields(logrus.Fields{"url": url}).WithError(warning).Warn("feed parsed after cleanup")
	}

	res := f.extract(url, parsed)
	if warning != nil {
		res.Warning = warning
	}
	return res, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		body, err := f.get(ctx, url)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isTransient(err) {
			return nil, err
		}
		if attempt >= f.maxAttempts {
			return nil, &TransientError{URL: url, Attempts: attempt, Err: err}
		}

		delay := f.baseDelay << (attempt - 1)
		f.log.WithFields(logrus.Fields{
			"url":     url,
			"attempt": attempt,
			"delay":   delay.String(),
		}).WithError(err).Warn("transient fetch failure, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, fmt.Errorf("read %s: body exceeds %d bytes", url, f.maxBodyBytes)
	}
	return body, nil
}

// isTransient reports whether err is worth retrying: forbidden, rate limited
// or timed out.
func isTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusForbidden || se.StatusCode == http.StatusTooManyRequests
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// parse tries the raw body first and a sanitized copy second.
func parse(url string, body []byte) (*gofeed.Feed, *MalformedFeedError, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err == nil {
		return parsed, nil, nil
	}

	cleaned := sanitize(body)
	parsed, err2 := gofeed.NewParser().Parse(bytes.NewReader(cleaned))
	if err2 != nil {
		return nil, nil, &ParseError{URL: url, Err: err}
	}
	return parsed, &MalformedFeedError{URL: url, Err: err}, nil
}

var (
	invalidXMLChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
	ampersands      = regexp.MustCompile(`&(#[0-9]+;|#[xX][0-9a-fA-F]+;|[A-Za-z][A-Za-z0-9]*;)?`)
)

// sanitize drops control characters XML forbids and escapes bare
// ampersands, the two faults most often seen in hand-written feeds.
func sanitize(body []byte) []byte {
	out := invalidXMLChars.ReplaceAll(body, nil)
	return ampersands.ReplaceAllFunc(out, func(m []byte) []byte {
		if len(m) == 1 {
			return []byte("&amp;")
		}
		return m
	})
}
