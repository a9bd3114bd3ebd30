package alert

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingNotifier struct{}

func (failingNotifier) Name() string                              { return "broken" }
func (failingNotifier) Send(context.Context, *Notification) error { return errors.New("down") }

func capture(t *testing.T, status int) (*httptest.Server, *[]*http.Request, *[][]byte) {
	t.Helper()
	var (
		reqs   []*http.Request
		bodies [][]byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		reqs = append(reqs, r)
		bodies = append(bodies, b)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs, &bodies
}

// unescaped undoes the HTML escaping encoding/json applies to <, > and &.
func unescaped(b []byte) string {
	return strings.NewReplacer(`\u003c`, "<", `\u003e`, ">", `\u0026`, "&").Replace(string(b))
}

func issues() []SourceIssue {
	return []SourceIssue{
		{Name: "Gsmarena", URL: "https://www.gsmarena.com", Status: "error", Message: "Frequent failures detected", SuccessRate: 40},
		{Name: "Macrumors", Status: "warning", Message: "Overdue for scraping by 1h0m0s", SuccessRate: 100},
	}
}

func TestWebhookSignsPayload(t *testing.T) {
	srv, reqs, bodies := capture(t, http.StatusNoContent)

	n := UnhealthySources(issues())
	err := NewManager(NewWebhook(srv.URL, "s3cret")).Broadcast(context.Background(), n)
	require.NoError(t, err)
	require.Len(t, *reqs, 1)

	body := (*bodies)[0]
	assert.Equal(t, Sign("s3cret", body), (*reqs)[0].Header.Get("X-Signature-256"))

	assert.Equal(t, EventSourcesUnhealthy, (*reqs)[0].Header.Get("X-Technews-Event"))
	assert.Equal(t, "technews/1.0", (*reqs)[0].Header.Get("User-Agent"))

	var got Event
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, EventSourcesUnhealthy, got.Event)
	require.NotNil(t, got.Notification)
	assert.Equal(t, "2 feed source(s) need attention", got.Notification.Title)
	assert.Len(t, got.Notification.Issues, 2)
	assert.False(t, got.Notification.SentAt.IsZero())
}

func TestSlackAndDiscordPayloads(t *testing.T) {
	slackSrv, _, slackBodies := capture(t, http.StatusOK)
	discordSrv, _, discordBodies := capture(t, http.StatusNoContent)

	m := NewManager(NewSlack(slackSrv.URL), NewDiscord(discordSrv.URL))
	require.True(t, m.HasNotifiers())
	require.NoError(t, m.Broadcast(context.Background(), UnhealthySources(issues())))

	slackBody := unescaped((*slackBodies)[0])
	assert.Contains(t, slackBody, "<https://www.gsmarena.com|Gsmarena>")
	assert.Contains(t, slackBody, "*Macrumors*")
	assert.Contains(t, slackBody, `"type":"header"`)
	assert.Contains(t, string((*discordBodies)[0]), "[Gsmarena](https://www.gsmarena.com)")
}

func TestBroadcastJoinsErrors(t *testing.T) {
	srv, reqs, _ := capture(t, http.StatusInternalServerError)

	err := NewManager(failingNotifier{}, NewSlack(srv.URL)).Broadcast(context.Background(), UnhealthySources(issues()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: down")
	assert.Contains(t, err.Error(), "send slack webhook")
	assert.Len(t, *reqs, 1)
}

func TestNilManagerIsNoop(t *testing.T) {
	var m *Manager
	assert.False(t, m.HasNotifiers())
	assert.NoError(t, m.Broadcast(context.Background(), &Notification{}))
}

func TestIssueLinesCapsOutput(t *testing.T) {
	many := make([]SourceIssue, 12)
	lines := issueLines(many, 10, "-", func(SourceIssue) string { return "x" })
	assert.Len(t, lines, 11)
	assert.Equal(t, "… and 2 more", lines[10])
}
