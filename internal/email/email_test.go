package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Template Tests
// ============================================================================

func TestRenderer_RendersEveryTemplate(t *testing.T) {
	t.Parallel()

	r, err := NewRenderer()
	require.NoError(t, err)

	data := Data{Name: "Ada", ListingTitle: "Prompt Studio", Amount: 1250000, Feedback: "Add revenue proof", ActionURL: "https://exitlane.test/x"}
	for _, name := range AllTemplates {
		t.Run(string(name), func(t *testing.T) {
			subject, body, err := r.Render(name, data)
			require.NoError(t, err)
			assert.NotEmpty(t, subject)
			assert.Contains(t, body, "<!DOCTYPE html>")
			assert.Contains(t, body, "Ada")
			assert.Contains(t, body, "https://exitlane.test/x")
		})
	}
}

func TestRenderer_EscapesAndUnescapesSubject(t *testing.T) {
	t.Parallel()

	r, err := NewRenderer()
	require.NoError(t, err)

	subject, body, err := r.Render(TemplateListingRejected, Data{
		Name:         "Sam",
		ListingTitle: "Docs & Bots",
		Feedback:     "<script>alert(1)</script>",
	})
	require.NoError(t, err)
	assert.Equal(t, "Changes needed for Docs & Bots", subject)
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
}

func TestRenderer_UnknownTemplate(t *testing.T) {
	t.Parallel()

	r, err := NewRenderer()
	require.NoError(t, err)
	_, _, err = r.Render(Template("nope"), Data{})
	assert.Error(t, err)
}

func TestRenderer_AuctionWonFormatsAmount(t *testing.T) {
	t.Parallel()

	r, err := NewRenderer()
	require.NoError(t, err)
	_, body, err := r.Render(TemplateAuctionWon, Data{Name: "Ada", ListingTitle: "X", Amount: 4500050})
	require.NoError(t, err)
	assert.Contains(t, body, "$45,000.50")
}

func TestFormatCents(t *testing.T) {
	t.Parallel()

	tests := map[int64]string{
		0:         "$0",
		99:        "$0.99",
		100:       "$1",
		125000:    "$1,250",
		100000000: "$1,000,000",
		-2550:     "-$25.50",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatCents(in), "FormatCents(%d)", in)
	}
}

// ============================================================================
// Sender Tests
// ============================================================================

func TestHTTPSender_PostsResendPayload(t *testing.T) {
	t.Parallel()

	var got sendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"id":"em_123"}`))
	}))
	defer srv.Close()

	s, err := NewHTTPSender(HTTPConfig{APIURL: srv.URL + "/", APIKey: "re_key", FromEmail: "hello@exitlane.test", FromName: "ExitLane", Client: srv.Client()})
	require.NoError(t, err)

	err = s.Send(context.Background(), Message{To: []string{"buyer@example.com"}, Subject: "Hi", HTML: "<p>Hi</p>", Tags: map[string]string{"template": "welcome"}})
	require.NoError(t, err)

	assert.Equal(t, "Bearer re_key", auth)
	assert.Equal(t, "ExitLane <hello@exitlane.test>", got.From)
	assert.Equal(t, []string{"buyer@example.com"}, got.To)
	assert.Equal(t, []sendTag{{Name: "template", Value: "welcome"}}, got.Tags)
}

func TestHTTPSender_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"Invalid to field"}`))
	}))
	defer srv.Close()

	s, err := NewHTTPSender(HTTPConfig{APIURL: srv.URL, APIKey: "k", FromEmail: "a@b.test", Client: srv.Client()})
	require.NoError(t, err)

	err = s.Send(context.Background(), Message{To: []string{"bad"}, Subject: "x"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "validation_error", apiErr.Name)
}

func TestHTTPSender_RequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPSender(HTTPConfig{FromEmail: "a@b.test"})
	assert.Error(t, err)
	_, err = NewHTTPSender(HTTPConfig{APIKey: "k"})
	assert.Error(t, err)

	s, err := NewHTTPSender(HTTPConfig{APIKey: "k", FromEmail: "a@b.test"})
	require.NoError(t, err)
	assert.Error(t, s.Send(context.Background(), Message{}))
}

func TestLogSender_LogsSubject(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := LogSender{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	require.NoError(t, s.Send(context.Background(), Message{To: []string{"a@b.test"}, Subject: "Welcome to ExitLane"}))
	assert.Contains(t, buf.String(), "Welcome to ExitLane")
}

// ============================================================================
// Mailer Tests
// ============================================================================

type recordingSender struct {
	msgs []Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.msgs = append(r.msgs, msg)
	return r.err
}

func TestMailer_RendersAndSends(t *testing.T) {
	t.Parallel()

	rec := &recordingSender{}
	m, err := NewMailer(rec, nil)
	require.NoError(t, err)

	require.NoError(t, m.Send(context.Background(), "seller@example.com", TemplateOfferReceived, Data{Name: "Lee", ListingTitle: "SupportGPT", Amount: 500000}))
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, "New offer on SupportGPT", rec.msgs[0].Subject)
	assert.True(t, strings.Contains(rec.msgs[0].HTML, "$5,000"))
	assert.Equal(t, "offer_received", rec.msgs[0].Tags["template"])
}

func TestMailer_WrapsSenderError(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("down")
	m, err := NewMailer(&recordingSender{err: sentinel}, nil)
	require.NoError(t, err)

	err = m.Send(context.Background(), "a@b.test", TemplateWelcome, Data{Name: "A"})
	assert.ErrorIs(t, err, sentinel)
}
