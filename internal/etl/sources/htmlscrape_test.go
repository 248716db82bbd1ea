package sources_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"aggregator/internal/etl"
	"aggregator/internal/etl/sources"
	"aggregator/internal/logger"
)

const listingHTML = `<!doctype html>
<html><body>
  <ul>
    <li class="item" data-id="10"><span class="name">  First
      item </span><em>cheap</em></li>
    <li class="item" data-id="11"><span class="name">Second</span></li>
  </ul>
  <a href="/a" title="A link">Alpha</a>
  <a href="/b">Beta</a>
</body></html>`

func serveHTML(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, sources.DefaultHTMLUserAgent, r.UserAgent())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTMLScrape_DefaultAnchors(t *testing.T) {
	srv := serveHTML(t, http.StatusOK, listingHTML)
	ex := sources.NewHTMLScrape(sources.HTMLOptions{}, logger.NewNop())

	recs, err := ex.Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Alpha", "/a", "A link"},
		{"Beta", "/b", ""},
	}, fieldsOf(recs))
	for _, r := range recs {
		assert.Equal(t, etl.SourceHTML, r.Source)
	}
}

func TestHTMLScrape_SelectorAndSubSelectors(t *testing.T) {
	srv := serveHTML(t, http.StatusOK, listingHTML)
	ex := sources.NewHTMLScrape(sources.HTMLOptions{
		Selector: "li.item",
		Fields:   []string{"@data-id", ".name", "em", "@missing"},
	}, logger.NewNop())

	recs, err := ex.Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"10", "First item", "cheap", ""},
		{"11", "Second", "", ""},
	}, fieldsOf(recs))
}

func TestHTMLScrape_FailuresLogOneError(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)

	tests := []struct {
		name    string
		url     func(t *testing.T) string
		opts    sources.HTMLOptions
		wantErr error
	}{
		{
			name:    "server error",
			url:     func(t *testing.T) string { return serveHTML(t, http.StatusInternalServerError, "boom").URL },
			wantErr: etl.ErrSourceUnavailable,
		},
		{
			name:    "not found",
			url:     func(t *testing.T) string { return serveHTML(t, http.StatusNotFound, "").URL },
			wantErr: etl.ErrSourceUnavailable,
		},
		{
			name:    "no matches",
			url:     func(t *testing.T) string { return serveHTML(t, http.StatusOK, "<p>nothing</p>").URL },
			wantErr: etl.ErrParseMalformed,
		},
		{
			name:    "timeout",
			url:     func(*testing.T) string { return slow.URL },
			opts:    sources.HTMLOptions{Timeout: 50 * time.Millisecond},
			wantErr: etl.ErrSourceUnavailable,
		},
		{
			name:    "unreachable",
			url:     func(*testing.T) string { return "http://127.0.0.1:1/" },
			wantErr: etl.ErrSourceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, logs := observed()
			ex := sources.NewHTMLScrape(tt.opts, log)

			recs, err := ex.Extract(context.Background(), tt.url(t))
			assert.Empty(t, recs)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
		})
	}
}
