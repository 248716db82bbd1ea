package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"aggregator/internal/etl"
	"aggregator/internal/logger"
)

// ── HTML Scrape Source ──────────────────────────────────────
// Fetches one page and emits one record per element matching a CSS selector.
//
// Field rule, per configured entry: "." is the element's own text, "@attr"
// is an attribute of the element, anything else is a CSS selector whose
// first match inside the element supplies its text. Missing values are "".

const (
	DefaultHTMLSelector     = "a"
	DefaultHTMLTimeout      = 10 * time.Second
	DefaultHTMLUserAgent    = "aggregator/1.0"
	DefaultHTMLMaxBodyBytes = 10 << 20
)

// DefaultHTMLFields is used when no field list is configured.
var DefaultHTMLFields = []string{".", "@href", "@title"}

// HTMLOptions configures the HTML scrape extractor.
type HTMLOptions struct {
	Selector     string
	Fields       []string
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
}

type htmlScrapeSource struct {
	opts   HTMLOptions
	client *http.Client
	log    logger.Logger
}

// NewHTMLScrape returns the HTML extractor. Zero options take their defaults,
// so the fetch is always bounded by a timeout.
func NewHTMLScrape(opts HTMLOptions, log logger.Logger) etl.Extractor {
	if opts.Selector == "" {
		opts.Selector = DefaultHTMLSelector
	}
	if len(opts.Fields) == 0 {
		opts.Fields = DefaultHTMLFields
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultHTMLTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultHTMLUserAgent
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultHTMLMaxBodyBytes
	}
	return &htmlScrapeSource{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		log:    log.With(logger.String("source", string(etl.SourceHTML))),
	}
}

func (s *htmlScrapeSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Kind:  etl.SourceHTML,
		Label: "HTML Page",
		Input: "url",
		ConfigFields: []etl.ConfigField{
			{Key: "sources.html.url", Required: true, Help: "Page to fetch (http or https)"},
			{Key: "sources.html.selector", Default: DefaultHTMLSelector, Help: "CSS selector; one record per match"},
			{Key: "sources.html.fields", Default: strings.Join(DefaultHTMLFields, ","), Help: `"." for text, "@attr" for an attribute, or a sub-selector`},
			{Key: "sources.html.timeout", Default: DefaultHTMLTimeout.String(), Help: "Request timeout"},
			{Key: "sources.html.user_agent", Default: DefaultHTMLUserAgent},
			{Key: "sources.html.max_body_bytes", Default: fmt.Sprint(DefaultHTMLMaxBodyBytes)},
		},
	}
}

func (s *htmlScrapeSource) Extract(ctx context.Context, url string) ([]etl.SourceRecord, error) {
	log := s.log.With(logger.String("input", url))
	if url == "" {
		log.Warn("no html input configured")
		return nil, fmt.Errorf("%w: url is empty", etl.ErrSourceUnavailable)
	}

	doc, err := s.fetch(ctx, url)
	if err != nil {
		log.Error("fetch html failed", logger.Error(err))
		return nil, err
	}

	matches := doc.Find(s.opts.Selector)
	if matches.Length() == 0 {
		err := fmt.Errorf("%w: selector %q matched no elements", etl.ErrParseMalformed, s.opts.Selector)
		log.Error("scrape html failed", logger.Error(err))
		return nil, err
	}

	records := make([]etl.SourceRecord, 0, matches.Length())
	matches.Each(func(_ int, el *goquery.Selection) {
		records = append(records, etl.NewSourceRecord(etl.SourceHTML, s.fieldsOf(el)))
	})

	log.Info("html scraped", logger.Int("records", len(records)))
	return records, nil
}

func (s *htmlScrapeSource) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", etl.ErrSourceUnavailable, err)
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http request: %w", etl.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: http %d: %s",
			etl.ErrSourceUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, s.opts.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %w", etl.ErrParseMalformed, err)
	}
	return doc, nil
}

func (s *htmlScrapeSource) fieldsOf(el *goquery.Selection) []string {
	out := make([]string, len(s.opts.Fields))
	for i, f := range s.opts.Fields {
		switch {
		case f == "." || f == "":
			out[i] = collapseSpace(el.Text())
		case strings.HasPrefix(f, "@"):
			v, _ := el.Attr(f[1:])
			out[i] = strings.TrimSpace(v)
		default:
			out[i] = collapseSpace(el.Find(f).First().Text())
		}
	}
	return out
}
