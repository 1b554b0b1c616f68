package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/util"
	"github.com/ppiankov/citecheck/internal/worker"
	"go.uber.org/zap"
)

// maxFeedBytes caps the size of one Atom response
const maxFeedBytes = 10 << 20

// ArxivClient searches the arXiv export API
type ArxivClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *worker.Limiter
	logger     *zap.Logger
}

// NewArxivClient creates a client from the search and proxy config. arXiv asks
// for no more than one request every three seconds; the limiter enforces the
// configured rate per host.
func NewArxivClient(cfg model.SearchConfig, httpCfg model.HTTPConfig, logger *zap.Logger) *ArxivClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ArxivClient{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy),
			},
		},
		limiter: worker.NewLimiter(cfg.RequestsPerSecond, cfg.BurstSize),
		logger:  logger,
	}
}

// Atom feed structures. Fields without a namespace match the Atom elements;
// doi and journal_ref live in the arXiv namespace.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Published  string         `xml:"published"`
	Updated    string         `xml:"updated"`
	Authors    []atomAuthor   `xml:"author"`
	Links      []atomLink     `xml:"link"`
	Categories []atomCategory `xml:"category"`
	DOI        string         `xml:"http://arxiv.org/schemas/atom doi"`
	JournalRef string         `xml:"http://arxiv.org/schemas/atom journal_ref"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

// Search runs one query and returns up to maxResults papers
func (c *ArxivClient) Search(ctx context.Context, query string, maxResults int) ([]model.Paper, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(maxResults))
	reqURL := c.baseURL + "?" + params.Encode()

	if err := c.limiter.Wait(ctx, c.baseURL); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv API error (%d): %s", resp.StatusCode, snippet(string(body)))
	}

	papers, err := parseFeed(body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("arxiv search", zap.String("query", query), zap.Int("results", len(papers)))

	if len(papers) > maxResults {
		papers = papers[:maxResults]
	}
	return papers, nil
}

func parseFeed(body []byte) ([]model.Paper, error) {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse atom feed: %w", err)
	}

	papers := make([]model.Paper, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		// arXiv reports malformed queries as a feed with a single error entry
		if strings.Contains(e.ID, "/api/errors") {
			return nil, fmt.Errorf("arxiv query error: %s", collapse(e.Summary))
		}
		papers = append(papers, e.paper())
	}
	return papers, nil
}

func (e atomEntry) paper() model.Paper {
	p := model.Paper{
		ID:         strings.TrimSpace(e.ID),
		Title:      collapse(e.Title),
		Summary:    collapse(e.Summary),
		DOI:        strings.TrimSpace(e.DOI),
		JournalRef: collapse(e.JournalRef),
	}
	p.Published, _ = time.Parse(time.RFC3339, strings.TrimSpace(e.Published))
	p.Updated, _ = time.Parse(time.RFC3339, strings.TrimSpace(e.Updated))
	for _, a := range e.Authors {
		if name := collapse(a.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	for _, cat := range e.Categories {
		if cat.Term != "" {
			p.Categories = append(p.Categories, cat.Term)
		}
	}
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			p.PDFURL = l.Href
			break
		}
	}
	return p
}

// collapse joins runs of whitespace, including the line breaks arXiv puts
// inside long titles
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func snippet(s string) string {
	s = collapse(s)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
