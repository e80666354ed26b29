// Package news fetches candidate articles from a NewsAPI-compatible
// endpoint and selects the first one not seen in recent history.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Candidate is one article eligible for selection and publication.
// Title is the identity used for deduplication.
type Candidate struct {
	Title       string
	Description string
	Source      string
	URL         string
	PublishedAt string
}

// ClientConfig configures the article client.
type ClientConfig struct {
	BaseURL  string
	APIKey   string
	Query    string
	Language string
	PageSize int
}

// Client queries the article endpoint.
type Client struct {
	cfg  ClientConfig
	http *http.Client
	log  *zap.Logger
}

// NewClient returns a client for the configured endpoint.
func NewClient(cfg ClientConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 5
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  log,
	}
}

type articleResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// FetchBatch returns one page of candidates, newest first. Page indices
// start at 1, matching the provider's paging.
func (c *Client) FetchBatch(ctx context.Context, page int) ([]Candidate, error) {
	q := url.Values{}
	q.Set("q", c.cfg.Query)
	q.Set("language", c.cfg.Language)
	q.Set("sortBy", "publishedAt")
	q.Set("pageSize", strconv.Itoa(c.cfg.PageSize))
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}

	endpoint := c.cfg.BaseURL + "/v2/everything?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news endpoint: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var parsed articleResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode news response: %w", err)
	}

	candidates := make([]Candidate, 0, len(parsed.Articles))
	for _, a := range parsed.Articles {
		if a.Title == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			Title:       a.Title,
			Description: a.Description,
			Source:      a.Source.Name,
			URL:         a.URL,
			PublishedAt: a.PublishedAt,
		})
	}

	c.log.Debug("fetched article batch",
		zap.Int("page", page), zap.Int("count", len(candidates)))
	return candidates, nil
}
