// Package news proxies finance headlines from NewsAPI.
package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultURL is the NewsAPI "everything" endpoint.
const DefaultURL = "https://newsapi.org/v2/everything"

// DefaultQuery is used when the caller gives no query.
const DefaultQuery = "stocks OR finance OR market"

// ErrUpstream is returned when NewsAPI fails or rejects the request.
var ErrUpstream = errors.New("news: upstream failure")

// Source identifies the publisher of an article.
type Source struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Article is one NewsAPI article, passed through as received.
type Article struct {
	Source      Source    `json:"source"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	URLToImage  string    `json:"urlToImage"`
	PublishedAt time.Time `json:"publishedAt"`
	Content     string    `json:"content"`
}

type everythingResponse struct {
	Status   string    `json:"status"`
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	Articles []Article `json:"articles"`
}

// Client queries NewsAPI.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
	limit   int
}

// NewClient creates a client returning at most limit articles per query.
// A nil client uses a client with a 10s timeout; an empty baseURL uses
// DefaultURL.
func NewClient(baseURL, apiKey string, limit int, client *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if limit <= 0 {
		limit = 10
	}
	return &Client{client: client, baseURL: baseURL, apiKey: apiKey, limit: limit}
}

// Articles returns English articles matching query, most relevant first.
func (c *Client) Articles(ctx context.Context, query string) ([]Article, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		query = DefaultQuery
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("language", "en")
	params.Set("sortBy", "relevance")
	params.Set("apiKey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("news: build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}

	var payload everythingResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: status %d: decode: %v", ErrUpstream, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || payload.Status == "error" {
		return nil, fmt.Errorf("%w: status %d: %s %s", ErrUpstream, resp.StatusCode, payload.Code, payload.Message)
	}

	articles := payload.Articles
	if len(articles) > c.limit {
		articles = articles[:c.limit]
	}
	if articles == nil {
		articles = []Article{}
	}
	return articles, nil
}
