package news_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/news"
)

// newsServer serves n fake articles and returns a func reporting the
// query parameters of the last request.
func newsServer(t *testing.T, n int) (*httptest.Server, func() url.Values) {
	t.Helper()
	var (
		mu   sync.Mutex
		last url.Values
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		last = r.URL.Query()
		mu.Unlock()
		articles := make([]map[string]any, n)
		for i := range articles {
			articles[i] = map[string]any{
				"source":      map[string]any{"id": nil, "name": "Wire"},
				"title":       fmt.Sprintf("headline %d", i),
				"url":         fmt.Sprintf("https://example.com/%d", i),
				"publishedAt": "2024-05-01T12:00:00Z",
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "totalResults": n, "articles": articles})
	}))
	t.Cleanup(srv.Close)
	return srv, func() url.Values {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func TestArticles_DefaultQueryAndLimit(t *testing.T) {
	srv, last := newsServer(t, 25)
	c := news.NewClient(srv.URL, "key", 10, srv.Client())

	articles, err := c.Articles(t.Context(), "  ")
	if err != nil {
		t.Fatalf("articles: %v", err)
	}
	if len(articles) != 10 {
		t.Errorf("expected 10 articles, got %d", len(articles))
	}
	if articles[0].Title != "headline 0" || articles[0].Source.Name != "Wire" {
		t.Errorf("unexpected first article: %+v", articles[0])
	}

	q := last()
	if q.Get("q") != news.DefaultQuery {
		t.Errorf("expected default query, got %q", q.Get("q"))
	}
	if q.Get("language") != "en" || q.Get("sortBy") != "relevance" || q.Get("apiKey") != "key" {
		t.Errorf("unexpected params: %v", q)
	}
}

func TestArticles_CustomQuery(t *testing.T) {
	srv, last := newsServer(t, 2)
	c := news.NewClient(srv.URL, "key", 10, srv.Client())

	articles, err := c.Articles(t.Context(), "nvidia earnings")
	if err != nil {
		t.Fatalf("articles: %v", err)
	}
	if len(articles) != 2 {
		t.Errorf("expected 2 articles, got %d", len(articles))
	}
	if got := last().Get("q"); got != "nvidia earnings" {
		t.Errorf("expected custom query, got %q", got)
	}
}

func TestHandler_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"bad key"}`))
	}))
	defer srv.Close()

	h := news.Handler(news.NewClient(srv.URL, "bad", 10, srv.Client()))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/news", nil))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestHandler_ReturnsArray(t *testing.T) {
	srv, _ := newsServer(t, 3)
	h := news.Handler(news.NewClient(srv.URL, "key", 10, srv.Client()))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/news?query=apple", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var articles []news.Article
	if err := json.NewDecoder(w.Body).Decode(&articles); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(articles) != 3 {
		t.Errorf("expected 3 articles, got %d", len(articles))
	}
}
