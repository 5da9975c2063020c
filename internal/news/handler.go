package news

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Handler serves GET /api/news?query=
func Handler(c *Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		articles, err := c.Articles(r.Context(), r.URL.Query().Get("query"))
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			slog.Warn("news fetch failed", "err", err)
			w.WriteHeader(http.StatusBadGateway)
			json.NewEncoder(w).Encode(map[string]string{"message": "Error fetching news"})
			return
		}
		json.NewEncoder(w).Encode(articles)
	}
}
