//go:build e2e && unix

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// postsAPI is a stand-in for the posts API that counts searches
type postsAPI struct {
	*httptest.Server
	searches atomic.Int64
}

type post struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

var fixturePosts = []post{
	{ID: 1, Title: "react hooks in depth"},
	{ID: 2, Title: "reactive streams"},
	{ID: 3, Title: "rust ownership"},
	{ID: 4, Title: "go channels"},
}

func newPostsAPI(t *testing.T) *postsAPI {
	t.Helper()
	api := &postsAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/posts", func(w http.ResponseWriter, r *http.Request) {
		api.searches.Add(1)
		q := r.URL.Query().Get("title_like")
		out := []post{}
		for _, p := range fixturePosts {
			if strings.Contains(p.Title, q) {
				out = append(out, p)
			}
		}
		writeJSON(w, out)
	})
	mux.HandleFunc("/posts/1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, fixturePosts[0])
	})
	mux.HandleFunc("/users/1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": 1, "name": "Leanne Graham"})
	})
	api.Server = httptest.NewServer(mux)
	t.Cleanup(api.Close)
	return api
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprint(err), http.StatusInternalServerError)
	}
}
