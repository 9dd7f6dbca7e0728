package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"vault-backup/internal/vb"
)

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", vb.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", vb.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("x: %w", vb.ErrInvalidTarget), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestQueryInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  int
	}{
		{"", 50},
		{"limit=10", 10},
		{"limit=abc", 50},
		{"limit=-3", 50},
		{"limit=99999", 1000},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ui/log?"+tt.query, nil)
		if got := queryInt(r, "limit", defaultLogLimit, maxLogLimit); got != tt.want {
			t.Errorf("queryInt(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestListingCache_Evicts(t *testing.T) {
	t.Parallel()

	c := newListingCache(2)
	c.add("aaaaaaaa", []vb.Entry{{Path: "/a"}})
	c.add("bbbbbbbb", nil)
	c.add("cccccccc", nil)

	if _, ok := c.get("aaaaaaaa"); ok {
		t.Error("oldest entry survived eviction")
	}
	if got, ok := c.get("bbbbbbbb"); !ok || got != nil {
		t.Errorf("get(bbbbbbbb) = %v, %v", got, ok)
	}
	if c.len() != 2 {
		t.Errorf("len() = %d, want 2", c.len())
	}
}

func TestListingCache_SkipsAliases(t *testing.T) {
	t.Parallel()

	c := newListingCache(4)
	c.add("latest", []vb.Entry{{Path: "/a"}})
	if _, ok := c.get("latest"); ok {
		t.Error("alias was cached")
	}
	if c.len() != 0 {
		t.Errorf("len() = %d, want 0", c.len())
	}
}

func TestCacheable(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"latest":   false,
		"":         false,
		"abc1234":  false,
		"4f2a9c1b": true,
		"4F2A9C1B": false,
		"5f3e2a1bc4d0e9f8a7b6c5d4e3f2a1b0c9d8e7f6a5b4c3d2e1f0a9b8c7d6e5f4": true,
	}
	for id, want := range tests {
		if got := cacheable(id); got != want {
			t.Errorf("cacheable(%q) = %v, want %v", id, got, want)
		}
	}
}
