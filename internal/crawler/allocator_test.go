package crawler

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAllocatorAllocate(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 1, 9, 14, 3, 7, 0, time.UTC)

	tests := []struct {
		name string
		url  string
		host string
		leaf string
	}{
		{name: "homepage", url: "https://www.example.com/", host: "www_example_com", leaf: "homepage_140307_0001"},
		{name: "nested path", url: "https://www.example.com/news/world/", host: "www_example_com", leaf: "news_world_140307_0001"},
		{name: "port", url: "http://localhost:8080/a", host: "localhost_8080", leaf: "a_140307_0001"},
		{name: "query", url: "https://example.com/search?q=go", host: "example_com", leaf: "search_q_go_140307_0001"},
		{name: "accents are transliterated", url: "https://example.com/caf%C3%A9", host: "example_com", leaf: "cafe_140307_0001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := NewAllocator("/base")
			got := a.Allocate(tt.url, ts)
			want := filepath.Join("/base", "2025", "01", "09", tt.host, tt.leaf)
			if got != want {
				t.Errorf("Allocate(%q) = %s, want %s", tt.url, got, want)
			}
		})
	}
}

func TestAllocatorUniqueness(t *testing.T) {
	t.Parallel()

	a := NewAllocator(t.TempDir())
	ts := time.Date(2025, 1, 9, 14, 3, 7, 0, time.UTC)

	const n = 50
	paths := make(chan string, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			paths <- a.Allocate("https://example.com/same", ts)
		}()
	}
	wg.Wait()
	close(paths)

	seen := make(map[string]bool, n)
	for p := range paths {
		if seen[p] {
			t.Fatalf("duplicate allocation %s", p)
		}
		seen[p] = true
	}
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	t.Run("fallback for empty", func(t *testing.T) {
		t.Parallel()
		if got := sanitizeName("///", "homepage"); got != "homepage" {
			t.Errorf("sanitizeName() = %q", got)
		}
	})

	t.Run("truncates long names with distinct hashes", func(t *testing.T) {
		t.Parallel()
		a := sanitizeName(strings.Repeat("x", 300)+"a", "p")
		b := sanitizeName(strings.Repeat("x", 300)+"b", "p")
		if len(a) != maxNameLength || len(b) != maxNameLength {
			t.Errorf("lengths = %d, %d, want %d", len(a), len(b), maxNameLength)
		}
		if a == b {
			t.Error("expected distinct truncated names")
		}
	})

	t.Run("replaces unsafe characters", func(t *testing.T) {
		t.Parallel()
		if got := sanitizeName("a b?c*d", "p"); got != "a_b_c_d" {
			t.Errorf("sanitizeName() = %q", got)
		}
	})
}
