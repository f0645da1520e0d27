package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"github.com/nao1215/pagecrawler/internal/crawler"
	"github.com/nao1215/pagecrawler/internal/model"
)

const testPage = `<!DOCTYPE html>
<html>
<head>
	<title>Widgets &amp; Gadgets</title>
	<meta name="description" content="All about widgets">
	<style>body { color: red; }</style>
	<script>var hidden = "not text";</script>
</head>
<body>
	<h1>Widgets</h1>
	<p>Hello   <b>world</b></p>
	<a href="/about">About</a>
	<a href="https://other.test/">Other</a>
	<img src="/logo.png">
	<form action="/search"><input name="q"></form>
</body>
</html>`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(testPage))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/page", http.StatusFound)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	})
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/untyped", func(w http.ResponseWriter, _ *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte(`<html><head><title>Sniffed</title></head><body></body></html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPAnalyzer(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	t.Run("persists markup, text and page info", func(t *testing.T) {
		t.Parallel()

		fetched := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		a := NewHTTPAnalyzer(srv.Client(), WithClock(testclock.NewClock(fetched)))
		out := t.TempDir()

		analysis, err := a.Analyze(context.Background(), srv.URL+"/page", out)
		if err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}

		if analysis.OutputDir != out {
			t.Errorf("OutputDir = %q, want %q", analysis.OutputDir, out)
		}
		wantMarkup := filepath.Join(out, crawler.RawDirName, crawler.MarkupFileName)
		if analysis.MarkupPath != wantMarkup {
			t.Errorf("MarkupPath = %q, want %q", analysis.MarkupPath, wantMarkup)
		}
		if analysis.Title != "Widgets & Gadgets" {
			t.Errorf("Title = %q", analysis.Title)
		}
		if analysis.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d", analysis.StatusCode)
		}

		markup, err := os.ReadFile(wantMarkup)
		if err != nil {
			t.Fatalf("failed to read markup: %v", err)
		}
		if string(markup) != testPage {
			t.Error("persisted markup differs from served markup")
		}

		text, err := os.ReadFile(filepath.Join(out, crawler.RawDirName, TextFileName))
		if err != nil {
			t.Fatalf("failed to read text: %v", err)
		}
		if !strings.Contains(string(text), "Hello world") {
			t.Errorf("text snapshot missing body text: %q", text)
		}
		if strings.Contains(string(text), "not text") || strings.Contains(string(text), "color") {
			t.Errorf("text snapshot contains script or style: %q", text)
		}

		data, err := os.ReadFile(filepath.Join(out, InfoFileName))
		if err != nil {
			t.Fatalf("failed to read page info: %v", err)
		}
		var info model.PageInfo
		if err := json.Unmarshal(data, &info); err != nil {
			t.Fatalf("failed to decode page info: %v", err)
		}
		if info.Description != "All about widgets" {
			t.Errorf("Description = %q", info.Description)
		}
		if info.LinkCount != 2 || info.FormCount != 1 || info.ImageCount != 1 {
			t.Errorf("counts = %d/%d/%d, want 2/1/1", info.LinkCount, info.FormCount, info.ImageCount)
		}
		if info.Size != len(testPage) || len(info.Hash) != 64 {
			t.Errorf("size %d hash %q", info.Size, info.Hash)
		}
		if info.Analyzer != NameHTTP {
			t.Errorf("Analyzer = %q", info.Analyzer)
		}
		if !info.FetchedAt.Equal(fetched) {
			t.Errorf("FetchedAt = %v, want %v", info.FetchedAt, fetched)
		}
	})

	t.Run("persisted markup feeds the link extractor", func(t *testing.T) {
		t.Parallel()

		a := NewHTTPAnalyzer(srv.Client())
		out := t.TempDir()
		pageURL := srv.URL + "/page"
		if _, err := a.Analyze(context.Background(), pageURL, out); err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}

		ext, err := crawler.ExtractFromDir(pageURL, out)
		if err != nil {
			t.Fatalf("ExtractFromDir failed: %v", err)
		}
		want := []string{srv.URL + "/about", "https://other.test/"}
		if !slices.Equal(ext.Links, want) {
			t.Errorf("Links = %v, want %v", ext.Links, want)
		}
	})

	t.Run("records final URL after redirect", func(t *testing.T) {
		t.Parallel()

		a := NewHTTPAnalyzer(srv.Client())
		out := t.TempDir()
		if _, err := a.Analyze(context.Background(), srv.URL+"/moved", out); err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}

		data, err := os.ReadFile(filepath.Join(out, InfoFileName))
		if err != nil {
			t.Fatalf("failed to read page info: %v", err)
		}
		var info model.PageInfo
		if err := json.Unmarshal(data, &info); err != nil {
			t.Fatalf("failed to decode page info: %v", err)
		}
		if info.URL != srv.URL+"/moved" || info.FinalURL != srv.URL+"/page" {
			t.Errorf("URL %q FinalURL %q", info.URL, info.FinalURL)
		}
	})

	t.Run("sniffs missing content type", func(t *testing.T) {
		t.Parallel()

		a := NewHTTPAnalyzer(srv.Client())
		analysis, err := a.Analyze(context.Background(), srv.URL+"/untyped", t.TempDir())
		if err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}
		if analysis.Title != "Sniffed" {
			t.Errorf("Title = %q", analysis.Title)
		}
	})

	t.Run("non-2xx is an error and writes nothing", func(t *testing.T) {
		t.Parallel()

		a := NewHTTPAnalyzer(srv.Client())
		out := filepath.Join(t.TempDir(), "page")
		_, err := a.Analyze(context.Background(), srv.URL+"/missing", out)
		if !errors.Is(err, ErrUnexpectedStatus) {
			t.Fatalf("expected ErrUnexpectedStatus, got %v", err)
		}
		if _, err := os.Stat(out); !os.IsNotExist(err) {
			t.Errorf("expected no output directory, stat err = %v", err)
		}
	})

	t.Run("non-HTML is an error", func(t *testing.T) {
		t.Parallel()

		a := NewHTTPAnalyzer(srv.Client())
		_, err := a.Analyze(context.Background(), srv.URL+"/data.json", t.TempDir())
		if !errors.Is(err, ErrNotHTML) {
			t.Fatalf("expected ErrNotHTML, got %v", err)
		}
	})

	t.Run("truncates bodies over the limit", func(t *testing.T) {
		t.Parallel()

		a := NewHTTPAnalyzer(srv.Client(), WithMaxBodySize(64))
		out := t.TempDir()
		analysis, err := a.Analyze(context.Background(), srv.URL+"/page", out)
		if err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}
		markup, err := os.ReadFile(analysis.MarkupPath)
		if err != nil {
			t.Fatalf("failed to read markup: %v", err)
		}
		if len(markup) != 64 {
			t.Errorf("markup length = %d, want 64", len(markup))
		}
	})

	t.Run("cancelled context fails the fetch", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		a := NewHTTPAnalyzer(srv.Client())
		if _, err := a.Analyze(ctx, srv.URL+"/page", t.TempDir()); err == nil {
			t.Error("expected an error for a cancelled context")
		}
	})
}

func TestIsHTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		want        bool
	}{
		{"text/html", true},
		{"text/html; charset=utf-8", true},
		{"TEXT/HTML", true},
		{"application/xhtml+xml", true},
		{"text/html;;broken", true},
		{"application/json", false},
		{"text/plain; charset=utf-8", false},
		{"image/png", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			t.Parallel()

			if got := isHTML(tt.contentType); got != tt.want {
				t.Errorf("isHTML(%q) = %v, want %v", tt.contentType, got, tt.want)
			}
		})
	}
}

func TestTextExtractor(t *testing.T) {
	t.Parallel()

	e := newTextExtractor()
	got := e.Text([]byte(`<p>Fish &amp; chips</p><noscript>enable js</noscript>
		<div>  two
		lines </div>`))
	if got != "Fish & chips two lines" {
		t.Errorf("Text() = %q", got)
	}
}
