package analyzer

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Rendering needs a local Chrome, so these tests are opt-in.
func skipWithoutBrowser(t *testing.T) {
	t.Helper()
	if os.Getenv("PAGECRAWLER_BROWSER_TESTS") != "1" {
		t.Skip("set PAGECRAWLER_BROWSER_TESTS=1 to run browser tests")
	}
}

func TestBrowserAnalyzer(t *testing.T) {
	skipWithoutBrowser(t)

	srv := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a, err := NewBrowserAnalyzer(ctx, WithBrowserTimeout(30*time.Second), WithRenderDelay(0))
	if err != nil {
		t.Fatalf("failed to start browser: %v", err)
	}
	t.Cleanup(func() {
		if err := a.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})

	t.Run("persists rendered page and screenshot", func(t *testing.T) {
		out := t.TempDir()
		analysis, err := a.Analyze(ctx, srv.URL+"/page", out)
		if err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}
		if analysis.Title != "Widgets & Gadgets" {
			t.Errorf("Title = %q", analysis.Title)
		}
		if analysis.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d", analysis.StatusCode)
		}
		for _, name := range []string{analysis.MarkupPath, filepath.Join(out, ScreenshotFileName), filepath.Join(out, InfoFileName)} {
			if _, err := os.Stat(name); err != nil {
				t.Errorf("expected %s: %v", name, err)
			}
		}
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		_, err := a.Analyze(ctx, srv.URL+"/missing", t.TempDir())
		if !errors.Is(err, ErrUnexpectedStatus) {
			t.Errorf("expected ErrUnexpectedStatus, got %v", err)
		}
	})
}

func TestBrowserAnalyzerClosed(t *testing.T) {
	t.Parallel()

	// A zero analyzer that was closed must refuse work without touching Chrome.
	a := &BrowserAnalyzer{closed: true}
	if _, err := a.Analyze(context.Background(), "https://site.test/", t.TempDir()); !errors.Is(err, ErrBrowserClosed) {
		t.Errorf("expected ErrBrowserClosed, got %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
}
