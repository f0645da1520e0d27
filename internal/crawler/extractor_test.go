package crawler

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	t.Run("extracts title", func(t *testing.T) {
		t.Parallel()

		markup := `<html><head><title> Test Page </title></head><body></body></html>`
		ext, err := Extract("https://site.test/page", strings.NewReader(markup))
		if err != nil {
			t.Fatalf("failed to extract: %v", err)
		}
		if ext.Title != "Test Page" {
			t.Errorf("expected title 'Test Page', got %q", ext.Title)
		}
	})

	t.Run("resolves and normalizes links in document order", func(t *testing.T) {
		t.Parallel()

		markup := `<html><body>
			<a href="/internal">Internal</a>
			<a href="relative/child">Relative</a>
			<a href="https://SITE.test">Root</a>
			<a href="https://other.test/x#section">External</a>
			<map><area href="/area-link"></map>
		</body></html>`

		ext, err := Extract("https://site.test/dir/page", strings.NewReader(markup))
		if err != nil {
			t.Fatalf("failed to extract: %v", err)
		}
		want := []string{
			"https://site.test/internal",
			"https://site.test/dir/relative/child",
			"https://site.test/",
			"https://other.test/x",
			"https://site.test/area-link",
		}
		if !slices.Equal(ext.Links, want) {
			t.Errorf("Links = %v, want %v", ext.Links, want)
		}
	})

	t.Run("drops non crawlable targets", func(t *testing.T) {
		t.Parallel()

		markup := `<html><body>
			<a href="javascript:void(0)">JS</a>
			<a href="JavaScript:alert(1)">JS upper</a>
			<a href="mailto:someone@example.com">Mail</a>
			<a href="tel:+123456">Phone</a>
			<a href="data:text/html,hi">Data</a>
			<a href="#">Hash</a>
			<a href="#top">Anchor</a>
			<a href="">Empty</a>
			<a href="   ">Blank</a>
			<a>No href</a>
			<a href="ftp://files.site.test/x">FTP</a>
			<a href="/kept">Kept</a>
		</body></html>`

		ext, err := Extract("https://site.test/", strings.NewReader(markup))
		if err != nil {
			t.Fatalf("failed to extract: %v", err)
		}
		if !slices.Equal(ext.Links, []string{"https://site.test/kept"}) {
			t.Errorf("Links = %v", ext.Links)
		}
	})

	t.Run("deduplicates after fragment stripping", func(t *testing.T) {
		t.Parallel()

		markup := `<a href="/a">1</a><a href="/a#x">2</a><a href="https://site.test/a">3</a>`
		set, err := ExtractLinks("https://site.test/", strings.NewReader(markup))
		if err != nil {
			t.Fatalf("failed to extract: %v", err)
		}
		if set.Len() != 1 || !set.Contains("https://site.test/a") {
			t.Errorf("set = %v", set.Sorted())
		}
	})

	t.Run("honors base href", func(t *testing.T) {
		t.Parallel()

		markup := `<html><head><base href="https://site.test/docs/"></head>
			<body><a href="intro">Intro</a></body></html>`
		ext, err := Extract("https://site.test/index.html", strings.NewReader(markup))
		if err != nil {
			t.Fatalf("failed to extract: %v", err)
		}
		if !slices.Equal(ext.Links, []string{"https://site.test/docs/intro"}) {
			t.Errorf("Links = %v", ext.Links)
		}
	})

	t.Run("tolerates malformed markup", func(t *testing.T) {
		t.Parallel()

		markup := `<div><a href="/one">one<p><a href='/two'>two</div></span><a href=/three>`
		ext, err := Extract("https://site.test/", strings.NewReader(markup))
		if err != nil {
			t.Fatalf("failed to extract: %v", err)
		}
		if len(ext.Links) != 3 {
			t.Errorf("expected 3 links, got %v", ext.Links)
		}
	})

	t.Run("invalid page url", func(t *testing.T) {
		t.Parallel()

		ext, err := Extract("://bad", strings.NewReader(`<a href="/x">x</a>`))
		if err == nil {
			t.Error("expected error for invalid page URL")
		}
		if ext == nil || len(ext.Links) != 0 {
			t.Errorf("expected empty extraction, got %+v", ext)
		}
	})
}

func TestFindMarkup(t *testing.T) {
	t.Parallel()

	t.Run("canonical location", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		want := writeMarkup(t, dir, `<a href="/x">x</a>`)
		got, err := FindMarkup(dir)
		if err != nil {
			t.Fatalf("FindMarkup() error = %v", err)
		}
		if got != want {
			t.Errorf("FindMarkup() = %s, want %s", got, want)
		}
	})

	t.Run("nested location", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		nested := filepath.Join(dir, "1_raw_data", "snapshot")
		if err := os.MkdirAll(nested, 0o750); err != nil {
			t.Fatal(err)
		}
		want := filepath.Join(nested, MarkupFileName)
		if err := os.WriteFile(want, []byte("<html></html>"), 0o600); err != nil {
			t.Fatal(err)
		}
		got, err := FindMarkup(dir)
		if err != nil {
			t.Fatalf("FindMarkup() error = %v", err)
		}
		if got != want {
			t.Errorf("FindMarkup() = %s, want %s", got, want)
		}
	})

	t.Run("missing markup", func(t *testing.T) {
		t.Parallel()
		_, err := FindMarkup(t.TempDir())
		if !errors.Is(err, ErrMarkupNotFound) {
			t.Errorf("expected ErrMarkupNotFound, got %v", err)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		t.Parallel()
		if _, err := FindMarkup(filepath.Join(t.TempDir(), "nope")); err == nil {
			t.Error("expected error")
		}
	})
}

func TestExtractFromDir(t *testing.T) {
	t.Parallel()

	t.Run("reads persisted markup", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeMarkup(t, dir, `<title>T</title><a href="/next">next</a>`)
		ext, err := ExtractFromDir("https://site.test/", dir)
		if err != nil {
			t.Fatalf("ExtractFromDir() error = %v", err)
		}
		if ext.Title != "T" || !slices.Equal(ext.Links, []string{"https://site.test/next"}) {
			t.Errorf("unexpected extraction %+v", ext)
		}
	})

	t.Run("unreadable markup yields empty set", func(t *testing.T) {
		t.Parallel()
		ext, err := ExtractFromDir("https://site.test/", filepath.Join(t.TempDir(), "missing"))
		if err == nil {
			t.Error("expected error")
		}
		if ext == nil || len(ext.Links) != 0 {
			t.Errorf("expected empty extraction, got %+v", ext)
		}
	})
}

// writeMarkup stores markup at the canonical location below dir.
func writeMarkup(t *testing.T, dir, markup string) string {
	t.Helper()
	raw := filepath.Join(dir, RawDirName)
	if err := os.MkdirAll(raw, 0o750); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(raw, MarkupFileName)
	if err := os.WriteFile(path, []byte(markup), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
