package crawler

import (
	"errors"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// Well-known locations of the raw markup an analyzer persists.
const (
	// RawDirName is the subdirectory of an output location holding raw page data.
	RawDirName = "raw"

	// MarkupFileName is the file name of the persisted page markup.
	MarkupFileName = "page.html"
)

// Extraction is the result of walking one page's markup.
type Extraction struct {
	// Title is the text of the first <title> element.
	Title string

	// Links holds absolute, fragment-free http(s) URLs in document order,
	// each at most once.
	Links []string
}

// Set returns the extracted links as a set.
func (e *Extraction) Set() URLSet {
	return NewURLSet(e.Links...)
}

// ExtractLinks returns the deduplicated set of hyperlinks found in markup,
// resolved against pageURL.
func ExtractLinks(pageURL string, markup io.Reader) (URLSet, error) {
	ext, err := Extract(pageURL, markup)
	if err != nil {
		return URLSet{}, err
	}
	return ext.Set(), nil
}

// Extract walks markup and collects the title and every <a> and <area>
// href. A <base href> changes the resolution base for links that follow it.
func Extract(pageURL string, markup io.Reader) (*Extraction, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return &Extraction{}, err
	}
	doc, err := html.Parse(markup)
	if err != nil {
		return &Extraction{}, err
	}

	ext := &Extraction{Links: make([]string, 0)}
	seen := make(map[string]struct{})

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if ext.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					ext.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "base":
				if href := strings.TrimSpace(getAttr(n, "href")); href != "" {
					if b, err := base.Parse(href); err == nil {
						base = b
					}
				}
			case "a", "area":
				if link := resolveLink(base, getAttr(n, "href")); link != "" {
					if _, dup := seen[link]; !dup {
						seen[link] = struct{}{}
						ext.Links = append(ext.Links, link)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return ext, nil
}

// resolveLink turns an href into an absolute, normalized http(s) URL, or ""
// when the target is not crawlable.
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	if resolved.Hostname() == "" {
		return ""
	}
	return normalizeURL(resolved)
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// FindMarkup returns the path of the persisted markup below dir. The
// canonical raw/page.html location is tried first, then the tree is walked
// for any file named MarkupFileName.
func FindMarkup(dir string) (string, error) {
	canonical := filepath.Join(dir, RawDirName, MarkupFileName)
	if info, err := os.Stat(canonical); err == nil && !info.IsDir() {
		return canonical, nil
	}

	var found string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == MarkupFileName {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipAll) {
		return "", err
	}
	if found == "" {
		return "", ErrMarkupNotFound
	}
	return found, nil
}

// ExtractFile extracts links from the markup stored at path.
// It always returns a usable Extraction; on error it is empty.
func ExtractFile(pageURL, path string) (*Extraction, error) {
	f, err := os.Open(path) //nolint:gosec // path is produced by the analyzer
	if err != nil {
		return &Extraction{}, err
	}
	defer f.Close()
	return Extract(pageURL, f)
}

// ExtractFromDir locates the markup below dir and extracts its links.
// It always returns a usable Extraction; on error it is empty.
func ExtractFromDir(pageURL, dir string) (*Extraction, error) {
	path, err := FindMarkup(dir)
	if err != nil {
		return &Extraction{}, err
	}
	return ExtractFile(pageURL, path)
}
