package analyzer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/pagecrawler/internal/crawler"
	"github.com/nao1215/pagecrawler/internal/model"
)

const (
	// TextFileName holds the visible text next to the raw markup.
	TextFileName = "page.txt"

	// InfoFileName holds model.PageInfo as JSON.
	InfoFileName = "page_info.json"

	// ScreenshotFileName holds the browser capture.
	ScreenshotFileName = "screenshot.png"
)

const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// inspect fills the markup-derived fields of info.
func inspect(info *model.PageInfo, markup []byte) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return fmt.Errorf("failed to parse markup: %w", err)
	}

	info.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		info.Description = strings.TrimSpace(desc)
	} else if desc, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		info.Description = strings.TrimSpace(desc)
	}
	info.LinkCount = doc.Find("a[href], area[href]").Length()
	info.FormCount = doc.Find("form").Length()
	info.ImageCount = doc.Find("img").Length()

	sum := sha256.Sum256(markup)
	info.Size = len(markup)
	info.Hash = hex.EncodeToString(sum[:])
	return nil
}

// persist writes the raw markup, the text snapshot and page_info.json into
// outputDir and returns the crawler handle for them.
func persist(outputDir string, markup []byte, info *model.PageInfo, text *textExtractor) (*crawler.Analysis, error) {
	rawDir := filepath.Join(outputDir, crawler.RawDirName)
	if err := os.MkdirAll(rawDir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := inspect(info, markup); err != nil {
		return nil, err
	}

	markupPath := filepath.Join(rawDir, crawler.MarkupFileName)
	if err := os.WriteFile(markupPath, markup, filePerm); err != nil {
		return nil, fmt.Errorf("failed to write markup: %w", err)
	}
	if err := os.WriteFile(filepath.Join(rawDir, TextFileName), []byte(text.Text(markup)), filePerm); err != nil {
		return nil, fmt.Errorf("failed to write text snapshot: %w", err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal page info: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outputDir, InfoFileName), data, filePerm); err != nil {
		return nil, fmt.Errorf("failed to write page info: %w", err)
	}

	return &crawler.Analysis{
		OutputDir:  outputDir,
		MarkupPath: markupPath,
		Title:      info.Title,
		StatusCode: info.StatusCode,
	}, nil
}
