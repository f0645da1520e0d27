package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/clock"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/pagecrawler/internal/model"
)

// FileName is the database file created inside the database directory.
const FileName = "pagecrawler.db"

// ErrNotFound is returned when a requested session does not exist.
var ErrNotFound = errors.New("crawl session not found")

// CrawlDB stores crawl reports.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
	clock  clock.Clock
}

// Options configures Open.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL switches the journal to write-ahead logging.
	EnableWAL bool

	// Clock is used by HasRecentCrawl. Nil means the wall clock.
	Clock clock.Clock
}

// DefaultOptions returns the options the CLI uses.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, err)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file. The pragma is applied to
	// every new connection.
	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := dbPath + "?mode=" + mode + "&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	clk := opts.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	cdb := &CrawlDB{db: db, dbPath: dbPath, clock: clk}

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := cdb.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		start_url TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		pages_crawled INTEGER NOT NULL,
		visited INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		termination TEXT NOT NULL,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_start_url ON sessions(start_url);
	CREATE INDEX IF NOT EXISTS idx_sessions_finished_at ON sessions(finished_at);

	-- One row per processed URL
	CREATE TABLE IF NOT EXISTS pages (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		sequence_number INTEGER NOT NULL,
		output_path TEXT NOT NULL,
		title TEXT,
		failed INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		PRIMARY KEY (session_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	`
	_, err := cdb.db.ExecContext(ctx, schema)
	return err
}

// SaveCrawlReport stores a report and its pages in one transaction.
// Saving the same session twice replaces the earlier copy.
func (cdb *CrawlDB) SaveCrawlReport(ctx context.Context, report *model.CrawlReport) (err error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, q := range []string{`DELETE FROM pages WHERE session_id = ?`, `DELETE FROM sessions WHERE id = ?`} {
		if _, err = tx.ExecContext(ctx, q, report.SessionID); err != nil {
			return fmt.Errorf("failed to replace session: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO sessions (id, start_url, started_at, finished_at, pages_crawled, visited, failed, termination, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.SessionID,
		report.StartURL,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		report.PagesCrawled,
		report.VisitedCount,
		report.FailedCount,
		report.Termination.String(),
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (session_id, url, depth, sequence_number, output_path, title, failed, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range report.Pages {
		if _, err = stmt.ExecContext(ctx,
			report.SessionID, p.URL, p.Depth, p.SequenceNumber, p.OutputPath, p.Title, p.Failed, p.Error,
		); err != nil {
			return fmt.Errorf("failed to save page %s: %w", p.URL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}
	return nil
}

// GetCrawlReport loads the report of one session.
func (cdb *CrawlDB) GetCrawlReport(ctx context.Context, sessionID string) (*model.CrawlReport, error) {
	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, `SELECT report_json FROM sessions WHERE id = ?`, sessionID).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl report: %w", err)
	}
	return decodeReport(reportJSON)
}

// GetLatestCrawlReports returns up to n reports for startURL, newest first.
func (cdb *CrawlDB) GetLatestCrawlReports(ctx context.Context, startURL string, n int) ([]*model.CrawlReport, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT report_json FROM sessions
	WHERE start_url = ?
	ORDER BY finished_at DESC, id
	LIMIT ?
	`, startURL, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	var reports []*model.CrawlReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		report, err := decodeReport(reportJSON)
		if err != nil {
			continue // skip malformed rows
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// SessionSummary is a session row without the full report.
type SessionSummary struct {
	ID           string
	StartURL     string
	StartedAt    time.Time
	FinishedAt   time.Time
	PagesCrawled int
	Visited      int
	Failed       int
	Termination  model.Termination
}

// ListSessions returns the sessions of startURL newest first. An empty
// startURL lists every session.
func (cdb *CrawlDB) ListSessions(ctx context.Context, startURL string) ([]SessionSummary, error) {
	query := `
	SELECT id, start_url, started_at, finished_at, pages_crawled, visited, failed, termination
	FROM sessions
	`
	var args []any
	if startURL != "" {
		query += " WHERE start_url = ?"
		args = append(args, startURL)
	}
	query += " ORDER BY finished_at DESC, id"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionSummary
	for rows.Next() {
		var (
			s                    SessionSummary
			started, finished, t string
		)
		if err := rows.Scan(&s.ID, &s.StartURL, &started, &finished, &s.PagesCrawled, &s.Visited, &s.Failed, &t); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.StartedAt = parseTimestamp(started)
		s.FinishedAt = parseTimestamp(finished)
		s.Termination, _ = model.ParseTermination(t) //nolint:errcheck // unknown values read as TerminationNone
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ListStartURLs returns every start URL that has at least one session.
func (cdb *CrawlDB) ListStartURLs(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT start_url FROM sessions ORDER BY start_url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list start URLs: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan start URL: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// HasRecentCrawl reports whether url was analyzed successfully by a session
// that finished within the last d.
func (cdb *CrawlDB) HasRecentCrawl(ctx context.Context, url string, d time.Duration) (bool, error) {
	cutoff := formatTimestamp(cdb.clock.Now().Add(-d))

	var count int
	err := cdb.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM pages p
	JOIN sessions s ON s.id = p.session_id
	WHERE p.url = ? AND p.failed = 0 AND s.finished_at > ?
	`, url, cutoff).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check recent crawl: %w", err)
	}
	return count > 0, nil
}

func decodeReport(s string) (*model.CrawlReport, error) {
	var report model.CrawlReport
	if err := json.Unmarshal([]byte(s), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// storedLayout has a fixed width so that stored timestamps sort as text.
const storedLayout = "2006-01-02 15:04:05.000000000"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(storedLayout)
}

var timestampFormats = []string{
	storedLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// parseTimestamp tries each known layout and returns the zero time when
// none matches.
func parseTimestamp(s string) time.Time {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
