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

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/xssweep/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "xssweep.db"

// ErrDatabaseNotFound is returned when opening a missing database without
// CreateIfNotExists.
var ErrDatabaseNotFound = errors.New("database not found")

// ScanDB provides SQLite-based storage for scan reports.
type ScanDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures ScanDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
func Open(dbDir string, opts Options) (*ScanDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	dsn := dbPath + "?mode=rwc"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &ScanDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return sdb, nil
}

// Path returns the database file path.
func (sdb *ScanDB) Path() string {
	return sdb.dbPath
}

// Close closes the database connection.
func (sdb *ScanDB) Close() error {
	return sdb.db.Close()
}

func (sdb *ScanDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id TEXT NOT NULL UNIQUE,
		target TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		timed_out INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		report_json TEXT NOT NULL,
		risk_summary TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_scans_target ON scans(target);
	CREATE INDEX IF NOT EXISTS idx_scans_timestamp ON scans(timestamp);

	-- Pages discovered by a scan
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id INTEGER NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		kind TEXT NOT NULL,
		status_code INTEGER,
		content_type TEXT,
		parent TEXT,
		formless_hash TEXT,
		excluded INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_pages_scan ON pages(scan_id);

	-- One row per affected page of a check
	CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id INTEGER NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
		plugin TEXT NOT NULL,
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		url TEXT NOT NULL,
		kind TEXT NOT NULL,
		problems TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_findings_scan ON findings(scan_id);
	CREATE INDEX IF NOT EXISTS idx_findings_type ON findings(type);
	`

	_, err := sdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveScanReport stores report with its pages and findings in one
// transaction. Saving the same scan ID twice fails.
func (sdb *ScanDB) SaveScanReport(ctx context.Context, report *model.ScanReport) (err error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}
	riskJSON, err := json.Marshal(riskSummary(report.Summarize()))
	if err != nil {
		return fmt.Errorf("failed to serialize risk summary: %w", err)
	}

	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO scans (scan_id, target, timestamp, timed_out, error, report_json, risk_summary)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.Target,
		report.DateScanned.UTC().Format(time.RFC3339Nano),
		report.TimedOut,
		report.ErrorMessage,
		string(reportJSON),
		string(riskJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save scan report: %w", err)
	}
	rowID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get scan row id: %w", err)
	}

	if err = insertPages(ctx, tx, rowID, report.Pages); err != nil {
		return err
	}
	if err = insertFindings(ctx, tx, rowID, report.PluginResults); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scan report: %w", err)
	}
	return nil
}

func insertPages(ctx context.Context, tx *sql.Tx, scanRowID int64, pages []*model.Page) error {
	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (scan_id, url, kind, status_code, content_type, parent, formless_hash, excluded)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range pages {
		if _, err := stmt.ExecContext(ctx, scanRowID, p.URL, p.Kind.String(), p.StatusCode,
			p.ContentType, p.Parent, p.FormlessHash, p.Excluded); err != nil {
			return fmt.Errorf("failed to insert page %s: %w", p.URL, err)
		}
	}
	return nil
}

func insertFindings(ctx context.Context, tx *sql.Tx, scanRowID int64, results []*model.PluginResult) error {
	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO findings (scan_id, plugin, type, severity, url, kind, problems)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare finding insert: %w", err)
	}
	defer stmt.Close()

	for _, pr := range results {
		for _, c := range pr.Checks {
			for _, page := range c.Pages {
				problems, err := json.Marshal(page.Problems)
				if err != nil {
					return fmt.Errorf("failed to serialize problems: %w", err)
				}
				if _, err := stmt.ExecContext(ctx, scanRowID, pr.Name, c.Type, c.Severity.String(),
					page.URL, page.Kind.String(), string(problems)); err != nil {
					return fmt.Errorf("failed to insert finding: %w", err)
				}
			}
		}
	}
	return nil
}

func riskSummary(s model.Summary) map[string]int {
	return map[string]int{
		"critical": s.CriticalCount,
		"high":     s.HighCount,
		"medium":   s.MediumCount,
		"low":      s.LowCount,
		"info":     s.InfoCount,
	}
}

func decodeReport(reportJSON string) (*model.ScanReport, error) {
	var report model.ScanReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// GetLatestScanReport retrieves the most recent report for target.
// Returns nil if target was never scanned.
func (sdb *ScanDB) GetLatestScanReport(ctx context.Context, target string) (*model.ScanReport, error) {
	var reportJSON string
	err := sdb.db.QueryRowContext(ctx, `
	SELECT report_json FROM scans
	WHERE target = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`, target).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}
	return decodeReport(reportJSON)
}

// GetScanReportByID retrieves a report by its scan ID.
// Returns nil if no such scan exists.
func (sdb *ScanDB) GetScanReportByID(ctx context.Context, scanID string) (*model.ScanReport, error) {
	var reportJSON string
	err := sdb.db.QueryRowContext(ctx, `SELECT report_json FROM scans WHERE scan_id = ?`, scanID).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}
	return decodeReport(reportJSON)
}

// ListScannedTargets returns every target with at least one stored scan.
func (sdb *ScanDB) ListScannedTargets(ctx context.Context) ([]string, error) {
	rows, err := sdb.db.QueryContext(ctx, `SELECT DISTINCT target FROM scans ORDER BY target`)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

// ScanMetadata summarizes a stored scan without loading the report.
type ScanMetadata struct {
	ScanID      string
	Target      string
	Timestamp   time.Time
	TimedOut    bool
	Error       string
	PageCount   int
	RiskSummary map[string]int
}

// GetScanHistory lists the scans of target, newest first.
func (sdb *ScanDB) GetScanHistory(ctx context.Context, target string) ([]ScanMetadata, error) {
	rows, err := sdb.db.QueryContext(ctx, `
	SELECT s.scan_id, s.target, s.timestamp, s.timed_out, COALESCE(s.error, ''), s.risk_summary,
		(SELECT COUNT(*) FROM pages p WHERE p.scan_id = s.id)
	FROM scans s
	WHERE s.target = ?
	ORDER BY s.timestamp DESC, s.id DESC
	`, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var results []ScanMetadata
	for rows.Next() {
		var (
			meta      ScanMetadata
			timestamp string
			riskJSON  sql.NullString
		)
		if err := rows.Scan(&meta.ScanID, &meta.Target, &timestamp, &meta.TimedOut,
			&meta.Error, &riskJSON, &meta.PageCount); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.Timestamp = parseTimestamp(timestamp)

		meta.RiskSummary = make(map[string]int)
		if riskJSON.Valid && riskJSON.String != "" {
			if err := json.Unmarshal([]byte(riskJSON.String), &meta.RiskSummary); err != nil {
				meta.RiskSummary = make(map[string]int)
			}
		}
		results = append(results, meta)
	}
	return results, rows.Err()
}

// FindingRecord is one stored (check, page) pair.
type FindingRecord struct {
	Plugin   string
	Type     string
	Severity string
	URL      string
	Kind     string
	Problems []string
}

// GetFindings returns the findings stored for a scan, ordered by plugin
// and insertion.
func (sdb *ScanDB) GetFindings(ctx context.Context, scanID string) ([]FindingRecord, error) {
	rows, err := sdb.db.QueryContext(ctx, `
	SELECT f.plugin, f.type, f.severity, f.url, f.kind, f.problems
	FROM findings f
	JOIN scans s ON s.id = f.scan_id
	WHERE s.scan_id = ?
	ORDER BY f.plugin, f.id
	`, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get findings: %w", err)
	}
	defer rows.Close()

	var results []FindingRecord
	for rows.Next() {
		var (
			rec      FindingRecord
			problems string
		)
		if err := rows.Scan(&rec.Plugin, &rec.Type, &rec.Severity, &rec.URL, &rec.Kind, &problems); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		if err := json.Unmarshal([]byte(problems), &rec.Problems); err != nil {
			return nil, fmt.Errorf("failed to parse problems: %w", err)
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp parses s with every known format. Returns zero time when
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
