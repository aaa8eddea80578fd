package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	_ "modernc.org/sqlite"                               // Local SQLite driver

	"github.com/wadjakorntonsri/ngo-site-api/pkg/core/domain"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/metrics"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/ports"
)

// timeLayout sorts lexically in chronological order; all times are UTC.
const timeLayout = "2006-01-02 15:04:05.000"

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type SQLiteRepository struct {
	db *sql.DB
}

// IsRemoteURL reports whether dbURL points at a Turso/libsql server.
func IsRemoteURL(dbURL string) bool {
	return strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://")
}

func NewSQLiteRepository(dbURL string) (*SQLiteRepository, error) {
	driverName := "sqlite"
	if IsRemoteURL(dbURL) {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}
	if driverName == "sqlite" {
		// One writer at a time; also keeps in-memory databases alive.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db}, nil
}

func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ip TEXT NOT NULL,
		country TEXT NOT NULL,
		page TEXT NOT NULL,
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_visits_ip_page_created ON visits(ip, page, created_at);
	CREATE INDEX IF NOT EXISTS idx_visits_country ON visits(country);

	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		body JSON NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
	`
	_, err := db.Exec(query)
	return err
}

// RecordVisitOnce checks the cooldown and inserts in a single statement,
// which SQLite executes atomically under its write lock.
func (r *SQLiteRepository) RecordVisitOnce(ctx context.Context, visit *domain.Visit, window time.Duration) (bool, error) {
	defer metrics.ObserveQuery("record_visit", time.Now())

	createdAt := visit.CreatedAt.UTC()
	cutoff := createdAt.Add(-window)

	query := `INSERT INTO visits (ip, country, page, user_agent, created_at)
			  SELECT ?, ?, ?, ?, ?
			  WHERE NOT EXISTS (
				  SELECT 1 FROM visits WHERE ip = ? AND page = ? AND created_at >= ?
			  )`

	res, err := r.db.ExecContext(ctx, query,
		visit.IP, visit.Country, visit.Page, visit.UserAgent, createdAt.Format(timeLayout),
		visit.IP, visit.Page, cutoff.Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("insert visit: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert visit: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if id, err := res.LastInsertId(); err == nil {
		visit.ID = strconv.FormatInt(id, 10)
	}
	return true, nil
}

func (r *SQLiteRepository) CountVisits(ctx context.Context) (int64, error) {
	defer metrics.ObserveQuery("count_visits", time.Now())

	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM visits`).Scan(&count)
	return count, err
}

func (r *SQLiteRepository) CountDistinctVisitors(ctx context.Context) (int64, error) {
	defer metrics.ObserveQuery("count_distinct_visitors", time.Now())

	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT ip) FROM visits`).Scan(&count)
	return count, err
}

func (r *SQLiteRepository) CountVisitsByCountry(ctx context.Context) ([]domain.CountryCount, error) {
	defer metrics.ObserveQuery("count_visits_by_country", time.Now())

	return r.queryCountryCounts(ctx, `
		SELECT country, COUNT(*) AS c
		FROM visits
		GROUP BY country
		ORDER BY c DESC, country ASC`)
}

func (r *SQLiteRepository) CountUsersByCountry(ctx context.Context) ([]domain.CountryCount, error) {
	defer metrics.ObserveQuery("count_users_by_country", time.Now())

	return r.queryCountryCounts(ctx, `
		SELECT COALESCE(NULLIF(json_extract(body, '$.country'), ''), ?) AS country, COUNT(*) AS c
		FROM documents
		WHERE collection = ?
		GROUP BY country
		ORDER BY c DESC, country ASC`, domain.UnknownCountry, string(domain.CollectionUsers))
}

func (r *SQLiteRepository) queryCountryCounts(ctx context.Context, query string, args ...interface{}) ([]domain.CountryCount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []domain.CountryCount{}
	for rows.Next() {
		var c domain.CountryCount
		if err := rows.Scan(&c.Country, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *SQLiteRepository) DumpVisits(ctx context.Context) ([]domain.Visit, error) {
	query := `SELECT id, ip, country, page, user_agent, created_at FROM visits ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []domain.Visit
	for rows.Next() {
		var v domain.Visit
		var id int64
		var createdAt string
		if err := rows.Scan(&id, &v.IP, &v.Country, &v.Page, &v.UserAgent, &createdAt); err != nil {
			return nil, err
		}
		v.ID = strconv.FormatInt(id, 10)
		if v.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("visit %d: bad created_at %q: %w", id, createdAt, err)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// Count matches filters against top-level fields of the stored JSON body.
func (r *SQLiteRepository) Count(ctx context.Context, collection domain.Collection, filters map[string]interface{}) (int64, error) {
	if !collection.IsContent() {
		return 0, fmt.Errorf("%w: %s", ports.ErrUnknownCollection, collection)
	}
	defer metrics.ObserveQuery("count_"+string(collection), time.Now())

	query := `SELECT COUNT(*) FROM documents WHERE collection = ?`
	args := []interface{}{string(collection)}

	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if !fieldName.MatchString(key) {
			return 0, fmt.Errorf("invalid filter field %q", key)
		}
		query += " AND json_extract(body, '$." + key + "') = ?"
		args = append(args, filters[key])
	}

	var count int64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

func (r *SQLiteRepository) InsertDocuments(ctx context.Context, collection domain.Collection, docs []domain.Document) (int, error) {
	if !collection.IsContent() {
		return 0, fmt.Errorf("%w: %s", ports.ErrUnknownCollection, collection)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(timeLayout)
	query := `INSERT INTO documents (collection, body, created_at) VALUES (?, ?, ?)`
	for i, doc := range docs {
		body, err := json.Marshal(doc)
		if err != nil {
			return 0, fmt.Errorf("document %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, query, string(collection), string(body), now); err != nil {
			return 0, fmt.Errorf("document %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

// Ensure interface compliance
var _ ports.Repository = (*SQLiteRepository)(nil)
