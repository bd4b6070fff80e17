// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/medbot/internal/models"
)

// driverName is go-sqlite3 with a fold() function that lower-cases text the same way
// likePattern does. SQLite's own lower() only folds ASCII.
const driverName = "sqlite3_medbot"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", strings.ToLower, true)
		},
	})
}

const providerColumns = `id, name, designation, speciality, location, fee, keywords, symptom_to_speciality, disease_examples`

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open(driverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty in-memory database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS doctors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		designation TEXT,
		speciality TEXT NOT NULL,
		location TEXT,
		fee INTEGER,
		keywords TEXT,
		symptom_to_speciality TEXT,
		disease_examples TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_doctors_speciality ON doctors(speciality);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProvider(row rowScanner) (*models.Provider, error) {
	var p models.Provider
	var designation, location, keywords, symptoms, diseases sql.NullString
	var fee sql.NullInt64
	if err := row.Scan(&p.ID, &p.Name, &designation, &p.Specialty, &location, &fee, &keywords, &symptoms, &diseases); err != nil {
		return nil, err
	}
	p.Designation = designation.String
	p.Location = location.String
	p.Keywords = keywords.String
	p.Symptoms = symptoms.String
	p.Diseases = diseases.String
	if fee.Valid {
		v := int(fee.Int64)
		p.Fee = &v
	}
	return &p, nil
}

func (s *SQLiteStorage) queryProviders(ctx context.Context, query string, args ...interface{}) ([]*models.Provider, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []*models.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

// ListProviders returns all providers ordered by id.
func (s *SQLiteStorage) ListProviders(ctx context.Context) ([]*models.Provider, error) {
	return s.queryProviders(ctx, `SELECT `+providerColumns+` FROM doctors ORDER BY id`)
}

// GetProvider returns a provider by id.
func (s *SQLiteStorage) GetProvider(ctx context.Context, id int64) (*models.Provider, error) {
	p, err := scanProvider(s.db.QueryRowContext(ctx,
		`SELECT `+providerColumns+` FROM doctors WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetProvidersByIDs returns providers for ids, preserving the order of ids.
func (s *SQLiteStorage) GetProvidersByIDs(ctx context.Context, ids []int64) ([]*models.Provider, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	found, err := s.queryProviders(ctx,
		`SELECT `+providerColumns+` FROM doctors WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*models.Provider, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]*models.Provider, 0, len(found))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok && !seen[id] {
			out = append(out, p)
			seen[id] = true
		}
	}
	return out, nil
}

// SearchProviders filters by keyword and speciality substrings. Both filters apply when set.
func (s *SQLiteStorage) SearchProviders(ctx context.Context, filter models.ProviderFilter) ([]*models.Provider, error) {
	var where []string
	var args []interface{}
	if filter.Keyword != "" {
		where = append(where, `fold(coalesce(keywords, '')) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(filter.Keyword))
	}
	if filter.Specialty != "" {
		where = append(where, `fold(speciality) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(filter.Specialty))
	}
	query := `SELECT ` + providerColumns + ` FROM doctors`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	return s.queryProviders(ctx, query+` ORDER BY id`, args...)
}

// MatchSpecialties returns up to limit providers whose speciality contains any of specialties.
func (s *SQLiteStorage) MatchSpecialties(ctx context.Context, specialties []string, limit int) ([]*models.Provider, error) {
	if len(specialties) == 0 || limit <= 0 {
		return nil, nil
	}
	clauses := make([]string, len(specialties))
	args := make([]interface{}, 0, len(specialties)+1)
	for i, sp := range specialties {
		clauses[i] = `fold(speciality) LIKE ? ESCAPE '\'`
		args = append(args, likePattern(sp))
	}
	args = append(args, limit)
	return s.queryProviders(ctx,
		`SELECT `+providerColumns+` FROM doctors WHERE `+strings.Join(clauses, " OR ")+` ORDER BY id LIMIT ?`, args...)
}

// MatchAnyField returns up to limit providers where name, speciality, keywords or location contains term.
func (s *SQLiteStorage) MatchAnyField(ctx context.Context, term string, limit int) ([]*models.Provider, error) {
	if limit <= 0 {
		return nil, nil
	}
	pattern := likePattern(term)
	return s.queryProviders(ctx,
		`SELECT `+providerColumns+` FROM doctors
		 WHERE fold(name) LIKE ?1 ESCAPE '\'
		    OR fold(speciality) LIKE ?1 ESCAPE '\'
		    OR fold(coalesce(keywords, '')) LIKE ?1 ESCAPE '\'
		    OR fold(coalesce(location, '')) LIKE ?1 ESCAPE '\'
		 ORDER BY id LIMIT ?2`, pattern, limit)
}

// CountProviders returns the total number of providers.
func (s *SQLiteStorage) CountProviders(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM doctors`).Scan(&count)
	return count, err
}

// UpsertProviders inserts or replaces providers in a transaction.
func (s *SQLiteStorage) UpsertProviders(ctx context.Context, providers []*models.Provider) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO doctors (id, name, designation, speciality, location, fee, keywords, symptom_to_speciality, disease_examples)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   designation = excluded.designation,
		   speciality = excluded.speciality,
		   location = excluded.location,
		   fee = excluded.fee,
		   keywords = excluded.keywords,
		   symptom_to_speciality = excluded.symptom_to_speciality,
		   disease_examples = excluded.disease_examples`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range providers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider %q: %w", p.Name, err)
		}
		var id interface{}
		if p.ID != 0 {
			id = p.ID
		}
		var fee interface{}
		if p.Fee != nil {
			fee = *p.Fee
		}
		res, err := stmt.ExecContext(ctx, id, p.Name, p.Designation, p.Specialty, p.Location, fee, p.Keywords, p.Symptoms, p.Diseases)
		if err != nil {
			return err
		}
		if p.ID == 0 {
			newID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			p.ID = newID
		}
	}
	return tx.Commit()
}

// DeleteProvider removes a provider by id.
func (s *SQLiteStorage) DeleteProvider(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM doctors WHERE id = ?`, id)
	return err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// likePattern lower-cases term and wraps it for a LIKE substring match, escaping wildcards.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(term)) + "%"
}
