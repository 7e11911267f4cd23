package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"hera-erp/configrules/pkg/config"
	"hera-erp/configrules/pkg/rules"
)

// StoreNameSQLite labels the SQLite store in logs and metrics.
const StoreNameSQLite = "sqlite"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS configuration_rules (
	tenant_id   TEXT NOT NULL,
	id          TEXT NOT NULL,
	config_key  TEXT NOT NULL,
	rule_type   TEXT NOT NULL,
	status      TEXT NOT NULL,
	priority    INTEGER NOT NULL DEFAULT 0,
	conditions  TEXT,
	value       TEXT,
	description TEXT NOT NULL DEFAULT '',
	updated_at  TEXT NOT NULL,
	PRIMARY KEY (tenant_id, id)
);

CREATE INDEX IF NOT EXISTS idx_rules_tenant_key ON configuration_rules(tenant_id, config_key, status);
`

const sqliteColumns = `id, tenant_id, config_key, rule_type, status, priority, conditions, value, description, updated_at`

// SQLiteStore keeps rules in an embedded SQLite database. Besides the read
// interface used by the engine it supports the writes needed to import rule
// files.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	logger    *slog.Logger
	closeOnce sync.Once

	fetchStmt *sql.Stmt
	listStmt  *sql.Stmt
}

// NewSQLiteStore opens (creating if needed) the database at cfg.Path.
func NewSQLiteStore(cfg *config.SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if cfg == nil || strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	busyTimeout := cfg.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = config.DefaultSQLiteBusyTimeout
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cfg.Path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		path:   cfg.Path,
		logger: logger.With("component", "store.sqlite"),
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite rule store opened", "path", cfg.Path)
	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.fetchStmt, err = s.db.Prepare(`SELECT ` + sqliteColumns + `
		FROM configuration_rules
		WHERE tenant_id = ? AND config_key = ? AND status = 'active'
		ORDER BY id`)
	if err != nil {
		return fmt.Errorf("failed to prepare fetch statement: %w", err)
	}

	s.listStmt, err = s.db.Prepare(`SELECT ` + sqliteColumns + `
		FROM configuration_rules
		WHERE tenant_id = ? AND status = 'active'
		ORDER BY config_key, id`)
	if err != nil {
		return fmt.Errorf("failed to prepare list statement: %w", err)
	}
	return nil
}

// FetchActiveRules returns the active rules for one tenant and key.
func (s *SQLiteStore) FetchActiveRules(ctx context.Context, tenantID, configKey string) ([]rules.ConfigurationRule, error) {
	rows, err := s.fetchStmt.QueryContext(ctx, tenantID, configKey)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	return scanRules(rows)
}

// ListActiveRules returns every active rule of a tenant.
func (s *SQLiteStore) ListActiveRules(ctx context.Context, tenantID string) ([]rules.ConfigurationRule, error) {
	rows, err := s.listStmt.QueryContext(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	return scanRules(rows)
}

// ListRules returns every rule of a tenant regardless of status.
func (s *SQLiteStore) ListRules(ctx context.Context, tenantID string) ([]rules.ConfigurationRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteColumns+`
		FROM configuration_rules
		WHERE tenant_id = ?
		ORDER BY config_key, id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	return scanRules(rows)
}

// Upsert inserts or replaces one rule and returns its id. An empty id is
// replaced with a generated UUID.
func (s *SQLiteStore) Upsert(ctx context.Context, doc rules.RuleDocument) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id, err := upsertTx(ctx, tx, doc, "upsert")
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Import upserts docs in one transaction. Either every document is stored
// or none is.
func (s *SQLiteStore) Import(ctx context.Context, docs []rules.RuleDocument) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, doc := range docs {
		if _, err := upsertTx(ctx, tx, doc, fmt.Sprintf("import#%d", i)); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("rules imported", "count", len(docs))
	return len(docs), nil
}

// Delete removes one rule.
func (s *SQLiteStore) Delete(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM configuration_rules WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, tenantID, id)
	}
	return nil
}

// Tenants returns every tenant with at least one active rule.
func (s *SQLiteStore) Tenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT tenant_id FROM configuration_rules WHERE status = 'active' ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("query tenants: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.fetchStmt != nil {
			s.fetchStmt.Close()
		}
		if s.listStmt != nil {
			s.listStmt.Close()
		}
		err = s.db.Close()
	})
	return err
}

func upsertTx(ctx context.Context, tx *sql.Tx, doc rules.RuleDocument, source string) (string, error) {
	if strings.TrimSpace(doc.ID) == "" {
		doc.ID = uuid.NewString()
	}
	if problems := rules.ValidateDocument(doc); len(problems) > 0 {
		return "", &RuleError{Source: source, RuleID: doc.ID, Problems: problems}
	}

	// Normalize through the rule type so stored rows use canonical values.
	rule := rules.FromDocument(doc)
	if rule.UpdatedAt.IsZero() {
		rule.UpdatedAt = time.Now().UTC()
	}
	norm := rule.Document()

	conditions, err := marshalNullable(norm.Conditions)
	if err != nil {
		return "", fmt.Errorf("encode conditions of %s: %w", rule.ID, err)
	}
	value, err := marshalNullable(norm.Value)
	if err != nil {
		return "", fmt.Errorf("encode value of %s: %w", rule.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO configuration_rules (`+sqliteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			config_key = excluded.config_key,
			rule_type = excluded.rule_type,
			status = excluded.status,
			priority = excluded.priority,
			conditions = excluded.conditions,
			value = excluded.value,
			description = excluded.description,
			updated_at = excluded.updated_at`,
		rule.ID, rule.TenantID, rule.ConfigKey, string(rule.RuleType), string(rule.Status), rule.Priority,
		conditions, value, rule.Description, rule.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("upsert rule %s: %w", rule.ID, err)
	}
	return rule.ID, nil
}

func marshalNullable(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func scanRules(rows *sql.Rows) ([]rules.ConfigurationRule, error) {
	defer rows.Close()

	out := []rules.ConfigurationRule{}
	for rows.Next() {
		var (
			doc        rules.RuleDocument
			ruleType   string
			status     string
			conditions sql.NullString
			value      sql.NullString
			updatedAt  string
		)
		if err := rows.Scan(&doc.ID, &doc.TenantID, &doc.ConfigKey, &ruleType, &status, &doc.Priority,
			&conditions, &value, &doc.Description, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		doc.RuleType = rules.RuleType(ruleType)
		doc.Status = rules.Status(status)

		if conditions.Valid {
			if err := json.Unmarshal([]byte(conditions.String), &doc.Conditions); err != nil {
				// Undecodable JSON is treated like any other malformed tree.
				doc.Conditions = conditions.String
			}
		}
		if value.Valid {
			if err := json.Unmarshal([]byte(value.String), &doc.Value); err != nil {
				return nil, fmt.Errorf("decode value of rule %s: %w", doc.ID, err)
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			doc.UpdatedAt = &t
		}

		out = append(out, rules.FromDocument(doc))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return out, nil
}

