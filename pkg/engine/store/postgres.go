package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hera-erp/configrules/pkg/config"
	"hera-erp/configrules/pkg/rules"
)

// StoreNamePostgres labels the Postgres store in logs and metrics.
const StoreNamePostgres = "postgres"

// EntityTypeConfigurationRule is the core_entities.entity_type of rules.
const EntityTypeConfigurationRule = "configuration_rule"

const pgSelectRules = `
SELECT id::text, organization_id::text, status, metadata, updated_at
FROM core_entities
WHERE organization_id::text = $1
  AND entity_type = 'configuration_rule'
  AND status = 'active'`

type pgBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PostgresStore reads rules from the HERA universal schema, where each rule
// is a core_entities row with entity_type 'configuration_rule' and its
// fields in the metadata column. Every query runs in a read-only
// transaction with app.current_tenant set so row level security applies.
type PostgresStore struct {
	pool   pgBeginner
	closer func()
	pinger func(context.Context) error
	logger *slog.Logger
}

// NewPostgresStore connects to the database described by cfg.
func NewPostgresStore(ctx context.Context, cfg *config.PostgresConfig, logger *slog.Logger) (*PostgresStore, error) {
	if cfg == nil || strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = config.DefaultPostgresConnectTTL
	}
	poolCfg.ConnConfig.ConnectTimeout = connectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	logger.Info("Postgres rule store connected",
		"host", poolCfg.ConnConfig.Host,
		"database", poolCfg.ConnConfig.Database,
		"max_conns", poolCfg.MaxConns,
	)
	return &PostgresStore{
		pool:   pool,
		closer: pool.Close,
		pinger: pool.Ping,
		logger: logger.With("component", "store.postgres"),
	}, nil
}

// FetchActiveRules returns the active rules for one tenant and key.
func (s *PostgresStore) FetchActiveRules(ctx context.Context, tenantID, configKey string) ([]rules.ConfigurationRule, error) {
	var out []rules.ConfigurationRule
	err := s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, pgSelectRules+`
  AND metadata->>'config_key' = $2
ORDER BY id`, tenantID, configKey)
		if err != nil {
			return err
		}
		out, err = s.collect(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch rules: %w", err)
	}
	return out, nil
}

// ListActiveRules returns every active rule of a tenant.
func (s *PostgresStore) ListActiveRules(ctx context.Context, tenantID string) ([]rules.ConfigurationRule, error) {
	var out []rules.ConfigurationRule
	err := s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, pgSelectRules+`
ORDER BY metadata->>'config_key', id`, tenantID)
		if err != nil {
			return err
		}
		out, err = s.collect(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return out, nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	return s.pinger(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	if s.closer != nil {
		s.closer()
	}
}

func (s *PostgresStore) withTenantTx(ctx context.Context, tenantID string, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) collect(rows pgx.Rows) ([]rules.ConfigurationRule, error) {
	defer rows.Close()

	out := []rules.ConfigurationRule{}
	for rows.Next() {
		var (
			row      entityRow
			metadata []byte
		)
		if err := rows.Scan(&row.ID, &row.TenantID, &row.Status, &metadata, &row.UpdatedAt); err != nil {
			return nil, err
		}
		row.Metadata = metadata

		rule, err := ruleFromEntity(row)
		if err != nil {
			s.logger.Warn("skipping unreadable rule entity",
				"rule_id", row.ID,
				"tenant_id", row.TenantID,
				"error", err,
			)
			continue
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// entityRow is one core_entities row.
type entityRow struct {
	ID        string
	TenantID  string
	Status    string
	Metadata  []byte
	UpdatedAt *time.Time
}

// ruleMetadata is the rule part of core_entities.metadata.
type ruleMetadata struct {
	ConfigKey   string         `json:"config_key"`
	RuleType    rules.RuleType `json:"rule_type"`
	Priority    int            `json:"priority"`
	Conditions  any            `json:"conditions"`
	Value       any            `json:"value"`
	Description string         `json:"description"`
}

func ruleFromEntity(row entityRow) (rules.ConfigurationRule, error) {
	var meta ruleMetadata
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &meta); err != nil {
			return rules.ConfigurationRule{}, fmt.Errorf("decode metadata: %w", err)
		}
	}

	doc := rules.RuleDocument{
		ID:          row.ID,
		TenantID:    row.TenantID,
		ConfigKey:   meta.ConfigKey,
		RuleType:    meta.RuleType,
		Status:      rules.Status(row.Status),
		Priority:    meta.Priority,
		Conditions:  meta.Conditions,
		Value:       meta.Value,
		Description: meta.Description,
		UpdatedAt:   row.UpdatedAt,
	}
	if problems := rules.ValidateDocument(doc); len(problems) > 0 {
		return rules.ConfigurationRule{}, &RuleError{Source: "core_entities", RuleID: row.ID, Problems: problems}
	}
	return rules.FromDocument(doc), nil
}
