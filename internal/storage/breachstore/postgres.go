package breachstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/platformbuilds/mirador-sla/internal/models"
	"github.com/platformbuilds/mirador-sla/internal/monitoring"
)

// postgresStore is the durable backend. Breach sub-records (notifications,
// penalties, escalations, metadata) are kept as JSONB payloads; the columns
// the ledger filters on are first-class.
type postgresStore struct {
	db *sql.DB
}

const breachSchema = `
CREATE TABLE IF NOT EXISTS sla_breaches (
	id          TEXT PRIMARY KEY,
	sla_id      TEXT NOT NULL,
	status      TEXT NOT NULL,
	start_time  TIMESTAMPTZ NOT NULL,
	payload     JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sla_breaches_sla_id ON sla_breaches (sla_id);
CREATE INDEX IF NOT EXISTS idx_sla_breaches_start_time ON sla_breaches (start_time);
`

func NewPostgresStore(dsn string) (Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, breachSchema); err != nil {
		return nil, fmt.Errorf("ensure breach schema: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &postgresStore{db: db}, nil
}

func (s *postgresStore) Put(ctx context.Context, b *models.Breach) error {
	start := time.Now()
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal breach %s: %w", b.ID, err)
	}

	query := `
		INSERT INTO sla_breaches (id, sla_id, status, start_time, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET sla_id = EXCLUDED.sla_id,
		    status = EXCLUDED.status,
		    start_time = EXCLUDED.start_time,
		    payload = EXCLUDED.payload
	`
	_, err = s.db.ExecContext(ctx, query, b.ID, b.SLAID, string(b.Status), b.StartTime, payload)
	monitoring.RecordStoreOperation("put", time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("upsert breach %s: %w", b.ID, err)
	}
	return nil
}

func (s *postgresStore) Get(ctx context.Context, id string) (*models.Breach, error) {
	start := time.Now()
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM sla_breaches WHERE id = $1`, id).Scan(&payload)
	monitoring.RecordStoreOperation("get", time.Since(start), err == nil || err == sql.ErrNoRows)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("breach %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query breach %s: %w", id, err)
	}

	var b models.Breach
	if err := json.Unmarshal(payload, &b); err != nil {
		return nil, fmt.Errorf("unmarshal breach %s: %w", id, err)
	}
	return &b, nil
}

func (s *postgresStore) List(ctx context.Context, f Filter) ([]*models.Breach, error) {
	start := time.Now()

	query := `SELECT payload FROM sla_breaches WHERE 1=1`
	args := make([]interface{}, 0, 4)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.SLAID != "" {
		query += ` AND sla_id = ` + arg(f.SLAID)
	}
	if len(f.Statuses) > 0 {
		query += ` AND status = ANY(` + arg(pq.Array(statusStrings(f.Statuses))) + `)`
	}
	if !f.From.IsZero() {
		query += ` AND start_time >= ` + arg(f.From)
	}
	if !f.To.IsZero() {
		query += ` AND start_time <= ` + arg(f.To)
	}
	query += ` ORDER BY start_time ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	monitoring.RecordStoreOperation("list", time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("list breaches: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Breach, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan breach row: %w", err)
		}
		var b models.Breach
		if err := json.Unmarshal(payload, &b); err != nil {
			return nil, fmt.Errorf("unmarshal breach row: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (s *postgresStore) Clear(ctx context.Context) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `TRUNCATE sla_breaches`)
	monitoring.RecordStoreOperation("clear", time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("clear breaches: %w", err)
	}
	return nil
}

func statusStrings(statuses []models.BreachStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
