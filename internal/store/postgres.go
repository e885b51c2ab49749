package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/db"
	"github.com/sells-group/leadflow/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	sqlGetLead        = `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	sqlLeadByEmail    = `SELECT ` + leadColumns + ` FROM leads WHERE email = $1 LIMIT 1`
	sqlInsertReply    = `INSERT INTO replies (` + replyColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	sqlSetHandled     = `UPDATE replies SET handled = $1 WHERE id = $2`
	sqlInsertLog      = `INSERT INTO logs (id, type, data, created_at) VALUES ($1, $2, $3, $4)`
	sqlCountReplies   = `SELECT classification, COUNT(*) FROM replies GROUP BY classification`
	sqlGetReply       = `SELECT ` + replyColumns + ` FROM replies WHERE id = $1`
	leadColumnCount   = 26
	postgresBatchSize = 500
)

// preparedStatements are prepared on each new connection for the hot paths
// of ingestion and reply handling.
var preparedStatements = map[string]string{
	"get_lead":          sqlGetLead,
	"lead_by_email":     sqlLeadByEmail,
	"insert_reply":      sqlInsertReply,
	"set_reply_handled": sqlSetHandled,
	"insert_log":        sqlInsertLog,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		// Tables may not exist before the first migrate.
		var exists bool
		if err := conn.QueryRow(ctx, `SELECT to_regclass('public.leads') IS NOT NULL`).Scan(&exists); err != nil || !exists {
			return nil
		}
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	email                 TEXT NOT NULL DEFAULT '',
	first_name            TEXT NOT NULL DEFAULT '',
	last_name             TEXT NOT NULL DEFAULT '',
	company_name          TEXT NOT NULL DEFAULT '',
	company_domain        TEXT NOT NULL DEFAULT '',
	role_title            TEXT NOT NULL DEFAULT '',
	linkedin_url          TEXT NOT NULL DEFAULT '',
	source                TEXT NOT NULL DEFAULT 'manual',
	campaign_tag          TEXT NOT NULL DEFAULT '',
	status                TEXT NOT NULL DEFAULT 'ingested',
	enrichment_error      TEXT NOT NULL DEFAULT '',
	signal_type           TEXT NOT NULL DEFAULT '',
	signal_strength       TEXT NOT NULL DEFAULT '',
	signal_summary        TEXT,
	company_description   TEXT,
	detected_industry     TEXT,
	email_guessed         BOOLEAN NOT NULL DEFAULT false,
	enriched_at           TIMESTAMPTZ,
	score                 INTEGER,
	tier                  TEXT NOT NULL DEFAULT '',
	instantly_campaign_id TEXT NOT NULL DEFAULT '',
	hubspot_contact_id    TEXT NOT NULL DEFAULT '',
	last_reply            TEXT NOT NULL DEFAULT '',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_email ON leads(email) WHERE email <> '';
CREATE INDEX IF NOT EXISTS idx_leads_status_created ON leads(status, created_at);
CREATE INDEX IF NOT EXISTS idx_leads_tier ON leads(tier);
CREATE INDEX IF NOT EXISTS idx_leads_company_source ON leads(company_name, source);

CREATE TABLE IF NOT EXISTS replies (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	lead_id          TEXT REFERENCES leads(id) ON DELETE SET NULL,
	email            TEXT NOT NULL,
	reply_text       TEXT NOT NULL,
	campaign_id      TEXT NOT NULL DEFAULT '',
	classification   TEXT NOT NULL,
	sentiment        TEXT NOT NULL,
	summary          TEXT NOT NULL DEFAULT '',
	suggested_macro  TEXT NOT NULL DEFAULT 'NONE',
	suggested_action TEXT NOT NULL DEFAULT '',
	draft_response   TEXT NOT NULL DEFAULT '',
	handled          BOOLEAN NOT NULL DEFAULT false,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_replies_email ON replies(email);
CREATE INDEX IF NOT EXISTS idx_replies_classification ON replies(classification);

CREATE TABLE IF NOT EXISTS logs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	type       TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_logs_type_created ON logs(type, created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	l, err := scanPostgresLead(s.pool.QueryRow(ctx, sqlGetLead, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return l, nil
}

func (s *PostgresStore) FindLeadByEmail(ctx context.Context, email string) (*model.Lead, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	l, err := scanPostgresLead(s.pool.QueryRow(ctx, sqlLeadByEmail, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find lead by email")
	}
	return l, nil
}

func (s *PostgresStore) FindLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	w := leadWhere(postgresPlaceholder, filter)
	query := `SELECT ` + leadColumns + ` FROM leads` + w.sql() + leadOrder(filter)
	query += w.page(filter.Limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanPostgresLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: find leads iterate")
}

func (s *PostgresStore) CountLeads(ctx context.Context, filter LeadFilter) (int, error) {
	w := leadWhere(postgresPlaceholder, filter)
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads`+w.sql(), w.args...).Scan(&n)
	return n, eris.Wrap(err, "postgres: count leads")
}

func (s *PostgresStore) CountLeadsBy(ctx context.Context, column GroupColumn) (map[string]int, error) {
	if !column.valid() {
		return nil, eris.Errorf("postgres: cannot group leads by %q", column)
	}
	col := string(column)
	rows, err := s.pool.Query(ctx,
		`SELECT `+col+`, COUNT(*) FROM leads WHERE `+col+` <> '' GROUP BY `+col)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: count leads by %s", col)
	}
	return collectPgCounts(rows)
}

func (s *PostgresStore) InsertLead(ctx context.Context, lead *model.Lead) error {
	now := time.Now().UTC()
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (`+leadColumns+`) VALUES (`+placeholders(postgresPlaceholder, leadColumnCount)+`)`,
		leadArgs(lead)...,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return eris.Wrapf(ErrDuplicate, "lead email %s", lead.Email)
		}
		return eris.Wrap(err, "postgres: insert lead")
	}
	return nil
}

// InsertLeads bulk-inserts leads inside a transaction, skipping rows that
// collide with the unique email index. It returns the number inserted.
func (s *PostgresStore) InsertLeads(ctx context.Context, leads []model.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin insert leads")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `INSERT INTO leads (` + leadColumns + `) VALUES (` +
		placeholders(postgresPlaceholder, leadColumnCount) + `) ON CONFLICT DO NOTHING`

	now := time.Now().UTC()
	inserted := 0
	for i := range leads {
		l := &leads[i]
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		l.UpdatedAt = now
		tag, err := tx.Exec(ctx, query, leadArgs(l)...)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: insert lead %s", l.ID)
		}
		inserted += int(tag.RowsAffected())
		if (i+1)%postgresBatchSize == 0 {
			zap.L().Debug("postgres: insert leads progress",
				zap.Int("done", i+1), zap.Int("total", len(leads)))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit insert leads")
	}
	return inserted, nil
}

func (s *PostgresStore) UpdateLead(ctx context.Context, id string, patch model.LeadPatch) error {
	query, args := patchSet(postgresPlaceholder, patch, id, time.Now().UTC())
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return eris.Wrapf(ErrDuplicate, "lead %s", id)
		}
		return eris.Wrapf(err, "postgres: update lead %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	return nil
}

func (s *PostgresStore) InsertReply(ctx context.Context, r *model.Reply) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, sqlInsertReply,
		r.ID, nullable(r.LeadID), normalizeEmail(r.Email), r.ReplyText, r.CampaignID,
		string(r.Classification), string(r.Sentiment), r.Summary, string(r.SuggestedMacro),
		r.SuggestedAction, r.DraftResponse, r.Handled, r.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: insert reply")
}

func (s *PostgresStore) GetReply(ctx context.Context, id string) (*model.Reply, error) {
	r, err := scanPostgresReply(s.pool.QueryRow(ctx, sqlGetReply, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "reply %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get reply %s", id)
	}
	return r, nil
}

func (s *PostgresStore) ListReplies(ctx context.Context, filter ReplyFilter) ([]model.Reply, error) {
	w := replyWhere(postgresPlaceholder, filter)
	query := `SELECT ` + replyColumns + ` FROM replies` + w.sql() + ` ORDER BY created_at DESC`
	query += w.page(filter.Limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list replies")
	}
	defer rows.Close()

	var replies []model.Reply
	for rows.Next() {
		r, err := scanPostgresReply(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan reply")
		}
		replies = append(replies, *r)
	}
	return replies, eris.Wrap(rows.Err(), "postgres: list replies iterate")
}

func (s *PostgresStore) CountRepliesBy(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, sqlCountReplies)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count replies")
	}
	return collectPgCounts(rows)
}

func (s *PostgresStore) SetReplyHandled(ctx context.Context, id string, handled bool) error {
	tag, err := s.pool.Exec(ctx, sqlSetHandled, handled, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: set reply handled %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "reply %s", id)
	}
	return nil
}

func (s *PostgresStore) AppendLog(ctx context.Context, typ model.LogType, data any) (*model.LogEntry, error) {
	payload, err := marshalLogData(data)
	if err != nil {
		return nil, err
	}
	entry := &model.LogEntry{
		ID:        uuid.New().String(),
		Type:      typ,
		Data:      payload,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.pool.Exec(ctx, sqlInsertLog, entry.ID, string(typ), payload, entry.CreatedAt); err != nil {
		return nil, eris.Wrapf(err, "postgres: append %s log", typ)
	}
	return entry, nil
}

func (s *PostgresStore) ListLogs(ctx context.Context, filter LogFilter) ([]model.LogEntry, error) {
	w := &whereBuilder{ph: postgresPlaceholder}
	if filter.Type != "" {
		w.eq("type", string(filter.Type))
	}
	query := `SELECT id, type, data, created_at FROM logs` + w.sql() + ` ORDER BY created_at DESC`
	query += w.page(filter.Limit, 0)

	rows, err := s.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list logs")
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		var data []byte
		if err := rows.Scan(&e.ID, &e.Type, &data, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan log")
		}
		e.Data = json.RawMessage(data)
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list logs iterate")
}

func collectPgCounts(rows pgx.Rows) (map[string]int, error) {
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan count")
		}
		counts[key] = int(n)
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count iterate")
}

func scanPostgresLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	err := row.Scan(
		&l.ID, &l.Email, &l.FirstName, &l.LastName, &l.CompanyName, &l.CompanyDomain,
		&l.RoleTitle, &l.LinkedInURL, &l.Source, &l.CampaignTag, &l.Status,
		&l.EnrichmentError, &l.SignalType, &l.SignalStrength, &l.SignalSummary,
		&l.CompanyDescription, &l.DetectedIndustry, &l.EmailGuessed, &l.EnrichedAt,
		&l.Score, &l.Tier, &l.InstantlyCampaignID, &l.HubSpotContactID, &l.LastReply,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func scanPostgresReply(row pgx.Row) (*model.Reply, error) {
	var r model.Reply
	err := row.Scan(
		&r.ID, &r.LeadID, &r.Email, &r.ReplyText, &r.CampaignID, &r.Classification,
		&r.Sentiment, &r.Summary, &r.SuggestedMacro, &r.SuggestedAction, &r.DraftResponse,
		&r.Handled, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
