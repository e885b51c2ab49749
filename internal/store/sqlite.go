package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadflow/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                    TEXT PRIMARY KEY,
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
	email_guessed         INTEGER NOT NULL DEFAULT 0,
	enriched_at           DATETIME,
	score                 INTEGER,
	tier                  TEXT NOT NULL DEFAULT '',
	instantly_campaign_id TEXT NOT NULL DEFAULT '',
	hubspot_contact_id    TEXT NOT NULL DEFAULT '',
	last_reply            TEXT NOT NULL DEFAULT '',
	created_at            DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_email ON leads(email) WHERE email <> '';
CREATE INDEX IF NOT EXISTS idx_leads_status_created ON leads(status, created_at);
CREATE INDEX IF NOT EXISTS idx_leads_tier ON leads(tier);
CREATE INDEX IF NOT EXISTS idx_leads_company_source ON leads(company_name, source);

CREATE TABLE IF NOT EXISTS replies (
	id               TEXT PRIMARY KEY,
	lead_id          TEXT,
	email            TEXT NOT NULL,
	reply_text       TEXT NOT NULL,
	campaign_id      TEXT NOT NULL DEFAULT '',
	classification   TEXT NOT NULL,
	sentiment        TEXT NOT NULL,
	summary          TEXT NOT NULL DEFAULT '',
	suggested_macro  TEXT NOT NULL DEFAULT 'NONE',
	suggested_action TEXT NOT NULL DEFAULT '',
	draft_response   TEXT NOT NULL DEFAULT '',
	handled          INTEGER NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_replies_email ON replies(email);
CREATE INDEX IF NOT EXISTS idx_replies_classification ON replies(classification);

CREATE TABLE IF NOT EXISTS logs (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_logs_type_created ON logs(type, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	l, err := scanSQLiteLead(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return l, nil
}

func (s *SQLiteStore) FindLeadByEmail(ctx context.Context, email string) (*model.Lead, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE email = ? LIMIT 1`, email)
	l, err := scanSQLiteLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find lead by email")
	}
	return l, nil
}

func (s *SQLiteStore) FindLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	w := leadWhere(sqlitePlaceholder, filter)
	query := `SELECT ` + leadColumns + ` FROM leads` + w.sql() + leadOrder(filter)
	query += w.page(filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: find leads iterate")
}

func (s *SQLiteStore) CountLeads(ctx context.Context, filter LeadFilter) (int, error) {
	w := leadWhere(sqlitePlaceholder, filter)
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`+w.sql(), w.args...).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count leads")
}

func (s *SQLiteStore) CountLeadsBy(ctx context.Context, column GroupColumn) (map[string]int, error) {
	if !column.valid() {
		return nil, eris.Errorf("sqlite: cannot group leads by %q", column)
	}
	col := string(column)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+col+`, COUNT(*) FROM leads WHERE `+col+` <> '' GROUP BY `+col)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: count leads by %s", col)
	}
	return collectCounts(rows)
}

func (s *SQLiteStore) InsertLead(ctx context.Context, lead *model.Lead) error {
	now := time.Now().UTC()
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (`+leadColumns+`) VALUES (`+placeholders(sqlitePlaceholder, 26)+`)`,
		leadArgs(lead)...,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return eris.Wrapf(ErrDuplicate, "lead email %s", lead.Email)
		}
		return eris.Wrap(err, "sqlite: insert lead")
	}
	return nil
}

func (s *SQLiteStore) UpdateLead(ctx context.Context, id string, patch model.LeadPatch) error {
	query, args := patchSet(sqlitePlaceholder, patch, id, time.Now().UTC())
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return eris.Wrapf(ErrDuplicate, "lead %s", id)
		}
		return eris.Wrapf(err, "sqlite: update lead %s", id)
	}
	return checkRowsAffected(res, "lead", id)
}

func (s *SQLiteStore) InsertReply(ctx context.Context, r *model.Reply) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO replies (`+replyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, nullable(r.LeadID), normalizeEmail(r.Email), r.ReplyText, r.CampaignID,
		string(r.Classification), string(r.Sentiment), r.Summary, string(r.SuggestedMacro),
		r.SuggestedAction, r.DraftResponse, r.Handled, r.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: insert reply")
}

func (s *SQLiteStore) GetReply(ctx context.Context, id string) (*model.Reply, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+replyColumns+` FROM replies WHERE id = ?`, id)
	r, err := scanSQLiteReply(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "reply %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get reply %s", id)
	}
	return r, nil
}

func (s *SQLiteStore) ListReplies(ctx context.Context, filter ReplyFilter) ([]model.Reply, error) {
	w := replyWhere(sqlitePlaceholder, filter)
	query := `SELECT ` + replyColumns + ` FROM replies` + w.sql() + ` ORDER BY created_at DESC`
	query += w.page(filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list replies")
	}
	defer rows.Close()

	var replies []model.Reply
	for rows.Next() {
		r, err := scanSQLiteReply(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan reply")
		}
		replies = append(replies, *r)
	}
	return replies, eris.Wrap(rows.Err(), "sqlite: list replies iterate")
}

func (s *SQLiteStore) CountRepliesBy(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT classification, COUNT(*) FROM replies GROUP BY classification`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count replies")
	}
	return collectCounts(rows)
}

func (s *SQLiteStore) SetReplyHandled(ctx context.Context, id string, handled bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE replies SET handled = ? WHERE id = ?`, handled, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set reply handled %s", id)
	}
	return checkRowsAffected(res, "reply", id)
}

func (s *SQLiteStore) AppendLog(ctx context.Context, typ model.LogType, data any) (*model.LogEntry, error) {
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
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO logs (id, type, data, created_at) VALUES (?, ?, ?, ?)`,
		entry.ID, string(typ), string(payload), entry.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: append %s log", typ)
	}
	return entry, nil
}

func (s *SQLiteStore) ListLogs(ctx context.Context, filter LogFilter) ([]model.LogEntry, error) {
	w := &whereBuilder{ph: sqlitePlaceholder}
	if filter.Type != "" {
		w.eq("type", string(filter.Type))
	}
	query := `SELECT id, type, data, created_at FROM logs` + w.sql() + ` ORDER BY created_at DESC`
	query += w.page(filter.Limit, 0)

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list logs")
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		var data string
		if err := rows.Scan(&e.ID, &e.Type, &data, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan log")
		}
		e.Data = json.RawMessage(data)
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list logs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func collectCounts(rows *sql.Rows) (map[string]int, error) {
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan count")
		}
		counts[key] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count iterate")
}

func scanSQLiteLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var summary, description, industry sql.NullString
	var enrichedAt sql.NullTime
	var score sql.NullInt64

	err := row.Scan(
		&l.ID, &l.Email, &l.FirstName, &l.LastName, &l.CompanyName, &l.CompanyDomain,
		&l.RoleTitle, &l.LinkedInURL, &l.Source, &l.CampaignTag, &l.Status,
		&l.EnrichmentError, &l.SignalType, &l.SignalStrength, &summary, &description,
		&industry, &l.EmailGuessed, &enrichedAt, &score, &l.Tier,
		&l.InstantlyCampaignID, &l.HubSpotContactID, &l.LastReply, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if summary.Valid {
		l.SignalSummary = &summary.String
	}
	if description.Valid {
		l.CompanyDescription = &description.String
	}
	if industry.Valid {
		l.DetectedIndustry = &industry.String
	}
	if enrichedAt.Valid {
		t := enrichedAt.Time.UTC()
		l.EnrichedAt = &t
	}
	if score.Valid {
		v := int(score.Int64)
		l.Score = &v
	}
	return &l, nil
}

func scanSQLiteReply(row scannable) (*model.Reply, error) {
	var r model.Reply
	var leadID sql.NullString
	err := row.Scan(
		&r.ID, &leadID, &r.Email, &r.ReplyText, &r.CampaignID, &r.Classification,
		&r.Sentiment, &r.Summary, &r.SuggestedMacro, &r.SuggestedAction, &r.DraftResponse,
		&r.Handled, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if leadID.Valid {
		r.LeadID = &leadID.String
	}
	return &r, nil
}
