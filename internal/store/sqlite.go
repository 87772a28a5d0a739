package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/raptorflow/lead-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Per-lead mutation
// serialization relies on SQLite's single-writer model with busy_timeout.
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
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	website    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS signals (
	id          TEXT PRIMARY KEY,
	company_id  TEXT REFERENCES companies(id),
	source_type TEXT NOT NULL,
	source_url  TEXT,
	raw_text    TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS leads (
	id                    TEXT PRIMARY KEY,
	company_id            TEXT REFERENCES companies(id),
	signal_id             TEXT REFERENCES signals(id),
	score_fit             REAL NOT NULL DEFAULT 0,
	score_pain            REAL NOT NULL DEFAULT 0,
	score_data_quality    REAL NOT NULL DEFAULT 0,
	total_score           REAL NOT NULL DEFAULT 0,
	score_bucket          TEXT NOT NULL DEFAULT 'parked',
	icp_match             INTEGER NOT NULL DEFAULT 0,
	role_type             TEXT,
	pain_tags             TEXT,
	situation             TEXT,
	problem               TEXT,
	implication           TEXT,
	need_payoff           TEXT,
	economic_buyer_guess  TEXT,
	key_pain              TEXT,
	heuristic_adjustments TEXT,
	context_dossier       TEXT,
	challenger_insight    TEXT,
	reframe_suggestion    TEXT,
	status                TEXT NOT NULL DEFAULT 'new',
	notes                 TEXT,
	manual_score_override REAL,
	override_reason       TEXT,
	auto_parked_at        DATETIME,
	created_at            DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS score_overrides (
	id             TEXT PRIMARY KEY,
	lead_id        TEXT NOT NULL REFERENCES leads(id),
	actor          TEXT NOT NULL,
	original_score REAL NOT NULL,
	override_score REAL NOT NULL,
	reason         TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS funding_events (
	id             TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL REFERENCES companies(id),
	event_type     TEXT NOT NULL,
	announced_date DATETIME NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS icp_profiles (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	size_buckets    TEXT,
	industries      TEXT,
	pain_keywords   TEXT,
	hiring_keywords TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_score_bucket ON leads(score_bucket);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
CREATE INDEX IF NOT EXISTS idx_signals_company_id ON signals(company_id);
CREATE INDEX IF NOT EXISTS idx_score_overrides_lead_id ON score_overrides(lead_id);
CREATE INDEX IF NOT EXISTS idx_funding_events_company_id ON funding_events(company_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetOrCreateCompany(ctx context.Context, name, website string) (*model.Company, error) {
	var c model.Company
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, COALESCE(website, ''), created_at FROM companies WHERE name = ?`,
		name,
	).Scan(&c.ID, &c.Name, &c.Website, &c.CreatedAt)
	if err == nil {
		return &c, nil
	}
	if err != sql.ErrNoRows {
		return nil, eris.Wrapf(err, "sqlite: get company %s", name)
	}

	c = model.Company{
		ID:        uuid.New().String(),
		Name:      name,
		Website:   website,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO companies (id, name, website, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.Website, c.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert company %s", name)
	}
	return &c, nil
}

func (s *SQLiteStore) CreateSignal(ctx context.Context, companyID string, sig model.Signal) (*model.SignalRecord, error) {
	rec := model.SignalRecord{
		ID:         uuid.New().String(),
		CompanyID:  companyID,
		SourceType: sig.SourceType,
		SourceURL:  sig.SourceURL,
		RawText:    sig.Text,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signals (id, company_id, source_type, source_url, raw_text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, nullString(rec.CompanyID), string(rec.SourceType), rec.SourceURL, rec.RawText, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert signal")
	}
	return &rec, nil
}

func (s *SQLiteStore) CreateLead(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	if lead.Status == "" {
		lead.Status = model.StatusNew
	}

	painTags, err := json.Marshal(lead.PainTags)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal pain tags")
	}
	adjustments, err := json.Marshal(lead.HeuristicAdjustments)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal adjustments")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (
			id, company_id, signal_id,
			score_fit, score_pain, score_data_quality, total_score, score_bucket,
			icp_match, role_type, pain_tags, situation, problem, implication,
			need_payoff, economic_buyer_guess, key_pain, heuristic_adjustments,
			context_dossier, challenger_insight, reframe_suggestion,
			status, notes, manual_score_override, override_reason, auto_parked_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, nullString(lead.CompanyID), nullString(lead.SignalID),
		lead.ScoreFit, lead.ScorePain, lead.ScoreDataQuality, lead.TotalScore, string(lead.ScoreBucket),
		lead.ICPMatch, lead.RoleType, string(painTags), lead.Situation, lead.Problem, lead.Implication,
		lead.NeedPayoff, lead.EconomicBuyerGuess, lead.KeyPain, string(adjustments),
		lead.ContextDossier, lead.ChallengerInsight, lead.ReframeSuggestion,
		string(lead.Status), lead.Notes, lead.ManualScoreOverride, lead.OverrideReason, lead.AutoParkedAt,
		lead.CreatedAt, lead.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert lead")
	}
	return lead, nil
}

const leadColumns = `
	id, COALESCE(company_id, ''), COALESCE(signal_id, ''),
	score_fit, score_pain, score_data_quality, total_score, score_bucket,
	icp_match, COALESCE(role_type, ''), COALESCE(pain_tags, '[]'),
	COALESCE(situation, ''), COALESCE(problem, ''), COALESCE(implication, ''),
	COALESCE(need_payoff, ''), COALESCE(economic_buyer_guess, ''), COALESCE(key_pain, ''),
	COALESCE(heuristic_adjustments, '[]'),
	COALESCE(context_dossier, ''), COALESCE(challenger_insight, ''), COALESCE(reframe_suggestion, ''),
	status, COALESCE(notes, ''), manual_score_override, COALESCE(override_reason, ''), auto_parked_at,
	created_at, updated_at`

func (s *SQLiteStore) GetLead(ctx context.Context, leadID string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = ?`, leadID,
	)
	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", leadID)
	}
	return lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Bucket != "" {
		query += ` AND score_bucket = ?`
		args = append(args, string(filter.Bucket))
	}
	if filter.MinScore > 0 {
		query += ` AND total_score >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY total_score DESC, created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) UpdateLeadStatus(ctx context.Context, leadID string, status model.LeadStatus, notes string) error {
	query := `UPDATE leads SET status = ?, updated_at = ?`
	args := []any{string(status), time.Now().UTC()}
	if notes != "" {
		query += `, notes = ?`
		args = append(args, notes)
	}
	query += ` WHERE id = ?`
	args = append(args, leadID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead status %s", leadID)
	}
	return checkRowsAffected(res, leadID)
}

func (s *SQLiteStore) UpdateLeadScore(ctx context.Context, leadID string, score float64, bucket model.ScoreBucket, override *float64, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET total_score = ?, score_bucket = ?, manual_score_override = ?, override_reason = ?, updated_at = ?
		 WHERE id = ?`,
		score, string(bucket), override, reason, time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead score %s", leadID)
	}
	return checkRowsAffected(res, leadID)
}

func (s *SQLiteStore) UpdateLeadDossier(ctx context.Context, leadID, dossier, challengerInsight, reframeSuggestion string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET context_dossier = ?, challenger_insight = ?, reframe_suggestion = ?, updated_at = ?
		 WHERE id = ?`,
		dossier, challengerInsight, reframeSuggestion, time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead dossier %s", leadID)
	}
	return checkRowsAffected(res, leadID)
}

func (s *SQLiteStore) ListAutoParkCandidates(ctx context.Context, cutoff time.Time) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE status = ? AND created_at < ? AND auto_parked_at IS NULL
		 ORDER BY created_at ASC`,
		string(model.StatusNew), cutoff,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list auto-park candidates")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: candidates iterate")
}

func (s *SQLiteStore) AutoParkLead(ctx context.Context, leadID, note string, at time.Time) error {
	// The status and auto_parked_at guards keep the sweep idempotent under
	// overlapping runs.
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads
		 SET status = ?, auto_parked_at = ?,
		     notes = CASE WHEN COALESCE(notes, '') = '' THEN ? ELSE notes || char(10) || ? END,
		     updated_at = ?
		 WHERE id = ? AND status = ? AND auto_parked_at IS NULL`,
		string(model.StatusParked), at, note, note, at, leadID, string(model.StatusNew),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: auto-park lead %s", leadID)
	}
	return checkRowsAffected(res, leadID)
}

func (s *SQLiteStore) CreateScoreOverride(ctx context.Context, o model.ScoreOverride) (*model.ScoreOverride, error) {
	o.ID = uuid.New().String()
	o.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO score_overrides (id, lead_id, actor, original_score, override_score, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.LeadID, o.Actor, o.OriginalScore, o.OverrideScore, o.Reason, o.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert score override for lead %s", o.LeadID)
	}
	return &o, nil
}

func (s *SQLiteStore) ListScoreOverrides(ctx context.Context, leadID string) ([]model.ScoreOverride, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, actor, original_score, override_score, COALESCE(reason, ''), created_at
		 FROM score_overrides WHERE lead_id = ? ORDER BY created_at DESC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list overrides for lead %s", leadID)
	}
	defer rows.Close()

	var overrides []model.ScoreOverride
	for rows.Next() {
		var o model.ScoreOverride
		if err := rows.Scan(&o.ID, &o.LeadID, &o.Actor, &o.OriginalScore, &o.OverrideScore, &o.Reason, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan override")
		}
		overrides = append(overrides, o)
	}
	return overrides, eris.Wrap(rows.Err(), "sqlite: overrides iterate")
}

func (s *SQLiteStore) CreateFundingEvent(ctx context.Context, companyID, eventType string, announced time.Time) (*model.FundingEvent, error) {
	ev := model.FundingEvent{
		ID:            uuid.New().String(),
		CompanyID:     companyID,
		EventType:     eventType,
		AnnouncedDate: announced,
		CreatedAt:     time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO funding_events (id, company_id, event_type, announced_date, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.CompanyID, ev.EventType, ev.AnnouncedDate, ev.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert funding event for company %s", companyID)
	}
	return &ev, nil
}

func (s *SQLiteStore) HasRecentFunding(ctx context.Context, companyID string, since time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM funding_events WHERE company_id = ? AND announced_date >= ?`,
		companyID, since,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: recent funding for company %s", companyID)
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListICPProfiles(ctx context.Context) ([]model.ICPProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(size_buckets, '[]'), COALESCE(industries, '[]'),
		        COALESCE(pain_keywords, '[]'), COALESCE(hiring_keywords, '[]'), created_at
		 FROM icp_profiles ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list icp profiles")
	}
	defer rows.Close()

	var profiles []model.ICPProfile
	for rows.Next() {
		p, err := scanICPProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, eris.Wrap(rows.Err(), "sqlite: icp profiles iterate")
}

func (s *SQLiteStore) CreateICPProfile(ctx context.Context, p model.ICPProfile) (*model.ICPProfile, error) {
	p.ID = uuid.New().String()
	p.CreatedAt = time.Now().UTC()

	sizeBuckets, _ := json.Marshal(p.SizeBuckets)
	industries, _ := json.Marshal(p.Industries)
	painKeywords, _ := json.Marshal(p.PainKeywords)
	hiringKeywords, _ := json.Marshal(p.HiringKeywords)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO icp_profiles (id, name, size_buckets, industries, pain_keywords, hiring_keywords, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, string(sizeBuckets), string(industries), string(painKeywords), string(hiringKeywords), p.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert icp profile %s", p.Name)
	}
	return &p, nil
}

// helpers

func checkRowsAffected(res sql.Result, leadID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var lead model.Lead
	var painTags, adjustments string
	var override sql.NullFloat64
	var autoParkedAt sql.NullTime

	err := row.Scan(
		&lead.ID, &lead.CompanyID, &lead.SignalID,
		&lead.ScoreFit, &lead.ScorePain, &lead.ScoreDataQuality, &lead.TotalScore, &lead.ScoreBucket,
		&lead.ICPMatch, &lead.RoleType, &painTags,
		&lead.Situation, &lead.Problem, &lead.Implication,
		&lead.NeedPayoff, &lead.EconomicBuyerGuess, &lead.KeyPain,
		&adjustments,
		&lead.ContextDossier, &lead.ChallengerInsight, &lead.ReframeSuggestion,
		&lead.Status, &lead.Notes, &override, &lead.OverrideReason, &autoParkedAt,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(painTags), &lead.PainTags); err != nil {
		return nil, eris.Wrap(err, "unmarshal pain tags")
	}
	if err := json.Unmarshal([]byte(adjustments), &lead.HeuristicAdjustments); err != nil {
		return nil, eris.Wrap(err, "unmarshal adjustments")
	}
	if override.Valid {
		lead.ManualScoreOverride = &override.Float64
	}
	if autoParkedAt.Valid {
		t := autoParkedAt.Time
		lead.AutoParkedAt = &t
	}
	return &lead, nil
}

func scanICPProfile(row scannable) (*model.ICPProfile, error) {
	var p model.ICPProfile
	var sizeBuckets, industries, painKeywords, hiringKeywords string

	err := row.Scan(&p.ID, &p.Name, &sizeBuckets, &industries, &painKeywords, &hiringKeywords, &p.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "scan icp profile")
	}
	for _, f := range []struct {
		raw  string
		dest *[]string
	}{
		{sizeBuckets, &p.SizeBuckets},
		{industries, &p.Industries},
		{painKeywords, &p.PainKeywords},
		{hiringKeywords, &p.HiringKeywords},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dest); err != nil {
			return nil, eris.Wrap(err, "unmarshal icp profile field")
		}
	}
	return &p, nil
}
