package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/raptorflow/lead-engine/internal/model"
	"github.com/raptorflow/lead-engine/internal/resilience"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool. Per-lead mutation
// serialization uses SELECT ... FOR UPDATE inside a transaction.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool. The initial
// ping is retried since a fresh database container may still be starting.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	pingCfg := resilience.DefaultRetryConfig()
	pingCfg.ShouldRetry = func(error) bool { return true }
	if err := resilience.Do(ctx, pingCfg, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool, used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL UNIQUE,
	website    TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS signals (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id  TEXT REFERENCES companies(id),
	source_type TEXT NOT NULL,
	source_url  TEXT,
	raw_text    TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS leads (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id            TEXT REFERENCES companies(id),
	signal_id             TEXT REFERENCES signals(id),
	score_fit             DOUBLE PRECISION NOT NULL DEFAULT 0,
	score_pain            DOUBLE PRECISION NOT NULL DEFAULT 0,
	score_data_quality    DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_score           DOUBLE PRECISION NOT NULL DEFAULT 0,
	score_bucket          TEXT NOT NULL DEFAULT 'parked',
	icp_match             BOOLEAN NOT NULL DEFAULT FALSE,
	role_type             TEXT,
	pain_tags             JSONB,
	situation             TEXT,
	problem               TEXT,
	implication           TEXT,
	need_payoff           TEXT,
	economic_buyer_guess  TEXT,
	key_pain              TEXT,
	heuristic_adjustments JSONB,
	context_dossier       TEXT,
	challenger_insight    TEXT,
	reframe_suggestion    TEXT,
	status                TEXT NOT NULL DEFAULT 'new',
	notes                 TEXT,
	manual_score_override DOUBLE PRECISION,
	override_reason       TEXT,
	auto_parked_at        TIMESTAMPTZ,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS score_overrides (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	lead_id        TEXT NOT NULL REFERENCES leads(id),
	actor          TEXT NOT NULL,
	original_score DOUBLE PRECISION NOT NULL,
	override_score DOUBLE PRECISION NOT NULL,
	reason         TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS funding_events (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id     TEXT NOT NULL REFERENCES companies(id),
	event_type     TEXT NOT NULL,
	announced_date TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS icp_profiles (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name            TEXT NOT NULL,
	size_buckets    JSONB,
	industries      JSONB,
	pain_keywords   JSONB,
	hiring_keywords JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_score_bucket ON leads(score_bucket);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
CREATE INDEX IF NOT EXISTS idx_signals_company_id ON signals(company_id);
CREATE INDEX IF NOT EXISTS idx_score_overrides_lead_id ON score_overrides(lead_id);
CREATE INDEX IF NOT EXISTS idx_funding_events_company_id ON funding_events(company_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetOrCreateCompany(ctx context.Context, name, website string) (*model.Company, error) {
	var c model.Company
	err := s.pool.QueryRow(ctx,
		`INSERT INTO companies (id, name, website, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, name, COALESCE(website, ''), created_at`,
		uuid.New().String(), name, website, time.Now().UTC(),
	).Scan(&c.ID, &c.Name, &c.Website, &c.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get or create company %s", name)
	}
	return &c, nil
}

func (s *PostgresStore) CreateSignal(ctx context.Context, companyID string, sig model.Signal) (*model.SignalRecord, error) {
	rec := model.SignalRecord{
		ID:         uuid.New().String(),
		CompanyID:  companyID,
		SourceType: sig.SourceType,
		SourceURL:  sig.SourceURL,
		RawText:    sig.Text,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO signals (id, company_id, source_type, source_url, raw_text, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, nullString(rec.CompanyID), string(rec.SourceType), rec.SourceURL, rec.RawText, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert signal")
	}
	return &rec, nil
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
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
		return nil, eris.Wrap(err, "postgres: marshal pain tags")
	}
	adjustments, err := json.Marshal(lead.HeuristicAdjustments)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal adjustments")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO leads (
			id, company_id, signal_id,
			score_fit, score_pain, score_data_quality, total_score, score_bucket,
			icp_match, role_type, pain_tags, situation, problem, implication,
			need_payoff, economic_buyer_guess, key_pain, heuristic_adjustments,
			context_dossier, challenger_insight, reframe_suggestion,
			status, notes, manual_score_override, override_reason, auto_parked_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		          $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`,
		lead.ID, nullString(lead.CompanyID), nullString(lead.SignalID),
		lead.ScoreFit, lead.ScorePain, lead.ScoreDataQuality, lead.TotalScore, string(lead.ScoreBucket),
		lead.ICPMatch, lead.RoleType, string(painTags), lead.Situation, lead.Problem, lead.Implication,
		lead.NeedPayoff, lead.EconomicBuyerGuess, lead.KeyPain, string(adjustments),
		lead.ContextDossier, lead.ChallengerInsight, lead.ReframeSuggestion,
		string(lead.Status), lead.Notes, lead.ManualScoreOverride, lead.OverrideReason, lead.AutoParkedAt,
		lead.CreatedAt, lead.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert lead")
	}
	return lead, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, leadID string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, leadID,
	)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", leadID)
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = ` + placeholder(len(args))
	}
	if filter.Bucket != "" {
		args = append(args, string(filter.Bucket))
		query += ` AND score_bucket = ` + placeholder(len(args))
	}
	if filter.MinScore > 0 {
		args = append(args, filter.MinScore)
		query += ` AND total_score >= ` + placeholder(len(args))
	}
	query += ` ORDER BY total_score DESC, created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT ` + placeholder(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET ` + placeholder(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) UpdateLeadStatus(ctx context.Context, leadID string, status model.LeadStatus, notes string) error {
	query := `UPDATE leads SET status = $1, updated_at = $2`
	args := []any{string(status), time.Now().UTC()}
	if notes != "" {
		args = append(args, notes)
		query += `, notes = ` + placeholder(len(args))
	}
	args = append(args, leadID)
	query += ` WHERE id = ` + placeholder(len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead status %s", leadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	return nil
}

func (s *PostgresStore) UpdateLeadScore(ctx context.Context, leadID string, score float64, bucket model.ScoreBucket, override *float64, reason string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin score update")
	}
	defer tx.Rollback(ctx)

	// Row lock serializes concurrent overrides of the same lead.
	var id string
	err = tx.QueryRow(ctx, `SELECT id FROM leads WHERE id = $1 FOR UPDATE`, leadID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: lock lead %s", leadID)
	}

	_, err = tx.Exec(ctx,
		`UPDATE leads SET total_score = $1, score_bucket = $2, manual_score_override = $3, override_reason = $4, updated_at = $5
		 WHERE id = $6`,
		score, string(bucket), override, reason, time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead score %s", leadID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit score update")
}

func (s *PostgresStore) UpdateLeadDossier(ctx context.Context, leadID, dossier, challengerInsight, reframeSuggestion string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET context_dossier = $1, challenger_insight = $2, reframe_suggestion = $3, updated_at = $4
		 WHERE id = $5`,
		dossier, challengerInsight, reframeSuggestion, time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead dossier %s", leadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	return nil
}

func (s *PostgresStore) ListAutoParkCandidates(ctx context.Context, cutoff time.Time) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE status = $1 AND created_at < $2 AND auto_parked_at IS NULL
		 ORDER BY created_at ASC`,
		string(model.StatusNew), cutoff,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list auto-park candidates")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: candidates iterate")
}

func (s *PostgresStore) AutoParkLead(ctx context.Context, leadID, note string, at time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin auto-park")
	}
	defer tx.Rollback(ctx)

	var id string
	err = tx.QueryRow(ctx,
		`SELECT id FROM leads WHERE id = $1 AND status = $2 AND auto_parked_at IS NULL FOR UPDATE`,
		leadID, string(model.StatusNew),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: lock lead %s", leadID)
	}

	_, err = tx.Exec(ctx,
		`UPDATE leads
		 SET status = $1, auto_parked_at = $2,
		     notes = CASE WHEN COALESCE(notes, '') = '' THEN $3 ELSE notes || E'\n' || $3 END,
		     updated_at = $2
		 WHERE id = $4`,
		string(model.StatusParked), at, note, leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: auto-park lead %s", leadID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit auto-park")
}

func (s *PostgresStore) CreateScoreOverride(ctx context.Context, o model.ScoreOverride) (*model.ScoreOverride, error) {
	o.ID = uuid.New().String()
	o.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO score_overrides (id, lead_id, actor, original_score, override_score, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.LeadID, o.Actor, o.OriginalScore, o.OverrideScore, o.Reason, o.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert score override for lead %s", o.LeadID)
	}
	return &o, nil
}

func (s *PostgresStore) ListScoreOverrides(ctx context.Context, leadID string) ([]model.ScoreOverride, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, actor, original_score, override_score, COALESCE(reason, ''), created_at
		 FROM score_overrides WHERE lead_id = $1 ORDER BY created_at DESC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list overrides for lead %s", leadID)
	}
	defer rows.Close()

	var overrides []model.ScoreOverride
	for rows.Next() {
		var o model.ScoreOverride
		if err := rows.Scan(&o.ID, &o.LeadID, &o.Actor, &o.OriginalScore, &o.OverrideScore, &o.Reason, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan override")
		}
		overrides = append(overrides, o)
	}
	return overrides, eris.Wrap(rows.Err(), "postgres: overrides iterate")
}

func (s *PostgresStore) CreateFundingEvent(ctx context.Context, companyID, eventType string, announced time.Time) (*model.FundingEvent, error) {
	ev := model.FundingEvent{
		ID:            uuid.New().String(),
		CompanyID:     companyID,
		EventType:     eventType,
		AnnouncedDate: announced,
		CreatedAt:     time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO funding_events (id, company_id, event_type, announced_date, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, ev.CompanyID, ev.EventType, ev.AnnouncedDate, ev.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert funding event for company %s", companyID)
	}
	return &ev, nil
}

func (s *PostgresStore) HasRecentFunding(ctx context.Context, companyID string, since time.Time) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(1) FROM funding_events WHERE company_id = $1 AND announced_date >= $2`,
		companyID, since,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: recent funding for company %s", companyID)
	}
	return n > 0, nil
}

func (s *PostgresStore) ListICPProfiles(ctx context.Context) ([]model.ICPProfile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, COALESCE(size_buckets, '[]'), COALESCE(industries, '[]'),
		        COALESCE(pain_keywords, '[]'), COALESCE(hiring_keywords, '[]'), created_at
		 FROM icp_profiles ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list icp profiles")
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
	return profiles, eris.Wrap(rows.Err(), "postgres: icp profiles iterate")
}

func (s *PostgresStore) CreateICPProfile(ctx context.Context, p model.ICPProfile) (*model.ICPProfile, error) {
	p.ID = uuid.New().String()
	p.CreatedAt = time.Now().UTC()

	sizeBuckets, _ := json.Marshal(p.SizeBuckets)
	industries, _ := json.Marshal(p.Industries)
	painKeywords, _ := json.Marshal(p.PainKeywords)
	hiringKeywords, _ := json.Marshal(p.HiringKeywords)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO icp_profiles (id, name, size_buckets, industries, pain_keywords, hiring_keywords, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Name, string(sizeBuckets), string(industries), string(painKeywords), string(hiringKeywords), p.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert icp profile %s", p.Name)
	}
	return &p, nil
}

// placeholder returns the positional parameter for the nth argument.
func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
