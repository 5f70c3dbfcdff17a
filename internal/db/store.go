package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fundsync/fundsync/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// selectCols is the column list shared by every opportunity query.
const selectCols = `id, external_id, source, title, sponsor, agency, description,
	amount_min, amount_max, deadline_date, deadline_type, match_requirement_pct,
	eligibility_criteria, geography, project_types, organization_types,
	minority_flag, woman_owned_flag, veteran_flag, small_business_flag,
	source_url, raw_data, classifier_metadata, created_at, last_updated`

const upsertSQL = `
	INSERT INTO opportunities (
		external_id, source, title, sponsor, agency, description,
		amount_min, amount_max, deadline_date, deadline_type, match_requirement_pct,
		eligibility_criteria, geography, project_types, organization_types,
		minority_flag, woman_owned_flag, veteran_flag, small_business_flag,
		source_url, raw_data, classifier_metadata, embedding
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10, $11,
		$12, $13, $14, $15,
		$16, $17, $18, $19,
		$20, $21::jsonb, $22::jsonb, $23
	)
	ON CONFLICT (external_id, source) DO UPDATE SET
		title = EXCLUDED.title,
		sponsor = EXCLUDED.sponsor,
		agency = EXCLUDED.agency,
		description = EXCLUDED.description,
		amount_min = EXCLUDED.amount_min,
		amount_max = EXCLUDED.amount_max,
		deadline_date = EXCLUDED.deadline_date,
		deadline_type = EXCLUDED.deadline_type,
		match_requirement_pct = EXCLUDED.match_requirement_pct,
		eligibility_criteria = EXCLUDED.eligibility_criteria,
		geography = EXCLUDED.geography,
		project_types = EXCLUDED.project_types,
		organization_types = EXCLUDED.organization_types,
		minority_flag = EXCLUDED.minority_flag,
		woman_owned_flag = EXCLUDED.woman_owned_flag,
		veteran_flag = EXCLUDED.veteran_flag,
		small_business_flag = EXCLUDED.small_business_flag,
		source_url = EXCLUDED.source_url,
		raw_data = EXCLUDED.raw_data,
		classifier_metadata = EXCLUDED.classifier_metadata,
		embedding = COALESCE(EXCLUDED.embedding, opportunities.embedding),
		last_updated = NOW()
	RETURNING (xmax = 0) AS inserted`

// UpsertOpportunities writes the batch in a single transaction. The conflict
// key is (external_id, source); on conflict the existing row is fully
// replaced and last_updated is refreshed. Postgres guarantees the whole
// batch commits or none of it does. Returns the number of newly inserted
// rows (updates of existing rows are not counted).
func (s *Store) UpsertOpportunities(ctx context.Context, opps []models.Opportunity) (int, error) {
	if len(opps) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, opp := range opps {
		var embedding interface{}
		if len(opp.Embedding) > 0 {
			embedding = pgvector.NewVector(opp.Embedding)
		}
		batch.Queue(upsertSQL,
			opp.ExternalID, opp.Source, opp.Title, opp.Sponsor, opp.Agency, opp.Description,
			opp.AmountMin, opp.AmountMax, opp.DeadlineDate, opp.DeadlineType, opp.MatchRequirementPct,
			textArray(opp.EligibilityCriteria), textArray(opp.Geography), textArray(opp.ProjectTypes), textArray(opp.OrganizationTypes),
			opp.MinorityFlag, opp.WomanOwnedFlag, opp.VeteranFlag, opp.SmallBusinessFlag,
			opp.SourceURL, jsonOrNil(opp.RawData), jsonOrNil(opp.ClassifierMetadata), embedding,
		)
	}

	results := tx.SendBatch(ctx, batch)
	inserted := 0
	for range opps {
		var wasInsert bool
		if err := results.QueryRow().Scan(&wasInsert); err != nil {
			results.Close()
			return 0, fmt.Errorf("upsert batch failed: %w", err)
		}
		if wasInsert {
			inserted++
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("closing upsert batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit upsert tx: %w", err)
	}
	return inserted, nil
}

// IncrementUsage atomically bumps today's request counter for a provider and
// returns the post-increment count. Using a conditional upsert avoids the
// check-then-act race under concurrent runs for the same provider.
func (s *Store) IncrementUsage(ctx context.Context, source string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO provider_usage (source, usage_date, request_count)
		VALUES ($1, CURRENT_DATE, 1)
		ON CONFLICT (source, usage_date) DO UPDATE
		SET request_count = provider_usage.request_count + 1
		RETURNING request_count
	`, source).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment usage for %s: %w", source, err)
	}
	return count, nil
}

// Usage returns today's request count for a provider (0 if no row yet).
func (s *Store) Usage(ctx context.Context, source string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(
			(SELECT request_count FROM provider_usage WHERE source = $1 AND usage_date = CURRENT_DATE),
			0
		)
	`, source).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("read usage for %s: %w", source, err)
	}
	return count, nil
}

func (s *Store) CreateSyncRun(ctx context.Context, source string, automated bool, configurations int) (uuid.UUID, error) {
	var runID uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sync_runs (source, status, automated, configurations)
		VALUES ($1, 'running', $2, $3)
		RETURNING run_id
	`, source, automated, configurations).Scan(&runID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create sync run: %w", err)
	}
	return runID, nil
}

func (s *Store) FinishSyncRun(ctx context.Context, runID uuid.UUID, status string, fetched, imported, errCount int, durationMs int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sync_runs
		SET status = $1,
		    records_fetched = $2,
		    records_imported = $3,
		    errors = $4,
		    completed_at = NOW(),
		    details = $5
		WHERE run_id = $6
	`, status, fetched, imported, errCount, fmt.Sprintf(`{"duration_ms": %d}`, durationMs), runID)
	if err != nil {
		return fmt.Errorf("finish sync run %s: %w", runID, err)
	}
	return nil
}

// LastSync returns the most recent last_updated for a provider, or nil when
// nothing has been imported yet.
func (s *Store) LastSync(ctx context.Context, source string) (*time.Time, error) {
	var last *time.Time
	err := s.pool.QueryRow(ctx, `SELECT MAX(last_updated) FROM opportunities WHERE source = $1`, source).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("read last sync for %s: %w", source, err)
	}
	return last, nil
}

type ListParams struct {
	Query          string
	QueryEmbedding []float32
	Source         string
	MinAmount      float64
	MaxAmount      float64
	DeadlineDays   int
	SmallBusiness  *bool
	WomanOwned     *bool
	Minority       *bool
	Veteran        *bool
	Limit          int
	Offset         int
}

type ListResult struct {
	Opportunities []models.Opportunity `json:"opportunities"`
	Total         int                  `json:"total"`
	Limit         int                  `json:"limit"`
	Offset        int                  `json:"offset"`
}

// buildListWhere assembles the WHERE clause for ListOpportunities. Split out
// so the filter logic is testable without a database.
func buildListWhere(p ListParams) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(cond string, val interface{}) {
		args = append(args, val)
		conds = append(conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}

	if p.Source != "" {
		add("source = ?", p.Source)
	}
	if p.MinAmount > 0 {
		add("amount_max >= ?", p.MinAmount)
	}
	if p.MaxAmount > 0 {
		add("amount_min <= ?", p.MaxAmount)
	}
	if p.DeadlineDays > 0 {
		add("(deadline_type = 'rolling' OR deadline_date <= NOW() + (? || ' days')::interval)", fmt.Sprintf("%d", p.DeadlineDays))
	}
	if p.Query != "" {
		args = append(args, p.Query)
		n := len(args)
		conds = append(conds, fmt.Sprintf("(title ILIKE '%%' || $%d || '%%' OR description ILIKE '%%' || $%d || '%%')", n, n))
	}
	if p.SmallBusiness != nil {
		add("small_business_flag = ?", *p.SmallBusiness)
	}
	if p.WomanOwned != nil {
		add("woman_owned_flag = ?", *p.WomanOwned)
	}
	if p.Minority != nil {
		add("minority_flag = ?", *p.Minority)
	}
	if p.Veteran != nil {
		add("veteran_flag = ?", *p.Veteran)
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) ListOpportunities(ctx context.Context, p ListParams) (ListResult, error) {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	where, args := buildListWhere(p)

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM opportunities %s", where)
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return ListResult{}, fmt.Errorf("count opportunities: %w", err)
	}

	orderBy := "ORDER BY last_updated DESC"
	if len(p.QueryEmbedding) > 0 {
		args = append(args, pgvector.NewVector(p.QueryEmbedding))
		orderBy = fmt.Sprintf("ORDER BY embedding <=> $%d NULLS LAST, last_updated DESC", len(args))
	}

	args = append(args, p.Limit, p.Offset)
	query := fmt.Sprintf("SELECT %s FROM opportunities %s %s LIMIT $%d OFFSET $%d",
		selectCols, where, orderBy, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return ListResult{}, fmt.Errorf("list opportunities: %w", err)
	}
	defer rows.Close()

	result := ListResult{Total: total, Limit: p.Limit, Offset: p.Offset}
	for rows.Next() {
		opp, err := scanOpportunity(rows.Scan)
		if err != nil {
			return ListResult{}, fmt.Errorf("scan opportunity: %w", err)
		}
		result.Opportunities = append(result.Opportunities, opp)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, fmt.Errorf("iterate opportunities: %w", err)
	}
	return result, nil
}

func (s *Store) GetOpportunity(ctx context.Context, id string) (*models.Opportunity, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM opportunities WHERE id = $1", selectCols), id)
	opp, err := scanOpportunity(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("get opportunity %s: %w", id, err)
	}
	return &opp, nil
}

type SourceStats struct {
	Source   string     `json:"source"`
	Count    int        `json:"count"`
	LastSync *time.Time `json:"last_sync"`
}

func (s *Store) GetStats(ctx context.Context) ([]SourceStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT source, COUNT(*), MAX(last_updated)
		FROM opportunities
		GROUP BY source
		ORDER BY source
	`)
	if err != nil {
		return nil, fmt.Errorf("stats query: %w", err)
	}
	defer rows.Close()

	var stats []SourceStats
	for rows.Next() {
		var st SourceStats
		if err := rows.Scan(&st.Source, &st.Count, &st.LastSync); err != nil {
			return nil, fmt.Errorf("stats scan: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *Store) ListProjectProfiles(ctx context.Context) ([]models.ProjectProfile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT project_id, project_name, description, organization_type,
		       industry, certifications, project_type, state
		FROM project_profiles
		ORDER BY created_at, project_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list project profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.ProjectProfile
	for rows.Next() {
		var p models.ProjectProfile
		if err := rows.Scan(&p.ProjectID, &p.ProjectName, &p.Description, &p.OrganizationType,
			&p.Industry, &p.Certifications, &p.ProjectType, &p.State); err != nil {
			return nil, fmt.Errorf("scan project profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func scanOpportunity(scan func(dest ...interface{}) error) (models.Opportunity, error) {
	var o models.Opportunity
	var rawData, classifierMeta []byte

	err := scan(
		&o.ID, &o.ExternalID, &o.Source, &o.Title, &o.Sponsor, &o.Agency, &o.Description,
		&o.AmountMin, &o.AmountMax, &o.DeadlineDate, &o.DeadlineType, &o.MatchRequirementPct,
		&o.EligibilityCriteria, &o.Geography, &o.ProjectTypes, &o.OrganizationTypes,
		&o.MinorityFlag, &o.WomanOwnedFlag, &o.VeteranFlag, &o.SmallBusinessFlag,
		&o.SourceURL, &rawData, &classifierMeta, &o.CreatedAt, &o.LastUpdated,
	)
	if err != nil {
		return o, err
	}

	if len(rawData) > 0 {
		_ = json.Unmarshal(rawData, &o.RawData)
	}
	if len(classifierMeta) > 0 {
		_ = json.Unmarshal(classifierMeta, &o.ClassifierMetadata)
	}
	return o, nil
}

// textArray guarantees a non-nil slice so Postgres stores '{}' instead of NULL.
func textArray(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func jsonOrNil(m map[string]interface{}) interface{} {
	if len(m) == 0 {
		return nil
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return string(payload)
}
