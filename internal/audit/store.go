package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres-backed Recorder.
//
// Expected schema (audit_records):
//
//	record_id text primary key, cluster_id text, created_at timestamptz,
//	signal_count int, signal_category text, top_keywords jsonb,
//	class_probabilities jsonb, risk_score double precision,
//	risk_breakdown jsonb, confidence_pct double precision,
//	confidence_level text, rationale_summary text, assumptions jsonb,
//	suggested_queue text, priority text, human_decision text,
//	human_user text, decision_reason text, update_type text,
//	processing_time_ms bigint, model_version text
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Record(ctx context.Context, rec Record) error {
	keywords, err := json.Marshal(rec.TopKeywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}
	probs, err := json.Marshal(rec.ClassProbabilities)
	if err != nil {
		return fmt.Errorf("marshal probabilities: %w", err)
	}
	breakdown, err := json.Marshal(rec.RiskBreakdown)
	if err != nil {
		return fmt.Errorf("marshal risk breakdown: %w", err)
	}
	assumptions, err := json.Marshal(rec.Assumptions)
	if err != nil {
		return fmt.Errorf("marshal assumptions: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_records (
			record_id, cluster_id, created_at,
			signal_count, signal_category, top_keywords,
			class_probabilities, risk_score, risk_breakdown,
			confidence_pct, confidence_level,
			rationale_summary, assumptions,
			suggested_queue, priority,
			human_decision, human_user, decision_reason,
			update_type, processing_time_ms, model_version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, 'ANALYSIS', $19, $20)`,
		rec.RecordID, rec.ClusterID, rec.Timestamp,
		rec.SignalCount, rec.SignalCategory, keywords,
		probs, rec.RiskScore, breakdown,
		rec.ConfidencePct, rec.ConfidenceLevel,
		rec.RationaleSummary, assumptions,
		rec.SuggestedQueue, rec.Priority,
		rec.HumanDecision, rec.HumanUser, rec.DecisionReason,
		rec.ProcessingTimeMS, rec.ModelVersion,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// UpdateDecision appends a decision-update row. The trail is
// immutable, so the original analysis row is never modified.
func (s *Store) UpdateDecision(ctx context.Context, clusterID, decision, user, reason string) error {
	if !ValidDecision(decision) {
		return fmt.Errorf("invalid decision %q", decision)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_records (
			record_id, cluster_id, created_at,
			human_decision, human_user, decision_reason,
			update_type, model_version
		) VALUES ($1, $2, $3, $4, $5, $6, 'DECISION_UPDATE', $7)`,
		NewRecordID(), clusterID, time.Now().UTC(),
		decision, user, reason, ModelVersion,
	)
	if err != nil {
		return fmt.Errorf("insert decision update: %w", err)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	// Decision-update rows carry only the decision columns; the
	// analysis columns are NULL and must be coalesced to scan into
	// plain Go types.
	rows, err := s.pool.Query(ctx, `
		SELECT record_id, cluster_id, created_at,
			coalesce(signal_count, 0), coalesce(signal_category, ''), top_keywords,
			class_probabilities, coalesce(risk_score, 0), risk_breakdown,
			coalesce(confidence_pct, 0), coalesce(confidence_level, ''),
			coalesce(rationale_summary, ''), assumptions,
			coalesce(suggested_queue, ''), coalesce(priority, ''),
			human_decision, human_user, coalesce(decision_reason, ''),
			coalesce(processing_time_ms, 0), model_version
		FROM audit_records
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var keywords, probs, breakdown, assumptions []byte
		err := rows.Scan(
			&rec.RecordID, &rec.ClusterID, &rec.Timestamp,
			&rec.SignalCount, &rec.SignalCategory, &keywords,
			&probs, &rec.RiskScore, &breakdown,
			&rec.ConfidencePct, &rec.ConfidenceLevel,
			&rec.RationaleSummary, &assumptions,
			&rec.SuggestedQueue, &rec.Priority,
			&rec.HumanDecision, &rec.HumanUser, &rec.DecisionReason,
			&rec.ProcessingTimeMS, &rec.ModelVersion,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		_ = json.Unmarshal(keywords, &rec.TopKeywords)
		_ = json.Unmarshal(probs, &rec.ClassProbabilities)
		_ = json.Unmarshal(breakdown, &rec.RiskBreakdown)
		_ = json.Unmarshal(assumptions, &rec.Assumptions)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Decisions:  make(map[string]int),
		Categories: make(map[string]int),
	}

	rows, err := s.pool.Query(ctx, `
		SELECT human_decision, coalesce(signal_category, ''), created_at
		FROM audit_records
		ORDER BY created_at DESC
		LIMIT 1000`)
	if err != nil {
		return stats, fmt.Errorf("query audit stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var decision, category string
		var createdAt time.Time
		if err := rows.Scan(&decision, &category, &createdAt); err != nil {
			return stats, fmt.Errorf("scan audit stats: %w", err)
		}
		stats.TotalRecords++
		if decision != "" {
			stats.Decisions[decision]++
		}
		if category != "" {
			stats.Categories[category]++
		}
		if stats.LastUpdated == nil {
			ts := createdAt
			stats.LastUpdated = &ts
		}
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate audit stats: %w", err)
	}
	return stats, nil
}
