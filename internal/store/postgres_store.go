package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/researchkeeper/service/internal/models"
)

// 与最早版本的SQLite表结构保持一致，便于数据迁移
const createQueriesTable = `
	CREATE TABLE IF NOT EXISTS queries (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		report TEXT NOT NULL,
		quality_score DOUBLE PRECISION NOT NULL,
		claims_count INTEGER NOT NULL DEFAULT 0,
		evidence_count INTEGER NOT NULL DEFAULT 0,
		sources_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

// 数据库操作超时
const pgOpTimeout = 5 * time.Second

// PostgresHistoryStore 基于Postgres的历史存储
type PostgresHistoryStore struct {
	pool *pgxpool.Pool
}

// NewPostgresHistoryStore 连接Postgres并确保表结构存在
func NewPostgresHistoryStore(ctx context.Context, dsn string) (*PostgresHistoryStore, error) {
	log.Printf("[历史存储] 初始化Postgres历史存储")

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("创建连接池失败: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pgOpTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	if _, err := pool.Exec(ctx, createQueriesTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}

	log.Printf("[历史存储] Postgres历史存储初始化完成")
	return &PostgresHistoryStore{pool: pool}, nil
}

// StoreOutcome 保存一次查询结果，返回记录ID
func (s *PostgresHistoryStore) StoreOutcome(outcome *models.QueryOutcome) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), pgOpTimeout)
	defer cancel()

	query := `
		INSERT INTO queries (
			id, query, report, quality_score,
			claims_count, evidence_count, sources_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		outcome.ID,
		outcome.Query,
		outcome.Report,
		outcome.QualityScore,
		outcome.ClaimsCount,
		outcome.EvidenceCount,
		outcome.SourcesCount,
		outcome.Timestamp,
	)
	if err != nil {
		return "", fmt.Errorf("写入查询结果失败: %w", err)
	}

	return outcome.ID, nil
}

// FetchRecent 按时间倒序获取最近的查询摘要
func (s *PostgresHistoryStore) FetchRecent(limit int) ([]*models.QueryOutcomeSummary, error) {
	ctx, cancel := context.WithTimeout(context.Background(), pgOpTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, query, quality_score, created_at
		FROM queries
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("查询历史记录失败: %w", err)
	}
	defer rows.Close()

	var summaries []*models.QueryOutcomeSummary
	for rows.Next() {
		summary := &models.QueryOutcomeSummary{}
		if err := rows.Scan(&summary.ID, &summary.Query, &summary.QualityScore, &summary.Timestamp); err != nil {
			return nil, fmt.Errorf("解析历史记录失败: %w", err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// SearchByText 按查询文本子串搜索历史记录（不区分大小写），按时间倒序
func (s *PostgresHistoryStore) SearchByText(substring string, limit int) ([]*models.QueryOutcome, error) {
	ctx, cancel := context.WithTimeout(context.Background(), pgOpTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, query, report, quality_score,
		       claims_count, evidence_count, sources_count, created_at
		FROM queries
		WHERE query ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, substring, limit)
	if err != nil {
		return nil, fmt.Errorf("搜索历史记录失败: %w", err)
	}
	defer rows.Close()

	var outcomes []*models.QueryOutcome
	for rows.Next() {
		outcome := &models.QueryOutcome{}
		if err := rows.Scan(
			&outcome.ID,
			&outcome.Query,
			&outcome.Report,
			&outcome.QualityScore,
			&outcome.ClaimsCount,
			&outcome.EvidenceCount,
			&outcome.SourcesCount,
			&outcome.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("解析历史记录失败: %w", err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, rows.Err()
}

// Stats 汇总历史统计
func (s *PostgresHistoryStore) Stats() (*models.HistoryStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), pgOpTimeout)
	defer cancel()

	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(claims_count), 0),
		       COALESCE(SUM(sources_count), 0),
		       COALESCE(AVG(quality_score), 0)
		FROM queries`

	stats := &models.HistoryStats{}
	err := s.pool.QueryRow(ctx, query).Scan(
		&stats.TotalQueries,
		&stats.TotalClaims,
		&stats.TotalSources,
		&stats.AvgQuality,
	)
	if err != nil {
		return nil, fmt.Errorf("统计历史记录失败: %w", err)
	}
	return stats, nil
}

// Close 关闭连接池
func (s *PostgresHistoryStore) Close() error {
	s.pool.Close()
	return nil
}
