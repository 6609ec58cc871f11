package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholarhub/backend/internal/domain"
)

// metaKey identifies the single status row.
const metaKey = "system"

type MetaRepository struct {
	db *pgxpool.Pool
}

func NewMetaRepository(db *pgxpool.Pool) *MetaRepository {
	return &MetaRepository{db: db}
}

func (r *MetaRepository) Get(ctx context.Context) (*domain.Meta, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT last_updated, thesis_count, article_count, research_count, total,
		       last_harvest, error_context, error_message, error_time
		FROM harvest_meta WHERE key = $1
	`

	meta := &domain.Meta{Counts: make(map[domain.Category]int)}
	var thesis, article, research int
	var errCtx, errMsg *string
	var errTime *time.Time
	err := r.db.QueryRow(ctx, query, metaKey).Scan(
		&meta.LastUpdated,
		&thesis,
		&article,
		&research,
		&meta.Total,
		&meta.LastHarvest,
		&errCtx,
		&errMsg,
		&errTime,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	meta.Counts[domain.CategoryThesis] = thesis
	meta.Counts[domain.CategoryArticle] = article
	meta.Counts[domain.CategoryResearch] = research
	if errCtx != nil {
		meta.LastError = &domain.HarvestError{Context: *errCtx}
		if errMsg != nil {
			meta.LastError.Message = *errMsg
		}
		if errTime != nil {
			meta.LastError.Time = *errTime
		}
	}
	return meta, nil
}

func (r *MetaRepository) Upsert(ctx context.Context, meta *domain.Meta) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO harvest_meta (key, last_updated, thesis_count, article_count, research_count, total,
		                          last_harvest, error_context, error_message, error_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (key) DO UPDATE SET
			last_updated = EXCLUDED.last_updated,
			thesis_count = EXCLUDED.thesis_count,
			article_count = EXCLUDED.article_count,
			research_count = EXCLUDED.research_count,
			total = EXCLUDED.total,
			last_harvest = EXCLUDED.last_harvest,
			error_context = EXCLUDED.error_context,
			error_message = EXCLUDED.error_message,
			error_time = EXCLUDED.error_time
	`

	var errCtx, errMsg *string
	var errTime *time.Time
	if meta.LastError != nil {
		errCtx = &meta.LastError.Context
		errMsg = &meta.LastError.Message
		errTime = &meta.LastError.Time
	}

	_, err := r.db.Exec(ctx, query,
		metaKey,
		meta.LastUpdated,
		meta.Counts[domain.CategoryThesis],
		meta.Counts[domain.CategoryArticle],
		meta.Counts[domain.CategoryResearch],
		meta.Total,
		meta.LastHarvest,
		errCtx,
		errMsg,
		errTime,
	)
	return err
}
