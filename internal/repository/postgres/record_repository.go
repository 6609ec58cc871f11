package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholarhub/backend/internal/domain"
	"github.com/scholarhub/backend/internal/harvester"
)

type RecordRepository struct {
	db *pgxpool.Pool
}

func NewRecordRepository(db *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{db: db}
}

const recordColumns = `id, title, authors, description, keywords, year, source, type, identifier, identifier_type, url, category, created_at`

func (r *RecordRepository) ListByCategory(ctx context.Context, category domain.Category) ([]*domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE ($1 = '' OR category = $1)
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.Query(ctx, query, string(category))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *RecordRepository) InsertMany(ctx context.Context, records []*domain.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	query := `
		INSERT INTO records (` + recordColumns + `, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`

	inserted := 0
	for _, rec := range records {
		tag, err := r.db.Exec(ctx, query,
			rec.ID,
			rec.Title,
			rec.Authors,
			rec.Description,
			rec.Keywords,
			rec.Year,
			rec.Source,
			rec.Type,
			rec.Identifier,
			rec.IdentifierType,
			rec.URL,
			string(rec.Category),
			rec.CreatedAt,
			harvester.Signature(rec),
		)
		if err != nil {
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// ReplaceCategory swaps one category's persisted set in a single
// transaction, so readers never observe a half-replaced category.
func (r *RecordRepository) ReplaceCategory(ctx context.Context, category domain.Category, records []*domain.Record) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM records WHERE category = $1`, string(category)); err != nil {
		return err
	}

	query := `
		INSERT INTO records (` + recordColumns + `, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`
	for _, rec := range records {
		if _, err := tx.Exec(ctx, query,
			rec.ID,
			rec.Title,
			rec.Authors,
			rec.Description,
			rec.Keywords,
			rec.Year,
			rec.Source,
			rec.Type,
			rec.Identifier,
			rec.IdentifierType,
			rec.URL,
			string(category),
			rec.CreatedAt,
			harvester.Signature(rec),
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// UpdateLink patches the link fields of records carrying the given dedup
// signature. Only records without a usable URL are touched.
func (r *RecordRepository) UpdateLink(ctx context.Context, signature string, url, identifier, identifierType string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		UPDATE records
		SET url = $2, identifier = $3, identifier_type = $4
		WHERE signature = $1 AND (url = '' OR url = '#')
	`
	tag, err := r.db.Exec(ctx, query, signature, url, identifier, identifierType)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *RecordRepository) CountByCategory(ctx context.Context) (map[domain.Category]int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `SELECT category, COUNT(*) FROM records GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.Category]int)
	for _, cat := range domain.Categories {
		counts[cat] = 0
	}
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		counts[domain.Category(cat)] = n
	}
	return counts, rows.Err()
}

func scanRecord(row pgx.Row) (*domain.Record, error) {
	rec := &domain.Record{}
	var category string
	err := row.Scan(
		&rec.ID,
		&rec.Title,
		&rec.Authors,
		&rec.Description,
		&rec.Keywords,
		&rec.Year,
		&rec.Source,
		&rec.Type,
		&rec.Identifier,
		&rec.IdentifierType,
		&rec.URL,
		&category,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Category = domain.Category(category)
	return rec, nil
}
