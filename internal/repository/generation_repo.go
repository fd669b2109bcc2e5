package repository

import (
	"context"
	"errors"
	"fmt"

	"creatorstudio/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GenerationRepository stores AI results. Every generation kind lives in its
// own table with the same columns.
type GenerationRepository interface {
	Create(ctx context.Context, g *model.Generation) error
	Get(ctx context.Context, kind model.Kind, id, userID string) (*model.Generation, error)
	List(ctx context.Context, kind model.Kind, userID string, limit, offset int) ([]model.Generation, error)
	Delete(ctx context.Context, kind model.Kind, id, userID string) error
}

type generationRepo struct {
	pool *pgxpool.Pool
}

func NewGenerationRepo(pool *pgxpool.Pool) GenerationRepository {
	return &generationRepo{pool: pool}
}

func table(kind model.Kind) (string, error) {
	if _, ok := model.ParseKind(string(kind)); !ok {
		return "", fmt.Errorf("unknown generation kind %q", kind)
	}
	return pgx.Identifier{kind.Table()}.Sanitize(), nil
}

const generationColumns = `id, user_id, input, result, model, storage_path, created_at`

func scanGeneration(row pgx.Row, kind model.Kind) (*model.Generation, error) {
	g := model.Generation{Kind: kind}
	if err := row.Scan(&g.ID, &g.UserID, &g.Input, &g.Result, &g.Model, &g.StoragePath, &g.CreatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *generationRepo) Create(ctx context.Context, g *model.Generation) error {
	t, err := table(g.Kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, input, result, model, storage_path)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING %s
	`, t, generationColumns)
	created, err := scanGeneration(r.pool.QueryRow(ctx, query, g.UserID, g.Input, g.Result, g.Model, g.StoragePath), g.Kind)
	if err != nil {
		return fmt.Errorf("creating %s row: %w", g.Kind, err)
	}
	*g = *created
	return nil
}

func (r *generationRepo) Get(ctx context.Context, kind model.Kind, id, userID string) (*model.Generation, error) {
	t, err := table(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND user_id = $2`, generationColumns, t)
	g, err := scanGeneration(r.pool.QueryRow(ctx, query, id, userID), kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s %s not found: %w", kind, id, err)
		}
		return nil, fmt.Errorf("getting %s %s: %w", kind, id, err)
	}
	return g, nil
}

func (r *generationRepo) List(ctx context.Context, kind model.Kind, userID string, limit, offset int) ([]model.Generation, error) {
	t, err := table(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, generationColumns, t)
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", kind, err)
	}
	defer rows.Close()

	out := []model.Generation{}
	for rows.Next() {
		g, err := scanGeneration(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", kind, err)
		}
		out = append(out, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s rows: %w", kind, err)
	}
	return out, nil
}

func (r *generationRepo) Delete(ctx context.Context, kind model.Kind, id, userID string) error {
	t, err := table(kind)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND user_id = $2`, t), id, userID)
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s not found: %w", kind, id, pgx.ErrNoRows)
	}
	return nil
}
