package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Santi4567/Akima-sub001/internal/database"
	"github.com/Santi4567/Akima-sub001/internal/models"
)

const categoryColumns = `id, name, description, created_at, updated_at`

func scanCategory(row rowScanner, category *models.Category) error {
	return row.Scan(&category.ID, &category.Name, &category.Description, &category.CreatedAt, &category.UpdatedAt)
}

func CreateCategory(ctx context.Context, db *sql.DB, name, description string) (*models.Category, error) {
	category := &models.Category{}

	query := `
		INSERT INTO categories (name, description, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING ` + categoryColumns

	if err := scanCategory(db.QueryRowContext(ctx, query, name, description), category); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicate.With("field", "name")
		}
		return nil, fmt.Errorf("create category: %w", err)
	}

	return category, nil
}

func GetCategory(ctx context.Context, db *sql.DB, id int64) (*models.Category, error) {
	category := &models.Category{}

	err := scanCategory(db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id), category)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	return category, nil
}

func ListCategories(ctx context.Context, db *sql.DB) ([]models.Category, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var category models.Category
		if err := scanCategory(rows, &category); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return categories, nil
}

func UpdateCategory(ctx context.Context, db *sql.DB, id int64, name, description *string) (*models.Category, error) {
	if name == nil && description == nil {
		return nil, ErrNothingToApply
	}

	category := &models.Category{}

	query := `
		UPDATE categories
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + categoryColumns

	if err := scanCategory(db.QueryRowContext(ctx, query, id, name, description), category); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCategoryNotFound
		}
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicate.With("field", "name")
		}
		return nil, fmt.Errorf("update category: %w", err)
	}

	return category, nil
}

// DeleteCategory refuses to drop a category that still groups products and
// reports how many there are.
func DeleteCategory(ctx context.Context, db *sql.DB, id int64) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var lockedID int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM categories WHERE id = $1 FOR UPDATE`, id).Scan(&lockedID)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrCategoryNotFound
			}
			return fmt.Errorf("lock category: %w", err)
		}

		var products int
		err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE category_id = $1`, id).Scan(&products)
		if err != nil {
			return fmt.Errorf("count category products: %w", err)
		}
		if products > 0 {
			return ErrCategoryInUse.With("products", products)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete category: %w", err)
		}

		return nil
	})
}
