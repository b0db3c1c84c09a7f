package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Santi4567/Akima-sub001/internal/database"
	"github.com/Santi4567/Akima-sub001/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = `id, sku, name, description, category_id, price, stock_quantity, image_url, created_at, updated_at, version`

type ProductInput struct {
	SKU         string
	Name        string
	Description string
	CategoryID  *int64
	Price       decimal.Decimal
	Stock       int
	ImageURL    string
}

// ProductUpdate carries the fields to change; nil fields keep their value.
type ProductUpdate struct {
	SKU         *string
	Name        *string
	Description *string
	CategoryID  *int64
	Price       *decimal.Decimal
	ImageURL    *string
}

func (u ProductUpdate) empty() bool {
	return u.SKU == nil && u.Name == nil && u.Description == nil &&
		u.CategoryID == nil && u.Price == nil && u.ImageURL == nil
}

type ProductFilter struct {
	CategoryID *int64
	Search     string
	Page
}

func scanProduct(row rowScanner, product *models.Product) error {
	return row.Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Description,
		&product.CategoryID,
		&product.Price,
		&product.StockQuantity,
		&product.ImageURL,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
}

func productWriteError(err error, action string) error {
	if database.IsUniqueViolation(err) {
		return ErrDuplicate.With("field", "sku")
	}
	if database.IsForeignKeyViolation(err) {
		return database.ErrCategoryNotFound
	}
	return fmt.Errorf("%s product: %w", action, err)
}

func CreateProduct(ctx context.Context, db *sql.DB, in ProductInput) (*models.Product, error) {
	product := &models.Product{}

	query := `
		INSERT INTO products (sku, name, description, category_id, price, stock_quantity, image_url, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW(), 1)
		RETURNING ` + productColumns

	row := db.QueryRowContext(ctx, query, in.SKU, in.Name, in.Description, in.CategoryID, in.Price, in.Stock, in.ImageURL)
	if err := scanProduct(row, product); err != nil {
		return nil, productWriteError(err, "create")
	}

	return product, nil
}

func GetProduct(ctx context.Context, q database.Querier, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	if err := scanProduct(q.QueryRowContext(ctx, query, id), product); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

func ListProducts(ctx context.Context, db *sql.DB, filter ProductFilter) (*OffsetPage, error) {
	page := filter.Page.Normalize()

	where := `WHERE ($1::BIGINT IS NULL OR category_id = $1)
		  AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR sku ILIKE '%' || $2 || '%')`

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products `+where, filter.CategoryID, filter.Search).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	query := `SELECT ` + productColumns + ` FROM products ` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`

	rows, err := db.QueryContext(ctx, query, filter.CategoryID, filter.Search, page.PageSize, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(products, total, page), nil
}

func UpdateProduct(ctx context.Context, db *sql.DB, id int64, upd ProductUpdate) (*models.Product, error) {
	if upd.empty() {
		return nil, ErrNothingToApply
	}

	product := &models.Product{}

	query := `
		UPDATE products
		SET sku = COALESCE($2, sku),
		    name = COALESCE($3, name),
		    description = COALESCE($4, description),
		    category_id = COALESCE($5, category_id),
		    price = COALESCE($6, price),
		    image_url = COALESCE($7, image_url),
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns

	row := db.QueryRowContext(ctx, query, id, upd.SKU, upd.Name, upd.Description, upd.CategoryID, upd.Price, upd.ImageURL)
	if err := scanProduct(row, product); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, productWriteError(err, "update")
	}

	return product, nil
}

// UpdateStockOptimistic sets an absolute stock count (an inventory recount)
// only if nobody changed the product since the caller read version.
func UpdateStockOptimistic(ctx context.Context, db *sql.DB, productID int64, newStock int, version int) error {
	result, err := db.ExecContext(ctx,
		`UPDATE products
		 SET stock_quantity = $1, version = version + 1, updated_at = NOW()
		 WHERE id = $2 AND version = $3`,
		newStock, productID, version)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, err := GetProduct(ctx, db, productID); err != nil {
			return err
		}
		return database.ErrOptimisticLockFailed
	}

	return nil
}

func DeleteProduct(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return ErrProductInUse
		}
		return fmt.Errorf("delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}

// lockProduct reads a product row under FOR UPDATE so concurrent order
// writers serialize on it.
func lockProduct(ctx context.Context, tx *sql.Tx, productID int64) (*models.Product, error) {
	product := &models.Product{}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	if err := scanProduct(tx.QueryRowContext(ctx, query, productID), product); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("lock product %d: %w", productID, err)
	}

	return product, nil
}

// adjustStock moves stock by delta. Stock is allowed to go negative: orders
// beyond availability are accepted with a warning. The version is bumped so a
// recount read before the move is rejected by UpdateStockOptimistic.
func adjustStock(ctx context.Context, tx *sql.Tx, productID int64, delta int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity + $1,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $2`,
		delta, productID)
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}
