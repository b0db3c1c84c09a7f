package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Santi4567/Akima-sub001/internal/database"
	"github.com/Santi4567/Akima-sub001/internal/models"
)

const clientColumns = `id, name, email, phone, address, created_by, created_at, updated_at`

type ClientInput struct {
	Name      string
	Email     string
	Phone     string
	Address   string
	CreatedBy int64
}

type ClientUpdate struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
}

func (u ClientUpdate) empty() bool {
	return u.Name == nil && u.Email == nil && u.Phone == nil && u.Address == nil
}

func scanClient(row rowScanner, client *models.Client) error {
	return row.Scan(
		&client.ID,
		&client.Name,
		&client.Email,
		&client.Phone,
		&client.Address,
		&client.CreatedBy,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
}

func CreateClient(ctx context.Context, db *sql.DB, in ClientInput) (*models.Client, error) {
	client := &models.Client{}

	query := `
		INSERT INTO clients (name, email, phone, address, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + clientColumns

	row := db.QueryRowContext(ctx, query, in.Name, in.Email, in.Phone, in.Address, in.CreatedBy)
	if err := scanClient(row, client); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	return client, nil
}

func GetClient(ctx context.Context, db *sql.DB, id int64) (*models.Client, error) {
	client := &models.Client{}

	if err := scanClient(db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id), client); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrClientNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}

	return client, nil
}

func ListClients(ctx context.Context, db *sql.DB, search string, page Page) (*OffsetPage, error) {
	page = page.Normalize()

	where := `WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')`

	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients `+where, search).Scan(&total); err != nil {
		return nil, fmt.Errorf("count clients: %w", err)
	}

	query := `SELECT ` + clientColumns + ` FROM clients ` + where + `
		ORDER BY name, id
		LIMIT $2 OFFSET $3`

	rows, err := db.QueryContext(ctx, query, search, page.PageSize, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := []models.Client{}
	for rows.Next() {
		var client models.Client
		if err := scanClient(rows, &client); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, client)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(clients, total, page), nil
}

func UpdateClient(ctx context.Context, db *sql.DB, id int64, upd ClientUpdate) (*models.Client, error) {
	if upd.empty() {
		return nil, ErrNothingToApply
	}

	client := &models.Client{}

	query := `
		UPDATE clients
		SET name = COALESCE($2, name),
		    email = COALESCE($3, email),
		    phone = COALESCE($4, phone),
		    address = COALESCE($5, address),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + clientColumns

	row := db.QueryRowContext(ctx, query, id, upd.Name, upd.Email, upd.Phone, upd.Address)
	if err := scanClient(row, client); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrClientNotFound
		}
		return nil, fmt.Errorf("update client: %w", err)
	}

	return client, nil
}

func DeleteClient(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return ErrClientInUse
		}
		return fmt.Errorf("delete client: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrClientNotFound
	}

	return nil
}

func clientExists(ctx context.Context, q database.Querier, id int64) error {
	var exists bool
	err := q.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM clients WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check client exists: %w", err)
	}
	if !exists {
		return database.ErrClientNotFound
	}
	return nil
}
