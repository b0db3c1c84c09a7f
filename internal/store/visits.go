package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Santi4567/Akima-sub001/internal/database"
	"github.com/Santi4567/Akima-sub001/internal/models"
)

const visitColumns = `id, client_id, user_id, visit_date, notes, created_at`

type VisitInput struct {
	ClientID  int64
	UserID    int64
	VisitDate time.Time
	Notes     string
}

type VisitFilter struct {
	ClientID *int64
	UserID   *int64
	Page
}

func scanVisit(row rowScanner, visit *models.Visit) error {
	return row.Scan(&visit.ID, &visit.ClientID, &visit.UserID, &visit.VisitDate, &visit.Notes, &visit.CreatedAt)
}

func CreateVisit(ctx context.Context, db *sql.DB, in VisitInput) (*models.Visit, error) {
	if err := clientExists(ctx, db, in.ClientID); err != nil {
		return nil, err
	}

	visit := &models.Visit{}

	query := `
		INSERT INTO visits (client_id, user_id, visit_date, notes, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING ` + visitColumns

	if err := scanVisit(db.QueryRowContext(ctx, query, in.ClientID, in.UserID, in.VisitDate, in.Notes), visit); err != nil {
		return nil, fmt.Errorf("create visit: %w", err)
	}

	return visit, nil
}

func GetVisit(ctx context.Context, db *sql.DB, id int64) (*models.Visit, error) {
	visit := &models.Visit{}

	if err := scanVisit(db.QueryRowContext(ctx, `SELECT `+visitColumns+` FROM visits WHERE id = $1`, id), visit); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrVisitNotFound
		}
		return nil, fmt.Errorf("get visit: %w", err)
	}

	return visit, nil
}

func ListVisits(ctx context.Context, db *sql.DB, filter VisitFilter) (*OffsetPage, error) {
	page := filter.Page.Normalize()

	where := `WHERE ($1::BIGINT IS NULL OR client_id = $1) AND ($2::BIGINT IS NULL OR user_id = $2)`

	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM visits `+where, filter.ClientID, filter.UserID).Scan(&total); err != nil {
		return nil, fmt.Errorf("count visits: %w", err)
	}

	query := `SELECT ` + visitColumns + ` FROM visits ` + where + `
		ORDER BY visit_date DESC, id DESC
		LIMIT $3 OFFSET $4`

	rows, err := db.QueryContext(ctx, query, filter.ClientID, filter.UserID, page.PageSize, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()

	visits := []models.Visit{}
	for rows.Next() {
		var visit models.Visit
		if err := scanVisit(rows, &visit); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		visits = append(visits, visit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(visits, total, page), nil
}

func DeleteVisit(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM visits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete visit: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrVisitNotFound
	}

	return nil
}
