package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Santi4567/Akima-sub001/internal/database"
	"github.com/Santi4567/Akima-sub001/internal/models"
)

const userColumns = `id, name, email, password_hash, role, active, created_at, updated_at`

type UserInput struct {
	Name         string
	Email        string
	PasswordHash string
	Role         string
}

type UserUpdate struct {
	Name         *string
	Email        *string
	Role         *string
	Active       *bool
	PasswordHash *string
}

func (u UserUpdate) empty() bool {
	return u.Name == nil && u.Email == nil && u.Role == nil && u.Active == nil && u.PasswordHash == nil
}

func scanUser(row rowScanner, user *models.User) error {
	return row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
}

func CreateUser(ctx context.Context, db *sql.DB, in UserInput) (*models.User, error) {
	user := &models.User{}

	query := `
		INSERT INTO users (name, email, password_hash, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
		RETURNING ` + userColumns

	if err := scanUser(db.QueryRowContext(ctx, query, in.Name, in.Email, in.PasswordHash, in.Role), user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicate.With("field", "email")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// EnsureUser creates the user unless one with the same email exists. It
// reports whether a row was inserted.
func EnsureUser(ctx context.Context, db *sql.DB, in UserInput) (bool, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, role, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
		 ON CONFLICT (email) DO NOTHING`,
		in.Name, in.Email, in.PasswordHash, in.Role)
	if err != nil {
		return false, fmt.Errorf("ensure user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

func GetUser(ctx context.Context, db *sql.DB, id int64) (*models.User, error) {
	user := &models.User{}

	if err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id), user); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*models.User, error) {
	user := &models.User{}

	err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email), user)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return user, nil
}

func ListUsers(ctx context.Context, db *sql.DB, page Page) (*OffsetPage, error) {
	page = page.Normalize()

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, page.PageSize, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var user models.User
		if err := scanUser(rows, &user); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(users, total, page), nil
}

func UpdateUser(ctx context.Context, db *sql.DB, id int64, upd UserUpdate) (*models.User, error) {
	if upd.empty() {
		return nil, ErrNothingToApply
	}

	user := &models.User{}

	query := `
		UPDATE users
		SET name = COALESCE($2, name),
		    email = COALESCE($3, email),
		    role = COALESCE($4, role),
		    active = COALESCE($5, active),
		    password_hash = COALESCE($6, password_hash),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	row := db.QueryRowContext(ctx, query, id, upd.Name, upd.Email, upd.Role, upd.Active, upd.PasswordHash)
	if err := scanUser(row, user); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUserNotFound
		}
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicate.With("field", "email")
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	return user, nil
}

// DeactivateUser disables login for a user. Rows are kept because orders,
// payments and returns reference their author.
func DeactivateUser(ctx context.Context, db *sql.DB, id int64) error {
	inactive := false
	_, err := UpdateUser(ctx, db, id, UserUpdate{Active: &inactive})
	return err
}
