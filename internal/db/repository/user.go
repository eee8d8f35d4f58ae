package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/pramothar/farmwith/internal/models"
)

// Sentinel errors surfaced to callers so handlers can map them to HTTP codes.
var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

const userColumns = `id, email, password_hash, totp_secret, mfa_enabled, login_attempts,
	last_attempt, last_login, oidc_provider, oidc_subject, auth_method, created_at, updated_at`

// UserRepository handles user data access
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user. A missing ID is filled with a fresh UUID.
func (r *UserRepository) Create(user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.AuthMethod == "" {
		user.AuthMethod = models.AuthMethodLocal
	}

	query := `
		INSERT INTO users (id, email, password_hash, totp_secret, mfa_enabled, auth_method)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.TOTPSecret,
		boolToInt(user.MFAEnabled),
		user.AuthMethod,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	return nil
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER(?)`
	return r.scanOne(r.db.QueryRow(query, email))
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id))
}

// RecordFailedLogin bumps the failed-attempt counter and stamps the attempt
// time. Single statement so a cancelled request cannot leave it half done.
func (r *UserRepository) RecordFailedLogin(id string) error {
	query := `
		UPDATE users
		SET login_attempts = login_attempts + 1, last_attempt = CURRENT_TIMESTAMP,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(query, id)
}

// RecordSuccessfulLogin resets the failed-attempt counter, stamps the login
// time and marks the local path as the most recent successful one.
func (r *UserRepository) RecordSuccessfulLogin(id string) error {
	query := `
		UPDATE users
		SET login_attempts = 0, last_login = CURRENT_TIMESTAMP,
		    auth_method = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(query, models.AuthMethodLocal, id)
}

// SetPasswordHash overwrites the stored hash, invalidating the old password
func (r *UserRepository) SetPasswordHash(id, hash string) error {
	query := `
		UPDATE users
		SET password_hash = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(query, hash, id)
}

// SetTOTPSecret stores a TOTP secret without enabling MFA
func (r *UserRepository) SetTOTPSecret(id, secret string) error {
	query := `
		UPDATE users
		SET totp_secret = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(query, secret, id)
}

// EnableMFA flips the MFA flag on. Callers must have verified a code first.
func (r *UserRepository) EnableMFA(id string) error {
	query := `
		UPDATE users
		SET mfa_enabled = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(query, id)
}

// LinkOIDC records the federated identity on the user and marks the OIDC
// path as the most recent successful one.
func (r *UserRepository) LinkOIDC(id, provider, subject string) error {
	query := `
		UPDATE users
		SET oidc_provider = ?, oidc_subject = ?, auth_method = ?,
		    last_login = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(query, provider, subject, models.AuthMethodOIDC, id)
}

func (r *UserRepository) exec(query string, args ...any) error {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) scanOne(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var (
		mfaEnabled   int
		passwordHash sql.NullString
		totpSecret   sql.NullString
		lastAttempt  sql.NullTime
		lastLogin    sql.NullTime
		oidcProvider sql.NullString
		oidcSubject  sql.NullString
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&passwordHash,
		&totpSecret,
		&mfaEnabled,
		&user.LoginAttempts,
		&lastAttempt,
		&lastLogin,
		&oidcProvider,
		&oidcSubject,
		&user.AuthMethod,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.MFAEnabled = mfaEnabled == 1
	user.PasswordHash = nullString(passwordHash)
	user.TOTPSecret = nullString(totpSecret)
	user.LastAttempt = nullTime(lastAttempt)
	user.LastLogin = nullTime(lastLogin)
	user.OIDCProvider = nullString(oidcProvider)
	user.OIDCSubject = nullString(oidcSubject)

	return user, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
