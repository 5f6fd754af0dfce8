package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/weblogd/weblogd/internal/domain"
	internal_errors "github.com/weblogd/weblogd/internal/errors"
)

// =========================================================================
// Public Methods (satisfy the service.UserStorage interface)
// =========================================================================

// CreateUser is the public entry point for inserting a new account. It wraps
// the core logic in a transaction so the operation is atomic.
func (s *Storage) CreateUser(user domain.User) (domain.UserId, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var id domain.UserId
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.createUser(tx, user)
		return err
	})
	return id, err
}

// UpdateUser persists changed account fields (enabled flag, activation code,
// password hash). Transaction-wrapped like all writes.
func (s *Storage) UpdateUser(user domain.User) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updateUser(tx, user)
	})
}

// UserByUsername is a read-only lookup on the connection pool.
func (s *Storage) UserByUsername(username domain.Username) (domain.User, error) {
	return s.userBy(s.db, "username = $1", username)
}

// UserByOpenID looks an account up by its normalized OpenID identifier.
func (s *Storage) UserByOpenID(url domain.OpenIDURL) (domain.User, error) {
	return s.userBy(s.db, "openid_url = $1", url.String())
}

// UserByActivationCode finds the pending account matching an activation
// code, if any.
func (s *Storage) UserByActivationCode(code string) (domain.User, error) {
	return s.userBy(s.db, "activation_code = $1", code)
}

// CountUsers returns the total number of accounts. Zero enables the
// bootstrap exception for the very first registration.
func (s *Storage) CountUsers() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// =========================================================================
// Internal Methods (Core Database Logic)
// These methods accept a Querier and are transaction-agnostic.
// =========================================================================

func (s *Storage) createUser(q Querier, user domain.User) (domain.UserId, error) {
	var id domain.UserId
	err := q.QueryRow(`
        INSERT INTO users(username, screen_name, full_name, email, locale, time_zone,
                          password_hash, enabled, activation_code, openid_url)
        VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id`,
		user.Username, user.ScreenName, user.FullName, user.Email, user.Locale, user.TimeZone,
		user.PassHash, user.Enabled, nullable(user.ActivationCode), nullable(user.OpenIDURL.String()),
	).Scan(&id)
	if err != nil {
		return -1, fmt.Errorf("failed to insert user: %w", err)
	}
	return id, nil
}

func (s *Storage) updateUser(q Querier, user domain.User) error {
	result, err := q.Exec(`
        UPDATE users
        SET screen_name = $1, full_name = $2, email = $3, locale = $4, time_zone = $5,
            password_hash = $6, enabled = $7, activation_code = $8, openid_url = $9
        WHERE id = $10`,
		user.ScreenName, user.FullName, user.Email, user.Locale, user.TimeZone,
		user.PassHash, user.Enabled, nullable(user.ActivationCode), nullable(user.OpenIDURL.String()),
		user.Id,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows for user update: %w", err)
	}
	if rowsAffected == 0 {
		return &internal_errors.ErrorWithStatusCode{Message: "User not found for update", StatusCode: http.StatusNotFound}
	}
	return nil
}

func (s *Storage) userBy(q Querier, where string, arg interface{}) (domain.User, error) {
	var user domain.User
	var activationCode, openIDURL sql.NullString
	err := q.QueryRow(`
        SELECT id, username, screen_name, full_name, email, locale, time_zone,
               password_hash, enabled, activation_code, openid_url, created_at
        FROM users WHERE `+where, arg,
	).Scan(&user.Id, &user.Username, &user.ScreenName, &user.FullName, &user.Email,
		&user.Locale, &user.TimeZone, &user.PassHash, &user.Enabled,
		&activationCode, &openIDURL, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, &internal_errors.ErrorWithStatusCode{Message: "User not found", StatusCode: http.StatusNotFound}
		}
		return domain.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	user.ActivationCode = activationCode.String
	user.OpenIDURL = domain.OpenIDURL(openIDURL.String)
	return user, nil
}

// nullable maps empty strings to SQL NULL so unique indexes on
// activation_code and openid_url ignore absent values.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
