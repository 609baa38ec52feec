package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/keyxmakerx/minutes/internal/apperror"
	"github.com/keyxmakerx/minutes/internal/roles"
)

// UserRepository defines the data access contract for user operations.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type UserRepository interface {
	// Create inserts user. The first account ever stored becomes admin
	// whatever user.Role says; the stored role is written back to user.Role.
	// Returns ErrEmailTaken when the email is already registered.
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdateLastLogin(ctx context.Context, id string) error

	// Password reset. The hash and its expiry are written and cleared in
	// one statement each.
	SetPasswordResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	FindByPasswordResetHash(ctx context.Context, tokenHash string, now time.Time) (*User, error)
	CompletePasswordReset(ctx context.Context, userID, tokenHash, passwordHash string, now time.Time) (bool, error)

	// Email verification.
	SetEmailVerificationToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	FindByEmailVerificationHash(ctx context.Context, tokenHash string, now time.Time) (*User, error)
	MarkEmailVerified(ctx context.Context, userID, tokenHash string) (bool, error)

	// Admin operations. UpdateRole and UpdateIsActive return ErrLastAdmin
	// rather than leave no active admin.
	ListUsers(ctx context.Context, offset, limit int) ([]User, int, error)
	UpdateRole(ctx context.Context, id string, role roles.Role) error
	UpdateIsActive(ctx context.Context, id string, active bool) error
	CountActiveAdmins(ctx context.Context) (int, error)
}

// userRepository implements UserRepository with hand-written MariaDB queries.
type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository backed by the given DB pool.
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, email, username, password_hash, role, is_active, email_verified,
	locale, created_at, last_login_at,
	password_reset_token_hash, password_reset_expires,
	email_verification_token_hash, email_verification_expires`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	var role string
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &role, &u.IsActive, &u.EmailVerified,
		&u.Locale, &u.CreatedAt, &u.LastLoginAt,
		&u.PasswordResetTokenHash, &u.PasswordResetExpires,
		&u.EmailVerificationTokenHash, &u.EmailVerificationExpires,
	)
	if err != nil {
		return nil, err
	}
	u.Role = roles.Parse(role)
	return u, nil
}

// findOne runs a single-row user query, mapping no rows to NotFound.
func (r *userRepository) findOne(ctx context.Context, what, query string, args ...any) (*User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by %s: %w", what, err)
	}
	return u, nil
}

// MySQL server error numbers the repository reacts to.
const (
	errDuplicateEntry = 1062
	errLockDeadlock   = 1213
)

func isMySQLError(err error, number uint16) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == number
}

// Create inserts a new user row into the users table. The role is chosen
// inside the INSERT, so two concurrent first registrations cannot both
// become admin: InnoDB locks the scanned range and one of them deadlocks
// and is retried, by which time it sees the other row.
func (r *userRepository) Create(ctx context.Context, user *User) error {
	query := `INSERT INTO users (id, email, username, password_hash, role, is_active, locale, created_at)
	          SELECT ?, ?, ?, ?,
	                 CASE WHEN EXISTS (SELECT 1 FROM users) THEN ? ELSE 'admin' END,
	                 ?, ?, ?
	          FROM DUAL`

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		_, err = r.db.ExecContext(ctx, query,
			user.ID,
			user.Email,
			user.Username,
			user.PasswordHash,
			user.Role.String(),
			user.IsActive,
			user.Locale,
			user.CreatedAt,
		)
		if !isMySQLError(err, errLockDeadlock) {
			break
		}
	}
	if isMySQLError(err, errDuplicateEntry) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	var role string
	if err := r.db.QueryRowContext(ctx, `SELECT role FROM users WHERE id = ?`, user.ID).Scan(&role); err != nil {
		return fmt.Errorf("reading stored role: %w", err)
	}
	user.Role = roles.Parse(role)
	return nil
}

// FindByID retrieves a user by their UUID.
func (r *userRepository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, "id", `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// FindByEmail retrieves a user by their email address.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, "email", `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// EmailExists returns true if a user with the given email already exists.
func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking email existence: %w", err)
	}
	return exists, nil
}

// UpdateLastLogin sets the last_login_at timestamp to now for the given user.
func (r *userRepository) UpdateLastLogin(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = ?`, id); err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	return nil
}

// --- Password Reset ---

// SetPasswordResetToken stores a reset fingerprint and its expiry,
// replacing any earlier pending reset.
func (r *userRepository) SetPasswordResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	query := `UPDATE users SET password_reset_token_hash = ?, password_reset_expires = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, tokenHash, expiresAt.UTC(), userID); err != nil {
		return fmt.Errorf("storing reset token: %w", err)
	}
	return nil
}

// FindByPasswordResetHash returns the active user holding an unexpired
// reset token with this fingerprint.
func (r *userRepository) FindByPasswordResetHash(ctx context.Context, tokenHash string, now time.Time) (*User, error) {
	return r.findOne(ctx, "reset token",
		`SELECT `+userColumns+` FROM users
		 WHERE password_reset_token_hash = ? AND password_reset_expires > ? AND is_active = TRUE`,
		tokenHash, now.UTC())
}

// CompletePasswordReset sets the new password and clears the reset token in
// one statement. The WHERE clause repeats every condition of
// FindByPasswordResetHash, so of two concurrent redemptions only one
// affects a row, and a token that expired or an account disabled since the
// lookup affects none. Returns false in those cases.
func (r *userRepository) CompletePasswordReset(ctx context.Context, userID, tokenHash, passwordHash string, now time.Time) (bool, error) {
	query := `UPDATE users
	          SET password_hash = ?, password_reset_token_hash = NULL, password_reset_expires = NULL
	          WHERE id = ? AND password_reset_token_hash = ?
	            AND password_reset_expires > ? AND is_active = TRUE`
	result, err := r.db.ExecContext(ctx, query, passwordHash, userID, tokenHash, now.UTC())
	if err != nil {
		return false, fmt.Errorf("completing password reset: %w", err)
	}
	n, _ := result.RowsAffected()
	return n == 1, nil
}

// --- Email Verification ---

// SetEmailVerificationToken stores a verification fingerprint and its expiry.
func (r *userRepository) SetEmailVerificationToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	query := `UPDATE users SET email_verification_token_hash = ?, email_verification_expires = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, tokenHash, expiresAt.UTC(), userID); err != nil {
		return fmt.Errorf("storing verification token: %w", err)
	}
	return nil
}

// FindByEmailVerificationHash returns the user holding an unexpired
// verification token with this fingerprint.
func (r *userRepository) FindByEmailVerificationHash(ctx context.Context, tokenHash string, now time.Time) (*User, error) {
	return r.findOne(ctx, "verification token",
		`SELECT `+userColumns+` FROM users
		 WHERE email_verification_token_hash = ? AND email_verification_expires > ?`,
		tokenHash, now.UTC())
}

// MarkEmailVerified flags the address as verified and clears the token in
// one guarded statement.
func (r *userRepository) MarkEmailVerified(ctx context.Context, userID, tokenHash string) (bool, error) {
	query := `UPDATE users
	          SET email_verified = TRUE, email_verification_token_hash = NULL, email_verification_expires = NULL
	          WHERE id = ? AND email_verification_token_hash = ?`
	result, err := r.db.ExecContext(ctx, query, userID, tokenHash)
	if err != nil {
		return false, fmt.Errorf("marking email verified: %w", err)
	}
	n, _ := result.RowsAffected()
	return n == 1, nil
}

// --- Admin Operations ---

// ListUsers returns a paginated list of all users ordered by creation date,
// plus the total count.
func (r *userRepository) ListUsers(ctx context.Context, offset, limit int) ([]User, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

// UpdateRole changes a user's role. Demoting an active admin is refused
// with ErrLastAdmin when no other active admin exists.
func (r *userRepository) UpdateRole(ctx context.Context, id string, role roles.Role) error {
	return r.updateGuarded(ctx, id, role == roles.RoleAdmin,
		`UPDATE users SET role = ? WHERE id = ?`, role.String(), id)
}

// UpdateIsActive enables or disables an account. Disabling the last active
// admin is refused with ErrLastAdmin.
func (r *userRepository) UpdateIsActive(ctx context.Context, id string, active bool) error {
	return r.updateGuarded(ctx, id, active,
		`UPDATE users SET is_active = ? WHERE id = ?`, active, id)
}

// updateGuarded runs an admin update in a transaction that first locks
// every active admin row. Concurrent demotions therefore serialize, and
// the second one sees the first one's result before it counts. keepsAdmin
// reports whether the target stays an active admin if it is one now.
func (r *userRepository) updateGuarded(ctx context.Context, id string, keepsAdmin bool, query string, args ...any) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM users WHERE role = 'admin' AND is_active = TRUE FOR UPDATE`)
	if err != nil {
		return fmt.Errorf("locking admins: %w", err)
	}
	admins := 0
	targetIsAdmin := false
	for rows.Next() {
		var adminID string
		if err := rows.Scan(&adminID); err != nil {
			rows.Close()
			return fmt.Errorf("scanning admin row: %w", err)
		}
		admins++
		if adminID == id {
			targetIsAdmin = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("locking admins: %w", err)
	}

	if targetIsAdmin && !keepsAdmin && admins <= 1 {
		return ErrLastAdmin
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		// MariaDB reports 0 for a no-op update too; confirm the row exists.
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("checking user: %w", err)
		}
		if !exists {
			return apperror.NewNotFound("user not found")
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing user update: %w", err)
	}
	return nil
}

// CountActiveAdmins returns the number of enabled admin accounts. Used to
// prevent removing the last one.
func (r *userRepository) CountActiveAdmins(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = 'admin' AND is_active = TRUE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting admins: %w", err)
	}
	return count, nil
}
