package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Dosada05/tennis-tournament/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqliteStore serialises writes; go-sqlite does not support concurrent writers.
type sqliteStore struct {
	db        *sql.DB
	writeLock *sync.Mutex
}

type sqliteUserRepository struct{ sqliteStore }

type sqliteMatchRepository struct{ sqliteStore }

// NewSQLiteRepositories returns user and match repositories sharing one database file.
func NewSQLiteRepositories(db *sql.DB) (UserRepository, MatchRepository) {
	store := sqliteStore{db: db, writeLock: new(sync.Mutex)}
	return &sqliteUserRepository{store}, &sqliteMatchRepository{store}
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func (r *sqliteUserRepository) Create(ctx context.Context, user *models.User) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	now := time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO users (username, name, email, password_hash, role, is_registered_in_tournament, registration_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.IsRegisteredInTournament,
		string(user.RegistrationStatus),
		toMillis(now),
	)
	if err != nil {
		return mapSQLiteUserError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = int(id)
	user.CreatedAt = now
	return nil
}

func (r *sqliteUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *sqliteUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (r *sqliteUserRepository) GetByName(ctx context.Context, name string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE name = ?`, name)
}

func (r *sqliteUserRepository) List(ctx context.Context) ([]models.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
}

func (r *sqliteUserRepository) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY id ASC`, string(role))
}

func (r *sqliteUserRepository) ListByRegistered(ctx context.Context, registered bool) ([]models.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE is_registered_in_tournament = ? ORDER BY id ASC`, registered)
}

func (r *sqliteUserRepository) ListByStatus(ctx context.Context, status models.RegistrationStatus) ([]models.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE registration_status = ? ORDER BY id ASC`, string(status))
}

func (r *sqliteUserRepository) Update(ctx context.Context, user *models.User) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			username = ?,
			name = ?,
			email = ?,
			password_hash = ?,
			role = ?,
			is_registered_in_tournament = ?,
			registration_status = ?
		WHERE id = ?`,
		user.Username,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.IsRegisteredInTournament,
		string(user.RegistrationStatus),
		user.ID,
	)
	if err != nil {
		return mapSQLiteUserError(err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *sqliteUserRepository) Exists(ctx context.Context, id int) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *sqliteUserRepository) Delete(ctx context.Context, id int) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		if sqliteCode(err) == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
			return ErrUserInUse
		}
		return err
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *sqliteUserRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	user, err := scanSQLiteUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *sqliteUserRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func scanSQLiteUser(row rowScanner) (*models.User, error) {
	var (
		user      models.User
		createdAt int64
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsRegisteredInTournament,
		&user.RegistrationStatus,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	user.CreatedAt = fromMillis(createdAt)
	return &user, nil
}

func (r *sqliteMatchRepository) Create(ctx context.Context, match *models.Match) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	now := time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO matches (name, location, match_date, referee_id, player1_id, player2_id, player1_score, player2_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		match.Name,
		match.Location,
		toMillis(match.Date),
		match.RefereeID,
		nullableInt(match.Player1ID),
		nullableInt(match.Player2ID),
		match.Player1Score,
		match.Player2Score,
		toMillis(now),
	)
	if err != nil {
		if sqliteCode(err) == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
			return ErrMatchUserReferenced
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	match.ID = int(id)
	match.CreatedAt = now
	return nil
}

func (r *sqliteMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	match, err := scanSQLiteMatch(r.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

func (r *sqliteMatchRepository) List(ctx context.Context) ([]models.Match, error) {
	return r.list(ctx, `SELECT `+matchColumns+` FROM matches ORDER BY match_date ASC, id ASC`)
}

func (r *sqliteMatchRepository) ListByReferee(ctx context.Context, refereeID int) ([]models.Match, error) {
	return r.list(ctx, `SELECT `+matchColumns+` FROM matches WHERE referee_id = ? ORDER BY match_date ASC, id ASC`, refereeID)
}

func (r *sqliteMatchRepository) Update(ctx context.Context, match *models.Match) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	result, err := r.db.ExecContext(ctx, `
		UPDATE matches SET
			name = ?,
			location = ?,
			match_date = ?,
			referee_id = ?,
			player1_id = ?,
			player2_id = ?,
			player1_score = ?,
			player2_score = ?
		WHERE id = ?`,
		match.Name,
		match.Location,
		toMillis(match.Date),
		match.RefereeID,
		nullableInt(match.Player1ID),
		nullableInt(match.Player2ID),
		match.Player1Score,
		match.Player2Score,
		match.ID,
	)
	if err != nil {
		if sqliteCode(err) == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
			return ErrMatchUserReferenced
		}
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *sqliteMatchRepository) Delete(ctx context.Context, id int) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	result, err := r.db.ExecContext(ctx, `DELETE FROM matches WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *sqliteMatchRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Match, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]models.Match, 0)
	for rows.Next() {
		match, err := scanSQLiteMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *match)
	}
	return matches, rows.Err()
}

func scanSQLiteMatch(row rowScanner) (*models.Match, error) {
	var (
		match     models.Match
		date      int64
		createdAt int64
		player1ID sql.NullInt64
		player2ID sql.NullInt64
	)
	err := row.Scan(
		&match.ID,
		&match.Name,
		&match.Location,
		&date,
		&match.RefereeID,
		&player1ID,
		&player2ID,
		&match.Player1Score,
		&match.Player2Score,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	match.Date = fromMillis(date)
	match.CreatedAt = fromMillis(createdAt)
	match.Player1ID = intPtr(player1ID)
	match.Player2ID = intPtr(player2ID)
	return &match, nil
}

func sqliteCode(err error) int {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()
	}
	return 0
}

func mapSQLiteUserError(err error) error {
	if sqliteCode(err) != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return err
	}
	switch msg := err.Error(); {
	case strings.Contains(msg, "users.username"):
		return ErrUserUsernameConflict
	case strings.Contains(msg, "users.name"):
		return ErrUserNameConflict
	}
	return err
}
