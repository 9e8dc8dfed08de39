package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dosada05/tennis-tournament/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound       = errors.New("match not found")
	ErrMatchUserReferenced = errors.New("match references a missing user")
)

type MatchRepository interface {
	Create(ctx context.Context, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	List(ctx context.Context) ([]models.Match, error)
	ListByReferee(ctx context.Context, refereeID int) ([]models.Match, error)
	Update(ctx context.Context, match *models.Match) error
	Delete(ctx context.Context, id int) error
}

const matchColumns = `id, name, location, match_date, referee_id, player1_id, player2_id, player1_score, player2_score, created_at`

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) Create(ctx context.Context, match *models.Match) error {
	query := `
		INSERT INTO matches (name, location, match_date, referee_id, player1_id, player2_id, player1_score, player2_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		match.Name,
		match.Location,
		match.Date,
		match.RefereeID,
		nullableInt(match.Player1ID),
		nullableInt(match.Player2ID),
		match.Player1Score,
		match.Player2Score,
	).Scan(&match.ID, &match.CreatedAt)
	if err != nil {
		return mapPostgresMatchError(err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	match, err := scanMatchRow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

func (r *postgresMatchRepository) List(ctx context.Context) ([]models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches ORDER BY match_date ASC, id ASC`
	return listMatches(ctx, r.db, query)
}

func (r *postgresMatchRepository) ListByReferee(ctx context.Context, refereeID int) ([]models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE referee_id = $1 ORDER BY match_date ASC, id ASC`
	return listMatches(ctx, r.db, query, refereeID)
}

func (r *postgresMatchRepository) Update(ctx context.Context, match *models.Match) error {
	query := `
		UPDATE matches SET
			name = $1,
			location = $2,
			match_date = $3,
			referee_id = $4,
			player1_id = $5,
			player2_id = $6,
			player1_score = $7,
			player2_score = $8
		WHERE id = $9`

	result, err := r.db.ExecContext(ctx, query,
		match.Name,
		match.Location,
		match.Date,
		match.RefereeID,
		nullableInt(match.Player1ID),
		nullableInt(match.Player2ID),
		match.Player1Score,
		match.Player2Score,
		match.ID,
	)
	if err != nil {
		return mapPostgresMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM matches WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func listMatches(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]models.Match, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]models.Match, 0)
	for rows.Next() {
		match, err := scanMatchRow(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *match)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

func scanMatchRow(row rowScanner) (*models.Match, error) {
	var (
		match     models.Match
		player1ID sql.NullInt64
		player2ID sql.NullInt64
	)
	err := row.Scan(
		&match.ID,
		&match.Name,
		&match.Location,
		&match.Date,
		&match.RefereeID,
		&player1ID,
		&player2ID,
		&match.Player1Score,
		&match.Player2Score,
		&match.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	match.Player1ID = intPtr(player1ID)
	match.Player2ID = intPtr(player2ID)
	return &match, nil
}

func mapPostgresMatchError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" { // foreign_key_violation
		return ErrMatchUserReferenced
	}
	return err
}
