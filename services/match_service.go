package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/tennis-tournament/models"
	"github.com/Dosada05/tennis-tournament/repositories"
	"github.com/Dosada05/tennis-tournament/storage"
)

type MatchInput struct {
	Name         string    `json:"name"`
	Location     string    `json:"location"`
	Date         time.Time `json:"date"`
	RefereeID    int       `json:"referee_id"`
	Player1ID    *int      `json:"player1_id,omitempty"`
	Player2ID    *int      `json:"player2_id,omitempty"`
	Player1Score int       `json:"player1_score"`
	Player2Score int       `json:"player2_score"`
}

type MatchService interface {
	CreateMatch(ctx context.Context, input MatchInput) (*models.Match, error)
	RegisterPlayerToMatch(ctx context.Context, matchID, playerID int) (*models.Match, error)
	ListMatches(ctx context.Context) ([]models.Match, error)
	GetMatch(ctx context.Context, id int) (*models.Match, error)
	ListMatchesByReferee(ctx context.Context, refereeID int) ([]models.Match, error)
	UpdateMatchScore(ctx context.Context, id, player1Score, player2Score int) (*models.Match, error)
	UpdateMatch(ctx context.Context, id int, input MatchInput) (*models.Match, error)
	DeleteMatch(ctx context.Context, id int) error
	FindMatches(ctx context.Context, filter models.MatchFilter) ([]models.Match, error)
	ExportMatches(ctx context.Context, w io.Writer, matches []models.Match, format models.ExportFormat) error
	ArchiveExport(ctx context.Context, filter models.MatchFilter, format models.ExportFormat) (*storage.UploadResult, error)
}

type matchService struct {
	matchRepo repositories.MatchRepository
	userRepo  repositories.UserRepository
	uploader  storage.FileUploader
	logger    *slog.Logger
	now       func() time.Time
}

// NewMatchService wires the match service. uploader may be nil, which
// disables ArchiveExport.
func NewMatchService(
	matchRepo repositories.MatchRepository,
	userRepo repositories.UserRepository,
	uploader storage.FileUploader,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		matchRepo: matchRepo,
		userRepo:  userRepo,
		uploader:  uploader,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *matchService) CreateMatch(ctx context.Context, input MatchInput) (*models.Match, error) {
	if err := s.validateInput(ctx, input); err != nil {
		return nil, err
	}

	match := &models.Match{
		Name:         strings.TrimSpace(input.Name),
		Location:     strings.TrimSpace(input.Location),
		Date:         input.Date.UTC(),
		RefereeID:    input.RefereeID,
		Player1ID:    input.Player1ID,
		Player2ID:    input.Player2ID,
		Player1Score: input.Player1Score,
		Player2Score: input.Player2Score,
	}
	if err := s.matchRepo.Create(ctx, match); err != nil {
		return nil, mapMatchRepoError(err)
	}

	s.logger.InfoContext(ctx, "Match created", slog.Int("match_id", match.ID), slog.Int("referee_id", match.RefereeID))
	return match, nil
}

// RegisterPlayerToMatch puts an accepted player into the first free slot.
func (s *matchService) RegisterPlayerToMatch(ctx context.Context, matchID, playerID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, mapMatchRepoError(err)
	}

	player, err := s.requireRole(ctx, playerID, models.RolePlayer, ErrNotAPlayer)
	if err != nil {
		return nil, err
	}
	if !player.IsRegisteredInTournament {
		return nil, ErrPlayerNotAccepted
	}
	if match.HasPlayer(playerID) {
		return nil, ErrPlayerAlreadyInMatch
	}

	switch {
	case match.Player1ID == nil:
		match.Player1ID = &playerID
	case match.Player2ID == nil:
		match.Player2ID = &playerID
	default:
		return nil, ErrMatchFull
	}

	if err := s.matchRepo.Update(ctx, match); err != nil {
		return nil, mapMatchRepoError(err)
	}
	return match, nil
}

func (s *matchService) ListMatches(ctx context.Context) ([]models.Match, error) {
	return s.matchRepo.List(ctx)
}

func (s *matchService) GetMatch(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapMatchRepoError(err)
	}
	return match, nil
}

func (s *matchService) ListMatchesByReferee(ctx context.Context, refereeID int) ([]models.Match, error) {
	if _, err := s.requireRole(ctx, refereeID, models.RoleReferee, ErrNotAReferee); err != nil {
		return nil, err
	}
	return s.matchRepo.ListByReferee(ctx, refereeID)
}

func (s *matchService) UpdateMatchScore(ctx context.Context, id, player1Score, player2Score int) (*models.Match, error) {
	if player1Score < 0 || player2Score < 0 {
		return nil, ErrNegativeScore
	}

	match, err := s.matchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapMatchRepoError(err)
	}
	match.Player1Score = player1Score
	match.Player2Score = player2Score

	if err := s.matchRepo.Update(ctx, match); err != nil {
		return nil, mapMatchRepoError(err)
	}
	return match, nil
}

func (s *matchService) UpdateMatch(ctx context.Context, id int, input MatchInput) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapMatchRepoError(err)
	}
	if err := s.validateInput(ctx, input); err != nil {
		return nil, err
	}

	match.Name = strings.TrimSpace(input.Name)
	match.Location = strings.TrimSpace(input.Location)
	match.Date = input.Date.UTC()
	match.RefereeID = input.RefereeID
	match.Player1ID = input.Player1ID
	match.Player2ID = input.Player2ID
	match.Player1Score = input.Player1Score
	match.Player2Score = input.Player2Score

	if err := s.matchRepo.Update(ctx, match); err != nil {
		return nil, mapMatchRepoError(err)
	}
	return match, nil
}

func (s *matchService) DeleteMatch(ctx context.Context, id int) error {
	if err := s.matchRepo.Delete(ctx, id); err != nil {
		return mapMatchRepoError(err)
	}
	s.logger.InfoContext(ctx, "Match deleted", slog.Int("match_id", id))
	return nil
}

// FindMatches applies the filter predicates in order: date range, location,
// referee, player.
func (s *matchService) FindMatches(ctx context.Context, filter models.MatchFilter) ([]models.Match, error) {
	matches, err := s.matchRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	if filter.From != nil {
		matches = keepMatches(matches, func(m models.Match) bool { return !m.Date.Before(*filter.From) })
	}
	if filter.To != nil {
		matches = keepMatches(matches, func(m models.Match) bool { return !m.Date.After(*filter.To) })
	}
	if filter.Location != nil && *filter.Location != "" {
		matches = keepMatches(matches, func(m models.Match) bool { return containsFold(m.Location, *filter.Location) })
	}
	if filter.RefereeID != nil {
		matches = keepMatches(matches, func(m models.Match) bool { return m.RefereeID == *filter.RefereeID })
	}
	if filter.PlayerID != nil {
		matches = keepMatches(matches, func(m models.Match) bool { return m.HasPlayer(*filter.PlayerID) })
	}
	return matches, nil
}

func (s *matchService) ExportMatches(ctx context.Context, w io.Writer, matches []models.Match, format models.ExportFormat) error {
	exporter, err := ExporterFor(format)
	if err != nil {
		return err
	}
	return exporter.Export(w, matches)
}

// ArchiveExport renders the filtered matches and uploads them to the
// archive bucket.
func (s *matchService) ArchiveExport(ctx context.Context, filter models.MatchFilter, format models.ExportFormat) (*storage.UploadResult, error) {
	if s.uploader == nil {
		return nil, ErrArchiveDisabled
	}
	exporter, err := ExporterFor(format)
	if err != nil {
		return nil, err
	}

	matches, err := s.FindMatches(ctx, filter)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := exporter.Export(&buf, matches); err != nil {
		return nil, fmt.Errorf("render %s export: %w", format, err)
	}

	key := fmt.Sprintf("exports/matches-%s.%s", s.now().UTC().Format("20060102T150405Z"), exporter.Extension())
	result, err := s.uploader.Upload(ctx, key, exporter.ContentType(), &buf)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Match export archived",
		slog.String("key", result.Key),
		slog.Int("matches", len(matches)),
	)
	return result, nil
}

func (s *matchService) validateInput(ctx context.Context, input MatchInput) error {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Location) == "" || input.Date.IsZero() {
		return ErrMatchFieldsRequired
	}
	if input.Player1Score < 0 || input.Player2Score < 0 {
		return ErrNegativeScore
	}
	if input.Player1ID != nil && input.Player2ID != nil && *input.Player1ID == *input.Player2ID {
		return ErrSamePlayerTwice
	}

	if _, err := s.requireRole(ctx, input.RefereeID, models.RoleReferee, ErrNotAReferee); err != nil {
		return err
	}
	for _, id := range []*int{input.Player1ID, input.Player2ID} {
		if id == nil {
			continue
		}
		if _, err := s.requireRole(ctx, *id, models.RolePlayer, ErrNotAPlayer); err != nil {
			return err
		}
	}
	return nil
}

func (s *matchService) requireRole(ctx context.Context, userID int, role models.UserRole, wrongRole error) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserRepoError(err)
	}
	if user.Role != role {
		return nil, fmt.Errorf("%w: user %d", wrongRole, userID)
	}
	return user, nil
}

func mapMatchRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrMatchUserReferenced):
		return ErrUserNotFound
	default:
		return err
	}
}

func keepMatches(matches []models.Match, keep func(models.Match) bool) []models.Match {
	kept := make([]models.Match, 0, len(matches))
	for _, m := range matches {
		if keep(m) {
			kept = append(kept, m)
		}
	}
	return kept
}
