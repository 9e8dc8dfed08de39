package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Dosada05/tennis-tournament/middleware"
	"github.com/Dosada05/tennis-tournament/models"
	"github.com/Dosada05/tennis-tournament/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(ms services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

type registerPlayerInput struct {
	PlayerID int `json:"player_id"`
}

type scoreInput struct {
	Player1Score int `json:"player1_score"`
	Player2Score int `json:"player2_score"`
}

// ListMatches returns every match, or the matches selected by the from, to,
// location, referee_id and player_id query parameters.
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	filter, hasFilter, err := parseMatchFilter(r.URL.Query())
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var matches []models.Match
	if hasFilter {
		matches, err = h.matchService.FindMatches(r.Context(), filter)
	} else {
		matches, err = h.matchService.ListMatches(r.Context())
	}
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respondMatches(w, r, matches)
}

func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respondMatch(w, r, http.StatusOK, match)
}

func (h *MatchHandler) ListMatchesByReferee(w http.ResponseWriter, r *http.Request) {
	refereeID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.matchService.ListMatchesByReferee(r.Context(), refereeID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respondMatches(w, r, matches)
}

func (h *MatchHandler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var input services.MatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.CreateMatch(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respondMatch(w, r, http.StatusCreated, match)
}

func (h *MatchHandler) UpdateMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.MatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.UpdateMatch(r.Context(), matchID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respondMatch(w, r, http.StatusOK, match)
}

func (h *MatchHandler) DeleteMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.matchService.DeleteMatch(r.Context(), matchID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MatchHandler) RegisterPlayer(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input registerPlayerInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.PlayerID <= 0 {
		badRequestResponse(w, r, errors.New("player_id is required"))
		return
	}

	match, err := h.matchService.RegisterPlayerToMatch(r.Context(), matchID, input.PlayerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respondMatch(w, r, http.StatusOK, match)
}

// UpdateScore records a result. Referees may only score their own matches.
func (h *MatchHandler) UpdateScore(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input scoreInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	role, err := middleware.GetUserRoleFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}
	if role == models.RoleReferee {
		currentUserID, err := middleware.GetUserIDFromContext(r.Context())
		if err != nil {
			unauthorizedResponse(w, r, "failed to identify current user")
			return
		}
		match, err := h.matchService.GetMatch(r.Context(), matchID)
		if err != nil {
			mapServiceErrorToHTTP(w, r, err)
			return
		}
		if match.RefereeID != currentUserID {
			mapServiceErrorToHTTP(w, r, services.ErrForbiddenOperation)
			return
		}
	}

	match, err := h.matchService.UpdateMatchScore(r.Context(), matchID, input.Player1Score, input.Player2Score)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respondMatch(w, r, http.StatusOK, match)
}

// ExportMatches streams the filtered matches as a downloadable file.
func (h *MatchHandler) ExportMatches(w http.ResponseWriter, r *http.Request) {
	format := exportFormat(r.URL.Query())
	exporter, err := services.ExporterFor(format)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	filter, _, err := parseMatchFilter(r.URL.Query())
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	matches, err := h.matchService.FindMatches(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := h.matchService.ExportMatches(r.Context(), &buf, matches, format); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="matches.%s"`, exporter.Extension()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *MatchHandler) ArchiveExport(w http.ResponseWriter, r *http.Request) {
	filter, _, err := parseMatchFilter(r.URL.Query())
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.matchService.ArchiveExport(r.Context(), filter, exportFormat(r.URL.Query()))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"archive": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func exportFormat(query url.Values) models.ExportFormat {
	if f := query.Get("format"); f != "" {
		return models.ExportFormat(f)
	}
	return models.ExportCSV
}

// parseMatchFilter reads the match query parameters. Dates are RFC 3339 or
// YYYY-MM-DD; a bare "to" date covers the whole day.
func parseMatchFilter(query url.Values) (models.MatchFilter, bool, error) {
	var (
		filter models.MatchFilter
		found  bool
	)

	if raw := query.Get("from"); raw != "" {
		from, _, err := parseDate(raw)
		if err != nil {
			return filter, false, fmt.Errorf("invalid from parameter: %w", err)
		}
		filter.From = &from
		found = true
	}
	if raw := query.Get("to"); raw != "" {
		to, dateOnly, err := parseDate(raw)
		if err != nil {
			return filter, false, fmt.Errorf("invalid to parameter: %w", err)
		}
		if dateOnly {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		filter.To = &to
		found = true
	}
	if raw := query.Get("location"); raw != "" {
		filter.Location = &raw
		found = true
	}
	for param, dst := range map[string]**int{"referee_id": &filter.RefereeID, "player_id": &filter.PlayerID} {
		raw := query.Get(param)
		if raw == "" {
			continue
		}
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			return filter, false, fmt.Errorf("invalid %s parameter", param)
		}
		*dst = &id
		found = true
	}
	return filter, found, nil
}

func parseDate(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("expected RFC 3339 or YYYY-MM-DD, got %q", raw)
	}
	return t, true, nil
}

func respondMatch(w http.ResponseWriter, r *http.Request, status int, match *models.Match) {
	if err := writeJSON(w, status, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func respondMatches(w http.ResponseWriter, r *http.Request, matches []models.Match) {
	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
