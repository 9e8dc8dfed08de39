package routes

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dosada05/tennis-tournament/handlers"
	"github.com/Dosada05/tennis-tournament/hub"
	"github.com/Dosada05/tennis-tournament/models"
	"github.com/Dosada05/tennis-tournament/repositories"
	"github.com/Dosada05/tennis-tournament/services"
	"github.com/Dosada05/tennis-tournament/storage"
	"github.com/Dosada05/tennis-tournament/utils"
)

const testSecret = "routes-secret"

type APISuite struct {
	suite.Suite
	server   *httptest.Server
	uploader *storage.MemoryUploader
	users    services.UserService

	adminToken string
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repositories.NewMemoryStore()
	s.uploader = storage.NewMemoryUploader("https://cdn.example.com")

	wsHub := hub.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	s.T().Cleanup(cancel)
	go wsHub.Run(ctx)

	notifier := services.MultiNotifier{hub.Notifier{Hub: wsHub}, services.LogNotifier{Logger: logger}}
	s.users = services.NewUserService(store.Users(), utils.NewBcryptHasher(bcrypt.MinCost), notifier, logger)
	matches := services.NewMatchService(store.Matches(), store.Users(), s.uploader, logger)

	router := SetupRoutes(Handlers{
		Auth:      handlers.NewAuthHandler(s.users, testSecret, time.Hour),
		Users:     handlers.NewUserHandler(s.users),
		Matches:   handlers.NewMatchHandler(matches),
		WebSocket: handlers.NewWebSocketHandler(wsHub, nil, logger),
	}, Options{
		JWTSecret:      []byte(testSecret),
		AllowedOrigins: []string{"http://localhost:3000"},
		Logger:         logger,
	})
	s.server = httptest.NewServer(router)
	s.T().Cleanup(s.server.Close)

	_, err := s.users.AddUser(context.Background(), services.UserInput{
		Username: "root", Name: "Root", Password: "rootpw", Email: "root@example.com", Role: string(models.RoleAdmin),
	})
	s.Require().NoError(err)
	s.adminToken = s.signIn("root", "rootpw")
}

func (s *APISuite) do(method, path, token string, body any) (int, []byte) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp.StatusCode, data
}

func (s *APISuite) decode(data []byte) map[string]json.RawMessage {
	var out map[string]json.RawMessage
	s.Require().NoError(json.Unmarshal(data, &out), string(data))
	return out
}

func (s *APISuite) user(data []byte) models.User {
	var user models.User
	s.Require().NoError(json.Unmarshal(s.decode(data)["user"], &user))
	return user
}

func (s *APISuite) match(data []byte) models.Match {
	var match models.Match
	s.Require().NoError(json.Unmarshal(s.decode(data)["match"], &match))
	return match
}

func (s *APISuite) signUp(username, role string) models.User {
	status, data := s.do(http.MethodPost, "/auth/signup", "", map[string]string{
		"username": username,
		"name":     "Name " + username,
		"password": "pw-" + username,
		"email":    username + "@example.com",
		"role":     role,
	})
	s.Require().Equal(http.StatusCreated, status, string(data))
	return s.user(data)
}

func (s *APISuite) signIn(username, password string) string {
	status, data := s.do(http.MethodPost, "/auth/signin", "", map[string]string{
		"username": username,
		"password": password,
	})
	s.Require().Equal(http.StatusOK, status, string(data))

	var token string
	s.Require().NoError(json.Unmarshal(s.decode(data)["token"], &token))
	return token
}

func (s *APISuite) acceptedPlayer(username string) (models.User, string) {
	player := s.signUp(username, "")
	token := s.signIn(username, "pw-"+username)

	status, _ := s.do(http.MethodPost, fmt.Sprintf("/users/%d/registration", player.ID), token, nil)
	s.Require().Equal(http.StatusOK, status)
	status, data := s.do(http.MethodPost, fmt.Sprintf("/users/%d/registration/accept", player.ID), s.adminToken, nil)
	s.Require().Equal(http.StatusOK, status, string(data))
	return s.user(data), token
}

func (s *APISuite) TestHealthzAndDocs() {
	status, _ := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, status)

	status, data := s.do(http.MethodGet, "/swagger/doc.json", "", nil)
	s.Equal(http.StatusOK, status)
	s.Contains(string(data), `"swagger"`)
}

func (s *APISuite) TestSignUpAndSignIn() {
	user := s.signUp("rafa", "")
	s.Equal(models.RolePlayer, user.Role)
	s.Equal(models.RegistrationNone, user.RegistrationStatus)
	s.NotContains(string(must(json.Marshal(user))), "password")

	status, _ := s.do(http.MethodPost, "/auth/signup", "", map[string]string{
		"username": "rafa", "name": "Other", "password": "x", "email": "o@example.com",
	})
	s.Equal(http.StatusConflict, status)

	status, _ = s.do(http.MethodPost, "/auth/signup", "", map[string]string{
		"username": "boss", "name": "Boss", "password": "x", "email": "b@example.com", "role": "administrator",
	})
	s.Equal(http.StatusBadRequest, status)

	status, _ = s.do(http.MethodPost, "/auth/signup", "", map[string]string{
		"username": "empty", "name": " ", "password": "x", "email": "e@example.com",
	})
	s.Equal(http.StatusBadRequest, status)

	status, _ = s.do(http.MethodPost, "/auth/signin", "", map[string]string{"username": "rafa", "password": "wrong"})
	s.Equal(http.StatusUnauthorized, status)

	status, _ = s.do(http.MethodPost, "/auth/signin", "", map[string]string{"username": "ghost", "password": "x"})
	s.Equal(http.StatusNotFound, status)

	token := s.signIn("rafa", "pw-rafa")
	status, data := s.do(http.MethodGet, "/users/me", token, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Equal(user.ID, s.user(data).ID)
}

func (s *APISuite) TestAuthenticationRequired() {
	status, _ := s.do(http.MethodGet, "/users/me", "", nil)
	s.Equal(http.StatusUnauthorized, status)

	status, _ = s.do(http.MethodGet, "/users/me", "not-a-token", nil)
	s.Equal(http.StatusUnauthorized, status)

	s.signUp("rafa", "")
	token := s.signIn("rafa", "pw-rafa")

	status, _ = s.do(http.MethodGet, "/users/", token, nil)
	s.Equal(http.StatusForbidden, status)

	status, _ = s.do(http.MethodPost, "/matches/", token, map[string]any{})
	s.Equal(http.StatusForbidden, status)
}

func (s *APISuite) TestRegistrationFlow() {
	player := s.signUp("rafa", "")
	other := s.signUp("roger", "")
	token := s.signIn("rafa", "pw-rafa")

	status, _ := s.do(http.MethodPost, fmt.Sprintf("/users/%d/registration", other.ID), token, nil)
	s.Equal(http.StatusForbidden, status)

	status, data := s.do(http.MethodPost, fmt.Sprintf("/users/%d/registration", player.ID), token, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Equal(models.RegistrationPending, s.user(data).RegistrationStatus)

	status, data = s.do(http.MethodGet, "/users/?status=pending", s.adminToken, nil)
	s.Require().Equal(http.StatusOK, status)
	var pending []models.User
	s.Require().NoError(json.Unmarshal(s.decode(data)["users"], &pending))
	s.Require().Len(pending, 1)
	s.Equal(player.ID, pending[0].ID)

	status, data = s.do(http.MethodPost, fmt.Sprintf("/users/%d/registration/accept", player.ID), s.adminToken, nil)
	s.Require().Equal(http.StatusOK, status)
	accepted := s.user(data)
	s.Equal(models.RegistrationAccepted, accepted.RegistrationStatus)
	s.True(accepted.IsRegisteredInTournament)

	status, data = s.do(http.MethodGet, "/users/filter?competing=true", s.adminToken, nil)
	s.Require().Equal(http.StatusOK, status)
	var competing []models.User
	s.Require().NoError(json.Unmarshal(s.decode(data)["users"], &competing))
	s.Len(competing, 1)

	status, data = s.do(http.MethodDelete, fmt.Sprintf("/users/%d/registration", player.ID), token, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Equal(models.RegistrationNone, s.user(data).RegistrationStatus)
	s.False(s.user(data).IsRegisteredInTournament)

	status, _ = s.do(http.MethodPost, "/users/999/registration/reject", s.adminToken, nil)
	s.Equal(http.StatusNotFound, status)
}

func (s *APISuite) TestUpdateCredentials() {
	player := s.signUp("rafa", "")
	s.signUp("roger", "")
	token := s.signIn("rafa", "pw-rafa")
	path := fmt.Sprintf("/users/%d/credentials", player.ID)

	status, _ := s.do(http.MethodPut, path, token, map[string]string{
		"old_password": "nope", "new_password": "new", "username": "rafa2", "name": "Rafa", "email": "r@example.com",
	})
	s.Equal(http.StatusUnauthorized, status)

	status, _ = s.do(http.MethodPut, path, token, map[string]string{
		"old_password": "pw-rafa", "new_password": "new", "username": "roger", "name": "Rafa", "email": "r@example.com",
	})
	s.Equal(http.StatusConflict, status)

	status, data := s.do(http.MethodPut, path, token, map[string]string{
		"old_password": "pw-rafa", "new_password": "new", "username": "rafa2", "name": "Rafa", "email": "r@example.com",
	})
	s.Require().Equal(http.StatusOK, status, string(data))
	s.Equal("rafa2", s.user(data).Username)

	s.signIn("rafa2", "new")
}

func (s *APISuite) TestAdminUserManagement() {
	status, data := s.do(http.MethodPost, "/users/", s.adminToken, map[string]any{
		"username": "ref", "name": "Ref", "password": "pw", "email": "ref@example.com", "role": "referee",
	})
	s.Require().Equal(http.StatusCreated, status, string(data))
	referee := s.user(data)

	status, _ = s.do(http.MethodPost, "/users/", s.adminToken, map[string]any{
		"username": "bad", "name": "Bad", "password": "pw", "email": "bad@example.com", "role": "player",
		"is_registered_in_tournament": true, "registration_status": "PENDING",
	})
	s.Equal(http.StatusBadRequest, status)

	status, data = s.do(http.MethodPut, fmt.Sprintf("/users/%d", referee.ID), s.adminToken, map[string]any{
		"username": "ref", "name": "Referee", "password": "pw2", "email": "ref@example.com", "role": "referee",
	})
	s.Require().Equal(http.StatusOK, status, string(data))
	s.Equal("Referee", s.user(data).Name)

	status, data = s.do(http.MethodGet, "/users/?role=Referee", s.adminToken, nil)
	s.Require().Equal(http.StatusOK, status)
	var referees []models.User
	s.Require().NoError(json.Unmarshal(s.decode(data)["users"], &referees))
	s.Require().Len(referees, 1)
	s.Equal(referee.ID, referees[0].ID)
	status, _ = s.do(http.MethodGet, "/users/?role=coach", s.adminToken, nil)
	s.Equal(http.StatusBadRequest, status)

	status, _ = s.do(http.MethodDelete, fmt.Sprintf("/users/%d", referee.ID), s.adminToken, nil)
	s.Equal(http.StatusNoContent, status)
	status, _ = s.do(http.MethodGet, fmt.Sprintf("/users/%d", referee.ID), s.adminToken, nil)
	s.Equal(http.StatusNotFound, status)
	status, _ = s.do(http.MethodGet, "/users/abc", s.adminToken, nil)
	s.Equal(http.StatusBadRequest, status)
}

func (s *APISuite) TestMatchLifecycle() {
	referee := s.signUp("mo", "referee")
	refereeToken := s.signIn("mo", "pw-mo")
	rafa, _ := s.acceptedPlayer("rafa")
	roger, _ := s.acceptedPlayer("roger")

	status, data := s.do(http.MethodPost, "/matches/", s.adminToken, map[string]any{
		"name": "Final", "location": "Centre Court", "date": "2026-06-01T10:00:00Z", "referee_id": referee.ID,
	})
	s.Require().Equal(http.StatusCreated, status, string(data))
	match := s.match(data)

	status, _ = s.do(http.MethodPost, "/matches/", s.adminToken, map[string]any{
		"name": "Bad", "location": "Court 9", "date": "2026-06-01T10:00:00Z", "referee_id": rafa.ID,
	})
	s.Equal(http.StatusBadRequest, status)

	for _, player := range []models.User{rafa, roger} {
		status, data = s.do(http.MethodPost, fmt.Sprintf("/matches/%d/players", match.ID), s.adminToken, map[string]int{"player_id": player.ID})
		s.Require().Equal(http.StatusOK, status, string(data))
	}
	third, _ := s.acceptedPlayer("novak")
	status, _ = s.do(http.MethodPost, fmt.Sprintf("/matches/%d/players", match.ID), s.adminToken, map[string]int{"player_id": third.ID})
	s.Equal(http.StatusConflict, status)

	scorePath := fmt.Sprintf("/matches/%d/score", match.ID)
	status, data = s.do(http.MethodPut, scorePath, refereeToken, map[string]int{"player1_score": 6, "player2_score": 4})
	s.Require().Equal(http.StatusOK, status, string(data))
	s.Equal(6, s.match(data).Player1Score)

	status, _ = s.do(http.MethodPut, scorePath, refereeToken, map[string]int{"player1_score": -1, "player2_score": 4})
	s.Equal(http.StatusBadRequest, status)

	otherRef := s.signUp("carlos", "referee")
	status, _ = s.do(http.MethodPut, scorePath, s.signIn("carlos", "pw-carlos"), map[string]int{"player1_score": 0, "player2_score": 6})
	s.Equal(http.StatusForbidden, status)

	status, data = s.do(http.MethodGet, fmt.Sprintf("/referees/%d/matches", referee.ID), "", nil)
	s.Require().Equal(http.StatusOK, status)
	var byReferee []models.Match
	s.Require().NoError(json.Unmarshal(s.decode(data)["matches"], &byReferee))
	s.Len(byReferee, 1)

	status, data = s.do(http.MethodGet, fmt.Sprintf("/referees/%d/matches", otherRef.ID), "", nil)
	s.Require().Equal(http.StatusOK, status)
	s.JSONEq(`{"matches": []}`, string(data))

	status, _ = s.do(http.MethodGet, fmt.Sprintf("/referees/%d/matches", rafa.ID), "", nil)
	s.Equal(http.StatusBadRequest, status)

	status, _ = s.do(http.MethodDelete, fmt.Sprintf("/matches/%d", match.ID), s.adminToken, nil)
	s.Equal(http.StatusNoContent, status)
	status, _ = s.do(http.MethodGet, fmt.Sprintf("/matches/%d", match.ID), "", nil)
	s.Equal(http.StatusNotFound, status)
}

func (s *APISuite) TestMatchFiltersAndExport() {
	referee := s.signUp("mo", "referee")
	for i, location := range []string{"Court 1", "Court 2", "Stadium"} {
		status, data := s.do(http.MethodPost, "/matches/", s.adminToken, map[string]any{
			"name":       fmt.Sprintf("R%d", i+1),
			"location":   location,
			"date":       time.Date(2026, 6, 1+i, 10, 0, 0, 0, time.UTC),
			"referee_id": referee.ID,
		})
		s.Require().Equal(http.StatusCreated, status, string(data))
	}

	status, data := s.do(http.MethodGet, "/matches/?from=2026-06-01&to=2026-06-02", "", nil)
	s.Require().Equal(http.StatusOK, status)
	var inRange []models.Match
	s.Require().NoError(json.Unmarshal(s.decode(data)["matches"], &inRange))
	s.Len(inRange, 2)

	status, _ = s.do(http.MethodGet, "/matches/?from=yesterday", "", nil)
	s.Equal(http.StatusBadRequest, status)

	status, _ = s.do(http.MethodGet, "/matches/export?location=court", "", nil)
	s.Equal(http.StatusUnauthorized, status)

	token := s.signIn("mo", "pw-mo")
	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/matches/export?location=court", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Contains(resp.Header.Get("Content-Type"), "text/csv")
	s.Contains(resp.Header.Get("Content-Disposition"), `filename="matches.csv"`)
	records, err := csv.NewReader(resp.Body).ReadAll()
	s.Require().NoError(err)
	s.Len(records, 3)

	status, _ = s.do(http.MethodGet, "/matches/export?format=pdf", token, nil)
	s.Equal(http.StatusBadRequest, status)

	status, _ = s.do(http.MethodPost, "/matches/export/archive?format=txt", token, nil)
	s.Equal(http.StatusForbidden, status)

	status, data = s.do(http.MethodPost, "/matches/export/archive?format=txt", s.adminToken, nil)
	s.Require().Equal(http.StatusCreated, status, string(data))
	var archive storage.UploadResult
	s.Require().NoError(json.Unmarshal(s.decode(data)["archive"], &archive))
	_, ok := s.uploader.Object(archive.Key)
	s.True(ok)
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
