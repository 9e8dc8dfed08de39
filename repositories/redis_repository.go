package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Dosada05/tennis-tournament/models"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "tennis"
	maxTxAttempts  = 5
)

func redisUserKey(id int) string { return fmt.Sprintf("%s:user:%d", redisKeyPrefix, id) }
func redisUsernameKey(name string) string { return fmt.Sprintf("%s:idx:username:%s", redisKeyPrefix, name) }
func redisNameKey(name string) string { return fmt.Sprintf("%s:idx:name:%s", redisKeyPrefix, name) }
func redisMatchKey(id int) string { return fmt.Sprintf("%s:match:%d", redisKeyPrefix, id) }
func redisSequenceKey(kind string) string { return fmt.Sprintf("%s:seq:%s", redisKeyPrefix, kind) }
func redisCollectionKey(kind string) string { return fmt.Sprintf("%s:idx:%s", redisKeyPrefix, kind) }

// redisUser is the stored form of a user; models.User hides the hash from JSON.
type redisUser struct {
	ID                       int                       `json:"id"`
	Username                 string                    `json:"username"`
	Name                     string                    `json:"name"`
	Email                    string                    `json:"email"`
	PasswordHash             string                    `json:"password_hash"`
	Role                     models.UserRole           `json:"role"`
	IsRegisteredInTournament bool                      `json:"is_registered_in_tournament"`
	RegistrationStatus       models.RegistrationStatus `json:"registration_status"`
	CreatedAt                time.Time                 `json:"created_at"`
}

func toRedisUser(u *models.User) redisUser {
	return redisUser{
		ID:                       u.ID,
		Username:                 u.Username,
		Name:                     u.Name,
		Email:                    u.Email,
		PasswordHash:             u.PasswordHash,
		Role:                     u.Role,
		IsRegisteredInTournament: u.IsRegisteredInTournament,
		RegistrationStatus:       u.RegistrationStatus,
		CreatedAt:                u.CreatedAt,
	}
}

func (r redisUser) toModel() models.User {
	return models.User{
		ID:                       r.ID,
		Username:                 r.Username,
		Name:                     r.Name,
		Email:                    r.Email,
		PasswordHash:             r.PasswordHash,
		Role:                     r.Role,
		IsRegisteredInTournament: r.IsRegisteredInTournament,
		RegistrationStatus:       r.RegistrationStatus,
		CreatedAt:                r.CreatedAt,
	}
}

// RedisStore keeps users and matches as JSON documents with index keys for
// username and name lookups.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the Redis server at url and verifies the connection.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Users() UserRepository { return redisUserRepository{s} }
func (s *RedisStore) Matches() MatchRepository { return redisMatchRepository{s} }

type redisUserRepository struct{ s *RedisStore }

func (r redisUserRepository) Create(ctx context.Context, user *models.User) error {
	c := r.s.client

	seq, err := c.Incr(ctx, redisSequenceKey("user")).Result()
	if err != nil {
		return fmt.Errorf("allocate user id: %w", err)
	}
	id := int(seq)

	if err := r.claim(ctx, redisUsernameKey(user.Username), id, ErrUserUsernameConflict); err != nil {
		return err
	}
	if err := r.claim(ctx, redisNameKey(user.Name), id, ErrUserNameConflict); err != nil {
		r.release(ctx, redisUsernameKey(user.Username))
		return err
	}

	user.ID = id
	user.CreatedAt = time.Now().UTC()
	if err := r.write(ctx, user); err != nil {
		r.release(ctx, redisUsernameKey(user.Username), redisNameKey(user.Name))
		return err
	}
	return nil
}

func (r redisUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	data, err := r.s.client.Get(ctx, redisUserKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	var stored redisUser
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode user %d: %w", id, err)
	}
	user := stored.toModel()
	return &user, nil
}

func (r redisUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getByIndex(ctx, redisUsernameKey(username))
}

func (r redisUserRepository) GetByName(ctx context.Context, name string) (*models.User, error) {
	return r.getByIndex(ctx, redisNameKey(name))
}

func (r redisUserRepository) List(ctx context.Context) ([]models.User, error) {
	return r.filter(ctx, func(models.User) bool { return true })
}

func (r redisUserRepository) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	return r.filter(ctx, func(u models.User) bool { return u.Role == role })
}

func (r redisUserRepository) ListByRegistered(ctx context.Context, registered bool) ([]models.User, error) {
	return r.filter(ctx, func(u models.User) bool { return u.IsRegisteredInTournament == registered })
}

func (r redisUserRepository) ListByStatus(ctx context.Context, status models.RegistrationStatus) ([]models.User, error) {
	return r.filter(ctx, func(u models.User) bool { return u.RegistrationStatus == status })
}

func (r redisUserRepository) Update(ctx context.Context, user *models.User) error {
	existing, err := r.GetByID(ctx, user.ID)
	if err != nil {
		return err
	}

	var claimed []string
	if existing.Username != user.Username {
		if err := r.claim(ctx, redisUsernameKey(user.Username), user.ID, ErrUserUsernameConflict); err != nil {
			return err
		}
		claimed = append(claimed, redisUsernameKey(user.Username))
	}
	if existing.Name != user.Name {
		if err := r.claim(ctx, redisNameKey(user.Name), user.ID, ErrUserNameConflict); err != nil {
			r.release(ctx, claimed...)
			return err
		}
		claimed = append(claimed, redisNameKey(user.Name))
	}

	user.CreatedAt = existing.CreatedAt
	if err := r.write(ctx, user); err != nil {
		r.release(ctx, claimed...)
		return err
	}

	var stale []string
	if existing.Username != user.Username {
		stale = append(stale, redisUsernameKey(existing.Username))
	}
	if existing.Name != user.Name {
		stale = append(stale, redisNameKey(existing.Name))
	}
	if len(stale) > 0 {
		return r.s.client.Del(ctx, stale...).Err()
	}
	return nil
}

func (r redisUserRepository) Exists(ctx context.Context, id int) (bool, error) {
	n, err := r.s.client.Exists(ctx, redisUserKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes the user unless a match is refereed by them, and empties the
// player slots they hold. The match documents are watched so a concurrent
// write retries the whole check.
func (r redisUserRepository) Delete(ctx context.Context, id int) error {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := r.s.client.Watch(ctx, func(tx *redis.Tx) error {
			return r.deleteTx(ctx, tx, id)
		}, redisUserKey(id), redisCollectionKey("matches"))
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("delete user %d: %w", id, redis.TxFailedErr)
}

func (r redisUserRepository) deleteTx(ctx context.Context, tx *redis.Tx, id int) error {
	data, err := tx.Get(ctx, redisUserKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrUserNotFound
		}
		return err
	}
	var existing redisUser
	if err := json.Unmarshal(data, &existing); err != nil {
		return fmt.Errorf("decode user %d: %w", id, err)
	}

	members, err := tx.ZRange(ctx, redisCollectionKey("matches"), 0, -1).Result()
	if err != nil {
		return err
	}
	matchKeys := make([]string, 0, len(members))
	for _, m := range members {
		matchID, err := strconv.Atoi(m)
		if err != nil {
			return fmt.Errorf("corrupt matches index entry %q: %w", m, err)
		}
		matchKeys = append(matchKeys, redisMatchKey(matchID))
	}

	var vacated []models.Match
	if len(matchKeys) > 0 {
		if err := tx.Watch(ctx, matchKeys...).Err(); err != nil {
			return err
		}
		values, err := tx.MGet(ctx, matchKeys...).Result()
		if err != nil {
			return err
		}
		for _, v := range values {
			doc, ok := v.(string)
			if !ok {
				continue
			}
			var m models.Match
			if err := json.Unmarshal([]byte(doc), &m); err != nil {
				return fmt.Errorf("decode match: %w", err)
			}
			if m.RefereeID == id {
				return ErrUserInUse
			}
			if m.HasPlayer(id) {
				vacated = append(vacated, withoutPlayer(m, id))
			}
		}
	}

	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, m := range vacated {
			doc, err := json.Marshal(m)
			if err != nil {
				return err
			}
			pipe.Set(ctx, redisMatchKey(m.ID), doc, 0)
		}
		pipe.Del(ctx, redisUserKey(id), redisUsernameKey(existing.Username), redisNameKey(existing.Name))
		pipe.ZRem(ctx, redisCollectionKey("users"), id)
		return nil
	})
	return err
}

// claim reserves an index key for id. Holding the key already is not a conflict.
func (r redisUserRepository) claim(ctx context.Context, key string, id int, conflict error) error {
	ok, err := r.s.client.SetNX(ctx, key, id, 0).Result()
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	holder, err := r.s.client.Get(ctx, key).Int()
	if err != nil {
		return err
	}
	if holder != id {
		return conflict
	}
	return nil
}

// release frees index keys claimed by a write that did not complete.
func (r redisUserRepository) release(ctx context.Context, keys ...string) {
	if len(keys) > 0 {
		r.s.client.Del(ctx, keys...)
	}
}

func (r redisUserRepository) write(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(toRedisUser(user))
	if err != nil {
		return err
	}
	_, err = r.s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisUserKey(user.ID), data, 0)
		pipe.ZAdd(ctx, redisCollectionKey("users"), redis.Z{Score: float64(user.ID), Member: user.ID})
		return nil
	})
	return err
}

func (r redisUserRepository) getByIndex(ctx context.Context, key string) (*models.User, error) {
	id, err := r.s.client.Get(ctx, key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r redisUserRepository) filter(ctx context.Context, keep func(models.User) bool) ([]models.User, error) {
	docs, err := r.s.loadCollection(ctx, "users", redisUserKey)
	if err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		var stored redisUser
		if err := json.Unmarshal(doc, &stored); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		if u := stored.toModel(); keep(u) {
			users = append(users, u)
		}
	}
	return users, nil
}

// loadCollection fetches every document of a collection in id order.
func (s *RedisStore) loadCollection(ctx context.Context, kind string, keyFor func(int) string) ([][]byte, error) {
	members, err := s.client.ZRange(ctx, redisCollectionKey(kind), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(members))
	for _, m := range members {
		id, err := strconv.Atoi(m)
		if err != nil {
			return nil, fmt.Errorf("corrupt %s index entry %q: %w", kind, m, err)
		}
		keys = append(keys, keyFor(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	docs := make([][]byte, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		docs = append(docs, []byte(str))
	}
	return docs, nil
}

type redisMatchRepository struct{ s *RedisStore }

func (r redisMatchRepository) Create(ctx context.Context, match *models.Match) error {
	seq, err := r.s.client.Incr(ctx, redisSequenceKey("match")).Result()
	if err != nil {
		return fmt.Errorf("allocate match id: %w", err)
	}
	match.ID = int(seq)
	match.CreatedAt = time.Now().UTC()
	return r.write(ctx, match)
}

func (r redisMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	data, err := r.s.client.Get(ctx, redisMatchKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	var match models.Match
	if err := json.Unmarshal(data, &match); err != nil {
		return nil, fmt.Errorf("decode match %d: %w", id, err)
	}
	return &match, nil
}

func (r redisMatchRepository) List(ctx context.Context) ([]models.Match, error) {
	return r.filter(ctx, func(models.Match) bool { return true })
}

func (r redisMatchRepository) ListByReferee(ctx context.Context, refereeID int) ([]models.Match, error) {
	return r.filter(ctx, func(m models.Match) bool { return m.RefereeID == refereeID })
}

func (r redisMatchRepository) Update(ctx context.Context, match *models.Match) error {
	existing, err := r.GetByID(ctx, match.ID)
	if err != nil {
		return err
	}
	match.CreatedAt = existing.CreatedAt
	return r.write(ctx, match)
}

func (r redisMatchRepository) Delete(ctx context.Context, id int) error {
	n, err := r.s.client.Del(ctx, redisMatchKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMatchNotFound
	}
	return r.s.client.ZRem(ctx, redisCollectionKey("matches"), id).Err()
}

func (r redisMatchRepository) write(ctx context.Context, match *models.Match) error {
	data, err := json.Marshal(match)
	if err != nil {
		return err
	}
	_, err = r.s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisMatchKey(match.ID), data, 0)
		pipe.ZAdd(ctx, redisCollectionKey("matches"), redis.Z{Score: float64(match.ID), Member: match.ID})
		return nil
	})
	return err
}

func (r redisMatchRepository) filter(ctx context.Context, keep func(models.Match) bool) ([]models.Match, error) {
	docs, err := r.s.loadCollection(ctx, "matches", redisMatchKey)
	if err != nil {
		return nil, err
	}
	matches := make([]models.Match, 0, len(docs))
	for _, doc := range docs {
		var m models.Match
		if err := json.Unmarshal(doc, &m); err != nil {
			return nil, fmt.Errorf("decode match: %w", err)
		}
		if keep(m) {
			matches = append(matches, m)
		}
	}
	sortMatches(matches)
	return matches, nil
}
