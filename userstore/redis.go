package userstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	authcore "github.com/squeezyhq/authcore"
)

// ErrEmailTaken is returned by Create when the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// ErrRedisUnavailable wraps Redis transport failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	fieldID            = "id"
	fieldEmail         = "email"
	fieldName          = "name"
	fieldPasswordHash  = "password_hash"
	fieldEmailVerified = "email_verified"
	fieldMFAEnabled    = "mfa_enabled"
	fieldMFASecret     = "mfa_secret"
	fieldCreatedAt     = "created_at"
	fieldUpdatedAt     = "updated_at"
)

// enableMFAScript flips the enabled flag only when a secret is present, so
// the enabled-implies-secret invariant holds even under racing revokes.
const enableMFAScript = `
local secret = redis.call("HGET", KEYS[1], "mfa_secret")
if not secret or secret == "" then
  return 0
end
redis.call("HSET", KEYS[1], "mfa_enabled", "1", "updated_at", ARGV[1])
return 1
`

var enableMFALua = redis.NewScript(enableMFAScript)

// provisionMFAScript claims the secret slot first-write-wins. An empty field
// counts as absent, matching the enable guard above.
const provisionMFAScript = `
local secret = redis.call("HGET", KEYS[1], "mfa_secret")
if not secret or secret == "" then
  redis.call("HSET", KEYS[1], "mfa_secret", ARGV[1], "updated_at", ARGV[2])
  return ARGV[1]
end
return secret
`

var provisionMFALua = redis.NewScript(provisionMFAScript)

// RedisStore implements authcore.UserStore on Redis hashes.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisStore(redis redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ac"
	}
	return &RedisStore{
		redis:  redis,
		prefix: prefix,
	}
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + ":acct:" + userID
}

func (s *RedisStore) emailKey(email string) string {
	return s.prefix + ":email:" + email
}

/*
====================================
ACCOUNT CREATION AND LOOKUP
====================================
*/

// Create registers a new user. The email index is claimed with SETNX first;
// losing the claim yields [ErrEmailTaken] without touching any user hash.
func (s *RedisStore) Create(ctx context.Context, email, name, passwordHash string) (authcore.UserRecord, error) {
	user := authcore.UserRecord{
		UserID:       uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	claimed, err := s.redis.SetNX(ctx, s.emailKey(email), user.UserID, 0).Result()
	if err != nil {
		return authcore.UserRecord{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !claimed {
		return authcore.UserRecord{}, ErrEmailTaken
	}

	if err := s.redis.HSet(ctx, s.userKey(user.UserID), hashFields(user)).Err(); err != nil {
		return authcore.UserRecord{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return user, nil
}

func (s *RedisStore) FindByEmail(ctx context.Context, email string) (authcore.UserRecord, error) {
	userID, err := s.redis.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return authcore.UserRecord{}, authcore.ErrUserNotFound
		}
		return authcore.UserRecord{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return s.FindByID(ctx, userID)
}

func (s *RedisStore) FindByID(ctx context.Context, userID string) (authcore.UserRecord, error) {
	fields, err := s.redis.HGetAll(ctx, s.userKey(userID)).Result()
	if err != nil {
		return authcore.UserRecord{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return authcore.UserRecord{}, authcore.ErrUserNotFound
	}

	return recordFromHash(fields), nil
}

// Save writes the full record back. The email index is not rewritten; email
// changes are out of scope for this store.
func (s *RedisStore) Save(ctx context.Context, user authcore.UserRecord) error {
	user.UpdatedAt = time.Now().UTC()
	if err := s.redis.HSet(ctx, s.userKey(user.UserID), hashFields(user)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

/*
====================================
MFA FIELD OPERATIONS
====================================
*/

// ProvisionMFASecret stores secret only if no secret exists yet and returns
// whichever secret is stored afterwards. Concurrent callers all receive the
// winner.
func (s *RedisStore) ProvisionMFASecret(ctx context.Context, userID, secret string) (string, error) {
	key := s.userKey(userID)

	exists, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if exists == 0 {
		return "", authcore.ErrUserNotFound
	}

	stored, err := provisionMFALua.Run(
		ctx,
		s.redis,
		[]string{key},
		secret,
		strconv.FormatInt(time.Now().UTC().Unix(), 10),
	).Text()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return stored, nil
}

// EnableMFA flips the enabled flag. Refuses a user without a provisioned
// secret.
func (s *RedisStore) EnableMFA(ctx context.Context, userID string) error {
	result, err := enableMFALua.Run(
		ctx,
		s.redis,
		[]string{s.userKey(userID)},
		strconv.FormatInt(time.Now().UTC().Unix(), 10),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if result == 0 {
		return authcore.ErrMFANotEnabled
	}
	return nil
}

// DisableMFA clears the secret and the enabled flag in one transaction.
func (s *RedisStore) DisableMFA(ctx context.Context, userID string) error {
	key := s.userKey(userID)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, key, fieldMFASecret)
		pipe.HSet(ctx, key, fieldMFAEnabled, "0", fieldUpdatedAt, strconv.FormatInt(time.Now().UTC().Unix(), 10))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

/*
====================================
HASH MAPPING
====================================
*/

func hashFields(user authcore.UserRecord) map[string]interface{} {
	return map[string]interface{}{
		fieldID:            user.UserID,
		fieldEmail:         user.Email,
		fieldName:          user.Name,
		fieldPasswordHash:  user.PasswordHash,
		fieldEmailVerified: boolField(user.EmailVerified),
		fieldMFAEnabled:    boolField(user.MFA.Enabled),
		fieldMFASecret:     user.MFA.Secret,
		fieldCreatedAt:     strconv.FormatInt(user.CreatedAt.Unix(), 10),
		fieldUpdatedAt:     strconv.FormatInt(user.UpdatedAt.Unix(), 10),
	}
}

func recordFromHash(fields map[string]string) authcore.UserRecord {
	return authcore.UserRecord{
		UserID:        fields[fieldID],
		Email:         fields[fieldEmail],
		Name:          fields[fieldName],
		PasswordHash:  fields[fieldPasswordHash],
		EmailVerified: fields[fieldEmailVerified] == "1",
		MFA: authcore.MFAPreference{
			Enabled: fields[fieldMFAEnabled] == "1",
			Secret:  fields[fieldMFASecret],
		},
		CreatedAt: timeField(fields[fieldCreatedAt]),
		UpdatedAt: timeField(fields[fieldUpdatedAt]),
	}
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func timeField(v string) time.Time {
	unix, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}
