package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/bookstore/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	redisSessionPrefix = "bookstore:session:"
	redisLockPrefix    = "bookstore:session-lock:"

	// redisLockTTL はロック保持者が異常終了した場合にロックが自然解放されるまでの時間。
	redisLockTTL = 10 * time.Second
	// redisLockWait はロック取得を諦めるまでの最大待ち時間。
	redisLockWait  = 5 * time.Second
	redisLockRetry = 20 * time.Millisecond
)

// ErrSessionLocked はセッションロックを時間内に取得できなかった場合に返される。
var ErrSessionLocked = errors.New("session is locked by another request")

// ロック保持者のトークンが一致する場合のみ削除する。
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// redisSessionRecord はRedisに保存するセッションの表現。
type redisSessionRecord struct {
	State     model.SessionState `json:"state"`
	ExpiresAt time.Time          `json:"expires_at"`
	CreatedAt time.Time          `json:"created_at"`
}

// RedisSessionRepo はRedisを使用したセッションリポジトリ。
// 有効期限はキーのTTLで管理するため、DeleteExpiredは何もしない。
type RedisSessionRepo struct {
	client redis.UniversalClient
}

// NewRedisSessionRepo はRedisSessionRepoを生成する。
func NewRedisSessionRepo(client redis.UniversalClient) *RedisSessionRepo {
	return &RedisSessionRepo{client: client}
}

// Create はセッションを作成する。
func (r *RedisSessionRepo) Create(ctx context.Context, session *model.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s is already expired", session.ID)
	}

	data, err := json.Marshal(redisSessionRecord{
		State:     session.State,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := r.client.Set(ctx, redisSessionPrefix+session.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。存在しない場合はnilを返す。
func (r *RedisSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	rec, err := r.get(ctx, r.client, id)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !rec.ExpiresAt.After(time.Now()) {
		return nil, nil
	}

	return &model.Session{
		ID:        id,
		State:     rec.State,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
	}, nil
}

// Update はセッション単位のロックを取得してから状態を読み込み、fnで変更して書き戻す。
// fnは楽観的リトライで再実行されることはなく、ロック下で一度だけ呼ばれる。
func (r *RedisSessionRepo) Update(ctx context.Context, id string, fn SessionMutator) error {
	token, err := r.acquireLock(ctx, id)
	if err != nil {
		return err
	}
	defer r.releaseLock(id, token)

	rec, err := r.get(ctx, r.client, id)
	if errors.Is(err, redis.Nil) {
		return ErrSessionNotFound
	}
	if err != nil {
		return err
	}

	if err := fn(ctx, &rec.State); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	// KEEPTTLで既存の有効期限を維持する。更新中に期限切れになった場合は書き戻さない。
	err = r.client.SetArgs(ctx, redisSessionPrefix+id, data, redis.SetArgs{KeepTTL: true, Mode: "XX"}).Err()
	if errors.Is(err, redis.Nil) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *RedisSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, redisSessionPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired はRedisのTTLに任せるため常に0を返す。
func (r *RedisSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

func (r *RedisSessionRepo) get(ctx context.Context, c redis.Cmdable, id string) (*redisSessionRecord, error) {
	raw, err := c.Get(ctx, redisSessionPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	rec := &redisSessionRecord{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return rec, nil
}

func (r *RedisSessionRepo) acquireLock(ctx context.Context, id string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	token := hex.EncodeToString(buf)
	key := redisLockPrefix + id

	deadline := time.Now().Add(redisLockWait)
	for {
		ok, err := r.client.SetNX(ctx, key, token, redisLockTTL).Result()
		if err != nil {
			return "", fmt.Errorf("failed to acquire session lock: %w", err)
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", ErrSessionLocked
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(redisLockRetry):
		}
	}
}

// releaseLock はリクエストのコンテキストとは独立に解放する。
func (r *RedisSessionRepo) releaseLock(id, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = releaseLockScript.Run(ctx, r.client, []string{redisLockPrefix + id}, token).Err()
}

// compile-time interface check
var _ SessionRepository = (*RedisSessionRepo)(nil)
