package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"taskboard-api/domain"
)

// backend mirrors the store interface the services consume.
type backend interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
	InsertUser(ctx context.Context, u domain.User) error
	DeleteUser(ctx context.Context, userID string) error
	MutateUser(ctx context.Context, userID string, mutate func(*domain.User) error) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)

	GetBoard(ctx context.Context, boardID string) (domain.Board, error)
	InsertBoard(ctx context.Context, b domain.Board) error
	DeleteBoard(ctx context.Context, boardID string) error
	MutateBoard(ctx context.Context, boardID string, mutate func(*domain.Board) error) (domain.Board, error)

	GetTask(ctx context.Context, boardID, taskID string) (domain.Task, error)
	InsertTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, boardID, taskID string) error
	MutateTask(ctx context.Context, boardID, taskID string, mutate func(*domain.Task) error) (domain.Task, error)
	ListTasks(ctx context.Context, boardID string) ([]domain.Task, error)

	ClaimTitle(ctx context.Context, boardID, normalizedTitle, taskID string) error
	ReleaseTitle(ctx context.Context, boardID, normalizedTitle string) error
}

// Cache wraps a store with Redis-backed caching for the hot reads: board
// documents, user documents and per-board task listings. Writes evict. Redis
// failures degrade to the backing store without surfacing errors.
type Cache struct {
	backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{backend: base, redis: client, ttl: ttl}
}

func (c *Cache) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var u domain.User
	if c.load(ctx, userCacheKey(userID), &u) {
		return u, nil
	}
	u, err := c.backend.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	c.store(ctx, userCacheKey(userID), u)
	return u, nil
}

func (c *Cache) MutateUser(ctx context.Context, userID string, mutate func(*domain.User) error) (domain.User, error) {
	u, err := c.backend.MutateUser(ctx, userID, mutate)
	if err != nil {
		return domain.User{}, err
	}
	c.evict(ctx, userCacheKey(userID))
	return u, nil
}

func (c *Cache) DeleteUser(ctx context.Context, userID string) error {
	if err := c.backend.DeleteUser(ctx, userID); err != nil {
		return err
	}
	c.evict(ctx, userCacheKey(userID))
	return nil
}

func (c *Cache) GetBoard(ctx context.Context, boardID string) (domain.Board, error) {
	var b domain.Board
	if c.load(ctx, boardCacheKey(boardID), &b) {
		return b, nil
	}
	b, err := c.backend.GetBoard(ctx, boardID)
	if err != nil {
		return domain.Board{}, err
	}
	c.store(ctx, boardCacheKey(boardID), b)
	return b, nil
}

func (c *Cache) MutateBoard(ctx context.Context, boardID string, mutate func(*domain.Board) error) (domain.Board, error) {
	b, err := c.backend.MutateBoard(ctx, boardID, mutate)
	if err != nil {
		return domain.Board{}, err
	}
	c.evict(ctx, boardCacheKey(boardID))
	return b, nil
}

func (c *Cache) DeleteBoard(ctx context.Context, boardID string) error {
	if err := c.backend.DeleteBoard(ctx, boardID); err != nil {
		return err
	}
	c.evict(ctx, boardCacheKey(boardID))
	return nil
}

func (c *Cache) ListTasks(ctx context.Context, boardID string) ([]domain.Task, error) {
	var tasks []domain.Task
	if c.load(ctx, tasksCacheKey(boardID), &tasks) {
		return tasks, nil
	}
	tasks, err := c.backend.ListTasks(ctx, boardID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, tasksCacheKey(boardID), tasks)
	return tasks, nil
}

func (c *Cache) InsertTask(ctx context.Context, t domain.Task) error {
	if err := c.backend.InsertTask(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, tasksCacheKey(t.BoardID))
	return nil
}

func (c *Cache) MutateTask(ctx context.Context, boardID, taskID string, mutate func(*domain.Task) error) (domain.Task, error) {
	t, err := c.backend.MutateTask(ctx, boardID, taskID, mutate)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, tasksCacheKey(boardID))
	return t, nil
}

func (c *Cache) DeleteTask(ctx context.Context, boardID, taskID string) error {
	if err := c.backend.DeleteTask(ctx, boardID, taskID); err != nil {
		return err
	}
	c.evict(ctx, tasksCacheKey(boardID))
	return nil
}

func (c *Cache) load(ctx context.Context, key string, out any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, keys ...string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, keys...).Result()
}

func userCacheKey(userID string) string   { return "user:" + userID }
func boardCacheKey(boardID string) string { return "board:" + boardID }
func tasksCacheKey(boardID string) string { return "tasks:" + boardID }
