package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"go-todo-app/internal/models"
)

const (
	todoListCacheKey = "todos:list"
	// 一覧を破棄するたびに増える世代番号
	todoListGenKey = "todos:list:gen"
)

// 読み込み開始時の世代番号が変わっていなければ保存する
var storeIfGenerationScript = redis.NewScript(`
if (redis.call("GET", KEYS[2]) or "0") == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

type todoBackend interface {
	FindAll(ctx context.Context) ([]*models.Todo, error)
	Create(ctx context.Context, title string, description *string) (*models.Todo, error)
	MarkDone(ctx context.Context, id string) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// CachedTodoRepository は一覧取得の結果を Redis にキャッシュするラッパーです。
// 更新系の操作が成功するとキャッシュを破棄します。
type CachedTodoRepository struct {
	base  todoBackend
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedTodoRepository は base を Redis キャッシュで包みます。
// client が nil、または ttl が 0 の場合はキャッシュしません。
func NewCachedTodoRepository(base todoBackend, client *redis.Client, ttl time.Duration) *CachedTodoRepository {
	if base == nil {
		panic("repositories.NewCachedTodoRepository: base repository is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &CachedTodoRepository{base: base, redis: client, ttl: ttl}
}

// FindAll はキャッシュがあればそれを返し、なければ base から取得して保存します。
func (c *CachedTodoRepository) FindAll(ctx context.Context) ([]*models.Todo, error) {
	if todos, ok := c.load(ctx); ok {
		return todos, nil
	}

	// DB を読む前の世代番号。読み込み中に破棄されたら結果は保存しない
	gen, genOK := c.generation(ctx)

	todos, err := c.base.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	if genOK {
		c.store(ctx, gen, todos)
	}
	return todos, nil
}

// Create は Todo を作成し、一覧キャッシュを破棄します。
func (c *CachedTodoRepository) Create(ctx context.Context, title string, description *string) (*models.Todo, error) {
	t, err := c.base.Create(ctx, title, description)
	if err != nil {
		return nil, err
	}
	c.evict(ctx)
	return t, nil
}

// MarkDone は Todo を完了にし、更新があった場合だけキャッシュを破棄します。
func (c *CachedTodoRepository) MarkDone(ctx context.Context, id string) (int64, error) {
	n, err := c.base.MarkDone(ctx, id)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.evict(ctx)
	}
	return n, nil
}

// Delete は Todo を削除し、削除があった場合だけキャッシュを破棄します。
func (c *CachedTodoRepository) Delete(ctx context.Context, id string) (int64, error) {
	n, err := c.base.Delete(ctx, id)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.evict(ctx)
	}
	return n, nil
}

func (c *CachedTodoRepository) load(ctx context.Context) ([]*models.Todo, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, todoListCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// Redis の障害時はデータベースにフォールバックする
			log.WithError(err).Warn("todo list cache read failed")
			_ = c.redis.Del(ctx, todoListCacheKey).Err()
		}
		return nil, false
	}
	var todos []*models.Todo
	if err := json.Unmarshal(data, &todos); err != nil {
		_ = c.redis.Del(ctx, todoListCacheKey).Err()
		return nil, false
	}
	return todos, true
}

func (c *CachedTodoRepository) generation(ctx context.Context) (string, bool) {
	if c.redis == nil || c.ttl == 0 {
		return "", false
	}
	gen, err := c.redis.Get(ctx, todoListGenKey).Result()
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	if err != nil {
		log.WithError(err).Warn("todo list cache generation read failed")
		return "", false
	}
	return gen, true
}

func (c *CachedTodoRepository) store(ctx context.Context, gen string, todos []*models.Todo) {
	data, err := json.Marshal(todos)
	if err != nil {
		return
	}
	ms := c.ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	stored, err := storeIfGenerationScript.Run(ctx, c.redis,
		[]string{todoListCacheKey, todoListGenKey}, gen, data, ms).Int()
	if err != nil {
		log.WithError(err).Warn("todo list cache write failed")
		return
	}
	if stored == 0 {
		log.Debug("todo list changed while loading, cache not updated")
	}
}

// evict は世代番号を進めてから一覧を削除します。
func (c *CachedTodoRepository) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, todoListGenKey)
		pipe.Del(ctx, todoListCacheKey)
		return nil
	})
	if err != nil {
		log.WithError(err).Warn("todo list cache evict failed")
	}
}
