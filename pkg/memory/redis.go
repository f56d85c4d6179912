package memory

import (
	"context"
	"errors"
	"net/url"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "dealscope:memory"

// Redis stores the blob under a single key. SET replaces the value atomically.
type Redis struct {
	client *redis.Client
	key    string
	addr   string
}

var _ Backend = (*Redis)(nil)

// NewRedis opens redis://[:password@]host:port/db?key=name. The key query
// parameter defaults to "dealscope:memory".
func NewRedis(location string) (*Redis, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid redis location")
	}

	key := u.Query().Get("key")
	if key == "" {
		key = defaultRedisKey
	}
	q := u.Query()
	q.Del("key")
	u.RawQuery = q.Encode()

	opts, err := redis.ParseURL(u.String())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse redis url", goerr.V("host", u.Host))
	}

	return NewRedisWithClient(redis.NewClient(opts), key), nil
}

// NewRedisWithClient uses an existing client
func NewRedisWithClient(client *redis.Client, key string) *Redis {
	return &Redis{client: client, key: key, addr: client.Options().Addr}
}

func (r *Redis) Location() string {
	return "redis://" + r.addr + "/" + r.key
}

func (r *Redis) Close() error {
	if err := r.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close redis client", goerr.V("addr", r.addr))
	}
	return nil
}

func (r *Redis) Load(ctx context.Context) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, goerr.Wrap(err, "failed to get memory key", goerr.V("key", r.key))
	}
	return data, true, nil
}

func (r *Redis) Save(ctx context.Context, data []byte) error {
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return goerr.Wrap(err, "failed to set memory key", goerr.V("key", r.key))
	}
	return nil
}
