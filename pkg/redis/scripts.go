package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// DeleteIfValue deletes key when its current value equals expected and
// reports whether it did. The check and delete run atomically on the server.
func (c *Client) DeleteIfValue(ctx context.Context, key, expected string) (bool, error) {
	if c == nil || c.scripter == nil {
		return false, ErrNotInitialized
	}
	n, err := compareAndDelete.Run(ctx, c.scripter, []string{key}, expected).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
