package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ds124wfegd/roombooker/pkg/scheduler"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrLockHeld is returned by Acquire when another holder owns the key.
var ErrLockHeld = scheduler.ErrLockHeld

// release only deletes the key if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short-lived exclusive locks shared between instances.
type Locker struct {
	client *redis.Client
	prefix string
}

// NewLocker namespaces every lock under prefix. Keys look like "<prefix>:<name>".
func NewLocker(client *redis.Client, prefix string) *Locker {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &Locker{client: client, prefix: prefix}
}

func (l *Locker) key(name string) string {
	return l.prefix + name
}

// Acquire takes the named lock for ttl and returns a release func.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	key := l.key(name)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return func() {
		// release with a fresh context, the caller's may be done already
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		released, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
		if err != nil {
			logrus.WithError(err).WithField("lock", key).Warn("Failed to release lock")
			return
		}
		if released == 0 {
			logrus.WithField("lock", key).Warn("Lock expired before release")
		}
	}, nil
}
