// Package leaderlock implements the single-leader assumption behind the
// Engine Host (spec §5): only one process may run the Monitor Manager
// against a given database at a time. It is new wiring for a teacher
// dependency (redis/go-redis) with no surviving usage file in the pack;
// the SET NX PX + value-checked DEL pattern below is the standard
// redis-backed mutual-exclusion recipe, grounded on the teacher's direct
// *redis.Client usage style (test/integration/gateway/redis_standalone_test.go).
package leaderlock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	taxerrors "github.com/eliadvertman/segctl/internal/errors"
)

// ErrNotLeader is returned by Acquire when another holder currently owns
// the lock.
var ErrNotLeader = taxerrors.New(taxerrors.KindConflict, "another instance holds the leader lock")

// releaseScript deletes key only if its value still matches token, so a
// holder can never release a lock it no longer owns (e.g. after its lease
// expired and someone else acquired it).
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`

// renewScript extends key's TTL (ARGV[2] milliseconds) only if its value
// still matches token, so a holder can never extend another holder's lease.
const renewScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
  return 0
end
`

// Lock is a single named redis-backed mutual-exclusion lock.
type Lock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// New builds a Lock bound to key, using a fresh random token per instance
// so Release never removes a lease acquired by a different process.
func New(client *redis.Client, key string, ttl time.Duration) *Lock {
	return &Lock{client: client, key: key, token: uuid.NewString(), ttl: ttl}
}

// Acquire attempts to become leader. It returns ErrNotLeader (not a
// transport error) when another holder already has the lock.
func (l *Lock) Acquire(ctx context.Context) error {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return taxerrors.Wrap(taxerrors.KindUnavailable, err, "acquiring leader lock")
	}
	if !ok {
		return ErrNotLeader
	}
	return nil
}

// Renew extends the lease, failing if this instance is no longer the
// holder (its token doesn't match what's stored).
func (l *Lock) Renew(ctx context.Context) error {
	n, err := l.client.Eval(ctx, renewScript, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return taxerrors.Wrap(taxerrors.KindUnavailable, err, "renewing leader lock")
	}
	if n == 0 {
		return ErrNotLeader
	}
	return nil
}

// Release gives up leadership, but only if this instance's token still
// matches the stored value.
func (l *Lock) Release(ctx context.Context) error {
	res, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return taxerrors.Wrap(taxerrors.KindUnavailable, err, "releasing leader lock")
	}
	if n, ok := res.(int64); ok && n == 0 {
		return ErrNotLeader
	}
	return nil
}
