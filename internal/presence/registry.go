package presence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/XANDER-CAGE/dating/internal/cache"
)

// delIfOwned deletes the presence key only when it still carries the
// caller's value. Keeps a stale disconnect on one process from evicting
// a newer registration made on another.
const delIfOwned = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// expireIfOwned refreshes the TTL only for the caller's own entry.
const expireIfOwned = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

// Registry is the shared presence table: one Redis key per online user,
// valued processID|connID. Writes are plain SETs (last-writer-wins), so
// a reconnect anywhere immediately supersedes the previous entry, and
// the TTL cleans up after crashed processes.
type Registry struct {
	cache     *cache.RedisCache
	processID string
	ttl       time.Duration
}

// NewRegistry creates a registry for this process.
func NewRegistry(c *cache.RedisCache, processID string, ttl time.Duration) *Registry {
	return &Registry{cache: c, processID: processID, ttl: ttl}
}

func key(userID uint64) string {
	return fmt.Sprintf("presence:user:%d", userID)
}

func (r *Registry) value(connID string) string {
	return r.processID + "|" + connID
}

// Register records this process/connection as the user's live endpoint.
// Unconditional SET: the newest registration always wins.
func (r *Registry) Register(ctx context.Context, userID uint64, connID string) error {
	return r.cache.Set(ctx, key(userID), r.value(connID), r.ttl)
}

// Heartbeat extends the entry's TTL, but only while it is still ours.
func (r *Registry) Heartbeat(ctx context.Context, userID uint64, connID string) error {
	_, err := r.cache.Eval(ctx, expireIfOwned,
		[]string{key(userID)}, r.value(connID), r.ttl.Milliseconds())
	return err
}

// Deregister removes the user's entry if it still belongs to connID on
// this process. A disconnect that raced a reconnect elsewhere is a no-op.
func (r *Registry) Deregister(ctx context.Context, userID uint64, connID string) error {
	_, err := r.cache.Eval(ctx, delIfOwned, []string{key(userID)}, r.value(connID))
	return err
}

// Locate resolves the user's current process and connection IDs.
// ok is false when the user is offline.
func (r *Registry) Locate(ctx context.Context, userID uint64) (processID, connID string, ok bool, err error) {
	val, err := r.cache.Get(ctx, key(userID))
	if err != nil || val == "" {
		return "", "", false, err
	}
	procID, cID, found := strings.Cut(val, "|")
	if !found {
		return "", "", false, nil
	}
	return procID, cID, true, nil
}

// IsOnline reports whether any process currently holds a live connection
// for the user.
func (r *Registry) IsOnline(ctx context.Context, userID uint64) (bool, error) {
	_, _, ok, err := r.Locate(ctx, userID)
	return ok, err
}
