package cache

import (
	"context"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
)

const (
	snapshotKeyPrefix = "settings:snapshot:"
	snapshotTTL       = 60 * time.Second
	rebuildLockExpiry = 5 * time.Second
)

// SettingsCache caches the aggregate settings snapshot per language. Rebuilds
// after a miss run under a redsync mutex so a cold key does not stampede the
// database when many app clients start at once.
type SettingsCache struct {
	client *Client
	locks  *redsync.Redsync
}

// NewSettingsCache wraps the shared cache client. The lock manager is only
// available with a real Redis; in mock mode rebuilds run unguarded, which is
// fine for a single instance.
func NewSettingsCache(client *Client) *SettingsCache {
	sc := &SettingsCache{client: client}
	if rdb := client.Redis(); rdb != nil {
		sc.locks = redsync.New(goredis.NewPool(rdb))
	}
	return sc
}

func snapshotKey(language string, isAdmin bool) string {
	key := snapshotKeyPrefix + language
	if isAdmin {
		key += ":admin"
	}
	return key
}

// Get loads a cached snapshot into out, reporting whether it was present.
func (sc *SettingsCache) Get(ctx context.Context, language string, isAdmin bool, out interface{}) bool {
	ok, err := sc.client.GetJSON(ctx, snapshotKey(language, isAdmin), out)
	return err == nil && ok
}

// Rebuild runs build under the rebuild lock and stores its result. If the
// lock cannot be acquired (another instance is already rebuilding) the result
// is still computed and returned, only not written back.
func (sc *SettingsCache) Rebuild(ctx context.Context, language string, isAdmin bool, build func() (interface{}, error)) (interface{}, error) {
	if sc.locks == nil {
		return sc.buildAndStore(ctx, language, isAdmin, build)
	}

	mutex := sc.locks.NewMutex("lock:"+snapshotKey(language, isAdmin),
		redsync.WithExpiry(rebuildLockExpiry),
		redsync.WithTries(3),
		redsync.WithRetryDelay(50*time.Millisecond),
	)
	if err := mutex.Lock(); err != nil {
		return build()
	}
	defer func() { _, _ = mutex.Unlock() }()

	// Another rebuilder may have filled the key while we waited for the lock.
	var cached interface{}
	if ok, err := sc.client.GetJSON(ctx, snapshotKey(language, isAdmin), &cached); err == nil && ok {
		return cached, nil
	}

	return sc.buildAndStore(ctx, language, isAdmin, build)
}

// Invalidate drops every snapshot variant after an admin settings write.
func (sc *SettingsCache) Invalidate(ctx context.Context) {
	sc.client.DelPrefix(ctx, snapshotKeyPrefix)
}

func (sc *SettingsCache) buildAndStore(ctx context.Context, language string, isAdmin bool, build func() (interface{}, error)) (interface{}, error) {
	snapshot, err := build()
	if err != nil {
		return nil, err
	}
	if err := sc.client.SetJSON(ctx, snapshotKey(language, isAdmin), snapshot, snapshotTTL); err != nil {
		// Cache write failures must not fail the request.
		return snapshot, nil
	}
	return snapshot, nil
}
