// services/agent_lock.go
package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/datamartgh/datamart_backend/utils"
)

// AgentLocker serializes multi-record read-then-write sequences for one
// agent. Single-document transitions are already safe through the
// compare-and-set updates; the locker covers sequences that select several
// records before writing (withdrawal selection, bulk sync, reversal).
type AgentLocker interface {
	// Acquire blocks until the agent's lock is held or ctx expires, and
	// returns a release function.
	Acquire(ctx context.Context, agentID string) (func(), error)
}

// NewAgentLocker returns the Redis-backed locker, or the in-process
// fallback when Redis is not available. The fallback is only safe with a
// single service instance.
func NewAgentLocker(client *redis.Client) AgentLocker {
	if client == nil {
		log.Println("Warning: Redis unavailable, using in-process agent locks")
		return NewLocalAgentLocker()
	}
	return &RedisAgentLocker{
		client:     client,
		ttl:        30 * time.Second,
		retryDelay: 50 * time.Millisecond,
	}
}

// RedisAgentLocker implements AgentLocker with SETNX and a per-acquisition
// owner token, so a lock that expired under us is never released on behalf
// of the next holder.
type RedisAgentLocker struct {
	client     *redis.Client
	ttl        time.Duration
	retryDelay time.Duration
}

func (l *RedisAgentLocker) Acquire(ctx context.Context, agentID string) (func(), error) {
	key := "agentlock:" + agentID
	token := uuid.New().String()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, utils.WrapError(utils.ErrKindTransientStore, "acquiring agent lock", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, utils.WrapError(utils.ErrKindTransientStore, "agent lock wait aborted", ctx.Err())
		case <-time.After(l.retryDelay):
		}
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		current, err := l.client.Get(ctx, key).Result()
		if err != nil || current != token {
			// Expired and possibly re-acquired by someone else; leave it.
			return
		}
		if err := l.client.Del(ctx, key).Err(); err != nil {
			log.Printf("Warning: failed to release agent lock %s: %v", key, err)
		}
	}
	return release, nil
}

// LocalAgentLocker is the single-process fallback.
type LocalAgentLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalAgentLocker() *LocalAgentLocker {
	return &LocalAgentLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalAgentLocker) Acquire(ctx context.Context, agentID string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[agentID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[agentID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock, nil
}
