// Package session tracks browser sessions for the ledger. Every session
// owns an isolated ledger and category set in the store; the manager
// decides when a session is alive and tells the store to drop state for
// sessions that expired or were pushed out by the size cap.
package session

import (
	"container/list"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"tally/internal/log"
)

// DropFunc releases all store state held for a session.
type DropFunc func(ctx context.Context, sessionID string) error

// Manager issues session IDs and evicts idle sessions. Eviction is both
// time-based (TTL since last touch) and size-based (least recently used
// beyond maxSize).
type Manager struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
	drop    DropFunc
	logger  *log.Logger
}

type sessionEntry struct {
	id        string
	expiresAt time.Time
}

func NewManager(maxSize int, ttl time.Duration, drop DropFunc, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentSession)
	}
	return &Manager{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		drop:    drop,
		logger:  logger,
	}
}

// Open registers a new session and returns its ID.
func (m *Manager) Open(ctx context.Context) (string, error) {
	id, err := newSessionID()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}

	m.mu.Lock()
	elem := m.lru.PushFront(&sessionEntry{id: id, expiresAt: time.Now().Add(m.ttl)})
	m.items[id] = elem
	evicted := m.evictOverCapacityLocked()
	m.mu.Unlock()

	m.dropAll(ctx, evicted)
	return id, nil
}

// Touch refreshes a session's TTL and reports whether it is still alive.
// A session that expired between touches is treated as gone; callers
// should open a fresh one.
func (m *Manager) Touch(ctx context.Context, id string) bool {
	m.mu.Lock()
	elem, ok := m.items[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	entry := elem.Value.(*sessionEntry)
	if time.Now().After(entry.expiresAt) {
		m.removeLocked(elem)
		m.mu.Unlock()
		m.dropAll(ctx, []string{id})
		return false
	}
	entry.expiresAt = time.Now().Add(m.ttl)
	m.lru.MoveToFront(elem)
	m.mu.Unlock()
	return true
}

// Len returns the number of tracked sessions, expired ones included
// until the next cleanup pass.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// CleanExpired drops all sessions whose TTL has lapsed and returns how
// many were removed.
func (m *Manager) CleanExpired(ctx context.Context) int {
	m.mu.Lock()
	now := time.Now()
	var expired []string
	var toRemove []*list.Element
	for elem := m.lru.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*sessionEntry)
		if now.After(entry.expiresAt) {
			expired = append(expired, entry.id)
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		m.removeLocked(elem)
	}
	m.mu.Unlock()

	m.dropAll(ctx, expired)
	return len(expired)
}

// Run cleans expired sessions on a fixed cadence until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := m.CleanExpired(ctx); n > 0 {
				m.logger.DebugContext(ctx, "Session cleanup completed",
					log.FieldOperation, log.OpEvict,
					"sessions_removed", n)
			}
		}
	}
}

// evictOverCapacityLocked trims the LRU tail down to maxSize and returns
// the evicted IDs. Caller holds m.mu.
func (m *Manager) evictOverCapacityLocked() []string {
	var evicted []string
	for m.lru.Len() > m.maxSize {
		oldest := m.lru.Back()
		if oldest == nil {
			break
		}
		evicted = append(evicted, oldest.Value.(*sessionEntry).id)
		m.removeLocked(oldest)
	}
	return evicted
}

func (m *Manager) removeLocked(elem *list.Element) {
	entry := elem.Value.(*sessionEntry)
	delete(m.items, entry.id)
	m.lru.Remove(elem)
}

func (m *Manager) dropAll(ctx context.Context, ids []string) {
	if m.drop == nil {
		return
	}
	for _, id := range ids {
		if err := m.drop(ctx, id); err != nil {
			m.logger.WarnContext(ctx, "Failed to drop session state",
				log.FieldSessionID, id,
				log.FieldError, err)
		}
	}
}

func newSessionID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
