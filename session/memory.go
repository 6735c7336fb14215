package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-memory [Store] for tests and local
// development.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	byAccess  map[string]string
	byRefresh map[string]string
	byUser    map[string]map[string]struct{}
	ticker    *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryStore creates an in-memory store. When cleanupInterval is
// positive, a janitor goroutine removes sessions whose refresh window has
// closed.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	store := &MemoryStore{
		sessions:  make(map[string]*Session),
		byAccess:  make(map[string]string),
		byRefresh: make(map[string]string),
		byUser:    make(map[string]map[string]struct{}),
		done:      make(chan struct{}),
	}

	if cleanupInterval > 0 {
		store.ticker = time.NewTicker(cleanupInterval)
		go store.cleanupLoop()
	}

	return store
}

func (m *MemoryStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" || sess.AccessToken == "" || sess.RefreshToken == "" {
		return ErrInvalidSession
	}
	if sess.AccessToken == sess.RefreshToken {
		return ErrInvalidSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.sessions[sess.ID]; ok {
		m.unindexLocked(prev)
	}

	stored := sess.Clone()
	m.sessions[stored.ID] = stored
	m.byAccess[stored.AccessToken] = stored.ID
	m.byRefresh[stored.RefreshToken] = stored.ID
	if m.byUser[stored.UserID] == nil {
		m.byUser[stored.UserID] = make(map[string]struct{})
	}
	m.byUser[stored.UserID][stored.ID] = struct{}{}

	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess.Clone(), nil
}

func (m *MemoryStore) GetByAccessToken(ctx context.Context, token string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byAccess[token]
	if !ok {
		return nil, ErrNotFound
	}
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess.Clone(), nil
}

func (m *MemoryStore) ConsumeRefreshToken(ctx context.Context, token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byRefresh[token]
	if !ok {
		return nil, ErrNotFound
	}
	sess, ok := m.sessions[id]
	if !ok {
		delete(m.byRefresh, token)
		return nil, ErrNotFound
	}

	m.unindexLocked(sess)
	delete(m.sessions, id)

	return sess, nil
}

func (m *MemoryStore) Touch(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	sess.LastAccessAt = at
	sess.UpdatedAt = at
	return nil
}

func (m *MemoryStore) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byUser[userID]
	if len(ids) == 0 {
		return nil, nil
	}

	out := make([]Session, 0, len(ids))
	for id := range ids {
		if sess, ok := m.sessions[id]; ok {
			out = append(out, *sess.Clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil
	}
	m.unindexLocked(sess)
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) DeleteByUser(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.byUser[userID]
	count := 0
	for id := range ids {
		if sess, ok := m.sessions[id]; ok {
			m.unindexLocked(sess)
			delete(m.sessions, id)
			count++
		}
	}
	delete(m.byUser, userID)
	return count, nil
}

func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() {
		if m.ticker != nil {
			m.ticker.Stop()
		}
		close(m.done)
	})
	return nil
}

// unindexLocked removes token and user index entries; callers hold the write
// lock.
func (m *MemoryStore) unindexLocked(sess *Session) {
	delete(m.byAccess, sess.AccessToken)
	delete(m.byRefresh, sess.RefreshToken)
	if ids, ok := m.byUser[sess.UserID]; ok {
		delete(ids, sess.ID)
		if len(ids) == 0 {
			delete(m.byUser, sess.UserID)
		}
	}
}

func (m *MemoryStore) cleanupLoop() {
	for {
		select {
		case <-m.ticker.C:
			m.removeDead(time.Now())
		case <-m.done:
			return
		}
	}
}

// removeDead drops sessions whose refresh window has closed; nothing can
// revive those.
func (m *MemoryStore) removeDead(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, sess := range m.sessions {
		if sess.RefreshExpired(now) {
			m.unindexLocked(sess)
			delete(m.sessions, id)
		}
	}
}
