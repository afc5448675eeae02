package service_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fabworks/fabworks-auth/internal/domain"
)

// In-memory repository fakes backing the service tests.

type memoryUserRepo struct {
	mu    sync.Mutex
	users map[int64]domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[int64]domain.User)}
}

func (m *memoryUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *memoryUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *memoryUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUserRepo) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = hash
	m.users[userID] = user
	return nil
}

func (m *memoryUserRepo) ConsumeBackupCode(ctx context.Context, userID int64, codeHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return false, nil
	}
	for i, h := range user.BackupCodeHashes {
		if h == codeHash {
			user.BackupCodeHashes = append(user.BackupCodeHashes[:i], user.BackupCodeHashes[i+1:]...)
			m.users[userID] = user
			return true, nil
		}
	}
	return false, nil
}

type memoryTokenRepo struct {
	mu   sync.Mutex
	recs map[int64]domain.RefreshTokenRecord
}

func newMemoryTokenRepo() *memoryTokenRepo {
	return &memoryTokenRepo{recs: make(map[int64]domain.RefreshTokenRecord)}
}

func (m *memoryTokenRepo) Create(ctx context.Context, rec domain.RefreshTokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.ID] = rec
	return nil
}

func (m *memoryTokenRepo) GetLiveByHash(ctx context.Context, hash string) (domain.RefreshTokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.recs {
		if rec.TokenHash == hash && !rec.Revoked {
			return rec, nil
		}
	}
	return domain.RefreshTokenRecord{}, pgx.ErrNoRows
}

func (m *memoryTokenRepo) GetByHash(ctx context.Context, hash string) (domain.RefreshTokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.recs {
		if rec.TokenHash == hash {
			return rec, nil
		}
	}
	return domain.RefreshTokenRecord{}, pgx.ErrNoRows
}

func (m *memoryTokenRepo) Rotate(ctx context.Context, oldID int64, reason string, next domain.RefreshTokenRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.recs[oldID]
	if !ok || old.Revoked {
		return false, nil
	}
	m.revokeLocked(oldID, reason)
	m.recs[next.ID] = next
	return true, nil
}

func (m *memoryTokenRepo) RevokeFamily(ctx context.Context, family, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range m.recs {
		if rec.Family == family && !rec.Revoked {
			m.revokeLocked(id, reason)
		}
	}
	return nil
}

func (m *memoryTokenRepo) RevokeAllForUser(ctx context.Context, userID int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range m.recs {
		if rec.UserID == userID && !rec.Revoked {
			m.revokeLocked(id, reason)
		}
	}
	return nil
}

func (m *memoryTokenRepo) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var count int64
	for id, rec := range m.recs {
		stale := rec.Revoked && rec.RevokedAt != nil && rec.RevokedAt.Before(now.Add(-retention))
		if now.After(rec.ExpiresAt) || stale {
			delete(m.recs, id)
			count++
		}
	}
	return count, nil
}

func (m *memoryTokenRepo) revokeLocked(id int64, reason string) {
	rec := m.recs[id]
	now := time.Now().UTC()
	rec.Revoked = true
	rec.RevokedAt = &now
	rec.RevokedReason = reason
	m.recs[id] = rec
}

func (m *memoryTokenRepo) revoke(id int64, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revokeLocked(id, reason)
}

func (m *memoryTokenRepo) liveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for _, rec := range m.recs {
		if !rec.Revoked {
			n++
		}
	}
	return n
}

type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{sessions: make(map[string]domain.Session)}
}

func sessionKey(userID int64, sessionID string) string {
	return fmt.Sprintf("%d:%s", userID, sessionID)
}

func (m *memorySessionStore) Create(ctx context.Context, sess domain.Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionKey(sess.UserID, sess.SessionID)] = sess
	return nil
}

func (m *memorySessionStore) Get(ctx context.Context, userID int64, sessionID string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionKey(userID, sessionID)]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (m *memorySessionStore) Touch(ctx context.Context, userID int64, sessionID string, ttl time.Duration) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionKey(userID, sessionID)]
	if !ok {
		return nil, nil
	}
	sess.LastActivity = time.Now().UTC()
	m.sessions[sessionKey(userID, sessionID)] = sess
	return &sess, nil
}

func (m *memorySessionStore) Delete(ctx context.Context, userID int64, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionKey(userID, sessionID))
	return nil
}

func (m *memorySessionStore) DeleteAll(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, sess := range m.sessions {
		if sess.UserID == userID {
			delete(m.sessions, key)
		}
	}
	return nil
}

func (m *memorySessionStore) List(ctx context.Context, userID int64) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Session
	for _, sess := range m.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	return out, nil
}

type memoryChallengeStore struct {
	mu      sync.Mutex
	pending map[string]int64
	seq     int
}

func newMemoryChallengeStore() *memoryChallengeStore {
	return &memoryChallengeStore{pending: make(map[string]int64)}
}

func (m *memoryChallengeStore) Create(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	token := fmt.Sprintf("challenge-%d", m.seq)
	m.pending[token] = userID
	return token, nil
}

func (m *memoryChallengeStore) Resolve(ctx context.Context, token string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.pending[token]
	return userID, ok, nil
}

func (m *memoryChallengeStore) Consume(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, token)
	return nil
}
