package relay

import (
	"sync"

	"anon-ask-bot/internal/domain"
)

// SessionStore хранит сессии набора сообщений в памяти процесса.
// На пользователя существует не более одной сессии; запись замещает
// предыдущую безусловно (последняя выигрывает). Все операции атомарны
// и не удерживают блокировку дольше одного чтения или записи, поэтому
// конкурентные события одного пользователя не переплетают устаревшее
// чтение со свежей записью.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]domain.Session
}

// NewSessionStore создаёт хранилище сессий.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[int64]domain.Session)}
}

// Put замещает сессию пользователя. Некорректная сессия отбрасывается.
func (s *SessionStore) Put(sess domain.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.sessions[sess.UserID] = sess
	s.mu.Unlock()
	return nil
}

// Get возвращает копию сессии пользователя.
func (s *SessionStore) Get(userID int64) (domain.Session, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	s.mu.Unlock()
	return sess, ok
}

// Take атомарно забирает и удаляет сессию пользователя.
func (s *SessionStore) Take(userID int64) (domain.Session, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	if ok {
		delete(s.sessions, userID)
	}
	s.mu.Unlock()
	return sess, ok
}

// Clear удаляет сессию; возвращает true, если сессия существовала.
func (s *SessionStore) Clear(userID int64) bool {
	s.mu.Lock()
	_, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()
	return ok
}

// Len возвращает количество активных сессий.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	n := len(s.sessions)
	s.mu.Unlock()
	return n
}
