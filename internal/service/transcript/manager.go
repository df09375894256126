package transcript

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ThreadClient — минимальный контракт клиента ассистента, нужный менеджеру сессий.
type ThreadClient interface {
	CreateThread(ctx context.Context) (string, error)
}

// Session связывает удалённый тред с локальной расшифровкой и подписчиками.
type Session struct {
	ID string

	mu       sync.Mutex // сериализует отправки в тред и смену треда
	threadID string

	transcript *Transcript

	subMu sync.Mutex
	subs  map[chan Entry]struct{}
}

// ThreadID возвращает текущий id удалённого треда сессии.
func (s *Session) ThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

// Turn выполняет fn с эксклюзивным владением тредом сессии. Пока выполняется
// один ход, другие в этот же тред не пишут — на этом допущении держится
// извлечение ответов по подряд идущим сообщениям ассистента.
func (s *Session) Turn(fn func(threadID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.threadID)
}

// Transcript возвращает расшифровку сессии.
func (s *Session) Transcript() *Transcript {
	return s.transcript
}

// Append добавляет запись в расшифровку и рассылает её подписчикам.
func (s *Session) Append(role string, kind string, content string) Entry {
	e := s.transcript.Append(role, kind, content)
	s.subMu.Lock()
	for ch := range s.subs {
		select {
		case ch <- e:
		default:
			// медленный подписчик не должен блокировать ход
		}
	}
	s.subMu.Unlock()
	return e
}

// Subscribe возвращает канал, в который приходят новые записи расшифровки.
func (s *Session) Subscribe() chan Entry {
	ch := make(chan Entry, 16)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()
	return ch
}

// Unsubscribe снимает подписку и закрывает канал.
func (s *Session) Unsubscribe(ch chan Entry) {
	s.subMu.Lock()
	if _, ok := s.subs[ch]; ok {
		delete(s.subs, ch)
		close(ch)
	}
	s.subMu.Unlock()
}

// Manager хранит сессии сервера по их идентификаторам.
type Manager struct {
	threads ThreadClient
	logger  *zap.SugaredLogger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(threads ThreadClient, logger *zap.SugaredLogger) *Manager {
	return &Manager{
		threads:  threads,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Create создаёт сессию: новый удалённый тред плюс пустая расшифровка.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	threadID, err := m.threads.CreateThread(ctx)
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:         uuid.NewString(),
		threadID:   threadID,
		transcript: New(),
		subs:       make(map[chan Entry]struct{}),
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.logger.Infow("Сессия создана", "session_id", s.ID, "thread_id", threadID)
	return s, nil
}

// Get возвращает сессию по id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Reset начинает новый диалог в сессии: свежий тред, очищенная расшифровка.
func (m *Manager) Reset(ctx context.Context, s *Session) error {
	threadID, err := m.threads.CreateThread(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.threadID = threadID
	s.mu.Unlock()
	s.transcript.Reset()
	m.logger.Infow("Сессия сброшена", "session_id", s.ID, "thread_id", threadID)
	return nil
}
