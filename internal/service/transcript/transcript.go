package transcript

import (
	"sync"
	"time"

	"AssistantChat/internal/assistant"
)

// Entry — одно сообщение локальной расшифровки диалога.
type Entry struct {
	ID      int       `json:"id"`
	Role    string    `json:"role"` // user|assistant
	Kind    string    `json:"kind"` // text|image
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Transcript — потокобезопасная локальная расшифровка одного диалога.
// Это только представление: источником правды остаётся удалённый тред.
type Transcript struct {
	mu      sync.Mutex
	entries []Entry
	nextID  int
}

func New() *Transcript {
	return &Transcript{}
}

// Append добавляет запись и возвращает её с присвоенным ID.
func (t *Transcript) Append(role string, kind string, content string) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.appendLocked(role, kind, content)
}

func (t *Transcript) appendLocked(role string, kind string, content string) Entry {
	t.nextID++
	e := Entry{
		ID:      t.nextID,
		Role:    role,
		Kind:    kind,
		Content: content,
		At:      time.Now(),
	}
	t.entries = append(t.entries, e)
	return e
}

// Load заменяет содержимое расшифровки историей удалённого треда.
func (t *Transcript) Load(history []assistant.HistoryEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = t.entries[:0]
	t.nextID = 0
	for _, h := range history {
		t.appendLocked(h.Role, "text", h.Content)
	}
}

// Reset очищает расшифровку (новый диалог).
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = t.entries[:0]
	t.nextID = 0
}

// Entries возвращает копию записей в хронологическом порядке.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
