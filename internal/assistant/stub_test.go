package assistant

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"AssistantChat/internal/config"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

// stubAssistant — минимальный REST-заменитель сервиса Assistants для тестов:
// треды, сообщения (отдаются от новых к старым), run со сценарием статусов, файлы.
type stubAssistant struct {
	mu sync.Mutex

	messages []map[string]any // в порядке создания

	statusSeq     []string // статусы на retrieve по очереди; последний повторяется
	statusIdx     int
	retrieveFails int               // сколько первых retrieve ответить 500
	lastError     map[string]string // last_error для терминального статуса

	replies []string // тексты ассистента, дописываемые при старте run

	runCreates      int
	lastAssistantID string
	uploads         int
	deletes         int
	deleteFail      bool
	listFail        bool
	lastLimit       string

	srv *httptest.Server
}

func newStubAssistant(t *testing.T) *stubAssistant {
	st := &stubAssistant{statusSeq: []string{"completed"}}
	st.srv = httptest.NewServer(http.HandlerFunc(st.handle))
	t.Cleanup(st.srv.Close)
	return st
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.AssistantID = "asst_test"
	cfg.RunTimeout = 2 * time.Second
	cfg.PollInterval = 10 * time.Millisecond
	return cfg
}

func newTestClient(t *testing.T, st *stubAssistant, cfg *config.Config) *Client {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	// Без ретраев SDK: стаб сам управляет сценарием ответов, в том числе ошибками
	oc := openai.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(st.srv.URL+"/v1"),
		option.WithMaxRetries(0),
	)
	return New(&oc, cfg, zap.NewNop().Sugar())
}

// seed добавляет готовое сообщение в хранилище стаба.
func (st *stubAssistant) seed(role string, parts ...map[string]any) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.appendLocked(role, parts)
}

func textPart(value string) map[string]any {
	return map[string]any{"type": "text", "text": map[string]any{"value": value, "annotations": []any{}}}
}

func imagePart(fileID string) map[string]any {
	return map[string]any{"type": "image_file", "image_file": map[string]any{"file_id": fileID}}
}

func (st *stubAssistant) appendLocked(role string, parts []map[string]any) {
	n := len(st.messages) + 1
	st.messages = append(st.messages, map[string]any{
		"id":          fmt.Sprintf("msg_%d", n),
		"object":      "thread.message",
		"created_at":  1700000000 + n,
		"thread_id":   "thread_stub",
		"role":        role,
		"content":     parts,
		"attachments": []any{},
	})
}

// lastUserParts возвращает контент последнего сообщения с ролью user как он был сохранён.
func (st *stubAssistant) lastUserParts() []map[string]any {
	st.mu.Lock()
	defer st.mu.Unlock()
	for i := len(st.messages) - 1; i >= 0; i-- {
		if st.messages[i]["role"] == "user" {
			return st.messages[i]["content"].([]map[string]any)
		}
	}
	return nil
}

func (st *stubAssistant) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1")
	segs := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case r.Method == http.MethodPost && path == "/threads":
		writeStubJSON(w, map[string]any{"id": "thread_stub", "object": "thread", "created_at": 1700000000})

	case len(segs) == 3 && segs[0] == "threads" && segs[2] == "messages" && r.Method == http.MethodPost:
		st.storeIncomingMessage(w, r)

	case len(segs) == 3 && segs[0] == "threads" && segs[2] == "messages" && r.Method == http.MethodGet:
		st.listMessages(w, r)

	case len(segs) == 3 && segs[0] == "threads" && segs[2] == "runs" && r.Method == http.MethodPost:
		st.createRun(w, r)

	case len(segs) == 4 && segs[0] == "threads" && segs[2] == "runs" && r.Method == http.MethodGet:
		st.retrieveRun(w, segs[3])

	case r.Method == http.MethodPost && path == "/files":
		st.mu.Lock()
		st.uploads++
		n := st.uploads
		st.mu.Unlock()
		writeStubJSON(w, map[string]any{"id": fmt.Sprintf("file_%d", n), "object": "file", "purpose": "vision", "bytes": 1})

	case len(segs) == 2 && segs[0] == "files" && r.Method == http.MethodDelete:
		st.mu.Lock()
		st.deletes++
		fail := st.deleteFail
		st.mu.Unlock()
		if fail {
			http.Error(w, `{"error":{"message":"no such file"}}`, http.StatusInternalServerError)
			return
		}
		writeStubJSON(w, map[string]any{"id": segs[1], "object": "file", "deleted": true})

	default:
		http.NotFound(w, r)
	}
}

func (st *stubAssistant) storeIncomingMessage(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, `{"error":{"message":"bad json"}}`, http.StatusBadRequest)
		return
	}
	role, _ := raw["role"].(string)
	parts := normalizeParts(raw["content"])

	st.mu.Lock()
	st.appendLocked(role, parts)
	msg := st.messages[len(st.messages)-1]
	st.mu.Unlock()
	writeStubJSON(w, msg)
}

// normalizeParts приводит контент запроса к формату ответа API
// (text в запросе — строка, в ответе — объект со значением).
func normalizeParts(content any) []map[string]any {
	items, ok := content.([]any)
	if !ok {
		if s, ok := content.(string); ok {
			return []map[string]any{textPart(s)}
		}
		return nil
	}
	parts := make([]map[string]any, 0, len(items))
	for _, item := range items {
		pm, ok := item.(map[string]any)
		if !ok {
			continue
		}
		typ, _ := pm["type"].(string)
		switch {
		case strings.Contains(typ, "image"):
			img, _ := pm["image_file"].(map[string]any)
			fileID, _ := img["file_id"].(string)
			parts = append(parts, imagePart(fileID))
		default:
			if s, ok := pm["text"].(string); ok {
				parts = append(parts, textPart(s))
			} else if tm, ok := pm["text"].(map[string]any); ok {
				v, _ := tm["value"].(string)
				parts = append(parts, textPart(v))
			}
		}
	}
	return parts
}

func (st *stubAssistant) listMessages(w http.ResponseWriter, r *http.Request) {
	st.mu.Lock()
	fail := st.listFail
	st.lastLimit = r.URL.Query().Get("limit")
	// от новых к старым
	data := make([]map[string]any, 0, len(st.messages))
	for i := len(st.messages) - 1; i >= 0; i-- {
		data = append(data, st.messages[i])
	}
	st.mu.Unlock()

	if fail {
		http.Error(w, `{"error":{"message":"list failed"}}`, http.StatusInternalServerError)
		return
	}
	resp := map[string]any{"object": "list", "data": data, "has_more": false}
	if len(data) > 0 {
		resp["first_id"] = data[0]["id"]
		resp["last_id"] = data[len(data)-1]["id"]
	}
	writeStubJSON(w, resp)
}

func (st *stubAssistant) createRun(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	_ = json.NewDecoder(r.Body).Decode(&raw)

	aid, _ := raw["assistant_id"].(string)
	st.mu.Lock()
	st.runCreates++
	st.lastAssistantID = aid
	// ответы ассистента появляются в треде вместе с run
	for _, reply := range st.replies {
		st.appendLocked("assistant", []map[string]any{textPart(reply)})
	}
	st.mu.Unlock()

	writeStubJSON(w, map[string]any{
		"id": "run_stub", "object": "thread.run", "thread_id": "thread_stub",
		"assistant_id": aid, "status": "queued",
	})
}

func (st *stubAssistant) retrieveRun(w http.ResponseWriter, runID string) {
	st.mu.Lock()
	if st.retrieveFails > 0 {
		st.retrieveFails--
		st.mu.Unlock()
		http.Error(w, `{"error":{"message":"transient"}}`, http.StatusInternalServerError)
		return
	}
	status := st.statusSeq[st.statusIdx]
	if st.statusIdx < len(st.statusSeq)-1 {
		st.statusIdx++
	}
	lastErr := st.lastError
	st.mu.Unlock()

	resp := map[string]any{
		"id": runID, "object": "thread.run", "thread_id": "thread_stub",
		"assistant_id": "asst_test", "status": status,
	}
	if lastErr != nil {
		resp["last_error"] = lastErr
	}
	writeStubJSON(w, resp)
}

func writeStubJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
