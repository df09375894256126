package api

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"math/rand/v2"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"AssistantChat/internal/assistant"
	"AssistantChat/internal/config"
	"AssistantChat/internal/service/transcript"
	"AssistantChat/internal/service/upload"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// AssistantClient — контракт клиента ассистента, который использует сервер.
type AssistantClient interface {
	CreateThread(ctx context.Context) (string, error)
	GetHistory(ctx context.Context, threadID string) []assistant.HistoryEntry
	SendMessage(ctx context.Context, threadID string, text string, opts assistant.SendOptions) ([]string, error)
	SendImageFile(ctx context.Context, threadID string, text string, filePath string, opts assistant.SendOptions) ([]string, error)
	ListThreadMessages(ctx context.Context, threadID string, limit int) []assistant.MessageRecord
}

// Server — HTTP/websocket фасад чата поверх клиента ассистента.
type Server struct {
	cfg      *config.Config
	client   AssistantClient
	sessions *transcript.Manager
	logger   *zap.SugaredLogger
	upgrader websocket.Upgrader
}

func NewServer(cfg *config.Config, client AssistantClient, sessions *transcript.Manager, logger *zap.SugaredLogger) *Server {
	return &Server{
		cfg:      cfg,
		client:   client,
		sessions: sessions,
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Handler собирает маршруты сервера.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	// Метод-маршруты ниже не матчат OPTIONS, поэтому CORS-предзапросы
	// ловятся отдельным маршрутом; ответ формирует сама обёртка withCORS.
	mux.HandleFunc("OPTIONS /api/", withCORS(func(http.ResponseWriter, *http.Request) {}))
	mux.HandleFunc("POST /api/sessions", withCORS(s.handleCreateSession))
	mux.HandleFunc("GET /api/sessions/{id}/history", withCORS(s.handleHistory))
	mux.HandleFunc("POST /api/sessions/{id}/reload", withCORS(s.handleReload))
	mux.HandleFunc("POST /api/sessions/{id}/reset", withCORS(s.handleReset))
	mux.HandleFunc("POST /api/sessions/{id}/messages", withCORS(s.handleSendMessage))
	mux.HandleFunc("GET /api/sessions/{id}/messages", withCORS(s.handleListMessages))
	mux.HandleFunc("POST /api/sessions/{id}/images", withCORS(s.handleSendImage))
	mux.HandleFunc("GET /api/sessions/{id}/ws", s.handleWS)
	return mux
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*transcript.Session, bool) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
	}
	return sess, ok
}

func (s *Server) greeting() string {
	if len(s.cfg.GreetingList) == 0 {
		return ""
	}
	return s.cfg.GreetingList[rand.IntN(len(s.cfg.GreetingList))]
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		s.logger.Errorw("Не удалось создать сессию", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"session_id": sess.ID,
		"thread_id":  sess.ThreadID(),
		"greeting":   s.greeting(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": sess.Transcript().Entries()})
}

// handleReload перечитывает историю из удалённого треда в расшифровку.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	history := s.client.GetHistory(r.Context(), sess.ThreadID())
	sess.Transcript().Load(history)
	writeJSON(w, http.StatusOK, map[string]any{"entries": sess.Transcript().Entries()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := s.sessions.Reset(r.Context(), sess); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sess.ID,
		"thread_id":  sess.ThreadID(),
	})
}

type sendRequest struct {
	Text                string  `json:"text"`
	TimeoutSeconds      float64 `json:"timeout_seconds"`
	PollIntervalSeconds float64 `json:"poll_interval_seconds"`
}

func (req *sendRequest) options() assistant.SendOptions {
	return assistant.SendOptions{
		Timeout:      time.Duration(req.TimeoutSeconds * float64(time.Second)),
		PollInterval: time.Duration(req.PollIntervalSeconds * float64(time.Second)),
	}
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req sendRequest
	if err := decodeJSON(r.Body, &req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	var replies []string
	var err error
	sess.Turn(func(threadID string) {
		sess.Append("user", "text", req.Text)
		replies, err = s.client.SendMessage(r.Context(), threadID, req.Text, req.options())
		s.appendOutcome(sess, replies, err)
	})
	if err != nil {
		s.writeSendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"replies": replies})
}

func (s *Server) handleSendImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	// Небольшой запас сверх лимита: точную проверку размера делает клиент ассистента.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image")
		return
	}

	text := r.FormValue("text")
	if text == "" {
		text = s.cfg.DefaultImageCaption
	}
	opts := assistant.SendOptions{}
	if v := r.FormValue("timeout_seconds"); v != "" {
		if secs, perr := strconv.ParseFloat(v, 64); perr == nil {
			opts.Timeout = time.Duration(secs * float64(time.Second))
		}
	}

	// Временный файл живёт ровно столько, сколько идёт отправка.
	path, cleanup, err := upload.TempFile(s.cfg.UploadTempDir, filepath.Ext(header.Filename), data)
	if err != nil {
		s.logger.Errorw("Не удалось сохранить временный файл", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer cleanup()

	var replies []string
	sess.Turn(func(threadID string) {
		sess.Append("user", "image", text)
		replies, err = s.client.SendImageFile(r.Context(), threadID, text, path, opts)
		s.appendOutcome(sess, replies, err)
	})
	if err != nil {
		s.writeSendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"replies": replies})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	limit := s.cfg.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	records := s.client.ListThreadMessages(r.Context(), sess.ThreadID(), limit)
	writeJSON(w, http.StatusOK, map[string]any{"messages": records})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := sess.Subscribe()
	defer sess.Unsubscribe(ch)

	go func() {
		for e := range ch {
			if werr := conn.WriteJSON(e); werr != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}()

	// Входящие сообщения не обрабатываем, читаем только ради обнаружения закрытия
	for {
		if _, _, rerr := conn.ReadMessage(); rerr != nil {
			return
		}
	}
}

// appendOutcome заносит результат хода в расшифровку: ответы ассистента
// либо текст ошибки, чтобы диалог оставался связным и после сбоя.
func (s *Server) appendOutcome(sess *transcript.Session, replies []string, err error) {
	if err != nil {
		sess.Append("assistant", "text", "⚠️ "+err.Error())
		return
	}
	for _, reply := range replies {
		sess.Append("assistant", "text", reply)
	}
}

// writeSendError переводит ошибку отправки в HTTP статус по её виду.
func (s *Server) writeSendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assistant.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, fs.ErrNotExist):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, assistant.ErrRunTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		var runErr *assistant.RunError
		if errors.As(err, &runErr) {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
