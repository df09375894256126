package assistant

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"AssistantChat/internal/config"

	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"
)

// Client инкапсулирует работу с OpenAI Assistants (Threads): жизненный цикл треда,
// отправку сообщений с ожиданием run и извлечение ответов ассистента.
// Tool calls не поддерживаются: run со статусом requires_action завершается ошибкой сразу,
// а не ждёт таймаута.
type Client struct {
	client         *openai.Client
	assistantID    string
	runTimeout     time.Duration
	pollInterval   time.Duration
	maxUploadBytes int64
	links          ProductLinks
	logger         *zap.SugaredLogger
}

// SendOptions — переопределения для одного вызова. Нулевые значения
// заменяются настройками из конфигурации; общее состояние не мутируется.
type SendOptions struct {
	AssistantID  string
	Timeout      time.Duration
	PollInterval time.Duration
}

// New создаёт клиента ассистента. Конфигурация читается один раз и далее неизменна.
func New(client *openai.Client, cfg *config.Config, logger *zap.SugaredLogger) *Client {
	return &Client{
		client:         client,
		assistantID:    cfg.AssistantID,
		runTimeout:     cfg.RunTimeout,
		pollInterval:   cfg.PollInterval,
		maxUploadBytes: cfg.MaxUploadBytes,
		links:          ParseProductLinks(cfg.ProductLinks),
		logger:         logger,
	}
}

func (c *Client) resolve(opts SendOptions) (string, time.Duration, time.Duration) {
	aid := opts.AssistantID
	if aid == "" {
		aid = c.assistantID
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.runTimeout
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = c.pollInterval
	}
	return aid, timeout, interval
}

// CreateThread создаёт новый тред и возвращает его ID. Ретраев нет — решает вызывающий.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	th, err := c.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return th.ID, nil
}

// SendMessage добавляет пользовательское сообщение в тред, запускает run
// и возвращает новые ответы ассистента в хронологическом порядке.
func (c *Client) SendMessage(ctx context.Context, threadID string, text string, opts SendOptions) ([]string, error) {
	content := []openai.MessageContentPartParamUnion{
		openai.MessageContentPartParamOfText(text),
	}
	return c.runTurn(ctx, threadID, content, opts)
}

// SendImageFile загружает локальный файл изображения, отправляет его с опциональным
// текстом как одно пользовательское сообщение и дальше работает как SendMessage.
// Валидация (существование, размер) выполняется до какой-либо загрузки.
func (c *Client) SendImageFile(ctx context.Context, threadID string, text string, filePath string, opts SendOptions) ([]string, error) {
	fi, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("image file: %w", err)
	}
	if fi.Size() > c.maxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, fi.Size(), c.maxUploadBytes)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("image file: %w", err)
	}
	defer f.Close()

	uploaded, err := c.client.Files.New(ctx, openai.FileNewParams{
		File:    f,
		Purpose: openai.FilePurposeVision,
	})
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}
	c.logger.Infow("Файл изображения загружен", "file_id", uploaded.ID, "bytes", fi.Size())

	// Текстовая часть только при непустом тексте, затем часть с изображением.
	content := make([]openai.MessageContentPartParamUnion, 0, 2)
	if t := strings.TrimSpace(text); t != "" {
		content = append(content, openai.MessageContentPartParamOfText(t))
	}
	content = append(content, openai.MessageContentPartParamOfImageFile(openai.ImageFileParam{
		FileID: uploaded.ID,
	}))

	return c.runTurn(ctx, threadID, content, opts)
}

// DeleteFile удаляет ранее загруженный файл. Ошибка не фатальна:
// логируется и возвращается false.
func (c *Client) DeleteFile(ctx context.Context, fileID string) bool {
	if _, err := c.client.Files.Delete(ctx, fileID); err != nil {
		c.logger.Warnw("Не удалось удалить файл", "file_id", fileID, "error", err)
		return false
	}
	return true
}

// runTurn — общий путь send_message/send_image_file: сообщение → run → ожидание → извлечение.
// Атомарности между шагами нет; любая ошибка отменяет весь вызов без частичного результата.
func (c *Client) runTurn(ctx context.Context, threadID string, content []openai.MessageContentPartParamUnion, opts SendOptions) ([]string, error) {
	aid, timeout, interval := c.resolve(opts)

	if _, err := c.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfArrayOfContentParts: content,
		},
	}); err != nil {
		return nil, fmt.Errorf("add message: %w", err)
	}

	run, err := c.client.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: aid,
	})
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	start := time.Now()
	final, err := c.pollRun(ctx, threadID, run.ID, timeout, interval)
	if err != nil {
		return nil, err
	}
	if final.Status != openai.RunStatusCompleted {
		return nil, &RunError{Status: string(final.Status), Detail: final.LastError.Message}
	}
	c.logger.Infow("Run завершён", "run_id", run.ID, "duration", time.Since(start).String())

	msgs, err := c.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return collectNewestAssistantRun(msgs.Data), nil
}
