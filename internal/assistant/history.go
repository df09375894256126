package assistant

import (
	"context"
	"slices"
	"strings"

	"github.com/openai/openai-go/v3"
)

// imagePlaceholder подставляется вместо части-изображения при извлечении текста,
// чтобы вложения не пропадали из расшифровки молча.
const imagePlaceholder = "[Image]"

// HistoryEntry — одно сообщение истории для слоя представления.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessageRecord — детальная запись сообщения треда.
type MessageRecord struct {
	ID          string                     `json:"id"`
	Role        string                     `json:"role"`
	Content     string                     `json:"content"`
	CreatedAt   int64                      `json:"created_at"`
	Attachments []openai.MessageAttachment `json:"attachments"`
}

// GetHistory возвращает историю треда в хронологическом порядке.
// Любая ошибка удалённого вызова деградирует до пустого результата:
// интерфейс важнее, чем история, и вызывающий это различить не может.
func (c *Client) GetHistory(ctx context.Context, threadID string) []HistoryEntry {
	msgs, err := c.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{})
	if err != nil {
		c.logger.Warnw("Не удалось получить историю треда", "thread_id", threadID, "error", err)
		return nil
	}

	// API отдаёт сообщения от новых к старым — разворачиваем
	out := make([]HistoryEntry, 0, len(msgs.Data))
	for i := len(msgs.Data) - 1; i >= 0; i-- {
		m := msgs.Data[i]
		out = append(out, HistoryEntry{
			Role:    string(m.Role),
			Content: c.links.Enrich(extractText(m)),
		})
	}
	return out
}

// ListThreadMessages возвращает до limit последних сообщений треда в хронологическом
// порядке с идентификаторами, временем создания и сырыми вложениями.
// Ошибка деградирует до пустого результата, как и в GetHistory.
func (c *Client) ListThreadMessages(ctx context.Context, threadID string, limit int) []MessageRecord {
	msgs, err := c.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Limit: openai.Int(int64(limit)),
	})
	if err != nil {
		c.logger.Warnw("Не удалось получить сообщения треда", "thread_id", threadID, "error", err)
		return nil
	}

	out := make([]MessageRecord, 0, len(msgs.Data))
	for i := len(msgs.Data) - 1; i >= 0; i-- {
		m := msgs.Data[i]
		out = append(out, MessageRecord{
			ID:          m.ID,
			Role:        string(m.Role),
			Content:     extractText(m),
			CreatedAt:   m.CreatedAt,
			Attachments: m.Attachments,
		})
	}
	return out
}

// extractText собирает текст из многочастного контента сообщения:
// текстовые части соединяются переводом строки, изображения дают плейсхолдер.
func extractText(m openai.Message) string {
	parts := make([]string, 0, len(m.Content))
	for _, part := range m.Content {
		switch part.Type {
		case "text":
			if part.Text.Value != "" {
				parts = append(parts, part.Text.Value)
			}
		case "image_file":
			parts = append(parts, imagePlaceholder)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// collectNewestAssistantRun выбирает из списка «от новых к старым» подряд идущие
// сообщения ассистента до первого чужого сообщения и возвращает их хронологически.
// Это эвристика привязки сообщений к только что завершённому run: у API нет прямой
// связи run→сообщения, поэтому предполагается, что пока шёл run, в тред больше
// никто не писал. Доступ к треду должен быть сериализован на вызывающей стороне.
func collectNewestAssistantRun(msgs []openai.Message) []string {
	texts := make([]string, 0, 1)
	for _, m := range msgs {
		if m.Role != openai.MessageRoleAssistant {
			break
		}
		if t := extractText(m); t != "" {
			texts = append(texts, t)
		}
	}
	slices.Reverse(texts)
	return texts
}
