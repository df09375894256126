package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
)

// pollRun опрашивает статус run до терминального статуса или истечения timeout.
// Первый опрос выполняется сразу, чтобы мгновенно завершившийся run не платил
// целый интервал ожидания; дальше — с фиксированным интервалом. Ошибки отдельных
// опросов не прерывают цикл — они логируются и поглощаются вплоть до дедлайна.
// requires_action возвращается как финальный результат: исполнение инструментов
// здесь не поддерживается, ждать таймаута в этом статусе бессмысленно.
func (c *Client) pollRun(ctx context.Context, threadID string, runID string, timeout time.Duration, interval time.Duration) (*openai.Run, error) {
	deadline := time.After(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var lastStatus openai.RunStatus

	check := func() (*openai.Run, bool) {
		run, err := c.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
		if err != nil {
			c.logger.Warnw("Ошибка опроса статуса run", "run_id", runID, "error", err)
			return nil, false
		}
		lastStatus = run.Status
		switch run.Status {
		case openai.RunStatusCompleted,
			openai.RunStatusFailed,
			openai.RunStatusCancelled,
			openai.RunStatusExpired,
			openai.RunStatusRequiresAction:
			return run, true
		default:
			// queued / in_progress — ждём
			return nil, false
		}
	}

	if run, done := check(); done {
		return run, nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, fmt.Errorf("%w after %s (last status %q)", ErrRunTimeout, timeout, lastStatus)
		case <-ticker.C:
			if run, done := check(); done {
				return run, nil
			}
		}
	}
}
