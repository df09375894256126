package assistant

import (
	"errors"
	"fmt"
)

var (
	// ErrRunTimeout — run не достиг терминального статуса за отведённый срок.
	// Сам run на стороне сервиса при этом не отменяется.
	ErrRunTimeout = errors.New("run did not complete within timeout")
	// ErrFileTooLarge — файл изображения превышает лимит загрузки.
	ErrFileTooLarge = errors.New("file too large")
)

// RunError — run завершился терминальным статусом, отличным от completed,
// либо запросил исполнение инструментов, которое здесь не поддерживается.
type RunError struct {
	Status string // статус run как его вернул сервис
	Detail string // last_error от сервиса, если был
}

func (e *RunError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("run ended with status %s: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("run ended with status %s", e.Status)
}
