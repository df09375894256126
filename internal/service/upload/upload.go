package upload

import (
	"fmt"
	"os"
)

const defaultExt = ".png"

// TempFile сохраняет сырые байты загрузки во временный файл и возвращает его путь
// вместе с функцией удаления. Вызывающий обязан вызвать cleanup на каждом пути
// выхода (обычно через defer), чтобы файл не пережил запрос.
func TempFile(dir string, ext string, data []byte) (string, func(), error) {
	if ext == "" {
		ext = defaultExt
	}
	f, err := os.CreateTemp(dir, "upload-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return path, cleanup, nil
}
