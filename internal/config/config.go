package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	DebugMode   bool   `env:"DEBUG_MODE"`   // Режим дебага
	AssistantID string `env:"ASSISTANT_ID"` // Идентификатор ассистента OpenAI, обязателен
	ThreadID    string `env:"THREAD_ID"`    // Готовый thread id; пусто — создаём новый тред при старте

	// Параметры ожидания Run
	RunTimeout   time.Duration `env:"RUN_TIMEOUT"`   // Максимальное время ожидания завершения run
	PollInterval time.Duration `env:"POLL_INTERVAL"` // Интервал опроса статуса run

	// Загрузка изображений
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES"` // Лимит размера файла изображения в байтах
	UploadTempDir  string `env:"UPLOAD_TEMP_DIR"`  // Папка для временных файлов загрузок; пусто — системная

	// Отображение
	HistoryLimit        int      `env:"HISTORY_LIMIT"`                  // Максимум сообщений при детальном листинге треда
	DefaultImageCaption string   `env:"DEFAULT_IMAGE_CAPTION"`          // Текст по умолчанию для сообщения с картинкой без подписи
	GreetingList        []string `env:"GREETING_LIST" envSeparator:";"` // Список приветствий; одно выбирается случайно
	ProductLinks        []string `env:"PRODUCT_LINKS" envSeparator:";"` // Пары «Название=URL»; ссылка дописывается к тексту истории при упоминании

	// HTTP сервер
	ServerBindAddr string `env:"SERVER_BIND_ADDR"` // Адрес слушателя API сервера
}

// Defaults возвращает конфигурацию с предустановленными значениями по умолчанию.
// Эти значения перекрываются .env, переменными окружения и флагами CLI.
func Defaults() *Config {
	return &Config{
		DebugMode:           false,
		RunTimeout:          120 * time.Second,
		PollInterval:        time.Second,
		MaxUploadBytes:      20 * 1024 * 1024,
		HistoryLimit:        20,
		DefaultImageCaption: "Por favor analiza esta imagen.",
		GreetingList: []string{
			"Welcome! What can I help with today?",
			"Hi! Is there anything I can help you with?",
		},
		ServerBindAddr: "127.0.0.1:8080",
	}
}

// NewConfig загружает конфигурацию приложения.
func NewConfig() *Config {
	_ = godotenv.Load()

	// Стартуем с дефолтов, затем перекрываем .env/окружением и флагами
	cfg := Defaults()
	_ = env.Parse(cfg)

	flag.BoolVar(&cfg.DebugMode, "debug-mode", cfg.DebugMode, "включить режим дебага")
	flag.StringVar(&cfg.AssistantID, "assistant-id", cfg.AssistantID, "идентификатор ассистента OpenAI (обязателен)")
	flag.StringVar(&cfg.ThreadID, "thread-id", cfg.ThreadID, "существующий thread id; пусто — создать новый")
	flag.DurationVar(&cfg.RunTimeout, "run-timeout", cfg.RunTimeout, "максимальное время ожидания завершения run, напр. 120s")
	flag.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "интервал опроса статуса run, напр. 1s")
	flag.Int64Var(&cfg.MaxUploadBytes, "max-upload-bytes", cfg.MaxUploadBytes, "лимит размера загружаемого изображения в байтах")
	flag.StringVar(&cfg.UploadTempDir, "upload-temp-dir", cfg.UploadTempDir, "папка для временных файлов загрузок")
	flag.IntVar(&cfg.HistoryLimit, "history-limit", cfg.HistoryLimit, "максимум сообщений при детальном листинге треда")
	flag.StringVar(&cfg.DefaultImageCaption, "default-image-caption", cfg.DefaultImageCaption, "подпись по умолчанию для картинки без текста")
	// Принимаем списки одной строкой, разделённой ';'
	var greetingFlag string
	greetingFlag = strings.Join(cfg.GreetingList, ";")
	flag.StringVar(&greetingFlag, "greeting-list", greetingFlag, "список приветствий, разделённых ';' (одно выбирается случайно)")
	var productLinksFlag string
	productLinksFlag = strings.Join(cfg.ProductLinks, ";")
	flag.StringVar(&productLinksFlag, "product-links", productLinksFlag, "пары Название=URL, разделённые ';'")
	flag.StringVar(&cfg.ServerBindAddr, "server-bind-addr", cfg.ServerBindAddr, "адрес слушателя API сервера, напр. 127.0.0.1:8080")
	flag.Parse()

	cfg.GreetingList = parseListFlag(greetingFlag, Defaults().GreetingList)
	cfg.ProductLinks = parseListFlag(productLinksFlag, nil)

	// Без ассистента работать не с кем — это жёсткая ошибка старта.
	if strings.TrimSpace(cfg.AssistantID) == "" {
		panic(fmt.Errorf("assistant: переменная окружения ASSISTANT_ID не задана; укажите ENV или флаг -assistant-id"))
	}

	return cfg
}

// parseListFlag разбирает значение флага со списком, разделённым ';'
func parseListFlag(v string, def []string) []string {
	// Пустая строка → дефолт
	if v == "" {
		return def
	}
	parts := strings.Split(v, ";")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return def
	}
	return cleaned
}
