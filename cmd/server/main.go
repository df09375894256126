package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"AssistantChat/internal/api"
	"AssistantChat/internal/assistant"
	"AssistantChat/internal/config"
	"AssistantChat/internal/service/transcript"

	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"
)

func main() {
	cfg := config.NewConfig()

	// создаём предустановленный регистратор zap
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	sugar := logger.Sugar()
	//сброс буфера логгера
	defer func() {
		if err := logger.Sync(); err != nil {
			sugar.Errorw("Failed to sync logger", "error", err)
		}
	}()

	// реальный клиент OpenAI (ключ берётся из переменных окружения, напр. OPENAI_API_KEY)
	oClient := openai.NewClient()
	client := assistant.New(&oClient, cfg, sugar)
	sessions := transcript.NewManager(client, sugar)
	server := api.NewServer(cfg, client, sessions, sugar)

	// WriteTimeout не задаём: ход может блокироваться на ожидании run до RunTimeout
	srv := &http.Server{
		Addr:              cfg.ServerBindAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		sugar.Infow("Starting chat API server", "addr", srv.Addr, "DebugMode", cfg.DebugMode)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) && err != nil {
			sugar.Fatalw("server error", "error", err)
		}
	}()

	// Graceful shutdown on Ctrl+C / SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeoutCause(context.Background(), 5*time.Second, errors.New("shutdown timeout"))
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		sugar.Warnw("graceful shutdown error", "error", err)
		_ = srv.Close()
	}
	sugar.Infow("server stopped")
}
