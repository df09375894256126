package main

import (
	"bufio"
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

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

	ctx := context.Background()
	// реальный клиент OpenAI (ключ берётся из переменных окружения, напр. OPENAI_API_KEY)
	oClient := openai.NewClient()
	client := assistant.New(&oClient, cfg, sugar)

	sugar.Infow("Starting chat", "DebugMode", cfg.DebugMode)

	threadID := cfg.ThreadID
	if threadID == "" {
		threadID, err = client.CreateThread(ctx)
		if err != nil {
			sugar.Fatalw("failed to create thread", "error", err)
		}
	}

	local := transcript.New()
	for _, h := range client.GetHistory(ctx, threadID) {
		local.Append(h.Role, "text", h.Content)
		fmt.Printf("[%s] %s\n", h.Role, h.Content)
	}

	if len(cfg.GreetingList) > 0 {
		fmt.Println(cfg.GreetingList[rand.IntN(len(cfg.GreetingList))])
	}
	fmt.Println("Команды: /image <путь> [подпись], /new, /history, /quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			return
		case line == "/new":
			newID, cerr := client.CreateThread(ctx)
			if cerr != nil {
				sugar.Errorw("failed to create thread", "error", cerr)
				continue
			}
			threadID = newID
			local.Reset()
			fmt.Println("Новый диалог начат.")
		case line == "/history":
			for _, e := range local.Entries() {
				fmt.Printf("[%s] %s\n", e.Role, e.Content)
			}
		case strings.HasPrefix(line, "/image "):
			path, caption := splitImageArgs(strings.TrimPrefix(line, "/image "))
			if caption == "" {
				caption = cfg.DefaultImageCaption
			}
			local.Append("user", "image", caption)
			replies, serr := client.SendImageFile(ctx, threadID, caption, path, assistant.SendOptions{})
			printReplies(local, replies, serr)
		default:
			local.Append("user", "text", line)
			replies, serr := client.SendMessage(ctx, threadID, line, assistant.SendOptions{})
			printReplies(local, replies, serr)
		}
	}
}

func printReplies(local *transcript.Transcript, replies []string, err error) {
	if err != nil {
		msg := "⚠️ " + err.Error()
		local.Append("assistant", "text", msg)
		fmt.Println(msg)
		return
	}
	for _, reply := range replies {
		local.Append("assistant", "text", reply)
		fmt.Printf("[assistant] %s\n", reply)
	}
}

// splitImageArgs отделяет путь к файлу от опциональной подписи.
func splitImageArgs(args string) (string, string) {
	args = strings.TrimSpace(args)
	if path, caption, ok := strings.Cut(args, " "); ok {
		return path, strings.TrimSpace(caption)
	}
	return args, ""
}
