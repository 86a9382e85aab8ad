// Aptitude tutor terminal client.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterh/liner"

	"github.com/ashureev/aptitude-tutor/internal/chat"
	"github.com/ashureev/aptitude-tutor/internal/config"
	"github.com/ashureev/aptitude-tutor/internal/history"
	"github.com/ashureev/aptitude-tutor/internal/progress"
	"github.com/ashureev/aptitude-tutor/internal/store"
	"github.com/ashureev/aptitude-tutor/internal/tutor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	profile := config.DefaultProfilePath()
	cfg, err := config.LoadClient(profile)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Error("Failed to close repository", "error", closeErr)
		}
	}()

	ctx := context.Background()
	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	prog := progress.Load(ctx, repo, progress.WithLogger(logger))
	sessions := history.Load(ctx, repo, history.WithLogger(logger))

	printer := tutor.NewStreamPrinter(os.Stdout)
	app := tutor.New(tutor.Deps{
		Chat: chat.Config{
			ProxyURL:       cfg.ProxyURL,
			ClientKey:      cfg.ClientKey,
			HTTPClient:     &http.Client{},
			Mode:           cfg.LearningMode(),
			RequestTimeout: cfg.RequestTimeout,
			Logger:         logger,
			OnUpdate:       printer.Update,
		},
		Progress: prog,
		History:  sessions,
		Logger:   logger,
	})
	if cfg.Topic != "" {
		if _, err := app.SetTopic(cfg.Topic); err != nil {
			logger.Warn("Ignoring configured topic", "topic", cfg.Topic, "error", err)
		}
	}

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	historyFile := filepath.Join(filepath.Dir(profile), "input_history")
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		saveInputHistory(line, historyFile)
		_ = line.Close()
	}()

	// Ctrl+C while an answer streams cancels that exchange only.
	var (
		cancelMu sync.Mutex
		cancel   context.CancelFunc
	)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			cancelMu.Lock()
			if cancel != nil {
				cancel()
				cancel = nil
			}
			cancelMu.Unlock()
		}
	}()

	lvl := prog.Level()
	fmt.Printf("AptitudeGuru  |  %s, %d XP, %d day streak  |  /help for commands\n",
		lvl.Title, prog.Snapshot().XP, prog.Snapshot().Streak)
	fmt.Printf("\n%s\n\n", app.Messages()[0].Content)

	for {
		input, err := line.Prompt(promptFor(app))
		if err != nil {
			// Ctrl+C at the prompt or Ctrl+D exits.
			if !errors.Is(err, liner.ErrPromptAborted) {
				logger.Debug("Prompt closed", "error", err)
			}
			fmt.Println()
			return nil
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		reqCtx, reqCancel := context.WithCancel(ctx)
		cancelMu.Lock()
		cancel = reqCancel
		cancelMu.Unlock()

		quit, execErr := app.Execute(reqCtx, input, os.Stdout)
		printer.End()

		cancelMu.Lock()
		cancel = nil
		cancelMu.Unlock()
		reqCancel()

		if quit {
			return nil
		}
		if execErr != nil && !isChatFailure(execErr) {
			fmt.Fprintln(os.Stderr, "!", execErr)
		}
		fmt.Println()
	}
}

// isChatFailure reports errors that the transcript already shows as an error bubble.
func isChatFailure(err error) bool {
	var statusErr *chat.UpstreamStatusError
	var transportErr *chat.TransportError
	return errors.As(err, &statusErr) || errors.As(err, &transportErr) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func promptFor(app *tutor.App) string {
	c := app.Client()
	label := string(c.Mode())
	if topic := c.Topic(); topic != "" {
		label += ":" + topic
	}
	if app.QuizRunning() {
		label += " ⏱"
	}
	return "[" + label + "]> "
}

func saveInputHistory(line *liner.State, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}
