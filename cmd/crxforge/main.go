// Package main runs the crxforge server: a chat-driven Chrome extension
// builder that orchestrates an external code-generation CLI per session,
// streams progress over server-sent events, and verifies generated
// extensions in a real browser context.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/crxforge/crxforge/pkg/browser"
	"github.com/crxforge/crxforge/pkg/config"
	"github.com/crxforge/crxforge/pkg/engine"
	"github.com/crxforge/crxforge/pkg/intent"
	"github.com/crxforge/crxforge/pkg/llm"
	"github.com/crxforge/crxforge/pkg/llm/openai"
	"github.com/crxforge/crxforge/pkg/logging"
	"github.com/crxforge/crxforge/pkg/orchestrator"
	"github.com/crxforge/crxforge/pkg/server"
	"github.com/crxforge/crxforge/pkg/session"
	"github.com/crxforge/crxforge/pkg/workspace"
)

const version = "0.1.0"

// shutdownTimeout bounds the drain of in-flight HTTP requests.
const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to the yaml config file")
	addr := flag.String("addr", "", "Listen address, overrides the config file")
	dataDir := flag.String("data-dir", "", "Base directory for workspaces, sessions, and logs")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("crxforge v%s\n", version)
		return
	}

	// Secrets come from the environment; a local .env is a convenience.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dataDir != "" {
		applyDataDir(cfg, *dataDir)
	}

	logging.SetDirectory(cfg.Logging.Dir)
	logger := logging.ForComponent("main")
	logger.Infof("crxforge v%s starting", version)

	srv, browsers, err := buildServer(cfg)
	if err != nil {
		log.Fatalf("Startup error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Infof("shutdown signal received")
		cancel()
	}()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	case <-ctx.Done():
	}

	browsers.CloseAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
	logger.Infof("crxforge stopped")
}

// applyDataDir roots the on-disk locations under one directory.
func applyDataDir(cfg *config.Config, dir string) {
	cfg.Workspace.Root = filepath.Join(dir, "extensions")
	cfg.Sessions.Dir = filepath.Join(dir, "sessions")
	cfg.Logging.Dir = filepath.Join(dir, "logs")
}

// buildServer wires the component graph from the configuration.
func buildServer(cfg *config.Config) (*server.Server, *browser.Manager, error) {
	workspaces, err := workspace.NewStore(cfg.Workspace.Root, cfg.Workspace.IgnorePatterns)
	if err != nil {
		return nil, nil, err
	}

	sessionStore, err := session.NewStore(cfg.Sessions.Dir)
	if err != nil {
		return nil, nil, err
	}
	registry, err := session.NewRegistry(sessionStore)
	if err != nil {
		return nil, nil, err
	}

	// Answers run at the model's default temperature; the classifier
	// fallback gets its own pinned-temperature provider so the same
	// message maps to the same label run to run.
	var provider, classifierProvider llm.Provider
	if cfg.LLM.APIKey() != "" {
		p, err := openai.NewProvider(cfg.LLM.APIKey(),
			openai.WithBaseURL(cfg.LLM.BaseURL),
			openai.WithModel(cfg.LLM.Model),
		)
		if err != nil {
			return nil, nil, err
		}
		provider = p

		cp, err := openai.NewProvider(cfg.LLM.APIKey(),
			openai.WithBaseURL(cfg.LLM.BaseURL),
			openai.WithModel(cfg.LLM.Model),
			openai.WithTemperature(0),
		)
		if err != nil {
			return nil, nil, err
		}
		classifierProvider = cp
	} else {
		logging.ForComponent("main").Warnf("no API key in %s; answers and classifier fallback are disabled", cfg.LLM.APIKeyEnv)
	}

	hub := session.NewHub()
	runner := engine.NewRunner(cfg.Engine)
	router := intent.NewRouter(classifierProvider)
	browsers := browser.NewManager(browser.NewPlaywrightBackend(), cfg.Browser)

	orch := orchestrator.New(registry, hub, workspaces, runner, router, browsers, provider)
	srv := server.New(cfg.Server, registry, hub, workspaces, orch, browsers)
	return srv, browsers, nil
}
