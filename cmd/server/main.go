package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"uiforge-mcp-server/internal/cache"
	"uiforge-mcp-server/internal/config"
	mcpserver "uiforge-mcp-server/internal/mcp"
	"uiforge-mcp-server/internal/recorder"
	"uiforge-mcp-server/internal/rules"
)

func main() {
	configPath := flag.String("config", "", "Path to an explicit UIForge MCP config file")
	ssePort := flag.Int("sse-port", 0, "Optional SSE port override (falls back to config)")
	workspaceDir := flag.String("workspace", "", "Workspace root containing .uiforge/ (default: discover upward from cwd)")
	noWorkspace := flag.Bool("no-workspace", false, "Skip workspace discovery and use defaults plus --config only")
	initWorkspace := flag.Bool("init", false, "Create a .uiforge/ workspace in the current directory and exit")
	flag.Parse()

	if *initWorkspace {
		cwd, err := os.Getwd()
		if err != nil {
			log.Fatalf("failed to resolve working directory: %v", err)
		}
		if err := config.InitWorkspace(cwd); err != nil {
			log.Fatalf("failed to initialize workspace: %v", err)
		}
		log.Printf("initialized workspace at %s/%s", cwd, config.WorkspaceDirName)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, wsDir, err := config.LoadWithWorkspace(*configPath, config.WorkspaceOptions{
		ExplicitDir: *workspaceDir,
		Disable:     *noWorkspace,
	})
	if err != nil {
		// Before we can redirect logs, write to stderr as last resort
		log.Fatalf("failed to load config: %v", err)
	}
	if *ssePort != 0 {
		cfg.MCP.SSEPort = *ssePort
	}

	// Redirect logging to file for stdio mode (stderr interferes with MCP protocol)
	if cfg.MCP.SSEPort == 0 && cfg.Server.LogFile != "" {
		logFile, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			log.SetOutput(logFile)
			defer logFile.Close()
		} else {
			// If we can't open log file, disable logging to avoid stderr pollution
			log.SetOutput(io.Discard)
		}
	}
	if wsDir != "" {
		log.Printf("using workspace at %s", wsDir)
	}

	rulesEngine, err := rules.NewEngine(cfg.Rules)
	if err != nil {
		log.Fatalf("failed to initialize rules engine: %v", err)
	}

	var store cache.Store
	if cfg.Cache.Disable {
		store = cache.NewMemoryStore()
	} else {
		store = cache.NewFileStore(cfg.Cache.Path)
	}

	var rec *recorder.Recorder
	if cfg.Recorder.Enable {
		rec, err = recorder.NewRecorder(cfg.Recorder.Dir)
		if err != nil {
			log.Fatalf("failed to initialize trace recorder: %v", err)
		}
		defer rec.Close()
	}

	server, err := mcpserver.NewServer(cfg, rulesEngine, store, rec)
	if err != nil {
		log.Fatalf("failed to initialize MCP server: %v", err)
	}

	var startErr error
	if cfg.MCP.SSEPort > 0 {
		log.Printf("starting UIForge MCP SSE server on port %d", cfg.MCP.SSEPort)
		startErr = server.StartSSE(ctx, cfg.MCP.SSEPort)
	} else {
		log.Printf("starting UIForge MCP stdio server")
		startErr = server.Start(ctx)
	}

	if startErr != nil && !errors.Is(startErr, context.Canceled) {
		log.Fatalf("server exited with error: %v", startErr)
	}
}
