package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"twin-assistant-backend/internal/agent"
	"twin-assistant-backend/internal/chat"
	"twin-assistant-backend/internal/client"
	"twin-assistant-backend/internal/config"
	"twin-assistant-backend/internal/types"
	"twin-assistant-backend/internal/ui"
)

type options struct {
	server  string
	local   bool
	timeout time.Duration
	logFile string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:          "twin-chat",
		Short:        "Chat with the city digital twin assistant",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.server, "server", "http://localhost:8080", "base URL of the assistant server")
	f.BoolVar(&opts.local, "local", false, "answer in-process instead of calling a server")
	f.DurationVar(&opts.timeout, "timeout", 60*time.Second, "per-request timeout")
	f.StringVar(&opts.logFile, "log-file", "", "write logs to this file")
	return cmd
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := zerolog.Nop()
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		log = cfg.NewLogger(f)
	}

	transport, docBase, err := newTransport(cfg, opts, log)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctrl := chat.NewController(transport, chat.WithLogger(log), chat.WithContext(ctx))
	log.Info().Bool("local", opts.local).Str("server", opts.server).Msg("chat session started")
	return ui.Run(ctrl, docBase)
}

// newTransport returns the transport for the session and the prefix used
// for document links.
func newTransport(cfg config.Config, opts options, log zerolog.Logger) (chat.Transport, string, error) {
	if !opts.local {
		c := client.New(opts.server, opts.timeout)
		return c, c.DocURL(""), nil
	}

	responder, err := agent.New(agent.Options{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		Model:     cfg.Model,
		RulesFile: cfg.RulesFile,
		Logger:    log,
	})
	if err != nil {
		return nil, "", fmt.Errorf("create responder: %w", err)
	}
	timeout := opts.timeout
	send := chat.TransportFunc(func(ctx context.Context, history []types.Message) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return responder.Generate(ctx, history)
	})

	// Links are /docs/<name>; DOCS_DIR is the directory serving /docs.
	root, err := filepath.Abs(filepath.Dir(cfg.DocsDir))
	if err != nil {
		return nil, "", fmt.Errorf("resolve docs dir: %w", err)
	}
	return send, "file://" + filepath.ToSlash(root), nil
}
