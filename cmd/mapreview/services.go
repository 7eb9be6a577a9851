package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	goruntime "runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/mapreview/internal/clipboard"
	"github.com/hpungsan/mapreview/internal/config"
	"github.com/hpungsan/mapreview/internal/fileio"
	"github.com/hpungsan/mapreview/internal/massaction"
	"github.com/hpungsan/mapreview/internal/mcp"
	"github.com/hpungsan/mapreview/internal/queue"
	"github.com/hpungsan/mapreview/internal/remote"
	"github.com/hpungsan/mapreview/internal/state"
)

// hydrationWait bounds how long a CLI invocation waits for content lookups
// before exiting.
const hydrationWait = 10 * time.Second

// services are the collaborators shared by every command.
type services struct {
	engine  *queue.Engine
	files   *fileio.Files
	session mcp.SessionService // nil when the session service is not configured
	sender  queue.CommandSender
	clip    clipboard.Reader
	cfg     *config.Config
	logger  *zap.Logger

	runner *massaction.Runner
}

// newServices wires the engine to the persisted state and the remote clients.
func newServices(ctx context.Context, database *sql.DB, exportsDir string, cfg *config.Config, logger *zap.Logger) *services {
	opts := queue.Options{
		Store:  state.NewStore(database, goruntime.GOOS, logger),
		Logger: logger,
	}

	if cfg.ContentAPIKey != "" {
		content, err := remote.NewContentClient(cfg.ContentAPIBaseURL, cfg.ContentAPIKey, logger)
		if err != nil {
			logger.Warn("content lookups disabled", zap.Error(err))
		} else {
			opts.Content = content
		}
	}

	svc := &services{
		engine: queue.New(ctx, opts),
		files:  fileio.New(exportsDir, cfg),
		sender: newCommandSender(),
		clip:   clipboard.System{},
		cfg:    cfg,
		logger: logger,
	}

	if sc, err := remote.NewSessionClient(cfg.SessionAPIBaseURL, cfg.SessionAPIToken, logger); err != nil {
		logger.Warn("session service disabled", zap.Error(err))
	} else {
		svc.session = sc
	}

	svc.runner = massaction.NewRunner(svc.sender, time.Duration(cfg.MassIntervalMillis)*time.Millisecond, logger)
	return svc
}

// mcpDeps exposes the services to the MCP server. ctx bounds the mass-action loop.
func (s *services) mcpDeps(ctx context.Context) mcp.Deps {
	return mcp.Deps{
		Engine:  s.engine,
		Files:   s.files,
		Session: s.session,
		Runner:  s.runner,
		Sender:  s.sender,
		Config:  s.cfg,
		Logger:  s.logger,
		RunCtx:  ctx,
	}
}

// shutdown stops background work and waits briefly for it to settle.
func (s *services) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), hydrationWait)
	defer cancel()

	s.runner.Pause()
	if err := s.runner.Wait(ctx); err != nil {
		s.logger.Warn("mass action still sending at exit", zap.Error(err))
	}
	if err := s.engine.WaitHydration(ctx); err != nil {
		s.logger.Warn("content lookup still running at exit", zap.Error(err))
	}
}

// newCommandSender puts commands on the system clipboard for pasting into
// the game client. Without a clipboard the command is only reported.
func newCommandSender() queue.CommandSender {
	if !clipboard.Available() {
		return discardSender{}
	}
	return clipboardSender{w: clipboard.System{}}
}

type clipboardSender struct {
	w clipboard.Writer
}

func (s clipboardSender) Send(ctx context.Context, command string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.w.WriteText(command); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}

type discardSender struct{}

func (discardSender) Send(ctx context.Context, _ string) error { return ctx.Err() }

// lineSender writes one command per line, for piping mass-action output.
type lineSender struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *lineSender) Send(ctx context.Context, command string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, command)
	return err
}
