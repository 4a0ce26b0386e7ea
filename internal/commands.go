package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/careerlink/internal/jobs"
	"github.com/starford/careerlink/internal/linker"
	"github.com/starford/careerlink/internal/mcpserver"
)

// RunAudit sweeps the whole store once and writes the report as JSON to out.
// With dryRun set nothing is repaired.
func RunAudit(ctx context.Context, out io.Writer, dryRun bool, opts ...Option) error {
	_, logger, s, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	defer s.Close()

	sweep := jobs.NewSweepJob(linker.NewAuditor(s, logger), "",
		jobs.WithDryRun(dryRun),
		jobs.WithSweepLogger(logger),
	)
	rep, err := sweep.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	if rep.Found == nil {
		rep.Found = []linker.Inconsistency{}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// RunMCP serves the link tools over stdio. Logs go to stderr so stdout
// carries only protocol traffic.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, logger, s, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	defer s.Close()

	links := linker.NewRegistry(s,
		linker.WithLogger(logger),
		linker.WithAtomicWrites(app.config.Linking.Atomic),
	)
	srv := mcpserver.New(links, linker.NewAuditor(s, logger))

	logger.Info("MCP server starting on stdio")
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("MCP server stopping", slog.String("reason", ctx.Err().Error()))
		return nil
	}
}
