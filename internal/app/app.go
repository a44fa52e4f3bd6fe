package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/five82/labbcat"
	"github.com/five82/labbcat/internal/config"
	"github.com/five82/labbcat/internal/prefs"
	"github.com/five82/labbcat/internal/ui"
	"github.com/five82/labbcat/transport"
)

// Options configure one CLI invocation.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/labbcat/prefs.toml
	// Verbose and Batch add to the config file's settings; they cannot
	// switch them off.
	Verbose bool
	Batch   bool
	Args    []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// watch overrides the TUI entry point in tests.
	watch func(ui.Options) error
}

// Run loads configuration, opens a session and runs the command named by
// Args[0].
func Run(ctx context.Context, opts Options) error {
	stdin, stdout, stderr := opts.Stdin, opts.Stdout, opts.Stderr
	if stdin == nil {
		stdin = os.Stdin
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	if len(opts.Args) == 0 {
		printUsage(stderr)
		return errUsage
	}
	cmd, ok := commandTable()[opts.Args[0]]
	if !ok {
		printUsage(stderr)
		return fmt.Errorf("%w: unknown command %q", errUsage, opts.Args[0])
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return errors.New("no server url: set url in " + configPathOrDefault(opts.ConfigPath))
	}
	userPrefs, _ := prefs.Load(opts.PrefsPath)

	verbose := cfg.Verbose || opts.Verbose
	logger := newLogger(cfg, verbose, stderr)
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	sessionOpts := labbcat.Options{
		Username: cfg.Username,
		Password: cfg.Password,
		Batch:    cfg.Batch || opts.Batch,
		Verbose:  verbose,
		Language: cfg.Language,
		Logger:   logger,
		Metrics:  transport.NewMetrics(registry),
		Timeout:  cfg.Timeout,
	}
	if !sessionOpts.Batch {
		sessionOpts.Prompter = linePrompter(stdin, stderr)
	}
	session, err := labbcat.NewSession(cfg.URL, sessionOpts)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	// Ctrl-C stops uploads and waits cooperatively before ctx ends them.
	stop := context.AfterFunc(ctx, session.Cancel)
	defer stop()

	watch := opts.watch
	if watch == nil {
		watch = ui.Run
	}
	e := &env{
		ctx:         ctx,
		session:     session,
		logger:      logger,
		out:         stdout,
		downloadDir: cfg.DownloadDir,
		pageLength:  userPrefs.PageLength,
		themeName:   userPrefs.Theme,
		prefsPath:   opts.PrefsPath,
		watch:       watch,
	}

	err = cmd.run(e, opts.Args[1:])
	if verbose {
		logMetrics(logger, registry)
	}
	if errors.Is(err, errUsage) {
		fmt.Fprintf(stderr, "usage: labbcat %s\n", cmd.usage)
	}
	return err
}

func configPathOrDefault(path string) string {
	if strings.TrimSpace(path) == "" {
		return config.DefaultPath()
	}
	return path
}

// logMetrics writes a one-line summary per transport metric family.
func logMetrics(logger *zap.Logger, registry *prometheus.Registry) {
	families, err := registry.Gather()
	if err != nil {
		logger.Debug("gather metrics failed", zap.Error(err))
		return
	}
	for _, mf := range families {
		var total float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		logger.Debug("metric", zap.String("name", mf.GetName()), zap.Float64("value", total))
	}
}
