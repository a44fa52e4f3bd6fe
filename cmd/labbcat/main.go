package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/labbcat/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override config path (optional)")
	prefsPath := flag.String("prefs", "", "override preferences path (optional)")
	verbose := flag.Bool("verbose", false, "log requests and responses")
	batch := flag.Bool("batch", false, "never prompt for credentials")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		PrefsPath:  *prefsPath,
		Verbose:    *verbose,
		Batch:      *batch,
		Args:       flag.Args(),
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "labbcat: %v\n", err)
		if app.IsUsage(err) {
			return 2
		}
		return 1
	}
	return 0
}
