package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/hotlist/internal/aggregator"
	"github.com/briangreenhill/hotlist/internal/app"
	"github.com/briangreenhill/hotlist/internal/config"
	"github.com/briangreenhill/hotlist/internal/hotlist"
	"github.com/briangreenhill/hotlist/internal/logging"
	"github.com/briangreenhill/hotlist/internal/providers"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := runCLI(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Lister is the part of the aggregator the CLI needs
type Lister interface {
	Fetch(ctx context.Context, name string, opts aggregator.FetchOptions) (*hotlist.List, error)
	Infos() []hotlist.Info
}

func runCLI(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return nil
	}

	switch args[0] {
	case "help", "--help", "-h":
		printUsage(out)
		return nil
	case "version", "--version", "-v":
		fmt.Fprintln(out, "hotlist v0.1.0")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// CLI output goes to out; logs only surface warnings on stderr
	logger, err := logging.New(os.Stderr, "warn", "console")
	if err != nil {
		return err
	}
	if cfg.Log.Level == "debug" {
		logger = logger.Level(zerolog.DebugLevel)
	}

	stack, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	return run(ctx, stack.Aggregator, args, out)
}

func run(ctx context.Context, l Lister, args []string, out io.Writer) error {
	if args[0] == "list" {
		for _, info := range l.Infos() {
			fmt.Fprintf(out, "%-10s %s (%s)\n", info.Name, info.Title, info.Type)
		}
		return nil
	}

	name := args[0]
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	noCache := fs.Bool("nocache", false, "bypass the cache and fetch fresh data")
	limit := fs.Int("limit", 20, "maximum number of items to print (0 for all)")
	listType := fs.String("type", "", "platform-specific list type")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	query := providers.Query{}
	if *listType != "" {
		query["type"] = *listType
	}

	list, err := l.Fetch(ctx, name, aggregator.FetchOptions{
		Query:  query,
		Bypass: *noCache,
		Limit:  *limit,
	})
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", name, err)
	}

	printList(out, list)
	return nil
}

func printList(out io.Writer, list *hotlist.List) {
	source := "live"
	if list.FromCache {
		source = "cached"
	}
	fmt.Fprintf(out, "%s · %s  (%s, updated %s)\n", list.Title, list.Type, source, list.UpdateTime.Local().Format(time.DateTime))
	fmt.Fprintln(out, strings.Repeat("-", 40))
	for i, item := range list.Data {
		fmt.Fprintf(out, "%2d. %s", i+1, item.Title)
		if item.Hot > 0 {
			fmt.Fprintf(out, "  [%d]", item.Hot)
		}
		fmt.Fprintf(out, "\n    %s\n", item.URL)
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: hotlist <command> [options]")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  list                 Show available platforms")
	fmt.Fprintln(out, "  <platform>           Print a platform's hot list")
	fmt.Fprintln(out, "Options:")
	fmt.Fprintln(out, "  -nocache             Bypass the cache")
	fmt.Fprintln(out, "  -limit N             Print at most N items (default 20)")
	fmt.Fprintln(out, "  -type T              Platform-specific list type")
	fmt.Fprintln(out, "Environment:")
	fmt.Fprintln(out, "  REDIS_ADDR           Share the cache through Redis")
	fmt.Fprintln(out, "  CACHE_DIR            Persist the cache on disk between runs")
	fmt.Fprintln(out, "  CACHE_TTL            Entry lifetime (default 1h)")
}
