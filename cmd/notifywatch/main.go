// Command notifywatch tails a user's notifications from a TalentHub server,
// following the live channel and polling the REST API while it is down.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/talenthub/internal/realtime"
	"github.com/charlesng35/talenthub/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	server       string
	token        string
	pollInterval time.Duration
	limit        int
	logLevel     string
}

func parseOptions(args []string) (options, error) {
	fs := flag.NewFlagSet("notifywatch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts options
	fs.StringVar(&opts.server, "server", "http://localhost:5000", "TalentHub API root")
	fs.StringVar(&opts.token, "token", os.Getenv("TALENTHUB_TOKEN"), "Bearer token (defaults to $TALENTHUB_TOKEN)")
	fs.DurationVar(&opts.pollInterval, "poll", 30*time.Second, "Poll interval while the live channel is down")
	fs.IntVar(&opts.limit, "limit", 20, "Notifications fetched per poll")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "Log level")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts.token = strings.TrimSpace(opts.token)
	if opts.token == "" {
		return options{}, errors.New("a token is required (-token or TALENTHUB_TOKEN)")
	}
	if opts.pollInterval < time.Second {
		return options{}, errors.New("poll interval must be at least 1s")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parseOptions(args)
	if err != nil {
		return err
	}

	if err := logger.Init(opts.logLevel, "console"); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort
	log := logger.WithModule("notifywatch")

	liveURL, err := LiveURL(opts.server)
	if err != nil {
		return fmt.Errorf("server url: %w", err)
	}

	client, err := realtime.NewClient(realtime.ClientConfig{
		URL:   liveURL,
		Token: realtime.StaticToken(opts.token),
		OnStateChange: func(state realtime.State) {
			log.Debug("live channel state", zap.String("state", string(state)))
		},
	})
	if err != nil {
		return err
	}

	var outMu sync.Mutex
	watcher := &Watcher{
		client:   client,
		poller:   NewPoller(opts.server, opts.token, opts.limit, nil),
		interval: opts.pollInterval,
		emit: func(n Notice) {
			outMu.Lock()
			defer outMu.Unlock()
			fmt.Fprintln(out, formatNotice(n))
		},
		log: log,
	}
	return watcher.Run(ctx)
}
