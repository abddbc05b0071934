package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/nao1215/pagemirror/internal/config"
	"github.com/nao1215/pagemirror/internal/database"
	"github.com/nao1215/pagemirror/internal/extract"
	"github.com/nao1215/pagemirror/internal/fetch"
	applog "github.com/nao1215/pagemirror/internal/log"
	"github.com/nao1215/pagemirror/internal/model"
	"github.com/nao1215/pagemirror/internal/persist"
	"github.com/nao1215/pagemirror/internal/pipeline"
	"github.com/nao1215/pagemirror/internal/report"
	"github.com/nao1215/pagemirror/internal/transport"
	"github.com/spf13/cobra"
)

// progressLabels names each resource kind in the progress narration.
var progressLabels = map[model.ResourceKind]string{
	model.KindPage:         "Page",
	model.KindIcon:         "Icon",
	model.KindShortcutIcon: "Shortcut icon",
	model.KindStylesheet:   "Css",
	model.KindFont:         "Font",
	model.KindScript:       "Script",
	model.KindImage:        "Image",
	model.KindInlineStyle:  "Inline style",
}

// newMirrorCmd creates the command that mirrors a page. It becomes the
// root command.
func newMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pagemirror <url> [output-dir] [depth]",
		Short: "Mirror a web page and its assets for local serving",
		Long: `pagemirror downloads one page together with its stylesheets (following
@import up to depth levels), fonts, scripts, images and favicon. Every
same-origin reference is rewritten to the local copy; off-origin references
are left untouched. The result is written to output-dir:

  output-dir/index.html
  output-dir/css/   stylesheets
  output-dir/src/   scripts
  output-dir/img/   images
  output-dir/font/  fonts

Resources that cannot be fetched are skipped and listed in the report.
Every run is recorded in the history database unless --no-history is set.

Examples:
  # Mirror into ./output with @import depth 5
  pagemirror https://example.com/template/index.html

  # Mirror into ./site, following @import two levels deep
  pagemirror https://example.com/ site 2

  # Go through Tor for an onion service
  pagemirror --tor http://exampleonionaddress.onion/

  # Write a Markdown report to a file
  pagemirror -m -r report.md https://example.com/

Configuration file (.pagemirror) example:
  defaults:
    userAgent: "Mozilla/5.0 (X11; Linux x86_64)"
  sites:
    example.com:
      cookie: "session=abc123"
      headers:
        Authorization: "Bearer token"
      depth: 3`,
		Args: cobra.RangeArgs(1, 3),
		RunE: runMirrorCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .pagemirror in current or home directory)")

	// Request flags
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Float64("rate", 0,
		"Maximum requests per second (0 means unlimited)")
	cmd.Flags().Bool("robots", false,
		"Honor robots.txt")

	// Proxy flags
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route requests through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("report", "r", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-history", false,
		"Do not record this run in the history database")

	return cmd
}

// runMirrorCmd executes the mirror command.
func runMirrorCmd(cmd *cobra.Command, args []string) error {
	cfg, site, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := applog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runMirror(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, site, logger)
}

// buildConfig creates a Config from positional arguments, cobra flags,
// the environment and the config file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, config.SiteConfig, error) {
	cfg := config.NewConfig()
	var site config.SiteConfig

	cfg.URL = args[0]
	if len(args) > 1 {
		cfg.OutputDir = args[1]
	}
	if len(args) > 2 {
		depth, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, site, fmt.Errorf("%w: %q", config.ErrInvalidDepth, args[2])
		}
		cfg.Depth = depth
	}

	var err error

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, site, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, site, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, site, err
	}

	cfg.Rate, err = cmd.Flags().GetFloat64("rate")
	if err != nil {
		return nil, site, err
	}

	cfg.Robots, err = cmd.Flags().GetBool("robots")
	if err != nil {
		return nil, site, err
	}

	cfg.ProxyAddress, err = cmd.Flags().GetString("proxy")
	if err != nil {
		return nil, site, err
	}

	cfg.UseTor, err = cmd.Flags().GetBool("tor")
	if err != nil {
		return nil, site, err
	}

	cfg.TorStartupTimeout, err = cmd.Flags().GetDuration("tor-timeout")
	if err != nil {
		return nil, site, err
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, site, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, site, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("report")
	if err != nil {
		return nil, site, err
	}

	noHistory, err := cmd.Flags().GetBool("no-history")
	if err != nil {
		return nil, site, err
	}
	cfg.SaveToDB = !noHistory
	cfg.DBDir = getHistoryDir(cmd)
	cfg.Verbose = getVerboseFlag(cmd)

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently continue without one.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, site, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if cfg.ConfigFilePath != "" {
		return nil, site, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	explicit := func(name string) bool {
		if name == "depth" {
			return len(args) > 2
		}
		return cmd.Flags().Changed(name)
	}

	// Priority: flags > environment > config file > defaults.
	site = cfg.ApplySiteConfig(explicit)
	if err := config.LoadEnv(); err != nil {
		return nil, site, err
	}
	if err := cfg.ApplyEnv(nil, explicit); err != nil {
		return nil, site, err
	}

	return cfg, site, nil
}

// runMirror mirrors cfg.URL into cfg.OutputDir and prints the report.
// Progress narration goes to errOut so the report on out stays parseable.
func runMirror(ctx context.Context, out, errOut io.Writer, cfg *config.Config, site config.SiteConfig, logger *slog.Logger) error {
	target, err := url.Parse(cfg.URL)
	if err != nil {
		return fmt.Errorf("%w: %s", config.ErrInvalidURL, cfg.URL)
	}

	if err := transport.CheckTarget(target, cfg.UseTor || cfg.ProxyAddress != ""); err != nil {
		return err
	}

	logger.Info("starting mirror",
		"url", target,
		"outputDir", cfg.OutputDir,
		"depth", cfg.Depth,
		"saveToDB", cfg.SaveToDB,
	)

	client, stopTor, err := newClient(ctx, errOut, cfg, site, logger)
	if err != nil {
		return err
	}
	defer stopTor()

	fetcher := fetch.NewHTTPFetcher(client.HTTPClient(),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithRate(cfg.Rate),
		fetch.WithRobots(cfg.Robots),
		fetch.WithLogger(logger),
	)

	extractor := extract.New(fetcher,
		extract.WithLogger(logger),
		extract.WithProgress(newProgressPrinter(errOut)),
	)
	writer := persist.NewWriter(persist.WithLogger(logger))

	var store pipeline.RunStore
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
		store = db
	}

	p := pipeline.DefaultPipeline(extractor, writer, store, pipeline.WithLogger(logger))
	run := model.NewRun(cfg.URL, cfg.OutputDir, cfg.Depth)

	fmt.Fprintf(errOut, "Mirroring %s into %s...\n", cfg.URL, cfg.OutputDir)
	execErr := p.Execute(ctx, run)
	if execErr == nil {
		fmt.Fprintf(errOut, "Mirror completed in %s\n\n", run.Duration().Round(time.Millisecond))
	}

	if err := outputReport(cfg, out, run); err != nil {
		logger.Error("report failed", "error", err)
		if execErr == nil {
			return err
		}
	}

	if execErr != nil {
		return fmt.Errorf("mirror failed: %w", execErr)
	}
	return nil
}

// newClient builds the transport client for cfg. The returned stop
// function shuts down the embedded Tor daemon, if one was started, and
// is always safe to call.
func newClient(ctx context.Context, errOut io.Writer, cfg *config.Config, site config.SiteConfig, logger *slog.Logger) (*transport.Client, func(), error) {
	opts := []transport.ClientOption{
		transport.WithTimeout(cfg.Timeout),
		transport.WithCookie(site.Cookie),
		transport.WithHeaders(site.Headers),
	}
	noop := func() {}

	switch {
	case cfg.UseTor:
		client, embeddedTor, err := startEmbeddedTor(ctx, errOut, cfg, opts, logger)
		if err != nil {
			return nil, noop, err
		}
		return client, func() {
			logger.Info("stopping embedded Tor daemon...")
			if err := embeddedTor.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}, nil

	case cfg.ProxyAddress != "":
		client, err := transport.NewClient(append(opts, transport.WithProxy(cfg.ProxyAddress))...)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create proxy client: %w", err)
		}

		status := client.CheckConnection(ctx)
		if status != transport.ProxyStatusOK {
			return nil, noop, fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)",
				status.Err(), cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
		return client, noop, nil

	default:
		client, err := transport.NewClient(opts...)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		return client, noop, nil
	}
}

// startEmbeddedTor starts an embedded Tor daemon using tornago.
// Returns a client proxied through it and the daemon handle on success.
func startEmbeddedTor(ctx context.Context, errOut io.Writer, cfg *config.Config, opts []transport.ClientOption, logger *slog.Logger) (*transport.Client, *transport.EmbeddedTor, error) {
	fmt.Fprintln(errOut, "Starting embedded Tor daemon...")
	fmt.Fprintf(errOut, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := transport.NewEmbeddedTor(
		transport.WithStartupTimeout(cfg.TorStartupTimeout),
	)

	if err := embeddedTor.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	logger.Info("embedded Tor daemon started",
		"socksAddr", embeddedTor.SocksAddr(),
		"controlAddr", embeddedTor.ControlAddr(),
	)
	fmt.Fprintf(errOut, "SOCKS proxy: %s\n\n", embeddedTor.SocksAddr())

	client, err := embeddedTor.NewClient(opts...)
	if err != nil {
		_ = embeddedTor.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}

	status := client.CheckConnection(ctx)
	if status != transport.ProxyStatusOK {
		_ = embeddedTor.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %s", status)
	}

	return client, embeddedTor, nil
}

// newProgressPrinter returns a Progress callback printing one line per
// fetched resource, e.g. "Css: https://example.com/style.css".
func newProgressPrinter(w io.Writer) extract.Progress {
	return func(kind model.ResourceKind, u *url.URL) {
		label, ok := progressLabels[kind]
		if !ok {
			label = string(kind)
		}
		fmt.Fprintf(w, "%s: %s\n", label, u)
	}
}

// outputReport writes the run report in the requested format. With
// cfg.ReportFile set the report goes to that file and a plain summary
// still goes to out.
func outputReport(cfg *config.Config, out io.Writer, run *model.Run) error {
	if cfg.ReportFile == "" {
		_, err := newReportWriter(cfg.JSONReport, cfg.MarkdownReport, cfg.Verbose, out).Write(run)
		return err
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	// Reports may contain cookies in URLs, keep them owner-readable.
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	w := report.NewMultiWriter(
		newReportWriter(cfg.JSONReport, cfg.MarkdownReport, cfg.Verbose, f),
		report.NewSimpleWriter(out),
	)
	_, err = w.Write(run)
	return err
}

// newReportWriter selects the report format.
func newReportWriter(jsonReport, markdownReport, verbose bool, out io.Writer) report.Writer {
	switch {
	case jsonReport:
		return report.NewFullJSONWriter(out, getVersion(), report.WithPrettyPrint())
	case markdownReport:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(verbose))
	}
}
