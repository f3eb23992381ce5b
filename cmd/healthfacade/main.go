package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/spf13/cobra"

	"github.com/thealah/rest-windows-service-health-facade/internal/allowlist"
	"github.com/thealah/rest-windows-service-health-facade/internal/api"
	"github.com/thealah/rest-windows-service-health-facade/internal/config"
	"github.com/thealah/rest-windows-service-health-facade/internal/executor"
	"github.com/thealah/rest-windows-service-health-facade/internal/health"
	"github.com/thealah/rest-windows-service-health-facade/internal/httputil"
	"github.com/thealah/rest-windows-service-health-facade/internal/iissite"
	"github.com/thealah/rest-windows-service-health-facade/internal/logging"
	"github.com/thealah/rest-windows-service-health-facade/internal/privilege"
	"github.com/thealah/rest-windows-service-health-facade/internal/svcquery"
)

var log = logging.L("main")

var (
	version = "0.1.0"
	cfgFile string

	probeURL     string
	probeWebsite bool
	probeTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "healthfacade",
	Short: "Windows Service HealthCheck REST API",
	Long:  `healthfacade reports whether Windows services and IIS websites on this host are running, as HTTP status codes a load balancer or monitor can key on.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the REST API",
	Run: func(cmd *cobra.Command, args []string) {
		runFacade()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("healthfacade v%s\n", version)
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe <name>",
	Short: "Ask a running facade about one service or website",
	Long: `probe queries a running facade and exits 0 when the target is healthy,
2 when it is missing or stopped, and 1 on any other failure.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(probe(cmd.Context(), args[0]))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is healthfacade.yaml in the platform config dir)")

	probeCmd.Flags().StringVar(&probeURL, "url", "", "facade base URL (default http://127.0.0.1:<port>)")
	probeCmd.Flags().BoolVar(&probeWebsite, "iis", false, "probe an IIS website instead of a Windows service")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 30*time.Second, "overall probe timeout")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(probeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.ValidateTiered().HasFatals() {
		fmt.Fprintln(os.Stderr, "Invalid configuration, see log for details.")
		os.Exit(1)
	}
	return cfg
}

func runFacade() {
	cfg := loadConfig()

	if isWindowsService() {
		if err := runAsService(func(ctx context.Context) error { return serve(ctx, cfg) }); err != nil {
			log.Error("service failed", "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("shut down")
}

// serve builds the facade from cfg and blocks until ctx is done.
func serve(ctx context.Context, cfg *config.Config) error {
	closer, err := logging.Setup(logging.Options{
		Format:     cfg.LogFormat,
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer closer.Close()

	filter, err := buildFilter(ctx, cfg)
	if err != nil {
		return err
	}

	exec := executor.New(
		executor.WithEncoding(cfg.OutputEncoding),
		executor.WithTimeout(cfg.CommandTimeout()),
	)

	hostname := resolveHostname(ctx)
	srv := &api.Server{
		Services: &svcquery.Lister{Runner: exec, Command: cfg.NetCommand, Filter: filter},
		Websites: &iissite.Lister{Runner: exec, Command: cfg.AppcmdCommand, Filter: filter},
		Filter:   filter,
		Mapper:   health.Mapper{Host: hostname},
		Port:     cfg.Port,
	}

	log.Info("starting healthfacade",
		"version", version,
		"host", hostname,
		"addresses", cfg.Addresses(),
		"encoding", cfg.OutputEncoding,
	)
	if !privilege.Elevated() {
		log.Warn("not running elevated, IIS website checks will report errors")
	}

	return api.Serve(ctx, srv.Handler(), api.ServeConfig{
		Addresses:       cfg.Addresses(),
		MaxConnections:  cfg.MaxConnections,
		ShutdownTimeout: cfg.ShutdownTimeout(),
	})
}

func buildFilter(ctx context.Context, cfg *config.Config) (allowlist.Filter, error) {
	if cfg.AllowlistFile != "" {
		w, err := allowlist.Watch(ctx, cfg.AllowlistFile)
		if err != nil {
			return nil, fmt.Errorf("allow-list: %w", err)
		}
		return w, nil
	}
	list, err := allowlist.Compile(allowlist.Rules{
		Services: cfg.Allow.Services,
		Websites: cfg.Allow.Websites,
	})
	if err != nil {
		return nil, fmt.Errorf("allow-list: %w", err)
	}
	return list, nil
}

// resolveHostname is called once; payloads reuse the result.
func resolveHostname(ctx context.Context) string {
	info, err := host.InfoWithContext(ctx)
	if err == nil && info.Hostname != "" {
		return info.Hostname
	}
	name, herr := os.Hostname()
	if herr != nil {
		log.Warn("could not resolve hostname", "error", errors.Join(err, herr))
		return "localhost"
	}
	return name
}

const (
	probeHealthy = 0
	probeFailed  = 1
	probeDown    = 2
)

func probe(ctx context.Context, name string) int {
	base := probeURL
	if base == "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			cfg = config.Default()
		}
		base = "http://127.0.0.1:" + strconv.Itoa(cfg.Port)
	}

	target := base + "/" + url.PathEscape(name)
	if probeWebsite {
		target = base + "/iis/" + url.PathEscape(name)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	resp, err := httputil.Get(ctx, http.DefaultClient, target, httputil.DefaultRetryConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "probe %s: %v\n", target, err)
		return probeFailed
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	fmt.Printf("%d %s\n", resp.StatusCode, body)

	switch resp.StatusCode {
	case http.StatusOK:
		return probeHealthy
	case http.StatusBadGateway:
		return probeDown
	default:
		return probeFailed
	}
}
