// Package main provides the CLI entrypoint for osutrack.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/osutrack/internal/config"
	"github.com/verte-zerg/osutrack/internal/events"
	"github.com/verte-zerg/osutrack/internal/journal"
	"github.com/verte-zerg/osutrack/internal/model"
	"github.com/verte-zerg/osutrack/internal/osuapi"
	"github.com/verte-zerg/osutrack/internal/overlay"
	"github.com/verte-zerg/osutrack/internal/report"
	"github.com/verte-zerg/osutrack/internal/server"
	"github.com/verte-zerg/osutrack/internal/tosu"
	"github.com/verte-zerg/osutrack/internal/tracker"
)

const (
	defaultReconnectInterval = "5s"
	defaultRefreshInterval   = "5m"
	defaultLookupTimeout     = "10s"
	defaultListen            = "127.0.0.1:24051"
	defaultRecentRuns        = 5
	defaultRunsLimit         = 20
)

var (
	flagTosuURL           string
	flagAutoReconnect     bool
	flagReconnectInterval string
	flagPlayerID          string
	flagAPIURL            string
	flagMirrorURL         string
	flagRefreshInterval   string
	flagLookupTimeout     string
	flagListen            string
	flagHeadless          bool
	flagBrokers           []string
	flagTopic             string

	runsLimit int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "osutrack",
		Short:         "Live osu! ranked completion tracker",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE:          runTrackCmd,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagTosuURL, "tosu-url", tosu.DefaultURL, "tosu websocket v2 endpoint")
	flags.BoolVar(&flagAutoReconnect, "auto-reconnect", true, "reconnect to tosu after the connection drops")
	flags.StringVar(&flagReconnectInterval, "reconnect-interval", defaultReconnectInterval, "delay between reconnect attempts")
	flags.StringVar(&flagPlayerID, "player-id", "", "osu! user id (default: $OSU_PLAYER_ID)")
	flags.StringVar(&flagAPIURL, "api-url", osuapi.DefaultAPIURL, "osu! API v2 base URL")
	flags.StringVar(&flagMirrorURL, "mirror-url", osuapi.DefaultMirrorURL, "beatmap mirror base URL for ranked totals")
	flags.StringVar(&flagRefreshInterval, "refresh-interval", defaultRefreshInterval, "how often the baseline is fetched")
	flags.StringVar(&flagLookupTimeout, "lookup-timeout", defaultLookupTimeout, "timeout of a single score lookup")
	flags.StringVar(&flagListen, "listen", defaultListen, "address of the overlay HTTP endpoint")
	rootCmd.Flags().BoolVar(&flagHeadless, "headless", false, "serve HTTP and log only, without the terminal overlay")
	rootCmd.Flags().StringSliceVar(&flagBrokers, "brokers", nil, "kafka brokers for completion events")
	rootCmd.Flags().StringVar(&flagTopic, "topic", events.DefaultTopic, "kafka topic for completion events")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newRunsCmd())

	return rootCmd
}

func loadConfig(cmd *cobra.Command) (model.Config, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	creds, err := config.LoadCredentials()
	if err != nil {
		return model.Config{}, err
	}

	applyStringConfig(cmd, "tosu-url", &flagTosuURL, fileCfg.Tosu.URL)
	applyBoolConfig(cmd, "auto-reconnect", &flagAutoReconnect, fileCfg.Tosu.AutoReconnect)
	applyStringConfig(cmd, "reconnect-interval", &flagReconnectInterval, fileCfg.Tosu.ReconnectInterval)
	applyStringConfig(cmd, "player-id", &flagPlayerID, fileCfg.Osu.PlayerID)
	applyStringConfig(cmd, "api-url", &flagAPIURL, fileCfg.Osu.APIURL)
	applyStringConfig(cmd, "mirror-url", &flagMirrorURL, fileCfg.Osu.MirrorURL)
	applyStringConfig(cmd, "refresh-interval", &flagRefreshInterval, fileCfg.Osu.RefreshInterval)
	applyStringConfig(cmd, "lookup-timeout", &flagLookupTimeout, fileCfg.Osu.LookupTimeout)
	applyStringConfig(cmd, "listen", &flagListen, fileCfg.Overlay.Listen)
	applyBoolConfig(cmd, "headless", &flagHeadless, fileCfg.Overlay.Headless)
	applyStringConfig(cmd, "topic", &flagTopic, fileCfg.Events.Topic)
	if len(fileCfg.Events.Brokers) > 0 && !flagChanged(cmd, "brokers") {
		flagBrokers = fileCfg.Events.Brokers
	}
	if flagPlayerID == "" {
		flagPlayerID = creds.PlayerID
	}

	cfg := model.Config{
		TosuURL:       strings.TrimSpace(flagTosuURL),
		AutoReconnect: flagAutoReconnect,
		PlayerID:      strings.TrimSpace(flagPlayerID),
		ClientID:      creds.ClientID,
		ClientSecret:  creds.ClientSecret,
		APIURL:        flagAPIURL,
		TokenURL:      osuapi.DefaultTokenURL,
		MirrorURL:     flagMirrorURL,
		Listen:        strings.TrimSpace(flagListen),
		Headless:      flagHeadless,
		Brokers:       flagBrokers,
		Topic:         flagTopic,
	}
	if cfg.ReconnectInterval, err = parseDuration("reconnect-interval", flagReconnectInterval); err != nil {
		return model.Config{}, err
	}
	if cfg.RefreshInterval, err = parseDuration("refresh-interval", flagRefreshInterval); err != nil {
		return model.Config{}, err
	}
	if cfg.LookupTimeout, err = parseDuration("lookup-timeout", flagLookupTimeout); err != nil {
		return model.Config{}, err
	}
	if err := validateConfig(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func runTrackCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireCredentials(cfg); err != nil {
		return err
	}

	var logger *log.Logger
	if cfg.Headless {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	} else {
		logPath := config.DefaultLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		logFile, err := tea.LogToFile(logPath, "")
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer func() {
			if cerr := logFile.Close(); cerr != nil {
				logErrf("failed to close log: %v\n", cerr)
			}
		}()
		logger = log.Default()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newAPIClient(ctx, cfg)
	if err != nil {
		return err
	}

	runs, err := journal.Open(journal.MemoryPath)
	if err != nil {
		return fmt.Errorf("failed to open run journal: %w", err)
	}
	defer func() {
		if cerr := runs.Close(); cerr != nil {
			logger.Printf("failed to close run journal: %v", cerr)
		}
	}()

	producer := events.NewProducer(events.Options{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		PlayerID: cfg.PlayerID,
		Logger:   logger,
	})
	defer func() {
		if cerr := producer.Close(); cerr != nil {
			logger.Printf("failed to close event producer: %v", cerr)
		}
	}()

	tr := tracker.New(tracker.Options{
		Conn: tosu.Options{
			URL:               cfg.TosuURL,
			AutoReconnect:     cfg.AutoReconnect,
			ReconnectInterval: cfg.ReconnectInterval,
			Logger:            logger,
		},
		Checker:         client,
		Fetcher:         client,
		Journal:         runs,
		Emitter:         producer,
		LookupTimeout:   cfg.LookupTimeout,
		RefreshInterval: cfg.RefreshInterval,
		Logger:          logger,
	})
	srv := server.New(server.Options{
		Source:        tr,
		Runs:          runs,
		Checker:       client,
		EventsEnabled: producer.IsEnabled(),
		Logger:        logger,
	})

	var wg sync.WaitGroup
	var serveErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := tr.Run(ctx); err != nil {
			logger.Printf("tracker: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		serveErr = serveOverlay(ctx, srv.ListenAndServe, cfg.Listen, cfg.Headless, stop, logger)
	}()

	if cfg.Headless {
		logger.Printf("tracking player %s, overlay at http://%s/api/overlay", cfg.PlayerID, cfg.Listen)
		<-ctx.Done()
		wg.Wait()
		if serveErr != nil {
			return fmt.Errorf("failed to serve overlay on %s: %w", cfg.Listen, serveErr)
		}
		return nil
	}

	states, cancel := tr.Subscribe()
	program := tea.NewProgram(overlay.NewModel(states, defaultRecentRuns), tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := program.Run()
	cancel()
	stop()
	wg.Wait()
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}
	return nil
}

// serveOverlay runs serve until ctx is done. Headless runs have no other
// output, so there a failed server also stops the tracker.
func serveOverlay(ctx context.Context, serve func(context.Context, string) error, addr string, headless bool, stop func(), logger *log.Logger) error {
	err := serve(ctx, addr)
	if err == nil {
		return nil
	}
	logger.Printf("server: %v", err)
	if headless {
		stop()
	}
	return err
}

func newAPIClient(ctx context.Context, cfg model.Config) (*osuapi.Client, error) {
	client, err := osuapi.New(ctx, osuapi.Options{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		PlayerID:     cfg.PlayerID,
		APIURL:       cfg.APIURL,
		TokenURL:     cfg.TokenURL,
		MirrorURL:    cfg.MirrorURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create osu! API client: %w", err)
	}
	return client, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Fetch and print the current completion baseline",
		Args:  cobra.NoArgs,
		RunE:  runStatusCmd,
	}
}

func runStatusCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireCredentials(cfg); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.LookupTimeout)
	defer cancel()
	client, err := newAPIClient(ctx, cfg)
	if err != nil {
		return err
	}
	b, err := client.FetchBaseline(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch baseline: %w", err)
	}
	return report.WriteStatus(cmd.OutOrStdout(), b)
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <beatmap-id>",
		Short: "Check whether the player has a score on a beatmap",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheckCmd,
	}
}

func runCheckCmd(cmd *cobra.Command, args []string) error {
	beatmapID, err := parseBeatmapID(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireCredentials(cfg); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.LookupTimeout)
	defer cancel()
	client, err := newAPIClient(ctx, cfg)
	if err != nil {
		return err
	}
	exists, err := client.ScoreExists(ctx, beatmapID)
	if err != nil {
		return fmt.Errorf("failed to look up score: %w", err)
	}
	return report.WriteScore(cmd.OutOrStdout(), beatmapID, exists)
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs classified by the running tracker",
		Args:  cobra.NoArgs,
		RunE:  runRunsCmd,
	}
	cmd.Flags().IntVar(&runsLimit, "last", defaultRunsLimit, "number of runs to show")
	return cmd
}

func runRunsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if runsLimit <= 0 {
		return fmt.Errorf("--last must be > 0")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	url := fmt.Sprintf("http://%s/api/runs?limit=%d", cfg.Listen, runsLimit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach tracker at %s (is osutrack running?): %w", cfg.Listen, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tracker returned %s", resp.Status)
	}
	var payload struct {
		Runs   []model.RunRecord        `json:"runs"`
		Totals map[model.RunOutcome]int `json:"totals"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode runs: %w", err)
	}
	return report.WriteRuns(cmd.OutOrStdout(), payload.Runs, payload.Totals)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if flagChanged(cmd, name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if flagChanged(cmd, name) {
		return
	}
	*target = *value
}

func parseDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid --%s value: %w", name, err)
	}
	return d, nil
}

func parseBeatmapID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid beatmap id %q: must be a positive integer", raw)
	}
	return id, nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# osutrack configuration
# Uncomment a value to enable it. CLI flags override config values.
# API credentials are read from OSU_CLIENT_ID and OSU_CLIENT_SECRET only.

[tosu]
# url = %q
# auto-reconnect = true
# reconnect-interval = %q

[osu]
# player-id = ""          # Falls back to OSU_PLAYER_ID
# api-url = %q
# mirror-url = %q
# refresh-interval = %q   # Baseline reconciliation period
# lookup-timeout = %q     # Score lookup timeout

[overlay]
# listen = %q
# headless = false

[events]
# brokers = ["localhost:9092"]
# topic = %q
`,
		tosu.DefaultURL,
		defaultReconnectInterval,
		osuapi.DefaultAPIURL,
		osuapi.DefaultMirrorURL,
		defaultRefreshInterval,
		defaultLookupTimeout,
		defaultListen,
		events.DefaultTopic,
	)
}

func validateConfig(cfg model.Config) error {
	if !strings.HasPrefix(cfg.TosuURL, "ws://") && !strings.HasPrefix(cfg.TosuURL, "wss://") {
		return fmt.Errorf("--tosu-url must be a ws:// or wss:// URL")
	}
	if cfg.ReconnectInterval <= 0 {
		return fmt.Errorf("--reconnect-interval must be > 0")
	}
	if cfg.RefreshInterval <= 0 {
		return fmt.Errorf("--refresh-interval must be > 0")
	}
	if cfg.LookupTimeout <= 0 {
		return fmt.Errorf("--lookup-timeout must be > 0")
	}
	if cfg.Listen == "" {
		return fmt.Errorf("--listen must not be empty")
	}
	if cfg.PlayerID != "" {
		if _, err := strconv.Atoi(cfg.PlayerID); err != nil {
			return fmt.Errorf("--player-id must be numeric")
		}
	}
	return nil
}

func requireCredentials(cfg model.Config) error {
	var missing []string
	if cfg.PlayerID == "" {
		missing = append(missing, "--player-id (or OSU_PLAYER_ID)")
	}
	if cfg.ClientID == "" {
		missing = append(missing, "OSU_CLIENT_ID")
	}
	if cfg.ClientSecret == "" {
		missing = append(missing, "OSU_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing osu! API settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
