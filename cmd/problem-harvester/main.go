package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Sternrassler/problem-harvester/pkg/artifact"
	"github.com/Sternrassler/problem-harvester/pkg/harvest"
	"github.com/Sternrassler/problem-harvester/pkg/logging"
	"github.com/Sternrassler/problem-harvester/pkg/metrics"
	"github.com/Sternrassler/problem-harvester/pkg/source"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// errAborted is returned when the harvest did not complete. The artifact
// has still been written.
var errAborted = errors.New("harvest aborted")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errAborted) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// newRootCommand builds the CLI. Flags override the environment.
func newRootCommand() *cobra.Command {
	var flags config

	cmd := &cobra.Command{
		Use:   "problem-harvester [search keywords...]",
		Short: "Harvest the LeetCode problem list into one JSON artifact",
		Long: `Fetches every page of the LeetCode problem list, in order, and writes all
problems as one JSON array. Any page failure stops the run; whatever was
collected up to that point is still written and the exit code is 1.

Arguments are joined with spaces and sent as the search keywords filter.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFiles(); err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applyFlags(cmd, &cfg, flags)
			if err := cfg.validate(); err != nil {
				return err
			}

			return runHarvest(cmd.Context(), cfg, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.IntVar(&flags.PageSize, "page-size", 50, "records requested per page (HARVEST_PAGE_SIZE)")
	f.IntVar(&flags.StartCursor, "start-cursor", 0, "cursor to start from, for restarting an aborted run (HARVEST_START_CURSOR)")
	f.DurationVar(&flags.RequestTimeout, "request-timeout", 0, "timeout per page request (HARVEST_REQUEST_TIMEOUT)")
	f.IntVar(&flags.MaxAttempts, "max-attempts", 1, "attempts per page for transport errors, 1 disables retry (HARVEST_MAX_ATTEMPTS)")
	f.StringVar(&flags.Backend, "backend", backendFile, "artifact backend: file or redis (ARTIFACT_BACKEND)")
	f.StringVar(&flags.ArtifactName, "output", harvest.DefaultArtifactName, "artifact name (ARTIFACT_NAME)")
	f.StringVar(&flags.ArtifactDir, "dir", ".", "directory for the file backend (ARTIFACT_DIR)")
	f.StringVar(&flags.LogLevel, "log-level", "info", "debug, info, warn or error (LOG_LEVEL)")
	f.BoolVar(&flags.LogPretty, "pretty", false, "human-readable logs (LOG_PRETTY)")

	return cmd
}

// applyFlags copies explicitly set flags over the environment configuration.
func applyFlags(cmd *cobra.Command, cfg *config, flags config) {
	f := cmd.Flags()
	if f.Changed("page-size") {
		cfg.PageSize = flags.PageSize
	}
	if f.Changed("start-cursor") {
		cfg.StartCursor = flags.StartCursor
	}
	if f.Changed("request-timeout") {
		cfg.RequestTimeout = flags.RequestTimeout
	}
	if f.Changed("max-attempts") {
		cfg.MaxAttempts = flags.MaxAttempts
	}
	if f.Changed("backend") {
		cfg.Backend = strings.ToLower(flags.Backend)
	}
	if f.Changed("output") {
		cfg.ArtifactName = flags.ArtifactName
	}
	if f.Changed("dir") {
		cfg.ArtifactDir = flags.ArtifactDir
	}
	if f.Changed("log-level") {
		cfg.LogLevel = flags.LogLevel
	}
	if f.Changed("pretty") {
		cfg.LogPretty = flags.LogPretty
	}
}

// runHarvest wires the source, store and harvester, runs one harvest and
// prints the summary to out.
func runHarvest(ctx context.Context, cfg config, keywords string, out io.Writer) error {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Pretty = cfg.LogPretty
	logging.Setup(logCfg)

	srcCfg := source.DefaultConfig()
	srcCfg.Endpoint = cfg.Endpoint
	srcCfg.UserAgent = cfg.UserAgent
	srcCfg.SessionToken = cfg.SessionToken
	srcCfg.Retry.MaxAttempts = cfg.MaxAttempts
	src, err := source.New(srcCfg)
	if err != nil {
		return fmt.Errorf("create source: %w", err)
	}

	store, location, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	hCfg := harvest.DefaultConfig()
	hCfg.PageSize = cfg.PageSize
	hCfg.StartCursor = cfg.StartCursor
	hCfg.RequestTimeout = cfg.RequestTimeout
	hCfg.ArtifactName = cfg.ArtifactName
	hCfg.Filters = source.KeywordFilters(keywords)

	h, err := harvest.New(src, store, hCfg)
	if err != nil {
		return fmt.Errorf("create harvester: %w", err)
	}

	result, writeErr := h.HarvestAll(ctx)

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			log.Warn().Err(err).Str("path", cfg.MetricsTextfile).Msg("Failed to write metrics textfile")
		}
	}

	printSummary(out, result, location, writeErr)

	if writeErr != nil {
		return writeErr
	}
	if !result.Completed() {
		return errAborted
	}
	return nil
}

// openStore returns the configured artifact store, the location the
// artifact will be written to, and a close function.
func openStore(ctx context.Context, cfg config) (harvest.ArtifactStore, string, func(), error) {
	switch cfg.Backend {
	case backendRedis:
		opts, err := redisOptions(cfg.RedisURL)
		if err != nil {
			return nil, "", nil, err
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, "", nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
		}
		log.Info().Str("addr", opts.Addr).Msg("Connected to Redis")

		key := artifact.Key{Prefix: cfg.RedisPrefix, Name: cfg.ArtifactName}
		store := artifact.NewRedisStore(redisClient, cfg.RedisPrefix)
		return store, "redis key " + key.String(), func() { redisClient.Close() }, nil

	default:
		store, err := artifact.NewFileStore(cfg.ArtifactDir)
		if err != nil {
			return nil, "", nil, err
		}
		return store, store.Path(cfg.ArtifactName), func() {}, nil
	}
}

// redisOptions accepts either a redis:// URL or a bare host:port.
func redisOptions(raw string) (*redis.Options, error) {
	if strings.Contains(raw, "://") {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: raw}, nil
}

func printSummary(out io.Writer, result harvest.Result, location string, writeErr error) {
	if result.Completed() {
		fmt.Fprintf(out, "Harvest completed: %d records (%d pages)\n", len(result.Records), result.Pages)
	} else {
		fmt.Fprintf(out, "Harvest aborted at cursor %d: %s\n", result.Cursor, result.Reason())
		fmt.Fprintf(out, "Restart with --start-cursor %d and a different --output to continue\n", result.Cursor)
	}

	if writeErr != nil {
		fmt.Fprintf(out, "Failed to save %d records to %s: %v\n", len(result.Records), location, writeErr)
		return
	}
	fmt.Fprintf(out, "%d records saved to %s\n", len(result.Records), location)
}
