package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/redis/go-redis/v9"

	"ratelab/internal/config"
	"ratelab/internal/eventbus"
	"ratelab/internal/fetch"
	"ratelab/internal/stats"
	"ratelab/internal/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		baseURL     string
		debounce    time.Duration
		throttle    time.Duration
		logLevel    string
		writeConfig string
		check       bool
	)
	flag.StringVar(&configPath, "config", "", "Path to the TOML config file (default: "+config.DefaultPath()+")")
	flag.StringVar(&baseURL, "base-url", "", "Root of the posts API to search")
	flag.DurationVar(&debounce, "debounce", 0, "Debounce delay of the optimized search")
	flag.DurationVar(&throttle, "throttle", 0, "Throttle window of the optimized scroll handler")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flag.StringVar(&writeConfig, "write-config", "", "Write the effective config to this path and exit")
	flag.BoolVar(&check, "check", false, "Check that the API answers and exit")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Flags override file and environment
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "base-url":
			cfg.Search.BaseURL = baseURL
		case "debounce":
			cfg.Search.Debounce.Duration = debounce
		case "throttle":
			cfg.Scroll.Throttle.Duration = throttle
		case "log-level":
			cfg.Log.Level = logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if writeConfig != "" {
		if err := cfg.Save(writeConfig); err != nil {
			return err
		}
		fmt.Printf("Config written to %s\n", writeConfig)
		return nil
	}

	level, _ := cfg.Log.SlogLevel()
	logger, logFile := newLogger(level, cfg.Log.Path)
	defer logFile.Close()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	client := fetch.NewClient(cfg.Search.BaseURL,
		fetch.WithHTTPClient(newHTTPClient(cfg.Search)),
		fetch.WithTimeout(cfg.Search.RequestTimeout.Duration),
		fetch.WithRateLimit(cfg.Search.RateLimit, cfg.Search.Burst),
		fetch.WithLogger(logger),
	)

	if check {
		return checkAPI(ctx, client)
	}

	bus := eventbus.New(logger)
	defer bus.Close()

	recorderOpts := []stats.RecorderOption{stats.WithLogger(logger)}
	if cfg.Stats.RedisAddr != "" {
		rdb, err := connectRedis(ctx, cfg.Stats)
		if err != nil {
			return err
		}
		defer rdb.Close()
		recorderOpts = append(recorderOpts, stats.WithSink(stats.NewRedisStore(rdb,
			stats.WithPrefix(cfg.Stats.Prefix),
			stats.WithTTL(cfg.Stats.TTL.Duration),
			stats.WithBucket(cfg.Stats.Bucket),
		)))
	}
	recorder := stats.NewRecorder(recorderOpts...)
	defer recorder.Close()
	detach := recorder.Attach(bus)
	defer detach()

	model, err := ui.NewModel(cfg, bus, recorder, client,
		ui.WithLogger(logger),
		ui.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer model.Wait()
	defer model.Close()

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	model.SetProgram(p)

	logger.Info("starting",
		"base_url", cfg.Search.BaseURL,
		"debounce", cfg.Search.Debounce.String(),
		"throttle", cfg.Scroll.Throttle.String(),
		"redis", cfg.Stats.RedisAddr != "",
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logger.Error("program failed", "error", err)
		return fmt.Errorf("error running program: %w", err)
	}
	logger.Info("exited normally")
	return nil
}

// newHTTPClient keeps enough idle connections for a full burst of
// keystroke searches against the one API host
func newHTTPClient(cfg config.SearchConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = max(cfg.Burst, 2)
	return &http.Client{Transport: transport}
}

func connectRedis(ctx context.Context, cfg config.StatsConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis stats ping error: %w", err)
	}
	return rdb, nil
}

// checkAPI fetches a few documents in parallel to prove the API answers
func checkAPI(ctx context.Context, client *fetch.Client) error {
	urls := []string{
		client.SearchURL(""),
		client.BaseURL() + "/posts/1",
		client.BaseURL() + "/users/1",
	}

	start := time.Now()
	docs, err := client.FetchAll(ctx, urls)
	if err != nil {
		return fmt.Errorf("api check failed: %w", err)
	}
	for i, doc := range docs {
		fmt.Printf("ok  %-50s %6d bytes\n", urls[i], len(doc))
	}
	fmt.Printf("api reachable in %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}
