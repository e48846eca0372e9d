package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/pharosdir/pharos"
	"github.com/pharosdir/pharos/internal/promexporter"
	"github.com/pharosdir/pharos/internal/pulse"
)

const exporterInterval = 15 * time.Second

func main() {
	if len(os.Args) > 2 {
		log.Fatal("invalid args")
	}
	confPath := ""
	if len(os.Args) == 2 {
		confPath = os.Args[1]
	}
	var conf pulse.Config
	if err := loadConfig(confPath, &conf); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	logLevel := parseLogLevel(conf.Log.Level)
	var logger *slog.Logger
	switch conf.Log.Type {
	case "json":
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		}))
	default:
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		}))
	}

	logger.Info("starting pharos-pulse agent", "servers", conf.Servers, "interval", time.Duration(conf.Interval).String())

	client, err := pharos.NewClient(pharos.ServersFromAddr(conf.Servers...), pharos.Config{
		Identity: conf.Identity,
		Signer:   &pharos.SSHKeySigner{Path: conf.KeyPath},
	})
	if err != nil {
		logger.Error(fmt.Errorf("create client: %w", err).Error())
		os.Exit(1)
	}
	defer client.Close()

	registry := prometheus.NewRegistry()
	agent := &pulse.Agent{
		Directory: client,
		Interval:  time.Duration(conf.Interval),
		Logger:    logger,
		Metrics:   pulse.NewBeatMetrics(registry),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return agent.Run(ctx)
	})

	if conf.Metrics.Addr != "" {
		exporter := promexporter.New(client, registry)
		g.Go(func() error {
			exporter.Run(ctx, exporterInterval)
			return nil
		})

		mux := http.NewServeMux()
		mux.Handle(conf.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: conf.Metrics.Addr, Handler: mux}

		g.Go(func() error {
			logger.Info("serving metrics", "addr", conf.Metrics.Addr, "path", conf.Metrics.Path)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Errorf("run: %w", err).Error())
		os.Exit(1)
	}
	logger.Info("pharos-pulse stopped")
}

func parseLogLevel(name string) slog.Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadConfig(filePath string, cfg *pulse.Config) error {
	paths := []string{}

	if filePath == "" {
		paths = append(paths, "./pulse.yaml", "conf/pulse.yaml", "/etc/pharos/pulse.yaml")
	} else {
		paths = append(paths, filePath)
	}

	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			if filePath != "" {
				return fmt.Errorf("open config: %w", err)
			}
			continue
		}
		defer f.Close()
		log.Printf("found config file in: %s\n", p)
		data, err := io.ReadAll(f)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("unmarshal config: %w", err)
		}

		cfg.SetDefaults()
		return nil
	}

	// The agent runs fine on defaults alone.
	cfg.SetDefaults()
	return nil
}
