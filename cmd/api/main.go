package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"github.com/finlog/backend/internal/api/routes"
	"github.com/finlog/backend/internal/config"
	"github.com/finlog/backend/internal/database"
	"github.com/finlog/backend/internal/logger"
	"github.com/finlog/backend/internal/metrics"
	"github.com/finlog/backend/internal/scheduler"
	"github.com/finlog/backend/internal/server"
	"github.com/finlog/backend/internal/services"
	"github.com/finlog/backend/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Log to both stdout and a rotated file under the data dir
	logDir := filepath.Join(cfg.DataDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		log.Fatalf("create log dir: %v", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "finlog.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	out := io.MultiWriter(os.Stdout, rotator)
	log.SetOutput(out)
	logger.Init(cfg.Debug, out)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}

	notifier := services.NewNotificationService(cfg.Notify.URLs)

	// Handle CLI commands
	if len(os.Args) > 1 && os.Args[1] == "notify-test" {
		if !notifier.Enabled() {
			log.Fatalf("no notification destinations configured (set %s_NOTIFY_URLS)", config.EnvPrefix)
		}
		failed := false
		for i, url := range cfg.Notify.URLs {
			if err := notifier.TestDestination(url); err != nil {
				log.Printf("notification destination #%d failed: %v", i+1, err)
				failed = true
			}
		}
		if failed {
			os.Exit(1)
		}
		log.Printf("Test notification sent to %d destination(s)", len(cfg.Notify.URLs))
		return
	}

	if len(os.Args) > 1 && os.Args[1] == "reset-password" {
		if len(os.Args) != 4 {
			log.Fatalf("Usage: %s reset-password <email> <new-password>", os.Args[0])
		}
		if err := database.Migrate(db); err != nil {
			log.Fatalf("migrate database: %v", err)
		}
		if err := services.NewAuthService(db, cfg).ResetPassword(os.Args[2], os.Args[3]); err != nil {
			log.Fatalf("reset password: %v", err)
		}
		log.Printf("Password updated successfully for user %s", os.Args[2])
		return
	}

	logger.Log().WithField("version", version.Full()).Infof("starting %s backend", version.Name)

	if err := run(cfg, db, notifier); err != nil {
		logger.Log().WithError(err).Fatal("server stopped")
	}
}

func run(cfg config.Config, db *gorm.DB, notifier *services.NotificationService) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	srv, err := server.New(db, cfg, registry, notifier)
	if err != nil {
		return err
	}

	history := services.NewHistoryService(db, cfg.Location(), routes.RetentionPolicy(cfg.Ledger))
	sched, err := scheduler.New(cfg.Ledger.PruneSchedule, history, notifier)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		sched.Start()
		<-ctx.Done()
		sched.Stop()
		return nil
	})

	err = g.Wait()
	// Flush notifications once the server and the scheduler have stopped.
	notifier.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Log().Info("shutdown complete")
	return nil
}
