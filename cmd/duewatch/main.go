package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"duewatch/internal/auth"
	"duewatch/internal/config"
	"duewatch/internal/db"
	"duewatch/internal/dispatch"
	httpx "duewatch/internal/http"
	"duewatch/internal/metrics"
	"duewatch/internal/obligation"
	"duewatch/internal/queue"
	"duewatch/internal/recipient"
	"duewatch/internal/reminder"
)

func main() {
	cfg, _ := config.Load()

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		log.Fatal(err)
	}

	bus := queue.NewBus()
	repo := &queue.Repo{DB: gdb, Bus: bus}

	store := &obligation.Store{DB: gdb}
	transport := &reminder.LogTransport{DB: gdb}

	engine := metrics.NewEngine(repo, metrics.LogSink{})
	engine.SetLogStoreProbe(transport.Ping)

	processor := &reminder.Processor{
		Obligations:       store,
		Resolver:          &recipient.Resolver{Directory: store},
		Queue:             repo,
		Counters:          engine,
		Reporter:          engine,
		WarningDays:       cfg.WarningDays,
		MaxAttempts:       cfg.MaxAttempts,
		CorporateStatuses: cfg.CorporateStatuses,
		CoverageStatuses:  cfg.CoverageStatuses,
	}
	notifier := &reminder.Notifier{Transport: transport, Counters: engine}

	registry := dispatch.NewRegistry()
	reminder.Register(registry, processor, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	// Metrics engine consumes every lifecycle event.
	events := bus.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		engine.Run(ctx, events)
	}()

	// One worker pool per queue.
	for _, q := range []string{reminder.QueueScans, reminder.QueueNotifications} {
		engine.RegisterQueue(q)
		engine.RegisterWorker()

		w := &queue.Worker{
			ID:          q + "-" + uuid.NewString()[:8],
			Queue:       q,
			Repo:        repo,
			Dispatcher:  registry,
			Bus:         bus,
			Concurrency: cfg.Concurrency,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}

	// Repeating scan triggers.
	scheduler := queue.NewScheduler(repo)
	scanOpts := queue.Options{Attempts: cfg.MaxAttempts}
	if err := scheduler.Repeat(reminder.QueueScans, reminder.JobScanCorporate, cfg.CorporateCron, struct{}{}, scanOpts); err != nil {
		log.Fatal(err)
	}
	if err := scheduler.Repeat(reminder.QueueScans, reminder.JobScanCoverage, cfg.CoverageCron, struct{}{}, scanOpts); err != nil {
		log.Fatal(err)
	}
	scheduler.Start()

	r := httpx.NewRouter(cfg, gdb, auth.NewJWT(cfg.JWTSecret), engine, processor)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on %s\n", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	scheduler.Stop()
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
