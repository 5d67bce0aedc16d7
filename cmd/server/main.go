package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/albachteng/workq/internal/api"
	"github.com/albachteng/workq/internal/config"
	"github.com/albachteng/workq/internal/cron"
	"github.com/albachteng/workq/internal/jobs"
	"github.com/albachteng/workq/internal/logging"
	"github.com/albachteng/workq/internal/queue"
	"github.com/albachteng/workq/internal/shutdown"
	"github.com/albachteng/workq/internal/tracking"
)

type echoPayload struct {
	Message string `json:"message"`
}

func registerTasks(tasks *jobs.Registry, logger *slog.Logger) {
	tasks.MustRegister("echo", func(data json.RawMessage) (jobs.Task, error) {
		return jobs.NewTask("echo", func(ctx context.Context, job *jobs.Job) error {
			var p echoPayload
			if err := json.Unmarshal(job.Data, &p); err != nil {
				return err
			}
			logger.Info("echo", "job_id", job.ID(), "message", p.Message)
			return nil
		}), nil
	})

	tasks.MustRegister("sleep", func(data json.RawMessage) (jobs.Task, error) {
		return jobs.NewTask("sleep", func(ctx context.Context, job *jobs.Job) error {
			var p struct {
				Millis int64 `json:"millis"`
			}
			if err := json.Unmarshal(job.Data, &p); err != nil {
				return err
			}
			select {
			case <-time.After(time.Duration(p.Millis) * time.Millisecond):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}), nil
	})
}

func newBackend(cfg config.Config, tasks *jobs.Registry, logger *slog.Logger) (queue.Backend, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return queue.NewSQLiteBackend(cfg.SQLitePath, jobs.DefaultQueue, tasks, logger)
	case config.BackendRedis:
		return queue.NewRedisBackend(cfg.RedisAddr, cfg.RedisDB, jobs.DefaultQueue, tasks, logger)
	case config.BackendMemory:
		return queue.NewMemoryBackend(logger), nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}
}

func main() {
	cfg := config.Load()

	logCfg := logging.DefaultConfig()
	logCfg.OutputFile = cfg.LogFile
	logger := logging.New(logCfg)

	tasks := jobs.NewRegistry()
	registerTasks(tasks, logging.ForComponent(logger, "tasks"))

	backend, err := newBackend(cfg, tasks, logging.ForComponent(logger, "backend"))
	if err != nil {
		logger.Error("failed to create backend", "error", err)
		os.Exit(1)
	}

	tracker := tracking.NewTracker()

	queues := queue.NewRegistry()
	q := queue.New(jobs.DefaultQueue, backend, logging.ForComponent(logger, "queue"))
	q.SetTracker(tracker)
	q.SetConcurrency(cfg.Concurrency)
	q.SetJobTimeout(cfg.JobTimeoutSecs)
	if err := queues.Add(q); err != nil {
		logger.Error("failed to register queue", "error", err)
		os.Exit(1)
	}
	q.Work()

	scheduler := cron.NewScheduler(logging.ForComponent(logger, "cron"))
	if cfg.HeartbeatCron != "" {
		err := scheduler.Add("heartbeat", cfg.HeartbeatCron, q, func() (*jobs.Job, error) {
			task := jobs.NewTask("echo", func(ctx context.Context, job *jobs.Job) error {
				logger.Info("heartbeat", "job_id", job.ID())
				return nil
			})
			return jobs.New(task, echoPayload{Message: "heartbeat"})
		})
		if err != nil {
			logger.Error("invalid heartbeat schedule", "error", err)
			os.Exit(1)
		}
	}
	scheduler.Start()

	srv := api.NewServer(queues, tasks, tracker, logging.ForComponent(logger, "api"))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", api.HandleHealth)
	mux.HandleFunc("POST /jobs", srv.HandleEnqueue)
	mux.HandleFunc("GET /jobs", srv.HandleListJobs)
	mux.HandleFunc("GET /jobs/{id}", srv.HandleGetJob)
	mux.HandleFunc("DELETE /jobs/{id}", srv.HandleCancelJob)
	mux.HandleFunc("GET /queues", srv.HandleListQueues)

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	mgr := shutdown.NewManager(30*time.Second, logger)
	mgr.Register("http", func(ctx context.Context) error {
		return httpSrv.Shutdown(ctx)
	})
	mgr.Register("cron", func(ctx context.Context) error {
		scheduler.Stop()
		return nil
	})
	mgr.Register("queues", func(ctx context.Context) error {
		queues.StopAll()
		return nil
	})
	mgr.Register("backend", func(ctx context.Context) error {
		return backend.Close()
	})

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logger.Info("signal received, shutting down")
		mgr.Shutdown()
	}()

	logger.Info("server starting", "address", httpSrv.Addr, "backend", cfg.Backend)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	mgr.Wait()
}
