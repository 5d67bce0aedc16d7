package api

import (
	"log/slog"

	"github.com/albachteng/workq/internal/jobs"
	"github.com/albachteng/workq/internal/queue"
	"github.com/albachteng/workq/internal/tracking"
)

type Server struct {
	Queues  *queue.Registry
	Tasks   *jobs.Registry
	Tracker *tracking.Tracker
	Logger  *slog.Logger
}

func NewServer(queues *queue.Registry, tasks *jobs.Registry, tracker *tracking.Tracker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Queues:  queues,
		Tasks:   tasks,
		Tracker: tracker,
		Logger:  logger,
	}
}
