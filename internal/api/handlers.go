package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/albachteng/workq/internal/jobs"
	"github.com/albachteng/workq/internal/tracking"
)

func (s *Server) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	factory, err := s.Tasks.Get(req.Kind)
	if err != nil {
		http.Error(w, fmt.Sprintf("unknown job kind: %s", req.Kind), http.StatusBadRequest)
		return
	}

	task, err := factory(req.Payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	queueName := req.Queue
	if queueName == "" {
		queueName = jobs.DefaultQueue
	}

	q, exists := s.Queues.Lookup(queueName)
	if !exists {
		http.Error(w, fmt.Sprintf("unknown queue: %s", queueName), http.StatusBadRequest)
		return
	}

	job, err := jobs.New(task, req.Payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if req.MaxAttempts > 0 {
		job.MaxAttempts = req.MaxAttempts
	}
	if req.RetryWaitMS > 0 {
		job.RetryWait = req.RetryWaitMS
	}
	if req.DelayMS > 0 {
		job.Delay(time.Duration(req.DelayMS) * time.Millisecond)
	}

	if err := q.Insert(r.Context(), job); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.Logger.Info("job enqueued",
		"job_id", job.ID(),
		"job_kind", job.Kind(),
		"queue", queueName)

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(EnqueueResponse{
		JobID:  job.ID(),
		Status: "enqueued",
	})
}

func (s *Server) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := jobs.JobID(r.PathValue("id"))

	info, exists := s.Tracker.Get(jobID)
	if !exists {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(info)
}

func (s *Server) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")

	var jobList []*tracking.JobInfo
	if statusFilter != "" {
		jobList = s.Tracker.ListByStatus(tracking.JobStatus(statusFilter))
	} else {
		jobList = s.Tracker.List()
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(jobList)
}

func (s *Server) HandleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := jobs.JobID(r.PathValue("id"))

	info, exists := s.Tracker.Get(jobID)
	if !exists {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	if err := info.Job().Cancel(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.Logger.Info("job cancelled via api", "job_id", jobID)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
}

func (s *Server) HandleListQueues(w http.ResponseWriter, r *http.Request) {
	names := s.Queues.Names()

	list := make([]QueueInfo, 0, len(names))
	for _, name := range names {
		q, exists := s.Queues.Lookup(name)
		if !exists {
			continue
		}
		list = append(list, QueueInfo{
			Name:        name,
			Concurrency: q.Concurrency(),
		})
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(list)
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK\n")
}
