package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sriram-PR/vk-dump-extractor/pkg/models"
)

// JobStatus represents the current state of a download job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job represents a background download job for one target
type Job struct {
	ID           string    `json:"id"`
	Target       string    `json:"target"`
	Status       JobStatus `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at,omitempty"`
	ImagesTotal  int       `json:"images_total"`
	Skipped      int       `json:"skipped"`
	Downloaded   int       `json:"downloaded"`
	Failed       int       `json:"failed"`
	ErrorMessage string    `json:"error_message,omitempty"`

	ctx    context.Context
	cancel context.CancelFunc
}

func (j *Job) active() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}

// JobManager manages background download jobs
type JobManager struct {
	jobs     map[string]*Job
	mu       sync.RWMutex
	byTarget map[string]string // target -> jobID for active jobs
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:     make(map[string]*Job),
		byTarget: make(map[string]string),
	}
}

// CreateJob creates a job for target, or returns the active one already downloading it
func (m *JobManager) CreateJob(target string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingJobID, exists := m.byTarget[target]; exists {
		if existing := m.jobs[existingJobID]; existing != nil && existing.active() {
			return existing, nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:        uuid.New().String(),
		Target:    target,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	m.jobs[job.ID] = job
	m.byTarget[target] = job.ID
	return job, nil
}

// GetJob returns a snapshot of the job, or nil if unknown
func (m *JobManager) GetJob(jobID string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return nil
	}
	snapshot := *job
	return &snapshot
}

// GetJobByTarget returns a snapshot of the active job for target, or nil
func (m *JobManager) GetJobByTarget(target string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if jobID, exists := m.byTarget[target]; exists {
		if job := m.jobs[jobID]; job != nil {
			snapshot := *job
			return &snapshot
		}
	}
	return nil
}

// IsRunning reports whether an active job exists for target
func (m *JobManager) IsRunning(target string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if jobID, exists := m.byTarget[target]; exists {
		job := m.jobs[jobID]
		return job != nil && job.active()
	}
	return false
}

// UpdateStatus moves a job to status. A cancelled job keeps its status.
func (m *JobManager) UpdateStatus(jobID string, status JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists || job.Status == JobStatusCancelled {
		return
	}
	job.Status = status
	if status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled {
		job.CompletedAt = time.Now()
		delete(m.byTarget, job.Target)
		job.cancel()
	}
	if errorMsg != "" {
		job.ErrorMessage = errorMsg
	}
}

// SetTotal records the number of images admitted for download
func (m *JobManager) SetTotal(jobID string, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists {
		job.ImagesTotal = total
	}
}

// RecordOutcome counts one terminal image outcome
func (m *JobManager) RecordOutcome(jobID string, kind models.OutcomeKind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return
	}
	switch kind {
	case models.OutcomeSkipped:
		job.Skipped++
	case models.OutcomeDownloaded:
		job.Downloaded++
	case models.OutcomeFailed:
		job.Failed++
	}
}

// CancelJob cancels an active job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists && job.active() {
		job.cancel()
		job.Status = JobStatusCancelled
		job.CompletedAt = time.Now()
		delete(m.byTarget, job.Target)
		return true
	}
	return false
}

// CancelAll cancels every active job
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if job.active() {
			job.cancel()
			job.Status = JobStatusCancelled
			job.CompletedAt = time.Now()
		}
	}
	m.byTarget = make(map[string]string)
}

// ListJobs returns snapshots of all jobs
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}
	return jobs
}

// GetContext returns the context a job runs under
func (m *JobManager) GetContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if job, exists := m.jobs[jobID]; exists {
		return job.ctx
	}
	return context.Background()
}
