package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/vk-dump-extractor/pkg/models"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/orchestrate"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/utils"
)

const (
	defaultMaxDescriptors = 100
	maxMaxDescriptors     = 1000
)

// orchestratorFor builds an orchestrator with the call's source flag overrides applied
func (s *Server) orchestratorFor(request mcp.CallToolRequest, opts orchestrate.Options, log *logrus.Entry) (*orchestrate.Orchestrator, error) {
	appCfg := *s.cfg.AppConfig
	src := &appCfg.Sources
	src.AttachmentGirls = request.GetBool("attachment_girls", src.AttachmentGirls)
	src.AttachmentBoys = request.GetBool("attachment_boys", src.AttachmentBoys)
	src.ChatGirls = request.GetBool("chat_girls", src.ChatGirls)
	src.ChatBoys = request.GetBool("chat_boys", src.ChatBoys)
	return orchestrate.NewOrchestrator(&appCfg, opts, log)
}

// toolError reports err together with its category
func toolError(action string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v (category: %s)", action, err, utils.CategorizeError(err)))
}

// handleClassifyDocument handles the classify_document tool
func (s *Server) handleClassifyDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "")
	if path == "" {
		return mcp.NewToolResultError("path parameter is required"), nil
	}
	checkContent := request.GetBool("check_content", true)

	o, err := s.orchestratorFor(request, orchestrate.Options{}, s.log)
	if err != nil {
		return toolError("failed to build classifier", err), nil
	}
	classifier := o.Classifier()

	method := "name"
	class := classifier.ClassifyName(path)
	if class == models.ClassUnknown && checkContent {
		method = "title"
		class, err = classifier.Classify(path, true)
		if err != nil {
			return toolError("classification failed", err), nil
		}
	}

	result := map[string]interface{}{
		"path":   path,
		"class":  class.String(),
		"known":  class != models.ClassUnknown,
		"method": method,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListDocuments handles the list_documents tool
func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target := request.GetString("target", "")
	if target == "" {
		return mcp.NewToolResultError("target parameter is required"), nil
	}

	o, err := s.orchestratorFor(request, orchestrate.Options{}, s.log)
	if err != nil {
		return toolError("failed to build pipeline", err), nil
	}
	mode, docs, err := o.ResolveDocuments(target)
	if err != nil {
		return toolError("failed to resolve target", err), nil
	}

	result := map[string]interface{}{
		"target":          target,
		"mode":            mode,
		"documents":       docs,
		"total_documents": len(docs),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleExtractLinks handles the extract_links tool
func (s *Server) handleExtractLinks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target := request.GetString("target", "")
	if target == "" {
		return mcp.NewToolResultError("target parameter is required"), nil
	}
	maxResults := request.GetInt("max_results", defaultMaxDescriptors)
	if maxResults <= 0 {
		maxResults = defaultMaxDescriptors
	}
	if maxResults > maxMaxDescriptors {
		maxResults = maxMaxDescriptors
	}

	o, err := s.orchestratorFor(request, orchestrate.Options{}, s.log)
	if err != nil {
		return toolError("failed to build pipeline", err), nil
	}
	mode, docs, err := o.ResolveDocuments(target)
	if err != nil {
		return toolError("failed to resolve target", err), nil
	}
	collected, err := o.CollectBatch(ctx, docs)
	if err != nil {
		return toolError("extraction interrupted", err), nil
	}

	descriptors := collected.Batch
	truncated := false
	if len(descriptors) > maxResults {
		descriptors = descriptors[:maxResults]
		truncated = true
	}

	result := map[string]interface{}{
		"target":          target,
		"mode":            mode,
		"documents":       len(docs),
		"document_errors": collected.DocErrors,
		"urls_collected":  collected.Collected,
		"invalid_urls":    collected.Invalid,
		"duplicates":      collected.Duplicates,
		"valid_images":    len(collected.Batch),
		"descriptors":     descriptors,
		"truncated":       truncated,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleDownloadImages handles the download_images tool
func (s *Server) handleDownloadImages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target := request.GetString("target", "")
	if target == "" {
		return mcp.NewToolResultError("target parameter is required"), nil
	}
	if abs, err := filepath.Abs(target); err == nil {
		target = abs
	}

	if existingJob := s.jobManager.GetJobByTarget(target); existingJob != nil {
		result := map[string]interface{}{
			"status":  "already_running",
			"message": "A download is already in progress for this target",
			"job_id":  existingJob.ID,
			"target":  target,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	// Resolve up front so fatal target errors are reported synchronously
	resolver, err := s.orchestratorFor(request, orchestrate.Options{}, s.log)
	if err != nil {
		return toolError("failed to build pipeline", err), nil
	}
	mode, docs, err := resolver.ResolveDocuments(target)
	if err != nil {
		return toolError("failed to resolve target", err), nil
	}

	job, err := s.jobManager.CreateJob(target)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create job: %v", err)), nil
	}

	jobLog := s.log.WithFields(logrus.Fields{"job_id": job.ID, "target": target})
	runner, err := s.orchestratorFor(request, orchestrate.Options{
		OnOutcome: func(o models.DownloadOutcome) { s.jobManager.RecordOutcome(job.ID, o.Kind) },
	}, jobLog)
	if err != nil {
		s.jobManager.UpdateStatus(job.ID, JobStatusFailed, err.Error())
		return toolError("failed to build pipeline", err), nil
	}

	go s.runDownloadJob(job.ID, runner, docs, jobLog)

	result := map[string]interface{}{
		"status":    "started",
		"message":   "Download started successfully",
		"job_id":    job.ID,
		"target":    target,
		"mode":      mode,
		"documents": len(docs),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// runDownloadJob collects and downloads the batch for a job in the background
func (s *Server) runDownloadJob(jobID string, o *orchestrate.Orchestrator, docs []models.Document, log *logrus.Entry) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{"panic_info": r, "stack_trace": string(debug.Stack())}).Error("PANIC Recovered in download job")
			s.jobManager.UpdateStatus(jobID, JobStatusFailed, fmt.Sprintf("panic: %v", r))
		}
	}()

	s.jobManager.UpdateStatus(jobID, JobStatusRunning, "")
	jobCtx := s.jobManager.GetContext(jobID)

	collected, err := o.CollectBatch(jobCtx, docs)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.jobManager.UpdateStatus(jobID, JobStatusCancelled, "")
		} else {
			s.jobManager.UpdateStatus(jobID, JobStatusFailed, err.Error())
		}
		return
	}
	s.jobManager.SetTotal(jobID, len(collected.Batch))

	summary := o.Download(jobCtx, collected.Batch)
	log.Infof("Job finished: %d skipped, %d downloaded, %d failed in %v",
		summary.Skipped, summary.Downloaded, summary.Failed, summary.Duration)

	if jobCtx.Err() != nil {
		s.jobManager.UpdateStatus(jobID, JobStatusCancelled, "")
		return
	}
	s.jobManager.UpdateStatus(jobID, JobStatusCompleted, "")
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job := s.jobManager.GetJob(jobID)
	if job == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":       job.ID,
		"target":       job.Target,
		"status":       job.Status,
		"started_at":   job.StartedAt.Format(time.RFC3339),
		"images_total": job.ImagesTotal,
		"skipped":      job.Skipped,
		"downloaded":   job.Downloaded,
		"failed":       job.Failed,
	}

	if job.ImagesTotal > 0 {
		done := job.Skipped + job.Downloaded + job.Failed
		result["progress_percent"] = float64(done) * 100 / float64(job.ImagesTotal)
	}

	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}

	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCancelJob handles the cancel_job tool
func (s *Server) handleCancelJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	if s.jobManager.GetJob(jobID) == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	if !s.jobManager.CancelJob(jobID) {
		job := s.jobManager.GetJob(jobID)
		result := map[string]interface{}{
			"status":     "not_cancellable",
			"job_id":     jobID,
			"job_status": job.Status,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	result := map[string]interface{}{
		"status": "cancelled",
		"job_id": jobID,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
