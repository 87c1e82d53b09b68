package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/vk-dump-extractor/pkg/config"
)

const (
	serverName    = "vk-dump-extractor"
	serverVersion = "1.0.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Logger     *logrus.Logger
}

// Server exposes the extraction pipeline as MCP tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	jobManager *JobManager
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		log:        cfg.Logger.WithField("component", "mcp"),
		jobManager: NewJobManager(),
	}

	s.registerTools()

	return s, nil
}

// sourceFlagOptions are the per-call overrides of the auto-mode include flags
func sourceFlagOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithBoolean("attachment_girls", mcp.Description("Include photo lists under the attachment girls directory")),
		mcp.WithBoolean("attachment_boys", mcp.Description("Include photo lists under the attachment boys directory")),
		mcp.WithBoolean("chat_girls", mcp.Description("Include dialogs under the dialog girls directory")),
		mcp.WithBoolean("chat_boys", mcp.Description("Include dialogs under the dialog boys directory")),
	}
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	// classify_document - Classify one export file
	classifyTool := mcp.NewTool("classify_document",
		mcp.WithDescription("Classify an exported VK .htm/.html file as a photo index or a dialog"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the export file"),
		),
		mcp.WithBoolean("check_content",
			mcp.Description("Fall back to the <title> when the file name is inconclusive (default: true)"),
		),
	)
	s.mcpServer.AddTool(classifyTool, s.handleClassifyDocument)

	// list_documents - Resolve a target into documents
	listOpts := append([]mcp.ToolOption{
		mcp.WithDescription("List the documents a target resolves to: one file in manual mode, or every matching file of an archive directory"),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("Export file or archive root directory"),
		),
	}, sourceFlagOptions()...)
	s.mcpServer.AddTool(mcp.NewTool("list_documents", listOpts...), s.handleListDocuments)

	// extract_links - Build the deduplicated batch without downloading
	extractOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Extract image links from a target and return the deduplicated, validated descriptors without downloading"),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("Export file or archive root directory"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of descriptors to return (default: 100, max: 1000)"),
		),
	}, sourceFlagOptions()...)
	s.mcpServer.AddTool(mcp.NewTool("extract_links", extractOpts...), s.handleExtractLinks)

	// download_images - Start a background download
	downloadOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Start a background download of every image referenced by a target. Returns immediately with a job ID."),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("Export file or archive root directory"),
		),
	}, sourceFlagOptions()...)
	s.mcpServer.AddTool(mcp.NewTool("download_images", downloadOpts...), s.handleDownloadImages)

	// get_job_status - Check status of a download job
	getJobStatusTool := mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status and counters of a download job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by download_images"),
		),
	)
	s.mcpServer.AddTool(getJobStatusTool, s.handleGetJobStatus)

	// cancel_job - Cancel a download job
	cancelJobTool := mcp.NewTool("cancel_job",
		mcp.WithDescription("Cancel a running download job; in-flight images end as failed"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by download_images"),
		),
	)
	s.mcpServer.AddTool(cancelJobTool, s.handleCancelJob)

	s.log.Infof("Registered %d MCP tools", 6)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running jobs
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	return nil
}
