// Package mcpserver exposes the orchestrator as MCP tools over stdio.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/valpere/tandem/internal/backend"
	"github.com/valpere/tandem/internal/orchestrator"
	"github.com/valpere/tandem/internal/pipeline"
)

// Tool names.
const (
	ToolCollaborativeTask = "collaborative_task"
	ToolQuickDiscussion   = "quick_discussion"
	ToolCompareApproaches = "compare_approaches"
	ToolDelegateTask      = "delegate_task"
	ToolStats             = "get_collaboration_stats"
	ToolDirectA           = "execute_a_direct"
	ToolDirectB           = "execute_b_direct"
)

// CollaborationResponse is the payload returned by collaborative_task.
type CollaborationResponse struct {
	RunID                string       `json:"run_id"`
	Task                 string       `json:"task"`
	FinalResult          string       `json:"final_result"`
	QualityScore         float64      `json:"quality_score"`
	TotalIterations      int          `json:"total_iterations"`
	Participants         []backend.ID `json:"participants"`
	WorkflowSummary      []string     `json:"workflow_summary"`
	CollaborationSummary string       `json:"collaboration_summary"`
	Status               string       `json:"status"`
	Error                string       `json:"error,omitempty"`
}

func collaborationResponse(run *pipeline.Run) CollaborationResponse {
	return CollaborationResponse{
		RunID:                run.ID,
		Task:                 run.Task,
		FinalResult:          run.FinalResult,
		QualityScore:         run.QualityScore,
		TotalIterations:      run.Iterations,
		Participants:         run.Participants,
		WorkflowSummary:      pipeline.WorkflowSummary(run),
		CollaborationSummary: pipeline.CollaborationSummary(run),
		Status:               string(run.Status),
		Error:                run.Error,
	}
}

// Server binds MCP tool handlers to an orchestrator.
type Server struct {
	orch   *orchestrator.Orchestrator
	mcp    *server.MCPServer
	logger *slog.Logger
}

// New creates the MCP server and registers every tool.
func New(orch *orchestrator.Orchestrator, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{orch: orch, logger: logger}

	s.mcp = server.NewMCPServer(
		"tandem",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions()),
	)

	a, b := orch.Backends()

	s.mcp.AddTool(mcp.NewTool(ToolCollaborativeTask,
		mcp.WithDescription(fmt.Sprintf("Run the full six-stage collaboration between %s and %s and return the final result with a quality score.", a.ID(), b.ID())),
		mcp.WithString("task", mcp.Required(), mcp.Description("The task to carry out")),
	), s.handleCollaborativeTask)

	s.mcp.AddTool(mcp.NewTool(ToolQuickDiscussion,
		mcp.WithDescription("Ask both backends for a short opinion on a topic in one parallel round."),
		mcp.WithString("topic", mcp.Required(), mcp.Description("The topic to discuss")),
	), s.handleQuickDiscussion)

	s.mcp.AddTool(mcp.NewTool(ToolCompareApproaches,
		mcp.WithDescription("Collect an approach from each backend and a comparison of the two."),
		mcp.WithString("task", mcp.Required(), mcp.Description("The task whose approaches are compared")),
	), s.handleCompareApproaches)

	s.mcp.AddTool(mcp.NewTool(ToolDelegateTask,
		mcp.WithDescription("Let the advisor pick the better-suited backend and have it perform the task."),
		mcp.WithString("task", mcp.Required(), mcp.Description("The task to delegate")),
	), s.handleDelegate)

	s.mcp.AddTool(mcp.NewTool(ToolStats,
		mcp.WithDescription("Summary statistics over the completed collaborations of this session."),
	), s.handleStats)

	s.mcp.AddTool(mcp.NewTool(ToolDirectA,
		mcp.WithDescription(fmt.Sprintf("Send a prompt directly to %s.", a.ID())),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("The prompt to send")),
	), s.directHandler(a.ID()))

	s.mcp.AddTool(mcp.NewTool(ToolDirectB,
		mcp.WithDescription(fmt.Sprintf("Send a prompt directly to %s.", b.ID())),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("The prompt to send")),
	), s.directHandler(b.ID()))

	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves MCP requests on stdin/stdout until the stream closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleCollaborativeTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task, err := req.RequireString("task")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	run, err := s.orch.RunCollaboration(ctx, task)
	if err != nil {
		s.logger.Warn("collaborative task failed", "error", err)
		if run == nil {
			return toolError(err), nil
		}
		// A failed run still reports how far it got.
		res, encErr := jsonResult(collaborationResponse(run))
		if encErr != nil {
			return nil, encErr
		}
		res.IsError = true
		return res, nil
	}

	return jsonResult(collaborationResponse(run))
}

func (s *Server) handleQuickDiscussion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic, err := req.RequireString("topic")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.orch.QuickDiscussion(ctx, topic)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(d)
}

func (s *Server) handleCompareApproaches(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task, err := req.RequireString("task")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.orch.CompareApproaches(ctx, task)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(c)
}

func (s *Server) handleDelegate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task, err := req.RequireString("task")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.orch.Delegate(ctx, task)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(d)
}

func (s *Server) handleStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.orch.Statistics(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(stats)
}

func (s *Server) directHandler(id backend.ID) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := req.RequireString("prompt")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		res, err := s.orch.Direct(ctx, id, prompt)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(res)
	}
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError("ERROR: " + err.Error())
}

// jsonResult renders v as indented JSON without HTML escaping.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return mcp.NewToolResultText(string(bytes.TrimRight(buf.Bytes(), "\n"))), nil
}

func instructions() string {
	return `tandem coordinates two language models through a fixed collaboration:
discussion, draft, peer review, improvement, final review and scoring.

Use collaborative_task for work that benefits from review and refinement.
Use quick_discussion or compare_approaches for cheap opinions.
Use delegate_task to hand a task to the better-suited model alone.`
}
