package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/arturoeanton/go-codebase-assistant/internal/domain"
	"github.com/arturoeanton/go-codebase-assistant/internal/port"
	"github.com/arturoeanton/go-codebase-assistant/internal/service"
	"github.com/mark3labs/mcp-go/mcp"
)

// IndexTool handles the index_codebase tool.
type IndexTool struct {
	indexer *service.Indexer
}

// NewIndexTool creates an IndexTool.
func NewIndexTool(indexer *service.Indexer) *IndexTool {
	return &IndexTool{indexer: indexer}
}

// Definition returns the MCP tool definition for index_codebase.
func (t *IndexTool) Definition() mcp.Tool {
	return mcp.NewTool("index_codebase",
		mcp.WithDescription("Index a local project directory or a remote git repository so it can be queried. Replaces the current index."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Local directory path or git URL (https://github.com/owner/repo)"),
		),
		mcp.WithString("github_token",
			mcp.Description("Access token for private https repositories"),
		),
	)
}

// Handle processes the index_codebase tool call.
func (t *IndexTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return mcp.NewToolResultError("'path' is required"), nil
	}
	status, err := t.indexer.Index(ctx, path, req.GetString("github_token", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("indexing failed: %v", err)), nil
	}
	return mcp.NewToolResultJSON(status)
}

// StatusTool handles the index_status tool.
type StatusTool struct {
	indexer *service.Indexer
}

// NewStatusTool creates a StatusTool.
func NewStatusTool(indexer *service.Indexer) *StatusTool {
	return &StatusTool{indexer: indexer}
}

// Definition returns the MCP tool definition for index_status.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("index_status",
		mcp.WithDescription("Report which project is indexed and how many files and chunks it has."),
	)
}

// Handle processes the index_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(t.indexer.Status())
}

// ClearTool handles the clear_index tool.
type ClearTool struct {
	indexer *service.Indexer
}

// NewClearTool creates a ClearTool.
func NewClearTool(indexer *service.Indexer) *ClearTool {
	return &ClearTool{indexer: indexer}
}

// Definition returns the MCP tool definition for clear_index.
func (t *ClearTool) Definition() mcp.Tool {
	return mcp.NewTool("clear_index",
		mcp.WithDescription("Drop the current index, in memory and on disk."),
	)
}

// Handle processes the clear_index tool call.
func (t *ClearTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.indexer.Clear(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("clear failed: %v", err)), nil
	}
	return mcp.NewToolResultText("Index cleared"), nil
}

// QueryTool handles the query_codebase tool.
type QueryTool struct {
	assistant *service.Assistant
}

// NewQueryTool creates a QueryTool.
func NewQueryTool(assistant *service.Assistant) *QueryTool {
	return &QueryTool{assistant: assistant}
}

// Definition returns the MCP tool definition for query_codebase.
func (t *QueryTool) Definition() mcp.Tool {
	return mcp.NewTool("query_codebase",
		mcp.WithDescription("Answer a question about the indexed project, strictly from its code. Returns the answer and the source files used."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Question about the indexed code"),
		),
		mcp.WithArray("chat_history",
			mcp.Description("Earlier turns as {role, content} objects, role human or assistant"),
		),
	)
}

// Handle processes the query_codebase tool call.
func (t *QueryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question := req.GetString("question", "")
	if question == "" {
		return mcp.NewToolResultError("'question' is required"), nil
	}
	history, err := chatHistory(req.GetArguments()["chat_history"])
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid chat_history: %v", err)), nil
	}

	answer, err := t.assistant.Query(ctx, question, history)
	if errors.Is(err, port.ErrNotIndexed) {
		return mcp.NewToolResultError("No codebase indexed yet. Call index_codebase first."), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return mcp.NewToolResultJSON(answer)
}

func chatHistory(raw any) ([]domain.ConversationTurn, error) {
	if raw == nil {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var turns []domain.ConversationTurn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, err
	}
	return turns, nil
}

// GenerateTool handles the generate_project tool.
type GenerateTool struct {
	generator *service.Generator
}

// NewGenerateTool creates a GenerateTool.
func NewGenerateTool(generator *service.Generator) *GenerateTool {
	return &GenerateTool{generator: generator}
}

// Definition returns the MCP tool definition for generate_project.
func (t *GenerateTool) Definition() mcp.Tool {
	return mcp.NewTool("generate_project",
		mcp.WithDescription("Plan and write a new project from a description, then index it. Returns a summary of the files written."),
		mcp.WithString("description",
			mcp.Required(),
			mcp.Description("What the project should do and which stack to use"),
		),
		mcp.WithString("output_dir",
			mcp.Required(),
			mcp.Description("Directory the project folder is created in"),
		),
	)
}

// GenerationSummary is the result of generate_project.
type GenerationSummary struct {
	ProjectName  string            `json:"project_name"`
	ProjectPath  string            `json:"project_path"`
	TechStack    string            `json:"tech_stack,omitempty"`
	FilesCreated []string          `json:"files_created"`
	FailedFiles  map[string]string `json:"failed_files,omitempty"`
	Indexed      bool              `json:"indexed"`
	ChunkCount   int               `json:"chunk_count,omitempty"`
	IndexError   string            `json:"index_error,omitempty"`
}

// Handle processes the generate_project tool call.
func (t *GenerateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description := req.GetString("description", "")
	outputDir := req.GetString("output_dir", "")
	if description == "" || outputDir == "" {
		return mcp.NewToolResultError("'description' and 'output_dir' are required"), nil
	}

	summary, err := Summarize(t.generator.Generate(ctx, description, outputDir))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("generation failed: %v", err)), nil
	}
	return mcp.NewToolResultJSON(summary)
}

// Summarize drains a generation event stream into a summary.
// An error event, or a stream that ends before done, is returned as an error.
func Summarize(events <-chan domain.Event) (GenerationSummary, error) {
	var (
		s    = GenerationSummary{FilesCreated: []string{}}
		done bool
		fail error
	)
	for e := range events {
		switch e.Type {
		case domain.EventPlan:
			s.ProjectName, s.ProjectPath, s.TechStack = e.ProjectName, e.ProjectPath, e.TechStack
		case domain.EventFileError:
			if s.FailedFiles == nil {
				s.FailedFiles = map[string]string{}
			}
			s.FailedFiles[e.File] = e.Error
		case domain.EventDone:
			done = true
			if e.FilesCreated != nil {
				s.FilesCreated = e.FilesCreated
			}
		case domain.EventIndexed:
			s.Indexed, s.ChunkCount = true, e.ChunkCount
		case domain.EventIndexError:
			s.IndexError = e.Message
		case domain.EventError:
			fail = errors.New(e.Message)
		}
	}
	if fail != nil {
		return s, fail
	}
	if !done {
		return s, errors.New("generation stopped before completion")
	}
	return s, nil
}
