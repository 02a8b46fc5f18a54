package vidserver

import (
	"context"

	"github.com/CorvoHisui/qa-youtube-chatbot/internal/engine"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterTools registers the video QA tools on the given MCP server:
// video_ingest, video_ask, video_history, transcript_cache_clear,
// index_clear, clear_all.
func RegisterTools(server *mcp.Server, s *Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "video_ingest",
		Description: "Fetch transcripts for one or more YouTube videos and build a fresh searchable index from them. Replaces any previously ingested batch and resets the conversation. Invalid URLs and videos without captions are skipped and reported.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input IngestInput) (*mcp.CallToolResult, IngestOutput, error) {
		out, err := s.Ingest(ctx, input)
		return nil, out, err
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "video_ask",
		Description: "Ask a question about the ingested videos. Answers come only from the video transcripts; when the videos do not cover the question the answer is an explicit refusal (kind=refused).",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, engine.Answer, error) {
		ans, err := s.Ask(ctx, input)
		return nil, ans, err
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "video_history",
		Description: "Show the conversation history of the current video session.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input HistoryInput) (*mcp.CallToolResult, HistoryOutput, error) {
		out, err := s.History(ctx, input)
		return nil, out, err
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "transcript_cache_clear",
		Description: "Delete all cached transcripts. The next ingest re-downloads them.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, ClearOutput, error) {
		out, err := s.ClearTranscriptCache(ctx)
		return nil, out, err
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_clear",
		Description: "Delete all vector indexes and end the current session. Fails with 'resource busy' while a question is being answered; retry afterwards.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, ClearOutput, error) {
		out, err := s.ClearIndexes(ctx)
		return nil, out, err
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_all",
		Description: "Clear the transcript cache and all vector indexes, ending the current session. Reports the outcome per resource.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, engine.MaintenanceReport, error) {
		out, err := s.ClearAll(ctx)
		return nil, out, err
	})
}

// ToolCount is the number of tools RegisterTools adds.
const ToolCount = 6
