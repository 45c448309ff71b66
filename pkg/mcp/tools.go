package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/treefind/pkg/builder"
	"github.com/Sumatoshi-tech/treefind/pkg/render"
	"github.com/Sumatoshi-tech/treefind/pkg/tree"
)

// Tool name constants.
const (
	ToolNameBuild = "tree_build"
	ToolNameFind  = "tree_find"
	ToolNameShow  = "tree_show"
)

// ErrEmptyText indicates the text parameter is empty.
var ErrEmptyText = errors.New("text parameter is required and must not be empty")

// Input types (auto-generate JSON schemas via struct tags).

// BuildInput is the input schema for the tree_build tool.
type BuildInput struct {
	Format string `json:"format,omitempty" jsonschema:"input format: auto, list or structured (default: auto)"`
	Text   string `json:"text"             jsonschema:"numbers in insertion order, or a nested value/left/right document"`
}

// FindInput is the input schema for the tree_find tool.
type FindInput struct {
	Query string `json:"query" jsonschema:"number to search for; empty or non-numeric clears the last path"`
}

// ShowInput is the input schema for the tree_show tool.
type ShowInput struct {
	IDs      bool `json:"ids,omitempty"       jsonschema:"append node IDs to the text view"`
	MaxDepth int  `json:"max_depth,omitempty" jsonschema:"levels drawn in the text view before deeper subtrees are summarized (default: 32)"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// BuildSummary is the tree_build result.
type BuildSummary struct {
	Generation string      `json:"generation"`
	Root       tree.NodeID `json:"root,omitempty"`
	Nodes      int         `json:"nodes"`
	Height     int         `json:"height"`
}

func (s *Server) handleBuild(ctx context.Context, _ *mcpsdk.CallToolRequest, input BuildInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if strings.TrimSpace(input.Text) == "" {
		return errorResult(ErrEmptyText)
	}

	format, err := builder.ParseFormat(input.Format)
	if err != nil {
		return errorResult(err)
	}

	built, err := s.session.BuildTreeAs(ctx, input.Text, format)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(BuildSummary{
		Generation: built.Generation(),
		Root:       built.Root(),
		Nodes:      built.Len(),
		Height:     built.Height(),
	})
}

func (s *Server) handleFind(ctx context.Context, _ *mcpsdk.CallToolRequest, input FindInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	result, err := s.session.FindValue(ctx, input.Query)
	if err != nil {
		return errorResult(fmt.Errorf("find: %w", err))
	}

	return jsonResult(result)
}

func (s *Server) handleShow(_ context.Context, _ *mcpsdk.CallToolRequest, input ShowInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	snap := s.session.Snapshot()

	var sb strings.Builder

	err := render.Terminal(&sb, snap, render.TerminalOptions{ShowIDs: input.IDs, MaxDepth: input.MaxDepth})
	if err != nil {
		return errorResult(fmt.Errorf("render tree: %w", err))
	}

	result, output, err := jsonResult(snap)
	if result != nil && !result.IsError {
		result.Content = append([]mcpsdk.Content{&mcpsdk.TextContent{Text: sb.String()}}, result.Content...)
	}

	return result, output, err
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
