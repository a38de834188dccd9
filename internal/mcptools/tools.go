// Package mcptools exposes the sync engine's filesystem side to an
// MCP-speaking agent, adapted from a workspace-manager tool registry
// onto the canvas workspace: every mutating tool goes through
// watch.Watcher so an agent's writes mark the same ignore set the
// reverse path already honors, keeping the agent indistinguishable
// from a human editing the folder directly.
package mcptools

import (
	"context"
	"fmt"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"canvas-sync/internal/history"
	syncpkg "canvas-sync/internal/sync"
	"canvas-sync/internal/watch"
)

var toolNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func newTool(name, description string) *sdkmcp.Tool {
	if !toolNameRegex.MatchString(name) {
		panic(fmt.Errorf("mcptools: invalid tool name: %s", name))
	}
	return &sdkmcp.Tool{Name: name, Description: description}
}

// WriteTextRequest is write_text_shape's input.
type WriteTextRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}
type WriteTextResponse struct {
	Path         string `json:"path"`
	BytesWritten int    `json:"bytesWritten"`
}

type CreateFrameRequest struct {
	Path string `json:"path"`
}
type CreateFrameResponse struct {
	Path string `json:"path"`
}

type MoveRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}
type MoveResponse struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

type DeleteRequest struct {
	Path string `json:"path"`
}
type DeleteResponse struct {
	Path    string `json:"path"`
	Deleted bool   `json:"deleted"`
}

type SearchRequest struct {
	Pattern string `json:"pattern"`
}
type SearchResponse struct {
	Matches []string `json:"matches"`
}

type ListItemsResponse struct {
	Items []ItemInfo `json:"items"`
}
type ItemInfo struct {
	ShapeID string `json:"shapeId"`
	Kind    string `json:"kind"`
	Path    string `json:"path,omitempty"`
	Name    string `json:"name"`
}

type OrganizeResponse struct {
	Organized bool `json:"organized"`
}

type HistoryRequest struct {
	Limit int `json:"limit"`
}
type HistoryResponse struct {
	EventsJSON string `json:"eventsJson"`
}

// Build registers every agent-facing tool on server, delegating
// mutations to w (so they go through the ignore-set discipline) and
// reads to ctrl's in-memory state.
func Build(server *sdkmcp.Server, ctrl *syncpkg.Controller, w *watch.Watcher, hist *history.Log) {
	sdkmcp.AddTool[WriteTextRequest, WriteTextResponse](server,
		newTool("write_text_shape", "Create or overwrite a text shape's backing file"),
		func(ctx context.Context, _ *sdkmcp.CallToolRequest, a WriteTextRequest) (*sdkmcp.CallToolResult, WriteTextResponse, error) {
			if a.Path == "" {
				return nil, WriteTextResponse{}, fmt.Errorf("invalid_input: path is required")
			}
			if err := w.WriteText(a.Path, a.Content); err != nil {
				return nil, WriteTextResponse{}, err
			}
			return nil, WriteTextResponse{Path: a.Path, BytesWritten: len(a.Content)}, nil
		},
	)

	sdkmcp.AddTool[CreateFrameRequest, CreateFrameResponse](server,
		newTool("create_frame", "Create a frame directory"),
		func(ctx context.Context, _ *sdkmcp.CallToolRequest, a CreateFrameRequest) (*sdkmcp.CallToolResult, CreateFrameResponse, error) {
			if a.Path == "" {
				return nil, CreateFrameResponse{}, fmt.Errorf("invalid_input: path is required")
			}
			if err := w.Mkdir(a.Path); err != nil {
				return nil, CreateFrameResponse{}, err
			}
			return nil, CreateFrameResponse{Path: a.Path}, nil
		},
	)

	sdkmcp.AddTool[MoveRequest, MoveResponse](server,
		newTool("move_item", "Rename or move a file/directory"),
		func(ctx context.Context, _ *sdkmcp.CallToolRequest, a MoveRequest) (*sdkmcp.CallToolResult, MoveResponse, error) {
			if a.Source == "" || a.Destination == "" {
				return nil, MoveResponse{}, fmt.Errorf("invalid_input: source and destination are required")
			}
			if err := w.Rename(a.Source, a.Destination); err != nil {
				return nil, MoveResponse{}, err
			}
			return nil, MoveResponse{Source: a.Source, Destination: a.Destination}, nil
		},
	)

	sdkmcp.AddTool[DeleteRequest, DeleteResponse](server,
		newTool("delete_item", "Delete a file or directory"),
		func(ctx context.Context, _ *sdkmcp.CallToolRequest, a DeleteRequest) (*sdkmcp.CallToolResult, DeleteResponse, error) {
			if a.Path == "" {
				return nil, DeleteResponse{}, fmt.Errorf("invalid_input: path is required")
			}
			if err := w.Delete(a.Path); err != nil {
				return nil, DeleteResponse{}, err
			}
			return nil, DeleteResponse{Path: a.Path, Deleted: true}, nil
		},
	)

	sdkmcp.AddTool[SearchRequest, SearchResponse](server,
		newTool("search_paths", "Find workspace-relative paths matching a doublestar glob"),
		func(ctx context.Context, _ *sdkmcp.CallToolRequest, a SearchRequest) (*sdkmcp.CallToolResult, SearchResponse, error) {
			if a.Pattern == "" {
				return nil, SearchResponse{}, fmt.Errorf("invalid_input: pattern is required")
			}
			var matches []string
			for _, p := range ctrl.PathMap().KnownPaths() {
				ok, err := doublestar.Match(a.Pattern, string(p))
				if err != nil {
					return nil, SearchResponse{}, fmt.Errorf("invalid glob: %w", err)
				}
				if ok {
					matches = append(matches, string(p))
				}
			}
			return nil, SearchResponse{Matches: matches}, nil
		},
	)

	sdkmcp.AddTool[struct{}, ListItemsResponse](server,
		newTool("list_canvas_items", "List every shape currently on the canvas"),
		func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ struct{}) (*sdkmcp.CallToolResult, ListItemsResponse, error) {
			var items []ItemInfo
			for _, s := range ctrl.GetAllCanvasItems() {
				path, _ := ctrl.PathMap().ShapeToPath(s.ID)
				items = append(items, ItemInfo{ShapeID: string(s.ID), Kind: s.Kind.String(), Path: string(path), Name: s.Name})
			}
			return nil, ListItemsResponse{Items: items}, nil
		},
	)

	sdkmcp.AddTool[struct{}, OrganizeResponse](server,
		newTool("organize_canvas", "Sort and pack every shape into a tidy grid layout"),
		func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ struct{}) (*sdkmcp.CallToolResult, OrganizeResponse, error) {
			ctrl.Organize()
			return nil, OrganizeResponse{Organized: true}, nil
		},
	)

	if hist != nil {
		sdkmcp.AddTool[HistoryRequest, HistoryResponse](server,
			newTool("get_recent_history", "Return the most recent filesystem event history as JSON"),
			func(ctx context.Context, _ *sdkmcp.CallToolRequest, a HistoryRequest) (*sdkmcp.CallToolResult, HistoryResponse, error) {
				limit := a.Limit
				if limit <= 0 {
					limit = 50
				}
				b, err := hist.MarshalRecent(ctx, limit)
				if err != nil {
					return nil, HistoryResponse{}, err
				}
				return nil, HistoryResponse{EventsJSON: string(b)}, nil
			},
		)
	}
}
