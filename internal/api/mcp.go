package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/retrylife/remoteplayers/internal/links"
)

// NewMCPServer creates an MCP server exposing map link tools and resources.
func NewMCPServer(store LinkStore, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"remoteplayers",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("remoteplayers: Dynmap links per Minecraft server and the waypoint integration toggle."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_map_link",
			mcp.WithDescription("Return the Dynmap URL linked to a Minecraft server. linked is false when none is configured."),
			mcp.WithString("server", mcp.Description("Minecraft server identifier"), mcp.Required()),
			mcp.WithOutputSchema[mapLinkResult](),
		),
		mcpGetMapLink(store),
	)

	s.AddTool(
		mcp.NewTool("set_map_link",
			mcp.WithDescription("Link a Minecraft server to a Dynmap URL, replacing any existing link."),
			mcp.WithString("server", mcp.Description("Minecraft server identifier"), mcp.Required()),
			mcp.WithString("url", mcp.Description("Dynmap URL"), mcp.Required()),
		),
		mcpSetMapLink(store),
	)

	s.AddTool(
		mcp.NewTool("unlink_map",
			mcp.WithDescription("Remove the Dynmap link from a Minecraft server."),
			mcp.WithString("server", mcp.Description("Minecraft server identifier"), mcp.Required()),
		),
		mcpUnlinkMap(store),
	)

	s.AddTool(
		mcp.NewTool("set_waypoint_integration",
			mcp.WithDescription("Enable or disable waypoint integration."),
			mcp.WithBoolean("enabled", mcp.Description("Whether integration is active"), mcp.Required()),
		),
		mcpSetIntegration(store),
	)

	s.AddResource(
		mcp.NewResource(
			"links://all",
			"Map Links",
			mcp.WithResourceDescription("Every server to Dynmap link plus the integration flag, as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceLinks(store),
	)

	return s
}

func mcpGetMapLink(store LinkStore) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		srv, err := req.RequireString("server")
		if err != nil {
			return mcpError("server is required"), nil
		}

		url, ok, err := store.LinkedServiceURL(srv)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to read link: %v", err)), nil
		}
		return mcp.NewToolResultJSON(mapLinkResult{Server: srv, Linked: ok, URL: url})
	}
}

// mapLinkResult is the get_map_link payload. Linked separates "no link"
// from a link whose URL is empty.
type mapLinkResult struct {
	Server string `json:"server"`
	Linked bool   `json:"linked"`
	URL    string `json:"url"`
}

func mcpSetMapLink(store LinkStore) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		srv, err := req.RequireString("server")
		if err != nil {
			return mcpError("server is required"), nil
		}
		url, err := req.RequireString("url")
		if err != nil {
			return mcpError("url is required"), nil
		}

		if err := store.SetLinkedServiceURL(srv, url); err != nil {
			return mcpError(fmt.Sprintf("failed to set link: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Linked %s -> %s", srv, url)), nil
	}
}

func mcpUnlinkMap(store LinkStore) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		srv, err := req.RequireString("server")
		if err != nil {
			return mcpError("server is required"), nil
		}

		if err := store.UnlinkService(srv); err != nil {
			return mcpError(fmt.Sprintf("failed to remove link: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Unlinked %s", srv)), nil
	}
}

func mcpSetIntegration(store LinkStore) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		enabled, err := req.RequireBool("enabled")
		if err != nil {
			return mcpError("enabled is required"), nil
		}

		if err := store.SetIntegrationEnabled(enabled); err != nil {
			return mcpError(fmt.Sprintf("failed to set integration: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Waypoint integration enabled: %t", enabled)), nil
	}
}

func mcpResourceLinks(store LinkStore) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		all, err := store.Links()
		if err != nil {
			return nil, fmt.Errorf("failed to list links: %w", err)
		}
		if all == nil {
			all = []links.Link{}
		}
		enabled, err := store.IntegrationEnabled()
		if err != nil {
			return nil, fmt.Errorf("failed to read integration flag: %w", err)
		}

		b, err := json.Marshal(map[string]any{
			"integration_enabled": enabled,
			"links":               all,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal links: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
