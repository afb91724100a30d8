// Package mcptools exposes the classifier to MCP clients over stdio.
package mcptools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Veraticus/coa-classifier/internal/classifier"
	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/model"
)

// Server wraps the MCP server with the classifier service.
type Server struct {
	svc       *classifier.Service
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance.
func NewServer(svc *classifier.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcpServer = server.NewMCPServer(
		"coa-classifier",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.registerTools()

	return s
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio blocks serving requests on stdin and stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult turns a service error into a tool error the client can read.
// Only unexpected failures are surfaced as protocol errors.
func errorResult(err error) (*mcp.CallToolResult, error) {
	switch {
	case errors.Is(err, common.ErrInvalidInput),
		errors.Is(err, common.ErrNotFound),
		errors.Is(err, common.ErrDuplicateEntry),
		errors.Is(err, common.ErrModelUnavailable):
		return mcp.NewToolResultError(err.Error()), nil
	default:
		return mcp.NewToolResultErrorFromErr("internal error", err), nil
	}
}

// formatReviewQueue renders the review queue as markdown.
func formatReviewQueue(items []model.ReviewItem, threshold float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Transactions below %.2f confidence\n\n", threshold)
	if len(items) == 0 {
		b.WriteString("Nothing needs review.")
		return b.String()
	}

	fmt.Fprintf(&b, "%d transactions\n", len(items))
	for _, item := range items {
		txn := item.Transaction
		fmt.Fprintf(&b, "\n## %s\n", txn.Description)
		fmt.Fprintf(&b, "- **ID**: %s\n", txn.ID)
		fmt.Fprintf(&b, "- **Date**: %s\n", txn.Date.Format("2006-01-02"))
		fmt.Fprintf(&b, "- **Amount**: %s\n", txn.Amount.StringFixed(2))
		if item.AccountCode != "" {
			fmt.Fprintf(&b, "- **Suggested**: %s %s\n", item.AccountCode, item.AccountName)
		}
		if txn.Prediction != nil {
			fmt.Fprintf(&b, "- **Confidence**: %.2f\n", txn.Prediction.Confidence)
		}
		fmt.Fprintf(&b, "- **Priority**: %s\n", item.Priority)
	}
	return b.String()
}
