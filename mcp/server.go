package mcp

import (
	"context"

	"github.com/lukman83/closeshave/internal/models"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

type Searcher interface {
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error)
}

type QueryValidator interface {
	Validate(ctx context.Context, query string) models.Validation
}

type MerchantLister interface {
	List() []models.MerchantInfo
}

// Deps are the collaborators the tools call into. A nil Validator means
// validation is disabled.
type Deps struct {
	Version   string
	Search    Searcher
	Merchants MerchantLister
	Validator QueryValidator
	Log       *zap.Logger
}

// NewServer builds the MCP server with all tools registered.
func NewServer(d Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"closeshave",
		d.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	registerTools(s, d)
	return s
}

// Serve starts the MCP stdio server.
func Serve(d Deps) error {
	return server.ServeStdio(NewServer(d))
}
