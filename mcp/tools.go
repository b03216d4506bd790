package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lukman83/closeshave/internal/models"
	"github.com/lukman83/closeshave/internal/validate"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

type tools struct {
	deps Deps
	log  *zap.Logger
}

func newTools(d Deps) *tools {
	t := &tools{deps: d, log: d.Log}
	if t.log == nil {
		t.log = zap.NewNop()
	}
	return t
}

func registerTools(s *server.MCPServer, d Deps) {
	t := newTools(d)

	// search_products
	searchTool := mcp.NewTool("search_products",
		mcp.WithDescription("Search products across merchants, ranked by estimated total price including shipping and tax"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithArray("merchants",
			mcp.Description("Merchants to search (default: all enabled)"),
			mcp.WithStringItems(),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum results, 1-100 (default: 20)"),
		),
		mcp.WithNumber("min_price",
			mcp.Description("Minimum base price in USD"),
		),
		mcp.WithNumber("max_price",
			mcp.Description("Maximum base price in USD"),
		),
		mcp.WithString("brand",
			mcp.Description("Only keep listings whose title contains this brand"),
		),
		mcp.WithBoolean("include_out_of_stock",
			mcp.Description("Append out-of-stock listings after the rest (default: true)"),
		),
	)
	s.AddTool(searchTool, t.handleSearchProducts)

	// list_merchants
	merchantsTool := mcp.NewTool("list_merchants",
		mcp.WithDescription("List merchants with their enabled state and scraper version"),
	)
	s.AddTool(merchantsTool, t.handleListMerchants)

	// validate_query
	validateTool := mcp.NewTool("validate_query",
		mcp.WithDescription("Check whether a query is likely to find products and suggest alternatives"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
	)
	s.AddTool(validateTool, t.handleValidateQuery)
}

func (t *tools) handleSearchProducts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	req := models.SearchRequest{
		Query:      query,
		Merchants:  request.GetStringSlice("merchants", nil),
		MaxResults: request.GetInt("max_results", models.DefaultResults),
		Brand:      request.GetString("brand", ""),
	}
	args := request.GetArguments()
	if _, ok := args["min_price"]; ok {
		v := request.GetFloat("min_price", 0)
		req.MinPrice = &v
	}
	if _, ok := args["max_price"]; ok {
		v := request.GetFloat("max_price", 0)
		req.MaxPrice = &v
	}
	if _, ok := args["include_out_of_stock"]; ok {
		v := request.GetBool("include_out_of_stock", true)
		req.IncludeOutOfStock = &v
	}

	resp, err := t.deps.Search.Search(ctx, req)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			return mcp.NewToolResultError(verr.Error()), nil
		}
		t.log.Error("search tool failed", zap.String("query", query), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("search error: %v", err)), nil
	}
	return jsonResult(resp)
}

func (t *tools) handleListMerchants(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	merchants := []models.MerchantInfo{}
	if t.deps.Merchants != nil {
		merchants = t.deps.Merchants.List()
	}
	return jsonResult(map[string][]models.MerchantInfo{"merchants": merchants})
}

func (t *tools) handleValidateQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	if t.deps.Validator == nil {
		return jsonResult(validate.Permissive())
	}
	return jsonResult(t.deps.Validator.Validate(ctx, query))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
