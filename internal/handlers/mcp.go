package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
	"github.com/ternarybob/augur/internal/services/reports"
)

// MCPHandler exposes the analysis surface as MCP tools over HTTP.
type MCPHandler struct {
	http.Handler
	logger arbor.ILogger
}

// NewMCPHandler builds the MCP server with the get_quote, analyze_stock
// and list_reports tools and wraps it as an HTTP handler.
func NewMCPHandler(
	data interfaces.DataService,
	tasks interfaces.TaskService,
	reportsSvc *reports.Service,
	logger arbor.ILogger,
) *MCPHandler {
	mcpServer := server.NewMCPServer(
		"augur",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createGetQuoteTool(), handleGetQuote(data, logger))
	mcpServer.AddTool(createAnalyzeStockTool(), handleAnalyzeStock(tasks, logger))
	mcpServer.AddTool(createListReportsTool(), handleListReports(reportsSvc, logger))

	return &MCPHandler{
		Handler: server.NewStreamableHTTPServer(mcpServer),
		logger:  logger,
	}
}

func createGetQuoteTool() mcp.Tool {
	return mcp.NewTool("get_quote",
		mcp.WithDescription("Get the current unified quote for a stock symbol (A-share, HK, US, ETF)"),
		mcp.WithString("stock_code",
			mcp.Required(),
			mcp.Description("Stock symbol: 600519, HK700, 00700, AAPL"),
		),
	)
}

func createAnalyzeStockTool() mcp.Tool {
	return mcp.NewTool("analyze_stock",
		mcp.WithDescription("Submit an asynchronous AI analysis task for a stock symbol"),
		mcp.WithString("stock_code",
			mcp.Required(),
			mcp.Description("Stock symbol to analyze"),
		),
		mcp.WithString("report_type",
			mcp.Description("Report depth: simple or full (default: full)"),
		),
	)
}

func createListReportsTool() mcp.Tool {
	return mcp.NewTool("list_reports",
		mcp.WithDescription("List recent persisted analysis reports for a stock symbol"),
		mcp.WithString("stock_code",
			mcp.Required(),
			mcp.Description("Stock symbol to list reports for"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 5, max: 20)"),
		),
	)
}

func handleGetQuote(data interfaces.DataService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code, err := request.RequireString("stock_code")
		if err != nil || code == "" {
			return toolError("stock_code parameter is required"), nil
		}

		symbol := common.ParseSymbol(code)
		if !symbol.IsAnalyzable() {
			return toolError(fmt.Sprintf("symbol %q does not map to a supported market", code)), nil
		}

		quote, err := data.GetRealtime(ctx, symbol.Code)
		if err != nil {
			logger.Error().Err(err).Str("code", symbol.Code).Msg("MCP quote lookup failed")
			return toolError(fmt.Sprintf("quote lookup failed: %v", err)), nil
		}
		if quote == nil {
			return toolError(fmt.Sprintf("no quote available for %s", symbol.Code)), nil
		}

		return toolJSON(quote)
	}
}

func handleAnalyzeStock(tasks interfaces.TaskService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code, err := request.RequireString("stock_code")
		if err != nil || code == "" {
			return toolError("stock_code parameter is required"), nil
		}

		reportType := models.ReportType(request.GetString("report_type", string(models.ReportFull)))
		if reportType != models.ReportSimple && reportType != models.ReportFull {
			reportType = models.ReportFull
		}

		task, err := tasks.Submit(ctx, interfaces.SubmitRequest{
			StockCode:  code,
			ReportType: reportType,
		})
		if err != nil {
			logger.Warn().Err(err).Str("code", code).Msg("MCP analysis submission failed")
			return toolError(fmt.Sprintf("submission failed: %v", err)), nil
		}

		return toolJSON(map[string]string{
			"task_id": task.TaskID,
			"status":  string(task.Status),
			"message": "Analysis task submitted; poll reports once completed",
		})
	}
}

func handleListReports(reportsSvc *reports.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code, err := request.RequireString("stock_code")
		if err != nil || code == "" {
			return toolError("stock_code parameter is required"), nil
		}

		limit := request.GetInt("limit", 5)
		if limit > 20 {
			limit = 20
		}

		symbol := common.ParseSymbol(code)
		envelopes, total, err := reportsSvc.History(ctx, symbol.Code, time.Time{}, time.Time{}, 0, limit)
		if err != nil {
			logger.Error().Err(err).Str("code", symbol.Code).Msg("MCP report listing failed")
			return toolError(fmt.Sprintf("report listing failed: %v", err)), nil
		}

		return toolJSON(map[string]interface{}{
			"stock_code": symbol.Code,
			"total":      total,
			"reports":    envelopes,
		})
	}
}

func toolError(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent("Error: " + message),
		},
	}
}

func toolJSON(data interface{}) (*mcp.CallToolResult, error) {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encoding failed: %v", err)), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(string(encoded)),
		},
	}, nil
}
