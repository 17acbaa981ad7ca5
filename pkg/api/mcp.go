package api

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/brine-ledger/pkg/catalog"
	"github.com/hazyhaar/brine-ledger/pkg/importer"
	"github.com/hazyhaar/brine-ledger/pkg/kit"
)

// RegisterMCPTools registers the brine MCP tools on the server.
func RegisterMCPTools(srv *server.MCPServer, svc *Service) {
	e := newEndpoints(svc)
	registerReport(srv, e.report)
	registerClassify(srv, e.classify)
	registerListImports(srv, e.listImports)
	registerListDates(srv, e.listDates)
	registerImportURL(srv, e.importURL)
}

func registerReport(srv *server.MCPServer, endpoint kit.Endpoint) {
	tool := mcp.NewTool("production_report",
		mcp.WithDescription("Production of one date: per-product totals and piece counts, and component consumption per classification group."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Production date, YYYY-MM-DD")),
	)

	kit.RegisterMCPTool(srv, tool, endpoint, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		raw, _ := req.GetArguments()["date"].(string)
		date, err := catalog.ParseDate(raw)
		if err != nil {
			return nil, fmt.Errorf("date %q: want YYYY-MM-DD", raw)
		}
		return &kit.MCPDecodeResult{Request: &reportReq{Date: date}}, nil
	})
}

func registerClassify(srv *server.MCPServer, endpoint kit.Endpoint) {
	tool := mcp.NewTool("classify_product",
		mcp.WithDescription("Classification group (Regions, Retail-chain, Cold-smoked) derived from a declared product name."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Declared product name")),
	)

	kit.RegisterMCPTool(srv, tool, endpoint, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		name, _ := req.GetArguments()["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("missing name")
		}
		return &kit.MCPDecodeResult{Request: &classifyReq{Name: name}}, nil
	})
}

func registerListImports(srv *server.MCPServer, endpoint kit.Endpoint) {
	tool := mcp.NewTool("list_imports",
		mcp.WithDescription("Most recent import runs with their dates and row counts."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 50)")),
	)

	kit.RegisterMCPTool(srv, tool, endpoint, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		limit, _ := req.GetArguments()["limit"].(float64)
		return &kit.MCPDecodeResult{Request: &listImportsReq{Limit: int(limit)}}, nil
	})
}

func registerListDates(srv *server.MCPServer, endpoint kit.Endpoint) {
	tool := mcp.NewTool("list_dates",
		mcp.WithDescription("Production dates present in the ledger, newest first."),
	)

	kit.RegisterMCPTool(srv, tool, endpoint, func(_ mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	})
}

func registerImportURL(srv *server.MCPServer, endpoint kit.Endpoint) {
	tool := mcp.NewTool("import_from_url",
		mcp.WithDescription("Download a production export (.xlsx or .csv) and reconcile it, replacing the stored production of every date it contains."),
		mcp.WithString("url", mcp.Required(), mcp.Description("URL of the export")),
		mcp.WithString("format", mcp.Description("xlsx or csv; detected from the URL when empty")),
		mcp.WithString("encoding", mcp.Description("CSV source encoding, e.g. windows-1251")),
	)

	kit.RegisterMCPTool(srv, tool, endpoint, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		url, _ := args["url"].(string)
		if url == "" {
			return nil, fmt.Errorf("missing url")
		}
		format, _ := args["format"].(string)
		encoding, _ := args["encoding"].(string)
		return &kit.MCPDecodeResult{Request: &importURLReq{
			URL:     url,
			Options: importer.Options{Format: format, Encoding: encoding},
		}}, nil
	})
}
