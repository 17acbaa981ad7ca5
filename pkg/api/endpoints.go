package api

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/brine-ledger/pkg/catalog"
	"github.com/hazyhaar/brine-ledger/pkg/classify"
	"github.com/hazyhaar/brine-ledger/pkg/consumption"
	"github.com/hazyhaar/brine-ledger/pkg/importer"
	"github.com/hazyhaar/brine-ledger/pkg/kit"
	"github.com/hazyhaar/brine-ledger/pkg/ledger"
	"github.com/hazyhaar/brine-ledger/pkg/report"
	"github.com/hazyhaar/brine-ledger/pkg/store"
)

// Service bundles what the transports need.
type Service struct {
	Store   *store.Store
	Engine  *ledger.Engine
	Reports *report.Aggregator
	Logger  *slog.Logger
}

// NewService wires the engine and the aggregator on s. A nil table selects
// consumption.DefaultNorms.
func NewService(s *store.Store, norms consumption.NormTable, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Store:   s,
		Engine:  ledger.NewEngine(s, norms, logger),
		Reports: report.NewAggregator(s, norms),
		Logger:  logger,
	}
}

// Shared request/response types used by both HTTP and MCP transports.

type importReq struct {
	Source   string
	Filename string
	Payload  []byte
	Options  importer.Options
}

type importURLReq struct {
	URL     string
	Options importer.Options
}

type reportReq struct {
	Date time.Time
}

type classifyReq struct {
	Name string
}

type classifyResponse struct {
	Name  string         `json:"name"`
	Group classify.Group `json:"group"`
}

type listImportsReq struct {
	Limit int
}

type importsResponse struct {
	Runs []store.ImportRun `json:"runs"`
}

type datesResponse struct {
	Dates []string `json:"dates"`
}

type productsResponse struct {
	Products []catalog.Product `json:"products"`
}

type endpoints struct {
	importPayload kit.Endpoint
	importURL     kit.Endpoint
	report        kit.Endpoint
	classify      kit.Endpoint
	listImports   kit.Endpoint
	listDates     kit.Endpoint
	listProducts  kit.Endpoint
}

func newEndpoints(svc *Service) endpoints {
	logged := func(name string, e kit.Endpoint) kit.Endpoint {
		return kit.Logged(svc.Logger, name)(e)
	}
	return endpoints{
		importPayload: logged("import", importEndpoint(svc)),
		importURL:     logged("import_url", importURLEndpoint(svc)),
		report:        logged("report", reportEndpoint(svc)),
		classify:      logged("classify", classifyEndpoint()),
		listImports:   logged("list_imports", listImportsEndpoint(svc)),
		listDates:     logged("list_dates", listDatesEndpoint(svc)),
		listProducts:  logged("list_products", listProductsEndpoint(svc)),
	}
}

func importEndpoint(svc *Service) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*importReq)
		if len(req.Payload) == 0 {
			return nil, fmt.Errorf("empty payload")
		}
		source := req.Source
		if source == "" {
			source = req.Filename
		}
		return svc.Engine.Import(ctx, source, bytes.NewReader(req.Payload), req.Filename, req.Options)
	}
}

func importURLEndpoint(svc *Service) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*importURLReq)
		if req.URL == "" {
			return nil, fmt.Errorf("missing url")
		}
		data, err := importer.Fetch(ctx, req.URL)
		if err != nil {
			return nil, err
		}
		return svc.Engine.Import(ctx, req.URL, bytes.NewReader(data), req.URL, req.Options)
	}
}

func reportEndpoint(svc *Service) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*reportReq)
		return svc.Reports.Build(ctx, req.Date)
	}
}

func classifyEndpoint() kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*classifyReq)
		return classifyResponse{Name: req.Name, Group: classify.Classify(req.Name)}, nil
	}
}

func listImportsEndpoint(svc *Service) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		limit := 0
		if req, ok := request.(*listImportsReq); ok && req != nil {
			limit = req.Limit
		}
		runs, err := svc.Store.ImportRuns(ctx, limit)
		if err != nil {
			return nil, err
		}
		if runs == nil {
			runs = []store.ImportRun{}
		}
		return importsResponse{Runs: runs}, nil
	}
}

func listDatesEndpoint(svc *Service) kit.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		dates, err := svc.Store.ProductionDates(ctx)
		if err != nil {
			return nil, err
		}
		resp := datesResponse{Dates: make([]string, len(dates))}
		for i, d := range dates {
			resp.Dates[i] = catalog.FormatDate(d)
		}
		return resp, nil
	}
}

func listProductsEndpoint(svc *Service) kit.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		products, err := svc.Store.Products(ctx)
		if err != nil {
			return nil, err
		}
		if products == nil {
			products = []catalog.Product{}
		}
		return productsResponse{Products: products}, nil
	}
}
