package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/hazyhaar/brine-ledger/pkg/catalog"
	"github.com/hazyhaar/brine-ledger/pkg/kit"
	"github.com/hazyhaar/brine-ledger/pkg/report"
)

func cmdReport(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	dateStr := fs.String("date", "", "production date (YYYY-MM-DD)")
	format := fs.String("format", "text", "text, json or xlsx")
	out := fs.String("out", "", "output file (default stdout)")
	fs.Parse(args)

	date, err := catalog.ParseDate(*dateStr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Usage: brine report -date YYYY-MM-DD [-format text|json|xlsx] [-out <file>]")
		os.Exit(2)
	}

	_, logger, s := setup(*cfgPath)
	defer s.Close()

	ctx := kit.WithTransport(context.Background(), kit.TransportCLI)
	rep, err := report.NewAggregator(s, nil).Build(ctx, date)
	if err != nil {
		logger.Error("build report", "error", err)
		os.Exit(1)
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			logger.Error("create output", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(rep)
	case "xlsx":
		err = report.WriteXLSX(w, rep)
	default:
		err = printReport(w, rep)
	}
	if err != nil {
		logger.Error("write report", "error", err)
		os.Exit(1)
	}
}

func printReport(w io.Writer, rep *report.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Production %s\n", rep.Date)
	if len(rep.Groups) == 0 {
		fmt.Fprintln(tw, "no production recorded")
	}
	for _, g := range rep.Groups {
		fmt.Fprintf(tw, "\n%s\t%.3f kg\n", g.Group, g.TotalKg)
		for _, p := range g.Products {
			fmt.Fprintf(tw, "  %s\t%.3f kg\t%d pcs\t%s\n", p.Name, p.TotalKg, p.Pieces, p.Strategy)
		}
		for _, c := range g.Components {
			fmt.Fprintf(tw, "    %s\t%.3f kg\n", c.Component, c.QuantityKg)
		}
	}
	return tw.Flush()
}
