package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hazyhaar/brine-ledger/pkg/importer"
	"github.com/hazyhaar/brine-ledger/pkg/kit"
	"github.com/hazyhaar/brine-ledger/pkg/ledger"
)

func cmdImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	file := fs.String("file", "", "export to import (.xlsx or .csv)")
	url := fs.String("url", "", "download the export from this URL")
	format := fs.String("format", "", "force xlsx or csv")
	encoding := fs.String("encoding", "", "CSV source encoding (e.g. windows-1251)")
	delimiter := fs.String("delimiter", "", "CSV delimiter (default ;)")
	fs.Parse(args)

	if (*file == "") == (*url == "") {
		fmt.Fprintln(os.Stderr, "Usage: brine import (-file <path> | -url <url>) [-format xlsx|csv] [-encoding <name>] [-delimiter <c>]")
		os.Exit(2)
	}

	_, logger, s := setup(*cfgPath)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = kit.WithTransport(ctx, kit.TransportCLI)

	engine := ledger.NewEngine(s, nil, logger)
	if err := engine.Prepare(ctx); err != nil {
		logger.Error("register norm components", "error", err)
		os.Exit(1)
	}

	var (
		r      io.Reader
		source string
	)
	if *url != "" {
		data, err := importer.Fetch(ctx, *url)
		if err != nil {
			logger.Error("download export", "url", *url, "error", err)
			os.Exit(1)
		}
		r, source = bytes.NewReader(data), *url
	} else {
		f, err := os.Open(*file)
		if err != nil {
			logger.Error("open export", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		r, source = f, *file
	}

	opts := importer.Options{Format: *format, Encoding: *encoding, Delimiter: *delimiter}
	res, err := engine.Import(ctx, source, r, source, opts)
	if err != nil {
		printImportError(err)
		os.Exit(1)
	}
	printResult(res)
}

func printImportError(err error) {
	var nvr *importer.NoValidRowsError
	if errors.As(err, &nvr) {
		for _, re := range nvr.RowErrors {
			fmt.Fprintf(os.Stderr, "  %v\n", re)
		}
	}
	fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
}

func printResult(res *ledger.Result) {
	fmt.Printf("Import %s: %d row(s) accepted for %v\n", res.RunID, res.Accepted, res.Dates)
	if len(res.RowErrors) > 0 {
		fmt.Printf("%d row(s) rejected:\n", len(res.RowErrors))
		for _, re := range res.RowErrors {
			fmt.Printf("  %v\n", re)
		}
	}
	if len(res.NotFound) > 0 {
		fmt.Printf("%d row(s) name no catalog product:\n", len(res.NotFound))
		for _, nf := range res.NotFound {
			fmt.Printf("  %v\n", nf)
		}
	}
	if res.Skipped > 0 {
		fmt.Printf("%d row(s) skipped (no name and no volume)\n", res.Skipped)
	}
}
