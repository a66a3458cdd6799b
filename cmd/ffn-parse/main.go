// Command ffn-parse extracts best times from a federation results page and
// prints them as JSON. The page comes from a saved file or is fetched by IUF.
//
//	ffn-parse -file results.html
//	ffn-parse -iuf 1234567 -stats
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/ffnsync/internal/adapters/federation"
	"github.com/okian/ffnsync/internal/domain/model"
	"github.com/okian/ffnsync/internal/domain/parser"
	"github.com/okian/ffnsync/pkg/logger"
)

type options struct {
	file    string
	iuf     string
	baseURL string
	timeout time.Duration
	stats   bool
	debug   bool
}

type output struct {
	Records []model.ParsedRecord `json:"records"`
	Stats   *parser.Stats        `json:"stats,omitempty"`
}

func main() {
	var opts options
	flag.StringVar(&opts.file, "file", "", "saved results page to parse ('-' reads stdin)")
	flag.StringVar(&opts.iuf, "iuf", "", "federation identifier to fetch")
	flag.StringVar(&opts.baseURL, "base-url", federation.DefaultBaseURL, "federation results search page")
	flag.DurationVar(&opts.timeout, "timeout", federation.DefaultTimeout, "fetch timeout")
	flag.BoolVar(&opts.stats, "stats", false, "include parser counters")
	flag.BoolVar(&opts.debug, "debug", false, "log discarded rows to stderr")
	flag.Parse()

	if err := run(context.Background(), opts, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "ffn-parse: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdin io.Reader, stdout io.Writer) error {
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if opts.debug {
		_ = logger.SetLevelString("debug")
	}
	log := logger.Get()

	page, err := load(ctx, opts, stdin, log)
	if err != nil {
		return err
	}

	records, stats := parser.New(parser.WithLogger(log.Named("parser"))).Parse(page)
	if records == nil {
		records = []model.ParsedRecord{}
	}
	out := output{Records: records}
	if opts.stats {
		out.Stats = &stats
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func load(ctx context.Context, opts options, stdin io.Reader, log logger.Logger) (string, error) {
	switch {
	case opts.file != "" && opts.iuf != "":
		return "", errors.New("use either -file or -iuf, not both")
	case opts.file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	case opts.file != "":
		b, err := os.ReadFile(opts.file)
		if err != nil {
			return "", fmt.Errorf("read page: %w", err)
		}
		return string(b), nil
	case opts.iuf != "":
		client := federation.NewClient(
			federation.WithBaseURL(opts.baseURL),
			federation.WithTimeout(opts.timeout),
			federation.WithLogger(log.Named("federation")))
		return client.FetchResults(ctx, opts.iuf)
	default:
		return "", errors.New("one of -file or -iuf is required")
	}
}
