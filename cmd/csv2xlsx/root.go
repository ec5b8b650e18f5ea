package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/csv2xlsx/internal/config"
	"github.com/JonMunkholm/csv2xlsx/internal/core"
	"github.com/JonMunkholm/csv2xlsx/internal/logging"
	"github.com/JonMunkholm/csv2xlsx/internal/storage"
	"github.com/JonMunkholm/csv2xlsx/internal/xlsx"
)

var errDuplicateOutput = errors.New("duplicate output file")

type flags struct {
	delimiter   string
	encoding    string
	outDir      string
	engine      string
	autoFitRows int
	sanitize    bool
	jobs        int
	logLevel    string
}

func newRootCommand() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "csv2xlsx [flags] file.csv...",
		Short: "Convert CSV files to XLSX workbooks",
		Long: `csv2xlsx converts delimited text files to Excel workbooks. Each input
becomes one workbook with a single sheet; numbers and booleans are stored
as typed cells, everything else as text.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), f, args)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "error:", core.FormatUserError(err))
			}
			return err
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.delimiter, "delimiter", "d", ",", `Field delimiter ("tab" or \t for tab)`)
	fl.StringVarP(&f.encoding, "encoding", "e", core.DefaultEncoding, "Input character set (e.g. windows-1252, utf-16le)")
	fl.StringVarP(&f.outDir, "out-dir", "o", "", "Directory for output files (default: next to each input)")
	fl.StringVar(&f.engine, "engine", xlsx.EngineNative, "XLSX writer: native or excelize")
	fl.IntVar(&f.autoFitRows, "autofit-rows", 1, "Leading rows sampled for column widths")
	fl.BoolVar(&f.sanitize, "sanitize", false, "Replace invalid UTF-8 with '?' instead of failing")
	fl.IntVarP(&f.jobs, "jobs", "j", runtime.NumCPU(), "Files converted in parallel")
	fl.StringVar(&f.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	return cmd
}

// run converts every input concurrently, at most f.jobs at a time. The
// first failure cancels conversions that have not started yet.
func run(ctx context.Context, stdout, stderr io.Writer, f flags, inputs []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	slog.SetDefault(logging.New(stderr, f.logLevel, "text"))

	opts := core.Options{
		Delimiter:    config.ExpandDelimiter(f.delimiter),
		Encoding:     f.encoding,
		Engine:       f.engine,
		AutoFitRows:  f.autoFitRows,
		SanitizeUTF8: f.sanitize,
	}.Merge(core.DefaultOptions())
	if err := opts.Validate(); err != nil {
		return err
	}

	outputs, err := outputPaths(inputs, f.outDir)
	if err != nil {
		return err
	}

	if f.outDir != "" {
		if err := os.MkdirAll(f.outDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(f.jobs, 1))

	var mu sync.Mutex
	for i, in := range inputs {
		out := outputs[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows, err := core.ConvertFile(in, out, opts)
			if err != nil {
				slog.Error("conversion failed", "input", in, "error", err)
				return fmt.Errorf("%s: %w", in, err)
			}
			slog.Debug("converted", "input", in, "output", out, "rows", rows)

			mu.Lock()
			fmt.Fprintf(stdout, "%s -> %s (%d rows)\n", in, out, rows)
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// outputPaths maps each input to its output and rejects inputs that would
// be written to the same file.
func outputPaths(inputs []string, dir string) ([]string, error) {
	outputs := make([]string, len(inputs))
	seen := make(map[string]string, len(inputs))
	for i, in := range inputs {
		out := outputPath(in, dir)
		key := filepath.Clean(out)
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: %s and %s both write %s", errDuplicateOutput, prev, in, out)
		}
		seen[key] = in
		outputs[i] = out
	}
	return outputs, nil
}

// outputPath replaces the input's extension with .xlsx, placing the result
// in dir when set.
func outputPath(input, dir string) string {
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + storage.Extension
	if dir == "" {
		return filepath.Join(filepath.Dir(input), name)
	}
	return filepath.Join(dir, name)
}
