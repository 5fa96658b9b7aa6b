// Copyright (C) 2025 Quartzdata, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quartzdata/parqconv/internal/coerce"
	"github.com/quartzdata/parqconv/internal/convert"
	"github.com/quartzdata/parqconv/internal/filereader"
	"github.com/quartzdata/parqconv/internal/logctx"
	"github.com/quartzdata/parqconv/internal/parquetwriter"
	"github.com/quartzdata/parqconv/internal/schema"
)

var convertFlags struct {
	input        string
	format       string
	outputDir    string
	manifest     string
	partitionBy  []string
	policy       string
	delimiter    string
	skipRows     int
	skipFooter   int
	columnNames  []string
	fixedLayout  string
	resumeOffset int64
	reportPath   string
	nullTokens   []string
	dateLayout   string
	tsLayout     string
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert one source file into a parquet dataset",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runConvert(cmd)
	},
}

func init() {
	f := convertCmd.Flags()
	f.StringVarP(&convertFlags.input, "input", "i", "", "source file to convert")
	f.StringVarP(&convertFlags.format, "format", "f", "csv", "source format: csv, tsv, jsonl, fixedwidth, legacybin")
	f.StringVarP(&convertFlags.outputDir, "output-dir", "o", "", "dataset root for output files")
	f.StringVar(&convertFlags.manifest, "schema", "", "JSON schema manifest (omit to infer)")
	f.StringSliceVar(&convertFlags.partitionBy, "partition-by", nil, "partition columns, in order")
	f.StringVar(&convertFlags.policy, "policy", "", "coercion policy: tolerant or strict")
	f.StringVar(&convertFlags.delimiter, "delimiter", "", "field delimiter override for delimited input")
	f.IntVar(&convertFlags.skipRows, "skip-rows", 0, "leading rows to drop before the header")
	f.IntVar(&convertFlags.skipFooter, "skip-footer", 0, "trailing rows to drop")
	f.StringSliceVar(&convertFlags.columnNames, "columns", nil, "explicit column names (suppresses header row)")
	f.StringVar(&convertFlags.fixedLayout, "fixed-layout", "", "fixed-width layout as name:start:width,...")
	f.Int64Var(&convertFlags.resumeOffset, "resume-offset", 0, "byte offset to resume reading from")
	f.StringSliceVar(&convertFlags.nullTokens, "null-tokens", nil, "tokens treated as null values")
	f.StringVar(&convertFlags.dateLayout, "date-layout", "", "Go time layout for date columns")
	f.StringVar(&convertFlags.tsLayout, "timestamp-layout", "", "Go time layout for timestamp columns")
	f.StringVar(&convertFlags.reportPath, "report", "", "write the JSON conversion report to this path instead of stdout")

	_ = convertCmd.MarkFlagRequired("input")
	_ = convertCmd.MarkFlagRequired("output-dir")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logctx.WithLogger(ctx, slog.Default())

	format, err := filereader.ParseFormat(convertFlags.format)
	if err != nil {
		return err
	}

	coerceOpts := coerce.DefaultOptions()
	switch policy := firstNonEmpty(convertFlags.policy, cfg.Convert.CoercionPolicy); policy {
	case "", "tolerant":
		coerceOpts.Policy = coerce.PolicyTolerant
	case "strict":
		coerceOpts.Policy = coerce.PolicyStrict
	default:
		return fmt.Errorf("unknown coercion policy %q", policy)
	}

	inferOpts := schema.DefaultInferOptions()
	if len(convertFlags.nullTokens) > 0 {
		coerceOpts.NullTokens = convertFlags.nullTokens
		inferOpts.NullTokens = convertFlags.nullTokens
	}
	if convertFlags.dateLayout != "" {
		coerceOpts.DateLayout = convertFlags.dateLayout
		inferOpts.DateLayout = convertFlags.dateLayout
	}
	if convertFlags.tsLayout != "" {
		coerceOpts.TimestampLayout = convertFlags.tsLayout
		inferOpts.TimestampLayout = convertFlags.tsLayout
	}

	readerOpts, err := buildReaderOptions()
	if err != nil {
		return err
	}

	conv, err := convert.New(convert.Options{
		InputPath:         convertFlags.input,
		Format:            format,
		Reader:            readerOpts,
		ManifestPath:      convertFlags.manifest,
		SampleSize:        cfg.Convert.SampleSize,
		Infer:             inferOpts,
		Coerce:            coerceOpts,
		OutputDir:         convertFlags.outputDir,
		PartitionColumns:  convertFlags.partitionBy,
		MaxOpenPartitions: cfg.Convert.MaxOpenPartitions,
		TmpDir:            cfg.Convert.TmpDir,
		RecordsPerFile:    cfg.Convert.RecordsPerFile,
		Compression:       parquetwriter.Compression(cfg.Convert.Compression),
		WriteChecksums:    cfg.Convert.WriteChecksums,
		StatsEnabled:      cfg.Convert.Stats,
		BatchSize:         cfg.Convert.BatchSize,
	})
	if err != nil {
		return err
	}

	report, runErr := conv.Run(ctx)
	if report != nil {
		if err := emitReport(report); err != nil {
			return err
		}
	}
	return runErr
}

func buildReaderOptions() (filereader.OpenOptions, error) {
	opts := filereader.OpenOptions{
		StartOffset: convertFlags.resumeOffset,
		Delimited: filereader.DelimitedOptions{
			SkipRows:    convertFlags.skipRows,
			SkipFooter:  convertFlags.skipFooter,
			ColumnNames: convertFlags.columnNames,
		},
	}

	if convertFlags.delimiter != "" {
		runes := []rune(convertFlags.delimiter)
		if len(runes) != 1 {
			return opts, fmt.Errorf("delimiter must be a single character, got %q", convertFlags.delimiter)
		}
		opts.Delimited.Delimiter = runes[0]
	}

	if convertFlags.fixedLayout != "" {
		layout, err := parseFixedLayout(convertFlags.fixedLayout)
		if err != nil {
			return opts, err
		}
		opts.FixedWidthLayout = layout
	}
	return opts, nil
}

// parseFixedLayout parses "name:start:width" triples separated by commas.
func parseFixedLayout(s string) ([]filereader.FixedWidthColumn, error) {
	var layout []filereader.FixedWidthColumn
	for _, part := range strings.Split(s, ",") {
		fields := strings.Split(strings.TrimSpace(part), ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("fixed layout entry %q is not name:start:width", part)
		}
		start, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("fixed layout entry %q has a bad start: %w", part, err)
		}
		width, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("fixed layout entry %q has a bad width: %w", part, err)
		}
		layout = append(layout, filereader.FixedWidthColumn{
			Name:  fields[0],
			Start: start,
			Width: width,
		})
	}
	return layout, nil
}

func emitReport(report *convert.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')

	if convertFlags.reportPath != "" {
		if err := os.WriteFile(convertFlags.reportPath, data, 0o644); err != nil {
			return fmt.Errorf("write report %s: %w", convertFlags.reportPath, err)
		}
		return nil
	}
	_, err = os.Stdout.Write(data)
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
