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
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/quartzdata/parqconv/internal/filereader"
	"github.com/quartzdata/parqconv/internal/schema"
)

var schemaFlags struct {
	input       string
	format      string
	out         string
	delimiter   string
	skipRows    int
	skipFooter  int
	columnNames []string
	fixedLayout string
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Infer a schema from a source file and print or save the manifest",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSchema(cmd)
	},
}

func init() {
	f := schemaCmd.Flags()
	f.StringVarP(&schemaFlags.input, "input", "i", "", "source file to sample")
	f.StringVarP(&schemaFlags.format, "format", "f", "csv", "source format: csv, tsv, jsonl, fixedwidth, legacybin")
	f.StringVarP(&schemaFlags.out, "out", "o", "", "write the manifest to this path instead of stdout")
	f.StringVar(&schemaFlags.delimiter, "delimiter", "", "field delimiter override for delimited input")
	f.IntVar(&schemaFlags.skipRows, "skip-rows", 0, "leading rows to drop before the header")
	f.IntVar(&schemaFlags.skipFooter, "skip-footer", 0, "trailing rows to drop")
	f.StringSliceVar(&schemaFlags.columnNames, "columns", nil, "explicit column names (suppresses header row)")
	f.StringVar(&schemaFlags.fixedLayout, "fixed-layout", "", "fixed-width layout as name:start:width,...")

	_ = schemaCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command) error {
	format, err := filereader.ParseFormat(schemaFlags.format)
	if err != nil {
		return err
	}

	opts := filereader.OpenOptions{
		Delimited: filereader.DelimitedOptions{
			SkipRows:    schemaFlags.skipRows,
			SkipFooter:  schemaFlags.skipFooter,
			ColumnNames: schemaFlags.columnNames,
		},
	}
	if schemaFlags.delimiter != "" {
		runes := []rune(schemaFlags.delimiter)
		if len(runes) != 1 {
			return fmt.Errorf("delimiter must be a single character, got %q", schemaFlags.delimiter)
		}
		opts.Delimited.Delimiter = runes[0]
	}
	if schemaFlags.fixedLayout != "" {
		layout, err := parseFixedLayout(schemaFlags.fixedLayout)
		if err != nil {
			return err
		}
		opts.FixedWidthLayout = layout
	}

	reader, err := filereader.OpenFile(schemaFlags.input, format, opts)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	builder := schema.NewBuilder(schema.DefaultInferOptions())
	sampled := 0
	for sampled < cfg.Convert.SampleSize {
		rec, err := reader.Next(cmd.Context())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var recErr *filereader.RecordError
			if errors.As(err, &recErr) {
				continue
			}
			return err
		}
		builder.AddRecord(rec.Names, rec.Fields)
		sampled++
	}

	inferred, err := builder.Build()
	if err != nil {
		return err
	}

	if schemaFlags.out != "" {
		if err := schema.SaveManifest(schemaFlags.out, inferred); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sampled %d records, wrote %s\n", sampled, schemaFlags.out)
		return nil
	}

	data, err := schema.EncodeManifest(inferred)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
