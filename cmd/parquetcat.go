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
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/spf13/cobra"
)

var parquetCatCmd = &cobra.Command{
	Use:   "parquet-cat",
	Short: "Print a parquet file's rows as JSON lines",
	RunE: func(c *cobra.Command, _ []string) error {
		filename, err := c.Flags().GetString("file")
		if err != nil {
			return err
		}
		limit, err := c.Flags().GetInt("limit")
		if err != nil {
			return err
		}
		schemaOnly, err := c.Flags().GetBool("schema")
		if err != nil {
			return err
		}
		return runParquetCat(c.OutOrStdout(), filename, limit, schemaOnly)
	},
}

func init() {
	parquetCatCmd.Flags().String("file", "", "parquet file to read")
	if err := parquetCatCmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Errorf("failed to mark file flag as required: %w", err))
	}
	parquetCatCmd.Flags().Int("limit", 0, "maximum rows to print (0 for unlimited)")
	parquetCatCmd.Flags().Bool("schema", false, "print the file schema instead of rows")

	rootCmd.AddCommand(parquetCatCmd)
}

func runParquetCat(out io.Writer, filename string, limit int, schemaOnly bool) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("open %s: %w", filename, err)
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", filename, err)
	}

	pf, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		return fmt.Errorf("open parquet file: %w", err)
	}

	if schemaOnly {
		fmt.Fprintln(out, pf.Schema().String())
		return nil
	}

	reader := parquet.NewGenericReader[map[string]any](pf, pf.Schema())
	defer func() { _ = reader.Close() }()

	enc := json.NewEncoder(out)
	printed := 0
	batchSize := 1000
	if limit > 0 && limit < batchSize {
		batchSize = limit
	}

	for limit <= 0 || printed < limit {
		rows := make([]map[string]any, batchSize)
		for i := range rows {
			rows[i] = make(map[string]any)
		}

		n, err := reader.Read(rows)
		if err != nil && err != io.EOF {
			return fmt.Errorf("read parquet rows: %w", err)
		}
		if n == 0 {
			break
		}

		for i := 0; i < n; i++ {
			if err := enc.Encode(rows[i]); err != nil {
				return fmt.Errorf("encode row: %w", err)
			}
			printed++
			if limit > 0 && printed >= limit {
				return nil
			}
		}
		if err == io.EOF {
			break
		}
	}
	return nil
}
