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

package filereader

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// OpenOptions bundles the per-format shaping knobs for OpenFile.
type OpenOptions struct {
	Delimited        DelimitedOptions
	FixedWidthLayout []FixedWidthColumn
	StartOffset      int64
}

// OpenFile opens path and returns a Reader for the given format. Files
// ending in .gz are decompressed transparently, in which case offset resume
// is not available.
func OpenFile(path string, format Format, opts OpenOptions) (Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var stream io.ReadCloser = file
	gzipped := strings.HasSuffix(path, ".gz")
	if gzipped {
		if opts.StartOffset > 0 {
			_ = file.Close()
			return nil, fmt.Errorf("cannot resume inside gzip stream %s", path)
		}
		gz, err := gzip.NewReader(file)
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("open gzip %s: %w", path, err)
		}
		stream = &gzipReadCloser{gz: gz, file: file}
	}

	switch format {
	case FormatCSV:
		dopts := opts.Delimited
		if dopts.Delimiter == 0 {
			dopts.Delimiter = ','
		}
		dopts.StartOffset = opts.StartOffset
		return NewDelimitedReader(stream, path, dopts)
	case FormatTSV:
		dopts := opts.Delimited
		dopts.Delimiter = '\t'
		dopts.StartOffset = opts.StartOffset
		return NewDelimitedReader(stream, path, dopts)
	case FormatJSONLines:
		return NewJSONLinesReader(stream, path, opts.StartOffset)
	case FormatFixedWidth:
		return NewFixedWidthReader(stream, path, opts.FixedWidthLayout)
	case FormatLegacyBin:
		return NewLegacyBinaryReader(stream, path)
	default:
		drainClose(stream)
		return nil, fmt.Errorf("unsupported input format %q", format)
	}
}

type gzipReadCloser struct {
	gz   *gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipReadCloser) Close() error {
	gzErr := g.gz.Close()
	fileErr := g.file.Close()
	if gzErr != nil {
		return gzErr
	}
	return fileErr
}
