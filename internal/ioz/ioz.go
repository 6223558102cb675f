// Package ioz opens MRT archive files transparently, decompressing
// gzip/.z, bzip2, and xz streams on the fly, per spec §6's extension table.
//
// gzip and xz decompression use the pack's ecosystem libraries
// (klauspost/compress, grounded on pobradovic08-route-beacon-ri and
// galpt-cake-stats; ulikunitz/xz, grounded on the jhkimqd-chaos-utils
// manifest) rather than the standard library's compress/gzip, matching what
// the rest of the retrieval pack reaches for. bzip2 is the one exception:
// compress/bzip2 (stdlib) is used because no repo anywhere in the pack
// imports an ecosystem bzip2 decoder, and the standard library's decoder is
// read-only anyway (bzip2 has no streaming encoder requirement here).
package ioz

import (
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// Open opens name (or returns stdin wrapped in a no-op closer if name is
// "-" or ""), transparently decompressing based on its extension.
func Open(name string) (io.ReadCloser, error) {
	if name == "" || name == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".gz", ".z":
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("ioz: %s: %w", name, err)
		}
		return &closerChain{r: gz, closers: []io.Closer{gz, f}}, nil
	case ".bz2":
		return &closerChain{r: bzip2.NewReader(f), closers: []io.Closer{f}}, nil
	case ".xz":
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("ioz: %s: %w", name, err)
		}
		return &closerChain{r: xr, closers: []io.Closer{f}}, nil
	default:
		return f, nil
	}
}

// DisplayName returns the name used in diagnostics for a file argument: the
// literal path, or "(stdin)" for the empty/"-" sentinel.
func DisplayName(name string) string {
	if name == "" || name == "-" {
		return "(stdin)"
	}
	return name
}

// closerChain lets a decompressor's own Close (if any) run before the
// underlying file's, closing in the reverse order they were opened.
type closerChain struct {
	r       io.Reader
	closers []io.Closer
}

func (c *closerChain) Read(p []byte) (int, error) { return c.r.Read(p) }

func (c *closerChain) Close() error {
	var firstErr error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
