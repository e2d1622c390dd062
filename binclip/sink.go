// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package binclip

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/pgzip"
)

// Codec is the encoding of bin outputs. All codecs remain valid under
// concatenation of independently encoded streams.
type Codec int

const (
	// Plain is uncompressed FASTQ.
	Plain Codec = iota
	// Gzip is gzip-compressed FASTQ, one member per stream.
	Gzip
	// Snappy is snappy-framed FASTQ.
	Snappy
)

func (c Codec) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Snappy:
		return "snappy"
	default:
		return "plain"
	}
}

// CodecForPath returns the codec implied by a file name or suffix.
func CodecForPath(path string) Codec {
	switch {
	case strings.HasSuffix(path, ".gz"):
		return Gzip
	case strings.HasSuffix(path, ".sz"):
		return Snappy
	}
	return Plain
}

// pgzipBlockSize is the block size handed to pgzip.
const pgzipBlockSize = 1 << 20

// NewWriter returns a writer that encodes into w. Closing it flushes the
// encoder but does not close w. Threads > 1 selects the parallel gzip
// encoder.
func (c Codec) NewWriter(w io.Writer, threads int) (io.WriteCloser, error) {
	switch c {
	case Gzip:
		if threads > 1 {
			zw := pgzip.NewWriter(w)
			if err := zw.SetConcurrency(pgzipBlockSize, threads); err != nil {
				return nil, err
			}
			return zw, nil
		}
		return gzip.NewWriter(w), nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	}
	return nopCloser{w}, nil
}

// reset points enc, a writer returned by NewWriter, at w. The stream enc
// was writing must have been closed. Encoder state is reused.
func (c Codec) reset(enc io.WriteCloser, w io.Writer, threads int) error {
	switch e := enc.(type) {
	case *gzip.Writer:
		e.Reset(w)
	case *pgzip.Writer:
		// Reset restores the default concurrency.
		e.Reset(w)
		return e.SetConcurrency(pgzipBlockSize, threads)
	case *snappy.Writer:
		e.Reset(w)
	default:
		return fmt.Errorf("%v encoder %T cannot be reset", c, enc)
	}
	return nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// OpenFunc opens the raw destination of one bin. Mate is 0 for
// single-end data, and 1 or 2 for paired data. The returned writer
// receives encoded bytes.
type OpenFunc func(ctx context.Context, bin string, mate int) (io.WriteCloser, error)

// OutputPath returns the path of a bin output:
// <dir>/<prefix><bin>[_R<mate>]<suffix>.
func OutputPath(dir, prefix, suffix, bin string, mate int) string {
	name := prefix + bin
	if mate > 0 {
		name += fmt.Sprintf("_R%d", mate)
	}
	name += suffix
	if dir == "" {
		return name
	}
	return strings.TrimSuffix(dir, "/") + "/" + name
}

// FileOpener returns an OpenFunc that creates bin outputs through
// grailbio/base/file, so dir may name any registered file system.
func FileOpener(dir, prefix, suffix string) OpenFunc {
	return func(ctx context.Context, bin string, mate int) (io.WriteCloser, error) {
		path := OutputPath(dir, prefix, suffix, bin, mate)
		f, err := file.Create(ctx, path)
		if err != nil {
			return nil, err
		}
		return &fileSink{ctx: ctx, f: f, w: f.Writer(ctx)}, nil
	}
}

type fileSink struct {
	ctx context.Context
	f   file.File
	w   io.Writer
}

func (s *fileSink) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *fileSink) Close() error { return s.f.Close(s.ctx) }

// sinkKey names one destination of a bin writer.
type sinkKey struct {
	bin  string
	mate int
}

// MemoryOpener is an OpenFunc that keeps every destination in memory. It
// is used by partitions and tests. A MemoryOpener is not threadsafe.
type MemoryOpener struct {
	bufs map[sinkKey]*bytes.Buffer
}

// NewMemoryOpener returns an empty MemoryOpener.
func NewMemoryOpener() *MemoryOpener {
	return &MemoryOpener{bufs: make(map[sinkKey]*bytes.Buffer)}
}

// Open implements OpenFunc.
func (m *MemoryOpener) Open(_ context.Context, bin string, mate int) (io.WriteCloser, error) {
	key := sinkKey{bin, mate}
	if _, ok := m.bufs[key]; ok {
		return nil, fmt.Errorf("bin %s mate %d opened twice", bin, mate)
	}
	b := new(bytes.Buffer)
	m.bufs[key] = b
	return nopCloser{b}, nil
}

// Bytes returns the bytes written to a destination, or nil if it was
// never opened.
func (m *MemoryOpener) Bytes(bin string, mate int) []byte {
	if b, ok := m.bufs[sinkKey{bin, mate}]; ok {
		return b.Bytes()
	}
	return nil
}
