// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package binclip

import (
	"bufio"
	"context"
	"fmt"
	"io"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bcbinclip/barcode"
	"github.com/grailbio/bcbinclip/encoding/fastq"
)

const binBufferSize = 256 << 10

// BinStats counts the records written to one bin.
type BinStats struct {
	ID string
	// Reads is the number of records; a pair counts once.
	Reads int64
	// Bases is the total sequence length written, over all mates.
	Bases int64
	// Fingerprint is the wrapping sum of the farm fingerprints of the
	// bin's records. It does not depend on record order.
	Fingerprint uint64
}

type destination struct {
	raw io.WriteCloser
	enc io.WriteCloser
	buf *bufio.Writer
	fq  *fastq.Writer
}

func (d *destination) close() error {
	var e errors.Once
	if d.buf != nil {
		e.Set(d.buf.Flush())
	}
	e.Set(d.enc.Close())
	e.Set(d.raw.Close())
	return e.Err()
}

type bin struct {
	stats BinStats
	dests []*destination
}

// BinWriter writes FASTQ records to per-barcode bins and the unmatched
// bin. A BinWriter is not threadsafe.
type BinWriter struct {
	mates   []int
	bins    []*bin // whitelist order, unmatched last
	byID    map[string]*bin
	scratch []byte
	closed  bool
}

// NewBinWriter opens one destination per (bin, mate) for the given
// barcode IDs plus the unmatched bin, encoding records with codec. Mates
// is 1 for single-end and 2 for paired data. If any open fails, the
// destinations already opened are closed.
func NewBinWriter(ctx context.Context, ids []string, mates int, open OpenFunc, codec Codec, threads int) (*BinWriter, error) {
	return newBinWriter(ctx, ids, mates, open, codec, threads, binBufferSize)
}

// newBinWriter is NewBinWriter with a configurable buffer between records
// and encoder. A bufSize of zero writes records straight to the encoder.
func newBinWriter(ctx context.Context, ids []string, mates int, open OpenFunc, codec Codec, threads, bufSize int) (*BinWriter, error) {
	if mates != 1 && mates != 2 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("mates must be 1 or 2, got %d", mates))
	}
	w := &BinWriter{byID: make(map[string]*bin, len(ids))}
	if mates == 1 {
		w.mates = []int{0}
	} else {
		w.mates = []int{1, 2}
	}
	for _, id := range append(append([]string(nil), ids...), barcode.Unmatched) {
		if _, ok := w.byID[id]; ok {
			w.Close() // nolint: errcheck
			return nil, errors.E(errors.Invalid, "duplicate bin", id)
		}
		b := &bin{stats: BinStats{ID: id}}
		w.bins = append(w.bins, b)
		w.byID[id] = b
		for _, mate := range w.mates {
			d, err := openDestination(ctx, open, id, mate, codec, threads, bufSize)
			if err != nil {
				w.Close() // nolint: errcheck
				return nil, errors.E(err, "open bin", id)
			}
			b.dests = append(b.dests, d)
		}
	}
	return w, nil
}

func openDestination(ctx context.Context, open OpenFunc, id string, mate int, codec Codec, threads, bufSize int) (*destination, error) {
	raw, err := open(ctx, id, mate)
	if err != nil {
		return nil, err
	}
	enc, err := codec.NewWriter(raw, threads)
	if err != nil {
		raw.Close() // nolint: errcheck
		return nil, err
	}
	d := &destination{raw: raw, enc: enc}
	if bufSize > 0 {
		d.buf = bufio.NewWriterSize(enc, bufSize)
		d.fq = fastq.NewWriter(d.buf)
	} else {
		d.fq = fastq.NewWriter(enc)
	}
	return d, nil
}

// Write appends a record to bin id; the empty id is the unmatched bin.
// Paired writers take both mates in order.
func (w *BinWriter) Write(id string, reads ...*fastq.Read) error {
	if w.closed {
		return ErrWriterClosed
	}
	if len(reads) != len(w.mates) {
		return errors.E(errors.Invalid, fmt.Sprintf("expected %d reads per record, got %d", len(w.mates), len(reads)))
	}
	if id == "" {
		id = barcode.Unmatched
	}
	b, ok := w.byID[id]
	if !ok {
		return errors.E(errors.NotExist, "unknown bin", id)
	}
	for i, r := range reads {
		if err := b.dests[i].fq.Write(r); err != nil {
			return errors.E(err, "write bin", id)
		}
		b.stats.Bases += int64(len(r.Seq))
		b.stats.Fingerprint += w.fingerprint(r)
	}
	b.stats.Reads++
	return nil
}

func (w *BinWriter) fingerprint(r *fastq.Read) uint64 {
	s := w.scratch[:0]
	s = append(s, r.ID...)
	s = append(s, '\n')
	s = append(s, r.Seq...)
	s = append(s, '\n')
	s = append(s, r.Qual...)
	w.scratch = s
	return farm.Fingerprint64(s)
}

// Bins returns a snapshot of the per-bin statistics, in whitelist order
// with the unmatched bin last.
func (w *BinWriter) Bins() []BinStats {
	stats := make([]BinStats, len(w.bins))
	for i, b := range w.bins {
		stats[i] = b.stats
	}
	return stats
}

// Close flushes and closes every destination and returns the first
// error. Calling Close again is a no-op.
func (w *BinWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	var e errors.Once
	for _, b := range w.bins {
		for _, d := range b.dests {
			if err := d.close(); err != nil {
				log.Error.Printf("close bin %s: %v", b.stats.ID, err)
				e.Set(err)
			}
		}
	}
	return e.Err()
}
