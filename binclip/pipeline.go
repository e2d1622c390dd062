// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package binclip

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bcbinclip/barcode"
	"github.com/grailbio/bcbinclip/encoding/fastq"
	pkgerrors "github.com/pkg/errors"
)

// progressInterval is the number of reads between progress log lines.
const progressInterval = 1 << 20

// Source yields reads, or read pairs in paired mode. Single-end sources
// leave r2 alone. *fastq.PairScanner implements Source.
type Source interface {
	Scan(r1, r2 *fastq.Read) bool
	Err() error
}

type singleSource struct{ s *fastq.Scanner }

// SingleSource adapts a single-end scanner to Source.
func SingleSource(s *fastq.Scanner) Source { return singleSource{s} }

func (s singleSource) Scan(r1, _ *fastq.Read) bool { return s.s.Scan(r1) }

func (s singleSource) Err() error { return s.s.Err() }

// Run classifies, clips and bins every read of src against whitelist. If
// open is nil, bins are created with FileOpener from the output options.
// Per-read problems are counted in Stats.Skipped; index, source and
// output errors end the run. The bin outputs are closed in every case.
func Run(ctx context.Context, src Source, whitelist []barcode.Barcode, opts Opts, open OpenFunc) (*Stats, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	idx, err := barcode.NewIndex(whitelist, opts.MaxMismatches)
	if err != nil {
		return nil, err
	}
	log.Printf("barcode index: %d barcodes of length %d, k=%d, %d keys, %d ambiguous",
		len(whitelist), idx.Len(), idx.MaxMismatches(), idx.Size(), idx.AmbiguousKeys())
	if open == nil {
		open = FileOpener(opts.OutputDir, opts.OutputPrefix, opts.OutputSuffix)
	}
	var stats *Stats
	if opts.Parallelism > 1 {
		stats, err = runPartitioned(ctx, src, idx, opts, open)
	} else {
		stats, err = runSequential(ctx, src, idx, opts, open)
	}
	if err != nil {
		return nil, err
	}
	log.Printf("binning done: %v", stats)
	return stats, nil
}

func runSequential(ctx context.Context, src Source, idx *barcode.Index, opts Opts, open OpenFunc) (*Stats, error) {
	p, err := newProcessor(idx, opts)
	if err != nil {
		return nil, err
	}
	w, err := NewBinWriter(ctx, idx.IDs(), len(opts.mates()), open,
		CodecForPath(opts.OutputSuffix), opts.CompressThreads)
	if err != nil {
		return nil, err
	}
	var (
		r1, r2 fastq.Read
		e      errors.Once
	)
	for src.Scan(&r1, &r2) {
		if err := p.process(&r1, &r2, w); err != nil {
			e.Set(err)
			break
		}
		if p.stats.Total%progressInterval == 0 {
			log.Printf("processed %d reads", p.stats.Total)
		}
	}
	if e.Err() == nil {
		e.Set(src.Err())
	}
	e.Set(w.Close())
	if err := e.Err(); err != nil {
		return nil, err
	}
	stats := p.stats
	stats.Bins = w.Bins()
	return &stats, nil
}

// processor carries one read at a time through
// classify, trim, write and count.
type processor struct {
	classifier *Classifier
	paired     bool
	mate       int
	stats      Stats
}

func newProcessor(idx *barcode.Index, opts Opts) (*processor, error) {
	c, err := NewClassifier(idx, opts)
	if err != nil {
		return nil, err
	}
	return &processor{classifier: c, paired: opts.Paired, mate: opts.BarcodeMate}, nil
}

func (p *processor) process(r1, r2 *fastq.Read, w *BinWriter) error {
	p.stats.Total++
	bc, other := r1, r2
	if p.paired && p.mate == 2 {
		bc, other = r2, r1
	}
	c, err := p.classifier.Classify(bc)
	if err != nil {
		return p.skip(err)
	}
	clipped, err := Trim(bc, c)
	if err != nil {
		return p.skip(err)
	}
	var id string
	switch c.Status {
	case barcode.Exact:
		p.stats.Exact++
		id = c.ID
	case barcode.Corrected:
		p.stats.Corrected++
		id = c.ID
	case barcode.Ambiguous:
		p.stats.Ambiguous++
	default:
		p.stats.NoMatch++
	}
	switch {
	case !p.paired:
		return w.Write(id, &clipped)
	case p.mate == 2:
		return w.Write(id, other, &clipped)
	default:
		return w.Write(id, &clipped, other)
	}
}

// skip counts a per-read error, or returns it if it is fatal.
func (p *processor) skip(err error) error {
	switch pkgerrors.Cause(err) {
	case ErrMalformedRead:
		p.stats.SkippedMalformed++
	case ErrTrimRange:
		p.stats.SkippedTrimRange++
	default:
		return err
	}
	p.stats.Skipped++
	return nil
}
