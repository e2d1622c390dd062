// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package binclip

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/golang/snappy"
	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bcbinclip/barcode"
	"github.com/grailbio/bcbinclip/encoding/fastq"
)

// RunFiles runs the pipeline over the files named in opts: it loads the
// whitelist, opens R1 (and R2, which turns on paired mode), writes the
// bins under opts.OutputDir and, if opts.SummaryPath is set, the run
// summary.
func RunFiles(ctx context.Context, opts Opts) (stats *Stats, err error) {
	if opts.WhitelistPath == "" || opts.R1Path == "" {
		return nil, errors.E(errors.Invalid, "whitelist and R1 paths are required")
	}
	whitelist, err := barcode.LoadWhitelist(ctx, opts.WhitelistPath)
	if err != nil {
		return nil, err
	}
	var once errors.Once
	defer func() {
		once.Set(err)
		err = once.Err()
		if err != nil {
			stats = nil
		}
	}()
	in1, err := openInput(ctx, opts.R1Path)
	if err != nil {
		return nil, err
	}
	defer func() { once.Set(in1.Close()) }()

	var src Source
	if opts.R2Path != "" {
		in2, err := openInput(ctx, opts.R2Path)
		if err != nil {
			return nil, err
		}
		defer func() { once.Set(in2.Close()) }()
		opts.Paired = true
		src = fastq.NewPairScanner(in1, in2, fastq.All)
	} else {
		opts.Paired = false
		src = SingleSource(fastq.NewScanner(in1, fastq.All))
	}
	if err = makeLocalDir(opts.OutputDir); err != nil {
		return nil, err
	}
	log.Printf("binning %s%s into %s", opts.R1Path, pairSuffix(opts.R2Path), opts.OutputDir)
	if stats, err = Run(ctx, src, whitelist, opts, nil); err != nil {
		return nil, err
	}
	if opts.SummaryPath != "" {
		if err = writeSummaryFile(ctx, opts.SummaryPath, stats); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

// makeLocalDir creates dir if it is a local path. Object stores need no
// directories.
func makeLocalDir(dir string) error {
	if dir == "" {
		return nil
	}
	if strings.Contains(dir, "://") {
		return nil
	}
	return os.MkdirAll(dir, 0777)
}

func pairSuffix(r2 string) string {
	if r2 == "" {
		return ""
	}
	return ", " + r2
}

// inputFile is an open FASTQ input. Reads return decompressed data.
type inputFile struct {
	io.Reader
	ctx context.Context
	f   file.File
	// u is the decompressor, if any.
	u io.ReadCloser
}

// openInput opens a FASTQ file. Snappy-framed files (.sz) and the
// formats known to grailbio/base/compress are decompressed.
func openInput(ctx context.Context, path string) (*inputFile, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	in := &inputFile{Reader: f.Reader(ctx), ctx: ctx, f: f}
	if strings.HasSuffix(path, ".sz") {
		in.Reader = snappy.NewReader(in.Reader)
	} else if u := compress.NewReaderPath(in.Reader, f.Name()); u != nil {
		in.Reader, in.u = u, u
	}
	return in, nil
}

// Close closes the decompressor, which may report corruption, and the
// file.
func (in *inputFile) Close() error {
	var e errors.Once
	if in.u != nil {
		e.Set(in.u.Close())
	}
	e.Set(in.f.Close(in.ctx))
	return e.Err()
}

func writeSummaryFile(ctx context.Context, path string, stats *Stats) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	if err := stats.WriteSummary(out.Writer(ctx)); err != nil {
		out.Close(ctx) // nolint: errcheck
		return errors.E(err, path)
	}
	return out.Close(ctx)
}
