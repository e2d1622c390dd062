// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package binclip

import (
	"fmt"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/bcbinclip/barcode"
)

// Opts configures a binning run.
type Opts struct {
	// WhitelistPath, R1Path and R2Path name the inputs of RunFiles. Paths
	// may be local or any scheme registered with grailbio/base/file, and
	// may be compressed. R2Path is empty for single-end data.
	WhitelistPath  string
	R1Path, R2Path string
	// SummaryPath, if set, receives the TSV run summary written by
	// RunFiles.
	SummaryPath string

	// MaxMismatches is the correction radius k: a barcode region within
	// Hamming distance k of exactly one whitelisted barcode is assigned to
	// it.
	MaxMismatches int
	// BarcodeOffset is the 0-based position of the barcode in the read.
	BarcodeOffset int
	// BarcodeLength is the length of the barcode region. Zero means the
	// whitelist length; any other value must equal it.
	BarcodeLength int
	// AdapterLength is the number of bases following the barcode that are
	// clipped together with it.
	AdapterLength int

	// Paired is set when the input consists of R1/R2 mates. RunFiles sets
	// it from R2Path.
	Paired bool
	// BarcodeMate is the mate (1 or 2) that carries the barcode in paired
	// mode. Only that mate is clipped.
	BarcodeMate int

	// OutputDir, OutputPrefix and OutputSuffix determine the bin paths:
	// <dir>/<prefix><bin>[_R<mate>]<suffix>. The suffix selects the
	// encoding (see CodecForPath).
	OutputDir    string
	OutputPrefix string
	OutputSuffix string
	// CompressThreads is the number of gzip compression threads of each
	// encoder: one per bin in sequential runs, one per worker in
	// partitioned runs.
	CompressThreads int

	// Parallelism is the number of partitions processed concurrently. One
	// means a plain sequential pass.
	Parallelism int
	// PartitionSize is the number of reads (or pairs) per partition.
	PartitionSize int
	// QueueLength bounds the number of processed partitions waiting to be
	// committed. Zero means 2*Parallelism.
	QueueLength int
}

// DefaultOpts holds the default run options.
var DefaultOpts = Opts{
	MaxMismatches:   1,
	BarcodeMate:     1,
	OutputSuffix:    ".fastq.gz",
	CompressThreads: 1,
	Parallelism:     1,
	PartitionSize:   1 << 16,
}

// Validate checks opts for values that can never work. It returns an
// errors.Invalid error.
func (o *Opts) Validate() error {
	switch {
	case o.MaxMismatches < 0:
		return errors.E(errors.Invalid, fmt.Sprintf("max mismatches must be non-negative, got %d", o.MaxMismatches))
	case o.BarcodeOffset < 0:
		return errors.E(errors.Invalid, fmt.Sprintf("barcode offset must be non-negative, got %d", o.BarcodeOffset))
	case o.BarcodeLength < 0:
		return errors.E(errors.Invalid, fmt.Sprintf("barcode length must be non-negative, got %d", o.BarcodeLength))
	case o.AdapterLength < 0:
		return errors.E(errors.Invalid, fmt.Sprintf("adapter length must be non-negative, got %d", o.AdapterLength))
	case o.Paired && o.BarcodeMate != 1 && o.BarcodeMate != 2:
		return errors.E(errors.Invalid, fmt.Sprintf("barcode mate must be 1 or 2, got %d", o.BarcodeMate))
	case o.Parallelism < 0:
		return errors.E(errors.Invalid, fmt.Sprintf("parallelism must be non-negative, got %d", o.Parallelism))
	case o.Parallelism > 1 && o.PartitionSize <= 0:
		return errors.E(errors.Invalid, fmt.Sprintf("partition size must be positive, got %d", o.PartitionSize))
	case o.QueueLength < 0:
		return errors.E(errors.Invalid, fmt.Sprintf("queue length must be non-negative, got %d", o.QueueLength))
	case o.CompressThreads < 0:
		return errors.E(errors.Invalid, fmt.Sprintf("compress threads must be non-negative, got %d", o.CompressThreads))
	case strings.ContainsAny(o.OutputPrefix, "/\\"):
		return errors.E(errors.Invalid, "output prefix must not contain a path separator:", o.OutputPrefix)
	}
	return nil
}

// withDefaults fills in the zero values that have a natural default.
func (o Opts) withDefaults() Opts {
	if o.Parallelism == 0 {
		o.Parallelism = 1
	}
	if o.QueueLength == 0 {
		o.QueueLength = 2 * o.Parallelism
	}
	if o.CompressThreads == 0 {
		o.CompressThreads = 1
	}
	if !o.Paired {
		o.BarcodeMate = 1
	}
	return o
}

// mates returns the mate numbers of the bin outputs: 0 for single-end
// data, 1 and 2 for pairs.
func (o *Opts) mates() []int {
	if o.Paired {
		return []int{1, 2}
	}
	return []int{0}
}

// regionLength returns the barcode region length for idx.
func (o *Opts) regionLength(idx *barcode.Index) (int, error) {
	if o.BarcodeLength == 0 {
		return idx.Len(), nil
	}
	if o.BarcodeLength != idx.Len() {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("barcode length %d does not match whitelist length %d",
			o.BarcodeLength, idx.Len()))
	}
	return o.BarcodeLength, nil
}
