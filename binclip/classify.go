// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package binclip

import (
	"github.com/grailbio/bcbinclip/barcode"
	"github.com/grailbio/bcbinclip/encoding/fastq"
	"github.com/pkg/errors"
)

// Classification is the outcome of classifying one read.
type Classification struct {
	Status     barcode.Status
	ID         string
	Mismatches int
	// TrimOffset is the number of leading bases Trim removes from an
	// assigned read: barcode offset + barcode length + adapter length.
	// It is set for every status.
	TrimOffset int
}

// Classifier extracts the barcode region of a read and resolves it
// against an Index. A Classifier holds no mutable state; the partitioned
// pipeline still gives each partition its own.
type Classifier struct {
	idx        *barcode.Index
	offset     int
	length     int
	trimOffset int
}

// NewClassifier returns a classifier for the barcode geometry in opts.
func NewClassifier(idx *barcode.Index, opts Opts) (*Classifier, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	length, err := opts.regionLength(idx)
	if err != nil {
		return nil, err
	}
	return &Classifier{
		idx:        idx,
		offset:     opts.BarcodeOffset,
		length:     length,
		trimOffset: opts.BarcodeOffset + length + opts.AdapterLength,
	}, nil
}

// TrimOffset returns the number of bases clipped from assigned reads.
func (c *Classifier) TrimOffset() int { return c.trimOffset }

// Classify resolves the barcode of r. It returns an error with cause
// ErrMalformedRead if the read does not cover the barcode region or its
// sequence and quality lengths differ.
func (c *Classifier) Classify(r *fastq.Read) (Classification, error) {
	end := c.offset + c.length
	if len(r.Seq) < end {
		return Classification{TrimOffset: c.trimOffset},
			errors.Wrapf(ErrMalformedRead, "%s: length %d, barcode ends at %d", r.Name(), len(r.Seq), end)
	}
	if len(r.Seq) != len(r.Qual) {
		return Classification{TrimOffset: c.trimOffset},
			errors.Wrapf(ErrMalformedRead, "%s: sequence length %d, quality length %d", r.Name(), len(r.Seq), len(r.Qual))
	}
	m := c.idx.Lookup(r.Seq[c.offset:end])
	return Classification{
		Status:     m.Status,
		ID:         m.ID,
		Mismatches: m.Mismatches,
		TrimOffset: c.trimOffset,
	}, nil
}

// Trim clips an assigned read. Exact and Corrected reads lose their first
// c.TrimOffset bases of sequence and quality; Ambiguous and NoMatch reads
// are returned unchanged. Trim returns an error with cause ErrTrimRange if
// an assigned read is shorter than the trim offset.
func Trim(r *fastq.Read, c Classification) (fastq.Read, error) {
	switch c.Status {
	case barcode.Exact, barcode.Corrected:
	default:
		return *r, nil
	}
	if c.TrimOffset < 0 || c.TrimOffset > len(r.Seq) || c.TrimOffset > len(r.Qual) {
		return *r, errors.Wrapf(ErrTrimRange, "%s: length %d, trim offset %d", r.Name(), len(r.Seq), c.TrimOffset)
	}
	return r.Clip(c.TrimOffset), nil
}
