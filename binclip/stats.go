// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package binclip

import (
	"fmt"
	"io"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// Stats summarizes a run.
type Stats struct {
	// Total is the number of reads (or pairs) received, including skipped
	// ones.
	Total     int64
	Exact     int64
	Corrected int64
	Ambiguous int64
	NoMatch   int64
	// Skipped = SkippedMalformed + SkippedTrimRange. Skipped reads are not
	// written to any bin.
	Skipped          int64
	SkippedMalformed int64
	SkippedTrimRange int64

	// Bins holds per-bin counts in whitelist order, unmatched last.
	Bins []BinStats
}

// Assigned returns the number of reads written to a barcode bin.
func (s *Stats) Assigned() int64 { return s.Exact + s.Corrected }

// Merge adds the counts in other to s. Bins are matched by position and
// must have the same IDs, unless s has no bins yet.
func (s *Stats) Merge(other *Stats) {
	s.Total += other.Total
	s.Exact += other.Exact
	s.Corrected += other.Corrected
	s.Ambiguous += other.Ambiguous
	s.NoMatch += other.NoMatch
	s.Skipped += other.Skipped
	s.SkippedMalformed += other.SkippedMalformed
	s.SkippedTrimRange += other.SkippedTrimRange
	if len(s.Bins) == 0 {
		s.Bins = append([]BinStats(nil), other.Bins...)
		return
	}
	if len(s.Bins) != len(other.Bins) {
		log.Panicf("merge stats: %d bins vs %d", len(s.Bins), len(other.Bins))
	}
	for i := range other.Bins {
		b, o := &s.Bins[i], &other.Bins[i]
		if b.ID != o.ID {
			log.Panicf("merge stats: bin %d is %s vs %s", i, b.ID, o.ID)
		}
		b.Reads += o.Reads
		b.Bases += o.Bases
		b.Fingerprint += o.Fingerprint
	}
}

func (s *Stats) String() string {
	return fmt.Sprintf("total %d, exact %d, corrected %d, ambiguous %d, nomatch %d, skipped %d (malformed %d, trim range %d)",
		s.Total, s.Exact, s.Corrected, s.Ambiguous, s.NoMatch, s.Skipped, s.SkippedMalformed, s.SkippedTrimRange)
}

// WriteSummary writes s as two TSV tables: read counts by status, then
// per-bin counts.
func (s *Stats) WriteSummary(w io.Writer) error {
	tw := tsv.NewWriter(w)
	tw.WriteString("#STATUS\tREADS")
	if err := tw.EndLine(); err != nil {
		return err
	}
	for _, row := range []struct {
		name string
		n    int64
	}{
		{"total", s.Total},
		{"exact", s.Exact},
		{"corrected", s.Corrected},
		{"ambiguous", s.Ambiguous},
		{"nomatch", s.NoMatch},
		{"skipped", s.Skipped},
		{"skipped_malformed", s.SkippedMalformed},
		{"skipped_trim_range", s.SkippedTrimRange},
	} {
		tw.WriteString(row.name)
		tw.WriteInt64(row.n)
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	tw.WriteString("#BIN\tREADS\tBASES\tFINGERPRINT")
	if err := tw.EndLine(); err != nil {
		return err
	}
	for _, b := range s.Bins {
		tw.WriteString(b.ID)
		tw.WriteInt64(b.Reads)
		tw.WriteInt64(b.Bases)
		tw.WriteString(fmt.Sprintf("%016x", b.Fingerprint))
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}
