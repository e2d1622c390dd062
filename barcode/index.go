// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package barcode

import (
	"fmt"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// Status is the outcome of looking up a candidate barcode.
type Status uint8

const (
	// NoMatch means the candidate is not within the correction radius of
	// any barcode.
	NoMatch Status = iota
	// Exact means the candidate is a whitelisted sequence.
	Exact
	// Corrected means the candidate is within the correction radius of
	// exactly one barcode.
	Corrected
	// Ambiguous means the candidate is within the correction radius of two
	// or more barcodes.
	Ambiguous
)

func (s Status) String() string {
	switch s {
	case Exact:
		return "exact"
	case Corrected:
		return "corrected"
	case Ambiguous:
		return "ambiguous"
	default:
		return "nomatch"
	}
}

// Match is the result of Index.Lookup. ID and Mismatches are set only for
// Exact and Corrected matches.
type Match struct {
	Status     Status
	ID         string
	Mismatches int
}

// substitutions are the bases tried at each position when expanding a
// correction ball. N is included so that a no-call counts as a mismatch.
var substitutions = []byte{'A', 'C', 'G', 'T', 'N'}

// ambiguous marks an index entry reached from more than one barcode.
const ambiguous = -1

type indexEntry struct {
	barcode int32 // index into Index.barcodes, or ambiguous
	edits   int32
}

// Index maps every sequence within Hamming distance k of a whitelisted
// barcode to that barcode. Sequences reachable from more than one barcode
// are marked ambiguous. An Index is immutable once built and may be shared
// by any number of goroutines.
type Index struct {
	barcodes []Barcode
	length   int
	k        int
	nAmbig   int

	// table contains every string in the union of the correction balls.
	table map[string]indexEntry
}

// NewIndex builds an index over the given whitelist allowing up to k
// substitutions. It returns an errors.Invalid error if the whitelist is
// not valid (see Validate) or k is out of range.
func NewIndex(barcodes []Barcode, k int) (*Index, error) {
	length, err := Validate(barcodes)
	if err != nil {
		return nil, err
	}
	if k < 0 || k >= length {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("mismatch threshold %d out of range for barcodes of length %d", k, length))
	}
	log.Debug.Printf("building barcode index: %d barcodes, length %d, k=%d", len(barcodes), length, k)
	idx := &Index{
		barcodes: append([]Barcode(nil), barcodes...),
		length:   length,
		k:        k,
		table:    make(map[string]indexEntry, len(barcodes)*ballSize(length, k)),
	}
	// Canonical sequences go in first; a whitelisted sequence always
	// resolves to itself.
	for i, b := range idx.barcodes {
		idx.table[b.Seq] = indexEntry{barcode: int32(i)}
	}
	for i, b := range idx.barcodes {
		expandBall(b.Seq, k, func(seq string, edits int) {
			idx.insert(seq, int32(i), int32(edits))
		})
	}
	log.Debug.Printf("barcode index: %d keys, %d ambiguous", len(idx.table), idx.nAmbig)
	return idx, nil
}

func (idx *Index) insert(seq string, barcode, edits int32) {
	e, ok := idx.table[seq]
	switch {
	case !ok:
		idx.table[seq] = indexEntry{barcode: barcode, edits: edits}
	case e.barcode == ambiguous:
	case e.edits == 0:
		// Canonical membership wins.
	case e.barcode == barcode:
		if edits < e.edits {
			idx.table[seq] = indexEntry{barcode: barcode, edits: edits}
		}
	default:
		idx.table[seq] = indexEntry{barcode: ambiguous}
		idx.nAmbig++
	}
}

// Lookup resolves a candidate barcode sequence. Lookup is case
// insensitive.
func (idx *Index) Lookup(candidate string) Match {
	if len(candidate) != idx.length {
		return Match{Status: NoMatch}
	}
	e, ok := idx.table[candidate]
	if !ok {
		if !hasLower(candidate) {
			return Match{Status: NoMatch}
		}
		if e, ok = idx.table[strings.ToUpper(candidate)]; !ok {
			return Match{Status: NoMatch}
		}
	}
	if e.barcode == ambiguous {
		return Match{Status: Ambiguous}
	}
	m := Match{ID: idx.barcodes[e.barcode].ID, Mismatches: int(e.edits)}
	if e.edits == 0 {
		m.Status = Exact
	} else {
		m.Status = Corrected
	}
	return m
}

// Len returns the common length of the indexed barcodes.
func (idx *Index) Len() int { return idx.length }

// MaxMismatches returns the correction radius k.
func (idx *Index) MaxMismatches() int { return idx.k }

// Barcodes returns the indexed whitelist in its original order. The
// caller must not modify the result.
func (idx *Index) Barcodes() []Barcode { return idx.barcodes }

// IDs returns the barcode IDs in whitelist order.
func (idx *Index) IDs() []string {
	ids := make([]string, len(idx.barcodes))
	for i, b := range idx.barcodes {
		ids[i] = b.ID
	}
	return ids
}

// Size returns the number of sequences in the index.
func (idx *Index) Size() int { return len(idx.table) }

// AmbiguousKeys returns the number of sequences that resolve to more than
// one barcode.
func (idx *Index) AmbiguousKeys() int { return idx.nAmbig }

// expandBall calls fn for every sequence at Hamming distance 1..k from
// seq, with its distance. Each sequence is visited once: substitutions are
// applied at strictly increasing positions.
func expandBall(seq string, k int, fn func(string, int)) {
	buf := []byte(seq)
	var rec func(start, edits int)
	rec = func(start, edits int) {
		if edits == k {
			return
		}
		for i := start; i < len(buf); i++ {
			orig := buf[i]
			for _, c := range substitutions {
				if c == orig {
					continue
				}
				buf[i] = c
				fn(string(buf), edits+1)
				rec(i+1, edits+1)
			}
			buf[i] = orig
		}
	}
	rec(0, 0)
}

// ballSize returns the number of sequences within distance k of a
// sequence of the given length, including the sequence itself.
func ballSize(length, k int) int {
	var (
		n     = 1
		binom = 1
		pow   = 1
	)
	for d := 1; d <= k; d++ {
		binom = binom * (length - d + 1) / d
		pow *= len(substitutions) - 1
		n += binom * pow
	}
	return n
}

func hasLower(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'a' && s[i] <= 'z' {
			return true
		}
	}
	return false
}
