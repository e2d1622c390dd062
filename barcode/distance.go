// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package barcode

import (
	"fmt"
	"sort"
)

// Hamming returns the number of positions at which a and b differ. The
// strings must have equal length.
func Hamming(a, b string) (int, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("hamming: unequal lengths %d and %d: '%s', '%s'", len(a), len(b), a, b)
	}
	d := 0
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			d++
		}
	}
	return d, nil
}

// Collision is a pair of barcodes whose correction balls intersect.
type Collision struct {
	A, B     Barcode
	Distance int
}

func (c Collision) String() string {
	return fmt.Sprintf("%s(%s) %s(%s) distance=%d", c.A.ID, c.A.Seq, c.B.ID, c.B.Seq, c.Distance)
}

// Collisions returns every pair of barcodes whose radius-k correction balls
// intersect, i.e. whose Hamming distance is at most 2k. Pairs are sorted by
// distance, then by whitelist position. The barcodes must share one length.
func Collisions(barcodes []Barcode, k int) ([]Collision, error) {
	var r []Collision
	err := eachPair(barcodes, func(i, j, d int) {
		if d <= 2*k {
			r = append(r, Collision{A: barcodes[i], B: barcodes[j], Distance: d})
		}
	})
	sort.SliceStable(r, func(i, j int) bool { return r[i].Distance < r[j].Distance })
	return r, err
}

// MinDistance returns the smallest pairwise Hamming distance in the
// whitelist. It returns -1 if there are fewer than two barcodes.
func MinDistance(barcodes []Barcode) (int, error) {
	min := -1
	err := eachPair(barcodes, func(i, j, d int) {
		if min < 0 || d < min {
			min = d
		}
	})
	return min, err
}

// MaxSafeMismatches returns the largest k for which no two correction balls
// intersect, so that no sequence is ever ambiguous. For a single barcode it
// returns its length minus one.
func MaxSafeMismatches(barcodes []Barcode) (int, error) {
	min, err := MinDistance(barcodes)
	if err != nil {
		return 0, err
	}
	if min < 0 {
		if len(barcodes) == 0 {
			return 0, nil
		}
		return barcodes[0].Len() - 1, nil
	}
	if min == 0 {
		return 0, nil
	}
	return (min - 1) / 2, nil
}

func eachPair(barcodes []Barcode, fn func(i, j, d int)) error {
	for i := range barcodes {
		for j := i + 1; j < len(barcodes); j++ {
			d, err := Hamming(barcodes[i].Seq, barcodes[j].Seq)
			if err != nil {
				return err
			}
			fn(i, j, d)
		}
	}
	return nil
}
