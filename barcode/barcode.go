// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package barcode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// Unmatched is the bin name reserved for reads that could not be assigned
// to any barcode. No whitelist entry may use it as an ID.
const Unmatched = "unmatched"

// Barcode is one whitelist entry: a sample identifier and the fixed-length
// nucleotide sequence that identifies it.
type Barcode struct {
	ID  string
	Seq string
}

// Len returns the length of the barcode sequence.
func (b Barcode) Len() int { return len(b.Seq) }

// whitelistRow is the on-disk layout of a whitelist line.
type whitelistRow struct {
	ID  string
	Seq string
}

// ReadWhitelist parses a tab-separated whitelist of "id<TAB>sequence"
// lines. Lines starting with '#' are comments. Sequences are upper-cased;
// the entries are not validated here, see Validate.
func ReadWhitelist(r io.Reader) ([]Barcode, error) {
	reader := tsv.NewReader(bufio.NewReader(r))
	reader.Comment = '#'
	var (
		barcodes []Barcode
		row      whitelistRow
	)
	for {
		if err := reader.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, "read whitelist", err)
		}
		barcodes = append(barcodes, Barcode{
			ID:  strings.TrimSpace(row.ID),
			Seq: strings.ToUpper(strings.TrimSpace(row.Seq)),
		})
	}
	return barcodes, nil
}

// LoadWhitelist reads the whitelist at path. Compressed files are
// decompressed based on their extension.
func LoadWhitelist(ctx context.Context, path string) (barcodes []Barcode, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			barcodes, err = nil, e
		}
	}()
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		defer func() {
			if e := u.Close(); e != nil && err == nil {
				barcodes, err = nil, errors.E(e, path)
			}
		}()
		r = u
	}
	if barcodes, err = ReadWhitelist(r); err != nil {
		return nil, errors.E(err, path)
	}
	return barcodes, nil
}

// Validate checks that the barcodes form a usable whitelist and returns
// their common length. All errors are of kind errors.Invalid.
func Validate(barcodes []Barcode) (int, error) {
	if len(barcodes) == 0 {
		return 0, errors.E(errors.Invalid, "empty barcode whitelist")
	}
	var (
		length = barcodes[0].Len()
		ids    = make(map[string]bool, len(barcodes))
		seqs   = make(map[string]string, len(barcodes))
	)
	for _, b := range barcodes {
		if err := validateID(b.ID); err != nil {
			return 0, err
		}
		if ids[b.ID] {
			return 0, errors.E(errors.Invalid, "duplicate barcode id", b.ID)
		}
		ids[b.ID] = true
		if b.Len() == 0 {
			return 0, errors.E(errors.Invalid, "empty sequence for barcode", b.ID)
		}
		if b.Len() != length {
			return 0, errors.E(errors.Invalid, fmt.Sprintf("barcode %s has length %d, other barcodes have length %d",
				b.ID, b.Len(), length))
		}
		for i := 0; i < len(b.Seq); i++ {
			if !isACGT(b.Seq[i]) {
				return 0, errors.E(errors.Invalid, "invalid base", string(b.Seq[i:i+1]), "in barcode", b.ID)
			}
		}
		if other, ok := seqs[b.Seq]; ok {
			return 0, errors.E(errors.Invalid, "barcodes", other, "and", b.ID, "share sequence", b.Seq)
		}
		seqs[b.Seq] = b.ID
	}
	return length, nil
}

// validateID rejects IDs that cannot name an output bin.
func validateID(id string) error {
	switch {
	case id == "":
		return errors.E(errors.Invalid, "empty barcode id")
	case id == Unmatched:
		return errors.E(errors.Invalid, "barcode id", id, "is reserved")
	case strings.ContainsAny(id, "/\\ \t"):
		return errors.E(errors.Invalid, "barcode id", id, "contains a path separator or whitespace")
	case id == "." || id == "..":
		return errors.E(errors.Invalid, "invalid barcode id", id)
	}
	return nil
}

// IsConfigError reports whether err was caused by an invalid whitelist or
// run configuration.
func IsConfigError(err error) bool {
	return errors.Is(errors.Invalid, err)
}

func isACGT(c byte) bool {
	switch c {
	case 'A', 'C', 'G', 'T':
		return true
	}
	return false
}
