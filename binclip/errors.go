// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package binclip

import "github.com/pkg/errors"

var (
	// ErrMalformedRead is the cause of classification errors for reads that
	// are shorter than the barcode region, or whose sequence and quality
	// lengths differ. Such reads are skipped.
	ErrMalformedRead = errors.New("malformed read")
	// ErrTrimRange is the cause of trimming errors for reads shorter than
	// the trim offset. Such reads are skipped.
	ErrTrimRange = errors.New("trim offset exceeds read length")
	// ErrWriterClosed is returned by BinWriter.Write after Close.
	ErrWriterClosed = errors.New("bin writer is closed")
)

// IsSkip reports whether err is a per-read error after which the run
// continues with the next read.
func IsSkip(err error) bool {
	switch errors.Cause(err) {
	case ErrMalformedRead, ErrTrimRange:
		return true
	}
	return false
}
