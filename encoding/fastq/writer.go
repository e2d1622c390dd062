package fastq

import "io"

// Writer is a FASTQ file writer. Each record is assembled in an internal
// buffer and handed to the underlying writer in a single Write call, so
// Writer composes well with unbuffered destinations.
type Writer struct {
	w   io.Writer
	buf []byte
	err error
	n   int
}

// NewWriter constructs a new FASTQ writer
// that writes reads to the underlying writer w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write writes the read r in FASTQ format. An empty line 3 is written as
// "+". Once a write fails, Write returns the same error without writing.
func (w *Writer) Write(r *Read) error {
	if w.err != nil {
		return w.err
	}
	unk := r.Unk
	if unk == "" {
		unk = "+"
	}
	b := w.buf[:0]
	b = append(b, r.ID...)
	b = append(b, '\n')
	b = append(b, r.Seq...)
	b = append(b, '\n')
	b = append(b, unk...)
	b = append(b, '\n')
	b = append(b, r.Qual...)
	b = append(b, '\n')
	w.buf = b
	if _, w.err = w.w.Write(b); w.err == nil {
		w.n++
	}
	return w.err
}

// Count returns the number of records written successfully.
func (w *Writer) Count() int { return w.n }
