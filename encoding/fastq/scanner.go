package fastq

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when an invalid FASTQ file is encountered.
	ErrInvalid = errors.New("invalid FASTQ file")
	// ErrDiscordant is returned when two underlying FASTQ files are discordant.
	ErrDiscordant = errors.New("discordant FASTQ pairs")
)

// MaxLineSize bounds the length of a single FASTQ line.
const MaxLineSize = 16 << 20

// A Read is a FASTQ read, comprising an ID, sequence, line 3
// ("unknown"), and a quality string.
type Read struct {
	ID, Seq, Unk, Qual string
}

// Trim cuts the read and quality lengths to at most n.
func (r *Read) Trim(n int) {
	if n < len(r.Seq) {
		r.Seq = r.Seq[:n]
	}
	if n < len(r.Qual) {
		r.Qual = r.Qual[:n]
	}
}

// Clip returns a copy of r with the first n bases of the sequence and
// quality removed. The ID and line 3 are kept. Clip panics if n exceeds the
// sequence or quality length.
func (r *Read) Clip(n int) Read {
	return Read{ID: r.ID, Seq: r.Seq[n:], Unk: r.Unk, Qual: r.Qual[n:]}
}

// Name returns the read name: the ID without the leading '@' and without
// the comment that follows the first space.
func (r *Read) Name() string {
	id := r.ID
	if len(id) > 0 && id[0] == '@' {
		id = id[1:]
	}
	for i := 0; i < len(id); i++ {
		if id[i] == ' ' || id[i] == '\t' {
			return id[:i]
		}
	}
	return id
}

var errEOF = errors.New("eof")

// Scanner reads FASTQ records one at a time. Scanners are not
// threadsafe.
//
// Scanner requires ID lines to begin with "@" and line 3 to begin with
// "+". It does not check that sequence and quality have equal length;
// callers that care do so themselves.
type Scanner struct {
	b      *bufio.Scanner
	err    error
	fields Field
	n      int // records scanned
}

// Field enumerates FASTQ fields. It is used to specify fields to read in
// NewScanner.
type Field uint

const (
	// ID causes the Read.ID field to be filled
	ID Field = 1 << iota
	// Seq causes the Read.Seq field to be filled
	Seq
	// Unk causes the Read.Unk field to be filled
	Unk
	// Qual causes the Read.Qual field to be filled
	Qual
	// All equals ID|Seq|Unk|Qual.
	All = ID | Seq | Unk | Qual
)

// NewScanner constructs a new Scanner that reads raw FASTQ data from the
// provided reader. Fields is a bitset of the fields to read.
func NewScanner(r io.Reader, fields Field) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(make([]byte, 0, 64<<10), MaxLineSize)
	return &Scanner{b: b, fields: fields}
}

// Scan the next read into the provided read. Scan returns false at the
// end of the stream or on error, and never returns true afterwards. Check
// Err to tell the two apart.
func (f *Scanner) Scan(read *Read) bool {
	if f.err != nil {
		return false
	}
	if !f.b.Scan() {
		if f.err = f.b.Err(); f.err == nil {
			f.err = errEOF
		}
		return false
	}
	f.n++
	id := f.b.Bytes()
	if len(id) == 0 || id[0] != '@' {
		f.err = errors.Wrapf(ErrInvalid, "record %d: ID line does not start with '@'", f.n)
		return false
	}
	if f.fields&ID != 0 {
		read.ID = string(id)
	}
	if !f.line() {
		return false
	}
	if f.fields&Seq != 0 {
		read.Seq = f.b.Text()
	}
	if !f.line() {
		return false
	}
	unk := f.b.Bytes()
	if len(unk) == 0 || unk[0] != '+' {
		f.err = errors.Wrapf(ErrInvalid, "record %d: line 3 does not start with '+'", f.n)
		return false
	}
	if f.fields&Unk != 0 {
		read.Unk = string(unk)
	}
	if !f.line() {
		return false
	}
	if f.fields&Qual != 0 {
		read.Qual = f.b.Text()
	}
	return true
}

func (f *Scanner) line() bool {
	if f.b.Scan() {
		return true
	}
	if f.err = f.b.Err(); f.err == nil {
		f.err = errors.Wrapf(ErrShort, "record %d", f.n)
	}
	return false
}

// Count returns the number of records scanned so far, including a
// partial record that caused an error.
func (f *Scanner) Count() int { return f.n }

// Err returns the scanning error, if any. Format errors have ErrShort or
// ErrInvalid as their cause.
func (f *Scanner) Err() error {
	if f.err == errEOF {
		return nil
	}
	return f.err
}

// PairScanner composes a pair of scanners to scan a pair of FASTQ
// streams in lockstep.
type PairScanner struct {
	r1, r2 *Scanner
	err    error
}

// NewPairScanner creates a new FASTQ pair scanner from the provided
// R1 and R2 readers.
func NewPairScanner(r1, r2 io.Reader, fields Field) *PairScanner {
	return &PairScanner{
		r1: NewScanner(r1, fields),
		r2: NewScanner(r2, fields),
	}
}

// Scan scans the next read pair into r1, r2. It returns false at the end
// of either stream or on error; if one stream ends before the other, Err
// returns ErrDiscordant.
func (p *PairScanner) Scan(r1, r2 *Read) bool {
	ok1 := p.r1.Scan(r1)
	ok2 := p.r2.Scan(r2)
	if ok1 != ok2 && p.err == nil {
		p.err = errors.Wrapf(ErrDiscordant, "after %d pairs", min(p.r1.Count(), p.r2.Count()))
	}
	return ok1 && ok2
}

// Err returns the scanning error, if any. It should be checked
// after Scan returns false.
func (p *PairScanner) Err() error {
	if err := p.r1.Err(); err != nil {
		return errors.Wrap(err, "R1")
	}
	if err := p.r2.Err(); err != nil {
		return errors.Wrap(err, "R2")
	}
	return p.err
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
