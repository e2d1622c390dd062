package binclip

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/golang/snappy"
	"github.com/grailbio/bcbinclip/barcode"
	"github.com/grailbio/bcbinclip/encoding/fastq"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decode returns the FASTQ records in an encoded bin.
func decode(t *testing.T, codec Codec, data []byte) []fastq.Read {
	var r io.Reader = bytes.NewReader(data)
	switch codec {
	case Gzip:
		zr, err := gzip.NewReader(r)
		require.NoError(t, err)
		r = zr
	case Snappy:
		r = snappy.NewReader(r)
	}
	var (
		s     = fastq.NewScanner(r, fastq.All)
		read  fastq.Read
		reads []fastq.Read
	)
	for s.Scan(&read) {
		reads = append(reads, read)
	}
	require.NoError(t, s.Err())
	return reads
}

func TestBinWriter(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryOpener()
	w, err := NewBinWriter(ctx, []string{"A", "B"}, 1, mem.Open, Plain, 1)
	require.NoError(t, err)

	r1, r2, r3 := newRead("r1", "ACGT"), newRead("r2", "GG"), newRead("r3", "T")
	require.NoError(t, w.Write("A", &r1))
	require.NoError(t, w.Write("", &r2))
	require.NoError(t, w.Write("A", &r3))
	assert.Error(t, w.Write("C", &r1))
	assert.Error(t, w.Write("A", &r1, &r2))

	bins := w.Bins()
	require.Equal(t, 3, len(bins))
	assert.Equal(t, "A", bins[0].ID)
	assert.Equal(t, int64(2), bins[0].Reads)
	assert.Equal(t, int64(5), bins[0].Bases)
	assert.Equal(t, "B", bins[1].ID)
	assert.Equal(t, int64(0), bins[1].Reads)
	assert.Equal(t, uint64(0), bins[1].Fingerprint)
	assert.Equal(t, barcode.Unmatched, bins[2].ID)
	assert.Equal(t, int64(1), bins[2].Reads)

	require.NoError(t, w.Close())
	assert.Equal(t, []fastq.Read{r1, r3}, decode(t, Plain, mem.Bytes("A", 0)))
	assert.Equal(t, []fastq.Read{r2}, decode(t, Plain, mem.Bytes(barcode.Unmatched, 0)))
	assert.Equal(t, 0, len(mem.Bytes("B", 0)))

	assert.Equal(t, ErrWriterClosed, w.Write("A", &r1))
	assert.NoError(t, w.Close())
}

func TestBinWriterFingerprint(t *testing.T) {
	ctx := context.Background()
	reads := []fastq.Read{newRead("a", "ACGT"), newRead("b", "TTTT"), newRead("c", "G")}
	fingerprint := func(order []int) uint64 {
		w, err := NewBinWriter(ctx, []string{"A"}, 1, NewMemoryOpener().Open, Plain, 1)
		require.NoError(t, err)
		for _, i := range order {
			require.NoError(t, w.Write("A", &reads[i]))
		}
		require.NoError(t, w.Close())
		return w.Bins()[0].Fingerprint
	}
	assert.Equal(t, fingerprint([]int{0, 1, 2}), fingerprint([]int{2, 0, 1}))
	assert.NotEqual(t, fingerprint([]int{0, 1, 2}), fingerprint([]int{0, 1}))
}

func TestBinWriterPaired(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryOpener()
	w, err := NewBinWriter(ctx, []string{"A"}, 2, mem.Open, Plain, 1)
	require.NoError(t, err)
	m1, m2 := newRead("p/1", "ACGT"), newRead("p/2", "TT")
	assert.Error(t, w.Write("A", &m1))
	require.NoError(t, w.Write("A", &m1, &m2))
	require.NoError(t, w.Close())
	bins := w.Bins()
	assert.Equal(t, int64(1), bins[0].Reads)
	assert.Equal(t, int64(6), bins[0].Bases)
	assert.Equal(t, []fastq.Read{m1}, decode(t, Plain, mem.Bytes("A", 1)))
	assert.Equal(t, []fastq.Read{m2}, decode(t, Plain, mem.Bytes("A", 2)))
	assert.Nil(t, mem.Bytes("A", 0))
}

type closeCounter struct {
	bytes.Buffer
	closed *int
}

func (c *closeCounter) Close() error {
	*c.closed++
	return nil
}

func TestBinWriterOpenError(t *testing.T) {
	closed := 0
	opened := 0
	open := func(_ context.Context, bin string, mate int) (io.WriteCloser, error) {
		if bin == "B" {
			return nil, fmt.Errorf("cannot open %s", bin)
		}
		opened++
		return &closeCounter{closed: &closed}, nil
	}
	_, err := NewBinWriter(context.Background(), []string{"A", "B"}, 1, open, Gzip, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot open B")
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
}

func TestCodecs(t *testing.T) {
	ctx := context.Background()
	first := []fastq.Read{newRead("a", "ACGT"), newRead("b", "TTTT")}
	second := []fastq.Read{newRead("c", "GGGG")}
	encode := func(codec Codec, threads int, reads []fastq.Read) []byte {
		mem := NewMemoryOpener()
		w, err := NewBinWriter(ctx, []string{"A"}, 1, mem.Open, codec, threads)
		require.NoError(t, err)
		for i := range reads {
			require.NoError(t, w.Write("A", &reads[i]))
		}
		require.NoError(t, w.Close())
		return mem.Bytes("A", 0)
	}
	for _, test := range []struct {
		codec   Codec
		threads int
	}{
		{Plain, 1},
		{Gzip, 1},
		{Gzip, 4},
		{Snappy, 1},
	} {
		a := encode(test.codec, test.threads, first)
		b := encode(test.codec, test.threads, second)
		assert.Equal(t, first, decode(t, test.codec, a), "%v", test.codec)
		// Independently encoded streams concatenate.
		concat := append(append([]byte(nil), a...), b...)
		assert.Equal(t, append(append([]fastq.Read(nil), first...), second...),
			decode(t, test.codec, concat), "%v/%d", test.codec, test.threads)
	}
}

func TestCodecForPath(t *testing.T) {
	assert.Equal(t, Gzip, CodecForPath("x.fastq.gz"))
	assert.Equal(t, Snappy, CodecForPath(".fastq.sz"))
	assert.Equal(t, Plain, CodecForPath(".fastq"))
	assert.Equal(t, "out/p_A_R1.fastq.gz", OutputPath("out", "p_", ".fastq.gz", "A", 1))
	assert.Equal(t, "A.fastq", OutputPath("", "", ".fastq", "A", 0))
}
