package binclip

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"testing"

	"github.com/grailbio/bcbinclip/barcode"
	"github.com/grailbio/bcbinclip/encoding/fastq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockEncoderReuse(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, test := range []struct {
		codec   Codec
		threads int
	}{
		{Plain, 1},
		{Gzip, 1},
		{Gzip, 2},
		{Snappy, 1},
	} {
		enc := blockEncoder{codec: test.codec, threads: test.threads}
		for i := 0; i < 4; i++ {
			reads := randomReads(rng, 10+i*50, 0)
			block, err := enc.encode([]byte(fastqText(t, reads)))
			require.NoError(t, err)
			assert.Equal(t, reads, decode(t, test.codec, block), "%v/%d block %d", test.codec, test.threads, i)
		}
	}
}

// plateWhitelist returns n distinct random barcodes of the given length.
func plateWhitelist(rng *rand.Rand, n, length int) []barcode.Barcode {
	var (
		barcodes []barcode.Barcode
		seen     = map[string]bool{}
	)
	for len(barcodes) < n {
		seq := make([]byte, length)
		for i := range seq {
			seq[i] = bases[rng.Intn(4)]
		}
		if seen[string(seq)] {
			continue
		}
		seen[string(seq)] = true
		barcodes = append(barcodes, barcode.Barcode{ID: fmt.Sprintf("well%02d", len(barcodes)), Seq: string(seq)})
	}
	return barcodes
}

func TestPartitionWorkerAllocs(t *testing.T) {
	const (
		nBarcodes = 96
		nPairs    = 100
	)
	rng := rand.New(rand.NewSource(5))
	whitelist := plateWhitelist(rng, nBarcodes, 8)
	idx, err := barcode.NewIndex(whitelist, 1)
	require.NoError(t, err)

	part := &partition{r1: make([]fastq.Read, nPairs), r2: make([]fastq.Read, nPairs)}
	for i := range part.r1 {
		part.r1[i] = newRead(fmt.Sprintf("pair%d/1", i), whitelist[i%nBarcodes].Seq+"TTGACCATGAGGACTTACAG")
		part.r2[i] = newRead(fmt.Sprintf("pair%d/2", i), "GATTACAGATTACAGATTACA")
	}
	opts := DefaultOpts.withDefaults()
	opts.Paired = true
	pw, err := newPartitionWorker(idx, opts, Gzip)
	require.NoError(t, err)

	ctx := context.Background()
	// The first partition creates the worker's encoder.
	_, err = pw.process(ctx, part)
	require.NoError(t, err)

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	res, err := pw.process(ctx, part)
	runtime.ReadMemStats(&after)
	require.NoError(t, err)

	allocated := after.TotalAlloc - before.TotalAlloc
	assert.True(t, allocated < 16<<20, "one partition allocated %d bytes", allocated)

	assert.Equal(t, int64(nPairs), res.stats.Total)
	assert.Equal(t, int64(nPairs), res.stats.Exact)
	assert.Equal(t, 2*nBarcodes, len(res.blocks))
	for _, b := range res.stats.Bins {
		if b.Reads == 0 {
			continue
		}
		for _, mate := range opts.mates() {
			got := decode(t, Gzip, res.blocks[sinkKey{b.ID, mate}])
			assert.Equal(t, int(b.Reads), len(got), "%s/%d", b.ID, mate)
		}
	}
}
