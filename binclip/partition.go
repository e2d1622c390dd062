// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package binclip

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/syncqueue"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/bcbinclip/barcode"
	"github.com/grailbio/bcbinclip/encoding/fastq"
)

// partition is a contiguous run of reads from the source.
type partition struct {
	index  int
	r1, r2 []fastq.Read
}

// partitionResult holds the encoded bins of one processed partition. Bins
// without reads have no block.
type partitionResult struct {
	index  int
	blocks map[sinkKey][]byte
	stats  Stats
}

// outputs are the final bin destinations of a partitioned run. They
// receive already encoded partition blocks.
type outputs struct {
	codec   Codec
	keys    []sinkKey
	dests   map[sinkKey]io.WriteCloser
	written map[sinkKey]bool
}

func openOutputs(ctx context.Context, bins []string, mates []int, open OpenFunc, codec Codec) (*outputs, error) {
	o := &outputs{
		codec:   codec,
		dests:   make(map[sinkKey]io.WriteCloser),
		written: make(map[sinkKey]bool),
	}
	for _, bin := range bins {
		for _, mate := range mates {
			w, err := open(ctx, bin, mate)
			if err != nil {
				o.close(false) // nolint: errcheck
				return nil, errors.E(err, "open bin", bin)
			}
			key := sinkKey{bin, mate}
			o.keys = append(o.keys, key)
			o.dests[key] = w
		}
	}
	return o, nil
}

// commit appends the encoded blocks of res. Bins without reads in res are
// left alone so that outputs don't accumulate empty streams.
func (o *outputs) commit(res *partitionResult, mates []int) error {
	for _, b := range res.stats.Bins {
		if b.Reads == 0 {
			continue
		}
		for _, mate := range mates {
			key := sinkKey{b.ID, mate}
			if _, err := o.dests[key].Write(res.blocks[key]); err != nil {
				return errors.E(err, "write bin", b.ID)
			}
			o.written[key] = true
		}
	}
	return nil
}

// close closes every destination. If finish is set, destinations that
// never received a block first get an empty encoded stream, so that
// every output decodes.
func (o *outputs) close(finish bool) error {
	var e errors.Once
	for _, key := range o.keys {
		w := o.dests[key]
		if finish && !o.written[key] {
			enc, err := o.codec.NewWriter(w, 1)
			if err == nil {
				err = enc.Close()
			}
			e.Set(err)
		}
		if err := w.Close(); err != nil {
			log.Error.Printf("close bin %s: %v", key.bin, err)
			e.Set(err)
		}
	}
	return e.Err()
}

// runPartitioned cuts src into partitions of opts.PartitionSize reads,
// processes up to opts.Parallelism partitions at a time, and appends
// their encoded bins to the outputs in partition order.
func runPartitioned(ctx context.Context, src Source, idx *barcode.Index, opts Opts, open OpenFunc) (*Stats, error) {
	var (
		codec = CodecForPath(opts.OutputSuffix)
		mates = opts.mates()
		bins  = append(idx.IDs(), barcode.Unmatched)
	)
	out, err := openOutputs(ctx, bins, mates, open, codec)
	if err != nil {
		return nil, err
	}
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		queue     = syncqueue.NewOrderedQueue(opts.QueueLength)
		parts     = make(chan *partition, opts.Parallelism)
		total     = Stats{Bins: make([]BinStats, len(bins))}
		readErr   error
		commitErr error
		wg        sync.WaitGroup
	)
	for i, id := range bins {
		total.Bins[i].ID = id
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer close(parts)
		readErr = readPartitions(ctx, src, opts, parts)
		if readErr != nil {
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		commitErr = commitPartitions(queue, out, mates, &total)
		if commitErr != nil {
			cancel()
			queue.Close(commitErr) // nolint: errcheck
		}
	}()
	err = traverse.Each(opts.Parallelism, func(int) error {
		pw, err := newPartitionWorker(idx, opts, codec)
		if err != nil {
			cancel()
			queue.Close(err) // nolint: errcheck
			return err
		}
		for part := range parts {
			res, err := pw.process(ctx, part)
			if err == nil {
				err = queue.Insert(part.index, res)
			}
			if err != nil {
				cancel()
				queue.Close(err) // nolint: errcheck
				return err
			}
		}
		return nil
	})
	queue.Close(nil) // nolint: errcheck
	wg.Wait()

	var e errors.Once
	e.Set(readErr)
	e.Set(commitErr)
	e.Set(err)
	e.Set(parent.Err())
	e.Set(out.close(e.Err() == nil))
	if err := e.Err(); err != nil {
		return nil, err
	}
	return &total, nil
}

// readPartitions sends successive partitions of src to parts until src is
// exhausted or ctx is done.
func readPartitions(ctx context.Context, src Source, opts Opts, parts chan<- *partition) error {
	var scratch fastq.Read
	for index := 0; ; index++ {
		part := &partition{index: index, r1: make([]fastq.Read, opts.PartitionSize)}
		if opts.Paired {
			part.r2 = make([]fastq.Read, opts.PartitionSize)
		}
		n := 0
		for n < opts.PartitionSize {
			r2 := &scratch
			if opts.Paired {
				r2 = &part.r2[n]
			}
			if !src.Scan(&part.r1[n], r2) {
				break
			}
			n++
		}
		part.r1 = part.r1[:n]
		if opts.Paired {
			part.r2 = part.r2[:n]
		}
		if n > 0 {
			select {
			case parts <- part:
			case <-ctx.Done():
				return nil
			}
		}
		if n < opts.PartitionSize {
			return src.Err()
		}
	}
}

// partitionWorker processes the partitions of one traverse.Each shard.
// Records are written as plain FASTQ into per-partition memory and each
// non-empty bin is then encoded by the worker's single encoder, which is
// reset for every block. Encoder memory thus depends on the number of
// workers, not on the number of bins.
type partitionWorker struct {
	ids   []string
	mates []int
	p     *processor
	enc   blockEncoder
}

func newPartitionWorker(idx *barcode.Index, opts Opts, codec Codec) (*partitionWorker, error) {
	p, err := newProcessor(idx, opts)
	if err != nil {
		return nil, err
	}
	return &partitionWorker{
		ids:   idx.IDs(),
		mates: opts.mates(),
		p:     p,
		enc:   blockEncoder{codec: codec, threads: opts.CompressThreads},
	}, nil
}

func (pw *partitionWorker) process(ctx context.Context, part *partition) (*partitionResult, error) {
	pw.p.stats = Stats{}
	mem := NewMemoryOpener()
	w, err := newBinWriter(ctx, pw.ids, len(pw.mates), mem.Open, Plain, 1, 0)
	if err != nil {
		return nil, err
	}
	for i := range part.r1 {
		var r2 *fastq.Read
		if part.r2 != nil {
			r2 = &part.r2[i]
		}
		if err = pw.p.process(&part.r1[i], r2, w); err != nil {
			break
		}
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, errors.E(err, fmt.Sprintf("partition %d", part.index))
	}
	res := &partitionResult{
		index:  part.index,
		blocks: make(map[sinkKey][]byte),
		stats:  pw.p.stats,
	}
	res.stats.Bins = w.Bins()
	for _, b := range res.stats.Bins {
		if b.Reads == 0 {
			continue
		}
		for _, mate := range pw.mates {
			block, err := pw.enc.encode(mem.Bytes(b.ID, mate))
			if err != nil {
				return nil, errors.E(err, fmt.Sprintf("partition %d: encode bin %s", part.index, b.ID))
			}
			res.blocks[sinkKey{b.ID, mate}] = block
		}
	}
	log.Debug.Printf("partition %d: %v", part.index, &res.stats)
	return res, nil
}

// blockEncoder encodes independent blocks with one long-lived encoder.
type blockEncoder struct {
	codec   Codec
	threads int
	enc     io.WriteCloser
}

// encode returns p as one complete encoded stream. Plain blocks are
// returned as is.
func (b *blockEncoder) encode(p []byte) ([]byte, error) {
	if b.codec == Plain {
		return p, nil
	}
	out := new(bytes.Buffer)
	if b.enc == nil {
		enc, err := b.codec.NewWriter(out, b.threads)
		if err != nil {
			return nil, err
		}
		b.enc = enc
	} else if err := b.codec.reset(b.enc, out, b.threads); err != nil {
		return nil, err
	}
	if _, err := b.enc.Write(p); err != nil {
		b.enc.Close() // nolint: errcheck
		return nil, err
	}
	if err := b.enc.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// commitPartitions appends processed partitions to out in index order
// until the queue is closed.
func commitPartitions(queue *syncqueue.OrderedQueue, out *outputs, mates []int, total *Stats) error {
	for {
		entry, ok, err := queue.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		res := entry.(*partitionResult)
		if err := out.commit(res, mates); err != nil {
			return err
		}
		before := total.Total / progressInterval
		total.Merge(&res.stats)
		if total.Total/progressInterval != before {
			log.Printf("processed %d reads", total.Total)
		}
	}
}
