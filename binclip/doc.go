/*Package binclip demultiplexes barcoded sequencing reads into per-sample
  bins and clips the barcode off each assigned read.

  For every read (or read pair) the pipeline:

    1) extracts the barcode region [offset, offset+length) from the read
       that carries the barcode,
    2) resolves it against a barcode.Index built once from the whitelist
       (exact, corrected, ambiguous or no match),
    3) for exact and corrected matches, removes the first
       offset+length+adapter bases from sequence and quality,
    4) writes the read to the bin of the matched barcode, or, untrimmed,
       to the "unmatched" bin.

  Reads that are too short for the barcode region, or too short to be
  clipped, are counted as skipped and the run continues. Errors building
  the index or opening and closing outputs abort the run.

  With Opts.Parallelism > 1 the input is cut into contiguous partitions
  that are classified concurrently against the shared index. Each
  partition encodes its own per-bin output in memory; the encoded blocks
  are appended to the final outputs in partition order, so every bin is
  the concatenation of its partitions' records in input order. Plain
  FASTQ, gzip and snappy-framed outputs all stay valid under
  concatenation.
*/
package binclip
