// bio-bcbinclip assigns barcoded FASTQ reads to per-sample bins, correcting
// barcode substitutions and clipping the barcode and adapter from assigned
// reads.
//
// Usage:
//
//   bio-bcbinclip bin -whitelist barcodes.tsv -r1 in_R1.fastq.gz [-r2 in_R2.fastq.gz] -output-dir out
//   bio-bcbinclip check -whitelist barcodes.tsv -k 1
//
// The whitelist is a TSV file of "id<TAB>sequence" rows; lines starting
// with '#' are ignored.
package main

import (
	"github.com/grailbio/base/grail"
	"v.io/x/lib/cmdline"
)

func main() {
	shutdown := grail.Init()
	defer shutdown()
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bio-bcbinclip",
			Short:    "Demultiplex barcoded FASTQ reads into per-sample bins",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdBin(),
				newCmdCheck(),
			},
		})
}
