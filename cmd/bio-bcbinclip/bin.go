package main

import (
	"flag"
	"fmt"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/bcbinclip/binclip"
	"v.io/x/lib/cmdline"
)

// binFlags registers the flags of the bin command on fs.
func binFlags(fs *flag.FlagSet, opts *binclip.Opts) {
	fs.StringVar(&opts.WhitelistPath, "whitelist", "", "TSV file of barcode id and sequence")
	fs.StringVar(&opts.R1Path, "r1", "", "R1 FASTQ file, optionally compressed")
	fs.StringVar(&opts.R2Path, "r2", "", "R2 FASTQ file. If set, reads are binned as pairs")
	fs.StringVar(&opts.OutputDir, "output-dir", "", "Directory of the bin files")
	fs.StringVar(&opts.OutputPrefix, "prefix", "", "Prefix of every bin file name")
	fs.StringVar(&opts.OutputSuffix, "suffix", opts.OutputSuffix,
		"Suffix of every bin file name. It selects the encoding: .gz for gzip, .sz for snappy, anything else for plain FASTQ")
	fs.IntVar(&opts.MaxMismatches, "k", opts.MaxMismatches, "Maximum number of barcode substitutions to correct")
	fs.IntVar(&opts.BarcodeOffset, "offset", opts.BarcodeOffset, "0-based position of the barcode in the read")
	fs.IntVar(&opts.BarcodeLength, "length", opts.BarcodeLength, "Barcode length; 0 means the whitelist length")
	fs.IntVar(&opts.AdapterLength, "adapter", opts.AdapterLength, "Number of adapter bases after the barcode to clip")
	fs.IntVar(&opts.BarcodeMate, "barcode-mate", opts.BarcodeMate, "Mate (1 or 2) that carries the barcode in paired mode")
	fs.IntVar(&opts.Parallelism, "parallelism", opts.Parallelism, "Number of partitions processed concurrently")
	fs.IntVar(&opts.PartitionSize, "partition-size", opts.PartitionSize, "Reads per partition when parallelism > 1")
	fs.IntVar(&opts.CompressThreads, "compress-threads", opts.CompressThreads, "gzip threads per bin file")
	fs.StringVar(&opts.SummaryPath, "summary", "", "Path of the TSV run summary. If empty, the summary is printed")
}

func newCmdBin() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "bin",
		Short: "Assign reads to barcode bins and clip barcodes",
		Long: `
Bin reads each read's barcode at -offset, corrects up to -k substitutions
against the whitelist and writes the read, with the barcode and -adapter
bases removed, to <output-dir>/<prefix><id>[_R<mate>]<suffix>. Reads whose
barcode is ambiguous or matches nothing are written unclipped to the
"unmatched" bin.`,
	}
	opts := binclip.DefaultOpts
	binFlags(&cmd.Flags, &opts)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return fmt.Errorf("bin takes no arguments, but got %v", argv)
		}
		if opts.WhitelistPath == "" || opts.R1Path == "" || opts.OutputDir == "" {
			return env.UsageErrorf("-whitelist, -r1 and -output-dir are required")
		}
		stats, err := binclip.RunFiles(vcontext.Background(), opts)
		if err != nil {
			return err
		}
		if opts.SummaryPath == "" {
			return stats.WriteSummary(env.Stdout)
		}
		return nil
	})
	return cmd
}
