package main

import (
	"bytes"
	"flag"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/bcbinclip/binclip"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestBinFlags(t *testing.T) {
	opts := binclip.DefaultOpts
	fs := flag.NewFlagSet("bin", flag.ContinueOnError)
	binFlags(fs, &opts)
	assert.NoError(t, fs.Parse([]string{
		"-whitelist", "w.tsv", "-r1", "a.fq", "-r2", "b.fq", "-output-dir", "out",
		"-k", "2", "-offset", "3", "-adapter", "4", "-barcode-mate", "2",
		"-parallelism", "8", "-suffix", ".fastq.sz",
	}))
	expect.EQ(t, opts.WhitelistPath, "w.tsv")
	expect.EQ(t, opts.R2Path, "b.fq")
	expect.EQ(t, opts.MaxMismatches, 2)
	expect.EQ(t, opts.BarcodeOffset, 3)
	expect.EQ(t, opts.AdapterLength, 4)
	expect.EQ(t, opts.BarcodeMate, 2)
	expect.EQ(t, opts.Parallelism, 8)
	expect.EQ(t, opts.PartitionSize, binclip.DefaultOpts.PartitionSize)
	expect.EQ(t, opts.OutputSuffix, ".fastq.sz")
}

func TestCheck(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	path := filepath.Join(tmpdir, "whitelist.tsv")
	assert.NoError(t, ioutil.WriteFile(path, []byte("A\tAAAAAA\nB\tCCCCCC\nC\tAAAACC\n"), 0600))

	var out bytes.Buffer
	assert.NoError(t, check(ctx, &out, path, 0))
	expect.EQ(t, out.String(), "barcodes\t3\nmin_distance\t2\nmax_safe_k\t0\n")

	out.Reset()
	err := check(ctx, &out, path, 1)
	expect.True(t, err != nil)
	expect.True(t, strings.Contains(out.String(), "collision\tA(AAAAAA) C(AAAACC) distance=2"), out.String())
}
