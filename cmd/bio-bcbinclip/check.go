package main

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/bcbinclip/barcode"
	"v.io/x/lib/cmdline"
)

func newCmdCheck() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "check",
		Short: "Report barcode pairs whose correction balls overlap",
		Long: `
Check prints the minimum pairwise Hamming distance of the whitelist, the
largest number of substitutions that can be corrected without ambiguity,
and every pair of barcodes within distance 2k. It fails if there is such a
pair.`,
	}
	whitelist := cmd.Flags.String("whitelist", "", "TSV file of barcode id and sequence")
	k := cmd.Flags.Int("k", 1, "Number of substitutions to check for")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return fmt.Errorf("check takes no arguments, but got %v", argv)
		}
		if *whitelist == "" {
			return env.UsageErrorf("-whitelist is required")
		}
		return check(vcontext.Background(), env.Stdout, *whitelist, *k)
	})
	return cmd
}

func check(ctx context.Context, w io.Writer, path string, k int) error {
	barcodes, err := barcode.LoadWhitelist(ctx, path)
	if err != nil {
		return err
	}
	if _, err = barcode.Validate(barcodes); err != nil {
		return err
	}
	min, err := barcode.MinDistance(barcodes)
	if err != nil {
		return err
	}
	safe, err := barcode.MaxSafeMismatches(barcodes)
	if err != nil {
		return err
	}
	collisions, err := barcode.Collisions(barcodes, k)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "barcodes\t%d\n", len(barcodes))
	fmt.Fprintf(w, "min_distance\t%d\n", min)
	fmt.Fprintf(w, "max_safe_k\t%d\n", safe)
	for _, c := range collisions {
		fmt.Fprintf(w, "collision\t%s\n", c)
	}
	if len(collisions) > 0 {
		return fmt.Errorf("%d barcode pairs collide at k=%d; use k<=%d", len(collisions), k, safe)
	}
	return nil
}
