package barcode_test

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/bcbinclip/barcode"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

const whitelist = `# sample	barcode
S1	acgtac

S2	ACGTGA
S3	TTGCAA
`

func TestReadWhitelist(t *testing.T) {
	barcodes, err := barcode.ReadWhitelist(strings.NewReader(whitelist))
	assert.NoError(t, err)
	expect.EQ(t, barcodes, []barcode.Barcode{
		{ID: "S1", Seq: "ACGTAC"},
		{ID: "S2", Seq: "ACGTGA"},
		{ID: "S3", Seq: "TTGCAA"},
	})
	n, err := barcode.Validate(barcodes)
	expect.NoError(t, err)
	expect.EQ(t, n, 6)
}

func TestReadWhitelistBadRow(t *testing.T) {
	_, err := barcode.ReadWhitelist(strings.NewReader("S1\tACGT\nS2\n"))
	expect.True(t, err != nil)
	expect.True(t, barcode.IsConfigError(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		barcodes []barcode.Barcode
		errText  string
	}{
		{[]barcode.Barcode{{"A", "ACGT"}, {"B", "ACGT"}}, "share sequence"},
		{[]barcode.Barcode{{"A", "ACGT"}, {"A", "TGCA"}}, "duplicate barcode id"},
		{[]barcode.Barcode{{"A", "ACGT"}, {"B", "TGCAA"}}, "has length"},
		{[]barcode.Barcode{{"A", "ACXT"}}, "invalid base"},
		{[]barcode.Barcode{{"A", ""}}, "empty sequence"},
		{[]barcode.Barcode{{barcode.Unmatched, "ACGT"}}, "reserved"},
		{nil, "empty barcode whitelist"},
	}
	for _, test := range tests {
		_, err := barcode.Validate(test.barcodes)
		if err == nil {
			t.Errorf("%v: expected error", test.barcodes)
			continue
		}
		expect.True(t, strings.Contains(err.Error(), test.errText), "%v: %v", test.barcodes, err)
		expect.True(t, barcode.IsConfigError(err))
	}
}

func TestLoadWhitelist(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	plain := filepath.Join(tmpdir, "whitelist.tsv")
	assert.NoError(t, ioutil.WriteFile(plain, []byte(whitelist), 0600))

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(whitelist))
	assert.NoError(t, err)
	assert.NoError(t, gz.Close())
	compressed := filepath.Join(tmpdir, "whitelist.tsv.gz")
	assert.NoError(t, ioutil.WriteFile(compressed, buf.Bytes(), 0600))

	ctx := vcontext.Background()
	for _, path := range []string{plain, compressed} {
		barcodes, err := barcode.LoadWhitelist(ctx, path)
		assert.NoError(t, err, path)
		expect.EQ(t, len(barcodes), 3, path)
		expect.EQ(t, barcodes[0], barcode.Barcode{ID: "S1", Seq: "ACGTAC"}, path)
	}

	_, err = barcode.LoadWhitelist(ctx, filepath.Join(tmpdir, "missing.tsv"))
	expect.True(t, err != nil)

	corrupt := append([]byte(nil), buf.Bytes()...)
	corrupt[len(corrupt)-8] ^= 0xff // CRC
	corruptPath := filepath.Join(tmpdir, "corrupt.tsv.gz")
	assert.NoError(t, ioutil.WriteFile(corruptPath, corrupt, 0600))
	barcodes, err := barcode.LoadWhitelist(ctx, corruptPath)
	expect.True(t, err != nil)
	expect.EQ(t, len(barcodes), 0)
}
