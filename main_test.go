package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregLibert/travel-card/internal/config"
	"github.com/gregLibert/travel-card/pkg/card"
	"github.com/gregLibert/travel-card/pkg/hsl"
	"github.com/gregLibert/travel-card/pkg/tlv"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.RetryDelay = 0
	return cfg
}

func TestSampleThenDecode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.tlv")
	cfg := testConfig()

	var out bytes.Buffer
	root := newRootCmd(cfg)
	root.SetOut(&out)
	root.SetArgs([]string{"sample", path, "--log-level", "error"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "=== CARD DUMP ===")

	out.Reset()
	root = newRootCmd(cfg)
	root.SetOut(&out)
	root.SetArgs([]string{"decode", path, "--log-level", "error"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	report := out.String()
	assert.Contains(t, report, " HSL CARD")
	assert.Contains(t, report, "Card number: 924620001234567890")
	assert.Contains(t, report, "Value: 15.50 €")
	assert.Contains(t, report, "Last loaded: 5.00 € on 2024-03-04 08:12")
	assert.Contains(t, report, "[Season tickets] (1)")
	assert.Contains(t, report, "#1 AB, 2024-03-01 to 2024-03-30")
	assert.Contains(t, report, "[History] (3)")

	// newest transaction first
	first := strings.Index(report, "2024-03-05 17:31")
	last := strings.Index(report, "2024-03-04 08:20")
	assert.True(t, first >= 0 && last > first, "history not newest first:\n%s", report)
}

func TestSampleThenDecode_Nysse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nysse.tlv")
	cfg := testConfig()

	root := newRootCmd(cfg)
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"sample", path, "--card", "nysse", "--log-level", "error"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	var out bytes.Buffer
	root = newRootCmd(cfg)
	root.SetOut(&out)
	root.SetArgs([]string{"decode", path, "--log-level", "error"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	report := out.String()
	assert.Contains(t, report, " NYSSE CARD")
	assert.Contains(t, report, "Holder: Virtanen Aino")
	assert.NotContains(t, report, "Card number")
	assert.Contains(t, report, "Value: 12.40 €")
	assert.Contains(t, report, "#1 until 2024-03-30")
	assert.Contains(t, report, "[History] (3)")
	assert.Contains(t, report, "charge")
}

func TestSample_UnknownCard(t *testing.T) {
	root := newRootCmd(testConfig())
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"sample", filepath.Join(t.TempDir(), "x.tlv"), "--card", "oyster"})
	assert.ErrorContains(t, root.ExecuteContext(context.Background()), `no sample for card type "oyster"`)
}

func TestDecodeDump_Corrupted(t *testing.T) {
	app, err := hsl.NewImage(sampleCard())
	require.NoError(t, err)
	balance := app.Files[hsl.FileBalance]
	balance.Data[3] ^= 0x10
	app.Files[hsl.FileBalance] = balance

	raw, err := tlv.EncodeDump(app.Dump())
	require.NoError(t, err)

	_, d, err := decodeDump(context.Background(), testConfig(), raw)
	require.ErrorIs(t, err, card.ErrChecksumMismatch)
	assert.NotNil(t, d)
	assert.True(t, strings.HasPrefix(err.Error(), "UnsupportedCard"))
}

func TestDecodeDump_NotADump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk")
	require.NoError(t, os.WriteFile(path, []byte("not a dump"), 0o644))

	root := newRootCmd(testConfig())
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"decode", path})
	assert.Error(t, root.ExecuteContext(context.Background()))
}

func TestWriteReport_EmptyCard(t *testing.T) {
	typ, err := card.Lookup(hsl.Name)
	require.NoError(t, err)
	snap, err := card.Assemble(typ, nil, card.Balance{}, nil, nil, card.WithSession("id-1", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, writeReport(&out, snap))

	report := out.String()
	assert.Contains(t, report, "Session: id-1 (2024-01-02T03:04:05Z)")
	assert.Contains(t, report, "Value: 0.00 €")
	assert.NotContains(t, report, "[Profile]")
	assert.NotContains(t, report, "Last loaded")
}
