package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/shelfscan/pkg/catalog"
)

func sessionRecords() []Record {
	return []Record{
		NewRecord("111", catalog.NewEntry("111", "Rice", "50", "Grocery"), fixedNow),
		NewRecord("112", catalog.NewEntry("112", "Dal", "120.50", "Grocery"), fixedNow),
		NewRecord("222", catalog.NewEntry("222", "Headphones", "1499", "Electronics"), fixedNow),
		NewRecord("444", catalog.NewEntry("444", "Teddy", "n/a", "Toys"), fixedNow),
	}
}

func TestTotals(t *testing.T) {
	totals, grand := Totals(sessionRecords())

	require.Len(t, totals, 4)
	assert.Equal(t, catalog.Food, totals[0].Category)
	assert.Equal(t, 0, totals[0].Count)
	assert.Equal(t, catalog.Electronics, totals[1].Category)
	assert.Equal(t, 1, totals[1].Count)
	assert.Equal(t, "1499.00", totals[1].Value.StringFixed(2))
	assert.Equal(t, catalog.Grocery, totals[2].Category)
	assert.Equal(t, 2, totals[2].Count)
	assert.Equal(t, "170.50", totals[2].Value.StringFixed(2))
	assert.Equal(t, 1, totals[3].Count, "unparseable price still counts")
	assert.True(t, totals[3].Value.IsZero())
	assert.Equal(t, "1669.50", grand.StringFixed(2))
}

func TestWriteSummary(t *testing.T) {
	path := SummaryPath(filepath.Join(t.TempDir(), "Final_Inventory_Report.csv"))
	assert.Equal(t, ".pdf", filepath.Ext(path))

	err := WriteSummary(path, SummaryInput{
		SessionID: "6f1c2a3e-0000-4000-8000-000000000001",
		Source:    "device:0",
		Started:   fixedNow,
		Ended:     fixedNow.Add(5 * time.Minute),
		Records:   sessionRecords(),
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestRenderSummary_NoRecords(t *testing.T) {
	data, err := RenderSummary(SummaryInput{Started: fixedNow, Ended: fixedNow})
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
