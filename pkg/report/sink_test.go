package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/shelfscan/pkg/catalog"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)

func testSink(t *testing.T) *Sink {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reports", "Final_Inventory_Report.csv")
	return NewSink(path, WithClock(func() time.Time { return fixedNow }))
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestEnsureInitialized_WritesHeaderOnce(t *testing.T) {
	s := testSink(t)
	assert.False(t, s.Exists())

	require.NoError(t, s.EnsureInitialized())
	require.NoError(t, s.EnsureInitialized())
	require.NoError(t, s.EnsureInitialized())

	assert.True(t, s.Exists())
	lines := readLines(t, s.Path())
	require.Len(t, lines, 1)
	assert.Equal(t, "Date,Time,Scanned Code,FOOD Items,ELECTRONICS Items,GROCERY Items,Price (INR),Status", lines[0])
}

func TestEnsureInitialized_NeverOverwrites(t *testing.T) {
	s := testSink(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0755))
	existing := "Date,Time,Scanned Code,FOOD Items,ELECTRONICS Items,GROCERY Items,Price (INR),Status\n" +
		"2026-03-13,18:00:00,111,-,-,Rice,50,Verified\n"
	require.NoError(t, os.WriteFile(s.Path(), []byte(existing), 0644))

	require.NoError(t, s.EnsureInitialized())

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, existing, string(data))
}

func TestAppend_CategoryColumns(t *testing.T) {
	tests := []struct {
		name  string
		entry catalog.Entry
		want  string
	}{
		{"food", catalog.NewEntry("333", "Samosa", "15", "Food"), "2026-03-14,09:26:53,333,Samosa,-,-,15,Verified"},
		{"electronics", catalog.NewEntry("222", "Headphones", "1499", "Electronics"), "2026-03-14,09:26:53,222,-,Headphones,-,1499,Verified"},
		{"grocery", catalog.NewEntry("111", "Rice", "50", "Grocery"), "2026-03-14,09:26:53,111,-,-,Rice,50,Verified"},
		{"unrecognized category", catalog.NewEntry("444", "Teddy", "300", "Toys"), "2026-03-14,09:26:53,444,-,-,-,300,Verified"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := testSink(t)
			require.NoError(t, s.EnsureInitialized())

			rec, err := s.Append(tc.entry.Code, tc.entry)
			require.NoError(t, err)
			assert.Equal(t, StatusVerified, rec.Status)

			lines := readLines(t, s.Path())
			require.Len(t, lines, 2)
			assert.Equal(t, tc.want, lines[1])
		})
	}
}

func TestAppend_PreservesEarlierRows(t *testing.T) {
	s := testSink(t)
	require.NoError(t, s.EnsureInitialized())

	rice := catalog.NewEntry("111", "Rice", "50", "Grocery")
	phones := catalog.NewEntry("222", "Headphones, wireless", "1499", "Electronics")
	_, err := s.Append("111", rice)
	require.NoError(t, err)
	_, err = s.Append("222", phones)
	require.NoError(t, err)

	records, err := ReadRecords(s.Path())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "111", records[0].Code)
	assert.Equal(t, "Rice", records[0].Grocery)
	assert.Equal(t, "Headphones, wireless", records[1].Electronics, "names with commas are quoted")
	assert.Equal(t, Placeholder, records[1].Food)
}

func TestAppend_RecreatesDeletedReport(t *testing.T) {
	tests := []struct {
		name   string
		remove func(t *testing.T, path string)
	}{
		{"file deleted", func(t *testing.T, path string) { require.NoError(t, os.Remove(path)) }},
		{"directory deleted", func(t *testing.T, path string) { require.NoError(t, os.RemoveAll(filepath.Dir(path))) }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := testSink(t)
			require.NoError(t, s.EnsureInitialized())
			_, err := s.Append("111", catalog.NewEntry("111", "Rice", "50", "Grocery"))
			require.NoError(t, err)

			tc.remove(t, s.Path())

			_, err = s.Append("222", catalog.NewEntry("222", "Headphones", "1499", "Electronics"))
			require.NoError(t, err)

			lines := readLines(t, s.Path())
			require.Len(t, lines, 2)
			assert.Equal(t, strings.Join(Header, ","), lines[0])

			records, err := ReadRecords(s.Path())
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, "222", records[0].Code)
		})
	}
}

func TestAppend_ReturnsWriteError(t *testing.T) {
	dir := t.TempDir()
	// a directory where the report should be makes every append fail
	s := NewSink(dir)

	_, err := s.Append("111", catalog.NewEntry("111", "Rice", "50", "Grocery"))
	assert.Error(t, err)
}

func TestRecord_ItemName(t *testing.T) {
	rec := NewRecord("111", catalog.NewEntry("111", "Rice", "50", "Grocery"), fixedNow)
	assert.Equal(t, "Rice", rec.ItemName())

	other := NewRecord("444", catalog.NewEntry("444", "Teddy", "300", "Toys"), fixedNow)
	assert.Equal(t, "", other.ItemName())
}

func TestReadRecords_HeaderOnly(t *testing.T) {
	records, err := readRecords(bytes.NewBufferString(strings.Join(Header, ",") + "\n"))
	require.NoError(t, err)
	assert.Empty(t, records)
}
