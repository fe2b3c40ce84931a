package market

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	t.Parallel()

	in := `symbol,dt,open,high,low,close,avg,volume
TQQQ,2024-01-03,10.5,12,10,11.5,11.1,120
TQQQ,2024-01-02,10,11,9,10.5,10.2,100
`
	s, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, s, 2)

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), s[0].Time)
	assert.Equal(t, 10.5, s[0].Close)
	assert.Equal(t, 10.2, s[0].Avg)
	assert.Equal(t, 120.0, s[1].Volume)
}

func TestReadCSVOptionalColumns(t *testing.T) {
	t.Parallel()

	in := "Date,Open,High,Low,Close\n2024-01-02T15:30:00Z,1,2,0.5,1.5\n"
	s, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, s, 1)
	assert.Equal(t, 0.0, s[0].Avg)
	assert.Equal(t, 15, s[0].Time.Hour())
}

func TestReadCSVErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"missing close", "dt,open,high,low\n2024-01-02,1,2,0.5\n"},
		{"bad time", "dt,open,high,low,close\nyesterday,1,2,0.5,1\n"},
		{"bad number", "dt,open,high,low,close\n2024-01-02,1,x,0.5,1\n"},
		{"duplicate time", "dt,open,high,low,close\n2024-01-02,1,2,0.5,1\n2024-01-02,1,2,0.5,1\n"},
		{"non-positive price", "dt,open,high,low,close\n2024-01-02,1,2,0.5,0\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadCSV(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testSeries()))
	assert.True(t, strings.HasPrefix(buf.String(), "dt,open,high,low,close,avg,volume\n2024-01-02,"))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, testSeries(), got)
}

func TestSaveLoadFormats(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"bars.csv", "bars.parquet"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(path, "", testSeries()))

		got, err := Load(path, "")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.True(t, got[2].Time.Equal(day(4)))
		assert.Equal(t, 11.4, got[2].Avg)
	}
}

func TestFormatOf(t *testing.T) {
	t.Parallel()

	fm, err := FormatOf("x.PARQUET", "")
	require.NoError(t, err)
	assert.Equal(t, FormatParquet, fm)

	fm, err = FormatOf("x.dat", "csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, fm)

	_, err = FormatOf("x.dat", "")
	assert.Error(t, err)
	_, err = FormatOf("x.csv", "xlsx")
	assert.Error(t, err)
}
