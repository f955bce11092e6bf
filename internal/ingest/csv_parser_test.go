package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_WellFormed(t *testing.T) {
	text := "Latitude , LONGITUDE,subtotal,address\n" +
		"40.7128,-74.0060,10,\"New York, NY\"\n" +
		"\n" +
		"42.6526,-73.7562,30,Albany\n"

	table, report := Parse(text)

	assert.True(t, report.SchemaComplete())
	assert.Empty(t, report.RowErrors)
	assert.Equal(t, []string{"latitude", "longitude", "subtotal", "address"}, table.Headers)
	assert.Equal(t, Comma, table.Delimiter)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, 2, table.Rows[0].Line)
	assert.Equal(t, "New York, NY", table.Rows[0].Fields["address"])
	assert.Equal(t, 3, table.Rows[1].Line, "blank lines are not counted")
	assert.Equal(t, "-73.7562", table.Rows[1].Fields["longitude"])
}

func TestParse_ShapeErrorsDropRows(t *testing.T) {
	text := "latitude,longitude,subtotal\n" +
		"40.7,-74.0\n" +
		"40.7,-74.0,5\n" +
		"40.7,-74.0,5,extra\n"

	table, report := Parse(text)

	require.Len(t, table.Rows, 1)
	assert.Equal(t, 3, table.Rows[0].Line)
	assert.Equal(t, []string{
		"Row 2: expected 3 columns, got 2",
		"Row 4: expected 3 columns, got 4",
	}, report.RowErrors)
	assert.True(t, report.SchemaComplete(), "row errors never block the schema")
}

func TestParse_MissingColumns(t *testing.T) {
	table, report := Parse("subtotal,latitude\n10,40.7\n")

	assert.Equal(t, []string{"longitude"}, report.MissingColumns)
	assert.False(t, report.SchemaComplete())
	assert.Empty(t, table.Rows, "rows are not parsed once the schema is incomplete")
	assert.Equal(t, []string{"subtotal", "latitude"}, table.Headers)
}

func TestParse_DuplicateColumn(t *testing.T) {
	_, report := Parse("latitude,longitude,subtotal,Latitude\n1,2,3,4\n")

	assert.False(t, report.SchemaComplete())
	assert.Contains(t, report.SchemaErrors, "duplicate column 'latitude'")
}

func TestParse_UnknownColumnWarns(t *testing.T) {
	table, report := Parse("latitude,longitude,subtotal,notes\n40.7,-74.0,5,leave at door\n")

	assert.True(t, report.SchemaComplete())
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "notes")
	assert.Equal(t, "leave at door", table.Rows[0].Fields["notes"])
}

func TestParse_Semicolon(t *testing.T) {
	table, report := Parse("latitude;longitude;subtotal\n40,7;-74,0;5\n")

	require.True(t, report.SchemaComplete())
	assert.Equal(t, Semicolon, table.Delimiter)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "40,7", table.Rows[0].Fields["latitude"])
}

func TestParse_Empty(t *testing.T) {
	for _, text := range []string{"", "\n\n", "   \r\n"} {
		table, report := Parse(text)
		assert.Empty(t, table.Rows)
		assert.Equal(t, []string{MsgEmptyFile}, report.RowErrors)
	}
}

func TestParseBytes_NotText(t *testing.T) {
	table, report := ParseBytes([]byte{0xFF, 0x00, 0x12})

	assert.Empty(t, table.Rows)
	assert.Equal(t, []string{MsgNotUTF8}, report.RowErrors)
}

func TestParseBytes_BOMHeader(t *testing.T) {
	table, report := ParseBytes([]byte("\xEF\xBB\xBFlatitude,longitude,subtotal\n40.7,-74.0,5\n"))

	assert.True(t, report.SchemaComplete())
	assert.Equal(t, "latitude", table.Headers[0])
}

func TestParse_HeaderOnly(t *testing.T) {
	table, report := Parse("latitude,longitude,subtotal\n")

	assert.True(t, report.SchemaComplete())
	assert.Empty(t, table.Rows)
	assert.Empty(t, report.RowErrors)
}

func TestIsCSV(t *testing.T) {
	tests := []struct {
		filename    string
		contentType string
		want        bool
	}{
		{"orders.csv", "", true},
		{"ORDERS.CSV", "application/octet-stream", true},
		{"orders", "text/csv", true},
		{"orders", "text/csv; charset=utf-8", true},
		{"orders.xlsx", "application/vnd.ms-excel", false},
		{"orders.txt", "text/plain", false},
		{"", "", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsCSV(tt.filename, tt.contentType), "%q %q", tt.filename, tt.contentType)
	}
}
