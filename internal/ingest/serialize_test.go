package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteField(t *testing.T) {
	assert.Equal(t, "plain", QuoteField("plain", Comma))
	assert.Equal(t, `"a,b"`, QuoteField("a,b", Comma))
	assert.Equal(t, "a,b", QuoteField("a,b", Semicolon))
	assert.Equal(t, `"a;b"`, QuoteField("a;b", Semicolon))
	assert.Equal(t, `"say ""hi"""`, QuoteField(`say "hi"`, Comma))
	assert.Equal(t, "", QuoteField("", Comma))
}

func TestSerialize(t *testing.T) {
	headers := []string{"latitude", "longitude", "address"}
	rows := []map[string]string{
		{"latitude": "40.7", "longitude": "-74.0", "address": "New York, NY"},
		{"latitude": "42.6", "longitude": "-73.7"},
	}

	got := Serialize(headers, rows, Comma)
	assert.Equal(t, "latitude,longitude,address\n40.7,-74.0,\"New York, NY\"\n42.6,-73.7,", got)

	assert.Equal(t, "latitude,longitude,address", Serialize(headers, nil, Comma))
}

func TestSerialize_RoundTrip(t *testing.T) {
	texts := []string{
		"latitude,longitude,subtotal,address\n40.7128,-74.0060,10,\"New York, NY\"\n42.6526,-73.7562,30,\"The \"\"Old\"\" Mill\"",
		"latitude;longitude;subtotal\n40,7;-74,0;5\n41,1;-73,9;6",
	}

	for _, text := range texts {
		table, report := Parse(text)
		require.True(t, report.SchemaComplete())
		require.Empty(t, report.RowErrors)

		rows := make([]map[string]string, len(table.Rows))
		for i, r := range table.Rows {
			rows[i] = r.Fields
		}
		out := Serialize(table.Headers, rows, table.Delimiter)
		assert.Equal(t, text, out)

		again, _ := Parse(out)
		assert.Equal(t, table.Rows, again.Rows)
	}
}

func TestTemplateParses(t *testing.T) {
	table, report := Parse(TemplateCSV)

	assert.True(t, report.SchemaComplete())
	assert.Empty(t, report.RowErrors)
	assert.Empty(t, report.Warnings)
	assert.Len(t, table.Rows, 3)
}
