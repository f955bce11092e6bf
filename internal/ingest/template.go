package ingest

// TemplateFilename is the download name of TemplateCSV.
const TemplateFilename = "orders_template.csv"

// TemplateCSV is the sample order file offered to operators.
const TemplateCSV = `id,latitude,longitude,timestamp,subtotal,address
1,40.7580,-73.9855,2026-02-28T10:00:00Z,120,Manhattan NY
2,40.6782,-73.9442,2026-02-28T11:00:00Z,85,Brooklyn NY
3,42.6526,-73.7562,2026-02-28T12:00:00Z,250,Albany NY
`
