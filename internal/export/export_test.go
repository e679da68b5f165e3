package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"calibra/internal/domain"
)

func testReport() *domain.ReportDocument {
	return domain.NewReportDocument("Calibration Report", time.Date(2025, 6, 1, 14, 5, 9, 0, time.UTC), []domain.ReportSection{
		{Title: "Extracted Values", Lines: []domain.ReportLine{
			{Field: "kV", Value: "120"},
			{Field: "Dose", Value: "5.2 mGy, nominal"},
		}},
		{Title: "Metadata", Lines: []domain.ReportLine{
			{Field: "Sensor", Value: "S-200"},
		}},
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.ExportFormat
		wantErr bool
	}{
		{"", domain.ExportFormatText, false},
		{"txt", domain.ExportFormatText, false},
		{" CSV ", domain.ExportFormatCSV, false},
		{"xlsx", domain.ExportFormatXLSX, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.True(t, errors.Is(err, domain.ErrUnsupportedExportFormat), tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRender_Text(t *testing.T) {
	doc := testReport()

	a, err := Render(doc, domain.ExportFormatText)

	require.NoError(t, err)
	assert.Equal(t, "calibration_report.txt", a.FileName)
	assert.Equal(t, "text/plain; charset=utf-8", a.ContentType)
	assert.Equal(t, doc.Text(), string(a.Data))
}

func TestRender_CSV(t *testing.T) {
	a, err := Render(testReport(), domain.ExportFormatCSV)

	require.NoError(t, err)
	assert.Equal(t, "calibration_report.csv", a.FileName)
	require.True(t, bytes.HasPrefix(a.Data, BOM))

	records, err := csv.NewReader(bytes.NewReader(a.Data[len(BOM):])).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Section", "Field", "Value"},
		{"Report", "Title", "Calibration Report"},
		{"Report", "Generated", "2025-06-01 14:05:09"},
		{"Extracted Values", "kV", "120"},
		{"Extracted Values", "Dose", "5.2 mGy, nominal"},
		{"Metadata", "Sensor", "S-200"},
	}, records)
}

func TestRender_XLSX(t *testing.T) {
	a, err := Render(testReport(), domain.ExportFormatXLSX)

	require.NoError(t, err)
	assert.Equal(t, "calibration_report.xlsx", a.FileName)
	assert.Equal(t, domain.ExportContentTypes[domain.ExportFormatXLSX], a.ContentType)

	f, err := excelize.OpenReader(bytes.NewReader(a.Data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, got, 6)
	assert.Equal(t, []string{"Section", "Field", "Value"}, got[0])
	assert.Equal(t, []string{"Extracted Values", "kV", "120"}, got[3])
	assert.Equal(t, []string{"Metadata", "Sensor", "S-200"}, got[5])
}

func formulaReport() *domain.ReportDocument {
	return domain.NewReportDocument("Calibration Report", time.Date(2025, 6, 1, 14, 5, 9, 0, time.UTC), []domain.ReportSection{
		{Title: "Extracted Values", Lines: []domain.ReportLine{
			{Field: "kV", Value: `=HYPERLINK("http://evil.example","x")`},
			{Field: "Dose", Value: "+1+1"},
			{Field: "Dose rate", Value: "-0.5"},
			{Field: "HVL", Value: "-2 mm Al"},
			{Field: "Exposure time", Value: "@SUM(A1)"},
		}},
		{Title: "Metadata", Lines: []domain.ReportLine{}},
	})
}

func TestRender_CSV_EscapesFormulas(t *testing.T) {
	a, err := Render(formulaReport(), domain.ExportFormatCSV)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(a.Data[len(BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 8)
	assert.Equal(t, `'=HYPERLINK("http://evil.example","x")`, records[3][2])
	assert.Equal(t, "'+1+1", records[4][2])
	assert.Equal(t, "-0.5", records[5][2])
	assert.Equal(t, "'-2 mm Al", records[6][2])
	assert.Equal(t, "'@SUM(A1)", records[7][2])
}

func TestRender_XLSX_EscapesFormulas(t *testing.T) {
	a, err := Render(formulaReport(), domain.ExportFormatXLSX)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(a.Data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	formula, err := f.GetCellFormula(SheetName, "C4")
	require.NoError(t, err)
	assert.Empty(t, formula)

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Equal(t, `'=HYPERLINK("http://evil.example","x")`, got[3][2])
	assert.Equal(t, "'@SUM(A1)", got[7][2])
}

func TestSafeCell(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"120", "120"},
		{"5.2 mGy", "5.2 mGy"},
		{"=1+1", "'=1+1"},
		{"+41 555", "'+41 555"},
		{"-12", "-12"},
		{"+3.5", "+3.5"},
		{"-cmd", "'-cmd"},
		{"@x", "'@x"},
		{"\tx", "'\tx"},
		{"a=b", "a=b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeCell(tt.in), tt.in)
	}
}

func TestRender_EmptySections(t *testing.T) {
	doc := domain.NewReportDocument("Calibration Report", time.Now(), []domain.ReportSection{
		{Title: "Extracted Values", Lines: []domain.ReportLine{}},
		{Title: "Metadata", Lines: []domain.ReportLine{}},
	})

	a, err := Render(doc, domain.ExportFormatCSV)

	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(a.Data[len(BOM):])).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestRender_Errors(t *testing.T) {
	_, err := Render(nil, domain.ExportFormatText)
	assert.True(t, errors.Is(err, domain.ErrReportUnavailable))

	_, err = Render(testReport(), domain.ExportFormat("pdf"))
	assert.True(t, errors.Is(err, domain.ErrUnsupportedExportFormat))
}
