// Package export renders a calibration report as a downloadable file.
package export

import (
	"fmt"
	"strconv"
	"strings"

	"calibra/internal/domain"
)

// Artifact is a rendered report ready to be written or served.
type Artifact struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ParseFormat maps a user-supplied format name to an ExportFormat. Empty
// means plain text.
func ParseFormat(s string) (domain.ExportFormat, error) {
	switch f := domain.ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return domain.ExportFormatText, nil
	case domain.ExportFormatText, domain.ExportFormatCSV, domain.ExportFormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedExportFormat, s)
	}
}

// FileName is the download name for a format.
func FileName(format domain.ExportFormat) string {
	return domain.ReportFileBase + "." + string(format)
}

// Render produces the artifact for doc in the requested format.
func Render(doc *domain.ReportDocument, format domain.ExportFormat) (*Artifact, error) {
	if doc == nil {
		return nil, domain.ErrReportUnavailable
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case domain.ExportFormatText:
		data = []byte(doc.Text())
	case domain.ExportFormatCSV:
		data, err = renderCSV(doc)
	case domain.ExportFormatXLSX:
		data, err = renderXLSX(doc)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedExportFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("rendering %s report: %w", format, err)
	}

	return &Artifact{
		FileName:    FileName(format),
		ContentType: domain.ExportContentTypes[format],
		Data:        data,
	}, nil
}

// rows flattens a report into Section/Field/Value triples, report header first.
// Cells are passed through safeCell since values come from model output.
func rows(doc *domain.ReportDocument) [][]string {
	out := [][]string{
		{"Report", "Title", safeCell(doc.Title())},
		{"Report", "Generated", doc.GeneratedAt().Format(domain.ReportTimestampLayout)},
	}
	for _, s := range doc.Sections() {
		for _, l := range s.Lines {
			out = append(out, []string{safeCell(s.Title), safeCell(l.Field), safeCell(l.Value)})
		}
	}
	return out
}

// safeCell prefixes a quote to cells a spreadsheet would evaluate as a
// formula. Plain numbers such as "-0.5" are left alone.
func safeCell(v string) string {
	if v == "" {
		return v
	}
	switch v[0] {
	case '=', '+', '-', '@', '\t', '\r':
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			return v
		}
		return "'" + v
	}
	return v
}
