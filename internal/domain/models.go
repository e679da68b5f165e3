package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReportLine is one "- **Key:** Value" entry of a report section.
type ReportLine struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// ReportSection is a titled list of report lines.
type ReportSection struct {
	Title string       `json:"title"`
	Lines []ReportLine `json:"lines"`
}

// ReportDocument is the human-readable calibration report. It is immutable
// once built; accessors hand out copies.
type ReportDocument struct {
	title       string
	generatedAt time.Time
	sections    []ReportSection
}

// NewReportDocument assembles a report. Sections are copied.
func NewReportDocument(title string, generatedAt time.Time, sections []ReportSection) *ReportDocument {
	cp := make([]ReportSection, len(sections))
	for i, s := range sections {
		cp[i] = ReportSection{Title: s.Title, Lines: append([]ReportLine{}, s.Lines...)}
	}
	return &ReportDocument{title: title, generatedAt: generatedAt, sections: cp}
}

// ReportTimestampLayout formats the generated-at line.
const ReportTimestampLayout = "2006-01-02 15:04:05"

func (r *ReportDocument) Title() string          { return r.title }
func (r *ReportDocument) GeneratedAt() time.Time { return r.generatedAt }

// Sections returns a copy of the report sections.
func (r *ReportDocument) Sections() []ReportSection {
	cp := make([]ReportSection, len(r.sections))
	for i, s := range r.sections {
		cp[i] = ReportSection{Title: s.Title, Lines: append([]ReportLine{}, s.Lines...)}
	}
	return cp
}

// Lines renders the document as markdown lines.
func (r *ReportDocument) Lines() []string {
	lines := []string{
		"# " + r.title,
		"**Generated:** " + r.generatedAt.Format(ReportTimestampLayout),
	}
	for _, s := range r.sections {
		lines = append(lines, "", "## "+s.Title)
		for _, l := range s.Lines {
			lines = append(lines, "- **"+l.Field+":** "+l.Value)
		}
	}
	return lines
}

// Text is the plain-text rendering offered for download.
func (r *ReportDocument) Text() string {
	return strings.Join(r.Lines(), "\n")
}

// MarshalJSON exposes the report as title, timestamp, sections and text.
func (r *ReportDocument) MarshalJSON() ([]byte, error) {
	return json.Marshal(reportJSON{
		Title:       r.title,
		GeneratedAt: r.generatedAt.Format(time.RFC3339),
		Sections:    r.Sections(),
		Text:        r.Text(),
	})
}

type reportJSON struct {
	Title       string          `json:"title"`
	GeneratedAt string          `json:"generated_at"`
	Sections    []ReportSection `json:"sections"`
	Text        string          `json:"text"`
}

// Extraction is the outcome of one screenshot extraction.
type Extraction struct {
	ID          uuid.UUID        `json:"id"`
	Status      ExtractionStatus `json:"status"`
	Source      string           `json:"source"`
	Provider    string           `json:"provider"`
	Model       string           `json:"model"`
	RawResponse string           `json:"raw_response"`
	ParseStage  ParseStage       `json:"parse_stage"`
	Fields      ExtractedFields  `json:"fields,omitempty"`
	Report      *ReportDocument  `json:"report,omitempty"`
	Duration    time.Duration    `json:"-"`
	DurationSec float64          `json:"duration_seconds"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Parsed reports whether the extraction reached a report.
func (e *Extraction) Parsed() bool {
	return e.Status == ExtractionStatusParsed && e.Report != nil
}
