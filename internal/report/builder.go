// Package report turns a model's raw text answer into extracted fields and a
// calibration report document.
package report

import (
	"time"

	"calibra/internal/domain"
)

const (
	SectionExtractedValues = "Extracted Values"
	SectionMetadata        = "Metadata"
)

// Result is the terminal state of one Build call. Report is nil when
// Status is parse_failed.
type Result struct {
	Status domain.ExtractionStatus
	Stage  domain.ParseStage
	Fields domain.ExtractedFields
	Report *domain.ReportDocument
	// Err holds the parse failure detail and wraps domain.ErrParseFailure.
	Err error
}

// Parsed reports whether a report was built.
func (r *Result) Parsed() bool {
	return r.Status == domain.ExtractionStatusParsed
}

// Builder is stateless between calls and safe for concurrent use.
type Builder struct {
	title  string
	policy domain.PresencePolicy
	now    func() time.Time
}

// NewBuilder creates a Builder. A nil clock uses time.Now.
func NewBuilder(title string, policy domain.PresencePolicy, clock func() time.Time) *Builder {
	if title == "" {
		title = "Calibration Report"
	}
	if clock == nil {
		clock = time.Now
	}
	return &Builder{title: title, policy: policy, now: clock}
}

// Build parses raw and, on success, assembles the report.
func (b *Builder) Build(raw string) *Result {
	fields, stage, err := parse(raw)
	if err != nil {
		return &Result{
			Status: domain.ExtractionStatusParseFailed,
			Stage:  stage,
			Err:    err,
		}
	}
	return &Result{
		Status: domain.ExtractionStatusParsed,
		Stage:  stage,
		Fields: fields,
		Report: b.BuildReport(fields),
	}
}

// BuildReport lays out the known fields of an already-parsed mapping.
// Unknown keys are ignored.
func (b *Builder) BuildReport(fields domain.ExtractedFields) *domain.ReportDocument {
	sections := []domain.ReportSection{
		{Title: SectionExtractedValues, Lines: b.lines(fields, domain.PrimaryFields)},
		{Title: SectionMetadata, Lines: b.lines(fields, domain.MetadataFields)},
	}
	return domain.NewReportDocument(b.title, b.now(), sections)
}

func (b *Builder) lines(fields domain.ExtractedFields, group []string) []domain.ReportLine {
	out := []domain.ReportLine{}
	for _, key := range group {
		v, ok := fields.Lookup(key)
		if !IsPresent(v, ok, b.policy) {
			continue
		}
		out = append(out, domain.ReportLine{Field: key, Value: FormatValue(v)})
	}
	return out
}
