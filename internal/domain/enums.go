package domain

// ExtractionStatus is the terminal state of one extraction attempt.
type ExtractionStatus string

const (
	ExtractionStatusParsed      ExtractionStatus = "parsed"
	ExtractionStatusParseFailed ExtractionStatus = "parse_failed"
)

// ParseStage records which parse attempt produced (or failed to produce) the fields.
type ParseStage string

const (
	ParseStageStrict   ParseStage = "strict"
	ParseStageFallback ParseStage = "fallback"
	ParseStageFailed   ParseStage = "failed"
)

// PresencePolicy decides whether a known field counts as present in the report.
type PresencePolicy string

const (
	// PresenceTruthy drops null, "", 0, false and empty collections.
	PresenceTruthy PresencePolicy = "truthy"
	// PresenceStrict drops only absent and null values.
	PresenceStrict PresencePolicy = "strict"
)

// ParsePresencePolicy maps a config value to a policy, defaulting to truthy.
func ParsePresencePolicy(s string) PresencePolicy {
	if PresencePolicy(s) == PresenceStrict {
		return PresenceStrict
	}
	return PresenceTruthy
}

// ExportFormat is a downloadable report rendering.
type ExportFormat string

const (
	ExportFormatText ExportFormat = "txt"
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatXLSX ExportFormat = "xlsx"
)

// ExportContentTypes maps each export format to its MIME type.
var ExportContentTypes = map[ExportFormat]string{
	ExportFormatText: "text/plain; charset=utf-8",
	ExportFormatCSV:  "text/csv; charset=utf-8",
	ExportFormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ReportFileBase is the download name stem; the format supplies the extension.
const ReportFileBase = "calibration_report"

// ImageContentType is what every provider receives after normalization.
const ImageContentType = "image/png"
