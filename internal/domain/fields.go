package domain

// Field groups of the known calibration vocabulary. Order is report order.
var (
	PrimaryFields = []string{
		"kV",
		"Dose",
		"Dose rate",
		"Dose per frame",
		"HVL",
		"Exposure time",
	}

	MetadataFields = []string{
		"Sensor",
		"Trigger level",
		"Exposure number",
		"Serial number",
		"Exposure date/time",
	}
)

// KnownFields returns the full vocabulary, primary group first.
func KnownFields() []string {
	out := make([]string, 0, len(PrimaryFields)+len(MetadataFields))
	out = append(out, PrimaryFields...)
	return append(out, MetadataFields...)
}

// ExtractedFields is the decoded top-level JSON object returned by the model.
// Values are string, json.Number, bool, nil, []any or map[string]any.
// Unknown keys are kept so callers can still display them.
type ExtractedFields map[string]any

// Lookup returns the value for key and whether the key exists.
func (f ExtractedFields) Lookup(key string) (any, bool) {
	v, ok := f[key]
	return v, ok
}

// UnknownKeys lists keys outside the known vocabulary, in no particular order.
func (f ExtractedFields) UnknownKeys() []string {
	known := make(map[string]struct{}, len(PrimaryFields)+len(MetadataFields))
	for _, k := range KnownFields() {
		known[k] = struct{}{}
	}
	var out []string
	for k := range f {
		if _, ok := known[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}
