package extractor

import (
	"strings"

	"calibra/internal/domain"
)

// UserInstruction is the text paired with the screenshot in the user turn.
const UserInstruction = "Extract calibration values in JSON format."

// SystemInstruction names the eleven calibration fields and asks for JSON.
func SystemInstruction() string {
	return "You are a vision assistant that analyzes calibration screenshots " +
		"from X-ray or radiography QA systems. Extract all calibration parameters " +
		"and output them as structured JSON. Fields: " +
		strings.Join(domain.KnownFields(), ", ") + "."
}
