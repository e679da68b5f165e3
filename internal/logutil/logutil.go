package logutil

import (
	"fmt"
	"io"
	"log"
	"strings"

	"calibra/internal/config"
)

// Setup points the standard logger at out. Level "debug" adds file:line,
// "off" discards everything. Format "plain" drops timestamps.
func Setup(cfg config.LogConfig, out io.Writer) {
	flags := log.LstdFlags | log.Lmicroseconds
	if strings.EqualFold(cfg.Format, "plain") {
		flags = 0
	}
	switch strings.ToLower(cfg.Level) {
	case "off", "none":
		log.SetOutput(io.Discard)
		return
	case "debug":
		flags |= log.Lshortfile
	}
	log.SetFlags(flags)
	log.SetOutput(out)
}

// RedactKey masks an API key, leaving first/last 4 chars: xxxx...yyyy
func RedactKey(k string) string {
	if k == "" {
		return "(unset)"
	}
	if len(k) <= 8 {
		return "********"
	}
	return fmt.Sprintf("%s...%s", k[:4], k[len(k)-4:])
}
