package logparse

import (
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/flowlens/flowlens-cli/api/schemas"
	"github.com/flowlens/flowlens-cli/internal/harparse"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Parser converts log streams into canonical LogEntry records.
type Parser struct {
	log *zap.Logger
}

// New creates a Parser with the given logger.
func New(logger *zap.Logger) *Parser {
	return &Parser{log: logger}
}

// ParseFile reads and normalizes a single log stream from disk. The file id
// derivation matches the HAR side so the two correlate.
func (p *Parser) ParseFile(path string) ([]schemas.LogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading log file %s: %w", path, err)
	}
	return p.Parse(harparse.FileIDFromPath(path), data)
}

// Parse normalizes one log stream. The payload is first tried as a JSON
// array of structured export records and converted to text lines; anything
// else is treated as plain line-oriented text. The line scanner then
// reconstructs run entries. Parse never fails on content: an undecodable
// stream simply yields no entries.
func (p *Parser) Parse(fileID string, data []byte) ([]schemas.LogEntry, error) {
	sc := NewScanner(fileID, p.log)
	for _, line := range toLines(data) {
		sc.Feed(line)
	}
	return sc.Finish(), nil
}

// toLines converts a payload to the scanner's line sequence, going through
// structured conversion when the payload is a JSON record array.
func toLines(data []byte) []string {
	var records []structuredRecord
	if err := json.Unmarshal(data, &records); err == nil {
		return convertStructured(records)
	}
	return strings.Split(string(data), "\n")
}
