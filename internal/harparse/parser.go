// Package harparse normalizes HAR captures into flat canonical records.
//
// Parsing is pure: nothing here touches the record store. The ingest
// orchestrator decides if and when a batch gets persisted.
package harparse

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/flowlens/flowlens-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMalformedInput marks a file that could not be decoded as a HAR document.
// Callers skip the file, log, and continue the batch.
var ErrMalformedInput = errors.New("malformed HAR input")

// RedactedValue replaces the value of any sensitive request header.
const RedactedValue = "[REDACTED]"

// sensitiveHeaders is the fixed set of request headers whose values are
// redacted at the normalization boundary. Matching is case-insensitive.
var sensitiveHeaders = map[string]struct{}{
	"cookie":        {},
	"authorization": {},
	"x-csrf-token":  {},
}

// Parser converts HAR documents into canonical HAREntry records.
type Parser struct {
	log *zap.Logger
}

// New creates a Parser with the given logger.
func New(logger *zap.Logger) *Parser {
	return &Parser{log: logger.Named("harparse")}
}

// FileIDFromPath derives the correlation id from a capture filename: the base
// name truncated at the first dot, so "abc.def.har" yields "abc".
func FileIDFromPath(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return base
}

// ParseFile reads and normalizes a single HAR capture from disk.
func (p *Parser) ParseFile(path string) ([]schemas.HAREntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading HAR file %s: %w", path, err)
	}
	return p.Parse(FileIDFromPath(path), data)
}

// Parse normalizes one HAR document into HAREntry records, in entry order.
// An entry missing its request, response, or timings block is skipped with a
// warning; the rest of the file still parses. A document that is not HAR JSON
// at all fails with ErrMalformedInput. An empty or absent entries array is
// not an error.
func (p *Parser) Parse(fileID string, data []byte) ([]schemas.HAREntry, error) {
	var doc schemas.HAR
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: file %q: %v", ErrMalformedInput, fileID, err)
	}

	entries := make([]schemas.HAREntry, 0, len(doc.Log.Entries))
	for i, src := range doc.Log.Entries {
		if src.Request == nil || src.Response == nil || src.Timings == nil {
			p.log.Warn("Skipping HAR entry with missing required section",
				zap.String("file_id", fileID),
				zap.Int("entry", i),
			)
			continue
		}

		entries = append(entries, schemas.HAREntry{
			FileID:         fileID,
			URL:            src.Request.URL,
			Method:         src.Request.Method,
			StatusCode:     src.Response.Status,
			ResponseTime:   responseTime(src.Timings),
			ResponseSize:   src.Response.BodySize,
			RequestHeaders: sanitizeHeaders(src.Request.Headers),
			ErrorMessage:   deriveErrorMessage(src.Response),
			StepNumber:     i,
		})
	}
	return entries, nil
}

// responseTime extracts timings.total when it is a JSON number. Capture tools
// put strings or null there too; anything non-numeric means absent.
func responseTime(t *schemas.Timings) *float64 {
	if len(t.Total) == 0 {
		return nil
	}
	var ms float64
	if err := json.Unmarshal(t.Total, &ms); err != nil {
		return nil
	}
	return &ms
}

// sanitizeHeaders builds the name→value map with sensitive values redacted.
func sanitizeHeaders(pairs []schemas.NVPair) map[string]string {
	headers := make(map[string]string, len(pairs))
	for _, h := range pairs {
		headers[h.Name] = sanitizeHeaderValue(h.Name, h.Value)
	}
	return headers
}

func sanitizeHeaderValue(name, value string) string {
	if _, sensitive := sensitiveHeaders[strings.ToLower(name)]; sensitive {
		return RedactedValue
	}
	return value
}

// deriveErrorMessage summarizes HTTP-level trouble on the response: an error
// line for 4xx/5xx statuses, a redirect note for 302, nil otherwise.
func deriveErrorMessage(resp *schemas.Response) *string {
	switch {
	case resp.Status >= 400:
		text := resp.StatusText
		if text == "" {
			text = "Error"
		}
		msg := fmt.Sprintf("HTTP %d: %s", resp.Status, text)
		return &msg
	case resp.Status == 302:
		target := resp.RedirectURL
		if target == "" {
			target = "unknown"
		}
		msg := fmt.Sprintf("Redirect to: %s", target)
		return &msg
	default:
		return nil
	}
}
