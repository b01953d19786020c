// Package logparse normalizes bot service logs into canonical run records.
//
// A log stream is either plain line-oriented text or a JSON array of
// structured export records. Structured records are first converted to the
// same textual form (convert.go), so one line scanner handles both.
package logparse

import (
	"strings"

	"go.uber.org/zap"

	"github.com/flowlens/flowlens-cli/api/schemas"
)

// Marker strings recognized by the scanner. These match the bot framework's
// log format exactly and are case-sensitive.
const (
	startMarker     = "==== Logging started for"
	endMarker       = "==== Logging ended"
	taskURLMarker   = "Task URL:"
	tracebackMarker = "Traceback"
)

// exceptionPrefixes terminate a traceback when a buffered line starts with
// one of them.
var exceptionPrefixes = []string{"commons.exceptions", "Exception"}

// scanState is the scanner's position in the run lifecycle.
type scanState int

const (
	// stateIdle: no entry open; everything except a start marker is ignored.
	stateIdle scanState = iota
	// stateCollecting: an entry is open and plain lines accumulate as steps.
	stateCollecting
	// stateInTraceback: lines buffer into the current trace until an
	// exception line or the end marker closes it.
	stateInTraceback
)

// Scanner is the line state machine that reconstructs run entries from a log
// stream. Feed it lines in order, then call Finish to collect the results.
// A Scanner is single-use and not safe for concurrent use.
type Scanner struct {
	log    *zap.Logger
	fileID string

	state   scanState
	current *schemas.LogEntry
	trace   []string
	entries []schemas.LogEntry
}

// NewScanner creates a Scanner producing entries tagged with fileID.
func NewScanner(fileID string, logger *zap.Logger) *Scanner {
	return &Scanner{
		log:     logger.Named("logparse"),
		fileID:  fileID,
		state:   stateIdle,
		entries: make([]schemas.LogEntry, 0),
	}
}

// Feed advances the state machine by one line. Leading and trailing
// whitespace is not significant.
func (s *Scanner) Feed(raw string) {
	line := strings.TrimSpace(raw)

	// A start marker opens a fresh entry from any state. An entry still open
	// at that point never saw its end marker and is discarded.
	if strings.Contains(line, startMarker) {
		if s.current != nil {
			s.log.Warn("Discarding unterminated log entry at new start marker",
				zap.String("file_id", s.fileID),
				zap.String("service", s.current.Service),
			)
		}
		s.current = &schemas.LogEntry{
			FileID:  s.fileID,
			Service: extractService(line),
			Steps:   []string{},
			Status:  schemas.RunSuccess,
		}
		s.trace = nil
		s.state = stateCollecting
		return
	}

	switch s.state {
	case stateIdle:
		// Nothing open; ignore.

	case stateCollecting:
		switch {
		case strings.Contains(line, taskURLMarker):
			u := strings.TrimSpace(strings.ReplaceAll(line, taskURLMarker, ""))
			s.current.TaskURL = &u
		case strings.Contains(line, tracebackMarker):
			s.trace = []string{line}
			s.state = stateInTraceback
		case strings.Contains(line, endMarker):
			s.finalize()
		case line != "" && !strings.HasPrefix(line, "===="):
			s.current.Steps = append(s.current.Steps, line)
		}

	case stateInTraceback:
		// The end marker closes an open traceback: the run failed, the
		// buffered lines become the error details, and the entry finalizes.
		// (error_message stays null when no exception line was seen.)
		if strings.Contains(line, endMarker) {
			s.closeTraceback(nil)
			s.finalize()
			return
		}
		s.trace = append(s.trace, line)
		if hasExceptionPrefix(line) {
			s.closeTraceback(&line)
			s.state = stateCollecting
		}
	}
}

// Drain returns the entries finalized since the last call and resets the
// accumulator. Live followers use it to emit entries as runs complete while
// the stream stays open.
func (s *Scanner) Drain() []schemas.LogEntry {
	if len(s.entries) == 0 {
		return nil
	}
	drained := s.entries
	s.entries = make([]schemas.LogEntry, 0)
	return drained
}

// Finish flushes the scanner and returns entries in stream order. An entry
// still open at end of stream never reached its end marker and is dropped
// with a warning.
func (s *Scanner) Finish() []schemas.LogEntry {
	if s.current != nil {
		s.log.Warn("Dropping unterminated log entry at end of stream",
			zap.String("file_id", s.fileID),
			zap.String("service", s.current.Service),
		)
		s.current = nil
		s.trace = nil
		s.state = stateIdle
	}
	return s.entries
}

// closeTraceback marks the current entry failed and derives its error details
// from the buffered trace. msg is the terminating exception line, nil when
// the traceback was cut short by the end marker.
func (s *Scanner) closeTraceback(msg *string) {
	s.current.Status = schemas.RunFailed
	s.current.ErrorMessage = msg
	s.current.ErrorDetails = parseErrorTrace(s.trace)
	s.trace = nil
}

func (s *Scanner) finalize() {
	s.entries = append(s.entries, *s.current)
	s.current = nil
	s.state = stateIdle
}

// extractService pulls the service name out of a start-marker line: the text
// after the last "for ", with the trailing marker stripped.
func extractService(line string) string {
	parts := strings.Split(line, "for ")
	name := parts[len(parts)-1]
	name = strings.ReplaceAll(name, " ====", "")
	return strings.TrimSpace(name)
}

func hasExceptionPrefix(line string) bool {
	for _, prefix := range exceptionPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// parseErrorTrace builds the structured view of a captured traceback:
// the last line as the exception type, the last Error:/Exception: line as the
// message, and the first File line as the outermost frame location.
func parseErrorTrace(traceLines []string) *schemas.ErrorDetails {
	if len(traceLines) == 0 {
		return nil
	}

	details := &schemas.ErrorDetails{
		Type:      traceLines[len(traceLines)-1],
		FullTrace: append([]string(nil), traceLines...),
	}
	for i := len(traceLines) - 1; i >= 0; i-- {
		if strings.Contains(traceLines[i], "Error:") || strings.Contains(traceLines[i], "Exception:") {
			details.Message = &traceLines[i]
			break
		}
	}
	for i := range traceLines {
		if strings.Contains(traceLines[i], "File") {
			details.Location = &traceLines[i]
			break
		}
	}
	return details
}
