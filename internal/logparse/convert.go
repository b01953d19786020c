package logparse

import (
	"sort"
	"strings"
)

// structuredRecord is one element of a JSON-exported log stream, as produced
// by the bots' cloud logging sink. Pointer fields distinguish an absent key
// from an empty value; the error branch below fires on key presence.
type structuredRecord struct {
	Timestamp   *string `json:"timestamp"`
	JSONPayload struct {
		Message    string            `json:"message"`
		Error      *string           `json:"error"`
		Stacktrace *string           `json:"stacktrace"`
		Labels     map[string]string `json:"labels"`
	} `json:"jsonPayload"`
}

// convertStructured renders structured records into the traditional
// line-oriented form the scanner understands. Records are sorted by timestamp
// when every record carries one; otherwise export order is kept. Per record
// the first matching branch wins:
//
//  1. a start marker emits as-is and opens service tracking
//  2. a Task URL line emits as-is
//  3. an error payload emits a synthetic traceback (stack lines when
//     present) followed by the error text
//  4. any other non-empty, non-marker message emits as-is
//  5. an end marker emits only while a service is open, and closes it
func convertStructured(records []structuredRecord) []string {
	allTimestamped := true
	for i := range records {
		if records[i].Timestamp == nil {
			allTimestamped = false
			break
		}
	}
	if allTimestamped {
		sort.SliceStable(records, func(i, j int) bool {
			return *records[i].Timestamp < *records[j].Timestamp
		})
	}

	currentService := ""
	lines := make([]string, 0, len(records))
	for i := range records {
		payload := &records[i].JSONPayload
		msg := payload.Message

		switch {
		case strings.Contains(msg, startMarker):
			currentService = extractService(msg)
			lines = append(lines, msg)

		case strings.Contains(msg, taskURLMarker):
			lines = append(lines, msg)

		case payload.Error != nil:
			if payload.Stacktrace != nil {
				lines = append(lines, "Traceback (most recent call last):")
				lines = append(lines, strings.Split(*payload.Stacktrace, "\n")...)
			}
			lines = append(lines, *payload.Error)

		case msg != "" && !strings.HasPrefix(msg, "===="):
			lines = append(lines, msg)

		case strings.Contains(msg, endMarker) && currentService != "":
			lines = append(lines, msg)
			currentService = ""
		}
	}
	return lines
}
