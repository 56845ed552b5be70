package ops

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hpungsan/klip/internal/entry"
	"github.com/hpungsan/klip/internal/errors"
)

// maxImportLine bounds a single JSONL record; rich text entries can be large.
const maxImportLine = 16 * 1024 * 1024

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string // required
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Dropped  int           `json:"dropped"`
	Errors   []ImportError `json:"errors,omitempty"`
}

// ImportError represents an error that occurred during import.
type ImportError struct {
	Line    int    `json:"line"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Import merges the entries of a JSONL export behind the current history.
// Entries whose ID already exists are skipped. Imported entries go through
// reload validation, so those whose content is gone or that exceed the
// history cap are dropped.
func Import(h History, policy PathPolicy, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if err := ValidatePath(input.Path, PathCheckRead, policy.allowed()); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	records, out := parseExport(file)

	existing := h.Snapshot()
	seen := make(map[string]bool, len(existing)+len(records))
	for _, e := range existing {
		seen[e.ID] = true
	}

	merged := existing
	fresh := make(map[string]bool, len(records))
	for _, r := range records {
		if seen[r.ID] {
			out.Skipped++
			continue
		}
		seen[r.ID] = true
		fresh[r.ID] = true
		merged = append(merged, r.ToEntry())
	}
	if len(fresh) == 0 {
		return out, nil
	}

	// Existing entries can be dropped as stale too, so count survivors by ID.
	h.ReloadValidate(merged)
	for _, e := range h.Snapshot() {
		if fresh[e.ID] {
			out.Imported++
		}
	}
	out.Dropped = len(fresh) - out.Imported
	return out, nil
}

// parseExport reads records from a JSONL export, collecting per-line errors.
func parseExport(r io.Reader) ([]Record, *ImportOutput) {
	out := &ImportOutput{}
	var records []Record

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxImportLine)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var head struct {
			KlipExport bool `json:"_klip_export"`
		}
		if err := json.Unmarshal(line, &head); err != nil {
			out.Errors = append(out.Errors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if head.KlipExport {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			out.Errors = append(out.Errors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid record: %v", err),
			})
			continue
		}
		if msg := validateRecord(rec); msg != "" {
			out.Errors = append(out.Errors, ImportError{
				Line:    lineNum,
				ID:      rec.ID,
				Code:    "INVALID_RECORD",
				Message: msg,
			})
			continue
		}
		rec.Kind, _ = entry.ParseKind(string(rec.Kind))
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		out.Errors = append(out.Errors, ImportError{
			Line:    lineNum,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	out.Skipped = len(out.Errors)
	return records, out
}

func validateRecord(r Record) string {
	if r.ID == "" {
		return "missing id field"
	}
	if _, ok := entry.ParseKind(string(r.Kind)); !ok {
		return fmt.Sprintf("unknown kind %q", r.Kind)
	}
	if r.CreatedAt.IsZero() {
		return "missing created_at field"
	}
	return ""
}
