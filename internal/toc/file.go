package toc

import (
	"fmt"
	"os"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/report"
)

// Mode selects the insertion convention.
type Mode int

const (
	ModeMarkers Mode = iota
	ModeHeading
)

// Status is the outcome of updating one file.
type Status string

const (
	StatusUpdated   Status = "updated"
	StatusUnchanged Status = "unchanged"
)

// Generate renders a TOC for content and inserts it using mode.
func Generate(content string, mode Mode, opts Options) string {
	body := Render(ExtractHeadings(content, opts), opts)
	if mode == ModeHeading {
		return InsertWithHeading(content, body)
	}
	return InsertWithMarkers(content, body)
}

// UpdateFile regenerates the TOC of the file at path. The file is only
// rewritten when its content changes.
func UpdateFile(path string, mode Mode, opts Options) (Status, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	updated := Generate(string(data), mode, opts)
	if updated == string(data) {
		return StatusUnchanged, nil
	}
	if err := os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return StatusUpdated, nil
}

// ValidateFile reads path and validates its TOC.
func ValidateFile(path string, opts Options) (report.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return report.Result{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return Validate(path, string(data), opts), nil
}
