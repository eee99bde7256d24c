package build

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ReportName is the manifest file written into the output root. Its
// presence marks a directory as fieldsite-managed, which is what allows a
// later build to replace the directory wholesale.
const ReportName = "build.json"

// Report captures the outcome of one site build.
type Report struct {
	SchemaVersion int       `json:"schema_version"`
	BuildID       string    `json:"build_id"`
	ConfigHash    string    `json:"config_hash"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Pages         int       `json:"pages"`
	Assets        int       `json:"assets"`
	Warnings      []string  `json:"warnings"`
}

// Duration returns the wall time of the build.
func (r *Report) Duration() time.Duration { return r.End.Sub(r.Start) }

// Summary is the one-line outcome the build command logs.
func (r *Report) Summary() string {
	return fmt.Sprintf("pages=%d assets=%d duration=%s warnings=%d build_id=%s",
		r.Pages, r.Assets, r.Duration().Truncate(time.Millisecond), len(r.Warnings), r.BuildID)
}

// write persists the report atomically into dir.
func (r *Report) write(dir string) error {
	// Non-nil slice so JSON shows [] rather than null.
	if r.Warnings == nil {
		r.Warnings = []string{}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal build report: %w", err)
	}
	path := filepath.Join(dir, ReportName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write build report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomic rename build report: %w", err)
	}
	return nil
}

// ReadReport loads the manifest of a previous build from an output dir.
func ReadReport(dir string) (*Report, error) {
	data, err := os.ReadFile(filepath.Join(dir, ReportName))
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ReportName, err)
	}
	return &r, nil
}
