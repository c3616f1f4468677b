// Package project reads and writes PressQuote job files and quote exports.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/piwi3910/PressQuote/internal/costing"
	"github.com/piwi3910/PressQuote/internal/model"
	"github.com/piwi3910/PressQuote/internal/rates"
)

// FormatVersion is written into every file this package produces.
const FormatVersion = "1.0.0"

// JobFile is a quote request saved to disk, optionally with the rates to
// price it with. Inline rates take the place of the configured rate store.
type JobFile struct {
	Version   string             `json:"version"`
	CreatedAt string             `json:"created_at,omitempty"`
	Request   model.QuoteRequest `json:"request"`
	Rates     []rates.RateRow    `json:"rates,omitempty"`
}

// HasRates reports whether the file carries its own rates.
func (j JobFile) HasRates() bool {
	return len(j.Rates) > 0
}

// QuoteExport is the result of pricing a job, written for archiving or for
// another system to pick up.
type QuoteExport struct {
	Version    string              `json:"version"`
	CreatedAt  string              `json:"created_at"`
	Request    model.QuoteRequest  `json:"request"`
	Settings   model.Settings      `json:"settings"`
	Breakdowns []costing.Breakdown `json:"breakdowns"`
}

// NewJobFile wraps a request in a JobFile stamped with the current time.
func NewJobFile(req model.QuoteRequest, rows []rates.RateRow) JobFile {
	return JobFile{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Request:   req,
		Rates:     rows,
	}
}

// SaveJob writes a job file as indented JSON, creating parent directories.
func SaveJob(path string, job JobFile) error {
	if job.Version == "" {
		job.Version = FormatVersion
	}
	return writeJSON(path, job)
}

// LoadJob reads a job file. A missing version field marks a file this
// package did not write.
func LoadJob(path string) (JobFile, error) {
	var job JobFile
	if err := readJSON(path, &job); err != nil {
		return JobFile{}, err
	}
	if job.Version == "" {
		return JobFile{}, fmt.Errorf("invalid job file %s: missing version field", path)
	}
	return job, nil
}

// ExportQuote writes the priced breakdowns of a request.
func ExportQuote(path string, req model.QuoteRequest, settings model.Settings, breakdowns []costing.Breakdown) error {
	return writeJSON(path, QuoteExport{
		Version:    FormatVersion,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		Request:    req,
		Settings:   settings,
		Breakdowns: breakdowns,
	})
}

// ImportQuote reads a quote export. Breakdown totals are re-derived from the
// line items, so a hand-edited file cannot carry inconsistent totals.
func ImportQuote(path string) (QuoteExport, error) {
	var exp QuoteExport
	if err := readJSON(path, &exp); err != nil {
		return QuoteExport{}, err
	}
	if exp.Version == "" {
		return QuoteExport{}, fmt.Errorf("invalid quote export %s: missing version field", path)
	}
	if len(exp.Breakdowns) == 0 {
		return QuoteExport{}, fmt.Errorf("invalid quote export %s: no breakdowns", path)
	}
	for i := range exp.Breakdowns {
		if err := exp.Breakdowns[i].Check(); err != nil {
			return QuoteExport{}, fmt.Errorf("invalid quote export %s: breakdown %d: %w", path, i+1, err)
		}
		exp.Breakdowns[i].Recompute()
	}
	return exp, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
