package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const reportPrefix = "attendo_report_"

// REPORT DATA STRUCTURE
type Report struct {
	RunID      string        `json:"run_id"`
	PortalURL  string        `json:"portal_url"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Stages     []StageResult `json:"stages"`
	FinalURL   string        `json:"final_url,omitempty"`
	Page       *PageSummary  `json:"page,omitempty"`
	Error      string        `json:"error,omitempty"`
	Dumps      []string      `json:"dumps,omitempty"`
}

type StageResult struct {
	Stage    Stage         `json:"stage"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`
	Message  string        `json:"message,omitempty"`
}

func newReport(runID, portalURL string) *Report {
	r := &Report{
		RunID:     runID,
		PortalURL: portalURL,
		StartedAt: time.Now(),
	}
	for _, s := range allStages {
		r.Stages = append(r.Stages, StageResult{Stage: s, Status: StatusPending})
	}
	return r
}

func (r *Report) stage(s Stage) *StageResult {
	for i := range r.Stages {
		if r.Stages[i].Stage == s {
			return &r.Stages[i]
		}
	}
	r.Stages = append(r.Stages, StageResult{Stage: s, Status: StatusPending})
	return &r.Stages[len(r.Stages)-1]
}

func (r *Report) finish(err error) {
	r.FinishedAt = time.Now()
	if err != nil {
		r.Error = err.Error()
	}
}

func (r *Report) OK() bool {
	return r.Error == ""
}

// saves the report as JSON in the OS temp folder and returns its path
func saveReport(r *Report) (string, error) {
	filename := fmt.Sprintf("%s%s_%s.json", reportPrefix, r.StartedAt.Format("2006-01-02_150405"), shortID(r.RunID))
	fullPath, err := saveToJSON(r, filename)
	if err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	slog.Info("Report saved to " + fullPath)
	return fullPath, nil
}

// Save data to a JSON file in the OS temp folder
func saveToJSON(data any, filename string) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(os.TempDir(), filename)
	if err := os.WriteFile(fullPath, jsonData, 0644); err != nil {
		return "", err
	}
	return fullPath, nil
}

// readLatestReport returns the saved report of the run that started last.
// Files that cannot be read or decoded are skipped.
func readLatestReport() (*Report, error) {
	tempDir := os.TempDir()
	matches, err := filepath.Glob(filepath.Join(tempDir, reportPrefix+"*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to search for reports: %w", err)
	}

	var latest *Report
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Debug("Skipping unreadable report", "path", path, "error", err)
			continue
		}
		var r Report
		if err := json.Unmarshal(data, &r); err != nil || r.StartedAt.IsZero() {
			slog.Debug("Skipping invalid report", "path", path, "error", err)
			continue
		}
		if latest == nil || r.StartedAt.After(latest.StartedAt) {
			latest = &r
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("no reports found in %s", tempDir)
	}
	slog.Info("Loaded latest report", "run", latest.RunID, "started_at", latest.StartedAt)
	return latest, nil
}
