package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

type Stage string

const (
	StageOpen       Stage = "open"
	StageLogin      Stage = "login"
	StageToken      Stage = "token"
	StageRelogin    Stage = "relogin"
	StageAttendance Stage = "attendance"
)

// stages in the order a run walks them
var allStages = []Stage{StageOpen, StageLogin, StageToken, StageRelogin, StageAttendance}

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusWaiting Status = "waiting"
	StatusDone    Status = "done"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Event is sent to Runner.Notify on every stage transition.
type Event struct {
	Stage   Stage
	Status  Status
	Message string
	At      time.Time
}

// Runner walks the portal from the start page to the attendance page.
type Runner struct {
	Page   Page
	Config *Config
	RunID  string

	// Notify, if set, receives stage transitions. It is called
	// synchronously from the goroutine running Run, so the run waits for
	// it to return.
	Notify func(Event)

	// Tokens, if set, delivers tokens typed in the terminal while the
	// token stage is waiting.
	Tokens <-chan string
}

func (r *Runner) emit(stage Stage, status Status, msg string) {
	if r.Notify != nil {
		r.Notify(Event{Stage: stage, Status: status, Message: msg, At: time.Now()})
	}
}

// Run executes one pass: open, login, token, relogin, attendance. The
// token stage only runs after a login and the relogin stage only after a
// token, since the portal only re-shows the login form in that case.
// The returned report is never nil.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := newReport(r.RunID, r.Config.PortalURL())
	err := r.run(ctx, report)

	if err == nil {
		r.inspect(ctx, report)
	}
	if r.Config.Run.DumpDir != "" && ctx.Err() == nil {
		r.dump(ctx, report, err != nil)
	}
	report.finish(err)

	if err != nil {
		slog.Error("Run failed", "error", err)
	} else {
		slog.Info("Run completed", "final_url", report.FinalURL)
	}
	return report, err
}

func (r *Runner) run(ctx context.Context, report *Report) error {
	url := r.Config.PortalURL()
	_, err := r.stage(ctx, report, StageOpen, func(ctx context.Context) (bool, error) {
		slog.Info("Opening portal", "url", url)
		if err := r.Page.Navigate(ctx, url); err != nil {
			return false, fmt.Errorf("failed to open %s: %w", url, err)
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	loggedIn, err := r.stage(ctx, report, StageLogin, r.login)
	if err != nil {
		return err
	}
	if loggedIn {
		tokenDone, err := r.stage(ctx, report, StageToken, r.token)
		if err != nil {
			return err
		}
		if tokenDone {
			// Sometimes the login page is opened again after the token page
			if _, err := r.stage(ctx, report, StageRelogin, r.login); err != nil {
				return err
			}
		}
	}

	_, err = r.stage(ctx, report, StageAttendance, r.attendance)
	return err
}

func (r *Runner) stage(ctx context.Context, report *Report, stage Stage, fn func(context.Context) (bool, error)) (bool, error) {
	r.emit(stage, StatusRunning, "")
	start := time.Now()
	ran, err := fn(ctx)

	res := report.stage(stage)
	res.Duration = time.Since(start)
	switch {
	case err != nil:
		res.Status = StatusFailed
		res.Message = err.Error()
	case ran:
		res.Status = StatusDone
	default:
		res.Status = StatusSkipped
	}
	r.emit(stage, res.Status, res.Message)
	return ran, err
}

// inspect records where the run ended up; failures here do not fail the run
func (r *Runner) inspect(ctx context.Context, report *Report) {
	stepCtx, cancel := context.WithTimeout(ctx, r.Config.Run.WaitTimeout)
	defer cancel()

	if url, err := r.Page.Location(stepCtx); err == nil {
		report.FinalURL = url
	} else {
		slog.Warn("Failed to read final location", "error", err)
	}
	html, err := r.Page.HTML(stepCtx)
	if err != nil {
		slog.Warn("Failed to read final page", "error", err)
		return
	}
	summary, err := summarizePage(html)
	if err != nil {
		slog.Warn("Failed to parse final page", "error", err)
		return
	}
	report.Page = &summary
}

// dump saves the formatted page HTML, plus a screenshot when the run failed
func (r *Runner) dump(ctx context.Context, report *Report, failed bool) {
	dir := r.Config.Run.DumpDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("Failed to create dump dir", "dir", dir, "error", err)
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, r.Config.Run.WaitTimeout)
	defer cancel()

	prefix := filepath.Join(dir, fmt.Sprintf("attendo_%s_%s", report.StartedAt.Format("20060102_150405"), shortID(report.RunID)))

	html, err := r.Page.HTML(stepCtx)
	if err == nil {
		html, err = cleanDump(html)
	}
	if err != nil {
		slog.Warn("Failed to read page for dump", "error", err)
	} else if err := os.WriteFile(prefix+".html", []byte(html), 0644); err != nil {
		slog.Error("Failed to write HTML dump", "error", err)
	} else {
		report.Dumps = append(report.Dumps, prefix+".html")
	}

	if !failed {
		return
	}
	if png, err := r.Page.Screenshot(stepCtx); err == nil {
		if err := os.WriteFile(prefix+".png", png, 0644); err != nil {
			slog.Error("Failed to write screenshot", "error", err)
		} else {
			report.Dumps = append(report.Dumps, prefix+".png")
		}
	} else {
		slog.Warn("Failed to capture screenshot", "error", err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
