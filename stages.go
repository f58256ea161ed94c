package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	ErrMissingCredentials = errors.New("login form shown but personio.email_address or personio.password is empty")
	ErrTokenTimeout       = errors.New("no token entered before run.token_timeout")
	ErrAttendanceNotFound = errors.New("attendance link not found")
)

// waitClickable gives sel one step wait to become clickable. The first
// timeout wins: an expired step reports (false, nil) and the caller skips
// the stage. Cancellation of ctx itself is returned as an error.
func waitClickable(ctx context.Context, page Page, sel string, wait time.Duration) (bool, error) {
	stepCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	err := page.WaitClickable(stepCtx, sel)
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded), stepCtx.Err() != nil:
		return false, nil
	default:
		return false, err
	}
}

// stepTimedOut reports whether err came from a step deadline while the run is still alive
func stepTimedOut(ctx context.Context, err error) bool {
	return ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded)
}

// login fills and submits the login form if it shows up within one step wait.
func (r *Runner) login(ctx context.Context) (bool, error) {
	sel := r.Config.Selectors
	slog.Info("Waiting for login button")
	found, err := waitClickable(ctx, r.Page, sel.LoginButton, r.Config.Run.WaitTimeout)
	if err != nil {
		return false, fmt.Errorf("login: %w", err)
	}
	if !found {
		slog.Info("No login button, skipping login page")
		return false, nil
	}
	if !r.Config.HasCredentials() {
		return false, ErrMissingCredentials
	}

	slog.Info("Found login button, filling form data")
	if err := r.act(ctx, func(ctx context.Context) error {
		return r.Page.SendKeys(ctx, sel.Email, r.Config.Personio.EmailAddress)
	}); err != nil {
		return false, fmt.Errorf("failed to fill email address: %w", err)
	}
	if err := r.act(ctx, func(ctx context.Context) error {
		return r.Page.SendKeys(ctx, sel.Password, r.Config.Personio.Password)
	}); err != nil {
		return false, fmt.Errorf("failed to fill password: %w", err)
	}

	slog.Info("Clicking login button")
	if err := r.act(ctx, func(ctx context.Context) error {
		return r.Page.Click(ctx, sel.LoginButton)
	}); err != nil {
		return false, fmt.Errorf("failed to click login button: %w", err)
	}
	return true, nil
}

// act runs one browser action under its own step wait
func (r *Runner) act(ctx context.Context, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, r.Config.Run.WaitTimeout)
	defer cancel()
	return fn(stepCtx)
}

// token waits for the one-time-token form, lets a human fill it and submits it.
func (r *Runner) token(ctx context.Context) (bool, error) {
	sel := r.Config.Selectors
	slog.Info("Waiting for continue login button")
	found, err := waitClickable(ctx, r.Page, sel.ContinueButton, r.Config.Run.WaitTimeout)
	if err != nil {
		return false, fmt.Errorf("token: %w", err)
	}
	if !found {
		slog.Info("No continue login button, skipping token page")
		return false, nil
	}

	slog.Warn("Found continue login button, waiting for you to enter the token")
	hint := "enter the token in the browser"
	if r.Tokens != nil {
		hint = "type the token below or in the browser"
	}
	r.emit(StageToken, StatusWaiting, hint)

	submitted, err := r.waitForToken(ctx)
	if err != nil {
		return false, err
	}
	if submitted {
		slog.Warn("Token field gone, token was submitted from the browser")
		return true, nil
	}

	slog.Info("Clicking continue login button")
	if err := r.act(ctx, func(ctx context.Context) error {
		return r.Page.Click(ctx, sel.ContinueButton)
	}); err != nil {
		if stepTimedOut(ctx, err) {
			slog.Warn("Continue login button gone, token was submitted from the browser")
			return true, nil
		}
		return false, fmt.Errorf("failed to click continue login button: %w", err)
	}
	return true, nil
}

// attendance clicks the attendance navigation link. Unlike the other
// stages a missing link is an error: it is the point of the run.
func (r *Runner) attendance(ctx context.Context) (bool, error) {
	sel := r.Config.Selectors.AttendanceLink
	slog.Info("Waiting for attendance button")
	found, err := waitClickable(ctx, r.Page, sel, r.Config.Run.WaitTimeout)
	if err != nil {
		return false, fmt.Errorf("attendance: %w", err)
	}
	if !found {
		return false, ErrAttendanceNotFound
	}

	from, err := r.Page.Location(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read location: %w", err)
	}

	slog.Info("Found attendance button, clicking")
	if err := r.act(ctx, func(ctx context.Context) error {
		return r.Page.Click(ctx, sel)
	}); err != nil {
		return false, fmt.Errorf("failed to click attendance button: %w", err)
	}
	if err := r.waitNavigated(ctx, from); err != nil {
		return false, err
	}
	return true, nil
}

// waitNavigated gives the page one step wait to leave from and load the
// next document. A page that stays put is logged, not failed: the click
// already happened.
func (r *Runner) waitNavigated(ctx context.Context, from string) error {
	stepCtx, cancel := context.WithTimeout(ctx, r.Config.Run.WaitTimeout)
	defer cancel()

	ticker := time.NewTicker(min(r.Config.Run.PollInterval, 100*time.Millisecond))
	defer ticker.Stop()

	for {
		url, err := r.Page.Location(stepCtx)
		if err == nil && url != from {
			err = r.Page.WaitReady(stepCtx)
		}
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err == nil && url != from:
			slog.Info("Attendance page loaded", "url", url)
			return nil
		case err != nil && !errors.Is(err, context.DeadlineExceeded):
			return fmt.Errorf("failed waiting for attendance page: %w", err)
		}

		select {
		case <-stepCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("Page did not navigate after clicking attendance button", "url", from)
			return nil
		case <-ticker.C:
		}
	}
}
