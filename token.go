package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// waitForToken polls the token input every poll interval until a human has
// put something in it. Tokens typed in the terminal are forwarded into the
// input and picked up by the next poll. It reports submitted=true when the
// input disappeared, meaning the form was sent from the browser directly.
func (r *Runner) waitForToken(ctx context.Context) (submitted bool, err error) {
	parent := ctx
	if r.Config.Run.TokenTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Config.Run.TokenTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(r.Config.Run.PollInterval)
	defer ticker.Stop()

	sel := r.Config.Selectors.Token
	tokens := r.Tokens
	for {
		current, gone, err := r.readToken(ctx, sel)
		if err != nil {
			return false, tokenWaitErr(parent, err)
		}
		if gone {
			return true, nil
		}

		slog.Info("Current token", "length", len(current))
		if len(current) > 0 {
			slog.Warn("Token entered, continuing")
			return false, nil
		}
		slog.Warn("No token, sleeping")

		select {
		case <-ctx.Done():
			return false, tokenWaitErr(parent, ctx.Err())
		case <-ticker.C:
		case typed, ok := <-tokens:
			if !ok {
				tokens = nil
				continue
			}
			if err := r.typeToken(ctx, sel, typed); err != nil {
				return false, tokenWaitErr(parent, err)
			}
		}
	}
}

// readToken reads the input value within one step wait. A step timeout
// means the input is no longer on the page.
func (r *Runner) readToken(ctx context.Context, sel string) (value string, gone bool, err error) {
	readCtx, cancel := context.WithTimeout(ctx, r.Config.Run.WaitTimeout)
	defer cancel()

	value, err = r.Page.Value(readCtx, sel)
	if err != nil {
		if stepTimedOut(ctx, err) {
			return "", true, nil
		}
		return "", false, fmt.Errorf("failed to read token input: %w", err)
	}
	return value, false, nil
}

func (r *Runner) typeToken(ctx context.Context, sel, token string) error {
	if token == "" {
		return nil
	}
	slog.Info("Typing token from terminal", "length", len(token))
	typeCtx, cancel := context.WithTimeout(ctx, r.Config.Run.WaitTimeout)
	defer cancel()
	if err := r.Page.SendKeys(typeCtx, sel, token); err != nil {
		return fmt.Errorf("failed to type token: %w", err)
	}
	return nil
}

// the run being cancelled wins over our own token deadline
func tokenWaitErr(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTokenTimeout
	}
	return err
}
