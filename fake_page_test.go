package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakePage is a scripted Page. Elements in clickable are found at once,
// anything else blocks until the step deadline like a real missing element.
type fakePage struct {
	mu sync.Mutex

	clickable map[string]bool
	values    map[string]string
	missing   map[string]bool // Value blocks on these
	onClick   map[string]func(p *fakePage)
	onRead    func(p *fakePage, sel string, n int)

	location string
	html     string
	navErr   error
	keyDelay time.Duration // SendKeys takes this long, like typing key by key

	reads int
	calls []string
}

func newFakePage() *fakePage {
	return &fakePage{
		clickable: map[string]bool{},
		values:    map[string]string{},
		missing:   map[string]bool{},
		onClick:   map[string]func(p *fakePage){},
		location:  "about:blank",
		html:      "<html><head><title>Personio</title></head><body></body></html>",
	}
}

func (p *fakePage) record(format string, args ...any) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

func (p *fakePage) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("navigate %s", url)
	if p.navErr != nil {
		return p.navErr
	}
	p.location = url
	return nil
}

func (p *fakePage) WaitClickable(ctx context.Context, sel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	ok := p.clickable[sel]
	p.mu.Unlock()
	if ok {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (p *fakePage) SendKeys(ctx context.Context, sel, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.keyDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.keyDelay):
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("keys %s %s", sel, text)
	p.values[sel] += text
	return nil
}

func (p *fakePage) Click(ctx context.Context, sel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	if !p.clickable[sel] {
		p.mu.Unlock()
		<-ctx.Done()
		return ctx.Err()
	}
	p.record("click %s", sel)
	hook := p.onClick[sel]
	if hook != nil {
		hook(p)
	}
	p.mu.Unlock()
	return nil
}

func (p *fakePage) Value(ctx context.Context, sel string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	if p.missing[sel] {
		p.mu.Unlock()
		<-ctx.Done()
		return "", ctx.Err()
	}
	p.reads++
	if p.onRead != nil {
		p.onRead(p, sel, p.reads)
	}
	v := p.values[sel]
	p.mu.Unlock()
	return v, nil
}

func (p *fakePage) Location(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location, nil
}

func (p *fakePage) WaitReady(ctx context.Context) error {
	return ctx.Err()
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, nil
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("\x89PNG"), nil
}

var errBoom = errors.New("boom")

func testConfig() *Config {
	return &Config{
		Personio: PersonioConfig{
			Subdomain:    "acme",
			EmailAddress: "jane@acme.test",
			Password:     "s3cret",
		},
		Run: RunConfig{
			WaitTimeout:  40 * time.Millisecond,
			PollInterval: 5 * time.Millisecond,
		},
		Selectors: defaultSelectors,
	}
}

func newTestRunner(t *testing.T, page *fakePage) (*Runner, *[]Event) {
	t.Helper()
	var mu sync.Mutex
	events := []Event{}
	r := &Runner{
		Page:   page,
		Config: testConfig(),
		RunID:  "0b7e2f1c-aaaa-bbbb-cccc-0123456789ab",
		Notify: func(ev Event) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		},
	}
	return r, &events
}
