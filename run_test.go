package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const attendanceHTML = `<html><head><title>Attendance | Personio</title></head>
<body><nav><a data-test-id="navsidebar-sub-myAttendance" href="/attendance">Attendance</a></nav>
<main><h1>  My   attendance </h1></main></body></html>`

// portalPage scripts the full portal: login, token, the login form coming
// back once more, then the dashboard with the attendance link
func portalPage() *fakePage {
	sel := defaultSelectors
	page := newFakePage()
	page.clickable[sel.LoginButton] = true
	logins := 0
	page.onClick[sel.LoginButton] = func(p *fakePage) {
		logins++
		delete(p.clickable, sel.LoginButton)
		if logins == 1 {
			p.clickable[sel.ContinueButton] = true
			return
		}
		p.clickable[sel.AttendanceLink] = true
	}
	page.onRead = func(p *fakePage, s string, n int) {
		if n == 2 {
			p.values[s] = "987654"
		}
	}
	page.onClick[sel.ContinueButton] = func(p *fakePage) {
		delete(p.clickable, sel.ContinueButton)
		p.clickable[sel.LoginButton] = true
	}
	page.onClick[sel.AttendanceLink] = func(p *fakePage) {
		p.location = "https://acme.personio.de/attendance"
		p.html = attendanceHTML
	}
	return page
}

func statuses(r *Report) map[Stage]Status {
	out := map[Stage]Status{}
	for _, s := range r.Stages {
		out[s.Stage] = s.Status
	}
	return out
}

func TestRunFullFlowWithRelogin(t *testing.T) {
	page := portalPage()
	r, events := newTestRunner(t, page)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.True(t, report.OK())

	sel := defaultSelectors
	assert.Equal(t, []string{
		"navigate https://acme.personio.de",
		"keys " + sel.Email + " jane@acme.test",
		"keys " + sel.Password + " s3cret",
		"click " + sel.LoginButton,
		"click " + sel.ContinueButton,
		"keys " + sel.Email + " jane@acme.test",
		"keys " + sel.Password + " s3cret",
		"click " + sel.LoginButton,
		"click " + sel.AttendanceLink,
	}, page.Calls())

	assert.Equal(t, map[Stage]Status{
		StageOpen:       StatusDone,
		StageLogin:      StatusDone,
		StageToken:      StatusDone,
		StageRelogin:    StatusDone,
		StageAttendance: StatusDone,
	}, statuses(report))

	assert.Equal(t, "https://acme.personio.de/attendance", report.FinalURL)
	require.NotNil(t, report.Page)
	assert.Equal(t, "My attendance", report.Page.Heading)
	assert.Equal(t, 1, report.Page.AttendanceLinks)
	assert.False(t, report.Page.LoginForm)
	assert.False(t, report.FinishedAt.IsZero())

	var waited bool
	for _, ev := range *events {
		if ev.Stage == StageToken && ev.Status == StatusWaiting {
			waited = true
		}
	}
	assert.True(t, waited, "token stage should announce that it waits for a human")
}

func TestRunInspectsPageAfterSlowNavigation(t *testing.T) {
	sel := defaultSelectors
	page := newFakePage()
	page.clickable[sel.AttendanceLink] = true
	page.onClick[sel.AttendanceLink] = func(p *fakePage) {
		// the click returns before the next document commits
		time.AfterFunc(15*time.Millisecond, func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.location = "https://acme.personio.de/attendance"
			p.html = attendanceHTML
		})
	}
	r, _ := newTestRunner(t, page)
	r.Config.Run.WaitTimeout = 200 * time.Millisecond

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://acme.personio.de/attendance", report.FinalURL)
	require.NotNil(t, report.Page)
	assert.Equal(t, "My attendance", report.Page.Heading)
}

func TestRunAlreadyLoggedIn(t *testing.T) {
	page := newFakePage()
	page.clickable[defaultSelectors.AttendanceLink] = true
	r, _ := newTestRunner(t, page)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[Stage]Status{
		StageOpen:       StatusDone,
		StageLogin:      StatusSkipped,
		StageToken:      StatusPending,
		StageRelogin:    StatusPending,
		StageAttendance: StatusDone,
	}, statuses(report))
}

func TestRunLoginWithoutToken(t *testing.T) {
	sel := defaultSelectors
	page := newFakePage()
	page.clickable[sel.LoginButton] = true
	page.onClick[sel.LoginButton] = func(p *fakePage) {
		delete(p.clickable, sel.LoginButton)
		p.clickable[sel.AttendanceLink] = true
	}
	r, _ := newTestRunner(t, page)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[Stage]Status{
		StageOpen:       StatusDone,
		StageLogin:      StatusDone,
		StageToken:      StatusSkipped,
		StageRelogin:    StatusPending,
		StageAttendance: StatusDone,
	}, statuses(report))
}

func TestRunReloginWithoutCredentials(t *testing.T) {
	page := portalPage()
	r, _ := newTestRunner(t, page)
	// the password is only good for one login, the second form finds it gone
	submitToken := page.onClick[defaultSelectors.ContinueButton]
	page.onClick[defaultSelectors.ContinueButton] = func(p *fakePage) {
		submitToken(p)
		r.Config.Personio.Password = ""
	}

	report, err := r.Run(context.Background())
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Equal(t, map[Stage]Status{
		StageOpen:       StatusDone,
		StageLogin:      StatusDone,
		StageToken:      StatusDone,
		StageRelogin:    StatusFailed,
		StageAttendance: StatusPending,
	}, statuses(report))
	assert.Equal(t, ErrMissingCredentials.Error(), report.Error)
}

func TestRunAttendanceMissing(t *testing.T) {
	page := newFakePage()
	r, events := newTestRunner(t, page)

	report, err := r.Run(context.Background())
	assert.ErrorIs(t, err, ErrAttendanceNotFound)
	require.NotNil(t, report)
	assert.False(t, report.OK())
	assert.Equal(t, ErrAttendanceNotFound.Error(), report.Error)
	assert.Equal(t, StatusFailed, statuses(report)[StageAttendance])
	assert.Nil(t, report.Page)

	last := (*events)[len(*events)-1]
	assert.Equal(t, StageAttendance, last.Stage)
	assert.Equal(t, StatusFailed, last.Status)
}

func TestRunNavigateError(t *testing.T) {
	page := newFakePage()
	page.navErr = errBoom
	r, _ := newTestRunner(t, page)

	report, err := r.Run(context.Background())
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, StatusFailed, statuses(report)[StageOpen])
	assert.Equal(t, StatusPending, statuses(report)[StageLogin])
}

func TestRunCancelled(t *testing.T) {
	page := portalPage()
	r, _ := newTestRunner(t, page)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, report.OK())
}

func TestRunDumps(t *testing.T) {
	t.Run("failure saves html and screenshot", func(t *testing.T) {
		page := newFakePage()
		r, _ := newTestRunner(t, page)
		r.Config.Run.DumpDir = filepath.Join(t.TempDir(), "dumps")

		report, err := r.Run(context.Background())
		require.Error(t, err)
		require.Len(t, report.Dumps, 2)
		assert.Equal(t, ".html", filepath.Ext(report.Dumps[0]))
		assert.Equal(t, ".png", filepath.Ext(report.Dumps[1]))
		for _, d := range report.Dumps {
			assert.FileExists(t, d)
		}
	})

	t.Run("success saves formatted html only", func(t *testing.T) {
		page := portalPage()
		r, _ := newTestRunner(t, page)
		r.Config.Run.DumpDir = t.TempDir()

		report, err := r.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, report.Dumps, 1)

		data, err := os.ReadFile(report.Dumps[0])
		require.NoError(t, err)
		assert.Contains(t, string(data), "navsidebar-sub-myAttendance")
		assert.NotContains(t, string(data), "<title>")
	})
}
