package main

import (
	"fmt"
	"strings"
	"time"
)

// renderReport prints a finished run, used by --plain and the last command
func renderReport(r *Report) string {
	var result strings.Builder
	result.WriteString("------------------------ Run ------------------------\n")
	result.WriteString(fmt.Sprintf(" Run:        %s\n", r.RunID))
	result.WriteString(fmt.Sprintf(" Portal:     %s\n", r.PortalURL))
	result.WriteString(fmt.Sprintf(" Started:    %s\n", r.StartedAt.Format("2006-01-02 15:04:05")))
	if !r.FinishedAt.IsZero() {
		result.WriteString(fmt.Sprintf(" Took:       %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Second)))
	}
	result.WriteString("\n Stage        | Status   | Time   \n")
	result.WriteString("-----------------------------------------------------\n")
	for _, st := range r.Stages {
		status := string(st.Status)
		switch st.Status {
		case StatusDone:
			status = greenStyle.Render(fmt.Sprintf("%-8s", status))
		case StatusFailed:
			status = redStyle.Render(fmt.Sprintf("%-8s", status))
		default:
			status = fmt.Sprintf("%-8s", status)
		}
		var took string
		if st.Status != StatusPending {
			took = st.Duration.Round(100 * time.Millisecond).String()
		}
		result.WriteString(fmt.Sprintf(" %-12s | %s | %-7s\n", stageLabels[st.Stage], status, took))
	}
	result.WriteString("-----------------------------------------------------\n")
	result.WriteString(renderOutcome(r))
	for _, d := range r.Dumps {
		result.WriteString(fmt.Sprintf(" Dump:       %s\n", d))
	}
	return result.String()
}

// renderOutcome is the one or two line verdict of a run
func renderOutcome(r *Report) string {
	var result strings.Builder
	if !r.OK() {
		result.WriteString(redStyle.Render(" Failed: "+r.Error) + "\n")
		return result.String()
	}
	result.WriteString(greenStyle.Render(" Attendance page reached") + "\n")
	if r.FinalURL != "" {
		result.WriteString(fmt.Sprintf(" Location:   %s\n", r.FinalURL))
	}
	if r.Page != nil {
		if r.Page.Heading != "" {
			result.WriteString(fmt.Sprintf(" Heading:    %s\n", r.Page.Heading))
		} else if r.Page.Title != "" {
			result.WriteString(fmt.Sprintf(" Title:      %s\n", r.Page.Title))
		}
		if r.Page.LoginForm || r.Page.TokenForm {
			result.WriteString(redStyle.Render(" Warning: a login or token form is still on the page") + "\n")
		}
	}
	return result.String()
}
