package main

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yosssi/gohtml"
)

// PageSummary is what we can tell about the page a run ended on.
type PageSummary struct {
	Title           string `json:"title"`
	Heading         string `json:"heading,omitempty"`
	LoginForm       bool   `json:"login_form"`
	TokenForm       bool   `json:"token_form"`
	AttendanceLinks int    `json:"attendance_links"`
}

// extracts title, first heading and leftover auth forms from the page HTML
func summarizePage(html string) (PageSummary, error) {
	// NewDocumentFromReader takes a io.Reader not a string
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return PageSummary{}, fmt.Errorf("failed to parse page: %w", err)
	}

	summary := PageSummary{
		Title:           collapseSpace(doc.Find("title").First().Text()),
		LoginForm:       doc.Find("input#email").Length() > 0 && doc.Find("input#password").Length() > 0,
		TokenForm:       doc.Find("input#token").Length() > 0,
		AttendanceLinks: doc.Find(`a[data-test-id="navsidebar-sub-myAttendance"]`).Length(),
	}
	doc.Find("h1, h2").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := collapseSpace(s.Text()); text != "" {
			summary.Heading = text
			return false
		}
		return true
	})
	return summary, nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanDump prepares a page for saving to disk: it drops head, scripts,
// styles and icons, blanks the value of password and token inputs and
// pretty prints what is left
func cleanDump(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}
	doc.Find("head, script, noscript, link, style, svg").Remove()
	doc.Find(`input[type="password"], input#token`).RemoveAttr("value")

	out, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		return "", fmt.Errorf("failed to render page: %w", err)
	}
	out = strings.ReplaceAll(out, "<!---->", "")
	return gohtml.Format(out), nil
}
