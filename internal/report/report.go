// Package report renders a reviewer-facing summary of the queue.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/mapreview/internal/category"
	"github.com/hpungsan/mapreview/internal/review"
)

// maxPendingListed caps the pending mapcodes printed in a summary.
const maxPendingListed = 50

// Outcome is the result of finishing a session.
type Outcome struct {
	SavedPath  string
	Submitted  bool
	HTTPStatus int
	Message    string
}

// Counts tallies the queue by decision.
type Counts struct {
	Total     int                       `json:"total"`
	Pending   int                       `json:"pending"`
	Hidden    int                       `json:"hidden"`
	Decisions map[category.Decision]int `json:"decisions"`
}

// Count tallies items.
func Count(items []review.Item) Counts {
	c := Counts{Total: len(items), Decisions: map[category.Decision]int{}}
	for i := range items {
		it := &items[i]
		if it.Hidden() {
			c.Hidden++
		}
		if it.Decision == nil {
			c.Pending++
			continue
		}
		c.Decisions[*it.Decision]++
	}
	return c
}

var decisionLabels = []struct {
	d     category.Decision
	label string
}{
	{category.LeftAsIs, "Left as is"},
	{category.P1ed, "P1ed"},
	{category.WillBeDiscussed, "Will be discussed"},
	{category.Ignored, "Ignored"},
}

// Markdown summarizes st. out may be nil when the session has not finished.
func Markdown(st *review.AppState, out *Outcome) string {
	var b strings.Builder

	if s := st.Session; s != nil {
		title := s.Category
		if c, ok := category.Find(s.Category); ok {
			title = c.Description
		}
		fmt.Fprintf(&b, "# Review session: %s\n\n", title)
		fmt.Fprintf(&b, "- Started: %s\n", s.StartedAt.UTC().Format("2006-01-02 15:04"))
		fmt.Fprintf(&b, "- Input: %s\n", s.InputMethod)
		if s.ThreadID != nil {
			fmt.Fprintf(&b, "- Thread: %s\n", *s.ThreadID)
		}
		if s.LimitPerUser != nil {
			fmt.Fprintf(&b, "- Limit per user: %d\n", *s.LimitPerUser)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("# Review queue\n\nNo active session.\n\n")
	}

	c := Count(st.Items)
	b.WriteString("## Decisions\n\n")
	b.WriteString("| Decision | Count |\n|---|---|\n")
	for _, row := range decisionLabels {
		fmt.Fprintf(&b, "| %s | %d |\n", row.label, c.Decisions[row.d])
	}
	fmt.Fprintf(&b, "| Pending | %d |\n", c.Pending)
	fmt.Fprintf(&b, "| **Total** | **%d** |\n\n", c.Total)

	if c.Pending > 0 {
		b.WriteString("## Pending\n\n")
		listed := 0
		for i := range st.Items {
			it := &st.Items[i]
			if it.Decision != nil {
				continue
			}
			if listed == maxPendingListed {
				fmt.Fprintf(&b, "- ... and %d more\n", c.Pending-listed)
				break
			}
			fmt.Fprintf(&b, "- `@%s`", it.Mapcode)
			if it.Author != nil && *it.Author != "" {
				fmt.Fprintf(&b, " by %s", *it.Author)
			}
			b.WriteString("\n")
			listed++
		}
		b.WriteString("\n")
	}

	if out != nil {
		b.WriteString("## Finish\n\n")
		if out.SavedPath != "" {
			fmt.Fprintf(&b, "- Saved: `%s`\n", out.SavedPath)
		}
		switch {
		case out.Submitted:
			fmt.Fprintf(&b, "- Submitted (HTTP %d)\n", out.HTTPStatus)
		case out.HTTPStatus != 0:
			fmt.Fprintf(&b, "- Submission failed (HTTP %d)\n", out.HTTPStatus)
		default:
			b.WriteString("- Not submitted\n")
		}
		if out.Message != "" {
			fmt.Fprintf(&b, "- %s\n", out.Message)
		}
	}

	return b.String()
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// HTML converts markdown text to HTML using goldmark.
func HTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
