package report

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/mapreview/internal/category"
	"github.com/hpungsan/mapreview/internal/review"
)

func sessionState() *review.AppState {
	ts := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	st := review.FreshState("linux")
	st.Session = &review.Session{Category: "P4", InputMethod: review.InputSessionAPI, StartedAt: ts, ThreadID: review.Str("55")}

	a := review.NewItem("a", "111", ts)
	a.Decision = review.DecisionPtr(category.LeftAsIs)
	b := review.NewItem("b", "222", ts)
	b.Decision = review.DecisionPtr(category.Ignored)
	c := review.NewItem("c", "333", ts)
	c.Author = review.Str("Tig")
	st.Items = []review.Item{a, b, c}
	for i := range st.Items {
		st.Items[i].Reconcile()
	}
	return st
}

func TestCount(t *testing.T) {
	c := Count(sessionState().Items)
	assert.Equal(t, 3, c.Total)
	assert.Equal(t, 1, c.Pending)
	assert.Equal(t, 1, c.Hidden)
	assert.Equal(t, 1, c.Decisions[category.LeftAsIs])
	assert.Equal(t, 1, c.Decisions[category.Ignored])
	assert.Zero(t, c.Decisions[category.P1ed])
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sessionState(), nil)

	assert.Contains(t, md, "# Review session: Shaman (P4)")
	assert.Contains(t, md, "- Thread: 55")
	assert.Contains(t, md, "| Left as is | 1 |")
	assert.Contains(t, md, "| Pending | 1 |")
	assert.Contains(t, md, "| **Total** | **3** |")
	assert.Contains(t, md, "- `@333` by Tig")
	assert.NotContains(t, md, "`@111`")
	assert.NotContains(t, md, "## Finish")
}

func TestMarkdown_NoSession(t *testing.T) {
	md := Markdown(review.FreshState("linux"), nil)
	assert.Contains(t, md, "No active session.")
	assert.NotContains(t, md, "## Pending")
}

func TestMarkdown_Outcome(t *testing.T) {
	tests := []struct {
		name string
		out  Outcome
		want []string
	}{
		{"submitted", Outcome{SavedPath: "/tmp/s.json", Submitted: true, HTTPStatus: 200}, []string{"- Saved: `/tmp/s.json`", "- Submitted (HTTP 200)"}},
		{"rejected", Outcome{HTTPStatus: 401, Message: "bad token"}, []string{"- Submission failed (HTTP 401)", "- bad token"}},
		{"offline", Outcome{SavedPath: "x.json"}, []string{"- Not submitted"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := Markdown(sessionState(), &tt.out)
			for _, w := range tt.want {
				if !strings.Contains(md, w) {
					t.Errorf("markdown missing %q:\n%s", w, md)
				}
			}
		})
	}
}

func TestMarkdown_PendingCapped(t *testing.T) {
	st := review.FreshState("linux")
	now := time.Now()
	for i := 0; i < maxPendingListed+5; i++ {
		st.Items = append(st.Items, review.NewItem(fmt.Sprint(i), fmt.Sprintf("%d00", i+1), now))
	}
	md := Markdown(st, nil)
	assert.Contains(t, md, "- ... and 5 more")
}

func TestHTML(t *testing.T) {
	html, err := HTML(Markdown(sessionState(), nil))
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Review session: Shaman (P4)</h1>")
	assert.Contains(t, html, "<code>@333</code>")
	assert.Contains(t, html, "<table>")
}
