// Package category holds the static review policy table.
package category

import (
	"strconv"
	"strings"
)

// Decision is a reviewer verdict.
type Decision string

const (
	LeftAsIs        Decision = "left_as_is"
	P1ed            Decision = "p1ed"
	WillBeDiscussed Decision = "will_be_discussed"
	Ignored         Decision = "ignored"
)

// Valid reports whether d is one of the known decisions.
func (d Decision) Valid() bool {
	switch d {
	case LeftAsIs, P1ed, WillBeDiscussed, Ignored:
		return true
	}
	return false
}

// Category is one row of the policy table.
// SubmissionLimit is nil when the category has no per-user limit; -1 means unlimited.
type Category struct {
	Code            string     `json:"code"`
	Description     string     `json:"description"`
	Picture         string     `json:"picture,omitempty"`
	Color           string     `json:"color,omitempty"`
	SubmissionLimit *int       `json:"submission_limit,omitempty"`
	Decisions       []Decision `json:"decisions"`
	Reviewed        bool       `json:"reviewed"`
}

// Allows reports whether d is a legal decision for the category.
func (c *Category) Allows(d Decision) bool {
	for _, allowed := range c.Decisions {
		if allowed == d {
			return true
		}
	}
	return false
}

func limit(n int) *int { return &n }

var (
	full       = []Decision{LeftAsIs, P1ed, WillBeDiscussed, Ignored}
	noP1       = []Decision{LeftAsIs, WillBeDiscussed, Ignored}
	ignoreOnly = []Decision{Ignored}
)

var table = []Category{
	{Code: "P0", Description: "Standard (P0)", Picture: "https://i.imgur.com/nzndLpV.png", Color: "#B6B3AA", Decisions: ignoreOnly},
	{Code: "P1", Description: "Protected (P1)", Picture: "https://i.imgur.com/ndBCphI.png", Color: "#FEC861", Decisions: ignoreOnly},
	{Code: "P2", Description: "Prime (P2)", Picture: "https://i.imgur.com/ndBCphI.png", Color: "#FFD481", Decisions: ignoreOnly},
	{Code: "P3", Description: "Bootcamp (P3)", Picture: "https://i.imgur.com/EyWCJ2R.png", Color: "#717B3C", SubmissionLimit: limit(3), Decisions: noP1, Reviewed: true},
	{Code: "P4", Description: "Shaman (P4)", Picture: "https://i.imgur.com/43fUNoX.png", Color: "#95D9D6", SubmissionLimit: limit(4), Decisions: full, Reviewed: true},
	{Code: "P5", Description: "Art (P5)", Picture: "https://i.imgur.com/DWqAcW0.png", Color: "#C24A1F", SubmissionLimit: limit(4), Decisions: full, Reviewed: true},
	{Code: "P6", Description: "Mechanism (P6)", Picture: "https://i.imgur.com/deE6DIX.png", Color: "#D8D8D9", SubmissionLimit: limit(4), Decisions: full, Reviewed: true},
	{Code: "P7", Description: "No Shaman (P7)", Picture: "https://i.imgur.com/kb1U7IH.png", Color: "#332C26", SubmissionLimit: limit(4), Decisions: full, Reviewed: true},
	{Code: "P8", Description: "Double Shaman (P8)", Picture: "https://i.imgur.com/dMCj6ZN.png", Color: "#FBA5F0", SubmissionLimit: limit(4), Decisions: full, Reviewed: true},
	{Code: "P9", Description: "Miscellaneous (P9)", Picture: "https://i.imgur.com/y4FcHyi.png", Color: "#FFD480", SubmissionLimit: limit(4), Decisions: full, Reviewed: true},
	{Code: "P10", Description: "Survivor (P10)", Picture: "https://i.imgur.com/GSzC6qh.png", Color: "#353434", SubmissionLimit: limit(2), Decisions: noP1, Reviewed: true},
	{Code: "P11", Description: "Vampire Surv (P11)", Picture: "https://i.imgur.com/m6atPga.png", Color: "#544931", SubmissionLimit: limit(2), Decisions: noP1, Reviewed: true},
	{Code: "P12", Description: "Mechanism no Shaman (P12)", Picture: "https://i.imgur.com/euUbAfn.png", Color: "#D8D8D9", Decisions: ignoreOnly},
	{Code: "P13", Description: "Lower bootcamp (P13)", Picture: "https://i.imgur.com/Q8Mf3AX.png", Color: "#8E9565", Decisions: ignoreOnly},
	{Code: "P17", Description: "Racing (P17)", Picture: "https://i.imgur.com/sgNPHFA.png", Color: "#C32C12", SubmissionLimit: limit(2), Decisions: full, Reviewed: true},
	{Code: "P18", Description: "Defilante (P18)", Picture: "https://i.imgur.com/H0FpaWH.png", Color: "#7DCA24", SubmissionLimit: limit(5), Decisions: noP1, Reviewed: true},
	{Code: "P19", Description: "Music (P19)", Picture: "https://i.imgur.com/dWkfUyX.png", Color: "#9CABB5", Decisions: ignoreOnly},
	{Code: "P20", Description: "Normal Survivor Test (P20)", Picture: "https://i.imgur.com/1dyJuy5.png", Color: "#353434", Decisions: ignoreOnly},
	{Code: "P21", Description: "Vampire Survivor Test (P21)", Picture: "https://i.imgur.com/v4UqRSb.png", Color: "#544931", Decisions: ignoreOnly},
	{Code: "P22", Description: "Tribe house (P22)", Picture: "https://i.imgur.com/X2bHHoq.png", Color: "#7E5F40", Decisions: ignoreOnly},
	{Code: "P23", Description: "Bootcamp Test (P23)", Picture: "https://i.imgur.com/UmSCzcs.png", Color: "#717B3C", Decisions: ignoreOnly},
	{Code: "P24", Description: "Dual Surv (P24)", Picture: "https://i.imgur.com/PWDFBDW.png", Color: "#C3C3C3", SubmissionLimit: limit(3), Decisions: noP1, Reviewed: true},
	{Code: "P32", Description: "Double Shaman Test (P32)", Picture: "https://i.imgur.com/nd09QvE.png", Color: "#FBA5F0", Decisions: ignoreOnly},
	{Code: "P34", Description: "Dual Shaman Survivor Test (P34)", Picture: "https://i.imgur.com/7Pc6fHb.png", Color: "#C3C3C3", Decisions: ignoreOnly},
	{Code: "P41", Description: "Minigame (P41)", Picture: "https://i.imgur.com/OG0CIW3.png", Color: "#F7BF54", Decisions: ignoreOnly},
	{Code: "P42", Description: "No Shaman Test (P42)", Picture: "https://i.imgur.com/hUEXr2K.png", Color: "#95D9D6", Decisions: ignoreOnly},
	{Code: "P43", Description: "Inappropriate (P43)", Picture: "https://i.imgur.com/Bu1k0Px.png", Color: "#F50000", Decisions: ignoreOnly},
	{Code: "P60", Description: "Thematic Test (P60)", Picture: "https://i.imgur.com/yJuncPP.png", Color: "#368DCB", Decisions: ignoreOnly},
	{Code: "P66", Description: "Thematic (P66)", Picture: "https://i.imgur.com/yJuncPP.png", Color: "#368DCB", SubmissionLimit: limit(-1), Decisions: full, Reviewed: true},
}

// All returns every category in table order.
func All() []Category {
	out := make([]Category, len(table))
	copy(out, table)
	return out
}

// Reviewed returns the categories a review session can be started for.
func Reviewed() []Category {
	var out []Category
	for _, c := range table {
		if c.Reviewed {
			out = append(out, c)
		}
	}
	return out
}

// Find looks up a category by code. Lookup is case-insensitive,
// trims whitespace, and accepts a bare number ("4" resolves to P4).
func Find(code string) (*Category, bool) {
	t := strings.ToUpper(strings.TrimSpace(code))
	if t == "" {
		return nil, false
	}
	if !strings.HasPrefix(t, "P") {
		t = "P" + t
	}
	for i := range table {
		if table[i].Code == t {
			c := table[i]
			return &c, true
		}
	}
	return nil, false
}

// ParseNumber extracts the category number used in outbound perm commands.
// Unknown codes fall back to parsing the raw input.
func ParseNumber(code string) (int, bool) {
	raw := code
	if c, ok := Find(code); ok {
		raw = c.Code
	}
	raw = strings.ToUpper(strings.TrimSpace(raw))
	raw = strings.TrimPrefix(raw, "P")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// NormalizeCode validates an outbound category parameter: "P" followed by
// digits. A bare number gets the prefix.
func NormalizeCode(raw string) (string, bool) {
	t := strings.ToUpper(strings.TrimSpace(raw))
	t = strings.TrimPrefix(t, "P")
	if t == "" {
		return "", false
	}
	for _, r := range t {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return "P" + t, true
}
