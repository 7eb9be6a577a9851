package massaction

import (
	"fmt"
	"strings"

	"github.com/hpungsan/mapreview/internal/category"
	"github.com/hpungsan/mapreview/internal/errors"
)

// MaxCategoryNumber is the largest category number a perm command accepts.
const MaxCategoryNumber = 999

// Target decides which command is sent for each mapcode.
type Target struct {
	// Category is the number used in "/p N @code" when Prefix is empty.
	Category int

	// Prefix and Suffix wrap the mapcode for custom commands.
	Prefix string
	Suffix string
}

// CategoryTarget builds a perm target from a category code or bare number.
func CategoryTarget(code string) (Target, error) {
	t := strings.ToUpper(strings.TrimSpace(code))
	if t == "" {
		t = "P4"
	}
	if !strings.HasPrefix(t, "P") {
		t = "P" + t
	}
	n, ok := category.ParseNumber(t)
	if !ok || n < 0 || n > MaxCategoryNumber {
		return Target{}, errors.NewInvalidRequest("invalid category number")
	}
	return Target{Category: n}, nil
}

// CustomTarget builds a target that sends "<prefix> @code[ suffix]".
func CustomTarget(prefix, suffix string) (Target, error) {
	p := strings.TrimSpace(prefix)
	if p == "" {
		return Target{}, errors.NewInvalidRequest("enter a command prefix first (e.g. /np, !np, /p 100)")
	}
	return Target{Prefix: p, Suffix: strings.TrimSpace(suffix)}, nil
}

// Custom reports whether t sends a custom command.
func (t Target) Custom() bool { return t.Prefix != "" }

// Command returns the line sent for mapcode.
func (t Target) Command(mapcode string) string {
	mc := strings.TrimLeft(strings.TrimSpace(mapcode), "@")
	if !t.Custom() {
		return fmt.Sprintf("/p %d @%s", t.Category, mc)
	}
	if t.Suffix == "" {
		return fmt.Sprintf("%s @%s", t.Prefix, mc)
	}
	return fmt.Sprintf("%s @%s %s", t.Prefix, mc, t.Suffix)
}
