package review

import (
	"crypto/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/mapreview/internal/category"
)

// AppVersion is stamped into persisted state and exports.
const AppVersion = "1.0.7"

// MaxReviewChars is the bound on a reviewer comment, in runes.
const MaxReviewChars = 2000

// CommandMode is the outbound command variant used to load a map.
type CommandMode string

const (
	CommandNP  CommandMode = "!np"
	CommandSNP CommandMode = "/np"
	CommandNPP CommandMode = "/npp"
)

// Valid reports whether m is a known command mode.
func (m CommandMode) Valid() bool {
	return m == CommandNP || m == CommandSNP || m == CommandNPP
}

// Command returns the line that loads mapcode, e.g. "!np @123".
func (m CommandMode) Command(mapcode string) string {
	return string(m) + " @" + strings.TrimLeft(strings.TrimSpace(mapcode), "@")
}

// InputMethod tags where a session's items came from.
type InputMethod string

const (
	InputSessionAPI  InputMethod = "session_api"
	InputSessionJSON InputMethod = "session_json"
	InputFileText    InputMethod = "file_text"
	InputClipboard   InputMethod = "clipboard"
	InputTextarea    InputMethod = "textarea"
)

// Valid reports whether m is a known input method.
func (m InputMethod) Valid() bool {
	switch m {
	case InputSessionAPI, InputSessionJSON, InputFileText, InputClipboard, InputTextarea:
		return true
	}
	return false
}

// Status is derived from Decision: reviewed iff a decision is set.
type Status string

const (
	StatusPending  Status = "pending"
	StatusReviewed Status = "reviewed"
)

// Item is one reviewable queue entry.
type Item struct {
	// ID is a ULID assigned at creation; never changes
	ID string `json:"id"`

	// Mapcode is the normalized token
	Mapcode string `json:"mapcode"`

	// Author, XML and P are hydrated from the content service (nil = not fetched)
	Author *string  `json:"author"`
	XML    *string  `json:"xml"`
	P      *float64 `json:"p"`

	// Submitter is provenance carried from imported session data
	Submitter *string `json:"submitter"`

	// ImportedIgnored and ImportedReason carry upstream triage
	ImportedIgnored *bool   `json:"importedIgnored"`
	ImportedReason  *string `json:"importedReason"`

	// CommandsUsed is the append-only log of command modes sent for this item
	CommandsUsed []CommandMode `json:"commandsUsed"`

	// Review is the reviewer comment, at most MaxReviewChars runes
	Review string `json:"review"`

	// Decision is nil while undecided
	Decision *category.Decision `json:"decision"`

	// Status mirrors Decision
	Status Status `json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewItem returns a default-constructed pending item.
func NewItem(id, mapcode string, now time.Time) Item {
	return Item{
		ID:           id,
		Mapcode:      mapcode,
		CommandsUsed: []CommandMode{},
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewID returns a fresh ULID string.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Reconcile restores the item invariants: status follows decision and the
// review comment fits the bound.
func (it *Item) Reconcile() {
	if it.Decision != nil {
		it.Status = StatusReviewed
	} else {
		it.Status = StatusPending
	}
	it.Review = TruncateReview(it.Review)
	if it.CommandsUsed == nil {
		it.CommandsUsed = []CommandMode{}
	}
}

// Hidden reports whether the item is filtered out when ignored items are hidden.
func (it *Item) Hidden() bool {
	if it.Decision != nil && *it.Decision == category.Ignored {
		return true
	}
	return it.ImportedIgnored != nil && *it.ImportedIgnored
}

// Clone returns a deep copy.
func (it Item) Clone() Item {
	out := it
	out.Author = cloneStr(it.Author)
	out.XML = cloneStr(it.XML)
	out.Submitter = cloneStr(it.Submitter)
	out.ImportedReason = cloneStr(it.ImportedReason)
	if it.P != nil {
		p := *it.P
		out.P = &p
	}
	if it.ImportedIgnored != nil {
		b := *it.ImportedIgnored
		out.ImportedIgnored = &b
	}
	if it.Decision != nil {
		d := *it.Decision
		out.Decision = &d
	}
	if it.CommandsUsed != nil {
		out.CommandsUsed = append([]CommandMode{}, it.CommandsUsed...)
	}
	return out
}

// TruncateReview cuts s to MaxReviewChars runes.
func TruncateReview(s string) string {
	if utf8.RuneCountInString(s) <= MaxReviewChars {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxReviewChars])
}

// Session is the active review context.
type Session struct {
	Category    string      `json:"category"`
	InputMethod InputMethod `json:"inputMethod"`
	StartedAt   time.Time   `json:"startedAt"`

	// Set when imported from the session API or a session document
	ThreadID     *string `json:"threadId,omitempty"`
	CollectedAt  *string `json:"collectedAt,omitempty"`
	LimitPerUser *int    `json:"limitPerUser,omitempty"`
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.ThreadID = cloneStr(s.ThreadID)
	out.CollectedAt = cloneStr(s.CollectedAt)
	if s.LimitPerUser != nil {
		n := *s.LimitPerUser
		out.LimitPerUser = &n
	}
	return &out
}

// AppState is the whole persisted document.
type AppState struct {
	StateVersion int      `json:"stateVersion"`
	AppVersion   string   `json:"appVersion"`
	Settings     Settings `json:"settings"`
	Session      *Session `json:"session"`
	Items        []Item   `json:"items"`
	SelectedID   *string  `json:"selectedId"`
	ReviewOpen   bool     `json:"reviewOpen"`
}

// FreshState returns the default state for the given GOOS.
func FreshState(goos string) *AppState {
	return &AppState{
		StateVersion: CurrentStateVersion,
		AppVersion:   AppVersion,
		Settings:     DefaultSettings(goos),
		Items:        []Item{},
	}
}

// Clone returns a deep copy.
func (s *AppState) Clone() *AppState {
	out := *s
	out.Settings = s.Settings.Clone()
	out.Session = s.Session.Clone()
	out.SelectedID = cloneStr(s.SelectedID)
	if s.Items != nil {
		out.Items = make([]Item, len(s.Items))
		for i, it := range s.Items {
			out.Items[i] = it.Clone()
		}
	}
	return &out
}

// FindItem returns the index of the item with the given id, or -1.
func (s *AppState) FindItem(id string) int {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// Str returns a pointer to s.
func Str(s string) *string { return &s }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// DecisionPtr returns a pointer to d.
func DecisionPtr(d category.Decision) *category.Decision { return &d }

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
