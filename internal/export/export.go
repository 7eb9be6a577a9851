// Package export builds the versioned export document written to disk and
// submitted to the review service.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/mapreview/internal/category"
	"github.com/hpungsan/mapreview/internal/errors"
	"github.com/hpungsan/mapreview/internal/review"
)

// SchemaVersion is the only export schema this build reads and writes.
const SchemaVersion = 1

// Options controls what the payload carries.
type Options struct {
	// IncludeXML embeds each item's cached content (local backups only).
	IncludeXML bool
}

// Settings is the subset of settings carried in an export.
type Settings struct {
	CommandMode          review.CommandMode `json:"commandMode"`
	Dedupe               bool               `json:"dedupe"`
	AutoCaptureClipboard bool               `json:"autoCaptureClipboard"`
}

// Session describes the exported session.
type Session struct {
	Category       string             `json:"category"`
	InputMethod    review.InputMethod `json:"inputMethod"`
	StartedAt      time.Time          `json:"startedAt"`
	ReviewerUserID *string            `json:"reviewerUserId"`
	ThreadID       *string            `json:"threadId"`
	CollectedAt    *string            `json:"collectedAt"`
	LimitPerUser   *int               `json:"limitPerUser"`
}

// UnmarshalJSON accepts a numeric threadId.
func (s *Session) UnmarshalJSON(data []byte) error {
	type plain Session
	var aux struct {
		plain
		ThreadID json.RawMessage `json:"threadId"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = Session(aux.plain)
	s.ThreadID = flexString(aux.ThreadID)
	return nil
}

// Item is the exported projection of a queue item.
// XML is written only when HasXML is set; when set, the key is always present.
type Item struct {
	ID              string               `json:"id"`
	Mapcode         string               `json:"mapcode"`
	Author          *string              `json:"author"`
	XML             *string              `json:"-"`
	HasXML          bool                 `json:"-"`
	Submitter       *string              `json:"submitter"`
	ImportedIgnored *bool                `json:"importedIgnored"`
	ImportedReason  *string              `json:"importedReason"`
	CommandsUsed    []review.CommandMode `json:"commandsUsed"`
	Review          string               `json:"review"`
	Decision        *category.Decision   `json:"decision"`
	Status          review.Status        `json:"status"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

type plainItem Item

// MarshalJSON omits the xml key entirely unless HasXML is set.
func (it Item) MarshalJSON() ([]byte, error) {
	if !it.HasXML {
		return json.Marshal(plainItem(it))
	}
	return json.Marshal(struct {
		plainItem
		XML *string `json:"xml"`
	}{plainItem(it), it.XML})
}

// UnmarshalJSON records whether the xml key was present.
func (it *Item) UnmarshalJSON(data []byte) error {
	var aux struct {
		plainItem
		XML json.RawMessage `json:"xml"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*it = Item(aux.plainItem)
	if len(aux.XML) > 0 {
		it.HasXML = true
		if !bytes.Equal(bytes.TrimSpace(aux.XML), []byte("null")) {
			var s string
			if err := json.Unmarshal(aux.XML, &s); err != nil {
				return fmt.Errorf("xml: %w", err)
			}
			it.XML = &s
		}
	}
	return nil
}

// Payload is the immutable export document.
type Payload struct {
	SchemaVersion int       `json:"schemaVersion"`
	AppVersion    string    `json:"appVersion"`
	ExportedAt    time.Time `json:"exportedAt"`
	Settings      Settings  `json:"settings"`
	Session       *Session  `json:"session"`
	Items         []Item    `json:"items"`
}

// Build projects st into an export payload. It does not modify st.
func Build(st *review.AppState, exportedAt time.Time, opts Options) *Payload {
	p := &Payload{
		SchemaVersion: SchemaVersion,
		AppVersion:    st.AppVersion,
		ExportedAt:    exportedAt,
		Settings: Settings{
			CommandMode:          st.Settings.CommandMode,
			Dedupe:               st.Settings.Dedupe,
			AutoCaptureClipboard: st.Settings.AutoCaptureClipboard,
		},
		Items: make([]Item, 0, len(st.Items)),
	}
	if p.AppVersion == "" {
		p.AppVersion = review.AppVersion
	}

	if s := st.Session; s != nil {
		c := s.Clone()
		p.Session = &Session{
			Category:       c.Category,
			InputMethod:    c.InputMethod,
			StartedAt:      c.StartedAt,
			ReviewerUserID: copyStr(st.Settings.AuthUserID),
			ThreadID:       c.ThreadID,
			CollectedAt:    c.CollectedAt,
			LimitPerUser:   c.LimitPerUser,
		}
	}

	for _, src := range st.Items {
		it := src.Clone()
		out := Item{
			ID:              it.ID,
			Mapcode:         it.Mapcode,
			Author:          it.Author,
			Submitter:       it.Submitter,
			ImportedIgnored: it.ImportedIgnored,
			ImportedReason:  it.ImportedReason,
			CommandsUsed:    it.CommandsUsed,
			Review:          it.Review,
			Decision:        it.Decision,
			Status:          it.Status,
			CreatedAt:       it.CreatedAt,
			UpdatedAt:       it.UpdatedAt,
		}
		if out.CommandsUsed == nil {
			out.CommandsUsed = []review.CommandMode{}
		}
		if opts.IncludeXML {
			out.HasXML = true
			out.XML = it.XML
		}
		p.Items = append(p.Items, out)
	}
	return p
}

// Validate rejects payloads this build cannot read.
func (p *Payload) Validate() error {
	if p.SchemaVersion != SchemaVersion {
		return errors.NewInvalidRequest(fmt.Sprintf("unsupported export schema version %d", p.SchemaVersion))
	}
	return nil
}

// Kind names the purpose of an export file.
type Kind string

const (
	KindSession Kind = "session"
	KindBackup  Kind = "backup"
)

// DefaultFileName returns <kind>_<category>_<YYYY-MM-DD>.json. A blank
// category becomes "unknown".
func DefaultFileName(kind Kind, categoryCode string, date time.Time) string {
	c := strings.TrimSpace(categoryCode)
	if c == "" {
		c = "unknown"
	}
	c = strings.NewReplacer("/", "-", "\\", "-", "..", "-").Replace(c)
	return fmt.Sprintf("%s_%s_%s.json", kind, c, date.UTC().Format("2006-01-02"))
}

// flexString decodes a JSON string or number into a string pointer.
// Anything else, including null, yields nil.
func flexString(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		v := n.String()
		return &v
	}
	return nil
}

// FlexString is the exported form of flexString for other decoders.
func FlexString(raw json.RawMessage) *string { return flexString(raw) }

func copyStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
