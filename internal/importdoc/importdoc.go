// Package importdoc decodes import files into one of three shapes: a native
// export, a session document, or plain text.
package importdoc

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/hpungsan/mapreview/internal/category"
	"github.com/hpungsan/mapreview/internal/export"
	"github.com/hpungsan/mapreview/internal/mapcode"
	"github.com/hpungsan/mapreview/internal/review"
)

// Kind identifies the decoded document shape.
type Kind int

const (
	KindText Kind = iota
	KindNative
	KindSession
)

func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindSession:
		return "session"
	default:
		return "text"
	}
}

// Document is the result of Decode. Kind selects which fields are set:
// Native and Settings, Session, or Text.
type Document struct {
	Kind     Kind
	Native   *export.Payload
	Settings Settings
	Session  *SessionDoc
	Text     string
}

// Settings holds the exported settings found in a native document. A nil
// field was missing or had the wrong type.
type Settings struct {
	CommandMode          *review.CommandMode
	Dedupe               *bool
	AutoCaptureClipboard *bool
}

// SessionDoc is a session as served by the session API or saved by it to a file.
type SessionDoc struct {
	Category     string
	ThreadID     *string
	CollectedAt  *string
	LimitPerUser *int
	Maps         []Map
}

// Map is one submission inside a SessionDoc.
type Map struct {
	MapCode   string
	Submitter *string
	Ignored   bool
	Reason    *string
}

// Decode classifies data. Native exports take priority over session
// documents; anything else, including malformed JSON, is plain text.
func Decode(data []byte) Document {
	text := string(data)
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Document{Kind: KindText, Text: text}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil || obj == nil {
		return Document{Kind: KindText, Text: text}
	}

	if p, ok := decodeNative(obj); ok {
		return Document{Kind: KindNative, Native: p, Settings: decodeSettings(obj["settings"])}
	}
	if s, ok := decodeSession(obj); ok {
		return Document{Kind: KindSession, Session: s}
	}
	return Document{Kind: KindText, Text: text}
}

// DecodeSession decodes a session API payload. It reports false when the
// document carries no maps array.
func DecodeSession(data []byte) (*SessionDoc, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, false
	}
	return decodeSession(obj)
}

// ExtractMapcodes flattens a session document or plain text into mapcodes,
// in order and without deduplication.
func ExtractMapcodes(text string) []string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		if s, ok := DecodeSession([]byte(trimmed)); ok {
			codes := make([]string, 0, len(s.Maps))
			for _, m := range s.Maps {
				codes = append(codes, m.MapCode)
			}
			return mapcode.ParseMany(strings.Join(codes, "\n"))
		}
	}
	return mapcode.ParseMany(text)
}

func decodeNative(obj map[string]json.RawMessage) (*export.Payload, bool) {
	var version json.Number
	if err := json.Unmarshal(obj["schemaVersion"], &version); err != nil {
		return nil, false
	}
	if v, err := version.Int64(); err != nil || v != export.SchemaVersion {
		return nil, false
	}
	var rawItems []json.RawMessage
	if err := json.Unmarshal(obj["items"], &rawItems); err != nil || rawItems == nil {
		return nil, false
	}

	p := &export.Payload{SchemaVersion: export.SchemaVersion, Items: make([]export.Item, 0, len(rawItems))}
	// Metadata is best effort: a missing or mistyped value leaves the zero value.
	_ = json.Unmarshal(obj["appVersion"], &p.AppVersion)
	_ = json.Unmarshal(obj["exportedAt"], &p.ExportedAt)
	st := decodeSettings(obj["settings"])
	if st.CommandMode != nil {
		p.Settings.CommandMode = *st.CommandMode
	}
	if st.Dedupe != nil {
		p.Settings.Dedupe = *st.Dedupe
	}
	if st.AutoCaptureClipboard != nil {
		p.Settings.AutoCaptureClipboard = *st.AutoCaptureClipboard
	}

	if raw, ok := obj["session"]; ok && !isNull(raw) {
		var s export.Session
		if err := json.Unmarshal(raw, &s); err == nil {
			p.Session = &s
		} else {
			p.Session = lenientSession(raw)
		}
	}

	for _, raw := range rawItems {
		if it, ok := decodeItem(raw); ok {
			p.Items = append(p.Items, it)
		}
	}
	return p, true
}

// decodeItem reads an exported item field by field. Fields with the wrong
// type are left empty; an item without a string mapcode is rejected.
func decodeItem(raw json.RawMessage) (export.Item, bool) {
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return export.Item{}, false
	}
	code := stringField(fields["mapcode"])
	if code == nil {
		return export.Item{}, false
	}

	it := export.Item{
		Mapcode:         *code,
		Author:          stringField(fields["author"]),
		XML:             stringField(fields["xml"]),
		Submitter:       stringField(fields["submitter"]),
		ImportedIgnored: boolField(fields["importedIgnored"]),
		ImportedReason:  stringField(fields["importedReason"]),
		CommandsUsed:    []review.CommandMode{},
	}
	_, it.HasXML = fields["xml"]
	if id := stringField(fields["id"]); id != nil {
		it.ID = *id
	}
	if r := stringField(fields["review"]); r != nil {
		it.Review = *r
	}
	if d := stringField(fields["decision"]); d != nil {
		dec := category.Decision(*d)
		it.Decision = &dec
	}
	if st := stringField(fields["status"]); st != nil {
		it.Status = review.Status(*st)
	}

	var modes []json.RawMessage
	if json.Unmarshal(fields["commandsUsed"], &modes) == nil {
		for _, m := range modes {
			if v := stringField(m); v != nil && review.CommandMode(*v).Valid() {
				it.CommandsUsed = append(it.CommandsUsed, review.CommandMode(*v))
			}
		}
	}
	it.CreatedAt = timeField(fields["createdAt"])
	it.UpdatedAt = timeField(fields["updatedAt"])
	return it, true
}

// decodeSettings reads each exported setting independently so one bad field
// does not discard the others.
func decodeSettings(raw json.RawMessage) Settings {
	var out Settings
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return out
	}
	var mode review.CommandMode
	if !isNull(fields["commandMode"]) && json.Unmarshal(fields["commandMode"], &mode) == nil && mode.Valid() {
		out.CommandMode = &mode
	}
	out.Dedupe = boolField(fields["dedupe"])
	out.AutoCaptureClipboard = boolField(fields["autoCaptureClipboard"])
	return out
}

// lenientSession decodes a session object that failed strict decoding.
// Each field is read on its own; one with the wrong type stays empty and
// does not discard the rest.
func lenientSession(raw json.RawMessage) *export.Session {
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return nil
	}
	s := &export.Session{}
	_ = json.Unmarshal(fields["category"], &s.Category)
	_ = json.Unmarshal(fields["inputMethod"], &s.InputMethod)
	_ = json.Unmarshal(fields["startedAt"], &s.StartedAt)
	_ = json.Unmarshal(fields["collectedAt"], &s.CollectedAt)
	_ = json.Unmarshal(fields["limitPerUser"], &s.LimitPerUser)
	_ = json.Unmarshal(fields["reviewerUserId"], &s.ReviewerUserID)
	s.ThreadID = export.FlexString(fields["threadId"])
	return s
}

func decodeSession(obj map[string]json.RawMessage) (*SessionDoc, bool) {
	var rawMaps []json.RawMessage
	if err := json.Unmarshal(obj["maps"], &rawMaps); err != nil || rawMaps == nil {
		return nil, false
	}

	s := &SessionDoc{Maps: make([]Map, 0, len(rawMaps))}
	// A non-string category stays empty so the importer falls back to its default.
	_ = json.Unmarshal(obj["category"], &s.Category)
	s.ThreadID = export.FlexString(obj["threadId"])
	s.CollectedAt = stringField(obj["collectedAt"])
	var limit float64
	if len(obj["limitPerUser"]) > 0 && !isNull(obj["limitPerUser"]) && json.Unmarshal(obj["limitPerUser"], &limit) == nil {
		n := int(limit)
		s.LimitPerUser = &n
	}

	for _, raw := range rawMaps {
		var m struct {
			MapCode   json.RawMessage `json:"mapCode"`
			Submitter json.RawMessage `json:"submitter"`
			Ignored   json.RawMessage `json:"ignored"`
			Reason    json.RawMessage `json:"reason"`
		}
		if json.Unmarshal(raw, &m) != nil {
			continue
		}
		code := stringField(m.MapCode)
		if code == nil {
			continue
		}
		entry := Map{
			MapCode:   *code,
			Submitter: stringField(m.Submitter),
			Reason:    stringField(m.Reason),
		}
		if b := boolField(m.Ignored); b != nil {
			entry.Ignored = *b
		}
		s.Maps = append(s.Maps, entry)
	}
	return s, true
}

// stringField returns the string value of raw, or nil when raw is missing,
// null, or not a string.
func stringField(raw json.RawMessage) *string {
	if len(raw) == 0 || isNull(raw) {
		return nil
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return nil
	}
	return &s
}

// timeField parses an RFC 3339 timestamp; anything else yields the zero time.
func timeField(raw json.RawMessage) time.Time {
	s := stringField(raw)
	if s == nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func boolField(raw json.RawMessage) *bool {
	if len(raw) == 0 || isNull(raw) {
		return nil
	}
	var b bool
	if json.Unmarshal(raw, &b) != nil {
		return nil
	}
	return &b
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
