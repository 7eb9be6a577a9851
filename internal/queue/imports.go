package queue

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/mapreview/internal/category"
	"github.com/hpungsan/mapreview/internal/export"
	"github.com/hpungsan/mapreview/internal/importdoc"
	"github.com/hpungsan/mapreview/internal/mapcode"
	"github.com/hpungsan/mapreview/internal/remote"
	"github.com/hpungsan/mapreview/internal/review"
)

// defaultImportCategory is used when neither the document nor an active
// session names a category.
const defaultImportCategory = "P3"

// ImportOutput reports the result of an import.
type ImportOutput struct {
	Kind     string `json:"kind"`
	Imported bool   `json:"imported"`
	Added    int    `json:"added"`
	Status   string `json:"status"`
	Warning  string `json:"warning,omitempty"`
}

// ImportDocument imports file contents. label names the source in status
// lines, usually the file's base name.
//
// A native export replaces the session and the queue. A session document is
// merged into the queue. Anything else is parsed as text.
func (e *Engine) ImportDocument(ctx context.Context, data []byte, label string) *ImportOutput {
	doc := importdoc.Decode(data)

	e.mu.Lock()
	defer e.mu.Unlock()

	out := &ImportOutput{Kind: doc.Kind.String(), Imported: true}
	switch doc.Kind {
	case importdoc.KindNative:
		e.importNativeLocked(ctx, doc, label, out)
	case importdoc.KindSession:
		e.applySessionMetaLocked(doc.Session, review.InputSessionJSON, "")
		e.persistLocked(ctx)
		add := e.addItemsLocked(ctx, sessionCandidates(doc.Session), "session json: "+label)
		out.Added = add.Added
	default:
		codes := mapcode.DedupeKeepOrder(mapcode.ParseMany(doc.Text))
		if len(codes) == 0 {
			e.setStatus("Nothing to add.")
		} else {
			add := e.addItemsLocked(ctx, codeCandidates(codes), "file: "+label)
			out.Added = add.Added
		}
	}
	out.Status = e.status
	return out
}

// importNativeLocked continues a previously exported session. out.Warning is
// set when the export was made by another user.
func (e *Engine) importNativeLocked(ctx context.Context, doc importdoc.Document, label string, out *ImportOutput) {
	p := doc.Native
	now := e.timestamp()

	sess := &review.Session{InputMethod: review.InputSessionJSON, StartedAt: now}
	if cur := e.state.Session; cur != nil {
		sess.Category = cur.Category
	}
	var importedReviewer string
	if s := p.Session; s != nil {
		if s.Category != "" {
			sess.Category = s.Category
		}
		if s.InputMethod.Valid() {
			sess.InputMethod = s.InputMethod
		}
		if !s.StartedAt.IsZero() {
			sess.StartedAt = s.StartedAt.UTC()
		}
		sess.ThreadID = s.ThreadID
		sess.CollectedAt = s.CollectedAt
		sess.LimitPerUser = s.LimitPerUser
		if s.ReviewerUserID != nil {
			importedReviewer = strings.TrimSpace(*s.ReviewerUserID)
		}
	}
	if sess.Category == "" {
		sess.Category = defaultImportCategory
	}
	e.state.Session = sess

	if cur := e.state.Settings.AuthUserID; importedReviewer != "" && cur != nil && strings.TrimSpace(*cur) != "" && strings.TrimSpace(*cur) != importedReviewer {
		out.Warning = "Imported session was created by a different user. Exports will use the currently authenticated userId."
		e.logger.Warn("imported export belongs to another reviewer", zap.String("reviewer", importedReviewer))
	}

	if m := doc.Settings.CommandMode; m != nil && m.Valid() {
		e.state.Settings.CommandMode = *m
	}
	if d := doc.Settings.Dedupe; d != nil {
		e.state.Settings.Dedupe = *d
	}
	if a := doc.Settings.AutoCaptureClipboard; a != nil {
		e.state.Settings.AutoCaptureClipboard = *a
	}

	cat, _ := category.Find(sess.Category)
	cands := make([]Candidate, 0, len(p.Items))
	for _, it := range p.Items {
		cands = append(cands, nativeCandidate(it, cat))
	}

	e.state.Items = []review.Item{}
	e.state.SelectedID = nil
	e.state.ReviewOpen = true
	e.persistLocked(ctx)

	add := e.addItemsLocked(ctx, cands, "session export: "+label)
	out.Added = add.Added
	if out.Warning != "" {
		e.setStatus(out.Warning)
	}
}

// ImportRemote fetches the open session of a category from the session
// service and merges its maps. With an active session its category is used
// instead of categoryCode. Service failures are reported in the status line
// and leave the state untouched.
func (e *Engine) ImportRemote(ctx context.Context, fetcher SessionFetcher, categoryCode string) *ImportOutput {
	e.mu.Lock()
	cat := strings.TrimSpace(categoryCode)
	if e.state.Session != nil && e.state.Session.Category != "" {
		cat = e.state.Session.Category
	}
	if cat == "" {
		cat = defaultImportCategory
	}
	e.mu.Unlock()

	out := &ImportOutput{Kind: importdoc.KindSession.String()}
	res, err := fetcher.FetchSession(ctx, cat)

	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case err != nil:
		e.logger.Warn("session fetch failed", zap.String("category", cat), zap.Error(err))
		e.setStatus(fmt.Sprintf("Failed to fetch session (%s): %v", cat, err))
	case res == nil || !res.OK:
		kind := "unknown_error"
		if res != nil && res.Err != nil && res.Err.Kind != "" {
			kind = res.Err.Kind
		}
		e.setStatus(remoteStatus(kind, cat))
	case res.Data == nil:
		e.setStatus(fmt.Sprintf("Session API returned no data (%s).", cat))
	default:
		data := res.Data
		e.applySessionMetaLocked(data, review.InputSessionAPI, cat)
		e.persistLocked(ctx)
		out.Imported = true

		label := data.Category
		if label == "" {
			label = cat
		}
		if len(data.Maps) == 0 {
			thread := "none"
			if data.ThreadID != nil {
				thread = *data.ThreadID
			}
			e.setStatus(fmt.Sprintf("No maps in session (%s). threadId=%s", label, thread))
			break
		}
		add := e.addItemsLocked(ctx, sessionCandidates(data), "api: "+label)
		out.Added = add.Added
	}
	out.Status = e.status
	return out
}

func remoteStatus(kind, cat string) string {
	switch kind {
	case remote.KindNoActiveSession:
		return fmt.Sprintf("No active session for %s.", cat)
	case remote.KindUnauthorized:
		return "Session API: unauthorized (check SESSION_API_TOKEN)."
	case remote.KindMissingCategory:
		return "Session API: missing category."
	default:
		return fmt.Sprintf("Session API error (%s): %s", cat, kind)
	}
}

// applySessionMetaLocked records the metadata of a session document. The
// category of an active session wins; startedAt is preserved.
func (e *Engine) applySessionMetaLocked(doc *importdoc.SessionDoc, method review.InputMethod, fallback string) {
	sess := &review.Session{
		InputMethod:  method,
		StartedAt:    e.timestamp(),
		ThreadID:     doc.ThreadID,
		CollectedAt:  doc.CollectedAt,
		LimitPerUser: doc.LimitPerUser,
	}
	switch cur := e.state.Session; {
	case method == review.InputSessionAPI:
		// The API reports the category it served.
		sess.Category = doc.Category
		if cur != nil {
			sess.StartedAt = cur.StartedAt
		}
	case cur != nil:
		sess.Category = cur.Category
		sess.StartedAt = cur.StartedAt
	default:
		sess.Category = doc.Category
	}
	if sess.Category == "" {
		sess.Category = fallback
	}
	if sess.Category == "" {
		sess.Category = defaultImportCategory
	}
	e.state.Session = sess
}

// sessionCandidates turns session maps into candidates. Maps ignored upstream
// arrive decided as ignored with the trimmed reason as review.
func sessionCandidates(doc *importdoc.SessionDoc) []Candidate {
	out := make([]Candidate, 0, len(doc.Maps))
	for _, m := range doc.Maps {
		c := Candidate{
			Mapcode:         m.MapCode,
			Submitter:       m.Submitter,
			ImportedIgnored: review.Bool(m.Ignored),
			ImportedReason:  m.Reason,
		}
		if m.Ignored {
			c.Decision = review.DecisionPtr(category.Ignored)
			if m.Reason != nil {
				c.Review = review.Str(strings.TrimSpace(*m.Reason))
			}
		}
		out = append(out, c)
	}
	return out
}

// nativeCandidate maps an exported item back to a candidate. A decision the
// category does not allow is dropped.
func nativeCandidate(it export.Item, cat *category.Category) Candidate {
	c := Candidate{
		Mapcode:         it.Mapcode,
		Author:          it.Author,
		Submitter:       it.Submitter,
		ImportedIgnored: it.ImportedIgnored,
		ImportedReason:  it.ImportedReason,
		CommandsUsed:    it.CommandsUsed,
		Review:          review.Str(it.Review),
		CreatedAt:       it.CreatedAt,
		UpdatedAt:       it.UpdatedAt,
	}
	if it.HasXML {
		c.XML = it.XML
	}
	if d := it.Decision; d != nil && d.Valid() && (cat == nil || cat.Allows(*d)) {
		c.Decision = review.DecisionPtr(*d)
	}
	return c
}

func codeCandidates(codes []string) []Candidate {
	out := make([]Candidate, len(codes))
	for i, c := range codes {
		out[i] = Candidate{Mapcode: c}
	}
	return out
}
