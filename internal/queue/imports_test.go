package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/mapreview/internal/category"
	"github.com/hpungsan/mapreview/internal/export"
	"github.com/hpungsan/mapreview/internal/importdoc"
	"github.com/hpungsan/mapreview/internal/remote"
	"github.com/hpungsan/mapreview/internal/review"
)

type fakeFetcher struct {
	res      *remote.SessionResult
	err      error
	category string
}

func (f *fakeFetcher) FetchSession(_ context.Context, categoryType string) (*remote.SessionResult, error) {
	f.category = categoryType
	return f.res, f.err
}

type fakeValidator struct {
	res *remote.AuthResult
	err error
}

func (f *fakeValidator) ValidateToken(context.Context, string) (*remote.AuthResult, error) {
	return f.res, f.err
}

func nativeExport(t *testing.T, reviewer string) []byte {
	t.Helper()
	ts := time.Date(2025, 2, 2, 8, 0, 0, 0, time.UTC)
	st := review.FreshState("linux")
	st.Settings.CommandMode = review.CommandSNP
	st.Settings.Dedupe = false
	st.Settings.AuthUserID = review.Str(reviewer)
	st.Session = &review.Session{Category: "P3", InputMethod: review.InputSessionAPI, StartedAt: ts, ThreadID: review.Str("99")}

	a := review.NewItem("old-a", "111", ts)
	a.Decision = review.DecisionPtr(category.LeftAsIs)
	a.Review = "fine"
	a.CommandsUsed = []review.CommandMode{review.CommandNP}
	b := review.NewItem("old-b", "111", ts)
	c := review.NewItem("old-c", "222", ts)
	c.Decision = review.DecisionPtr(category.P1ed) // not allowed in P3
	for _, it := range []*review.Item{&a, &b, &c} {
		it.Reconcile()
	}
	st.Items = []review.Item{a, b, c}

	data, err := json.Marshal(export.Build(st, ts, export.Options{}))
	require.NoError(t, err)
	return data
}

func TestImportDocument_Native(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	e.AddMapcodes(ctx, []string{"999"}, "existing")

	out := e.ImportDocument(ctx, nativeExport(t, "42"), "session_P3.json")
	assert.Equal(t, importdoc.KindNative.String(), out.Kind)
	assert.Equal(t, 3, out.Added, "exported dedupe=false is applied before adding")
	assert.Empty(t, out.Warning)
	assert.Equal(t, "Added 3 mapcode(s) (session export: session_P3.json).", out.Status)

	st := e.Snapshot()
	require.NotNil(t, st.Session)
	assert.Equal(t, "P3", st.Session.Category)
	assert.Equal(t, review.InputSessionAPI, st.Session.InputMethod)
	assert.Equal(t, "99", *st.Session.ThreadID)
	assert.True(t, st.ReviewOpen)
	assert.Equal(t, review.CommandSNP, st.Settings.CommandMode)
	assert.False(t, st.Settings.Dedupe)

	require.Len(t, st.Items, 3)
	assert.Equal(t, []string{"111", "111", "222"}, mapcodes(st.Items))
	assert.NotEqual(t, "old-a", st.Items[0].ID, "imported items get fresh ids")
	assert.Equal(t, category.LeftAsIs, *st.Items[0].Decision)
	assert.Equal(t, "fine", st.Items[0].Review)
	assert.Equal(t, []review.CommandMode{review.CommandNP}, st.Items[0].CommandsUsed)
	assert.Nil(t, st.Items[2].Decision, "decision outside the category policy is dropped")
	assert.Equal(t, review.StatusPending, st.Items[2].Status)
	require.NotNil(t, st.SelectedID)
	assert.Equal(t, st.Items[0].ID, *st.SelectedID)
}

func TestImportDocument_NativeKeepsNullThreadID(t *testing.T) {
	ctx := context.Background()
	src := newEngine(t, nil)
	_, err := src.StartSession(ctx, "P4", review.InputTextarea)
	require.NoError(t, err)
	src.AddMapcodes(ctx, []string{"5000"}, "test")

	data, err := json.Marshal(export.Build(src.Snapshot(), time.Now(), export.Options{}))
	require.NoError(t, err)
	require.Contains(t, string(data), `"threadId":null`)

	dst := newEngine(t, nil)
	dst.ImportDocument(ctx, data, "session_P4.json")

	st := dst.Snapshot()
	require.NotNil(t, st.Session)
	assert.Nil(t, st.Session.ThreadID)
	assert.Nil(t, st.Session.CollectedAt)

	again, err := json.Marshal(export.Build(st, time.Now(), export.Options{}))
	require.NoError(t, err)
	assert.Contains(t, string(again), `"threadId":null`)
	assert.NotContains(t, string(again), `"threadId":""`)
}

func TestImportDocument_NativeOtherReviewer(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	_, err := e.UpdateSettings(ctx, func(s *review.Settings) { s.AuthUserID = review.Str("7") })
	require.NoError(t, err)

	out := e.ImportDocument(ctx, nativeExport(t, "42"), "f.json")
	assert.NotEmpty(t, out.Warning)
	assert.Equal(t, out.Warning, out.Status)
	assert.Equal(t, "7", *e.Settings().AuthUserID, "authenticated user is kept")
}

func TestImportDocument_SessionJSON(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	_, err := e.StartSession(ctx, "P4", review.InputFileText)
	require.NoError(t, err)
	started := e.Snapshot().Session.StartedAt

	doc := `{"category":"P9","threadId":123456789012345678,"limitPerUser":4,"maps":[
		{"mapCode":"@111","submitter":"bob"},
		{"mapCode":"222","submitter":"ann","ignored":true,"reason":"  dup  "},
		{"mapCode":"bad!!code"}
	]}`
	out := e.ImportDocument(ctx, []byte(doc), "s.json")
	assert.Equal(t, "session", out.Kind)
	assert.Equal(t, 2, out.Added)

	st := e.Snapshot()
	assert.Equal(t, "P4", st.Session.Category, "active session category wins")
	assert.Equal(t, review.InputSessionJSON, st.Session.InputMethod)
	assert.Equal(t, started, st.Session.StartedAt)
	assert.Equal(t, "123456789012345678", *st.Session.ThreadID)
	assert.Equal(t, 4, *st.Session.LimitPerUser)

	ignored := st.Items[1]
	assert.Equal(t, category.Ignored, *ignored.Decision)
	assert.Equal(t, review.StatusReviewed, ignored.Status)
	assert.Equal(t, "dup", ignored.Review)
	assert.Equal(t, "  dup  ", *ignored.ImportedReason)
	assert.True(t, *ignored.ImportedIgnored)

	assert.Nil(t, st.Items[0].Decision)
	assert.False(t, *st.Items[0].ImportedIgnored)
}

func TestImportDocument_SessionJSONWithoutSession(t *testing.T) {
	e := newEngine(t, nil)
	e.ImportDocument(context.Background(), []byte(`{"category":"P9","maps":[{"mapCode":"111"}]}`), "s.json")
	assert.Equal(t, "P9", e.Snapshot().Session.Category)
}

func TestImportDocument_Text(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)

	out := e.ImportDocument(ctx, []byte("mapcode\n123\n456\n123\n"), "list.csv")
	assert.Equal(t, "text", out.Kind)
	assert.Equal(t, 2, out.Added)
	assert.Equal(t, "Added 2 mapcode(s) (file: list.csv).", out.Status)
	assert.Nil(t, e.Snapshot().Session)

	out = e.ImportDocument(ctx, []byte(`{"not": "a session"}`), "x.json")
	assert.Equal(t, "text", out.Kind)
	assert.Equal(t, "Nothing to add.", out.Status)
}

func TestImportRemote_Failures(t *testing.T) {
	tests := []struct {
		name   string
		f      *fakeFetcher
		status string
	}{
		{"no active session", &fakeFetcher{res: &remote.SessionResult{Err: &remote.SessionError{Kind: remote.KindNoActiveSession}}}, "No active session for P4."},
		{"unauthorized", &fakeFetcher{res: &remote.SessionResult{Err: &remote.SessionError{Kind: remote.KindUnauthorized}}}, "Session API: unauthorized (check SESSION_API_TOKEN)."},
		{"missing category", &fakeFetcher{res: &remote.SessionResult{Err: &remote.SessionError{Kind: remote.KindMissingCategory}}}, "Session API: missing category."},
		{"other", &fakeFetcher{res: &remote.SessionResult{Err: &remote.SessionError{Kind: "rate_limited"}}}, "Session API error (P4): rate_limited"},
		{"no data", &fakeFetcher{res: &remote.SessionResult{OK: true}}, "Session API returned no data (P4)."},
		{"transport", &fakeFetcher{err: fmt.Errorf("timeout")}, "Failed to fetch session (P4): timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e := newEngine(t, nil)
			e.AddMapcodes(ctx, []string{"999"}, "x")

			out := e.ImportRemote(ctx, tt.f, "P4")
			assert.False(t, out.Imported)
			assert.Equal(t, tt.status, out.Status)

			st := e.Snapshot()
			assert.Nil(t, st.Session, "state untouched")
			assert.Len(t, st.Items, 1)
		})
	}
}

func TestImportRemote_Success(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	_, err := e.StartSession(ctx, "P5", review.InputSessionAPI)
	require.NoError(t, err)
	started := e.Snapshot().Session.StartedAt

	f := &fakeFetcher{res: &remote.SessionResult{OK: true, Status: 200, Data: &importdoc.SessionDoc{
		Category: "P5",
		ThreadID: review.Str("77"),
		Maps: []importdoc.Map{
			{MapCode: "111", Submitter: review.Str("bob")},
			{MapCode: "111", Submitter: review.Str("ann")},
			{MapCode: "222", Ignored: true},
		},
	}}}
	out := e.ImportRemote(ctx, f, "P9")
	assert.Equal(t, "P5", f.category, "locked to the active session category")
	assert.True(t, out.Imported)
	assert.Equal(t, 3, out.Added)
	assert.Equal(t, "Added 3 mapcode(s) (api: P5).", out.Status)

	st := e.Snapshot()
	assert.Equal(t, review.InputSessionAPI, st.Session.InputMethod)
	assert.Equal(t, started, st.Session.StartedAt)
	assert.Equal(t, "77", *st.Session.ThreadID)
	assert.Equal(t, "", st.Items[2].Review, "ignored without reason has an empty review")
}

func TestImportRemote_EmptySession(t *testing.T) {
	e := newEngine(t, nil)
	f := &fakeFetcher{res: &remote.SessionResult{OK: true, Data: &importdoc.SessionDoc{Category: "P4", ThreadID: review.Str("5"), Maps: []importdoc.Map{}}}}

	out := e.ImportRemote(context.Background(), f, "")
	assert.Equal(t, "P3", f.category, "default category")
	assert.Equal(t, "No maps in session (P4). threadId=5", out.Status)
	assert.Equal(t, "P4", e.Snapshot().Session.Category)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		e := newEngine(t, nil)
		v := &fakeValidator{res: &remote.AuthResult{OK: true, Status: 200, Token: "t", User: &remote.AuthUser{ID: "42", Name: "Rev"}}}
		out, err := e.Authenticate(ctx, v, " t ")
		require.NoError(t, err)
		assert.True(t, out.OK)
		s := e.Settings()
		assert.Equal(t, "t", *s.AuthToken)
		assert.Equal(t, "42", *s.AuthUserID)
	})

	t.Run("rejected clears", func(t *testing.T) {
		e := newEngine(t, nil)
		_, err := e.UpdateSettings(ctx, func(s *review.Settings) {
			s.AuthToken = review.Str("old")
			s.AuthUserID = review.Str("1")
		})
		require.NoError(t, err)

		out, err := e.Authenticate(ctx, &fakeValidator{res: &remote.AuthResult{Status: 200, Error: "invalid_token"}}, "bad")
		require.NoError(t, err)
		assert.False(t, out.OK)
		assert.Equal(t, "Invalid token. invalid_token", out.Status)
		assert.Nil(t, e.Settings().AuthToken)
		assert.Nil(t, e.Settings().AuthUserID)
	})

	t.Run("transport keeps", func(t *testing.T) {
		e := newEngine(t, nil)
		_, err := e.UpdateSettings(ctx, func(s *review.Settings) { s.AuthToken = review.Str("old") })
		require.NoError(t, err)

		_, err = e.Authenticate(ctx, &fakeValidator{err: fmt.Errorf("offline")}, "new")
		require.Error(t, err)
		assert.Equal(t, "old", *e.Settings().AuthToken)
	})

	t.Run("blank", func(t *testing.T) {
		e := newEngine(t, nil)
		_, err := e.Authenticate(ctx, &fakeValidator{}, "  ")
		require.Error(t, err)
	})
}
