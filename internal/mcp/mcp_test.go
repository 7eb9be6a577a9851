package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hpungsan/mapreview/internal/config"
	"github.com/hpungsan/mapreview/internal/db"
	"github.com/hpungsan/mapreview/internal/errors"
	"github.com/hpungsan/mapreview/internal/export"
	"github.com/hpungsan/mapreview/internal/fileio"
	"github.com/hpungsan/mapreview/internal/massaction"
	"github.com/hpungsan/mapreview/internal/queue"
	"github.com/hpungsan/mapreview/internal/remote"
	"github.com/hpungsan/mapreview/internal/state"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *recordingSender) Send(_ context.Context, cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, cmd)
	return nil
}

func (s *recordingSender) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

type fakeSessionService struct {
	submitted string
	opts      remote.SubmitOptions
	auth      *remote.AuthResult
}

func (f *fakeSessionService) FetchSession(_ context.Context, categoryType string) (*remote.SessionResult, error) {
	return &remote.SessionResult{Status: 404, Err: &remote.SessionError{Kind: remote.KindNoActiveSession}}, nil
}

func (f *fakeSessionService) SubmitReview(_ context.Context, categoryType string, _ *export.Payload, opts remote.SubmitOptions) (*remote.SubmitResult, error) {
	f.submitted = categoryType
	f.opts = opts
	body := "ok"
	return &remote.SubmitResult{OK: true, Status: 200, Body: &body}, nil
}

func (f *fakeSessionService) ValidateToken(_ context.Context, token string) (*remote.AuthResult, error) {
	if f.auth != nil {
		return f.auth, nil
	}
	return &remote.AuthResult{OK: true, Status: 200, Token: token, User: &remote.AuthUser{ID: "42"}}, nil
}

type testEnv struct {
	h         *Handlers
	deps      Deps
	cfg       *config.Config
	exports   string
	sender    *recordingSender
	massSends *recordingSender
	session   *fakeSessionService
}

// testSetup creates an engine over a temporary database with fake collaborators.
func testSetup(t *testing.T) *testEnv {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true // Allow temp dirs in tests

	exports := db.ExportsDir(tmpDir)
	env := &testEnv{
		cfg:       cfg,
		exports:   exports,
		sender:    &recordingSender{},
		massSends: &recordingSender{},
		session:   &fakeSessionService{},
	}
	engine := queue.New(context.Background(), queue.Options{
		Store:  state.NewStore(database, "linux", zap.NewNop()),
		Logger: zap.NewNop(),
	})
	env.deps = Deps{
		Engine:  engine,
		Files:   fileio.New(exports, cfg),
		Session: env.session,
		Runner:  massaction.NewRunner(env.massSends, massaction.MinInterval, zap.NewNop()),
		Sender:  env.sender,
		Config:  cfg,
		Logger:  zap.NewNop(),
	}
	env.h = NewHandlers(env.deps)
	return env
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := handler(context.Background(), makeRequest(args))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return result
}

func TestHandleQueueAdd(t *testing.T) {
	env := testSetup(t)

	result := call(t, env.h.HandleQueueAdd, map[string]any{
		"text":     "@6208666 and 123, @6208666",
		"mapcodes": []any{"@42"},
	})
	output := parseOutput(t, result)

	if output["added"] != float64(2) {
		t.Errorf("added = %v, want 2", output["added"])
	}
	status, _ := output["status"].(string)
	if !strings.Contains(status, "(mcp)") {
		t.Errorf("status = %q, want default source mcp", status)
	}

	items := output["items"].([]any)
	first := items[0].(map[string]any)
	if first["mapcode"] != "6208666" {
		t.Errorf("first mapcode = %v", first["mapcode"])
	}
	if first["selected"] != true {
		t.Error("first added item should be selected")
	}
	if _, has := first["xml"]; has {
		t.Error("item view should not carry xml")
	}
}

func TestHandleQueueAdd_InvalidArgs(t *testing.T) {
	env := testSetup(t)

	result := call(t, env.h.HandleQueueAdd, map[string]any{"text": 5})
	if !result.IsError {
		t.Fatal("expected error for non-string text")
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleQueueList_HiddenItems(t *testing.T) {
	env := testSetup(t)

	call(t, env.h.HandleQueueAdd, map[string]any{"mapcodes": []any{"11", "22"}})
	call(t, env.h.HandleItemDecide, map[string]any{"decision": "ignored"})
	call(t, env.h.HandleSettingsUpdate, map[string]any{"show_ignored": false})

	visible := parseOutput(t, call(t, env.h.HandleQueueList, map[string]any{}))
	assert.Len(t, visible["items"], 1)
	assert.EqualValues(t, 2, visible["total"])

	all := parseOutput(t, call(t, env.h.HandleQueueList, map[string]any{"all": true}))
	assert.Len(t, all["items"], 2)
}

func TestHandleQueueSelectAndMove(t *testing.T) {
	env := testSetup(t)

	added := parseOutput(t, call(t, env.h.HandleQueueAdd, map[string]any{"mapcodes": []any{"11", "22", "33"}}))
	ids := make([]string, 0, 3)
	for _, raw := range added["items"].([]any) {
		ids = append(ids, raw.(map[string]any)["id"].(string))
	}

	out := parseOutput(t, call(t, env.h.HandleQueueSelect, map[string]any{"id": ids[2]}))
	assert.Equal(t, ids[2], out["selected"].(map[string]any)["id"])

	out = parseOutput(t, call(t, env.h.HandleQueueMove, map[string]any{"delta": 1}))
	assert.Equal(t, ids[0], out["selected"].(map[string]any)["id"], "move wraps to the start")

	result := call(t, env.h.HandleQueueSelect, map[string]any{"id": "missing"})
	assertErrorCode(t, result, "NOT_FOUND")

	out = parseOutput(t, call(t, env.h.HandleQueueSelect, map[string]any{}))
	assert.Nil(t, out["selected"])
}

func TestHandleItemDecide(t *testing.T) {
	env := testSetup(t)

	t.Run("no selection", func(t *testing.T) {
		result := call(t, env.h.HandleItemDecide, map[string]any{"decision": "p1ed"})
		assertErrorCode(t, result, "INVALID_REQUEST")
	})

	t.Run("not allowed in category", func(t *testing.T) {
		call(t, env.h.HandleSessionStart, map[string]any{"category": "P3"})
		call(t, env.h.HandleQueueAdd, map[string]any{"mapcodes": []any{"11"}})

		result := call(t, env.h.HandleItemDecide, map[string]any{"decision": "p1ed"})
		assertErrorCode(t, result, "DECISION_NOT_ALLOWED")
	})

	t.Run("set and clear", func(t *testing.T) {
		out := parseOutput(t, call(t, env.h.HandleItemDecide, map[string]any{"decision": "left_as_is"}))
		item := out["item"].(map[string]any)
		assert.Equal(t, "left_as_is", item["decision"])
		assert.Equal(t, "reviewed", item["status"])

		out = parseOutput(t, call(t, env.h.HandleItemDecide, map[string]any{"decision": "none"}))
		item = out["item"].(map[string]any)
		assert.Nil(t, item["decision"])
		assert.Equal(t, "pending", item["status"])
	})

	t.Run("unknown decision", func(t *testing.T) {
		result := call(t, env.h.HandleItemDecide, map[string]any{"decision": "maybe"})
		assertErrorCode(t, result, "INVALID_REQUEST")
	})
}

func TestHandleItemCommand(t *testing.T) {
	env := testSetup(t)

	call(t, env.h.HandleQueueAdd, map[string]any{"mapcodes": []any{"77"}})
	call(t, env.h.HandleSettingsUpdate, map[string]any{"command_mode": "/npp"})

	out := parseOutput(t, call(t, env.h.HandleItemCommand, map[string]any{}))
	assert.Equal(t, "/npp @77", out["command"])
	assert.Equal(t, []string{"/npp @77"}, env.sender.commands())

	list := parseOutput(t, call(t, env.h.HandleQueueList, map[string]any{}))
	item := list["items"].([]any)[0].(map[string]any)
	assert.Equal(t, []any{"/npp"}, item["commands_used"])
}

func TestHandleSettingsUpdate_InvalidCommandMode(t *testing.T) {
	env := testSetup(t)

	result := call(t, env.h.HandleSettingsUpdate, map[string]any{"command_mode": "!zz", "dedupe": false})
	assertErrorCode(t, result, "INVALID_REQUEST")

	out := parseOutput(t, call(t, env.h.HandleSettingsGet, map[string]any{}))
	assert.Equal(t, "!np", out["command_mode"])
	assert.Equal(t, true, out["dedupe"], "rejected update changes nothing")
	_, hasToken := out["auth_token"]
	assert.False(t, hasToken)
}

func TestSessionWorkflow(t *testing.T) {
	env := testSetup(t)

	out := parseOutput(t, call(t, env.h.HandleSessionStart, map[string]any{"category": "p4", "input_method": "textarea"}))
	assert.Equal(t, "P4", out["session"].(map[string]any)["category"])

	call(t, env.h.HandleQueueAdd, map[string]any{"mapcodes": []any{"11", "22"}})

	status := parseOutput(t, call(t, env.h.HandleSessionStatus, map[string]any{}))
	finish := status["finish"].(map[string]any)
	assert.Equal(t, false, finish["can_finish"])

	result := call(t, env.h.HandleSessionFinish, map[string]any{"path": "out"})
	assertErrorCode(t, result, "UNDECIDED_ITEMS")

	call(t, env.h.HandleItemDecide, map[string]any{"decision": "left_as_is"})
	call(t, env.h.HandleQueueMove, map[string]any{"delta": 1})
	call(t, env.h.HandleItemDecide, map[string]any{"decision": "will_be_discussed"})

	done := parseOutput(t, call(t, env.h.HandleSessionFinish, map[string]any{"path": "out"}))
	assert.Equal(t, true, done["submitted"])
	assert.EqualValues(t, 200, done["http_status"])
	assert.Equal(t, "P4", env.session.submitted)

	saved := done["saved_path"].(string)
	assert.Equal(t, filepath.Join(env.exports, "out.json"), saved)
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	var payload export.Payload
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Len(t, payload.Items, 2)

	after := parseOutput(t, call(t, env.h.HandleSessionStatus, map[string]any{}))
	assert.Nil(t, after["session"])

	result = call(t, env.h.HandleSessionReturn, map[string]any{})
	assertErrorCode(t, result, "NO_SESSION")
}

func TestHandleSessionFinish_SubmitFlags(t *testing.T) {
	env := testSetup(t)

	call(t, env.h.HandleSessionStart, map[string]any{"category": "P4"})
	call(t, env.h.HandleQueueAdd, map[string]any{"mapcodes": []any{"11"}})
	call(t, env.h.HandleItemDecide, map[string]any{"decision": "left_as_is"})

	out := parseOutput(t, call(t, env.h.HandleSessionFinish, map[string]any{"votecrew": true, "private": true}))
	assert.Equal(t, true, out["submitted"])
	assert.True(t, env.session.opts.Votecrew)
	assert.True(t, env.session.opts.PostAsPrivate)
}

func TestHandleSessionCategories(t *testing.T) {
	env := testSetup(t)

	codes := func(out map[string]any) []string {
		var got []string
		for _, c := range out["categories"].([]any) {
			got = append(got, c.(map[string]any)["code"].(string))
		}
		return got
	}

	out := parseOutput(t, call(t, env.h.HandleSessionCategories, map[string]any{}))
	reviewed := codes(out)
	assert.Contains(t, reviewed, "P4")
	assert.NotContains(t, reviewed, "P1")
	assert.NotContains(t, reviewed, "P43")
	assert.EqualValues(t, len(reviewed), out["count"])

	all := codes(parseOutput(t, call(t, env.h.HandleSessionCategories, map[string]any{"all": true})))
	assert.Contains(t, all, "P1")
	assert.Greater(t, len(all), len(reviewed))

	for _, c := range out["categories"].([]any) {
		cat := c.(map[string]any)
		if cat["code"] == "P3" {
			assert.Equal(t, []any{"left_as_is", "will_be_discussed", "ignored"}, cat["decisions"])
		}
	}
}

func TestHandleSessionFinish_NoSessionService(t *testing.T) {
	env := testSetup(t)
	env.deps.Session = nil
	h := NewHandlers(env.deps)

	call(t, h.HandleSessionStart, map[string]any{"category": "P4"})
	call(t, h.HandleQueueAdd, map[string]any{"mapcodes": []any{"11"}})
	call(t, h.HandleItemDecide, map[string]any{"decision": "ignored"})

	out := parseOutput(t, call(t, h.HandleSessionFinish, map[string]any{}))
	assert.Equal(t, false, out["submitted"])
	assert.Equal(t, "session service not configured", out["message"])
	assert.FileExists(t, out["saved_path"].(string))

	assertErrorCode(t, call(t, h.HandleQueueImportRemote, map[string]any{}), "INVALID_REQUEST")
	assertErrorCode(t, call(t, h.HandleAuthLogin, map[string]any{"token": "x"}), "INVALID_REQUEST")
}

func TestHandleSessionCancel(t *testing.T) {
	env := testSetup(t)

	assertErrorCode(t, call(t, env.h.HandleSessionCancel, map[string]any{}), "NO_SESSION")

	call(t, env.h.HandleSessionStart, map[string]any{"category": "P4"})
	call(t, env.h.HandleQueueAdd, map[string]any{"mapcodes": []any{"11"}})

	out := parseOutput(t, call(t, env.h.HandleSessionCancel, map[string]any{"export": true, "path": "cancelled"}))
	assert.Equal(t, "Session exported and closed.", out["status"])
	assert.FileExists(t, filepath.Join(env.exports, "cancelled.json"))

	list := parseOutput(t, call(t, env.h.HandleQueueList, map[string]any{}))
	assert.Empty(t, list["items"])
}

func TestHandleSessionLeaveReturn(t *testing.T) {
	env := testSetup(t)

	call(t, env.h.HandleSessionStart, map[string]any{"category": "P5"})
	out := parseOutput(t, call(t, env.h.HandleSessionLeave, map[string]any{}))
	assert.Equal(t, "Left session (still active).", out["status"])

	status := parseOutput(t, call(t, env.h.HandleSessionStatus, map[string]any{}))
	assert.Equal(t, false, status["review_open"])

	parseOutput(t, call(t, env.h.HandleSessionReturn, map[string]any{}))
	status = parseOutput(t, call(t, env.h.HandleSessionStatus, map[string]any{}))
	assert.Equal(t, true, status["review_open"])
}

func TestHandleSessionStart_Invalid(t *testing.T) {
	env := testSetup(t)

	assertErrorCode(t, call(t, env.h.HandleSessionStart, map[string]any{"category": "P0"}), "INVALID_REQUEST")
	assertErrorCode(t, call(t, env.h.HandleSessionStart, map[string]any{"category": "P4", "input_method": "carrier_pigeon"}), "INVALID_REQUEST")
}

func TestHandleQueueImportFile(t *testing.T) {
	env := testSetup(t)
	require.NoError(t, os.MkdirAll(env.exports, 0700))
	path := filepath.Join(env.exports, "codes.txt")
	require.NoError(t, os.WriteFile(path, []byte("@11\n@22\n@11\n"), 0600))

	out := parseOutput(t, call(t, env.h.HandleQueueImportFile, map[string]any{"path": path}))
	assert.Equal(t, "text", out["kind"])
	assert.EqualValues(t, 2, out["added"])

	assertErrorCode(t, call(t, env.h.HandleQueueImportFile, map[string]any{}), "INVALID_REQUEST")
	assertErrorCode(t, call(t, env.h.HandleQueueImportFile, map[string]any{"path": filepath.Join(env.exports, "missing.txt")}), "FILE_NOT_FOUND")
}

func TestHandleQueueImportRemote_Failure(t *testing.T) {
	env := testSetup(t)

	out := parseOutput(t, call(t, env.h.HandleQueueImportRemote, map[string]any{"category": "P5"}))
	assert.Equal(t, false, out["imported"])
	assert.Equal(t, "No active session for P5.", out["status"])
}

func TestHandleAuth(t *testing.T) {
	env := testSetup(t)

	out := parseOutput(t, call(t, env.h.HandleAuthLogin, map[string]any{"token": "secret"}))
	assert.Equal(t, true, out["ok"])

	settings := parseOutput(t, call(t, env.h.HandleSettingsGet, map[string]any{}))
	assert.Equal(t, true, settings["authenticated"])
	assert.Equal(t, "42", settings["auth_user_id"])

	settings = parseOutput(t, call(t, env.h.HandleAuthLogout, map[string]any{}))
	assert.Equal(t, false, settings["authenticated"])
	assert.Nil(t, settings["auth_user_id"])

	assertErrorCode(t, call(t, env.h.HandleAuthLogin, map[string]any{"token": "  "}), "INVALID_REQUEST")
}

func TestHandleExportBackup(t *testing.T) {
	env := testSetup(t)
	call(t, env.h.HandleQueueAdd, map[string]any{"mapcodes": []any{"11", "22"}})

	out := parseOutput(t, call(t, env.h.HandleExportBackup, map[string]any{"path": "backup", "include_xml": true}))
	assert.EqualValues(t, 2, out["items"])

	data, err := os.ReadFile(filepath.Join(env.exports, "backup.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"xml": null`)
	assert.True(t, strings.HasSuffix(string(data), "\n"))
}

func TestMassTools(t *testing.T) {
	env := testSetup(t)

	assertErrorCode(t, call(t, env.h.HandleMassLoad, map[string]any{}), "INVALID_REQUEST")

	out := parseOutput(t, call(t, env.h.HandleMassLoad, map[string]any{"text": "@10 @20 @10"}))
	assert.EqualValues(t, 2, out["total"])

	assertErrorCode(t, call(t, env.h.HandleMassStep, map[string]any{"direction": "next"}), "INVALID_REQUEST")

	target := parseOutput(t, call(t, env.h.HandleMassTarget, map[string]any{"category": "P4"}))
	assert.Equal(t, "/p 4 @123", target["example"])

	step := parseOutput(t, call(t, env.h.HandleMassStep, map[string]any{"direction": "next"}))
	assert.Equal(t, "/p 4 @10", step["command"])

	step = parseOutput(t, call(t, env.h.HandleMassStep, map[string]any{"direction": "current"}))
	assert.Equal(t, "/p 4 @10", step["command"])
	assert.Equal(t, []string{"/p 4 @10", "/p 4 @10"}, env.massSends.commands())

	interval := parseOutput(t, call(t, env.h.HandleMassInterval, map[string]any{"ms": 540}))
	assert.EqualValues(t, 500, interval["interval_ms"])

	assertErrorCode(t, call(t, env.h.HandleMassStep, map[string]any{"direction": "sideways"}), "INVALID_REQUEST")

	custom := parseOutput(t, call(t, env.h.HandleMassTarget, map[string]any{"prefix": "!np"}))
	assert.Equal(t, "!np @123", custom["example"])

	reset := parseOutput(t, call(t, env.h.HandleMassReset, map[string]any{}))
	assert.EqualValues(t, 0, reset["done"])
}

func TestMassLoad_FromQueue(t *testing.T) {
	env := testSetup(t)
	call(t, env.h.HandleQueueAdd, map[string]any{"mapcodes": []any{"55", "66"}})

	out := parseOutput(t, call(t, env.h.HandleMassLoad, map[string]any{"from_queue": true}))
	assert.EqualValues(t, 2, out["total"])
	assert.Equal(t, "55", out["current"])
}

func TestMassPlay_RunsToCompletion(t *testing.T) {
	env := testSetup(t)

	call(t, env.h.HandleMassLoad, map[string]any{"mapcodes": []any{"11", "22"}})
	call(t, env.h.HandleMassTarget, map[string]any{"category": "7"})
	parseOutput(t, call(t, env.h.HandleMassPlay, map[string]any{}))

	require.NoError(t, env.deps.Runner.Wait(context.Background()))
	assert.Equal(t, []string{"/p 7 @11", "/p 7 @22"}, env.massSends.commands())

	status := parseOutput(t, call(t, env.h.HandleMassStatus, map[string]any{}))
	assert.Equal(t, true, status["finished"])
}

func TestHandleReportSession(t *testing.T) {
	env := testSetup(t)
	call(t, env.h.HandleSessionStart, map[string]any{"category": "P4"})
	call(t, env.h.HandleQueueAdd, map[string]any{"mapcodes": []any{"11"}})

	md := parseOutput(t, call(t, env.h.HandleReportSession, map[string]any{}))
	assert.Equal(t, "markdown", md["format"])
	assert.Contains(t, md["content"], "# Review session: Shaman (P4)")

	html := parseOutput(t, call(t, env.h.HandleReportSession, map[string]any{"format": "html"}))
	assert.Contains(t, html["content"], "<table>")

	assertErrorCode(t, call(t, env.h.HandleReportSession, map[string]any{"format": "pdf"}), "INVALID_REQUEST")
}

func TestServerRegistration(t *testing.T) {
	env := testSetup(t)

	s := NewServer(env.deps, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"queue_add", "queue_import_file", "queue_import_remote", "queue_list", "queue_select", "queue_move",
		"item_decide", "item_review", "item_command",
		"session_start", "session_status", "session_finish", "session_categories", "session_cancel", "session_leave", "session_return",
		"settings_get", "settings_update",
		"auth_login", "auth_logout",
		"export_backup",
		"mass_load", "mass_target", "mass_play", "mass_pause", "mass_step", "mass_interval", "mass_reset", "mass_status",
		"report_session",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}

	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	env := testSetup(t)

	env.cfg.DisabledTools = []string{"auth_login", "auth_logout", "queue_import_remote"}
	s := NewServer(env.deps, "test")
	tools := s.ListTools()

	if len(tools) != len(toolRegistry)-3 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-3)
	}

	for _, name := range []string{"auth_login", "auth_logout", "queue_import_remote"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}

	for _, name := range []string{"queue_add", "item_decide", "session_finish"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("core tool %q should be registered", name)
		}
	}
}

func TestServerRegistration_WithDisabledTypes(t *testing.T) {
	env := testSetup(t)

	env.cfg.DisabledTypes = []string{"mass"}
	s := NewServer(env.deps, "test")
	tools := s.ListTools()

	for name := range tools {
		if GetTypeForTool(name) == "mass" {
			t.Errorf("tool %q of disabled type should not be registered", name)
		}
	}
	if len(tools) != len(toolRegistry)-8 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-8)
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	env := testSetup(t)

	env.cfg.DisabledTools = AllToolNames()
	s := NewServer(env.deps, "test")
	tools := s.ListTools()

	if len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestServerRegistration_DuplicateDisabled(t *testing.T) {
	env := testSetup(t)

	env.cfg.DisabledTools = []string{"mass_play", "mass_play", "mass_play"}
	s := NewServer(env.deps, "test")
	tools := s.ListTools()

	if len(tools) != len(toolRegistry)-1 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-1)
	}
	if _, ok := tools["mass_play"]; ok {
		t.Error("disabled tool 'mass_play' should not be registered")
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{
			name:    "all valid",
			input:   []string{"mass_play", "auth_login"},
			wantLen: 0,
		},
		{
			name:    "one unknown",
			input:   []string{"mass_play", "fake_tool"},
			wantLen: 1,
		},
		{
			name:    "all unknown",
			input:   []string{"foo", "bar", "baz"},
			wantLen: 3,
		},
		{
			name:    "empty list",
			input:   []string{},
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestValidateDisabledTypes(t *testing.T) {
	assert.Empty(t, ValidateDisabledTypes(KnownTypes))
	assert.Equal(t, []string{"widgets"}, ValidateDisabledTypes([]string{"queue", "widgets"}))
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()

	if len(names) != len(toolRegistry) {
		t.Errorf("AllToolNames() returned %d names, want %d", len(names), len(toolRegistry))
	}

	unknown := ValidateDisabledTools(names)
	if len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}

	known := make(map[string]bool, len(KnownTypes))
	for _, typ := range KnownTypes {
		known[typ] = true
	}
	for _, name := range names {
		if !known[GetTypeForTool(name)] {
			t.Errorf("tool %q has no known type", name)
		}
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrappedErr := fmt.Errorf("import codes.txt: %w", errors.NewFileNotFound("codes.txt"))

	r := errorResult(wrappedErr)
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrFileNotFound) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrFileNotFound)
	}
	msg := errObj["message"].(string)
	if !strings.HasPrefix(msg, "import codes.txt: ") {
		t.Errorf("message should keep wrapper context, got: %s", msg)
	}
	if strings.Contains(msg, "FILE_NOT_FOUND") {
		t.Errorf("message should not repeat the code, got: %s", msg)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	r := errorResult(errors.NewUndecidedItems([]string{"@1", "@2"}))

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrUndecidedItems) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrUndecidedItems)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	assert.Equal(t, "INTERNAL", errObj["code"])
	assert.Equal(t, "an internal error occurred", errObj["message"])
}

// Helper functions

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if !result.IsError {
		t.Errorf("expected error %s, got success", expectedCode)
		return
	}
	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}

	code, ok := errorObj["code"].(string)
	if !ok {
		t.Errorf("no code in error object")
		return
	}

	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
