package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/mapreview/internal/category"
	"github.com/hpungsan/mapreview/internal/errors"
	"github.com/hpungsan/mapreview/internal/fileio"
	"github.com/hpungsan/mapreview/internal/mapcode"
	"github.com/hpungsan/mapreview/internal/massaction"
	"github.com/hpungsan/mapreview/internal/queue"
	"github.com/hpungsan/mapreview/internal/report"
	"github.com/hpungsan/mapreview/internal/review"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	engine  *queue.Engine
	files   *fileio.Files
	session SessionService
	runner  *massaction.Runner
	sender  queue.CommandSender
	logger  *zap.Logger
	runCtx  context.Context
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps) *Handlers {
	h := &Handlers{
		engine:  deps.Engine,
		files:   deps.Files,
		session: deps.Session,
		runner:  deps.Runner,
		sender:  deps.Sender,
		logger:  deps.Logger,
		runCtx:  deps.RunCtx,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.runCtx == nil {
		h.runCtx = context.Background()
	}
	return h
}

// Request types for each tool

// AddRequest represents the arguments for queue_add.
type AddRequest struct {
	Text     string   `json:"text,omitempty"`
	Mapcodes []string `json:"mapcodes,omitempty"`
	Source   string   `json:"source,omitempty"`
}

// ImportFileRequest represents the arguments for queue_import_file.
type ImportFileRequest struct {
	Path string `json:"path"`
}

// ImportRemoteRequest represents the arguments for queue_import_remote.
type ImportRemoteRequest struct {
	Category string `json:"category,omitempty"`
}

// ListRequest represents the arguments for queue_list.
type ListRequest struct {
	All bool `json:"all,omitempty"`
}

// SelectRequest represents the arguments for queue_select.
type SelectRequest struct {
	ID string `json:"id,omitempty"`
}

// MoveRequest represents the arguments for queue_move.
type MoveRequest struct {
	Delta int `json:"delta"`
}

// DecideRequest represents the arguments for item_decide.
type DecideRequest struct {
	Decision string `json:"decision"`
}

// ReviewRequest represents the arguments for item_review.
type ReviewRequest struct {
	Text string `json:"text"`
}

// StartRequest represents the arguments for session_start.
type StartRequest struct {
	Category    string `json:"category"`
	InputMethod string `json:"input_method,omitempty"`
}

// PathRequest represents the arguments for session_finish.
type PathRequest struct {
	Path     string `json:"path,omitempty"`
	Votecrew bool   `json:"votecrew,omitempty"`
	Private  bool   `json:"private,omitempty"`
}

// CategoriesRequest represents the arguments for session_categories.
type CategoriesRequest struct {
	All bool `json:"all,omitempty"`
}

// CancelRequest represents the arguments for session_cancel.
type CancelRequest struct {
	Export bool   `json:"export,omitempty"`
	Path   string `json:"path,omitempty"`
}

// SettingsUpdateRequest represents the arguments for settings_update.
type SettingsUpdateRequest struct {
	CommandMode          *string `json:"command_mode,omitempty"`
	Dedupe               *bool   `json:"dedupe,omitempty"`
	AutoCaptureClipboard *bool   `json:"auto_capture_clipboard,omitempty"`
	ShowIgnored          *bool   `json:"show_ignored,omitempty"`
	ReviewHotkeysEnabled *bool   `json:"review_hotkeys_enabled,omitempty"`
}

// LoginRequest represents the arguments for auth_login.
type LoginRequest struct {
	Token string `json:"token"`
}

// ExportRequest represents the arguments for export_backup.
type ExportRequest struct {
	Path       string `json:"path,omitempty"`
	IncludeXML bool   `json:"include_xml,omitempty"`
}

// MassLoadRequest represents the arguments for mass_load.
type MassLoadRequest struct {
	Text      string   `json:"text,omitempty"`
	Mapcodes  []string `json:"mapcodes,omitempty"`
	FromQueue bool     `json:"from_queue,omitempty"`
}

// MassTargetRequest represents the arguments for mass_target.
type MassTargetRequest struct {
	Category string `json:"category,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
	Suffix   string `json:"suffix,omitempty"`
}

// MassStepRequest represents the arguments for mass_step.
type MassStepRequest struct {
	Direction string `json:"direction"`
}

// MassIntervalRequest represents the arguments for mass_interval.
type MassIntervalRequest struct {
	Millis int `json:"ms"`
}

// ReportRequest represents the arguments for report_session.
type ReportRequest struct {
	Format string `json:"format,omitempty"`
}

// Output views

// ItemView is a queue item without its cached content.
type ItemView struct {
	ID              string               `json:"id"`
	Mapcode         string               `json:"mapcode"`
	Author          *string              `json:"author"`
	P               *float64             `json:"p"`
	HasXML          bool                 `json:"has_xml"`
	Submitter       *string              `json:"submitter,omitempty"`
	ImportedIgnored *bool                `json:"imported_ignored,omitempty"`
	ImportedReason  *string              `json:"imported_reason,omitempty"`
	CommandsUsed    []review.CommandMode `json:"commands_used"`
	Review          string               `json:"review"`
	Decision        *category.Decision   `json:"decision"`
	Status          review.Status        `json:"status"`
	Selected        bool                 `json:"selected"`
}

func itemView(it review.Item, selected *string) ItemView {
	return ItemView{
		ID:              it.ID,
		Mapcode:         it.Mapcode,
		Author:          it.Author,
		P:               it.P,
		HasXML:          it.XML != nil,
		Submitter:       it.Submitter,
		ImportedIgnored: it.ImportedIgnored,
		ImportedReason:  it.ImportedReason,
		CommandsUsed:    it.CommandsUsed,
		Review:          it.Review,
		Decision:        it.Decision,
		Status:          it.Status,
		Selected:        selected != nil && *selected == it.ID,
	}
}

func itemViews(items []review.Item, selected *string) []ItemView {
	out := make([]ItemView, 0, len(items))
	for _, it := range items {
		out = append(out, itemView(it, selected))
	}
	return out
}

// SettingsView is Settings without the stored token.
type SettingsView struct {
	CommandMode          review.CommandMode     `json:"command_mode"`
	Dedupe               bool                   `json:"dedupe"`
	AutoCaptureClipboard bool                   `json:"auto_capture_clipboard"`
	ShowIgnored          bool                   `json:"show_ignored"`
	ReviewHotkeysEnabled bool                   `json:"review_hotkeys_enabled"`
	ReviewHotkeys        review.ReviewHotkeys   `json:"review_hotkeys"`
	MassPermHotkeys      review.MassPermHotkeys `json:"mass_perm_hotkeys"`
	Authenticated        bool                   `json:"authenticated"`
	AuthUserID           *string                `json:"auth_user_id"`
}

func settingsView(s review.Settings) SettingsView {
	return SettingsView{
		CommandMode:          s.CommandMode,
		Dedupe:               s.Dedupe,
		AutoCaptureClipboard: s.AutoCaptureClipboard,
		ShowIgnored:          s.ShowIgnoredInQueue,
		ReviewHotkeysEnabled: s.ReviewHotkeysEnabled,
		ReviewHotkeys:        s.ReviewHotkeys,
		MassPermHotkeys:      s.MassPermHotkeys,
		Authenticated:        s.AuthToken != nil && *s.AuthToken != "",
		AuthUserID:           s.AuthUserID,
	}
}

// Handler implementations

// HandleQueueAdd handles the queue_add tool.
func (h *Handlers) HandleQueueAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	source := strings.TrimSpace(input.Source)
	if source == "" {
		source = "mcp"
	}
	codes := append(mapcode.ParseMany(input.Text), input.Mapcodes...)
	result := h.engine.AddMapcodes(ctx, codes, source)

	st := h.engine.Snapshot()
	return successResult(map[string]any{
		"added":  result.Added,
		"items":  itemViews(result.Items, st.SelectedID),
		"status": result.Status,
	})
}

// HandleQueueImportFile handles the queue_import_file tool.
func (h *Handlers) HandleQueueImportFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportFileRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.Path) == "" {
		return errorResult(errors.NewInvalidRequest("path is required")), nil
	}

	data, err := h.files.ReadImport(input.Path)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(h.engine.ImportDocument(ctx, data, filepath.Base(input.Path)))
}

// HandleQueueImportRemote handles the queue_import_remote tool.
func (h *Handlers) HandleQueueImportRemote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRemoteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if h.session == nil {
		return errorResult(errors.NewInvalidRequest("session service not configured")), nil
	}

	return successResult(h.engine.ImportRemote(ctx, h.session, input.Category))
}

// HandleQueueList handles the queue_list tool.
func (h *Handlers) HandleQueueList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	st := h.engine.Snapshot()
	items := st.Items
	if !input.All {
		items = h.engine.Visible()
	}

	return successResult(map[string]any{
		"items":       itemViews(items, st.SelectedID),
		"total":       len(st.Items),
		"selected_id": st.SelectedID,
		"status":      h.engine.Status(),
	})
}

// HandleQueueSelect handles the queue_select tool.
func (h *Handlers) HandleQueueSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SelectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := h.engine.Select(ctx, input.ID); err != nil {
		return errorResult(err), nil
	}
	return h.selectedResult()
}

// HandleQueueMove handles the queue_move tool.
func (h *Handlers) HandleQueueMove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MoveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.engine.SelectRelative(ctx, input.Delta)
	return h.selectedResult()
}

func (h *Handlers) selectedResult() (*mcp.CallToolResult, error) {
	var view *ItemView
	if it := h.engine.Selected(); it != nil {
		v := itemView(*it, &it.ID)
		view = &v
	}
	return successResult(map[string]any{"selected": view})
}

// HandleItemDecide handles the item_decide tool.
func (h *Handlers) HandleItemDecide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DecideRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var d *category.Decision
	if v := strings.TrimSpace(input.Decision); v != "" && v != "none" {
		d = review.DecisionPtr(category.Decision(v))
	}

	it, err := h.engine.SetDecision(ctx, d)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"item": itemView(*it, &it.ID)})
}

// HandleItemReview handles the item_review tool.
func (h *Handlers) HandleItemReview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReviewRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	it, err := h.engine.SetReview(ctx, input.Text)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"item": itemView(*it, &it.ID)})
}

// HandleItemCommand handles the item_command tool.
func (h *Handlers) HandleItemCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.sender == nil {
		return errorResult(errors.NewInvalidRequest("command sender not configured")), nil
	}

	cmd, err := h.engine.RecordCommand(ctx, h.sender, "mcp")
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"command": cmd,
		"status":  h.engine.Status(),
	})
}

// HandleSessionStart handles the session_start tool.
func (h *Handlers) HandleSessionStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StartRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	sess, err := h.engine.StartSession(ctx, input.Category, review.InputMethod(input.InputMethod))
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"session": sess,
		"status":  h.engine.Status(),
	})
}

// HandleSessionCategories handles the session_categories tool.
func (h *Handlers) HandleSessionCategories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CategoriesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	cats := category.Reviewed()
	if input.All {
		cats = category.All()
	}
	return successResult(map[string]any{"categories": cats, "count": len(cats)})
}

// HandleSessionStatus handles the session_status tool.
func (h *Handlers) HandleSessionStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := h.engine.Snapshot()
	return successResult(map[string]any{
		"session":     st.Session,
		"review_open": st.ReviewOpen,
		"counts":      report.Count(st.Items),
		"finish":      h.engine.CheckFinish(),
		"status":      h.engine.Status(),
	})
}

// HandleSessionFinish handles the session_finish tool.
func (h *Handlers) HandleSessionFinish(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PathRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	in := queue.FinishInput{
		Saver:    &fileio.Saver{Files: h.files, Path: input.Path},
		Votecrew: input.Votecrew,
		Private:  input.Private,
	}
	if h.session != nil {
		in.Submitter = h.session
	}
	result, err := h.engine.Finish(ctx, in)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSessionCancel handles the session_cancel tool.
func (h *Handlers) HandleSessionCancel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CancelRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var in queue.CancelInput
	if input.Export {
		in.Saver = &fileio.Saver{Files: h.files, Path: input.Path}
	}
	result, err := h.engine.Cancel(ctx, in)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSessionLeave handles the session_leave tool.
func (h *Handlers) HandleSessionLeave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.engine.LeaveToHome(ctx)
	return successResult(map[string]any{"status": h.engine.Status()})
}

// HandleSessionReturn handles the session_return tool.
func (h *Handlers) HandleSessionReturn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.engine.ReturnToSession(ctx); err != nil {
		return errorResult(err), nil
	}
	st := h.engine.Snapshot()
	return successResult(map[string]any{"session": st.Session})
}

// HandleSettingsGet handles the settings_get tool.
func (h *Handlers) HandleSettingsGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(settingsView(h.engine.Settings()))
}

// HandleSettingsUpdate handles the settings_update tool.
func (h *Handlers) HandleSettingsUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SettingsUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	s, err := h.engine.UpdateSettings(ctx, func(s *review.Settings) {
		if input.CommandMode != nil {
			s.CommandMode = review.CommandMode(strings.TrimSpace(*input.CommandMode))
		}
		if input.Dedupe != nil {
			s.Dedupe = *input.Dedupe
		}
		if input.AutoCaptureClipboard != nil {
			s.AutoCaptureClipboard = *input.AutoCaptureClipboard
		}
		if input.ShowIgnored != nil {
			s.ShowIgnoredInQueue = *input.ShowIgnored
		}
		if input.ReviewHotkeysEnabled != nil {
			s.ReviewHotkeysEnabled = *input.ReviewHotkeysEnabled
		}
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(settingsView(s))
}

// HandleAuthLogin handles the auth_login tool.
func (h *Handlers) HandleAuthLogin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LoginRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if h.session == nil {
		return errorResult(errors.NewInvalidRequest("session service not configured")), nil
	}

	result, err := h.engine.Authenticate(ctx, h.session, input.Token)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleAuthLogout handles the auth_logout tool.
func (h *Handlers) HandleAuthLogout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.engine.ClearAuth(ctx)
	return successResult(settingsView(h.engine.Settings()))
}

// HandleExportBackup handles the export_backup tool.
func (h *Handlers) HandleExportBackup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.engine.Export(ctx, &fileio.Saver{Files: h.files, Path: input.Path}, input.IncludeXML)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleMassLoad handles the mass_load tool.
func (h *Handlers) HandleMassLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MassLoadRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	source := "input"
	codes := append(mapcode.ParseMany(input.Text), input.Mapcodes...)
	if input.FromQueue {
		source = "queue"
		for _, it := range h.engine.Visible() {
			codes = append(codes, it.Mapcode)
		}
	}
	if len(codes) == 0 {
		return errorResult(errors.NewInvalidRequest("no mapcodes to load")), nil
	}

	h.runner.Load(codes, source)
	return successResult(h.runner.Status())
}

// HandleMassTarget handles the mass_target tool.
func (h *Handlers) HandleMassTarget(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MassTargetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var t massaction.Target
	if strings.TrimSpace(input.Prefix) != "" {
		t, err = massaction.CustomTarget(input.Prefix, input.Suffix)
	} else {
		t, err = massaction.CategoryTarget(input.Category)
	}
	if err != nil {
		return errorResult(err), nil
	}

	h.runner.SetTarget(t)
	return successResult(map[string]any{
		"target":  t,
		"example": t.Command("123"),
	})
}

// HandleMassPlay handles the mass_play tool.
func (h *Handlers) HandleMassPlay(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// The loop outlives this call.
	if err := h.runner.Play(h.runCtx); err != nil {
		return errorResult(err), nil
	}
	return successResult(h.runner.Status())
}

// HandleMassPause handles the mass_pause tool.
func (h *Handlers) HandleMassPause(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.runner.Pause()
	return successResult(h.runner.Status())
}

// HandleMassStep handles the mass_step tool.
func (h *Handlers) HandleMassStep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MassStepRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var cmd string
	switch input.Direction {
	case "next":
		cmd, err = h.runner.Next(ctx)
	case "prev":
		cmd, err = h.runner.Prev(ctx)
	case "current":
		cmd, err = h.runner.PlayCurrent(ctx)
	default:
		return errorResult(errors.NewInvalidRequest("direction must be next, prev or current")), nil
	}
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"command": cmd,
		"state":   h.runner.Status(),
	})
}

// HandleMassInterval handles the mass_interval tool.
func (h *Handlers) HandleMassInterval(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MassIntervalRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Millis <= 0 {
		return errorResult(errors.NewInvalidRequest("ms must be positive")), nil
	}

	h.runner.SetInterval(time.Duration(input.Millis) * time.Millisecond)
	return successResult(h.runner.Status())
}

// HandleMassReset handles the mass_reset tool.
func (h *Handlers) HandleMassReset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.runner.Reset(); err != nil {
		return errorResult(err), nil
	}
	return successResult(h.runner.Status())
}

// HandleMassStatus handles the mass_status tool.
func (h *Handlers) HandleMassStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.runner.Status())
}

// HandleReportSession handles the report_session tool.
func (h *Handlers) HandleReportSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	st := h.engine.Snapshot()
	md := report.Markdown(st, nil)
	out := map[string]any{
		"format":  "markdown",
		"content": md,
		"counts":  report.Count(st.Items),
	}
	switch input.Format {
	case "", "markdown":
	case "html":
		html, err := report.HTML(md)
		if err != nil {
			h.logger.Error("render report", zap.Error(err))
			return errorResult(errors.NewInternal(err)), nil
		}
		out["format"] = "html"
		out["content"] = html
	default:
		return errorResult(errors.NewInvalidRequest("format must be markdown or html")), nil
	}
	return successResult(out)
}

// errorResult creates an MCP error result from an error.
// Wrapped ReviewErrors keep their code; the wrapper context is prepended to the message.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var reviewErr *errors.ReviewError
	if stderrors.As(err, &reviewErr) {
		msg := reviewErr.Message
		if outer := err.Error(); outer != reviewErr.Error() {
			msg = strings.Replace(outer, reviewErr.Error(), reviewErr.Message, 1)
		}
		errorObj := map[string]any{
			"code":    reviewErr.Code,
			"message": msg,
			"status":  reviewErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// file paths or SQL errors
		if reviewErr.Code != errors.ErrInternal && reviewErr.Details != nil {
			errorObj["details"] = reviewErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
