package mcp

import "github.com/mark3labs/mcp-go/mcp"

var decisionValues = []string{"left_as_is", "p1ed", "will_be_discussed", "ignored", "none"}

var queueAddToolDef = mcp.NewTool("queue_add",
	mcp.WithDescription("Add mapcodes to the review queue. Free text is scanned for @-prefixed or bare numeric codes."),
	mcp.WithString("text", mcp.Description("Free text to scan for mapcodes")),
	mcp.WithArray("mapcodes", mcp.Description("Explicit mapcodes"), mcp.WithStringItems()),
	mcp.WithString("source", mcp.Description("Label shown in the status line (default: mcp)")),
)

var queueImportFileToolDef = mcp.NewTool("queue_import_file",
	mcp.WithDescription("Import a .txt, .csv or .json file. A session export replaces the session and queue; a session document or text is merged."),
	mcp.WithString("path", mcp.Required(), mcp.Description("File path, or a bare name inside the exports directory")),
)

var queueImportRemoteToolDef = mcp.NewTool("queue_import_remote",
	mcp.WithDescription("Download the open session of a category from the session service and merge it into the queue."),
	mcp.WithString("category", mcp.Description("Category code, e.g. P4. The active session's category wins.")),
)

var queueListToolDef = mcp.NewTool("queue_list",
	mcp.WithDescription("List queue items. Hidden (ignored) items are omitted unless shown in settings or all=true."),
	mcp.WithBoolean("all", mcp.Description("Include hidden items")),
)

var queueSelectToolDef = mcp.NewTool("queue_select",
	mcp.WithDescription("Select a queue item by id. An empty id clears the selection."),
	mcp.WithString("id", mcp.Description("Item id")),
)

var queueMoveToolDef = mcp.NewTool("queue_move",
	mcp.WithDescription("Move the selection by delta among visible items, wrapping at both ends."),
	mcp.WithNumber("delta", mcp.Required(), mcp.Description("Steps to move; negative moves back")),
)

var itemDecideToolDef = mcp.NewTool("item_decide",
	mcp.WithDescription("Set the decision of the selected item. 'none' clears it."),
	mcp.WithString("decision", mcp.Required(), mcp.Enum(decisionValues...)),
)

var itemReviewToolDef = mcp.NewTool("item_review",
	mcp.WithDescription("Set the reviewer comment of the selected item (truncated to 2000 characters)."),
	mcp.WithString("text", mcp.Required(), mcp.Description("Comment text")),
)

var itemCommandToolDef = mcp.NewTool("item_command",
	mcp.WithDescription("Send the load command for the selected item using the configured command mode."),
)

var sessionStartToolDef = mcp.NewTool("session_start",
	mcp.WithDescription("Start a review session for a reviewed category. Clears the queue."),
	mcp.WithString("category", mcp.Required(), mcp.Description("Category code, e.g. P4")),
	mcp.WithString("input_method", mcp.Description("How items will be added"),
		mcp.Enum("session_api", "session_json", "file_text", "clipboard", "textarea")),
)

var sessionStatusToolDef = mcp.NewTool("session_status",
	mcp.WithDescription("Show the active session, decision counts and whether it can be finished."),
)

var sessionFinishToolDef = mcp.NewTool("session_finish",
	mcp.WithDescription("Save the session export, submit it to the session service and close the session. Every item needs a decision."),
	mcp.WithString("path", mcp.Description("Export path (default: exports directory)")),
	mcp.WithBoolean("votecrew", mcp.Description("Ask the session service to open a crew vote")),
	mcp.WithBoolean("private", mcp.Description("Ask the session service to post the review privately")),
)

var sessionCategoriesToolDef = mcp.NewTool("session_categories",
	mcp.WithDescription("List the categories a review session can be started for, with their allowed decisions."),
	mcp.WithBoolean("all", mcp.Description("Include categories that are not reviewed")),
)

var sessionCancelToolDef = mcp.NewTool("session_cancel",
	mcp.WithDescription("Discard the active session, optionally exporting it first."),
	mcp.WithBoolean("export", mcp.Description("Export before discarding")),
	mcp.WithString("path", mcp.Description("Export path when export=true")),
)

var sessionLeaveToolDef = mcp.NewTool("session_leave",
	mcp.WithDescription("Leave the review screen. The session stays active."),
)

var sessionReturnToolDef = mcp.NewTool("session_return",
	mcp.WithDescription("Return to the active session."),
)

var settingsGetToolDef = mcp.NewTool("settings_get",
	mcp.WithDescription("Show the reviewer settings. The auth token is not returned."),
)

var settingsUpdateToolDef = mcp.NewTool("settings_update",
	mcp.WithDescription("Update reviewer settings. Omitted fields keep their value."),
	mcp.WithString("command_mode", mcp.Enum("!np", "/np", "/npp")),
	mcp.WithBoolean("dedupe"),
	mcp.WithBoolean("auto_capture_clipboard"),
	mcp.WithBoolean("show_ignored"),
	mcp.WithBoolean("review_hotkeys_enabled"),
)

var authLoginToolDef = mcp.NewTool("auth_login",
	mcp.WithDescription("Validate a personal user token with the session service and store it."),
	mcp.WithString("token", mcp.Required()),
)

var authLogoutToolDef = mcp.NewTool("auth_logout",
	mcp.WithDescription("Forget the stored user token."),
)

var exportBackupToolDef = mcp.NewTool("export_backup",
	mcp.WithDescription("Write a backup of the session and queue."),
	mcp.WithString("path", mcp.Description("Export path (default: exports directory)")),
	mcp.WithBoolean("include_xml", mcp.Description("Embed cached map content")),
)

var massLoadToolDef = mcp.NewTool("mass_load",
	mcp.WithDescription("Load the mass-action list. Stops a running loop and resets progress."),
	mcp.WithString("text", mcp.Description("Free text to scan for mapcodes")),
	mcp.WithArray("mapcodes", mcp.Description("Explicit mapcodes"), mcp.WithStringItems()),
	mcp.WithBoolean("from_queue", mcp.Description("Load the mapcodes of the review queue")),
)

var massTargetToolDef = mcp.NewTool("mass_target",
	mcp.WithDescription("Choose what each mass-action command does: a category (/p N @code) or a custom prefix."),
	mcp.WithString("category", mcp.Description("Category code or number, e.g. P4")),
	mcp.WithString("prefix", mcp.Description("Custom command prefix; wins over category")),
	mcp.WithString("suffix", mcp.Description("Text appended after the mapcode")),
)

var massPlayToolDef = mcp.NewTool("mass_play",
	mcp.WithDescription("Start the mass-action loop."),
)

var massPauseToolDef = mcp.NewTool("mass_pause",
	mcp.WithDescription("Pause the mass-action loop."),
)

var massStepToolDef = mcp.NewTool("mass_step",
	mcp.WithDescription("Send one mass-action command manually."),
	mcp.WithString("direction", mcp.Required(), mcp.Enum("next", "prev", "current")),
)

var massIntervalToolDef = mcp.NewTool("mass_interval",
	mcp.WithDescription("Set the loop interval. Clamped to 100..1000 ms in 100 ms steps."),
	mcp.WithNumber("ms", mcp.Required()),
)

var massResetToolDef = mcp.NewTool("mass_reset",
	mcp.WithDescription("Rewind the mass-action list. Refused while running."),
)

var massStatusToolDef = mcp.NewTool("mass_status",
	mcp.WithDescription("Show mass-action progress."),
)

var reportSessionToolDef = mcp.NewTool("report_session",
	mcp.WithDescription("Summarize the queue and session as Markdown or HTML."),
	mcp.WithString("format", mcp.Enum("markdown", "html")),
)
