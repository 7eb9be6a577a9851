package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/mapreview/internal/config"
	"github.com/hpungsan/mapreview/internal/fileio"
	"github.com/hpungsan/mapreview/internal/massaction"
	"github.com/hpungsan/mapreview/internal/queue"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"queue", "item", "session", "settings", "auth", "export", "mass", "report"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"queue_add": {
		def:     queueAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleQueueAdd },
	},
	"queue_import_file": {
		def:     queueImportFileToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleQueueImportFile },
	},
	"queue_import_remote": {
		def:     queueImportRemoteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleQueueImportRemote },
	},
	"queue_list": {
		def:     queueListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleQueueList },
	},
	"queue_select": {
		def:     queueSelectToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleQueueSelect },
	},
	"queue_move": {
		def:     queueMoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleQueueMove },
	},
	"item_decide": {
		def:     itemDecideToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleItemDecide },
	},
	"item_review": {
		def:     itemReviewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleItemReview },
	},
	"item_command": {
		def:     itemCommandToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleItemCommand },
	},
	"session_start": {
		def:     sessionStartToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionStart },
	},
	"session_status": {
		def:     sessionStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionStatus },
	},
	"session_finish": {
		def:     sessionFinishToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionFinish },
	},
	"session_categories": {
		def:     sessionCategoriesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionCategories },
	},
	"session_cancel": {
		def:     sessionCancelToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionCancel },
	},
	"session_leave": {
		def:     sessionLeaveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionLeave },
	},
	"session_return": {
		def:     sessionReturnToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionReturn },
	},
	"settings_get": {
		def:     settingsGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSettingsGet },
	},
	"settings_update": {
		def:     settingsUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSettingsUpdate },
	},
	"auth_login": {
		def:     authLoginToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAuthLogin },
	},
	"auth_logout": {
		def:     authLogoutToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAuthLogout },
	},
	"export_backup": {
		def:     exportBackupToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExportBackup },
	},
	"mass_load": {
		def:     massLoadToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMassLoad },
	},
	"mass_target": {
		def:     massTargetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMassTarget },
	},
	"mass_play": {
		def:     massPlayToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMassPlay },
	},
	"mass_pause": {
		def:     massPauseToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMassPause },
	},
	"mass_step": {
		def:     massStepToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMassStep },
	},
	"mass_interval": {
		def:     massIntervalToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMassInterval },
	},
	"mass_reset": {
		def:     massResetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMassReset },
	},
	"mass_status": {
		def:     massStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMassStatus },
	},
	"report_session": {
		def:     reportSessionToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReportSession },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "queue_add" → "queue").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// SessionService is the remote session API: fetch, submit and token checks.
type SessionService interface {
	queue.SessionFetcher
	queue.ReviewSubmitter
	queue.TokenValidator
}

// Deps are the collaborators the tools operate on.
type Deps struct {
	Engine  *queue.Engine
	Files   *fileio.Files
	Session SessionService // nil when no session service is configured
	Runner  *massaction.Runner
	Sender  queue.CommandSender
	Config  *config.Config
	Logger  *zap.Logger

	// RunCtx bounds background work started by a tool call, such as the
	// mass-action loop. Defaults to context.Background().
	RunCtx context.Context
}

// NewServer creates a new MCP server with the review tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"mapreview",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(deps)
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(deps Deps, version string) error {
	s := NewServer(deps, version)
	return server.ServeStdio(s)
}
