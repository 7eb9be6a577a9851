package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/mapreview/internal/category"
	"github.com/hpungsan/mapreview/internal/clipboard"
	"github.com/hpungsan/mapreview/internal/errors"
	"github.com/hpungsan/mapreview/internal/fileio"
	"github.com/hpungsan/mapreview/internal/mapcode"
	"github.com/hpungsan/mapreview/internal/massaction"
	"github.com/hpungsan/mapreview/internal/queue"
	"github.com/hpungsan/mapreview/internal/report"
	"github.com/hpungsan/mapreview/internal/review"
)

// maxStdinBytes caps piped input.
const maxStdinBytes = fileio.MaxImportBytes

// newCLIApp creates the CLI application with all commands.
// svc may be nil when only help or version output is needed.
func newCLIApp(svc *services) *cli.App {
	app := &cli.App{
		Name:    "mapreview",
		Usage:   "Map review queue and session manager",
		Version: Version,
		Commands: []*cli.Command{
			addCmd(svc),
			importCmd(svc),
			importRemoteCmd(svc),
			listCmd(svc),
			selectCmd(svc),
			stepCmd(svc, "next", "Select the next visible item (wraps around)", 1),
			stepCmd(svc, "prev", "Select the previous visible item (wraps around)", -1),
			decideCmd(svc),
			reviewCmd(svc),
			sendCmd(svc),
			categoriesCmd(),
			startCmd(svc),
			statusCmd(svc),
			finishCmd(svc),
			cancelCmd(svc),
			leaveCmd(svc),
			resumeCmd(svc),
			settingsCmd(svc),
			loginCmd(svc),
			logoutCmd(svc),
			exportCmd(svc),
			reportCmd(svc),
			massCmd(svc),
			watchCmd(svc),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// addCmd creates the add command.
func addCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add mapcodes to the queue (arguments, or free text on stdin)",
		ArgsUsage: "[mapcode...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Value: "cli", Usage: "Label shown in the status line"},
		},
		Action: func(c *cli.Context) error {
			codes := c.Args().Slice()
			if stdinHasData() {
				text, err := readStdin(maxStdinBytes)
				if err != nil {
					return outputError(err)
				}
				codes = append(codes, mapcode.ParseMany(text)...)
			}
			if len(codes) == 0 {
				return outputError(errors.NewInvalidRequest("mapcodes are required as arguments or on stdin"))
			}

			return outputJSON(c, svc.engine.AddMapcodes(c.Context, codes, c.String("source")))
		},
	}
}

// importCmd creates the import command.
func importCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import a .txt, .csv or .json file (session exports replace the queue)",
		ArgsUsage: "<path>",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return outputError(errors.NewInvalidRequest("path is required"))
			}

			data, err := svc.files.ReadImport(path)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, svc.engine.ImportDocument(c.Context, data, filepath.Base(path)))
		},
	}
}

// importRemoteCmd creates the import-remote command.
func importRemoteCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "import-remote",
		Usage: "Merge the open session of a category from the session service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Category code (the active session's category wins)"},
		},
		Action: func(c *cli.Context) error {
			if svc.session == nil {
				return outputError(errors.NewInvalidRequest("session service not configured"))
			}
			return outputJSON(c, svc.engine.ImportRemote(c.Context, svc.session, c.String("category")))
		},
	}
}

// listEntry is one row of the list output.
type listEntry struct {
	ID       string             `json:"id"`
	Mapcode  string             `json:"mapcode"`
	Author   *string            `json:"author"`
	Decision *category.Decision `json:"decision"`
	Review   string             `json:"review,omitempty"`
	Selected bool               `json:"selected"`
}

// listCmd creates the list command.
func listCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List queue items",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Include hidden (ignored) items"},
		},
		Action: func(c *cli.Context) error {
			st := svc.engine.Snapshot()
			items := st.Items
			if !c.Bool("all") {
				items = svc.engine.Visible()
			}

			entries := make([]listEntry, 0, len(items))
			for _, it := range items {
				entries = append(entries, listEntry{
					ID:       it.ID,
					Mapcode:  it.Mapcode,
					Author:   it.Author,
					Decision: it.Decision,
					Review:   it.Review,
					Selected: st.SelectedID != nil && *st.SelectedID == it.ID,
				})
			}
			return outputJSON(c, map[string]any{
				"items": entries,
				"total": len(st.Items),
			})
		},
	}
}

// selectCmd creates the select command.
func selectCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:      "select",
		Usage:     "Select an item by id (no id clears the selection)",
		ArgsUsage: "[id]",
		Action: func(c *cli.Context) error {
			if err := svc.engine.Select(c.Context, c.Args().First()); err != nil {
				return outputError(err)
			}
			return outputJSON(c, map[string]any{"selected": svc.engine.Selected()})
		},
	}
}

// stepCmd creates the next and prev commands.
func stepCmd(svc *services, name, usage string, delta int) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(c *cli.Context) error {
			return outputJSON(c, map[string]any{"selected": svc.engine.SelectRelative(c.Context, delta)})
		},
	}
}

// decideCmd creates the decide command.
func decideCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:      "decide",
		Usage:     "Set the decision of the selected item: left_as_is|p1ed|will_be_discussed|ignored|none",
		ArgsUsage: "<decision>",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("decision is required"))
			}

			it, err := svc.engine.SetDecision(c.Context, parseDecision(c.Args().First()))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, it)
		},
	}
}

// reviewCmd creates the review command.
func reviewCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:      "review",
		Usage:     "Set the comment of the selected item (arguments or stdin)",
		ArgsUsage: "[text...]",
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if text == "" && stdinHasData() {
				in, err := readStdin(maxStdinBytes)
				if err != nil {
					return outputError(err)
				}
				text = in
			}

			it, err := svc.engine.SetReview(c.Context, text)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, it)
		},
	}
}

// sendCmd creates the send command.
func sendCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Send the load command for the selected item (copied to the clipboard)",
		Action: func(c *cli.Context) error {
			cmd, err := svc.engine.RecordCommand(c.Context, svc.sender, "cli")
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, map[string]any{
				"command": cmd,
				"status":  svc.engine.Status(),
			})
		},
	}
}

// startCmd creates the start command.
func startCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:      "start",
		Usage:     "Start a review session for a category (clears the queue)",
		ArgsUsage: "<category>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Value: string(review.InputTextarea),
				Usage: "Input method: session_api|session_json|file_text|clipboard|textarea"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("category is required"))
			}

			sess, err := svc.engine.StartSession(c.Context, c.Args().First(), review.InputMethod(c.String("input")))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, map[string]any{
				"session": sess,
				"status":  svc.engine.Status(),
			})
		},
	}
}

// categoriesCmd creates the categories command.
func categoriesCmd() *cli.Command {
	return &cli.Command{
		Name:  "categories",
		Usage: "List the categories a review session can be started for",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Include categories that are not reviewed"},
		},
		Action: func(c *cli.Context) error {
			cats := category.Reviewed()
			if c.Bool("all") {
				cats = category.All()
			}
			return outputJSON(c, map[string]any{"categories": cats, "count": len(cats)})
		},
	}
}

// statusCmd creates the status command.
func statusCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the active session and its progress",
		Action: func(c *cli.Context) error {
			st := svc.engine.Snapshot()
			return outputJSON(c, map[string]any{
				"session":     st.Session,
				"review_open": st.ReviewOpen,
				"counts":      report.Count(st.Items),
				"finish":      svc.engine.CheckFinish(),
			})
		},
	}
}

// finishCmd creates the finish command.
func finishCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "finish",
		Usage: "Save the session export, submit it and close the session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export path (default: exports directory)"},
			&cli.BoolFlag{Name: "votecrew", Usage: "Ask the session service to open a crew vote"},
			&cli.BoolFlag{Name: "private", Usage: "Ask the session service to post the review privately"},
		},
		Action: func(c *cli.Context) error {
			in := queue.FinishInput{
				Saver:    &fileio.Saver{Files: svc.files, Path: c.String("path")},
				Votecrew: c.Bool("votecrew"),
				Private:  c.Bool("private"),
			}
			if svc.session != nil {
				in.Submitter = svc.session
			}

			out, err := svc.engine.Finish(c.Context, in)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, out)
		},
	}
}

// cancelCmd creates the cancel command.
func cancelCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "cancel",
		Usage: "Discard the active session",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "export", Aliases: []string{"e"}, Usage: "Export the session first"},
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export path (with --export)"},
		},
		Action: func(c *cli.Context) error {
			var in queue.CancelInput
			if c.Bool("export") {
				in.Saver = &fileio.Saver{Files: svc.files, Path: c.String("path")}
			}

			out, err := svc.engine.Cancel(c.Context, in)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, out)
		},
	}
}

// leaveCmd creates the leave command.
func leaveCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "leave",
		Usage: "Leave the review screen; the session stays active",
		Action: func(c *cli.Context) error {
			svc.engine.LeaveToHome(c.Context)
			return outputJSON(c, map[string]any{"status": svc.engine.Status()})
		},
	}
}

// resumeCmd creates the resume command.
func resumeCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "resume",
		Usage: "Return to the active session",
		Action: func(c *cli.Context) error {
			if err := svc.engine.ReturnToSession(c.Context); err != nil {
				return outputError(err)
			}
			return outputJSON(c, map[string]any{"session": svc.engine.Snapshot().Session})
		},
	}
}

// settingsCmd creates the settings command.
func settingsCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show or update reviewer settings",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "command-mode", Usage: "Command mode: !np|/np|/npp"},
			&cli.BoolFlag{Name: "dedupe", Usage: "Skip mapcodes already in the queue"},
			&cli.BoolFlag{Name: "auto-capture", Usage: "Add mapcodes copied to the clipboard (see watch)"},
			&cli.BoolFlag{Name: "show-ignored", Usage: "Show ignored items in the queue"},
			&cli.BoolFlag{Name: "review-hotkeys", Usage: "Enable review hotkeys"},
		},
		Action: func(c *cli.Context) error {
			s, err := svc.engine.UpdateSettings(c.Context, func(s *review.Settings) {
				if c.IsSet("command-mode") {
					s.CommandMode = review.CommandMode(strings.TrimSpace(c.String("command-mode")))
				}
				if c.IsSet("dedupe") {
					s.Dedupe = c.Bool("dedupe")
				}
				if c.IsSet("auto-capture") {
					s.AutoCaptureClipboard = c.Bool("auto-capture")
				}
				if c.IsSet("show-ignored") {
					s.ShowIgnoredInQueue = c.Bool("show-ignored")
				}
				if c.IsSet("review-hotkeys") {
					s.ReviewHotkeysEnabled = c.Bool("review-hotkeys")
				}
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, redactSettings(s))
		},
	}
}

// loginCmd creates the login command.
func loginCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "Validate and store a personal user token",
		ArgsUsage: "<token>",
		Action: func(c *cli.Context) error {
			if svc.session == nil {
				return outputError(errors.NewInvalidRequest("session service not configured"))
			}

			out, err := svc.engine.Authenticate(c.Context, svc.session, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, out)
		},
	}
}

// logoutCmd creates the logout command.
func logoutCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the stored user token",
		Action: func(c *cli.Context) error {
			svc.engine.ClearAuth(c.Context)
			return outputJSON(c, redactSettings(svc.engine.Settings()))
		},
	}
}

// exportCmd creates the export command.
func exportCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write a backup of the session and queue",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export path (default: exports directory)"},
			&cli.BoolFlag{Name: "include-xml", Usage: "Embed cached map content"},
		},
		Action: func(c *cli.Context) error {
			out, err := svc.engine.Export(c.Context, &fileio.Saver{Files: svc.files, Path: c.String("path")}, c.Bool("include-xml"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, out)
		},
	}
}

// reportCmd creates the report command.
func reportCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Print a Markdown (or HTML) summary of the queue",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "html", Usage: "Render HTML instead of Markdown"},
		},
		Action: func(c *cli.Context) error {
			md := report.Markdown(svc.engine.Snapshot(), nil)
			if !c.Bool("html") {
				_, err := io.WriteString(c.App.Writer, md)
				return err
			}

			html, err := report.HTML(md)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			_, err = io.WriteString(c.App.Writer, html)
			return err
		},
	}
}

// massCmd creates the mass command.
func massCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:      "mass",
		Usage:     "Print one command per mapcode on a timer (e.g. /p 4 @code); runs until done or interrupted",
		ArgsUsage: "[mapcode...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Value: "P4", Usage: "Target category code or number"},
			&cli.StringFlag{Name: "prefix", Usage: "Custom command prefix (wins over --category)"},
			&cli.StringFlag{Name: "suffix", Usage: "Text appended after the mapcode"},
			&cli.IntFlag{Name: "interval", Usage: "Milliseconds between commands (100..1000)"},
			&cli.BoolFlag{Name: "from-queue", Usage: "Use the visible queue items"},
		},
		Action: func(c *cli.Context) error {
			codes := c.Args().Slice()
			if c.Bool("from-queue") {
				for _, it := range svc.engine.Visible() {
					codes = append(codes, it.Mapcode)
				}
			}
			if stdinHasData() {
				text, err := readStdin(maxStdinBytes)
				if err != nil {
					return outputError(err)
				}
				codes = append(codes, mapcode.ParseMany(text)...)
			}
			if len(codes) == 0 {
				return outputError(errors.NewInvalidRequest("no mapcodes to send"))
			}

			var (
				target massaction.Target
				err    error
			)
			if c.String("prefix") != "" {
				target, err = massaction.CustomTarget(c.String("prefix"), c.String("suffix"))
			} else {
				target, err = massaction.CategoryTarget(c.String("category"))
			}
			if err != nil {
				return outputError(err)
			}

			ms := c.Int("interval")
			if ms == 0 && svc.cfg != nil {
				ms = svc.cfg.MassIntervalMillis
			}
			runner := massaction.NewRunner(&lineSender{w: c.App.Writer}, time.Duration(ms)*time.Millisecond, svc.logger)
			runner.Load(codes, "cli")
			runner.SetTarget(target)
			if err := runner.Play(c.Context); err != nil {
				return outputError(err)
			}
			if err := runner.Wait(c.Context); err != nil {
				runner.Pause()
				return outputError(errors.NewCancelled("mass action"))
			}
			return nil
		},
	}
}

// watchCmd creates the watch command.
func watchCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Add mapcodes copied to the clipboard until interrupted (requires --auto-capture)",
		Action: func(c *cli.Context) error {
			if !svc.engine.Settings().AutoCaptureClipboard {
				return outputError(errors.NewInvalidRequest("clipboard capture is off; enable it with: mapreview settings --auto-capture"))
			}

			capture := clipboard.NewCapture(clipboard.CaptureDelay, func(text string) {
				out := svc.engine.AddText(c.Context, text, "auto-clipboard")
				if out.Added > 0 {
					_ = outputJSON(c, out)
				}
			})
			defer capture.Stop()

			clipboard.NewWatcher(svc.clip, clipboard.PollInterval, svc.logger).Run(c.Context, capture.Offer)
			return nil
		},
	}
}

// Helper functions

// parseDecision maps a CLI word to a decision; "none" and "clear" unset it.
// Unknown words pass through so the engine can reject them.
func parseDecision(s string) *category.Decision {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "", "none", "clear":
		return nil
	}
	return review.DecisionPtr(category.Decision(strings.ReplaceAll(v, "-", "_")))
}

// redactSettings hides the stored token.
func redactSettings(s review.Settings) review.Settings {
	out := s.Clone()
	if out.AuthToken != nil {
		out.AuthToken = review.Str("********")
	}
	return out
}

// outputJSON writes result to the app's stdout as JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats err as a JSON error object and exits non-zero.
func outputError(err error) error {
	obj := map[string]any{
		"code":    errors.ErrInternal,
		"message": err.Error(),
	}
	var reviewErr *errors.ReviewError
	if stderrors.As(err, &reviewErr) {
		obj["code"] = reviewErr.Code
		obj["message"] = reviewErr.Message
		if reviewErr.Details != nil && reviewErr.Code != errors.ErrInternal {
			obj["details"] = reviewErr.Details
		}
	}
	data, _ := json.Marshal(map[string]any{"error": obj})
	return cli.Exit(string(data), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin up to limit bytes.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", errors.NewInvalidRequest(fmt.Sprintf("stdin exceeds %d bytes", limit))
	}
	return strings.TrimSpace(string(data)), nil
}
