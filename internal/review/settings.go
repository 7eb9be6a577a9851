package review

// CurrentStateVersion is the shape version of the persisted AppState.
// Bump this when adding a migration step.
const CurrentStateVersion = 2

// ReviewHotkeys are the bindings used while stepping through a session.
type ReviewHotkeys struct {
	PrevMap       string `json:"prevMap"`
	NextMap       string `json:"nextMap"`
	ReplayCurrent string `json:"replayCurrent"`
}

// MassPermHotkeys are the bindings used by the mass-action loop.
type MassPermHotkeys struct {
	Toggle      string `json:"toggle"`
	PlayCurrent string `json:"playCurrent"`
	Next        string `json:"next"`
	Prev        string `json:"prev"`
}

// Settings is the process-wide reviewer configuration.
type Settings struct {
	CommandMode          CommandMode     `json:"commandMode"`
	Dedupe               bool            `json:"dedupe"`
	AutoCaptureClipboard bool            `json:"autoCaptureClipboard"`
	ShowIgnoredInQueue   bool            `json:"showIgnoredInQueue"`
	ReviewHotkeysEnabled bool            `json:"reviewHotkeysEnabled"`
	ReviewHotkeys        ReviewHotkeys   `json:"reviewHotkeys"`
	MassPermHotkeys      MassPermHotkeys `json:"massPermHotkeys"`
	AuthToken            *string         `json:"authToken"`
	AuthUserID           *string         `json:"authUserId"`
}

// DefaultSettings returns the defaults for the given GOOS.
// darwin gets an Alt/Cmd hotkey set; every other platform gets PageUp/PageDown/Insert.
func DefaultSettings(goos string) Settings {
	s := Settings{
		CommandMode:          CommandNP,
		Dedupe:               true,
		AutoCaptureClipboard: false,
		ShowIgnoredInQueue:   true,
		ReviewHotkeysEnabled: true,
		ReviewHotkeys: ReviewHotkeys{
			PrevMap:       "PageUp",
			NextMap:       "PageDown",
			ReplayCurrent: "Insert",
		},
		MassPermHotkeys: MassPermHotkeys{
			Toggle:      "Ctrl+P",
			PlayCurrent: "Insert",
			Next:        "PageDown",
			Prev:        "PageUp",
		},
	}
	if goos == "darwin" {
		s.ReviewHotkeys = ReviewHotkeys{
			PrevMap:       "Alt+Up",
			NextMap:       "Alt+Down",
			ReplayCurrent: "Alt+R",
		}
		s.MassPermHotkeys = MassPermHotkeys{
			Toggle:      "Cmd+P",
			PlayCurrent: "Alt+R",
			Next:        "Alt+Down",
			Prev:        "Alt+Up",
		}
	}
	return s
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := s
	out.AuthToken = cloneStr(s.AuthToken)
	out.AuthUserID = cloneStr(s.AuthUserID)
	return out
}
