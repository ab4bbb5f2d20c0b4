package collab

// DefaultRoom is used when a client joins without selecting a repository.
const DefaultRoom = "default"

const anonymousName = "Anonymous"

// Identity is the authenticated user attached to a connection, if any.
// A zero Identity means the connection is anonymous.
type Identity struct {
	UserID    string
	Username  string
	AvatarURL string
}

// Position is a cursor location in editor coordinates.
type Position struct {
	LineNumber int `json:"lineNumber"`
	Column     int `json:"column"`
}

// Selection is a selected range in editor coordinates.
type Selection struct {
	StartLineNumber int `json:"startLineNumber"`
	StartColumn     int `json:"startColumn"`
	EndLineNumber   int `json:"endLineNumber"`
	EndColumn       int `json:"endColumn"`
}

// Participant is the server-side state for one live connection. All fields
// besides ConnectionID, Identity and Color are presence data, mutated only by
// the hub goroutine.
type Participant struct {
	ConnectionID string
	Identity     Identity
	Color        string

	Room      string
	Cursor    *Position
	Selection *Selection
	IsTyping  bool
}

// DisplayName returns the username shown to other room members.
func (p *Participant) DisplayName() string {
	if p.Identity.Username != "" {
		return p.Identity.Username
	}
	return anonymousName
}

// View renders the participant as shared with other clients.
func (p *Participant) View() ParticipantView {
	return ParticipantView{
		ConnectionID: p.ConnectionID,
		Username:     p.DisplayName(),
		AvatarURL:    p.Identity.AvatarURL,
		Color:        p.Color,
		Cursor:       p.Cursor,
		Selection:    p.Selection,
		IsTyping:     p.IsTyping,
	}
}

// cursor colors handed out to connections; collisions within a room are
// tolerated once the palette is exhausted.
var colorPalette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
	"#008080", "#e6beff", "#9a6324", "#800000", "#aaffc3",
}

func colorForIndex(index uint64) string {
	return colorPalette[index%uint64(len(colorPalette))]
}
