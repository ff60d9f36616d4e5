package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/conversa-cli/internal/adapters/driving/chat/messages"
	"github.com/custodia-labs/conversa-cli/internal/adapters/driving/chat/styles"
	"github.com/custodia-labs/conversa-cli/internal/core/domain"
)

// Options configures the conversation shell.
type Options struct {
	// SessionID selects the conversation session. Empty selects the
	// default session.
	SessionID string

	// TopK overrides the retrieval depth. Zero keeps the engine
	// default.
	TopK int

	// NoHistory leaves prior turns out of every prompt.
	NoHistory bool

	// ShowContext appends the retrieved chunks under each response.
	ShowContext bool
}

// helpText lists the slash commands. Kept in sync with the chat
// command help in the CLI.
const helpText = `Commands:
  /help   Show this help
  /clear  Clear short-term memory for this session
  /stats  Show engine statistics
  /docs   List ingested documents
  /model  Show the active models
  /quit   Exit the chat

Esc cancels a response that is still being generated.`

// App is the conversation shell following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	// ports provides access to core services via driving ports.
	ports *Ports

	// ctx is the context for cancellation.
	ctx context.Context

	// styles holds the shell styles.
	styles *styles.Styles

	// viewport scrolls the conversation transcript.
	viewport viewport.Model

	// input is the question prompt at the bottom of the screen.
	input textinput.Model

	// session is the conversation session queries run in.
	session string

	// topK overrides the retrieval depth when positive.
	topK int

	// useHistory includes prior turns in each prompt.
	useHistory bool

	// showContext appends retrieved chunks under each response.
	showContext bool

	// transcript holds the completed conversation blocks.
	transcript []entry

	// pending accumulates fragments of the response being generated.
	pending string

	// generating is true while a query is in flight.
	generating bool

	// stream bridges the running query into the update loop.
	stream *responseStream

	// err holds the last error that occurred.
	err error

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates if the shell has initialised.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new conversation shell with the given ports.
func NewApp(ports *Ports, opts Options) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating chat: %w", err)
	}

	session := opts.SessionID
	if session == "" {
		session = domain.DefaultSessionID
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your documents"
	ti.Focus()
	ti.CharLimit = 0

	a := &App{
		ports:       ports,
		ctx:         context.Background(),
		styles:      styles.DefaultStyles(),
		viewport:    viewport.New(0, 0),
		input:       ti,
		session:     session,
		topK:        opts.TopK,
		useHistory:  !opts.NoHistory,
		showContext: opts.ShowContext,
	}
	a.appendNotice(fmt.Sprintf("Chatting in session %q. Type a question, or /help for commands.", session))

	return a, nil
}

// WithContext sets the context for the shell. Queries started after
// the call are cancelled when ctx is.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// Init implements tea.Model.
// It runs initial commands when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tea.SetWindowTitle("conversa - chat"),
		textinput.Blink,
	)
}

// Update implements tea.Model.
// It handles messages and updates the model state.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case messages.FragmentReceived:
		if a.stream == nil {
			return a, nil
		}
		a.pending += msg.Text
		a.refreshTranscript()
		return a, waitForEvent(a.stream)

	case messages.ResponseCompleted:
		a.finishResponse(msg)
		return a, nil

	case messages.StatsLoaded:
		if msg.Err != nil {
			a.appendNotice("Stats unavailable: " + msg.Err.Error())
			return a, nil
		}
		a.appendNotice(formatStats(msg.Stats))
		return a, nil

	case messages.DocumentsLoaded:
		if msg.Err != nil {
			a.appendNotice("Catalogue unavailable: " + msg.Err.Error())
			return a, nil
		}
		a.appendNotice(formatDocuments(msg.Documents))
		return a, nil

	case messages.MemoryCleared:
		if msg.Err != nil {
			a.appendNotice("Clear failed: " + msg.Err.Error())
			return a, nil
		}
		a.appendNotice(fmt.Sprintf("Short-term memory cleared for session %s.", msg.SessionID))
		return a, nil

	case messages.SettingsLoaded:
		if msg.Err != nil {
			a.appendNotice("Settings unavailable: " + msg.Err.Error())
			return a, nil
		}
		a.appendNotice(formatModels(msg.Settings))
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// handleKeyMsg processes keyboard input.
func (a *App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if a.stream != nil {
			a.stream.abandon()
		}
		return a, tea.Quit

	case "esc":
		if a.generating && a.stream != nil {
			a.stream.cancelGeneration()
		}
		return a, nil

	case "enter":
		return a.submit()

	case "pgup", "pgdown", "ctrl+u", "ctrl+d":
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// submit sends the typed question or runs a slash command.
func (a *App) submit() (tea.Model, tea.Cmd) {
	if a.generating {
		return a, nil
	}

	text := strings.TrimSpace(a.input.Value())
	if text == "" {
		return a, nil
	}
	a.input.SetValue("")

	if strings.HasPrefix(text, "/") {
		return a.runCommand(text)
	}

	a.transcript = append(a.transcript, entry{role: roleUser, text: text})
	a.err = nil
	a.refreshTranscript()
	return a, a.startQuery(text)
}

// runCommand dispatches a slash command. Commands backed by a service
// the binary was started without degrade to a notice.
func (a *App) runCommand(text string) (tea.Model, tea.Cmd) {
	name := strings.Fields(text)[0]

	switch name {
	case "/help":
		a.appendNotice(helpText)
		return a, nil

	case "/quit", "/exit":
		return a, tea.Quit

	case "/clear":
		if a.ports.Memory == nil {
			a.appendNotice("Memory commands are not available.")
			return a, nil
		}
		return a, a.clearMemory()

	case "/stats":
		return a, a.loadStats()

	case "/docs":
		if a.ports.Catalog == nil {
			a.appendNotice("The document catalogue is not available.")
			return a, nil
		}
		return a, a.loadDocuments()

	case "/model":
		if a.ports.Settings == nil {
			a.appendNotice("Settings are not available.")
			return a, nil
		}
		return a, a.loadSettings()
	}

	a.appendNotice(fmt.Sprintf("Unknown command %s. Try /help.", name))
	return a, nil
}

// startQuery launches the query pipeline in a worker goroutine and
// returns the command that pulls its first event.
func (a *App) startQuery(question string) tea.Cmd {
	ctx, cancel := context.WithCancel(a.ctx)
	stream := newResponseStream(cancel)
	a.stream = stream
	a.generating = true
	a.pending = ""

	opts := domain.DefaultQueryOptions()
	opts.SessionID = a.session
	opts.UseHistory = a.useHistory
	if a.topK > 0 {
		opts.TopK = a.topK
	}

	rag := a.ports.RAG
	go func() {
		result, err := rag.QueryStream(ctx, question, opts, func(fragment string) error {
			if !stream.emit(messages.FragmentReceived{Text: fragment}) {
				return context.Canceled
			}
			return nil
		})
		stream.emit(messages.ResponseCompleted{Result: result, Err: err})
	}()

	return waitForEvent(stream)
}

// waitForEvent pulls the next streaming event into the update loop.
func waitForEvent(s *responseStream) tea.Cmd {
	return func() tea.Msg {
		return s.next()
	}
}

// finishResponse folds the completed query into the transcript. The
// cleaned response from the result replaces the raw fragment text.
func (a *App) finishResponse(msg messages.ResponseCompleted) {
	a.generating = false
	a.stream = nil

	switch {
	case errors.Is(msg.Err, domain.ErrQueryCancelled):
		a.transcript = append(a.transcript, entry{role: roleNotice, text: "(cancelled)"})

	case msg.Err != nil:
		a.err = msg.Err
		a.transcript = append(a.transcript, entry{role: roleNotice, text: "Error: " + msg.Err.Error()})

	default:
		text := a.pending
		if msg.Result != nil {
			text = msg.Result.Response
		}
		a.transcript = append(a.transcript, entry{role: roleAssistant, text: text})
		if a.showContext && msg.Result != nil && len(msg.Result.Retrieved) > 0 {
			a.transcript = append(a.transcript, entry{role: roleContext, text: formatContext(msg.Result.Retrieved)})
		}
		a.err = nil
	}

	a.pending = ""
	a.refreshTranscript()
}

// clearMemory empties the short-term window for the current session.
func (a *App) clearMemory() tea.Cmd {
	return func() tea.Msg {
		err := a.ports.Memory.Clear(a.ctx, a.session)
		return messages.MemoryCleared{SessionID: a.session, Err: err}
	}
}

// loadStats fetches engine statistics.
func (a *App) loadStats() tea.Cmd {
	return func() tea.Msg {
		stats, err := a.ports.RAG.Stats(a.ctx)
		return messages.StatsLoaded{Stats: stats, Err: err}
	}
}

// loadDocuments fetches the document catalogue.
func (a *App) loadDocuments() tea.Cmd {
	return func() tea.Msg {
		docs, err := a.ports.Catalog.List(a.ctx)
		return messages.DocumentsLoaded{Documents: docs, Err: err}
	}
}

// loadSettings fetches the model configuration.
func (a *App) loadSettings() tea.Cmd {
	return func() tea.Msg {
		settings, err := a.ports.Settings.Get()
		return messages.SettingsLoaded{Settings: settings, Err: err}
	}
}

// appendNotice adds a shell notice to the transcript.
func (a *App) appendNotice(text string) {
	a.transcript = append(a.transcript, entry{role: roleNotice, text: text})
	a.refreshTranscript()
}

// refreshTranscript re-renders the transcript into the viewport and
// follows the newest entry.
func (a *App) refreshTranscript() {
	a.viewport.SetContent(a.renderTranscript())
	a.viewport.GotoBottom()
}

// renderTranscript renders all transcript entries plus the response
// currently streaming in.
func (a *App) renderTranscript() string {
	blocks := make([]string, 0, len(a.transcript)+1)
	for _, e := range a.transcript {
		blocks = append(blocks, a.renderEntry(e))
	}
	if a.generating {
		blocks = append(blocks, a.renderEntry(entry{role: roleAssistant, text: a.pending}))
	}
	return strings.Join(blocks, "\n\n")
}

// renderEntry renders one transcript block with its role label.
func (a *App) renderEntry(e entry) string {
	body := strings.Join(wrapToWidth(e.text, a.textWidth()), "\n")

	switch e.role {
	case roleUser:
		return a.styles.UserLabel.Render("You") + "\n" + a.styles.Normal.Render(body)
	case roleAssistant:
		return a.styles.AssistantLabel.Render("conversa") + "\n" + a.styles.Normal.Render(body)
	case roleContext:
		return a.styles.Context.Render(body)
	default:
		return a.styles.Muted.Render(body)
	}
}

// textWidth is the wrap width for transcript text.
func (a *App) textWidth() int {
	if a.width == 0 {
		return 76
	}
	return a.width - 4
}

// renderStatus renders the status line under the input.
func (a *App) renderStatus() string {
	if a.generating {
		return a.styles.Muted.Render("Generating...  [esc] cancel")
	}
	if a.err != nil {
		return a.styles.Error.Render("Error: " + a.err.Error())
	}
	return a.styles.Help.Render("[enter] send  [/help] commands  [pgup/pgdn] scroll  [ctrl+c] quit")
}

// View implements tea.Model.
// It renders the conversation shell as a string.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	header := a.styles.Title.Render("conversa") + a.styles.Muted.Render("  session "+a.session)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		a.viewport.View(),
		a.styles.InputField.Render(a.input.View()),
		a.renderStatus(),
	)
}

// SetDimensions sets the terminal dimensions.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true

	_, frameHeight := a.styles.InputField.GetFrameSize()
	// Header, input box and status line surround the viewport.
	reserved := 1 + (1 + frameHeight) + 1
	viewportHeight := height - reserved
	if viewportHeight < 3 {
		viewportHeight = 3
	}
	a.viewport.Width = width
	a.viewport.Height = viewportHeight

	inputWidth := width - 8
	if inputWidth < 20 {
		inputWidth = 20
	}
	a.input.Width = inputWidth

	a.refreshTranscript()
}

// Session returns the active conversation session.
func (a *App) Session() string {
	return a.session
}

// Generating returns whether a query is in flight.
func (a *App) Generating() bool {
	return a.generating
}

// Transcript returns the raw text of every transcript entry.
func (a *App) Transcript() []string {
	texts := make([]string, 0, len(a.transcript))
	for _, e := range a.transcript {
		texts = append(texts, e.text)
	}
	return texts
}

// Input returns the current prompt text.
func (a *App) Input() string {
	return a.input.Value()
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the shell has been initialised.
func (a *App) Ready() bool {
	return a.ready
}
