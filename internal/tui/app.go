package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/johan-st/dbstudio/internal/access"
	"github.com/johan-st/dbstudio/internal/auth"
	"github.com/johan-st/dbstudio/internal/worksheet"
)

// Screen is the top-level view being shown.
type Screen int

const (
	ScreenLogin Screen = iota
	ScreenWorkspace
)

// Focus represents which pane is focused
type Focus int

const (
	FocusList Focus = iota
	FocusEditor
)

const (
	requestTimeout = 20 * time.Second
	badgeResource  = "connections"
)

// Options configures an App.
type Options struct {
	Auth              *auth.Service
	Worksheets        *worksheet.Registry
	Logger            *log.Logger
	DefaultConnection string
	Width, Height     int
}

// App is the main TUI application model.
type App struct {
	// Dependencies
	auth       *auth.Service
	worksheets *worksheet.Registry
	logger     *log.Logger
	defaultCon string
	now        func() time.Time

	// Window size
	width, height int

	screen Screen
	focus  Focus

	// Login form
	email      textinput.Model
	password   textinput.Model
	loginField int
	loggingIn  bool
	loginErr   error

	// Session
	user        *auth.User
	roles       []auth.Role
	permissions *access.Set

	// Worksheets
	selected int
	editor   textarea.Model
	editorID string

	// Prompts
	renaming    string
	renameInput textinput.Model
	deleting    string

	// UI state
	showHelp bool
	status   string
	err      error

	// Key bindings
	keys KeyMap
}

// NewApp creates a new TUI application.
func NewApp(opts Options) *App {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.Prompt = ""
	email.CharLimit = 254

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = ""
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	rename := textinput.New()
	rename.Prompt = ""
	rename.CharLimit = 120

	editor := textarea.New()
	editor.Placeholder = "SELECT ..."
	editor.Prompt = ""
	editor.CharLimit = 0
	editor.MaxHeight = 0
	editor.ShowLineNumbers = true

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	a := &App{
		auth:        opts.Auth,
		worksheets:  opts.Worksheets,
		logger:      logger,
		defaultCon:  opts.DefaultConnection,
		now:         time.Now,
		width:       opts.Width,
		height:      opts.Height,
		email:       email,
		password:    password,
		renameInput: rename,
		editor:      editor,
		keys:        DefaultKeyMap(),
	}

	if a.auth.IsAuthenticated() {
		a.screen = ScreenWorkspace
		a.user = a.auth.State().User
	} else {
		a.showLogin("")
	}
	a.syncEditor()
	a.updateSizes()
	return a
}

// Screen returns the screen currently shown.
func (a *App) Screen() Screen {
	return a.screen
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	if a.screen == ScreenLogin {
		return textinput.Blink
	}
	return tea.Batch(a.loadOverview, a.loadPermissions)
}

func (a *App) login(creds auth.Credentials) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		user, err := a.auth.Login(ctx, creds)
		return LoggedInMsg{User: user, Error: err}
	}
}

func (a *App) logout() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := a.auth.Logout(ctx); err != nil {
		a.logger.Error("logout", "err", err)
	}
	return LoggedOutMsg{}
}

// loadOverview loads the profile and roles shown in the status bar.
func (a *App) loadOverview() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	ov, err := a.auth.Overview(ctx)
	return OverviewLoadedMsg{Overview: ov, Error: err}
}

func (a *App) loadPermissions() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	perms, err := a.auth.Permissions(ctx)
	return PermissionsLoadedMsg{Permissions: perms, Error: err}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.updateSizes()
		return a, nil

	case LoggedInMsg:
		a.loggingIn = false
		a.password.Reset()
		if msg.Error != nil {
			a.loginErr = msg.Error
			return a, nil
		}
		a.loginErr = nil
		a.user = msg.User
		a.screen = ScreenWorkspace
		a.focus = FocusList
		a.email.Blur()
		a.password.Blur()
		a.setStatus("Logged in as " + msg.User.DisplayName())
		a.syncEditor()
		return a, tea.Batch(a.loadOverview, a.loadPermissions)

	case LoggedOutMsg:
		a.showLogin("Logged out")
		return a, textinput.Blink

	case ReauthMsg:
		if a.screen == ScreenLogin {
			return a, nil
		}
		a.logger.Info("session expired", "route", msg.Route)
		a.showLogin("Session expired, log in again")
		return a, textinput.Blink

	case OverviewLoadedMsg:
		if msg.Error != nil {
			a.fail(msg.Error)
			return a, nil
		}
		a.user = msg.Overview.User
		a.roles = msg.Overview.Roles
		return a, nil

	case PermissionsLoadedMsg:
		if msg.Error != nil {
			a.logger.Warn("failed to load permissions", "err", msg.Error)
			return a, nil
		}
		a.permissions = msg.Permissions
		return a, nil

	case ErrorMsg:
		a.fail(msg.Error)
		return a, nil
	}

	// Cursor blinks and the like go to the focused input
	var cmd tea.Cmd
	switch {
	case a.screen == ScreenLogin && a.loginField == 0:
		a.email, cmd = a.email.Update(msg)
	case a.screen == ScreenLogin:
		a.password, cmd = a.password.Update(msg)
	case a.renaming != "":
		a.renameInput, cmd = a.renameInput.Update(msg)
	case a.focus == FocusEditor:
		a.editor, cmd = a.editor.Update(msg)
	}
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return a, tea.Quit
	}

	if a.screen == ScreenLogin {
		return a.handleLoginKey(msg)
	}

	// Handle help overlay
	if a.showHelp {
		if key.Matches(msg, a.keys.Back) || key.Matches(msg, a.keys.Help) {
			a.showHelp = false
		}
		return a, nil
	}

	if a.renaming != "" {
		return a.handleRenameInput(msg)
	}

	if a.deleting != "" {
		return a.handleDeleteConfirm(msg)
	}

	if a.focus == FocusEditor {
		return a.handleEditorKey(msg)
	}

	list := a.worksheets.List()

	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, a.keys.Help):
		a.showHelp = true

	case key.Matches(msg, a.keys.Up):
		if a.selected > 0 {
			a.selected--
		}

	case key.Matches(msg, a.keys.Down):
		if a.selected < len(list)-1 {
			a.selected++
		}

	case key.Matches(msg, a.keys.Select):
		if ws, ok := a.selectedWorksheet(); ok {
			a.worksheets.SetActive(ws.ID)
			a.syncEditor()
			a.focusEditor()
		}

	case key.Matches(msg, a.keys.NextPane):
		if a.editorID != "" {
			a.focusEditor()
		}

	case key.Matches(msg, a.keys.NextTab):
		a.cycleTab(1)

	case key.Matches(msg, a.keys.PrevTab):
		a.cycleTab(-1)

	case key.Matches(msg, a.keys.New):
		ws := a.worksheets.Add(worksheet.Partial{ConnectionID: a.defaultCon})
		a.selectID(ws.ID)
		a.syncEditor()
		a.setStatus("Created " + ws.Name)

	case key.Matches(msg, a.keys.Close):
		if id := a.worksheets.ActiveID(); id != "" {
			a.worksheets.Close(id)
			a.syncEditor()
		}

	case key.Matches(msg, a.keys.Delete):
		if ws, ok := a.selectedWorksheet(); ok {
			a.deleting = ws.ID
		}

	case key.Matches(msg, a.keys.Duplicate):
		if ws, ok := a.selectedWorksheet(); ok {
			if dup, ok := a.worksheets.Duplicate(ws.ID); ok {
				a.selectID(dup.ID)
				a.syncEditor()
				a.setStatus("Created " + dup.Name)
			}
		}

	case key.Matches(msg, a.keys.Rename):
		if ws, ok := a.selectedWorksheet(); ok {
			a.renaming = ws.ID
			a.renameInput.SetValue(ws.Name)
			a.renameInput.CursorEnd()
			a.renameInput.Focus()
		}

	case key.Matches(msg, a.keys.MoveUp):
		a.move(-1)

	case key.Matches(msg, a.keys.MoveDown):
		a.move(1)

	case key.Matches(msg, a.keys.Refresh):
		return a, tea.Batch(a.loadOverview, a.loadPermissions)

	case key.Matches(msg, a.keys.Logout):
		return a, a.logout
	}

	return a, nil
}

func (a *App) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.loggingIn {
		return a, nil
	}

	switch msg.Type {
	case tea.KeyEsc:
		return a, tea.Quit

	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		a.focusLoginField(1 - a.loginField)
		return a, nil

	case tea.KeyEnter:
		if a.loginField == 0 {
			a.focusLoginField(1)
			return a, nil
		}
		creds := auth.Credentials{
			Email:    strings.TrimSpace(a.email.Value()),
			Password: a.password.Value(),
		}
		if creds.Email == "" || creds.Password == "" {
			a.loginErr = fmt.Errorf("email and password are required")
			return a, nil
		}
		a.loggingIn = true
		a.loginErr = nil
		return a, a.login(creds)
	}

	var cmd tea.Cmd
	if a.loginField == 0 {
		a.email, cmd = a.email.Update(msg)
	} else {
		a.password, cmd = a.password.Update(msg)
	}
	return a, cmd
}

func (a *App) handleEditorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, a.keys.Back) || key.Matches(msg, a.keys.NextPane) {
		a.focus = FocusList
		a.editor.Blur()
		return a, nil
	}

	var cmd tea.Cmd
	a.editor, cmd = a.editor.Update(msg)
	if a.editorID != "" {
		if ws, ok := a.worksheets.Get(a.editorID); ok && ws.Content != a.editor.Value() {
			a.worksheets.UpdateContent(a.editorID, a.editor.Value())
		}
	}
	return a, cmd
}

func (a *App) handleRenameInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		a.renaming = ""
		a.renameInput.Blur()
		return a, nil

	case tea.KeyEnter:
		name := strings.TrimSpace(a.renameInput.Value())
		if name == "" {
			a.fail(fmt.Errorf("name cannot be empty"))
			return a, nil
		}
		if a.worksheets.Rename(a.renaming, name) {
			a.setStatus("Renamed to " + name)
		}
		a.renaming = ""
		a.renameInput.Blur()
		return a, nil
	}

	var cmd tea.Cmd
	a.renameInput, cmd = a.renameInput.Update(msg)
	return a, cmd
}

func (a *App) handleDeleteConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := a.deleting
	a.deleting = ""
	if msg.String() != "y" {
		return a, nil
	}

	ws, _ := a.worksheets.Get(id)
	if a.worksheets.Delete(id) {
		a.setStatus("Deleted " + ws.Name)
	}
	a.syncEditor()
	return a, nil
}

// cycleTab activates the open worksheet delta positions away from the active one.
func (a *App) cycleTab(delta int) {
	ids := a.worksheets.OpenIDs()
	if len(ids) == 0 {
		return
	}
	i := 0
	for j, id := range ids {
		if id == a.worksheets.ActiveID() {
			i = j
			break
		}
	}
	i = (i + delta + len(ids)) % len(ids)
	a.worksheets.SetActive(ids[i])
	a.selectID(ids[i])
	a.syncEditor()
}

// move swaps the selected worksheet with its neighbour in the list.
func (a *App) move(delta int) {
	list := a.worksheets.List()
	target := a.selected + delta
	if a.selected >= len(list) || target < 0 || target >= len(list) {
		return
	}
	if a.worksheets.Reorder(list[a.selected].ID, list[target].ID) {
		a.selected = target
	}
}

func (a *App) selectedWorksheet() (worksheet.Worksheet, bool) {
	list := a.worksheets.List()
	if a.selected < 0 || a.selected >= len(list) {
		return worksheet.Worksheet{}, false
	}
	return list[a.selected], true
}

func (a *App) selectID(id string) {
	for i, ws := range a.worksheets.List() {
		if ws.ID == id {
			a.selected = i
			return
		}
	}
}

// syncEditor binds the editor to the active worksheet and clamps the list cursor.
func (a *App) syncEditor() {
	if n := len(a.worksheets.List()); a.selected >= n {
		a.selected = max(n-1, 0)
	}

	ws, ok := a.worksheets.Active()
	if !ok {
		a.editorID = ""
		a.editor.Reset()
		a.editor.Blur()
		a.focus = FocusList
		return
	}
	if ws.ID != a.editorID {
		a.editorID = ws.ID
		a.editor.SetValue(ws.Content)
	}
}

func (a *App) focusEditor() {
	a.focus = FocusEditor
	a.editor.Focus()
}

func (a *App) focusLoginField(i int) {
	a.loginField = i
	if i == 0 {
		a.password.Blur()
		a.email.Focus()
	} else {
		a.email.Blur()
		a.password.Focus()
	}
}

// showLogin resets the session view and presents the login form.
func (a *App) showLogin(status string) {
	a.screen = ScreenLogin
	a.user = nil
	a.roles = nil
	a.permissions = nil
	a.loggingIn = false
	a.showHelp = false
	a.renaming = ""
	a.deleting = ""
	a.focus = FocusList
	a.editor.Blur()
	a.password.Reset()
	a.status = status
	a.err = nil

	if a.email.Value() == "" {
		if accounts, err := a.auth.StoredAccounts(); err == nil && len(accounts) > 0 {
			a.email.SetValue(accounts[0].Identifier)
		}
	}
	if a.email.Value() == "" {
		a.focusLoginField(0)
	} else {
		a.focusLoginField(1)
	}
}

func (a *App) setStatus(s string) {
	a.status = s
	a.err = nil
}

func (a *App) fail(err error) {
	a.err = err
	a.status = ""
	a.logger.Error("tui", "err", err)
}

// layout returns the list pane width and the height available to panes.
func (a *App) layout() (listWidth, paneHeight int) {
	listWidth = a.calculateListPaneWidth()
	if maxWidth := a.width / 3; listWidth > maxWidth {
		listWidth = maxWidth
	}
	if listWidth < 18 {
		listWidth = 18
	}
	paneHeight = a.height - 3 // tabs (1) + prompt (1) + status (1)
	if paneHeight < 3 {
		paneHeight = 3
	}
	return listWidth, paneHeight
}

func (a *App) updateSizes() {
	listWidth, paneHeight := a.layout()
	editorWidth := a.width - listWidth - 1
	// borders (2) and left padding (1)
	a.editor.SetWidth(max(editorWidth-3, 10))
	a.editor.SetHeight(max(paneHeight-2, 1))
	a.renameInput.Width = max(a.width-20, 10)
	a.email.Width = 36
	a.password.Width = 36
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width < 40 || a.height < 10 {
		return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center,
			errorStyle.Render("Terminal too small\nMin: 40x10"))
	}

	if a.screen == ScreenLogin {
		return a.renderLogin()
	}

	if a.showHelp {
		return a.renderHelp()
	}

	// Names may have changed the list width since the last resize
	a.updateSizes()
	listWidth, paneHeight := a.layout()
	editorWidth := a.width - listWidth - 1 // -1 for the gap between panes

	var b strings.Builder

	b.WriteString(a.renderTabBar())
	b.WriteString("\n")

	listPane := a.renderListPane(listWidth, paneHeight)
	editorPane := a.renderEditorPane(editorWidth, paneHeight)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, listPane, " ", editorPane))
	b.WriteString("\n")

	b.WriteString(a.renderPromptBar())
	b.WriteString("\n")

	b.WriteString(a.renderStatusBar())

	return b.String()
}

func (a *App) renderLogin() string {
	var b strings.Builder

	fields := []struct {
		label string
		input textinput.Model
	}{
		{"Email", a.email},
		{"Password", a.password},
	}
	for i, f := range fields {
		label := labelStyle.Render(f.label)
		if i == a.loginField {
			label = promptStyle.Inherit(labelStyle).Render(f.label)
		}
		b.WriteString(label + " " + f.input.View() + "\n")
	}

	b.WriteString("\n")
	switch {
	case a.loggingIn:
		b.WriteString(dimItemStyle.Render("Logging in..."))
	case a.loginErr != nil:
		b.WriteString(errorStyle.Render(a.loginErr.Error()))
	case a.status != "":
		b.WriteString(successStyle.Render(a.status))
	default:
		b.WriteString(dimItemStyle.Render("Enter to continue, Tab to switch, Esc to quit"))
	}

	modal := modalStyle.Render(titleStyle.Render("dbstudio") + "\n" + b.String())
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, modal)
}

// renderTabBar renders the open worksheets, scrolled so the active one is visible.
func (a *App) renderTabBar() string {
	open := a.worksheets.Open()
	if len(open) == 0 {
		return dimItemStyle.Render(" no open worksheets")
	}

	activeID := a.worksheets.ActiveID()
	tabs := make([]string, len(open))
	active := 0
	for i, ws := range open {
		name := truncateString(ws.Name, 24)
		if ws.ID == activeID {
			tabs[i] = activeTabStyle.Render(name)
			active = i
		} else {
			tabs[i] = tabStyle.Render(name)
		}
	}

	first := 0
	for first < active && lipgloss.Width(strings.Join(tabs[first:], "")) > a.width {
		first++
	}
	bar := strings.Join(tabs[first:], "")
	if first > 0 {
		bar = dimItemStyle.Render("‹") + bar
	}
	return lipgloss.NewStyle().MaxWidth(a.width).Render(bar)
}

func (a *App) renderListPane(width, height int) string {
	focused := a.focus == FocusList
	list := a.worksheets.List()

	var content strings.Builder
	visibleHeight := max(height-2, 1)

	if len(list) == 0 {
		content.WriteString(dimItemStyle.Render("(none)"))
	} else {
		// Scroll so the selection stays visible
		offset := 0
		if a.selected >= visibleHeight {
			offset = a.selected - visibleHeight + 1
		}
		end := min(offset+visibleHeight, len(list))

		if offset > 0 {
			content.WriteString(dimItemStyle.Render(" ↑ more\n"))
			visibleHeight--
			end = min(offset+visibleHeight, len(list))
		}

		open := a.worksheets.Snapshot()
		for i := offset; i < end; i++ {
			ws := list[i]
			item := truncateString(ws.Name, width-6)
			switch {
			case i == a.selected:
				item = selectedItemStyle.Render("> " + item)
			case open.IsOpen(ws.ID):
				item = normalItemStyle.Render("  " + item)
			default:
				item = dimItemStyle.Render("  " + item)
			}
			content.WriteString(item)
			if i < end-1 || end < len(list) {
				content.WriteString("\n")
			}
		}

		if end < len(list) {
			content.WriteString(dimItemStyle.Render(" ↓ more"))
		}
	}

	return a.renderPaneWithTitle(content.String(), width, height, "Worksheets", focused)
}

func (a *App) renderEditorPane(width, height int) string {
	focused := a.focus == FocusEditor

	ws, ok := a.worksheets.Active()
	if !ok {
		hint := dimItemStyle.Render("No worksheet open. Press n to create one.")
		return a.renderPaneWithTitle(hint, width, height, "Editor", focused)
	}

	title := ws.Name
	if ws.ConnectionID != "" {
		title += " @ " + ws.ConnectionID
	}
	if !ws.UpdatedAt.IsZero() {
		title += " · " + humanize.RelTime(ws.UpdatedAt, a.now(), "ago", "from now")
	}
	title = truncateString(title, width-6)

	return a.renderPaneWithTitle(a.editor.View(), width, height, title, focused)
}

// buildBorderTitle builds a top border line with an embedded title
// width is the total width including border characters
func (a *App) buildBorderTitle(width int, title string, focused bool) string {
	border := lipgloss.RoundedBorder()
	borderColor := mutedColor
	style := borderTitleStyle
	if focused {
		borderColor = primaryColor
		style = focusedBorderTitleStyle
	}
	borderStyle := lipgloss.NewStyle().Foreground(borderColor)

	// ╭─ Title ───────╮
	titleRendered := style.Render(title)
	remainingWidth := max(width-5-lipgloss.Width(titleRendered), 0)

	var b strings.Builder
	b.WriteString(borderStyle.Render(border.TopLeft))
	b.WriteString(borderStyle.Render(border.Top))
	b.WriteString(" ")
	b.WriteString(titleRendered)
	b.WriteString(" ")
	b.WriteString(borderStyle.Render(strings.Repeat(border.Top, remainingWidth)))
	b.WriteString(borderStyle.Render(border.TopRight))

	return b.String()
}

// renderPaneWithTitle renders content in a pane with a title in the top border
func (a *App) renderPaneWithTitle(content string, width, height int, title string, focused bool) string {
	border := lipgloss.RoundedBorder()
	borderColor := mutedColor
	if focused {
		borderColor = primaryColor
	}
	borderStyle := lipgloss.NewStyle().Foreground(borderColor)

	// Inner dimensions (excluding borders)
	innerWidth := max(width-2, 1)
	innerHeight := max(height-2, 1)

	// Pad or truncate to innerHeight lines
	contentLines := strings.Split(content, "\n")
	for len(contentLines) < innerHeight {
		contentLines = append(contentLines, "")
	}
	if len(contentLines) > innerHeight {
		contentLines = contentLines[:innerHeight]
	}

	var result strings.Builder

	result.WriteString(a.buildBorderTitle(width, title, focused))
	result.WriteString("\n")

	for _, line := range contentLines {
		result.WriteString(borderStyle.Render(border.Left))
		paddedLine := " " + line
		if lineWidth := lipgloss.Width(paddedLine); lineWidth < innerWidth {
			paddedLine += strings.Repeat(" ", innerWidth-lineWidth)
		}
		result.WriteString(paddedLine)
		result.WriteString(borderStyle.Render(border.Right))
		result.WriteString("\n")
	}

	result.WriteString(borderStyle.Render(border.BottomLeft))
	result.WriteString(borderStyle.Render(strings.Repeat(border.Bottom, innerWidth)))
	result.WriteString(borderStyle.Render(border.BottomRight))

	return result.String()
}

// renderPromptBar shows the active prompt, the last error or a status message.
func (a *App) renderPromptBar() string {
	switch {
	case a.renaming != "":
		return promptStyle.Render("Rename: ") + a.renameInput.View()
	case a.deleting != "":
		ws, _ := a.worksheets.Get(a.deleting)
		return promptStyle.Render(fmt.Sprintf("Delete %q? ", ws.Name)) + dimItemStyle.Render("y to confirm, any key to cancel")
	case a.err != nil:
		return errorStyle.Render(a.err.Error())
	case a.status != "":
		return successStyle.Render(a.status)
	case a.focus == FocusEditor:
		return dimItemStyle.Render("Editing. Esc or Tab to return to the list")
	}
	return dimItemStyle.Render("Enter to edit, n to create a worksheet")
}

func (a *App) renderStatusBar() string {
	var leftParts []string
	var rightParts []string

	leftParts = append(leftParts, statusKeyStyle.Render("dbstudio"))
	if a.user != nil {
		leftParts = append(leftParts, statusValueStyle.Render(a.user.DisplayName()))
	}
	if org := a.auth.OrganizationID(); org != "" {
		leftParts = append(leftParts, dimItemStyle.Render("org "+org))
	}
	if len(a.roles) > 0 {
		names := make([]string, len(a.roles))
		for i, r := range a.roles {
			names[i] = r.Name
		}
		leftParts = append(leftParts, dimItemStyle.Render("("+strings.Join(names, ", ")+")"))
	}

	st := a.worksheets.Snapshot()
	rightParts = append(rightParts, dimItemStyle.Render(fmt.Sprintf("%d/%d open", len(st.OpenIDs), len(st.Worksheets))))

	// Access level badge
	if a.permissions != nil {
		var badge string
		switch a.permissions.Level(badgeResource) {
		case access.Admin:
			badge = adminBadge.Render("ADMIN")
		case access.ReadWrite:
			badge = readWriteBadge.Render("RW")
		case access.ReadOnly:
			badge = readOnlyBadge.Render("RO")
		default:
			badge = noBadge.Render("NO")
		}
		rightParts = append(rightParts, badge)
	}

	rightParts = append(rightParts, dimItemStyle.Render("| ?:help q:quit"))

	leftContent := strings.Join(leftParts, " ")
	rightContent := strings.Join(rightParts, " ")

	// -2 for statusBar padding
	padding := max(a.width-lipgloss.Width(leftContent)-lipgloss.Width(rightContent)-2, 1)

	content := leftContent + strings.Repeat(" ", padding) + rightContent
	return statusBarStyle.Width(a.width).Render(content)
}

func (a *App) renderHelp() string {
	var b strings.Builder

	for _, column := range a.keys.FullHelp() {
		for _, binding := range column {
			h := binding.Help()
			b.WriteString(helpKeyStyle.Render(fmt.Sprintf("%-12s", h.Key)))
			b.WriteString(helpDescStyle.Render(h.Desc))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dimItemStyle.Render("Press ? or Esc to close"))

	modal := modalStyle.Render(titleStyle.Render("Help") + "\n\n" + b.String())
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, modal)
}

// truncateString truncates a string to maxLen runes, adding ellipsis if needed
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-1]) + "…"
}

// calculateListPaneWidth returns the width needed for the worksheet list
// based on the longest name, plus space for "> " prefix and borders
func (a *App) calculateListPaneWidth() int {
	maxLen := 10 // "Worksheets" header length
	for _, ws := range a.worksheets.List() {
		if n := len([]rune(ws.Name)); n > maxLen {
			maxLen = n
		}
	}
	// +2 for "> " prefix, +2 for horizontal padding, +2 for borders, +1 extra
	return maxLen + 7
}
