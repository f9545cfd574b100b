// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inspectorui

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/inspector/lib/inspector"
	"github.com/bureau-foundation/inspector/lib/objectgraph"
	"github.com/bureau-foundation/inspector/lib/pickbridge"
	"github.com/bureau-foundation/inspector/lib/probewire"
)

// tabDef is one tab of the inspector: the panes of one pipeline, top
// to bottom in the order selection flows through them.
type tabDef struct {
	label string
	panes []inspector.PaneID
}

var tabDefs = []tabDef{
	{"Objects", []inspector.PaneID{inspector.PaneObjects}},
	{"Widgets", []inspector.PaneID{inspector.PaneWidgets}},
	{"Models", []inspector.PaneID{inspector.PaneModels, inspector.PaneModelContents, inspector.PaneModelCell}},
	{"Scenes", []inspector.PaneID{inspector.PaneScenes, inspector.PaneSceneItems}},
	{"State Machines", []inspector.PaneID{inspector.PaneStateMachines, inspector.PaneStates, inspector.PaneTransitions}},
	{"Scripts", []inspector.PaneID{inspector.PaneScriptEngines}},
	{"Web", []inspector.PaneID{inspector.PaneWebPages}},
	{"Selections", []inspector.PaneID{inspector.PaneSelectionModels, inspector.PaneSelectedModel}},
	{"Connections", []inspector.PaneID{inspector.PaneConnections}},
	{"Meta Types", []inspector.PaneID{inspector.PaneMetaTypes}},
}

// Layout constants.
const (
	// treeSplitRatio is the share of the width given to the panes;
	// the detail panel takes the rest.
	treeSplitRatio = 0.5

	// comboHeight is the number of lines a combo pane occupies: its
	// title and its one visible entry.
	comboHeight = 2

	// chromeHeight counts the header, the bottom separator, and the
	// help line.
	chromeHeight = 3
)

// linkEventMsg wraps a probe event for delivery through the bubbletea
// message loop.
type linkEventMsg struct {
	event probewire.Event
}

// linkClosedMsg reports that the probe event channel closed.
type linkClosedMsg struct{}

// resyncResultMsg reports the outcome of a resync request.
type resyncResultMsg struct {
	err error
}

// Options configures a [Model].
type Options struct {
	// Events delivers probe events, usually [probewire.Link.Events].
	// Nil shows the session as it is, for replaying a capture.
	Events <-chan probewire.Event

	// Resync asks the probe for a fresh snapshot. It is called when a
	// change does not fit the replica and when the operator presses
	// the resync key. Nil disables resync.
	Resync func() error

	// Logger receives diagnostics. Nil discards.
	Logger *slog.Logger
}

// pickNotice holds the outcome of the latest pick. It is shared by
// every copy of the Model because the bridge reports to one callback.
type pickNotice struct {
	outcome pickbridge.Outcome
	seen    bool
}

// Model is the bubbletea model of the inspector.
type Model struct {
	session *inspector.Session
	events  <-chan probewire.Event
	resync  func() error
	logger  *slog.Logger

	keys  KeyMap
	theme Theme

	activeTab int
	focus     int
	search    SearchLine

	// offsets is the first visible row of each pane.
	offsets map[inspector.PaneID]int

	picks *pickNotice

	status         string
	statusLevel    slog.Level
	statusSequence int
	disconnected   bool

	width  int
	height int
	ready  bool
}

// NewModel creates the model for a session.
func NewModel(session *inspector.Session, options Options) Model {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	model := Model{
		session: session,
		events:  options.Events,
		resync:  options.Resync,
		logger:  logger,
		keys:    DefaultKeyMap,
		theme:   DefaultTheme,
		offsets: make(map[inspector.PaneID]int),
		picks:   &pickNotice{},
	}
	picks := model.picks
	session.Bridge().OnOutcome(func(outcome pickbridge.Outcome) {
		picks.outcome = outcome
		picks.seen = true
	})
	return model
}

// Init implements tea.Model. Starts listening for probe events.
func (model Model) Init() tea.Cmd {
	if model.events == nil {
		return nil
	}
	return listenForLinkEvent(model.events)
}

// listenForLinkEvent returns a tea.Cmd that blocks until an event
// arrives from the probe, then delivers it as a linkEventMsg.
func listenForLinkEvent(channel <-chan probewire.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-channel
		if !ok {
			return linkClosedMsg{}
		}
		return linkEventMsg{event: event}
	}
}

// requestResync returns a tea.Cmd performing the resync request off
// the UI goroutine, since it writes to the connection.
func (model Model) requestResync() tea.Cmd {
	if model.resync == nil || model.disconnected {
		return nil
	}
	resync := model.resync
	return func() tea.Msg {
		return resyncResultMsg{err: resync()}
	}
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		if model.search.Active {
			return model.handleSearchKeys(message)
		}
		return model.handleKeys(message)

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true

	case linkEventMsg:
		return model.handleLinkEvent(message)

	case linkClosedMsg:
		model.disconnected = true
		model.logger.Warn("probe disconnected")

	case resyncResultMsg:
		if message.err != nil {
			model.logger.Warn("resync request failed", "error", message.err)
		}

	case logRecordMsg:
		model.statusSequence++
		model.status = message.Summary
		model.statusLevel = message.Level
		sequence := model.statusSequence
		return model, tea.Tick(logRecordFadeDelay, func(time.Time) tea.Msg {
			return logRecordFadeMsg{Sequence: sequence}
		})

	case logRecordFadeMsg:
		if message.Sequence == model.statusSequence {
			model.status = ""
		}
	}
	return model, nil
}

func (model Model) handleLinkEvent(message linkEventMsg) (tea.Model, tea.Cmd) {
	commands := []tea.Cmd{listenForLinkEvent(model.events)}
	if err := model.session.HandleEvent(message.event); err != nil {
		model.logger.Warn("probe change rejected, requesting resync", "error", err)
		commands = append(commands, model.requestResync())
	}
	if message.event.Pick != nil {
		model.revealPick()
	}
	return model, tea.Batch(commands...)
}

// revealPick brings the pane a pick selected into view: its tab
// becomes active, it takes focus, and its scroll offset moves to the
// picked row.
func (model *Model) revealPick() {
	for tabIndex, tab := range tabDefs {
		for paneIndex, id := range tab.panes {
			pane := model.pane(id)
			if pane == nil {
				continue
			}
			target, ok := pane.TakeScrollTarget()
			if !ok {
				continue
			}
			if model.activeTab != tabIndex || model.focus != paneIndex {
				model.search.Active = false
			}
			model.activeTab = tabIndex
			model.focus = paneIndex
			rows := pane.Rows()
			for index, row := range rows {
				if row.Identity == target {
					model.ensureVisible(pane, index)
					break
				}
			}
		}
	}
}

func (model Model) handleKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	pane := model.focusedPane()

	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit

	case key.Matches(message, model.keys.TabNext):
		model.switchTab((model.activeTab + 1) % len(tabDefs))

	case key.Matches(message, model.keys.TabPrevious):
		model.switchTab((model.activeTab + len(tabDefs) - 1) % len(tabDefs))

	case key.Matches(message, model.keys.FocusNext):
		model.focus = (model.focus + 1) % len(tabDefs[model.activeTab].panes)

	case key.Matches(message, model.keys.FocusPrevious):
		count := len(tabDefs[model.activeTab].panes)
		model.focus = (model.focus + count - 1) % count

	case key.Matches(message, model.keys.SearchActivate):
		if pane != nil && pane.Searchable() {
			model.search.Input = pane.FilterTerm()
			model.search.Active = true
		}

	case key.Matches(message, model.keys.SearchClear):
		if pane != nil && pane.FilterTerm() != "" {
			model.search.Clear()
			pane.SetFilterTerm("")
		}

	case key.Matches(message, model.keys.Resync):
		return model, model.requestResync()

	case message.Type == tea.KeyRunes && len(message.Runes) == 1 && message.Runes[0] >= '0' && message.Runes[0] <= '9':
		// 1 through 9 are the first tabs, 0 the tenth.
		index := int(message.Runes[0]-'0') - 1
		if index < 0 {
			index = 9
		}
		if index < len(tabDefs) {
			model.switchTab(index)
		}

	default:
		if pane != nil {
			model.handlePaneKeys(pane, message)
		}
	}
	return model, nil
}

// handleSearchKeys processes keystrokes while the search line has
// focus: characters go to the input, Esc clears or exits, Enter
// confirms and returns to navigation.
func (model Model) handleSearchKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	pane := model.focusedPane()
	if pane == nil {
		model.search.Active = false
		return model, nil
	}

	switch {
	case message.Type == tea.KeyCtrlC:
		return model, tea.Quit

	case key.Matches(message, model.keys.SearchClear):
		if model.search.Input != "" {
			model.search.Input = ""
			pane.SetFilterTerm("")
		} else {
			model.search.Active = false
		}

	case message.Type == tea.KeyEnter:
		model.search.Active = false

	case message.Type == tea.KeyBackspace:
		if model.search.HandleBackspace() {
			pane.SetFilterTerm(model.search.Input)
			model.offsets[pane.ID()] = 0
		}

	case message.Type == tea.KeySpace:
		model.search.HandleRune(' ')
		pane.SetFilterTerm(model.search.Input)
		model.offsets[pane.ID()] = 0

	case message.Type == tea.KeyRunes:
		for _, character := range message.Runes {
			model.search.HandleRune(character)
		}
		pane.SetFilterTerm(model.search.Input)
		model.offsets[pane.ID()] = 0
	}
	return model, nil
}

// handlePaneKeys moves the selection of the focused pane. The cursor
// is the pane's current row; moving it selects.
func (model *Model) handlePaneKeys(pane *inspector.Pane, message tea.KeyMsg) {
	rows := pane.Rows()
	if len(rows) == 0 {
		return
	}
	index := currentIndex(rows)
	page := max(1, model.paneHeight(pane)-1)

	switch {
	case key.Matches(message, model.keys.Up):
		model.selectRow(pane, rows, max(index-1, 0))

	case key.Matches(message, model.keys.Down):
		model.selectRow(pane, rows, min(index+1, len(rows)-1))

	case key.Matches(message, model.keys.PageUp):
		model.selectRow(pane, rows, max(index-page, 0))

	case key.Matches(message, model.keys.PageDown):
		model.selectRow(pane, rows, min(max(index, 0)+page, len(rows)-1))

	case key.Matches(message, model.keys.Home):
		model.selectRow(pane, rows, 0)

	case key.Matches(message, model.keys.End):
		model.selectRow(pane, rows, len(rows)-1)

	case key.Matches(message, model.keys.Left):
		if pane.Layout() == inspector.LayoutCombo {
			model.selectRow(pane, rows, max(index-1, 0))
			return
		}
		if index < 0 {
			return
		}
		row := rows[index]
		if row.Expanded {
			pane.SetExpanded(row.Identity, false)
			return
		}
		if row.Depth > 0 {
			parent := row.Path[:len(row.Path)-1]
			for candidate, other := range rows {
				if slices.Equal(other.Path, parent) {
					model.selectRow(pane, rows, candidate)
					return
				}
			}
		}

	case key.Matches(message, model.keys.Right):
		if pane.Layout() == inspector.LayoutCombo {
			model.selectRow(pane, rows, min(index+1, len(rows)-1))
			return
		}
		if index < 0 {
			return
		}
		row := rows[index]
		if row.Expandable && !row.Expanded {
			pane.SetExpanded(row.Identity, true)
			return
		}
		if row.Expanded {
			model.selectRow(pane, pane.Rows(), index+1)
		}
	}
}

func (model *Model) selectRow(pane *inspector.Pane, rows []inspector.Row, index int) {
	if index < 0 || index >= len(rows) {
		return
	}
	pane.Selection().SetCurrentPath(rows[index].Path)
	model.ensureVisible(pane, index)
}

// ensureVisible adjusts the scroll offset of a pane so that row index
// is on screen.
func (model *Model) ensureVisible(pane *inspector.Pane, index int) {
	height := model.paneHeight(pane) - 1
	if height < 1 {
		height = 1
	}
	offset := model.offsets[pane.ID()]
	if index < offset {
		offset = index
	} else if index >= offset+height {
		offset = index - height + 1
	}
	model.offsets[pane.ID()] = offset
}

func (model *Model) switchTab(tab int) {
	if tab == model.activeTab {
		return
	}
	model.activeTab = tab
	model.focus = 0
	model.search.Active = false
}

func currentIndex(rows []inspector.Row) int {
	for index, row := range rows {
		if row.Current {
			return index
		}
	}
	return -1
}

func (model Model) pane(id inspector.PaneID) *inspector.Pane {
	pane, err := model.session.Pane(id)
	if err != nil {
		return nil
	}
	return pane
}

func (model Model) focusedPane() *inspector.Pane {
	panes := tabDefs[model.activeTab].panes
	if model.focus >= len(panes) {
		return nil
	}
	return model.pane(panes[model.focus])
}

// contentHeight is the number of lines between the header and the
// bottom chrome.
func (model Model) contentHeight() int {
	height := model.height - chromeHeight
	if model.search.Active || model.search.Input != "" {
		height--
	}
	return max(height, 1)
}

// paneHeight returns the lines given to a pane of the active tab,
// including its title line. Combos get a fixed height; the remaining
// panes share the rest evenly.
func (model Model) paneHeight(pane *inspector.Pane) int {
	if pane.Layout() == inspector.LayoutCombo {
		return comboHeight
	}
	panes := tabDefs[model.activeTab].panes
	available := model.contentHeight()
	flexible := 0
	for _, id := range panes {
		if other := model.pane(id); other != nil && other.Layout() == inspector.LayoutCombo {
			available -= comboHeight
		} else {
			flexible++
		}
	}
	if flexible == 0 {
		return available
	}
	return max(available/flexible, 2)
}

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return "Loading..."
	}

	sections := []string{model.renderHeader()}
	if searchView := model.search.View(model.theme, model.width); searchView != "" {
		sections = append(sections, searchView)
	}

	listWidth := int(float64(model.width) * treeSplitRatio)
	detailWidth := max(model.width-listWidth-1, 10)
	height := model.contentHeight()

	panes := lipgloss.NewStyle().Width(listWidth).Height(height).MaxHeight(height).
		Render(model.renderPanes(listWidth))
	divider := lipgloss.NewStyle().Foreground(model.theme.BorderColor).
		Render(strings.TrimSuffix(strings.Repeat("│\n", height), "\n"))
	details := lipgloss.NewStyle().Width(detailWidth).Height(height).MaxHeight(height).
		Render(model.renderDetails(detailWidth))
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, panes, divider, details))

	separator := lipgloss.NewStyle().
		Foreground(model.theme.BorderColor).
		Render(strings.Repeat("─", model.width))
	sections = append(sections, separator, model.renderHelp())

	return strings.Join(sections, "\n")
}

// renderHeader renders the tab bar with connection state on the right.
func (model Model) renderHeader() string {
	separatorStyle := lipgloss.NewStyle().Foreground(model.theme.BorderColor)
	activeStyle := lipgloss.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground)
	inactiveStyle := lipgloss.NewStyle().Foreground(model.theme.FaintText)

	sep := separatorStyle.Render("─")
	left := sep + sep + sep
	cursor := 3
	for index, tab := range tabDefs {
		label := tab.label
		if index == model.activeTab {
			left += " " + activeStyle.Render(label) + " " + sep
		} else {
			left += " " + inactiveStyle.Render(label) + " " + sep
		}
		cursor += lipgloss.Width(label) + 3
	}

	state := fmt.Sprintf("%d objects", model.session.Graph().Len())
	if model.disconnected {
		state += "  disconnected"
	}
	right := " " + inactiveStyle.Render(state) + " " + sep
	fill := max(model.width-cursor-lipgloss.Width(state)-3, 1)
	return ansi.Truncate(left+strings.Repeat(sep, fill)+right, model.width, "")
}

// renderPanes renders the panes of the active tab stacked vertically.
func (model Model) renderPanes(width int) string {
	var blocks []string
	for index, id := range tabDefs[model.activeTab].panes {
		pane := model.pane(id)
		if pane == nil {
			continue
		}
		blocks = append(blocks, model.renderPane(pane, width, index == model.focus))
	}
	return strings.Join(blocks, "\n")
}

func (model Model) renderPane(pane *inspector.Pane, width int, focused bool) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground)
	if focused {
		titleStyle = titleStyle.Foreground(model.theme.FocusAccent)
	}
	title := pane.Title()
	if term := pane.FilterTerm(); term != "" {
		title += "  /" + term
	}
	lines := []string{titleStyle.Render(ansi.Truncate(title, width, "…"))}

	rows := pane.Rows()
	height := model.paneHeight(pane) - 1

	if pane.Layout() == inspector.LayoutCombo {
		lines = append(lines, model.renderCombo(rows, width))
		return strings.Join(lines, "\n")
	}

	if len(rows) == 0 {
		empty := "(none)"
		if pane.Selection().Source() == nil {
			empty = "(select an entry above)"
		}
		lines = append(lines, lipgloss.NewStyle().Foreground(model.theme.FaintText).Render(empty))
	}

	offset := model.offsets[pane.ID()]
	if offset > len(rows) {
		offset = 0
	}
	for index := offset; index < len(rows) && index < offset+height; index++ {
		lines = append(lines, renderRow(rows[index], width, model.theme))
	}
	for len(lines) < height+1 {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// renderCombo renders the current entry of a combo pane with its
// position among the entries.
func (model Model) renderCombo(rows []inspector.Row, width int) string {
	if len(rows) == 0 {
		return lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("  (none)")
	}
	index := currentIndex(rows)
	text := "(choose with ←/→)"
	if index >= 0 {
		text = rows[index].Text
	}
	line := fmt.Sprintf("◀ %s ▶  %d/%d", text, index+1, len(rows))
	return "  " + ansi.Truncate(line, width-2, "…")
}

// renderRow renders one row of a tree or list: indentation, the
// expansion marker, the text, and the kind in a faint color. Marked
// rows carry a bullet before their text.
func renderRow(row inspector.Row, width int, theme Theme) string {
	marker := "  "
	if row.Expandable {
		marker = "▸ "
		if row.Expanded {
			marker = "▾ "
		}
	}
	if row.Marked {
		marker += lipgloss.NewStyle().Foreground(theme.MarkForeground).Render("●") + " "
	}
	text := strings.Repeat("  ", row.Depth) + marker + row.Text
	if row.Kind != "" {
		text += "  " + lipgloss.NewStyle().Foreground(theme.KindForeground).Render(string(row.Kind))
	}
	text = ansi.Truncate(text, width, "…")

	style := lipgloss.NewStyle().Foreground(theme.NormalText)
	if row.Current {
		style = style.Background(theme.SelectedBackground).Foreground(theme.SelectedForeground).Width(width)
	}
	return style.Render(text)
}

// renderDetails renders the detail panel of the focused pane.
func (model Model) renderDetails(width int) string {
	pane := model.focusedPane()
	if pane == nil {
		return ""
	}
	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	subject := pane.Details().Subject()
	if subject == nil {
		return faint.Render(" nothing selected")
	}
	return strings.Join(detailLines(*subject, width, model.theme), "\n")
}

// detailLines lists the fields of a record followed by its attributes
// in name order and, for source-like attributes, a full preview.
func detailLines(record objectgraph.Record, width int, theme Theme) []string {
	label := lipgloss.NewStyle().Foreground(theme.LabelForeground)
	field := func(name, value string) string {
		value = strings.ReplaceAll(value, "\n", "↵")
		return ansi.Truncate(" "+label.Render(name+":")+" "+value, width, "…")
	}

	lines := []string{
		field("kind", string(record.Kind)),
		field("identity", record.Identity.String()),
	}
	if record.HasParent() {
		lines = append(lines, field("parent", record.Parent.String()))
	}
	if record.DisplayText != "" {
		lines = append(lines, field("text", record.DisplayText))
	}
	if len(record.Attributes) > 0 {
		lines = append(lines, "", " "+label.Render("attributes"))
		names := make([]string, 0, len(record.Attributes))
		for name := range record.Attributes {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			lines = append(lines, field("  "+name, record.Attributes[name]))
		}
	}
	return append(lines, previewLines(record, width, theme)...)
}

// renderHelp renders the bottom line: the latest log record while it
// is fresh, otherwise the key hints and the latest pick outcome.
func (model Model) renderHelp() string {
	if model.status != "" {
		color := model.theme.NormalText
		switch {
		case model.statusLevel >= slog.LevelError:
			color = model.theme.ErrorForeground
		case model.statusLevel >= slog.LevelWarn:
			color = model.theme.WarnForeground
		}
		return lipgloss.NewStyle().Foreground(color).Render(ansi.Truncate(" "+model.status, model.width, "…"))
	}

	help := " q quit  ↑↓ select  ←→ expand  Tab pane  0-9 tabs  / search  r resync"
	if model.picks.seen {
		outcome := model.picks.outcome
		help += fmt.Sprintf("  pick %s: %s", outcome.Pick.Identity, outcome.Result)
	}
	style := lipgloss.NewStyle().Foreground(model.theme.HelpText)
	return style.Render(ansi.Truncate(help, model.width, "…"))
}
