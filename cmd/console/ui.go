package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/campaign-engine/internal/services"
	"github.com/jwebster45206/campaign-engine/pkg/dmcontext"
	"github.com/muesli/reflow/wordwrap"
)

// ConsoleUI is the BubbleTea model that runs the DM console.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config          *ConsoleConfig
	client          *http.Client
	contextViewport viewport.Model
	metaViewport    viewport.Model
	ready           bool
	width           int
	height          int
	err             error
	loading         bool
	status          string

	// Campaign selection state
	showCampaignModal bool
	campaigns         []services.CampaignSummary
	selectedCampaign  int
	loadingCampaigns  bool

	// Active campaign
	campaignID   string
	snapshot     *dmcontext.Snapshot
	rawContext   []byte
	selectedBeat int

	// Live event stream for the active campaign
	streamClient *http.Client
	events       chan SSEEvent
	stopEvents   context.CancelFunc
	live         bool

	// Quit confirmation state
	showQuitModal bool
}

type campaignsLoadedMsg struct {
	campaigns []services.CampaignSummary
	err       error
}

type campaignCreatedMsg struct {
	campaignID string
	err        error
}

type contextLoadedMsg struct {
	snapshot *dmcontext.Snapshot
	raw      []byte
	err      error
}

type campaignEventMsg struct {
	events chan SSEEvent
	event  SSEEvent
}

type eventsClosedMsg struct {
	events chan SSEEvent
	err    error
}

// actionDoneMsg reports a mutation; the context is reloaded afterwards.
type actionDoneMsg struct {
	status string
	err    error
}

var (
	contextPanelStyle = lipgloss.NewStyle().
				PaddingTop(1).
				PaddingBottom(1).
				PaddingLeft(3).
				PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	headingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	secretStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	threatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	contextVp := viewport.New(50, 20)
	contextVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:            cfg,
		client:            client,
		streamClient:      &http.Client{},
		contextViewport:   contextVp,
		metaViewport:      metaVp,
		showCampaignModal: true,
		loadingCampaigns:  true,
	}
}

// writeContext renders the DM context for the given width.
func writeContext(snap *dmcontext.Snapshot, width int) string {
	if width < 20 {
		width = 20
	}
	cc := snap.CampaignContext

	var content strings.Builder
	content.WriteString(titleStyle.Render(strings.ToUpper(cc.Name)) + "\n\n")
	content.WriteString(wordwrap.String(cc.Premise, width) + "\n")
	content.WriteString(promptStyle.Render("Tone: "+cc.Tone) + "\n\n")

	content.WriteString(headingStyle.Render("Episode") + "\n")
	content.WriteString(wordwrap.String(episodeDescription(snap.Episode), width) + "\n\n")

	content.WriteString(headingStyle.Render("Threat") + "\n")
	content.WriteString(threatStyle.Render(fmt.Sprintf("%s, stage %d", snap.ThreatName, snap.ThreatStage)) + "\n")
	content.WriteString(wordwrap.String(snap.ThreatDescription, width) + "\n\n")

	content.WriteString(headingStyle.Render("Available Beats") + "\n")
	if len(snap.AvailableBeats) == 0 {
		content.WriteString("None\n")
	}
	for _, b := range snap.AvailableBeats {
		label := b.ID
		if b.IsFinale {
			label += " (finale)"
		}
		content.WriteString("• " + label + "\n")
		content.WriteString(wordwrap.String("  "+b.Description, width) + "\n")
	}
	content.WriteString("\n")

	writeList(&content, "Party Knows", snap.PartyKnows, width, nil)
	writeList(&content, "Party Does Not Know", snap.PartyDoesNotKnow, width, &secretStyle)

	content.WriteString(headingStyle.Render("NPCs") + "\n")
	keys := make([]string, 0, len(snap.NPCStates))
	for k := range snap.NPCStates {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		npc := snap.NPCStates[k]
		met := "not met"
		if npc.Met {
			met = "met"
		}
		content.WriteString(fmt.Sprintf("• %s (%s, %s): %s, %s\n", k, npc.Species, npc.Role, met, npc.Disposition))
		content.WriteString(wordwrap.String("  Wants: "+npc.Wants, width) + "\n")
	}
	content.WriteString("\n")

	content.WriteString(headingStyle.Render("Locations") + "\n")
	for _, loc := range cc.Locations {
		visited := ""
		if slices.Contains(snap.LocationsVisited, loc.Name) {
			visited = " (visited)"
		}
		content.WriteString(fmt.Sprintf("• %s%s [%s]\n", loc.Name, visited, strings.Join(loc.Contains, ", ")))
		content.WriteString(wordwrap.String("  "+loc.Vibe, width) + "\n")
	}

	return content.String()
}

func writeList(content *strings.Builder, title string, items []string, width int, style *lipgloss.Style) {
	content.WriteString(headingStyle.Render(title) + "\n")
	if len(items) == 0 {
		content.WriteString("Nothing yet\n")
	}
	for _, item := range items {
		line := wordwrap.String("• "+item, width)
		if style != nil {
			line = style.Render(line)
		}
		content.WriteString(line + "\n")
	}
	content.WriteString("\n")
}

// episodeDescription pulls the description out of a decoded episode.
func episodeDescription(ep any) string {
	if m, ok := ep.(map[string]any); ok {
		if d, ok := m["description"].(string); ok {
			return d
		}
	}
	return dmcontext.DefaultEpisode["description"]
}

func (m ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("CAMPAIGN") + "\n\n")

	if len(m.campaignID) > 8 {
		content.WriteString("ID: " + m.campaignID[:8] + "...\n")
		if m.live {
			content.WriteString(secretStyle.Render("● live") + "\n")
		}
		content.WriteString("\n")
	}

	if m.snapshot != nil {
		content.WriteString(fmt.Sprintf("Episodes: %d\n", m.snapshot.EpisodesCompleted))
		content.WriteString(fmt.Sprintf("Threat:   %d\n\n", m.snapshot.ThreatStage))

		content.WriteString("Hit a beat:\n")
		if len(m.snapshot.AvailableBeats) == 0 {
			content.WriteString("None available\n")
		}
		for i, b := range m.snapshot.AvailableBeats {
			if i == m.selectedBeat {
				content.WriteString(modalSelectedItemStyle.Render("▶ "+b.ID) + "\n")
			} else {
				content.WriteString("  " + b.ID + "\n")
			}
		}
		content.WriteString("\n")
	}

	if m.loading {
		content.WriteString(loadingStyle.Render("Working...") + "\n\n")
	} else if m.err != nil {
		content.WriteString(errorStyle.Render(wordwrap.String("Error: "+m.err.Error(), m.metaViewport.Width)) + "\n\n")
	} else if m.status != "" {
		content.WriteString(wordwrap.String(m.status, m.metaViewport.Width) + "\n\n")
	}

	content.WriteString("Commands:\n")
	content.WriteString("• ↑/↓: Select beat\n")
	content.WriteString("• Enter: Hit beat\n")
	content.WriteString("• c: Close episode\n")
	content.WriteString("• y: Copy context\n")
	content.WriteString("• r: Refresh\n")
	content.WriteString("• PgUp/PgDn: Scroll\n")
	content.WriteString("• Esc: Quit\n")

	return content.String()
}

// layout sizes the viewports for the current window.
func (m *ConsoleUI) layout() {
	contextWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - contextWidth - 6

	m.contextViewport.Width = contextWidth - 2
	m.contextViewport.Height = m.height - 3
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 2
}

// render refreshes both panels from the current snapshot.
func (m *ConsoleUI) render() {
	if m.snapshot != nil {
		m.contextViewport.SetContent(writeContext(m.snapshot, m.contextViewport.Width-6))
	}
	m.metaViewport.SetContent(m.writeMetadata())
}

func (m ConsoleUI) Init() tea.Cmd {
	if id := m.config.CampaignID; id != "" {
		return func() tea.Msg { return campaignCreatedMsg{campaignID: id} }
	}
	return m.loadCampaigns()
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Stream messages keep flowing behind modals
	switch msg.(type) {
	case campaignEventMsg, eventsClosedMsg:
		return m.updateStream(msg)
	}

	// Handle quit modal first
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	// Handle campaign modal second
	if m.showCampaignModal {
		return m.updateCampaignModal(msg)
	}

	var vpCmd tea.Cmd

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.contextViewport, vpCmd = m.contextViewport.Update(msg)
		return m, vpCmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		m.render()

	case contextLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.snapshot = msg.snapshot
			m.rawContext = msg.raw
			if m.selectedBeat >= len(m.snapshot.AvailableBeats) {
				m.selectedBeat = max(len(m.snapshot.AvailableBeats)-1, 0)
			}
		}
		m.render()
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.loading = false
			m.err = msg.err
			m.render()
			return m, nil
		}
		m.err = nil
		m.status = msg.status
		return m, m.loadContext()

	case tea.KeyMsg:
		if m.loading {
			if msg.Type == tea.KeyCtrlC {
				m.showQuitModal = true
			}
			return m, nil
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyUp:
			if m.selectedBeat > 0 {
				m.selectedBeat--
				m.render()
			}
			return m, nil
		case tea.KeyDown:
			if m.snapshot != nil && m.selectedBeat < len(m.snapshot.AvailableBeats)-1 {
				m.selectedBeat++
				m.render()
			}
			return m, nil
		case tea.KeyEnter:
			if m.snapshot == nil || len(m.snapshot.AvailableBeats) == 0 {
				return m, nil
			}
			m.loading = true
			m.render()
			return m, m.hitSelectedBeat(m.snapshot.AvailableBeats[m.selectedBeat].ID)
		}

		switch msg.String() {
		case "c":
			m.loading = true
			m.render()
			return m, m.closeEpisode()
		case "r":
			m.loading = true
			m.status = ""
			m.render()
			return m, m.loadContext()
		case "y":
			if err := copyContext(m.rawContext); err != nil {
				m.err = err
			} else {
				m.err = nil
				m.status = "DM context copied to clipboard"
			}
			m.render()
			return m, nil
		}
	}

	m.contextViewport, vpCmd = m.contextViewport.Update(msg)
	return m, vpCmd
}

// updateStream handles messages from the live event stream.
func (m ConsoleUI) updateStream(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case campaignEventMsg:
		if msg.events != m.events {
			return m, nil
		}
		m.live = true
		if msg.event.Type == "connected" {
			m.render()
			return m, waitForEvent(m.events)
		}
		m.status = "Event: " + msg.event.Type
		if msg.event.Event.Detail != "" {
			m.status += " (" + msg.event.Event.Detail + ")"
		}
		if m.loading {
			m.render()
			return m, waitForEvent(m.events)
		}
		return m, tea.Batch(m.loadContext(), waitForEvent(m.events))

	case eventsClosedMsg:
		if msg.events != m.events {
			return m, nil
		}
		m.live = false
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.status = "Live updates unavailable; press r to refresh"
		}
		m.render()
		return m, nil
	}
	return m, nil
}

// copyContext puts the pretty-printed context JSON on the clipboard.
func copyContext(raw []byte) error {
	if len(raw) == 0 {
		return fmt.Errorf("no context loaded")
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return fmt.Errorf("failed to format context: %w", err)
	}
	if err := clipboard.WriteAll(pretty.String()); err != nil {
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	return nil
}

func (m ConsoleUI) loadCampaigns() tea.Cmd {
	return func() tea.Msg {
		list, err := listCampaigns(m.client, m.config.APIBaseURL)
		return campaignsLoadedMsg{list, err}
	}
}

func (m ConsoleUI) createExample() tea.Cmd {
	return func() tea.Msg {
		id, err := createExampleCampaign(m.client, m.config.APIBaseURL)
		return campaignCreatedMsg{id, err}
	}
}

func (m ConsoleUI) loadContext() tea.Cmd {
	return func() tea.Msg {
		snap, raw, err := getContext(m.client, m.config.APIBaseURL, m.campaignID)
		return contextLoadedMsg{snap, raw, err}
	}
}

func (m ConsoleUI) hitSelectedBeat(beatID string) tea.Cmd {
	return func() tea.Msg {
		out, err := hitBeat(m.client, m.config.APIBaseURL, m.campaignID, beatID)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		status := fmt.Sprintf("Hit %s: %d new facts.", beatID, len(out.NewFacts))
		if out.CampaignComplete {
			status += " Campaign complete!"
		}
		return actionDoneMsg{status: status}
	}
}

func (m ConsoleUI) closeEpisode() tea.Cmd {
	return func() tea.Msg {
		report, err := closeEpisode(m.client, m.config.APIBaseURL, m.campaignID)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		status := fmt.Sprintf("Episode %d closed.", report.EpisodesCompleted)
		if report.ThreatAdvanced {
			status += fmt.Sprintf(" Threat advanced to stage %d.", report.ThreatStage)
		}
		if len(report.NewlyExpired) > 0 {
			status += " Expired: " + strings.Join(report.NewlyExpired, ", ") + "."
		}
		if report.CampaignComplete {
			status += " Campaign complete!"
		}
		return actionDoneMsg{status: status}
	}
}

func (m ConsoleUI) updateCampaignModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case campaignsLoadedMsg:
		m.loadingCampaigns = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.campaigns = msg.campaigns
		}

	case campaignCreatedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		return m.openCampaign(msg.campaignID)

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			if m.loadingCampaigns {
				return m, tea.Quit
			}
			m.showQuitModal = true
			return m, nil
		}
		if m.loadingCampaigns || m.loading || m.err != nil {
			return m, nil
		}

		switch msg.Type {
		case tea.KeyUp:
			if m.selectedCampaign > 0 {
				m.selectedCampaign--
			}
		case tea.KeyDown:
			if m.selectedCampaign < len(m.campaigns)-1 {
				m.selectedCampaign++
			}
		case tea.KeyEnter:
			if len(m.campaigns) > 0 {
				return m.openCampaign(m.campaigns[m.selectedCampaign].ID)
			}
		default:
			if msg.String() == "n" {
				m.loading = true
				return m, m.createExample()
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) openCampaign(id string) (tea.Model, tea.Cmd) {
	m.campaignID = id
	m.showCampaignModal = false
	m.loading = true
	m.selectedBeat = 0
	if m.width > 0 && m.height > 0 {
		m.layout()
		m.ready = true
	}

	if m.stopEvents != nil {
		m.stopEvents()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.stopEvents = cancel
	m.events = make(chan SSEEvent, 16)
	m.live = false

	m.render()
	return m, tea.Batch(m.loadContext(), m.listen(ctx), waitForEvent(m.events))
}

// listen runs the event stream until it ends, then closes the channel.
func (m ConsoleUI) listen(ctx context.Context) tea.Cmd {
	events := m.events
	return func() tea.Msg {
		err := listenToEvents(ctx, m.streamClient, m.config.APIBaseURL, m.campaignID, events)
		close(events)
		return eventsClosedMsg{events: events, err: err}
	}
}

func waitForEvent(events chan SSEEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return campaignEventMsg{events: events, event: ev}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				return m, nil
			}
		}

	default:
		// Keep async results flowing while the modal is open
		m.showQuitModal = false
		next, cmd := m.Update(msg)
		model := next.(ConsoleUI)
		model.showQuitModal = true
		return model, cmd
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Console?"))
	content.WriteString("\n\n")
	content.WriteString("Campaign progress is saved on the server.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderCampaignModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	switch {
	case m.loadingCampaigns:
		content.WriteString(modalTitleStyle.Render("Loading Campaigns..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Please wait while we fetch campaigns..."))
	case m.err != nil:
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(fmt.Sprintf("Failed to load campaigns: %v", m.err)))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	case m.loading:
		content.WriteString(modalTitleStyle.Render("Creating Campaign..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Uploading the sample campaign..."))
	default:
		content.WriteString(modalTitleStyle.Render("Select a Campaign"))
		content.WriteString("\n\n")

		if len(m.campaigns) == 0 {
			content.WriteString(modalItemStyle.Render("No campaigns stored yet."))
			content.WriteString("\n")
		}
		for i, c := range m.campaigns {
			label := fmt.Sprintf("%s (episode %d, threat %d)", c.Name, c.EpisodesCompleted, c.ThreatStage)
			if c.CampaignComplete {
				label += " ✓"
			}
			if i == m.selectedCampaign {
				content.WriteString(modalSelectedItemStyle.Render("▶ " + label))
			} else {
				content.WriteString(modalItemStyle.Render("  " + label))
			}
			content.WriteString("\n")
		}

		content.WriteString("\n")
		content.WriteString(promptStyle.Render("↑/↓ to navigate, Enter to select, N for the sample campaign, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(70).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if m.showCampaignModal {
		return m.renderCampaignModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	contextWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - contextWidth - 6

	contextPanel := contextPanelStyle.Width(contextWidth).Height(m.height - 2).Render(
		m.contextViewport.View(),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			separatorStyle.Render(strings.Repeat("─", max(metaWidth-4, 1))),
			m.metaViewport.View(),
		),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, contextPanel, metaPanel)
}
