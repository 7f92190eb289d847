package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
	"github.com/Magniswerfer/Podhaven-sub000/internal/tasks"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SubscriptionListView ViewState = iota
	EpisodeListView
	SyncView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	store        tasks.Store
	engine       tasks.SyncEngine
	width        int
	height       int
	subList      list.Model
	epList       list.Model
	selectedSub  *models.Subscription
	spinner      spinner.Model
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	report       *tasks.SyncReport
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, store tasks.Store, engine tasks.SyncEngine) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &Model{
		ctx:     ctx,
		view:    SubscriptionListView,
		store:   store,
		engine:  engine,
		spinner: sp,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init initializes the TUI by loading subscriptions from the store.
func (m *Model) Init() tea.Cmd {
	return m.loadSubscriptions()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.subList.Width() == 0 {
			m.subList.SetSize(msg.Width-4, msg.Height-8)
		}
		if m.epList.Width() == 0 {
			m.epList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case SubscriptionListView:
			return m.handleSubscriptionListKeys(msg)
		case EpisodeListView:
			return m.handleEpisodeListKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view == SyncView {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case subscriptionsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		items := make([]list.Item, len(msg.subs))
		for i, sub := range msg.subs {
			items[i] = subscriptionItem{sub: sub}
		}
		m.subList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.subList.Title = "Subscriptions"
		m.subList.SetSize(m.width-4, m.height-8)
		return m, nil

	case episodesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.view = SubscriptionListView
			return m, nil
		}
		m.selectedSub = msg.sub
		items := make([]list.Item, len(msg.episodes))
		for i, ep := range msg.episodes {
			items[i] = episodeItem{episode: ep}
		}
		m.epList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.epList.Title = fmt.Sprintf("Episodes in '%s'", msg.sub.Title())
		m.epList.SetSize(m.width-4, m.height-8)
		m.view = EpisodeListView
		return m, nil

	case syncProgressMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case syncDoneMsg:
		m.report = msg.report
		m.err = msg.err
		m.view = ResultView
		m.progressChan = nil
		return m, nil
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case SubscriptionListView:
		return m.renderSubscriptionList()
	case EpisodeListView:
		return m.renderEpisodeList()
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleSubscriptionListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		selected := m.subList.SelectedItem()
		if selected != nil {
			if item, ok := selected.(subscriptionItem); ok {
				return m, m.loadEpisodes(item.sub)
			}
		}
	case "s":
		m.view = SyncView
		m.progress = tasks.ProgressUpdate{}
		return m, tea.Batch(m.spinner.Tick, m.startSync())
	}

	var cmd tea.Cmd
	m.subList, cmd = m.subList.Update(msg)
	return m, cmd
}

func (m *Model) handleEpisodeListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = SubscriptionListView
		return m, nil
	}

	var cmd tea.Cmd
	m.epList, cmd = m.epList.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.view = SubscriptionListView
		m.selectedSub = nil
		m.report = nil
		m.err = nil
		return m, m.loadSubscriptions()
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case SubscriptionListView:
		m.subList, cmd = m.subList.Update(msg)
	case EpisodeListView:
		m.epList, cmd = m.epList.Update(msg)
	}
	return m, cmd
}

func (m *Model) loadSubscriptions() tea.Cmd {
	return func() tea.Msg {
		subs, err := m.store.Subscriptions.List(map[string]any{"subscribed": true})
		return subscriptionsLoadedMsg{subs: subs, err: err}
	}
}

func (m *Model) loadEpisodes(sub *models.Subscription) tea.Cmd {
	return func() tea.Msg {
		episodes, err := m.store.Episodes.List(map[string]any{"subscription_id": sub.ID()})
		return episodesLoadedMsg{sub: sub, episodes: episodes, err: err}
	}
}

func (m *Model) startSync() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)

	go func() {
		report, err := m.engine.Sync(m.ctx, m.progressChan)
		m.report = report
		m.err = err
		close(m.progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		if m.progressChan == nil {
			return syncDoneMsg{report: m.report, err: m.err}
		}

		update, ok := <-m.progressChan
		if !ok {
			return syncDoneMsg{report: m.report, err: m.err}
		}
		return syncProgressMsg(update)
	}
}

func (m *Model) renderSubscriptionList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.sync, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.subList.View(), helpView)
}

func (m *Model) renderEpisodeList() string {
	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.epList.View(), helpView)
}

func (m *Model) renderSync() string {
	title := styles.title.Render("Syncing with Server")

	var phase string
	switch m.progress.Phase {
	case tasks.SyncSubscriptions:
		phase = "Reconciling subscriptions"
	case tasks.LinkEpisodes:
		phase = "Linking episodes"
	case tasks.SyncProgress:
		phase = "Reconciling listening progress"
	case tasks.SyncQueue:
		phase = "Reconciling play queue"
	case tasks.RefreshFeeds:
		phase = "Refreshing feeds"
	default:
		phase = "Starting"
	}

	return fmt.Sprintf("%s\n\n%s %s\n%s", title, m.spinner.View(), phase, styles.help.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Sync failed: %v\n\nPress r to go back, q to quit", m.err))
	}

	if m.report == nil {
		return styles.err.Render("No report available\n\nPress r to go back, q to quit")
	}

	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	if m.report.Skipped {
		return fmt.Sprintf("%s\n\n%s", styles.warn.Render("Another sync pass is already running."), helpView)
	}

	title := styles.ok.Render("✓ Sync Complete!")
	info := fmt.Sprintf(
		"\nSubscriptions: %d added, %d removed, %d pushed"+
			"\nEpisodes: %d created, %d linked"+
			"\nProgress: %d applied, %d actions pushed"+
			"\nQueue: %d applied, %d pushed"+
			"\nActions still pending: %d"+
			"\nDuration: %s",
		m.report.SubscriptionsAdded, m.report.SubscriptionsRemoved, m.report.SubscriptionsPushed,
		m.report.EpisodesCreated, m.report.EpisodesLinked,
		m.report.ProgressApplied, m.report.ActionsPushed,
		m.report.QueueApplied, m.report.QueuePushed,
		m.report.ActionsPending,
		m.report.Duration.Round(time.Millisecond),
	)

	var skipped string
	if len(m.report.Errors) > 0 {
		skipped = fmt.Sprintf("\n\n%s", styles.warn.Render(fmt.Sprintf("Skipped %d records:", len(m.report.Errors))))
		for _, syncErr := range m.report.Errors {
			skipped += fmt.Sprintf("\n  • %s %s: %v", syncErr.Stage, syncErr.Key, syncErr.Err)
		}
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, skipped, helpView)
}
