// Command cli is a terminal front end for the on-device assistant core. It
// drives the agent loop against a simulated device, which makes it useful
// for exercising providers and tools without a handset attached.
//
// Usage:
//
//	export OPENAI_API_KEY="sk-..."   # or GEMINI_API_KEY / OPENROUTER_API_KEY
//	go run ./cmd/cli
//
// Commands:
//
//	/model <identifier> - Switch models
//	/exit - Exit the program
//	<message> - Send a message to the agent
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/nstogner/pocketagent/pkg/agent"
	"github.com/nstogner/pocketagent/pkg/models"
	"github.com/nstogner/pocketagent/pkg/provider"
	"github.com/nstogner/pocketagent/pkg/runner"
	"github.com/nstogner/pocketagent/pkg/server"
	"github.com/nstogner/pocketagent/pkg/settings"
	"github.com/nstogner/pocketagent/pkg/store"
	"github.com/nstogner/pocketagent/pkg/tools/device"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	senderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Bold(true)

	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	cursorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	selectedItemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Padding(0, 1)
)

type state int

const (
	stateMenu state = iota
	stateSelectingModel
	stateSelectingConversation
	stateChatting
)

type errMsg struct{ err error }
type storeUpdateMsg string
type turnDoneMsg struct{ err error }

type model struct {
	ctx      context.Context
	cfg      *settings.Store
	manager  *store.Manager
	runner   *runner.Runner
	updates  <-chan string
	current  *agent.Conversation
	thinking bool

	state      state
	recent     []*agent.Conversation
	cursor     int
	listOffset int
	width      int
	height     int
	err        error

	viewport viewport.Model
	textarea textarea.Model
	renderer *glamour.TermRenderer
}

func initialModel(ctx context.Context, cfg *settings.Store, manager *store.Manager, r *runner.Runner, updates <-chan string) model {
	ta := textarea.New()
	ta.Placeholder = "Send a message..."
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 1000
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false

	vp := viewport.New(80, 20)
	vp.SetContent("Welcome! Select an option.")

	// "light" avoids terminal queries that leak into input.
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle("light"),
		glamour.WithWordWrap(80),
	)

	return model{
		ctx:      ctx,
		cfg:      cfg,
		manager:  manager,
		runner:   r,
		updates:  updates,
		state:    stateMenu,
		viewport: vp,
		textarea: ta,
		renderer: renderer,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, waitForUpdate(m.updates))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	var tiCmd, vpCmd tea.Cmd
	// Keep menu keystrokes out of the textarea.
	switch msg.(type) {
	case tea.KeyMsg:
		if m.state == stateChatting {
			m.textarea, tiCmd = m.textarea.Update(msg)
			cmds = append(cmds, tiCmd)
		}
	default:
		m.textarea, tiCmd = m.textarea.Update(msg)
		cmds = append(cmds, tiCmd)
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.textarea.SetWidth(msg.Width)
		m.viewport.Height = msg.Height - m.textarea.Height() - 2
		if m.viewport.Height < 0 {
			m.viewport.Height = 0
		}
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithStandardStyle("light"),
			glamour.WithWordWrap(m.width-4),
		)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			if m.state == stateChatting || m.state == stateSelectingModel || m.state == stateSelectingConversation {
				m.state = stateMenu
				m.cursor = 0
				m.listOffset = 0
				return m, nil
			}
			return m, tea.Quit
		case tea.KeyEnter:
			switch m.state {
			case stateMenu:
				return m.selectMenuItem()
			case stateSelectingModel:
				return m.selectModel()
			case stateSelectingConversation:
				return m.selectConversation()
			case stateChatting:
				m.err = nil
				return m.sendMessage()
			}
		case tea.KeyUp:
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.listOffset {
					m.listOffset = m.cursor
				}
			}
		case tea.KeyDown:
			var maxCursor int
			switch m.state {
			case stateMenu:
				maxCursor = 2
			case stateSelectingModel:
				maxCursor = len(models.Catalog) - 1
			case stateSelectingConversation:
				maxCursor = len(m.recent) - 1
			}
			if m.cursor < maxCursor {
				m.cursor++
				maxViewable := m.maxViewable()
				if m.cursor >= m.listOffset+maxViewable {
					m.listOffset = m.cursor - maxViewable + 1
				}
			}
		}

	case storeUpdateMsg:
		if m.current != nil && string(msg) == m.current.ID {
			if conv := m.manager.Get(m.current.ID); conv != nil {
				m.current = conv
				m.viewport.SetContent(m.renderConversation(conv))
				m.viewport.GotoBottom()
			}
		}
		cmds = append(cmds, waitForUpdate(m.updates))

	case turnDoneMsg:
		m.thinking = false
		if msg.err != nil {
			m.err = msg.err
		}

	case errMsg:
		m.err = msg.err
	}

	return m, tea.Batch(cmds...)
}

func (m model) maxViewable() int {
	v := m.height - 7
	if v < 1 {
		v = 1
	}
	return v
}

func (m model) View() string {
	var errorView string
	if m.err != nil {
		errorView = errorStyle.Width(m.width).Render(fmt.Sprintf("\nError: %v", m.err))
	}

	switch m.state {
	case stateMenu:
		header := titleStyle.Render("Pocket Agent")
		options := []string{"New Conversation", "Continue Recent", "Select Model (" + m.cfg.Model() + ")"}
		var optionsView []string
		for i, choice := range options {
			cursor := " "
			if m.cursor == i {
				cursor = ">"
				choice = selectedItemStyle.Render(choice)
			}
			optionsView = append(optionsView, fmt.Sprintf("%s %s", cursorStyle.Render(cursor), choice))
		}
		list := lipgloss.JoinVertical(lipgloss.Left, optionsView...)
		footer := "Press Enter to select, Esc to quit."
		return lipgloss.JoinVertical(lipgloss.Left, header, "", list, "", footer, errorView)

	case stateSelectingModel:
		header := titleStyle.Render("Select Model")
		start := m.listOffset
		end := start + m.maxViewable()
		if end > len(models.Catalog) {
			end = len(models.Catalog)
		}
		var optionsView []string
		for i := start; i < end; i++ {
			entry := models.Catalog[i]
			line := fmt.Sprintf("%s (%s, %s)", entry.DisplayName, entry.Identifier, entry.Provider)
			cursor := " "
			if m.cursor == i {
				cursor = ">"
				line = selectedItemStyle.Render(line)
			}
			optionsView = append(optionsView, fmt.Sprintf("%s %s", cursorStyle.Render(cursor), line))
		}
		list := lipgloss.JoinVertical(lipgloss.Left, optionsView...)
		footer := "Press Enter to select, Esc to go back."
		return lipgloss.JoinVertical(lipgloss.Left, header, "", list, "", footer, errorView)

	case stateSelectingConversation:
		header := titleStyle.Render("Recent Conversations")
		start := m.listOffset
		end := start + m.maxViewable()
		if end > len(m.recent) {
			end = len(m.recent)
		}
		var optionsView []string
		for i := start; i < end; i++ {
			conv := m.recent[i]
			line := fmt.Sprintf("%s (%s)", agent.ConversationTitle(conv), time.UnixMilli(conv.StartTime).Format(time.RFC822))
			cursor := " "
			if m.cursor == i {
				cursor = ">"
				line = selectedItemStyle.Render(line)
			}
			optionsView = append(optionsView, fmt.Sprintf("%s %s", cursorStyle.Render(cursor), line))
		}
		list := lipgloss.JoinVertical(lipgloss.Left, optionsView...)
		footer := "Press Enter to select, Esc to go back."
		return lipgloss.JoinVertical(lipgloss.Left, header, "", list, "", footer, errorView)
	}

	status := ""
	if m.thinking {
		status = toolStyle.Render("thinking...")
	}
	return lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render("Pocket Agent"),
		"",
		m.viewport.View(),
		status,
		errorView,
		m.textarea.View(),
	)
}

// Actions

func (m model) selectMenuItem() (model, tea.Cmd) {
	switch m.cursor {
	case 0:
		m.current = nil
		m.state = stateChatting
		m.viewport.SetContent("New conversation. Type a message to begin.")
		m.textarea.Focus()
		return m, nil
	case 1:
		m.recent = m.manager.Recent()
		if len(m.recent) == 0 {
			m.err = fmt.Errorf("no recent conversations")
			return m, nil
		}
		m.state = stateSelectingConversation
		m.cursor = 0
		m.listOffset = 0
		return m, nil
	default:
		m.state = stateSelectingModel
		m.cursor = 0
		m.listOffset = 0
		return m, nil
	}
}

func (m model) selectModel() (model, tea.Cmd) {
	selected := models.Catalog[m.cursor]
	if err := m.cfg.SetModel(selected.Identifier); err != nil {
		return m, func() tea.Msg { return errMsg{err} }
	}
	m.state = stateMenu
	m.cursor = 0
	m.listOffset = 0
	return m, nil
}

func (m model) selectConversation() (model, tea.Cmd) {
	conv := m.recent[m.cursor]
	m.manager.SetCurrent(conv.ID)
	m.current = conv
	m.state = stateChatting
	m.viewport.SetContent(m.renderConversation(conv))
	m.viewport.GotoBottom()
	m.textarea.Focus()
	return m, nil
}

func (m model) sendMessage() (model, tea.Cmd) {
	v := strings.TrimSpace(m.textarea.Value())
	if v == "" {
		return m, nil
	}

	if v == "/exit" {
		return m, tea.Quit
	}

	if name, ok := strings.CutPrefix(v, "/model "); ok {
		m.textarea.Reset()
		identifier := models.Resolve(strings.TrimSpace(name)).Identifier
		if err := m.cfg.SetModel(identifier); err != nil {
			return m, func() tea.Msg { return errMsg{err} }
		}
		return m, nil
	}

	m.textarea.Reset()
	m.thinking = true

	// A brand-new conversation has to exist before the loop starts so the
	// update stream can be matched against it.
	if m.current == nil {
		created, err := m.runner.NewConversation(v)
		if err != nil {
			m.thinking = false
			return m, func() tea.Msg { return errMsg{err} }
		}
		m.current = created
	}

	conv := m.current
	r := m.runner
	ctx := m.ctx
	return m, func() tea.Msg {
		_, err := r.ProcessMessage(ctx, conv, v, "")
		return turnDoneMsg{err: err}
	}
}

func (m model) renderConversation(conv *agent.Conversation) string {
	var sb strings.Builder
	for _, msg := range conv.Messages {
		switch msg.Role {
		case agent.RoleSystem:
			continue
		case agent.RoleUser:
			sb.WriteString(userStyle.Render("User:"))
			sb.WriteString("\n")
			sb.WriteString(agent.FirstText(msg))
		case agent.RoleAssistant:
			sb.WriteString(senderStyle.Render("AI:"))
			sb.WriteString("\n")
			if len(msg.ToolCalls) > 0 {
				for _, tc := range msg.ToolCalls {
					sb.WriteString(toolStyle.Render(fmt.Sprintf("[Tool Call: %s %s]", tc.Function.Name, tc.Function.Arguments)))
					sb.WriteString("\n")
				}
			}
			if text := agent.FirstText(msg); text != agent.PlaceholderEmpty {
				rendered := text
				if m.renderer != nil {
					if out, err := m.renderer.Render(text); err == nil {
						rendered = out
					}
				}
				sb.WriteString(rendered)
			}
		case agent.RoleTool:
			sb.WriteString(toolStyle.Render(fmt.Sprintf("[Tool Result %s]", msg.ToolCallID)))
			sb.WriteString("\n")
			sb.WriteString(agent.FirstText(msg))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func waitForUpdate(sub <-chan string) tea.Cmd {
	return func() tea.Msg {
		id, ok := <-sub
		if !ok {
			return nil
		}
		return storeUpdateMsg(id)
	}
}

// --- Main ---

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pocketagent"
	}
	return filepath.Join(home, ".local", "share", "pocketagent")
}

func main() {
	dataDir := flag.String("data", defaultDataDir(), "data directory")
	serveAddr := flag.String("serve", "", "also serve the observer API on this address (e.g. :8080)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f, err := os.OpenFile(filepath.Join(os.TempDir(), "pocketagent.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	defer f.Close()

	logLevel := slog.LevelInfo
	if lv := os.Getenv("LOG_LEVEL"); lv != "" {
		switch strings.ToUpper(lv) {
		case "DEBUG":
			logLevel = slog.LevelDebug
		case "WARN":
			logLevel = slog.LevelWarn
		case "ERROR":
			logLevel = slog.LevelError
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := settings.Open(*dataDir)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	seedAPIKeys(cfg)

	manager, err := store.NewManager(filepath.Join(*dataDir, "conversations"))
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	registry, err := device.NewRegistry(device.NewSim())
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	r := runner.New(manager, registry, cfg, provider.NewClient(nil))
	r.SystemPrompt = "You are an assistant operating a mobile device on the user's behalf. " +
		"Use the available tools to inspect the screen and perform actions. " +
		"Reply in Markdown when you have finished."

	if *serveAddr != "" {
		srv := server.New(manager, r)
		go func() {
			if err := srv.Start(*serveAddr); err != nil {
				slog.Error("Server stopped", "error", err)
			}
		}()
	}

	updates, unsubscribe := manager.Subscribe()
	defer unsubscribe()

	p := tea.NewProgram(initialModel(ctx, cfg, manager, r, updates))
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}

// seedAPIKeys pulls keys from the environment into the settings store so
// first runs work without editing the TOML by hand.
func seedAPIKeys(cfg *settings.Store) {
	for env, p := range map[string]models.Provider{
		"OPENAI_API_KEY":     models.ProviderOpenAI,
		"GEMINI_API_KEY":     models.ProviderGemini,
		"OPENROUTER_API_KEY": models.ProviderOpenRouter,
	} {
		if key := os.Getenv(env); key != "" && cfg.APIKey(p) == "" {
			if err := cfg.SetAPIKey(p, key); err != nil {
				slog.Warn("Failed to store API key", "provider", p, "error", err)
			}
		}
	}
}
