package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docchat/internal/client"
	"docchat/internal/model"
	"docchat/internal/pkg/pdfcheck"
)

const uploadCommand = "/upload"

// DocChatPort is the TUI-facing subset of the docchat API.
type DocChatPort interface {
	Documents(ctx context.Context, refresh bool) ([]model.Document, error)
	Upload(ctx context.Context, name string, content []byte) (*model.UploadTask, error)
	Delete(ctx context.Context, name string) (*model.DeleteTask, error)
	Send(ctx context.Context, content string) ([]model.Message, error)
	Messages(ctx context.Context) (*client.ChatLog, error)
}

type docsLoadedMsg struct {
	docs []model.Document
	err  error
}

type chatLoadedMsg struct {
	log *client.ChatLog
	err error
}

type uploadDoneMsg struct {
	name string
	task *model.UploadTask
	err  error
}

type deleteDoneMsg struct {
	name string
	task *model.DeleteTask
	err  error
}

type chatDoneMsg struct {
	messages []model.Message
	err      error
}

// Model is the Bubble Tea model for the document chat UI.
type Model struct {
	api      DocChatPort
	input    textinput.Model
	viewport viewport.Model

	docs      []model.Document
	cursor    int
	messages  []model.Message
	uploading string
	deleting  map[string]bool
	awaiting  int

	status   string
	statusOK bool
	width    int
	ready    bool
}

func New(api DocChatPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or /upload <path to .pdf>"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		api:      api,
		input:    ti,
		viewport: viewport.New(0, 0),
		deleting: make(map[string]bool),
		status:   "Loading documents...",
		statusOK: true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadDocs(true), m.loadChat())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, vh := chatBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		m.viewport.Width = max(20, msg.Width-docPaneWidth-4)
		m.viewport.Height = max(3, msg.Height-vh-ih-3)
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, nil

	case docsLoadedMsg:
		if msg.err != nil {
			m.setStatus(false, "list: %v", msg.err)
			return m, nil
		}
		m.docs = msg.docs
		if m.cursor >= len(m.docs) {
			m.cursor = max(0, len(m.docs)-1)
		}
		// a failure line stays until the next user action
		if m.statusOK {
			m.setStatus(true, "%d document(s)", len(m.docs))
		}
		return m, nil

	case chatLoadedMsg:
		if msg.err != nil {
			m.setStatus(false, "chat: %v", msg.err)
			return m, nil
		}
		if len(m.messages) == 0 {
			m.messages = msg.log.Messages
			m.refreshChat()
		}
		return m, nil

	case uploadDoneMsg:
		m.uploading = ""
		if msg.err != nil {
			m.setStatus(false, "upload %s: %v", msg.name, msg.err)
			// a failed index leaves the object stored, so the list may still change
			return m, m.loadDocs(true)
		}
		m.setStatus(true, "upload %s: %s", msg.name, msg.task.Phase)
		return m, m.loadDocs(false)

	case deleteDoneMsg:
		delete(m.deleting, msg.name)
		if msg.err != nil {
			m.setStatus(false, "delete %s: %v", msg.name, msg.err)
			return m, nil
		}
		m.setStatus(true, "delete %s: done", msg.name)
		return m, m.loadDocs(false)

	case chatDoneMsg:
		m.awaiting--
		if msg.err != nil {
			m.messages = append(m.messages, model.Message{Role: model.RoleBot, Content: model.QueryFailedMessage, CreatedAt: time.Now()})
			m.setStatus(false, "chat: %v", msg.err)
		} else if len(msg.messages) > 1 {
			m.messages = append(m.messages, msg.messages[1:]...)
		}
		m.refreshChat()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlR:
			m.setStatus(true, "Refreshing...")
			return m, m.loadDocs(true)
		case tea.KeyCtrlD:
			return m.deleteSelected()
		case tea.KeyUp:
			if len(m.docs) > 0 {
				m.cursor = (m.cursor - 1 + len(m.docs)) % len(m.docs)
			}
			return m, nil
		case tea.KeyDown:
			if len(m.docs) > 0 {
				m.cursor = (m.cursor + 1) % len(m.docs)
			}
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return m, nil
	}
	m.input.SetValue("")

	if line == uploadCommand || strings.HasPrefix(line, uploadCommand+" ") {
		return m.startUpload(strings.TrimSpace(strings.TrimPrefix(line, uploadCommand)))
	}

	m.messages = append(m.messages, model.Message{Role: model.RoleUser, Content: line, CreatedAt: time.Now()})
	m.awaiting++
	m.refreshChat()
	api := m.api
	return m, func() tea.Msg {
		msgs, err := api.Send(context.Background(), line)
		return chatDoneMsg{messages: msgs, err: err}
	}
}

func (m Model) startUpload(path string) (tea.Model, tea.Cmd) {
	if path == "" {
		m.setStatus(false, "upload: usage %s <path to .pdf>", uploadCommand)
		return m, nil
	}
	if m.uploading != "" {
		m.setStatus(false, "upload: %s is still in progress", m.uploading)
		return m, nil
	}
	name := filepath.Base(path)
	if !pdfcheck.HasPDFExtension(name) {
		m.setStatus(false, "upload: please select a PDF file")
		return m, nil
	}

	m.uploading = name
	m.setStatus(true, "Uploading %s...", name)
	api := m.api
	return m, func() tea.Msg {
		content, err := os.ReadFile(path)
		if err != nil {
			return uploadDoneMsg{name: name, err: fmt.Errorf("read file failed: %w", err)}
		}
		task, err := api.Upload(context.Background(), name, content)
		return uploadDoneMsg{name: name, task: task, err: err}
	}
}

func (m Model) deleteSelected() (tea.Model, tea.Cmd) {
	if len(m.docs) == 0 {
		return m, nil
	}
	name := m.docs[m.cursor].Name
	if m.deleting[name] {
		return m, nil
	}
	m.deleting[name] = true
	m.setStatus(true, "Deleting %s...", name)
	api := m.api
	return m, func() tea.Msg {
		task, err := api.Delete(context.Background(), name)
		return deleteDoneMsg{name: name, task: task, err: err}
	}
}

func (m Model) loadDocs(refresh bool) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		docs, err := api.Documents(context.Background(), refresh)
		return docsLoadedMsg{docs: docs, err: err}
	}
}

func (m Model) loadChat() tea.Cmd {
	api := m.api
	return func() tea.Msg {
		log, err := api.Messages(context.Background())
		return chatLoadedMsg{log: log, err: err}
	}
}

func (m *Model) setStatus(ok bool, format string, args ...any) {
	m.statusOK = ok
	m.status = fmt.Sprintf(format, args...)
}

func (m *Model) refreshChat() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document Chat")
	docs := docBoxStyle.Height(m.viewport.Height).Render(m.renderDocs())
	chat := chatBoxStyle.Render(m.viewport.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, docs, chat)
	input := inputBoxStyle.Width(max(20, m.width-2)).Render(m.input.View())

	statusStyle := okStatusStyle
	if !m.statusOK {
		statusStyle = errStatusStyle
	}
	status := statusStyle.Render(m.status)
	help := helpStyle.Render("↑/↓ select  ctrl+d delete  ctrl+r refresh  esc quit")
	return header + "\n" + body + "\n" + input + "\n" + status + "  " + help
}

func (m Model) renderDocs() string {
	if len(m.docs) == 0 {
		return helpStyle.Render("No documents")
	}
	var b strings.Builder
	for i, d := range m.docs {
		line := truncate(d.Name, docPaneWidth-4)
		if m.deleting[d.Name] {
			line += " …"
		}
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	if m.uploading != "" {
		b.WriteString(helpStyle.Render("  + " + truncate(m.uploading, docPaneWidth-6)))
	}
	return b.String()
}

func (m Model) renderMessages() string {
	var b strings.Builder
	for _, msg := range m.messages {
		if msg.Role == model.RoleUser {
			b.WriteString(userStyle.Render("you: ") + msg.Content + "\n\n")
			continue
		}
		b.WriteString(botStyle.Render("bot: ") + msg.Content + "\n\n")
	}
	if m.awaiting > 0 {
		b.WriteString(helpStyle.Render("bot is thinking..."))
	}
	return lipgloss.NewStyle().Width(max(10, m.viewport.Width)).Render(b.String())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

const docPaneWidth = 32

var (
	docBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Width(docPaneWidth)
	chatBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStatusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStatusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
