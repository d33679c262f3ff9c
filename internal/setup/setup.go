// Package setup provides the interactive wizard that writes research.toml.
package setup

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/vinayprograms/agentkit/credentials"
	"github.com/vinayprograms/hekmatica/internal/config"
)

// Provider options
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderGroq      = "groq"
	ProviderMistral   = "mistral"
)

// Answers holds what the user picked.
type Answers struct {
	Provider       string
	Model          string
	APIKey         string // written to credentials.toml, never to research.toml
	SearchBackend  string
	RecordSessions bool
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("170")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// Step represents a setup wizard step
type Step int

const (
	StepWelcome Step = iota
	StepProvider
	StepModel
	StepAPIKey
	StepSearch
	StepSessions
	StepConfirm
	StepComplete
)

type option struct {
	id   string
	name string
	desc string
}

var providers = []option{
	{ProviderAnthropic, "Anthropic", "Claude models (recommended)"},
	{ProviderOpenAI, "OpenAI", "GPT-4o, o3 models"},
	{ProviderGoogle, "Google", "Gemini models"},
	{ProviderGroq, "Groq", "Fast inference (Llama, Mixtral)"},
	{ProviderMistral, "Mistral", "Mistral models"},
}

var searchBackends = []option{
	{"duckduckgo", "DuckDuckGo", "No API key needed"},
	{"brave", "Brave Search", "Needs BRAVE_API_KEY"},
	{"tavily", "Tavily", "Needs TAVILY_API_KEY"},
}

var yesNo = []option{
	{"yes", "Yes", "Write a JSONL transcript per run"},
	{"no", "No", ""},
}

// Model is the bubbletea model for the setup wizard
type Model struct {
	step      Step
	answers   Answers
	cursor    int
	textInput textinput.Model
	path      string
	err       error
	written   []string
}

type filesWrittenMsg struct{ files []string }

type errMsg struct{ error }

// New creates a wizard that writes its result to path.
func New(path string) Model {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 50

	return Model{
		step:      StepWelcome,
		textInput: ti,
		path:      path,
		answers: Answers{
			Provider:       ProviderAnthropic,
			SearchBackend:  "duckduckgo",
			RecordSessions: true,
		},
	}
}

// Answers returns the current selections.
func (m Model) Answers() Answers {
	return m.answers
}

// Err returns the error that ended the wizard, if any.
func (m Model) Err() error {
	return m.err
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case filesWrittenMsg:
		m.written = msg.files
		m.step = StepComplete
		return m, nil
	case errMsg:
		m.err = msg.error
		m.step = StepComplete
		return m, nil

	case tea.KeyMsg:
		if m.isTextInputStep() {
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "enter":
				return m.handleEnter()
			default:
				var cmd tea.Cmd
				m.textInput, cmd = m.textInput.Update(msg)
				return m, cmd
			}
		}

		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.step == StepComplete || m.step == StepWelcome {
				return m, tea.Quit
			}
			m.step--
			m.cursor = 0
			return m, nil
		case "enter":
			return m.handleEnter()
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "j":
			if m.cursor < len(m.options())-1 {
				m.cursor++
			}
			return m, nil
		}
	}
	return m, nil
}

func (m Model) isTextInputStep() bool {
	return m.step == StepModel || m.step == StepAPIKey
}

func (m Model) options() []option {
	switch m.step {
	case StepProvider:
		return providers
	case StepSearch:
		return searchBackends
	case StepSessions:
		return yesNo
	case StepConfirm:
		return []option{{id: "write", name: "Write files"}, {id: "back", name: "Go back"}}
	}
	return nil
}

func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	switch m.step {
	case StepWelcome:
		m.step = StepProvider
		m.cursor = 0

	case StepProvider:
		m.answers.Provider = providers[m.cursor].id
		m.answers.Model = defaultModel(m.answers.Provider)
		m.step = StepModel
		m.textInput.SetValue(m.answers.Model)
		m.textInput.Placeholder = "model name"
		m.textInput.EchoMode = textinput.EchoNormal

	case StepModel:
		model := strings.TrimSpace(m.textInput.Value())
		if model == "" {
			m.err = fmt.Errorf("model name is required")
			return m, nil
		}
		m.err = nil
		m.answers.Model = model
		m.step = StepAPIKey
		m.textInput.SetValue("")
		m.textInput.Placeholder = "sk-... (leave empty to use the environment)"
		m.textInput.EchoMode = textinput.EchoPassword

	case StepAPIKey:
		m.answers.APIKey = strings.TrimSpace(m.textInput.Value())
		m.textInput.SetValue("")
		m.step = StepSearch
		m.cursor = 0

	case StepSearch:
		m.answers.SearchBackend = searchBackends[m.cursor].id
		m.step = StepSessions
		m.cursor = 0

	case StepSessions:
		m.answers.RecordSessions = yesNo[m.cursor].id == "yes"
		m.step = StepConfirm
		m.cursor = 0

	case StepConfirm:
		if m.cursor == 1 {
			m.step = StepProvider
			m.cursor = 0
			return m, nil
		}
		return m, m.writeFiles()

	case StepComplete:
		return m, tea.Quit
	}
	return m, nil
}

// View renders the current step.
func (m Model) View() string {
	var s strings.Builder
	switch m.step {
	case StepWelcome:
		s.WriteString(titleStyle.Render("Research Assistant Setup") + "\n\n")
		s.WriteString(normalStyle.Render("This wizard writes "+m.path+".") + "\n\n")
		s.WriteString(dimStyle.Render("Press Enter to continue, q to quit"))
	case StepProvider:
		s.WriteString(m.viewList("LLM Provider", "Select the provider used for reasoning"))
	case StepModel:
		s.WriteString(m.viewInput("Model Name", "Enter the model to use"))
	case StepAPIKey:
		s.WriteString(m.viewInput("API Key", "Enter your API key for "+m.answers.Provider))
		s.WriteString("\n" + dimStyle.Render("Stored in "+credentials.DefaultPath()))
	case StepSearch:
		s.WriteString(m.viewList("Web Search", "Select the search backend"))
	case StepSessions:
		s.WriteString(m.viewList("Transcripts", "Record each run for replay?"))
	case StepConfirm:
		s.WriteString(m.viewConfirm())
	case StepComplete:
		s.WriteString(m.viewComplete())
	}
	return s.String()
}

func (m Model) viewList(title, subtitle string) string {
	var s strings.Builder
	s.WriteString(titleStyle.Render(title) + "\n")
	s.WriteString(subtitleStyle.Render(subtitle) + "\n\n")
	for i, opt := range m.options() {
		cursor := "  "
		style := normalStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedStyle
		}
		s.WriteString(cursor + style.Render(opt.name) + " " + dimStyle.Render(opt.desc) + "\n")
	}
	s.WriteString("\n" + dimStyle.Render("↑/↓ to move, Enter to select, q to go back"))
	return s.String()
}

func (m Model) viewInput(title, subtitle string) string {
	var s strings.Builder
	s.WriteString(titleStyle.Render(title) + "\n")
	s.WriteString(subtitleStyle.Render(subtitle) + "\n\n")
	s.WriteString(m.textInput.View() + "\n\n")
	if m.err != nil {
		s.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	}
	s.WriteString(dimStyle.Render("Enter to continue"))
	return s.String()
}

func (m Model) viewConfirm() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Configuration Summary") + "\n\n")
	s.WriteString(normalStyle.Render("Provider: ") + selectedStyle.Render(m.answers.Provider) + "\n")
	s.WriteString(normalStyle.Render("Model: ") + selectedStyle.Render(m.answers.Model) + "\n")
	s.WriteString(normalStyle.Render("Search: ") + selectedStyle.Render(m.answers.SearchBackend) + "\n")
	s.WriteString(normalStyle.Render("Record sessions: ") + selectedStyle.Render(fmt.Sprint(m.answers.RecordSessions)) + "\n\n")
	for i, opt := range m.options() {
		cursor := "  "
		style := normalStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedStyle
		}
		s.WriteString(cursor + style.Render(opt.name) + "\n")
	}
	return s.String()
}

func (m Model) viewComplete() string {
	if m.err != nil {
		return errorStyle.Render("Error") + "\n\n" +
			normalStyle.Render(m.err.Error()) + "\n\n" +
			dimStyle.Render("Press q to exit")
	}
	var s strings.Builder
	s.WriteString(successStyle.Render("✓ Setup Complete!") + "\n\n")
	s.WriteString(normalStyle.Render("Created files:") + "\n")
	for _, f := range m.written {
		s.WriteString(dimStyle.Render("  - "+f) + "\n")
	}
	s.WriteString("\n" + dimStyle.Render("Run: hekmatica \"your question\"") + "\n")
	s.WriteString("\n" + dimStyle.Render("Press q to exit"))
	return s.String()
}

func (m Model) writeFiles() tea.Cmd {
	answers := m.answers
	path := m.path
	return func() tea.Msg {
		files := []string{}
		if err := WriteConfig(path, BuildConfig(answers)); err != nil {
			return errMsg{err}
		}
		files = append(files, path)

		if answers.APIKey != "" {
			creds, _, _ := credentials.Load()
			if creds == nil {
				creds = &credentials.Credentials{}
			}
			creds.SetAPIKey(answers.Provider, answers.APIKey)
			if err := creds.Save(); err != nil {
				return errMsg{fmt.Errorf("saving credentials: %w", err)}
			}
			files = append(files, credentials.DefaultPath())
		}
		return filesWrittenMsg{files}
	}
}

// BuildConfig turns wizard answers into a config with defaults elsewhere.
func BuildConfig(a Answers) *config.Config {
	cfg := config.New()
	cfg.LLM.Provider = a.Provider
	cfg.LLM.Model = a.Model
	cfg.Search.Backend = a.SearchBackend
	cfg.Storage.RecordSessions = a.RecordSessions
	return cfg
}

// WriteConfig encodes cfg as TOML to path.
func WriteConfig(path string, cfg *config.Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString("# Research configuration\n# Generated by: hekmatica setup\n\n"); err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}

func defaultModel(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "claude-sonnet-4-20250514"
	case ProviderOpenAI:
		return "gpt-4o"
	case ProviderGoogle:
		return "gemini-2.0-flash"
	case ProviderGroq:
		return "llama-3.3-70b-versatile"
	case ProviderMistral:
		return "mistral-large-latest"
	default:
		return ""
	}
}

// Run starts the setup wizard.
func Run(path string) error {
	final, err := tea.NewProgram(New(path)).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok && m.err != nil {
		return m.err
	}
	return nil
}
