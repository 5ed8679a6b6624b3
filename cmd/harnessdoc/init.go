// init.go — project scaffolding with interactive prompts.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// question is one metadata prompt shown during init.
type question struct {
	key    string
	prompt string
}

var initQuestions = []question{
	{"id", "Document id (e.g. HD-0001)"},
	{"title", "Document title"},
	{"revision", "Revision (e.g. A)"},
	{"author", "Drawn by"},
	{"project", "Project name (optional)"},
}

func runInit(args []string) (int, error) {
	if len(args) < 1 {
		return 1, fmt.Errorf("usage: harnessdoc init <dir>")
	}
	dir := args[0]
	if _, err := os.Stat(filepath.Join(dir, ".harnessdoc")); err == nil {
		return 1, fmt.Errorf("%s already holds a harnessdoc project", dir)
	}

	answers, err := promptQuestions(initQuestions)
	if err != nil {
		return 1, fmt.Errorf("prompt: %w", err)
	}

	if err := scaffold(dir, answers); err != nil {
		return 1, err
	}
	fmt.Printf("created project in %s\n", dir)
	fmt.Printf("edit %s and run 'harnessdoc build %s'\n",
		filepath.Join(dir, "harness.yaml"), filepath.Join(dir, "harness.yaml"))
	return 0, nil
}

// scaffold writes the starter document and settings.
func scaffold(dir string, answers map[string]string) error {
	if err := os.MkdirAll(filepath.Join(dir, ".harnessdoc"), 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(dir, "images"), 0o755); err != nil {
		return err
	}

	doc := fmt.Sprintf(`meta:
  id: %s
  title: %s
  revision: %s
  date: %s
  author: %s
  project: %s

parts:
  conn-2p:
    manufacturer: Deutsch
    mpn: DT04-2P
    description: 2-way receptacle

connectors:
  J1:
    part: conn-2p
    pincount: 2
    pinlabels: [PWR, GND]
  J2:
    part: conn-2p
    pincount: 2

cables:
  W1:
    wirecount: 2
    colors: [RD, BK]
    gauge: 22 AWG
    length: {value: 1.0, unit: m}

connections:
  - from: {connector: J1, pin: PWR}
    cable: W1
    core: 1
    to: {connector: J2, pin: "1"}
  - from: {connector: J1, pin: GND}
    cable: W1
    core: 2
    to: {connector: J2, pin: "2"}
`,
		yamlScalar(answers["id"]),
		yamlScalar(answers["title"]),
		yamlScalar(answers["revision"]),
		today(),
		yamlScalar(answers["author"]),
		yamlScalar(answers["project"]))

	settingsFile := `images:
  dir: images
  missing: allow
output: build
strict: false
`

	if err := os.WriteFile(filepath.Join(dir, "harness.yaml"), []byte(doc), 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ".harnessdoc", "settings.yaml"), []byte(settingsFile), 0o644)
}

func today() string { return time.Now().Format("2006-01-02") }

// yamlScalar quotes a scalar when it could be misread as YAML syntax.
func yamlScalar(s string) string {
	if s == "" {
		return `""`
	}
	for _, r := range s {
		switch r {
		case ':', '#', '{', '}', '[', ']', ',', '&', '*', '!', '|', '>', '\'', '"', '%', '@', '`':
			return fmt.Sprintf("%q", s)
		}
	}
	return s
}

// ---------------------------------------------------------------------------
// TUI prompt helpers
// ---------------------------------------------------------------------------

// promptModel is a bubbletea model that asks one question at a time.
type promptModel struct {
	questions []question
	idx       int
	inputs    []textinput.Model
	done      bool
}

func newPromptModel(questions []question) promptModel {
	inputs := make([]textinput.Model, len(questions))
	for i, q := range questions {
		ti := textinput.New()
		ti.Placeholder = q.prompt
		ti.CharLimit = 256
		inputs[i] = ti
	}
	m := promptModel{
		questions: questions,
		inputs:    inputs,
	}
	if len(inputs) > 0 {
		m.inputs[0].Focus()
	}
	return m
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.idx < len(m.inputs)-1 {
				m.inputs[m.idx].Blur()
				m.idx++
				m.inputs[m.idx].Focus()
				return m, textinput.Blink
			}
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.inputs[m.idx], cmd = m.inputs[m.idx].Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.done || len(m.questions) == 0 {
		return ""
	}
	q := m.questions[m.idx]
	return fmt.Sprintf("%s: %s\n", q.prompt, m.inputs[m.idx].View())
}

// promptQuestions runs the TUI and returns answers keyed by question.key.
func promptQuestions(questions []question) (map[string]string, error) {
	if len(questions) == 0 {
		return map[string]string{}, nil
	}
	m := newPromptModel(questions)
	p := tea.NewProgram(m)
	result, err := p.Run()
	if err != nil {
		return nil, err
	}
	final, ok := result.(promptModel)
	if !ok || !final.done {
		return nil, fmt.Errorf("prompt cancelled")
	}
	answers := make(map[string]string, len(questions))
	for i, q := range questions {
		answers[q.key] = final.inputs[i].Value()
	}
	return answers, nil
}
