// Package tui はTodo一覧のターミナル画面です。viewmodel.State を描画し、
// キー入力を楽観的な変更に変換します。変更のネットワーク部分は tea.Cmd で実行します。
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"go-todo-app/internal/viewmodel"
)

type loadedMsg struct{ err error }

type committedMsg struct{ err error }

// Model は viewmodel.State を表示する tea.Model です。
type Model struct {
	ctx   context.Context
	state *viewmodel.State

	cursor  int
	loading bool
	spinner spinner.Model
	keys    keyMap
	help    help.Model

	// 追加フォーム
	adding bool
	focus  int // 0: タイトル, 1: 説明
	title  textinput.Model
	desc   textinput.Model
	addErr string
}

// New は state に紐づいた Model を返します。ctx はすべての API 呼び出しに渡されます。
func New(ctx context.Context, state *viewmodel.State) Model {
	title := textinput.New()
	title.Prompt = "> "
	title.Placeholder = "New todo..."

	desc := textinput.New()
	desc.Prompt = "  "
	desc.Placeholder = "Description (optional)..."

	return Model{
		ctx:     ctx,
		state:   state,
		loading: true,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		keys:    defaultKeyMap(),
		help:    help.New(),
		title:   title,
		desc:    desc,
	}
}

// Init は初回の読み込みを開始します。
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{err: m.state.Load(m.ctx)}
	}
}

func (m Model) commit(c viewmodel.Commit) tea.Cmd {
	return func() tea.Msg {
		return committedMsg{err: c(m.ctx)}
	}
}

// Update はメッセージに応じて状態を更新します。
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil
	case loadedMsg:
		m.loading = false
		m.clampCursor()
		return m, nil
	case committedMsg:
		m.clampCursor()
		return m, nil
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		// ctrl+c はフォーム入力中でも終了する
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.adding {
			return m.updateAdding(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	todos := m.state.Snapshot().Todos

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(todos)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Add):
		m.adding = true
		m.focus = 0
		m.addErr = ""
		m.title.Reset()
		m.desc.Reset()
		m.desc.Blur()
		return m, m.title.Focus()
	case key.Matches(msg, m.keys.Done):
		if m.cursor < len(todos) && !todos[m.cursor].Done {
			return m, m.commit(m.state.MarkDone(todos[m.cursor].ID))
		}
	case key.Matches(msg, m.keys.Delete):
		if m.cursor < len(todos) {
			c := m.state.Delete(todos[m.cursor].ID)
			m.clampCursor()
			return m, m.commit(c)
		}
	case key.Matches(msg, m.keys.Reload):
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, m.load())
	}
	return m, nil
}

func (m Model) updateAdding(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		c, err := m.state.Add(m.title.Value(), m.desc.Value())
		if err != nil {
			m.addErr = "Title cannot be empty"
			return m, nil
		}
		m.adding = false
		m.title.Blur()
		m.desc.Blur()
		m.cursor = 0
		return m, m.commit(c)
	case "esc":
		m.adding = false
		m.title.Blur()
		m.desc.Blur()
		return m, nil
	case "tab", "shift+tab":
		if m.focus == 0 {
			m.focus = 1
			m.title.Blur()
			return m, m.desc.Focus()
		}
		m.focus = 0
		m.desc.Blur()
		return m, m.title.Focus()
	}

	var cmd tea.Cmd
	if m.focus == 0 {
		m.title, cmd = m.title.Update(msg)
	} else {
		m.desc, cmd = m.desc.Update(msg)
	}
	return m, cmd
}

func (m *Model) clampCursor() {
	n := len(m.state.Snapshot().Todos)
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// View は画面を描画します。
func (m Model) View() string {
	snap := m.state.Snapshot()

	var b strings.Builder
	done, pending := stats(snap)
	fmt.Fprintf(&b, "%s   %s %d  %s %d\n",
		titleStyle.Render("Todos"),
		successStyle.Render("✔"), done,
		pendingStyle.Render("•"), pending,
	)

	switch {
	case m.loading || snap.Loading:
		b.WriteString(m.spinner.View() + " Loading...\n")
	case snap.LastError != "":
		b.WriteString(errorStyle.Render("Error: "+snap.LastError) + "\n")
	default:
		b.WriteString(mutedStyle.Render(fmt.Sprintf("count: %d", len(snap.Todos))) + "\n")
	}
	b.WriteString("\n")

	if len(snap.Todos) == 0 && !m.loading {
		b.WriteString(mutedStyle.Render("No todos yet. Press a to add one.") + "\n")
	}
	for i, t := range snap.Todos {
		box, text := mutedStyle.Render(boxUnchecked), t.Title
		if t.Done {
			box, text = successStyle.Render(boxChecked), doneStyle.Render(t.Title)
		}
		if viewmodel.IsPlaceholder(t.ID) {
			text += mutedStyle.Render(" (saving)")
		}
		prefix := "  "
		if i == m.cursor {
			prefix = selectedStyle.Render("> ")
		}
		b.WriteString(prefix + box + " " + text + "\n")
		if t.Description != nil {
			b.WriteString(descStyle.Render(*t.Description) + "\n")
		}
	}

	if m.adding {
		heading := "Add new todo (tab: switch field, enter: save, esc: cancel)"
		if m.addErr != "" {
			heading += " " + errorStyle.Render(m.addErr)
		}
		b.WriteString("\n" + panelStyle.Render(heading+"\n"+m.title.View()+"\n"+m.desc.View()) + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return panelStyle.Render(b.String())
}

func stats(snap viewmodel.Snapshot) (done, pending int) {
	for _, t := range snap.Todos {
		if t.Done {
			done++
		} else {
			pending++
		}
	}
	return
}
