package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/shlex"
	"github.com/urfave/cli/v3"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/cffi/abi"
	"github.com/wippyai/cffi/layout"
)

func (a *app) interactiveCommand() *cli.Command {
	return &cli.Command{
		Name:    "interactive",
		Aliases: []string{"i"},
		Usage:   "Browse and call exports in a terminal UI",
		Flags:   []cli.Flag{targetFlag(targetDirect, false)},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.String("target")
			target, closeTarget, err := a.openTarget(ctx, name)
			if err != nil {
				return err
			}
			defer closeTarget()

			p := tea.NewProgram(newInteractiveModel(ctx, target, name, a.styles), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	ctx      context.Context
	err      error
	target   abi.Target
	st       styles
	name     string
	result   string
	called   string
	funcs    []*abi.Export
	inputs   []textinput.Model
	line     textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type callResultMsg struct {
	err    error
	name   string
	result string
}

func newInteractiveModel(ctx context.Context, target abi.Target, name string, st styles) *interactiveModel {
	line := textinput.New()
	line.Prompt = "> "
	line.Placeholder = `greet "Ada Lovelace"`
	line.Width = 60
	line.Focus()
	return &interactiveModel{
		ctx:    ctx,
		target: target,
		st:     st,
		name:   name,
		funcs:  abi.Exports(),
		line:   line,
		state:  stateSelectFunc,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "up":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}
			return m, nil

		case "down":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}
			return m, nil

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if text := strings.TrimSpace(m.line.Value()); text != "" {
					m.line.Reset()
					return m, m.callLine(text)
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFields
				}
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.callFields

			case stateShowResult:
				m.reset()
				return m, nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}
			return m, nil

		case "esc":
			switch m.state {
			case stateSelectFunc:
				return m, tea.Quit
			case stateInputArgs, stateShowResult:
				m.reset()
			}
			return m, nil
		}

	case callResultMsg:
		m.called = msg.name
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
		return m, nil
	}

	var cmd tea.Cmd
	switch m.state {
	case stateSelectFunc:
		m.line, cmd = m.line.Update(msg)
	case stateInputArgs:
		cmds := make([]tea.Cmd, len(m.inputs))
		for i := range m.inputs {
			m.inputs[i], cmds[i] = m.inputs[i].Update(msg)
		}
		cmd = tea.Batch(cmds...)
	}
	return m, cmd
}

func (m *interactiveModel) reset() {
	m.state = stateSelectFunc
	m.inputs = nil
	m.result = ""
	m.err = nil
	m.line.Focus()
}

func (m *interactiveModel) prepareInputs() {
	params := m.funcs[m.selected].Inputs()
	m.inputs = make([]textinput.Model, len(params))
	for i, p := range params {
		ti := textinput.New()
		ti.Placeholder = placeholder(p)
		ti.Prompt = p.Name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
	m.line.Blur()
}

func (m *interactiveModel) callFields() tea.Msg {
	e := m.funcs[m.selected]
	raw := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		raw[i] = input.Value()
	}
	return m.call(e, raw)
}

// callLine runs a whole call typed on the command line, with shell quoting.
func (m *interactiveModel) callLine(text string) tea.Cmd {
	return func() tea.Msg {
		words, err := shlex.Split(text)
		if err != nil {
			return callResultMsg{name: text, err: err}
		}
		if len(words) == 0 {
			return callResultMsg{name: text, err: fmt.Errorf("empty command")}
		}
		e, ok := abi.Lookup(words[0])
		if !ok {
			return callResultMsg{name: words[0], err: fmt.Errorf("unknown function %q", words[0])}
		}
		return m.call(e, words[1:])
	}
}

func (m *interactiveModel) call(e *abi.Export, raw []string) callResultMsg {
	args, err := abi.ParseArgs(e, raw)
	if err != nil {
		return callResultMsg{name: e.Name, err: err}
	}
	out, err := abi.Invoke(m.ctx, m.target, e.Name, args...)
	if err != nil {
		return callResultMsg{name: e.Name, err: err}
	}
	return callResultMsg{name: e.Name, result: formatResults(out)}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(m.st.title.Render("cffi"))
	b.WriteString(" ")
	b.WriteString(m.name)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function, or type a call:\n\n")
		for i, e := range m.funcs {
			if i == m.selected {
				b.WriteString(m.st.selected.Render("> " + e.CDecl()))
			} else {
				b.WriteString("  " + m.formatFunc(e))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(m.line.View())
		b.WriteString("\n\n")
		b.WriteString(m.st.help.Render("↑/↓ select • enter call • esc quit"))

	case stateInputArgs:
		e := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n", m.st.fn.Render(e.Name)))
		b.WriteString(m.st.help.Render(e.Doc))
		b.WriteString("\n\n")
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(m.st.typ.Render(witTypeStr(e.Inputs()[i].Type)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(m.st.help.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", m.st.fn.Render(m.called)))
		if m.err != nil {
			b.WriteString(m.st.err.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(m.st.result.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(m.st.help.Render("enter continue • ctrl+c quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatFunc(e *abi.Export) string {
	var params []string
	for _, p := range e.Inputs() {
		params = append(params, p.Name+": "+m.st.typ.Render(witTypeStr(p.Type)))
	}
	return m.st.fn.Render(e.Name) + "(" + strings.Join(params, ", ") + ")"
}

func placeholder(p abi.Param) string {
	switch {
	case p.Mode == abi.ModeBuffer:
		return "capacity in bytes"
	case p.Type == layout.I32ListType:
		return "5,2,8"
	case p.Type == layout.PointType:
		return "x,y"
	}
	return witTypeStr(p.Type)
}

func witTypeStr(t wit.Type) string {
	switch v := t.(type) {
	case wit.S32:
		return "s32"
	case wit.U32:
		return "u32"
	case wit.F64:
		return "f64"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if l, ok := v.Kind.(*wit.List); ok {
			return "list<" + witTypeStr(l.Type) + ">"
		}
		if v.Name != nil {
			return *v.Name
		}
		return "typedef"
	default:
		return fmt.Sprintf("%T", t)
	}
}
