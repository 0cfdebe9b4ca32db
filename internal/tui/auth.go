package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/todo/internal/controller"
)

type authField int

const (
	fieldRegisterUser authField = iota
	fieldRegisterPass
	fieldLoginUser
	fieldLoginPass
	numAuthFields
)

// authModel holds the register and login forms shown while logged out.
type authModel struct {
	inputs      [numAuthFields]textinput.Model
	focus       authField
	registerMsg string
	loginMsg    string
}

func newAuthModel() authModel {
	var m authModel
	m.inputs[fieldRegisterUser] = newInput("username", false)
	m.inputs[fieldRegisterPass] = newInput("password", true)
	m.inputs[fieldLoginUser] = newInput("username", false)
	m.inputs[fieldLoginPass] = newInput("password", true)
	return m.focusField(fieldLoginUser)
}

func (m authModel) focusField(f authField) authModel {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	m.focus = f
	m.inputs[f].Focus()
	return m
}

// form returns the action submitted by enter from the focused field.
func (m authModel) form() controller.Action {
	if m.focus <= fieldRegisterPass {
		return controller.ActionRegister
	}
	return controller.ActionLogin
}

// values returns the raw username and password of the form behind a.
func (m authModel) values(a controller.Action) (string, string) {
	if a == controller.ActionRegister {
		return m.inputs[fieldRegisterUser].Value(), m.inputs[fieldRegisterPass].Value()
	}
	return m.inputs[fieldLoginUser].Value(), m.inputs[fieldLoginPass].Value()
}

func (m authModel) clear(a controller.Action) authModel {
	if a == controller.ActionRegister {
		m.inputs[fieldRegisterUser].Reset()
		m.inputs[fieldRegisterPass].Reset()
		return m
	}
	m.inputs[fieldLoginUser].Reset()
	m.inputs[fieldLoginPass].Reset()
	return m
}

func (m authModel) Update(msg tea.Msg) (authModel, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "tab", "down":
			return m.focusField((m.focus + 1) % numAuthFields), nil
		case "shift+tab", "up":
			return m.focusField((m.focus + numAuthFields - 1) % numAuthFields), nil
		}
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m authModel) View() string {
	var b strings.Builder
	section := func(title string, user, pass authField, msg string) {
		label := sectionHeaderStyle.Render(title)
		if m.focus == user || m.focus == pass {
			label = searchStyle.Render(title)
		}
		b.WriteString("  " + label + "\n")
		b.WriteString("  " + m.inputs[user].View() + "\n")
		b.WriteString("  " + m.inputs[pass].View() + "\n")
		if msg != "" {
			b.WriteString("  " + messageStyle(msg).Render(msg) + "\n")
		}
		b.WriteString("\n")
	}
	section("Register", fieldRegisterUser, fieldRegisterPass, m.registerMsg)
	section("Login", fieldLoginUser, fieldLoginPass, m.loginMsg)
	return b.String()
}

// messageStyle colors failures red and everything else gold.
func messageStyle(msg string) lipgloss.Style {
	if strings.Contains(msg, " failed: ") || strings.Contains(msg, " error: ") {
		return rejectStyle
	}
	return goldStyle
}
