// Package render draws the conversation and the hiring profile for a terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spigell/recruitgenie/internal/gateway"
	"github.com/spigell/recruitgenie/internal/recommend"
)

const (
	Title          = "AI Sales Agent - RecruitGenie"
	notSpecified   = "Not specified"
	noRoles        = "No roles specified"
	emptyProfile   = "Data will be extracted here as you chat."
	typingText     = "RecruitGenie is typing..."
	assistantLabel = "RecruitGenie"
	userLabel      = "You"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("36"))
	typingStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#AFAFAF"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoKeyStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	infoValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFDF5"))
	emptyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))

	profilePane = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	servicePane = lipgloss.NewStyle().
			BorderStyle(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("36")).
			Padding(0, 1)
)

func Header() string {
	return titleStyle.Render(Title)
}

// Message renders a single conversation turn.
func Message(m gateway.Message) string {
	label := assistantStyle.Render(assistantLabel)
	if m.Role == gateway.RoleUser {
		label = userStyle.Render(userLabel)
	}

	return fmt.Sprintf("%s: %s", label, m.Text)
}

// Conversation renders every turn, followed by the typing indicator while a reply is pending.
func Conversation(messages []gateway.Message, loading bool) string {
	lines := make([]string, 0, len(messages)+1)
	for _, m := range messages {
		lines = append(lines, Message(m))
	}

	if loading && len(messages) > 0 && messages[len(messages)-1].Role == gateway.RoleUser {
		lines = append(lines, Typing())
	}

	return strings.Join(lines, "\n\n")
}

func Typing() string {
	return typingStyle.Render(typingText)
}

func Notice(text string) string {
	return noticeStyle.Render(text)
}

// Profile renders the hiring profile panel and, when available, the recommended service.
func Profile(data *gateway.ExtractedData, service recommend.Service, recommended bool) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Hiring Profile"))
	b.WriteString("\n")

	if data == nil {
		b.WriteString(emptyStyle.Render(emptyProfile))
	} else {
		writeField(&b, "Industry", data.Industry)
		writeField(&b, "Location", data.Location)

		b.WriteString(infoKeyStyle.Render("Roles"))
		b.WriteString("\n")
		if len(data.Roles) == 0 {
			b.WriteString("  " + infoValueStyle.Render(noRoles) + "\n")
		}
		for _, r := range data.Roles {
			b.WriteString(fmt.Sprintf("  %s x%d\n", infoValueStyle.Render(r.Role), r.Count))
		}

		writeField(&b, "Urgency", capitalize(data.Urgency))
	}

	panel := profilePane.Render(strings.TrimRight(b.String(), "\n"))
	if !recommended {
		return panel
	}

	return lipgloss.JoinVertical(lipgloss.Left, panel, Service(service))
}

// Service renders the recommended service card.
func Service(service recommend.Service) string {
	body := titleStyle.Render("Recommended Service") + "\n" +
		infoKeyStyle.Render(service.Name) + "\n" +
		infoValueStyle.Render(service.Description)

	return servicePane.Render(body)
}

func writeField(b *strings.Builder, key, value string) {
	if strings.TrimSpace(value) == "" {
		value = notSpecified
	}

	b.WriteString(infoKeyStyle.Render(key))
	b.WriteString("\n  ")
	b.WriteString(infoValueStyle.Render(value))
	b.WriteString("\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}
