package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/oshokin/drowsiness-monitor/internal/domain/drowsiness"
)

// AlarmTitle heads the push sent when the local alarm fires.
const AlarmTitle = "Drowsiness Alert!"

// markdownEscaper escapes the characters legacy Telegram Markdown treats as entity markers.
var markdownEscaper = strings.NewReplacer(`_`, `\_`, `*`, `\*`, "`", "\\`", `[`, `\[`)

// EscapeMarkdown makes s render literally inside a Markdown message.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// FormatAlarm builds the push for the local alarm.
func FormatAlarm(duration time.Duration, actor *drowsiness.Actor) Message {
	body := fmt.Sprintf("Driver is drowsy for %s!", formatSeconds(duration))
	if actor != nil {
		body += " Host: " + actor.String()
	}

	return Message{
		Title: AlarmTitle,
		Body:  body,
	}
}

// FormatEscalation builds the Markdown message for the escalation channel.
// location is either a map link or a sentinel text; only links are rendered as Markdown links.
func FormatEscalation(duration time.Duration, location string, actor *drowsiness.Actor) Message {
	var b strings.Builder

	b.WriteString("🚨 *DROWSINESS ALERT!* 🚨\n\n")
	fmt.Fprintf(&b, "⚠️ Driver has been drowsy for *%s*!\n", formatSeconds(duration))

	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		fmt.Fprintf(&b, "📍 Location: [Google Maps](%s)\n", location)
	} else {
		fmt.Fprintf(&b, "📍 Location: %s\n", EscapeMarkdown(location))
	}

	if actor != nil {
		fmt.Fprintf(&b, "💻 Host: %s\n", EscapeMarkdown(actor.String()))
	}

	b.WriteString("\nPlease check on them immediately!")

	return Message{
		Title: AlarmTitle,
		Body:  b.String(),
	}
}

// formatSeconds renders a duration the way drivers read it: "5.2 seconds".
func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.1f seconds", d.Seconds())
}
