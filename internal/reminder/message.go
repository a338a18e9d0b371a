package reminder

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"courtside/internal/mailer"
	"courtside/internal/students"
)

// Subject of the low-balance email.
const Subject = "Reminder: Only 1 Badminton Class Remaining"

const bodyTemplate = `## Class Reminder

Hello %s,

This is a friendly reminder that you have **only 1 badminton class remaining**.

Please consider purchasing more classes to continue your training without interruption.

> **Next Steps:**
> Please contact your coach to purchase additional classes.

Thank you,
Your Badminton Coach
`

// Raw HTML in the markdown source is not rendered, so student names cannot
// inject markup.
var md = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// Compose builds the reminder for st. The markdown source doubles as the
// plain-text body.
func Compose(st students.Student) (mailer.Message, error) {
	text := fmt.Sprintf(bodyTemplate, st.Name)

	var buf bytes.Buffer
	buf.WriteString(`<div style="font-family: Arial, sans-serif; max-width: 600px;">`)
	if err := md.Convert([]byte(fmt.Sprintf(bodyTemplate, html.EscapeString(st.Name))), &buf); err != nil {
		return mailer.Message{}, fmt.Errorf("render reminder: %w", err)
	}
	buf.WriteString(`</div>`)

	return mailer.Message{
		To:      st.NotificationEmail,
		Subject: Subject,
		Text:    text,
		HTML:    buf.String(),
	}, nil
}
