package email

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Booking holds what a guest-facing message needs. Date and time are the values the
// guest submitted, shown with the guest's timezone.
type Booking struct {
	BookingID       string
	MeetingTypeName string
	GuestName       string
	Date            string
	Time            string
	Timezone        string
	DurationMinutes int
}

type Message struct {
	Subject string
	Body    string
}

var (
	confirmedTmpl = template.Must(template.New("confirmed").Parse(`Hi {{.GuestName}},

Your {{.MeetingTypeName}} is confirmed for {{.Date}} at {{.Time}} ({{.Timezone}}), {{.DurationMinutes}} minutes.

Booking reference: {{.BookingID}}
`))
	cancelledTmpl = template.Must(template.New("cancelled").Parse(`Hi {{.GuestName}},

Your {{.MeetingTypeName}} on {{.Date}} at {{.Time}} ({{.Timezone}}) has been cancelled.

Booking reference: {{.BookingID}}
`))
)

func RenderConfirmed(b Booking) (Message, error) {
	body, err := render(confirmedTmpl, b)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Subject: fmt.Sprintf("Confirmed: %s on %s at %s", b.MeetingTypeName, b.Date, b.Time),
		Body:    body,
	}, nil
}

func RenderCancelled(b Booking) (Message, error) {
	body, err := render(cancelledTmpl, b)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Subject: fmt.Sprintf("Cancelled: %s on %s at %s", b.MeetingTypeName, b.Date, b.Time),
		Body:    body,
	}, nil
}

func render(t *template.Template, b Booking) (string, error) {
	if strings.TrimSpace(b.GuestName) == "" {
		b.GuestName = "there"
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, b); err != nil {
		return "", err
	}
	return buf.String(), nil
}
