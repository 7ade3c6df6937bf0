package notify

import (
	"bytes"
	htmltmpl "html/template"
	texttmpl "text/template"
)

// CheckoutEmail is the rendered notification contract: everything the
// transport needs to confirm a checkout to a student.
type CheckoutEmail struct {
	Email        string
	StudentName  string
	ExamName     string
	CourseName   string
	CheckInTime  string
	CheckOutTime string
	ExamRoom     string
	DeviceName   string
}

// Subject is the fixed subject line for checkout confirmations.
const Subject = "Exam Checkout Confirmation"

var textBody = texttmpl.Must(texttmpl.New("text").Parse(`Hello {{.StudentName}},

Your checkout from {{.ExamName}} ({{.CourseName}}) has been recorded.

Check-in:  {{.CheckInTime}}
Check-out: {{.CheckOutTime}}
Room:      {{.ExamRoom}}
Device:    {{.DeviceName}}

If this was not you, please contact the exam office.
`))

var htmlBody = htmltmpl.Must(htmltmpl.New("html").Parse(`<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>Exam Checkout Confirmation</h2>
  <p>Hello {{.StudentName}},</p>
  <p>Your checkout from <strong>{{.ExamName}}</strong> ({{.CourseName}}) has been recorded.</p>
  <table cellpadding="4">
    <tr><td><strong>Check-in</strong></td><td>{{.CheckInTime}}</td></tr>
    <tr><td><strong>Check-out</strong></td><td>{{.CheckOutTime}}</td></tr>
    <tr><td><strong>Room</strong></td><td>{{.ExamRoom}}</td></tr>
    <tr><td><strong>Device</strong></td><td>{{.DeviceName}}</td></tr>
  </table>
  <p>If this was not you, please contact the exam office.</p>
</body>
</html>`))

// RenderText produces the plain-text body.
func (m CheckoutEmail) RenderText() (string, error) {
	var buf bytes.Buffer
	if err := textBody.Execute(&buf, m); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderHTML produces the HTML body.
func (m CheckoutEmail) RenderHTML() (string, error) {
	var buf bytes.Buffer
	if err := htmlBody.Execute(&buf, m); err != nil {
		return "", err
	}
	return buf.String(), nil
}
