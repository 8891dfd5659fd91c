package notifications

import (
	"bytes"
	"html/template"
)

var (
	receiptTmpl = template.Must(template.New("receipt").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Receipt {{.BookingID}}</title></head>
<body>
<h1>Booking receipt</h1>
<table>
<tr><th>Booking</th><td>{{.BookingID}}</td></tr>
<tr><th>Renter</th><td>{{.RenterName}}</td></tr>
<tr><th>Email</th><td>{{.Email}}</td></tr>
<tr><th>Phone</th><td>{{.Phone}}</td></tr>
<tr><th>Car</th><td>{{.CarID}}</td></tr>
<tr><th>Pickup</th><td>{{.Start}}</td></tr>
<tr><th>Return</th><td>{{.End}}</td></tr>
<tr><th>Total</th><td>{{.Total}}</td></tr>
{{if .TransactionRef}}<tr><th>Payment</th><td>{{.TransactionRef}}</td></tr>{{end}}
</table>
</body></html>
`))

	scheduledTmpl = template.Must(template.New("scheduled").Parse(`<p>Hello {{.RenterName}},</p>
<p>your booking {{.BookingID}} for car {{.CarID}} is confirmed from {{.Start}} to {{.End}}.</p>
<p>Total paid: {{.Total}}.</p>
{{if .ReceiptURL}}<p>Your receipt: <a href="{{.ReceiptURL}}">{{.ReceiptURL}}</a></p>{{end}}
`))

	cancelledTmpl = template.Must(template.New("cancelled").Parse(`<p>Hello {{.RenterName}},</p>
<p>your booking {{.BookingID}} from {{.Start}} to {{.End}} has been cancelled.</p>
<p>Cancellation penalty: {{.Penalty}}. Refund: {{.Refund}}.</p>
`))

	completedTmpl = template.Must(template.New("completed").Parse(`<p>Hello {{.RenterName}},</p>
<p>your rental {{.BookingID}} ended on {{.End}}. Thank you for driving with us.</p>
{{if .LatePenalty}}<p>Late return penalty: {{.LatePenalty}}.</p>{{end}}
`))
)

type view struct {
	BookingID      string
	RenterName     string
	Email          string
	Phone          string
	CarID          string
	Start          string
	End            string
	Total          string
	Penalty        string
	Refund         string
	LatePenalty    string
	TransactionRef string
	ReceiptURL     string
}

func render(t *template.Template, v view) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}
