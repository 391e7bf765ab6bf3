package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"bestsellers-etl/utils"
)

// Mailer sends HTML mail.
type Mailer interface {
	SendMail(to []string, subject, html string) error
}

// EmailNotifier mails a summary of failed dates to a fixed recipient list.
type EmailNotifier struct {
	mailer     Mailer
	recipients []string
}

func NewEmailNotifier(mailer Mailer, recipients []string) *EmailNotifier {
	return &EmailNotifier{mailer: mailer, recipients: recipients}
}

type failedDateView struct {
	RequestedDate string
	ResolvedDate  string
	Error         string
}

var failureTemplate = template.Must(template.New("failures").Parse(`<h2>Bestsellers {{.Mode}} load finished with failures</h2>
<p>Run {{.RunUUID}} covering {{.Start}} to {{.End}}: {{.Succeeded}} succeeded ({{.Skipped}} skipped), {{.Failed}} failed.</p>
<table border="1" cellpadding="4">
<tr><th>Requested</th><th>Resolved</th><th>Error</th></tr>
{{range .Dates}}<tr><td>{{.RequestedDate}}</td><td>{{.ResolvedDate}}</td><td>{{.Error}}</td></tr>
{{end}}</table>`))

func (n *EmailNotifier) NotifyRunFailures(_ context.Context, summary *RunSummary) error {
	if n == nil || n.mailer == nil || len(n.recipients) == 0 || summary == nil || summary.Failed == 0 {
		return nil
	}

	view := struct {
		Mode, RunUUID, Start, End  string
		Succeeded, Skipped, Failed int
		Dates                      []failedDateView
	}{
		Mode:      summary.Mode,
		RunUUID:   summary.RunUUID,
		Start:     utils.FormatDate(summary.Start),
		End:       utils.FormatDate(summary.End),
		Succeeded: summary.Succeeded,
		Skipped:   summary.Skipped,
		Failed:    summary.Failed,
	}
	for _, d := range summary.Dates {
		if d.Outcome != OutcomeFailed {
			continue
		}
		row := failedDateView{RequestedDate: utils.FormatDate(d.RequestedDate)}
		if d.ResolvedDate != nil {
			row.ResolvedDate = utils.FormatDate(*d.ResolvedDate)
		}
		if d.Err != nil {
			row.Error = d.Err.Error()
		}
		view.Dates = append(view.Dates, row)
	}

	var body bytes.Buffer
	if err := failureTemplate.Execute(&body, view); err != nil {
		return err
	}
	subject := fmt.Sprintf("[bestsellers-etl] %s load: %d failed date(s)", summary.Mode, summary.Failed)
	return n.mailer.SendMail(n.recipients, subject, body.String())
}
