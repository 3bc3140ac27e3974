package notifications

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/learnhub/backend/internal/models"
)

// Email types recorded in email_logs.
const (
	EmailTypeReceipt = "payment_receipt"
	EmailTypeFailed  = "payment_failed"
)

var receiptTmpl = template.Must(template.New("receipt").Parse(`
<p>Hi {{.Name}},</p>
<p>Your payment for <strong>{{.CourseTitle}}</strong> was successful.</p>
<p>Transaction: <code>{{.TransactionID}}</code><br>
Amount paid: {{.Currency}} {{.Amount}}</p>
<p>Your receipt is attached. You now have full access to the course.</p>
<p>Happy learning,<br>The LearnHub Team</p>`))

var failedTmpl = template.Must(template.New("failed").Parse(`
<p>Hi {{.Name}},</p>
<p>Your payment for <strong>{{.CourseTitle}}</strong> did not go through.</p>
<p>Transaction: <code>{{.TransactionID}}</code>{{if .Reason}}<br>
Reason: {{.Reason}}{{end}}</p>
<p>No money was deducted for failed attempts. You can retry the purchase at
any time.</p>
<p>The LearnHub Team</p>`))

type emailData struct {
	Name          string
	CourseTitle   string
	TransactionID string
	Currency      string
	Amount        string
	Reason        string
}

// RenderEmail produces subject and HTML body for an email type.
func RenderEmail(emailType, name, courseTitle string, tx *models.Transaction) (subject, body string, err error) {
	data := emailData{
		Name:          name,
		CourseTitle:   courseTitle,
		TransactionID: tx.TransactionID,
		Currency:      tx.Currency,
		Amount:        tx.FinalAmount.StringFixed(2),
	}
	if tx.ErrorMessage != nil {
		data.Reason = *tx.ErrorMessage
	}

	var buf bytes.Buffer
	switch emailType {
	case EmailTypeReceipt:
		subject = fmt.Sprintf("Payment receipt for %s", courseTitle)
		err = receiptTmpl.Execute(&buf, data)
	case EmailTypeFailed:
		subject = fmt.Sprintf("Payment failed for %s", courseTitle)
		err = failedTmpl.Execute(&buf, data)
	default:
		return "", "", fmt.Errorf("unknown email type %q", emailType)
	}
	return subject, buf.String(), err
}
