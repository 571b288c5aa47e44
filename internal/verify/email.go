package verify

import (
	_ "embed"
	"fmt"
	"html/template"
	"strings"

	"jerseysync/internal/mailer"
	"jerseysync/internal/models"
)

//go:embed templates/verification_email.html
var verificationEmailHTML string

//go:embed templates/signature.html
var signatureHTML string

var emailTmpl = template.Must(template.New("verification").Parse(verificationEmailHTML))

type emailData struct {
	FirstName     string
	JerseyName    string
	JerseyNumber  string
	JerseySize    string
	JerseyType    string
	SockSize      string
	SockType      string
	PantShellSize string
	Link          string
	Signature     template.HTML
}

// BuildEmail renders the confirmation email for an order. All parent
// emails go on the To: line so any guardian can reply.
func BuildEmail(order *models.Order) (mailer.Message, error) {
	emails := order.ParentEmails()
	if len(emails) == 0 {
		return mailer.Message{}, &NoParentEmailError{Name: order.FullName()}
	}

	var body strings.Builder
	err := emailTmpl.Execute(&body, emailData{
		FirstName:     order.FirstName,
		JerseyName:    order.JerseyName,
		JerseyNumber:  order.JerseyNumber,
		JerseySize:    order.JerseySize,
		JerseyType:    order.JerseyType,
		SockSize:      order.SockSize,
		SockType:      order.SockType,
		PantShellSize: order.PantShellSize,
		Link:          order.Link,
		Signature:     template.HTML(signatureHTML),
	})
	if err != nil {
		return mailer.Message{}, fmt.Errorf("render email for %s: %w", order.FullName(), err)
	}

	return mailer.Message{
		To:      strings.Join(emails, ", "),
		Subject: fmt.Sprintf("%s Uniform Order Confirmation", order.FullName()),
		HTML:    body.String(),
	}, nil
}
