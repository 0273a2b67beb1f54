package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// PurchaseData feeds the payment confirmation email. TempPassword is empty for
// buyers who already had an account.
type PurchaseData struct {
	Name         string
	Email        string
	TempPassword string
	CourseTitles []string
	AmountMinor  int64
	Currency     string
	OrderID      string
	LoginURL     string
}

type WelcomeData struct {
	Name         string
	Email        string
	TempPassword string
	LoginURL     string
}

var purchaseHTML = template.Must(template.New("purchase").Parse(`
<h2>Payment Successful – Access Granted</h2>
<p>Hi {{.Name}},</p>
<p>Thank you for your purchase. You now have access to:</p>
<ul>{{range .CourseTitles}}<li>{{.}}</li>{{end}}</ul>
<p>Amount paid: <strong>{{.Amount}}</strong><br>Order: {{.OrderID}}</p>
{{if .TempPassword}}<p>An account was created for you:</p>
<p>Email: {{.Email}}<br>Password: <strong>{{.TempPassword}}</strong></p>
<p>Please change your password after your first login.</p>{{end}}
<p><a href="{{.LoginURL}}">Go to my courses</a></p>
<p>Thank you for choosing ProdemyX!</p>
`))

var welcomeHTML = template.Must(template.New("welcome").Parse(`
<p>Hi {{.Name}},</p>
<p>Your account has been created. You can now proceed to checkout.</p>
<p>Your login credentials are:</p>
<p>Email: {{.Email}}<br>Password: <strong>{{.TempPassword}}</strong></p>
<p><a href="{{.LoginURL}}">Sign in</a></p>
<p>Thank you for choosing ProdemyX!</p>
`))

// FormatAmount renders minor units as a major-unit amount with the currency code.
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	return fmt.Sprintf("%s%s %d.%02d", sign, strings.ToUpper(currency), minor/100, minor%100)
}

func PurchaseConfirmation(d PurchaseData) (Message, error) {
	titles := strings.Join(d.CourseTitles, ", ")
	amount := FormatAmount(d.AmountMinor, d.Currency)

	var html bytes.Buffer
	err := purchaseHTML.Execute(&html, struct {
		PurchaseData
		Amount string
	}{d, amount})
	if err != nil {
		return Message{}, fmt.Errorf("render purchase email: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\nYour payment was successful. You now have access to: %s\n", d.Name, titles)
	fmt.Fprintf(&text, "Amount paid: %s\nOrder: %s\n", amount, d.OrderID)
	if d.TempPassword != "" {
		fmt.Fprintf(&text, "\nAn account was created for you.\nEmail: %s\nPassword: %s\n", d.Email, d.TempPassword)
	}
	fmt.Fprintf(&text, "\nSign in: %s\n", d.LoginURL)

	return Message{
		ToEmail: d.Email,
		ToName:  d.Name,
		Subject: "Payment Successful – Access Granted",
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

func GuestWelcome(d WelcomeData) (Message, error) {
	var html bytes.Buffer
	if err := welcomeHTML.Execute(&html, d); err != nil {
		return Message{}, fmt.Errorf("render welcome email: %w", err)
	}
	text := fmt.Sprintf("Hi %s,\n\nYour ProdemyX account has been created.\nEmail: %s\nPassword: %s\n\nSign in: %s\n",
		d.Name, d.Email, d.TempPassword, d.LoginURL)

	return Message{
		ToEmail: d.Email,
		ToName:  d.Name,
		Subject: "Welcome to ProdemyX!",
		Text:    text,
		HTML:    html.String(),
	}, nil
}
