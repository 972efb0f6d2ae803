package email

import (
	"bytes"
	"fmt"
	"html/template"
)

const confirmationEmailTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Welcome to WashClub</title>
</head>
<body style="margin:0;padding:0;background-color:#f4f6f8;font-family:Arial,sans-serif;">
    <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color:#f4f6f8;">
        <tr>
            <td align="center" style="padding:32px 16px;">
                <table role="presentation" width="600" cellspacing="0" cellpadding="0" style="background-color:#ffffff;border-radius:8px;">
                    <tr>
                        <td style="padding:32px;">
                            <h2 style="color:#0b5cab;margin:0 0 16px;">Welcome to the club, {{.Name}}!</h2>
                            <p style="color:#333333;line-height:1.5;">Your unlimited wash membership is set up. Here is what you signed up for:</p>
                            <table role="presentation" cellspacing="0" cellpadding="6" style="color:#333333;">
                                <tr><td><strong>Plan</strong></td><td>{{.PlanName}}</td></tr>
                                <tr><td><strong>Billing</strong></td><td>{{.Period}}</td></tr>
                                <tr><td><strong>Price</strong></td><td>${{.Price}}</td></tr>
                                <tr><td><strong>Vehicle</strong></td><td>{{.LicensePlate}}</td></tr>
                                <tr><td><strong>Reference</strong></td><td>{{.SubscriptionID}}</td></tr>
                            </table>
                            <p style="color:#333333;line-height:1.5;">Drive up to any location and our plate reader will recognize your vehicle.</p>
                        </td>
                    </tr>
                </table>
            </td>
        </tr>
    </table>
</body>
</html>`

var confirmationTmpl = template.Must(template.New("confirmation").Parse(confirmationEmailTemplate))

// RenderConfirmation fills the welcome email. Values are HTML escaped.
func RenderConfirmation(c Confirmation) (string, error) {
	data := struct {
		Confirmation
		Price string
	}{Confirmation: c, Price: c.Price.StringFixed(2)}

	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render confirmation email: %w", err)
	}
	return buf.String(), nil
}
