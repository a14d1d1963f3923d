package utils

import (
	"campuscert/config"
	"fmt"
	"html"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendEmail delivers one HTML message through SendGrid. It is a no-op when
// no API key is configured.
func SendEmail(toEmail, toName, subject, htmlBody string) error {
	if config.AppConfig == nil || config.AppConfig.SendgridApiKey == "" {
		log.Printf("[EMAIL] SENDGRID_API_KEY not set, skipping %q to %s", subject, toEmail)
		return nil
	}

	from := mail.NewEmail(config.AppConfig.IssuerName, config.AppConfig.EmailSender)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, "", htmlBody)

	client := sendgrid.NewSendClient(config.AppConfig.SendgridApiKey)
	resp, err := client.Send(message)
	if err != nil {
		log.Printf("[EMAIL] Error sending %q to %s: %v", subject, toEmail, err)
		return err
	}
	if resp.StatusCode >= 300 {
		log.Printf("[EMAIL] SendGrid returned %d for %s: %s", resp.StatusCode, toEmail, resp.Body)
		return fmt.Errorf("sendgrid status %d", resp.StatusCode)
	}
	log.Printf("[EMAIL] Sent %q to %s", subject, toEmail)
	return nil
}

func getEmailTemplate(issuer, title, bodyContent string) string {
	return fmt.Sprintf(`
	<!DOCTYPE html>
	<html>
	<head>
		<style>
			body { font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; background-color: #f3f4f6; margin: 0; padding: 0; }
			.container { max-width: 600px; margin: 40px auto; background: #ffffff; border-radius: 8px; overflow: hidden; }
			.header { background: linear-gradient(135deg, #4f46e5, #7c3aed); padding: 30px; text-align: center; }
			.header h1 { color: #ffffff; margin: 0; font-size: 24px; letter-spacing: 1px; }
			.content { padding: 40px 30px; color: #1f2937; line-height: 1.6; }
			.info-box { background: #eef2ff; padding: 15px; border-radius: 4px; border-left: 4px solid #4f46e5; margin: 20px 0; word-break: break-all; }
			.btn { display: inline-block; padding: 12px 24px; background-color: #4f46e5; color: #ffffff; text-decoration: none; border-radius: 4px; font-weight: bold; }
			.footer { background-color: #f3f4f6; padding: 20px; text-align: center; font-size: 12px; color: #6b7280; }
		</style>
	</head>
	<body>
		<div class="container">
			<div class="header"><h1>%s</h1></div>
			<div class="content">
				<h2>%s</h2>
				%s
			</div>
			<div class="footer">Certificates are recorded on-chain and can be verified by anyone.</div>
		</div>
	</body>
	</html>
	`, html.EscapeString(issuer), html.EscapeString(title), bodyContent)
}

// CertificateIssuedBody renders the notification sent once a certificate is confirmed.
func CertificateIssuedBody(name, courseTitle, certificateID, explorerURL string) string {
	return fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>Congratulations on completing <strong>%s</strong>! Your certificate has been recorded on the blockchain.</p>
		<div class="info-box">
			<strong>Certificate ID:</strong> %s
		</div>
		<a href="%s" class="btn">View transaction</a>
	`, html.EscapeString(name), html.EscapeString(courseTitle), html.EscapeString(certificateID), html.EscapeString(explorerURL))
}

// SendCertificateIssuedEmail notifies a student asynchronously.
func SendCertificateIssuedEmail(email, name, courseTitle, certificateID, explorerURL string) {
	if email == "" {
		return
	}
	issuer := "Data Campus"
	if config.AppConfig != nil && config.AppConfig.IssuerName != "" {
		issuer = config.AppConfig.IssuerName
	}
	subject := "Your certificate for " + courseTitle
	body := getEmailTemplate(issuer, "Certificate issued", CertificateIssuedBody(name, courseTitle, certificateID, explorerURL))

	go SendEmail(email, name, subject, body)
}
