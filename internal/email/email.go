package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

type Sender struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	AppName  string

	log  zerolog.Logger
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSender(host, port, username, password, from, appName string, log zerolog.Logger) *Sender {
	return &Sender{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		AppName:  appName,
		log:      log.With().Str("component", "email").Logger(),
		send:     smtp.SendMail,
	}
}

var verificationTemplate = template.Must(template.New("verification").Parse(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #ddd; border-radius: 5px; }
        .code { font-size: 2em; letter-spacing: 0.3em; text-align: center; font-weight: bold; }
        .footer { margin-top: 20px; font-size: 0.8em; color: #777; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <p>Hi {{.Username}},</p>
        <p>Your {{.AppName}} verification code is:</p>
        <p class="code">{{.Code}}</p>
        <p>It expires in {{.Minutes}} minutes. If you didn't ask for it, you can ignore this email.</p>
        <div class="footer">{{.AppName}}</div>
    </div>
</body>
</html>
`))

// SendVerificationCode mails a verification code. Without a configured SMTP
// host the message is only logged.
func (s *Sender) SendVerificationCode(to, username, code string, minutes int) error {
	var body bytes.Buffer
	err := verificationTemplate.Execute(&body, map[string]any{
		"Username": username,
		"AppName":  s.AppName,
		"Code":     code,
		"Minutes":  minutes,
	})
	if err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	headers := map[string]string{
		"From":         s.From,
		"To":           to,
		"Subject":      fmt.Sprintf("Your %s verification code", s.AppName),
		"MIME-Version": "1.0",
		"Content-Type": `text/html; charset="UTF-8"`,
	}

	if s.Host == "" {
		s.log.Info().
			Str("to", to).
			Str("subject", headers["Subject"]).
			Str("code", code).
			Msg("SMTP host not configured, not sending verification email")
		return nil
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var message strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&message, "%s: %s\r\n", k, headers[k])
	}
	message.WriteString("\r\n")
	message.Write(body.Bytes())

	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
	addr := s.Host + ":" + s.Port
	if err := s.send(addr, auth, s.From, []string{to}, []byte(message.String())); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	s.log.Debug().Str("to", to).Msg("Sent verification email")
	return nil
}
