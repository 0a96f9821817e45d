package google

import (
	"context"

	"plant-monitor-service/internal/config"
	"plant-monitor-service/internal/models"
	"plant-monitor-service/internal/template"

	"gopkg.in/gomail.v2"
)

type EmailService struct {
	dialer *gomail.Dialer
	to     string
}

func NewEmailService(cfg config.SMTPConfig) *EmailService {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Email, cfg.Password)
	return &EmailService{dialer: d, to: cfg.AlertEmail}
}

// Notify implements services.AlertNotifier. Only raised alerts are mailed.
func (e *EmailService) Notify(ctx context.Context, evt models.AlertEvent) error {
	if evt.Kind != models.AlertRaised {
		return nil
	}
	return e.dialer.DialAndSend(e.alertMessage(evt))
}

func (e *EmailService) alertMessage(evt models.AlertEvent) *gomail.Message {
	title, body := AlertText(evt)
	m := gomail.NewMessage()
	m.SetHeader("From", e.dialer.Username)
	m.SetHeader("To", e.to)
	m.SetHeader("Subject", "[Plant Monitor] "+title)
	m.SetBody("text/html", template.AlertTemplate(title, body, evt.OccurredAt))
	return m
}
