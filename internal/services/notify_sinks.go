package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"

	"bookstore_back_end/internal/config"
	"bookstore_back_end/internal/kafka"
	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

// =============================================
// E-MAIL
// =============================================

type Attachment struct {
	Name string
	Data []byte
}

type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string, attachments ...Attachment) error
}

// SMTPMailer envoie via go-mail
type SMTPMailer struct {
	cfg config.SMTPConfig
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string, attachments ...Attachment) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	for _, a := range attachments {
		if err := msg.AttachReader(a.Name, bytes.NewReader(a.Data)); err != nil {
			return err
		}
	}

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return err
	}

	log.Println("📤 Envoi de l'e-mail à", to)
	return client.DialAndSendWithContext(ctx, msg)
}

// EmailSink envoie un e-mail de statut à l'adresse de contact de la commande
type EmailSink struct {
	mailer Mailer
}

func NewEmailSink(m Mailer) *EmailSink {
	return &EmailSink{mailer: m}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Handle(ctx context.Context, e Event) error {
	to := e.Order.ContactEmail
	if to == "" {
		return nil
	}
	if err := s.mailer.Send(ctx, to, e.Title()+" - Bookstore", statusEmailHTML(e)); err != nil {
		return err
	}
	log.Printf("📧 Email de statut envoyé: %s → %s", e.Type, to)
	return nil
}

func statusColor(t EventType) string {
	switch t {
	case EventOrderPaid, EventOrderDelivered:
		return "#10b981"
	case EventOrderShipped:
		return "#3b82f6"
	case EventOrderCancelled, EventPaymentFailed:
		return "#ef4444"
	default:
		return "#6b7280"
	}
}

func statusEmailHTML(e Event) string {
	rows := ""
	for _, it := range e.Order.Items {
		rows += fmt.Sprintf(`
			<tr>
				<td style="padding: 8px; border: 1px solid #ddd;">%s</td>
				<td style="padding: 8px; border: 1px solid #ddd;">%d</td>
				<td style="padding: 8px; border: 1px solid #ddd;">%s</td>
			</tr>`, html.EscapeString(it.Title), it.Quantity, formatVND(it.LineTotal()))
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html lang="fr">
<head>
	<meta charset="UTF-8">
	<title>%s</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f5f5f5; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 24px; border-radius: 12px;">
		<div style="display: inline-block; padding: 10px 20px; background-color: %s; color: #fff; border-radius: 25px; font-weight: 600;">
			%s
		</div>
		<p style="color: #333; font-size: 15px;">%s</p>
		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background-color: #f0f0f0;">
					<th style="padding: 8px; text-align: left; border: 1px solid #ddd;">Livre</th>
					<th style="padding: 8px; text-align: left; border: 1px solid #ddd;">Quantité</th>
					<th style="padding: 8px; text-align: left; border: 1px solid #ddd;">Total</th>
				</tr>
			</thead>
			<tbody>%s</tbody>
		</table>
		<p><strong>Total : %s</strong></p>
		<p style="color: #999; font-size: 12px;">Cet email a été envoyé automatiquement, merci de ne pas y répondre.</p>
	</div>
</body>
</html>`, html.EscapeString(e.Title()), statusColor(e.Type), html.EscapeString(e.Title()),
		html.EscapeString(e.Message()), rows, formatVND(e.Order.Total))
}

// =============================================
// PUSH (Redis pub/sub)
// =============================================

type PushMessage struct {
	Type        EventType `json:"type"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
}

type PushSink struct {
	pub Publisher
}

func NewPushSink(pub Publisher) *PushSink {
	return &PushSink{pub: pub}
}

func (s *PushSink) Name() string { return "push" }

func (s *PushSink) Handle(ctx context.Context, e Event) error {
	data, err := json.Marshal(PushMessage{
		Type:        e.Type,
		Title:       e.Title(),
		Message:     e.Message(),
		OrderID:     e.Order.ID,
		OrderNumber: e.Order.OrderNumber,
		Status:      string(e.Order.Status),
	})
	if err != nil {
		return err
	}
	return s.pub.Publish(ctx, NotificationChannel(e.Order.UserID), data)
}

// =============================================
// KAFKA
// =============================================

type KafkaSink struct {
	writer kafka.MessageWriter
}

func NewKafkaSink(w kafka.MessageWriter) *KafkaSink {
	return &KafkaSink{writer: w}
}

func (s *KafkaSink) Name() string { return "kafka" }

// Handle publie l'événement complet, clé = numéro de commande (ordre garanti par commande)
func (s *KafkaSink) Handle(ctx context.Context, e Event) error {
	return kafka.PublishJSON(ctx, s.writer, e.Order.OrderNumber, e)
}

// =============================================
// IN-APP
// =============================================

type InAppSink struct {
	repo repository.NotificationRepository
}

func NewInAppSink(repo repository.NotificationRepository) *InAppSink {
	return &InAppSink{repo: repo}
}

func (s *InAppSink) Name() string { return "in_app" }

func (s *InAppSink) Handle(ctx context.Context, e Event) error {
	if e.Order.UserID == "" {
		return errors.New("commande sans utilisateur")
	}
	orderID := e.Order.ID
	return s.repo.Create(ctx, &models.Notification{
		ID:        uuid.New(),
		UserID:    e.Order.UserID,
		Type:      string(e.Type),
		Title:     e.Title(),
		Message:   e.Message(),
		OrderID:   &orderID,
		CreatedAt: nowUTC(),
	})
}
