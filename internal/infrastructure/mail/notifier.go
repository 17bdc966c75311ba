// Package mail: envío del comprobante aceptado al receptor por SMTP.
package mail

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/jhoicas/facturacr-api/internal/domain"
	"github.com/jhoicas/facturacr-api/internal/domain/entity"
	infrahacienda "github.com/jhoicas/facturacr-api/internal/infrastructure/hacienda"
)

// SMTPConfig credenciales del servidor de correo saliente.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier envía el comprobante firmado y la respuesta de Hacienda como
// adjuntos XML al correo del receptor.
type SMTPNotifier struct {
	dialer *gomail.Dialer
	from   string
	log    zerolog.Logger
}

// NewSMTPNotifier construye el notificador.
func NewSMTPNotifier(cfg SMTPConfig, log zerolog.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		log:    log.With().Str("component", "mail_notifier").Logger(),
	}
}

// SendAcceptedDocument envía el comprobante aceptado al receptor. Solo los
// comprobantes aceptados por Hacienda pueden enviarse.
func (n *SMTPNotifier) SendAcceptedDocument(doc *entity.ElectronicDocument, company *entity.Company, recipientEmail string) error {
	if doc.Status != entity.StatusAccepted {
		return fmt.Errorf("%w: solo los comprobantes aceptados pueden enviarse por correo", domain.ErrValidation)
	}
	if recipientEmail == "" {
		return fmt.Errorf("%w: el receptor no tiene correo registrado", domain.ErrValidation)
	}

	docName := documentName(doc.DocType)
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", recipientEmail)
	m.SetHeader("Subject", fmt.Sprintf("%s %s - %s", docName, doc.Consecutive, company.Name))
	m.SetBody("text/plain", fmt.Sprintf(
		"Estimado cliente:\n\n"+
			"Adjuntamos el comprobante electrónico %s emitido por %s,\n"+
			"aceptado por el Ministerio de Hacienda.\n\n"+
			"Clave numérica: %s\n",
		doc.Consecutive, company.Name, doc.Clave))

	attachXML(m, fmt.Sprintf("%s-%s-firmado.xml", docName, doc.Consecutive), doc.SignedXML)
	if doc.ResponseXML != "" {
		attachXML(m, fmt.Sprintf("%s-%s-respuesta-hacienda.xml", docName, doc.Consecutive), doc.ResponseXML)
	}

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("enviar correo a %s: %w", recipientEmail, err)
	}
	n.log.Info().Str("clave", doc.Clave).Str("para", recipientEmail).Msg("comprobante enviado por correo")
	return nil
}

func attachXML(m *gomail.Message, name, content string) {
	m.Attach(name,
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := io.WriteString(w, content)
			return err
		}),
		gomail.SetHeader(map[string][]string{"Content-Type": {"text/xml; charset=UTF-8"}}),
	)
}

// documentName nombre legible del tipo de comprobante para asunto y adjuntos.
func documentName(docType string) string {
	spec, ok := infrahacienda.DocumentSpecs[docType]
	if !ok {
		return "Comprobante"
	}
	return spec.Root
}
