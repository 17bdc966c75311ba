package billing

import (
	"context"

	"github.com/jhoicas/facturacr-api/internal/domain/entity"
)

// Notifier puerto de notificaciones al receptor. Solo los comprobantes
// aceptados por Hacienda pueden enviarse por correo.
type Notifier interface {
	SendAcceptedDocument(doc *entity.ElectronicDocument, company *entity.Company, recipientEmail string) error
}

// TaxpayerDirectory consulta el registro público de contribuyentes de
// Hacienda (api.hacienda.go.cr/fe) para precargar la actividad económica de
// un cliente a partir de su identificación.
type TaxpayerDirectory interface {
	LookupActivity(ctx context.Context, identification string) (string, error)
}

// HaciendaConfig flags de comportamiento del pipeline de emisión.
type HaciendaConfig struct {
	// AutoConsult consulta el estado inmediatamente después de enviar.
	AutoConsult bool
	// AutoEmail envía el comprobante por correo al receptor al ser aceptado.
	AutoEmail bool
}
