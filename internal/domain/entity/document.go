package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados del envío a Hacienda (ciclo de vida de la recepción).
const (
	APIStatePending = "pending" // Generado y firmado, sin enviar
	APIStateSent    = "sent"    // Enviado a recepción, veredicto pendiente
	APIStateDone    = "done"    // Aceptado por Hacienda
	APIStateError   = "error"   // Rechazado o fallo irrecuperable
)

// Estados del veredicto de Hacienda sobre el comprobante.
const (
	StatusSent     = "sent"     // Enviado, sin respuesta todavía
	StatusAccepted = "accepted" // ind-estado = aceptado
	StatusRejected = "rejected" // ind-estado = rechazado
)

// ElectronicDocument representa un comprobante electrónico v4.4: factura,
// tiquete, nota de crédito/débito, factura de exportación o de compra.
type ElectronicDocument struct {
	ID         string
	CompanyID  string
	CustomerID string // vacío para tiquete electrónico anónimo
	DocType    string // hacienda.DocType* ("01".."09")

	// Clave y consecutivo: inmutables una vez asignados.
	Clave        string // 50 dígitos
	Consecutive  string // 20 dígitos, posiciones 22-41 de la clave
	SecurityCode string // 8 dígitos aleatorios (posiciones 43-50 de la clave)

	IssuedAt       time.Time
	Currency       string          // CRC, USD, EUR
	ExchangeRate   decimal.Decimal // 1 para CRC
	SaleCondition  string          // hacienda.SaleCondition*
	CreditTermDays int             // PlazoCredito; solo condición 02
	PaymentMethod  string          // hacienda.PaymentMethod*
	ActivityCode   string          // código de actividad económica del emisor

	// Referencia al documento afectado. Obligatoria para NC, ND y FEC.
	ReferenceDocType  string
	ReferenceClave    string
	ReferenceIssuedAt time.Time
	ReferenceCode     string // hacienda.ReferenceCode*
	ReferenceReason   string

	// Artefactos del pipeline.
	XML             string // XML sin firma
	SignedXML       string // XML con la firma XAdES inyectada
	SignedXMLDigest string // SHA-256 hex del XML firmado, para detectar alteraciones

	// Respuesta de Hacienda.
	APIState       string // APIState*
	Status         string // Status*
	ResponseXML    string // MensajeHacienda decodificado
	ResponseDetail string // DetalleMensaje legible para el usuario

	Lines []*DocumentLine

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal indica si el comprobante alcanzó un estado final de recepción.
func (d *ElectronicDocument) Terminal() bool {
	return d.APIState == APIStateDone || d.APIState == APIStateError
}

// Locked indica si los campos fiscales del comprobante ya no pueden editarse.
// Una vez que sale de pending, tipo de documento, actividad económica,
// condición de venta y medio de pago quedan congelados.
func (d *ElectronicDocument) Locked() bool {
	return d.APIState != "" && d.APIState != APIStatePending
}

// DocumentLine representa una línea de detalle del comprobante.
type DocumentLine struct {
	ID         string
	DocumentID string
	LineNumber int

	CabysCode   string // código CABYS de 13 dígitos
	Description string
	Quantity    decimal.Decimal
	Unit        string // hacienda.Unit*
	UnitPrice   decimal.Decimal

	Discount       decimal.Decimal
	DiscountReason string

	// Selección de impuesto. TaxRate en porcentaje (13, 4, 1...); si es
	// cero se resuelve desde el código de tarifa.
	TaxCode     string // hacienda.TaxCode*
	TaxRateCode string // hacienda.IVARate*
	TaxRate     decimal.Decimal

	ExonerationID string // exoneración aplicable, si existe

	// Campos calculados por el agregador de totales.
	Subtotal   decimal.Decimal // qty*precio - descuento
	TaxAmount  decimal.Decimal // impuesto bruto de la línea
	TaxNet     decimal.Decimal // impuesto tras restar la exoneración
	Exonerated decimal.Decimal // monto de impuesto exonerado
	Total      decimal.Decimal // subtotal + impuesto neto
}
