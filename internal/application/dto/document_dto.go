package dto

import "github.com/shopspring/decimal"

// CreateDocumentRequest body para POST /api/documents.
// DocType es el código de catálogo del comprobante ("01" factura, "04"
// tiquete...). CustomerID puede ir vacío solo para tiquete electrónico.
type CreateDocumentRequest struct {
	DocType       string                `json:"doc_type"`
	CustomerID    string                `json:"customer_id,omitempty"`
	Currency      string                `json:"currency,omitempty"`
	ExchangeRate  decimal.Decimal       `json:"exchange_rate,omitempty"`
	SaleCondition string                `json:"sale_condition,omitempty"`
	DueDate       string                `json:"due_date,omitempty"` // YYYY-MM-DD; deriva PlazoCredito
	PaymentMethod string                `json:"payment_method,omitempty"`
	ActivityCode  string                `json:"activity_code,omitempty"`
	Reference     *DocumentReferenceDTO `json:"reference,omitempty"`
	Lines         []DocumentLineRequest `json:"lines"`
}

// DocumentReferenceDTO referencia al comprobante afectado (NC, ND, FEC).
type DocumentReferenceDTO struct {
	DocType  string `json:"doc_type"`
	Clave    string `json:"clave"`
	IssuedAt string `json:"issued_at"` // RFC 3339
	Code     string `json:"code,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// DocumentLineRequest línea de detalle del comprobante.
type DocumentLineRequest struct {
	CabysCode     string          `json:"cabys_code"`
	Description   string          `json:"description"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          string          `json:"unit,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Discount      decimal.Decimal `json:"discount,omitempty"`
	TaxCode       string          `json:"tax_code,omitempty"`
	TaxRateCode   string          `json:"tax_rate_code,omitempty"`
	TaxRate       decimal.Decimal `json:"tax_rate,omitempty"`
	ExonerationID string          `json:"exoneration_id,omitempty"`
}

// DocumentResponse comprobante en respuestas.
type DocumentResponse struct {
	ID             string                 `json:"id"`
	CompanyID      string                 `json:"company_id"`
	CustomerID     string                 `json:"customer_id,omitempty"`
	DocType        string                 `json:"doc_type"`
	Clave          string                 `json:"clave,omitempty"`
	Consecutive    string                 `json:"consecutive,omitempty"`
	IssuedAt       string                 `json:"issued_at"`
	Currency       string                 `json:"currency"`
	APIState       string                 `json:"api_state"`
	Status         string                 `json:"status,omitempty"`
	ResponseDetail string                 `json:"response_detail,omitempty"`
	Total          decimal.Decimal        `json:"total"`
	Tax            decimal.Decimal        `json:"tax"`
	Lines          []DocumentLineResponse `json:"lines"`
}

// DocumentLineResponse línea de detalle en la respuesta.
type DocumentLineResponse struct {
	LineNumber int             `json:"line_number"`
	CabysCode  string          `json:"cabys_code"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxNet     decimal.Decimal `json:"tax_net"`
	Total      decimal.Decimal `json:"total"`
}

// DocumentStatusDTO respuesta ligera para el endpoint de polling
// GET /api/documents/:id/status. El frontend consulta periódicamente hasta
// que api_state sea "done" o "error".
type DocumentStatusDTO struct {
	ID             string `json:"id"`
	Clave          string `json:"clave,omitempty"`
	APIState       string `json:"api_state"`
	Status         string `json:"status,omitempty"`
	ResponseDetail string `json:"response_detail,omitempty"`
}
