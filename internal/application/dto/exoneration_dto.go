package dto

import "github.com/shopspring/decimal"

// CreateExonerationRequest entrada para registrar una exoneración de un cliente.
type CreateExonerationRequest struct {
	CustomerID     string          `json:"customer_id" validate:"required,uuid"`
	DocType        string          `json:"doc_type" validate:"required"`
	DocNumber      string          `json:"doc_number" validate:"required,max=40"`
	Institution    string          `json:"institution" validate:"omitempty,max=160"`
	Article        int             `json:"article"`
	Subsection     int             `json:"subsection"`
	Percentage     decimal.Decimal `json:"percentage"`
	IssueDate      string          `json:"issue_date" validate:"required"`               // YYYY-MM-DD
	ExpirationDate string          `json:"expiration_date"`                              // YYYY-MM-DD, opcional
	CabysCodes     []string        `json:"cabys_codes"`                                  // vacío = aplica a todo
}

// ExonerationResponse salida de una exoneración.
type ExonerationResponse struct {
	ID             string          `json:"id"`
	CustomerID     string          `json:"customer_id"`
	DocType        string          `json:"doc_type"`
	DocNumber      string          `json:"doc_number"`
	Institution    string          `json:"institution,omitempty"`
	Article        int             `json:"article,omitempty"`
	Subsection     int             `json:"subsection,omitempty"`
	Percentage     decimal.Decimal `json:"percentage"`
	IssueDate      string          `json:"issue_date"`
	ExpirationDate string          `json:"expiration_date,omitempty"`
	CabysCodes     []string        `json:"cabys_codes,omitempty"`
}
