package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Exoneration representa una autorización de exoneración del IVA emitida a
// favor de un cliente (DGT, zona franca, ley especial...). Puede aplicar a
// todo lo facturado al cliente o restringirse a códigos CABYS concretos.
type Exoneration struct {
	ID         string
	CompanyID  string
	CustomerID string

	DocType        string // hacienda.Exoneration* (tipo de documento)
	DocNumber      string // número del documento de exoneración
	Institution    string // nombre de la institución que la emite
	Article        int    // artículo de la ley; obligatorio para algunos tipos
	Subsection     int    // inciso
	Percentage     decimal.Decimal
	IssueDate      time.Time
	ExpirationDate time.Time

	// CabysCodes restringe la exoneración a estos códigos. Vacío = aplica
	// a cualquier línea del cliente.
	CabysCodes []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidOn indica si la exoneración está vigente en la fecha dada.
func (e *Exoneration) ValidOn(t time.Time) bool {
	if t.Before(e.IssueDate) {
		return false
	}
	return e.ExpirationDate.IsZero() || !t.After(e.ExpirationDate)
}

// Covers indica si la exoneración aplica al código CABYS dado.
func (e *Exoneration) Covers(cabys string) bool {
	if len(e.CabysCodes) == 0 {
		return true
	}
	for _, c := range e.CabysCodes {
		if c == cabys {
			return true
		}
	}
	return false
}
