package entity

import "time"

// Company representa una organización/tenant del sistema (emisor de
// comprobantes electrónicos en Costa Rica).
type Company struct {
	ID                 string
	Name               string
	TradeName          string // nombre comercial, opcional
	IdentificationType string // hacienda.Identification* (01 física, 02 jurídica...)
	Identification     string // cédula sin guiones
	ActivityCode       string // actividad económica principal
	Email              string
	Phone              string

	// Ubicación según catálogos de Hacienda.
	Province     string
	Canton       string
	District     string
	Neighborhood string
	Address      string

	// Punto de emisión para el consecutivo.
	BranchCode   string // sucursal, 3 dígitos
	TerminalCode string // terminal/caja, 5 dígitos

	// Credenciales del API de recepción (ATV).
	HaciendaUsername string
	HaciendaPassword string

	// Certificado de firma (llavín criptográfico .p12).
	CertPath     string
	CertPassword string

	Status    string // active, suspended, inactive
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CompanySequence es el contador de consecutivos por tipo de comprobante.
// La asignación debe ser atómica en la capa de persistencia para que nunca
// se repita un consecutivo bajo emisión concurrente.
type CompanySequence struct {
	CompanyID string
	DocType   string
	LastSeq   int64
}
