package entity

import "time"

// Customer representa un receptor de comprobantes de la empresa.
type Customer struct {
	ID                 string
	CompanyID          string
	Name               string
	IdentificationType string // hacienda.Identification*
	Identification     string
	ForeignID          string // identificación en el país de origen (exportación)
	Email              string
	Phone              string
	ActivityCode       string // actividad económica; se consulta al registro de contribuyentes

	Province     string
	Canton       string
	District     string
	Neighborhood string
	Address      string
	CountryCode  string // ISO-3166 alfa-2; "CR" para receptores locales

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Foreign indica si el receptor no está domiciliado en Costa Rica.
func (c *Customer) Foreign() bool {
	return c.CountryCode != "" && c.CountryCode != "CR"
}
