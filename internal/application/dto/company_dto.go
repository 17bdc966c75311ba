package dto

import "time"

// CreateCompanyRequest entrada para crear una empresa (emisor).
type CreateCompanyRequest struct {
	Name               string `json:"name" validate:"required,min=1,max=100"`
	TradeName          string `json:"trade_name" validate:"omitempty,max=80"`
	IdentificationType string `json:"identification_type" validate:"required,oneof=01 02 03 04"`
	Identification     string `json:"identification" validate:"required,min=9,max=12"`
	ActivityCode       string `json:"activity_code" validate:"omitempty,max=6"`
	Email              string `json:"email" validate:"omitempty,email"`
	Phone              string `json:"phone"`

	Province     string `json:"province" validate:"omitempty,len=1"`
	Canton       string `json:"canton" validate:"omitempty,max=2"`
	District     string `json:"district" validate:"omitempty,max=2"`
	Neighborhood string `json:"neighborhood"`
	Address      string `json:"address" validate:"omitempty,max=250"`

	BranchCode   string `json:"branch_code" validate:"omitempty,max=3"`
	TerminalCode string `json:"terminal_code" validate:"omitempty,max=5"`

	HaciendaUsername string `json:"hacienda_username"`
	HaciendaPassword string `json:"hacienda_password"`
	CertPath         string `json:"cert_path"`
	CertPassword     string `json:"cert_password"`
}

// UpdateCompanyRequest entrada para actualizar una empresa (campos opcionales).
type UpdateCompanyRequest struct {
	Name             *string `json:"name" validate:"omitempty,min=1,max=100"`
	TradeName        *string `json:"trade_name" validate:"omitempty,max=80"`
	ActivityCode     *string `json:"activity_code" validate:"omitempty,max=6"`
	Email            *string `json:"email" validate:"omitempty,email"`
	Phone            *string `json:"phone"`
	Province         *string `json:"province"`
	Canton           *string `json:"canton"`
	District         *string `json:"district"`
	Neighborhood     *string `json:"neighborhood"`
	Address          *string `json:"address" validate:"omitempty,max=250"`
	BranchCode       *string `json:"branch_code"`
	TerminalCode     *string `json:"terminal_code"`
	HaciendaUsername *string `json:"hacienda_username"`
	HaciendaPassword *string `json:"hacienda_password"`
	CertPath         *string `json:"cert_path"`
	CertPassword     *string `json:"cert_password"`
	Status           *string `json:"status" validate:"omitempty,oneof=active suspended inactive"`
}

// CompanyResponse salida de una empresa. No expone credenciales de Hacienda
// ni la contraseña del certificado.
type CompanyResponse struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	TradeName          string    `json:"trade_name,omitempty"`
	IdentificationType string    `json:"identification_type"`
	Identification     string    `json:"identification"`
	ActivityCode       string    `json:"activity_code,omitempty"`
	Email              string    `json:"email,omitempty"`
	Phone              string    `json:"phone,omitempty"`
	Province           string    `json:"province,omitempty"`
	Canton             string    `json:"canton,omitempty"`
	District           string    `json:"district,omitempty"`
	Neighborhood       string    `json:"neighborhood,omitempty"`
	Address            string    `json:"address,omitempty"`
	BranchCode         string    `json:"branch_code"`
	TerminalCode       string    `json:"terminal_code"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CompanyListResponse lista paginada de empresas.
type CompanyListResponse struct {
	Items []CompanyResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}
