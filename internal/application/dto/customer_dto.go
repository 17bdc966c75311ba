package dto

// CreateCustomerRequest body para POST /api/customers.
type CreateCustomerRequest struct {
	Name               string `json:"name"`
	IdentificationType string `json:"identification_type"`
	Identification     string `json:"identification"`
	ForeignID          string `json:"foreign_id,omitempty"`
	Email              string `json:"email,omitempty"`
	Phone              string `json:"phone,omitempty"`
	Province           string `json:"province,omitempty"`
	Canton             string `json:"canton,omitempty"`
	District           string `json:"district,omitempty"`
	Neighborhood       string `json:"neighborhood,omitempty"`
	Address            string `json:"address,omitempty"`
	CountryCode        string `json:"country_code,omitempty"`
}

// CustomerResponse cliente en respuestas.
type CustomerResponse struct {
	ID                 string `json:"id"`
	CompanyID          string `json:"company_id"`
	Name               string `json:"name"`
	IdentificationType string `json:"identification_type"`
	Identification     string `json:"identification"`
	ForeignID          string `json:"foreign_id,omitempty"`
	Email              string `json:"email,omitempty"`
	Phone              string `json:"phone,omitempty"`
	Province           string `json:"province,omitempty"`
	Canton             string `json:"canton,omitempty"`
	District           string `json:"district,omitempty"`
	CountryCode        string `json:"country_code,omitempty"`
	ActivityCode       string `json:"activity_code,omitempty"`
}
