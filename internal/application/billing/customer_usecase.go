package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/facturacr-api/internal/application/dto"
	"github.com/jhoicas/facturacr-api/internal/domain"
	"github.com/jhoicas/facturacr-api/internal/domain/entity"
	"github.com/jhoicas/facturacr-api/internal/domain/repository"
	pkghacienda "github.com/jhoicas/facturacr-api/pkg/hacienda"
)

// CustomerUseCase casos de uso para receptores de comprobantes.
type CustomerUseCase struct {
	repo      repository.CustomerRepository
	directory TaxpayerDirectory // puede ser nil
}

// NewCustomerUseCase construye el caso de uso. directory puede ser nil: en
// ese caso no se precarga la actividad económica.
func NewCustomerUseCase(repo repository.CustomerRepository, directory TaxpayerDirectory) *CustomerUseCase {
	return &CustomerUseCase{repo: repo, directory: directory}
}

// Create crea un nuevo cliente. La identificación se normaliza y valida
// según su tipo; la actividad económica se consulta al registro de
// contribuyentes cuando está disponible.
func (uc *CustomerUseCase) Create(ctx context.Context, companyID string, in dto.CreateCustomerRequest) (*dto.CustomerResponse, error) {
	if in.Name == "" || in.IdentificationType == "" || in.Identification == "" {
		return nil, domain.ErrInvalidInput
	}
	identification, err := pkghacienda.NormalizeIdentification(in.IdentificationType, in.Identification)
	if err != nil {
		return nil, domain.ErrInvalidInput
	}
	existing, _ := uc.repo.GetByCompanyAndIdentification(companyID, identification)
	if existing != nil {
		return nil, domain.ErrDuplicate
	}

	now := time.Now()
	customer := &entity.Customer{
		ID:                 uuid.New().String(),
		CompanyID:          companyID,
		Name:               in.Name,
		IdentificationType: in.IdentificationType,
		Identification:     identification,
		ForeignID:          in.ForeignID,
		Email:              in.Email,
		Phone:              in.Phone,
		Province:           in.Province,
		Canton:             in.Canton,
		District:           in.District,
		Neighborhood:       in.Neighborhood,
		Address:            in.Address,
		CountryCode:        in.CountryCode,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if uc.directory != nil && !customer.Foreign() {
		if activity, err := uc.directory.LookupActivity(ctx, identification); err == nil && activity != "" {
			customer.ActivityCode = activity
		}
	}
	if err := uc.repo.Create(customer); err != nil {
		return nil, err
	}
	return toCustomerResponse(customer), nil
}

// List lista clientes de la empresa.
func (uc *CustomerUseCase) List(ctx context.Context, companyID string, limit, offset int) ([]*dto.CustomerResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	list, err := uc.repo.ListByCompany(companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.CustomerResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toCustomerResponse(c))
	}
	return out, nil
}

// Get obtiene un cliente validando pertenencia a la empresa.
func (uc *CustomerUseCase) Get(ctx context.Context, companyID, id string) (*dto.CustomerResponse, error) {
	customer, err := uc.repo.GetByID(id)
	if err != nil || customer == nil {
		return nil, domain.ErrNotFound
	}
	if customer.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	return toCustomerResponse(customer), nil
}

func toCustomerResponse(c *entity.Customer) *dto.CustomerResponse {
	return &dto.CustomerResponse{
		ID:                 c.ID,
		CompanyID:          c.CompanyID,
		Name:               c.Name,
		IdentificationType: c.IdentificationType,
		Identification:     c.Identification,
		ForeignID:          c.ForeignID,
		Email:              c.Email,
		Phone:              c.Phone,
		Province:           c.Province,
		Canton:             c.Canton,
		District:           c.District,
		CountryCode:        c.CountryCode,
		ActivityCode:       c.ActivityCode,
	}
}
