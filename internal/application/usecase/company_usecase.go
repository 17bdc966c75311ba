package usecase

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/facturacr-api/internal/application/dto"
	"github.com/jhoicas/facturacr-api/internal/domain"
	"github.com/jhoicas/facturacr-api/internal/domain/entity"
	"github.com/jhoicas/facturacr-api/internal/domain/repository"
	"github.com/jhoicas/facturacr-api/pkg/hacienda"
)

// CompanyUseCase aplica reglas de negocio para empresas emisoras.
type CompanyUseCase struct {
	repo repository.CompanyRepository
}

// NewCompanyUseCase construye el caso de uso con el puerto de persistencia.
func NewCompanyUseCase(repo repository.CompanyRepository) *CompanyUseCase {
	return &CompanyUseCase{repo: repo}
}

// Create crea una nueva empresa. Normaliza la cédula, genera ID y estado
// inicial. Devuelve domain.ErrDuplicate si la cédula ya está registrada.
func (uc *CompanyUseCase) Create(in dto.CreateCompanyRequest) (*dto.CompanyResponse, error) {
	identification, err := hacienda.NormalizeIdentification(in.IdentificationType, in.Identification)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	existing, _ := uc.repo.GetByIdentification(identification)
	if existing != nil {
		return nil, domain.ErrDuplicate
	}
	now := time.Now()
	branch := in.BranchCode
	if branch == "" {
		branch = "1"
	}
	terminal := in.TerminalCode
	if terminal == "" {
		terminal = "1"
	}
	company := &entity.Company{
		ID:                 uuid.New().String(),
		Name:               in.Name,
		TradeName:          in.TradeName,
		IdentificationType: in.IdentificationType,
		Identification:     identification,
		ActivityCode:       in.ActivityCode,
		Email:              in.Email,
		Phone:              in.Phone,
		Province:           in.Province,
		Canton:             in.Canton,
		District:           in.District,
		Neighborhood:       in.Neighborhood,
		Address:            in.Address,
		BranchCode:         branch,
		TerminalCode:       terminal,
		HaciendaUsername:   in.HaciendaUsername,
		HaciendaPassword:   in.HaciendaPassword,
		CertPath:           in.CertPath,
		CertPassword:       in.CertPassword,
		Status:             "active",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := uc.repo.Create(company); err != nil {
		return nil, err
	}
	return entityToCompanyResponse(company), nil
}

// GetByID obtiene una empresa por ID.
func (uc *CompanyUseCase) GetByID(id string) (*dto.CompanyResponse, error) {
	company, err := uc.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, nil
	}
	return entityToCompanyResponse(company), nil
}

// Update aplica los campos presentes del request sobre la empresa.
func (uc *CompanyUseCase) Update(id string, in dto.UpdateCompanyRequest) (*dto.CompanyResponse, error) {
	company, err := uc.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}
	applyIfSet := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	applyIfSet(&company.Name, in.Name)
	applyIfSet(&company.TradeName, in.TradeName)
	applyIfSet(&company.ActivityCode, in.ActivityCode)
	applyIfSet(&company.Email, in.Email)
	applyIfSet(&company.Phone, in.Phone)
	applyIfSet(&company.Province, in.Province)
	applyIfSet(&company.Canton, in.Canton)
	applyIfSet(&company.District, in.District)
	applyIfSet(&company.Neighborhood, in.Neighborhood)
	applyIfSet(&company.Address, in.Address)
	applyIfSet(&company.BranchCode, in.BranchCode)
	applyIfSet(&company.TerminalCode, in.TerminalCode)
	applyIfSet(&company.HaciendaUsername, in.HaciendaUsername)
	applyIfSet(&company.HaciendaPassword, in.HaciendaPassword)
	applyIfSet(&company.CertPath, in.CertPath)
	applyIfSet(&company.CertPassword, in.CertPassword)
	applyIfSet(&company.Status, in.Status)
	company.UpdatedAt = time.Now()
	if err := uc.repo.Update(company); err != nil {
		return nil, err
	}
	return entityToCompanyResponse(company), nil
}

// List lista empresas con paginación.
func (uc *CompanyUseCase) List(limit, offset int) (*dto.CompanyListResponse, error) {
	list, err := uc.repo.List(limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.CompanyResponse, 0, len(list))
	for _, c := range list {
		items = append(items, *entityToCompanyResponse(c))
	}
	return &dto.CompanyListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: limit, Offset: offset},
	}, nil
}

func entityToCompanyResponse(c *entity.Company) *dto.CompanyResponse {
	if c == nil {
		return nil
	}
	return &dto.CompanyResponse{
		ID:                 c.ID,
		Name:               c.Name,
		TradeName:          c.TradeName,
		IdentificationType: c.IdentificationType,
		Identification:     c.Identification,
		ActivityCode:       c.ActivityCode,
		Email:              c.Email,
		Phone:              c.Phone,
		Province:           c.Province,
		Canton:             c.Canton,
		District:           c.District,
		Neighborhood:       c.Neighborhood,
		Address:            c.Address,
		BranchCode:         c.BranchCode,
		TerminalCode:       c.TerminalCode,
		Status:             c.Status,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}
