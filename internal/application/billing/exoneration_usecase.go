package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/facturacr-api/internal/application/dto"
	"github.com/jhoicas/facturacr-api/internal/domain"
	"github.com/jhoicas/facturacr-api/internal/domain/entity"
	"github.com/jhoicas/facturacr-api/internal/domain/repository"
	pkghacienda "github.com/jhoicas/facturacr-api/pkg/hacienda"
)

// ExonerationUseCase casos de uso para exoneraciones del IVA.
type ExonerationUseCase struct {
	repo         repository.ExonerationRepository
	customerRepo repository.CustomerRepository
}

// NewExonerationUseCase construye el caso de uso.
func NewExonerationUseCase(repo repository.ExonerationRepository, customerRepo repository.CustomerRepository) *ExonerationUseCase {
	return &ExonerationUseCase{repo: repo, customerRepo: customerRepo}
}

// Create registra una exoneración para un cliente de la empresa.
func (uc *ExonerationUseCase) Create(ctx context.Context, companyID string, in dto.CreateExonerationRequest) (*dto.ExonerationResponse, error) {
	if in.CustomerID == "" || in.DocType == "" || in.DocNumber == "" {
		return nil, fmt.Errorf("%w: customer_id, doc_type y doc_number son requeridos", domain.ErrInvalidInput)
	}
	if pkghacienda.ExonerationRequiresArticle[in.DocType] && in.Article == 0 {
		return nil, fmt.Errorf("%w: el tipo de exoneración %s requiere artículo", domain.ErrInvalidInput, in.DocType)
	}
	customer, err := uc.customerRepo.GetByID(in.CustomerID)
	if err != nil || customer == nil {
		return nil, domain.ErrNotFound
	}
	if customer.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	issueDate, err := time.Parse("2006-01-02", in.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("%w: fecha de emisión inválida: %q", domain.ErrInvalidInput, in.IssueDate)
	}
	var expiration time.Time
	if in.ExpirationDate != "" {
		expiration, err = time.Parse("2006-01-02", in.ExpirationDate)
		if err != nil {
			return nil, fmt.Errorf("%w: fecha de vencimiento inválida: %q", domain.ErrInvalidInput, in.ExpirationDate)
		}
	}

	now := time.Now()
	exo := &entity.Exoneration{
		ID:             uuid.New().String(),
		CompanyID:      companyID,
		CustomerID:     in.CustomerID,
		DocType:        in.DocType,
		DocNumber:      in.DocNumber,
		Institution:    in.Institution,
		Article:        in.Article,
		Subsection:     in.Subsection,
		Percentage:     in.Percentage,
		IssueDate:      issueDate,
		ExpirationDate: expiration,
		CabysCodes:     in.CabysCodes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := uc.repo.Create(exo); err != nil {
		return nil, err
	}
	return toExonerationResponse(exo), nil
}

// ListByCustomer lista las exoneraciones de un cliente de la empresa.
func (uc *ExonerationUseCase) ListByCustomer(ctx context.Context, companyID, customerID string) ([]*dto.ExonerationResponse, error) {
	customer, err := uc.customerRepo.GetByID(customerID)
	if err != nil || customer == nil {
		return nil, domain.ErrNotFound
	}
	if customer.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	list, err := uc.repo.ListByCustomer(customerID)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.ExonerationResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toExonerationResponse(e))
	}
	return out, nil
}

// Delete elimina una exoneración validando pertenencia a la empresa.
func (uc *ExonerationUseCase) Delete(ctx context.Context, companyID, id string) error {
	exo, err := uc.repo.GetByID(id)
	if err != nil || exo == nil {
		return domain.ErrNotFound
	}
	if exo.CompanyID != companyID {
		return domain.ErrForbidden
	}
	return uc.repo.Delete(id)
}

func toExonerationResponse(e *entity.Exoneration) *dto.ExonerationResponse {
	out := &dto.ExonerationResponse{
		ID:          e.ID,
		CustomerID:  e.CustomerID,
		DocType:     e.DocType,
		DocNumber:   e.DocNumber,
		Institution: e.Institution,
		Article:     e.Article,
		Subsection:  e.Subsection,
		Percentage:  e.Percentage,
		IssueDate:   e.IssueDate.Format("2006-01-02"),
		CabysCodes:  e.CabysCodes,
	}
	if !e.ExpirationDate.IsZero() {
		out.ExpirationDate = e.ExpirationDate.Format("2006-01-02")
	}
	return out
}
