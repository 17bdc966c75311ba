package repository

import "github.com/jhoicas/facturacr-api/internal/domain/entity"

// CompanyRepository define el puerto de persistencia para Company (DIP).
// La implementación vive en infrastructure.
type CompanyRepository interface {
	Create(company *entity.Company) error
	GetByID(id string) (*entity.Company, error)
	GetByIdentification(identification string) (*entity.Company, error)
	Update(company *entity.Company) error
	List(limit, offset int) ([]*entity.Company, error)
	Delete(id string) error
	// AllocateConsecutive incrementa y devuelve el siguiente consecutivo de
	// la empresa para el tipo de comprobante dado. La asignación es atómica:
	// dos emisiones concurrentes nunca reciben el mismo número.
	AllocateConsecutive(companyID, docType string) (int64, error)
}
