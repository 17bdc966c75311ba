package repository

import "github.com/jhoicas/facturacr-api/internal/domain/entity"

// ExonerationRepository define el puerto de persistencia para las
// autorizaciones de exoneración del IVA.
type ExonerationRepository interface {
	Create(exoneration *entity.Exoneration) error
	GetByID(id string) (*entity.Exoneration, error)
	ListByCustomer(customerID string) ([]*entity.Exoneration, error)
	Update(exoneration *entity.Exoneration) error
	Delete(id string) error
}
