package repository

import "github.com/jhoicas/facturacr-api/internal/domain/entity"

// DocumentRepository define el puerto de persistencia para los comprobantes
// electrónicos y sus líneas.
type DocumentRepository interface {
	// Create inserta el comprobante con sus líneas en una transacción.
	Create(doc *entity.ElectronicDocument) error
	// Update actualiza los campos del pipeline: clave, consecutivo, XML,
	// XML firmado, digest, estado de envío, veredicto y respuesta.
	Update(doc *entity.ElectronicDocument) error
	GetByID(id string) (*entity.ElectronicDocument, error)
	GetByClave(clave string) (*entity.ElectronicDocument, error)
	ListByCompany(companyID string, limit, offset int) ([]*entity.ElectronicDocument, error)
	// ListPendingConsult devuelve comprobantes enviados (o sin veredicto)
	// con clave asignada, para que el proceso de conciliación los consulte.
	ListPendingConsult(limit int) ([]*entity.ElectronicDocument, error)
}
