package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/facturacr-api/internal/application/dto"
	"github.com/jhoicas/facturacr-api/internal/domain"
	"github.com/jhoicas/facturacr-api/internal/domain/entity"
	"github.com/jhoicas/facturacr-api/internal/domain/repository"
	pkghacienda "github.com/jhoicas/facturacr-api/pkg/hacienda"
)

// crLocation zona horaria de Costa Rica. La fecha de emisión alimenta tanto
// el token ddmmaa de la clave como FechaEmision del XML, así que debe ser la
// hora local del país y no la del servidor.
var crLocation = func() *time.Location {
	loc, err := time.LoadLocation("America/Costa_Rica")
	if err != nil {
		return time.FixedZone("CST", -6*3600)
	}
	return loc
}()

// DocumentUseCase casos de uso de comprobantes: creación, consulta y
// actualización con bloqueo de campos fiscales tras el envío.
type DocumentUseCase struct {
	documentRepo repository.DocumentRepository
	companyRepo  repository.CompanyRepository
	customerRepo repository.CustomerRepository
	orchestrator *HaciendaOrchestrator
}

// NewDocumentUseCase construye el caso de uso.
func NewDocumentUseCase(
	documentRepo repository.DocumentRepository,
	companyRepo repository.CompanyRepository,
	customerRepo repository.CustomerRepository,
	orchestrator *HaciendaOrchestrator,
) *DocumentUseCase {
	return &DocumentUseCase{
		documentRepo: documentRepo,
		companyRepo:  companyRepo,
		customerRepo: customerRepo,
		orchestrator: orchestrator,
	}
}

// Create registra el comprobante y dispara la generación de clave, XML y
// firma. El comprobante queda en api_state pending, listo para enviarse.
func (uc *DocumentUseCase) Create(ctx context.Context, companyID string, in dto.CreateDocumentRequest) (*dto.DocumentResponse, error) {
	if !pkghacienda.ValidDocumentTypes[in.DocType] {
		return nil, fmt.Errorf("%w: tipo de comprobante desconocido: %q", domain.ErrInvalidInput, in.DocType)
	}
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("%w: el comprobante requiere al menos una línea", domain.ErrInvalidInput)
	}
	if in.CustomerID == "" && in.DocType != pkghacienda.DocTypeTiqueteElectronico {
		return nil, fmt.Errorf("%w: el tipo %s requiere receptor", domain.ErrInvalidInput, in.DocType)
	}

	company, err := uc.companyRepo.GetByID(companyID)
	if err != nil || company == nil {
		return nil, domain.ErrNotFound
	}
	var customerIDType string
	if in.CustomerID != "" {
		customer, err := uc.customerRepo.GetByID(in.CustomerID)
		if err != nil || customer == nil {
			return nil, domain.ErrNotFound
		}
		if customer.CompanyID != companyID {
			return nil, domain.ErrForbidden
		}
		customerIDType = customer.IdentificationType
	}

	now := time.Now().In(crLocation)
	doc := &entity.ElectronicDocument{
		ID:            uuid.New().String(),
		CompanyID:     companyID,
		CustomerID:    in.CustomerID,
		DocType:       in.DocType,
		IssuedAt:      now,
		Currency:      defaultString(in.Currency, pkghacienda.CurrencyCRC),
		ExchangeRate:  in.ExchangeRate,
		SaleCondition: defaultString(in.SaleCondition, pkghacienda.SaleConditionContado),
		PaymentMethod: defaultString(in.PaymentMethod, pkghacienda.PaymentMethodEfectivo),
		ActivityCode:  defaultString(in.ActivityCode, company.ActivityCode),
		APIState:      entity.APIStatePending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if doc.Currency == pkghacienda.CurrencyCRC {
		doc.ExchangeRate = decimal.NewFromInt(1)
	}
	if err := applyCreditTerm(doc, in.DueDate); err != nil {
		return nil, err
	}
	if err := applyReference(doc, in.Reference); err != nil {
		return nil, err
	}
	applyReferenceDefaults(doc, customerIDType)

	for _, l := range in.Lines {
		if !l.Quantity.IsPositive() || l.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: cantidad o precio inválido en línea %q", domain.ErrInvalidInput, l.Description)
		}
		doc.Lines = append(doc.Lines, &entity.DocumentLine{
			ID:            uuid.New().String(),
			DocumentID:    doc.ID,
			CabysCode:     l.CabysCode,
			Description:   l.Description,
			Quantity:      l.Quantity,
			Unit:          defaultString(l.Unit, pkghacienda.UnitUnidad),
			UnitPrice:     l.UnitPrice,
			Discount:      l.Discount,
			TaxCode:       l.TaxCode,
			TaxRateCode:   l.TaxRateCode,
			TaxRate:       l.TaxRate,
			ExonerationID: l.ExonerationID,
		})
	}

	if err := uc.documentRepo.Create(doc); err != nil {
		return nil, err
	}
	if err := uc.orchestrator.GenerateAndSign(ctx, doc.ID); err != nil {
		return nil, err
	}

	// Releer: la generación asignó clave, consecutivo y totales de línea.
	doc, err = uc.documentRepo.GetByID(doc.ID)
	if err != nil || doc == nil {
		return nil, domain.ErrNotFound
	}
	return toDocumentResponse(doc), nil
}

// Get obtiene un comprobante por ID validando pertenencia a la empresa.
func (uc *DocumentUseCase) Get(ctx context.Context, companyID, id string) (*dto.DocumentResponse, error) {
	doc, err := uc.documentRepo.GetByID(id)
	if err != nil || doc == nil {
		return nil, domain.ErrNotFound
	}
	if doc.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	return toDocumentResponse(doc), nil
}

// GetStatus respuesta ligera para polling del estado de recepción.
func (uc *DocumentUseCase) GetStatus(ctx context.Context, companyID, id string) (*dto.DocumentStatusDTO, error) {
	doc, err := uc.documentRepo.GetByID(id)
	if err != nil || doc == nil {
		return nil, domain.ErrNotFound
	}
	if doc.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	return &dto.DocumentStatusDTO{
		ID:             doc.ID,
		Clave:          doc.Clave,
		APIState:       doc.APIState,
		Status:         doc.Status,
		ResponseDetail: doc.ResponseDetail,
	}, nil
}

// List lista comprobantes de la empresa.
func (uc *DocumentUseCase) List(ctx context.Context, companyID string, limit, offset int) ([]*dto.DocumentResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	docs, err := uc.documentRepo.ListByCompany(companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentResponse(d))
	}
	return out, nil
}

// UpdateSaleTerms actualiza condición de venta y medio de pago de un
// comprobante. Una vez que el comprobante salió de pending los campos
// fiscales quedan congelados.
func (uc *DocumentUseCase) UpdateSaleTerms(ctx context.Context, companyID, id, saleCondition, paymentMethod string) error {
	doc, err := uc.documentRepo.GetByID(id)
	if err != nil || doc == nil {
		return domain.ErrNotFound
	}
	if doc.CompanyID != companyID {
		return domain.ErrForbidden
	}
	if doc.Locked() {
		return fmt.Errorf("%w: el comprobante ya fue enviado a Hacienda, sus campos fiscales no pueden modificarse",
			domain.ErrConflict)
	}
	if saleCondition != "" {
		doc.SaleCondition = saleCondition
	}
	if paymentMethod != "" {
		doc.PaymentMethod = paymentMethod
	}
	doc.UpdatedAt = time.Now()
	return uc.documentRepo.Update(doc)
}

// Send envía el comprobante a recepción validando pertenencia a la empresa.
func (uc *DocumentUseCase) Send(ctx context.Context, companyID, id string) (*dto.DocumentStatusDTO, error) {
	if err := uc.checkOwnership(companyID, id); err != nil {
		return nil, err
	}
	if err := uc.orchestrator.Send(ctx, id); err != nil {
		return nil, err
	}
	return uc.GetStatus(ctx, companyID, id)
}

// Consult consulta el veredicto de Hacienda validando pertenencia a la empresa.
func (uc *DocumentUseCase) Consult(ctx context.Context, companyID, id string) (*dto.DocumentStatusDTO, error) {
	if err := uc.checkOwnership(companyID, id); err != nil {
		return nil, err
	}
	if err := uc.orchestrator.Consult(ctx, id); err != nil {
		return nil, err
	}
	return uc.GetStatus(ctx, companyID, id)
}

func (uc *DocumentUseCase) checkOwnership(companyID, id string) error {
	doc, err := uc.documentRepo.GetByID(id)
	if err != nil || doc == nil {
		return domain.ErrNotFound
	}
	if doc.CompanyID != companyID {
		return domain.ErrForbidden
	}
	return nil
}

// applyCreditTerm deriva el plazo de crédito de la fecha de vencimiento:
// días entre emisión y vencimiento, mínimo 1. Solo aplica a ventas a crédito.
func applyCreditTerm(doc *entity.ElectronicDocument, dueDate string) error {
	if doc.SaleCondition != pkghacienda.SaleConditionCredito {
		return nil
	}
	if dueDate == "" {
		doc.CreditTermDays = 1
		return nil
	}
	due, err := time.Parse("2006-01-02", dueDate)
	if err != nil {
		return fmt.Errorf("%w: fecha de vencimiento inválida: %q", domain.ErrInvalidInput, dueDate)
	}
	days := int(due.Sub(doc.IssuedAt).Hours() / 24)
	if days < 1 {
		days = 1
	}
	doc.CreditTermDays = days
	return nil
}

// applyReference copia la información de referencia validando lo mínimo; la
// validación completa por tipo ocurre al generar el XML.
func applyReference(doc *entity.ElectronicDocument, ref *dto.DocumentReferenceDTO) error {
	if ref == nil {
		return nil
	}
	issuedAt, err := time.Parse(time.RFC3339, ref.IssuedAt)
	if err != nil {
		return fmt.Errorf("%w: fecha de emisión de la referencia inválida: %q", domain.ErrInvalidInput, ref.IssuedAt)
	}
	doc.ReferenceDocType = ref.DocType
	doc.ReferenceClave = ref.Clave
	doc.ReferenceIssuedAt = issuedAt
	doc.ReferenceCode = ref.Code
	doc.ReferenceReason = ref.Reason
	return nil
}

// applyReferenceDefaults completa el tipo de documento de la referencia:
// las notas que afectan una factura de compra usan los códigos 17/18 del
// catálogo, y en la FEC la referencia al documento del proveedor es 16
// (extranjeros) o 99 (otros).
func applyReferenceDefaults(doc *entity.ElectronicDocument, customerIDType string) {
	if doc.ReferenceClave == "" {
		return
	}
	if doc.ReferenceDocType == pkghacienda.DocTypeFacturaCompra {
		switch doc.DocType {
		case pkghacienda.DocTypeNotaCredito:
			doc.ReferenceDocType = "17"
		case pkghacienda.DocTypeNotaDebito:
			doc.ReferenceDocType = "18"
		}
		return
	}
	if doc.DocType == pkghacienda.DocTypeFacturaCompra && doc.ReferenceDocType == "" {
		if customerIDType == pkghacienda.IdentificationExtranjero {
			doc.ReferenceDocType = "16"
		} else {
			doc.ReferenceDocType = "99"
		}
	}
}

func toDocumentResponse(doc *entity.ElectronicDocument) *dto.DocumentResponse {
	var total, tax decimal.Decimal
	lines := make([]dto.DocumentLineResponse, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		total = total.Add(l.Total)
		tax = tax.Add(l.TaxNet)
		lines = append(lines, dto.DocumentLineResponse{
			LineNumber: l.LineNumber,
			CabysCode:  l.CabysCode,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
			Subtotal:   l.Subtotal,
			TaxNet:     l.TaxNet,
			Total:      l.Total,
		})
	}
	return &dto.DocumentResponse{
		ID:             doc.ID,
		CompanyID:      doc.CompanyID,
		CustomerID:     doc.CustomerID,
		DocType:        doc.DocType,
		Clave:          doc.Clave,
		Consecutive:    doc.Consecutive,
		IssuedAt:       doc.IssuedAt.Format(time.RFC3339),
		Currency:       doc.Currency,
		APIState:       doc.APIState,
		Status:         doc.Status,
		ResponseDetail: doc.ResponseDetail,
		Total:          total,
		Tax:            tax,
		Lines:          lines,
	}
}

func defaultString(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
