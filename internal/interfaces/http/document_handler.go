package http

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/facturacr-api/internal/application/billing"
	"github.com/jhoicas/facturacr-api/internal/application/dto"
	"github.com/jhoicas/facturacr-api/internal/domain"
)

// DocumentHandler maneja las peticiones HTTP de comprobantes electrónicos.
type DocumentHandler struct {
	uc *billing.DocumentUseCase
}

// NewDocumentHandler construye el handler.
func NewDocumentHandler(uc *billing.DocumentUseCase) *DocumentHandler {
	return &DocumentHandler{uc: uc}
}

// Create crea un comprobante: asigna clave, calcula totales, genera y firma
// el XML. Queda en pending hasta que se envíe.
// POST /api/documents
func (h *DocumentHandler) Create(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.CreateDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	doc, err := h.uc.Create(c.Context(), companyID, in)
	if err != nil {
		return documentError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

// GetByID obtiene el comprobante completo con líneas.
// GET /api/documents/:id
func (h *DocumentHandler) GetByID(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	doc, err := h.uc.Get(c.Context(), companyID, c.Params("id"))
	if err != nil {
		return documentError(c, err)
	}
	return c.JSON(doc)
}

// GetStatus respuesta ligera para polling del estado de recepción.
// GET /api/documents/:id/status
func (h *DocumentHandler) GetStatus(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	status, err := h.uc.GetStatus(c.Context(), companyID, c.Params("id"))
	if err != nil {
		return documentError(c, err)
	}
	return c.JSON(status)
}

// Send envía el XML firmado a la recepción de Hacienda.
// POST /api/documents/:id/send
func (h *DocumentHandler) Send(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	status, err := h.uc.Send(c.Context(), companyID, c.Params("id"))
	if err != nil {
		return documentError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(status)
}

// Consult consulta el veredicto de recepción en Hacienda.
// POST /api/documents/:id/consult
func (h *DocumentHandler) Consult(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	status, err := h.uc.Consult(c.Context(), companyID, c.Params("id"))
	if err != nil {
		return documentError(c, err)
	}
	return c.JSON(status)
}

// UpdateSaleTerms actualiza condición de venta y medio de pago mientras el
// comprobante siga en pending.
// PATCH /api/documents/:id
func (h *DocumentHandler) UpdateSaleTerms(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in struct {
		SaleCondition string `json:"sale_condition"`
		PaymentMethod string `json:"payment_method"`
	}
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := h.uc.UpdateSaleTerms(c.Context(), companyID, c.Params("id"), in.SaleCondition, in.PaymentMethod); err != nil {
		return documentError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// List GET /api/documents?limit=20&offset=0
func (h *DocumentHandler) List(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	list, err := h.uc.List(c.Context(), companyID, limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(list)
}

// documentError traduce la taxonomía de errores del pipeline a estados HTTP.
func documentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "comprobante no encontrado"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado"})
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrIntegrity):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
	case errors.Is(err, domain.ErrConfiguration):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "CONFIGURATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNetwork):
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "NETWORK", Message: err.Error()})
	case errors.Is(err, domain.ErrRemoteRejection):
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "REJECTED", Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
