package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/facturacr-api/internal/application/auth"
	"github.com/jhoicas/facturacr-api/internal/application/billing"
	"github.com/jhoicas/facturacr-api/internal/application/usecase"
	"github.com/jhoicas/facturacr-api/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	CompanyUC     *usecase.CompanyUseCase
	CustomerUC    *billing.CustomerUseCase
	ExonerationUC *billing.ExonerationUseCase
	DocumentUC    *billing.DocumentUseCase
	UserUC        *usecase.UserUseCase
	AuthUC        *auth.AuthUseCase
	JWTSecret     string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Companies (alta pública; el resto se protege con el token)
	companies := api.Group("/companies")
	companyHandler := NewCompanyHandler(deps.CompanyUC)
	companies.Get("/", companyHandler.List)
	companies.Post("/", companyHandler.Create)
	companies.Get("/:id", companyHandler.GetByID)
	companies.Put("/:id", AuthMiddleware(deps.JWTSecret), companyHandler.Update)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Customers (receptores)
	customers := protected.Group("/customers")
	customerHandler := NewCustomerHandler(deps.CustomerUC)
	customers.Post("/", customerHandler.Create)
	customers.Get("/", customerHandler.List)
	customers.Get("/:id", customerHandler.GetByID)

	// Exonerations (anidadas bajo el cliente)
	exonerationHandler := NewExonerationHandler(deps.ExonerationUC)
	customers.Post("/:id/exonerations", exonerationHandler.Create)
	customers.Get("/:id/exonerations", exonerationHandler.List)
	protected.Delete("/exonerations/:id", exonerationHandler.Delete)

	// Documents (comprobantes electrónicos)
	documents := protected.Group("/documents")
	documentHandler := NewDocumentHandler(deps.DocumentUC)
	documents.Post("/", documentHandler.Create)
	documents.Get("/", documentHandler.List)
	documents.Get("/:id", documentHandler.GetByID)
	documents.Get("/:id/status", documentHandler.GetStatus)
	documents.Patch("/:id", documentHandler.UpdateSaleTerms)
	documents.Post("/:id/send", documentHandler.Send)
	documents.Post("/:id/consult", documentHandler.Consult)

	// Users (gestión de usuarios de la empresa, solo admin)
	users := protected.Group("/users", RequireRole(entity.RoleAdmin))
	userHandler := NewUserHandler(deps.UserUC)
	users.Post("/", userHandler.Create)
	users.Get("/", userHandler.List)
	users.Delete("/:id", userHandler.Delete)
}
