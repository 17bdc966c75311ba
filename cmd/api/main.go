package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jhoicas/facturacr-api/internal/application/auth"
	"github.com/jhoicas/facturacr-api/internal/application/billing"
	"github.com/jhoicas/facturacr-api/internal/application/usecase"
	infrahacienda "github.com/jhoicas/facturacr-api/internal/infrastructure/hacienda"
	"github.com/jhoicas/facturacr-api/internal/infrastructure/hacienda/signer"
	"github.com/jhoicas/facturacr-api/internal/infrastructure/mail"
	"github.com/jhoicas/facturacr-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/facturacr-api/internal/interfaces/http"
	dhacienda "github.com/jhoicas/facturacr-api/internal/domain/hacienda"
	"github.com/jhoicas/facturacr-api/pkg/config"
	"github.com/jhoicas/facturacr-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Bool("sandbox", cfg.Hacienda.Sandbox).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	companyRepo := postgres.NewCompanyRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	documentRepo := postgres.NewDocumentRepository(pool)
	exonerationRepo := postgres.NewExonerationRepository(pool)

	// Servicios del pipeline de comprobantes.
	claveBuilder := dhacienda.NewClaveBuilderService()
	aggregator := dhacienda.NewTotalsAggregatorService()
	xmlBuilder := infrahacienda.NewXMLBuilderService()
	signerSvc := signer.NewXadesSignatureService()

	gateway := infrahacienda.NewAPIClient(infrahacienda.APIClientOptions{
		BaseURL:  cfg.Hacienda.BaseURL,
		TokenURL: cfg.Hacienda.TokenURL,
		ClientID: cfg.Hacienda.ClientID,
		Username: cfg.Hacienda.Username,
		Password: cfg.Hacienda.Password,
		Sandbox:  cfg.Hacienda.Sandbox,
		Timeout:  time.Duration(cfg.Hacienda.TimeoutSeconds) * time.Second,
	}, log.Zerolog())

	// Correo saliente: solo si hay servidor SMTP configurado.
	var notifier billing.Notifier
	if cfg.SMTP.Host != "" {
		notifier = mail.NewSMTPNotifier(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, log.Zerolog())
	}

	orchestrator := billing.NewHaciendaOrchestrator(
		documentRepo, companyRepo, customerRepo, exonerationRepo,
		claveBuilder, aggregator, xmlBuilder, signerSvc, gateway, notifier,
		billing.HaciendaConfig{
			AutoConsult: cfg.Hacienda.AutoConsult,
			AutoEmail:   cfg.Hacienda.AutoEmail,
		},
		log.Zerolog(),
	)

	taxpayerDir := infrahacienda.NewTaxpayerClient("", 0)
	customerUC := billing.NewCustomerUseCase(customerRepo, taxpayerDir)
	exonerationUC := billing.NewExonerationUseCase(exonerationRepo, customerRepo)
	documentUC := billing.NewDocumentUseCase(documentRepo, companyRepo, customerRepo, orchestrator)
	companyUC := usecase.NewCompanyUseCase(companyRepo)
	userUC := usecase.NewUserUseCase(userRepo)
	authUC := auth.NewAuthUseCase(userRepo, companyRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	// Conciliador: consulta en segundo plano los comprobantes enviados que
	// siguen sin veredicto de Hacienda.
	reconcilerCtx, stopReconciler := context.WithCancel(ctx)
	defer stopReconciler()
	reconciler := billing.NewReconciler(
		documentRepo, orchestrator,
		time.Duration(cfg.Hacienda.ReconcileMin)*time.Minute,
		log.Zerolog(),
	)
	go reconciler.Run(reconcilerCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "FacturaCR API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		CompanyUC:     companyUC,
		CustomerUC:    customerUC,
		ExonerationUC: exonerationUC,
		DocumentUC:    documentUC,
		UserUC:        userUC,
		AuthUC:        authUC,
		JWTSecret:     cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")
	stopReconciler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
