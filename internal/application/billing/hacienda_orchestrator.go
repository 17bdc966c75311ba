package billing

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/facturacr-api/internal/domain"
	"github.com/jhoicas/facturacr-api/internal/domain/entity"
	dhacienda "github.com/jhoicas/facturacr-api/internal/domain/hacienda"
	"github.com/jhoicas/facturacr-api/internal/domain/repository"
	infrahacienda "github.com/jhoicas/facturacr-api/internal/infrastructure/hacienda"
	"github.com/jhoicas/facturacr-api/internal/infrastructure/hacienda/signer"
	pkghacienda "github.com/jhoicas/facturacr-api/pkg/hacienda"
)

// HaciendaOrchestrator orquesta el ciclo completo del comprobante v4.4:
//
//	Clave → Totales → XML → Firma XAdES → Envío REST → Consulta de estado
//
// Máquina de estados de recepción (api_state):
//
//	pending → sent → done | error
//
// El estado se marca "sent" ANTES del POST de recepción: si el proceso muere
// a mitad del envío, el comprobante queda consultable por clave en lugar de
// reenviarse con riesgo de duplicado.
type HaciendaOrchestrator struct {
	documentRepo    repository.DocumentRepository
	companyRepo     repository.CompanyRepository
	customerRepo    repository.CustomerRepository
	exonerationRepo repository.ExonerationRepository
	claveBuilder    *dhacienda.ClaveBuilderService
	aggregator      *dhacienda.TotalsAggregatorService
	xmlBuilder      *infrahacienda.XMLBuilderService
	signer          pkghacienda.Signer
	gateway         infrahacienda.Gateway
	notifier        Notifier // puede ser nil
	cfg             HaciendaConfig
	log             zerolog.Logger

	// certLoader carga el certificado de firma de la empresa; se sustituye
	// en tests para no depender de un .p12 en disco.
	certLoader func(*entity.Company) (tls.Certificate, error)
}

// NewHaciendaOrchestrator construye el orquestador con sus dependencias.
// notifier puede ser nil: en ese caso no se envían correos.
func NewHaciendaOrchestrator(
	documentRepo repository.DocumentRepository,
	companyRepo repository.CompanyRepository,
	customerRepo repository.CustomerRepository,
	exonerationRepo repository.ExonerationRepository,
	claveBuilder *dhacienda.ClaveBuilderService,
	aggregator *dhacienda.TotalsAggregatorService,
	xmlBuilder *infrahacienda.XMLBuilderService,
	xmlSigner pkghacienda.Signer,
	gateway infrahacienda.Gateway,
	notifier Notifier,
	cfg HaciendaConfig,
	log zerolog.Logger,
) *HaciendaOrchestrator {
	return &HaciendaOrchestrator{
		documentRepo:    documentRepo,
		companyRepo:     companyRepo,
		customerRepo:    customerRepo,
		exonerationRepo: exonerationRepo,
		claveBuilder:    claveBuilder,
		aggregator:      aggregator,
		xmlBuilder:      xmlBuilder,
		signer:          xmlSigner,
		gateway:         gateway,
		notifier:        notifier,
		cfg:             cfg,
		log:             log.With().Str("component", "hacienda_orchestrator").Logger(),
		certLoader:      loadCertificate,
	}
}

// GenerateAndSign asigna la clave, genera el XML y lo firma. Es idempotente:
// si el comprobante ya tiene XML firmado no se regenera nada (la clave jamás
// cambia una vez asignada).
func (o *HaciendaOrchestrator) GenerateAndSign(ctx context.Context, documentID string) error {
	doc, err := o.documentRepo.GetByID(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: comprobante %s", domain.ErrNotFound, documentID)
	}
	if doc.SignedXML != "" {
		o.log.Debug().Str("doc_id", documentID).Msg("ya firmado, se omite la generación")
		return nil
	}
	if doc.Locked() {
		return fmt.Errorf("%w: el comprobante %s ya fue enviado", domain.ErrConflict, documentID)
	}

	company, err := o.companyRepo.GetByID(doc.CompanyID)
	if err != nil || company == nil {
		return fmt.Errorf("%w: empresa %s", domain.ErrNotFound, doc.CompanyID)
	}
	customer, err := o.fetchCustomer(doc)
	if err != nil {
		return err
	}

	// 1. Clave numérica: el consecutivo se reserva atómicamente por tipo.
	if doc.Clave == "" {
		seq, err := o.companyRepo.AllocateConsecutive(doc.CompanyID, doc.DocType)
		if err != nil {
			return fmt.Errorf("reservar consecutivo: %w", err)
		}
		clave, consecutive, err := o.claveBuilder.Build(dhacienda.ClaveParams{
			DocType:      doc.DocType,
			EmitterID:    company.Identification,
			IssuedAt:     doc.IssuedAt,
			BranchCode:   company.BranchCode,
			TerminalCode: company.TerminalCode,
			Sequence:     seq,
		})
		if err != nil {
			return err
		}
		doc.Clave = clave
		doc.Consecutive = consecutive
		doc.SecurityCode = clave[42:]
	}

	// 2. Totales y XML.
	exonerations, err := o.fetchExonerations(doc)
	if err != nil {
		return err
	}
	totals, err := o.aggregator.Aggregate(doc, exonerations)
	if err != nil {
		return err
	}
	customerActivity := ""
	if customer != nil {
		customerActivity = customer.ActivityCode
	}
	xmlBytes, err := o.xmlBuilder.Build(&infrahacienda.BuildContext{
		Document:             doc,
		Company:              company,
		Customer:             customer,
		Totals:               totals,
		Exonerations:         exonerations,
		CustomerActivityCode: customerActivity,
	})
	if err != nil {
		return err
	}

	// 3. Firma XAdES con el llavín de la empresa.
	cert, err := o.certLoader(company)
	if err != nil {
		return err
	}
	signedXML, err := o.signer.Sign(xmlBytes, cert)
	if err != nil {
		return fmt.Errorf("firmar XML: %w", err)
	}

	doc.XML = string(xmlBytes)
	doc.SignedXML = string(signedXML)
	doc.SignedXMLDigest = digestHex(signedXML)
	doc.APIState = entity.APIStatePending
	doc.UpdatedAt = time.Now()
	if err := o.documentRepo.Update(doc); err != nil {
		return err
	}
	o.log.Info().Str("doc_id", documentID).Str("clave", doc.Clave).Msg("comprobante generado y firmado")
	return nil
}

// Send envía el comprobante firmado a recepción. Solo procede desde pending;
// antes de tocar la red verifica que el XML firmado no fue alterado desde la
// firma.
func (o *HaciendaOrchestrator) Send(ctx context.Context, documentID string) error {
	doc, err := o.documentRepo.GetByID(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: comprobante %s", domain.ErrNotFound, documentID)
	}
	if doc.SignedXML == "" {
		return fmt.Errorf("%w: el comprobante no está firmado; genere y firme antes de enviar", domain.ErrValidation)
	}
	if doc.APIState != entity.APIStatePending {
		return fmt.Errorf("%w: el comprobante está en estado %q, solo se envía desde pending",
			domain.ErrConflict, doc.APIState)
	}
	if err := EnsureSignedXMLIntegrity(doc); err != nil {
		return err
	}

	company, err := o.companyRepo.GetByID(doc.CompanyID)
	if err != nil || company == nil {
		return fmt.Errorf("%w: empresa %s", domain.ErrNotFound, doc.CompanyID)
	}

	token, err := o.gateway.GetAccessToken(ctx, companyCredentials(company))
	if err != nil {
		return err
	}

	// sent ANTES del POST: si el proceso muere durante el envío, el cron de
	// conciliación consulta por clave en lugar de reenviar.
	doc.APIState = entity.APIStateSent
	doc.Status = entity.StatusSent
	doc.UpdatedAt = time.Now()
	if err := o.documentRepo.Update(doc); err != nil {
		return err
	}

	payload := &infrahacienda.SubmissionPayload{
		Clave: doc.Clave,
		Fecha: doc.IssuedAt.Format("2006-01-02T15:04:05-07:00"),
		Emisor: infrahacienda.PartyIdentification{
			Type:   company.IdentificationType,
			Number: digitsOnly(company.Identification),
		},
		ComprobanteXML: base64.StdEncoding.EncodeToString([]byte(doc.SignedXML)),
	}
	if customer, _ := o.fetchCustomer(doc); customer != nil && customer.Identification != "" {
		payload.Receptor = &infrahacienda.PartyIdentification{
			Type:   customer.IdentificationType,
			Number: digitsOnly(customer.Identification),
		}
	}

	if err := o.gateway.Submit(ctx, token, payload); err != nil {
		o.markError(doc, "envío", err)
		return err
	}
	o.log.Info().Str("doc_id", documentID).Str("clave", doc.Clave).Msg("comprobante enviado")

	if o.cfg.AutoConsult {
		if err := o.Consult(ctx, documentID); err != nil {
			// El envío ya quedó registrado; la consulta se reintenta por cron.
			o.log.Warn().Err(err).Str("doc_id", documentID).Msg("consulta inmediata falló")
		}
	}
	return nil
}

// Consult consulta el veredicto de Hacienda por clave y actualiza el estado.
// Un comprobante en estado terminal (done/error) no se vuelve a consultar: es
// un error antes de cualquier llamada de red.
func (o *HaciendaOrchestrator) Consult(ctx context.Context, documentID string) error {
	doc, err := o.documentRepo.GetByID(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: comprobante %s", domain.ErrNotFound, documentID)
	}
	if doc.Terminal() {
		return fmt.Errorf("%w: el comprobante ya está en estado terminal %q", domain.ErrConflict, doc.APIState)
	}
	if doc.Clave == "" {
		return fmt.Errorf("%w: el comprobante no tiene clave asignada", domain.ErrValidation)
	}

	company, err := o.companyRepo.GetByID(doc.CompanyID)
	if err != nil || company == nil {
		return fmt.Errorf("%w: empresa %s", domain.ErrNotFound, doc.CompanyID)
	}

	token, err := o.gateway.GetAccessToken(ctx, companyCredentials(company))
	if err != nil {
		return err
	}
	result, err := o.gateway.Consult(ctx, token, doc.Clave, digitsOnly(company.Identification))
	if err != nil {
		return err
	}

	switch result.Status {
	case infrahacienda.IndEstadoAceptado:
		doc.Status = entity.StatusAccepted
		doc.APIState = entity.APIStateDone
	case infrahacienda.IndEstadoRechazado, infrahacienda.IndEstadoError:
		doc.Status = entity.StatusRejected
		doc.APIState = entity.APIStateError
	case infrahacienda.IndEstadoRecibido, infrahacienda.IndEstadoProcesando, "":
		// sigue en sent, se reconsulta luego.
		doc.Status = entity.StatusSent
		doc.APIState = entity.APIStateSent
	default:
		// un ind-estado fuera del catálogo conocido se trata como pendiente,
		// pero se deja rastro para diagnóstico.
		o.log.Warn().
			Str("doc_id", documentID).
			Str("clave", doc.Clave).
			Str("ind_estado", result.Status).
			Msg("ind-estado desconocido de Hacienda, el comprobante sigue pendiente de consulta")
		doc.Status = entity.StatusSent
		doc.APIState = entity.APIStateSent
	}
	if result.ResponseXML != "" {
		doc.ResponseXML = result.ResponseXML
	}
	if result.Detail != "" {
		doc.ResponseDetail = result.Detail
	}
	doc.UpdatedAt = time.Now()
	if err := o.documentRepo.Update(doc); err != nil {
		return err
	}
	o.log.Info().
		Str("doc_id", documentID).
		Str("clave", doc.Clave).
		Str("estado", result.Status).
		Msg("veredicto de Hacienda registrado")

	if doc.Status == entity.StatusAccepted {
		o.notifyAccepted(doc, company)
	}
	return nil
}

// notifyAccepted envía el comprobante aceptado por correo al receptor si el
// envío automático está habilitado. Un fallo de correo nunca revierte el
// estado del comprobante.
func (o *HaciendaOrchestrator) notifyAccepted(doc *entity.ElectronicDocument, company *entity.Company) {
	if !o.cfg.AutoEmail || o.notifier == nil {
		return
	}
	customer, _ := o.fetchCustomer(doc)
	if customer == nil || customer.Email == "" {
		return
	}
	if err := o.notifier.SendAcceptedDocument(doc, company, customer.Email); err != nil {
		o.log.Warn().Err(err).Str("doc_id", doc.ID).Msg("no se pudo enviar el correo al receptor")
	}
}

func (o *HaciendaOrchestrator) fetchCustomer(doc *entity.ElectronicDocument) (*entity.Customer, error) {
	if doc.CustomerID == "" {
		if doc.DocType == pkghacienda.DocTypeTiqueteElectronico {
			return nil, nil // tiquete anónimo
		}
		return nil, fmt.Errorf("%w: el tipo %s requiere receptor", domain.ErrValidation, doc.DocType)
	}
	customer, err := o.customerRepo.GetByID(doc.CustomerID)
	if err != nil || customer == nil {
		return nil, fmt.Errorf("%w: cliente %s", domain.ErrNotFound, doc.CustomerID)
	}
	return customer, nil
}

func (o *HaciendaOrchestrator) fetchExonerations(doc *entity.ElectronicDocument) (map[string]*entity.Exoneration, error) {
	exonerations := make(map[string]*entity.Exoneration)
	for _, line := range doc.Lines {
		if line.ExonerationID == "" {
			continue
		}
		if _, ok := exonerations[line.ExonerationID]; ok {
			continue
		}
		exo, err := o.exonerationRepo.GetByID(line.ExonerationID)
		if err != nil {
			return nil, err
		}
		if exo == nil {
			return nil, fmt.Errorf("%w: exoneración %s", domain.ErrNotFound, line.ExonerationID)
		}
		exonerations[exo.ID] = exo
	}
	return exonerations, nil
}

// markError persiste el estado de error con el detalle del fallo.
func (o *HaciendaOrchestrator) markError(doc *entity.ElectronicDocument, step string, cause error) {
	doc.APIState = entity.APIStateError
	doc.ResponseDetail = cause.Error()
	doc.UpdatedAt = time.Now()
	if err := o.documentRepo.Update(doc); err != nil {
		o.log.Error().Err(err).Str("doc_id", doc.ID).Msg("no se pudo persistir el estado de error")
	}
	o.log.Error().Err(cause).Str("doc_id", doc.ID).Str("paso", step).Msg("fallo del pipeline")
}

// EnsureSignedXMLIntegrity verifica que el XML firmado almacenado coincide
// con el digest tomado al momento de la firma.
func EnsureSignedXMLIntegrity(doc *entity.ElectronicDocument) error {
	if doc.SignedXMLDigest == "" {
		return fmt.Errorf("%w: el comprobante no tiene digest de firma registrado", domain.ErrIntegrity)
	}
	if digestHex([]byte(doc.SignedXML)) != doc.SignedXMLDigest {
		return fmt.Errorf("%w (clave %s)", domain.ErrIntegrity, doc.Clave)
	}
	return nil
}

// ── helpers privados ──────────────────────────────────────────────────────────

func loadCertificate(company *entity.Company) (tls.Certificate, error) {
	if company.CertPath == "" {
		return tls.Certificate{}, fmt.Errorf("%w: la empresa %s no tiene certificado de firma configurado",
			domain.ErrConfiguration, company.ID)
	}
	return signer.LoadFromP12(company.CertPath, company.CertPassword)
}

func digestHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// companyCredentials arma las credenciales ATV propias del emisor; si la
// empresa no tiene, el gateway usa las del ambiente.
func companyCredentials(company *entity.Company) infrahacienda.Credentials {
	return infrahacienda.Credentials{
		Username: company.HaciendaUsername,
		Password: company.HaciendaPassword,
	}
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
