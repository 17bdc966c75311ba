package billing

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturacr-api/internal/domain"
	"github.com/jhoicas/facturacr-api/internal/domain/entity"
	dhacienda "github.com/jhoicas/facturacr-api/internal/domain/hacienda"
	infrahacienda "github.com/jhoicas/facturacr-api/internal/infrastructure/hacienda"
	pkghacienda "github.com/jhoicas/facturacr-api/pkg/hacienda"
)

// ─────────────────────────────────────────────
// Dobles de prueba
// ─────────────────────────────────────────────

type fakeDocumentRepo struct {
	docs   map[string]*entity.ElectronicDocument
	states []string // api_state en cada Update, en orden
}

func newFakeDocumentRepo(docs ...*entity.ElectronicDocument) *fakeDocumentRepo {
	r := &fakeDocumentRepo{docs: make(map[string]*entity.ElectronicDocument)}
	for _, d := range docs {
		r.docs[d.ID] = d
	}
	return r
}

func (r *fakeDocumentRepo) Create(doc *entity.ElectronicDocument) error {
	r.docs[doc.ID] = doc
	return nil
}

func (r *fakeDocumentRepo) Update(doc *entity.ElectronicDocument) error {
	r.docs[doc.ID] = doc
	r.states = append(r.states, doc.APIState)
	return nil
}

func (r *fakeDocumentRepo) GetByID(id string) (*entity.ElectronicDocument, error) {
	return r.docs[id], nil
}

func (r *fakeDocumentRepo) GetByClave(clave string) (*entity.ElectronicDocument, error) {
	for _, d := range r.docs {
		if d.Clave == clave {
			return d, nil
		}
	}
	return nil, nil
}

func (r *fakeDocumentRepo) ListByCompany(companyID string, limit, offset int) ([]*entity.ElectronicDocument, error) {
	var out []*entity.ElectronicDocument
	for _, d := range r.docs {
		if d.CompanyID == companyID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeDocumentRepo) ListPendingConsult(limit int) ([]*entity.ElectronicDocument, error) {
	var out []*entity.ElectronicDocument
	for _, d := range r.docs {
		if d.Clave != "" && !d.Terminal() && d.APIState == entity.APIStateSent {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeCompanyRepo struct {
	company *entity.Company
	lastSeq int64
}

func (r *fakeCompanyRepo) Create(*entity.Company) error                  { return nil }
func (r *fakeCompanyRepo) GetByID(string) (*entity.Company, error)       { return r.company, nil }
func (r *fakeCompanyRepo) Update(*entity.Company) error                  { return nil }
func (r *fakeCompanyRepo) Delete(string) error                           { return nil }
func (r *fakeCompanyRepo) List(int, int) ([]*entity.Company, error)      { return nil, nil }
func (r *fakeCompanyRepo) GetByIdentification(string) (*entity.Company, error) {
	return r.company, nil
}
func (r *fakeCompanyRepo) AllocateConsecutive(companyID, docType string) (int64, error) {
	r.lastSeq++
	return r.lastSeq, nil
}

type fakeCustomerRepo struct {
	customer *entity.Customer
}

func (r *fakeCustomerRepo) Create(*entity.Customer) error            { return nil }
func (r *fakeCustomerRepo) GetByID(string) (*entity.Customer, error) { return r.customer, nil }
func (r *fakeCustomerRepo) GetByCompanyAndIdentification(string, string) (*entity.Customer, error) {
	return nil, nil
}
func (r *fakeCustomerRepo) ListByCompany(string, int, int) ([]*entity.Customer, error) {
	return nil, nil
}
func (r *fakeCustomerRepo) Update(*entity.Customer) error { return nil }
func (r *fakeCustomerRepo) Delete(string) error           { return nil }

type fakeExonerationRepo struct{}

func (fakeExonerationRepo) Create(*entity.Exoneration) error            { return nil }
func (fakeExonerationRepo) GetByID(string) (*entity.Exoneration, error) { return nil, nil }
func (fakeExonerationRepo) ListByCustomer(string) ([]*entity.Exoneration, error) {
	return nil, nil
}
func (fakeExonerationRepo) Update(*entity.Exoneration) error { return nil }
func (fakeExonerationRepo) Delete(string) error              { return nil }

// fakeSigner firma agregando un sufijo reconocible.
type fakeSigner struct {
	calls int
}

func (s *fakeSigner) Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error) {
	s.calls++
	return append(xmlBytes, []byte("<firma/>")...), nil
}

type fakeGateway struct {
	token        string
	tokenCalls   int
	lastCreds    infrahacienda.Credentials
	submitErr    error
	submitCalls  int
	consultByKey map[string]*infrahacienda.ConsultResult
	consultErrs  map[string]error
	consultCalls int
}

func (g *fakeGateway) GetAccessToken(_ context.Context, creds infrahacienda.Credentials) (string, error) {
	g.tokenCalls++
	g.lastCreds = creds
	return g.token, nil
}

func (g *fakeGateway) Submit(_ context.Context, token string, payload *infrahacienda.SubmissionPayload) error {
	g.submitCalls++
	return g.submitErr
}

func (g *fakeGateway) Consult(_ context.Context, token, clave, emisorID string) (*infrahacienda.ConsultResult, error) {
	g.consultCalls++
	if err := g.consultErrs[clave]; err != nil {
		return nil, err
	}
	if result := g.consultByKey[clave]; result != nil {
		return result, nil
	}
	return &infrahacienda.ConsultResult{Status: "recibido"}, nil
}

type fakeNotifier struct {
	sentTo []string
}

func (n *fakeNotifier) SendAcceptedDocument(doc *entity.ElectronicDocument, company *entity.Company, email string) error {
	n.sentTo = append(n.sentTo, email)
	return nil
}

// ─────────────────────────────────────────────
// Armado del orquestador bajo prueba
// ─────────────────────────────────────────────

type orchestratorFixture struct {
	orch     *HaciendaOrchestrator
	docRepo  *fakeDocumentRepo
	gateway  *fakeGateway
	signer   *fakeSigner
	notifier *fakeNotifier
}

func sampleCompany() *entity.Company {
	return &entity.Company{
		ID:                 "emp-1",
		Name:               "Distribuidora del Este S.A.",
		IdentificationType: pkghacienda.IdentificationCedulaJuridica,
		Identification:     "3101123456",
		ActivityCode:       "620100",
		Province:           "1",
		Canton:             "1",
		District:           "3",
		BranchCode:         "1",
		TerminalCode:       "1",
		HaciendaUsername:   "cpj-3-101-123456@stag.comprobanteselectronicos.go.cr",
		HaciendaPassword:   "clave-atv",
		CertPath:           "/certs/llavin.p12",
	}
}

func sampleCustomer() *entity.Customer {
	return &entity.Customer{
		ID:                 "cli-1",
		CompanyID:          "emp-1",
		Name:               "Carmen Rojas Vargas",
		IdentificationType: pkghacienda.IdentificationCedulaFisica,
		Identification:     "102340567",
		Email:              "carmen@example.com",
		Province:           "2",
		Canton:             "1",
		District:           "2",
		CountryCode:        "CR",
	}
}

func pendingDocument() *entity.ElectronicDocument {
	return &entity.ElectronicDocument{
		ID:            "doc-1",
		CompanyID:     "emp-1",
		CustomerID:    "cli-1",
		DocType:       pkghacienda.DocTypeFacturaElectronica,
		IssuedAt:      time.Date(2026, 3, 15, 10, 30, 0, 0, time.FixedZone("CST", -6*3600)),
		Currency:      pkghacienda.CurrencyCRC,
		ExchangeRate:  decimal.NewFromInt(1),
		SaleCondition: pkghacienda.SaleConditionContado,
		PaymentMethod: pkghacienda.PaymentMethodEfectivo,
		ActivityCode:  "620100",
		APIState:      entity.APIStatePending,
		Lines: []*entity.DocumentLine{
			{
				CabysCode:   "8311000000000",
				Description: "Servicio de consultoría",
				Quantity:    decimal.NewFromInt(2),
				Unit:        pkghacienda.UnitServicio,
				UnitPrice:   decimal.NewFromInt(10000),
				TaxCode:     pkghacienda.TaxCodeIVA,
				TaxRateCode: pkghacienda.IVARateGeneral,
			},
		},
	}
}

func newFixture(t *testing.T, cfg HaciendaConfig, docs ...*entity.ElectronicDocument) *orchestratorFixture {
	t.Helper()
	docRepo := newFakeDocumentRepo(docs...)
	gateway := &fakeGateway{
		token:        "tok-1",
		consultByKey: make(map[string]*infrahacienda.ConsultResult),
		consultErrs:  make(map[string]error),
	}
	signer := &fakeSigner{}
	notifier := &fakeNotifier{}

	orch := NewHaciendaOrchestrator(
		docRepo,
		&fakeCompanyRepo{company: sampleCompany()},
		&fakeCustomerRepo{customer: sampleCustomer()},
		fakeExonerationRepo{},
		dhacienda.NewClaveBuilderService(),
		dhacienda.NewTotalsAggregatorService(),
		infrahacienda.NewXMLBuilderService(),
		signer,
		gateway,
		notifier,
		cfg,
		zerolog.Nop(),
	)
	orch.certLoader = func(*entity.Company) (tls.Certificate, error) {
		return tls.Certificate{}, nil
	}
	return &orchestratorFixture{orch: orch, docRepo: docRepo, gateway: gateway, signer: signer, notifier: notifier}
}

// ─────────────────────────────────────────────
// Generación y firma
// ─────────────────────────────────────────────

func TestGenerateAndSign_AsignaClaveYFirma(t *testing.T) {
	fx := newFixture(t, HaciendaConfig{}, pendingDocument())

	require.NoError(t, fx.orch.GenerateAndSign(context.Background(), "doc-1"))

	doc := fx.docRepo.docs["doc-1"]
	require.Len(t, doc.Clave, 50)
	assert.Equal(t, "506", doc.Clave[:3])
	assert.Equal(t, "00100001010000000001", doc.Consecutive)
	assert.Equal(t, doc.Clave[42:], doc.SecurityCode)
	assert.NotEmpty(t, doc.XML)
	assert.NotEmpty(t, doc.SignedXML)
	assert.Contains(t, doc.SignedXML, "<firma/>")

	sum := sha256.Sum256([]byte(doc.SignedXML))
	assert.Equal(t, hex.EncodeToString(sum[:]), doc.SignedXMLDigest)
	assert.Equal(t, entity.APIStatePending, doc.APIState)
}

func TestGenerateAndSign_EsIdempotente(t *testing.T) {
	fx := newFixture(t, HaciendaConfig{}, pendingDocument())

	require.NoError(t, fx.orch.GenerateAndSign(context.Background(), "doc-1"))
	claveOriginal := fx.docRepo.docs["doc-1"].Clave
	require.NoError(t, fx.orch.GenerateAndSign(context.Background(), "doc-1"))

	assert.Equal(t, 1, fx.signer.calls, "la segunda llamada no debe volver a firmar")
	assert.Equal(t, claveOriginal, fx.docRepo.docs["doc-1"].Clave)
}

// ─────────────────────────────────────────────
// Envío
// ─────────────────────────────────────────────

func TestSend_MarcaSentAntesDelEnvioYErrorAlFallar(t *testing.T) {
	fx := newFixture(t, HaciendaConfig{}, pendingDocument())
	require.NoError(t, fx.orch.GenerateAndSign(context.Background(), "doc-1"))
	fx.gateway.submitErr = fmt.Errorf("%w: error API Hacienda (401). Detalle: token expirado",
		domain.ErrRemoteRejection)

	err := fx.orch.Send(context.Background(), "doc-1")

	require.ErrorIs(t, err, domain.ErrRemoteRejection)
	doc := fx.docRepo.docs["doc-1"]
	assert.Equal(t, entity.APIStateError, doc.APIState)
	assert.Contains(t, doc.ResponseDetail, "401")
	// El estado sent se persistió ANTES del POST fallido.
	require.GreaterOrEqual(t, len(fx.docRepo.states), 2)
	assert.Equal(t, entity.APIStateSent, fx.docRepo.states[len(fx.docRepo.states)-2])
	assert.Equal(t, entity.APIStateError, fx.docRepo.states[len(fx.docRepo.states)-1])
}

func TestSend_ExitosoQuedaEnSent(t *testing.T) {
	fx := newFixture(t, HaciendaConfig{}, pendingDocument())
	require.NoError(t, fx.orch.GenerateAndSign(context.Background(), "doc-1"))

	require.NoError(t, fx.orch.Send(context.Background(), "doc-1"))

	doc := fx.docRepo.docs["doc-1"]
	assert.Equal(t, entity.APIStateSent, doc.APIState)
	assert.Equal(t, entity.StatusSent, doc.Status)
	assert.Equal(t, 1, fx.gateway.submitCalls)
}

func TestSend_UsaCredencialesATVDeLaEmpresa(t *testing.T) {
	fx := newFixture(t, HaciendaConfig{}, pendingDocument())
	require.NoError(t, fx.orch.GenerateAndSign(context.Background(), "doc-1"))

	require.NoError(t, fx.orch.Send(context.Background(), "doc-1"))

	assert.Equal(t, "cpj-3-101-123456@stag.comprobanteselectronicos.go.cr", fx.gateway.lastCreds.Username)
	assert.Equal(t, "clave-atv", fx.gateway.lastCreds.Password)
}

func TestSend_SoloDesdePending(t *testing.T) {
	doc := pendingDocument()
	doc.APIState = entity.APIStateSent
	doc.SignedXML = "<xml/>"
	doc.SignedXMLDigest = "abc"
	fx := newFixture(t, HaciendaConfig{}, doc)

	err := fx.orch.Send(context.Background(), "doc-1")

	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Zero(t, fx.gateway.submitCalls)
}

func TestSend_DetectaAlteracionDelXMLFirmado(t *testing.T) {
	fx := newFixture(t, HaciendaConfig{}, pendingDocument())
	require.NoError(t, fx.orch.GenerateAndSign(context.Background(), "doc-1"))
	fx.docRepo.docs["doc-1"].SignedXML += " "

	err := fx.orch.Send(context.Background(), "doc-1")

	require.ErrorIs(t, err, domain.ErrIntegrity)
	assert.Zero(t, fx.gateway.tokenCalls, "la alteración se detecta antes de tocar la red")
}

// ─────────────────────────────────────────────
// Consulta
// ─────────────────────────────────────────────

func sentDocument(t *testing.T, fx *orchestratorFixture) *entity.ElectronicDocument {
	t.Helper()
	require.NoError(t, fx.orch.GenerateAndSign(context.Background(), "doc-1"))
	require.NoError(t, fx.orch.Send(context.Background(), "doc-1"))
	return fx.docRepo.docs["doc-1"]
}

func TestConsult_AceptadoNotificaAlReceptor(t *testing.T) {
	fx := newFixture(t, HaciendaConfig{AutoEmail: true}, pendingDocument())
	doc := sentDocument(t, fx)
	fx.gateway.consultByKey[doc.Clave] = &infrahacienda.ConsultResult{
		Status:      infrahacienda.IndEstadoAceptado,
		ResponseXML: "<MensajeReceptor/>",
		Detail:      "Comprobante aceptado",
	}

	require.NoError(t, fx.orch.Consult(context.Background(), "doc-1"))

	assert.Equal(t, entity.StatusAccepted, doc.Status)
	assert.Equal(t, entity.APIStateDone, doc.APIState)
	assert.Equal(t, "<MensajeReceptor/>", doc.ResponseXML)
	assert.Equal(t, "Comprobante aceptado", doc.ResponseDetail)
	assert.Equal(t, []string{"carmen@example.com"}, fx.notifier.sentTo)
}

func TestConsult_RechazadoMarcaError(t *testing.T) {
	fx := newFixture(t, HaciendaConfig{AutoEmail: true}, pendingDocument())
	doc := sentDocument(t, fx)
	fx.gateway.consultByKey[doc.Clave] = &infrahacienda.ConsultResult{
		Status: infrahacienda.IndEstadoRechazado,
		Detail: "El XML no cumple con el esquema",
	}

	require.NoError(t, fx.orch.Consult(context.Background(), "doc-1"))

	assert.Equal(t, entity.StatusRejected, doc.Status)
	assert.Equal(t, entity.APIStateError, doc.APIState)
	assert.Contains(t, doc.ResponseDetail, "esquema")
	assert.Empty(t, fx.notifier.sentTo, "los rechazados no se envían por correo")
}

func TestConsult_EnProcesoSigueEnSent(t *testing.T) {
	fx := newFixture(t, HaciendaConfig{}, pendingDocument())
	doc := sentDocument(t, fx)

	require.NoError(t, fx.orch.Consult(context.Background(), "doc-1"))

	assert.Equal(t, entity.APIStateSent, doc.APIState)
	assert.Equal(t, entity.StatusSent, doc.Status)
}

func TestConsult_EstadoDesconocidoSigueEnSent(t *testing.T) {
	fx := newFixture(t, HaciendaConfig{}, pendingDocument())
	doc := sentDocument(t, fx)
	fx.gateway.consultByKey[doc.Clave] = &infrahacienda.ConsultResult{Status: "en cola"}

	require.NoError(t, fx.orch.Consult(context.Background(), "doc-1"))

	assert.Equal(t, entity.APIStateSent, doc.APIState)
	assert.Equal(t, entity.StatusSent, doc.Status)
}

func TestConsult_EstadoTerminalNoTocaLaRed(t *testing.T) {
	doc := pendingDocument()
	doc.Clave = "50615032600310112345600100001010000000001112345678"
	doc.APIState = entity.APIStateDone
	fx := newFixture(t, HaciendaConfig{}, doc)

	err := fx.orch.Consult(context.Background(), "doc-1")

	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Zero(t, fx.gateway.tokenCalls)
	assert.Zero(t, fx.gateway.consultCalls)
}

// ─────────────────────────────────────────────
// Conciliación periódica
// ─────────────────────────────────────────────

func TestReconciler_AislaLosFallosPorComprobante(t *testing.T) {
	docA := pendingDocument()
	docB := pendingDocument()
	docB.ID = "doc-2"
	fx := newFixture(t, HaciendaConfig{}, docA, docB)

	for _, id := range []string{"doc-1", "doc-2"} {
		require.NoError(t, fx.orch.GenerateAndSign(context.Background(), id))
		require.NoError(t, fx.orch.Send(context.Background(), id))
	}
	fx.gateway.consultErrs[docA.Clave] = fmt.Errorf("%w: tiempo de espera agotado", domain.ErrNetwork)
	fx.gateway.consultByKey[docB.Clave] = &infrahacienda.ConsultResult{Status: infrahacienda.IndEstadoAceptado}

	r := NewReconciler(fx.docRepo, fx.orch, time.Minute, zerolog.Nop())
	r.ReconcileOnce(context.Background())

	// El fallo de red de A no impide que B alcance su veredicto.
	assert.Equal(t, entity.APIStateSent, docA.APIState)
	assert.Equal(t, entity.APIStateDone, docB.APIState)
}
