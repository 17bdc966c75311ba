package hacienda

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"

	"github.com/jhoicas/facturacr-api/internal/domain"
)

// client_id por ambiente del IdP de Hacienda.
const (
	ClientIDSandbox    = "api-stag"
	ClientIDProduction = "api-prod"
)

// Estados que reporta Hacienda en ind-estado.
const (
	IndEstadoAceptado   = "aceptado"
	IndEstadoRechazado  = "rechazado"
	IndEstadoError      = "error"
	IndEstadoRecibido   = "recibido"
	IndEstadoProcesando = "procesando"
)

// PartyIdentification identificación de emisor o receptor en el payload.
type PartyIdentification struct {
	Type   string `json:"tipoIdentificacion"`
	Number string `json:"numeroIdentificacion"`
}

// SubmissionPayload cuerpo del POST de recepción.
type SubmissionPayload struct {
	Clave          string               `json:"clave"`
	Fecha          string               `json:"fecha"` // ISO-8601 con segundos
	Emisor         PartyIdentification  `json:"emisor"`
	ComprobanteXML string               `json:"comprobanteXml"` // XML firmado en Base64
	Receptor       *PartyIdentification `json:"receptor,omitempty"`
}

// ConsultResult resultado de la consulta de estado por clave.
type ConsultResult struct {
	Status      string // ind-estado en minúsculas
	ResponseXML string // respuesta-xml decodificada, si vino
	Detail      string // DetalleMensaje/MensajeHacienda legible
}

// Credentials credenciales ATV de un emisor. El valor cero indica que no hay
// credenciales propias y se usan las del ambiente.
type Credentials struct {
	Username string
	Password string
}

// Gateway define el puerto de salida hacia el API de recepción de Hacienda.
// La implementación concreta usa REST + OAuth2; para tests se inyecta un mock.
type Gateway interface {
	GetAccessToken(ctx context.Context, creds Credentials) (string, error)
	Submit(ctx context.Context, token string, payload *SubmissionPayload) error
	Consult(ctx context.Context, token, clave, emisorID string) (*ConsultResult, error)
}

// APIClientOptions configura el cliente de recepción.
type APIClientOptions struct {
	BaseURL  string
	TokenURL string
	ClientID string // vacío: se deriva de Sandbox
	Username string
	Password string
	Sandbox  bool
	Timeout  time.Duration
}

// APIClient habla con el API de recepción v4.4 de Hacienda: token OAuth2
// (flujo password), envío y consulta. Todas las llamadas son síncronas y
// bloqueantes; el reintento es responsabilidad del cron de consulta.
type APIClient struct {
	httpClient *http.Client
	opts       APIClientOptions
	log        zerolog.Logger
}

var _ Gateway = (*APIClient)(nil)

// NewAPIClient construye el cliente. El timeout por defecto es 30 s.
func NewAPIClient(opts APIClientOptions, log zerolog.Logger) *APIClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &APIClient{
		httpClient: &http.Client{Timeout: timeout},
		opts:       opts,
		log:        log.With().Str("component", "hacienda_api").Logger(),
	}
}

// GetAccessToken obtiene un access_token del IdP de Hacienda con el flujo
// OAuth2 password. Las credenciales ATV del emisor tienen prioridad; si
// vienen vacías se usan las del ambiente. La URL debe apuntar al endpoint de
// token del realm (termina en /protocol/openid-connect/token); cualquier otra
// forma es un error de configuración, no de red.
func (c *APIClient) GetAccessToken(ctx context.Context, creds Credentials) (string, error) {
	username := creds.Username
	password := creds.Password
	if username == "" {
		username, password = c.opts.Username, c.opts.Password
	}
	if username == "" || password == "" {
		return "", fmt.Errorf("%w: configure usuario y contraseña de Hacienda", domain.ErrConfiguration)
	}
	tokenURL := strings.TrimSpace(c.opts.TokenURL)
	parsed, err := url.Parse(tokenURL)
	if err != nil || !strings.Contains(parsed.Path, "openid-connect/token") {
		return "", fmt.Errorf("%w: la URL OAuth de Hacienda debe terminar en /protocol/openid-connect/token: %q",
			domain.ErrConfiguration, tokenURL)
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", c.clientID())
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("construir petición de token: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: autenticación OAuth: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: error autenticando contra Hacienda (%d). Detalle: %s",
			domain.ErrRemoteRejection, resp.StatusCode, preview(body, 200))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := parseJSON(resp, body, &tokenResp, "autenticación"); err != nil {
		return "", err
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("%w: Hacienda no devolvió access_token", domain.ErrRemoteRejection)
	}
	return tokenResp.AccessToken, nil
}

// Submit envía el comprobante firmado al endpoint de recepción.
func (c *APIClient) Submit(ctx context.Context, token string, payload *SubmissionPayload) error {
	if payload == nil || payload.Clave == "" || payload.ComprobanteXML == "" {
		return fmt.Errorf("%w: payload de recepción incompleto", domain.ErrValidation)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("serializar payload: %w", err)
	}
	_, err = c.call(ctx, http.MethodPost, c.receptionEndpoint(""), token, body, nil)
	if err != nil {
		return err
	}
	c.log.Info().Str("clave", payload.Clave).Msg("comprobante enviado a recepción")
	return nil
}

// Consult consulta el estado del comprobante por su clave. emisorID es la
// identificación del emisor (solo dígitos), exigida como query param.
func (c *APIClient) Consult(ctx context.Context, token, clave, emisorID string) (*ConsultResult, error) {
	if clave == "" {
		return nil, fmt.Errorf("%w: clave vacía para consulta", domain.ErrValidation)
	}
	params := url.Values{}
	if emisorID != "" {
		params.Set("emisor", emisorID)
	}
	raw, err := c.call(ctx, http.MethodGet, c.receptionEndpoint(clave), token, nil, params)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("%w: respuesta de consulta no es JSON: %s",
				domain.ErrRemoteRejection, preview(raw, 400))
		}
	}

	result := &ConsultResult{Status: strings.ToLower(stringField(data, "ind-estado"))}
	result.ResponseXML = decodeResponseXML(data)
	result.Detail = extractDetailMessage(data, result.ResponseXML)
	return result, nil
}

// BuildAuthorizationHeader normaliza un token a la forma "Bearer xxx":
// acepta tokens crudos, "Bearer ..." o encabezados completos, y recorta
// comillas y espacios.
func BuildAuthorizationHeader(token string) (string, error) {
	cleaned := strings.TrimSpace(token)
	cleaned = strings.ReplaceAll(cleaned, "\r", "")
	cleaned = strings.ReplaceAll(cleaned, "\n", "")
	if idx := strings.Index(strings.ToLower(cleaned), "authorization:"); idx == 0 {
		cleaned = strings.TrimSpace(cleaned[len("authorization:"):])
	}
	if strings.HasPrefix(strings.ToLower(cleaned), "bearer") {
		parts := strings.SplitN(cleaned, " ", 2)
		if len(parts) == 2 {
			cleaned = strings.TrimSpace(parts[1])
		} else {
			cleaned = ""
		}
	}
	cleaned = strings.Trim(cleaned, `"'`)
	if cleaned == "" {
		return "", fmt.Errorf("%w: no se obtuvo un token OAuth válido", domain.ErrConfiguration)
	}
	return "Bearer " + cleaned, nil
}

func (c *APIClient) clientID() string {
	if c.opts.ClientID != "" {
		return c.opts.ClientID
	}
	if c.opts.Sandbox {
		return ClientIDSandbox
	}
	return ClientIDProduction
}

// receptionEndpoint arma la URL de recepción. Hacienda publica el servicio
// bajo /recepcion/v1/recepcion (y /recepcion-sandbox/v1/recepcion en
// pruebas); si la URL base ya incluye parte de la ruta solo se agrega el
// segmento faltante.
func (c *APIClient) receptionEndpoint(clave string) string {
	base := strings.TrimRight(strings.TrimSpace(c.opts.BaseURL), "/")
	var endpoint string
	switch {
	case strings.HasSuffix(base, "/recepcion/v1") || strings.HasSuffix(base, "/recepcion-sandbox/v1"):
		endpoint = base + "/recepcion"
	case strings.HasSuffix(base, "/recepcion/v1/recepcion") || strings.HasSuffix(base, "/recepcion-sandbox/v1/recepcion"):
		endpoint = base
	default:
		endpoint = base + "/recepcion/v1/recepcion"
	}
	if clave != "" {
		return endpoint + "/" + clave
	}
	return endpoint
}

// call ejecuta una llamada autenticada y devuelve el cuerpo crudo. HTTP
// >= 400 se reporta como rechazo remoto con el cuerpo truncado como detalle.
func (c *APIClient) call(ctx context.Context, method, endpoint, token string, body []byte, params url.Values) ([]byte, error) {
	authHeader, err := BuildAuthorizationHeader(token)
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("construir petición: %w", err)
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: tiempo de espera agotado comunicando con Hacienda", domain.ErrNetwork)
		}
		return nil, fmt.Errorf("%w: no fue posible conectar con el API de Hacienda: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: error API Hacienda (%d). Detalle: %s",
			domain.ErrRemoteRejection, resp.StatusCode, preview(raw, 200))
	}
	return raw, nil
}

// parseJSON decodifica el cuerpo validando que sea JSON; un cuerpo no-JSON
// produce un error descriptivo con código, content-type y un extracto,
// nunca una excepción de parseo cruda.
func parseJSON(resp *http.Response, body []byte, v any, context string) error {
	if err := json.Unmarshal(body, v); err != nil {
		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "desconocido"
		}
		return fmt.Errorf("%w: respuesta inválida de Hacienda durante %s. Código: %d, Content-Type: %s, cuerpo: %s",
			domain.ErrRemoteRejection, context, resp.StatusCode, contentType, preview(body, 400))
	}
	return nil
}

func stringField(data map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := data[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// decodeResponseXML extrae la respuesta XML del JSON de consulta. Puede
// venir en Base64 o como XML crudo bajo varias llaves.
func decodeResponseXML(data map[string]any) string {
	payload := stringField(data, "respuesta-xml", "respuestaXml", "xmlRespuesta", "xml")
	if payload == "" {
		return ""
	}
	if strings.HasPrefix(strings.TrimSpace(payload), "<") {
		return payload
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return payload
	}
	return string(decoded)
}

// extractDetailMessage busca un mensaje legible: primero en las llaves del
// JSON, luego escaneando el XML de respuesta por DetalleMensaje y
// MensajeHacienda.
func extractDetailMessage(data map[string]any, responseXML string) string {
	if msg := stringField(data,
		"detalle-mensaje", "detalleMensaje", "mensaje-hacienda", "mensajeHacienda", "mensaje", "message"); msg != "" {
		return msg
	}
	return extractDetailFromXML(responseXML)
}

func extractDetailFromXML(xmlText string) string {
	if strings.TrimSpace(xmlText) == "" {
		return ""
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xmlText); err != nil {
		return ""
	}
	root := doc.Root()
	if root == nil {
		return ""
	}
	for _, wanted := range [][]string{
		{"detallemensaje", "detalle-mensaje", "detalle_mensaje"},
		{"mensajehacienda", "mensaje-hacienda", "mensaje_hacienda", "mensaje"},
	} {
		if msg := findFirstText(root, wanted); msg != "" {
			return msg
		}
	}
	return ""
}

func findFirstText(el *etree.Element, tags []string) string {
	tag := strings.ToLower(el.Tag)
	for _, t := range tags {
		if tag == t {
			if text := strings.TrimSpace(el.Text()); text != "" {
				return text
			}
		}
	}
	for _, child := range el.ChildElements() {
		if msg := findFirstText(child, tags); msg != "" {
			return msg
		}
	}
	return ""
}

func preview(body []byte, max int) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "sin detalle"
	}
	if len(text) > max {
		return text[:max]
	}
	return text
}
