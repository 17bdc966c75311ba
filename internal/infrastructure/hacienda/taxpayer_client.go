package hacienda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jhoicas/facturacr-api/internal/domain"
)

// defaultTaxpayerBaseURL registro público de contribuyentes de Hacienda.
const defaultTaxpayerBaseURL = "https://api.hacienda.go.cr/fe"

// TaxpayerClient consulta el registro de contribuyentes (endpoint /ae) para
// obtener la actividad económica principal de una identificación.
type TaxpayerClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewTaxpayerClient construye el cliente. baseURL vacío usa el registro
// público de Hacienda.
func NewTaxpayerClient(baseURL string, timeout time.Duration) *TaxpayerClient {
	if baseURL == "" {
		baseURL = defaultTaxpayerBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TaxpayerClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

type taxpayerResponse struct {
	Nombre      string `json:"nombre"`
	Actividades []struct {
		Codigo string `json:"codigo"`
		Estado string `json:"estado"`
	} `json:"actividades"`
}

// LookupActivity devuelve el código de la primera actividad económica activa
// del contribuyente, o cadena vacía si el registro no la reporta.
func (c *TaxpayerClient) LookupActivity(ctx context.Context, identification string) (string, error) {
	endpoint := c.baseURL + "/ae?identificacion=" + url.QueryEscape(identification)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("construir petición: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: registro de contribuyentes: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil // identificación no inscrita
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: registro de contribuyentes (%d): %s",
			domain.ErrRemoteRejection, resp.StatusCode, preview(body, 200))
	}

	var data taxpayerResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("%w: respuesta del registro no es JSON: %s",
			domain.ErrRemoteRejection, preview(body, 200))
	}
	for _, act := range data.Actividades {
		if act.Estado == "A" && act.Codigo != "" {
			return act.Codigo, nil
		}
	}
	return "", nil
}
