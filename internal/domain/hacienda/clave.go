// Package hacienda: construcción de la clave numérica de 50 dígitos de los
// comprobantes electrónicos de Costa Rica, versión 4.4.
// Formato: país(3) + ddmmaa(6) + cédula emisor(12) + consecutivo(20) +
// situación(1) + código de seguridad(8).
package hacienda

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jhoicas/facturacr-api/internal/domain"
	pkghacienda "github.com/jhoicas/facturacr-api/pkg/hacienda"
)

// CountryCode código telefónico de país que abre la clave (Costa Rica).
const CountryCode = "506"

// ClaveParams contiene los datos para construir la clave numérica.
type ClaveParams struct {
	DocType        string    // "01".."09" (tipo de comprobante)
	EmitterID      string    // cédula del emisor, con o sin guiones
	IssuedAt       time.Time // fecha de emisión
	BranchCode     string    // sucursal (3 dígitos)
	TerminalCode   string    // terminal (5 dígitos)
	Sequence       int64     // secuencia asignada para este tipo de documento
	Situation      string    // "1" normal; vacío = normal
	SecurityCode   string    // 8 dígitos; vacío = se genera aleatorio
}

// ClaveBuilderService construye claves y consecutivos v4.4.
type ClaveBuilderService struct{}

// NewClaveBuilderService crea el servicio.
func NewClaveBuilderService() *ClaveBuilderService {
	return &ClaveBuilderService{}
}

// BuildConsecutive arma el consecutivo de 20 dígitos:
// sucursal(3) + terminal(5) + tipo de documento(2) + secuencia(10).
func (s *ClaveBuilderService) BuildConsecutive(docType, branch, terminal string, seq int64) (string, error) {
	if !pkghacienda.ValidDocumentTypes[docType] {
		return "", fmt.Errorf("%w: tipo de comprobante desconocido: %q", domain.ErrValidation, docType)
	}
	if seq <= 0 {
		return "", fmt.Errorf("%w: la secuencia del consecutivo debe ser positiva, se recibió %d", domain.ErrValidation, seq)
	}
	consecutive := padDigits(branch, 3) + padDigits(terminal, 5) + docType + fmt.Sprintf("%010d", seq)
	if len(consecutive) != 20 {
		return "", fmt.Errorf("%w: consecutivo de %d dígitos, se esperaban 20", domain.ErrValidation, len(consecutive))
	}
	return consecutive, nil
}

// Build genera la clave de 50 dígitos. La cédula del emisor se rellena con
// ceros a 12 dígitos (o se trunca por la izquierda si excede, regla
// determinista, no error). El código de seguridad se genera aleatorio si no
// viene dado, de modo que reconstruir la clave con los mismos parámetros
// produce el mismo resultado.
func (s *ClaveBuilderService) Build(p ClaveParams) (clave, consecutive string, err error) {
	consecutive, err = s.BuildConsecutive(p.DocType, p.BranchCode, p.TerminalCode, p.Sequence)
	if err != nil {
		return "", "", err
	}

	situation := p.Situation
	if situation == "" {
		situation = pkghacienda.SituationNormal
	}
	security := p.SecurityCode
	if security == "" {
		security, err = RandomSecurityCode()
		if err != nil {
			return "", "", err
		}
	}
	if len(security) != 8 {
		return "", "", fmt.Errorf("%w: código de seguridad de %d dígitos, se esperaban 8", domain.ErrValidation, len(security))
	}

	clave = CountryCode +
		p.IssuedAt.Format("020106") +
		pkghacienda.PadIdentification(p.EmitterID) +
		consecutive +
		situation +
		security

	if len(clave) != 50 {
		return "", "", fmt.Errorf("%w: clave de %d dígitos, se esperaban 50", domain.ErrValidation, len(clave))
	}
	return clave, consecutive, nil
}

// ExtractConsecutive devuelve el consecutivo embebido en la clave
// (posiciones 22 a 41, índices 21:41).
func ExtractConsecutive(clave string) (string, error) {
	cleaned := strings.TrimSpace(clave)
	if len(cleaned) != 50 {
		return "", fmt.Errorf("%w: clave de %d caracteres, se esperaban 50", domain.ErrValidation, len(cleaned))
	}
	return cleaned[21:41], nil
}

// RandomSecurityCode genera los 8 dígitos aleatorios del final de la clave
// con el generador criptográfico del sistema.
func RandomSecurityCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100_000_000))
	if err != nil {
		return "", fmt.Errorf("generar código de seguridad: %w", err)
	}
	return fmt.Sprintf("%08d", n.Int64()), nil
}

// padDigits deja solo dígitos y ajusta a width: rellena con ceros a la
// izquierda o trunca por la izquierda.
func padDigits(s string, width int) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) >= width {
		return digits[len(digits)-width:]
	}
	return strings.Repeat("0", width-len(digits)) + digits
}
