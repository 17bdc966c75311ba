package hacienda

import (
	"fmt"
	"strings"
	"unicode"
)

// expectedLengths longitudes válidas por tipo de identificación.
var expectedLengths = map[string][]int{
	IdentificationCedulaFisica:   {9},
	IdentificationCedulaJuridica: {10},
	IdentificationDIMEX:          {11, 12},
	IdentificationNITE:           {10},
}

// NormalizeIdentification limpia una identificación costarricense (quita
// guiones y espacios) y valida su longitud según el tipo. Para el tipo 05
// (extranjero no domiciliado) solo se limpia, sin validar longitud.
func NormalizeIdentification(idType, number string) (string, error) {
	digits := extractDigits(number)
	if idType == IdentificationExtranjero {
		cleaned := strings.TrimSpace(number)
		if cleaned == "" {
			return "", fmt.Errorf("hacienda: identificación de extranjero vacía")
		}
		return cleaned, nil
	}
	lengths, ok := expectedLengths[idType]
	if !ok {
		return "", fmt.Errorf("hacienda: tipo de identificación desconocido: %q", idType)
	}
	for _, l := range lengths {
		if len(digits) == l {
			return digits, nil
		}
	}
	return "", fmt.Errorf("hacienda: identificación tipo %s debe tener %v dígitos, se encontraron %d",
		idType, lengths, len(digits))
}

// PadIdentification rellena una identificación con ceros a la izquierda
// hasta 12 dígitos, el formato que exige la clave numérica.
func PadIdentification(number string) string {
	digits := extractDigits(number)
	if len(digits) >= 12 {
		return digits[len(digits)-12:]
	}
	return strings.Repeat("0", 12-len(digits)) + digits
}

// NormalizePhone normaliza un teléfono al formato de Hacienda: retorna el
// código de país y el número nacional. Acepta prefijos "+506", "00506" o
// número desnudo; por defecto asume Costa Rica (506).
func NormalizePhone(phone string) (countryCode, number string) {
	digits := extractDigits(phone)
	if digits == "" {
		return "", ""
	}
	if strings.HasPrefix(digits, "00") {
		digits = digits[2:]
	}
	if len(digits) > 8 && strings.HasPrefix(digits, "506") {
		return "506", digits[3:]
	}
	if len(digits) > 8 {
		// número internacional: asume código de país de hasta 3 dígitos
		cut := len(digits) - 8
		if cut > 3 {
			cut = 3
		}
		return digits[:cut], digits[cut:]
	}
	return "506", digits
}

func extractDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
