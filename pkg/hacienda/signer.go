// Package hacienda: interfaz para la firma digital de comprobantes XML (XAdES-BES).

package hacienda

import "crypto/tls"

// Signer firma el XML de un comprobante y devuelve el XML con la firma
// inyectada bajo el elemento raíz.
type Signer interface {
	// Sign toma el XML del comprobante (sin firma) y el certificado con
	// llave privada, y retorna el XML con el nodo ds:Signature enveloped.
	Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error)
}
