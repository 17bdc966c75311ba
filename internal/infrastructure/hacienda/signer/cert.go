// Carga del llavín criptográfico (.p12) emitido por Hacienda.

package signer

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"

	"github.com/jhoicas/facturacr-api/internal/domain"
)

// LoadFromP12 carga certificado y llave privada desde un archivo .p12/.pfx.
// El password puede ser vacío si el archivo no está protegido. Cualquier
// fallo es un error de configuración: sin llavín no hay firma posible.
func LoadFromP12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: leer llavín %s: %v", domain.ErrConfiguration, path, err)
	}
	return DecodeP12(data, password)
}

// DecodeP12 decodifica los bytes de un contenedor PKCS#12.
func DecodeP12(data []byte, password string) (tls.Certificate, error) {
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: decodificar llavín (¿contraseña incorrecta?): %v", domain.ErrConfiguration, err)
	}
	if priv == nil || cert == nil {
		return tls.Certificate{}, fmt.Errorf("%w: el llavín no contiene llave privada o certificado", domain.ErrConfiguration)
	}
	// pkcs12.Decode devuelve un solo certificado; para Hacienda basta la hoja.
	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  priv,
		Leaf:        cert,
	}, nil
}

// CertDigestAndIssuerSerial devuelve el digest SHA-256 del certificado
// (Base64), el nombre del emisor (RFC 4514) y el serial decimal para los
// nodos SigningCertificate de XAdES.
func CertDigestAndIssuerSerial(cert *x509.Certificate) (digestB64, issuerName, serial string) {
	h := sha256.Sum256(cert.Raw)
	digestB64 = base64.StdEncoding.EncodeToString(h[:])
	issuerName = cert.Issuer.String()
	serial = cert.SerialNumber.String()
	return digestB64, issuerName, serial
}
