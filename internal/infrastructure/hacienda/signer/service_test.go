package signer_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/xml"
	"math/big"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ucarion/c14n"

	"github.com/jhoicas/facturacr-api/internal/domain"
	"github.com/jhoicas/facturacr-api/internal/infrastructure/hacienda/signer"
)

// testCertificate genera un certificado autofirmado con llave RSA de 2048
// bits, equivalente en forma al llavín que emite Hacienda.
func testCertificate(t *testing.T) tls.Certificate {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(123456789),
		Subject: pkix.Name{
			CommonName:   "JUAN PEREZ (FIRMA)",
			Organization: []string{"PERSONA FISICA"},
			Country:      []string{"CR"},
		},
		NotBefore: time.Now().Add(-time.Hour),
		NotAfter:  time.Now().Add(24 * time.Hour),
		KeyUsage:  x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv, Leaf: leaf}
}

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<FacturaElectronica xmlns="https://cdn.comprobanteselectronicos.go.cr/xml-schemas/v4.4/facturaElectronica">` +
	`<Clave>50615032600310112345600100001010000000042112345678</Clave>` +
	`<NumeroConsecutivo>00100001010000000042</NumeroConsecutivo>` +
	`</FacturaElectronica>`

func TestSign_EstructuraDeFirma(t *testing.T) {
	svc := signer.NewXadesSignatureService()
	cert := testCertificate(t)

	signed, err := svc.Sign([]byte(sampleXML), cert)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(signed))
	root := doc.Root()
	require.NotNil(t, root)

	children := root.ChildElements()
	require.NotEmpty(t, children)
	sig := children[len(children)-1]
	assert.Equal(t, "Signature", sig.Tag, "la firma debe ser el último hijo del raíz")

	// SignatureValue debe ser el segundo hijo de Signature.
	sigChildren := sig.ChildElements()
	require.GreaterOrEqual(t, len(sigChildren), 4)
	assert.Equal(t, "SignedInfo", sigChildren[0].Tag)
	assert.Equal(t, "SignatureValue", sigChildren[1].Tag)
	assert.Equal(t, "KeyInfo", sigChildren[2].Tag)
	assert.Equal(t, "Object", sigChildren[3].Tag)

	// Tres referencias: documento, KeyInfo y SignedProperties.
	refs := sigChildren[0].SelectElements("Reference")
	require.Len(t, refs, 3)
	assert.Equal(t, "", refs[0].SelectAttrValue("URI", "ausente"))
	assert.Contains(t, refs[1].SelectAttrValue("URI", ""), "#KeyInfoId-")
	assert.Equal(t, "http://uri.etsi.org/01903#SignedProperties", refs[2].SelectAttrValue("Type", ""))

	// KeyInfo lleva certificado y clave pública RSA.
	keyInfo := sigChildren[2]
	assert.NotNil(t, keyInfo.FindElement("X509Data/X509Certificate"))
	assert.NotNil(t, keyInfo.FindElement("KeyValue/RSAKeyValue/Modulus"))
	assert.NotNil(t, keyInfo.FindElement("KeyValue/RSAKeyValue/Exponent"))

	// QualifyingProperties con política y rol ObligadoTributario.
	props := sig.FindElement("Object/QualifyingProperties/SignedProperties/SignedSignatureProperties")
	require.NotNil(t, props)
	assert.NotNil(t, props.FindElement("SigningTime"))
	assert.NotNil(t, props.FindElement("SigningCertificate/Cert/CertDigest/DigestValue"))
	role := props.FindElement("SignerRole/ClaimedRoles/ClaimedRole")
	require.NotNil(t, role)
	assert.Equal(t, "ObligadoTributario", role.Text())
	policyHash := props.FindElement("SignaturePolicyIdentifier/SignaturePolicyId/SigPolicyHash/DigestValue")
	require.NotNil(t, policyHash)
	assert.Equal(t, signer.SignaturePolicyHash, policyHash.Text())
}

func TestSign_DigestDelDocumentoEstable(t *testing.T) {
	svc := signer.NewXadesSignatureService()
	cert := testCertificate(t)

	// El digest de la Reference del documento es el SHA-256 del C14N del
	// XML sin firma, así que debe ser idéntico entre dos firmas.
	dec := xml.NewDecoder(bytes.NewReader([]byte(sampleXML)))
	dec.Entity = map[string]string{}
	canonical, err := c14n.Canonicalize(dec)
	require.NoError(t, err)
	sum := sha256.Sum256(canonical)
	expectedDigest := base64.StdEncoding.EncodeToString(sum[:])

	extract := func(signed []byte) (digest, sigValue string) {
		doc := etree.NewDocument()
		require.NoError(t, doc.ReadFromBytes(signed))
		ref := doc.FindElement("//SignedInfo/Reference/DigestValue")
		require.NotNil(t, ref)
		sv := doc.FindElement("//SignatureValue")
		require.NotNil(t, sv)
		return ref.Text(), sv.Text()
	}

	signedA, err := svc.Sign([]byte(sampleXML), cert)
	require.NoError(t, err)
	signedB, err := svc.Sign([]byte(sampleXML), cert)
	require.NoError(t, err)

	digestA, valueA := extract(signedA)
	digestB, valueB := extract(signedB)

	assert.Equal(t, expectedDigest, digestA)
	assert.Equal(t, digestA, digestB, "el digest del documento no depende de la hora de firma")
	assert.NotEqual(t, valueA, valueB, "cada firma lleva IDs y SigningTime frescos")
}

func TestSign_SinLlavePrivadaRSA(t *testing.T) {
	svc := signer.NewXadesSignatureService()
	cert := testCertificate(t)
	cert.PrivateKey = nil

	_, err := svc.Sign([]byte(sampleXML), cert)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestSign_XMLVacio(t *testing.T) {
	svc := signer.NewXadesSignatureService()

	_, err := svc.Sign(nil, testCertificate(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
