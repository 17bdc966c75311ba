// Servicio de firma digital XAdES-BES para comprobantes electrónicos v4.4.
// Agrega <ds:Signature> enveloped como último hijo del elemento raíz.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/ucarion/c14n"

	"github.com/jhoicas/facturacr-api/internal/domain"
	pkghacienda "github.com/jhoicas/facturacr-api/pkg/hacienda"
)

// XadesSignatureService implementa la firma XAdES-BES con las tres
// referencias que exige Hacienda: documento completo (URI vacía, transform
// enveloped), KeyInfo y SignedProperties. La estructura y el orden de los
// nodos deben reproducirse exactamente; los validadores de Hacienda
// recomputan cada digest sobre la canonicalización C14N inclusiva.
type XadesSignatureService struct{}

// NewXadesSignatureService crea el servicio.
func NewXadesSignatureService() *XadesSignatureService {
	return &XadesSignatureService{}
}

var _ pkghacienda.Signer = (*XadesSignatureService)(nil)

// signatureIDs identificadores únicos de los nodos de una firma.
type signatureIDs struct {
	Signature      string
	Reference      string
	KeyInfo        string
	SignedProps    string
	Object         string
	Qualifying     string
	SignatureValue string
}

func newSignatureIDs() signatureIDs {
	sigToken := uuid.NewString()
	signatureID := "Signature-" + sigToken
	return signatureIDs{
		Signature:      signatureID,
		Reference:      "Reference-" + uuid.NewString(),
		KeyInfo:        "KeyInfoId-" + signatureID,
		SignedProps:    "SignedProperties-" + signatureID,
		Object:         "XadesObjectId-" + uuid.NewString(),
		Qualifying:     "QualifyingProperties-" + uuid.NewString(),
		SignatureValue: "SignatureValue-" + sigToken,
	}
}

// Sign firma el XML y devuelve el documento con la firma inyectada.
func (s *XadesSignatureService) Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error) {
	if len(xmlBytes) == 0 {
		return nil, fmt.Errorf("%w: XML vacío", domain.ErrValidation)
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: el llavín debe incluir llave privada RSA", domain.ErrConfiguration)
	}
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("%w: el llavín no trae certificado", domain.ErrConfiguration)
	}
	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("%w: parsear certificado: %v", domain.ErrConfiguration, err)
	}

	ids := newSignatureIDs()

	// 1) Referencia al documento completo: C14N del XML sin firma. Como la
	// firma todavía no existe, el transform enveloped es un no-op aquí y el
	// validador obtiene los mismos bytes al quitarla.
	canonicalDoc, err := canonicalizeXML(xmlBytes)
	if err != nil {
		return nil, fmt.Errorf("canonicalizar documento: %w", err)
	}
	docDigestB64 := digestB64(canonicalDoc)

	// 2) Referencia a KeyInfo: certificado DER + módulo/exponente RSA.
	keyInfoXML := s.buildKeyInfo(ids, x509Cert, priv)
	canonicalKeyInfo, err := canonicalizeXML([]byte(keyInfoXML))
	if err != nil {
		return nil, fmt.Errorf("canonicalizar KeyInfo: %w", err)
	}
	keyInfoDigestB64 := digestB64(canonicalKeyInfo)

	// 3) Referencia a SignedProperties: hora de firma, certificado,
	// política fija y rol declarado.
	signingTime := time.Now().Truncate(time.Second).Format("2006-01-02T15:04:05-07:00")
	signedPropsXML := s.buildSignedProperties(ids, x509Cert, signingTime)
	canonicalProps, err := canonicalizeXML([]byte(signedPropsXML))
	if err != nil {
		return nil, fmt.Errorf("canonicalizar SignedProperties: %w", err)
	}
	propsDigestB64 := digestB64(canonicalProps)

	// 4) SignedInfo con las tres referencias, canonicalizado y firmado
	// RSA-PKCS1v15/SHA-256.
	signedInfoXML := s.buildSignedInfo(ids, docDigestB64, keyInfoDigestB64, propsDigestB64)
	canonicalSignedInfo, err := canonicalizeXML([]byte(signedInfoXML))
	if err != nil {
		return nil, fmt.Errorf("canonicalizar SignedInfo: %w", err)
	}
	signHash := sha256.Sum256(canonicalSignedInfo)
	signatureValue, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA256, signHash[:])
	if err != nil {
		return nil, fmt.Errorf("firmar SignedInfo: %w", err)
	}

	signatureXML := s.buildSignature(ids, signedInfoXML, keyInfoXML, signedPropsXML,
		base64.StdEncoding.EncodeToString(signatureValue))

	return s.injectSignature(xmlBytes, signatureXML)
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func digestB64(data []byte) string {
	h := sha256.Sum256(data)
	return base64.StdEncoding.EncodeToString(h[:])
}

func (s *XadesSignatureService) buildKeyInfo(ids signatureIDs, cert *x509.Certificate, priv *rsa.PrivateKey) string {
	certB64 := base64.StdEncoding.EncodeToString(cert.Raw)
	modulusB64 := base64.StdEncoding.EncodeToString(priv.PublicKey.N.Bytes())
	exponentB64 := base64.StdEncoding.EncodeToString(big.NewInt(int64(priv.PublicKey.E)).Bytes())

	var sb strings.Builder
	sb.WriteString(`<ds:KeyInfo xmlns:ds="` + NamespaceDS + `" Id="` + ids.KeyInfo + `">`)
	sb.WriteString(`<ds:X509Data><ds:X509Certificate>` + certB64 + `</ds:X509Certificate></ds:X509Data>`)
	sb.WriteString(`<ds:KeyValue><ds:RSAKeyValue>`)
	sb.WriteString(`<ds:Modulus>` + modulusB64 + `</ds:Modulus>`)
	sb.WriteString(`<ds:Exponent>` + exponentB64 + `</ds:Exponent>`)
	sb.WriteString(`</ds:RSAKeyValue></ds:KeyValue>`)
	sb.WriteString(`</ds:KeyInfo>`)
	return sb.String()
}

func (s *XadesSignatureService) buildSignedProperties(ids signatureIDs, cert *x509.Certificate, signingTime string) string {
	certDigestB64, issuerName, serial := CertDigestAndIssuerSerial(cert)

	var sb strings.Builder
	sb.WriteString(`<xades:SignedProperties xmlns:ds="` + NamespaceDS + `" xmlns:xades="` + NamespaceXAdES + `" Id="` + ids.SignedProps + `">`)
	sb.WriteString(`<xades:SignedSignatureProperties>`)
	sb.WriteString(`<xades:SigningTime>` + signingTime + `</xades:SigningTime>`)
	sb.WriteString(`<xades:SigningCertificate><xades:Cert>`)
	sb.WriteString(`<xades:CertDigest><ds:DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<ds:DigestValue>` + certDigestB64 + `</ds:DigestValue></xades:CertDigest>`)
	sb.WriteString(`<xades:IssuerSerial><ds:X509IssuerName>` + escapeXML(issuerName) + `</ds:X509IssuerName>`)
	sb.WriteString(`<ds:X509SerialNumber>` + serial + `</ds:X509SerialNumber></xades:IssuerSerial>`)
	sb.WriteString(`</xades:Cert></xades:SigningCertificate>`)
	sb.WriteString(`<xades:SignaturePolicyIdentifier><xades:SignaturePolicyId>`)
	sb.WriteString(`<xades:SigPolicyId><xades:Identifier>` + SignaturePolicyIdentifier + `</xades:Identifier>`)
	sb.WriteString(`<xades:Description></xades:Description></xades:SigPolicyId>`)
	sb.WriteString(`<xades:SigPolicyHash><ds:DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<ds:DigestValue>` + SignaturePolicyHash + `</ds:DigestValue></xades:SigPolicyHash>`)
	sb.WriteString(`</xades:SignaturePolicyId></xades:SignaturePolicyIdentifier>`)
	sb.WriteString(`<xades:SignerRole><xades:ClaimedRoles><xades:ClaimedRole>` + ClaimedRole + `</xades:ClaimedRole></xades:ClaimedRoles></xades:SignerRole>`)
	sb.WriteString(`</xades:SignedSignatureProperties>`)
	sb.WriteString(`<xades:SignedDataObjectProperties>`)
	sb.WriteString(`<xades:DataObjectFormat ObjectReference="#` + ids.Reference + `">`)
	sb.WriteString(`<xades:MimeType>text/xml</xades:MimeType>`)
	sb.WriteString(`<xades:Encoding>UTF-8</xades:Encoding>`)
	sb.WriteString(`</xades:DataObjectFormat>`)
	sb.WriteString(`</xades:SignedDataObjectProperties>`)
	sb.WriteString(`</xades:SignedProperties>`)
	return sb.String()
}

func (s *XadesSignatureService) buildSignedInfo(ids signatureIDs, docDigestB64, keyInfoDigestB64, propsDigestB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:SignedInfo xmlns:ds="` + NamespaceDS + `">`)
	sb.WriteString(`<ds:CanonicalizationMethod Algorithm="` + AlgC14N + `"/>`)
	sb.WriteString(`<ds:SignatureMethod Algorithm="` + AlgRSASHA256 + `"/>`)

	// Referencia 1: el documento completo (URI vacía, enveloped + C14N).
	sb.WriteString(`<ds:Reference Id="` + ids.Reference + `" URI="">`)
	sb.WriteString(`<ds:Transforms>`)
	sb.WriteString(`<ds:Transform Algorithm="` + TransformEnveloped + `"/>`)
	sb.WriteString(`<ds:Transform Algorithm="` + AlgC14N + `"/>`)
	sb.WriteString(`</ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<ds:DigestValue>` + docDigestB64 + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)

	// Referencia 2: KeyInfo.
	sb.WriteString(`<ds:Reference Id="ReferenceKeyInfo" URI="#` + ids.KeyInfo + `">`)
	sb.WriteString(`<ds:Transforms><ds:Transform Algorithm="` + AlgC14N + `"/></ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<ds:DigestValue>` + keyInfoDigestB64 + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)

	// Referencia 3: SignedProperties (Type ETSI obligatorio).
	sb.WriteString(`<ds:Reference Type="` + SignedPropertiesType + `" URI="#` + ids.SignedProps + `">`)
	sb.WriteString(`<ds:Transforms><ds:Transform Algorithm="` + AlgC14N + `"/></ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<ds:DigestValue>` + propsDigestB64 + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)

	sb.WriteString(`</ds:SignedInfo>`)
	return sb.String()
}

// buildSignature arma el nodo ds:Signature completo. SignatureValue va como
// segundo hijo, inmediatamente después de SignedInfo: algunos validadores
// rechazan la firma si aparece en otra posición.
func (s *XadesSignatureService) buildSignature(ids signatureIDs, signedInfoXML, keyInfoXML, signedPropsXML, signatureValueB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:Signature xmlns:ds="` + NamespaceDS + `" xmlns:xades="` + NamespaceXAdES + `" Id="` + ids.Signature + `">`)
	sb.WriteString(signedInfoXML)
	sb.WriteString(`<ds:SignatureValue Id="` + ids.SignatureValue + `">` + signatureValueB64 + `</ds:SignatureValue>`)
	sb.WriteString(keyInfoXML)
	sb.WriteString(`<ds:Object Id="` + ids.Object + `">`)
	sb.WriteString(`<xades:QualifyingProperties Id="` + ids.Qualifying + `" Target="#` + ids.Signature + `">`)
	sb.WriteString(signedPropsXML)
	sb.WriteString(`</xades:QualifyingProperties>`)
	sb.WriteString(`</ds:Object>`)
	sb.WriteString(`</ds:Signature>`)
	return sb.String()
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}

// injectSignature agrega la firma como último hijo del elemento raíz.
func (s *XadesSignatureService) injectSignature(xmlBytes []byte, signatureXML string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("parsear XML del comprobante: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: documento sin elemento raíz", domain.ErrValidation)
	}

	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(signatureXML); err != nil {
		return nil, fmt.Errorf("parsear nodo Signature: %w", err)
	}
	sigRoot := sigDoc.Root()
	if sigRoot == nil {
		return nil, fmt.Errorf("nodo Signature vacío")
	}
	root.AddChild(sigRoot)

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("serializar XML firmado: %w", err)
	}
	return out.Bytes(), nil
}
