// Constantes para firma XAdES-BES de comprobantes electrónicos v4.4.

package signer

// Política de firma publicada por Hacienda (resolución de disposiciones
// técnicas). El identificador y el hash son constantes de protocolo: se
// toman del PDF publicado, nunca se derivan en tiempo de ejecución.
const (
	SignaturePolicyIdentifier  = "https://cdn.comprobanteselectronicos.go.cr/xml-schemas/Resoluci%C3%B3n_General_sobre_disposiciones_t%C3%A9cnicas_comprobantes_electr%C3%B3nicos_para_efectos_tributarios.pdf"
	SignaturePolicyDescription = "Política de firma para comprobantes electrónicos de Costa Rica"
	SignaturePolicyHash        = "DWxin1xWOeI8OuWQXazh4VjLWAaCLAA954em7DMh0h8="
)

// Namespaces y algoritmos XMLDSig / XAdES.
const (
	NamespaceDS    = "http://www.w3.org/2000/09/xmldsig#"
	NamespaceXAdES = "http://uri.etsi.org/01903/v1.3.2#"

	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgRSASHA256       = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgSHA256          = "http://www.w3.org/2001/04/xmlenc#sha256"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"

	// SignedPropertiesType va en el atributo Type de la tercera Reference.
	SignedPropertiesType = "http://uri.etsi.org/01903#SignedProperties"
)

// ClaimedRole rol declarado del firmante ante Hacienda.
const ClaimedRole = "ObligadoTributario"
