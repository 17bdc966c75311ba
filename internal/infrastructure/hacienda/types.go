// Package hacienda implementa la generación del XML v4.4 y el cliente del
// API de recepción de comprobantes electrónicos de Costa Rica.
package hacienda

import (
	"github.com/jhoicas/facturacr-api/internal/domain/entity"
	dhacienda "github.com/jhoicas/facturacr-api/internal/domain/hacienda"
	pkghacienda "github.com/jhoicas/facturacr-api/pkg/hacienda"
)

// Namespaces de firma (XML-DSig / XAdES) declarados en el documento.
const (
	NsDs  = "http://www.w3.org/2000/09/xmldsig#"
	NsXsd = "http://www.w3.org/2001/XMLSchema"
	NsXsi = "http://www.w3.org/2001/XMLSchema-instance"
)

// DocumentSpec describe la variante de esquema de un tipo de comprobante:
// elemento raíz, namespace y XSD. Agregar un tipo nuevo es agregar una
// entrada aquí, no esparcir condicionales.
type DocumentSpec struct {
	Root      string
	Namespace string
	XSD       string
}

// DocumentSpecs mapea el código de tipo de comprobante a su esquema v4.4.
var DocumentSpecs = map[string]DocumentSpec{
	pkghacienda.DocTypeFacturaElectronica: {
		Root:      "FacturaElectronica",
		Namespace: "https://cdn.comprobanteselectronicos.go.cr/xml-schemas/v4.4/facturaElectronica",
		XSD:       "facturaElectronica.xsd",
	},
	pkghacienda.DocTypeNotaDebito: {
		Root:      "NotaDebitoElectronica",
		Namespace: "https://cdn.comprobanteselectronicos.go.cr/xml-schemas/v4.4/notaDebitoElectronica",
		XSD:       "notaDebitoElectronica.xsd",
	},
	pkghacienda.DocTypeNotaCredito: {
		Root:      "NotaCreditoElectronica",
		Namespace: "https://cdn.comprobanteselectronicos.go.cr/xml-schemas/v4.4/notaCreditoElectronica",
		XSD:       "notaCreditoElectronica.xsd",
	},
	pkghacienda.DocTypeTiqueteElectronico: {
		Root:      "TiqueteElectronico",
		Namespace: "https://cdn.comprobanteselectronicos.go.cr/xml-schemas/v4.4/tiqueteElectronico",
		XSD:       "tiqueteElectronico.xsd",
	},
	pkghacienda.DocTypeFacturaCompra: {
		Root:      "FacturaElectronicaCompra",
		Namespace: "https://cdn.comprobanteselectronicos.go.cr/xml-schemas/v4.4/facturaElectronicaCompra",
		XSD:       "facturaElectronicaCompra.xsd",
	},
	pkghacienda.DocTypeFacturaExportacion: {
		Root:      "FacturaElectronicaExportacion",
		Namespace: "https://cdn.comprobanteselectronicos.go.cr/xml-schemas/v4.4/facturaElectronicaExportacion",
		XSD:       "facturaElectronicaExportacion.xsd",
	},
}

// BuildContext contiene todos los datos necesarios para construir el XML de
// un comprobante. Customer puede ser nil (tiquete electrónico anónimo).
type BuildContext struct {
	Document *entity.ElectronicDocument
	Company  *entity.Company
	Customer *entity.Customer
	Totals   *dhacienda.Totals

	// Exonerations mapea ID a la exoneración referida por las líneas.
	Exonerations map[string]*entity.Exoneration

	// CustomerActivityCode actividad económica del receptor, si se conoce.
	CustomerActivityCode string
}
