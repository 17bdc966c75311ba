package hacienda

import (
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturacr-api/internal/domain"
	"github.com/jhoicas/facturacr-api/internal/domain/entity"
	dhacienda "github.com/jhoicas/facturacr-api/internal/domain/hacienda"
	pkghacienda "github.com/jhoicas/facturacr-api/pkg/hacienda"
)

const testClave = "50615032600310112345600100001010000000042112345678"

var costaRica = time.FixedZone("CST", -6*60*60)

func testCompany() *entity.Company {
	return &entity.Company{
		ID:                 "emp-1",
		Name:               "Distribuidora del Este S.A.",
		IdentificationType: pkghacienda.IdentificationCedulaJuridica,
		Identification:     "3101123456",
		ActivityCode:       "620100",
		Email:              "facturas@distribuidora.cr",
		Phone:              "+506 2222-3344",
		Province:           "1",
		Canton:             "1",
		District:           "3",
		Address:            "200 m norte de la iglesia",
		BranchCode:         "1",
		TerminalCode:       "1",
	}
}

func testCustomer() *entity.Customer {
	return &entity.Customer{
		ID:                 "cli-1",
		Name:               "Carmen Rojas Vargas",
		IdentificationType: pkghacienda.IdentificationCedulaFisica,
		Identification:     "1-0234-0567",
		Email:              "carmen@example.com",
		Province:           "2",
		Canton:             "1",
		District:           "2",
		CountryCode:        "CR",
	}
}

func testDocument(docType string) *entity.ElectronicDocument {
	return &entity.ElectronicDocument{
		ID:            "doc-1",
		CompanyID:     "emp-1",
		CustomerID:    "cli-1",
		DocType:       docType,
		Clave:         testClave,
		IssuedAt:      time.Date(2026, 3, 15, 10, 30, 0, 0, costaRica),
		Currency:      pkghacienda.CurrencyCRC,
		SaleCondition: pkghacienda.SaleConditionContado,
		PaymentMethod: pkghacienda.PaymentMethodEfectivo,
		ActivityCode:  "620100",
		Lines: []*entity.DocumentLine{
			{
				CabysCode:   "8311000000000",
				Description: "Servicio de consultoría",
				Quantity:    decimal.NewFromInt(2),
				Unit:        pkghacienda.UnitServicio,
				UnitPrice:   decimal.NewFromInt(10000),
				TaxCode:     pkghacienda.TaxCodeIVA,
				TaxRateCode: pkghacienda.IVARateGeneral,
			},
		},
	}
}

// buildXML agrega totales y construye el XML, devolviendo la raíz parseada.
func buildXML(t *testing.T, ctx *BuildContext) *etree.Element {
	t.Helper()
	totals, err := dhacienda.NewTotalsAggregatorService().Aggregate(ctx.Document, ctx.Exonerations)
	require.NoError(t, err)
	ctx.Totals = totals

	out, err := NewXMLBuilderService().Build(ctx)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))
	require.NotNil(t, doc.Root())
	return doc.Root()
}

func childTags(el *etree.Element) []string {
	children := el.ChildElements()
	tags := make([]string, 0, len(children))
	for _, c := range children {
		tags = append(tags, c.Tag)
	}
	return tags
}

func childText(t *testing.T, el *etree.Element, path string) string {
	t.Helper()
	found := el.FindElement(path)
	require.NotNil(t, found, "no existe el nodo %s", path)
	return found.Text()
}

// ─────────────────────────────────────────────
// Factura electrónica
// ─────────────────────────────────────────────

func TestBuild_FacturaElectronica_OrdenDeNodos(t *testing.T) {
	ctx := &BuildContext{Document: testDocument(pkghacienda.DocTypeFacturaElectronica), Company: testCompany(), Customer: testCustomer()}

	root := buildXML(t, ctx)

	assert.Equal(t, "FacturaElectronica", root.Tag)
	assert.Equal(t, DocumentSpecs[pkghacienda.DocTypeFacturaElectronica].Namespace, root.SelectAttrValue("xmlns", ""))
	assert.NotEmpty(t, root.SelectAttrValue("xsi:schemaLocation", ""))
	assert.Equal(t, []string{
		"Clave", "ProveedorSistemas", "CodigoActividadEmisor", "NumeroConsecutivo",
		"FechaEmision", "Emisor", "Receptor", "CondicionVenta", "DetalleServicio",
		"ResumenFactura",
	}, childTags(root))

	assert.Equal(t, testClave, childText(t, root, "Clave"))
	assert.Equal(t, "3101123456", childText(t, root, "ProveedorSistemas"))
	assert.Equal(t, "00100001010000000042", childText(t, root, "NumeroConsecutivo"))
	assert.Equal(t, "2026-03-15T10:30:00-06:00", childText(t, root, "FechaEmision"))
}

func TestBuild_EmisorYReceptor(t *testing.T) {
	ctx := &BuildContext{Document: testDocument(pkghacienda.DocTypeFacturaElectronica), Company: testCompany(), Customer: testCustomer()}

	root := buildXML(t, ctx)

	assert.Equal(t, "Distribuidora del Este S.A.", childText(t, root, "Emisor/Nombre"))
	assert.Equal(t, "02", childText(t, root, "Emisor/Identificacion/Tipo"))
	assert.Equal(t, "3101123456", childText(t, root, "Emisor/Identificacion/Numero"))
	assert.Equal(t, "1", childText(t, root, "Emisor/Ubicacion/Provincia"))
	assert.Equal(t, "01", childText(t, root, "Emisor/Ubicacion/Canton"))
	assert.Equal(t, "03", childText(t, root, "Emisor/Ubicacion/Distrito"))
	assert.Equal(t, "200 m norte de la iglesia", childText(t, root, "Emisor/Ubicacion/OtrasSenas"))
	// El teléfono pierde el prefijo de país y queda solo el número local.
	assert.Equal(t, "506", childText(t, root, "Emisor/Telefono/CodigoPais"))
	assert.Equal(t, "22223344", childText(t, root, "Emisor/Telefono/NumTelefono"))

	assert.Equal(t, "Carmen Rojas Vargas", childText(t, root, "Receptor/Nombre"))
	assert.Equal(t, "01", childText(t, root, "Receptor/Identificacion/Tipo"))
	assert.Equal(t, "102340567", childText(t, root, "Receptor/Identificacion/Numero"))
}

func TestBuild_LineaDetalleCompleta(t *testing.T) {
	ctx := &BuildContext{Document: testDocument(pkghacienda.DocTypeFacturaElectronica), Company: testCompany(), Customer: testCustomer()}

	root := buildXML(t, ctx)

	linea := root.FindElement("DetalleServicio/LineaDetalle")
	require.NotNil(t, linea)
	assert.Equal(t, []string{
		"NumeroLinea", "CodigoCABYS", "Cantidad", "UnidadMedida", "Detalle",
		"PrecioUnitario", "MontoTotal", "SubTotal", "BaseImponible", "Impuesto",
		"ImpuestoAsumidoEmisorFabrica", "ImpuestoNeto", "MontoTotalLinea",
	}, childTags(linea))

	assert.Equal(t, "1", childText(t, linea, "NumeroLinea"))
	assert.Equal(t, "8311000000000", childText(t, linea, "CodigoCABYS"))
	assert.Equal(t, "2.00000", childText(t, linea, "Cantidad"))
	assert.Equal(t, "Sp", childText(t, linea, "UnidadMedida"))
	assert.Equal(t, "20000.00000", childText(t, linea, "MontoTotal"))
	assert.Equal(t, "20000.00000", childText(t, linea, "SubTotal"))
	assert.Equal(t, "01", childText(t, linea, "Impuesto/Codigo"))
	assert.Equal(t, "08", childText(t, linea, "Impuesto/CodigoTarifaIVA"))
	assert.Equal(t, "13.00000", childText(t, linea, "Impuesto/Tarifa"))
	assert.Equal(t, "2600.00000", childText(t, linea, "Impuesto/Monto"))
	assert.Equal(t, "0.00000", childText(t, linea, "ImpuestoAsumidoEmisorFabrica"))
	assert.Equal(t, "2600.00000", childText(t, linea, "ImpuestoNeto"))
	assert.Equal(t, "22600.00000", childText(t, linea, "MontoTotalLinea"))
}

func TestBuild_ResumenFactura(t *testing.T) {
	ctx := &BuildContext{Document: testDocument(pkghacienda.DocTypeFacturaElectronica), Company: testCompany(), Customer: testCustomer()}

	root := buildXML(t, ctx)

	resumen := root.FindElement("ResumenFactura")
	require.NotNil(t, resumen)
	assert.Equal(t, "CRC", childText(t, resumen, "CodigoTipoMoneda/CodigoMoneda"))
	assert.Equal(t, "1.00000", childText(t, resumen, "CodigoTipoMoneda/TipoCambio"))
	assert.Equal(t, "20000.00000", childText(t, resumen, "TotalServGravados"))
	assert.Equal(t, "0.00000", childText(t, resumen, "TotalMercanciasGravadas"))
	assert.Equal(t, "20000.00000", childText(t, resumen, "TotalGravado"))
	assert.Equal(t, "20000.00000", childText(t, resumen, "TotalVenta"))
	assert.Equal(t, "20000.00000", childText(t, resumen, "TotalVentaNeta"))
	assert.Equal(t, "2600.00000", childText(t, resumen, "TotalImpuesto"))
	assert.Equal(t, "0.00000", childText(t, resumen, "TotalIVADevuelto"))
	assert.Equal(t, "22600.00000", childText(t, resumen, "TotalComprobante"))
	assert.Equal(t, "01", childText(t, resumen, "MedioPago/TipoMedioPago"))

	desglose := resumen.FindElement("TotalDesgloseImpuesto")
	require.NotNil(t, desglose)
	assert.Equal(t, "01", childText(t, desglose, "Codigo"))
	assert.Equal(t, "08", childText(t, desglose, "CodigoTarifaIVA"))
	assert.Equal(t, "2600.00000", childText(t, desglose, "TotalMontoImpuesto"))
}

func TestBuild_CreditoIncluyePlazo(t *testing.T) {
	doc := testDocument(pkghacienda.DocTypeFacturaElectronica)
	doc.SaleCondition = pkghacienda.SaleConditionCredito
	doc.CreditTermDays = 30
	ctx := &BuildContext{Document: doc, Company: testCompany(), Customer: testCustomer()}

	root := buildXML(t, ctx)

	assert.Equal(t, "02", childText(t, root, "CondicionVenta"))
	assert.Equal(t, "30", childText(t, root, "PlazoCredito"))
	// PlazoCredito inmediatamente después de CondicionVenta.
	tags := childTags(root)
	for i, tag := range tags {
		if tag == "CondicionVenta" {
			require.Less(t, i+1, len(tags))
			assert.Equal(t, "PlazoCredito", tags[i+1])
		}
	}
}

// ─────────────────────────────────────────────
// Tiquete electrónico
// ─────────────────────────────────────────────

func TestBuild_TiqueteAnonimoSinReceptor(t *testing.T) {
	doc := testDocument(pkghacienda.DocTypeTiqueteElectronico)
	doc.CustomerID = ""
	ctx := &BuildContext{Document: doc, Company: testCompany(), Customer: nil}

	root := buildXML(t, ctx)

	assert.Equal(t, "TiqueteElectronico", root.Tag)
	assert.Nil(t, root.FindElement("Receptor"))
}

func TestBuild_TiqueteReceptorSinUbicacionOpcional(t *testing.T) {
	doc := testDocument(pkghacienda.DocTypeTiqueteElectronico)
	customer := testCustomer()
	customer.Province = ""
	customer.Canton = ""
	customer.District = ""
	customer.Address = ""
	ctx := &BuildContext{Document: doc, Company: testCompany(), Customer: customer}

	root := buildXML(t, ctx)

	receptor := root.FindElement("Receptor")
	require.NotNil(t, receptor)
	// Sin datos de ubicación no se inventan defaults.
	assert.Nil(t, receptor.FindElement("Ubicacion"))
}

// ─────────────────────────────────────────────
// Notas de crédito y débito
// ─────────────────────────────────────────────

func TestBuild_NotaCreditoConReferencia(t *testing.T) {
	doc := testDocument(pkghacienda.DocTypeNotaCredito)
	doc.ReferenceDocType = pkghacienda.DocTypeFacturaElectronica
	doc.ReferenceClave = "50601032600310112345600100001010000000001112345678"
	doc.ReferenceIssuedAt = time.Date(2026, 3, 1, 8, 0, 0, 0, costaRica)
	doc.ReferenceReason = "Anulación por error en el monto"
	ctx := &BuildContext{Document: doc, Company: testCompany(), Customer: testCustomer()}

	root := buildXML(t, ctx)

	assert.Equal(t, "NotaCreditoElectronica", root.Tag)
	tags := childTags(root)
	assert.Equal(t, "InformacionReferencia", tags[len(tags)-1])

	ref := root.FindElement("InformacionReferencia")
	require.NotNil(t, ref)
	assert.Equal(t, "01", childText(t, ref, "TipoDocIR"))
	assert.Equal(t, doc.ReferenceClave, childText(t, ref, "Numero"))
	assert.Equal(t, "2026-03-01T08:00:00-06:00", childText(t, ref, "FechaEmisionIR"))
	assert.Equal(t, "01", childText(t, ref, "Codigo"))
	assert.Equal(t, "Anulación por error en el monto", childText(t, ref, "Razon"))
}

func TestBuild_NotaCreditoSinReferenciaEsError(t *testing.T) {
	doc := testDocument(pkghacienda.DocTypeNotaCredito)
	totals, err := dhacienda.NewTotalsAggregatorService().Aggregate(doc, nil)
	require.NoError(t, err)
	ctx := &BuildContext{Document: doc, Company: testCompany(), Customer: testCustomer(), Totals: totals}

	_, err = NewXMLBuilderService().Build(ctx)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

// ─────────────────────────────────────────────
// Factura electrónica de compra
// ─────────────────────────────────────────────

func TestBuild_FacturaCompraInvierteRoles(t *testing.T) {
	doc := testDocument(pkghacienda.DocTypeFacturaCompra)
	doc.ReferenceDocType = pkghacienda.DocTypeFacturaElectronica
	doc.ReferenceClave = "50601032600310112345600100001010000000001112345678"
	doc.ReferenceIssuedAt = time.Date(2026, 3, 1, 8, 0, 0, 0, costaRica)
	supplier := testCustomer()
	supplier.Name = "Proveedor Extranjero Ltd."
	supplier.IdentificationType = pkghacienda.IdentificationExtranjero
	supplier.Identification = ""
	supplier.ForeignID = "AB-123456"
	supplier.CountryCode = "PA"
	ctx := &BuildContext{Document: doc, Company: testCompany(), Customer: supplier}

	root := buildXML(t, ctx)

	assert.Equal(t, "FacturaElectronicaCompra", root.Tag)
	// El proveedor emite y la empresa recibe.
	assert.Equal(t, "Proveedor Extranjero Ltd.", childText(t, root, "Emisor/Nombre"))
	assert.Equal(t, "Distribuidora del Este S.A.", childText(t, root, "Receptor/Nombre"))
	// La identificación extranjera viaja tal cual, sin reducir a dígitos.
	assert.Equal(t, "05", childText(t, root, "Emisor/Identificacion/Tipo"))
	assert.Equal(t, "AB-123456", childText(t, root, "Emisor/Identificacion/Numero"))
	// En la FEC no se reporta IVA devuelto.
	assert.Nil(t, root.FindElement("ResumenFactura/TotalIVADevuelto"))
	// Ni impuesto asumido por línea, pero sí el neto.
	linea := root.FindElement("DetalleServicio/LineaDetalle")
	require.NotNil(t, linea)
	assert.Nil(t, linea.FindElement("ImpuestoAsumidoEmisorFabrica"))
	assert.NotNil(t, linea.FindElement("ImpuestoNeto"))
}

// ─────────────────────────────────────────────
// Factura de exportación
// ─────────────────────────────────────────────

func TestBuild_ExportacionReceptorExtranjero(t *testing.T) {
	doc := testDocument(pkghacienda.DocTypeFacturaExportacion)
	customer := testCustomer()
	customer.Name = "Global Imports LLC"
	customer.IdentificationType = pkghacienda.IdentificationExtranjero
	customer.Identification = "998877665"
	customer.CountryCode = "US"
	ctx := &BuildContext{Document: doc, Company: testCompany(), Customer: customer}

	root := buildXML(t, ctx)

	assert.Equal(t, "FacturaElectronicaExportacion", root.Tag)
	receptor := root.FindElement("Receptor")
	require.NotNil(t, receptor)
	// Receptor fuera del país: sin ubicación local.
	assert.Nil(t, receptor.FindElement("Ubicacion"))
	// La variante de exportación no lleva base imponible ni impuesto neto.
	linea := root.FindElement("DetalleServicio/LineaDetalle")
	require.NotNil(t, linea)
	assert.Nil(t, linea.FindElement("BaseImponible"))
	assert.Nil(t, linea.FindElement("ImpuestoNeto"))
	assert.NotNil(t, linea.FindElement("Impuesto"))
}

// ─────────────────────────────────────────────
// Exoneraciones
// ─────────────────────────────────────────────

func TestBuild_ExoneracionDentroDelImpuesto(t *testing.T) {
	doc := testDocument(pkghacienda.DocTypeFacturaElectronica)
	doc.Lines[0].ExonerationID = "exo-1"
	exonerations := map[string]*entity.Exoneration{
		"exo-1": {
			ID:          "exo-1",
			DocType:     pkghacienda.ExonerationComprasAutorizadas,
			DocNumber:   "AL-00123456-20",
			Institution: "Ministerio de Hacienda",
			Article:     11,
			Subsection:  2,
			Percentage:  decimal.NewFromInt(13),
			IssueDate:   time.Date(2026, 1, 1, 0, 0, 0, 0, costaRica),
		},
	}
	ctx := &BuildContext{Document: doc, Company: testCompany(), Customer: testCustomer(), Exonerations: exonerations}

	root := buildXML(t, ctx)

	exo := root.FindElement("DetalleServicio/LineaDetalle/Impuesto/Exoneracion")
	require.NotNil(t, exo)
	assert.Equal(t, []string{
		"TipoDocumentoEX1", "NumeroDocumento", "Articulo", "Inciso",
		"NombreInstitucion", "FechaEmisionEX", "TarifaExonerada", "MontoExoneracion",
	}, childTags(exo))
	assert.Equal(t, "AL-00123456-20", childText(t, exo, "NumeroDocumento"))
	assert.Equal(t, "11", childText(t, exo, "Articulo"))
	assert.Equal(t, "2", childText(t, exo, "Inciso"))
	assert.Equal(t, "2026-01-01T00:00:00", childText(t, exo, "FechaEmisionEX"))
	assert.Equal(t, "13", childText(t, exo, "TarifaExonerada"))
	assert.Equal(t, "2600.00000", childText(t, exo, "MontoExoneracion"))

	// La línea queda sin impuesto neto y el total excluye el IVA exonerado.
	linea := root.FindElement("DetalleServicio/LineaDetalle")
	assert.Equal(t, "0.00000", childText(t, linea, "ImpuestoNeto"))
	assert.Equal(t, "20000.00000", childText(t, linea, "MontoTotalLinea"))
	assert.Equal(t, "20000.00000", childText(t, root, "ResumenFactura/TotalServExonerado"))
}

// ─────────────────────────────────────────────
// Validaciones del contexto
// ─────────────────────────────────────────────

func TestBuild_TipoDesconocido(t *testing.T) {
	doc := testDocument("99")
	totals := &dhacienda.Totals{}
	ctx := &BuildContext{Document: doc, Company: testCompany(), Customer: testCustomer(), Totals: totals}

	_, err := NewXMLBuilderService().Build(ctx)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBuild_ContextoIncompleto(t *testing.T) {
	_, err := NewXMLBuilderService().Build(nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = NewXMLBuilderService().Build(&BuildContext{Document: testDocument(pkghacienda.DocTypeFacturaElectronica)})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
