package hacienda

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/facturacr-api/internal/domain"
	"github.com/jhoicas/facturacr-api/internal/domain/entity"
	dhacienda "github.com/jhoicas/facturacr-api/internal/domain/hacienda"
	pkghacienda "github.com/jhoicas/facturacr-api/pkg/hacienda"
)

// XMLBuilderService construye el XML v4.4 del comprobante (sin firma).
// El orden de los nodos lo manda el XSD de cada variante y se reproduce
// exactamente; Hacienda rechaza nodos fuera de secuencia.
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// party datos de emisor o receptor ya resueltos para el XML.
type party struct {
	Name         string
	IDType       string
	IDNumber     string // sin normalizar; se formatea según rol y tipo
	ActivityCode string
	Province     string
	Canton       string
	District     string
	Neighborhood string
	Address      string
	CountryCode  string
	Phone        string
	Email        string
}

// Build genera el XML UTF-8 del comprobante según su variante de esquema.
func (s *XMLBuilderService) Build(ctx *BuildContext) ([]byte, error) {
	if ctx == nil || ctx.Document == nil || ctx.Company == nil || ctx.Totals == nil {
		return nil, fmt.Errorf("%w: faltan documento, empresa o totales en el contexto", domain.ErrValidation)
	}
	docEnt := ctx.Document
	spec, ok := DocumentSpecs[docEnt.DocType]
	if !ok {
		return nil, fmt.Errorf("%w: tipo de comprobante no soportado: %q", domain.ErrValidation, docEnt.DocType)
	}
	if err := dhacienda.ValidateDocument(docEnt, ctx.Exonerations); err != nil {
		return nil, err
	}

	emisor, receptor := s.resolveParties(ctx)

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(spec.Root)
	root.CreateAttr("xmlns", spec.Namespace)
	root.CreateAttr("xmlns:ds", NsDs)
	root.CreateAttr("xmlns:xsd", NsXsd)
	root.CreateAttr("xmlns:xsi", NsXsi)
	root.CreateAttr("xsi:schemaLocation", spec.Namespace+" "+spec.Namespace+"/"+spec.XSD)

	root.CreateElement("Clave").SetText(docEnt.Clave)
	if digits := onlyDigits(ctx.Company.Identification); digits != "" {
		root.CreateElement("ProveedorSistemas").SetText(digits)
	}
	if emisor.ActivityCode != "" {
		root.CreateElement("CodigoActividadEmisor").SetText(emisor.ActivityCode)
	}
	if receptor != nil && receptor.ActivityCode != "" {
		root.CreateElement("CodigoActividadReceptor").SetText(receptor.ActivityCode)
	}

	consecutive, err := dhacienda.ExtractConsecutive(docEnt.Clave)
	if err != nil {
		return nil, err
	}
	root.CreateElement("NumeroConsecutivo").SetText(consecutive)
	root.CreateElement("FechaEmision").SetText(docEnt.IssuedAt.Format("2006-01-02T15:04:05-07:00"))

	emisorNode := root.CreateElement("Emisor")
	s.appendParty(emisorNode, docEnt, emisor, "emisor")

	if receptor != nil {
		receptorNode := root.CreateElement("Receptor")
		s.appendParty(receptorNode, docEnt, receptor, "receptor")
	}

	saleCondition := docEnt.SaleCondition
	if saleCondition == "" {
		saleCondition = pkghacienda.SaleConditionContado
	}
	root.CreateElement("CondicionVenta").SetText(saleCondition)
	if saleCondition == pkghacienda.SaleConditionCredito || saleCondition == "10" {
		root.CreateElement("PlazoCredito").SetText(strconv.Itoa(docEnt.CreditTermDays))
	}

	detalle := root.CreateElement("DetalleServicio")
	for _, line := range docEnt.Lines {
		s.appendLine(detalle, docEnt, line, ctx.Exonerations)
	}

	s.appendSummary(root, docEnt, ctx.Totals)

	if err := s.appendReference(root, docEnt); err != nil {
		return nil, err
	}

	return doc.WriteToBytes()
}

// resolveParties decide quién es emisor y quién receptor. En la factura de
// compra (FEC) los roles se invierten: el proveedor emite y la empresa
// recibe.
func (s *XMLBuilderService) resolveParties(ctx *BuildContext) (*party, *party) {
	companyParty := &party{
		Name:         ctx.Company.Name,
		IDType:       ctx.Company.IdentificationType,
		IDNumber:     ctx.Company.Identification,
		ActivityCode: ctx.Company.ActivityCode,
		Province:     ctx.Company.Province,
		Canton:       ctx.Company.Canton,
		District:     ctx.Company.District,
		Neighborhood: ctx.Company.Neighborhood,
		Address:      ctx.Company.Address,
		CountryCode:  "CR",
		Phone:        ctx.Company.Phone,
		Email:        ctx.Company.Email,
	}
	var customerParty *party
	if ctx.Customer != nil {
		idNumber := ctx.Customer.Identification
		if ctx.Customer.Foreign() && idNumber == "" {
			idNumber = ctx.Customer.ForeignID
		}
		countryCode := ctx.Customer.CountryCode
		if countryCode == "" {
			countryCode = "CR"
		}
		customerParty = &party{
			Name:         ctx.Customer.Name,
			IDType:       ctx.Customer.IdentificationType,
			IDNumber:     idNumber,
			ActivityCode: ctx.CustomerActivityCode,
			Province:     ctx.Customer.Province,
			Canton:       ctx.Customer.Canton,
			District:     ctx.Customer.District,
			Neighborhood: ctx.Customer.Neighborhood,
			Address:      ctx.Customer.Address,
			CountryCode:  countryCode,
			Phone:        ctx.Customer.Phone,
			Email:        ctx.Customer.Email,
		}
	}

	if ctx.Document.DocType == pkghacienda.DocTypeFacturaCompra {
		// FEC: el proveedor (customer) emite, la empresa recibe.
		return customerParty, companyParty
	}
	return companyParty, customerParty
}

func (s *XMLBuilderService) appendParty(node *etree.Element, doc *entity.ElectronicDocument, p *party, role string) {
	node.CreateElement("Nombre").SetText(p.Name)
	s.appendIdentification(node, doc, p, role)
	s.appendLocation(node, doc, p, role)
	s.appendContact(node, p)
}

func (s *XMLBuilderService) appendIdentification(node *etree.Element, doc *entity.ElectronicDocument, p *party, role string) {
	number := formatIdentificationNumber(doc.DocType, p.IDType, p.IDNumber)
	if number == "" {
		// Tiquete anónimo: el receptor va sin identificación.
		return
	}
	idType := p.IDType
	if idType == "" {
		idType = pkghacienda.IdentificationCedulaJuridica
	}
	id := node.CreateElement("Identificacion")
	id.CreateElement("Tipo").SetText(idType)
	id.CreateElement("Numero").SetText(number)
}

// formatIdentificationNumber: las identificaciones extranjeras de la FEC se
// transmiten tal cual (hasta 20 caracteres); el resto se reduce a dígitos.
func formatIdentificationNumber(docType, idType, number string) string {
	raw := strings.TrimSpace(number)
	if docType == pkghacienda.DocTypeFacturaCompra &&
		(idType == pkghacienda.IdentificationExtranjero || idType == "06") {
		if len(raw) > 20 {
			return raw[:20]
		}
		return raw
	}
	return onlyDigits(raw)
}

func (s *XMLBuilderService) appendLocation(node *etree.Element, doc *entity.ElectronicDocument, p *party, role string) {
	// Receptor extranjero de una factura de exportación: sin ubicación local.
	if doc.DocType == pkghacienda.DocTypeFacturaExportacion && role == "receptor" && p.CountryCode != "CR" {
		return
	}

	if doc.DocType == pkghacienda.DocTypeTiqueteElectronico && role == "receptor" {
		// En el tiquete la ubicación del receptor es opcional: solo se
		// emite lo que exista, sin defaults.
		province := padNumericCodeIfPresent(p.Province, 1)
		canton := padNumericCodeIfPresent(p.Canton, 2)
		district := padNumericCodeIfPresent(p.District, 2)
		neighborhood := strings.TrimSpace(p.Neighborhood)
		address := truncate(p.Address, 160)
		if province == "" && canton == "" && district == "" && neighborhood == "" && address == "" {
			return
		}
		loc := node.CreateElement("Ubicacion")
		if province != "" {
			loc.CreateElement("Provincia").SetText(province)
		}
		if canton != "" {
			loc.CreateElement("Canton").SetText(canton)
		}
		if district != "" {
			loc.CreateElement("Distrito").SetText(district)
		}
		if neighborhood != "" {
			loc.CreateElement("Barrio").SetText(neighborhood)
		}
		if address != "" {
			loc.CreateElement("OtrasSenas").SetText(address)
		}
		return
	}

	loc := node.CreateElement("Ubicacion")
	loc.CreateElement("Provincia").SetText(padNumericCode(p.Province, 1, "1"))
	loc.CreateElement("Canton").SetText(padNumericCode(p.Canton, 2, "01"))
	loc.CreateElement("Distrito").SetText(padNumericCode(p.District, 2, "01"))
	if neighborhood := strings.TrimSpace(p.Neighborhood); neighborhood != "" {
		loc.CreateElement("Barrio").SetText(neighborhood)
	}
	if address := truncate(p.Address, 160); address != "" {
		loc.CreateElement("OtrasSenas").SetText(address)
	}
}

func (s *XMLBuilderService) appendContact(node *etree.Element, p *party) {
	if countryCode, number := pkghacienda.NormalizePhone(p.Phone); number != "" {
		phone := node.CreateElement("Telefono")
		phone.CreateElement("CodigoPais").SetText(countryCode)
		phone.CreateElement("NumTelefono").SetText(truncate(number, 20))
	}
	if p.Email != "" {
		node.CreateElement("CorreoElectronico").SetText(p.Email)
	}
}

func (s *XMLBuilderService) appendLine(parent *etree.Element, doc *entity.ElectronicDocument, line *entity.DocumentLine, exonerations map[string]*entity.Exoneration) {
	detail := parent.CreateElement("LineaDetalle")
	detail.CreateElement("NumeroLinea").SetText(strconv.Itoa(line.LineNumber))
	if line.CabysCode != "" {
		detail.CreateElement("CodigoCABYS").SetText(line.CabysCode)
	}
	detail.CreateElement("Cantidad").SetText(dhacienda.FormatDecimal(line.Quantity))
	unit := line.Unit
	if unit == "" {
		unit = pkghacienda.UnitUnidad
	}
	detail.CreateElement("UnidadMedida").SetText(unit)
	if doc.DocType == pkghacienda.DocTypeFacturaExportacion {
		detail.CreateElement("UnidadMedidaComercial").SetText(unit)
	}
	detail.CreateElement("Detalle").SetText(line.Description)
	detail.CreateElement("PrecioUnitario").SetText(dhacienda.FormatDecimal(line.UnitPrice))
	detail.CreateElement("MontoTotal").SetText(dhacienda.FormatDecimal(line.Quantity.Mul(line.UnitPrice)))
	detail.CreateElement("SubTotal").SetText(dhacienda.FormatDecimal(line.Subtotal))

	isFEE := doc.DocType == pkghacienda.DocTypeFacturaExportacion
	isFEC := doc.DocType == pkghacienda.DocTypeFacturaCompra
	if line.TaxCode != "" {
		if !isFEE {
			detail.CreateElement("BaseImponible").SetText(dhacienda.FormatDecimal(line.Subtotal))
		}
		impuesto := detail.CreateElement("Impuesto")
		impuesto.CreateElement("Codigo").SetText(line.TaxCode)
		impuesto.CreateElement("CodigoTarifaIVA").SetText(line.TaxRateCode)
		impuesto.CreateElement("Tarifa").SetText(dhacienda.FormatDecimal(dhacienda.ResolveTaxRate(line)))
		impuesto.CreateElement("Monto").SetText(dhacienda.FormatDecimal(line.TaxAmount))
		if line.ExonerationID != "" {
			if exo := exonerations[line.ExonerationID]; exo != nil && line.Exonerated.IsPositive() {
				s.appendExoneration(impuesto, line, exo)
			}
		}
		if !isFEE {
			if !isFEC {
				detail.CreateElement("ImpuestoAsumidoEmisorFabrica").SetText(dhacienda.FormatDecimal(decimal.Zero))
			}
			detail.CreateElement("ImpuestoNeto").SetText(dhacienda.FormatDecimal(line.TaxNet))
		}
	}
	detail.CreateElement("MontoTotalLinea").SetText(dhacienda.FormatDecimal(line.Total))
}

// appendExoneration agrega el nodo Exoneracion dentro de Impuesto. En v4.4
// el tipo de documento va en TipoDocumentoEX1 y Articulo/Inciso preceden a
// NombreInstitucion.
func (s *XMLBuilderService) appendExoneration(impuesto *etree.Element, line *entity.DocumentLine, exo *entity.Exoneration) {
	node := impuesto.CreateElement("Exoneracion")
	exoType := exo.DocType
	if exoType == "" {
		exoType = pkghacienda.ExonerationOtros
	}
	node.CreateElement("TipoDocumentoEX1").SetText(exoType)
	node.CreateElement("NumeroDocumento").SetText(truncate(exo.DocNumber, 40))
	if exo.Article > 0 {
		node.CreateElement("Articulo").SetText(strconv.Itoa(exo.Article))
	}
	if exo.Subsection > 0 {
		node.CreateElement("Inciso").SetText(strconv.Itoa(exo.Subsection))
	}
	node.CreateElement("NombreInstitucion").SetText(truncate(exo.Institution, 160))
	node.CreateElement("FechaEmisionEX").SetText(exo.IssueDate.Format("2006-01-02T15:04:05"))
	node.CreateElement("TarifaExonerada").SetText(dhacienda.ResolveTaxRate(line).Round(0).String())
	node.CreateElement("MontoExoneracion").SetText(dhacienda.FormatDecimal(line.Exonerated))
}

func (s *XMLBuilderService) appendSummary(root *etree.Element, doc *entity.ElectronicDocument, t *dhacienda.Totals) {
	resumen := root.CreateElement("ResumenFactura")

	currency := doc.Currency
	if currency == "" {
		currency = pkghacienda.CurrencyCRC
	}
	exchangeRate := doc.ExchangeRate
	if exchangeRate.IsZero() {
		exchangeRate = decimal.NewFromInt(1)
	}
	moneda := resumen.CreateElement("CodigoTipoMoneda")
	moneda.CreateElement("CodigoMoneda").SetText(currency)
	moneda.CreateElement("TipoCambio").SetText(dhacienda.FormatDecimal(exchangeRate))

	resumen.CreateElement("TotalServGravados").SetText(dhacienda.FormatDecimal(t.ServGravados))
	resumen.CreateElement("TotalServExentos").SetText(dhacienda.FormatDecimal(t.ServExentos))
	resumen.CreateElement("TotalServExonerado").SetText(dhacienda.FormatDecimal(t.ServExonerado))
	resumen.CreateElement("TotalServNoSujeto").SetText(dhacienda.FormatDecimal(t.ServNoSujeto))
	resumen.CreateElement("TotalMercanciasGravadas").SetText(dhacienda.FormatDecimal(t.MercGravadas))
	resumen.CreateElement("TotalMercanciasExentas").SetText(dhacienda.FormatDecimal(t.MercExentas))
	resumen.CreateElement("TotalMercExonerada").SetText(dhacienda.FormatDecimal(t.MercExonerada))
	resumen.CreateElement("TotalMercNoSujeta").SetText(dhacienda.FormatDecimal(t.MercNoSujeta))
	resumen.CreateElement("TotalGravado").SetText(dhacienda.FormatDecimal(t.Gravado))
	resumen.CreateElement("TotalExento").SetText(dhacienda.FormatDecimal(t.Exento))
	resumen.CreateElement("TotalExonerado").SetText(dhacienda.FormatDecimal(t.Exonerado))
	resumen.CreateElement("TotalNoSujeto").SetText(dhacienda.FormatDecimal(t.NoSujeto))
	resumen.CreateElement("TotalVenta").SetText(dhacienda.FormatDecimal(t.Venta))
	resumen.CreateElement("TotalDescuentos").SetText(dhacienda.FormatDecimal(t.Descuentos))
	resumen.CreateElement("TotalVentaNeta").SetText(dhacienda.FormatDecimal(t.VentaNeta))

	keys := make([]dhacienda.TaxKey, 0, len(t.TaxBreakdown))
	for k := range t.TaxBreakdown {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Code != keys[j].Code {
			return keys[i].Code < keys[j].Code
		}
		return keys[i].RateCode < keys[j].RateCode
	})
	for _, k := range keys {
		desglose := resumen.CreateElement("TotalDesgloseImpuesto")
		desglose.CreateElement("Codigo").SetText(k.Code)
		desglose.CreateElement("CodigoTarifaIVA").SetText(k.RateCode)
		desglose.CreateElement("TotalMontoImpuesto").SetText(dhacienda.FormatDecimal(t.TaxBreakdown[k]))
	}

	resumen.CreateElement("TotalImpuesto").SetText(dhacienda.FormatDecimal(t.Impuesto))
	resumen.CreateElement("TotalImpAsumEmisorFabrica").SetText(dhacienda.FormatDecimal(decimal.Zero))
	if doc.DocType != pkghacienda.DocTypeFacturaCompra {
		resumen.CreateElement("TotalIVADevuelto").SetText(dhacienda.FormatDecimal(t.IVADevuelto))
	}
	paymentMethod := doc.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = pkghacienda.PaymentMethodEfectivo
	}
	medioPago := resumen.CreateElement("MedioPago")
	medioPago.CreateElement("TipoMedioPago").SetText(paymentMethod)
	resumen.CreateElement("TotalComprobante").SetText(dhacienda.FormatDecimal(t.Comprobante))
}

func (s *XMLBuilderService) appendReference(root *etree.Element, doc *entity.ElectronicDocument) error {
	switch doc.DocType {
	case pkghacienda.DocTypeNotaCredito, pkghacienda.DocTypeNotaDebito, pkghacienda.DocTypeFacturaCompra:
	default:
		return nil
	}
	if doc.ReferenceDocType == "" || doc.ReferenceClave == "" || doc.ReferenceIssuedAt.IsZero() {
		return fmt.Errorf("%w: el tipo %s requiere información de referencia completa (tipo, número y fecha)",
			domain.ErrValidation, doc.DocType)
	}

	ref := root.CreateElement("InformacionReferencia")
	ref.CreateElement("TipoDocIR").SetText(doc.ReferenceDocType)
	ref.CreateElement("Numero").SetText(doc.ReferenceClave)
	ref.CreateElement("FechaEmisionIR").SetText(doc.ReferenceIssuedAt.Format("2006-01-02T15:04:05-07:00"))
	code := doc.ReferenceCode
	if code == "" {
		code = pkghacienda.ReferenceCodeAnula
	}
	ref.CreateElement("Codigo").SetText(code)
	reason := doc.ReferenceReason
	if reason == "" {
		reason = "Documento de referencia"
	}
	ref.CreateElement("Razon").SetText(reason)
	return nil
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// padNumericCode deja solo dígitos, usa default si queda vacío y ajusta a la
// longitud exacta (provincia=1, cantón/distrito=2).
func padNumericCode(value string, length int, def string) string {
	digits := onlyDigits(value)
	if digits == "" {
		digits = def
	}
	for len(digits) < length {
		digits = "0" + digits
	}
	return digits[len(digits)-length:]
}

func padNumericCodeIfPresent(value string, length int) string {
	if onlyDigits(value) == "" {
		return ""
	}
	return padNumericCode(value, length, "")
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max]
}
