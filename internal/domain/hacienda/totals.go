package hacienda

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/facturacr-api/internal/domain"
	"github.com/jhoicas/facturacr-api/internal/domain/entity"
	pkghacienda "github.com/jhoicas/facturacr-api/pkg/hacienda"
)

// TaxKey identifica una entrada del desglose de impuestos del resumen:
// código de impuesto + código de tarifa.
type TaxKey struct {
	Code     string
	RateCode string
}

// Totals contiene los totales del ResumenFactura v4.4, acumulados a partir
// de las líneas de detalle.
type Totals struct {
	ServGravados  decimal.Decimal
	ServExentos   decimal.Decimal
	ServExonerado decimal.Decimal
	ServNoSujeto  decimal.Decimal
	MercGravadas  decimal.Decimal
	MercExentas   decimal.Decimal
	MercExonerada decimal.Decimal
	MercNoSujeta  decimal.Decimal

	Gravado   decimal.Decimal
	Exento    decimal.Decimal
	Exonerado decimal.Decimal
	NoSujeto  decimal.Decimal

	Venta      decimal.Decimal // suma de qty*precio, antes de descuentos
	Descuentos decimal.Decimal
	VentaNeta  decimal.Decimal // venta - descuentos

	// TaxBreakdown acumula el impuesto neto por (código, tarifa) para el
	// nodo TotalDesgloseImpuesto.
	TaxBreakdown map[TaxKey]decimal.Decimal

	Impuesto    decimal.Decimal // impuesto neto total (tras exoneraciones)
	IVADevuelto decimal.Decimal
	Comprobante decimal.Decimal // total del comprobante
}

// serviceUnits unidades de medida que clasifican la línea como servicio
// (catálogo 13.3.10) para las categorías Serv*/Merc* del resumen.
var serviceUnits = map[string]bool{
	pkghacienda.UnitServicio: true,
	pkghacienda.UnitHour:     true,
	pkghacienda.UnitDay:      true,
	"Spe": true, // servicios personales
	"St":  true, // servicios técnicos
	"Os":  true, // otros servicios
	"Al":  true, // alquiler
}

// TotalsAggregatorService calcula impuesto, exoneración y totales por línea
// y los acumula en los campos del resumen.
type TotalsAggregatorService struct{}

// NewTotalsAggregatorService crea el agregador.
func NewTotalsAggregatorService() *TotalsAggregatorService {
	return &TotalsAggregatorService{}
}

// Aggregate recorre las líneas del comprobante, completa los campos
// calculados de cada una (Subtotal, TaxAmount, TaxNet, Exonerated, Total) y
// devuelve los totales del resumen. exonerations mapea ID de exoneración a
// la entidad; solo se aplica la exoneración si está vigente a la fecha de
// emisión y cubre el código CABYS de la línea.
//
// Por línea: montoTotal = cantidad*precio; subtotal = montoTotal - descuento;
// impuesto = subtotal*(tarifa/100); exoneración = subtotal*(porcentaje/100);
// impuesto neto = max(impuesto - exoneración, 0). La tarifa se resuelve con
// precedencia: tarifa configurada en la línea > tarifa implícita en el
// código de tarifa del catálogo.
func (s *TotalsAggregatorService) Aggregate(doc *entity.ElectronicDocument, exonerations map[string]*entity.Exoneration) (*Totals, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: comprobante nulo", domain.ErrValidation)
	}
	if len(doc.Lines) == 0 {
		return nil, fmt.Errorf("%w: el comprobante debe tener al menos una línea de detalle", domain.ErrValidation)
	}

	t := &Totals{TaxBreakdown: make(map[TaxKey]decimal.Decimal)}
	hundred := decimal.NewFromInt(100)

	for i, line := range doc.Lines {
		line.LineNumber = i + 1

		montoTotal := line.Quantity.Mul(line.UnitPrice)
		discount := line.Discount
		if discount.IsNegative() {
			discount = decimal.Zero
		}
		subtotal := montoTotal.Sub(discount)

		hasTax := line.TaxCode != ""
		rate := ResolveTaxRate(line)
		var taxAmount decimal.Decimal
		if hasTax {
			taxAmount = subtotal.Mul(rate).Div(hundred)
		}

		// Exoneración vigente que cubra el CABYS de la línea.
		var exonerated decimal.Decimal
		hasExoneration := false
		if hasTax && line.ExonerationID != "" {
			exo := exonerations[line.ExonerationID]
			if exo != nil && exo.ValidOn(doc.IssuedAt) && exo.Covers(line.CabysCode) {
				pct := exo.Percentage
				if pct.GreaterThan(hundred) {
					pct = hundred
				}
				if pct.IsNegative() {
					pct = decimal.Zero
				}
				exonerated = subtotal.Mul(pct).Div(hundred)
				hasExoneration = true
			}
		}

		taxNet := taxAmount.Sub(exonerated)
		if taxNet.IsNegative() {
			taxNet = decimal.Zero
		}

		line.Subtotal = subtotal
		line.TaxAmount = taxAmount
		line.Exonerated = exonerated
		line.TaxNet = taxNet
		line.Total = subtotal.Add(taxNet)

		if hasTax {
			key := TaxKey{Code: line.TaxCode, RateCode: line.TaxRateCode}
			t.TaxBreakdown[key] = t.TaxBreakdown[key].Add(taxNet)
		}

		isService := serviceUnits[line.Unit]
		switch {
		case hasTax && (taxAmount.IsPositive() || hasExoneration):
			if hasExoneration {
				t.addExonerado(isService, subtotal)
			} else {
				t.addGravado(isService, subtotal)
			}
		case hasTax && pkghacienda.ZeroRatedNoSujeto[line.TaxRateCode]:
			t.addNoSujeto(isService, subtotal)
		default:
			// Tarifa 10 (0% sin crédito) y líneas sin impuesto van a exento.
			t.addExento(isService, subtotal)
		}

		t.Venta = t.Venta.Add(montoTotal)
		t.Descuentos = t.Descuentos.Add(discount)
		t.VentaNeta = t.VentaNeta.Add(subtotal)
		t.Impuesto = t.Impuesto.Add(taxNet)
		t.Comprobante = t.Comprobante.Add(line.Total)
	}

	return t, nil
}

// ResolveTaxRate resuelve la tarifa porcentual de una línea: la tarifa
// configurada manda; si es cero, se usa la tarifa implícita en el código de
// tarifa del catálogo IVA.
func ResolveTaxRate(line *entity.DocumentLine) decimal.Decimal {
	if line.TaxCode == "" {
		return decimal.Zero
	}
	if !line.TaxRate.IsZero() {
		return line.TaxRate
	}
	return decimal.NewFromFloat(pkghacienda.IVARatePercent[line.TaxRateCode])
}

func (t *Totals) addGravado(isService bool, amount decimal.Decimal) {
	if isService {
		t.ServGravados = t.ServGravados.Add(amount)
	} else {
		t.MercGravadas = t.MercGravadas.Add(amount)
	}
	t.Gravado = t.Gravado.Add(amount)
}

func (t *Totals) addExonerado(isService bool, amount decimal.Decimal) {
	if isService {
		t.ServExonerado = t.ServExonerado.Add(amount)
	} else {
		t.MercExonerada = t.MercExonerada.Add(amount)
	}
	t.Exonerado = t.Exonerado.Add(amount)
}

func (t *Totals) addNoSujeto(isService bool, amount decimal.Decimal) {
	if isService {
		t.ServNoSujeto = t.ServNoSujeto.Add(amount)
	} else {
		t.MercNoSujeta = t.MercNoSujeta.Add(amount)
	}
	t.NoSujeto = t.NoSujeto.Add(amount)
}

func (t *Totals) addExento(isService bool, amount decimal.Decimal) {
	if isService {
		t.ServExentos = t.ServExentos.Add(amount)
	} else {
		t.MercExentas = t.MercExentas.Add(amount)
	}
	t.Exento = t.Exento.Add(amount)
}

// FormatDecimal formatea montos y cantidades para los campos del XML:
// punto decimal, sin separador de miles, cinco decimales fijos.
func FormatDecimal(d decimal.Decimal) string {
	return d.StringFixed(5)
}
