package hacienda_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturacr-api/internal/domain"
	"github.com/jhoicas/facturacr-api/internal/domain/entity"
	"github.com/jhoicas/facturacr-api/internal/domain/hacienda"
	pkghacienda "github.com/jhoicas/facturacr-api/pkg/hacienda"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// buildSampleDocument: tres líneas — una gravada al 13%, una exenta y una
// con exoneración del 50%.
func buildSampleDocument() (*entity.ElectronicDocument, map[string]*entity.Exoneration) {
	issued := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	doc := &entity.ElectronicDocument{
		DocType:  pkghacienda.DocTypeFacturaElectronica,
		IssuedAt: issued,
		Lines: []*entity.DocumentLine{
			{
				CabysCode:   "4323100000000",
				Description: "Licencia de software",
				Quantity:    dec("2"),
				Unit:        pkghacienda.UnitServicio,
				UnitPrice:   dec("10000"),
				TaxCode:     pkghacienda.TaxCodeIVA,
				TaxRateCode: pkghacienda.IVARateGeneral,
			},
			{
				CabysCode:   "0151000000000",
				Description: "Frijol negro",
				Quantity:    dec("10"),
				Unit:        pkghacienda.UnitKilogram,
				UnitPrice:   dec("1000"),
				TaxCode:     pkghacienda.TaxCodeIVA,
				TaxRateCode: pkghacienda.IVARateExentoOperacion, // "10": exento
			},
			{
				CabysCode:     "9311000000000",
				Description:   "Servicio médico exonerado",
				Quantity:      dec("1"),
				Unit:          pkghacienda.UnitServicio,
				UnitPrice:     dec("50000"),
				TaxCode:       pkghacienda.TaxCodeIVA,
				TaxRateCode:   pkghacienda.IVARateGeneral,
				ExonerationID: "exo-1",
			},
		},
	}
	exos := map[string]*entity.Exoneration{
		"exo-1": {
			ID:          "exo-1",
			DocType:     pkghacienda.ExonerationComprasAutorizadas,
			DocNumber:   "AL-00123-20",
			Institution: "Ministerio de Hacienda",
			Percentage:  dec("50"),
			IssueDate:   issued.AddDate(-1, 0, 0),
		},
	}
	return doc, exos
}

func TestAggregate_FacturaDeTresLineas(t *testing.T) {
	svc := hacienda.NewTotalsAggregatorService()
	doc, exos := buildSampleDocument()

	totals, err := svc.Aggregate(doc, exos)
	require.NoError(t, err)

	// Línea 1: 20000 gravados, IVA 13% = 2600.
	// Línea 2: 10000 exentos (tarifa 10, sin impuesto efectivo).
	// Línea 3: 50000 exonerados al 50%: IVA 6500, exoneración 50000*50% = 25000,
	//   el impuesto neto queda en cero (no puede ser negativo).
	assert.True(t, totals.ServGravados.Equal(dec("20000")), "serv gravados: %s", totals.ServGravados)
	assert.True(t, totals.MercExentas.Equal(dec("10000")), "merc exentas: %s", totals.MercExentas)
	assert.True(t, totals.ServExonerado.Equal(dec("50000")), "serv exonerado: %s", totals.ServExonerado)
	assert.True(t, totals.Venta.Equal(dec("80000")))
	assert.True(t, totals.VentaNeta.Equal(dec("80000")))
	assert.True(t, totals.Descuentos.IsZero())

	// Impuesto neto: 2600 (línea 1) + 0 (línea 2) + 0 (línea 3, exonerada por encima del IVA).
	assert.True(t, totals.Impuesto.Equal(dec("2600")), "impuesto: %s", totals.Impuesto)
	assert.True(t, totals.Comprobante.Equal(dec("82600")), "comprobante: %s", totals.Comprobante)

	// La suma de MontoTotalLinea por línea debe igualar el total del comprobante.
	var sum decimal.Decimal
	for _, line := range doc.Lines {
		sum = sum.Add(line.Total)
	}
	assert.Equal(t, hacienda.FormatDecimal(totals.Comprobante), hacienda.FormatDecimal(sum))
}

func TestAggregate_DesgloseImpuestoPorTarifa(t *testing.T) {
	svc := hacienda.NewTotalsAggregatorService()
	doc, exos := buildSampleDocument()

	totals, err := svc.Aggregate(doc, exos)
	require.NoError(t, err)

	key := hacienda.TaxKey{Code: pkghacienda.TaxCodeIVA, RateCode: pkghacienda.IVARateGeneral}
	assert.True(t, totals.TaxBreakdown[key].Equal(dec("2600")),
		"el desglose por (01,08) debe acumular solo el impuesto neto: %s", totals.TaxBreakdown[key])
}

func TestAggregate_DescuentoReduceBase(t *testing.T) {
	svc := hacienda.NewTotalsAggregatorService()
	doc := &entity.ElectronicDocument{
		IssuedAt: time.Now(),
		Lines: []*entity.DocumentLine{{
			Description: "Producto con descuento",
			Quantity:    dec("1"),
			Unit:        pkghacienda.UnitUnidad,
			UnitPrice:   dec("1000"),
			Discount:    dec("100"),
			TaxCode:     pkghacienda.TaxCodeIVA,
			TaxRateCode: pkghacienda.IVARateGeneral,
		}},
	}

	totals, err := svc.Aggregate(doc, nil)
	require.NoError(t, err)

	assert.True(t, totals.Venta.Equal(dec("1000")))
	assert.True(t, totals.Descuentos.Equal(dec("100")))
	assert.True(t, totals.VentaNeta.Equal(dec("900")))
	assert.True(t, totals.Impuesto.Equal(dec("117")), "IVA 13%% sobre 900: %s", totals.Impuesto)
	assert.True(t, totals.Comprobante.Equal(dec("1017")))
}

func TestAggregate_TarifaCeroNoSujeto(t *testing.T) {
	svc := hacienda.NewTotalsAggregatorService()
	doc := &entity.ElectronicDocument{
		IssuedAt: time.Now(),
		Lines: []*entity.DocumentLine{{
			Description: "Venta no sujeta",
			Quantity:    dec("1"),
			Unit:        pkghacienda.UnitUnidad,
			UnitPrice:   dec("5000"),
			TaxCode:     pkghacienda.TaxCodeIVA,
			TaxRateCode: pkghacienda.IVARateExento, // "01"
		}},
	}

	totals, err := svc.Aggregate(doc, nil)
	require.NoError(t, err)

	assert.True(t, totals.MercNoSujeta.Equal(dec("5000")))
	assert.True(t, totals.NoSujeto.Equal(dec("5000")))
	assert.True(t, totals.Gravado.IsZero())
	assert.True(t, totals.Exento.IsZero())
}

func TestAggregate_TarifaConfiguradaTienePrecedencia(t *testing.T) {
	line := &entity.DocumentLine{
		TaxCode:     pkghacienda.TaxCodeIVA,
		TaxRateCode: pkghacienda.IVARateGeneral, // implicaría 13
		TaxRate:     dec("4"),
	}
	assert.True(t, hacienda.ResolveTaxRate(line).Equal(dec("4")),
		"la tarifa configurada en la línea manda sobre la del catálogo")

	line.TaxRate = decimal.Zero
	assert.True(t, hacienda.ResolveTaxRate(line).Equal(dec("13")))
}

func TestAggregate_SinLineasEsError(t *testing.T) {
	svc := hacienda.NewTotalsAggregatorService()

	_, err := svc.Aggregate(&entity.ElectronicDocument{IssuedAt: time.Now()}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAggregate_ExoneracionVencidaNoAplica(t *testing.T) {
	svc := hacienda.NewTotalsAggregatorService()
	doc, exos := buildSampleDocument()
	exos["exo-1"].ExpirationDate = doc.IssuedAt.AddDate(0, -1, 0) // vencida

	totals, err := svc.Aggregate(doc, exos)
	require.NoError(t, err)

	// Sin exoneración vigente la línea 3 vuelve al bucket de gravados.
	assert.True(t, totals.ServExonerado.IsZero())
	assert.True(t, totals.ServGravados.Equal(dec("70000")))
	assert.True(t, totals.Impuesto.Equal(dec("9100")), "2600 + 6500: %s", totals.Impuesto)
}

func TestValidateDocument_NotaCreditoSinReferencia(t *testing.T) {
	doc, _ := buildSampleDocument()
	doc.DocType = pkghacienda.DocTypeNotaCredito

	err := hacienda.ValidateDocument(doc, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "referencia")
}

func TestValidateDocument_ArticuloObligatorio(t *testing.T) {
	doc, exos := buildSampleDocument()
	exos["exo-1"].DocType = pkghacienda.ExonerationLeyEspecial // requiere Articulo
	exos["exo-1"].Article = 0

	err := hacienda.ValidateDocument(doc, exos)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Artículo")

	exos["exo-1"].Article = 8
	assert.NoError(t, hacienda.ValidateDocument(doc, exos))
}
