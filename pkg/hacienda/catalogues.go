// Package hacienda contiene catálogos y validaciones alineados a la
// Resolución MH-DGT-RES-0027-2024 de Comprobantes Electrónicos de
// Costa Rica, versión 4.4.
package hacienda

// =============================================================================
// Tipos de documento electrónico (nota 4.4 - posición 31-32 del consecutivo)
// =============================================================================

const (
	DocTypeFacturaElectronica       = "01" // Factura Electrónica
	DocTypeNotaDebito               = "02" // Nota de Débito Electrónica
	DocTypeNotaCredito              = "03" // Nota de Crédito Electrónica
	DocTypeTiqueteElectronico       = "04" // Tiquete Electrónico
	DocTypeConfirmacionAceptacion   = "05" // Confirmación de aceptación
	DocTypeConfirmacionParcial      = "06" // Confirmación de aceptación parcial
	DocTypeConfirmacionRechazo      = "07" // Confirmación de rechazo
	DocTypeFacturaCompra            = "08" // Factura Electrónica de Compra
	DocTypeFacturaExportacion       = "09" // Factura Electrónica de Exportación
)

// ValidDocumentTypes contiene los tipos de comprobante que el sistema emite.
var ValidDocumentTypes = map[string]bool{
	DocTypeFacturaElectronica: true,
	DocTypeNotaDebito:         true,
	DocTypeNotaCredito:        true,
	DocTypeTiqueteElectronico: true,
	DocTypeFacturaCompra:      true,
	DocTypeFacturaExportacion: true,
}

// =============================================================================
// Situación del comprobante (posición 43 de la clave numérica)
// =============================================================================

const (
	SituationNormal      = "1" // Emisión normal con conectividad
	SituationContingency = "2" // Contingencia
	SituationNoInternet  = "3" // Sin internet
)

// =============================================================================
// Tipos de identificación (nota 4.4 - catálogo 13.2.1)
// =============================================================================

const (
	IdentificationCedulaFisica    = "01" // Cédula física (9 dígitos)
	IdentificationCedulaJuridica  = "02" // Cédula jurídica (10 dígitos)
	IdentificationDIMEX           = "03" // DIMEX (11 o 12 dígitos)
	IdentificationNITE            = "04" // NITE (10 dígitos)
	IdentificationExtranjero      = "05" // Extranjero no domiciliado
)

// ValidIdentificationTypes contiene los tipos de identificación admitidos.
var ValidIdentificationTypes = map[string]bool{
	IdentificationCedulaFisica:   true,
	IdentificationCedulaJuridica: true,
	IdentificationDIMEX:          true,
	IdentificationNITE:           true,
	IdentificationExtranjero:     true,
}

// =============================================================================
// Condición de venta (catálogo 13.3.1)
// =============================================================================

const (
	SaleConditionContado          = "01" // Contado
	SaleConditionCredito          = "02" // Crédito
	SaleConditionConsignacion     = "03" // Consignación
	SaleConditionApartado         = "04" // Apartado
	SaleConditionArrendamientoCO  = "05" // Arrendamiento con opción de compra
	SaleConditionArrendamientoFS  = "06" // Arrendamiento en función financiera
	SaleConditionCobroTercero     = "07" // Cobro a favor de un tercero
	SaleConditionServiciosEstado  = "08" // Servicios prestados al Estado
	SaleConditionOtros            = "99" // Otros
)

// =============================================================================
// Medio de pago (catálogo 13.3.2)
// =============================================================================

const (
	PaymentMethodEfectivo      = "01" // Efectivo
	PaymentMethodTarjeta       = "02" // Tarjeta
	PaymentMethodCheque        = "03" // Cheque
	PaymentMethodTransferencia = "04" // Transferencia - depósito bancario
	PaymentMethodTerceros      = "05" // Recaudado por terceros
	PaymentMethodSinpeMovil    = "06" // SINPE Móvil
	PaymentMethodPlataformaDig = "07" // Plataforma digital
	PaymentMethodOtros         = "99" // Otros
)

// =============================================================================
// Tipos de impuesto (catálogo 13.3.5)
// =============================================================================

const (
	TaxCodeIVA                = "01" // Impuesto al Valor Agregado
	TaxCodeSelectivoConsumo   = "02" // Impuesto Selectivo de Consumo
	TaxCodeCombustibles       = "03" // Impuesto Único a los Combustibles
	TaxCodeBebidasAlcoholicas = "04" // Impuesto específico de Bebidas Alcohólicas
	TaxCodeIVABienesUsados    = "07" // IVA (cálculo especial, bienes usados)
	TaxCodeCemento            = "08" // Impuesto Específico al Cemento
	TaxCodeOtros              = "99" // Otros
)

// =============================================================================
// Tarifas del IVA (catálogo 13.3.6 - CodigoTarifaIVA)
// =============================================================================

const (
	IVARateExento           = "01" // Tarifa 0% (exento)
	IVARateReducida1        = "02" // Tarifa reducida 1%
	IVARateReducida2        = "03" // Tarifa reducida 2%
	IVARateReducida4        = "04" // Tarifa reducida 4%
	IVARateTransitoria0     = "05" // Transitoria 0%
	IVARateTransitoria4     = "06" // Transitoria 4%
	IVARateTransitoria8     = "07" // Transitoria 8%
	IVARateGeneral          = "08" // Tarifa general 13%
	IVARateReducida05       = "09" // Tarifa reducida 0.5%
	IVARateExentoOperacion  = "10" // Tarifa 0% sin derecho a crédito
	IVARateReducidaCanasta  = "11" // Tarifa 0% canasta básica
)

// IVARatePercent mapea el código de tarifa IVA a su porcentaje.
var IVARatePercent = map[string]float64{
	IVARateExento:          0,
	IVARateReducida1:       1,
	IVARateReducida2:       2,
	IVARateReducida4:       4,
	IVARateTransitoria0:    0,
	IVARateTransitoria4:    4,
	IVARateTransitoria8:    8,
	IVARateGeneral:         13,
	IVARateReducida05:      0.5,
	IVARateExentoOperacion: 0,
	IVARateReducidaCanasta: 0,
}

// ZeroRatedNoSujeto son tarifas 0% que se clasifican como "no sujeto"
// en los desgloses de totales (no exento ni exonerado).
var ZeroRatedNoSujeto = map[string]bool{
	IVARateExento:          true,
	IVARateTransitoria0:    true,
	IVARateReducidaCanasta: true,
}

// =============================================================================
// Tipos de documento de exoneración (catálogo 13.3.8)
// =============================================================================

const (
	ExonerationComprasAutorizadas     = "01" // Compras autorizadas por la DGT
	ExonerationVentasDiplomaticos     = "02" // Ventas exentas a diplomáticos
	ExonerationLeyEspecial            = "03" // Autorizado por ley especial
	ExonerationExencionesDGH          = "04" // Exenciones DGH
	ExonerationZonaFranca             = "05" // Zona franca
	ExonerationInsumosAgropecuarios   = "06" // Servicios e insumos agropecuarios
	ExonerationTransitorioServicios   = "07" // Transitorio V (servicios turismo)
	ExonerationTransitorioObraPublica = "08" // Transitorio XVII (obra pública)
	ExonerationExoneracionLocal       = "09" // Exoneración a gobierno local
	ExonerationOtros                  = "99" // Otros
)

// ExonerationRequiresArticle indica los tipos de documento de exoneración
// que exigen número de artículo e inciso.
var ExonerationRequiresArticle = map[string]bool{
	ExonerationVentasDiplomaticos:     true,
	ExonerationLeyEspecial:            true,
	ExonerationInsumosAgropecuarios:   true,
	ExonerationTransitorioServicios:   true,
	ExonerationTransitorioObraPublica: true,
}

// =============================================================================
// Códigos de referencia (catálogo 13.3.12) para notas de crédito/débito
// =============================================================================

const (
	ReferenceCodeAnula          = "01" // Anula documento de referencia
	ReferenceCodeCorrigeMonto   = "02" // Corrige monto
	ReferenceCodeReferencia     = "04" // Referencia a otro documento
	ReferenceCodeSustituye      = "05" // Sustituye comprobante provisional
	ReferenceCodeOtros          = "99" // Otros
)

// =============================================================================
// Unidades de medida de uso común (catálogo 13.3.10)
// =============================================================================

const (
	UnitUnidad          = "Unid" // Unidad
	UnitServicio        = "Sp"   // Servicios profesionales
	UnitKilogram        = "kg"
	UnitGram            = "g"
	UnitLitre           = "L"
	UnitMetre           = "m"
	UnitHour            = "h"
	UnitDay             = "d"
)

// =============================================================================
// Monedas aceptadas en CodigoTipoMoneda
// =============================================================================

const (
	CurrencyCRC = "CRC" // Colón costarricense
	CurrencyUSD = "USD" // Dólar estadounidense
	CurrencyEUR = "EUR" // Euro
)
