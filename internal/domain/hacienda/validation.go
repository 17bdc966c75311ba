package hacienda

import (
	"errors"
	"fmt"

	"github.com/jhoicas/facturacr-api/internal/domain"
	"github.com/jhoicas/facturacr-api/internal/domain/entity"
	pkghacienda "github.com/jhoicas/facturacr-api/pkg/hacienda"
)

// referenceRequired tipos de comprobante que exigen InformacionReferencia.
var referenceRequired = map[string]bool{
	pkghacienda.DocTypeNotaDebito:    true,
	pkghacienda.DocTypeNotaCredito:   true,
	pkghacienda.DocTypeFacturaCompra: true,
}

// ValidateDocument valida el comprobante antes de generar el XML: estas
// reglas se comprueban antes de cualquier llamada de red para que el error
// llegue al usuario de inmediato.
func ValidateDocument(doc *entity.ElectronicDocument, exonerations map[string]*entity.Exoneration) error {
	if doc == nil {
		return fmt.Errorf("%w: comprobante nulo", domain.ErrValidation)
	}
	var errs []error

	if !pkghacienda.ValidDocumentTypes[doc.DocType] {
		errs = append(errs, fmt.Errorf("tipo de comprobante desconocido: %q", doc.DocType))
	}
	if len(doc.Lines) == 0 {
		errs = append(errs, errors.New("el comprobante debe tener al menos una línea de detalle"))
	}
	if doc.IssuedAt.IsZero() {
		errs = append(errs, errors.New("fecha de emisión sin definir"))
	}

	// NC, ND y FEC referencian un documento anterior; sin esa referencia
	// Hacienda rechaza el comprobante.
	if referenceRequired[doc.DocType] {
		if doc.ReferenceClave == "" || doc.ReferenceDocType == "" {
			errs = append(errs, fmt.Errorf("el tipo %s requiere documento de referencia (tipo y clave)", doc.DocType))
		}
		if doc.ReferenceCode == "" {
			errs = append(errs, fmt.Errorf("el tipo %s requiere código de referencia", doc.DocType))
		}
		if doc.ReferenceIssuedAt.IsZero() {
			errs = append(errs, fmt.Errorf("el tipo %s requiere fecha de emisión del documento de referencia", doc.DocType))
		}
	}

	// Nota 10.1 v4.4: ciertos tipos de documento de exoneración exigen
	// el número de artículo.
	for _, line := range doc.Lines {
		if line.ExonerationID == "" {
			continue
		}
		exo := exonerations[line.ExonerationID]
		if exo == nil {
			errs = append(errs, fmt.Errorf("línea %d: exoneración %s no encontrada", line.LineNumber, line.ExonerationID))
			continue
		}
		if pkghacienda.ExonerationRequiresArticle[exo.DocType] && exo.Article == 0 {
			errs = append(errs, fmt.Errorf("la exoneración %s requiere el campo Artículo para el tipo %s", exo.DocNumber, exo.DocType))
		}
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{domain.ErrValidation}, errs...)...)
	}
	return nil
}
