package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/facturacr-api/internal/domain/entity"
	"github.com/jhoicas/facturacr-api/internal/domain/repository"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// DocumentRepo implementación de DocumentRepository sobre PostgreSQL.
// Usa el pool directamente porque Create abre su propia transacción
// (cabecera + líneas deben persistirse juntas).
type DocumentRepo struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository construye el adaptador de persistencia para comprobantes.
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

const documentColumns = `id, company_id, customer_id, doc_type, clave, consecutive, security_code,
		issued_at, currency, exchange_rate, sale_condition, credit_term_days, payment_method, activity_code,
		reference_doc_type, reference_clave, reference_issued_at, reference_code, reference_reason,
		xml, signed_xml, signed_xml_digest, api_state, status, response_xml, response_detail,
		created_at, updated_at`

const lineColumns = `id, document_id, line_number, cabys_code, description, quantity, unit, unit_price,
		discount, discount_reason, tax_code, tax_rate_code, tax_rate, exoneration_id,
		subtotal, tax_amount, tax_net, exonerated, total`

// Create inserta el comprobante con sus líneas en una sola transacción.
func (r *DocumentRepo) Create(doc *entity.ElectronicDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	ctx := context.Background()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`
	_, err = tx.Exec(ctx, query,
		doc.ID, doc.CompanyID, doc.CustomerID, doc.DocType,
		doc.Clave, doc.Consecutive, doc.SecurityCode,
		doc.IssuedAt, doc.Currency, doc.ExchangeRate, doc.SaleCondition,
		doc.CreditTermDays, doc.PaymentMethod, doc.ActivityCode,
		doc.ReferenceDocType, doc.ReferenceClave, nullIfZeroTime(doc.ReferenceIssuedAt),
		doc.ReferenceCode, doc.ReferenceReason,
		doc.XML, doc.SignedXML, doc.SignedXMLDigest,
		doc.APIState, doc.Status, doc.ResponseXML, doc.ResponseDetail,
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("clave ya registrada: %w", err)
		}
		return fmt.Errorf("insert document: %w", err)
	}

	lineQuery := `
		INSERT INTO document_lines (` + lineColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	for i, line := range doc.Lines {
		if line.ID == "" {
			line.ID = uuid.New().String()
		}
		line.DocumentID = doc.ID
		if line.LineNumber == 0 {
			line.LineNumber = i + 1
		}
		_, err = tx.Exec(ctx, lineQuery,
			line.ID, line.DocumentID, line.LineNumber,
			line.CabysCode, line.Description, line.Quantity, line.Unit, line.UnitPrice,
			line.Discount, line.DiscountReason,
			line.TaxCode, line.TaxRateCode, line.TaxRate, line.ExonerationID,
			line.Subtotal, line.TaxAmount, line.TaxNet, line.Exonerated, line.Total,
		)
		if err != nil {
			return fmt.Errorf("insert document line %d: %w", line.LineNumber, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Update actualiza los campos del pipeline: clave, XML, firma y respuesta de
// Hacienda, junto con los montos calculados de cada línea (el agregador los
// llena después del insert inicial), en una sola transacción.
func (r *DocumentRepo) Update(doc *entity.ElectronicDocument) error {
	ctx := context.Background()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		UPDATE documents SET
			clave = $2, consecutive = $3, security_code = $4,
			sale_condition = $5, credit_term_days = $6, payment_method = $7,
			xml = $8, signed_xml = $9, signed_xml_digest = $10,
			api_state = $11, status = $12, response_xml = $13, response_detail = $14,
			updated_at = $15
		WHERE id = $1`
	_, err = tx.Exec(ctx, query,
		doc.ID, doc.Clave, doc.Consecutive, doc.SecurityCode,
		doc.SaleCondition, doc.CreditTermDays, doc.PaymentMethod,
		doc.XML, doc.SignedXML, doc.SignedXMLDigest,
		doc.APIState, doc.Status, doc.ResponseXML, doc.ResponseDetail,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}

	lineQuery := `
		UPDATE document_lines SET
			subtotal = $3, tax_amount = $4, tax_net = $5, exonerated = $6, total = $7
		WHERE document_id = $1 AND line_number = $2`
	for _, line := range doc.Lines {
		_, err = tx.Exec(ctx, lineQuery,
			doc.ID, line.LineNumber,
			line.Subtotal, line.TaxAmount, line.TaxNet, line.Exonerated, line.Total,
		)
		if err != nil {
			return fmt.Errorf("update document line %d: %w", line.LineNumber, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID obtiene un comprobante completo (con líneas) por ID.
func (r *DocumentRepo) GetByID(id string) (*entity.ElectronicDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := r.scanDocument(r.pool.QueryRow(context.Background(), query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	if err := r.loadLines(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetByClave obtiene un comprobante completo por clave numérica.
func (r *DocumentRepo) GetByClave(clave string) (*entity.ElectronicDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE clave = $1`
	doc, err := r.scanDocument(r.pool.QueryRow(context.Background(), query, clave))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document by clave: %w", err)
	}
	if err := r.loadLines(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListByCompany lista comprobantes de la empresa, más recientes primero.
// No carga las líneas: es una consulta de listado.
func (r *DocumentRepo) ListByCompany(companyID string, limit, offset int) ([]*entity.ElectronicDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE company_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(context.Background(), query, companyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	var list []*entity.ElectronicDocument
	for rows.Next() {
		doc, err := r.scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		list = append(list, doc)
	}
	return list, rows.Err()
}

// ListPendingConsult devuelve comprobantes enviados y sin veredicto final,
// con clave asignada, para el ciclo de conciliación.
func (r *DocumentRepo) ListPendingConsult(limit int) ([]*entity.ElectronicDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE clave <> '' AND api_state = $1 ORDER BY updated_at ASC LIMIT $2`
	rows, err := r.pool.Query(context.Background(), query, entity.APIStateSent, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending documents: %w", err)
	}
	defer rows.Close()
	var list []*entity.ElectronicDocument
	for rows.Next() {
		doc, err := r.scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending document: %w", err)
		}
		list = append(list, doc)
	}
	return list, rows.Err()
}

func (r *DocumentRepo) scanDocument(row interface{ Scan(dest ...any) error }) (*entity.ElectronicDocument, error) {
	var d entity.ElectronicDocument
	var refIssuedAt *time.Time
	err := row.Scan(
		&d.ID, &d.CompanyID, &d.CustomerID, &d.DocType,
		&d.Clave, &d.Consecutive, &d.SecurityCode,
		&d.IssuedAt, &d.Currency, &d.ExchangeRate, &d.SaleCondition,
		&d.CreditTermDays, &d.PaymentMethod, &d.ActivityCode,
		&d.ReferenceDocType, &d.ReferenceClave, &refIssuedAt,
		&d.ReferenceCode, &d.ReferenceReason,
		&d.XML, &d.SignedXML, &d.SignedXMLDigest,
		&d.APIState, &d.Status, &d.ResponseXML, &d.ResponseDetail,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if refIssuedAt != nil {
		d.ReferenceIssuedAt = *refIssuedAt
	}
	return &d, nil
}

func (r *DocumentRepo) loadLines(doc *entity.ElectronicDocument) error {
	query := `SELECT ` + lineColumns + ` FROM document_lines WHERE document_id = $1 ORDER BY line_number`
	rows, err := r.pool.Query(context.Background(), query, doc.ID)
	if err != nil {
		return fmt.Errorf("list document lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l entity.DocumentLine
		err := rows.Scan(
			&l.ID, &l.DocumentID, &l.LineNumber,
			&l.CabysCode, &l.Description, &l.Quantity, &l.Unit, &l.UnitPrice,
			&l.Discount, &l.DiscountReason,
			&l.TaxCode, &l.TaxRateCode, &l.TaxRate, &l.ExonerationID,
			&l.Subtotal, &l.TaxAmount, &l.TaxNet, &l.Exonerated, &l.Total,
		)
		if err != nil {
			return fmt.Errorf("scan document line: %w", err)
		}
		doc.Lines = append(doc.Lines, &l)
	}
	return rows.Err()
}

func nullIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
