package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/facturacr-api/internal/domain"
	"github.com/jhoicas/facturacr-api/internal/domain/entity"
	"github.com/jhoicas/facturacr-api/internal/domain/repository"
)

var _ repository.ExonerationRepository = (*ExonerationRepo)(nil)

// ExonerationRepo implementación de ExonerationRepository (usable con pool o tx).
type ExonerationRepo struct {
	q Querier
}

// NewExonerationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewExonerationRepository(q Querier) *ExonerationRepo {
	return &ExonerationRepo{q: q}
}

const exonerationColumns = `id, company_id, customer_id, doc_type, doc_number, institution,
		article, subsection, percentage, issue_date, expiration_date, cabys_codes,
		created_at, updated_at`

func scanExoneration(row interface{ Scan(dest ...any) error }) (*entity.Exoneration, error) {
	var e entity.Exoneration
	var expiration *time.Time
	err := row.Scan(
		&e.ID, &e.CompanyID, &e.CustomerID, &e.DocType, &e.DocNumber, &e.Institution,
		&e.Article, &e.Subsection, &e.Percentage, &e.IssueDate, &expiration, &e.CabysCodes,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if expiration != nil {
		e.ExpirationDate = *expiration
	}
	return &e, nil
}

// Create persiste una nueva exoneración.
func (r *ExonerationRepo) Create(exo *entity.Exoneration) error {
	if exo.ID == "" {
		exo.ID = uuid.New().String()
	}
	query := `
		INSERT INTO exonerations (` + exonerationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.q.Exec(context.Background(), query,
		exo.ID, exo.CompanyID, exo.CustomerID, exo.DocType, exo.DocNumber, exo.Institution,
		exo.Article, exo.Subsection, exo.Percentage, exo.IssueDate,
		nullIfZeroTime(exo.ExpirationDate), exo.CabysCodes,
		exo.CreatedAt, exo.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert exoneration: %w", err)
	}
	return nil
}

// GetByID obtiene una exoneración por ID.
func (r *ExonerationRepo) GetByID(id string) (*entity.Exoneration, error) {
	query := `SELECT ` + exonerationColumns + ` FROM exonerations WHERE id = $1`
	e, err := scanExoneration(r.q.QueryRow(context.Background(), query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get exoneration: %w", err)
	}
	return e, nil
}

// ListByCustomer lista las exoneraciones registradas para un cliente.
func (r *ExonerationRepo) ListByCustomer(customerID string) ([]*entity.Exoneration, error) {
	query := `SELECT ` + exonerationColumns + ` FROM exonerations
		WHERE customer_id = $1 ORDER BY issue_date DESC`
	rows, err := r.q.Query(context.Background(), query, customerID)
	if err != nil {
		return nil, fmt.Errorf("list exonerations: %w", err)
	}
	defer rows.Close()
	var list []*entity.Exoneration
	for rows.Next() {
		e, err := scanExoneration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exoneration: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// Update actualiza una exoneración.
func (r *ExonerationRepo) Update(exo *entity.Exoneration) error {
	query := `
		UPDATE exonerations SET
			doc_type = $2, doc_number = $3, institution = $4, article = $5, subsection = $6,
			percentage = $7, issue_date = $8, expiration_date = $9, cabys_codes = $10,
			updated_at = $11
		WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query,
		exo.ID, exo.DocType, exo.DocNumber, exo.Institution, exo.Article, exo.Subsection,
		exo.Percentage, exo.IssueDate, nullIfZeroTime(exo.ExpirationDate), exo.CabysCodes,
		exo.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update exoneration: %w", err)
	}
	return nil
}

// Delete elimina una exoneración por ID.
func (r *ExonerationRepo) Delete(id string) error {
	_, err := r.q.Exec(context.Background(), `DELETE FROM exonerations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete exoneration: %w", err)
	}
	return nil
}
