package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/facturacr-api/internal/domain/entity"
	"github.com/jhoicas/facturacr-api/internal/domain/repository"
)

// Asegura que CompanyRepo implementa repository.CompanyRepository.
var _ repository.CompanyRepository = (*CompanyRepo)(nil)

// CompanyRepo implementación del puerto CompanyRepository sobre PostgreSQL.
type CompanyRepo struct {
	pool *pgxpool.Pool
}

// NewCompanyRepository construye el adaptador de persistencia para empresas.
func NewCompanyRepository(pool *pgxpool.Pool) *CompanyRepo {
	return &CompanyRepo{pool: pool}
}

const companyColumns = `id, name, trade_name, identification_type, identification, activity_code,
		email, phone, province, canton, district, neighborhood, address,
		branch_code, terminal_code, hacienda_username, hacienda_password,
		cert_path, cert_password, status, created_at, updated_at`

func scanCompany(row interface{ Scan(dest ...any) error }) (*entity.Company, error) {
	var c entity.Company
	err := row.Scan(
		&c.ID, &c.Name, &c.TradeName, &c.IdentificationType, &c.Identification, &c.ActivityCode,
		&c.Email, &c.Phone, &c.Province, &c.Canton, &c.District, &c.Neighborhood, &c.Address,
		&c.BranchCode, &c.TerminalCode, &c.HaciendaUsername, &c.HaciendaPassword,
		&c.CertPath, &c.CertPassword, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create persiste una nueva empresa.
func (r *CompanyRepo) Create(company *entity.Company) error {
	query := `
		INSERT INTO companies (` + companyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`
	_, err := r.pool.Exec(context.Background(), query,
		company.ID, company.Name, company.TradeName, company.IdentificationType,
		company.Identification, company.ActivityCode,
		company.Email, company.Phone,
		company.Province, company.Canton, company.District, company.Neighborhood, company.Address,
		company.BranchCode, company.TerminalCode,
		company.HaciendaUsername, company.HaciendaPassword,
		company.CertPath, company.CertPassword,
		company.Status, company.CreatedAt, company.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

// GetByID obtiene una empresa por ID.
func (r *CompanyRepo) GetByID(id string) (*entity.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`
	c, err := scanCompany(r.pool.QueryRow(context.Background(), query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return c, nil
}

// GetByIdentification obtiene una empresa por su cédula (sin guiones).
func (r *CompanyRepo) GetByIdentification(identification string) (*entity.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE identification = $1`
	c, err := scanCompany(r.pool.QueryRow(context.Background(), query, identification))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get company by identification: %w", err)
	}
	return c, nil
}

// Update actualiza una empresa existente.
func (r *CompanyRepo) Update(company *entity.Company) error {
	query := `
		UPDATE companies SET
			name = $2, trade_name = $3, identification_type = $4, identification = $5,
			activity_code = $6, email = $7, phone = $8,
			province = $9, canton = $10, district = $11, neighborhood = $12, address = $13,
			branch_code = $14, terminal_code = $15,
			hacienda_username = $16, hacienda_password = $17,
			cert_path = $18, cert_password = $19,
			status = $20, updated_at = $21
		WHERE id = $1`
	_, err := r.pool.Exec(context.Background(), query,
		company.ID, company.Name, company.TradeName, company.IdentificationType,
		company.Identification, company.ActivityCode, company.Email, company.Phone,
		company.Province, company.Canton, company.District, company.Neighborhood, company.Address,
		company.BranchCode, company.TerminalCode,
		company.HaciendaUsername, company.HaciendaPassword,
		company.CertPath, company.CertPassword,
		company.Status, company.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	return nil
}

// List devuelve empresas con paginación.
func (r *CompanyRepo) List(limit, offset int) ([]*entity.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(context.Background(), query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var list []*entity.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// Delete elimina una empresa por ID.
func (r *CompanyRepo) Delete(id string) error {
	_, err := r.pool.Exec(context.Background(), `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete company: %w", err)
	}
	return nil
}

// AllocateConsecutive incrementa y devuelve el siguiente consecutivo para el
// tipo de comprobante. El UPSERT con RETURNING hace la asignación atómica:
// dos emisiones concurrentes nunca obtienen el mismo número.
func (r *CompanyRepo) AllocateConsecutive(companyID, docType string) (int64, error) {
	const query = `
		INSERT INTO company_sequences (company_id, doc_type, last_seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (company_id, doc_type)
		DO UPDATE SET last_seq = company_sequences.last_seq + 1
		RETURNING last_seq`
	var seq int64
	if err := r.pool.QueryRow(context.Background(), query, companyID, docType).Scan(&seq); err != nil {
		return 0, fmt.Errorf("allocate consecutive %s: %w", docType, err)
	}
	return seq, nil
}
