package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"kycdesk/internal/kyc/models"
	"kycdesk/pkg/platform/sentinel"
	"kycdesk/pkg/platform/tx"
)

// PostgresStore persists client records and their artifact references.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var stepColumns = map[models.Step]string{
	models.StepAuthenticated:      "authenticated_at",
	models.StepPersonalInfoSaved:  "personal_info_saved_at",
	models.StepIDUploaded:         "id_uploaded_at",
	models.StepAddressUploaded:    "address_uploaded_at",
	models.StepBiometricsUploaded: "biometrics_uploaded_at",
	models.StepFinalized:          "submitted_at",
}

const recordColumns = `id, code_id, client_name, date_of_birth, phone_no, nin, folder_link,
	authenticated_at, personal_info_saved_at, id_uploaded_at, address_uploaded_at,
	biometrics_uploaded_at, submitted_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, rec *models.ClientRecord) error {
	_, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO client_records (id, code_id, client_name, folder_link, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.CodeID, rec.ClientName, rec.FolderLink, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("insert client record: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert client record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByCodeID(ctx context.Context, codeID uuid.UUID) (*models.ClientRecord, error) {
	q := tx.Executor(ctx, s.db)
	rec, err := scanRecord(q.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM client_records WHERE code_id = $1`, codeID))
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT role, name, folder_id, link, uploaded_at
		FROM client_artifacts WHERE client_id = $1
	`, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("load artifacts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a models.ArtifactRef
		if err := rows.Scan(&a.Role, &a.Name, &a.FolderID, &a.Link, &a.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		rec.Artifacts[a.Role] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load artifacts: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) MarkStep(ctx context.Context, codeID uuid.UUID, step models.Step, at time.Time) error {
	col, ok := stepColumns[step]
	if !ok {
		return fmt.Errorf("step %q has no timestamp: %w", step, sentinel.ErrInvalidState)
	}
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx,
		`UPDATE client_records SET `+col+` = $2, updated_at = $2 WHERE code_id = $1`, codeID, at)
	if err != nil {
		return fmt.Errorf("mark step %s: %w", step, err)
	}
	return requireOneRow(res, codeID)
}

// UpsertPersonalInfo relies on the code_id unique constraint for the 1:1 invariant.
func (s *PostgresStore) UpsertPersonalInfo(ctx context.Context, codeID uuid.UUID, clientName string, info models.PersonalInfo, at time.Time) (*models.ClientRecord, error) {
	_, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO client_records (id, code_id, client_name, date_of_birth, phone_no, nin,
			personal_info_saved_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $7)
		ON CONFLICT (code_id) DO UPDATE SET
			date_of_birth = EXCLUDED.date_of_birth,
			phone_no = EXCLUDED.phone_no,
			nin = EXCLUDED.nin,
			personal_info_saved_at = EXCLUDED.personal_info_saved_at,
			updated_at = EXCLUDED.updated_at
	`, uuid.New(), codeID, clientName, info.DateOfBirth, info.PhoneNo, info.NIN, at)
	if err != nil {
		return nil, fmt.Errorf("upsert personal info: %w", err)
	}
	return s.FindByCodeID(ctx, codeID)
}

// AttachArtifacts upserts all references with one statement and completes the step.
// Callers run it inside RunInTx so both writes land together. A submitted
// record is frozen and yields ErrAlreadyUsed.
func (s *PostgresStore) AttachArtifacts(ctx context.Context, codeID uuid.UUID, step models.Step, refs []models.ArtifactRef, at time.Time) error {
	q := tx.Executor(ctx, s.db)
	var (
		clientID  uuid.UUID
		submitted bool
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, submitted_at IS NOT NULL FROM client_records WHERE code_id = $1 FOR UPDATE`, codeID).
		Scan(&clientID, &submitted)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("client record for code %s: %w", codeID, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("attach artifacts: %w", err)
	}
	if submitted {
		return fmt.Errorf("client record for code %s: %w", codeID, sentinel.ErrAlreadyUsed)
	}

	if len(refs) > 0 {
		roles := make([]string, len(refs))
		names := make([]string, len(refs))
		folders := make([]string, len(refs))
		links := make([]string, len(refs))
		for i, r := range refs {
			roles[i], names[i], folders[i], links[i] = r.Role, r.Name, r.FolderID, r.Link
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO client_artifacts (client_id, role, name, folder_id, link, uploaded_at)
			SELECT $1, unnest($2::text[]), unnest($3::text[]), unnest($4::text[]), unnest($5::text[]), $6
			ON CONFLICT (client_id, role) DO UPDATE SET
				name = EXCLUDED.name,
				folder_id = EXCLUDED.folder_id,
				link = EXCLUDED.link,
				uploaded_at = EXCLUDED.uploaded_at
		`, clientID, pq.Array(roles), pq.Array(names), pq.Array(folders), pq.Array(links), at)
		if err != nil {
			return fmt.Errorf("upsert artifacts: %w", err)
		}
	}
	return s.MarkStep(ctx, codeID, step, at)
}

func requireOneRow(res sql.Result, codeID uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("client record for code %s: %w", codeID, sentinel.ErrNotFound)
	}
	return nil
}

func scanRecord(row *sql.Row) (*models.ClientRecord, error) {
	var (
		rec                                         models.ClientRecord
		authAt, infoAt, idAt, addrAt, bioAt, subAt sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.CodeID, &rec.ClientName, &rec.DateOfBirth, &rec.PhoneNo, &rec.NIN, &rec.FolderLink,
		&authAt, &infoAt, &idAt, &addrAt, &bioAt, &subAt, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find client record: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find client record: %w", err)
	}
	rec.AuthenticatedAt = nullTime(authAt)
	rec.PersonalInfoSavedAt = nullTime(infoAt)
	rec.IDUploadedAt = nullTime(idAt)
	rec.AddressUploadedAt = nullTime(addrAt)
	rec.BiometricsUploadedAt = nullTime(bioAt)
	rec.SubmittedAt = nullTime(subAt)
	rec.Artifacts = map[string]models.ArtifactRef{}
	return &rec, nil
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
