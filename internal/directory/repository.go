package directory

import (
	"context"

	"github.com/moglich/opsdash/internal/models"
	"github.com/moglich/opsdash/pkg/database"
)

// Repository handles the client profile, KAM directory and meeting minutes tables.
type Repository struct {
	db database.DB
}

// NewRepository creates a directory repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// ListClientProfiles returns profiles, most recent fecha first.
func (r *Repository) ListClientProfiles(ctx context.Context) ([]models.ClientProfile, error) {
	rows, err := r.db.Query(ctx, `SELECT id, cliente, empresa, contacto, kam, COALESCE(to_char(fecha, 'YYYY-MM-DD'),''), perfil_url
		FROM client_profiles ORDER BY fecha DESC NULLS LAST, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.ClientProfile{}
	for rows.Next() {
		var p models.ClientProfile
		if err := rows.Scan(&p.ID, &p.Cliente, &p.Empresa, &p.Contacto, &p.KAM, &p.Fecha, &p.PerfilURL); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// CreateClientProfile inserts p and sets its id.
func (r *Repository) CreateClientProfile(ctx context.Context, p *models.ClientProfile) error {
	const q = `INSERT INTO client_profiles (cliente, empresa, contacto, kam, fecha, perfil_url)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::date, $6) RETURNING id`
	return r.db.QueryRow(ctx, q, p.Cliente, p.Empresa, p.Contacto, p.KAM, p.Fecha, p.PerfilURL).Scan(&p.ID)
}

// ListKAMContacts returns the phone directory, newest first.
func (r *Repository) ListKAMContacts(ctx context.Context) ([]models.KAMContact, error) {
	rows, err := r.db.Query(ctx, `SELECT id, kam, linkedin, numero, created_at FROM kam_directory ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.KAMContact{}
	for rows.Next() {
		var k models.KAMContact
		if err := rows.Scan(&k.ID, &k.KAM, &k.LinkedIn, &k.Numero, &k.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, k)
	}
	return list, rows.Err()
}

// CreateKAMContact inserts k and sets its id and created_at.
func (r *Repository) CreateKAMContact(ctx context.Context, k *models.KAMContact) error {
	const q = `INSERT INTO kam_directory (kam, linkedin, numero) VALUES ($1, $2, $3) RETURNING id, created_at`
	return r.db.QueryRow(ctx, q, k.KAM, k.LinkedIn, k.Numero).Scan(&k.ID, &k.CreatedAt)
}

// ListMeetingMinutes returns minutes, most recent fecha first.
func (r *Repository) ListMeetingMinutes(ctx context.Context) ([]models.MeetingMinute, error) {
	rows, err := r.db.Query(ctx, `SELECT id, cliente, nombre, link, COALESCE(to_char(fecha, 'YYYY-MM-DD'),'')
		FROM meeting_minutes ORDER BY fecha DESC NULLS LAST, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.MeetingMinute{}
	for rows.Next() {
		var m models.MeetingMinute
		if err := rows.Scan(&m.ID, &m.Cliente, &m.Nombre, &m.Link, &m.Fecha); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// CreateMeetingMinute inserts m and sets its id.
func (r *Repository) CreateMeetingMinute(ctx context.Context, m *models.MeetingMinute) error {
	const q = `INSERT INTO meeting_minutes (cliente, nombre, link, fecha) VALUES ($1, $2, $3, NULLIF($4, '')::date) RETURNING id`
	return r.db.QueryRow(ctx, q, m.Cliente, m.Nombre, m.Link, m.Fecha).Scan(&m.ID)
}
