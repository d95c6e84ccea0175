package models

import "time"

// ClientProfile is a row of the client profile table.
type ClientProfile struct {
	ID        int64  `json:"id"`
	Cliente   string `json:"cliente"`
	Empresa   string `json:"empresa"`
	Contacto  string `json:"contacto"`
	KAM       string `json:"kam"`
	Fecha     string `json:"fecha"` // YYYY-MM-DD
	PerfilURL string `json:"perfil_url"`
}

// KAMContact is a row of the key-account-manager phone directory.
type KAMContact struct {
	ID        int64     `json:"id"`
	KAM       string    `json:"kam"`
	LinkedIn  string    `json:"linkedin"`
	Numero    string    `json:"numero"`
	CreatedAt time.Time `json:"created_at"`
}

// MeetingMinute links a client meeting to its minutes document.
type MeetingMinute struct {
	ID      int64  `json:"id"`
	Cliente string `json:"cliente"`
	Nombre  string `json:"nombre"`
	Link    string `json:"link"`
	Fecha   string `json:"fecha"` // YYYY-MM-DD
}
