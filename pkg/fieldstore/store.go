// Package fieldstore is the SQL Field Store: section blobs, granular fields and
// the CRM connection of each funnel.
package fieldstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jordanlanch/funnelsync/pkg/domain"
	"github.com/jordanlanch/funnelsync/pkg/vault"
)

var (
	// ErrNoConnection is returned when a funnel has no enabled CRM connection
	ErrNoConnection = errors.New("funnel has no enabled CRM connection")
	// ErrFieldNotFound is returned when a field does not exist
	ErrFieldNotFound = domain.NewNotFoundError("field")
	// ErrPredefinedField is returned when deleting a field that is not custom
	ErrPredefinedField = domain.NewConflictError("predefined fields cannot be deleted", nil)
	// ErrInvalidFieldType is returned for unknown field types
	ErrInvalidFieldType = domain.NewValidationError("invalid field type")
)

// Connection is the CRM location a funnel pushes to
type Connection struct {
	FunnelID    string    `json:"funnel_id"`
	LocationID  string    `json:"location_id"`
	AccessToken string    `json:"-"`
	Enabled     bool      `json:"enabled"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SaveFieldInput is a field edit
type SaveFieldInput struct {
	FunnelID  string
	SectionID string
	FieldID   string
	Type      vault.FieldType
	Value     vault.Value
	IsCustom  bool
	Metadata  vault.Metadata
}

// Store is a database/sql backed field store
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a new field store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate creates the field store tables
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS funnel_sections (
			funnel_id TEXT NOT NULL,
			section_id TEXT NOT NULL,
			vault_content TEXT NOT NULL DEFAULT '{}',
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (funnel_id, section_id)
		)`,
		`CREATE TABLE IF NOT EXISTS funnel_fields (
			funnel_id TEXT NOT NULL,
			section_id TEXT NOT NULL,
			field_id TEXT NOT NULL,
			field_type TEXT NOT NULL,
			field_value TEXT NOT NULL DEFAULT '',
			is_approved BOOLEAN NOT NULL DEFAULT FALSE,
			version INTEGER NOT NULL DEFAULT 1,
			is_custom BOOLEAN NOT NULL DEFAULT FALSE,
			field_metadata TEXT NOT NULL DEFAULT '{}',
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (funnel_id, section_id, field_id)
		)`,
		`CREATE TABLE IF NOT EXISTS crm_connections (
			funnel_id TEXT PRIMARY KEY,
			location_id TEXT NOT NULL,
			access_token TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate field store: %w", err)
		}
	}
	return nil
}

// Sections returns every section blob of a funnel
func (s *Store) Sections(ctx context.Context, funnelID string) ([]vault.Section, []vault.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT section_id, vault_content, updated_at FROM funnel_sections
		WHERE funnel_id = $1 ORDER BY section_id`, funnelID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query sections: %w", err)
	}
	defer rows.Close()

	sections := []vault.Section{}
	var issues []vault.Issue
	for rows.Next() {
		sec := vault.Section{FunnelID: funnelID}
		var blob string
		if err := rows.Scan(&sec.SectionID, &blob, &sec.UpdatedAt); err != nil {
			return nil, nil, err
		}
		sec.Content = map[string]any{}
		if blob != "" {
			// An unreadable blob contributes nothing; field rows still apply.
			if err := json.Unmarshal([]byte(blob), &sec.Content); err != nil {
				sec.Content = map[string]any{}
				issues = append(issues, vault.Issue{
					SectionID: sec.SectionID,
					Message:   fmt.Sprintf("section content is not valid JSON and was ignored: %v", err),
				})
			}
		}
		sections = append(sections, sec)
	}
	return sections, issues, rows.Err()
}

// Fields returns every field of a funnel with values parsed once. Values that do
// not match their declared type are returned as text along with an Issue.
func (s *Store) Fields(ctx context.Context, funnelID string) ([]vault.Field, []vault.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT section_id, field_id, field_type, field_value, is_approved,
			version, is_custom, field_metadata, updated_at
		FROM funnel_fields WHERE funnel_id = $1 ORDER BY section_id, field_id`, funnelID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query fields: %w", err)
	}
	defer rows.Close()

	fields := []vault.Field{}
	var issues []vault.Issue
	for rows.Next() {
		f := vault.Field{FunnelID: funnelID}
		var fieldType, raw, meta string
		if err := rows.Scan(&f.SectionID, &f.FieldID, &fieldType, &raw, &f.IsApproved,
			&f.Version, &f.IsCustom, &meta, &f.UpdatedAt); err != nil {
			return nil, nil, err
		}
		f.Type = vault.FieldType(fieldType)
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &f.Metadata); err != nil {
				f.Metadata = vault.Metadata{}
				issues = append(issues, vault.Issue{
					SectionID: f.SectionID,
					FieldID:   f.FieldID,
					Message:   fmt.Sprintf("field metadata is not valid JSON; subfields are not checked: %v", err),
				})
			}
		}

		value, ok := vault.ParseValue(f.Type, raw)
		if !ok {
			issues = append(issues, vault.Issue{
				SectionID: f.SectionID,
				FieldID:   f.FieldID,
				Message:   fmt.Sprintf("value is not valid %s; using it as text", f.Type),
			})
		}
		f.Value = value
		fields = append(fields, f)
	}
	return fields, issues, rows.Err()
}

// Connection returns the enabled CRM connection of a funnel
func (s *Store) Connection(ctx context.Context, funnelID string) (*Connection, error) {
	conn := Connection{FunnelID: funnelID}
	err := s.db.QueryRowContext(ctx, `SELECT location_id, access_token, enabled, updated_at
		FROM crm_connections WHERE funnel_id = $1`, funnelID).
		Scan(&conn.LocationID, &conn.AccessToken, &conn.Enabled, &conn.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoConnection
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query connection: %w", err)
	}
	if !conn.Enabled || conn.LocationID == "" || conn.AccessToken == "" {
		return nil, ErrNoConnection
	}
	return &conn, nil
}

// SaveConnection creates or replaces a funnel's CRM connection
func (s *Store) SaveConnection(ctx context.Context, conn Connection) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO crm_connections (funnel_id, location_id, access_token, enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (funnel_id) DO UPDATE SET
			location_id = EXCLUDED.location_id,
			access_token = EXCLUDED.access_token,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at`,
		conn.FunnelID, conn.LocationID, conn.AccessToken, conn.Enabled, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}
	return nil
}

// SaveSection replaces a section's denormalized blob
func (s *Store) SaveSection(ctx context.Context, funnelID, sectionID string, content map[string]any) error {
	if content == nil {
		content = map[string]any{}
	}
	blob, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to encode section: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO funnel_sections (funnel_id, section_id, vault_content, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (funnel_id, section_id) DO UPDATE SET
			vault_content = EXCLUDED.vault_content,
			updated_at = EXCLUDED.updated_at`,
		funnelID, sectionID, string(blob), s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save section: %w", err)
	}
	return nil
}

// SaveField stores a field value. An existing field gets its version bumped and
// its approval reset; is_custom is fixed at creation. Empty metadata keeps the
// stored one, so value edits never drop a field's subfields.
func (s *Store) SaveField(ctx context.Context, in SaveFieldInput) (*vault.Field, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFieldType, in.Type)
	}
	raw, err := vault.EncodeValue(in.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode field value: %w", err)
	}
	meta, err := json.Marshal(in.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode field metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO funnel_fields (funnel_id, section_id, field_id, field_type, field_value,
			is_approved, version, is_custom, field_metadata, updated_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, 1, $6, $7, $8)
		ON CONFLICT (funnel_id, section_id, field_id) DO UPDATE SET
			field_type = EXCLUDED.field_type,
			field_value = EXCLUDED.field_value,
			field_metadata = CASE WHEN EXCLUDED.field_metadata = '{}'
				THEN funnel_fields.field_metadata ELSE EXCLUDED.field_metadata END,
			is_approved = FALSE,
			version = funnel_fields.version + 1,
			updated_at = EXCLUDED.updated_at`,
		in.FunnelID, in.SectionID, in.FieldID, string(in.Type), raw, in.IsCustom, string(meta), s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to save field: %w", err)
	}

	return s.Field(ctx, in.FunnelID, in.SectionID, in.FieldID)
}

// Field loads a single field
func (s *Store) Field(ctx context.Context, funnelID, sectionID, fieldID string) (*vault.Field, error) {
	f := vault.Field{FunnelID: funnelID, SectionID: sectionID, FieldID: fieldID}
	var fieldType, raw, meta string
	err := s.db.QueryRowContext(ctx, `SELECT field_type, field_value, is_approved, version, is_custom, field_metadata, updated_at
		FROM funnel_fields WHERE funnel_id = $1 AND section_id = $2 AND field_id = $3`, funnelID, sectionID, fieldID).
		Scan(&fieldType, &raw, &f.IsApproved, &f.Version, &f.IsCustom, &meta, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFieldNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query field: %w", err)
	}
	f.Type = vault.FieldType(fieldType)
	f.Value, _ = vault.ParseValue(f.Type, raw)
	if meta != "" {
		_ = json.Unmarshal([]byte(meta), &f.Metadata)
	}
	return &f, nil
}

// ApproveSection approves every field of a section and returns how many changed
func (s *Store) ApproveSection(ctx context.Context, funnelID, sectionID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE funnel_fields SET is_approved = TRUE, updated_at = $1
		WHERE funnel_id = $2 AND section_id = $3 AND is_approved = FALSE`, s.now().UTC(), funnelID, sectionID)
	if err != nil {
		return 0, fmt.Errorf("failed to approve section: %w", err)
	}
	return res.RowsAffected()
}

// DeleteCustomField removes a user-added field. Predefined fields are kept.
func (s *Store) DeleteCustomField(ctx context.Context, funnelID, sectionID, fieldID string) error {
	f, err := s.Field(ctx, funnelID, sectionID, fieldID)
	if err != nil {
		return err
	}
	if !f.IsCustom {
		return ErrPredefinedField
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM funnel_fields WHERE funnel_id = $1 AND section_id = $2 AND field_id = $3`,
		funnelID, sectionID, fieldID)
	if err != nil {
		return fmt.Errorf("failed to delete field: %w", err)
	}
	return nil
}
