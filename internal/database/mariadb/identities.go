package mariadb

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// IdentityRepository provides MariaDB-backed gallery storage.
type IdentityRepository struct {
	db *gorm.DB
}

// NewIdentityRepository creates a new MariaDB identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{db: pool.db}
}

func toIdentities(models []identityModel) ([]database.Identity, error) {
	identities := make([]database.Identity, 0, len(models))
	for i := range models {
		identity, err := models[i].toIdentity(true)
		if err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	return identities, nil
}

// Lookup retrieves an identity by ID. Returns nil if not found.
func (r *IdentityRepository) Lookup(ctx context.Context, id int64) (*database.Identity, error) {
	var m identityModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	identity, err := m.toIdentity(true)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// All returns every enrolled identity ordered by ID.
func (r *IdentityRepository) All(ctx context.Context) ([]database.Identity, error) {
	var models []identityModel
	if err := r.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	return toIdentities(models)
}

// Count returns the number of enrolled identities.
func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&identityModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return int(count), nil
}

// FindByName returns identities whose display name matches after normalization.
// MariaDB has no unaccent, so names are compared in Go.
func (r *IdentityRepository) FindByName(ctx context.Context, name string) ([]database.Identity, error) {
	want := database.NormalizePersonName(name)
	if want == "" {
		return nil, nil
	}

	var candidates []identityModel
	err := r.db.WithContext(ctx).Select("id", "display_name").Order("id").Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("query identity names: %w", err)
	}

	var ids []int64
	for _, c := range candidates {
		if database.NormalizePersonName(c.DisplayName) == want {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var models []identityModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("query identities by name: %w", err)
	}
	return toIdentities(models)
}

// Enroll stores a new identity and fills in its ID and CreatedAt.
func (r *IdentityRepository) Enroll(ctx context.Context, identity *database.Identity) error {
	if len(identity.Template) != constants.TemplateDim {
		return fmt.Errorf("template has %d values, want %d", len(identity.Template), constants.TemplateDim)
	}
	data, err := encodeTemplate(identity.Template)
	if err != nil {
		return err
	}
	m := identityModel{
		DisplayName:  identity.DisplayName,
		Designation:  identity.Designation,
		ImagePath:    identity.ImagePath,
		TemplateJSON: data,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	identity.ID = m.ID
	identity.CreatedAt = m.CreatedAt
	return nil
}

// Delete removes an identity together with its attendance history.
func (r *IdentityRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("identity_id = ?", id).Delete(&attendanceModel{}).Error; err != nil {
			return fmt.Errorf("delete attendance: %w", err)
		}
		result := tx.Delete(&identityModel{}, id)
		if result.Error != nil {
			return fmt.Errorf("delete identity: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return database.ErrNotFound
		}
		return nil
	})
}

var _ database.GalleryWriter = (*IdentityRepository)(nil)
