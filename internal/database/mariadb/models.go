package mariadb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

type identityModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	DisplayName  string    `gorm:"size:255;not null;index"`
	Designation  string    `gorm:"size:255;not null;default:''"`
	ImagePath    string    `gorm:"size:1024;not null;default:''"`
	TemplateJSON []byte    `gorm:"column:template_json;type:mediumblob;not null"`
	CreatedAt    time.Time `gorm:"not null"`

	Events []attendanceModel `gorm:"foreignKey:IdentityID;constraint:OnDelete:CASCADE"`
}

func (identityModel) TableName() string { return "identities" }

type attendanceModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	IdentityID int64     `gorm:"not null;index:idx_attendance_identity_time,priority:1"`
	RecordedAt time.Time `gorm:"not null;index:idx_attendance_identity_time,priority:2;index"`
	Status     string    `gorm:"type:enum('Present','Absent','Exit');not null"`
}

func (attendanceModel) TableName() string { return "attendance" }

// encodeTemplate stores a template as a JSON array of floats.
func encodeTemplate(template []float32) ([]byte, error) {
	data, err := json.Marshal(template)
	if err != nil {
		return nil, fmt.Errorf("marshal template: %w", err)
	}
	return data, nil
}

func decodeTemplate(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var template []float32
	if err := json.Unmarshal(data, &template); err != nil {
		return nil, fmt.Errorf("unmarshal template: %w", err)
	}
	return template, nil
}

func (m *identityModel) toIdentity(withTemplate bool) (database.Identity, error) {
	identity := database.Identity{
		ID:          m.ID,
		DisplayName: m.DisplayName,
		Designation: m.Designation,
		ImagePath:   m.ImagePath,
		CreatedAt:   m.CreatedAt,
	}
	if withTemplate {
		template, err := decodeTemplate(m.TemplateJSON)
		if err != nil {
			return database.Identity{}, fmt.Errorf("identity %d: %w", m.ID, err)
		}
		identity.Template = template
	}
	return identity, nil
}

func (m *attendanceModel) toEvent() database.AttendanceEvent {
	return database.AttendanceEvent{
		ID:         m.ID,
		IdentityID: m.IdentityID,
		Timestamp:  m.RecordedAt,
		Status:     database.AttendanceStatus(m.Status),
	}
}
