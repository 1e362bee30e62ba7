package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type contactModel struct {
	ID            string    `gorm:"primaryKey;column:id"`
	PhoneNumber   string    `gorm:"column:phone_number;not null;uniqueIndex"`
	Name          string    `gorm:"column:name;not null"`
	ProfilePicURL *string   `gorm:"column:profile_pic_url"`
	BypassBots    bool      `gorm:"column:bypass_bots;default:false"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null"`
}

func (contactModel) TableName() string { return "contacts" }

type connectionModel struct {
	ID                    string     `gorm:"primaryKey;column:id"`
	OrganizationID        string     `gorm:"column:organization_id;not null;index"`
	Name                  string     `gorm:"column:name"`
	Provider              string     `gorm:"column:provider;not null"`
	ProviderToken         *string    `gorm:"column:provider_token;uniqueIndex"`
	Status                string     `gorm:"column:status;not null;default:'DISCONNECTED'"`
	CloudAPIPhoneNumberID *string    `gorm:"column:cloud_api_phone_number_id;uniqueIndex"`
	LastConnected         *time.Time `gorm:"column:last_connected"`
	CreatedAt             time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt             time.Time  `gorm:"column:updated_at;not null"`
}

func (connectionModel) TableName() string { return "connections" }

type sessionModel struct {
	ID             string    `gorm:"primaryKey;column:id"`
	ContactID      string    `gorm:"column:contact_id;not null;index:idx_session_lookup"`
	ConnectionID   string    `gorm:"column:connection_id;not null;index:idx_session_lookup"`
	OrganizationID string    `gorm:"column:organization_id;not null"`
	Status         string    `gorm:"column:status;not null;index"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null"`
}

func (sessionModel) TableName() string { return "sessions" }

type messageModel struct {
	ID           string    `gorm:"primaryKey;column:id"`
	WaMessageID  *string   `gorm:"column:wa_message_id;uniqueIndex"` // NULL when the provider sent no id
	SessionID    string    `gorm:"column:session_id;not null;index"`
	ConnectionID string    `gorm:"column:connection_id;not null;index"`
	ContactID    string    `gorm:"column:contact_id;not null;index"`
	Direction    string    `gorm:"column:direction;not null"`
	Status       string    `gorm:"column:status;not null"`
	Type         string    `gorm:"column:type;not null"`
	Content      string    `gorm:"column:content;type:text"`
	MediaURL     string    `gorm:"column:media_url"`
	MimeType     string    `gorm:"column:mime_type"`
	FileName     string    `gorm:"column:file_name"`
	Caption      string    `gorm:"column:caption;type:text"`
	IsGroup      bool      `gorm:"column:is_group;default:false"`
	Participant  string    `gorm:"column:participant"`
	Timestamp    time.Time `gorm:"column:timestamp;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null"`
}

func (messageModel) TableName() string { return "messages" }

// Migrate creates or updates every table the pipeline writes to.
func Migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(
		&contactModel{},
		&connectionModel{},
		&sessionModel{},
		&messageModel{},
	)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
