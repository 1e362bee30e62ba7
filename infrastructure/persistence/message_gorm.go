package persistence

import (
	"context"

	"github.com/AzielCF/az-wap-ingest/domains/message"
	"gorm.io/gorm"
)

type MessageGormRepository struct {
	db *gorm.DB
}

func NewMessageGormRepository(db *gorm.DB) *MessageGormRepository {
	return &MessageGormRepository{db: db}
}

func (r *MessageGormRepository) Create(ctx context.Context, m *message.Message) error {
	model := messageModel{
		ID:           m.ID,
		WaMessageID:  nullable(m.WaMessageID),
		SessionID:    m.SessionID,
		ConnectionID: m.ConnectionID,
		ContactID:    m.ContactID,
		Direction:    string(m.Direction),
		Status:       string(m.Status),
		Type:         m.Type,
		Content:      m.Content,
		MediaURL:     m.MediaURL,
		MimeType:     m.MimeType,
		FileName:     m.FileName,
		Caption:      m.Caption,
		IsGroup:      m.IsGroup,
		Participant:  m.Participant,
		Timestamp:    m.Timestamp,
		CreatedAt:    m.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *MessageGormRepository) UpdateStatusByWaMessageID(ctx context.Context, waMessageID string, status message.Status) (int64, error) {
	if waMessageID == "" {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&messageModel{}).
		Where("wa_message_id = ?", waMessageID).
		Update("status", string(status))
	return res.RowsAffected, res.Error
}

// ExistsByWaMessageID is always false for an empty id; id-less rows are
// never duplicates of each other.
func (r *MessageGormRepository) ExistsByWaMessageID(ctx context.Context, waMessageID string) (bool, error) {
	if waMessageID == "" {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&messageModel{}).
		Where("wa_message_id = ?", waMessageID).
		Count(&count).Error
	return count > 0, err
}

// FindByWaMessageID returns the stored message, or nil.
func (r *MessageGormRepository) FindByWaMessageID(ctx context.Context, waMessageID string) (*message.Message, error) {
	if waMessageID == "" {
		return nil, nil
	}
	var models []messageModel
	if err := r.db.WithContext(ctx).Where("wa_message_id = ?", waMessageID).Limit(1).Find(&models).Error; err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	m := models[0]
	return &message.Message{
		ID:           m.ID,
		WaMessageID:  deref(m.WaMessageID),
		SessionID:    m.SessionID,
		ConnectionID: m.ConnectionID,
		ContactID:    m.ContactID,
		Direction:    message.Direction(m.Direction),
		Status:       message.Status(m.Status),
		Type:         m.Type,
		Content:      m.Content,
		MediaURL:     m.MediaURL,
		MimeType:     m.MimeType,
		FileName:     m.FileName,
		Caption:      m.Caption,
		IsGroup:      m.IsGroup,
		Participant:  m.Participant,
		Timestamp:    m.Timestamp,
		CreatedAt:    m.CreatedAt,
	}, nil
}
