package persistence

import (
	"context"
	"fmt"

	"github.com/AzielCF/az-wap-ingest/domains/session"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionManager keeps at most one open session per contact and connection.
type SessionManager struct {
	db *gorm.DB
}

func NewSessionManager(db *gorm.DB) *SessionManager {
	return &SessionManager{db: db}
}

func (s *SessionManager) GetOrCreateSession(ctx context.Context, req session.GetOrCreateRequest) (session.Session, error) {
	var out sessionModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open []sessionModel
		err := tx.Where("contact_id = ? AND connection_id = ? AND status <> ?", req.ContactID, req.ConnectionID, string(session.StatusClosed)).
			Order("created_at DESC").
			Limit(1).
			Find(&open).Error
		if err != nil {
			return err
		}
		if len(open) > 0 {
			out = open[0]
			return nil
		}

		out = sessionModel{
			ID:             uuid.NewString(),
			ContactID:      req.ContactID,
			ConnectionID:   req.ConnectionID,
			OrganizationID: req.OrganizationID,
			Status:         string(session.StatusQueued),
		}
		return tx.Create(&out).Error
	})
	if err != nil {
		return session.Session{}, fmt.Errorf("get or create session: %w", err)
	}

	return session.Session{
		ID:             out.ID,
		ContactID:      out.ContactID,
		ConnectionID:   out.ConnectionID,
		OrganizationID: out.OrganizationID,
		Status:         session.Status(out.Status),
		CreatedAt:      out.CreatedAt,
	}, nil
}

// Close marks a session as closed; the next message opens a new one.
func (s *SessionManager) Close(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&sessionModel{}).Where("id = ?", id).Update("status", string(session.StatusClosed)).Error
}
