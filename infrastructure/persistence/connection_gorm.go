package persistence

import (
	"context"
	"errors"

	"github.com/AzielCF/az-wap-ingest/domains/connection"
	"gorm.io/gorm"
)

type ConnectionGormRepository struct {
	db *gorm.DB
}

func NewConnectionGormRepository(db *gorm.DB) *ConnectionGormRepository {
	return &ConnectionGormRepository{db: db}
}

// Create registers a connection. Connections are managed outside the webhook
// pipeline; this is used by the CLI and tests.
func (r *ConnectionGormRepository) Create(ctx context.Context, c connection.Connection) error {
	m := toConnectionModel(c)
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *ConnectionGormRepository) FindByID(ctx context.Context, id string) (*connection.Connection, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *ConnectionGormRepository) FindByToken(ctx context.Context, token string) (*connection.Connection, error) {
	if token == "" {
		return nil, nil
	}
	return r.findOne(ctx, "provider_token = ?", token)
}

func (r *ConnectionGormRepository) FindByCloudPhoneNumberID(ctx context.Context, phoneNumberID string) (*connection.Connection, error) {
	if phoneNumberID == "" {
		return nil, nil
	}
	return r.findOne(ctx, "cloud_api_phone_number_id = ?", phoneNumberID)
}

func (r *ConnectionGormRepository) UpdateStatus(ctx context.Context, id string, update connection.StatusUpdate) error {
	fields := map[string]interface{}{"status": string(update.Status)}
	if update.LastConnected != nil {
		fields["last_connected"] = update.LastConnected.UTC()
	}
	// Zero matched rows is not an error.
	return r.db.WithContext(ctx).Model(&connectionModel{}).Where("id = ?", id).Updates(fields).Error
}

func (r *ConnectionGormRepository) findOne(ctx context.Context, query string, arg string) (*connection.Connection, error) {
	var m connectionModel
	if err := r.db.WithContext(ctx).First(&m, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	c := fromConnectionModel(m)
	return &c, nil
}

func toConnectionModel(c connection.Connection) connectionModel {
	status := c.Status
	if status == "" {
		status = connection.StatusDisconnected
	}
	return connectionModel{
		ID:                    c.ID,
		OrganizationID:        c.OrganizationID,
		Name:                  c.Name,
		Provider:              c.Provider,
		ProviderToken:         nullable(c.ProviderToken),
		Status:                string(status),
		CloudAPIPhoneNumberID: nullable(c.CloudAPIPhoneNumberID),
		LastConnected:         c.LastConnected,
	}
}

func fromConnectionModel(m connectionModel) connection.Connection {
	return connection.Connection{
		ID:                    m.ID,
		OrganizationID:        m.OrganizationID,
		Name:                  m.Name,
		Provider:              m.Provider,
		ProviderToken:         deref(m.ProviderToken),
		Status:                connection.Status(m.Status),
		CloudAPIPhoneNumberID: deref(m.CloudAPIPhoneNumberID),
		LastConnected:         m.LastConnected,
	}
}
