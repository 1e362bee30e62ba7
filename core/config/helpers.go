package config

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.App,
		validation.Field(&c.App.Port, validation.Required),
	); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.Driver, validation.Required, validation.In("sqlite", "postgres")),
		validation.Field(&c.Database.Name, validation.Required),
	); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&c.Lock,
		validation.Field(&c.Lock.Backend, validation.Required,
			validation.In(LockBackendValkey, LockBackendRedlock, LockBackendMemory)),
		validation.Field(&c.Lock.MessageTTL, validation.Required, validation.Min(MinLockTTL)),
		validation.Field(&c.Lock.KeyMajority, validation.Min(1)),
	); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&c.Cache,
		validation.Field(&c.Cache.ContactTTL, validation.Required),
		validation.Field(&c.Cache.ConnectionTTL, validation.Required),
	); err != nil {
		return err
	}
	if c.Valkey.Enabled {
		if err := validation.ValidateStruct(&c.Valkey,
			validation.Field(&c.Valkey.Address, validation.Required),
		); err != nil {
			return err
		}
	}
	return validation.ValidateStruct(&c.Webhook,
		validation.Field(&c.Webhook.Workers, validation.Min(1)),
		validation.Field(&c.Webhook.QueueSize, validation.Min(1)),
		validation.Field(&c.Webhook.MaxBodyBytes, validation.Min(int64(1024))),
	)
}

// IsProduction reports whether the app runs outside local development.
func (c *Config) IsProduction() bool {
	return !strings.EqualFold(c.App.Environment, "development") && !strings.EqualFold(c.App.Environment, "test")
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
