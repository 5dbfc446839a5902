// Package config loads the widget configuration from the environment and
// reads the query parameters of the URL the widget was opened with.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

type Config struct {
	// URL the host opened the widget with; its query carries the access hints
	WidgetURL string `env:"FORMS_WIDGET_URL"`
	// access level declared in the ready handshake
	RequiredAccess string `env:"FORMS_REQUIRED_ACCESS" envDefault:"full"`

	WriteTimeout time.Duration `env:"FORMS_WRITE_TIMEOUT" envDefault:"10s"`
	MaxDepth     int           `env:"FORMS_MAX_PROPAGATION_DEPTH" envDefault:"64"`

	DatabasePath string `env:"FORMS_DB_PATH" envDefault:"forms.db"`
	RedisURL     string `env:"FORMS_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisPrefix  string `env:"FORMS_REDIS_PREFIX" envDefault:"forms"`
}

// Load reads Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Access is what the widget URL says about the granted access. It only
// decides which affordances are offered.
type Access struct {
	Level    string
	ReadOnly bool
}

// FullAccess reports whether the URL granted full access.
func (a Access) FullAccess() bool {
	return a.Level == "full"
}

// ParseAccess reads the readonly and access query parameters of rawURL. An
// empty URL grants everything.
func ParseAccess(rawURL string) (Access, error) {
	if rawURL == "" {
		return Access{}, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Access{}, fmt.Errorf("parse widget url: %w", err)
	}
	q := u.Query()

	a := Access{Level: q.Get("access")}
	a.ReadOnly = q.Get("readonly") == "true" || (q.Has("access") && a.Level != "full")
	return a, nil
}

// FormParam returns the Form_ query parameter of the host page URL, used to
// pick one form when several rows are visible.
func FormParam(currentURL string) string {
	if currentURL == "" {
		return ""
	}
	u, err := url.Parse(currentURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("Form_")
}
