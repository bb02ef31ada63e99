package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"reasy/internal/slots"
)

// BusinessEntry is one seeded business account from businesses.yaml.
type BusinessEntry struct {
	Username            string `yaml:"username"`
	Password            string `yaml:"password"`
	Name                string `yaml:"name"`
	Description         string `yaml:"description"`
	Rating              string `yaml:"rating"`
	WorkingHours        string `yaml:"working_hours"`    // "09:00-17:00"
	ReservationDuration int    `yaml:"reservation_time"` // minutes
	Category            string `yaml:"category"`
	Address             string `yaml:"address"`
	Phone               string `yaml:"phone"`
	ImageURL            string `yaml:"image_url"`
}

// ClientEntry is one seeded client account.
type ClientEntry struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DefaultsConfig holds values applied to businesses that omit them.
type DefaultsConfig struct {
	WorkingHours        string `yaml:"working_hours"`
	ReservationDuration int    `yaml:"reservation_time"`
}

// Catalog is the root of businesses.yaml.
type Catalog struct {
	Defaults   DefaultsConfig  `yaml:"defaults"`
	Businesses []BusinessEntry `yaml:"businesses"`
	Clients    []ClientEntry   `yaml:"clients"`
}

// LoadCatalog loads and validates the business catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		path = "configs/businesses.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes businesses.yaml content, fills defaults and validates it.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	cat.applyDefaults()

	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}
	return &cat, nil
}

func (c *Catalog) applyDefaults() {
	if c.Defaults.WorkingHours == "" {
		c.Defaults.WorkingHours = "09:00-17:00"
	}
	if c.Defaults.ReservationDuration <= 0 {
		c.Defaults.ReservationDuration = 30
	}
	for i := range c.Businesses {
		b := &c.Businesses[i]
		if b.WorkingHours == "" {
			b.WorkingHours = c.Defaults.WorkingHours
		}
		if b.ReservationDuration <= 0 {
			b.ReservationDuration = c.Defaults.ReservationDuration
		}
	}
}

// Validate checks required fields, unique usernames and working hours.
func (c *Catalog) Validate() error {
	seen := make(map[string]struct{})
	checkUser := func(kind, username, password string) error {
		if strings.TrimSpace(username) == "" {
			return fmt.Errorf("%s username is required", kind)
		}
		if password == "" {
			return fmt.Errorf("%s %q: password is required", kind, username)
		}
		if _, dup := seen[username]; dup {
			return fmt.Errorf("duplicate username %q", username)
		}
		seen[username] = struct{}{}
		return nil
	}

	for _, b := range c.Businesses {
		if err := checkUser("business", b.Username, b.Password); err != nil {
			return err
		}
		if strings.TrimSpace(b.Name) == "" {
			return fmt.Errorf("business %q: name is required", b.Username)
		}
		if strings.TrimSpace(b.Category) == "" {
			return fmt.Errorf("business %q: category is required", b.Username)
		}
		wh, err := slots.ParseWorkingHours(b.WorkingHours)
		if err != nil {
			return fmt.Errorf("business %q: %w", b.Username, err)
		}
		if wh.Open >= wh.Close {
			return fmt.Errorf("business %q: working hours must open before they close", b.Username)
		}
	}
	for _, cl := range c.Clients {
		if err := checkUser("client", cl.Username, cl.Password); err != nil {
			return err
		}
	}
	return nil
}
