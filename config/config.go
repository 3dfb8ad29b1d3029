// Package config loads the YAML deployment configuration that supplies the
// permission and preference facts consumed by free/busy evaluation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/chronos-cal/chronos/calendar"
	"github.com/chronos-cal/chronos/freebusy"
)

// UserConfig holds per-user calendaring preferences.
type UserConfig struct {
	// FreeBusyVisibility is the user's disclosure preference: "all",
	// "internal" or "none". Empty falls back to the tenant default.
	FreeBusyVisibility string `yaml:"freebusy_visibility"`
	// Timezone is the user's IANA display timezone (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone"`
}

// TenantConfig holds the configuration of one tenant.
type TenantConfig struct {
	// CrossTenantFreeBusy enables this tenant's participation in
	// cross-tenant free/busy lookups, both as querier and as target.
	CrossTenantFreeBusy bool `yaml:"cross_tenant_freebusy"`
	// DefaultFreeBusyVisibility applies to users without an explicit
	// preference; empty means "internal".
	DefaultFreeBusyVisibility string `yaml:"default_freebusy_visibility"`
	// Users maps user entity ids to their preferences.
	Users map[int]UserConfig `yaml:"users"`
	// VisibleFolders lists folder ids any tenant user may see.
	VisibleFolders []string `yaml:"visible_folders"`
	// BookingDelegates maps resource entity ids to the user entity ids
	// holding booking-delegate authority over them.
	BookingDelegates map[int][]int `yaml:"booking_delegates"`
}

// Config is the top-level deployment configuration.
type Config struct {
	Tenants map[int]TenantConfig `yaml:"tenants"`
}

// Load reads the YAML configuration from path.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config %s does not exist: %w", path, err)
		}
		return nil, err
	}
	return Parse(data)
}

// Parse unmarshals a YAML configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	if c.Tenants == nil {
		c.Tenants = make(map[int]TenantConfig)
	}
	for id, tenant := range c.Tenants {
		if tenant.DefaultFreeBusyVisibility == "" {
			tenant.DefaultFreeBusyVisibility = string(freebusy.VisibilityInternal)
		}
		c.Tenants[id] = tenant
	}
}

// Facts binds the configuration to a viewer tenant, producing the fact
// source free/busy evaluation consumes. Folder visibility is judged against
// the viewer's tenant; disclosure preferences against the queried tenant.
func (c *Config) Facts(viewerTenant int) *Facts {
	return &Facts{cfg: c, viewerTenant: viewerTenant}
}

// Facts implements freebusy.Config on top of a loaded configuration.
type Facts struct {
	cfg          *Config
	viewerTenant int
}

// FreeBusyVisibility implements freebusy.Config.
func (f *Facts) FreeBusyVisibility(tenantID, userID int) (freebusy.Visibility, error) {
	tenant, ok := f.cfg.Tenants[tenantID]
	if !ok {
		return "", fmt.Errorf("unknown tenant %d", tenantID)
	}
	visibility := tenant.DefaultFreeBusyVisibility
	if user, ok := tenant.Users[userID]; ok && user.FreeBusyVisibility != "" {
		visibility = user.FreeBusyVisibility
	}
	switch v := freebusy.Visibility(visibility); v {
	case freebusy.VisibilityAll, freebusy.VisibilityInternal, freebusy.VisibilityNone:
		return v, nil
	default:
		return "", fmt.Errorf("invalid free/busy visibility %q for user %d", visibility, userID)
	}
}

// CrossTenantFreeBusy implements freebusy.Config.
func (f *Facts) CrossTenantFreeBusy(tenantID int) bool {
	return f.cfg.Tenants[tenantID].CrossTenantFreeBusy
}

// ChooseFolder implements freebusy.Config. Events carry the folder they were
// loaded from; an event without one offers the viewer no access path.
func (f *Facts) ChooseFolder(event *calendar.Event) (string, error) {
	if event == nil {
		return "", errors.New("no event")
	}
	return event.FolderID, nil
}

// IsFolderVisible implements freebusy.Config.
func (f *Facts) IsFolderVisible(folderID string) (bool, error) {
	tenant, ok := f.cfg.Tenants[f.viewerTenant]
	if !ok {
		return false, fmt.Errorf("unknown tenant %d", f.viewerTenant)
	}
	for _, id := range tenant.VisibleFolders {
		if id == folderID {
			return true, nil
		}
	}
	return false, nil
}

// CanDelegateBooking implements freebusy.Config.
func (f *Facts) CanDelegateBooking(viewerID int, resource calendar.Attendee) (bool, error) {
	tenant, ok := f.cfg.Tenants[f.viewerTenant]
	if !ok {
		return false, fmt.Errorf("unknown tenant %d", f.viewerTenant)
	}
	for _, id := range tenant.BookingDelegates[resource.Entity] {
		if id == viewerID {
			return true, nil
		}
	}
	return false, nil
}

// TimezoneOf returns the configured display timezone name of a user, or ""
// when none is set.
func (c *Config) TimezoneOf(tenantID, userID int) string {
	return c.Tenants[tenantID].Users[userID].Timezone
}
