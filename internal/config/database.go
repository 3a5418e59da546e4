// internal/config/database.go
package config

import (
	"fmt"
	"strings"
)

// DSN returns DATABASE_URL when set, otherwise a key/value DSN built from the
// DB_* settings.
func (d *DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}

	parts := []string{
		"host=" + d.Host,
		"port=" + d.Port,
		"user=" + d.User,
		"dbname=" + d.Database,
		"sslmode=" + d.SSLMode,
	}
	if d.Password != "" {
		parts = append(parts, "password="+d.Password)
	}
	if d.TimeZone != "" {
		parts = append(parts, "TimeZone="+d.TimeZone)
	}
	if d.ApplicationName != "" {
		parts = append(parts, fmt.Sprintf("application_name=%s", d.ApplicationName))
	}
	return strings.Join(parts, " ")
}
