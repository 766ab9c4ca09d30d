package sqlx

import (
	"fmt"
	"strings"
)

const (
	UserKey     = "${user}"
	PasswordKey = "${password}"
	HostKey     = "${host}"
	DefaultName = "default"
)

// dataSource mirrors one entry under the `datasource` key of application.yml.
type dataSource struct {
	Driver       string   `mapstructure:"driver"`
	User         string   `mapstructure:"user"`
	Password     string   `mapstructure:"password"`
	Host         string   `mapstructure:"host"`
	URL          string   `mapstructure:"url"`
	MaxOpenConns int      `mapstructure:"maxOpenConns"`
	Scripts      []string `mapstructure:"scripts"`
}

// DSNChecked returns the connection string and fails when a placeholder has no value, so a
// misconfigured deployment never connects with blank credentials.
func (ds dataSource) DSNChecked() (string, error) {
	if strings.TrimSpace(ds.URL) == "" {
		return "", fmt.Errorf("dsn requires url")
	}
	if strings.Contains(ds.URL, UserKey) && ds.User == "" {
		return "", fmt.Errorf("dsn requires user")
	}
	if strings.Contains(ds.URL, PasswordKey) && ds.Password == "" {
		return "", fmt.Errorf("dsn requires password")
	}
	if strings.Contains(ds.URL, HostKey) && ds.Host == "" {
		return "", fmt.Errorf("dsn requires host")
	}
	return ds.DSN(), nil
}

// DSN substitutes ${user}, ${password} and ${host} in the url.
func (ds dataSource) DSN() string {
	dsn := strings.ReplaceAll(ds.URL, UserKey, ds.User)
	dsn = strings.ReplaceAll(dsn, PasswordKey, ds.Password)
	return strings.ReplaceAll(dsn, HostKey, ds.Host)
}
