package database

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(postgres.Open(dsn), gormConfig(cfg))
}

func openMySQL(cfg Config) (*gorm.DB, error) {
	dsn, err := buildMySQLDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(mysql.Open(dsn), gormConfig(cfg))
}

// buildPostgresDSN renders a libpq keyword/value connection string with
// deterministic option ordering.
func buildPostgresDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("postgres configuration requires user and database name")
	}

	pairs := map[string]string{
		"host":    defaultString(cfg.Host, "localhost"),
		"port":    strconv.Itoa(defaultInt(cfg.Port, 5432)),
		"user":    cfg.User,
		"dbname":  cfg.Name,
		"sslmode": "disable",
	}
	if cfg.Password != "" {
		pairs["password"] = cfg.Password
	}
	for key, value := range cfg.Options {
		pairs[key] = value
	}

	head := []string{"host", "port", "user", "dbname"}
	parts := make([]string, 0, len(pairs))
	for _, key := range head {
		parts = append(parts, key+"="+pairs[key])
		delete(pairs, key)
	}
	rest := make([]string, 0, len(pairs))
	for key := range pairs {
		rest = append(rest, key)
	}
	sort.Strings(rest)
	for _, key := range rest {
		parts = append(parts, key+"="+pairs[key])
	}
	return strings.Join(parts, " "), nil
}

// buildMySQLDSN delegates formatting and escaping to the driver's own Config.
func buildMySQLDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("mysql configuration requires user and database name")
	}

	mc := mysqldriver.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(defaultString(cfg.Host, "127.0.0.1"), strconv.Itoa(defaultInt(cfg.Port, 3306)))
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	for key, value := range cfg.Options {
		switch key {
		case "tls":
			mc.TLSConfig = value
		default:
			mc.Params[key] = value
		}
	}
	return mc.FormatDSN(), nil
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func defaultInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}

// Describe returns a log-safe summary of the connection target.
func Describe(cfg Config) string {
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "postgresql", "mysql", "mariadb":
		return fmt.Sprintf("%s://%s/%s", strings.ToLower(cfg.Driver), net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)), cfg.Name)
	case DriverMemory:
		return DriverMemory
	}
	if cfg.Path == "" {
		return "sqlite (memory)"
	}
	return "sqlite://" + cfg.Path
}
