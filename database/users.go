// Package database manages the application-level Postgres role on the
// provisioned instance over a direct SQL connection.
package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
)

// BuildDSN renders a postgres:// connection URL for the admin connection.
func BuildDSN(hostPort, user, password, dbname, sslmode string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, password),
		Host:   hostPort,
		Path:   "/" + dbname,
	}
	if sslmode != "" {
		q := url.Values{}
		q.Set("sslmode", sslmode)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// UserExists reports whether the role is present in pg_roles.
func UserExists(ctx context.Context, dsn, role string) (bool, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return false, fmt.Errorf("database: connect: %v", err)
	}
	defer conn.Close(ctx)

	var one int
	err = conn.QueryRow(ctx, `SELECT 1 FROM pg_roles WHERE rolname = $1`, role).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("database: query pg_roles: %v", err)
	}
	return true, nil
}

// CreateUser creates a LOGIN role with the given password. Role DDL cannot
// take bind parameters, so identifier and literal are quoted explicitly.
func CreateUser(ctx context.Context, dsn, role, password string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("database: connect: %v", err)
	}
	defer conn.Close(ctx)

	stmt := fmt.Sprintf("CREATE ROLE %s LOGIN PASSWORD %s",
		QuoteIdentifier(role), QuoteLiteral(password))
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("database: create role %s: %v", role, err)
	}
	return nil
}

// QuoteIdentifier double-quotes a SQL identifier.
func QuoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// QuoteLiteral single-quotes a SQL string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
