package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

func TestRunRejectsUnknownCommands(t *testing.T) {
	if err := Run(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "storage-check") {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := Run(context.Background(), []string{"launch"}); err == nil {
		t.Fatal("expected unknown command error")
	}
}

func TestShouldRetryMigration(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, want: true},
		{name: "wrapped deadlock", err: fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40P01"}), want: true},
		{name: "syntax error", err: &pgconn.PgError{Code: "42601"}, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "tx closed", err: pgx.ErrTxClosed, want: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := shouldRetryMigration(tc.err); got != tc.want {
				t.Fatalf("shouldRetryMigration(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestDevSeedAccountsCanSignIn(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "seeds", "dev_seed.sql"))
	if err != nil {
		t.Fatalf("read seed: %v", err)
	}

	hashes := regexp.MustCompile(`'(\$2[aby]\$\d{2}\$[./A-Za-z0-9]{53})'`).FindAllStringSubmatch(string(data), -1)
	if len(hashes) != 2 {
		t.Fatalf("expected 2 seeded password hashes, got %d", len(hashes))
	}
	for _, match := range hashes {
		if err := bcrypt.CompareHashAndPassword([]byte(match[1]), []byte("framez-dev")); err != nil {
			t.Fatalf("seed hash %s does not match dev password: %v", match[1], err)
		}
	}
}
