package storage

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsConflict(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "uq_sessions_active_slot"}
	if !IsConflict(unique) {
		t.Fatalf("unique violation should be a conflict")
	}
	if !IsConflict(fmt.Errorf("insert hold: %w", unique)) {
		t.Fatalf("wrapped unique violation should be a conflict")
	}
	if IsConflict(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("foreign key violation is not a slot conflict")
	}
	if IsConflict(pgx.ErrNoRows) {
		t.Fatalf("no rows is not a conflict")
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(pgx.ErrNoRows) {
		t.Fatalf("pgx.ErrNoRows should be not-found")
	}
	if !IsNotFound(fmt.Errorf("load session: %w", pgx.ErrNoRows)) {
		t.Fatalf("wrapped pgx.ErrNoRows should be not-found")
	}
	if IsNotFound(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("unique violation is not not-found")
	}
}
