package customer

import (
	"context"
	"log"
	"os"
	"testing"

	"chocolate-storefront/internal/migrate"
	customerrepo "chocolate-storefront/internal/repository/customer"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestSignupAndLogin_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE customers RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	svc := New(customerrepo.NewPostgres(pool, log.New(os.Stdout, "[test] ", log.LstdFlags)))

	password := "Abcdefg1"
	cust, err := svc.Signup(ctx, SignupInput{
		Email:     "integration@example.com",
		Password:  password,
		FirstName: "Int",
		Addresses: []AddressInput{
			{FullName: "Int User", Phone: "05320000000", Line1: "Main 1", City: "Ankara", Country: "TR"},
		},
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if cust == nil || cust.ID == "" || len(cust.Addresses) != 1 {
		t.Fatalf("expected created customer, got %+v", cust)
	}

	if _, err := svc.AddAddress(ctx, cust.ID, AddressInput{FullName: "Gift", Phone: "1", Line1: "Other 2", City: "İzmir"}); err != nil {
		t.Fatalf("add address: %v", err)
	}

	got, err := svc.Login(ctx, "integration@example.com", password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if len(got.Addresses) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(got.Addresses))
	}
}
