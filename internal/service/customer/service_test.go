package customer

import (
	"context"
	"testing"

	"chocolate-storefront/internal/domain"
)

// memoryRepo is a lightweight in-memory customer repository for tests.
type memoryRepo struct {
	byEmail map[string]domain.Customer
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byEmail: make(map[string]domain.Customer)}
}

func (r *memoryRepo) Create(_ context.Context, c domain.Customer) (*domain.Customer, error) {
	if _, exists := r.byEmail[c.Email]; exists {
		return nil, domain.ErrAlreadyExists
	}
	clone := c
	if clone.ID == "" {
		clone.ID = "cust-" + c.Email
	}
	r.byEmail[clone.Email] = clone
	return &clone, nil
}

func (r *memoryRepo) GetByEmail(_ context.Context, email string) (*domain.Customer, error) {
	if c, ok := r.byEmail[email]; ok {
		clone := c
		return &clone, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	for _, c := range r.byEmail {
		if c.ID == id {
			clone := c
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memoryRepo) AddAddress(_ context.Context, id string, addr domain.Address) (*domain.Customer, error) {
	for email, c := range r.byEmail {
		if c.ID == id {
			c.Addresses = append(c.Addresses, addr)
			r.byEmail[email] = c
			clone := c
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func TestSignupAndLogin_SucceedsWithTrimmedPassword(t *testing.T) {
	svc := New(newMemoryRepo())
	ctx := context.Background()

	customer, err := svc.Signup(ctx, SignupInput{
		Email:     " User@Example.com",
		Password:  " Abcdefg1 ",
		FirstName: "Ayşe",
	})
	if err != nil {
		t.Fatalf("signup returned error: %v", err)
	}
	if customer == nil || customer.Email != "user@example.com" {
		t.Fatalf("unexpected customer %+v", customer)
	}

	if _, err := svc.Login(ctx, "user@example.com", "Abcdefg1"); err != nil {
		t.Fatalf("login failed with trimmed password: %v", err)
	}
}

func TestValidatePassword_FailsOnWeakValues(t *testing.T) {
	cases := []struct {
		name string
		pass string
	}{
		{"too short", "Abc1"},
		{"no upper", "abcdefg1"},
		{"no lower", "ABCDEFG1"},
		{"no digit", "Abcdefgh"},
	}
	for _, tc := range cases {
		if err := validatePassword(tc.pass, 8); err == nil {
			t.Fatalf("expected error for case %s", tc.name)
		}
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := New(newMemoryRepo())
	ctx := context.Background()

	if _, err := svc.Signup(ctx, SignupInput{Email: "user@example.com", Password: "Abcdefg1"}); err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, err := svc.Login(ctx, "user@example.com", "wrongpass"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "missing@example.com", "Abcdefg1"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for missing user, got %v", err)
	}
}

func TestAddAddress(t *testing.T) {
	svc := New(newMemoryRepo())
	ctx := context.Background()
	c, err := svc.Signup(ctx, SignupInput{Email: "a@example.com", Password: "Abcdefg1"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, err := svc.AddAddress(ctx, c.ID, AddressInput{FullName: "Ayşe Yılmaz"}); err == nil {
		t.Fatalf("expected validation error for incomplete address")
	}

	addr, err := svc.AddAddress(ctx, c.ID, AddressInput{
		FullName: "Ayşe Yılmaz", Phone: "05321234567", Line1: "Bağdat Cd. 12", City: "İstanbul",
	})
	if err != nil {
		t.Fatalf("add address: %v", err)
	}
	got, _ := svc.Get(ctx, c.ID)
	if _, ok := got.AddressByID(addr.ID); !ok {
		t.Fatalf("address not saved")
	}
}
