package customer

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"chocolate-storefront/internal/domain"
	custrepo "chocolate-storefront/internal/repository/customer"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when email/password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidInput wraps signup and address validation failures.
	ErrInvalidInput = errors.New("invalid input")
)

// Service handles customer signup/login and saved addresses.
type Service struct {
	repo        custrepo.Repository
	passwordMin int
}

func New(repo custrepo.Repository) *Service {
	return &Service{repo: repo, passwordMin: 8}
}

// AddressInput mirrors incoming address payloads.
type AddressInput struct {
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	District   string `json:"district"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// SignupInput captures fields expected by the signup endpoint.
type SignupInput struct {
	Email     string         `json:"email"`
	Password  string         `json:"password"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Phone     string         `json:"phone"`
	Addresses []AddressInput `json:"addresses"`
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (*domain.Customer, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" {
		return nil, fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	password := strings.TrimSpace(in.Password)
	if err := validatePassword(password, s.passwordMin); err != nil {
		return nil, err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	addresses := make([]domain.Address, 0, len(in.Addresses))
	for _, a := range in.Addresses {
		addr, err := addressFromInput(a)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}

	return s.repo.Create(ctx, domain.Customer{
		Email:        email,
		PasswordHash: string(hashed),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		Addresses:    addresses,
	})
}

// Login validates credentials and returns the customer.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.Customer, error) {
	password = strings.TrimSpace(password)
	c, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Customer, error) {
	return s.repo.GetByID(ctx, id)
}

// AddAddress saves a new address and returns it with its generated id.
func (s *Service) AddAddress(ctx context.Context, customerID string, in AddressInput) (domain.Address, error) {
	addr, err := addressFromInput(in)
	if err != nil {
		return domain.Address{}, err
	}
	if _, err := s.repo.AddAddress(ctx, customerID, addr); err != nil {
		return domain.Address{}, err
	}
	return addr, nil
}

func addressFromInput(in AddressInput) (domain.Address, error) {
	addr := domain.Address{
		ID:         randomAddressID(),
		FullName:   strings.TrimSpace(in.FullName),
		Phone:      strings.TrimSpace(in.Phone),
		Line1:      strings.TrimSpace(in.Line1),
		Line2:      strings.TrimSpace(in.Line2),
		District:   strings.TrimSpace(in.District),
		City:       strings.TrimSpace(in.City),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.TrimSpace(in.Country),
	}
	if err := ValidateAddress(addr); err != nil {
		return domain.Address{}, err
	}
	return addr, nil
}

// ValidateAddress checks the fields a shipping label needs.
func ValidateAddress(a domain.Address) error {
	switch {
	case a.FullName == "":
		return fmt.Errorf("%w: fullName required", ErrInvalidInput)
	case a.Line1 == "":
		return fmt.Errorf("%w: line1 required", ErrInvalidInput)
	case a.City == "":
		return fmt.Errorf("%w: city required", ErrInvalidInput)
	case a.Phone == "":
		return fmt.Errorf("%w: phone required", ErrInvalidInput)
	}
	return nil
}

func randomAddressID() string {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
	}
	return base64.RawURLEncoding.EncodeToString(buf[:])
}

func validatePassword(p string, min int) error {
	trimmed := strings.TrimSpace(p)
	if len(trimmed) < min {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, min)
	}
	hasUpper := false
	hasLower := false
	hasDigit := false
	for _, r := range trimmed {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("%w: password needs an uppercase letter, a lowercase letter and a digit", ErrInvalidInput)
	}
	return nil
}
