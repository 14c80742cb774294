// Package services – TenantService
//
// TenantService validates and creates restaurants together with the channel
// addresses (SMS number, page id, email inbox) that route inbound messages
// to them. An address already owned by another
// tenant surfaces as ErrAddressTaken.

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/orderflow-agent/internal/channel"
	"github.com/tbourn/orderflow-agent/internal/domain"
	"github.com/tbourn/orderflow-agent/internal/repo"
)

// TenantAddressInput is a receiving address in a tenant registration.
type TenantAddressInput struct {
	Channel string `json:"channel" validate:"required,oneof=sms facebook instagram"`
	Address string `json:"address" validate:"required,max=255"`
}

// TenantInput registers a restaurant.
type TenantInput struct {
	Name        string               `json:"name"         validate:"required,max=255"`
	Language    string               `json:"language"     validate:"omitempty,oneof=da en"`
	CountryCode string               `json:"country_code" validate:"omitempty,numeric,max=4"`
	Currency    string               `json:"currency"     validate:"omitempty,len=3,alpha"`
	Addresses   []TenantAddressInput `json:"addresses"    validate:"required,min=1,dive"`
}

// TenantService registers tenants and their receiving addresses.
type TenantService struct {
	DB       *gorm.DB
	validate *validator.Validate
}

// NewTenantService constructs a TenantService.
func NewTenantService(db *gorm.DB) *TenantService {
	return &TenantService{DB: db, validate: validator.New()}
}

// Create validates in, normalizes phone-like SMS addresses the same way the
// channel adapter normalizes receivers, and stores the tenant.
func (s *TenantService) Create(ctx context.Context, in TenantInput) (*domain.Tenant, error) {
	tr := otel.Tracer("services/TenantService")
	ctx, span := tr.Start(ctx, "Create", trace.WithAttributes(attribute.Int("tenant.addresses", len(in.Addresses))))
	defer span.End()

	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTenant, describeValidation(err))
	}
	lang := in.Language
	if lang == "" {
		lang = "da"
	}
	cc := in.CountryCode
	if cc == "" {
		cc = channel.DefaultCountryCode
	}
	cur := strings.ToUpper(in.Currency)
	if cur == "" {
		cur = "DKK"
	}

	addrs := make([]repo.AddressInput, 0, len(in.Addresses))
	for _, a := range in.Addresses {
		addr := strings.TrimSpace(a.Address)
		if a.Channel == domain.ChannelSMS {
			addr = channel.NormalizeAddress(addr, cc)
		}
		addrs = append(addrs, repo.AddressInput{Channel: a.Channel, Address: addr})
	}

	t, err := repo.CreateTenant(ctx, s.DB, in.Name, lang, cc, cur, addrs)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrAddressTaken
	}
	return t, err
}

// Get returns a tenant by id.
func (s *TenantService) Get(ctx context.Context, id string) (*domain.Tenant, error) {
	t, err := repo.GetTenant(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrTenantNotFound
	}
	return t, err
}
