package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type UpsertProfileRequest struct {
	UserID       snowflake.ID `json:"user_id"`
	LegalName    string       `json:"legal_name"`
	Email        string       `json:"email"`
	AddressLine1 string       `json:"address_line1"`
	AddressLine2 string       `json:"address_line2"`
	City         string       `json:"city"`
	PostalCode   string       `json:"postal_code"`
	Region       string       `json:"region"`
	Country      string       `json:"country"`
	TaxID        string       `json:"tax_id"`
}

type Service interface {
	// GetProfile returns nil without error when the user has no profile yet.
	GetProfile(ctx context.Context, userID snowflake.ID) (*Profile, error)
	UpsertProfile(ctx context.Context, req UpsertProfileRequest) (*Profile, error)
}

var (
	ErrInvalidUser    = errors.New("invalid_user")
	ErrInvalidCountry = errors.New("invalid_country")
)
