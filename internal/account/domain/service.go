package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type CreateAccountRequest struct {
	Email    string         `json:"email"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Service interface {
	Create(ctx context.Context, req CreateAccountRequest) (*Account, error)
	Get(ctx context.Context, id snowflake.ID) (*Account, error)
}
