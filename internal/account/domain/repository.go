package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	// FindByEmail matches case-insensitively after trimming and returns every
	// matching row so callers can detect ambiguous data.
	FindByEmail(ctx context.Context, db *gorm.DB, email string) ([]*Account, error)
}
