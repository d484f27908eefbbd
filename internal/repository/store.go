package repository

import (
	"context"

	"reflexion/internal/database"

	"gorm.io/gorm"
)

type gormHealth struct {
	db *gorm.DB
}

func (h gormHealth) Ping(ctx context.Context) error {
	return database.Ping(ctx, h.db)
}

// NewGormStore wires the relational repositories over db.
func NewGormStore(db *gorm.DB) *Store {
	return &Store{
		Users:       NewUserRepository(db),
		Posts:       NewPostRepository(db),
		Connections: NewConnectionRepository(db),
		Health:      gormHealth{db: db},
	}
}
