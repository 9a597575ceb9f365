package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/autopress/internal/model"
)

type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	List(ctx context.Context) ([]*model.Account, error)
}

type accountRepository struct{ db *gorm.DB }

func NewAccountRepository(db *gorm.DB) AccountRepository { return &accountRepository{db: db} }

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *accountRepository) List(ctx context.Context) ([]*model.Account, error) {
	var res []*model.Account
	err := r.db.WithContext(ctx).Order("id").Find(&res).Error
	return res, err
}
