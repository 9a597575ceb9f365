package model

import "time"

// Account 监控的社交账号
type Account struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Handle    string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"handle"`
	UserID    string    `gorm:"type:varchar(32);not null" json:"user_id"` // 外部数字 ID
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }
