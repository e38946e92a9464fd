package models

// UserProfile is the denormalized identity record, keyed by identity id.
// Created lazily on first sign-in, never deleted.
type UserProfile struct {
	UID         string     `gorm:"primaryKey;size:128" json:"uid"`
	DisplayName string     `gorm:"size:200" json:"displayName"`
	Email       string     `gorm:"size:255" json:"email"`
	PhotoURL    string     `gorm:"size:1000" json:"photoURL"`
	CreatedAt   *Timestamp `json:"createdAt"`
	UpdatedAt   *Timestamp `json:"updatedAt"`
}

func (UserProfile) TableName() string { return "users" }
