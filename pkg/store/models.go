package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence. Table names follow the external schema.

type DraftModel struct {
	ID        string `gorm:"primaryKey"`
	OwnerID   string `gorm:"not null;uniqueIndex:idx_drafts_owner_version,priority:1"`
	Version   int    `gorm:"not null;uniqueIndex:idx_drafts_owner_version,priority:2"`
	Title     string
	Content   string         `gorm:"type:text;not null"`
	Chapters  datatypes.JSON `gorm:"type:jsonb"`
	WordCount int            `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

func (DraftModel) TableName() string { return "drafts" }

type ProductModel struct {
	ID            string `gorm:"primaryKey"`
	OwnerID       string `gorm:"not null;index"`
	Title         string `gorm:"not null;index"`
	Description   string `gorm:"type:text"`
	ContentBucket string
	ContentKey    string
	ContentURL    string
	PreviewBucket string
	PreviewKey    string
	PreviewURL    string
	PriceCents    int64     `gorm:"not null"`
	IsActive      bool      `gorm:"not null;index"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (ProductModel) TableName() string { return "ai_products" }

type MintRequestModel struct {
	ID          string `gorm:"primaryKey"`
	ProductID   string `gorm:"not null;index"`
	OwnerID     string `gorm:"not null;index"`
	Status      string `gorm:"not null"`
	TxnHash     string
	MetadataURL string
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (MintRequestModel) TableName() string { return "nft_mint_requests" }

type PurchaseModel struct {
	ID         string    `gorm:"primaryKey"`
	BuyerID    string    `gorm:"not null;index"`
	ProductID  string    `gorm:"not null;index"`
	PriceCents int64     `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (PurchaseModel) TableName() string { return "purchases" }
