package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is anyone who registered an email, set an alert, or subscribed.
// Users are never hard-deleted by the service; dependent rows carry cascade
// constraints so a manual deletion cleans up after itself.
type User struct {
	ID        int       `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// SteamPriceAlert fires when a Steam app's price drops to or below the
// target. At most one row may exist per (user, app) pair.
type SteamPriceAlert struct {
	ID           int             `json:"id" gorm:"primaryKey"`
	UserID       int             `json:"user_id" gorm:"uniqueIndex:idx_steam_alert_user_app;not null"`
	AppID        int             `json:"app_id" gorm:"uniqueIndex:idx_steam_alert_user_app;not null"`
	GameTitle    string          `json:"game_title" gorm:"not null"`
	TargetPrice  decimal.Decimal `json:"target_price" gorm:"type:decimal(10,2);not null"`
	CurrentPrice decimal.Decimal `json:"current_price" gorm:"type:decimal(10,2)"`
	Currency     string          `json:"currency" gorm:"size:10;default:INR"`
	IsActive     bool            `json:"is_active" gorm:"default:true"`
	AlertSent    bool            `json:"alert_sent" gorm:"default:false"`
	CreatedAt    time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
	User         User            `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// EpicPriceAlert is the Epic Games Store variant, keyed by the compound
// namespace/offer identifier.
type EpicPriceAlert struct {
	ID            int             `json:"id" gorm:"primaryKey"`
	UserID        int             `json:"user_id" gorm:"uniqueIndex:idx_epic_alert_user_offer;not null"`
	EpicNamespace string          `json:"epic_namespace" gorm:"uniqueIndex:idx_epic_alert_user_offer;not null"`
	EpicOfferID   string          `json:"epic_offer_id" gorm:"uniqueIndex:idx_epic_alert_user_offer;not null"`
	GameTitle     string          `json:"game_title" gorm:"not null"`
	TargetPrice   decimal.Decimal `json:"target_price" gorm:"type:decimal(10,2);not null"`
	CurrentPrice  decimal.Decimal `json:"current_price" gorm:"type:decimal(10,2)"`
	Currency      string          `json:"currency" gorm:"size:10;default:USD"`
	IsActive      bool            `json:"is_active" gorm:"default:true"`
	AlertSent     bool            `json:"alert_sent" gorm:"default:false"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
	User          User            `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// FreeGameAlert records that a user was told about one free-game promotion.
// Its lifecycle is bounded by the promotion's end date; promotions are
// matched by (namespace, offer_id) equality, never by title.
type FreeGameAlert struct {
	ID            int        `json:"id" gorm:"primaryKey"`
	UserID        int        `json:"user_id" gorm:"uniqueIndex:idx_free_game_user_offer;not null"`
	EpicNamespace string     `json:"epic_namespace" gorm:"uniqueIndex:idx_free_game_user_offer;not null"`
	EpicOfferID   string     `json:"epic_offer_id" gorm:"uniqueIndex:idx_free_game_user_offer;not null"`
	GameTitle     string     `json:"game_title" gorm:"not null"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	AlertSent     bool       `json:"alert_sent" gorm:"default:false"`
	Claimed       bool       `json:"claimed" gorm:"default:false"`
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`
	User          User       `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// Subscription tracks the opt-in recurring notifications for one user:
// the daily deals digest and Epic free-game alerts. LastSent gates the
// digest to at most one delivery per day.
type Subscription struct {
	ID         int        `json:"id" gorm:"primaryKey"`
	UserID     int        `json:"user_id" gorm:"uniqueIndex;not null"`
	DailyDeals bool       `json:"daily_deals" gorm:"default:false"`
	FreeGames  bool       `json:"free_games" gorm:"default:false"`
	IsActive   bool       `json:"is_active" gorm:"default:true"`
	LastSent   *time.Time `json:"last_sent"`
	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime"`
	User       User       `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// GamePlatformMapping joins a Steam app id with an Epic namespace/offer pair
// through the normalized title. Rows are upserted opportunistically when a
// price comparison matches both platforms.
type GamePlatformMapping struct {
	ID              int       `json:"id" gorm:"primaryKey"`
	NormalizedTitle string    `json:"normalized_title" gorm:"uniqueIndex;not null"`
	GameTitle       string    `json:"game_title" gorm:"not null"`
	SteamAppID      int       `json:"steam_app_id"`
	EpicNamespace   string    `json:"epic_namespace"`
	EpicOfferID     string    `json:"epic_offer_id"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// PriceHistoryPoint is an append-only price observation. Rows are written
// once on every successful storefront fetch and never mutated.
type PriceHistoryPoint struct {
	ID              int             `json:"id" gorm:"primaryKey"`
	Platform        string          `json:"platform" gorm:"index:idx_price_history_game;not null"`
	AppID           int             `json:"app_id" gorm:"index:idx_price_history_game"`
	EpicNamespace   string          `json:"epic_namespace" gorm:"index:idx_price_history_game"`
	EpicOfferID     string          `json:"epic_offer_id"`
	Price           decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	Currency        string          `json:"currency" gorm:"size:10"`
	DiscountPercent int             `json:"discount_percent"`
	RecordedAt      time.Time       `json:"recorded_at" gorm:"autoCreateTime"`
}
