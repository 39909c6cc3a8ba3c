package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store wraps the relational database. All money comparisons happen on
// decimals; the database only persists.
type Store struct {
	db *gorm.DB
}

// NewStore connects to Postgres with the given connection string.
func NewStore(connStr string) (*Store, error) {
	return Open(postgres.Open(connStr))
}

// Open connects with an explicit dialector. Tests use this with sqlite.
func Open(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping reports whether the database is reachable right now.
func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// AutoMigrate creates or updates the schema from the GORM models.
func (s *Store) AutoMigrate() error {
	err := s.db.AutoMigrate(
		&User{},
		&SteamPriceAlert{},
		&EpicPriceAlert{},
		&FreeGameAlert{},
		&Subscription{},
		&GamePlatformMapping{},
		&PriceHistoryPoint{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto migrate schema: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------- users

// RegisterUser creates the user if the email is unseen and returns the row
// either way. Registration is idempotent.
func (s *Store) RegisterUser(email string) (*User, error) {
	user := User{Email: email, IsActive: true}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoNothing: true,
	}).Create(&user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	// On conflict the returned struct has no ID; fetch the existing row.
	if user.ID == 0 {
		return s.GetUserByEmail(email)
	}
	return &user, nil
}

// GetUserByEmail returns nil without error when the email is unknown.
func (s *Store) GetUserByEmail(email string) (*User, error) {
	var user User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ---------------------------------------------------------------- steam alerts

// CreateSteamAlert inserts a new alert row. A second insert for the same
// (user, app) pair fails with the unique constraint, not a silent duplicate.
func (s *Store) CreateSteamAlert(alert *SteamPriceAlert) error {
	if err := s.db.Create(alert).Error; err != nil {
		return fmt.Errorf("failed to create steam alert: %w", err)
	}
	return nil
}

// UpsertSteamAlert creates the alert or, if one exists for the pair,
// refreshes the target and re-arms it (is_active true, alert_sent false).
func (s *Store) UpsertSteamAlert(userID, appID int, title string, target, current decimal.Decimal, currency string) (*SteamPriceAlert, error) {
	alert := SteamPriceAlert{
		UserID:       userID,
		AppID:        appID,
		GameTitle:    title,
		TargetPrice:  target,
		CurrentPrice: current,
		Currency:     currency,
		IsActive:     true,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "app_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"game_title":    title,
			"target_price":  target,
			"current_price": current,
			"currency":      currency,
			"is_active":     true,
			"alert_sent":    false,
			"updated_at":    time.Now(),
		}),
	}).Create(&alert).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert steam alert: %w", err)
	}
	if alert.ID == 0 {
		if err := s.db.Where("user_id = ? AND app_id = ?", userID, appID).First(&alert).Error; err != nil {
			return nil, fmt.Errorf("failed to reload steam alert: %w", err)
		}
	}
	return &alert, nil
}

// DueSteamAlerts returns every alert eligible for evaluation: active and
// not yet notified, with the owning user preloaded for the email address.
func (s *Store) DueSteamAlerts() ([]SteamPriceAlert, error) {
	var alerts []SteamPriceAlert
	err := s.db.Preload("User").
		Where("is_active = ? AND alert_sent = ?", true, false).
		Order("id").
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query due steam alerts: %w", err)
	}
	return alerts, nil
}

// UpdateSteamAlertPrice refreshes the last-seen price on an alert row.
func (s *Store) UpdateSteamAlertPrice(alertID int, current decimal.Decimal) error {
	err := s.db.Model(&SteamPriceAlert{}).Where("id = ?", alertID).
		Update("current_price", current).Error
	if err != nil {
		return fmt.Errorf("failed to update steam alert price: %w", err)
	}
	return nil
}

// MarkSteamAlertSent flags the alert as notified. is_active stays true; the
// alert re-arms only through UpsertSteamAlert.
func (s *Store) MarkSteamAlertSent(alertID int) error {
	err := s.db.Model(&SteamPriceAlert{}).Where("id = ?", alertID).
		Update("alert_sent", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark steam alert sent: %w", err)
	}
	return nil
}

// ActiveSteamAlertsByUser lists a user's active alerts for display.
func (s *Store) ActiveSteamAlertsByUser(userID int) ([]SteamPriceAlert, error) {
	var alerts []SteamPriceAlert
	err := s.db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("game_title").
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query steam alerts: %w", err)
	}
	return alerts, nil
}

// DeactivateSteamAlert disables an alert. Returns false when no active
// alert existed for the pair.
func (s *Store) DeactivateSteamAlert(userID, appID int) (bool, error) {
	res := s.db.Model(&SteamPriceAlert{}).
		Where("user_id = ? AND app_id = ? AND is_active = ?", userID, appID, true).
		Update("is_active", false)
	if res.Error != nil {
		return false, fmt.Errorf("failed to deactivate steam alert: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ---------------------------------------------------------------- epic alerts

// CreateEpicAlert inserts a new alert row, subject to the unique
// (user, namespace, offer) constraint.
func (s *Store) CreateEpicAlert(alert *EpicPriceAlert) error {
	if err := s.db.Create(alert).Error; err != nil {
		return fmt.Errorf("failed to create epic alert: %w", err)
	}
	return nil
}

// UpsertEpicAlert mirrors UpsertSteamAlert for the Epic identifier pair.
func (s *Store) UpsertEpicAlert(userID int, namespace, offerID, title string, target, current decimal.Decimal, currency string) (*EpicPriceAlert, error) {
	alert := EpicPriceAlert{
		UserID:        userID,
		EpicNamespace: namespace,
		EpicOfferID:   offerID,
		GameTitle:     title,
		TargetPrice:   target,
		CurrentPrice:  current,
		Currency:      currency,
		IsActive:      true,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "epic_namespace"}, {Name: "epic_offer_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"game_title":    title,
			"target_price":  target,
			"current_price": current,
			"currency":      currency,
			"is_active":     true,
			"alert_sent":    false,
			"updated_at":    time.Now(),
		}),
	}).Create(&alert).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert epic alert: %w", err)
	}
	if alert.ID == 0 {
		err := s.db.Where("user_id = ? AND epic_namespace = ? AND epic_offer_id = ?",
			userID, namespace, offerID).First(&alert).Error
		if err != nil {
			return nil, fmt.Errorf("failed to reload epic alert: %w", err)
		}
	}
	return &alert, nil
}

func (s *Store) DueEpicAlerts() ([]EpicPriceAlert, error) {
	var alerts []EpicPriceAlert
	err := s.db.Preload("User").
		Where("is_active = ? AND alert_sent = ?", true, false).
		Order("id").
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query due epic alerts: %w", err)
	}
	return alerts, nil
}

func (s *Store) UpdateEpicAlertPrice(alertID int, current decimal.Decimal) error {
	err := s.db.Model(&EpicPriceAlert{}).Where("id = ?", alertID).
		Update("current_price", current).Error
	if err != nil {
		return fmt.Errorf("failed to update epic alert price: %w", err)
	}
	return nil
}

func (s *Store) MarkEpicAlertSent(alertID int) error {
	err := s.db.Model(&EpicPriceAlert{}).Where("id = ?", alertID).
		Update("alert_sent", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark epic alert sent: %w", err)
	}
	return nil
}

func (s *Store) ActiveEpicAlertsByUser(userID int) ([]EpicPriceAlert, error) {
	var alerts []EpicPriceAlert
	err := s.db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("game_title").
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query epic alerts: %w", err)
	}
	return alerts, nil
}

// ---------------------------------------------------------------- free games

// HasFreeGameAlert reports whether the user already has a row for the
// promotion. Promotions are keyed by (namespace, offer_id) equality.
func (s *Store) HasFreeGameAlert(userID int, namespace, offerID string) (bool, error) {
	var count int64
	err := s.db.Model(&FreeGameAlert{}).
		Where("user_id = ? AND epic_namespace = ? AND epic_offer_id = ?", userID, namespace, offerID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check free game alert: %w", err)
	}
	return count > 0, nil
}

// CreateFreeGameAlert records a promotion the user has now been told about.
func (s *Store) CreateFreeGameAlert(alert *FreeGameAlert) error {
	if err := s.db.Create(alert).Error; err != nil {
		return fmt.Errorf("failed to create free game alert: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------- subscriptions

// SubscribeDailyDeals enables the digest for the user, creating the
// subscription row when needed.
func (s *Store) SubscribeDailyDeals(userID int) error {
	return s.upsertSubscription(userID, map[string]interface{}{
		"daily_deals": true,
		"is_active":   true,
	})
}

// SubscribeFreeGames enables free-game alerts for the user.
func (s *Store) SubscribeFreeGames(userID int) error {
	return s.upsertSubscription(userID, map[string]interface{}{
		"free_games": true,
		"is_active":  true,
	})
}

func (s *Store) upsertSubscription(userID int, set map[string]interface{}) error {
	sub := Subscription{UserID: userID, IsActive: true}
	if v, ok := set["daily_deals"]; ok {
		sub.DailyDeals = v.(bool)
	}
	if v, ok := set["free_games"]; ok {
		sub.FreeGames = v.(bool)
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(set),
	}).Create(&sub).Error
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// FreeGameSubscribers lists every active user subscribed to free-game alerts.
func (s *Store) FreeGameSubscribers() ([]Subscription, error) {
	var subs []Subscription
	err := s.db.Preload("User").
		Where("free_games = ? AND is_active = ?", true, true).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query free game subscribers: %w", err)
	}
	return subs, nil
}

// DigestSubscribersDueSince lists active digest subscribers whose last_sent
// predates the cutoff (or was never set). The cutoff is the start of the
// current delivery period, so each subscriber gets at most one digest per
// period.
func (s *Store) DigestSubscribersDueSince(cutoff time.Time) ([]Subscription, error) {
	var subs []Subscription
	err := s.db.Preload("User").
		Where("daily_deals = ? AND is_active = ?", true, true).
		Where("last_sent IS NULL OR last_sent < ?", cutoff).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query digest subscribers: %w", err)
	}
	return subs, nil
}

// MarkDigestSent stamps last_sent after a successful delivery.
func (s *Store) MarkDigestSent(subscriptionID int, at time.Time) error {
	err := s.db.Model(&Subscription{}).Where("id = ?", subscriptionID).
		Update("last_sent", at).Error
	if err != nil {
		return fmt.Errorf("failed to mark digest sent: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------- mappings

// UpsertMapping records a confirmed cross-platform join keyed by the
// normalized title.
func (s *Store) UpsertMapping(m *GamePlatformMapping) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "normalized_title"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"game_title":     m.GameTitle,
			"steam_app_id":   m.SteamAppID,
			"epic_namespace": m.EpicNamespace,
			"epic_offer_id":  m.EpicOfferID,
			"updated_at":     time.Now(),
		}),
	}).Create(m).Error
	if err != nil {
		return fmt.Errorf("failed to upsert platform mapping: %w", err)
	}
	return nil
}

// GetMapping returns nil without error when the title has no mapping yet.
func (s *Store) GetMapping(normalizedTitle string) (*GamePlatformMapping, error) {
	var m GamePlatformMapping
	if err := s.db.Where("normalized_title = ?", normalizedTitle).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get platform mapping: %w", err)
	}
	return &m, nil
}

// ---------------------------------------------------------------- history

// AppendPriceHistory writes one observation. History rows are write-once.
func (s *Store) AppendPriceHistory(p *PriceHistoryPoint) error {
	if err := s.db.Create(p).Error; err != nil {
		return fmt.Errorf("failed to append price history: %w", err)
	}
	return nil
}

// SteamPriceHistory returns the most recent observations for an app,
// newest first.
func (s *Store) SteamPriceHistory(appID, limit int) ([]PriceHistoryPoint, error) {
	var points []PriceHistoryPoint
	err := s.db.Where("platform = ? AND app_id = ?", "steam", appID).
		Order("recorded_at DESC").Limit(limit).
		Find(&points).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	return points, nil
}
