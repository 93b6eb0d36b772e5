package payments

import (
	"context"
	"errors"
	"time"

	"github.com/sreedevirajkumar/candle/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRecordStore keeps ledger records in the payment_records table.
type GormRecordStore struct {
	DB *gorm.DB
}

func NewGormRecordStore(db *gorm.DB) *GormRecordStore {
	return &GormRecordStore{DB: db}
}

func (g *GormRecordStore) Get(ctx context.Context, reference string) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	if err := g.DB.WithContext(ctx).Where("reference = ?", reference).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (g *GormRecordStore) Put(ctx context.Context, rec *models.PaymentRecord) error {
	row := rec.Clone()
	return g.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
}

func (g *GormRecordStore) Delete(ctx context.Context, reference string) error {
	return g.DB.WithContext(ctx).Where("reference = ?", reference).Delete(&models.PaymentRecord{}).Error
}

func (g *GormRecordStore) List(ctx context.Context) ([]models.PaymentRecord, error) {
	var out []models.PaymentRecord
	err := g.DB.WithContext(ctx).Order("timestamp ASC").Order("reference ASC").Find(&out).Error
	return out, err
}

// GormSessionStore keeps payment sessions in the payment_sessions table.
type GormSessionStore struct {
	DB *gorm.DB
}

func NewGormSessionStore(db *gorm.DB) *GormSessionStore {
	return &GormSessionStore{DB: db}
}

func (g *GormSessionStore) Get(ctx context.Context, sessionID string) (*models.PaymentSession, error) {
	var s models.PaymentSession
	if err := g.DB.WithContext(ctx).Where("session_id = ?", sessionID).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (g *GormSessionStore) Put(ctx context.Context, s *models.PaymentSession) error {
	row := s.Clone()
	return g.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
}

func (g *GormSessionStore) Delete(ctx context.Context, sessionID string) error {
	return g.DB.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&models.PaymentSession{}).Error
}

func (g *GormSessionStore) List(ctx context.Context) ([]models.PaymentSession, error) {
	var out []models.PaymentSession
	err := g.DB.WithContext(ctx).Order("created_at DESC").Order("session_id DESC").Find(&out).Error
	return out, err
}

func (g *GormSessionStore) ListPendingBefore(ctx context.Context, t time.Time) ([]models.PaymentSession, error) {
	var out []models.PaymentSession
	err := g.DB.WithContext(ctx).
		Where("status = ? AND expires_at < ?", models.SessionPending, t).
		Find(&out).Error
	return out, err
}
