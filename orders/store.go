package orders

import (
	"context"
	"errors"
	"sort"
	"sync"

	"gorm.io/gorm"

	"github.com/sreedevirajkumar/candle/models"
)

type Store interface {
	Create(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, orderID string) (*models.Order, error)
	Update(ctx context.Context, o *models.Order) error
	List(ctx context.Context) ([]models.Order, error)
}

type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]models.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]models.Order)}
}

func (m *MemoryStore) Create(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.OrderID]; ok {
		return errors.New("order " + o.OrderID + " already exists")
	}
	m.orders[o.OrderID] = *o.Clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, orderID string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Clone(), nil
}

func (m *MemoryStore) Update(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.OrderID]; !ok {
		return ErrNotFound
	}
	m.orders[o.OrderID] = *o.Clone()
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]models.Order, error) {
	m.mu.RLock()
	out := make([]models.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *o.Clone())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderDate.Equal(out[j].OrderDate) {
			return out[i].OrderID > out[j].OrderID
		}
		return out[i].OrderDate.After(out[j].OrderDate)
	})
	return out, nil
}

// GormStore keeps orders in the orders table.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (g *GormStore) Create(ctx context.Context, o *models.Order) error {
	return g.DB.WithContext(ctx).Create(o).Error
}

func (g *GormStore) Get(ctx context.Context, orderID string) (*models.Order, error) {
	var o models.Order
	if err := g.DB.WithContext(ctx).Where("order_id = ?", orderID).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (g *GormStore) Update(ctx context.Context, o *models.Order) error {
	return g.DB.WithContext(ctx).Model(&models.Order{}).
		Where("order_id = ?", o.OrderID).
		Select("courier_name", "tracking_id", "tracking_email_sent_at", "payment_verified", "payment_reference").
		Updates(o).Error
}

func (g *GormStore) List(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	err := g.DB.WithContext(ctx).Order("order_date DESC").Order("id DESC").Find(&out).Error
	return out, err
}
