package orders

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sreedevirajkumar/candle/models"
)

func storesUnderTest(t *testing.T) map[string]Store {
	stores := map[string]Store{"memory": NewMemoryStore()}
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Logf("sqlite unavailable, testing memory store only: %v", err)
		return stores
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Order{}))
	stores["gorm"] = NewGormStore(db)
	return stores
}

func TestStores(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.Get(ctx, "ORD-404")
			assert.ErrorIs(t, err, ErrNotFound)

			base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
			for i, id := range []string{"ORD-1", "ORD-2"} {
				require.NoError(t, store.Create(ctx, &models.Order{
					OrderID:     id,
					Name:        "Asha",
					Phone:       "9876543210",
					Email:       "asha@example.com",
					Address:     "Kochi",
					PaymentMode: "upi",
					CartItems:   []models.CartItem{{ProductID: 7, ProductName: "Rose", Price: decimal.NewFromInt(150), Quantity: 1}},
					TotalAmount: decimal.NewFromInt(150),
					OrderDate:   base.Add(time.Duration(i) * time.Hour),
				}))
			}

			o, err := store.Get(ctx, "ORD-1")
			require.NoError(t, err)
			require.Len(t, o.CartItems, 1)
			assert.Equal(t, "Rose", o.CartItems[0].ProductName)
			assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(150)))

			courier, tracking := "DTDC", "D1"
			o.CourierName, o.TrackingID = &courier, &tracking
			require.NoError(t, store.Update(ctx, o))
			o, err = store.Get(ctx, "ORD-1")
			require.NoError(t, err)
			assert.Equal(t, "D1", *o.TrackingID)

			list, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "ORD-2", list[0].OrderID)
		})
	}
}
