package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"barpos-backend/models"
	"barpos-backend/utils"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	utils.InitLogger()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Table{},
		&models.QRSession{},
		&models.Guest{},
		&models.MenuCategory{},
		&models.Menu{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.Invoice{},
	))
	return db
}

func seedTable(t *testing.T, db *gorm.DB, number string) *models.Table {
	t.Helper()
	table := models.Table{TableNumber: number, Capacity: 4, Status: models.TableAvailable}
	require.NoError(t, db.Create(&table).Error)
	return &table
}

func seedMenu(t *testing.T, db *gorm.DB, name string, price float64) *models.Menu {
	t.Helper()
	category := models.MenuCategory{Name: "Drinks"}
	require.NoError(t, db.FirstOrCreate(&category, models.MenuCategory{Name: "Drinks"}).Error)

	menu := models.Menu{
		CategoryID:  category.ID,
		Name:        name,
		Price:       price,
		IsAvailable: true,
	}
	require.NoError(t, db.Create(&menu).Error)
	return &menu
}

func seedStaff(t *testing.T, db *gorm.DB, role string) *models.User {
	t.Helper()
	user := models.User{
		Name:     "Test " + role,
		Email:    role + "-" + utils.NewOpaqueToken()[:8] + "@example.com",
		Password: "hashed",
		Role:     role,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func seedGuest(t *testing.T, db *gorm.DB, reg *GuestRegistryService, qr *QRSessionService, tableID uint, name string) *RegisteredGuest {
	t.Helper()
	var session models.QRSession
	err := db.Where("table_id = ? AND is_active = ? AND expires_at > ?", tableID, true, time.Now()).
		First(&session).Error
	if err != nil {
		issued, issueErr := qr.Issue(tableID, nil, "http://localhost:8080")
		require.NoError(t, issueErr)
		guest, regErr := reg.Register(issued.Token, name, nil)
		require.NoError(t, regErr)
		return guest
	}
	guest, regErr := reg.Register(session.Token, name, nil)
	require.NoError(t, regErr)
	return guest
}
