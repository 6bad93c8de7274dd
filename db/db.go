package db

import (
	"equipment_lending/models"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ConnectDB opens Postgres and migrates the schema.
func ConnectDB(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate models: %w", err)
	}
	return conn, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Equipment{}, &models.BorrowRequest{}); err != nil {
		return err
	}

	// 同一用户对同一设备最多一条活动申请
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_active_per_user_equipment
	  ON %s (user_id, equipment_id)
	  WHERE status IN ('PENDING', 'APPROVED');
	`, models.BorrowRequestTable, models.BorrowRequestTable)).Error; err != nil {
		return err
	}

	// 列表按申请时间倒序
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_user_request_date_desc
	  ON %s (user_id, request_date DESC);
	`, models.BorrowRequestTable, models.BorrowRequestTable)).Error; err != nil {
		return err
	}

	return nil
}
