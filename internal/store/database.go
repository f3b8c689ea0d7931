package store

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"veritariff/tariffengine/internal/cache"
	"veritariff/tariffengine/internal/config"
	"veritariff/tariffengine/internal/providers"
	"veritariff/tariffengine/internal/taric"
)

// Connect opens a pooled Postgres connection per cfg, following
// order_service/src/database/connection.go's Connect.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	gormLogger := gormlogger.Default.LogMode(gormlogger.Warn)

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxConnections)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return db, nil
}

// AutoMigrate creates or updates every table the engine owns, following
// order_service/src/database/connection.go's AutoMigrate. Extensions and
// the composite/covering indexes a gorm tag can't express are handled
// separately by RunMigrations, which must run against the same database.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Shipment{},
		&ShipmentItem{},
		&ShipmentCosts{},
		&Calculation{},
		&cache.RateSnapshot{},
		&providers.TariffRateOverride{},
		&providers.VatRate{},
		&providers.EuTaricRate{},
		&providers.FxRateDaily{},
		&taric.Snapshot{},
		&taric.GoodsNomenclature{},
		&taric.GoodsDescription{},
		&taric.GeoArea{},
		&taric.GeoAreaMember{},
		&taric.Measure{},
		&taric.DutyExpression{},
		&taric.MeasureDutyExpression{},
		&taric.AdditionalCode{},
		&taric.MeasureAdditionalCode{},
		&taric.MeasureCondition{},
		&taric.Regulation{},
		&taric.ResolvedCache{},
	); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}

	return nil
}
