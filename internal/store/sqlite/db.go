// Package sqlite is the gorm-backed implementation of store.Store,
// supporting sqlite (default) and postgres drivers.
package sqlite

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"industrial-bridge/internal/config"
	"industrial-bridge/internal/domain"
)

// DB is the concrete store.Store implementation. writeLocks serializes
// per-device data-point writes (Open Question a): only one worker is
// ever active per device by construction, but the store itself may be
// called concurrently across different devices.
type DB struct {
	gorm       *gorm.DB
	writeLocks sync.Map // map[string]*sync.Mutex, keyed "kind:id"
}

// NewDB opens the configured driver and runs migrations.
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.GetDSN())
	default:
		dsn := cfg.GetDSN()
		if dir := filepath.Dir(dsn); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
		dialector = sqlite.Open(dsn)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := migrate(gdb); err != nil {
		return nil, err
	}

	return &DB{gorm: gdb}, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.DeviceEIP{},
		&domain.TagEIP{},
		&domain.DeviceSNMP{},
		&domain.ObjectSNMP{},
		&domain.DeviceMQTT{},
		&domain.Sample{},
		&domain.TagMapping{},
		&domain.MQTTSubscription{},
	)
}

func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// lockFor returns the per-device mutex for kind:id, creating it on
// first use.
func (d *DB) lockFor(kind string, id uint) *sync.Mutex {
	key := kind + ":" + strconv.FormatUint(uint64(id), 10)
	actual, _ := d.writeLocks.LoadOrStore(key, &sync.Mutex{})
	return actual.(*sync.Mutex)
}
