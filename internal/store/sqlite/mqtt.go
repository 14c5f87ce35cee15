package sqlite

import (
	"context"

	"industrial-bridge/internal/domain"
)

func (d *DB) ListEnabledMQTT(ctx context.Context) ([]domain.DeviceMQTT, error) {
	var brokers []domain.DeviceMQTT
	err := d.gorm.WithContext(ctx).Where("enabled = ?", true).Find(&brokers).Error
	return brokers, err
}

func (d *DB) GetMQTTByID(ctx context.Context, id uint) (domain.DeviceMQTT, error) {
	var broker domain.DeviceMQTT
	err := d.gorm.WithContext(ctx).First(&broker, id).Error
	return broker, err
}
