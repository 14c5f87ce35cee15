package sqlite

import (
	"context"
	"time"

	"industrial-bridge/internal/domain"
)

func (d *DB) ListEnabledEIP(ctx context.Context) ([]domain.DeviceEIP, error) {
	var devices []domain.DeviceEIP
	err := d.gorm.WithContext(ctx).Where("enabled = ?", true).Find(&devices).Error
	return devices, err
}

func (d *DB) GetEIPByID(ctx context.Context, id uint) (domain.DeviceEIP, error) {
	var device domain.DeviceEIP
	err := d.gorm.WithContext(ctx).First(&device, id).Error
	return device, err
}

func (d *DB) ListTags(ctx context.Context, deviceID uint, enabledOnly bool) ([]domain.TagEIP, error) {
	var tags []domain.TagEIP
	q := d.gorm.WithContext(ctx).Where("device_id = ?", deviceID)
	if enabledOnly {
		q = q.Where("enabled = ?", true)
	}
	err := q.Find(&tags).Error
	return tags, err
}

func (d *DB) UpdateTagReading(ctx context.Context, tagID uint, value string, ts time.Time) error {
	var tag domain.TagEIP
	if err := d.gorm.WithContext(ctx).Select("device_id").First(&tag, tagID).Error; err != nil {
		return err
	}
	lock := d.lockFor("eip", tag.DeviceID)
	lock.Lock()
	defer lock.Unlock()

	return d.gorm.WithContext(ctx).Model(&domain.TagEIP{}).Where("id = ?", tagID).
		Updates(map[string]interface{}{"last_value": value, "last_read": ts}).Error
}
