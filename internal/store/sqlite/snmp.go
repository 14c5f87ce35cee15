package sqlite

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"industrial-bridge/internal/domain"
)

func (d *DB) ListEnabledSNMP(ctx context.Context) ([]domain.DeviceSNMP, error) {
	var devices []domain.DeviceSNMP
	err := d.gorm.WithContext(ctx).Where("enabled = ?", true).Find(&devices).Error
	return devices, err
}

func (d *DB) GetSNMPByID(ctx context.Context, id uint) (domain.DeviceSNMP, error) {
	var device domain.DeviceSNMP
	err := d.gorm.WithContext(ctx).First(&device, id).Error
	return device, err
}

func (d *DB) ListObjects(ctx context.Context, deviceID uint, enabledOnly bool) ([]domain.ObjectSNMP, error) {
	var objects []domain.ObjectSNMP
	q := d.gorm.WithContext(ctx).Where("device_id = ?", deviceID)
	if enabledOnly {
		q = q.Where("enabled = ?", true)
	}
	err := q.Find(&objects).Error
	return objects, err
}

func (d *DB) UpdateObjectReading(ctx context.Context, objectID uint, value string, ts time.Time) error {
	var object domain.ObjectSNMP
	if err := d.gorm.WithContext(ctx).Select("device_id").First(&object, objectID).Error; err != nil {
		return err
	}
	lock := d.lockFor("snmp", object.DeviceID)
	lock.Lock()
	defer lock.Unlock()

	return d.gorm.WithContext(ctx).Model(&domain.ObjectSNMP{}).Where("id = ?", objectID).
		Updates(map[string]interface{}{"last_value": value, "last_read": ts}).Error
}

func (d *DB) FindSNMPObjectByName(ctx context.Context, deviceID uint, parameterName string) (domain.ObjectSNMP, error) {
	var object domain.ObjectSNMP
	err := d.gorm.WithContext(ctx).
		Where("device_id = ? AND name = ?", deviceID, parameterName).
		First(&object).Error
	if err == gorm.ErrRecordNotFound {
		return object, fmt.Errorf("no SNMP object named %q on device %d", parameterName, deviceID)
	}
	return object, err
}

func (d *DB) FindSNMPByHWID(ctx context.Context, hwid string) (domain.DeviceSNMP, error) {
	var device domain.DeviceSNMP
	err := d.gorm.WithContext(ctx).Where("hwid = ?", hwid).First(&device).Error
	if err == gorm.ErrRecordNotFound {
		return device, fmt.Errorf("no SNMP device with hwid %q", hwid)
	}
	return device, err
}
