package sqlite

import (
	"context"
	"time"

	"industrial-bridge/internal/domain"
)

func (d *DB) AppendSample(ctx context.Context, sourceType string, sourceID uint, name, value string, ts time.Time) error {
	return d.gorm.WithContext(ctx).Create(&domain.Sample{
		SourceType: sourceType,
		SourceID:   sourceID,
		SourceName: name,
		Value:      value,
		Timestamp:  ts,
	}).Error
}

// CleanupSamples deletes samples older than olderThan. Grounded on
// original_source's DataLoggingService.cleanup_old_logs(days=7); the
// caller (the orchestrator) runs this on a daily ticker.
func (d *DB) CleanupSamples(ctx context.Context, olderThan time.Time) (int64, error) {
	result := d.gorm.WithContext(ctx).Where("timestamp < ?", olderThan).Delete(&domain.Sample{})
	return result.RowsAffected, result.Error
}
