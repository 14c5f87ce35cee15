// Package store defines the Config Store contract the core consumes:
// typed reads of device/data-point/broker records, last-value
// persistence, sample logging, and SNMP object lookup by name for
// inbound command dispatch. The HTTP admin UI, its CRUD handlers, and
// the relational schema's storage implementation are external
// collaborators — this package only defines and implements the
// narrow surface the runtime data plane actually calls.
package store

import (
	"context"
	"time"

	"industrial-bridge/internal/domain"
)

// Kind names a device family, used as the first element of a liveness
// key. Each family is listed through its own ListEnabledEIP/SNMP/MQTT
// method.
type Kind string

const (
	KindEIP  Kind = "eip"
	KindSNMP Kind = "snmp"
	KindMQTT Kind = "mqtt"
)

// Store is the interface every other component depends on. Reads are
// snapshot-consistent per call; updates are durable before returning.
// Implementations must be safe for many concurrent readers and
// occasional concurrent writers.
type Store interface {
	// ListEnabledEIP/SNMP/MQTT return enabled device records of the
	// given kind.
	ListEnabledEIP(ctx context.Context) ([]domain.DeviceEIP, error)
	ListEnabledSNMP(ctx context.Context) ([]domain.DeviceSNMP, error)
	ListEnabledMQTT(ctx context.Context) ([]domain.DeviceMQTT, error)

	GetEIPByID(ctx context.Context, id uint) (domain.DeviceEIP, error)
	GetSNMPByID(ctx context.Context, id uint) (domain.DeviceSNMP, error)
	GetMQTTByID(ctx context.Context, id uint) (domain.DeviceMQTT, error)

	// ListTags/ListObjects return a device's child data points.
	ListTags(ctx context.Context, deviceID uint, enabledOnly bool) ([]domain.TagEIP, error)
	ListObjects(ctx context.Context, deviceID uint, enabledOnly bool) ([]domain.ObjectSNMP, error)

	// UpdateTagReading/UpdateObjectReading persist a data point's last
	// observed value and timestamp. Calls for the same device are
	// serialized internally (Open Question a).
	UpdateTagReading(ctx context.Context, tagID uint, value string, ts time.Time) error
	UpdateObjectReading(ctx context.Context, objectID uint, value string, ts time.Time) error

	// AppendSample records one append-only reading.
	AppendSample(ctx context.Context, sourceType string, sourceID uint, name, value string, ts time.Time) error

	// FindSNMPObjectByName looks up the object an inbound command names,
	// whatever its access; the caller checks writability.
	FindSNMPObjectByName(ctx context.Context, deviceID uint, parameterName string) (domain.ObjectSNMP, error)

	// FindSNMPByHWID resolves the device addressed by an inbound
	// command's hwid (topic tail or payload field).
	FindSNMPByHWID(ctx context.Context, hwid string) (domain.DeviceSNMP, error)

	// CleanupSamples deletes samples older than olderThan, returning
	// the number removed. Supplemental retention sweep.
	CleanupSamples(ctx context.Context, olderThan time.Time) (int64, error)

	Close() error
}
