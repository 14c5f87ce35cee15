package snmp

import (
	"context"
	"testing"
	"time"

	"industrial-bridge/internal/config"
	"industrial-bridge/internal/domain"
	"industrial-bridge/internal/store"
)

// fakeStore implements store.Store with just enough behavior for
// WriteByName's lookup/permission/update path; every other method
// panics if called, since these tests never exercise them.
type fakeStore struct {
	store.Store
	device        domain.DeviceSNMP
	object        domain.ObjectSNMP
	updatedValue  string
	updatedObject uint
}

func (f *fakeStore) GetSNMPByID(ctx context.Context, id uint) (domain.DeviceSNMP, error) {
	return f.device, nil
}

func (f *fakeStore) FindSNMPObjectByName(ctx context.Context, deviceID uint, name string) (domain.ObjectSNMP, error) {
	return f.object, nil
}

func (f *fakeStore) UpdateObjectReading(ctx context.Context, objectID uint, value string, ts time.Time) error {
	f.updatedObject = objectID
	f.updatedValue = value
	return nil
}

func TestWriteByNameRejectsReadOnlyObject(t *testing.T) {
	fs := &fakeStore{
		device: domain.DeviceSNMP{ID: 1, Host: "127.0.0.1", Port: 1, Community: "public", Version: domain.SNMPv2c},
		object: domain.ObjectSNMP{ID: 9, OID: "1.2.3", DataType: "STRING", Access: "read-only"},
	}
	adapter := New(config.SNMPConfig{RequestTimeout: 200 * time.Millisecond, RequestRetries: 0, WriteCap: time.Second}, fs)

	err := adapter.WriteByName(context.Background(), 1, "sysContact", "ops@x")
	if err == nil {
		t.Fatalf("expected permission-denied error for read-only object")
	}
	if fs.updatedValue != "" {
		t.Fatalf("store should not be updated when write is rejected")
	}
}
