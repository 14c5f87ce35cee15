// Package domain holds the persisted record shapes the config store
// exposes to the rest of the bridge: device/data-point definitions for
// both southbound protocols, MQTT broker records, and the append-only
// sample log.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// SNMPVersion is the community-based protocol version a DeviceSNMP
// speaks. v3 is accepted as a stored value but the SNMP adapter does
// not implement it (deferred per spec).
type SNMPVersion string

const (
	SNMPv1  SNMPVersion = "v1"
	SNMPv2c SNMPVersion = "v2c"
	SNMPv3  SNMPVersion = "v3"
)

// EIPBackend selects which CIP implementation an EIP device is served
// by. Selected process-wide at startup, not per device.
type EIPBackend string

const (
	EIPBackendPylogix EIPBackend = "PYLOGIX"
	EIPBackendCPPPO   EIPBackend = "CPPPO"
	EIPBackendMock    EIPBackend = "MOCK"
)

// PublishFormat controls how a DeviceMQTT's fan-out payload is encoded.
type PublishFormat string

const (
	PublishJSON   PublishFormat = "json"
	PublishString PublishFormat = "string"
)

// JSONMap is a generic string-keyed map persisted as a JSON column,
// reused anywhere a record needs a small, schemaless bag of values.
type JSONMap map[string]string

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = make(JSONMap)
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported type for JSONMap")
	}
	if len(data) == 0 {
		*m = make(JSONMap)
		return nil
	}
	return json.Unmarshal(data, m)
}

// DeviceEIP is a PLC reachable over EtherNet/IP.
type DeviceEIP struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	Name            string     `json:"name" gorm:"type:text"`
	Host            string     `json:"host" gorm:"not null;type:text"` // "ip:port"-style
	Slot            int        `json:"slot" gorm:"default:0"`
	TimeoutSeconds  float64    `json:"timeout_seconds" gorm:"default:5"`
	HWID            string     `json:"hwid" gorm:"type:text;index"`
	PollingInterval int        `json:"polling_interval" gorm:"default:1000"` // milliseconds
	Description     string     `json:"description" gorm:"type:text"`
	Enabled         bool       `json:"enabled" gorm:"default:true"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (DeviceEIP) TableName() string { return "ethernet_ip_config" }

// TagEIP is a polled tag belonging to a DeviceEIP.
type TagEIP struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	DeviceID    uint       `json:"device_id" gorm:"not null;index"`
	TagName     string     `json:"tag_name" gorm:"not null;type:text"`
	DataType    string     `json:"data_type" gorm:"type:text"`
	Description string     `json:"description" gorm:"type:text"`
	// PollRate is persisted but advisory only: the scheduler gates on
	// the parent device's PollingInterval, never on this field. See
	// Open Question (c).
	PollRate  int        `json:"poll_rate" gorm:"default:1000"`
	Enabled   bool       `json:"enabled" gorm:"default:true"`
	LastValue string     `json:"last_value" gorm:"type:text"`
	LastRead  *time.Time `json:"last_read"`
	CreatedAt time.Time  `json:"created_at"`
}

func (TagEIP) TableName() string { return "ethernet_ip_tags" }

// DeviceSNMP is a piece of network gear reachable over SNMP.
type DeviceSNMP struct {
	ID              uint        `json:"id" gorm:"primaryKey"`
	Name            string      `json:"name" gorm:"type:text"`
	Host            string      `json:"host" gorm:"not null;type:text"`
	Port            int         `json:"port" gorm:"default:161"`
	Community       string      `json:"community" gorm:"default:public"`
	Version         SNMPVersion `json:"version" gorm:"default:v2c;type:text"`
	HWID            string      `json:"hwid" gorm:"type:text;index"`
	PollingInterval int         `json:"polling_interval" gorm:"default:5000"` // milliseconds
	Enabled         bool        `json:"enabled" gorm:"default:true"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func (DeviceSNMP) TableName() string { return "snmp_config" }

// ObjectSNMP is a polled OID belonging to a DeviceSNMP.
type ObjectSNMP struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	DeviceID    uint       `json:"device_id" gorm:"not null;index"`
	OID         string     `json:"oid" gorm:"not null;type:text"`
	Name        string     `json:"name" gorm:"type:text"`
	Description string     `json:"description" gorm:"type:text"`
	DataType    string     `json:"data_type" gorm:"type:text"` // MIB syntax label
	Access      string     `json:"access" gorm:"type:text"`    // read-only | read-write | ...
	Status      string     `json:"status" gorm:"type:text"`
	// PollRate is persisted but advisory only, same caveat as TagEIP.
	PollRate  int        `json:"poll_rate" gorm:"default:5000"`
	Enabled   bool       `json:"enabled" gorm:"default:true"`
	LastValue string     `json:"last_value" gorm:"type:text"`
	LastRead  *time.Time `json:"last_read"`
	CreatedAt time.Time  `json:"created_at"`
}

func (ObjectSNMP) TableName() string { return "snmp_objects" }

// Writable reports whether the access string permits a set operation.
func (o ObjectSNMP) Writable() bool {
	return len(o.Access) >= 5 && (o.Access == "read-write" || o.Access == "write-only" || containsWrite(o.Access))
}

func containsWrite(access string) bool {
	for i := 0; i+5 <= len(access); i++ {
		if access[i:i+5] == "write" {
			return true
		}
	}
	return false
}

// DeviceMQTT is a broker the engine publishes to and optionally
// subscribes from.
type DeviceMQTT struct {
	ID              uint          `json:"id" gorm:"primaryKey"`
	Name            string        `json:"name" gorm:"type:text"`
	Broker          string        `json:"broker" gorm:"not null;type:text"`
	Port            int           `json:"port" gorm:"default:1883"`
	Username        string        `json:"username" gorm:"type:text"`
	Password        string        `json:"password" gorm:"type:text"`
	UseTLS          bool          `json:"use_tls" gorm:"default:false"`
	PublishTopic    string        `json:"publish_topic" gorm:"type:text"`
	SubscribeTopic  string        `json:"subscribe_topic" gorm:"type:text"`
	PublishFormat   PublishFormat `json:"publish_format" gorm:"default:json;type:text"`
	PublishInterval int           `json:"publish_interval" gorm:"default:0"` // advisory
	Enabled         bool          `json:"enabled" gorm:"default:true"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (DeviceMQTT) TableName() string { return "mqtt_config" }

// Sample is one append-only reading recorded for a data point.
type Sample struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	SourceType string    `json:"source_type" gorm:"not null;type:text;index:idx_source_time,priority:1"`
	SourceID   uint      `json:"source_id" gorm:"not null;index:idx_source_time,priority:2"`
	SourceName string    `json:"source_name" gorm:"type:text"`
	Value      string    `json:"value" gorm:"type:text"`
	Timestamp  time.Time `json:"timestamp" gorm:"index:idx_source_time,priority:3"`
}

func (Sample) TableName() string { return "data_log" }

const (
	SourceTypeEIP  = "ethernetip"
	SourceTypeSNMP = "snmp"
)

// TagMapping is a supplemental, non-core config record (not consulted
// by the polling engine or MQTT gateway): a per-data-point MQTT topic
// override plus an optional transform expression.
type TagMapping struct {
	ID                  uint      `json:"id" gorm:"primaryKey"`
	SourceType          string    `json:"source_type" gorm:"type:text"`
	SourceID             uint      `json:"source_id"`
	MQTTTopic           string    `json:"mqtt_topic" gorm:"type:text"`
	TransformExpression string    `json:"transform_expression" gorm:"type:text"`
	PublishOnChange     bool      `json:"publish_on_change" gorm:"default:true"`
	Enabled             bool      `json:"enabled" gorm:"default:true"`
	CreatedAt           time.Time `json:"created_at"`
}

func (TagMapping) TableName() string { return "tag_mapping" }

// MQTTSubscription is a supplemental, non-core config record naming an
// explicit subscription target; the gateway itself derives its
// subscribe topic from DeviceMQTT.SubscribeTopic and does not read
// this table.
type MQTTSubscription struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	MQTTConfigID uint      `json:"mqtt_config_id" gorm:"not null;index"`
	Topic        string    `json:"topic" gorm:"type:text"`
	TargetType   string    `json:"target_type" gorm:"type:text"`
	TargetID     uint      `json:"target_id"`
	Enabled      bool      `json:"enabled" gorm:"default:true"`
	CreatedAt    time.Time `json:"created_at"`
}

func (MQTTSubscription) TableName() string { return "mqtt_subscription" }
