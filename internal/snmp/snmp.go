// Package snmp implements the SNMP adapter: connect probe,
// GET-NEXT-based subtree walk, scalar get/set with type coercion, and
// writeByName dispatch for inbound MQTT commands.
package snmp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"industrial-bridge/internal/apperr"
	"industrial-bridge/internal/config"
	"industrial-bridge/internal/domain"
	"industrial-bridge/internal/store"
)

// Adapter is the contract-level SNMP adapter.
type Adapter struct {
	cfg   config.SNMPConfig
	store store.Store
}

func New(cfg config.SNMPConfig, st store.Store) *Adapter {
	return &Adapter{cfg: cfg, store: st}
}

func (a *Adapter) newClient(device domain.DeviceSNMP, timeout time.Duration, retries int) (*gosnmp.GoSNMP, error) {
	client := &gosnmp.GoSNMP{
		Target:    device.Host,
		Port:      uint16(device.Port),
		Community: device.Community,
		Timeout:   timeout,
		Retries:   retries,
	}
	switch device.Version {
	case domain.SNMPv1:
		client.Version = gosnmp.Version1
	case domain.SNMPv3:
		client.Version = gosnmp.Version3
		client.SecurityModel = gosnmp.UserSecurityModel
		client.MsgFlags = gosnmp.NoAuthNoPriv
	default:
		client.Version = gosnmp.Version2c
	}
	if err := client.Connect(); err != nil {
		return nil, apperr.New(apperr.EndpointDown, "snmp.connect", err)
	}
	return client, nil
}

const sysDescrOID = "1.3.6.1.2.1.1.1.0"

// Connect probes sysDescr with a short timeout/retry budget.
func (a *Adapter) Connect(ctx context.Context, device domain.DeviceSNMP) (bool, string, error) {
	client, err := a.newClient(device, a.cfg.ConnectTimeout, a.cfg.ConnectRetries)
	if err != nil {
		return false, err.Error(), err
	}
	defer client.Conn.Close()

	result, err := client.Get([]string{sysDescrOID})
	if err != nil {
		wrapped := apperr.New(apperr.EndpointDown, "snmp.connect", err)
		return false, wrapped.Error(), wrapped
	}
	if len(result.Variables) == 0 {
		return false, "empty sysDescr response", fmt.Errorf("empty sysDescr response")
	}
	return true, fmt.Sprintf("%v", result.Variables[0].Value), nil
}

// ObjectResult is one entry yielded by DiscoverObjects.
type ObjectResult struct {
	OID         string
	Name        string
	Value       string
	DataType    string
	Description string
	Access      string
	Status      string
}

// DiscoverObjects walks baseOID using GET-NEXT, stopping at the first
// OID escaping baseOID, 100 entries, or a 15s wall-clock cap —
// whichever comes first.
func (a *Adapter) DiscoverObjects(ctx context.Context, device domain.DeviceSNMP, baseOID string) ([]ObjectResult, error) {
	client, err := a.newClient(device, a.cfg.RequestTimeout, a.cfg.RequestRetries)
	if err != nil {
		return nil, err
	}
	defer client.Conn.Close()

	deadline := time.Now().Add(a.cfg.WalkCap)
	results := make([]ObjectResult, 0, a.cfg.WalkMaxEntries)
	current := baseOID

	for len(results) < a.cfg.WalkMaxEntries {
		if time.Now().After(deadline) {
			break
		}
		resp, err := client.GetNext([]string{current})
		if err != nil {
			break
		}
		if len(resp.Variables) == 0 {
			break
		}
		v := resp.Variables[0]
		oid := strings.TrimPrefix(v.Name, ".")
		if !strings.HasPrefix(oid, baseOID+".") {
			break
		}
		results = append(results, ObjectResult{
			OID:      oid,
			Name:     oid,
			Value:    fmt.Sprintf("%v", v.Value),
			DataType: pduTypeLabel(v.Type),
			Access:   "read-only",
			Status:   "current",
		})
		current = oid
	}
	return results, nil
}

// ReadOID returns the pretty-printed value of a single scalar object.
func (a *Adapter) ReadOID(ctx context.Context, device domain.DeviceSNMP, oid string) (string, error) {
	client, err := a.newClient(device, a.cfg.RequestTimeout, a.cfg.RequestRetries)
	if err != nil {
		return "", err
	}
	defer client.Conn.Close()

	result, err := client.Get([]string{oid})
	if err != nil {
		return "", apperr.New(apperr.TransientIO, "snmp.readOID", err)
	}
	if len(result.Variables) == 0 {
		return "", apperr.New(apperr.ProtocolError, "snmp.readOID", fmt.Errorf("no variable returned for %s", oid))
	}
	if b, ok := result.Variables[0].Value.([]byte); ok {
		return string(b), nil
	}
	return fmt.Sprintf("%v", result.Variables[0].Value), nil
}

// WriteOID coerces value into the ASN.1 variant dictated by dataType
// and issues an SNMP SET, bounded by an 8s overall cap.
func (a *Adapter) WriteOID(ctx context.Context, device domain.DeviceSNMP, oid, value, dataType string) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.WriteCap)
	defer cancel()

	pdu, err := coerce(oid, value, dataType)
	if err != nil {
		return apperr.New(apperr.TypeCoercion, "snmp.writeOID", err)
	}

	client, err := a.newClient(device, a.cfg.RequestTimeout, a.cfg.RequestRetries)
	if err != nil {
		return err
	}
	defer client.Conn.Close()

	done := make(chan error, 1)
	go func() {
		_, err := client.Set([]gosnmp.SnmpPDU{pdu})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return apperr.New(apperr.TransientIO, "snmp.writeOID", err)
		}
		return nil
	case <-ctx.Done():
		return apperr.New(apperr.TransientIO, "snmp.writeOID", ctx.Err())
	}
}

// WriteByName resolves the object by (device, parameterName), checks
// writability, delegates to WriteOID, then updates last value/time.
func (a *Adapter) WriteByName(ctx context.Context, deviceID uint, parameterName, value string) error {
	device, err := a.store.GetSNMPByID(ctx, deviceID)
	if err != nil {
		return apperr.New(apperr.ConfigMissing, "snmp.writeByName", err)
	}
	object, err := a.store.FindSNMPObjectByName(ctx, deviceID, parameterName)
	if err != nil {
		return apperr.New(apperr.ConfigMissing, "snmp.writeByName", err)
	}
	if !object.Writable() {
		return apperr.New(apperr.PermissionDenied, "snmp.writeByName",
			fmt.Errorf("object %q is not writable (access=%q)", parameterName, object.Access))
	}
	if err := a.WriteOID(ctx, device, object.OID, value, object.DataType); err != nil {
		return err
	}
	return a.store.UpdateObjectReading(ctx, object.ID, value, time.Now().UTC())
}

func pduTypeLabel(t gosnmp.Asn1BER) string {
	switch t {
	case gosnmp.Integer:
		return "INTEGER"
	case gosnmp.OctetString:
		return "STRING"
	case gosnmp.Counter32:
		return "COUNTER32"
	case gosnmp.Gauge32:
		return "GAUGE32"
	case gosnmp.Counter64:
		return "COUNTER64"
	case gosnmp.TimeTicks:
		return "TIMETICKS"
	case gosnmp.IPAddress:
		return "IPADDRESS"
	case gosnmp.ObjectIdentifier:
		return "OBJECTID"
	default:
		return "UNKNOWN"
	}
}
