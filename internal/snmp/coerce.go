package snmp

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"
)

// coerce maps a dataType label to the ASN.1 variant gosnmp.Set
// expects, encoding value into it. Coercion failure (e.g. non-numeric
// into Integer32) is a non-retried error — callers must not retry a
// TypeCoercion failure.
//
// | dataType group                         | mapped variant |
// |-----------------------------------------|----------------|
// | INTEGER / INT / COUNTER32 / GAUGE32      | Integer32      |
// | STRING / OCTETSTRING / DISPLAYSTRING     | OctetString    |
// | COUNTER64                                | Counter64      |
// | UNSIGNED32                                | Unsigned32     |
// | IPADDRESS                                 | IpAddress      |
// | (anything else)                           | OctetString    |
func coerce(oid, value, dataType string) (gosnmp.SnmpPDU, error) {
	switch strings.ToUpper(dataType) {
	case "INTEGER", "INT", "COUNTER32", "GAUGE32":
		n, err := strconv.Atoi(value)
		if err != nil {
			return gosnmp.SnmpPDU{}, fmt.Errorf("coerce %q to Integer32: %w", value, err)
		}
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.Integer, Value: n}, nil

	case "STRING", "OCTETSTRING", "DISPLAYSTRING":
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.OctetString, Value: []byte(value)}, nil

	case "COUNTER64":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return gosnmp.SnmpPDU{}, fmt.Errorf("coerce %q to Counter64: %w", value, err)
		}
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.Counter64, Value: n}, nil

	case "UNSIGNED32":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return gosnmp.SnmpPDU{}, fmt.Errorf("coerce %q to Unsigned32: %w", value, err)
		}
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.Uinteger32, Value: uint32(n)}, nil

	case "IPADDRESS":
		ip := net.ParseIP(value)
		if ip == nil {
			return gosnmp.SnmpPDU{}, fmt.Errorf("coerce %q to IpAddress: not a valid IP", value)
		}
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.IPAddress, Value: ip.String()}, nil

	default:
		return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.OctetString, Value: []byte(value)}, nil
	}
}
