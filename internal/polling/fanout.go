package polling

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Reading is one data point's accumulated value for a single poll
// cycle, kept in insertion order (read order) since JSON object keys
// and CSV columns must both preserve it.
type Reading struct {
	Key   string
	Value string
}

// Readings accumulates one device's cycle output in read order.
type Readings []Reading

func (r *Readings) add(key, value string) {
	*r = append(*r, Reading{Key: key, Value: value})
}

const isoLayout = "2006-01-02T15:04:05.000000"

// BuildJSONPayload renders `{"HWID":"<id>","<key1>":<v1>,...,"Timestamp":"YYYY-MM-DDThh:mm:ss.ffffff"}`
// (UTC, no zone suffix).
func BuildJSONPayload(deviceIdentifier string, readings Readings, ts time.Time) []byte {
	var b strings.Builder
	b.WriteByte('{')
	fmt.Fprintf(&b, "%q:%q", "HWID", deviceIdentifier)
	for _, r := range readings {
		b.WriteByte(',')
		fmt.Fprintf(&b, "%q:%s", r.Key, jsonScalar(r.Value))
	}
	b.WriteByte(',')
	fmt.Fprintf(&b, "%q:%q", "Timestamp", ts.UTC().Format(isoLayout))
	b.WriteByte('}')
	return []byte(b.String())
}

// jsonScalar renders a reading's stringified value as a JSON number
// when it parses as one, else as a JSON string, matching the
// original's untyped readings dict serialization.
func jsonScalar(value string) string {
	if value == "" {
		return `""`
	}
	isNumeric := true
	seenDot := false
	for i, c := range value {
		if c == '-' && i == 0 {
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			continue
		}
		if c < '0' || c > '9' {
			isNumeric = false
			break
		}
	}
	if isNumeric && json.Valid([]byte(value)) {
		return value
	}
	return fmt.Sprintf("%q", value)
}

// BuildCSVPayload renders "<id>,<v1>,<v2>,...,<iso-ts>".
func BuildCSVPayload(deviceIdentifier string, readings Readings, ts time.Time) []byte {
	fields := make([]string, 0, len(readings)+2)
	fields = append(fields, deviceIdentifier)
	for _, r := range readings {
		fields = append(fields, r.Value)
	}
	fields = append(fields, ts.UTC().Format(isoLayout))
	return []byte(strings.Join(fields, ","))
}
