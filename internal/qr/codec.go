// Package qr decodes and encodes the payload printed in patient QR codes.
//
// A payload is a small JSON object such as
//
//	{"patientId":"P100","type":"wristband"}
//
// Anything that is not such an object is still a valid tag: the whole raw
// string is taken as the patient identifier and the tag type is "other".
package qr

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// TagType is the semantic type of a scanned tag.
type TagType string

const (
	TypeWristband TagType = "wristband"
	TypeOther     TagType = "other"
)

// Payload is the decoded view of a raw tag.
type Payload struct {
	PatientID string `json:"patientId"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Decode extracts the payload from a raw tag. It never fails: input that is not
// a JSON object carrying a patientId degrades to {PatientID: raw, Type: "other"}.
func Decode(raw string) Payload {
	fallback := Payload{PatientID: raw, Type: string(TypeOther)}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
		return fallback
	}

	patientID, ok := scalarString(fields["patientId"])
	if !ok || patientID == "" {
		return fallback
	}

	p := Payload{PatientID: patientID, Type: string(TypeOther)}
	if t, ok := fields["type"].(string); ok && t != "" {
		p.Type = t
	}
	if ts, ok := scalarString(fields["timestamp"]); ok {
		p.Timestamp = ts
	}
	return p
}

// Encode renders p as the JSON text printed into a QR code.
func Encode(p Payload) string {
	if p.Type == "" {
		p.Type = string(TypeOther)
	}
	b, err := json.Marshal(p)
	if err != nil {
		// Payload holds only strings.
		panic(fmt.Sprintf("qr: encode payload: %v", err))
	}
	return string(b)
}

// Classify returns the tag type of a raw tag.
func Classify(raw string) TagType {
	return Decode(raw).TagType()
}

// TagType maps the free-form type field onto the two classes the scan
// pipeline distinguishes.
func (p Payload) TagType() TagType {
	if p.Type == string(TypeWristband) {
		return TypeWristband
	}
	return TypeOther
}

// WristbandTag is the canonical tag printed on a patient's wristband. Scan
// lookups reconstruct it to find wristband scans for a patient.
func WristbandTag(patientID string) string {
	return Encode(Payload{PatientID: patientID, Type: string(TypeWristband)})
}

// ParseTagType validates an explicit tag type. The empty string is accepted and
// means "decide from the tag".
func ParseTagType(s string) (TagType, error) {
	switch TagType(s) {
	case "", TypeWristband, TypeOther:
		return TagType(s), nil
	}
	return "", fmt.Errorf("unknown tag type %q", s)
}

func scalarString(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	}
	return "", false
}
