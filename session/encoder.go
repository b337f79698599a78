package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrCorruptRecord is returned when a stored blob cannot be decoded.
var ErrCorruptRecord = errors.New("session record corrupt")

// Encoding: one schema-version byte followed by the JSON body. The version
// byte lets old records decode after field additions without guessing from
// the JSON shape.

func encodeRecord(rec *Record) ([]byte, error) {
	ver := rec.SchemaVersion
	if ver == 0 {
		ver = SchemaV2
	}
	if ver < SchemaV1 || ver > SchemaV2 {
		return nil, fmt.Errorf("%w: unknown schema version %d", ErrCorruptRecord, ver)
	}

	body := *rec
	if ver == SchemaV1 {
		// V1 predates the purchase-order id and the flight snapshot.
		body.PurchaseOrderID = ""
		body.EnabledFlights = nil
	}

	data, err := json.Marshal(&body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	out := make([]byte, 0, len(data)+1)
	out = append(out, byte(ver))
	out = append(out, data...)
	return out, nil
}

func decodeRecord(data []byte) (*Record, error) {
	if len(data) < 2 {
		return nil, ErrCorruptRecord
	}
	ver := int(data[0])
	if ver < SchemaV1 || ver > SchemaV2 {
		return nil, fmt.Errorf("%w: unknown schema version %d", ErrCorruptRecord, ver)
	}

	var rec Record
	if err := json.Unmarshal(data[1:], &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	rec.SchemaVersion = ver
	return &rec, nil
}

func encodeDerived(rec *DerivedRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return data, nil
}

func decodeDerived(data []byte) (*DerivedRecord, error) {
	var rec DerivedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return &rec, nil
}
