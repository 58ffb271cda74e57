package vault

import (
	"encoding/json"
	"fmt"
)

// The wire form of a record is its JSON fields plus a "type" tag
// naming the variant. Encoding and decoding are written out per
// variant so the set stays closed: an unknown tag is an explicit
// decode error, never a silently skipped record.

func encodeRecord(r Record) (json.RawMessage, error) {
	var err error
	var data []byte
	switch v := r.(type) {
	case *EmailCredential:
		data, err = json.Marshal(struct {
			Type Kind `json:"type"`
			*EmailCredential
		}{KindEmail, v})
	case *PhoneCredential:
		data, err = json.Marshal(struct {
			Type Kind `json:"type"`
			*PhoneCredential
		}{KindPhone, v})
	case *CreditCard:
		data, err = json.Marshal(struct {
			Type Kind `json:"type"`
			*CreditCard
		}{KindCard, v})
	case *NoteEntry:
		data, err = json.Marshal(struct {
			Type Kind `json:"type"`
			*NoteEntry
		}{KindNote, v})
	case *EnvEntry:
		data, err = json.Marshal(struct {
			Type Kind `json:"type"`
			*EnvEntry
		}{KindEnv, v})
	case *RecoveryEntry:
		data, err = json.Marshal(struct {
			Type Kind `json:"type"`
			*RecoveryEntry
		}{KindRecovery, v})
	default:
		return nil, fmt.Errorf("vault: cannot encode record type %T", r)
	}
	if err != nil {
		return nil, fmt.Errorf("vault: failed to encode record: %w", err)
	}
	return data, nil
}

func decodeRecord(data json.RawMessage) (Record, error) {
	var tag struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("vault: failed to decode record tag: %w", err)
	}

	var r Record
	var err error
	switch tag.Type {
	case KindEmail:
		v := &EmailCredential{}
		err = json.Unmarshal(data, v)
		r = v
	case KindPhone:
		v := &PhoneCredential{}
		err = json.Unmarshal(data, v)
		r = v
	case KindCard:
		v := &CreditCard{}
		err = json.Unmarshal(data, v)
		r = v
	case KindNote:
		v := &NoteEntry{}
		err = json.Unmarshal(data, v)
		r = v
	case KindEnv:
		v := &EnvEntry{}
		err = json.Unmarshal(data, v)
		r = v
	case KindRecovery:
		v := &RecoveryEntry{}
		err = json.Unmarshal(data, v)
		r = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecordKind, tag.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("vault: failed to decode %s record: %w", tag.Type, err)
	}
	if r.Ref().ID == "" {
		return nil, fmt.Errorf("vault: record missing id")
	}
	return r, nil
}
