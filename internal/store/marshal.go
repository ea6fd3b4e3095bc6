package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/opcon/internal/ir"
	"github.com/roach88/opcon/internal/schedule"
)

// marshalArgs converts positional arguments to canonical JSON TEXT.
// A nil tuple is stored as "[]".
func marshalArgs(args ir.IRArray) (string, error) {
	data, err := ir.MarshalCanonical(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// marshalKwargs converts keyword arguments to canonical JSON TEXT.
// A nil mapping is stored as "{}".
func marshalKwargs(kwargs ir.IRObject) (string, error) {
	data, err := ir.MarshalCanonical(kwargs)
	if err != nil {
		return "", fmt.Errorf("marshal kwargs: %w", err)
	}
	return string(data), nil
}

// marshalData converts a memo payload to canonical JSON, or NULL when absent.
func marshalData(v ir.IRValue) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal memo data: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalArgs parses canonical JSON TEXT to IRArray. The empty tuple
// comes back as nil, matching events built without arguments.
func unmarshalArgs(data string) (ir.IRArray, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var arr ir.IRArray
	if err := json.Unmarshal([]byte(data), &arr); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return arr, nil
}

// unmarshalKwargs parses canonical JSON TEXT to IRObject. Uses
// ir.IRObject.UnmarshalJSON, which keeps integers beyond 2^53 exact.
func unmarshalKwargs(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal kwargs: %w", err)
	}
	return obj, nil
}

func unmarshalData(data sql.NullString) (ir.IRValue, error) {
	if !data.Valid {
		return nil, nil
	}
	v, err := ir.UnmarshalIRValue([]byte(data.String))
	if err != nil {
		return nil, fmt.Errorf("unmarshal memo data: %w", err)
	}
	return v, nil
}

// marshalBlame stores blame labels as a JSON array.
// Uses json.Encoder with HTML escaping disabled so labels stay readable.
func marshalBlame(labels []string) (string, error) {
	if labels == nil {
		labels = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(labels); err != nil {
		return "", fmt.Errorf("marshal blame: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalBlame(data string) ([]string, error) {
	var labels []string
	if data == "" || data == "[]" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(data), &labels); err != nil {
		return nil, fmt.Errorf("unmarshal blame: %w", err)
	}
	return labels, nil
}

// recordValue is the canonical IR form of one record, used for hashing.
func recordValue(r schedule.Record) ir.IRObject {
	obj := ir.IRObject{
		"at":        ir.IRInt(r.At.UnixNano()),
		"seq":       ir.IRInt(r.Seq),
		"kind":      ir.IRString(r.Kind.String()),
		"parent_id": ir.IRString(r.ParentID),
		"method":    ir.IRString(r.Method),
		"args":      r.Args,
		"kwargs":    r.Kwargs,
		"tag":       ir.IRString(r.Tag),
	}
	if r.Data != nil {
		obj["data"] = r.Data
	}
	return obj
}

// scheduleHash is the content hash of an ordered record list.
func scheduleHash(records []schedule.Record) (string, error) {
	arr := make(ir.IRArray, len(records))
	for i, r := range records {
		arr[i] = recordValue(r)
	}
	return ir.Hash(ir.DomainSchedule, arr)
}
