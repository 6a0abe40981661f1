package record

import (
	"fmt"
	"reflect"

	"github.com/klauspost/compress/zstd"
	"github.com/ugorji/go/codec"

	"github.com/ministore/docdb/docdb/errs"
	"github.com/ministore/docdb/docdb/schema"
)

// Blob format tags.
const (
	blobPlain byte = 1
	blobZstd  byte = 2
)

// CompressThreshold is the encoded size above which blobs are compressed.
const CompressThreshold = 512

var (
	msgpack     codec.MsgpackHandle
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	msgpack.WriteExt = true
	msgpack.Canonical = true
	msgpack.MapType = reflect.TypeOf(map[string]any(nil))

	var err error
	if zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault)); err != nil {
		panic(err)
	}
	if zstdDecoder, err = zstd.NewReader(nil); err != nil {
		panic(err)
	}
}

// spellingsKey holds the spelling dictionary words of a blob. Field ids
// start at 1.
const spellingsKey = -1

// Encode serializes the non-empty fields of r keyed by field id. A field
// holding one value is stored as a scalar. Values of fields the schema no
// longer declares are dropped.
func Encode(r *Record) ([]byte, error) {
	return encode(r, nil)
}

// EncodeWithSpellings is Encode recording the words r added to the
// spelling dictionary, so that they can be taken out whatever the schema
// says when the record is replaced.
func EncodeWithSpellings(r *Record, spellings []string) ([]byte, error) {
	if spellings == nil {
		spellings = []string{}
	}
	return encode(r, spellings)
}

func encode(r *Record, spellings []string) ([]byte, error) {
	payload := make(map[int]any, len(r.values)+1)
	for id, values := range r.values {
		if len(values) == 0 || r.schema.FieldByID(id) == nil {
			continue
		}
		if len(values) == 1 {
			payload[id] = values[0]
		} else {
			payload[id] = values
		}
	}
	if spellings != nil {
		payload[spellingsKey] = spellings
	}

	var raw []byte
	if err := codec.NewEncoderBytes(&raw, &msgpack).Encode(payload); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	if len(raw) <= CompressThreshold {
		return append([]byte{blobPlain}, raw...), nil
	}
	return zstdEncoder.EncodeAll(raw, []byte{blobZstd}), nil
}

func decodePayload(blob []byte) (map[int]any, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	raw := blob[1:]
	switch blob[0] {
	case blobPlain:
	case blobZstd:
		var err error
		if raw, err = zstdDecoder.DecodeAll(raw, nil); err != nil {
			return nil, errs.Wrap(errs.ErrCorruptMetadata, "decompress record", err)
		}
	default:
		return nil, errs.Newf(errs.ErrCorruptMetadata, "unknown record format %d", blob[0])
	}

	var payload map[int]any
	if err := codec.NewDecoderBytes(raw, &msgpack).Decode(&payload); err != nil {
		return nil, errs.Wrap(errs.ErrCorruptMetadata, "decode record", err)
	}
	return payload, nil
}

// Decode rebuilds a record from a blob written by Encode. Values are
// converted to the current type of their field; values of unknown fields
// are kept as decoded.
func Decode(s *schema.Schema, blob []byte) (*Record, error) {
	payload, err := decodePayload(blob)
	if err != nil {
		return nil, err
	}
	r := New(s)
	for id, v := range payload {
		if id == spellingsKey {
			continue
		}
		f := s.FieldByID(id)
		if f == nil {
			r.values[id] = flatten(v)
			continue
		}
		values, err := Convert(f, flatten(v))
		if err != nil {
			// the field changed type since the record was written
			values = nil
		}
		r.SetValues(id, values)
	}
	return r, nil
}

// Spellings returns the spelling dictionary words recorded in a blob by
// EncodeWithSpellings. ok is false for blobs written without them.
func Spellings(blob []byte) (words []string, ok bool, err error) {
	payload, err := decodePayload(blob)
	if err != nil {
		return nil, false, err
	}
	v, ok := payload[spellingsKey]
	if !ok {
		return nil, false, nil
	}
	for _, w := range flatten(v) {
		switch w := w.(type) {
		case string:
			words = append(words, w)
		case []byte:
			words = append(words, string(w))
		case nil:
		default:
			return nil, false, errs.Newf(errs.ErrCorruptMetadata, "spelling word of type %T", w)
		}
	}
	return words, true, nil
}

func flatten(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}
