package schema

import (
	"bytes"
	"reflect"

	"github.com/klauspost/compress/zstd"
	"github.com/ugorji/go/codec"

	"github.com/ministore/docdb/docdb/errs"
)

var binaryMagic = []byte("DDBS\x01")

var (
	msgpack     codec.MsgpackHandle
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	msgpack.WriteExt = true
	msgpack.MapType = reflect.TypeOf(map[string]any(nil))

	var err error
	if zstdEncoder, err = zstd.NewWriter(nil); err != nil {
		panic(err)
	}
	if zstdDecoder, err = zstd.NewReader(nil); err != nil {
		panic(err)
	}
}

// MarshalBinary returns the compact snapshot of the schema: the node tree in
// msgpack, zstd compressed, behind a magic prefix.
func MarshalBinary(s *Schema) ([]byte, error) {
	var raw []byte
	if err := codec.NewEncoderBytes(&raw, &msgpack).Encode(toTree(s)); err != nil {
		return nil, errs.Wrap(errs.ErrSchemaFormat, "encode snapshot", err)
	}
	out := make([]byte, 0, len(binaryMagic)+len(raw)/2)
	out = append(out, binaryMagic...)
	return zstdEncoder.EncodeAll(raw, out), nil
}

// UnmarshalBinary decodes a snapshot written by MarshalBinary.
func UnmarshalBinary(data []byte) (*Schema, error) {
	if !bytes.HasPrefix(data, binaryMagic) {
		return nil, errs.New(errs.ErrSchemaFormat, "not a schema snapshot")
	}
	raw, err := zstdDecoder.DecodeAll(data[len(binaryMagic):], nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrSchemaFormat, "decompress snapshot", err)
	}
	var tree map[string]any
	if err := codec.NewDecoderBytes(raw, &msgpack).Decode(&tree); err != nil {
		return nil, errs.Wrap(errs.ErrSchemaFormat, "decode snapshot", err)
	}
	return schemaFromTree(tree)
}
