package schema

import (
	"encoding/json"

	"github.com/ministore/docdb/docdb/errs"
)

// ToJSON encodes the schema as one object per node, with a "_nodetype"
// discriminator and a "children" array. Default values are omitted.
func ToJSON(s *Schema) ([]byte, error) {
	data, err := json.MarshalIndent(toTree(s), "", "  ")
	if err != nil {
		return nil, errs.Wrap(errs.ErrSchemaFormat, "encode json", err)
	}
	return data, nil
}

// FromJSON decodes a schema written by ToJSON. The result is not compiled.
func FromJSON(data []byte) (*Schema, error) {
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, errs.Wrap(errs.ErrSchemaFormat, "decode json", err)
	}
	return schemaFromTree(tree)
}

func schemaFromTree(tree map[string]any) (*Schema, error) {
	n, err := fromTree(tree)
	if err != nil {
		return nil, err
	}
	s, ok := n.(*Schema)
	if !ok {
		return nil, errs.Newf(errs.ErrSchemaFormat, "root node is a %s, not a schema", n.Kind())
	}
	return s, nil
}
