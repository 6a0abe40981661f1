package schema

// FormatVersion is the schema format written by this package.
const FormatVersion = 2

// Schema is the root of the tree. It owns the five top-level collections.
type Schema struct {
	nodeBase
	Label          string `prop:"label"`
	Description    string `prop:"description,long"`
	Stopwords      string `prop:"stopwords,long"`
	IndexStopwords bool   `prop:"indexstopwords"`
	Creation       string `prop:"creation"`
	LastUpdate     string `prop:"lastupdate"`
	Version        int    `prop:"version,default=2"`
	DocID          string `prop:"docid"`

	LastFieldID       int `prop:"lastid.field"`
	LastIndexID       int `prop:"lastid.index"`
	LastAliasID       int `prop:"lastid.alias"`
	LastLookupTableID int `prop:"lastid.lookuptable"`
	LastSortKeyID     int `prop:"lastid.sortkey"`

	Fields       *Collection
	Indices      *Collection
	Aliases      *Collection
	LookupTables *Collection
	SortKeys     *Collection

	compiled bool
}

func (*Schema) Kind() Kind { return KindSchema }

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	s := &Schema{}
	applyDefaults(s)
	s.Fields = s.newTop(KindFields)
	s.Indices = s.newTop(KindIndices)
	s.Aliases = s.newTop(KindAliases)
	s.LookupTables = s.newTop(KindLookupTables)
	s.SortKeys = s.newTop(KindSortKeys)
	return s
}

func (s *Schema) newTop(kind Kind) *Collection {
	c := newCollection(kind)
	c.parent = s
	return c
}

// Collections returns the top-level collections in serialization order.
func (s *Schema) Collections() []*Collection {
	return []*Collection{s.Fields, s.Indices, s.Aliases, s.LookupTables, s.SortKeys}
}

// Collection returns the top-level collection of the given kind.
func (s *Schema) Collection(kind Kind) *Collection {
	for _, c := range s.Collections() {
		if c.kind == kind {
			return c
		}
	}
	return nil
}

// Compiled reports whether the schema was compiled since its last mutation.
func (s *Schema) Compiled() bool { return s.compiled }

func (s *Schema) AddField(f *Field) error             { return s.Fields.Add(f) }
func (s *Schema) AddIndex(ix *Index) error            { return s.Indices.Add(ix) }
func (s *Schema) AddAlias(a *Alias) error             { return s.Aliases.Add(a) }
func (s *Schema) AddLookupTable(t *LookupTable) error { return s.LookupTables.Add(t) }
func (s *Schema) AddSortKey(k *SortKey) error         { return s.SortKeys.Add(k) }

func (s *Schema) AllFields() []*Field             { return nodesOf[*Field](s.Fields) }
func (s *Schema) AllIndices() []*Index            { return nodesOf[*Index](s.Indices) }
func (s *Schema) AllAliases() []*Alias            { return nodesOf[*Alias](s.Aliases) }
func (s *Schema) AllLookupTables() []*LookupTable { return nodesOf[*LookupTable](s.LookupTables) }
func (s *Schema) AllSortKeys() []*SortKey         { return nodesOf[*SortKey](s.SortKeys) }

func (s *Schema) Field(name string) *Field {
	f, _ := s.Fields.Get(name).(*Field)
	return f
}

func (s *Schema) Index(name string) *Index {
	ix, _ := s.Indices.Get(name).(*Index)
	return ix
}

func (s *Schema) Alias(name string) *Alias {
	a, _ := s.Aliases.Get(name).(*Alias)
	return a
}

func (s *Schema) LookupTable(name string) *LookupTable {
	t, _ := s.LookupTables.Get(name).(*LookupTable)
	return t
}

func (s *Schema) SortKey(name string) *SortKey {
	k, _ := s.SortKeys.Get(name).(*SortKey)
	return k
}

func (s *Schema) FieldByID(id int) *Field             { return byID[*Field](s.Fields, id) }
func (s *Schema) IndexByID(id int) *Index             { return byID[*Index](s.Indices, id) }
func (s *Schema) AliasByID(id int) *Alias             { return byID[*Alias](s.Aliases, id) }
func (s *Schema) LookupTableByID(id int) *LookupTable { return byID[*LookupTable](s.LookupTables, id) }
func (s *Schema) SortKeyByID(id int) *SortKey         { return byID[*SortKey](s.SortKeys, id) }

func byID[T Node](c *Collection, id int) T {
	var zero T
	if id == 0 {
		return zero
	}
	for _, n := range c.order {
		if IDOf(n) == id {
			if t, ok := n.(T); ok {
				return t
			}
		}
	}
	return zero
}

// StopwordsFor returns the stopwords applying to a field: the field's own
// list, plus the schema list when the field uses default stopwords.
func (s *Schema) StopwordsFor(f *Field) string {
	if f.DefaultStopwords {
		if f.Stopwords == "" {
			return s.Stopwords
		}
		return s.Stopwords + " " + f.Stopwords
	}
	return f.Stopwords
}

// Clone returns a deep copy of s. It fails only when direct field
// assignments left duplicate sibling names behind.
func (s *Schema) Clone() (*Schema, error) {
	c, err := fromTree(toTree(s))
	if err != nil {
		return nil, err
	}
	out := c.(*Schema)
	out.compiled = s.compiled
	return out, nil
}
