package schema

// FieldType is the storage type of a field.
type FieldType string

const (
	FieldInt        FieldType = "int"
	FieldAutoNumber FieldType = "autonumber"
	FieldBool       FieldType = "bool"
	FieldText       FieldType = "text"
)

// IndexType selects how the terms of an index or alias are combined when
// searched.
type IndexType string

const (
	IndexProbabilistic IndexType = "probabilistic"
	IndexBoolean       IndexType = "boolean"
)

type LookupType string

const LookupSimple LookupType = "simple"

type SortKeyType string

const (
	SortString SortKeyType = "string"
	SortNumber SortKeyType = "number"
)

// Field declares a stored field.
type Field struct {
	nodeBase
	ID               int       `prop:"_id"`
	Name             string    `prop:"name"`
	Type             FieldType `prop:"type,default=text"`
	Label            string    `prop:"label"`
	Description      string    `prop:"description,long"`
	DefaultStopwords bool      `prop:"defaultstopwords,default=true"`
	Stopwords        string    `prop:"stopwords,long"`
}

func (*Field) Kind() Kind { return KindField }

// Index declares a searchable index built from one or more fields.
type Index struct {
	nodeBase
	ID          int       `prop:"_id"`
	Name        string    `prop:"name"`
	Type        IndexType `prop:"type,default=probabilistic"`
	Label       string    `prop:"label"`
	Description string    `prop:"description,long"`
	Spelling    bool      `prop:"spelling"`
}

func (*Index) Kind() Kind { return KindIndex }

// Fields returns the fields of the index in declared order.
func (ix *Index) Fields() []*IndexField { return nodesOf[*IndexField](ix.children) }

// AddField appends an index field.
func (ix *Index) AddField(f *IndexField) error { return ix.children.Add(f) }

// IndexField says how one field feeds an index. Its _id is the field's id.
type IndexField struct {
	nodeBase
	ID      int    `prop:"_id"`
	Name    string `prop:"name"`
	Words   bool   `prop:"words"`
	Phrases bool   `prop:"phrases"`
	Values  bool   `prop:"values"`
	Count   bool   `prop:"count"`
	Start   string `prop:"start"`
	End     string `prop:"end"`
	Weight  int    `prop:"weight,default=1"`
}

func (*IndexField) Kind() Kind { return KindIndexField }

// Alias groups indices under one query name.
type Alias struct {
	nodeBase
	ID          int       `prop:"_id"`
	Name        string    `prop:"name"`
	Type        IndexType `prop:"type,default=probabilistic"`
	Label       string    `prop:"label"`
	Description string    `prop:"description,long"`
}

func (*Alias) Kind() Kind { return KindAlias }

func (a *Alias) Indices() []*AliasIndex { return nodesOf[*AliasIndex](a.children) }

func (a *Alias) AddIndex(ai *AliasIndex) error { return a.children.Add(ai) }

// AliasIndex references an index from an alias. Its _id is the index's id.
type AliasIndex struct {
	nodeBase
	ID   int    `prop:"_id"`
	Name string `prop:"name"`
}

func (*AliasIndex) Kind() Kind { return KindAliasIndex }

// LookupTable declares an auxiliary suggestion list.
type LookupTable struct {
	nodeBase
	ID          int        `prop:"_id"`
	Name        string     `prop:"name"`
	Type        LookupType `prop:"type,default=simple"`
	Label       string     `prop:"label"`
	Description string     `prop:"description,long"`
}

func (*LookupTable) Kind() Kind { return KindLookupTable }

func (t *LookupTable) Fields() []*LookupTableField { return nodesOf[*LookupTableField](t.children) }

func (t *LookupTable) AddField(f *LookupTableField) error { return t.children.Add(f) }

// LookupTableField feeds a lookup table from a field.
type LookupTableField struct {
	nodeBase
	ID         int    `prop:"_id"`
	Name       string `prop:"name"`
	StartValue int    `prop:"startvalue,default=1"`
	EndValue   int    `prop:"endvalue"`
	Start      string `prop:"start"`
	End        string `prop:"end"`
}

func (*LookupTableField) Kind() Kind { return KindLookupTableField }

// SortKey declares a value slot used to order results.
type SortKey struct {
	nodeBase
	ID          int         `prop:"_id"`
	Name        string      `prop:"name"`
	Type        SortKeyType `prop:"type,default=string"`
	Label       string      `prop:"label"`
	Description string      `prop:"description,long"`
}

func (*SortKey) Kind() Kind { return KindSortKey }

func (k *SortKey) Fields() []*SortKeyField { return nodesOf[*SortKeyField](k.children) }

func (k *SortKey) AddField(f *SortKeyField) error { return k.children.Add(f) }

// SortKeyField feeds a sort key from a field. The first non-empty field wins.
type SortKeyField struct {
	nodeBase
	ID     int    `prop:"_id"`
	Name   string `prop:"name"`
	Start  string `prop:"start"`
	End    string `prop:"end"`
	Length int    `prop:"length,default=100"`
}

func (*SortKeyField) Kind() Kind { return KindSortKeyField }

// NewField returns a detached field with default properties.
func NewField(name string, typ FieldType) *Field {
	f := newNode(KindField).(*Field)
	f.Name = name
	if typ != "" {
		f.Type = typ
	}
	return f
}

func NewIndex(name string) *Index {
	ix := newNode(KindIndex).(*Index)
	ix.Name = name
	return ix
}

func NewIndexField(name string) *IndexField {
	f := newNode(KindIndexField).(*IndexField)
	f.Name = name
	return f
}

func NewAlias(name string) *Alias {
	a := newNode(KindAlias).(*Alias)
	a.Name = name
	return a
}

func NewAliasIndex(name string) *AliasIndex {
	ai := newNode(KindAliasIndex).(*AliasIndex)
	ai.Name = name
	return ai
}

func NewLookupTable(name string) *LookupTable {
	t := newNode(KindLookupTable).(*LookupTable)
	t.Name = name
	return t
}

func NewLookupTableField(name string) *LookupTableField {
	f := newNode(KindLookupTableField).(*LookupTableField)
	f.Name = name
	return f
}

func NewSortKey(name string, typ SortKeyType) *SortKey {
	k := newNode(KindSortKey).(*SortKey)
	k.Name = name
	if typ != "" {
		k.Type = typ
	}
	return k
}

func NewSortKeyField(name string) *SortKeyField {
	f := newNode(KindSortKeyField).(*SortKeyField)
	f.Name = name
	return f
}
