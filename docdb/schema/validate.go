package schema

import (
	"fmt"
	"strings"

	"github.com/ministore/docdb/docdb/errs"
	"github.com/ministore/docdb/docdb/textutil"
)

// Validate checks the schema without modifying it. It returns nil for a
// clean schema and errs.ValidationIssues otherwise; callers decide what to
// do with warnings, and HasErrors tells whether a structural rule is broken.
func (s *Schema) Validate() error {
	v := &validator{s: s}

	for _, c := range s.Collections() {
		v.names(c, c.kind.String())
		for _, n := range c.order {
			if ch := n.base().children; ch != nil {
				v.names(ch, c.kind.String()+"/"+NameOf(n))
			}
		}
	}

	for _, f := range s.AllFields() {
		if _, ok := fieldTypes[strings.ToLower(strings.TrimSpace(string(f.Type)))]; !ok {
			v.add(errs.SeverityError, path("fields", f.Name), "invalid field type %q", f.Type)
		}
	}
	v.unusedFields()

	for _, ix := range s.AllIndices() {
		p := path("indices", ix.Name)
		typ, ok := indexTypes[strings.ToLower(strings.TrimSpace(string(ix.Type)))]
		if !ok {
			v.add(errs.SeverityError, p, "invalid index type %q", ix.Type)
		}
		if len(ix.Fields()) == 0 {
			v.add(errs.SeverityWarning, p, "index has no fields")
		}
		if ix.Spelling && typ == IndexBoolean {
			v.add(errs.SeverityInfo, p, "spelling is ignored on a boolean index")
		}
		for _, f := range ix.Fields() {
			fp := p + "/" + f.Name
			v.ref(fp, f.Name, f.ID, s.Fields)
			if !f.Words && !f.Phrases && !f.Values && !f.Count {
				v.add(errs.SeverityWarning, fp, "field is indexed with no mode (words, phrases, values or count)")
			}
			if f.Weight < 1 {
				v.add(errs.SeverityError, fp, "weight must be at least 1, got %d", f.Weight)
			}
			v.bounds(fp, f.Start, f.End)
		}
	}

	for _, a := range s.AllAliases() {
		p := path("aliases", a.Name)
		if _, ok := indexTypes[strings.ToLower(strings.TrimSpace(string(a.Type)))]; !ok {
			v.add(errs.SeverityError, p, "invalid alias type %q", a.Type)
		}
		if len(a.Indices()) == 0 {
			v.add(errs.SeverityWarning, p, "alias has no indices")
		}
		types := map[IndexType]bool{}
		for _, ai := range a.Indices() {
			target := v.ref(p+"/"+ai.Name, ai.Name, ai.ID, s.Indices)
			if ix, ok := target.(*Index); ok {
				types[indexTypes[strings.ToLower(string(ix.Type))]] = true
			}
		}
		if len(types) > 1 {
			v.add(errs.SeverityWarning, p, "alias mixes probabilistic and boolean indices")
		}
	}

	for _, t := range s.AllLookupTables() {
		p := path("lookuptables", t.Name)
		switch LookupType(strings.ToLower(strings.TrimSpace(string(t.Type)))) {
		case "", LookupSimple:
		default:
			v.add(errs.SeverityError, p, "invalid lookup table type %q", t.Type)
		}
		if len(t.Fields()) == 0 {
			v.add(errs.SeverityWarning, p, "lookup table has no fields")
		}
		for _, f := range t.Fields() {
			fp := p + "/" + f.Name
			v.ref(fp, f.Name, f.ID, s.Fields)
			if !textutil.ValidRange(textutil.Bound{Pos: f.StartValue}, textutil.Bound{Pos: f.EndValue}) {
				v.add(errs.SeverityError, fp, "startvalue %d is after endvalue %d", f.StartValue, f.EndValue)
			}
			v.bounds(fp, f.Start, f.End)
		}
	}

	for _, k := range s.AllSortKeys() {
		p := path("sortkeys", k.Name)
		switch SortKeyType(strings.ToLower(strings.TrimSpace(string(k.Type)))) {
		case "", SortString, SortNumber:
		default:
			v.add(errs.SeverityError, p, "invalid sort key type %q", k.Type)
		}
		if len(k.Fields()) == 0 {
			v.add(errs.SeverityWarning, p, "sort key has no fields")
		}
		for _, f := range k.Fields() {
			fp := p + "/" + f.Name
			v.ref(fp, f.Name, f.ID, s.Fields)
			v.bounds(fp, f.Start, f.End)
			if f.Length < 1 {
				v.add(errs.SeverityError, fp, "length must be at least 1, got %d", f.Length)
			}
		}
	}

	if len(v.issues) == 0 {
		return nil
	}
	return v.issues
}

type validator struct {
	s      *Schema
	issues errs.ValidationIssues
}

func (v *validator) add(sev errs.Severity, p, format string, args ...any) {
	v.issues = append(v.issues, errs.ValidationIssue{Severity: sev, Path: p, Message: fmt.Sprintf(format, args...)})
}

// names checks the naming rules of the members of one collection.
func (v *validator) names(c *Collection, prefix string) {
	seen := map[string]string{}
	for i, n := range c.order {
		name := NameOf(n)
		p := prefix + "/" + name
		switch {
		case strings.TrimSpace(name) == "":
			v.add(errs.SeverityError, fmt.Sprintf("%s#%d", prefix, i+1), "%s has an empty name", n.Kind())
			continue
		case strings.ContainsAny(name, " \t\r\n"):
			v.add(errs.SeverityError, p, "name %q contains white space", name)
		}
		key := textutil.NormalizeName(name)
		if key == "" {
			v.add(errs.SeverityError, p, "name %q has no letter or digit", name)
			continue
		}
		if other, dup := seen[key]; dup {
			v.add(errs.SeverityError, p, "name %q duplicates %q", name, other)
			continue
		}
		seen[key] = name
	}
}

// ref resolves a reference by name, then by recorded id.
func (v *validator) ref(p, name string, id int, targets *Collection) Node {
	if target := targets.Get(name); target != nil {
		return target
	}
	if id != 0 {
		for _, target := range targets.order {
			if IDOf(target) == id {
				return target
			}
		}
	}
	v.add(errs.SeverityError, p, "unknown %s %q", targets.accepts, name)
	return nil
}

func (v *validator) bounds(p, start, end string) {
	if !textutil.ValidRange(textutil.ParseBound(start), textutil.ParseBound(end)) {
		v.add(errs.SeverityError, p, "start %s is after end %s", start, end)
	}
}

// unusedFields warns about fields that feed no index, lookup table or sort key.
func (v *validator) unusedFields() {
	used := map[string]bool{}
	mark := func(name string, id int) {
		if f := v.s.Field(name); f != nil {
			used[KeyOf(f)] = true
		} else if f := v.s.FieldByID(id); f != nil {
			used[KeyOf(f)] = true
		}
	}
	for _, ix := range v.s.AllIndices() {
		for _, f := range ix.Fields() {
			mark(f.Name, f.ID)
		}
	}
	for _, t := range v.s.AllLookupTables() {
		for _, f := range t.Fields() {
			mark(f.Name, f.ID)
		}
	}
	for _, k := range v.s.AllSortKeys() {
		for _, f := range k.Fields() {
			mark(f.Name, f.ID)
		}
	}
	for _, f := range v.s.AllFields() {
		if f.Name != "" && !used[KeyOf(f)] {
			v.add(errs.SeverityWarning, path("fields", f.Name), "field is not indexed")
		}
	}
}

func path(parts ...string) string { return strings.Join(parts, "/") }
