package querybuild

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ministore/docdb/docdb/encoder"
	"github.com/ministore/docdb/docdb/engine"
	"github.com/ministore/docdb/docdb/textutil"
)

// Prepared is an equation ready for the query parser. Bracketed values have
// been replaced by placeholder words that Restore turns back into value
// terms once the equation is parsed.
type Prepared struct {
	Text   string
	values []valueRef
}

type valueRef struct {
	placeholder string
	tokens      []string
	wildcard    bool
}

var (
	bracketRe = regexp.MustCompile(`\[([^\[\]]*)\](\*?)`)
	// "title : x", "title= x" and "title = x" become "title:x"
	qualifierRe = regexp.MustCompile(`(\pL[\pL\pN_]*)\s*[:=]\s*`)
	operators   = map[string]string{"et": "AND", "ou": "OR", "sauf": "NOT"}
)

func placeholder(i int) string { return "zzv" + strconv.Itoa(i) + "zz" }

// Preprocess runs the equation rewrites in order: acronym folding,
// bracketed value search, ligature folding, qualifier spacing and boolean
// operator translation outside quoted phrases.
func Preprocess(equation string) *Prepared {
	p := &Prepared{}

	s := textutil.FoldAcronyms(equation)

	s = bracketRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := bracketRe.FindStringSubmatch(m)
		body := strings.TrimSpace(sub[1])
		wildcard := sub[2] == "*"
		if strings.HasSuffix(body, "*") {
			wildcard = true
			body = strings.TrimSuffix(body, "*")
		}
		tokens := textutil.Tokenize(body)
		if len(tokens) == 0 {
			return " "
		}
		ref := valueRef{placeholder: placeholder(len(p.values)), tokens: tokens, wildcard: wildcard}
		p.values = append(p.values, ref)
		if wildcard {
			return ref.placeholder + "*"
		}
		return ref.placeholder
	})

	s = textutil.FoldLigatures(s)
	s = qualifierRe.ReplaceAllString(s, "$1:")
	s = translateOperators(s)
	p.Text = s
	return p
}

// translateOperators maps ET, OU and SAUF in any case to the parser
// keywords. Quoted phrases are left alone.
func translateOperators(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inQuote := false
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == '"' {
			inQuote = !inQuote
			b.WriteRune(r)
			i += size
			continue
		}
		if inQuote || !unicode.IsLetter(r) {
			b.WriteRune(r)
			i += size
			continue
		}
		j := i
		for j < len(s) {
			r2, n := utf8.DecodeRuneInString(s[j:])
			if !unicode.IsLetter(r2) && !unicode.IsDigit(r2) {
				break
			}
			j += n
		}
		word := s[i:j]
		if op, ok := operators[strings.ToLower(word)]; ok && standalone(s, i, j) {
			b.WriteString(op)
		} else {
			b.WriteString(word)
		}
		i = j
	}
	return b.String()
}

// standalone reports whether s[i:j] is surrounded by white space or the
// ends of s, so that "title:et" or "et*" stay words.
func standalone(s string, i, j int) bool {
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:i])
		if !unicode.IsSpace(r) && r != '(' {
			return false
		}
	}
	if j < len(s) {
		r, _ := utf8.DecodeRuneInString(s[j:])
		if !unicode.IsSpace(r) && r != ')' {
			return false
		}
	}
	return true
}

// Restore replaces the placeholder terms of q by the value terms they
// stand for.
func (p *Prepared) Restore(q *engine.Query) *engine.Query {
	if q == nil || len(p.values) == 0 {
		return q
	}
	return q.Rewrite(func(n *engine.Query) *engine.Query {
		if n.Op() != engine.OpTerm && n.Op() != engine.OpWildcard {
			return n
		}
		term := n.TermName()
		for _, v := range p.values {
			prefix, ok := strings.CutSuffix(term, v.placeholder)
			if !ok || (prefix != "" && !strings.HasSuffix(prefix, ":")) {
				continue
			}
			budget := encoder.MaxTermLength - len(prefix)
			if v.wildcard || n.Op() == engine.OpWildcard {
				return engine.Wildcard(prefix + encoder.ValueStem(v.tokens, budget))
			}
			return engine.TermWQF(prefix+encoder.ValueTerm(v.tokens, budget), n.WQF())
		}
		return n
	})
}
