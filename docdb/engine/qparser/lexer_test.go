package qparser

import (
	"errors"
	"testing"
)

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func sameKinds(a, b []TokenKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLexSimple(t *testing.T) {
	tokens, err := Lex("title:test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Tokens: Field("title"), Word("test"), EOF
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens (including EOF), got %d: %v", len(tokens), tokens)
	}
	if tokens[0].Kind != TokField || tokens[0].Value != "title" {
		t.Errorf("expected Field(title), got %v", tokens[0])
	}
	if tokens[1].Kind != TokWord || tokens[1].Value != "test" {
		t.Errorf("expected Word(test), got %v", tokens[1])
	}
	if tokens[1].Pos != 6 || tokens[1].End != 10 {
		t.Errorf("expected span 6..10, got %d..%d", tokens[1].Pos, tokens[1].End)
	}
	if tokens[2].Kind != TokEOF {
		t.Errorf("expected EOF, got %v", tokens[2])
	}
}

func TestLexOperators(t *testing.T) {
	tokens, err := Lex("cat AND (dog OR NOT bird) and")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []TokenKind{TokWord, TokAnd, TokLParen, TokWord, TokOr, TokNot, TokWord, TokRParen, TokWord, TokEOF}
	if !sameKinds(kinds(tokens), want) {
		t.Fatalf("expected %v, got %v", want, kinds(tokens))
	}
	// keywords are upper case only
	if tokens[8].Value != "and" {
		t.Errorf("expected Word(and), got %v", tokens[8])
	}
}

func TestLexSigns(t *testing.T) {
	tokens, err := Lex(`+love -hate e-mail - +"a b"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []TokenKind{TokPlus, TokWord, TokMinus, TokWord, TokWord, TokPlus, TokPhrase, TokEOF}
	if !sameKinds(kinds(tokens), want) {
		t.Fatalf("expected %v, got %v", want, kinds(tokens))
	}
	if tokens[4].Value != "e-mail" {
		t.Errorf("expected Word(e-mail), got %v", tokens[4])
	}
}

func TestLexPhrase(t *testing.T) {
	tokens, err := Lex(`title:"hello \"big\" world"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens[1].Kind != TokPhrase || tokens[1].Value != `hello "big" world` {
		t.Errorf("expected Phrase, got %v", tokens[1])
	}
}

func TestLexWildcard(t *testing.T) {
	tokens, err := Lex("cha** chat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens[0].Kind != TokWildcard || tokens[0].Value != "cha" {
		t.Errorf("expected Wildcard(cha), got %v", tokens[0])
	}
	if tokens[0].End != 3 {
		t.Errorf("expected wildcard span to end at 3, got %d", tokens[0].End)
	}
	if tokens[1].Kind != TokWord {
		t.Errorf("expected Word, got %v", tokens[1])
	}
}

func TestLexStrayColon(t *testing.T) {
	tokens, err := Lex(" : a : b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []TokenKind{TokWord, TokWord, TokEOF}
	if !sameKinds(kinds(tokens), want) {
		t.Fatalf("expected %v, got %v", want, kinds(tokens))
	}
}

func TestLexUnterminatedPhrase(t *testing.T) {
	_, err := Lex(`a "b c`)
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("expected SyntaxError, got %v", err)
	}
	if se.Pos != 2 {
		t.Errorf("expected position 2, got %d", se.Pos)
	}
}

func TestLexUnicode(t *testing.T) {
	tokens, err := Lex("Élève:été")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens[0].Kind != TokField || tokens[0].Value != "Élève" {
		t.Errorf("expected Field(Élève), got %v", tokens[0])
	}
	if tokens[1].Pos != 6 {
		t.Errorf("expected rune offset 6, got %d", tokens[1].Pos)
	}
}
