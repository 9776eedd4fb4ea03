package php

import (
	"strings"
)

// DocTag is a typed docblock tag. Name has no leading "$" and is empty when
// the tag names no variable.
type DocTag struct {
	Name string
	Type string
}

// Docblock is the typed content of a /** */ comment.
type Docblock struct {
	Vars   []DocTag
	Params []DocTag
	Return string
}

// ParseDocblock extracts @var, @param and @return tags. Tool-prefixed
// variants (@psalm-var, @phpstan-param, ...) are read as the plain tag.
// Malformed type text is kept verbatim.
func ParseDocblock(text string) Docblock {
	var doc Docblock
	if !strings.Contains(text, "@") {
		return doc
	}

	for _, line := range docLines(text) {
		for {
			at := strings.IndexByte(line, '@')
			if at < 0 {
				break
			}
			line = line[at+1:]
			tag, rest := splitWord(line)
			line = rest

			switch normalizeTag(tag) {
			case "var":
				if t, ok := parseVarTag(rest); ok {
					doc.Vars = append(doc.Vars, t)
				}
			case "param":
				if t, ok := parseVarTag(rest); ok && t.Name != "" {
					doc.Params = append(doc.Params, t)
				}
			case "return":
				if typ, _ := readType(rest); typ != "" {
					doc.Return = typ
				}
			}
		}
	}

	return doc
}

// Param returns the declared type of parameter name.
func (d Docblock) Param(name string) (string, bool) {
	for i := len(d.Params) - 1; i >= 0; i-- {
		if d.Params[i].Name == name {
			return d.Params[i].Type, true
		}
	}
	return "", false
}

// Var returns the first @var tag naming name, or the first unnamed @var tag
// when name is empty.
func (d Docblock) Var(name string) (string, bool) {
	for _, v := range d.Vars {
		if v.Name == name {
			return v.Type, true
		}
	}
	return "", false
}

func docLines(text string) []string {
	text = strings.TrimPrefix(strings.TrimSpace(text), "/**")
	text = strings.TrimSuffix(text, "*/")

	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "*")
		lines = append(lines, strings.TrimSpace(line))
	}
	return lines
}

func normalizeTag(tag string) string {
	tag = strings.ToLower(tag)
	for _, prefix := range []string{"psalm-", "phpstan-", "phan-"} {
		tag = strings.TrimPrefix(tag, prefix)
	}
	return tag
}

// parseVarTag reads `Type $name`, the legacy `$name Type` and a bare `Type`.
func parseVarTag(s string) (DocTag, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DocTag{}, false
	}

	if strings.HasPrefix(s, "$") {
		name, rest := splitWord(s)
		typ, _ := readType(rest)
		if typ == "" {
			return DocTag{}, false
		}
		return DocTag{Name: strings.TrimPrefix(name, "$"), Type: typ}, true
	}

	typ, rest := readType(s)
	if typ == "" {
		return DocTag{}, false
	}
	tag := DocTag{Type: typ}
	rest = strings.TrimSpace(rest)
	rest = strings.TrimPrefix(rest, "...")
	rest = strings.TrimPrefix(rest, "&")
	if strings.HasPrefix(rest, "$") {
		name, _ := splitWord(rest)
		tag.Name = strings.TrimPrefix(name, "$")
	}
	return tag, true
}

func splitWord(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	end := strings.IndexAny(s, " \t")
	if end < 0 {
		return s, ""
	}
	return s[:end], s[end:]
}

// readType reads one type expression. Whitespace inside generic brackets and
// around union bars is part of the type.
func readType(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	depth := 0
	var sb strings.Builder

	i := 0
	for i < len(s) {
		ch := s[i]
		switch {
		case ch == '<' || ch == '(' || ch == '{' || ch == '[':
			depth++
		case ch == '>' || ch == ')' || ch == '}' || ch == ']':
			if depth > 0 {
				depth--
			}
		case ch == ' ' || ch == '\t':
			if depth > 0 {
				i++
				continue
			}
			j := i
			for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
				j++
			}
			last := sb.String()
			joins := j < len(s) && (s[j] == '|' || (s[j] == '&' && j+1 < len(s) && s[j+1] != '$'))
			if joins || strings.HasSuffix(last, "|") || strings.HasSuffix(last, "&") {
				i = j
				continue
			}
			return sb.String(), s[i:]
		}
		sb.WriteByte(ch)
		i++
	}
	return sb.String(), ""
}
