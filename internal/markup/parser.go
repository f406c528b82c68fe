// Package markup parses content files: a `@graph` header block followed by
// a tree of text paragraphs and `@command` blocks.
//
//	@graph
//	  @title Linked lists
//	  @bases sequence
//	  @children singly-linked doubly-linked
//	@text
//	  A list where every element points to the next.
//	@img figures/list.png
//
// A command's children are the lines indented deeper than the command line.
// A line starting with "@@" is text beginning with a literal "@".
package markup

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/minidosis/minidosis/api"
)

const (
	headerCmd = "graph"
	imageCmd  = "img"
)

// ParseError reports malformed markup.
type ParseError struct {
	Line int // 1-based
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Hooks lets the caller substitute elements while the tree is built.
type Hooks struct {
	// Image is called once per `@img` element with the declared path and
	// returns the element to store in its place. Nil keeps the element as is.
	Image func(path string) *api.Element
}

// Document is the result of parsing one content file.
type Document struct {
	// Header is nil when the file does not start with a `@graph` block.
	Header  *api.Header
	Content []*api.Element
}

// Parser is the default grammar. The zero value is ready to use.
type Parser struct{}

type line struct {
	num    int
	indent int
	text   string // without indentation
}

// Parse implements the grammar contract used by the loader.
func (Parser) Parse(raw string, hooks Hooks) (*Document, error) {
	lines, err := splitLines(raw)
	if err != nil {
		return nil, err
	}
	p := &parser{lines: lines, hooks: hooks}
	elems, err := p.block(-1)
	if err != nil {
		return nil, err
	}

	doc := &Document{Content: elems}
	if len(elems) > 0 && elems[0].IsCommand(headerCmd) {
		doc.Header = toHeader(elems[0])
		doc.Content = elems[1:]
	}
	return doc, nil
}

func splitLines(raw string) ([]line, error) {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	var out []line
	for i, text := range strings.Split(raw, "\n") {
		trimmed := strings.TrimLeft(text, " \t")
		prefix := text[:len(text)-len(trimmed)]
		if strings.Contains(prefix, "\t") && strings.TrimSpace(trimmed) != "" {
			return nil, &ParseError{Line: i + 1, Msg: "tab in indentation"}
		}
		out = append(out, line{
			num:    i + 1,
			indent: len(prefix),
			text:   strings.TrimRight(trimmed, " \t"),
		})
	}
	return out, nil
}

type parser struct {
	lines []line
	pos   int
	hooks Hooks
}

// block parses consecutive lines indented deeper than parent.
func (p *parser) block(parent int) ([]*api.Element, error) {
	var (
		elems []*api.Element
		para  []string
	)
	flush := func() {
		if len(para) > 0 {
			elems = append(elems, &api.Element{Text: strings.Join(para, "\n")})
			para = nil
		}
	}

	for p.pos < len(p.lines) {
		ln := p.lines[p.pos]
		if ln.text == "" {
			flush()
			p.pos++
			continue
		}
		if ln.indent <= parent {
			break
		}
		if strings.HasPrefix(ln.text, "@@") {
			para = append(para, ln.text[1:])
			p.pos++
			continue
		}
		if !strings.HasPrefix(ln.text, "@") {
			para = append(para, ln.text)
			p.pos++
			continue
		}

		flush()
		name, arg, err := splitCommand(ln)
		if err != nil {
			return nil, err
		}
		p.pos++
		children, err := p.block(ln.indent)
		if err != nil {
			return nil, err
		}
		el := &api.Element{Cmd: name, Arg: arg, Children: children}
		if name == imageCmd && p.hooks.Image != nil {
			if sub := p.hooks.Image(imagePath(el)); sub != nil {
				el = sub
			}
		}
		elems = append(elems, el)
	}
	flush()
	return elems, nil
}

func splitCommand(ln line) (name, arg string, err error) {
	rest := ln.text[1:]
	name, arg, _ = strings.Cut(rest, " ")
	if name == "" {
		return "", "", &ParseError{Line: ln.num, Msg: "empty command name"}
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return "", "", &ParseError{Line: ln.num, Msg: fmt.Sprintf("invalid command name %q", name)}
		}
	}
	return name, strings.TrimSpace(arg), nil
}

// imagePath returns the declared path of an `@img` element, given either
// inline or as the first child line.
func imagePath(el *api.Element) string {
	if el.Arg != "" {
		return el.Arg
	}
	return fieldText(el)
}

// fieldText joins an element's inline argument and child text with spaces.
func fieldText(el *api.Element) string {
	parts := []string{}
	if el.Arg != "" {
		parts = append(parts, el.Arg)
	}
	for _, c := range el.Children {
		if c.Cmd == "" && c.Text != "" {
			parts = append(parts, strings.Fields(c.Text)...)
		}
	}
	return strings.Join(parts, " ")
}

func toHeader(el *api.Element) *api.Header {
	h := &api.Header{}
	for _, field := range el.Children {
		switch field.Cmd {
		case "title":
			h.Title = fieldText(field)
		case "bases":
			h.Bases = fieldText(field)
		case "children":
			h.Children = fieldText(field)
		case "related":
			h.Related = fieldText(field)
		}
	}
	return h
}
