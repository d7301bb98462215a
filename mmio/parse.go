// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package mmio

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// An Assignment sets a register to a fixed value.
//
type Assignment struct {
	Reg   Reg
	Value uint32
}

// ParseAssignments parses a register preset description like:
//
//	"cycle_step=100, cycle_budget=0x10"
//
// Assignments are separated by commas and/or white space. Values are decimal
// unless prefixed with 0x.
//
func ParseAssignments(s string) ([]Assignment, error) {
	var out []Assignment
	p := &parser{in: s}

	for {
		p.skip(func(r rune) bool { return unicode.IsSpace(r) || r == ',' })
		if p.eof() {
			return out, nil
		}
		pos := p.pos
		name := p.accept(func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' })
		if name == "" {
			return nil, parseError(s, pos, "expected register name")
		}
		r, err := ParseReg(name)
		if err != nil {
			return nil, parseError(s, pos, err.Error())
		}
		p.skip(unicode.IsSpace)
		if p.eof() || p.in[p.pos] != '=' {
			return nil, parseError(s, p.pos, "expected '='")
		}
		p.pos++
		p.skip(unicode.IsSpace)
		pos = p.pos
		lit := p.accept(func(r rune) bool { return unicode.IsDigit(r) || unicode.IsLetter(r) })
		if lit == "" {
			return nil, parseError(s, pos, "missing value")
		}
		v, err := strconv.ParseUint(lit, 0, 32)
		if err != nil {
			return nil, parseError(s, pos, "invalid value "+strconv.Quote(lit))
		}
		out = append(out, Assignment{Reg: r, Value: uint32(v)})
	}
}

// Apply writes the assignments to p, in order.
//
func Apply(p Port, as []Assignment) {
	for _, a := range as {
		p.Write(a.Reg, a.Value)
	}
}

type parser struct {
	in  string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.in) }

func (p *parser) skip(f func(rune) bool) {
	for !p.eof() && f(rune(p.in[p.pos])) {
		p.pos++
	}
}

func (p *parser) accept(f func(rune) bool) string {
	start := p.pos
	p.skip(f)
	return p.in[start:p.pos]
}

func parseError(in string, pos int, msg string) error {
	return errors.Errorf("in %q at pos %d: %s", strings.TrimSpace(in), pos+1, msg)
}
