// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sim

import (
	"reflect"
	"strings"

	"github.com/db47h/uartbridge/mmio"
	"github.com/pkg/errors"
)

// Register is a plain storage register.
//
type Register uint32

// Load returns the register value.
//
func (r *Register) Load() uint32 { return uint32(*r) }

// Store sets the register value.
//
func (r *Register) Store(v uint32) { *r = Register(v) }

// Add adds d to the register value.
//
func (r *Register) Add(d uint32) { *r += Register(d) }

var registerType = reflect.TypeOf(Register(0))

// Bind maps the Register fields of the struct pointed to by v.
//
// Fields are identified by the field tag `mmio:"name"` where name is a
// register name (see mmio.ParseReg). Adding ",ro" to the tag makes the
// register read-only from the Port: `mmio:"cycle_count,ro"`.
//
// Only exported fields can be bound.
//
func Bind(m *Machine, v interface{}) error {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return errors.Errorf("unsupported type %T: expected pointer to struct", v)
	}
	e := val.Elem()
	typ := e.Type()

	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag, ok := f.Tag.Lookup("mmio")
		if !ok {
			continue
		}
		if f.Type != registerType {
			return errors.Errorf("unsupported type %q for field %q in %q", f.Type, f.Name, typ.Name())
		}
		if f.PkgPath != "" {
			return errors.Errorf("unexported field %q in %q", f.Name, typ.Name())
		}
		tv := strings.Split(tag, ",")
		r, err := mmio.ParseReg(tv[0])
		if err != nil {
			return errors.Wrapf(err, "field %q in %q", f.Name, typ.Name())
		}
		ro := false
		switch {
		case len(tv) == 1:
		case len(tv) == 2 && tv[1] == "ro":
			ro = true
		default:
			return errors.Errorf("unsupported tag %q for field %q in %q", tag, f.Name, typ.Name())
		}

		reg := e.Field(i).Addr().Interface().(*Register)
		var write func(uint32)
		if !ro {
			write = reg.Store
		}
		if err = m.Map(r, reg.Load, write); err != nil {
			return errors.Wrapf(err, "field %q in %q", f.Name, typ.Name())
		}
	}
	return nil
}
