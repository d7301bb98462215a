package sim_test

import (
	"strings"
	"testing"

	"github.com/db47h/uartbridge/mmio"
	"github.com/db47h/uartbridge/sim"
)

// counter counts cycles into cycle_count, up to a limit held in cycle_budget.
//
type counter struct {
	Count sim.Register `mmio:"cycle_count,ro"`
	Limit sim.Register `mmio:"cycle_budget"`
}

func (c *counter) Mount(m *sim.Machine) ([]sim.Component, error) {
	if err := sim.Bind(m, c); err != nil {
		return nil, err
	}
	return []sim.Component{func(*sim.Machine) { c.Count.Add(1) }}, nil
}

func TestMachine_Step(t *testing.T) {
	c := new(counter)
	m, err := sim.NewMachine(0, c)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Dispose()

	m.Write(mmio.CycleBudget, 5)
	m.SetGate(func() bool { return c.Count.Load() < c.Limit.Load() })

	if n := m.Run(100); n != 5 {
		t.Fatalf("expected 5 cycles, got %d", n)
	}
	if m.Step() {
		t.Fatal("Step should not advance a closed gate")
	}
	if v := m.Read(mmio.CycleCount); v != 5 {
		t.Fatalf("expected cycle_count = 5, got %d", v)
	}
	if m.Cycles() != 5 {
		t.Fatalf("expected Cycles() = 5, got %d", m.Cycles())
	}

	// read-only
	m.Write(mmio.CycleCount, 0)
	if v := m.Read(mmio.CycleCount); v != 5 {
		t.Fatalf("cycle_count was overwritten: %d", v)
	}

	// unmapped
	m.Write(mmio.OutBits, 42)
	if v := m.Read(mmio.OutBits); v != 0 {
		t.Fatalf("expected unmapped register to read 0, got %d", v)
	}

	m.SetGate(nil)
	if !m.Step() || c.Count.Load() != 6 {
		t.Fatal("open gate should let the clock advance")
	}
}

// Components spread over several workers are all updated once per cycle.
//
func TestMachine_workers(t *testing.T) {
	const n = 37
	counts := make([]int, n)
	p := sim.MountFn(func(m *sim.Machine) ([]sim.Component, error) {
		cs := make([]sim.Component, n)
		for i := range cs {
			i := i
			cs[i] = func(*sim.Machine) { counts[i]++ }
		}
		return cs, nil
	})
	for _, workers := range []int{0, 1, 4, 100} {
		for i := range counts {
			counts[i] = 0
		}
		m, err := sim.NewMachine(workers, p)
		if err != nil {
			t.Fatal(err)
		}
		if m.Size() != n {
			t.Fatalf("expected %d components, got %d", n, m.Size())
		}
		m.Run(10)
		m.Dispose()
		for i, c := range counts {
			if c != 10 {
				t.Fatalf("workers=%d: component %d updated %d times", workers, i, c)
			}
		}
	}
}

func TestMachine_errors(t *testing.T) {
	if _, err := sim.NewMachine(0); err == nil {
		t.Fatal("expected error for empty machine")
	}

	dup := sim.MountFn(func(m *sim.Machine) ([]sim.Component, error) {
		return nil, m.Map(mmio.CycleBudget, nil, nil)
	})
	_, err := sim.NewMachine(0, new(counter), dup)
	if err == nil || !strings.Contains(err.Error(), "register cycle_budget already mapped") {
		t.Fatalf("unexpected error %v", err)
	}

	bad := sim.MountFn(func(m *sim.Machine) ([]sim.Component, error) {
		return nil, m.Map(mmio.Reg(mmio.RegCount), nil, nil)
	})
	if _, err = sim.NewMachine(0, bad); err == nil {
		t.Fatal("expected error for invalid register")
	}
}

func TestBind_errors(t *testing.T) {
	data := []struct {
		name string
		v    interface{}
		err  string
	}{
		{"not_ptr", counter{}, "unsupported type sim_test.counter: expected pointer to struct"},
		{"bad_type", &struct {
			X int `mmio:"in_bits"`
		}{}, `unsupported type "int" for field "X" in ""`},
		{"unexported", &struct {
			x sim.Register `mmio:"in_bits"`
		}{}, `unexported field "x" in ""`},
		{"bad_name", &struct {
			X sim.Register `mmio:"nope"`
		}{}, `field "X" in "": unknown register "nope"`},
		{"bad_tag", &struct {
			X sim.Register `mmio:"in_bits,rw"`
		}{}, `unsupported tag "in_bits,rw" for field "X" in ""`},
		{"untagged", &struct {
			X sim.Register
		}{}, ""},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			p := sim.MountFn(func(m *sim.Machine) ([]sim.Component, error) {
				return nil, sim.Bind(m, d.v)
			})
			_, err := sim.NewMachine(0, p)
			if d.err == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if err == nil || !strings.HasSuffix(err.Error(), d.err) {
				t.Fatalf("Got error %q, expected %q", err, d.err)
			}
		})
	}
}
