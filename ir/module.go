package ir

import (
	"github.com/lcc-go/lcc/cc"
	"github.com/lcc-go/lcc/types"
)

// Module exclusively owns its Functions, its static variables/constants,
// and (transitively, through *cc.Context) the type universe.
type Module struct {
	ctx *cc.Context

	functions []*Function
	globals   []*Instruction

	nextFuncID ID
}

func NewModule(ctx *cc.Context) *Module {
	return &Module{ctx: ctx}
}

func (m *Module) Context() *cc.Context    { return m.ctx }
func (m *Module) Functions() []*Function  { return m.functions }
func (m *Module) Globals() []*Instruction { return m.globals }

func (m *Module) FunctionByName(name string) *Function {
	for _, f := range m.functions {
		if f.name == name {
			return f
		}
	}
	return nil
}

// NewFunction declares a Function with the given name, type, and linkage.
// The function starts with no blocks (IsExtern() is true) until NewBlock is
// called on it at least once.
func (m *Module) NewFunction(name string, typ *types.Type, linkage Linkage) *Function {
	if typ.Kind() != types.Function {
		cc.Fatal(cc.Loc{}, "NewFunction %q: type %s is not a function type", name, typ)
	}
	f := &Function{id: m.nextFuncID, module: m, name: name, typ: typ, linkage: linkage}
	m.nextFuncID++

	for i, pt := range typ.Params() {
		p := &Instruction{id: f.nextID(), kind: Parameter, typ: pt, paramIndex: i, str: ""}
		f.params = append(f.params, p)
	}

	m.functions = append(m.functions, f)
	return f
}

// RemoveFunction deletes f from the module's function list; used by the
// reachability pass (spec.md §4.1) to drop never-referenced functions.
func (m *Module) RemoveFunction(f *Function) {
	for i, x := range m.functions {
		if x == f {
			m.functions = append(m.functions[:i], m.functions[i+1:]...)
			return
		}
	}
}

// NewGlobalVariable declares a module-scope static variable or constant.
func (m *Module) NewGlobalVariable(name string, typ *types.Type, linkage Linkage, init *Instruction) *Instruction {
	g := &Instruction{
		kind: GlobalVariable,
		typ:  typ,
		str:  name,
		global: &GlobalInfo{Name: name, Linkage: linkage, Init: init},
	}
	m.globals = append(m.globals, g)
	return g
}
