// Package types implements lcc's interned, structurally-unique type
// universe: two types compare equal (by pointer) iff their structural
// descriptors match. Sizes and alignments are a pure function of the type
// descriptor and the target.
package types

import (
	"fmt"
	"strings"

	"github.com/lcc-go/lcc/target"
)

type Kind int

const (
	Void Kind = iota
	Integer
	Pointer
	Array
	Struct
	Function
)

func (k Kind) String() string {
	switch k {
	case Void:
		return "void"
	case Integer:
		return "integer"
	case Pointer:
		return "pointer"
	case Array:
		return "array"
	case Struct:
		return "struct"
	case Function:
		return "function"
	default:
		return "unknown-kind"
	}
}

// Field is one member of a Struct type; Offset is computed by the universe
// at construction time according to the target's alignment rules.
type Field struct {
	Type   *Type
	Offset uint64
}

// Type is an interned, immutable type descriptor. Zero value is invalid;
// obtain instances exclusively through a *Universe.
type Type struct {
	kind Kind

	bits uint8 // Integer

	elem   *Type // Array
	length uint64

	fields []Field // Struct
	packed bool

	ret      *Type // Function
	params   []*Type
	variadic bool
	conv     target.CallConv

	key string
}

func (t *Type) Kind() Kind { return t.kind }

// Bits returns the bit width of an Integer type.
func (t *Type) Bits() uint8 {
	if t.kind != Integer {
		panic("types: Bits of non-integer type")
	}
	return t.bits
}

func (t *Type) Elem() *Type {
	if t.kind != Array {
		panic("types: Elem of non-array type")
	}
	return t.elem
}

func (t *Type) Length() uint64 {
	if t.kind != Array {
		panic("types: Length of non-array type")
	}
	return t.length
}

func (t *Type) Fields() []Field {
	if t.kind != Struct {
		panic("types: Fields of non-struct type")
	}
	return t.fields
}

func (t *Type) Packed() bool { return t.packed }

func (t *Type) Return() *Type {
	if t.kind != Function {
		panic("types: Return of non-function type")
	}
	return t.ret
}

func (t *Type) Params() []*Type {
	if t.kind != Function {
		panic("types: Params of non-function type")
	}
	return t.params
}

func (t *Type) Variadic() bool {
	if t.kind != Function {
		panic("types: Variadic of non-function type")
	}
	return t.variadic
}

func (t *Type) CallConv() target.CallConv {
	if t.kind != Function {
		panic("types: CallConv of non-function type")
	}
	return t.conv
}

func (t *Type) IsInteger() bool  { return t.kind == Integer }
func (t *Type) IsPointer() bool  { return t.kind == Pointer }
func (t *Type) IsAggregate() bool { return t.kind == Struct || t.kind == Array }

// Size returns the size in bytes of t under tgt.
func (t *Type) Size(tgt *target.Target) uint64 {
	switch t.kind {
	case Void:
		return 0
	case Integer:
		return (uint64(t.bits) + 7) / 8
	case Pointer:
		return uint64(tgt.PointerBytes())
	case Array:
		return t.elem.Size(tgt) * t.length
	case Struct:
		if len(t.fields) == 0 {
			return 0
		}
		last := t.fields[len(t.fields)-1]
		end := last.Offset + last.Type.Size(tgt)
		if t.packed {
			return end
		}
		return alignUp(end, t.Align(tgt))
	case Function:
		panic("types: Size of function type")
	default:
		panic("types: unhandled kind")
	}
}

// Align returns the alignment in bytes of t under tgt.
func (t *Type) Align(tgt *target.Target) uint64 {
	switch t.kind {
	case Void:
		return 1
	case Integer:
		sz := t.Size(tgt)
		return clampPow2(sz)
	case Pointer:
		return uint64(tgt.PointerBytes())
	case Array:
		return t.elem.Align(tgt)
	case Struct:
		if t.packed {
			return 1
		}
		var a uint64 = 1
		for _, f := range t.fields {
			if fa := f.Type.Align(tgt); fa > a {
				a = fa
			}
		}
		return a
	case Function:
		panic("types: Align of function type")
	default:
		panic("types: unhandled kind")
	}
}

func (t *Type) String() string {
	switch t.kind {
	case Void:
		return "void"
	case Integer:
		return fmt.Sprintf("i%d", t.bits)
	case Pointer:
		return "ptr"
	case Array:
		return fmt.Sprintf("[%d x %s]", t.length, t.elem)
	case Struct:
		var sb strings.Builder
		sb.WriteString("{")
		for i, f := range t.fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Type.String())
		}
		sb.WriteString("}")
		return sb.String()
	case Function:
		var sb strings.Builder
		sb.WriteString(t.ret.String())
		sb.WriteString(" (")
		for i, p := range t.params {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.String())
		}
		if t.variadic {
			if len(t.params) > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("...")
		}
		sb.WriteString(")")
		return sb.String()
	default:
		return "<?>"
	}
}

func alignUp(v, a uint64) uint64 {
	if a <= 1 {
		return v
	}
	return (v + a - 1) &^ (a - 1)
}

func clampPow2(sz uint64) uint64 {
	switch {
	case sz <= 1:
		return 1
	case sz <= 2:
		return 2
	case sz <= 4:
		return 4
	default:
		return 8
	}
}

// Universe interns every Type constructed for a single compilation. It is
// append-only: once a structurally-unique type is interned it is never
// mutated or evicted, matching the "Type universe is the only cross-cutting
// table" policy of the core's concurrency model.
type Universe struct {
	tgt    *target.Target
	interned map[string]*Type

	voidT *Type
	ptrT  *Type
}

func NewUniverse(tgt *target.Target) *Universe {
	u := &Universe{tgt: tgt, interned: map[string]*Type{}}
	u.voidT = u.intern(&Type{kind: Void, key: "void"})
	u.ptrT = u.intern(&Type{kind: Pointer, key: "ptr"})
	return u
}

func (u *Universe) intern(t *Type) *Type {
	if existing, ok := u.interned[t.key]; ok {
		return existing
	}
	u.interned[t.key] = t
	return t
}

func (u *Universe) Void() *Type    { return u.voidT }
func (u *Universe) Pointer() *Type { return u.ptrT }

func (u *Universe) Integer(bits uint8) *Type {
	if bits < 1 || bits > 64 {
		panic(fmt.Sprintf("types: invalid integer width %d", bits))
	}
	key := fmt.Sprintf("i%d", bits)
	return u.intern(&Type{kind: Integer, bits: bits, key: key})
}

func (u *Universe) Array(elem *Type, length uint64) *Type {
	key := fmt.Sprintf("array(%p,%d)", elem, length)
	return u.intern(&Type{kind: Array, elem: elem, length: length, key: key})
}

// Struct computes field offsets according to tgt's alignment rules (unless
// packed, in which case fields are laid out back to back) and interns the
// result.
func (u *Universe) Struct(fieldTypes []*Type, packed bool) *Type {
	fields := make([]Field, len(fieldTypes))
	var offset uint64
	for i, ft := range fieldTypes {
		if !packed {
			offset = alignUp(offset, ft.Align(u.tgt))
		}
		fields[i] = Field{Type: ft, Offset: offset}
		offset += ft.Size(u.tgt)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "struct(%v)[", packed)
	for _, f := range fields {
		fmt.Fprintf(&sb, "%p@%d,", f.Type, f.Offset)
	}
	sb.WriteString("]")

	return u.intern(&Type{kind: Struct, fields: fields, packed: packed, key: sb.String()})
}

func (u *Universe) Function(ret *Type, params []*Type, variadic bool, conv target.CallConv) *Type {
	var sb strings.Builder
	fmt.Fprintf(&sb, "fn(%p;", ret)
	for _, p := range params {
		fmt.Fprintf(&sb, "%p,", p)
	}
	fmt.Fprintf(&sb, ";%v;%d)", variadic, conv)

	return u.intern(&Type{kind: Function, ret: ret, params: params, variadic: variadic, conv: conv, key: sb.String()})
}

// Target returns the target this universe's sizes are computed against.
func (u *Universe) Target() *target.Target { return u.tgt }
