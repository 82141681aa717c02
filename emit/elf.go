package emit

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/lcc-go/lcc/object"
)

// ELF64 relocatable-object constants this writer needs. Go's stdlib
// debug/elf only reads ELF files, so the relocatable object spec.md §6
// asks for is hand-encoded here (see DESIGN.md for why no ecosystem
// ELF-writer library from the example pack covers this).
const (
	elfClass64  = 2
	elfDataLE   = 1
	elfVersion  = 1
	elfOSABISys = 0
	elfTypeRel  = 1
	elfMachineX86_64 = 62

	shtNull     = 0
	shtProgBits = 1
	shtSymTab   = 2
	shtStrTab   = 3
	shtRela     = 4
	shtNoBits   = 8

	shfWrite = 0x1
	shfAlloc = 0x2
	shfExec  = 0x4

	stbLocal  = 0
	stbGlobal = 1
	stbWeak   = 2

	sttNoType = 0
	sttObject = 1
	sttFunc   = 2

	rX86_64_PC32 = 2
	rX86_64_64   = 1

	shnUndef = 0
)

type elf64SectionHeader struct {
	NameOff   uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Off       uint64
	Size      uint64
	Link      uint32
	Info      uint32
	AddrAlign uint64
	EntSize   uint64
}

type elf64Sym struct {
	NameOff uint32
	Info    uint8
	Other   uint8
	Shndx   uint16
	Value   uint64
	Size    uint64
}

type elf64Rela struct {
	Offset uint64
	Info   uint64
	Addend int64
}

// WriteELF lowers a generic object.Object to an ELF64 relocatable object
// (spec.md §6): one section per object.Section plus .symtab/.strtab/.shstrtab
// and one .rela section per relocated section.
func WriteELF(w io.Writer, o *object.Object) error {
	var strtab stringTable
	strtab.add("") // index 0 reserved

	symNameOff := make([]uint32, len(o.Symbols))
	for i, s := range o.Symbols {
		symNameOff[i] = strtab.add(s.Name)
	}

	var shstrtab stringTable
	shstrtab.add("")

	type outSection struct {
		name    string
		nameOff uint32
		header  elf64SectionHeader
		data    []byte
	}

	var sections []outSection
	sections = append(sections, outSection{}) // SHN_UNDEF

	secIndex := make([]int, len(o.Sections)) // object.Section idx -> ELF section header idx
	for i, s := range o.Sections {
		typ := uint32(shtProgBits)
		flags := uint64(shfAlloc)
		if s.Kind == object.Text {
			flags |= shfExec
		}
		if s.Kind == object.Data || s.Kind == object.BSS {
			flags |= shfWrite
		}
		if s.Kind == object.BSS {
			typ = shtNoBits
		}

		secIndex[i] = len(sections)
		sections = append(sections, outSection{
			name: s.Name,
			header: elf64SectionHeader{
				Type: typ, Flags: flags, AddrAlign: max64(s.Align, 1),
				Size: uint64(len(s.Data)),
			},
			data: s.Data,
		})
	}

	// Symbol table: index 0 is the mandatory null symbol.
	syms := make([]elf64Sym, 1, len(o.Symbols)+1)
	for i, s := range o.Symbols {
		info := uint8(sttNoType)
		if s.Size > 0 || s.Defined {
			info = sttFunc
		}
		bind := uint8(stbGlobal)
		switch s.Binding {
		case object.LocalBinding:
			bind = stbLocal
		case object.WeakBinding:
			bind = stbWeak
		}

		shndx := uint16(shnUndef)
		if s.Defined {
			shndx = uint16(secIndex[s.Section])
		}

		syms = append(syms, elf64Sym{
			NameOff: symNameOff[i],
			Info:    bind<<4 | info,
			Shndx:   shndx,
			Value:   s.Offset,
			Size:    s.Size,
		})
	}

	relaBySection := map[int][]elf64Rela{}
	for _, r := range o.Relocations {
		typ := uint64(rX86_64_PC32)
		if r.Kind == object.Abs64 {
			typ = rX86_64_64
		}
		// ELF symbol index is shifted by 1 for the null symbol at index 0.
		relaBySection[r.Section] = append(relaBySection[r.Section], elf64Rela{
			Offset: r.Offset,
			Info:   uint64(r.Symbol+1)<<32 | typ,
			Addend: r.Addend,
		})
	}

	symtabSection := outSection{name: ".symtab"}
	strtabSection := outSection{name: ".strtab", data: strtab.bytes()}
	symtabIdx := len(sections)
	sections = append(sections, symtabSection)
	strtabIdx := len(sections)
	sections = append(sections, strtabSection)

	for i := range o.Sections {
		rel := relaBySection[i]
		if len(rel) == 0 {
			continue
		}
		var buf bytes.Buffer
		for _, r := range rel {
			binary.Write(&buf, binary.LittleEndian, r)
		}
		sections = append(sections, outSection{
			name: ".rela" + o.Sections[i].Name,
			header: elf64SectionHeader{
				Type: shtRela, Link: uint32(symtabIdx), Info: uint32(secIndex[i]),
				EntSize: 24, AddrAlign: 8, Size: uint64(buf.Len()),
			},
			data: buf.Bytes(),
		})
	}

	shstrtabIdx := len(sections)
	sections = append(sections, outSection{name: ".shstrtab"})

	for i := range sections {
		if i == 0 {
			continue
		}
		sections[i].nameOff = shstrtab.add(sections[i].name)
	}
	sections[shstrtabIdx].data = shstrtab.bytes()

	var symtabBuf bytes.Buffer
	for _, s := range syms {
		binary.Write(&symtabBuf, binary.LittleEndian, s)
	}
	sections[symtabIdx].data = symtabBuf.Bytes()
	sections[symtabIdx].header = elf64SectionHeader{
		Type: shtSymTab, Link: uint32(strtabIdx), Info: 1,
		EntSize: 24, AddrAlign: 8, Size: uint64(symtabBuf.Len()),
	}
	sections[strtabIdx].header = elf64SectionHeader{Type: shtStrTab, AddrAlign: 1, Size: uint64(len(strtab.bytes()))}
	sections[shstrtabIdx].header = elf64SectionHeader{Type: shtStrTab, AddrAlign: 1, Size: uint64(len(shstrtab.bytes()))}

	// Lay out file offsets: ELF header, then section data in order
	// (skipping SHN_UNDEF and NOBITS), then the section header table.
	const ehsize = 64
	off := uint64(ehsize)
	for i := range sections {
		if i == 0 || sections[i].header.Type == shtNoBits {
			continue
		}
		align := sections[i].header.AddrAlign
		if align == 0 {
			align = 1
		}
		off = alignUp(off, align)
		sections[i].header.Off = off
		sections[i].header.NameOff = sections[i].nameOff
		off += uint64(len(sections[i].data))
	}
	off = alignUp(off, 8)
	shoff := off

	var out bytes.Buffer
	writeELFHeader(&out, shoff, uint16(len(sections)), uint16(shstrtabIdx))

	for i := range sections {
		if i == 0 || sections[i].header.Type == shtNoBits {
			continue
		}
		for uint64(out.Len()) < sections[i].header.Off {
			out.WriteByte(0)
		}
		out.Write(sections[i].data)
	}
	for uint64(out.Len()) < shoff {
		out.WriteByte(0)
	}

	null := elf64SectionHeader{}
	binary.Write(&out, binary.LittleEndian, null)
	for i := 1; i < len(sections); i++ {
		binary.Write(&out, binary.LittleEndian, sections[i].header)
	}

	_, err := w.Write(out.Bytes())
	return err
}

func writeELFHeader(out *bytes.Buffer, shoff uint64, shnum, shstrndx uint16) {
	var ident [16]byte
	copy(ident[:4], "\x7fELF")
	ident[4] = elfClass64
	ident[5] = elfDataLE
	ident[6] = elfVersion
	ident[7] = elfOSABISys

	out.Write(ident[:])
	binary.Write(out, binary.LittleEndian, uint16(elfTypeRel))
	binary.Write(out, binary.LittleEndian, uint16(elfMachineX86_64))
	binary.Write(out, binary.LittleEndian, uint32(elfVersion))
	binary.Write(out, binary.LittleEndian, uint64(0)) // entry
	binary.Write(out, binary.LittleEndian, uint64(0)) // phoff
	binary.Write(out, binary.LittleEndian, shoff)
	binary.Write(out, binary.LittleEndian, uint32(0)) // flags
	binary.Write(out, binary.LittleEndian, uint16(64)) // ehsize
	binary.Write(out, binary.LittleEndian, uint16(0))  // phentsize
	binary.Write(out, binary.LittleEndian, uint16(0))  // phnum
	binary.Write(out, binary.LittleEndian, uint16(64)) // shentsize
	binary.Write(out, binary.LittleEndian, shnum)
	binary.Write(out, binary.LittleEndian, shstrndx)
}

type stringTable struct {
	buf []byte
}

func (t *stringTable) add(s string) uint32 {
	off := uint32(len(t.buf))
	t.buf = append(t.buf, s...)
	t.buf = append(t.buf, 0)
	return off
}

func (t *stringTable) bytes() []byte { return t.buf }

func alignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
