package emit

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/lcc-go/lcc/object"
)

// COFF relocatable-object constants for the Windows x64 output format
// (spec.md §6). No ecosystem COFF-writer library appears anywhere in the
// example pack, so (like ELF) this is hand-encoded; see DESIGN.md.
const (
	imageFileMachineAMD64 = 0x8664

	imageSCNCntCode            = 0x00000020
	imageSCNCntInitializedData = 0x00000040
	imageSCNMemExecute         = 0x20000000
	imageSCNMemRead            = 0x40000000
	imageSCNMemWrite           = 0x80000000

	imageSymClassExternal = 2
	imageSymClassStatic   = 3

	imageRelAMD64REL32 = 0x0004
	imageRelAMD64ADDR64 = 0x0001
)

type coffFileHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

type coffSectionHeader struct {
	Name                 [8]byte
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations  uint16
	NumberOfLineNumbers  uint16
	Characteristics      uint32
}

type coffRelocation struct {
	VirtualAddress  uint32
	SymbolTableIndex uint32
	Type            uint16
}

type coffSymbol struct {
	Name               [8]byte
	Value              uint32
	SectionNumber      int16
	Type               uint16
	StorageClass       uint8
	NumberOfAuxSymbols uint8
}

// WriteCOFF lowers o to a COFF relocatable object for the Windows x64
// target (.text/.data, IMAGE_REL_AMD64_REL32, per spec.md §6). Long
// (>8 byte) names are pushed into the COFF string table and referenced
// as "/<offset>", same convention as cl.exe/link.exe object files.
func WriteCOFF(w io.Writer, o *object.Object) error {
	var strtab []byte // string-table content, offsets relative to its own start (4-byte size prefix excluded per convention used below)

	shortName := func(name string) [8]byte {
		var out [8]byte
		if len(name) <= 8 {
			copy(out[:], name)
			return out
		}
		off := len(strtab) + 4
		strtab = append(strtab, name...)
		strtab = append(strtab, 0)
		copy(out[:], "/")
		// decimal offset, left-aligned, matches link.exe's reader.
		s := itoa(off)
		copy(out[1:], s)
		return out
	}

	secIndex := make([]int16, len(o.Sections)) // 1-based COFF section number
	sections := make([]coffSectionHeader, len(o.Sections))
	data := make([][]byte, len(o.Sections))

	for i, s := range o.Sections {
		secIndex[i] = int16(i + 1)
		data[i] = s.Data

		var ch uint32
		switch s.Kind {
		case object.Text:
			ch = imageSCNCntCode | imageSCNMemExecute | imageSCNMemRead
		case object.ROData:
			ch = imageSCNCntInitializedData | imageSCNMemRead
		default:
			ch = imageSCNCntInitializedData | imageSCNMemRead | imageSCNMemWrite
		}

		sections[i] = coffSectionHeader{
			Name:            shortName(s.Name),
			SizeOfRawData:   uint32(len(s.Data)),
			Characteristics: ch,
		}
	}

	relsBySection := map[int][]coffRelocation{}
	for _, r := range o.Relocations {
		typ := uint16(imageRelAMD64REL32)
		if r.Kind == object.Abs64 {
			typ = imageRelAMD64ADDR64
		}
		relsBySection[r.Section] = append(relsBySection[r.Section], coffRelocation{
			VirtualAddress:   uint32(r.Offset),
			SymbolTableIndex: uint32(r.Symbol),
			Type:             typ,
		})
	}

	symbols := make([]coffSymbol, len(o.Symbols))
	for i, s := range o.Symbols {
		class := uint8(imageSymClassExternal)
		if s.Binding == object.LocalBinding {
			class = imageSymClassStatic
		}
		sec := int16(0)
		if s.Defined {
			sec = secIndex[s.Section]
		}
		symbols[i] = coffSymbol{
			Name:          shortName(s.Name),
			Value:         uint32(s.Offset),
			SectionNumber: sec,
			Type:          0,
			StorageClass:  class,
		}
	}

	// Layout: file header, section headers, then per-section raw data and
	// relocations, then the symbol table and string table.
	const fileHeaderSize = 20
	const sectionHeaderSize = 40
	off := uint32(fileHeaderSize + sectionHeaderSize*len(sections))

	for i := range sections {
		if len(data[i]) > 0 {
			sections[i].PointerToRawData = off
			off += uint32(len(data[i]))
		}
		if rel := relsBySection[i]; len(rel) > 0 {
			sections[i].PointerToRelocations = off
			sections[i].NumberOfRelocations = uint16(len(rel))
			off += uint32(10 * len(rel))
		}
	}

	symtabOff := off

	var out bytes.Buffer
	header := coffFileHeader{
		Machine:              imageFileMachineAMD64,
		NumberOfSections:      uint16(len(sections)),
		PointerToSymbolTable:  symtabOff,
		NumberOfSymbols:       uint32(len(symbols)),
	}
	binary.Write(&out, binary.LittleEndian, header)
	for _, s := range sections {
		binary.Write(&out, binary.LittleEndian, s)
	}
	for i := range sections {
		out.Write(data[i])
		for _, r := range relsBySection[i] {
			binary.Write(&out, binary.LittleEndian, r)
		}
	}
	for _, s := range symbols {
		binary.Write(&out, binary.LittleEndian, s)
	}

	var sizeBuf [4]byte
	binary.LittleEndian.PutUint32(sizeBuf[:], uint32(len(strtab)+4))
	out.Write(sizeBuf[:])
	out.Write(strtab)

	_, err := w.Write(out.Bytes())
	return err
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
