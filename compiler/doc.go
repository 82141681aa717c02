/*

Process of compilation

IR Module (built by a frontend, spec.md §6) ->
	abi.Lower ->
IR Module, calling-convention-lowered ->
	opt.Run ->
IR Module, optimised to a fixed point ->
	mir.Build ->
Machine IR (generic opcodes) ->
	x86_64.Select ->
Machine IR (x86-64 opcodes, virtual registers) ->
	x86_64.Allocate ->
Machine IR (x86-64 opcodes, physical registers) ->
	emit.WriteAssembly / emit.WriteELF / emit.WriteCOFF ->
Assembly Text / Relocatable Object ->
	link ->
Binary Executable

*/
package compiler
