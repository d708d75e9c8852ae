// Package longmode switches a 32-bit protected mode processor to long mode.
package longmode

import (
	"io"
	"peluboot/kernel/cpu"
	"peluboot/kernel/kfmt"
)

// Step is a single privileged write of the mode transition.
type Step struct {
	Name string
	Run  func(c cpu.CPU, pml4 uint32)
}

// Steps lists the transition writes in the only order the processor
// accepts. Paging must be enabled last: setting CR0.PG with EFER.LME set
// activates long mode and requires both the paging root and PAE to be
// in place.
var Steps = [...]Step{
	{"load paging root into CR3", loadPagingRoot},
	{"enable PAE in CR4", enablePAE},
	{"set EFER.LME", setLongModeEnable},
	{"enable paging in CR0", enablePaging},
}

func loadPagingRoot(c cpu.CPU, pml4 uint32) {
	c.WriteCR3(pml4)
}

func enablePAE(c cpu.CPU, _ uint32) {
	c.WriteCR4(c.ReadCR4() | cpu.CR4PAE)
}

func setLongModeEnable(c cpu.CPU, _ uint32) {
	c.WriteMSR(cpu.MSREFER, c.ReadMSR(cpu.MSREFER)|cpu.EFERLME)
}

func enablePaging(c cpu.CPU, _ uint32) {
	c.WriteCR0(c.ReadCR0() | cpu.CR0PG)
}

// Enter runs the transition steps in order using pml4 as the paging root.
// The GDT containing the 64-bit code descriptor must already be loaded. On
// hardware a fault in any step resets the machine so there is nothing to
// return.
func Enter(w io.Writer, c cpu.CPU, pml4 uint32) {
	kfmt.Fprintf(w, "=== Long Mode Transition ===\n")
	kfmt.Fprintf(w, "paging root: 0x%8x\n", pml4)

	for index := range Steps {
		Steps[index].Run(c, pml4)
		kfmt.Fprintf(w, "[%d/%d] %s\n", index+1, len(Steps), Steps[index].Name)
	}

	kfmt.Fprintf(w, "long mode enabled (EFER: 0x%x, CR0: 0x%8x)\n", c.ReadMSR(cpu.MSREFER), c.ReadCR0())
}
