package arch

import uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

func init() {
	register(&Capability{
		ID:     AMD64,
		UCArch: uc.ARCH_X86,
		UCMode: uc.MODE_64,
		Registers: []RegSpec{
			{Name: "rax", UC: uc.X86_REG_RAX, Bytes: 8},
			{Name: "rbx", UC: uc.X86_REG_RBX, Bytes: 8},
			{Name: "rcx", UC: uc.X86_REG_RCX, Bytes: 8},
			{Name: "rdx", UC: uc.X86_REG_RDX, Bytes: 8},
			{Name: "rsi", UC: uc.X86_REG_RSI, Bytes: 8},
			{Name: "rdi", UC: uc.X86_REG_RDI, Bytes: 8},
			{Name: "rbp", UC: uc.X86_REG_RBP, Bytes: 8},
			{Name: "rsp", UC: uc.X86_REG_RSP, Bytes: 8},
			{Name: "r8", UC: uc.X86_REG_R8, Bytes: 8},
			{Name: "r9", UC: uc.X86_REG_R9, Bytes: 8},
			{Name: "r10", UC: uc.X86_REG_R10, Bytes: 8},
			{Name: "r11", UC: uc.X86_REG_R11, Bytes: 8},
			{Name: "r12", UC: uc.X86_REG_R12, Bytes: 8},
			{Name: "r13", UC: uc.X86_REG_R13, Bytes: 8},
			{Name: "r14", UC: uc.X86_REG_R14, Bytes: 8},
			{Name: "r15", UC: uc.X86_REG_R15, Bytes: 8},
			{Name: "rip", UC: uc.X86_REG_RIP, Bytes: 8},
			{Name: "eflags", UC: uc.X86_REG_EFLAGS, Bytes: 8},
			{Name: "fpcw", UC: uc.X86_REG_FPCW, Bytes: 2},
			{Name: "fpsw", UC: uc.X86_REG_FPSW, Bytes: 2},
			// Segment registers: blacklisted, per spec.md §4.5 ingress.
			{Name: "cs", UC: uc.X86_REG_CS, Bytes: 8, Blacklist: true},
			{Name: "ss", UC: uc.X86_REG_SS, Bytes: 8, Blacklist: true},
			{Name: "ds", UC: uc.X86_REG_DS, Bytes: 8, Blacklist: true},
			{Name: "es", UC: uc.X86_REG_ES, Bytes: 8, Blacklist: true},
			{Name: "fs", UC: uc.X86_REG_FS, Bytes: 8, Blacklist: true},
			{Name: "gs", UC: uc.X86_REG_GS, Bytes: 8, Blacklist: true},
			// MMX aliases: blacklisted, overlap the x87 stack C4 marshals
			// explicitly.
			{Name: "mm0", UC: uc.X86_REG_MM0, Bytes: 8, Blacklist: true},
			{Name: "mm1", UC: uc.X86_REG_MM1, Bytes: 8, Blacklist: true},
			{Name: "mm2", UC: uc.X86_REG_MM2, Bytes: 8, Blacklist: true},
			{Name: "mm3", UC: uc.X86_REG_MM3, Bytes: 8, Blacklist: true},
			{Name: "mm4", UC: uc.X86_REG_MM4, Bytes: 8, Blacklist: true},
			{Name: "mm5", UC: uc.X86_REG_MM5, Bytes: 8, Blacklist: true},
			{Name: "mm6", UC: uc.X86_REG_MM6, Bytes: 8, Blacklist: true},
			{Name: "mm7", UC: uc.X86_REG_MM7, Bytes: 8, Blacklist: true},
		},
		// AMD64 condition-code region: offsets 144-176 (spec.md §4.5).
		CondCodeRanges:      []CondCodeRange{{Start: 144, End: 176}},
		PCReg:               uc.X86_REG_RIP,
		SPReg:               uc.X86_REG_RSP,
		SyscallPCAdjust:     2, // SYSCALL is a 2-byte opcode
		SyscallNumReg:       uc.X86_REG_RAX,
		ReuseAcrossEpisodes: true,
		HasX87:              true,
		X87Stack: []int{
			uc.X86_REG_FP0, uc.X86_REG_FP1, uc.X86_REG_FP2, uc.X86_REG_FP3,
			uc.X86_REG_FP4, uc.X86_REG_FP5, uc.X86_REG_FP6, uc.X86_REG_FP7,
		},
		FPTagReg:        uc.X86_REG_FPTAG,
		FSReg:           uc.X86_REG_FS,
		GSReg:           uc.X86_REG_GS,
		HasSegmentBases: true,
	})
}
