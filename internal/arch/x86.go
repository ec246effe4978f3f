package arch

import uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

func init() {
	register(&Capability{
		ID:     X86,
		UCArch: uc.ARCH_X86,
		UCMode: uc.MODE_32,
		Registers: []RegSpec{
			{Name: "eax", UC: uc.X86_REG_EAX, Bytes: 4},
			{Name: "ebx", UC: uc.X86_REG_EBX, Bytes: 4},
			{Name: "ecx", UC: uc.X86_REG_ECX, Bytes: 4},
			{Name: "edx", UC: uc.X86_REG_EDX, Bytes: 4},
			{Name: "esi", UC: uc.X86_REG_ESI, Bytes: 4},
			{Name: "edi", UC: uc.X86_REG_EDI, Bytes: 4},
			{Name: "ebp", UC: uc.X86_REG_EBP, Bytes: 4},
			{Name: "esp", UC: uc.X86_REG_ESP, Bytes: 4},
			{Name: "eip", UC: uc.X86_REG_EIP, Bytes: 4},
			{Name: "eflags", UC: uc.X86_REG_EFLAGS, Bytes: 4},
			{Name: "fpcw", UC: uc.X86_REG_FPCW, Bytes: 2},
			{Name: "fpsw", UC: uc.X86_REG_FPSW, Bytes: 2},
			{Name: "cs", UC: uc.X86_REG_CS, Bytes: 4, Blacklist: true},
			{Name: "ss", UC: uc.X86_REG_SS, Bytes: 4, Blacklist: true},
			{Name: "ds", UC: uc.X86_REG_DS, Bytes: 4, Blacklist: true},
			{Name: "es", UC: uc.X86_REG_ES, Bytes: 4, Blacklist: true},
			{Name: "fs", UC: uc.X86_REG_FS, Bytes: 4, Blacklist: true},
			{Name: "gs", UC: uc.X86_REG_GS, Bytes: 4, Blacklist: true},
			{Name: "mm0", UC: uc.X86_REG_MM0, Bytes: 8, Blacklist: true},
			{Name: "mm1", UC: uc.X86_REG_MM1, Bytes: 8, Blacklist: true},
			{Name: "mm2", UC: uc.X86_REG_MM2, Bytes: 8, Blacklist: true},
			{Name: "mm3", UC: uc.X86_REG_MM3, Bytes: 8, Blacklist: true},
			{Name: "mm4", UC: uc.X86_REG_MM4, Bytes: 8, Blacklist: true},
			{Name: "mm5", UC: uc.X86_REG_MM5, Bytes: 8, Blacklist: true},
			{Name: "mm6", UC: uc.X86_REG_MM6, Bytes: 8, Blacklist: true},
			{Name: "mm7", UC: uc.X86_REG_MM7, Bytes: 8, Blacklist: true},
		},
		// X86 condition-code region: offsets 40-56 (spec.md §4.5).
		CondCodeRanges:      []CondCodeRange{{Start: 40, End: 56}},
		PCReg:               uc.X86_REG_EIP,
		SPReg:               uc.X86_REG_ESP,
		SyscallPCAdjust:     2, // INT 0x80 is a 2-byte opcode
		SyscallNumReg:       uc.X86_REG_EAX,
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
