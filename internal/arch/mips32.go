package arch

import uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

func init() {
	register(&Capability{
		ID:     MIPS32,
		UCArch: uc.ARCH_MIPS,
		UCMode: uc.MODE_MIPS32 | uc.MODE_LITTLE_ENDIAN,
		Registers: []RegSpec{
			{Name: "zero", UC: uc.MIPS_REG_ZERO, Bytes: 4},
			{Name: "at", UC: uc.MIPS_REG_AT, Bytes: 4},
			{Name: "v0", UC: uc.MIPS_REG_V0, Bytes: 4},
			{Name: "v1", UC: uc.MIPS_REG_V1, Bytes: 4},
			{Name: "a0", UC: uc.MIPS_REG_A0, Bytes: 4},
			{Name: "a1", UC: uc.MIPS_REG_A1, Bytes: 4},
			{Name: "a2", UC: uc.MIPS_REG_A2, Bytes: 4},
			{Name: "a3", UC: uc.MIPS_REG_A3, Bytes: 4},
			{Name: "t0", UC: uc.MIPS_REG_T0, Bytes: 4},
			{Name: "t1", UC: uc.MIPS_REG_T1, Bytes: 4},
			{Name: "t2", UC: uc.MIPS_REG_T2, Bytes: 4},
			{Name: "t3", UC: uc.MIPS_REG_T3, Bytes: 4},
			{Name: "t4", UC: uc.MIPS_REG_T4, Bytes: 4},
			{Name: "t5", UC: uc.MIPS_REG_T5, Bytes: 4},
			{Name: "t6", UC: uc.MIPS_REG_T6, Bytes: 4},
			{Name: "t7", UC: uc.MIPS_REG_T7, Bytes: 4},
			{Name: "s0", UC: uc.MIPS_REG_S0, Bytes: 4},
			{Name: "s1", UC: uc.MIPS_REG_S1, Bytes: 4},
			{Name: "s2", UC: uc.MIPS_REG_S2, Bytes: 4},
			{Name: "s3", UC: uc.MIPS_REG_S3, Bytes: 4},
			{Name: "s4", UC: uc.MIPS_REG_S4, Bytes: 4},
			{Name: "s5", UC: uc.MIPS_REG_S5, Bytes: 4},
			{Name: "s6", UC: uc.MIPS_REG_S6, Bytes: 4},
			{Name: "s7", UC: uc.MIPS_REG_S7, Bytes: 4},
			{Name: "t8", UC: uc.MIPS_REG_T8, Bytes: 4},
			{Name: "t9", UC: uc.MIPS_REG_T9, Bytes: 4},
			{Name: "gp", UC: uc.MIPS_REG_GP, Bytes: 4},
			{Name: "sp", UC: uc.MIPS_REG_SP, Bytes: 4},
			{Name: "fp", UC: uc.MIPS_REG_FP, Bytes: 4},
			{Name: "ra", UC: uc.MIPS_REG_RA, Bytes: 4},
			{Name: "pc", UC: uc.MIPS_REG_PC, Bytes: 4},
			{Name: "hi", UC: uc.MIPS_REG_HI, Bytes: 4},
			{Name: "lo", UC: uc.MIPS_REG_LO, Bytes: 4},
		},
		// MIPS has no condition-code flags register to widen.
		CondCodeRanges:      nil,
		PCReg:               uc.MIPS_REG_PC,
		SPReg:               uc.MIPS_REG_SP,
		SyscallPCAdjust:     4, // fixed 4-byte instruction width
		SyscallNumReg:       uc.MIPS_REG_V0,
		ReuseAcrossEpisodes: false,
		HasX87:              false,
	})
}
