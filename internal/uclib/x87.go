package uclib

import uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

// ReadX87 returns the raw 80-bit extended-precision value of one ST
// register, keyed by its native id (arch.Capability.X87Stack[i]).
func (e *Engine) ReadX87(regID int) (mantissa uint64, exponent uint16, err error) {
	fpr, err := e.mu.RegReadX86Fpr(regID)
	if err != nil {
		return 0, 0, err
	}
	return fpr.Mantissa, fpr.Exponent, nil
}

// WriteX87 writes a raw 80-bit extended-precision value to one ST
// register.
func (e *Engine) WriteX87(regID int, mantissa uint64, exponent uint16) error {
	return e.mu.RegWriteX86Fpr(regID, &uc.X86Fpr{Mantissa: mantissa, Exponent: exponent})
}
