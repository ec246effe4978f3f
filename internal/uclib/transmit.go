package uclib

// Transmit is one captured CGC transmit syscall (spec.md §3 "Transmit
// Record"): count bytes read from data at the time of capture.
type Transmit struct {
	Data []byte
}

// SetTransmitSysno configures the syscall number that should be treated
// as a CGC transmit and the address of the transmit model (spec.md §6
// "set_transmit_sysno"). sysno and addr are only recorded; nothing in
// this Go port jumps to addr or captures a transmit by matching sysno.
func (e *Engine) SetTransmitSysno(sysno int, addr uint64) {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	e.transmitSysno = sysno
	e.transmitAddr = addr
	e.transmitConfigured = true
}

// RecordTransmit appends a captured transmit. The interrupt bridge does
// not call it, so an episode's transmit list holds only what callers of
// this method recorded.
func (e *Engine) RecordTransmit(data []byte) {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	e.transmits = append(e.transmits, Transmit{Data: cp})
}

// TransmitConfigured reports whether SetTransmitSysno has been called
// and, if so, the syscall number to match.
func (e *Engine) TransmitConfigured() (sysno int, ok bool) {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	return e.transmitSysno, e.transmitConfigured
}

// ProcessTransmit enumerates captured transmits by index (spec.md §6
// "process_transmit"); ok is false once i is out of range, the Go
// analogue of the native null terminator.
func (e *Engine) ProcessTransmit(i int) (Transmit, bool) {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	if i < 0 || i >= len(e.transmits) {
		return Transmit{}, false
	}
	return e.transmits[i], true
}

// clearTransmits resets the capture buffer for a new episode.
func (e *Engine) clearTransmits() {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	e.transmits = nil
}
