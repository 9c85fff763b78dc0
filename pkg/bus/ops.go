package bus

// Device operations don't validate addresses or durations, callers do.

// TurnOn starts the dispenser.
func (s *Session) TurnOn(addr byte) error {
	_, err := s.Exchange(NewRequest(addr, TypeStart))
	return err
}

// TurnOff stops the dispenser.
func (s *Session) TurnOff(addr byte) error {
	_, err := s.Exchange(NewRequest(addr, TypeStop))
	return err
}

// Dispense runs the dispenser for dur ticks.
func (s *Session) Dispense(addr byte, dur uint16) error {
	_, err := s.Exchange(NewDispense(addr, dur))
	return err
}

// GetState queries the state of the dispenser.
func (s *Session) GetState(addr byte) (byte, error) {
	return s.query(addr, TypeGetState)
}

// CheckAll checks dispensers 1..count in order and stops at the first one
// reporting a non-zero status. A zero addr means all are healthy.
// A transmission error aborts the scan.
func (s *Session) CheckAll(count int) (addr, code byte, err error) {
	for i := 1; i <= count; i++ {
		if code, err = s.query(byte(i), TypeCheck); err != nil {
			return 0, 0, err
		}
		if code != 0 {
			return byte(i), code, nil
		}
	}
	return 0, 0, nil
}

// Check checks all enumerated dispensers.
func (s *Session) Check() (addr, code byte, err error) {
	return s.CheckAll(s.count)
}

// query sends the command and fetches the status byte with a RESPONSE.
func (s *Session) query(addr byte, typ Type) (byte, error) {
	if _, err := s.Exchange(NewRequest(addr, typ)); err != nil {
		return 0, err
	}
	reply, err := s.Exchange(NewRequest(addr, TypeResponse))
	if err != nil {
		return 0, err
	}
	code, _ := reply.Status()
	return code, nil
}
