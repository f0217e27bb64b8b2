// internal/printer/hardware.go
package printer

import "escpos-service/internal/command"

// Init resets the printer and flushes.
func (p *Printer) Init() *Printer {
	return p.commit("init", p.begin().cmd(command.HW_INIT)).syncFlush()
}

// HardwareSelect selects the printer as the peripheral device.
func (p *Printer) HardwareSelect() *Printer {
	return p.commit("hardware_select", p.begin().cmd(command.HW_SELECT))
}

// CashDraw pulses the cash drawer kick-out connector pin, 2 or 5.
func (p *Printer) CashDraw(pin int) *Printer {
	s := p.begin()
	switch pin {
	case 2:
		s.cmd(command.CD_KICK_2)
	case 5:
		s.cmd(command.CD_KICK_5)
	default:
		s.invalid("cash drawer pin %d, want 2 or 5", pin)
	}
	return p.commit("cash_draw", s)
}

// Cut performs a full cut and flushes.
func (p *Printer) Cut() *Printer {
	return p.commit("cut", p.begin().cmd(command.PAPER_FULL_CUT)).syncFlush()
}

// PartialCut performs a partial cut and flushes.
func (p *Printer) PartialCut() *Printer {
	return p.commit("partial_cut", p.begin().cmd(command.PAPER_PART_CUT)).syncFlush()
}
