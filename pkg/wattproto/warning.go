package wattproto

import "fmt"

// Status and warning registers keep their raw byte (undocumented bits stay
// visible) and expose the documented bits as named accessors.

// StatusRegister1 holds the voltage/current protection bits.
type StatusRegister1 byte

func (r StatusRegister1) CellOvercharge() bool       { return r&0x01 != 0 }
func (r StatusRegister1) CellOverdischarge() bool    { return r&0x02 != 0 }
func (r StatusRegister1) TotalOvercharge() bool      { return r&0x04 != 0 }
func (r StatusRegister1) TotalOverdischarge() bool   { return r&0x08 != 0 }
func (r StatusRegister1) ChargeOvercurrent() bool    { return r&0x10 != 0 }
func (r StatusRegister1) DischargeOvercurrent() bool { return r&0x20 != 0 }
func (r StatusRegister1) Hardware() bool             { return r&0x40 != 0 }
func (r StatusRegister1) ChargeVoltageHigh() bool    { return r&0x80 != 0 }

// StatusRegister2 holds the temperature protection bits.
type StatusRegister2 byte

func (r StatusRegister2) ChargeHighTemp() bool    { return r&0x01 != 0 }
func (r StatusRegister2) DischargeHighTemp() bool { return r&0x02 != 0 }
func (r StatusRegister2) ChargeLowTemp() bool     { return r&0x04 != 0 }
func (r StatusRegister2) DischargeLowTemp() bool  { return r&0x08 != 0 }
func (r StatusRegister2) MOSHighTemp() bool       { return r&0x10 != 0 }
func (r StatusRegister2) EnvHighTemp() bool       { return r&0x20 != 0 }
func (r StatusRegister2) EnvLowTemp() bool        { return r&0x40 != 0 }

// FaultRegister holds the hardware fault bits (status register 5).
type FaultRegister byte

func (r FaultRegister) Cell() bool         { return r&0x01 != 0 }
func (r FaultRegister) ChargeMOS() bool    { return r&0x02 != 0 }
func (r FaultRegister) DischargeMOS() bool { return r&0x04 != 0 }
func (r FaultRegister) Temperature() bool  { return r&0x08 != 0 }

// WarningRegister1 mirrors StatusRegister1 at warning (pre-protection)
// thresholds.
type WarningRegister1 byte

func (r WarningRegister1) CellOvercharge() bool       { return r&0x01 != 0 }
func (r WarningRegister1) CellOverdischarge() bool    { return r&0x02 != 0 }
func (r WarningRegister1) TotalOvercharge() bool      { return r&0x04 != 0 }
func (r WarningRegister1) TotalOverdischarge() bool   { return r&0x08 != 0 }
func (r WarningRegister1) ChargeOvercurrent() bool    { return r&0x10 != 0 }
func (r WarningRegister1) DischargeOvercurrent() bool { return r&0x20 != 0 }
func (r WarningRegister1) Hardware() bool             { return r&0x40 != 0 }
func (r WarningRegister1) ChargeVoltageHigh() bool    { return r&0x80 != 0 }

// WarningRegister2 holds the temperature warning bits. The bit order
// differs from StatusRegister2: MOS high temp sits at 0x40 here.
type WarningRegister2 byte

func (r WarningRegister2) ChargeHighTemp() bool    { return r&0x01 != 0 }
func (r WarningRegister2) DischargeHighTemp() bool { return r&0x02 != 0 }
func (r WarningRegister2) ChargeLowTemp() bool     { return r&0x04 != 0 }
func (r WarningRegister2) DischargeLowTemp() bool  { return r&0x08 != 0 }
func (r WarningRegister2) EnvHighTemp() bool       { return r&0x10 != 0 }
func (r WarningRegister2) EnvLowTemp() bool        { return r&0x20 != 0 }
func (r WarningRegister2) MOSHighTemp() bool       { return r&0x40 != 0 }

// WarningInfo is the warning/status data point (DP 0x008D): per-cell and
// per-sensor state bytes, the protection/fault/warning registers, and the
// per-cell balance bitfield.
type WarningInfo struct {
	CellCount             int
	CellStates            []byte
	TemperatureCount      int
	MOSTemperatureState   byte
	PCBTemperatureState   byte
	CellTemperatureStates []byte

	ChargeCurrentState    byte
	VoltageState          byte
	DischargeCurrentState byte
	BatteryMode           byte

	Status1  StatusRegister1
	Status2  StatusRegister2
	Status3  byte // undocumented bits, kept raw
	Status5  FaultRegister
	Warning1 WarningRegister1
	Warning2 WarningRegister2

	// BalanceStates has one entry per cell; true means balancing is active.
	BalanceStates []bool
}

// Protections lists the active protection flags by name.
func (w WarningInfo) Protections() []string {
	var out []string
	for _, f := range []struct {
		on   bool
		name string
	}{
		{w.Status1.CellOvercharge(), "cell_overcharge"},
		{w.Status1.CellOverdischarge(), "cell_overdischarge"},
		{w.Status1.TotalOvercharge(), "total_overcharge"},
		{w.Status1.TotalOverdischarge(), "total_overdischarge"},
		{w.Status1.ChargeOvercurrent(), "charge_overcurrent"},
		{w.Status1.DischargeOvercurrent(), "discharge_overcurrent"},
		{w.Status1.Hardware(), "hardware"},
		{w.Status1.ChargeVoltageHigh(), "charge_voltage_high"},
		{w.Status2.ChargeHighTemp(), "charge_high_temp"},
		{w.Status2.DischargeHighTemp(), "discharge_high_temp"},
		{w.Status2.ChargeLowTemp(), "charge_low_temp"},
		{w.Status2.DischargeLowTemp(), "discharge_low_temp"},
		{w.Status2.MOSHighTemp(), "mos_high_temp"},
		{w.Status2.EnvHighTemp(), "env_high_temp"},
		{w.Status2.EnvLowTemp(), "env_low_temp"},
	} {
		if f.on {
			out = append(out, f.name)
		}
	}
	return out
}

// Faults lists the active fault flags by name.
func (w WarningInfo) Faults() []string {
	var out []string
	for _, f := range []struct {
		on   bool
		name string
	}{
		{w.Status5.Cell(), "cell"},
		{w.Status5.ChargeMOS(), "charge_mos"},
		{w.Status5.DischargeMOS(), "discharge_mos"},
		{w.Status5.Temperature(), "temperature"},
	} {
		if f.on {
			out = append(out, f.name)
		}
	}
	return out
}

// Warnings lists the active warning flags by name.
func (w WarningInfo) Warnings() []string {
	var out []string
	for _, f := range []struct {
		on   bool
		name string
	}{
		{w.Warning1.CellOvercharge(), "cell_overcharge"},
		{w.Warning1.CellOverdischarge(), "cell_overdischarge"},
		{w.Warning1.TotalOvercharge(), "total_overcharge"},
		{w.Warning1.TotalOverdischarge(), "total_overdischarge"},
		{w.Warning1.ChargeOvercurrent(), "charge_overcurrent"},
		{w.Warning1.DischargeOvercurrent(), "discharge_overcurrent"},
		{w.Warning1.Hardware(), "hardware"},
		{w.Warning1.ChargeVoltageHigh(), "charge_voltage_high"},
		{w.Warning2.ChargeHighTemp(), "charge_high_temp"},
		{w.Warning2.DischargeHighTemp(), "discharge_high_temp"},
		{w.Warning2.ChargeLowTemp(), "charge_low_temp"},
		{w.Warning2.DischargeLowTemp(), "discharge_low_temp"},
		{w.Warning2.EnvHighTemp(), "env_high_temp"},
		{w.Warning2.EnvLowTemp(), "env_low_temp"},
		{w.Warning2.MOSHighTemp(), "mos_high_temp"},
	} {
		if f.on {
			out = append(out, f.name)
		}
	}
	return out
}

// DecodeWarningInfo decodes the data section of a warning info response.
// The trailing balance bitfield is ceil(cellCount/8) bytes, bit i of byte
// i/8 covering cell i.
func DecodeWarningInfo(data []byte) (WarningInfo, error) {
	r := &payloadReader{data: data}
	var w WarningInfo

	w.CellCount = int(r.u8())
	w.CellStates = make([]byte, 0, w.CellCount)
	for i := 0; i < w.CellCount && r.ok(); i++ {
		w.CellStates = append(w.CellStates, r.u8())
	}

	w.TemperatureCount = int(r.u8())
	w.MOSTemperatureState = r.u8()
	w.PCBTemperatureState = r.u8()
	for i := 0; i < w.TemperatureCount-2 && r.ok(); i++ {
		w.CellTemperatureStates = append(w.CellTemperatureStates, r.u8())
	}

	w.ChargeCurrentState = r.u8()
	w.VoltageState = r.u8()
	w.DischargeCurrentState = r.u8()
	w.BatteryMode = r.u8()
	w.Status1 = StatusRegister1(r.u8())
	w.Status2 = StatusRegister2(r.u8())
	w.Status3 = r.u8()
	r.skip(1) // reserved
	w.Status5 = FaultRegister(r.u8())
	r.skip(2) // reserved
	w.Warning1 = WarningRegister1(r.u8())
	w.Warning2 = WarningRegister2(r.u8())

	balanceBytes := (w.CellCount + 7) / 8
	w.BalanceStates = make([]bool, 0, w.CellCount)
	for i := 0; i < balanceBytes && r.ok(); i++ {
		b := r.u8()
		for bit := 0; bit < 8; bit++ {
			if cell := i*8 + bit; cell < w.CellCount {
				w.BalanceStates = append(w.BalanceStates, b&(1<<bit) != 0)
			}
		}
	}

	if !r.ok() {
		return WarningInfo{}, &DecodeError{
			Payload: "warning info",
			Detail:  fmt.Sprintf("declared counts overrun %d data bytes", len(data)),
		}
	}
	return w, nil
}
