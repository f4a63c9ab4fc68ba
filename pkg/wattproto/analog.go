package wattproto

import "fmt"

// AnalogQuantity is the main battery data point (DP 0x008C): cell voltages,
// temperatures, current, capacity and state of charge.
type AnalogQuantity struct {
	CellCount         int
	CellVoltages      []float64 // volts
	TemperatureCount  int
	MOSTemperature    float64 // degrees C
	PCBTemperature    float64
	CellTemperatures  []float64
	Current           float64 // amps, negative when discharging
	ModuleVoltage     float64
	RemainingCapacity float64 // Ah
	TotalCapacity     float64
	CycleNumber       int
	DesignCapacity    float64
	SOC               int // percent

	// Extension is nil on old-protocol responses. Callers can distinguish
	// "not reported" from "reported as zero".
	Extension *AnalogExtension
}

// AnalogExtension holds the trailing block new-protocol devices append to
// the analog quantity payload.
type AnalogExtension struct {
	SOH                int     // percent
	CumulativeCapacity float64 // Ah
	RemainingTimeMin   int     // minutes, signed
	BalanceCurrent     float64 // amps
}

// Raw temperatures are Kelvin tenths with a 2730 offset.
func decodeTemperature(raw uint16) float64 {
	return (float64(raw) - 2730) / 10.0
}

// DecodeAnalogQuantity decodes the data section of an analog quantity
// response. The extension block is decoded only when at least 18 bytes
// remain after the base fields.
func DecodeAnalogQuantity(data []byte) (AnalogQuantity, error) {
	r := &payloadReader{data: data}
	var aq AnalogQuantity

	aq.CellCount = int(r.u8())
	aq.CellVoltages = make([]float64, 0, aq.CellCount)
	for i := 0; i < aq.CellCount && r.ok(); i++ {
		aq.CellVoltages = append(aq.CellVoltages, float64(r.u16())/1000.0)
	}

	aq.TemperatureCount = int(r.u8())
	aq.MOSTemperature = decodeTemperature(r.u16())
	aq.PCBTemperature = decodeTemperature(r.u16())
	for i := 0; i < aq.TemperatureCount-2 && r.ok(); i++ {
		aq.CellTemperatures = append(aq.CellTemperatures, decodeTemperature(r.u16()))
	}

	aq.Current = DecodeCurrentSigned(r.u8(), r.u8())
	aq.ModuleVoltage = float64(r.u16()) / 100.0
	aq.RemainingCapacity = float64(r.u16()) / 10.0
	aq.TotalCapacity = float64(r.u16()) / 10.0
	aq.CycleNumber = int(r.u16())
	aq.DesignCapacity = float64(r.u16()) / 10.0
	aq.SOC = int(r.u16())

	if r.ok() && r.remaining() >= 18 {
		ext := &AnalogExtension{}
		ext.SOH = int(r.u16())
		ext.CumulativeCapacity = float64(r.u32()) / 10.0
		ext.RemainingTimeMin = int(r.i32())
		r.skip(6) // three reserved uint16s
		ext.BalanceCurrent = DecodeCurrentSigned(r.u8(), r.u8())
		aq.Extension = ext
	}

	if !r.ok() {
		return AnalogQuantity{}, &DecodeError{
			Payload: "analog quantity",
			Detail:  fmt.Sprintf("declared counts overrun %d data bytes", len(data)),
		}
	}
	return aq, nil
}
