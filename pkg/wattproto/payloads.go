package wattproto

import "fmt"

type decoderFunc func([]byte) (any, error)

// wrapDecoder converts a typed decoder into a generic decoderFunc.
func wrapDecoder[T any](f func([]byte) (T, error)) decoderFunc {
	return func(b []byte) (any, error) {
		return f(b)
	}
}

var decoderMap = map[uint16]decoderFunc{
	DPAnalogQuantity: wrapDecoder(DecodeAnalogQuantity),
	DPWarningInfo:    wrapDecoder(DecodeWarningInfo),
	DPProductInfo:    wrapDecoder(DecodeProductInfo),
}

// DecodePayload decodes a parsed frame's data section according to its
// start address, returning one of AnalogQuantity, WarningInfo or
// ProductInfo. Error frames are rejected with a RemoteError before any
// decoding; addresses without a registered decoder get a DecodeError.
func DecodePayload(f Frame) (any, error) {
	if f.IsError() {
		return nil, &RemoteError{FunctionCode: f.FunctionCode, StartAddress: f.StartAddress}
	}
	dec, ok := decoderMap[f.StartAddress]
	if !ok {
		return nil, &DecodeError{
			Payload: fmt.Sprintf("dp 0x%04X", f.StartAddress),
			Detail:  "no decoder for this data point",
		}
	}
	return dec(f.Data)
}
