package wattproto

import (
	"bytes"
	"fmt"
	"strings"
)

// ProductInfo is the device identity data point (DP 0x0092): three 20-byte
// null-padded ASCII fields.
type ProductInfo struct {
	FirmwareVersion  string
	ManufacturerName string
	SerialNumber     string
}

const productInfoSize = 60

// DecodeProductInfo decodes a product info payload. The payload must be
// exactly 60 bytes; each field is cut at the first null and whitespace
// trimmed.
func DecodeProductInfo(data []byte) (ProductInfo, error) {
	if len(data) != productInfoSize {
		return ProductInfo{}, &DecodeError{
			Payload: "product info",
			Detail:  fmt.Sprintf("want %d bytes, got %d", productInfoSize, len(data)),
		}
	}
	return ProductInfo{
		FirmwareVersion:  trimPadded(data[0:20]),
		ManufacturerName: trimPadded(data[20:40]),
		SerialNumber:     trimPadded(data[40:60]),
	}, nil
}

func trimPadded(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}
