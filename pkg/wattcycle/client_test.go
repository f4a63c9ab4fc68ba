package wattcycle

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graywatt/wattcycle-ble/internal/ble"
	"github.com/graywatt/wattcycle-ble/pkg/wattproto"
)

// Captured responses from a real XDZN_001 4-cell pack.
var (
	analogResponse = []byte{
		0x7E, 0x00, 0x01, 0x03, 0x00, 0x8C, 0x00, 0x20,
		0x04, 0x0C, 0xDE, 0x0C, 0xDD, 0x0C, 0xDF, 0x0C,
		0xDA, 0x04, 0x0B, 0x65, 0x0B, 0x70, 0x0B, 0x5A,
		0x0B, 0x5A, 0x40, 0x00, 0x05, 0x25, 0x07, 0x2A,
		0x0C, 0x44, 0x00, 0x05, 0x0C, 0x44, 0x00, 0x3A,
		0x4B, 0x22, 0x0D,
	}

	productResponse = []byte{
		0x7E, 0x00, 0x01, 0x03, 0x00, 0x92, 0x00, 0x3C,
		0x57, 0x54, 0x31, 0x32, 0x5F, 0x32, 0x30, 0x30,
		0x30, 0x34, 0x53, 0x57, 0x31, 0x30, 0x5F, 0x4C,
		0x34, 0x34, 0x37, 0x00, 0x20, 0x20, 0x20, 0x20,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x36, 0x30, 0x30, 0x31, 0x36, 0x30, 0x31, 0x36,
		0x32, 0x30, 0x37, 0x32, 0x37, 0x30, 0x30, 0x30,
		0x31, 0x00, 0x00, 0x00,
		0x52, 0xAA, 0x0D,
	}
)

// patched returns a copy of raw with b[idx] = val and the CRC refreshed.
func patched(raw []byte, idx int, val byte) []byte {
	b := make([]byte, len(raw))
	copy(b, raw)
	b[idx] = val
	binary.BigEndian.PutUint16(b[len(b)-3:len(b)-1], wattproto.CRC16(b[:len(b)-3]))
	return b
}

// chunks splits a frame into transport-sized fragments.
func chunks(raw []byte, size int) [][]byte {
	var out [][]byte
	for len(raw) > 0 {
		n := size
		if n > len(raw) {
			n = len(raw)
		}
		out = append(out, raw[:n])
		raw = raw[n:]
	}
	return out
}

func TestReadAnalogQuantityEndToEnd(t *testing.T) {
	mock := ble.NewMock()
	mock.Respond = func(frame []byte) [][]byte {
		// Typical BLE MTU delivers ~20-byte fragments.
		return chunks(analogResponse, 20)
	}

	c := New(mock, WithResponseTimeout(time.Second))
	aq, err := c.ReadAnalogQuantity(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 58, aq.SOC)
	assert.Equal(t, 0.0, aq.Current)
	require.Len(t, aq.CellVoltages, 4)
	assert.InDelta(t, 3.294, aq.CellVoltages[0], 0.001)
	assert.InDelta(t, 3.290, aq.CellVoltages[3], 0.001)

	// The request on the wire is an old-protocol analog read.
	written := mock.Written()
	require.Len(t, written, 1)
	req, err := wattproto.ParseFrame(written[0])
	require.NoError(t, err)
	assert.Equal(t, byte(wattproto.FuncRead), req.FunctionCode)
	assert.Equal(t, wattproto.DPAnalogQuantity, req.StartAddress)
	assert.Equal(t, byte(wattproto.VersionOld), req.Version)
}

func TestDetectFrameHead(t *testing.T) {
	mock := ble.NewMock()
	mock.Respond = func(frame []byte) [][]byte {
		if frame[0] != wattproto.FrameHeadAlt {
			return nil // primary head: no response, let it time out
		}
		return [][]byte{patched(productResponse, 0, wattproto.FrameHeadAlt)}
	}

	c := New(mock, WithDetectTimeout(50*time.Millisecond))
	head, err := c.DetectFrameHead(context.Background())
	require.NoError(t, err)
	assert.Equal(t, byte(wattproto.FrameHeadAlt), head)
	assert.Equal(t, byte(wattproto.FrameHeadAlt), c.FrameHead())

	written := mock.Written()
	require.Len(t, written, 2)
	assert.Equal(t, byte(wattproto.FrameHead), written[0][0])
	assert.Equal(t, byte(wattproto.FrameHeadAlt), written[1][0])

	// Detection probes with a minimal product info read.
	probe, err := wattproto.ParseFrame(written[0])
	require.NoError(t, err)
	assert.Equal(t, wattproto.DPProductInfo, probe.StartAddress)

	// Subsequent reads use the detected head.
	mock.Respond = func(frame []byte) [][]byte {
		return [][]byte{patched(analogResponse, 0, wattproto.FrameHeadAlt)}
	}
	_, err = c.ReadAnalogQuantity(context.Background())
	require.NoError(t, err)
	written = mock.Written()
	assert.Equal(t, byte(wattproto.FrameHeadAlt), written[2][0])
}

func TestDetectFrameHeadAllCandidatesFail(t *testing.T) {
	mock := ble.NewMock()

	c := New(mock, WithDetectTimeout(20*time.Millisecond))
	_, err := c.DetectFrameHead(context.Background())
	assert.ErrorIs(t, err, wattproto.ErrTimeout)
	assert.Len(t, mock.Written(), 2)
}

func TestResponseTimeout(t *testing.T) {
	mock := ble.NewMock()

	c := New(mock, WithResponseTimeout(30*time.Millisecond))
	start := time.Now()
	_, err := c.ReadProductInfo(context.Background())
	assert.ErrorIs(t, err, wattproto.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestTimeoutReportsPartialBytes(t *testing.T) {
	mock := ble.NewMock()
	mock.Respond = func(frame []byte) [][]byte {
		return [][]byte{productResponse[:10]} // never completes
	}

	c := New(mock, WithResponseTimeout(30*time.Millisecond))
	_, err := c.ReadProductInfo(context.Background())
	require.Error(t, err)
	var te *wattproto.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 10, te.Buffered)
}

func TestRemoteError(t *testing.T) {
	mock := ble.NewMock()
	mock.Respond = func(frame []byte) [][]byte {
		return [][]byte{patched(productResponse, 3, wattproto.FuncError)}
	}

	c := New(mock, WithResponseTimeout(time.Second))
	_, err := c.ReadProductInfo(context.Background())
	assert.ErrorIs(t, err, wattproto.ErrRemote)
}

func TestCorruptResponseIsFramingError(t *testing.T) {
	bad := make([]byte, len(productResponse))
	copy(bad, productResponse)
	bad[10] ^= 0xFF // data corrupted, CRC stale

	mock := ble.NewMock()
	mock.Respond = func(frame []byte) [][]byte {
		return [][]byte{bad}
	}

	c := New(mock, WithResponseTimeout(time.Second))
	_, err := c.ReadProductInfo(context.Background())
	assert.ErrorIs(t, err, wattproto.ErrFraming)
}

func TestAuthenticate(t *testing.T) {
	mock := ble.NewMock()

	c := New(mock, WithSettleDelay(0))
	require.NoError(t, c.Authenticate(context.Background()))

	auths := mock.AuthWrites()
	require.Len(t, auths, 1)
	assert.Equal(t, []byte("HiLink"), auths[0])
}

func TestNewProtocolUpgrade(t *testing.T) {
	mock := ble.NewMock()
	mock.Respond = func(frame []byte) [][]byte {
		if binary.BigEndian.Uint16(frame[4:6]) == wattproto.DPProductInfo {
			// Device self-reports a new-protocol version byte.
			return [][]byte{patched(productResponse, 1, 0x04)}
		}
		return [][]byte{analogResponse}
	}

	c := New(mock, WithResponseTimeout(time.Second))
	require.False(t, c.NewProtocol())

	_, err := c.ReadProductInfo(context.Background())
	require.NoError(t, err)
	assert.True(t, c.NewProtocol())

	// Analog reads now request the new protocol and carry INFO_DATA.
	_, err = c.ReadAnalogQuantity(context.Background())
	require.NoError(t, err)

	written := mock.Written()
	require.Len(t, written, 2)
	req := written[1]
	assert.Len(t, req, wattproto.MinFrameSize+7)
	assert.Equal(t, byte(wattproto.VersionNew), req[1])
	assert.Equal(t, []byte{0x00, 0x05, 0x01, 0x00, 0x20, 0x00, 0x20}, req[8:15])
}

func TestWriteCommand(t *testing.T) {
	mock := ble.NewMock()
	mock.Respond = func(frame []byte) [][]byte {
		// Echo a minimal empty-data response for the written address.
		resp, _ := wattproto.BuildWriteFrame(wattproto.FrameHead, wattproto.DeviceAddr, 0x0101, nil)
		return [][]byte{resp}
	}

	c := New(mock, WithResponseTimeout(time.Second))
	frame, err := c.Write(context.Background(), 0x0101, []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0101), frame.StartAddress)

	written := mock.Written()
	require.Len(t, written, 1)
	req, err := wattproto.ParseFrame(written[0])
	require.NoError(t, err)
	assert.Equal(t, byte(wattproto.FuncWrite), req.FunctionCode)
	assert.Equal(t, []byte{0x01}, req.Data)
}

func TestContextCancellation(t *testing.T) {
	mock := ble.NewMock()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	c := New(mock, WithResponseTimeout(10*time.Second))
	_, err := c.ReadProductInfo(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
