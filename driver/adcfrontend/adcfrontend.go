// Package adcfrontend drives a UART-attached two-channel ADC front
// end over a serial port, using github.com/tarm/serial for the
// transport (grounded on mjolnir.Open's fallback-device-list dial
// pattern) and a CRC8/sync-byte-framed one-shot read protocol
// (grounded on driver/tmc2209/uart.go's datagram framing, adapted from
// its single-pin PIO UART to a standard async serial link).
package adcfrontend

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/tarm/serial"
)

const (
	baudRate = 115200

	syncByte = 0xA5

	readCmd = 0x01

	// replyLen is sync + cmd + 2 code fields (uint16 LE each) + crc8.
	replyLen = 1 + 1 + 2 + 2 + 1

	readTimeout = 50 * time.Millisecond
)

// Device is one opened ADC front-end connection.
type Device struct {
	port io.ReadWriteCloser
	sem  chan struct{}
}

// Open dials the ADC front-end over serial. If dev is empty, the
// platform's conventional device list is tried in order, matching
// mjolnir.Open.
func Open(dev string) (*Device, error) {
	var devices []string
	if dev != "" {
		devices = append(devices, dev)
	} else {
		switch runtime.GOOS {
		case "windows":
			devices = append(devices, "COM4")
		case "linux":
			devices = append(devices, "/dev/ttyACM0", "/dev/ttyUSB0")
		}
	}
	if len(devices) == 0 {
		return nil, errors.New("adcfrontend: no device specified")
	}

	var firstErr error
	for _, d := range devices {
		cfg := &serial.Config{Name: d, Baud: baudRate, ReadTimeout: readTimeout}
		port, err := serial.OpenPort(cfg)
		if err == nil {
			dev := &Device{port: port, sem: make(chan struct{}, 1)}
			dev.sem <- struct{}{}
			return dev, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("adcfrontend: %w", firstErr)
}

// Close releases the underlying serial port.
func (d *Device) Close() error {
	return d.port.Close()
}

// ReadRaw performs one round-trip read-both-channels transaction and
// returns the raw 12-bit current and voltage ADC codes, satisfying
// power.RawReader and sampler.RawReader.
func (d *Device) ReadRaw(ctx context.Context) (currentCode, voltageCode uint16, err error) {
	select {
	case <-d.sem:
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	}
	defer func() { d.sem <- struct{}{} }()

	req := [2]byte{syncByte, readCmd}
	if _, err := d.port.Write(req[:]); err != nil {
		return 0, 0, fmt.Errorf("adcfrontend: write: %w", err)
	}

	reply := make([]byte, replyLen)
	if _, err := io.ReadFull(d.port, reply); err != nil {
		return 0, 0, fmt.Errorf("adcfrontend: read: %w", err)
	}

	if reply[0] != syncByte {
		return 0, 0, errors.New("adcfrontend: invalid sync byte")
	}
	if reply[1] != readCmd {
		return 0, 0, errors.New("adcfrontend: unexpected reply command")
	}
	if crc8(reply[:replyLen-1]) != reply[replyLen-1] {
		return 0, 0, errors.New("adcfrontend: invalid CRC for reply datagram")
	}

	currentCode = binary.LittleEndian.Uint16(reply[2:4])
	voltageCode = binary.LittleEndian.Uint16(reply[4:6])
	return currentCode, voltageCode, nil
}

// crc8 matches the checksum polynomial used by driver/tmc2209/uart.go,
// reused here for a different datagram shape.
func crc8(data []byte) byte {
	crc := byte(0)
	for _, b := range data {
		for i := 0; i < 8; i++ {
			xor := (crc>>7)^(b&0b1) != 0
			crc <<= 1
			b >>= 1
			if xor {
				crc ^= 0b111
			}
		}
	}
	return crc
}
