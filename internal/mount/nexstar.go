package mount

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"time"

	"go.bug.st/serial"

	"github.com/banshee-data/sattrack/internal/units"
)

// revolution is the hand control's 32-bit angle resolution: positions on the
// wire are fractions of a full turn scaled to 2^32.
const revolution = 1 << 32

// axis device IDs for passthrough motor commands
const (
	azmDevice = 16
	altDevice = 17
)

// NexStar speaks the Celestron hand-control serial protocol. Every command
// is a short request answered by a payload terminated with '#'; the link is
// strictly command/response, so a single mutex-free owner issues commands
// sequentially (the tracking loop holds exclusive ownership while running).
type NexStar struct {
	port io.ReadWriteCloser
	r    *bufio.Reader
}

// Open connects to a hand control on the named serial port (9600 8N1) and
// verifies the link with an echo command.
func Open(portName string) (*NexStar, error) {
	mode := &serial.Mode{
		BaudRate: 9600,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(3500 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	hc := NewNexStar(port)
	if err := hc.Ping(); err != nil {
		port.Close()
		return nil, err
	}
	return hc, nil
}

// NewNexStar wraps an existing transport. Tests inject a scripted port here.
func NewNexStar(port io.ReadWriteCloser) *NexStar {
	return &NexStar{port: port, r: bufio.NewReader(port)}
}

// Close closes the underlying port.
func (hc *NexStar) Close() error {
	return hc.port.Close()
}

// exchange writes a command and reads the '#'-terminated response, returning
// the payload without the terminator.
func (hc *NexStar) exchange(cmd []byte) ([]byte, error) {
	if _, err := hc.port.Write(cmd); err != nil {
		return nil, fmt.Errorf("%w: write %q: %v", ErrCommandFailed, cmd[0], err)
	}
	payload, err := hc.r.ReadBytes('#')
	if err != nil {
		return nil, fmt.Errorf("%w: read response to %q: %v", ErrCommandFailed, cmd[0], err)
	}
	return payload[:len(payload)-1], nil
}

// Ping verifies the link by asking the hand control to echo a byte.
func (hc *NexStar) Ping() error {
	resp, err := hc.exchange([]byte{'K', 'x'})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	if len(resp) != 1 || resp[0] != 'x' {
		return fmt.Errorf("%w: echo returned %q", ErrNotConnected, resp)
	}
	return nil
}

// degreesToUnits converts degrees to the wire's fraction-of-revolution
// format.
func degreesToUnits(deg float64) uint32 {
	frac := units.NormalizeDegrees(deg) / 360
	// round through uint64: values just under 360 degrees can round up to
	// a full revolution, which must wrap to zero
	return uint32(uint64(math.Round(frac*revolution)) % revolution)
}

// unitsToDegrees converts a wire position back to degrees in [0, 360).
func unitsToDegrees(u uint32) float64 {
	return float64(u) / revolution * 360
}

// GotoAzAlt issues a precise goto. The command is accepted immediately; poll
// GotoInProgress for completion.
func (hc *NexStar) GotoAzAlt(az, alt float64) error {
	cmd := fmt.Sprintf("b%08X,%08X", degreesToUnits(az), degreesToUnits(alt))
	_, err := hc.exchange([]byte(cmd))
	return err
}

// GotoInProgress reports whether a goto is still running.
func (hc *NexStar) GotoInProgress() (bool, error) {
	resp, err := hc.exchange([]byte{'L'})
	if err != nil {
		return false, err
	}
	if len(resp) != 1 {
		return false, fmt.Errorf("%w: goto status returned %q", ErrCommandFailed, resp)
	}
	return resp[0] == '1', nil
}

// Position reads the current precise azimuth and altitude in degrees.
func (hc *NexStar) Position() (float64, float64, error) {
	resp, err := hc.exchange([]byte{'z'})
	if err != nil {
		return 0, 0, err
	}
	var azU, altU uint32
	if _, err := fmt.Sscanf(string(resp), "%08X,%08X", &azU, &altU); err != nil {
		return 0, 0, fmt.Errorf("%w: position returned %q", ErrCommandFailed, resp)
	}
	// the altitude axis is signed: a mount parked just below the horizon
	// reports a fraction-of-revolution near a full turn
	alt := unitsToDegrees(altU)
	if alt > 180 {
		alt -= 360
	}
	return unitsToDegrees(azU), alt, nil
}

// TrackingMode reads the onboard tracking mode.
func (hc *NexStar) TrackingMode() (Mode, error) {
	resp, err := hc.exchange([]byte{'t'})
	if err != nil {
		return 0, err
	}
	if len(resp) != 1 {
		return 0, fmt.Errorf("%w: tracking mode returned %q", ErrCommandFailed, resp)
	}
	return Mode(resp[0]), nil
}

// SetTrackingMode sets the onboard tracking mode.
func (hc *NexStar) SetTrackingMode(m Mode) error {
	_, err := hc.exchange([]byte{'T', byte(m)})
	return err
}

// SlewAtRate commands a variable-rate slew on both axes, in arcseconds per
// second, via motor passthrough commands. The firmware takes the rate scaled
// by 4 as a 16-bit value with direction encoded in the opcode.
func (hc *NexStar) SlewAtRate(azRate, altRate int) error {
	if err := hc.slewAxis(azmDevice, azRate); err != nil {
		return err
	}
	return hc.slewAxis(altDevice, altRate)
}

func (hc *NexStar) slewAxis(device byte, rate int) error {
	opcode := byte(6) // positive direction
	if rate < 0 {
		opcode = 7
		rate = -rate
	}
	scaled := rate * 4
	if scaled > math.MaxUint16 {
		scaled = math.MaxUint16
	}
	cmd := []byte{'P', 3, device, opcode, byte(scaled >> 8), byte(scaled & 0xFF), 0, 0}
	_, err := hc.exchange(cmd)
	return err
}

// StopSlew halts motion on both axes.
func (hc *NexStar) StopSlew() error {
	return hc.SlewAtRate(0, 0)
}

// SetLocation programs the observer's position into the hand control.
func (hc *NexStar) SetLocation(latitude, longitude float64) error {
	lat := units.DecimalToDMS(latitude)
	lon := units.DecimalToDMS(longitude)

	boolByte := func(b bool) byte {
		if b {
			return 1
		}
		return 0
	}
	cmd := []byte{
		'W',
		byte(lat.Degrees), byte(lat.Minutes), byte(lat.Seconds), boolByte(lat.Negative),
		byte(lon.Degrees), byte(lon.Minutes), byte(lon.Seconds), boolByte(lon.Negative),
	}
	_, err := hc.exchange(cmd)
	return err
}

// SetTime programs the given local time and UTC offset into the hand
// control.
func (hc *NexStar) SetTime(t time.Time) error {
	_, offsetSeconds := t.Zone()
	offsetHours := offsetSeconds / 3600

	dst := byte(0)
	if t.IsDST() {
		dst = 1
	}
	cmd := []byte{
		'H',
		byte(t.Hour()), byte(t.Minute()), byte(t.Second()),
		byte(int(t.Month())), byte(t.Day()), byte(t.Year() - 2000),
		byte(int8(offsetHours)), // two's complement for western longitudes
		dst,
	}
	_, err := hc.exchange(cmd)
	return err
}
