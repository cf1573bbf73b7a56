package driver

import "io"

// Minimal kernel console. The real driver pushes bytes into the UART data
// register; this model writes them to an io.Writer instead
type UART struct {
	w io.Writer
}

// Returns a console writing to `w`
func NewUART(w io.Writer) *UART {
	return &UART{w: w}
}

// Writes a string
func (u *UART) Puts(s string) {
	io.WriteString(u.w, s)
}

const hexDigits = "0123456789abcdef"

// Writes `v` in hexadecimal without leading zeroes
func (u *UART) Hex(v uint64) {
	var buf [16]byte
	i := len(buf)
	for {
		i--
		buf[i] = hexDigits[v&0xf]
		v >>= 4
		if v == 0 {
			break
		}
	}
	u.w.Write(buf[i:])
}

// Writes `v` in decimal
func (u *UART) Decimal(v uint64) {
	var buf [20]byte
	i := len(buf)
	for {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	u.w.Write(buf[i:])
}

// Writes a "[key         ] value" boot message, the key padded to 12
// characters
func (u *UART) PrintMsg(key, val string) {
	u.Puts("[")
	u.Puts(key)
	for i := len(key); i < 12; i++ {
		u.Puts(" ")
	}
	u.Puts("] ")
	u.Puts(val)
	u.Puts("\n")
}
