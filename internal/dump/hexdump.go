package dump

import (
	"fmt"
	"io"
)

// HexDumpCArray renders buf as a C-style byte array initializer, one row
// of 12 bytes per line, the -c output mode's format.
func HexDumpCArray(w io.Writer, name string, buf []byte) error {
	if _, err := fmt.Fprintf(w, "static const unsigned char %s[] = {\n", name); err != nil {
		return err
	}
	for i := 0; i < len(buf); i += 12 {
		end := i + 12
		if end > len(buf) {
			end = len(buf)
		}
		if _, err := io.WriteString(w, "\t"); err != nil {
			return err
		}
		for j := i; j < end; j++ {
			if _, err := fmt.Fprintf(w, "0x%02x, ", buf[j]); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "};\n")
	return err
}
