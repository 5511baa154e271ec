package jop

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// LoadMicrocodeROM reads a microcode image: one hex value per line, each
// line a single microinstruction word in ROM order. Blank lines and lines
// starting with "//" are ignored, so a ROM dump can carry the assembler's
// own comments without a separate strip step.
func LoadMicrocodeROM(path string) ([]MicroWord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "jop: unable to open microcode ROM %s", path)
	}
	defer f.Close()
	return ParseMicrocodeROM(f)
}

// ParseMicrocodeROM decodes a microcode ROM from an already-open reader.
func ParseMicrocodeROM(r io.Reader) ([]MicroWord, error) {
	var words []MicroWord
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "//") {
			continue
		}
		v, err := strconv.ParseUint(text, 0, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "jop: microcode ROM line %d: %q", line, text)
		}
		words = append(words, MicroWord(v))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "jop: reading microcode ROM")
	}
	return words, nil
}

// LoadStackRAMInit reads a flat binary dump of 32-bit big-endian words used
// to pre-load a core's stack RAM before boot. A short file leaves the
// remainder of ram at its zero value.
func LoadStackRAMInit(path string, ram []uint32) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "jop: unable to open stack RAM image %s", path)
	}
	n := len(data) / 4
	if n > len(ram) {
		n = len(ram)
	}
	for i := 0; i < n; i++ {
		ram[i] = binary.BigEndian.Uint32(data[i*4 : i*4+4])
	}
	return nil
}
