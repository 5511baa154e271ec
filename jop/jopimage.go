package jop

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
)

// JopHeader is the fixed leading portion of a .jop program image: word 0
// is a header, word 1 is mp (a pointer to the boot method's descriptor).
// Decoded with a single binary.Read against a tagged struct rather than
// hand-rolled byte indexing.
type JopHeader struct {
	Magic uint32 // word 0
	Mp    uint32 // word 1: pointer to the boot method's descriptor
}

// MethodDescriptor is the boot method's descriptor word, encoding
// (code_start << 10) | length.
type MethodDescriptor struct {
	CodeStart uint32
	Length    uint32
}

func decodeDescriptor(word uint32) MethodDescriptor {
	return MethodDescriptor{CodeStart: word >> 10, Length: word & 0x3FF}
}

// JopImage is a parsed .jop program image: the header, the boot method
// descriptor, and the word-addressed memory regions the memory controller
// and bytecode fetch unit read from (by convention: handle pool begins
// at a fixed offset; heap begins after).
type JopImage struct {
	Header     JopHeader
	Descriptor MethodDescriptor

	// Words is the full image as loaded, word-addressed from word 0. The
	// memory controller and fetch unit read directly against this slice
	// (or a copy merged into the shared backing memory, depending on how
	// the harness wires things) rather than a separate code/handle/heap
	// split, since the partition between them is only fixed by
	// convention, not a parseable table.
	Words []uint32

	HandlePoolBase uint32
	HeapBase       uint32
}

// LoadImage parses a .jop file. Word 0 is the header, word 1 is mp; the
// descriptor at Words[mp] (word-addressed) encodes (code_start<<10)|length.
func LoadImage(path string, handlePoolBase, heapBase uint32) (*JopImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "jop: unable to open image %s", path)
	}
	return ParseImage(data, handlePoolBase, heapBase)
}

// ParseImage decodes an in-memory .jop image. Words are big-endian,
// matching the boot image format laid out in word 0/word 1 above.
func ParseImage(data []byte, handlePoolBase, heapBase uint32) (*JopImage, error) {
	if len(data) < 8 || len(data)%4 != 0 {
		return nil, errors.New("jop: image is not a whole number of 32-bit words, or too short for a header")
	}
	buf := bytes.NewReader(data)

	var header JopHeader
	if err := binary.Read(buf, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrap(err, "jop: unable to parse image header")
	}

	words := make([]uint32, len(data)/4)
	if err := binary.Read(bytes.NewReader(data), binary.BigEndian, words); err != nil {
		return nil, errors.Wrap(err, "jop: unable to read image words")
	}

	img := &JopImage{
		Header:         header,
		Words:          words,
		HandlePoolBase: handlePoolBase,
		HeapBase:       heapBase,
	}
	if int(header.Mp) < len(words) {
		img.Descriptor = decodeDescriptor(words[header.Mp])
	}
	return img, nil
}

// CopyInto merges the image's words into a backing memory, starting at
// word 0, the same way Bus.LoadBytes copies a ROM into RAM
// at a fixed offset.
func (img *JopImage) CopyInto(mem []uint32) {
	n := len(img.Words)
	if n > len(mem) {
		n = len(mem)
	}
	copy(mem[:n], img.Words[:n])
}
