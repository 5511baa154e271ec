package jop

import (
	"encoding/binary"
	"testing"
)

func buildImage(words ...uint32) []byte {
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		binary.BigEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

func TestParseImageHeaderAndDescriptor(t *testing.T) {
	// word0=magic, word1=mp(=2), word2=descriptor(code_start=5,length=3)
	descriptor := uint32(5)<<10 | 3
	data := buildImage(0xCAFEBABE, 2, descriptor, 0, 0)

	img, err := ParseImage(data, 0x1000, 0x2000)
	if err != nil {
		t.Fatalf("ParseImage: %v", err)
	}
	if img.Header.Magic != 0xCAFEBABE {
		t.Errorf("got magic=%#x, want 0xcafebabe", img.Header.Magic)
	}
	if img.Header.Mp != 2 {
		t.Errorf("got mp=%d, want 2", img.Header.Mp)
	}
	if img.Descriptor.CodeStart != 5 || img.Descriptor.Length != 3 {
		t.Errorf("got descriptor=%+v, want {CodeStart:5 Length:3}", img.Descriptor)
	}
	if img.HandlePoolBase != 0x1000 || img.HeapBase != 0x2000 {
		t.Errorf("got handlePoolBase=%#x heapBase=%#x, want 0x1000/0x2000", img.HandlePoolBase, img.HeapBase)
	}
	if len(img.Words) != 5 {
		t.Errorf("got %d words, want 5", len(img.Words))
	}
}

func TestParseImageRejectsShortOrMisalignedData(t *testing.T) {
	if _, err := ParseImage([]byte{1, 2, 3}, 0, 0); err == nil {
		t.Error("ParseImage accepted data shorter than a header")
	}
	if _, err := ParseImage(buildImage(1, 2, 3)[:11], 0, 0); err == nil {
		t.Error("ParseImage accepted a non-multiple-of-4 byte length")
	}
}

func TestParseImageMpOutOfRangeLeavesZeroDescriptor(t *testing.T) {
	data := buildImage(0xCAFEBABE, 999) // mp points past the end of the image
	img, err := ParseImage(data, 0, 0)
	if err != nil {
		t.Fatalf("ParseImage: %v", err)
	}
	if img.Descriptor != (MethodDescriptor{}) {
		t.Errorf("got descriptor=%+v, want the zero value", img.Descriptor)
	}
}

func TestJopImageCopyInto(t *testing.T) {
	data := buildImage(0xCAFEBABE, 1, 10, 20, 30)
	img, err := ParseImage(data, 0, 0)
	if err != nil {
		t.Fatalf("ParseImage: %v", err)
	}

	mem := make([]uint32, 3)
	img.CopyInto(mem)
	want := []uint32{0xCAFEBABE, 1, 10}
	for i, w := range want {
		if mem[i] != w {
			t.Errorf("mem[%d] = %#x, want %#x", i, mem[i], w)
		}
	}
}

func TestDecodeDescriptorPacking(t *testing.T) {
	d := decodeDescriptor(uint32(100)<<10 | 42)
	if d.CodeStart != 100 || d.Length != 42 {
		t.Errorf("got %+v, want {CodeStart:100 Length:42}", d)
	}
}
