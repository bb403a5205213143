package simplefs

import (
	"encoding/binary"
	"testing"
)

func TestSuperBlockRoundTripLittleEndian(t *testing.T) {
	sb := &SuperBlock{
		Magic:            MagicNumber,
		InodesCount:      12,
		FreeBlocks:       900,
		NrBlocks:         1000,
		InodeBlockStart:  1,
		InodeBitmapStart: 5,
		BlockBitmapStart: 6,
		DataBlockStart:   10,
		BlockSize:        DefaultBlockSize,
	}
	sb.Version = versionFieldForOrder(binary.LittleEndian, true)

	raw, err := encodeSuperBlock(binary.LittleEndian, sb)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, order, err := decodeSuperBlock(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if order != binary.LittleEndian {
		t.Fatalf("got order %v, want little endian", order)
	}
	if *got != *sb {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, sb)
	}
}

func TestSuperBlockRoundTripBigEndian(t *testing.T) {
	sb := &SuperBlock{
		Magic:     MagicNumber,
		NrBlocks:  2048,
		BlockSize: DefaultBlockSize,
	}
	sb.Version = versionFieldForOrder(binary.BigEndian, false)

	raw, err := encodeSuperBlock(binary.BigEndian, sb)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, order, err := decodeSuperBlock(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if order != binary.BigEndian {
		t.Fatalf("got order %v, want big endian", order)
	}
	if *got != *sb {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, sb)
	}
}

func TestDecodeSuperBlockRejectsBadMagic(t *testing.T) {
	raw := make([]byte, DefaultBlockSize)
	if _, _, err := decodeSuperBlock(raw); err != ErrCorruptHeader {
		t.Fatalf("got %v, want ErrCorruptHeader", err)
	}
}

func TestInodeRoundTrip(t *testing.T) {
	ino := &Inode{
		Mode:                uint64(S_IFREG | 0644),
		InodeNo:             7,
		DataBlockNumber:     42,
		CTime:               1000,
		MTime:               2000,
		IndirectBlockNumber: 0,
		Size:                4096,
	}

	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		raw, err := encodeInode(order, ino)
		if err != nil {
			t.Fatalf("encode (%v): %v", order, err)
		}
		if len(raw) != InodeRecordSize {
			t.Fatalf("encoded inode is %d bytes, want %d", len(raw), InodeRecordSize)
		}
		got, err := decodeInode(order, raw)
		if err != nil {
			t.Fatalf("decode (%v): %v", order, err)
		}
		if *got != *ino {
			t.Fatalf("round trip mismatch (%v): got %+v, want %+v", order, got, ino)
		}
	}
}
