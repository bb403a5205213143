package simplefs

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"unsafe"
)

// nativeLittleEndian reports the host machine's byte order, used as
// Format's default when no explicit WithBigEndian option is given — the
// original implementation always encoded in whatever order the writing
// machine ran (spec §9(a)).
func nativeLittleEndian() bool {
	var x uint16 = 1
	return *(*byte)(unsafe.Pointer(&x)) == 1
}

// nativeOrder returns the byte order Format would pick with no explicit
// WithBigEndian option.
func nativeOrder() binary.ByteOrder {
	if nativeLittleEndian() {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Endian Codec: bit-exact encode/decode for the superblock and inode
// records. Generalizes the teacher's Superblock.UnmarshalBinary
// (reflect.ValueOf(s).Elem(), walk exported fields, binary.Read each one)
// into a symmetric pair of helpers shared by every fixed-layout struct in
// this package, since both SuperBlock and Inode are plain runs of uint64/
// uint32 fields in declared order.

// binarySize returns the encoded size, in bytes, of a struct's exported
// fields, in the same order reflectEncode/reflectDecode use.
func binarySize(v interface{}) int {
	rv := reflect.ValueOf(v).Elem()
	sz := 0
	for i := 0; i < rv.NumField(); i++ {
		name := rv.Type().Field(i).Name
		if name[0] < 'A' || name[0] > 'Z' {
			continue
		}
		sz += int(rv.Field(i).Type().Size())
	}
	return sz
}

// reflectEncode walks v's exported fields in declaration order, writing each
// with the given byte order.
func reflectEncode(order binary.ByteOrder, v interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	rv := reflect.ValueOf(v).Elem()
	for i := 0; i < rv.NumField(); i++ {
		name := rv.Type().Field(i).Name
		if name[0] < 'A' || name[0] > 'Z' {
			continue
		}
		if err := binary.Write(buf, order, rv.Field(i).Interface()); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// reflectDecode reads data into v's exported fields in declaration order,
// using the given byte order.
func reflectDecode(order binary.ByteOrder, data []byte, v interface{}) error {
	r := bytes.NewReader(data)
	rv := reflect.ValueOf(v).Elem()
	for i := 0; i < rv.NumField(); i++ {
		name := rv.Type().Field(i).Name
		if name[0] < 'A' || name[0] > 'Z' {
			continue
		}
		if err := binary.Read(r, order, rv.Field(i).Addr().Interface()); err != nil {
			return err
		}
	}
	return nil
}

// superblockVersionOffset is the byte offset of the 4-byte version/endianness
// field: eight uint64 region/counter fields (64 bytes) followed by the
// uint32 BlockSize (4 bytes). See DESIGN.md for why this rewrite resolves
// spec §6's literal "offset 60" against a self-consistent field list instead.
const superblockVersionOffset = 8*8 + 4

// encodeSuperBlock renders sb as a zero-padded DefaultBlockSize-byte block.
// The endianness flag is written directly into the lowest-addressed byte of
// the version field so it can be read back before the chosen byte order is
// known; versionFieldForOrder arranges sb.Version's bits so the generic,
// order-aware field encode below reproduces that same byte unassisted.
func encodeSuperBlock(order binary.ByteOrder, sb *SuperBlock) ([]byte, error) {
	raw, err := reflectEncode(order, sb)
	if err != nil {
		return nil, err
	}
	out := make([]byte, DefaultBlockSize)
	copy(out, raw)
	return out, nil
}

// versionFieldForOrder packs the little-endian flag bit so that, once
// encoded with order, it lands in the on-disk byte at superblockVersionOffset.
func versionFieldForOrder(order binary.ByteOrder, littleEndian bool) uint32 {
	var flag uint32
	if littleEndian {
		flag = 1
	}
	if order == binary.BigEndian {
		return flag << 24
	}
	return flag
}

// decodeSuperBlock inspects the raw endianness byte, selects a byte order,
// and decodes the rest of the superblock with it. Fails with ErrCorruptHeader
// if the magic or block size don't match.
func decodeSuperBlock(data []byte) (*SuperBlock, binary.ByteOrder, error) {
	if len(data) < int(superblockVersionOffset)+4 {
		return nil, nil, ErrCorruptHeader
	}
	var order binary.ByteOrder = binary.BigEndian
	if data[superblockVersionOffset]&1 == 1 {
		order = binary.LittleEndian
	}

	sb := &SuperBlock{}
	if err := reflectDecode(order, data, sb); err != nil {
		return nil, nil, ErrCorruptHeader
	}
	if sb.Magic != MagicNumber {
		return nil, nil, ErrCorruptHeader
	}
	if sb.BlockSize != DefaultBlockSize {
		return nil, nil, ErrCorruptHeader
	}
	return sb, order, nil
}

// encodeInode renders ino as a fixed InodeRecordSize-byte record.
func encodeInode(order binary.ByteOrder, ino *Inode) ([]byte, error) {
	return reflectEncode(order, ino)
}

// decodeInode parses an InodeRecordSize-byte record.
func decodeInode(order binary.ByteOrder, data []byte) (*Inode, error) {
	ino := &Inode{}
	if err := reflectDecode(order, data[:InodeRecordSize], ino); err != nil {
		return nil, err
	}
	return ino, nil
}
