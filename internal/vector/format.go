package vector

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"
)

// Index file layout (little endian):
//
//	magic "HXVI" | version u16 | type u8 | dim u32 | model len u16 | model | body | crc32
const formatVersion uint16 = 1

var fileMagic = [4]byte{'H', 'X', 'V', 'I'}

const (
	fileTypeMemory uint8 = 1
	fileTypeHNSW   uint8 = 2
)

type fileHeader struct {
	indexType uint8
	dim       uint32
	model     string
}

// saveIndexFile writes header, body and checksum to a temp file and renames it over path.
func saveIndexFile(path string, hdr fileHeader, body func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	var buf bytes.Buffer
	buf.Write(fileMagic[:])
	le := binary.LittleEndian
	_ = binary.Write(&buf, le, formatVersion)
	buf.WriteByte(hdr.indexType)
	_ = binary.Write(&buf, le, hdr.dim)
	_ = binary.Write(&buf, le, uint16(len(hdr.model)))
	buf.WriteString(hdr.model)
	if err := body(&buf); err != nil {
		return err
	}
	_ = binary.Write(&buf, le, crc32.ChecksumIEEE(buf.Bytes()))

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// loadIndexFile verifies the file at path against want and hands the body to fn.
// A missing file reports found=false and no error.
func loadIndexFile(path string, want fileHeader, fn func(r *bytes.Reader) error) (found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read index file: %w", err)
	}
	if len(data) < 4+2+1+4+2+4 || !bytes.Equal(data[:4], fileMagic[:]) {
		return true, fmt.Errorf("%w: bad header", ErrIndexCorrupt)
	}
	payload, sum := data[:len(data)-4], binary.LittleEndian.Uint32(data[len(data)-4:])
	if crc32.ChecksumIEEE(payload) != sum {
		return true, fmt.Errorf("%w: checksum mismatch", ErrIndexCorrupt)
	}

	r := bytes.NewReader(payload[4:])
	le := binary.LittleEndian
	var version uint16
	var got fileHeader
	var modelLen uint16
	if err := binary.Read(r, le, &version); err != nil {
		return true, corrupt(err)
	}
	if version != formatVersion {
		return true, fmt.Errorf("%w: format version %d, want %d", ErrIndexVersionMismatch, version, formatVersion)
	}
	if got.indexType, err = r.ReadByte(); err != nil {
		return true, corrupt(err)
	}
	if err := binary.Read(r, le, &got.dim); err != nil {
		return true, corrupt(err)
	}
	if err := binary.Read(r, le, &modelLen); err != nil {
		return true, corrupt(err)
	}
	model := make([]byte, modelLen)
	if _, err := io.ReadFull(r, model); err != nil {
		return true, corrupt(err)
	}
	got.model = string(model)
	if got != want {
		return true, fmt.Errorf("%w: file has type=%d dim=%d model=%q, want type=%d dim=%d model=%q",
			ErrIndexVersionMismatch, got.indexType, got.dim, got.model, want.indexType, want.dim, want.model)
	}
	if err := fn(r); err != nil {
		return true, corrupt(err)
	}
	if r.Len() != 0 {
		return true, fmt.Errorf("%w: %d trailing bytes", ErrIndexCorrupt, r.Len())
	}
	return true, nil
}

func corrupt(err error) error {
	if errors.Is(err, ErrIndexCorrupt) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
}

func writeVector(w io.Writer, v []float32) error {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	_, err := w.Write(buf)
	return err
}

func readVector(r io.Reader, dim int) ([]float32, error) {
	buf := make([]byte, 4*dim)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	v := make([]float32, dim)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}
