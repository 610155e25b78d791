package vector

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Layout: magic "KVEC", version (4), dimension (4), n (4), then n*dimension float32,
// all little endian.
var codecMagic = [4]byte{'K', 'V', 'E', 'C'}

const codecVersion uint32 = 1

// ErrCorrupt is returned when encoded vectors cannot be decoded.
var ErrCorrupt = errors.New("corrupt vector data")

// maxPrealloc bounds the slice capacity taken from an untrusted header.
const maxPrealloc = 1 << 16

func encodeVectors(w io.Writer, dimensions int, vectors [][]float32) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(codecMagic[:]); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	header := []uint32{codecVersion, uint32(dimensions), uint32(len(vectors))}
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	buf := make([]byte, dimensions*4)
	for i, vec := range vectors {
		if len(vec) != dimensions {
			return fmt.Errorf("vector %d has dimension %d, expected %d", i, len(vec), dimensions)
		}
		putFloat32s(buf, vec)
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return bw.Flush()
}

func decodeVectors(r io.Reader, dimensions int) ([][]float32, error) {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: read magic: %v", ErrCorrupt, err)
	}
	if magic != codecMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, magic[:])
	}
	var header [3]uint32
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrCorrupt, err)
	}
	version, dim, n := header[0], header[1], header[2]
	if version != codecVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, version)
	}
	if int(dim) != dimensions {
		return nil, fmt.Errorf("dimension mismatch: data has %d, index expects %d", dim, dimensions)
	}
	vectors := make([][]float32, 0, min(int(n), maxPrealloc))
	buf := make([]byte, dimensions*4)
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("%w: read vector %d of %d: %v", ErrCorrupt, i, n, err)
		}
		vectors = append(vectors, getFloat32s(buf))
	}
	if _, err := br.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after %d vectors", ErrCorrupt, n)
	}
	return vectors, nil
}

func putFloat32s(dst []byte, s []float32) {
	for i, v := range s {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

func getFloat32s(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
