package flat

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/findhub/persistence"
)

// Snapshot format:
//
//	[magic 4]["version" u16][dimension u32][count u64][rawSize u64][compSize u64]
//	[zstd-compressed little-endian float32 block][crc32c u32]
//
// The checksum covers everything after the magic. On load, any framing or
// checksum violation surfaces as ErrCorrupt so the caller can halt rather
// than silently start from an empty index.
var magic = [4]byte{'F', 'H', 'F', 'I'}

const formatVersion uint16 = 1

// SaveToFile persists the index atomically (write-temp, fsync, rename).
func (f *Flat) SaveToFile(filename string) error {
	return persistence.SaveToFile(filename, func(w io.Writer) error {
		_, err := f.WriteTo(w)
		return err
	})
}

// LoadFromFile loads a previously persisted index.
func LoadFromFile(filename string) (*Flat, error) {
	var f *Flat
	err := persistence.LoadFromFile(filename, func(r io.Reader) error {
		loaded, err := ReadFrom(r)
		if err != nil {
			return err
		}
		f = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// WriteTo writes the index to w in binary snapshot format.
// It matches the io.WriterTo interface for toolchain friendliness.
func (f *Flat) WriteTo(w io.Writer) (int64, error) {
	f.writeMu.Lock()
	st := f.getState()
	f.writeMu.Unlock()

	raw := make([]byte, 0, len(st)*f.dimension*4)
	var scratch [4]byte
	for _, vec := range st {
		for _, v := range vec {
			binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(v))
			raw = append(raw, scratch[:]...)
		}
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, err
	}
	compressed := enc.EncodeAll(raw, nil)
	_ = enc.Close()

	var n int64
	if err := writeFull(w, magic[:], &n); err != nil {
		return n, err
	}

	crc := persistence.NewCRC32C()
	tee := io.MultiWriter(w, crc)

	header := make([]byte, 2+4+8+8+8)
	binary.LittleEndian.PutUint16(header[0:], formatVersion)
	binary.LittleEndian.PutUint32(header[2:], uint32(f.dimension))
	binary.LittleEndian.PutUint64(header[6:], uint64(len(st)))
	binary.LittleEndian.PutUint64(header[14:], uint64(len(raw)))
	binary.LittleEndian.PutUint64(header[22:], uint64(len(compressed)))
	if err := writeFull(tee, header, &n); err != nil {
		return n, err
	}
	if err := writeFull(tee, compressed, &n); err != nil {
		return n, err
	}

	var sum [4]byte
	binary.LittleEndian.PutUint32(sum[:], crc.Sum32())
	if err := writeFull(w, sum[:], &n); err != nil {
		return n, err
	}

	return n, nil
}

// ReadFrom decodes a binary snapshot produced by WriteTo.
func ReadFrom(r io.Reader) (*Flat, error) {
	var gotMagic [4]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return nil, fmt.Errorf("%w: short magic: %w", ErrCorrupt, err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, gotMagic[:])
	}

	crc := persistence.NewCRC32C()
	tee := io.TeeReader(r, crc)

	header := make([]byte, 2+4+8+8+8)
	if _, err := io.ReadFull(tee, header); err != nil {
		return nil, fmt.Errorf("%w: short header: %w", ErrCorrupt, err)
	}

	version := binary.LittleEndian.Uint16(header[0:])
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, version)
	}
	dim := int(binary.LittleEndian.Uint32(header[2:]))
	count := binary.LittleEndian.Uint64(header[6:])
	rawSize := binary.LittleEndian.Uint64(header[14:])
	compSize := binary.LittleEndian.Uint64(header[22:])

	if dim <= 0 {
		return nil, fmt.Errorf("%w: invalid dimension %d", ErrCorrupt, dim)
	}
	if rawSize != count*uint64(dim)*4 {
		return nil, fmt.Errorf("%w: size mismatch (count=%d dim=%d raw=%d)", ErrCorrupt, count, dim, rawSize)
	}

	compressed := make([]byte, compSize)
	if _, err := io.ReadFull(tee, compressed); err != nil {
		return nil, fmt.Errorf("%w: short payload: %w", ErrCorrupt, err)
	}

	var sum [4]byte
	if _, err := io.ReadFull(r, sum[:]); err != nil {
		return nil, fmt.Errorf("%w: short checksum: %w", ErrCorrupt, err)
	}
	if binary.LittleEndian.Uint32(sum[:]) != crc.Sum32() {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	raw, err := dec.DecodeAll(compressed, make([]byte, 0, rawSize))
	dec.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %w", ErrCorrupt, err)
	}
	if uint64(len(raw)) != rawSize {
		return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
	}

	f, err := New(dim)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, count)
	off := 0
	for i := range vectors {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
			off += 4
		}
		vectors[i] = vec
	}
	f.state.Store(vectors)

	return f, nil
}

func writeFull(w io.Writer, p []byte, n *int64) error {
	written, err := w.Write(p)
	*n += int64(written)
	return err
}
