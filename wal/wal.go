// Package wal provides the ingest journal.
//
// The catalog persists a vector and its metadata record to two
// independent files, vector first. A crash between the two persists
// leaves the index one entry ahead of the store. The journal closes that
// window: every ingestion appends its (vector, record) pair here before
// touching either store, and startup replay re-attaches any record whose
// vector made it to disk but whose metadata append did not.
//
// Entries are framed with a CRC32-Castagnoli checksum and an LZ4
// compressed payload. Replay stops at the first torn or corrupt frame,
// which is expected after a crash mid-append.
package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/findhub/codec"
	"github.com/hupe1980/findhub/persistence"
	"github.com/hupe1980/findhub/store"
)

// maxFrameSize bounds a single frame to keep a corrupt length field from
// triggering a huge allocation during replay.
const maxFrameSize = 64 << 20

// Entry is one journaled ingestion.
type Entry struct {
	VecID  uint32       `json:"vec_id"`
	Vector []float32    `json:"vector"`
	Record store.Record `json:"record"`
}

// Journal is a single-file append-only ingest journal.
// Append/Reset must be serialized by the caller (the catalog holds its
// ingest lock across the full sequence); Replay runs at startup only.
type Journal struct {
	path  string
	codec codec.Codec
}

// Options configures a Journal.
type Options struct {
	// Codec encodes and decodes journal entries. Defaults to
	// codec.Default.
	Codec codec.Codec
}

// New creates a journal backed by the file at path.
func New(path string, optFns ...func(o *Options)) *Journal {
	opts := Options{
		Codec: codec.Default,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Journal{path: path, codec: opts.Codec}
}

// Path returns the backing file path.
func (j *Journal) Path() string { return j.path }

// Append encodes the entry and appends it durably (fsync before return).
func (j *Journal) Append(entry Entry) error {
	payload, err := j.codec.Marshal(entry)
	if err != nil {
		return err
	}

	frame, err := encodeFrame(payload)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(frame); err != nil {
		return err
	}
	return f.Sync()
}

// Replay returns all intact entries in append order. A missing file
// yields no entries. A torn or corrupt tail frame ends the replay
// without error; everything before it is returned.
func (j *Journal) Replay() ([]Entry, error) {
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	for {
		payload, err := decodeFrame(f)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return entries, nil
			}
			// Torn tail after a crash mid-append: keep what we have.
			return entries, nil
		}

		var entry Entry
		if err := j.codec.Unmarshal(payload, &entry); err != nil {
			return entries, nil
		}
		entries = append(entries, entry)
	}
}

// Reset truncates the journal after the catalog has confirmed both
// stores are durably in sync.
func (j *Journal) Reset() error {
	err := os.Truncate(j.path, 0)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Frame layout: [crc u32][rawSize u32][compSize u32][data].
// compSize == 0 means data is stored uncompressed (incompressible
// payload); the checksum covers the two size fields plus data.
func encodeFrame(payload []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(payload))
	compressed := make([]byte, bound)
	n, err := lz4.CompressBlock(payload, compressed, nil)
	if err != nil {
		return nil, err
	}

	data := compressed[:n]
	compSize := uint32(n)
	if n == 0 || n >= len(payload) {
		data = payload
		compSize = 0
	}

	frame := make([]byte, 12+len(data))
	binary.LittleEndian.PutUint32(frame[4:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(frame[8:], compSize)
	copy(frame[12:], data)
	binary.LittleEndian.PutUint32(frame[0:], persistence.CRC32C(frame[4:]))

	return frame, nil
}

func decodeFrame(r io.Reader) ([]byte, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	crc := binary.LittleEndian.Uint32(header[0:])
	rawSize := binary.LittleEndian.Uint32(header[4:])
	compSize := binary.LittleEndian.Uint32(header[8:])

	if rawSize > maxFrameSize || compSize > maxFrameSize {
		return nil, fmt.Errorf("wal: frame too large (raw=%d comp=%d)", rawSize, compSize)
	}

	dataLen := compSize
	if compSize == 0 {
		dataLen = rawSize
	}
	data := make([]byte, dataLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}

	sum := persistence.NewCRC32C()
	_, _ = sum.Write(header[4:])
	_, _ = sum.Write(data)
	if sum.Sum32() != crc {
		return nil, errors.New("wal: frame checksum mismatch")
	}

	if compSize == 0 {
		return data, nil
	}

	payload := make([]byte, rawSize)
	n, err := lz4.UncompressBlock(data, payload)
	if err != nil {
		return nil, err
	}
	if uint32(n) != rawSize {
		return nil, errors.New("wal: frame size mismatch after decompression")
	}
	return payload, nil
}
