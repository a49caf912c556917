// Package source reads raw timestamped event records from columnar batch
// segment files. Segments are immutable once written; the engine treats them
// as a read-only collaborator.
package source

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/golang/snappy"

	"github.com/Priya8975/feature-materializer/internal/domain"
)

// Segment file layout, all integers little-endian:
//
//	magic "FSEG" | version u16 | rowCount u32 | fieldCount u16
//	fieldCount × (nameLen u16 | name bytes)
//	block: entity keys   (uvarint len + bytes per key, snappy)
//	block: timestamps    (rowCount × i64 unix micros, snappy)
//	fieldCount × block: values (rowCount × f64 bits, snappy)
//
// Each block is prefixed with its compressed length as u32.
const (
	segmentMagic   = "FSEG"
	segmentVersion = 1
)

// Segment is a decoded columnar event file.
type Segment struct {
	Fields []string
	Events []domain.EventRecord
	MinTS  time.Time
	MaxTS  time.Time
}

// WriteSegment encodes events into a columnar segment at path. Events are
// sorted by (entity_key, timestamp) before encoding so readers get a stable
// order regardless of ingest order.
func WriteSegment(path string, fields []string, events []domain.EventRecord) error {
	if len(events) == 0 {
		return fmt.Errorf("segment %s: no events to write", path)
	}

	sorted := make([]domain.EventRecord, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].EntityKey != sorted[j].EntityKey {
			return sorted[i].EntityKey < sorted[j].EntityKey
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var buf bytes.Buffer
	buf.WriteString(segmentMagic)
	writeU16(&buf, segmentVersion)
	writeU32(&buf, uint32(len(sorted)))
	writeU16(&buf, uint16(len(fields)))
	for _, f := range fields {
		writeU16(&buf, uint16(len(f)))
		buf.WriteString(f)
	}

	// Entity key column.
	var keys bytes.Buffer
	var varintBuf [binary.MaxVarintLen64]byte
	for _, ev := range sorted {
		n := binary.PutUvarint(varintBuf[:], uint64(len(ev.EntityKey)))
		keys.Write(varintBuf[:n])
		keys.WriteString(ev.EntityKey)
	}
	writeBlock(&buf, keys.Bytes())

	// Timestamp column.
	ts := make([]byte, 8*len(sorted))
	for i, ev := range sorted {
		binary.LittleEndian.PutUint64(ts[i*8:], uint64(ev.Timestamp.UnixMicro()))
	}
	writeBlock(&buf, ts)

	// One column per value field; missing fields encode as 0.
	for _, f := range fields {
		col := make([]byte, 8*len(sorted))
		for i, ev := range sorted {
			binary.LittleEndian.PutUint64(col[i*8:], math.Float64bits(ev.Fields[f]))
		}
		writeBlock(&buf, col)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing segment %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("committing segment %s: %w", path, err)
	}
	return nil
}

// ReadSegment decodes the segment at path.
func ReadSegment(path string) (*Segment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment %s: %w", path, err)
	}

	r := bytes.NewReader(raw)
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != segmentMagic {
		return nil, fmt.Errorf("segment %s: bad magic", path)
	}
	version, err := readU16(r)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", path, err)
	}
	if version != segmentVersion {
		return nil, fmt.Errorf("segment %s: unsupported version %d", path, version)
	}
	rowCount, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", path, err)
	}
	fieldCount, err := readU16(r)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", path, err)
	}

	fields := make([]string, fieldCount)
	for i := range fields {
		nameLen, err := readU16(r)
		if err != nil {
			return nil, fmt.Errorf("segment %s: %w", path, err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("segment %s: reading field name: %w", path, err)
		}
		fields[i] = string(name)
	}

	keysBlock, err := readBlock(r)
	if err != nil {
		return nil, fmt.Errorf("segment %s: entity key block: %w", path, err)
	}
	keys := make([]string, rowCount)
	kr := bytes.NewReader(keysBlock)
	for i := range keys {
		klen, err := binary.ReadUvarint(kr)
		if err != nil {
			return nil, fmt.Errorf("segment %s: entity key %d: %w", path, i, err)
		}
		kb := make([]byte, klen)
		if _, err := io.ReadFull(kr, kb); err != nil {
			return nil, fmt.Errorf("segment %s: entity key %d: %w", path, i, err)
		}
		keys[i] = string(kb)
	}

	tsBlock, err := readBlock(r)
	if err != nil {
		return nil, fmt.Errorf("segment %s: timestamp block: %w", path, err)
	}
	if len(tsBlock) != int(rowCount)*8 {
		return nil, fmt.Errorf("segment %s: timestamp block size mismatch", path)
	}

	cols := make([][]byte, fieldCount)
	for i := range cols {
		col, err := readBlock(r)
		if err != nil {
			return nil, fmt.Errorf("segment %s: column %s: %w", path, fields[i], err)
		}
		if len(col) != int(rowCount)*8 {
			return nil, fmt.Errorf("segment %s: column %s size mismatch", path, fields[i])
		}
		cols[i] = col
	}

	seg := &Segment{Fields: fields, Events: make([]domain.EventRecord, rowCount)}
	for i := 0; i < int(rowCount); i++ {
		micros := int64(binary.LittleEndian.Uint64(tsBlock[i*8:]))
		ev := domain.EventRecord{
			EntityKey: keys[i],
			Timestamp: time.UnixMicro(micros).UTC(),
			Fields:    make(map[string]float64, fieldCount),
		}
		for j, f := range fields {
			ev.Fields[f] = math.Float64frombits(binary.LittleEndian.Uint64(cols[j][i*8:]))
		}
		seg.Events[i] = ev
		if seg.MinTS.IsZero() || ev.Timestamp.Before(seg.MinTS) {
			seg.MinTS = ev.Timestamp
		}
		if ev.Timestamp.After(seg.MaxTS) {
			seg.MaxTS = ev.Timestamp
		}
	}
	return seg, nil
}

func writeBlock(buf *bytes.Buffer, raw []byte) {
	compressed := snappy.Encode(nil, raw)
	writeU32(buf, uint32(len(compressed)))
	buf.Write(compressed)
}

func readBlock(r *bytes.Reader) ([]byte, error) {
	clen, err := readU32(r)
	if err != nil {
		return nil, err
	}
	compressed := make([]byte, clen)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, err
	}
	return snappy.Decode(nil, compressed)
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readU16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}
