package artifact

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/hupe1980/vecback/codec"
	"github.com/hupe1980/vecback/collection"
)

// Frame is one decoded page of rows.
type Frame struct {
	Page uint32
	Rows []collection.Record
}

// Reader decodes an artifact container, validating structure and checksums
// as it goes. Iterate with Next until io.EOF; the footer is checked before
// EOF is reported, so a clean EOF means the whole container is intact.
type Reader struct {
	src         *bufio.Reader
	codec       codec.Codec
	compression Compression
	frameCRCs   hash.Hash32
	offset      int64
	nextPage    uint32
	frames      uint32
	rows        uint64
	done        bool
}

// NewReader reads and validates the container header.
func NewReader(src io.Reader) (*Reader, error) {
	r := &Reader{
		src:       bufio.NewReader(src),
		frameCRCs: crc32.New(crcTable),
	}

	if err := r.readHeader(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Reader) readHeader() error {
	buf := make([]byte, headerFixedSize)
	if err := r.readFull("read header", buf); err != nil {
		return err
	}

	if [4]byte(buf[0:4]) != headerMagic {
		return r.corrupt(0, fmt.Sprintf("bad header magic %q", buf[0:4]), nil)
	}

	version := binary.LittleEndian.Uint16(buf[4:6])
	if version != FormatVersion {
		return r.corrupt(4, fmt.Sprintf("unsupported format version %d", version), nil)
	}

	r.compression = Compression(buf[6])
	if !r.compression.Valid() {
		return r.corrupt(6, fmt.Sprintf("unknown compression id %d", buf[6]), nil)
	}

	// Reserved bytes are written as zero; anything else is damage.
	if buf[7] != 0 || !allZero(buf[10:16]) {
		return r.corrupt(7, "nonzero reserved header bytes", nil)
	}

	nameLen := int(binary.LittleEndian.Uint16(buf[8:10]))
	name := make([]byte, nameLen)
	if err := r.readFull("read header", name); err != nil {
		return err
	}

	c, ok := codec.ByName(string(name))
	if !ok {
		return r.corrupt(headerFixedSize, fmt.Sprintf("unknown payload codec %q", name), nil)
	}
	r.codec = c

	return nil
}

// Next returns the next frame. It returns io.EOF after the footer has been
// read and validated. Structural damage of any kind is a *CorruptError.
func (r *Reader) Next() (*Frame, error) {
	if r.done {
		return nil, io.EOF
	}

	sectionStart := r.offset

	var magic [4]byte
	if err := r.readFull("read section magic", magic[:]); err != nil {
		return nil, err
	}

	switch magic {
	case frameMagic:
		return r.readFrame(sectionStart)
	case footerMagic:
		if err := r.readFooter(sectionStart); err != nil {
			return nil, err
		}
		r.done = true
		return nil, io.EOF
	default:
		return nil, r.corrupt(sectionStart, fmt.Sprintf("bad section magic %q", magic[:]), nil)
	}
}

func (r *Reader) readFrame(start int64) (*Frame, error) {
	buf := make([]byte, frameHeaderSize-4)
	if err := r.readFull("read frame header", buf); err != nil {
		return nil, err
	}

	page := binary.LittleEndian.Uint32(buf[0:4])
	rowCount := binary.LittleEndian.Uint32(buf[4:8])
	payloadLen := binary.LittleEndian.Uint32(buf[8:12])
	crc := binary.LittleEndian.Uint32(buf[12:16])

	if page != r.nextPage {
		return nil, r.corrupt(start, fmt.Sprintf("frame page %d out of order, want %d", page, r.nextPage), nil)
	}
	if payloadLen > maxFramePayload {
		return nil, r.corrupt(start, fmt.Sprintf("frame payload length %d exceeds limit", payloadLen), nil)
	}

	payload := make([]byte, payloadLen)
	if err := r.readFull("read frame payload", payload); err != nil {
		return nil, err
	}

	if got := crc32.Checksum(payload, crcTable); got != crc {
		return nil, r.corrupt(start, fmt.Sprintf("frame %d payload checksum mismatch: expected 0x%08x, got 0x%08x", page, crc, got), nil)
	}

	raw, err := decompressBlock(payload, r.compression)
	if err != nil {
		return nil, r.corrupt(start, fmt.Sprintf("frame %d decompress", page), err)
	}

	var rows []collection.Record
	if err := r.codec.Unmarshal(raw, &rows); err != nil {
		return nil, r.corrupt(start, fmt.Sprintf("frame %d payload decode", page), err)
	}

	if uint32(len(rows)) != rowCount {
		return nil, r.corrupt(start, fmt.Sprintf("frame %d row count mismatch: header says %d, payload has %d", page, rowCount, len(rows)), nil)
	}

	var crcBytes [4]byte
	binary.LittleEndian.PutUint32(crcBytes[:], crc)
	r.frameCRCs.Write(crcBytes[:])

	r.nextPage++
	r.frames++
	r.rows += uint64(rowCount)

	return &Frame{Page: page, Rows: rows}, nil
}

func (r *Reader) readFooter(start int64) error {
	buf := make([]byte, footerSize-4)
	if err := r.readFull("read footer", buf); err != nil {
		return err
	}

	frames := binary.LittleEndian.Uint32(buf[0:4])
	rows := binary.LittleEndian.Uint64(buf[4:12])
	crc := binary.LittleEndian.Uint32(buf[12:16])

	if frames != r.frames {
		return r.corrupt(start, fmt.Sprintf("footer frame count %d, read %d frames", frames, r.frames), nil)
	}
	if rows != r.rows {
		return r.corrupt(start, fmt.Sprintf("footer row total %d, read %d rows", rows, r.rows), nil)
	}
	if got := r.frameCRCs.Sum32(); got != crc {
		return r.corrupt(start, fmt.Sprintf("footer checksum mismatch: expected 0x%08x, got 0x%08x", crc, got), nil)
	}
	if !allZero(buf[16:20]) {
		return r.corrupt(start, "nonzero reserved footer bytes", nil)
	}

	// Nothing may follow the footer.
	if _, err := r.src.ReadByte(); err == nil {
		return r.corrupt(r.offset, "trailing data after footer", nil)
	} else if !errors.Is(err, io.EOF) {
		return &IOError{Op: "read after footer", Err: err}
	}

	return nil
}

// readFull fills buf, mapping truncation to corruption and transport
// failures to IO errors.
func (r *Reader) readFull(op string, buf []byte) error {
	n, err := io.ReadFull(r.src, buf)
	r.offset += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return r.corrupt(r.offset, "unexpected end of container", err)
		}
		return &IOError{Op: op, Err: err}
	}
	return nil
}

func (r *Reader) corrupt(offset int64, detail string, err error) error {
	return &CorruptError{Offset: offset, Detail: detail, Err: err}
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// Compression returns the compression recorded in the header.
func (r *Reader) Compression() Compression {
	return r.compression
}

// CodecName returns the payload codec recorded in the header.
func (r *Reader) CodecName() string {
	return r.codec.Name()
}

// Frames returns the number of frames decoded so far.
func (r *Reader) Frames() uint32 {
	return r.frames
}

// Rows returns the total rows decoded so far.
func (r *Reader) Rows() uint64 {
	return r.rows
}
