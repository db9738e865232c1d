package artifact

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/hupe1980/vecback/codec"
	"github.com/hupe1980/vecback/collection"
)

// Options configures an artifact Writer.
type Options struct {
	// Compression applied to frame payloads.
	Compression Compression
	// Codec used to encode frame payloads.
	Codec codec.Codec
}

// DefaultOptions returns the default writer options.
var DefaultOptions = Options{
	Compression: CompressionZSTD,
	Codec:       codec.Default,
}

// Writer streams row batches into the artifact container format.
//
// Batches must arrive in strictly ascending page order starting at zero.
// Close writes the footer; without it the container is truncated and will
// fail verification. Writer is not safe for concurrent use.
type Writer struct {
	dst         io.Writer
	codec       codec.Codec
	compression Compression
	digest      hash.Hash   // SHA-256 over every byte written
	frameCRCs   hash.Hash32 // running CRC over the frame payload CRCs
	size        int64
	nextPage    uint32
	frames      uint32
	rows        uint64
	closed      bool
}

// NewWriter creates a Writer and emits the container header.
func NewWriter(dst io.Writer, optFns ...func(o *Options)) (*Writer, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if !opts.Compression.Valid() {
		return nil, fmt.Errorf("artifact: unknown compression id %d", opts.Compression)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	w := &Writer{
		dst:         dst,
		codec:       opts.Codec,
		compression: opts.Compression,
		digest:      sha256.New(),
		frameCRCs:   crc32.New(crcTable),
	}

	if err := w.writeHeader(); err != nil {
		return nil, err
	}

	return w, nil
}

func (w *Writer) writeHeader() error {
	name := []byte(w.codec.Name())

	buf := make([]byte, headerFixedSize+len(name))
	copy(buf[0:4], headerMagic[:])
	binary.LittleEndian.PutUint16(buf[4:6], FormatVersion)
	buf[6] = byte(w.compression)
	binary.LittleEndian.PutUint16(buf[8:10], uint16(len(name)))
	copy(buf[headerFixedSize:], name)

	return w.write("write header", buf)
}

// write sends buf to the destination, folding it into the running digest.
func (w *Writer) write(op string, buf []byte) error {
	w.digest.Write(buf)

	n, err := w.dst.Write(buf)
	w.size += int64(n)
	if err != nil {
		return &IOError{Op: op, Err: err}
	}
	return nil
}

// WriteBatch appends one page of rows as a frame. page must equal the number
// of frames already written, keeping the layout deterministic.
func (w *Writer) WriteBatch(page uint32, rows []collection.Record) error {
	if w.closed {
		return &IOError{Op: "write frame", Err: errors.New("writer is closed")}
	}
	if page != w.nextPage {
		return &IOError{Op: "write frame", Err: fmt.Errorf("page %d out of order, want %d", page, w.nextPage)}
	}

	raw, err := w.codec.Marshal(rows)
	if err != nil {
		return &IOError{Op: fmt.Sprintf("encode page %d", page), Err: err}
	}

	payload, err := compressBlock(raw, w.compression)
	if err != nil {
		return &IOError{Op: fmt.Sprintf("compress page %d", page), Err: err}
	}
	if len(payload) > maxFramePayload {
		return &IOError{Op: "write frame", Err: fmt.Errorf("page %d payload exceeds %d bytes", page, maxFramePayload)}
	}

	crc := crc32.Checksum(payload, crcTable)

	header := make([]byte, frameHeaderSize)
	copy(header[0:4], frameMagic[:])
	binary.LittleEndian.PutUint32(header[4:8], page)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(rows)))
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[16:20], crc)

	if err := w.write("write frame header", header); err != nil {
		return err
	}
	if err := w.write("write frame payload", payload); err != nil {
		return err
	}

	var crcBytes [4]byte
	binary.LittleEndian.PutUint32(crcBytes[:], crc)
	w.frameCRCs.Write(crcBytes[:])

	w.nextPage++
	w.frames++
	w.rows += uint64(len(rows))
	return nil
}

// Close writes the footer. The Writer must not be used afterwards; Sum and
// the size accessors remain valid.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}

	buf := make([]byte, footerSize)
	copy(buf[0:4], footerMagic[:])
	binary.LittleEndian.PutUint32(buf[4:8], w.frames)
	binary.LittleEndian.PutUint64(buf[8:16], w.rows)
	binary.LittleEndian.PutUint32(buf[16:20], w.frameCRCs.Sum32())

	if err := w.write("write footer", buf); err != nil {
		return err
	}

	w.closed = true
	return nil
}

// Sum returns the manifest checksum of everything written so far, formatted
// as "sha256:<hex>". Call after Close for the full-container digest.
func (w *Writer) Sum() string {
	return ChecksumPrefix + hex.EncodeToString(w.digest.Sum(nil))
}

// Size returns the number of bytes written, including header and footer.
func (w *Writer) Size() int64 {
	return w.size
}

// Frames returns the number of frames written.
func (w *Writer) Frames() uint32 {
	return w.frames
}

// Rows returns the total row count across all frames.
func (w *Writer) Rows() uint64 {
	return w.rows
}
