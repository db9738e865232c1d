package artifact

import "hash/crc32"

const (
	// FormatVersion is the current container format version.
	FormatVersion uint16 = 1

	// DefaultExtension is the file extension for artifact blobs.
	DefaultExtension = ".vbk"
)

// Section magics (ASCII, stored as the first four bytes of each section).
var (
	headerMagic = [4]byte{'V', 'B', 'K', '1'}
	frameMagic  = [4]byte{'V', 'B', 'F', 'R'}
	footerMagic = [4]byte{'V', 'B', 'F', 'T'}
)

const (
	// headerFixedSize covers the fixed part of the header:
	// magic(4) + version(2) + compression(1) + reserved(1) +
	// codec name len(2) + reserved(6). The codec name follows.
	headerFixedSize = 16

	// frameHeaderSize covers one frame header:
	// magic(4) + page(4) + row count(4) + payload len(4) + payload CRC32(4).
	frameHeaderSize = 20

	// footerSize covers the footer:
	// magic(4) + frame count(4) + total rows(8) + frames CRC32(4) + reserved(4).
	footerSize = 24
)

// maxFramePayload caps a single frame payload. A page of a few thousand rows
// encodes well below this; anything larger signals corruption.
const maxFramePayload = 1 << 30

var crcTable = crc32.MakeTable(crc32.IEEE)

// ChecksumPrefix prefixes every manifest checksum value.
const ChecksumPrefix = "sha256:"
