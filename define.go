package iec60870

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"
)

// _lg is the process-wide default logger, kept for callers that never
// construct a per-connection logger explicitly. SetLogger overrides it.
var _lg = logrus.New()

// SetLogger installs the process-wide default logger. Clients, Servers and
// link-layer masters constructed without an explicit logger fall back to it.
func SetLogger(lg *logrus.Logger) {
	if lg != nil {
		_lg = lg
	}
}

// VersionInfo identifies a library release.
type VersionInfo struct {
	Major, Minor, Patch int
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Version is the current library version.
var Version = VersionInfo{Major: 0, Minor: 1, Patch: 0}

func serializeBigEndianUint16(i uint16) []byte {
	bytes := make([]byte, 2, 2)
	binary.BigEndian.PutUint16(bytes, i)
	return bytes
}

func parseLittleEndianUint16(x []byte) uint16 {
	return binary.LittleEndian.Uint16(x)
}

func parseLittleEndianInt16(x []byte) int16 {
	return int16(parseLittleEndianUint16(x))
}

func serializeLittleEndianUint16(i uint16) []byte {
	bytes := make([]byte, 2, 2)
	binary.LittleEndian.PutUint16(bytes, i)
	return bytes
}

func parseLittleEndianUint32(x []byte) uint32 {
	return binary.LittleEndian.Uint32(x)
}

func parseLittleEndianInt32(x []byte) int32 {
	return int32(parseLittleEndianUint32(x))
}

func serializeLittleEndianUint32(i uint32) []byte {
	bytes := make([]byte, 4, 4)
	binary.LittleEndian.PutUint32(bytes, i)
	return bytes
}

func serializeLittleEndianInt32(i int32) []byte {
	return serializeLittleEndianUint32(uint32(i))
}
