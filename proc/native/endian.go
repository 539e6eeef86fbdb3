package native

import "encoding/binary"

// nativeEndian is little-endian on every architecture this package
// targets (amd64, 386).
var nativeEndian = binary.LittleEndian
