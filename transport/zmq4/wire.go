package zmq4

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// frame is the on-wire envelope carried inside a zmq4 networking.Message's
// Data field: an active-message op code, a header word array, and an
// opaque payload. Fields are hand-encoded with protowire rather than a
// protoc-generated type, so no .proto build step is pulled into this module.
// Header carries whatever header words the caller passes; the frame imposes
// no fixed header length.
type frame struct {
	Op      uint32
	Header  []uint32
	Payload []byte
}

const (
	fieldOp      = 1
	fieldHeader  = 2
	fieldPayload = 3
)

func (f frame) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldOp, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Op))
	for _, h := range f.Header {
		b = protowire.AppendTag(b, fieldHeader, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h))
	}
	if len(f.Payload) > 0 {
		b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Payload)
	}
	return b
}

func unmarshalFrame(b []byte) (frame, error) {
	var f frame
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return f, fmt.Errorf("zmq4: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldOp:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return f, fmt.Errorf("zmq4: bad op varint")
			}
			f.Op = uint32(v)
			b = b[n:]
		case fieldHeader:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return f, fmt.Errorf("zmq4: bad header varint")
			}
			f.Header = append(f.Header, uint32(v))
			b = b[n:]
		case fieldPayload:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return f, fmt.Errorf("zmq4: bad payload bytes")
			}
			f.Payload = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return f, fmt.Errorf("zmq4: bad field %d", num)
			}
			b = b[n:]
		}
	}
	return f, nil
}
