package dhcpd

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Wire layout constants for the fixed BOOTP/DHCP header, per RFC 2131 §2.
const (
	headerLen    = 236
	magicCookie  = 0x63825363
	hwAddrMaxLen = 16
	snameLen     = 64
	fileLen      = 128
)

// Opcodes for the op field.
const (
	OpBootRequest uint8 = 1
	OpBootReply   uint8 = 2
)

// BroadcastFlag is the high bit of the flags field.
const BroadcastFlag uint16 = 0x8000

// DhcpMessage is a fully decoded DHCP packet: the fixed header plus the
// flattened, overload-reassembled option set.
type DhcpMessage struct {
	Op           uint8
	HType        uint8
	HLen         uint8
	Hops         uint8
	Xid          uint32
	Secs         uint16
	Flags        uint16
	CIAddr       net.IP
	YIAddr       net.IP
	SIAddr       net.IP
	GIAddr       net.IP
	CHAddr       net.HardwareAddr
	ServerName   string
	BootFile     string
	Options      []Option
}

// Broadcast reports whether the client set the broadcast flag.
func (m *DhcpMessage) Broadcast() bool {
	return m.Flags&BroadcastFlag != 0
}

// Option returns the first option with the given code, if present.
func (m *DhcpMessage) Option(code OptionCode) (Option, bool) {
	for _, o := range m.Options {
		if o.Code() == code {
			return o, true
		}
	}

	return nil, false
}

// MessageType returns the decoded value of option 53, or
// MessageTypeUndefined if absent or malformed.
func (m *DhcpMessage) MessageType() MessageType {
	if o, ok := m.Option(OptMessageType); ok {
		if mt, ok := o.(MessageTypeOption); ok {
			return mt.Type
		}
	}

	return MessageTypeUndefined
}

// SetOption replaces the first existing option with the same code, or
// appends it if no such option exists.  This is the replace-or-insert
// semantics spec.md §9 calls out explicitly, in place of a naive append that
// would otherwise emit the same option code twice.
func (m *DhcpMessage) SetOption(opt Option) {
	for i, o := range m.Options {
		if o.Code() == opt.Code() {
			m.Options[i] = opt

			return
		}
	}

	m.Options = append(m.Options, opt)
}

// RemoveOption deletes the first option with the given code, if present.
func (m *DhcpMessage) RemoveOption(code OptionCode) {
	for i, o := range m.Options {
		if o.Code() == code {
			m.Options = append(m.Options[:i], m.Options[i+1:]...)

			return
		}
	}
}

// DecodeMessage parses a raw DHCP packet, including BOOTP header, magic
// cookie validation, TLV option scanning, and Option Overload (code 52)
// reassembly of the sname/file fields.
func DecodeMessage(data []byte) (*DhcpMessage, error) {
	if len(data) < headerLen+4 {
		return nil, fmt.Errorf("%w: packet length %d shorter than minimum %d",
			ErrMalformedHeader, len(data), headerLen+4)
	}

	m := &DhcpMessage{
		Op:     data[0],
		HType:  data[1],
		HLen:   data[2],
		Hops:   data[3],
		Xid:    binary.BigEndian.Uint32(data[4:8]),
		Secs:   binary.BigEndian.Uint16(data[8:10]),
		Flags:  binary.BigEndian.Uint16(data[10:12]),
		CIAddr: net.IP(append([]byte(nil), data[12:16]...)),
		YIAddr: net.IP(append([]byte(nil), data[16:20]...)),
		SIAddr: net.IP(append([]byte(nil), data[20:24]...)),
		GIAddr: net.IP(append([]byte(nil), data[24:28]...)),
	}

	hlen := int(m.HLen)
	if hlen > hwAddrMaxLen {
		hlen = hwAddrMaxLen
	}
	m.CHAddr = append([]byte(nil), data[28:28+hlen]...)

	snameRaw := append([]byte(nil), data[44:44+snameLen]...)
	fileRaw := append([]byte(nil), data[108:108+fileLen]...)

	cookie := binary.BigEndian.Uint32(data[236:240])
	if cookie != magicCookie {
		return nil, fmt.Errorf("%w: bad magic cookie %#08x", ErrMalformedHeader, cookie)
	}

	groups, overload, err := scanOptions(data[240:])
	if err != nil {
		return nil, err
	}

	opts, sname, file, err := mergeOverload(groups, overload, snameRaw, fileRaw)
	if err != nil {
		return nil, err
	}

	m.Options = opts
	m.ServerName = sname
	m.BootFile = file

	return m, nil
}

// rawOptionGroup holds the concatenated value bytes for all TLVs sharing a
// code, in encounter order, before typed decoding.
type rawOptionGroup struct {
	code OptionCode
	data []byte
}

// scanOptions walks a TLV option stream (pad/end aware) and groups
// same-code fragments by concatenation, per RFC 2131 §4.1's option
// concatenation requirement. It returns the groups in first-seen order and
// the raw overload mask, if option 52 was present.
func scanOptions(buf []byte) (groups []rawOptionGroup, overloadMask uint8, err error) {
	index := map[OptionCode]int{}

	i := 0
	for i < len(buf) {
		code := OptionCode(buf[i])
		if code == OptPad {
			i++

			continue
		}
		if code == OptEnd {
			break
		}

		if i+1 >= len(buf) {
			return nil, 0, fmt.Errorf("%w: option %d: truncated length byte", ErrMalformedOption, code)
		}

		length := int(buf[i+1])
		start := i + 2
		end := start + length
		if end > len(buf) {
			return nil, 0, fmt.Errorf("%w: option %d: length %d exceeds remaining buffer",
				ErrMalformedOption, code, length)
		}

		value := buf[start:end]

		if code == OptOptionOverload {
			if length != 1 {
				return nil, 0, fmt.Errorf("%w: option overload: want 1 byte, got %d",
					ErrMalformedOption, length)
			}
			overloadMask = value[0]
		} else if idx, ok := index[code]; ok {
			groups[idx].data = append(groups[idx].data, value...)
		} else {
			index[code] = len(groups)
			groups = append(groups, rawOptionGroup{code: code, data: append([]byte(nil), value...)})
		}

		i = end
	}

	return groups, overloadMask, nil
}

// EncodeMessage serializes m into a wire-format DHCP packet with no minimum
// size padding. Most callers should use EncodeMessageMinSize.
func EncodeMessage(m *DhcpMessage) []byte {
	return EncodeMessageMinSize(m, 0)
}

// EncodeMessageMinSize serializes m, then zero-pads the result up to
// minSize bytes after the terminating OptEnd, per spec.md §4.1's
// minimum_packet_size requirement. The sname and file header fields are
// used verbatim; this package never re-applies Option Overload on encode.
func EncodeMessageMinSize(m *DhcpMessage, minSize int) []byte {
	buf := make([]byte, headerLen, headerLen+512)

	buf[0] = m.Op
	buf[1] = m.HType
	buf[2] = m.HLen
	buf[3] = m.Hops
	binary.BigEndian.PutUint32(buf[4:8], m.Xid)
	binary.BigEndian.PutUint16(buf[8:10], m.Secs)
	binary.BigEndian.PutUint16(buf[10:12], m.Flags)
	copy(buf[12:16], ip4Bytes(m.CIAddr))
	copy(buf[16:20], ip4Bytes(m.YIAddr))
	copy(buf[20:24], ip4Bytes(m.SIAddr))
	copy(buf[24:28], ip4Bytes(m.GIAddr))
	copy(buf[28:28+len(m.CHAddr)], m.CHAddr)
	copy(buf[44:44+len(m.ServerName)], m.ServerName)
	copy(buf[108:108+len(m.BootFile)], m.BootFile)

	cookie := make([]byte, 4)
	binary.BigEndian.PutUint32(cookie, magicCookie)
	buf = append(buf, cookie...)

	for _, opt := range m.Options {
		buf = appendOption(buf, opt.Code(), opt.Value())
	}

	buf = append(buf, byte(OptEnd))

	if len(buf) < minSize {
		buf = append(buf, make([]byte, minSize-len(buf))...)
	}

	return buf
}

// appendOption appends one or more TLVs encoding code/value, splitting
// value into 255-byte chunks if it exceeds the single-byte length field.
func appendOption(buf []byte, code OptionCode, value []byte) []byte {
	if len(value) == 0 {
		return append(buf, byte(code), 0)
	}

	for len(value) > 0 {
		chunk := value
		if len(chunk) > 255 {
			chunk = chunk[:255]
		}

		buf = append(buf, byte(code), byte(len(chunk)))
		buf = append(buf, chunk...)
		value = value[len(chunk):]
	}

	return buf
}
