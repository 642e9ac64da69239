package speech

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Binary framing used on the upstream speech websocket: a 4-byte header,
// an optional big-endian sequence number, optional event metadata, then a
// length-prefixed payload.

// ProtocolVersion is the only wire version this client speaks.
const ProtocolVersion = 0b0001

// MessageType occupies the high nibble of header byte 1.
type MessageType uint8

const (
	// FullClientRequest carries the JSON session configuration.
	FullClientRequest MessageType = 0b0001
	// AudioOnlyRequest carries one chunk of raw audio.
	AudioOnlyRequest MessageType = 0b0010
	// FullServerResponse carries a JSON recognition result.
	FullServerResponse MessageType = 0b1001
	// AudioOnlyServerResponse carries synthesized audio bytes.
	AudioOnlyServerResponse MessageType = 0b1011
	// ErrorMessage carries an error code plus payload.
	ErrorMessage MessageType = 0b1111
)

// MessageFlags occupy the low nibble of header byte 1.
type MessageFlags uint8

const (
	NoSequenceNumber       MessageFlags = 0b0000
	PositiveSequenceNumber MessageFlags = 0b0001
	LastPacketNoSequence   MessageFlags = 0b0010
	// NegativeSequenceNumber marks the final packet of a stream.
	NegativeSequenceNumber MessageFlags = 0b0011
	// WithEvent marks messages that carry event metadata.
	WithEvent MessageFlags = 0b0100
)

// EventType identifies server lifecycle events on event-carrying frames.
type EventType int32

const (
	EventTypeNone               EventType = 0
	EventTypeConnectionStarted  EventType = 50
	EventTypeConnectionFailed   EventType = 51
	EventTypeConnectionFinished EventType = 52
	EventTypeSessionStarted     EventType = 150
	EventTypeSessionFinished    EventType = 152
	EventTypeSessionFailed      EventType = 153
)

// SerializationMethod occupies the high nibble of header byte 2.
type SerializationMethod uint8

const (
	NoSerialization   SerializationMethod = 0b0000
	JSONSerialization SerializationMethod = 0b0001
)

// CompressionMethod occupies the low nibble of header byte 2.
type CompressionMethod uint8

const (
	NoCompression   CompressionMethod = 0b0000
	GzipCompression CompressionMethod = 0b0001
)

// Header is the fixed 4-byte frame header.
type Header struct {
	ProtocolVersion     uint8
	HeaderSize          uint8
	MessageType         MessageType
	MessageFlags        MessageFlags
	SerializationMethod SerializationMethod
	CompressionMethod   CompressionMethod
	Reserved            uint8
}

// Message is one decoded frame.
type Message struct {
	Header      Header
	Sequence    int32
	EventType   EventType
	SessionID   string
	ConnectID   string
	ErrorCode   uint32
	PayloadSize uint32
	Payload     []byte
}

// NewHeader builds a header with the standard 4-byte size.
func NewHeader(msgType MessageType, flags MessageFlags, serialization SerializationMethod, compression CompressionMethod) Header {
	return Header{
		ProtocolVersion:     ProtocolVersion,
		HeaderSize:          0b0001,
		MessageType:         msgType,
		MessageFlags:        flags,
		SerializationMethod: serialization,
		CompressionMethod:   compression,
	}
}

// Encode packs the header into its 4-byte wire form.
func (h *Header) Encode() []byte {
	return []byte{
		(h.ProtocolVersion << 4) | h.HeaderSize,
		(uint8(h.MessageType) << 4) | uint8(h.MessageFlags),
		(uint8(h.SerializationMethod) << 4) | uint8(h.CompressionMethod),
		h.Reserved,
	}
}

// DecodeHeader parses the 4-byte wire header.
func DecodeHeader(data []byte) (*Header, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("header data too short: got %d, need 4", len(data))
	}

	header := &Header{
		ProtocolVersion:     (data[0] >> 4) & 0x0F,
		HeaderSize:          data[0] & 0x0F,
		MessageType:         MessageType((data[1] >> 4) & 0x0F),
		MessageFlags:        MessageFlags(data[1] & 0x0F),
		SerializationMethod: SerializationMethod((data[2] >> 4) & 0x0F),
		CompressionMethod:   CompressionMethod(data[2] & 0x0F),
		Reserved:            data[3],
	}

	if header.ProtocolVersion != ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", header.ProtocolVersion)
	}
	return header, nil
}

// EncodeMessage serializes a full frame.
func EncodeMessage(msg *Message) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	buf.Write(msg.Header.Encode())

	switch msg.Header.MessageFlags & 0b0011 {
	case PositiveSequenceNumber, NegativeSequenceNumber:
		seq := make([]byte, 4)
		binary.BigEndian.PutUint32(seq, uint32(msg.Sequence))
		buf.Write(seq)
	}

	size := make([]byte, 4)
	binary.BigEndian.PutUint32(size, msg.PayloadSize)
	buf.Write(size)

	if len(msg.Payload) > 0 {
		buf.Write(msg.Payload)
	}
	return buf.Bytes(), nil
}

// DecodeMessage parses one frame from the reader.
func DecodeMessage(reader io.Reader) (*Message, error) {
	headerBytes := make([]byte, 4)
	if _, err := io.ReadFull(reader, headerBytes); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	header, err := DecodeHeader(headerBytes)
	if err != nil {
		return nil, err
	}

	msg := &Message{Header: *header}

	// Extended headers are padded to HeaderSize*4 bytes; skip the extra.
	if extra := int(header.HeaderSize)*4 - 4; extra > 0 {
		if _, err := io.CopyN(io.Discard, reader, int64(extra)); err != nil {
			return nil, fmt.Errorf("failed to read extended header: %w", err)
		}
	}

	switch header.MessageFlags & 0b0011 {
	case PositiveSequenceNumber, NegativeSequenceNumber:
		seq := make([]byte, 4)
		if _, err := io.ReadFull(reader, seq); err != nil {
			return nil, fmt.Errorf("failed to read sequence: %w", err)
		}
		msg.Sequence = int32(binary.BigEndian.Uint32(seq))
	}

	if header.MessageFlags&WithEvent == WithEvent {
		if err := decodeEventMeta(reader, msg); err != nil {
			return nil, err
		}
	}

	if header.MessageType == ErrorMessage {
		code := make([]byte, 4)
		if _, err := io.ReadFull(reader, code); err != nil {
			return nil, fmt.Errorf("failed to read error code: %w", err)
		}
		msg.ErrorCode = binary.BigEndian.Uint32(code)
	}

	size := make([]byte, 4)
	if _, err := io.ReadFull(reader, size); err != nil {
		return nil, fmt.Errorf("failed to read payload size: %w", err)
	}
	msg.PayloadSize = binary.BigEndian.Uint32(size)

	if msg.PayloadSize > 0 {
		msg.Payload = make([]byte, msg.PayloadSize)
		if _, err := io.ReadFull(reader, msg.Payload); err != nil {
			return nil, fmt.Errorf("failed to read payload (expected %d bytes): %w", msg.PayloadSize, err)
		}
	}
	return msg, nil
}

func decodeEventMeta(reader io.Reader, msg *Message) error {
	var eventRaw int32
	if err := binary.Read(reader, binary.BigEndian, &eventRaw); err != nil {
		return fmt.Errorf("failed to read event type: %w", err)
	}
	msg.EventType = EventType(eventRaw)

	if !eventSkipsSessionID(msg.EventType) {
		id, err := readSizedString(reader)
		if err != nil {
			return fmt.Errorf("failed to read session id: %w", err)
		}
		msg.SessionID = id
	}

	if eventHasConnectID(msg.EventType) {
		id, err := readSizedString(reader)
		if err != nil {
			return fmt.Errorf("failed to read connect id: %w", err)
		}
		msg.ConnectID = id
	}
	return nil
}

func readSizedString(reader io.Reader) (string, error) {
	var size uint32
	if err := binary.Read(reader, binary.BigEndian, &size); err != nil {
		return "", err
	}
	if size == 0 {
		return "", nil
	}
	raw := make([]byte, size)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}

func eventSkipsSessionID(event EventType) bool {
	switch event {
	case EventTypeConnectionStarted, EventTypeConnectionFailed, EventTypeConnectionFinished:
		return true
	default:
		return false
	}
}

func eventHasConnectID(event EventType) bool {
	switch event {
	case EventTypeConnectionStarted, EventTypeConnectionFailed, EventTypeConnectionFinished:
		return true
	default:
		return false
	}
}

// NewFullClientRequest frames the JSON session configuration.
func NewFullClientRequest(payload []byte, compression CompressionMethod) *Message {
	header := NewHeader(FullClientRequest, NoSequenceNumber, JSONSerialization, compression)
	return &Message{
		Header:      header,
		PayloadSize: uint32(len(payload)),
		Payload:     payload,
	}
}

// NewAudioOnlyRequest frames one audio chunk. The final chunk of a stream
// is flagged by negating its sequence number.
func NewAudioOnlyRequest(audio []byte, sequence int32, isLast bool, compression CompressionMethod) *Message {
	var flags MessageFlags
	switch {
	case isLast && sequence != 0:
		flags = NegativeSequenceNumber
		sequence = -sequence
	case isLast:
		flags = LastPacketNoSequence
	case sequence > 0:
		flags = PositiveSequenceNumber
	default:
		flags = NoSequenceNumber
	}

	header := NewHeader(AudioOnlyRequest, flags, NoSerialization, compression)
	return &Message{
		Header:      header,
		Sequence:    sequence,
		PayloadSize: uint32(len(audio)),
		Payload:     audio,
	}
}

// IsLastPacket reports whether this frame ends its stream.
func (m *Message) IsLastPacket() bool {
	switch m.Header.MessageFlags & 0b0011 {
	case LastPacketNoSequence, NegativeSequenceNumber:
		return true
	default:
		return false
	}
}

// IsErrorMessage reports whether this frame carries a server error.
func (m *Message) IsErrorMessage() bool {
	return m.Header.MessageType == ErrorMessage
}
