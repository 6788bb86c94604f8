// Package codec implements the binary form of chat events stored in ledger
// transactions.
//
// Layout, little-endian:
//
//	byte 0      event kind (0 create public room, 1 public room message)
//	create:     u8 length, zstd(room name)
//	message:    u8 length, zstd(room name), u16 length, zstd(content)
//
// Decoded text is validated again with the protocol limits (domain.DefaultRules),
// so a payload can never yield an invalid value. Locally configured limits
// only apply when an event is built, never when one is read from the ledger.
package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"ledger-chat/domain"
	"ledger-chat/domain/event"
	"ledger-chat/errors"
	"math"

	"github.com/klauspost/compress/zstd"
)

// maxDecodedSize bounds decompression of adversarial payloads.
const maxDecodedSize = 64 << 10

type Codec struct {
	protocol domain.Rules
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New builds a codec. The zstd encoder and decoder are shared and safe for
// concurrent use; Close releases them.
func New() (*Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &Codec{protocol: domain.DefaultRules(), encoder: encoder, decoder: decoder}, nil
}

func (c *Codec) Close() {
	_ = c.encoder.Close()
	c.decoder.Close()
}

// Serialize encodes a validly constructed event.
func (c *Codec) Serialize(e event.Event) ([]byte, error) {
	w := &writer{codec: c}
	if err := e.Accept(w); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

// Deserialize decodes a whole transaction payload. Trailing bytes are ignored.
func (c *Codec) Deserialize(data []byte) (event.Event, error) {
	return c.Decode(bytes.NewReader(data))
}

// Decode reads exactly one event from r.
func (c *Codec) Decode(r io.Reader) (event.Event, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		buffered := bufio.NewReader(r)
		br, r = buffered, buffered
	}

	id, err := br.ReadByte()
	if err != nil {
		return nil, ioError(err)
	}

	switch event.Kind(id) {
	case event.KindCreatePublicRoom:
		raw, err := c.readBlob(r, 1)
		if err != nil {
			return nil, err
		}
		name, err := domain.NewRoomName(c.protocol, raw)
		if err != nil {
			return nil, &DecodeError{Kind: KindInvalidName, Raw: raw, Err: err}
		}
		return event.NewCreatePublicRoom(name), nil

	case event.KindPublicRoomMessage:
		rawName, err := c.readBlob(r, 1)
		if err != nil {
			return nil, err
		}
		name, err := domain.NewRoomName(c.protocol, rawName)
		if err != nil {
			return nil, &DecodeError{Kind: KindInvalidRoomName, Raw: rawName, Err: err}
		}
		rawContent, err := c.readBlob(r, 2)
		if err != nil {
			return nil, err
		}
		content, err := domain.NewRoomMessage(c.protocol, rawContent)
		if err != nil {
			return nil, &DecodeError{Kind: KindInvalidContent, Raw: rawContent, Err: err}
		}
		return event.NewPublicRoomMessage(name, content), nil

	default:
		return nil, &DecodeError{Kind: KindUnknownEventID, ID: id}
	}
}

// readBlob reads a length-prefixed zstd frame and returns its text.
func (c *Codec) readBlob(r io.Reader, prefixSize int) (string, error) {
	prefix := make([]byte, prefixSize)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return "", ioError(err)
	}
	var n int
	if prefixSize == 1 {
		n = int(prefix[0])
	} else {
		n = int(binary.LittleEndian.Uint16(prefix))
	}

	blob := make([]byte, n)
	if _, err := io.ReadFull(r, blob); err != nil {
		return "", ioError(err)
	}
	text, err := c.decoder.DecodeAll(blob, nil)
	if err != nil {
		return "", &DecodeError{Kind: KindZstd, Err: err}
	}
	return string(text), nil
}

func ioError(err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return &DecodeError{Kind: KindIo, Err: err}
}

// writer serializes events through the visitor so a new kind cannot be
// forgotten.
type writer struct {
	codec *Codec
	buf   bytes.Buffer
}

func (w *writer) VisitCreatePublicRoom(e event.CreatePublicRoom) error {
	w.buf.WriteByte(byte(event.KindCreatePublicRoom))
	return w.writeBlob(e.Name.String(), math.MaxUint8)
}

func (w *writer) VisitPublicRoomMessage(e event.PublicRoomMessage) error {
	w.buf.WriteByte(byte(event.KindPublicRoomMessage))
	if err := w.writeBlob(e.RoomName.String(), math.MaxUint8); err != nil {
		return err
	}
	return w.writeBlob(e.Content.String(), math.MaxUint16)
}

func (w *writer) writeBlob(text string, limit int) error {
	blob := w.codec.encoder.EncodeAll([]byte(text), nil)
	if len(blob) > limit {
		return fmt.Errorf("%w: %d > %d", errors.ErrPayloadTooLarge, len(blob), limit)
	}
	if limit == math.MaxUint8 {
		w.buf.WriteByte(uint8(len(blob)))
	} else {
		_ = binary.Write(&w.buf, binary.LittleEndian, uint16(len(blob)))
	}
	w.buf.Write(blob)
	return nil
}
