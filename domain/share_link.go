package domain

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
)

const shareLinkVersion = 0

var (
	ErrShareLinkVersion   = fmt.Errorf("unsupported share link version")
	ErrShareLinkTruncated = fmt.Errorf("truncated share link")
	ErrShareLinkEncoding  = fmt.Errorf("invalid share link encoding")
)

// ShareLink is what a member hands out so that others can join a space:
// the root block of its ledger, the public key of its creator and a few
// shards to bootstrap from.
type ShareLink struct {
	RootBlock Hash
	PublicKey PublicKey
	Shards    []string
}

// Bytes encodes the link as a version byte followed by a zstd frame.
// Addresses longer than 65535 bytes cannot be encoded and are skipped.
func (l ShareLink) Bytes() ([]byte, error) {
	var raw bytes.Buffer
	raw.Write(l.RootBlock[:])
	raw.Write(l.PublicKey[:])
	for _, address := range l.Shards {
		if len(address) > math.MaxUint16 {
			continue
		}
		_ = binary.Write(&raw, binary.LittleEndian, uint16(len(address)))
		raw.WriteString(address)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	defer encoder.Close()

	out := []byte{shareLinkVersion}
	return encoder.EncodeAll(raw.Bytes(), out), nil
}

func ParseShareLinkBytes(b []byte) (ShareLink, error) {
	if len(b) == 0 {
		return ShareLink{}, ErrShareLinkTruncated
	}
	if b[0] != shareLinkVersion {
		return ShareLink{}, fmt.Errorf("%w: %d", ErrShareLinkVersion, b[0])
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return ShareLink{}, fmt.Errorf("zstd decoder: %w", err)
	}
	defer decoder.Close()

	raw, err := decoder.DecodeAll(b[1:], nil)
	if err != nil {
		return ShareLink{}, fmt.Errorf("zstd: %w", err)
	}
	if len(raw) < HashSize+PublicKeySize {
		return ShareLink{}, ErrShareLinkTruncated
	}

	var link ShareLink
	copy(link.RootBlock[:], raw[:HashSize])
	copy(link.PublicKey[:], raw[HashSize:HashSize+PublicKeySize])

	rest := raw[HashSize+PublicKeySize:]
	for len(rest) > 0 {
		if len(rest) < 2 {
			return ShareLink{}, ErrShareLinkTruncated
		}
		n := int(binary.LittleEndian.Uint16(rest))
		rest = rest[2:]
		if len(rest) < n {
			return ShareLink{}, ErrShareLinkTruncated
		}
		link.Shards = append(link.Shards, string(rest[:n]))
		rest = rest[n:]
	}
	return link, nil
}

func (l ShareLink) String() (string, error) {
	b, err := l.Bytes()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func ParseShareLink(s string) (ShareLink, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return ShareLink{}, fmt.Errorf("%w: %v", ErrShareLinkEncoding, err)
	}
	return ParseShareLinkBytes(b)
}
