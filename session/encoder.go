package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/MrEthical07/netapi/security"
)

// CurrentSchemaVersion is the binary session layout written by [Encode].
const CurrentSchemaVersion = 1

const (
	maxValueKeyLen = 1<<16 - 1
	maxValues      = 1<<16 - 1
)

// ErrNoProfileCodec is returned when a session with an attached profile is encoded
// or decoded without a codec.
var ErrNoProfileCodec = errors.New("session profile codec not configured")

// Encode serializes s. The attached profile, if any, is encoded with codec.
func Encode(s *Session, codec security.ProfileCodec) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(CurrentSchemaVersion)

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	if s.profile == nil {
		buf.WriteByte(0)
	} else {
		if codec == nil {
			return nil, ErrNoProfileCodec
		}
		profileBytes, err := codec.EncodeProfile(s.profile)
		if err != nil {
			return nil, fmt.Errorf("encode profile: %w", err)
		}
		buf.WriteByte(1)
		if err := binary.Write(&buf, binary.BigEndian, uint32(len(profileBytes))); err != nil {
			return nil, err
		}
		buf.Write(profileBytes)
	}

	if len(s.values) > maxValues {
		return nil, errors.New("too many session values")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(s.values))); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if len(k) > maxValueKeyLen {
			return nil, errors.New("session value key too long")
		}
		v := s.values[k]
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(k))); err != nil {
			return nil, err
		}
		buf.WriteString(k)
		if err := binary.Write(&buf, binary.BigEndian, uint32(len(v))); err != nil {
			return nil, err
		}
		buf.WriteString(v)
	}

	return buf.Bytes(), nil
}

// Decode parses a blob written by [Encode]. The returned session has no ID; stores
// set it from the key.
func Decode(data []byte, codec security.ProfileCodec) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != CurrentSchemaVersion {
		return nil, fmt.Errorf("unsupported session schema version %d", version)
	}

	s := &Session{}

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}

	hasProfile, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	switch hasProfile {
	case 0:
	case 1:
		raw, err := readBlock32(reader)
		if err != nil {
			return nil, err
		}
		if codec == nil {
			return nil, ErrNoProfileCodec
		}
		profile, err := codec.DecodeProfile(raw)
		if err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
		s.profile = profile
	default:
		return nil, errors.New("invalid profile marker")
	}

	var count uint16
	if err := binary.Read(reader, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	if count > 0 {
		s.values = make(map[string]string, count)
	}
	for i := 0; i < int(count); i++ {
		var keyLen uint16
		if err := binary.Read(reader, binary.BigEndian, &keyLen); err != nil {
			return nil, err
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(reader, key); err != nil {
			return nil, err
		}
		value, err := readBlock32(reader)
		if err != nil {
			return nil, err
		}
		s.values[string(key)] = string(value)
	}

	return s, nil
}

func readBlock32(reader *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	if int64(n) > int64(reader.Len()) {
		return nil, io.ErrUnexpectedEOF
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}
