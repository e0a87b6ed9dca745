package security

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const basicProfileFormatVersion = 1

// ErrUnsupportedProfile is returned when a codec is asked to encode a profile type
// it does not own.
var ErrUnsupportedProfile = errors.New("unsupported profile type")

// BasicCodec persists [BasicProfile] values. Session data is stored as JSON; on
// decode it is unmarshalled into the value returned by NewData, or into a generic
// value when NewData is nil.
type BasicCodec struct {
	Policy  *Policy
	NewData func() any
}

// NewBasicCodec returns a [BasicCodec] bound to policy.
func NewBasicCodec(policy *Policy) *BasicCodec {
	return &BasicCodec{Policy: policy}
}

// EncodeProfile implements [ProfileCodec].
func (c *BasicCodec) EncodeProfile(p Profile) ([]byte, error) {
	basic, ok := p.(*BasicProfile)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedProfile, p)
	}

	var buf bytes.Buffer
	buf.WriteByte(basicProfileFormatVersion)

	if len(basic.groups) > 255 {
		return nil, errors.New("too many groups")
	}
	buf.WriteByte(byte(len(basic.groups)))
	for _, g := range basic.groups {
		if len(g) > 255 {
			return nil, errors.New("group name too long")
		}
		buf.WriteByte(byte(len(g)))
		buf.WriteString(g)
	}

	var data []byte
	if basic.data != nil {
		var err error
		data, err = json.Marshal(basic.data)
		if err != nil {
			return nil, fmt.Errorf("encode session data: %w", err)
		}
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	buf.Write(data)

	return buf.Bytes(), nil
}

// DecodeProfile implements [ProfileCodec].
func (c *BasicCodec) DecodeProfile(data []byte) (Profile, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != basicProfileFormatVersion {
		return nil, fmt.Errorf("unsupported profile format version %d", version)
	}

	count, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	groups := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		n, err := reader.ReadByte()
		if err != nil {
			return nil, err
		}
		name := make([]byte, n)
		if _, err := io.ReadFull(reader, name); err != nil {
			return nil, err
		}
		groups = append(groups, string(name))
	}

	var dataLen uint32
	if err := binary.Read(reader, binary.BigEndian, &dataLen); err != nil {
		return nil, err
	}
	if int64(dataLen) > int64(reader.Len()) {
		return nil, io.ErrUnexpectedEOF
	}
	raw := make([]byte, dataLen)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return nil, err
	}

	profile, err := c.Policy.Profile(groups...)
	if err != nil {
		return nil, err
	}

	if len(raw) > 0 {
		var target any
		if c.NewData != nil {
			target = c.NewData()
			if err := json.Unmarshal(raw, target); err != nil {
				return nil, fmt.Errorf("decode session data: %w", err)
			}
		} else if err := json.Unmarshal(raw, &target); err != nil {
			return nil, fmt.Errorf("decode session data: %w", err)
		}
		profile.data = target
	}

	return profile, nil
}
