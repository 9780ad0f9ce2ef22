package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/MrEthical07/sessionauth/identity"
	"github.com/MrEthical07/sessionauth/permission"
)

const payloadFormatVersionV1 = 1

// ErrCorruptPayload is returned by Decode for blobs it cannot read back.
var ErrCorruptPayload = errors.New("corrupt session payload")

// Encode serializes the identity view stored under a session's "user" field.
func Encode(v identity.View) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(64 + len(v.Email))

	buf.WriteByte(payloadFormatVersionV1)
	buf.Write(v.ID[:])
	buf.Write(v.AccountID[:])

	if v.BranchID != nil {
		buf.WriteByte(1)
		buf.Write(v.BranchID[:])
	} else {
		buf.WriteByte(0)
	}

	if v.Name != nil {
		buf.WriteByte(1)
		if err := writeString(&buf, "name", *v.Name); err != nil {
			return nil, err
		}
	} else {
		buf.WriteByte(0)
	}

	if err := writeString(&buf, "email", v.Email); err != nil {
		return nil, err
	}

	if !v.Role.Valid() {
		return nil, fmt.Errorf("encode session: %w", permission.ErrUnknownRole)
	}
	if err := writeString(&buf, "role", v.Role.String()); err != nil {
		return nil, err
	}

	if _, err := v.Status.MarshalText(); err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	buf.WriteByte(byte(v.Status))

	return buf.Bytes(), nil
}

// Decode parses a blob produced by Encode. Unknown versions, truncation, and
// trailing bytes are all reported as ErrCorruptPayload.
func Decode(data []byte) (identity.View, error) {
	var v identity.View
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return v, corrupt(err)
	}
	if version != payloadFormatVersionV1 {
		return v, fmt.Errorf("%w: version %d", ErrCorruptPayload, version)
	}

	if v.ID, err = readUUID(reader); err != nil {
		return identity.View{}, err
	}
	if v.AccountID, err = readUUID(reader); err != nil {
		return identity.View{}, err
	}

	present, err := readPresence(reader)
	if err != nil {
		return identity.View{}, err
	}
	if present {
		branch, err := readUUID(reader)
		if err != nil {
			return identity.View{}, err
		}
		v.BranchID = &branch
	}

	if present, err = readPresence(reader); err != nil {
		return identity.View{}, err
	}
	if present {
		name, err := readString(reader)
		if err != nil {
			return identity.View{}, err
		}
		v.Name = &name
	}

	if v.Email, err = readString(reader); err != nil {
		return identity.View{}, err
	}

	roleName, err := readString(reader)
	if err != nil {
		return identity.View{}, err
	}
	if v.Role, err = permission.ParseRole(roleName); err != nil {
		return identity.View{}, corrupt(err)
	}

	status, err := reader.ReadByte()
	if err != nil {
		return identity.View{}, corrupt(err)
	}
	v.Status = identity.Status(status)
	if v.Status != identity.StatusActive && v.Status != identity.StatusInactive {
		return identity.View{}, fmt.Errorf("%w: status %d", ErrCorruptPayload, status)
	}

	if reader.Len() != 0 {
		return identity.View{}, fmt.Errorf("%w: %d trailing bytes", ErrCorruptPayload, reader.Len())
	}

	return v, nil
}

func writeString(buf *bytes.Buffer, field, s string) error {
	if len(s) > 255 {
		return fmt.Errorf("encode session: %s too long", field)
	}
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", corrupt(err)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", corrupt(err)
	}
	return string(b), nil
}

func readUUID(r *bytes.Reader) (uuid.UUID, error) {
	var id uuid.UUID
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return id, corrupt(err)
	}
	return id, nil
}

func readPresence(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, corrupt(err)
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: presence byte %d", ErrCorruptPayload, b)
	}
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", ErrCorruptPayload, err)
}
