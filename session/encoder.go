package session

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// Binary record layout, version 1:
//
//	byte    version
//	str     ID, UserID, AccessToken, RefreshToken   (uint16 length prefix)
//	int64   ExpiresAt, RefreshExpiresAt, CreatedAt,
//	        UpdatedAt, LastAccessAt                 (unix seconds, 0 = unset)
//	uint16  metadata pair count, then key/value strings
//
// The format is append-only: later versions may add trailing fields but must
// never reinterpret existing ones.
const recordVersionV1 = 1

const maxFieldLen = 65535

func encodeRecord(sess *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordVersionV1)

	for _, field := range []string{sess.ID, sess.UserID, sess.AccessToken, sess.RefreshToken} {
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
	}

	for _, ts := range []time.Time{sess.ExpiresAt, sess.RefreshExpiresAt, sess.CreatedAt, sess.UpdatedAt, sess.LastAccessAt} {
		if err := binary.Write(&buf, binary.BigEndian, unixOrZero(ts)); err != nil {
			return nil, err
		}
	}

	if len(sess.Metadata) > maxFieldLen {
		return nil, fmt.Errorf("%w: metadata too large", ErrInvalidSession)
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(sess.Metadata))); err != nil {
		return nil, err
	}
	for key, value := range sess.Metadata {
		if err := writeString(&buf, key); err != nil {
			return nil, err
		}
		if err := writeString(&buf, value); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptRecord
	}
	if version != recordVersionV1 {
		return nil, fmt.Errorf("%w: unknown version %d", ErrCorruptRecord, version)
	}

	sess := &Session{}
	for _, dst := range []*string{&sess.ID, &sess.UserID, &sess.AccessToken, &sess.RefreshToken} {
		value, err := readString(reader)
		if err != nil {
			return nil, err
		}
		*dst = value
	}

	for _, dst := range []*time.Time{&sess.ExpiresAt, &sess.RefreshExpiresAt, &sess.CreatedAt, &sess.UpdatedAt, &sess.LastAccessAt} {
		var ts int64
		if err := binary.Read(reader, binary.BigEndian, &ts); err != nil {
			return nil, ErrCorruptRecord
		}
		if ts != 0 {
			*dst = time.Unix(ts, 0).UTC()
		}
	}

	var pairs uint16
	if err := binary.Read(reader, binary.BigEndian, &pairs); err != nil {
		return nil, ErrCorruptRecord
	}
	if pairs > 0 {
		sess.Metadata = make(map[string]string, pairs)
		for i := 0; i < int(pairs); i++ {
			key, err := readString(reader)
			if err != nil {
				return nil, err
			}
			value, err := readString(reader)
			if err != nil {
				return nil, err
			}
			sess.Metadata[key] = value
		}
	}

	if sess.ID == "" || sess.AccessToken == "" || sess.RefreshToken == "" {
		return nil, ErrCorruptRecord
	}

	return sess, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > maxFieldLen {
		return fmt.Errorf("%w: field too long", ErrInvalidSession)
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	var length uint16
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return "", ErrCorruptRecord
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", ErrCorruptRecord
	}
	return string(raw), nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
