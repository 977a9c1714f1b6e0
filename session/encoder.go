package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const sessionFormatVersionCurrent = 1

// ErrCorruptSession is returned when a stored blob cannot be decoded.
var ErrCorruptSession = errors.New("corrupt session blob")

// Encode serializes a session into the compact binary wire format. The
// session ID is the Redis key and is not stored in the blob.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	if len(s.UserID) > 255 {
		return nil, errors.New("userID too long")
	}
	buf.WriteByte(byte(len(s.UserID)))
	buf.WriteString(s.UserID)

	userAgent := s.UserAgent
	if len(userAgent) > 1024 {
		userAgent = userAgent[:1024]
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(userAgent))); err != nil {
		return nil, err
	}
	buf.WriteString(userAgent)

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses the binary wire format back into a session.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptSession
	}
	if version != sessionFormatVersionCurrent {
		return nil, ErrCorruptSession
	}

	s := &Session{}

	userLen, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptSession
	}
	userID := make([]byte, userLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, ErrCorruptSession
	}
	s.UserID = string(userID)

	var uaLen uint16
	if err := binary.Read(reader, binary.BigEndian, &uaLen); err != nil {
		return nil, ErrCorruptSession
	}
	userAgent := make([]byte, uaLen)
	if _, err := io.ReadFull(reader, userAgent); err != nil {
		return nil, ErrCorruptSession
	}
	s.UserAgent = string(userAgent)

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, ErrCorruptSession
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, ErrCorruptSession
	}

	if reader.Len() != 0 {
		return nil, ErrCorruptSession
	}

	return s, nil
}
