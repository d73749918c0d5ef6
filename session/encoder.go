package session

import (
	"encoding/binary"
	"errors"
	"time"
)

// Record layout, version 1:
//
//	[0]      version byte
//	[1:9]    user ID, big-endian int64
//	[9:41]   device hash
//	[41:49]  created at, unix seconds
//	[49:57]  expires at, unix seconds
//	[57:59]  public ID length, big-endian uint16
//	[59:..]  public ID bytes
const recordVersion = 1

var errCorruptRecord = errors.New("session: corrupt record")

func encode(s *Session) []byte {
	pid := []byte(s.PublicID)
	buf := make([]byte, 59+len(pid))
	buf[0] = recordVersion
	binary.BigEndian.PutUint64(buf[1:9], uint64(s.UserID))
	copy(buf[9:41], s.DeviceHash[:])
	binary.BigEndian.PutUint64(buf[41:49], uint64(s.CreatedAt.Unix()))
	binary.BigEndian.PutUint64(buf[49:57], uint64(s.ExpiresAt.Unix()))
	binary.BigEndian.PutUint16(buf[57:59], uint16(len(pid)))
	copy(buf[59:], pid)
	return buf
}

func decode(raw []byte) (*Session, error) {
	if len(raw) < 59 || raw[0] != recordVersion {
		return nil, errCorruptRecord
	}
	pidLen := int(binary.BigEndian.Uint16(raw[57:59]))
	if len(raw) != 59+pidLen {
		return nil, errCorruptRecord
	}

	s := &Session{
		UserID:    int64(binary.BigEndian.Uint64(raw[1:9])),
		CreatedAt: time.Unix(int64(binary.BigEndian.Uint64(raw[41:49])), 0).UTC(),
		ExpiresAt: time.Unix(int64(binary.BigEndian.Uint64(raw[49:57])), 0).UTC(),
		PublicID:  string(raw[59:]),
	}
	copy(s.DeviceHash[:], raw[9:41])
	return s, nil
}
