package shift

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// ErrNoSession means no usable saved session exists at the configured
// path. Missing and malformed files are equivalent.
var ErrNoSession = errors.New("no saved session")

// sessionRecord is the opaque blob persisted between runs: the raw
// session cookie plus the account name it belongs to. The on-disk
// format is two length-prefixed byte strings.
type sessionRecord struct {
	Cookie   []byte
	Username string
}

func writeSessionFile(path string, rec sessionRecord) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	writeChunk(&buf, rec.Cookie)
	writeChunk(&buf, []byte(rec.Username))
	return os.WriteFile(path, buf.Bytes(), 0600)
}

func readSessionFile(path string) (sessionRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sessionRecord{}, ErrNoSession
	}

	buf := bytes.NewReader(raw)
	cookie, err := readChunk(buf)
	if err != nil {
		return sessionRecord{}, ErrNoSession
	}
	user, err := readChunk(buf)
	if err != nil {
		return sessionRecord{}, ErrNoSession
	}
	if len(cookie) == 0 {
		return sessionRecord{}, ErrNoSession
	}

	return sessionRecord{Cookie: cookie, Username: string(user)}, nil
}

func removeSessionFile(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func writeChunk(buf *bytes.Buffer, data []byte) {
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(data)))
	buf.Write(length[:])
	buf.Write(data)
}

func readChunk(buf *bytes.Reader) ([]byte, error) {
	var length [4]byte
	_, err := io.ReadFull(buf, length[:])
	if err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(length[:])
	if int(size) > buf.Len() {
		return nil, errors.New("truncated session record")
	}
	data := make([]byte, size)
	_, err = io.ReadFull(buf, data)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// parseSavedCookies turns the stored raw cookie bytes back into cookie
// values for the jar.
func parseSavedCookies(raw []byte) []*http.Cookie {
	header := http.Header{}
	header.Add("Set-Cookie", string(raw))
	res := http.Response{Header: header}
	return res.Cookies()
}
