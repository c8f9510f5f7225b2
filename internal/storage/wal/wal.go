package wal

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"os"
	"sync"
)

// ErrCorrupt is returned when a record's checksum does not match.
var ErrCorrupt = errors.New("wal: corrupt record")

// WAL is an append-only log of opaque records. The in-memory engine
// logs every batch here before applying it, and replays the log on
// startup.
type WAL struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// Open opens or creates a WAL file.
func Open(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return &WAL{
		f:    f,
		path: path,
	}, nil
}

// Append writes one record and syncs it to disk.
// Format: Len(4) | Data(N) | CRC(4)
func (w *WAL) Append(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	if _, err := w.f.Write(buf); err != nil {
		return err
	}

	if _, err := w.f.Write(data); err != nil {
		return err
	}

	crc := crc32.ChecksumIEEE(data)
	binary.BigEndian.PutUint32(buf, crc)
	if _, err := w.f.Write(buf); err != nil {
		return err
	}

	return w.f.Sync()
}

// Iterate reads every record from the start of the log, calling handler
// for each. The write position is restored to the end afterwards.
func (w *WAL) Iterate(handler func(data []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	for {
		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(w.f, lenBuf); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		length := binary.BigEndian.Uint32(lenBuf)

		data := make([]byte, length)
		if _, err := io.ReadFull(w.f, data); err != nil {
			return err
		}

		crcBuf := make([]byte, 4)
		if _, err := io.ReadFull(w.f, crcBuf); err != nil {
			return err
		}
		if crc32.ChecksumIEEE(data) != binary.BigEndian.Uint32(crcBuf) {
			return ErrCorrupt
		}

		if err := handler(data); err != nil {
			return err
		}
	}

	_, err := w.f.Seek(0, io.SeekEnd)
	return err
}

func (w *WAL) Close() error {
	return w.f.Close()
}
