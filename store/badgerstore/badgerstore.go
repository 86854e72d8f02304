// Package badgerstore is the durable store.MessageStore implementation,
// backed by an embedded BadgerDB instance per shard.
//
// Grounded on marmos91-dittofs's pkg/store/metadata/badger/root.go: the
// same db.Update transaction / txn.Get-then-Set idempotency pattern used
// there for "create root directory if it doesn't already exist" is used
// here for "append if this sequence hasn't already been recorded" — an
// append-only log is just that idempotency check applied to every write.
package badgerstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"fixcore/store"
)

// Store is a single BadgerDB-backed MessageStore. store.Sharded composes
// several of these (or other MessageStore implementations) behind a
// loadbalance.Balancer.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) a BadgerDB instance rooted at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// key layout: m/{sessionID}/{direction}/{seq as 8-byte big-endian}
// The big-endian sequence suffix keeps keys in ascending numeric order
// under Badger's lexicographic iterator, so Range needs no decoding pass.
func recordKey(sessionID string, direction store.Direction, seq uint32) []byte {
	k := make([]byte, 0, len(sessionID)+16)
	k = append(k, 'm', '/')
	k = append(k, sessionID...)
	k = append(k, '/', byte(direction), '/')
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], uint64(seq))
	k = append(k, seqBuf[:]...)
	return k
}

func streamPrefix(sessionID string, direction store.Direction) []byte {
	k := make([]byte, 0, len(sessionID)+4)
	k = append(k, 'm', '/')
	k = append(k, sessionID...)
	k = append(k, '/', byte(direction), '/')
	return k
}

type storedRecord struct {
	Frame    []byte
	WallTime int64
}

func encodeRecord(frame []byte, wallTime time.Time) []byte {
	buf := make([]byte, 8+len(frame))
	binary.BigEndian.PutUint64(buf[:8], uint64(wallTime.UnixNano()))
	copy(buf[8:], frame)
	return buf
}

func decodeRecord(data []byte) (frame []byte, wallTime time.Time, err error) {
	if len(data) < 8 {
		return nil, time.Time{}, fmt.Errorf("badgerstore: truncated record (%d bytes)", len(data))
	}
	nanos := int64(binary.BigEndian.Uint64(data[:8]))
	frame = make([]byte, len(data)-8)
	copy(frame, data[8:])
	return frame, time.Unix(0, nanos).UTC(), nil
}

func (s *Store) Append(ctx context.Context, sessionID string, direction store.Direction, seq uint32, frame []byte, wallTime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := recordKey(sessionID, direction, seq)
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return store.ErrDuplicate
		}
		if err != badger.ErrKeyNotFound {
			return fmt.Errorf("badgerstore: check existing record: %w", err)
		}
		return txn.Set(key, encodeRecord(frame, wallTime))
	})
}

func (s *Store) Range(ctx context.Context, sessionID string, direction store.Direction, beginSeq, endSeq uint32) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []store.Record
	beginKey := recordKey(sessionID, direction, beginSeq)
	prefix := streamPrefix(sessionID, direction)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(beginKey); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			k := item.Key()
			seq := uint32(binary.BigEndian.Uint64(k[len(k)-8:]))
			if endSeq != 0 && seq > endSeq {
				break
			}
			err := item.Value(func(val []byte) error {
				frame, wallTime, err := decodeRecord(val)
				if err != nil {
					return err
				}
				out = append(out, store.Record{
					SessionID: sessionID,
					Direction: direction,
					Seq:       seq,
					Frame:     frame,
					WallTime:  wallTime,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) LastSeq(ctx context.Context, sessionID string, direction store.Direction) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var last uint32
	prefix := streamPrefix(sessionID, direction)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seeking in reverse starts just after the largest key with this
		// prefix, so append a byte higher than any suffix can produce.
		seekKey := append(append([]byte{}, prefix...), 0xFF)
		it.Seek(seekKey)
		if it.ValidForPrefix(prefix) {
			k := it.Item().Key()
			last = uint32(binary.BigEndian.Uint64(k[len(k)-8:]))
		}
		return nil
	})
	return last, err
}

func (s *Store) Close() error {
	return s.db.Close()
}
