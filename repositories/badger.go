package repositories

import (
	"encoding/json"
	"fmt"
	"match-chat/errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// maxTxnRetries bounds how many times a conflicting read-write transaction is replayed.
const maxTxnRetries = 64

// update runs fn in a read-write transaction and replays it when badger detects
// that a key read by fn was committed by someone else in the meantime.
// fn must be safe to run more than once.
func update(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt <= maxTxnRetries; attempt++ {
		err = db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Microsecond)
	}
	return fmt.Errorf("transaction still conflicting after %d attempts: %w", maxTxnRetries, err)
}

func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", errors.ErrNotFound, key)
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key string, v any) error {
	bytes, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), bytes)
}

func getString(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", errors.ErrNotFound, key)
	}
	if err != nil {
		return "", err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(val), nil
}

func exists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

// suffixes lists the key remainders under prefix, in key order.
func suffixes(txn *badger.Txn, prefix string) []string {
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()

	var res []string
	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		res = append(res, string(it.Item().Key()[len(p):]))
	}
	return res
}
