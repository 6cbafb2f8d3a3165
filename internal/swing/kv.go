package swing

// KVStore is the local persistent key-value store: string keys, string
// values, each operation atomic per key, no cross-key transactions.
type KVStore interface {
	// Get returns the value for key and whether it exists.
	Get(key string) (string, bool, error)

	// Set writes value under key, replacing any previous value.
	Set(key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Keys returns every key starting with prefix.
	Keys(prefix string) ([]string, error)
}
