package cache

// Cache is the subset of LRU behaviour the expense book relies on.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V)
	Delete(key K)
	Purge()
	Len() int
}

var _ Cache[string, int] = (*LRU[string, int])(nil)
