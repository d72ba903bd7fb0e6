// Package blocklist resolves the combined disposable-domain blocklist of a
// site from the bundled seed list, the remote feed, and the admin lists.
package blocklist

// BloomFilter is the minimal interface the remote list prefilter needs.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// BloomFactory constructs Bloom filters sized for a dataset.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}
