package ops

// EvictExpiredForTest exposes the janitor's eviction pass to tests.
var EvictExpiredForTest = evictExpired
