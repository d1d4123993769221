// Package sqlitevec stores document tables in SQLite using the cgo-free
// modernc.org/sqlite driver. Each document gets its own SQL table with
// vectors kept as little-endian float32 BLOBs; nearest-neighbor search is
// an ORDER BY over the vec_l2 scalar function registered with the driver.
package sqlitevec
