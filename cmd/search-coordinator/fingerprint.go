package main

import (
	"encoding/hex"
	"strconv"

	"lukechampine.com/blake3"
)

// hashRequest builds the cache fingerprint named in §3.1: a hash of
// (normalized sql, time range), the same blake3-keyed-digest idiom
// internal/alert's incident correlation uses for its stable dimension
// key.
func hashRequest(sql string, start, end int64) string {
	buf := []byte(sql)
	buf = append(buf, '\x00')
	buf = strconv.AppendInt(buf, start, 10)
	buf = append(buf, '\x00')
	buf = strconv.AppendInt(buf, end, 10)
	sum := blake3.Sum256(buf)
	return hex.EncodeToString(sum[:])
}
