// Package wipe overwrites sensitive buffers in place.
//
// Erasure is best effort. The Go runtime may already have copied a buffer
// (slice growth, stack moves, GC compaction in future runtimes) and the OS may
// have swapped its pages out; neither copy is reachable from here. Treat Erase
// as risk reduction, not as a guarantee that the bytes are gone.
package wipe

import (
	"math/rand/v2"
	"runtime"
)

// randomPasses is the number of pseudo-random overwrites following the zero pass.
const randomPasses = 3

// Erase zeroes buf and then overwrites it three times with fresh
// pseudo-random bytes. It never fails. The caller must not expect any
// meaningful content in buf afterwards.
func Erase(buf []byte) {
	if len(buf) == 0 {
		return
	}
	Zero(buf)
	src := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	for pass := 0; pass < randomPasses; pass++ {
		fill(buf, src)
	}
	runtime.KeepAlive(buf)
}

// Zero overwrites buf with zeros. Used for short-lived scratch buffers.
func Zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	runtime.KeepAlive(buf)
}

// EraseAll erases every buffer in bufs.
func EraseAll(bufs ...[]byte) {
	for _, b := range bufs {
		Erase(b)
	}
}

func fill(buf []byte, src *rand.Rand) {
	i := 0
	for ; i+8 <= len(buf); i += 8 {
		v := src.Uint64()
		buf[i] = byte(v)
		buf[i+1] = byte(v >> 8)
		buf[i+2] = byte(v >> 16)
		buf[i+3] = byte(v >> 24)
		buf[i+4] = byte(v >> 32)
		buf[i+5] = byte(v >> 40)
		buf[i+6] = byte(v >> 48)
		buf[i+7] = byte(v >> 56)
	}
	if i < len(buf) {
		v := src.Uint64()
		for ; i < len(buf); i++ {
			buf[i] = byte(v)
			v >>= 8
		}
	}
}
