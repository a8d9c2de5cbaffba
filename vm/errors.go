package vm

import "github.com/pkg/errors"

// Code is a negative VM error code; 0 means FAIL and 1 means PASS, per the
// original executor's convention, kept here purely as a documentation aid
// since Go callers consume the richer error values below instead.
type Code int

const (
	CodeFail Code = 0
	CodePass Code = 1
)

var (
	errOutOfMemory    = errors.New("vm: out of memory")
	errStackOverflow  = errors.New("vm: stack overflow")
	errStackUnderflow = errors.New("vm: stack underflow")
	errFuncUndefined  = errors.New("vm: undefined foreign function")
	errKUndefined     = errors.New("vm: undefined constant")
	errBadAccessor    = errors.New("vm: bad accessor")
	errTrieMismatch   = errors.New("vm: trie family mismatch")
	errTrieUndefined  = errors.New("vm: no trie set for this family")
	errPacketMismatch = errors.New("vm: packet/operation family mismatch")
	errBadPacket      = errors.New("vm: malformed packet")
	errIllegalOpcode  = errors.New("vm: illegal opcode")
	errDanglingBlk    = errors.New("vm: dangling BLK at end of program")
	errSpuriousEndblk = errors.New("vm: ENDBLK without matching BLK")
	errSurprisingBytes = errors.New("vm: unexpected trailing bytes")
	errBadArray       = errors.New("vm: malformed array reference")
)
