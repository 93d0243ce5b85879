package qjs

import "fmt"

// Valid userspace pointer range for the target (ARM64, 48-bit VA).
const (
	MinValidPtr = 0x1000
	MaxValidPtr = 0x0000FFFFFFFFFFFF
	PtrAlign    = 8
)

// Structure sizes as decoded from the target.
const (
	ObjectSize = 24
	ShapeSize  = 40
	ValueSize  = 16
)

// JSValue tags.
const (
	TagInt       = 0
	TagUndefined = 4
	TagNull      = 5
	TagBool      = 6
	TagException = 7
	TagFloat64   = 8
)

// Built-in class ids. The engine registers user classes above these, but
// anything outside 1-255 has never been observed on a live heap.
const (
	ClassObject            = 1
	ClassArray             = 2
	ClassFunction          = 3
	ClassError             = 4
	ClassNumber            = 5
	ClassString            = 6
	ClassBoolean           = 7
	ClassSymbol            = 8
	ClassRegExp            = 9
	ClassDate              = 10
	ClassMath              = 11
	ClassJSON              = 12
	ClassProxy             = 13
	ClassMap               = 14
	ClassSet               = 15
	ClassWeakMap           = 16
	ClassWeakSet           = 17
	ClassArrayBuffer       = 18
	ClassSharedArrayBuffer = 19
	ClassPromise           = 30
	ClassGenerator         = 31

	ClassIDMin = 1
	ClassIDMax = 255
)

// Values repeatedly seen in corrupted shape fields on the target. A heap
// pointer matching one of these is almost certainly a stray JSValue write.
var SuspiciousPatterns = []uint64{
	0xc0000000,
	0xc0000008,
	0xFFFFFFFFFFFFFFFE,
	0xFFFFFFFFFFFFFFFF,
	0,
	0x8,
	0x10,
}

var tagNames = map[uint64]string{
	0: "JS_TAG_INT",
	1: "JS_TAG_BOOL/UNDEFINED",
	2: "JS_TAG_NULL",
	3: "JS_TAG_EXCEPTION",
	4: "JS_TAG_CATCH_OFFSET",
	5: "JS_TAG_UNINITIALIZED",
	6: "JS_TAG_UNDEFINED",
	7: "JS_TAG_UNDEFINED2",
	8: "JS_TAG_FLOAT64",
}

// TagName decodes the low-nibble tag of a value misread as a pointer.
func TagName(val uint64) string {
	if name, ok := tagNames[val&0xF]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_TAG_%d", val&0xF)
}

// IsValidPtr reports whether val is a plausible heap pointer: nonzero,
// inside the userspace range, and 8-byte aligned.
func IsValidPtr(val uint64) bool {
	if val == 0 || val < MinValidPtr || val > MaxValidPtr {
		return false
	}
	return val&(PtrAlign-1) == 0
}

// LooksTagged reports whether val looks like a small tagged JSValue:
// low nibble set, everything above it clear.
func LooksTagged(val uint64) bool {
	return val&0xF != 0 && val>>4 == 0
}
