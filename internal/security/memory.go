// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package security

// SecureString holds original, unredacted document text for the lifetime of
// a single request and zeroes its buffer on Clear.
//
// Go's garbage collector may copy memory, and every String() call produces an
// immutable copy that cannot be zeroed. Clear narrows the exposure window; it
// does not guarantee that no copy survives elsewhere on the heap.
type SecureString struct {
	data []byte
}

// NewSecureString copies s into a mutable buffer.
func NewSecureString(s string) *SecureString {
	data := make([]byte, len(s))
	copy(data, s)
	return &SecureString{data: data}
}

// NewSecureStringFromBytes takes ownership of b without copying. Callers
// must not reuse b.
func NewSecureStringFromBytes(b []byte) *SecureString {
	return &SecureString{data: b}
}

// String returns the held text.
func (ss *SecureString) String() string {
	if ss == nil {
		return ""
	}
	return string(ss.data)
}

// Len returns the length of the held text in bytes.
func (ss *SecureString) Len() int {
	if ss == nil {
		return 0
	}
	return len(ss.data)
}

// Clear overwrites the buffer with zeros and releases it. Safe to call more
// than once.
func (ss *SecureString) Clear() {
	if ss == nil || ss.data == nil {
		return
	}
	for i := range ss.data {
		ss.data[i] = 0
	}
	ss.data = nil
}
