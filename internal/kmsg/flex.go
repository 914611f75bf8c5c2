package kmsg

import "github.com/moraxdb/morax/internal/kbin"

// readStr/writeStr/sizeStr and their bytes/array counterparts pick classic
// or flexible framing based on a single flexible bool, so each message type
// doesn't need to branch on its own. This mirrors how §4.2 describes
// nullable-string/bytes/array primitives as "selector passed per call".

func readStr(r *kbin.Reader, flexible bool) (string, bool) {
	if flexible {
		return r.CompactString()
	}
	return r.String()
}

func writeStr(w *kbin.Writer, s string, present, flexible bool) {
	if flexible {
		w.CompactString(s, present)
		return
	}
	w.String(s, present)
}

func sizeStr(s string, present, flexible bool) int {
	if flexible {
		return kbin.SizeCompactString(s, present)
	}
	return kbin.SizeString(s, present)
}

func readNonNullStr(r *kbin.Reader, flexible bool) string {
	s, _ := readStr(r, flexible)
	return s
}

func writeNonNullStr(w *kbin.Writer, s string, flexible bool) {
	writeStr(w, s, true, flexible)
}

func sizeNonNullStr(s string, flexible bool) int {
	return sizeStr(s, true, flexible)
}

func readBytes(r *kbin.Reader, flexible bool) ([]byte, bool) {
	if flexible {
		return r.CompactBytes()
	}
	return r.Bytes()
}

func writeBytes(w *kbin.Writer, b []byte, present, flexible bool) {
	if flexible {
		w.CompactBytes(b, present)
		return
	}
	w.Bytes(b, present)
}

func sizeBytes(b []byte, present, flexible bool) int {
	if flexible {
		return kbin.SizeCompactBytes(b, present)
	}
	return kbin.SizeBytes(b, present)
}

func readArrayLen(r *kbin.Reader, flexible bool) (int, bool) {
	if flexible {
		return r.CompactArrayLen()
	}
	return r.ArrayLen()
}

func writeArrayLen(w *kbin.Writer, n int, flexible bool) {
	if flexible {
		w.CompactArrayLen(n, true)
		return
	}
	w.ArrayLen(n, true)
}

func sizeArrayLen(n int, flexible bool) int {
	if flexible {
		return kbin.SizeUvarint(uint32(n) + 1)
	}
	return 4
}

func tags(r *kbin.Reader, flexible bool, decode kbin.TaggedFieldDecoder) []kbin.RawTag {
	if !flexible {
		return nil
	}
	return kbin.ReadTags(r, decode)
}

func writeTags(w *kbin.Writer, flexible bool, knownCount int, appendKnown func(*kbin.Writer), raw []kbin.RawTag) {
	if !flexible {
		return
	}
	kbin.WriteTags(w, knownCount, appendKnown, raw)
}

func sizeTags(flexible bool, knownCount, knownSize int, raw []kbin.RawTag) int {
	if !flexible {
		return 0
	}
	return kbin.SizeTags(knownCount, knownSize, raw)
}
