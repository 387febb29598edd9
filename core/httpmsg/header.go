package httpmsg

import "strings"

// Header is an ordered multimap of HTTP header fields. Lookups and
// framing decisions are case-insensitive; the case supplied by the
// original Add/Set call is preserved for serialization, matching the
// codec's tie-break rule (§4.1).
type Header struct {
	// order holds the canonical (as-added) name for each distinct header,
	// in first-seen order.
	order []string
	// values is keyed by the lower-cased name.
	values map[string][]string
	// original is keyed by the lower-cased name and records the name's
	// case as first supplied, used when serializing.
	original map[string]string
}

// NewHeader returns an empty Header multimap.
func NewHeader() *Header {
	return &Header{
		values:   make(map[string][]string),
		original: make(map[string]string),
	}
}

func key(name string) string {
	return strings.ToLower(name)
}

// Add appends a value under name, preserving any existing values.
func (h *Header) Add(name, value string) {
	k := key(name)
	if _, ok := h.values[k]; !ok {
		h.order = append(h.order, k)
		h.original[k] = name
	}
	h.values[k] = append(h.values[k], value)
}

// Set replaces all values for name with value.
func (h *Header) Set(name, value string) {
	k := key(name)
	if _, ok := h.values[k]; !ok {
		h.order = append(h.order, k)
	}
	h.original[k] = name
	h.values[k] = []string{value}
}

// Get returns the first value for name, or "" if absent.
func (h *Header) Get(name string) string {
	vs := h.values[key(name)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Values returns all values for name, in insertion order.
func (h *Header) Values(name string) []string {
	return h.values[key(name)]
}

// Has reports whether name has at least one value.
func (h *Header) Has(name string) bool {
	return len(h.values[key(name)]) > 0
}

// Del removes all values for name.
func (h *Header) Del(name string) {
	k := key(name)
	if _, ok := h.values[k]; !ok {
		return
	}
	delete(h.values, k)
	delete(h.original, k)
	for i, n := range h.order {
		if n == k {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Each calls fn once per distinct header name, in insertion order, with
// the caller-supplied case and every value for that name.
func (h *Header) Each(fn func(name string, values []string)) {
	for _, k := range h.order {
		fn(h.original[k], h.values[k])
	}
}

// HasToken reports whether name's comma-separated values contain token,
// compared case-insensitively. Used for Connection: close/keep-alive and
// Transfer-Encoding: chunked checks.
func (h *Header) HasToken(name, token string) bool {
	token = strings.ToLower(token)
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			if strings.ToLower(strings.TrimSpace(part)) == token {
				return true
			}
		}
	}
	return false
}
