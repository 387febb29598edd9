package httpmsg

import "fmt"

// Version is a parsed HTTP version (major.minor).
type Version struct {
	Major int
	Minor int
}

// HTTP/1.0 and HTTP/1.1, the only versions this codec understands.
var (
	HTTP10 = Version{1, 0}
	HTTP11 = Version{1, 1}
)

// ParseVersion parses an "HTTP/x.y" token from a request line.
func ParseVersion(tok string) (Version, bool) {
	var major, minor int
	n, err := fmt.Sscanf(tok, "HTTP/%d.%d", &major, &minor)
	if err != nil || n != 2 {
		return Version{}, false
	}
	if major != 1 || (minor != 0 && minor != 1) {
		return Version{}, false
	}
	return Version{major, minor}, true
}

func (v Version) String() string {
	return fmt.Sprintf("HTTP/%d.%d", v.Major, v.Minor)
}

// KeepAliveDefault reports the protocol's default persistence behavior in
// the absence of a Connection header: true for 1.1, false for 1.0.
func (v Version) KeepAliveDefault() bool {
	return v.Minor >= 1
}
