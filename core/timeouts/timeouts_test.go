package timeouts

import (
	"net"
	"testing"
	"time"
)

func TestApplyReadZeroClearsDeadline(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	tt := Timeouts{} // all zero
	if err := tt.ApplyRead(c1, ReadRequestHead); err != nil {
		t.Fatalf("apply read: %v", err)
	}
}

func TestApplyWriteSetsDeadline(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	tt := Timeouts{WriteResponse: 10 * time.Millisecond}
	if err := tt.ApplyWrite(c1, WriteResponse); err != nil {
		t.Fatalf("apply write: %v", err)
	}

	buf := make([]byte, 1<<20)
	for {
		if _, err := c1.Write(buf); err != nil {
			if !IsTimeout(err) {
				t.Fatalf("expected timeout error, got %v", err)
			}
			return
		}
	}
}

func TestPhaseString(t *testing.T) {
	if ReadRequestHead.String() != "read_request_head" {
		t.Fatalf("unexpected phase name: %s", ReadRequestHead.String())
	}
}
