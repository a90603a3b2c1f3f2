package swim

import (
	"testing"

	"github.com/meshkeeper/swimd/internal/wire"
)

func pingFrom(seq uint32, from string) wire.Message {
	return wire.NewPing(seq, from)
}

func pingReqFrom(seq uint32, from, target string) wire.Message {
	return wire.NewPingReq(seq, from, target)
}

func decodeMust(t *testing.T, b []byte) wire.Message {
	t.Helper()
	msg, err := wire.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return msg
}
