package reqctx_test

import (
	"testing"

	"variantsync/internal/reqctx"
)

func TestCaptureAssignsRequestID(t *testing.T) {
	snap := reqctx.Capture("default-channel", "en", "")
	if snap.RequestID == "" {
		t.Fatal("expected a generated request id")
	}
	snap = reqctx.Capture("default-channel", "en", "req-1")
	if snap.RequestID != "req-1" {
		t.Fatalf("want req-1, got %s", snap.RequestID)
	}
}

func TestSerializeRestoreRoundTrip(t *testing.T) {
	snap := reqctx.Capture("channel-2", "de", "req-9")
	data, err := snap.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	got, err := reqctx.Restore(data)
	if err != nil {
		t.Fatal(err)
	}
	if got != snap {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, snap)
	}
}

func TestRestoreRejectsGarbage(t *testing.T) {
	if _, err := reqctx.Restore("{not json"); err == nil {
		t.Fatal("expected error")
	}
}
