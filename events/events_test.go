package events

import (
	"testing"

	"github.com/cvsouth/flic2-go/flic2model"
)

func buildPayload(pressCounter uint32, records ...byte) []byte {
	payload := []byte{
		byte(pressCounter), byte(pressCounter >> 8), byte(pressCounter >> 16), byte(pressCounter >> 24),
	}
	for _, info := range records {
		payload = append(payload, 0, 0, 0, 0, 0, 0) // timestamp, unused by Decode
		payload = append(payload, info)
	}
	return payload
}

func TestDecodeSimpleUp(t *testing.T) {
	got, err := Decode(buildPayload(7, 0x00))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Type != flic2model.EventUp || got[0].WasQueued || got[0].PressCounter != 7 {
		t.Fatalf("got %+v", got[0])
	}
}

func TestDecodeExtendedHold(t *testing.T) {
	got, err := Decode(buildPayload(1, 0x0C))
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Type != flic2model.EventHold {
		t.Fatalf("got type %v, want HOLD", got[0].Type)
	}
}

func TestDecodeExtendedDoubleClickWasQueued(t *testing.T) {
	got, err := Decode(buildPayload(1, 0x1B))
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Type != flic2model.EventDoubleClick {
		t.Fatalf("got type %v, want DOUBLE_CLICK", got[0].Type)
	}
	if !got[0].WasQueued {
		t.Fatal("expected WasQueued = true")
	}
}

func TestDecodeLegacyMapping(t *testing.T) {
	cases := []struct {
		info byte
		want flic2model.ButtonEventType
	}{
		{0x00, flic2model.EventUp},
		{0x01, flic2model.EventDown},
		{0x02, flic2model.EventClick},
		{0x03, flic2model.EventSingleClick},
		{0x04, flic2model.EventDoubleClick},
		{0x05, flic2model.EventHold},
	}
	for _, c := range cases {
		got, err := Decode(buildPayload(0, c.info))
		if err != nil {
			t.Fatal(err)
		}
		if got[0].Type != c.want {
			t.Errorf("info=0x%02x: got %v, want %v", c.info, got[0].Type, c.want)
		}
	}
}

func TestDecodeMultipleRecords(t *testing.T) {
	got, err := Decode(buildPayload(3, 0x01, 0x00))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Type != flic2model.EventDown || got[1].Type != flic2model.EventUp {
		t.Fatalf("got %+v", got)
	}
}

func TestDecodeRejectsShortPayload(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error on short payload")
	}
}

func TestDecodeRejectsMisalignedPayload(t *testing.T) {
	payload := buildPayload(0, 0x00)
	payload = payload[:len(payload)-1]
	if _, err := Decode(payload); err == nil {
		t.Fatal("expected error on misaligned trailing bytes")
	}
}
