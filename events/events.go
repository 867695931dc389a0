// Package events decodes button-event notification payloads into
// flic2model.ButtonEvent records.
package events

import (
	"encoding/binary"
	"fmt"

	"github.com/cvsouth/flic2-go/flic2model"
)

const recordLength = 7 // timestamp(6 LE) || event_info(1)

// Decode parses press_counter(4 LE) followed by zero or more 7-byte
// records and returns one ButtonEvent per record, in wire order.
func Decode(payload []byte) ([]flic2model.ButtonEvent, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("button event payload too short: %d bytes", len(payload))
	}

	pressCounter := binary.LittleEndian.Uint32(payload[:4])
	body := payload[4:]
	if len(body)%recordLength != 0 {
		return nil, fmt.Errorf("button event payload has %d trailing bytes, want multiple of %d", len(body), recordLength)
	}

	count := len(body) / recordLength
	out := make([]flic2model.ButtonEvent, 0, count)
	for i := 0; i < count; i++ {
		rec := body[i*recordLength : (i+1)*recordLength]
		info := rec[6]
		out = append(out, flic2model.ButtonEvent{
			Type:         decodeEventType(info),
			WasQueued:    (info>>4)&1 == 1,
			AgeSeconds:   0, // timestamp_hi snapshot at init time not yet wired; see design notes
			PressCounter: pressCounter,
		})
	}

	return out, nil
}

// decodeEventType maps the low nibble of the event_info byte. Values with
// bit 3 set use the "extended" sub-mapping (hold/double-click/single-click
// distinguished by bits 0-2); values with bit 3 clear use the legacy
// direct enum mapping.
func decodeEventType(info byte) flic2model.ButtonEventType {
	encoded := info & 0x0F

	if encoded&0x08 != 0 {
		switch {
		case encoded&0x04 != 0:
			return flic2model.EventHold
		case encoded&0x02 != 0:
			if encoded&0x01 != 0 {
				return flic2model.EventDoubleClick
			}
			return flic2model.EventSingleClick
		default:
			return flic2model.EventUp
		}
	}

	switch encoded {
	case 0:
		return flic2model.EventUp
	case 1:
		return flic2model.EventDown
	case 2:
		return flic2model.EventClick
	case 3:
		return flic2model.EventSingleClick
	case 4:
		return flic2model.EventDoubleClick
	case 5:
		return flic2model.EventHold
	default:
		return flic2model.EventUp
	}
}
