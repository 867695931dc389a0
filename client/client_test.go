package client

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/cvsouth/flic2-go/chaskey"
	"github.com/cvsouth/flic2-go/flic2model"
	"github.com/cvsouth/flic2-go/keyagreement"
	"github.com/cvsouth/flic2-go/packet"
	"github.com/cvsouth/flic2-go/store"
	"github.com/cvsouth/flic2-go/transport"
)

// scriptedLink wraps a FakeLink and lets the test react to every Send
// before the call returns, the way session_test.go's fakeTransport lets a
// test script canned replies back into an engine under test.
type scriptedLink struct {
	*transport.FakeLink
	onSend func([]byte)
}

func (s *scriptedLink) Send(ctx context.Context, data []byte) error {
	if err := s.FakeLink.Send(ctx, data); err != nil {
		return err
	}
	if s.onSend != nil {
		s.onSend(data)
	}
	return nil
}

// simulatedButton plays the button side of both handshakes for client_test,
// independent of pairing_test's unexported counterpart.
type simulatedButton struct {
	identityPriv ed25519.PrivateKey
	ecdh         *keyagreement.KeyPair
	address      [6]byte
	addressType  byte
	buttonRandom [8]byte
	connID       uint8

	sessionKey [16]byte
}

func newSimulatedButton(t *testing.T) *simulatedButton {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	keyagreement.FlicPublicKey = pub

	kp, err := keyagreement.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	b := &simulatedButton{identityPriv: priv, ecdh: kp, addressType: 1, connID: 5}
	copy(b.address[:], []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF})
	copy(b.buttonRandom[:], []byte{1, 2, 3, 4, 5, 6, 7, 8})
	return b
}

func (b *simulatedButton) respondToRequest1(wire []byte) []byte {
	dec, err := packet.NewDecoder().Decode(wire, false)
	if err != nil {
		panic(err)
	}
	tmpIDEcho := dec.Payload[:4]

	msg := make([]byte, 0, 39)
	msg = append(msg, b.address[:]...)
	msg = append(msg, b.addressType)
	msg = append(msg, b.ecdh.Public[:]...)
	sig := ed25519.Sign(b.identityPriv, msg)
	sig[32] &^= 0x03 // force sig_bits = 0, matching respondToRequest2's schedule derivation

	payload := make([]byte, 0, 200)
	payload = append(payload, tmpIDEcho...)
	payload = append(payload, sig...)
	payload = append(payload, b.address[:]...)
	payload = append(payload, b.addressType)
	payload = append(payload, b.ecdh.Public[:]...)
	payload = append(payload, b.buttonRandom[:]...)
	for len(payload) < 116 {
		payload = append(payload, 0)
	}
	payload[115] = 0x02

	wireOut, err := packet.NewEncoder().Encode(packet.OpFullVerifyResponse1, payload, b.connID, true, false)
	if err != nil {
		panic(err)
	}
	return wireOut
}

func (b *simulatedButton) respondToRequest2(wire []byte, clientRandom [8]byte) []byte {
	dec, err := packet.NewDecoder().Decode(wire, false)
	if err != nil {
		panic(err)
	}
	var clientPub [32]byte
	copy(clientPub[:], dec.Payload[0:32])

	shared, err := b.ecdh.SharedSecret(clientPub)
	if err != nil {
		panic(err)
	}
	sched := keyagreement.DeriveFullVerifySchedule(shared, 0, b.buttonRandom, clientRandom)
	b.sessionKey = sched.SessionKey

	payload := make([]byte, 16+1+1+24+4+1+1)
	payload[16+1] = 4
	copy(payload[16+2:16+2+24], "Flic")
	payload[16+2+24+4] = 91
	payload = append(payload, []byte("SN9999")...)

	wireOut, err := packet.NewEncoder().Encode(packet.OpFullVerifyResponse2, payload, b.connID, false, false)
	if err != nil {
		panic(err)
	}
	return wireOut
}

func TestClientPairAndInitButtonEvents(t *testing.T) {
	button := newSimulatedButton(t)
	fakeLink := transport.NewFakeLink(8)
	link := &scriptedLink{FakeLink: fakeLink}

	var clientRandom [8]byte
	sendCount := 0
	link.onSend = func(wire []byte) {
		sendCount++
		switch sendCount {
		case 1:
			resp1 := button.respondToRequest1(wire)
			link.QueueNotification(resp1)
		case 2:
			dec, err := packet.NewDecoder().Decode(wire, false)
			if err != nil {
				t.Fatal(err)
			}
			copy(clientRandom[:], dec.Payload[32:40])
			resp2 := button.respondToRequest2(wire, clientRandom)
			link.QueueNotification(resp2)
		case 3:
			// init_button_events request
			body := []byte{button.connID, byte(packet.OpInitButtonEventsResponse)}
			body = append(body, 9, 0, 0, 0) // boot_id
			body = append(body, 1, 0, 0, 0) // event_count
			body = append(body, 0, 0, 0, 0) // timestamp_hi
			body = append(body, 60)         // battery
			sig := chaskey.New(button.sessionKey).MacWithDirAndCounter(body, 0, 0)
			link.QueueNotification(append(body, sig[:]...))
		}
	}

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}

	var batteryLevel uint8
	c := New(link, st, nil, Subscriber{
		OnBatteryLevel: func(b uint8) { batteryLevel = b },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	creds, err := c.Pair(ctx, button.address, button.addressType)
	if err != nil {
		t.Fatal(err)
	}
	if creds.Name != "Flic" {
		t.Fatalf("Name = %q, want Flic", creds.Name)
	}

	if err := c.InitButtonEvents(ctx, time.Second); err != nil {
		t.Fatal(err)
	}
	if c.State() != flic2model.Ready {
		t.Fatalf("state = %v, want READY", c.State())
	}
	if batteryLevel != 60 {
		t.Fatalf("battery = %d, want 60", batteryLevel)
	}

	stored, err := st.Load(creds.Address)
	if err != nil {
		t.Fatal(err)
	}
	if stored.PairingKey != creds.PairingKey {
		t.Fatal("stored credentials do not match returned credentials")
	}
}

func TestClientPingWithoutSessionFails(t *testing.T) {
	link := transport.NewFakeLink(1)
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	c := New(link, st, nil, Subscriber{})

	if _, err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected error pinging without a session")
	}
}
