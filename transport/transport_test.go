package transport

import (
	"bytes"
	"context"
	"testing"
)

func TestFakeLinkSendRecordsData(t *testing.T) {
	link := NewFakeLink(1)
	if err := link.Send(context.Background(), []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if len(link.Sent) != 1 || !bytes.Equal(link.Sent[0], []byte{1, 2, 3}) {
		t.Fatalf("got %v", link.Sent)
	}
}

func TestFakeLinkQueueAndReceiveNotification(t *testing.T) {
	link := NewFakeLink(1)
	link.QueueNotification([]byte{9, 9})

	got := <-link.Notifications()
	if !bytes.Equal(got, []byte{9, 9}) {
		t.Fatalf("got %v", got)
	}
}

func TestFakeLinkSendAfterCloseErrors(t *testing.T) {
	link := NewFakeLink(1)
	if err := link.Close(); err != nil {
		t.Fatal(err)
	}
	if err := link.Send(context.Background(), []byte{1}); err == nil {
		t.Fatal("expected error sending on closed link")
	}
}
