package telegram

import (
	"strconv"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func chatMessage(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text}
}

func TestChatQueuesPreserveArrivalOrder(t *testing.T) {
	const n = 30

	var mu sync.Mutex
	var got []string
	var wg sync.WaitGroup
	wg.Add(n)

	q := newChatQueues(func(msg *tgbotapi.Message) {
		defer wg.Done()
		mu.Lock()
		got = append(got, msg.Text)
		mu.Unlock()
	})
	defer q.stop()

	for i := 0; i < n; i++ {
		q.dispatch(chatMessage(7, strconv.Itoa(i)))
	}
	wg.Wait()

	for i, text := range got {
		if text != strconv.Itoa(i) {
			t.Fatalf("message %d handled as %q, want %q", i, text, strconv.Itoa(i))
		}
	}
}

func TestChatQueuesDoNotBlockOtherChats(t *testing.T) {
	release := make(chan struct{})
	otherHandled := make(chan struct{})

	q := newChatQueues(func(msg *tgbotapi.Message) {
		switch msg.Chat.ID {
		case 1:
			<-release
		case 2:
			close(otherHandled)
		}
	})
	defer q.stop()
	defer close(release)

	q.dispatch(chatMessage(1, "slow"))
	q.dispatch(chatMessage(2, "quick"))

	select {
	case <-otherHandled:
	case <-time.After(2 * time.Second):
		t.Fatal("chat 2 waited on chat 1's handler")
	}
}

func TestChatQueuesDropWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan string, 2*chatQueueSize)

	q := newChatQueues(func(msg *tgbotapi.Message) {
		started <- msg.Text
		<-release
	})
	defer q.stop()

	// Occupy the worker so the queue backs up behind it.
	q.dispatch(chatMessage(9, "busy"))
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never picked up the first message")
	}

	// Exactly chatQueueSize fit in the queue; the overflow is dropped
	// and dispatch must return regardless.
	for i := 0; i < chatQueueSize+5; i++ {
		q.dispatch(chatMessage(9, strconv.Itoa(i)))
	}

	close(release)
	for i := 0; i < chatQueueSize; i++ {
		select {
		case text := <-started:
			if text != strconv.Itoa(i) {
				t.Fatalf("queued message %d handled as %q", i, text)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("queued message %d never handled", i)
		}
	}
	select {
	case text := <-started:
		t.Fatalf("dropped message %q was handled", text)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name string
		doc  tgbotapi.Document
		want bool
	}{
		{name: "mime type", doc: tgbotapi.Document{MimeType: "application/pdf", FileName: "report"}, want: true},
		{name: "mime type case", doc: tgbotapi.Document{MimeType: "Application/PDF"}, want: true},
		{name: "extension only", doc: tgbotapi.Document{MimeType: "application/octet-stream", FileName: "template.pdf"}, want: true},
		{name: "extension case", doc: tgbotapi.Document{FileName: "template.PDF"}, want: true},
		{name: "image", doc: tgbotapi.Document{MimeType: "image/png", FileName: "scan.png"}, want: false},
		{name: "no hints", doc: tgbotapi.Document{}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPDF(&tt.doc); got != tt.want {
				t.Errorf("isPDF(%+v) = %v, want %v", tt.doc, got, tt.want)
			}
		})
	}
}
