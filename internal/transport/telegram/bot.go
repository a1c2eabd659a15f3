// Package telegram runs the intake pipeline over the Telegram Bot API.
// Each chat maps to one pipeline user; documents start a session, plain
// text answers the current question and commands control the lifecycle.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/fieldstamp/fieldstamp/internal/pipeline"
)

const (
	startMessage = "Hi! Upload a PDF report template and I'll walk you through filling it in.\n" +
		"Commands: /help for usage, /cancel to abandon the current document."
	helpMessage = "Upload a PDF template to begin. I'll ask one question at a time;\n" +
		"answer each and you'll get the completed report back as a PDF.\n" +
		"/cancel discards the document in progress."
	notPDFMessage = "Please upload a PDF file."

	downloadTimeout = 30 * time.Second

	// chatQueueSize bounds pending messages per chat; a chat that floods
	// past it has its excess messages dropped rather than stalling others.
	chatQueueSize = 32
)

// chatQueues hands each chat's messages to a single worker so answers
// from one user are applied in arrival order, while distinct chats are
// handled concurrently.
type chatQueues struct {
	handle func(*tgbotapi.Message)
	done   chan struct{}

	mu     sync.Mutex
	queues map[int64]chan *tgbotapi.Message
}

func newChatQueues(handle func(*tgbotapi.Message)) *chatQueues {
	return &chatQueues{
		handle: handle,
		done:   make(chan struct{}),
		queues: make(map[int64]chan *tgbotapi.Message),
	}
}

// dispatch enqueues msg on its chat's queue, starting a worker for a
// chat not seen before. Never blocks the caller.
func (c *chatQueues) dispatch(msg *tgbotapi.Message) {
	c.mu.Lock()
	q, ok := c.queues[msg.Chat.ID]
	if !ok {
		q = make(chan *tgbotapi.Message, chatQueueSize)
		c.queues[msg.Chat.ID] = q
		go c.run(q)
	}
	c.mu.Unlock()

	select {
	case q <- msg:
	default:
		log.Printf("dropping message for chat %d: queue full", msg.Chat.ID)
	}
}

func (c *chatQueues) run(q chan *tgbotapi.Message) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-q:
			c.handle(msg)
		}
	}
}

// stop terminates all chat workers; queued messages are discarded.
func (c *chatQueues) stop() {
	close(c.done)
}

// Bot bridges Telegram updates to the pipeline.
type Bot struct {
	api      *tgbotapi.BotAPI
	pipe     *pipeline.Pipeline
	maxSize  int64
	download *http.Client
	queues   *chatQueues
}

// New connects to the Telegram Bot API with the given token.
func New(token string, pipe *pipeline.Pipeline, maxTemplateSize int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	log.Printf("authorized on telegram account %s", api.Self.UserName)

	b := &Bot{
		api:      api,
		pipe:     pipe,
		maxSize:  maxTemplateSize,
		download: &http.Client{Timeout: downloadTimeout},
	}
	b.queues = newChatQueues(b.handleMessage)
	return b, nil
}

// Run consumes the update stream until ctx is cancelled. Messages are
// queued per chat, so one chat's answers land in arrival order while a
// slow render for one user never delays another's prompts.
func (b *Bot) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	defer b.queues.stop()
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.queues.dispatch(update.Message)
		}
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	userID := strconv.FormatInt(msg.From.ID, 10)

	var reply pipeline.Reply
	switch {
	case msg.IsCommand():
		reply = b.handleCommand(userID, msg.Command())
	case msg.Document != nil:
		reply = b.handleDocument(userID, msg.Document)
	case msg.Text != "":
		reply = b.pipe.TextReceived(userID, msg.Text)
	default:
		return
	}

	b.send(msg.Chat.ID, reply)
}

func (b *Bot) handleCommand(userID, command string) pipeline.Reply {
	switch command {
	case "start":
		return pipeline.Reply{Text: startMessage}
	case "help":
		return pipeline.Reply{Text: helpMessage}
	case "cancel":
		return b.pipe.CancelRequested(userID)
	default:
		return pipeline.Reply{Text: "Unknown command. Try /help."}
	}
}

func (b *Bot) handleDocument(userID string, doc *tgbotapi.Document) pipeline.Reply {
	if !isPDF(doc) {
		return pipeline.Reply{Text: notPDFMessage}
	}
	if b.maxSize > 0 && int64(doc.FileSize) > b.maxSize {
		return pipeline.Reply{Text: fmt.Sprintf("That file is too large; the limit is %d MB.", b.maxSize/(1024*1024))}
	}

	data, err := b.fetchDocument(doc.FileID)
	if err != nil {
		log.Printf("failed to download document from user %s: %v", userID, err)
		return pipeline.Reply{Text: "Couldn't download that file from Telegram. Please try again."}
	}
	return b.pipe.TemplateUploaded(userID, data)
}

func (b *Bot) fetchDocument(fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file URL: %w", err)
	}

	resp, err := b.download.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned status %d", resp.StatusCode)
	}

	limit := b.maxSize
	if limit <= 0 {
		limit = 64 * 1024 * 1024
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds %d byte limit", limit)
	}
	return data, nil
}

func (b *Bot) send(chatID int64, reply pipeline.Reply) {
	if reply.Document != nil {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
			Name:  reply.Filename,
			Bytes: reply.Document,
		})
		doc.Caption = reply.Text
		if _, err := b.api.Send(doc); err != nil {
			log.Printf("failed to send document to chat %d: %v", chatID, err)
		}
		return
	}

	if reply.Text == "" {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, reply.Text)); err != nil {
		log.Printf("failed to send message to chat %d: %v", chatID, err)
	}
}

// isPDF accepts documents declared as PDF by mime type or extension.
func isPDF(doc *tgbotapi.Document) bool {
	if strings.EqualFold(doc.MimeType, "application/pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(doc.FileName), ".pdf")
}
