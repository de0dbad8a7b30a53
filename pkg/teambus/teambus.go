// Package teambus is the file-based message bus teammates use to talk to
// each other and to the lead: one append-only JSONL inbox per recipient,
// guarded by filelock so a send and a concurrent drain do not interleave
// while the lock is held; a send that cannot get the lock within the bounded
// wait appends without it.
package teambus

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coldforge/shrimp/pkg/filelock"
)

type MessageType string

const (
	TypeMessage              MessageType = "message"
	TypeBroadcast            MessageType = "broadcast"
	TypeShutdownRequest      MessageType = "shutdown_request"
	TypeShutdownResponse     MessageType = "shutdown_response"
	TypePlanApprovalResponse MessageType = "plan_approval_response"
)

var validTypes = map[MessageType]bool{
	TypeMessage:              true,
	TypeBroadcast:            true,
	TypeShutdownRequest:      true,
	TypeShutdownResponse:     true,
	TypePlanApprovalResponse: true,
}

// InboxMessage is one JSONL line in a recipient's inbox.
type InboxMessage struct {
	Type      MessageType `json:"type"`
	Sender    string      `json:"sender"`
	Recipient string      `json:"recipient,omitempty"`
	Content   string      `json:"content"`
	Timestamp int64       `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
	Approved  *bool       `json:"approved,omitempty"`
}

// Bus is a directory of per-recipient JSONL inboxes.
type Bus struct {
	dir     string
	known   func() []string
}

func NewBus(dir string) (*Bus, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("teambus: %w", err)
	}
	return &Bus{dir: dir}, nil
}

// SetKnownRecipients wires in the callback teambus uses to resolve
// broadcast membership and to validate that non-broadcast recipients
// exist.
func (b *Bus) SetKnownRecipients(fn func() []string) {
	b.known = fn
}

func (b *Bus) inboxPath(name string) string {
	return filepath.Join(b.dir, name+"_inbox.jsonl")
}

func (b *Bus) recipientExists(name string) bool {
	if b.known == nil {
		return true
	}
	for _, n := range b.known() {
		if n == name {
			return true
		}
	}
	return false
}

// Send appends one message to the recipient's inbox, or to every known
// teammate's inbox (except sender) when msgType is broadcast.
func (b *Bus) Send(sender, recipient string, msgType MessageType, content, requestID string, approved *bool) error {
	if !validTypes[msgType] {
		return fmt.Errorf("Error: Invalid type")
	}

	if msgType == TypeBroadcast {
		_, err := b.Broadcast(sender, content)
		return err
	}

	if !b.recipientExists(recipient) {
		return fmt.Errorf("Error: recipient not found")
	}

	return b.deliver(sender, recipient, msgType, content, requestID, approved)
}

func (b *Bus) deliver(sender, recipient string, msgType MessageType, content, requestID string, approved *bool) error {
	msg := InboxMessage{
		Type:      msgType,
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now().Unix(),
		RequestID: requestID,
		Approved:  approved,
	}
	if msgType != TypeBroadcast {
		msg.Recipient = recipient
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	path := b.inboxPath(recipient)
	appendLine := func() error {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = f.Write(append(data, '\n'))
		return err
	}

	err = filelock.WithLock(path+".lock", appendLine)
	if errors.Is(err, filelock.ErrTimeout) {
		// Liveness over correctness: a write that can never get the lock
		// would otherwise block a teammate forever. Fall back to an
		// unlocked append rather than fail the send.
		return appendLine()
	}
	return err
}

// Broadcast delivers content as a TypeBroadcast message to every known
// teammate except sender, returning the delivered count. The receivers
// set is exactly (known recipients - sender).
func (b *Bus) Broadcast(sender, content string) (int, error) {
	var recipients []string
	if b.known != nil {
		recipients = b.known()
	}
	count := 0
	for _, to := range recipients {
		if to == sender {
			continue
		}
		if err := b.deliver(sender, to, TypeBroadcast, content, "", nil); err != nil {
			return count, fmt.Errorf("teambus: broadcast to %s: %w", to, err)
		}
		count++
	}
	return count, nil
}

// ReadInbox reads and clears name's inbox, returning every queued message
// in arrival order. A subsequent call with no intervening send returns an
// empty slice.
func (b *Bus) ReadInbox(name string) ([]InboxMessage, error) {
	path := b.inboxPath(name)

	var messages []InboxMessage
	drain := func() error {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}

		scanner := bufio.NewScanner(strings.NewReader(string(data)))
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var msg InboxMessage
			if err := json.Unmarshal([]byte(line), &msg); err != nil {
				continue // tolerate bad lines by skipping
			}
			messages = append(messages, msg)
		}

		return os.WriteFile(path, nil, 0o644)
	}

	err := filelock.WithLock(path+".lock", drain)
	if errors.Is(err, filelock.ErrTimeout) {
		// A reader that can't get the lock treats the inbox as empty this
		// round rather than erroring the caller's turn loop; the messages
		// stay queued on disk for the next poll.
		return nil, nil
	}
	return messages, err
}

// Peek reports whether name's inbox currently holds any messages, without
// draining it.
func (b *Bus) Peek(name string) (bool, error) {
	info, err := os.Stat(b.inboxPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Size() > 0, nil
}
