package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"roomchat-service/internal/config"
	"roomchat-service/internal/models"
	"roomchat-service/internal/observability"
	"roomchat-service/internal/repositories"
	"roomchat-service/internal/session"
)

// ErrNotParticipant is returned when a sender is not a member of the room.
var ErrNotParticipant = errors.New("not a participant in this room")

// Sender delivers an event to a single session.
type Sender interface {
	Send(sessionID string, event models.ServerEvent) error
}

// TokenVerifier turns a bearer credential into an identity.
type TokenVerifier interface {
	Verify(token string) (models.Identity, error)
}

// Coordinator drives the per-connection state machine:
// Unauthenticated -> Authenticated -> (per room) Joined. It authorizes every
// transition against the membership store and targets fan-out through the
// session registry.
type Coordinator struct {
	registry *session.Registry
	sender   Sender
	verifier TokenVerifier
	rooms    repositories.RoomRepository
	users    repositories.UserRepository
	messages repositories.MessageRepository

	mode         config.FanoutMode
	storeTimeout time.Duration

	lockMu    sync.Mutex
	roomLocks map[int]*sync.Mutex
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(registry *session.Registry, sender Sender, verifier TokenVerifier,
	rooms repositories.RoomRepository, users repositories.UserRepository,
	messages repositories.MessageRepository, mode config.FanoutMode, storeTimeout time.Duration) *Coordinator {
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Coordinator{
		registry:     registry,
		sender:       sender,
		verifier:     verifier,
		rooms:        rooms,
		users:        users,
		messages:     messages,
		mode:         mode,
		storeTimeout: storeTimeout,
		roomLocks:    make(map[int]*sync.Mutex),
	}
}

// HandleEvent dispatches one inbound socket event for the session.
func (c *Coordinator) HandleEvent(sessionID string, payload []byte) {
	var evt models.ClientEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		c.emitError(sessionID, "malformed event")
		return
	}

	switch evt.Type {
	case models.EventAuthenticate:
		c.authenticate(sessionID, evt.Token)
	case models.EventJoinRoom:
		c.joinRoom(sessionID, evt.RoomID)
	case models.EventSendMessage:
		c.sendMessage(sessionID, evt)
	default:
		c.emitError(sessionID, "unknown event type")
	}
}

// Disconnect removes the session from all room tracking. In-flight sends
// from this session complete independently; only future fan-outs are
// affected.
func (c *Coordinator) Disconnect(sessionID string) {
	c.registry.Unbind(sessionID)
}

func (c *Coordinator) authenticate(sessionID string, token string) {
	identity, err := c.verifier.Verify(token)
	if err != nil {
		c.sender.Send(sessionID, models.ServerEvent{Type: models.EventAuthError, Error: "invalid token"})
		return
	}
	c.registry.Bind(sessionID, identity)
	c.sender.Send(sessionID, models.ServerEvent{Type: models.EventAuthenticated, Identity: &identity})
}

func (c *Coordinator) joinRoom(sessionID string, roomID int) {
	identity, ok := c.registry.IdentityOf(sessionID)
	if !ok {
		c.emitError(sessionID, "authentication required")
		return
	}

	ctx, cancel := c.storeContext()
	defer cancel()

	member, err := c.rooms.IsParticipant(ctx, roomID, identity.UserID)
	if err != nil {
		log.Printf("join membership check failed: %v", err)
		c.emitError(sessionID, "failed to verify membership")
		return
	}
	if !member {
		c.emitError(sessionID, "not a participant in this room")
		return
	}

	room, err := c.rooms.GetRoom(ctx, roomID)
	if err != nil {
		log.Printf("join room lookup failed: %v", err)
		c.emitError(sessionID, "failed to load room")
		return
	}

	c.registry.MarkJoined(sessionID, roomID)
	c.sender.Send(sessionID, models.ServerEvent{Type: models.EventRoomJoined, Room: &room})
}

func (c *Coordinator) sendMessage(sessionID string, evt models.ClientEvent) {
	identity, ok := c.registry.IdentityOf(sessionID)
	if !ok {
		c.emitError(sessionID, "authentication required to send messages")
		return
	}

	if c.mode == config.FanoutBroadcast {
		c.sendDirect(sessionID, identity, evt.ReceiverID, evt.Content)
		return
	}

	if !c.registry.HasJoined(sessionID, evt.RoomID) {
		c.emitError(sessionID, "join the room before sending")
		return
	}

	ctx, cancel := c.storeContext()
	defer cancel()

	view, err := c.SendToRoom(ctx, evt.RoomID, identity, evt.Content, sessionID)
	if err != nil {
		c.emitError(sessionID, sendErrorText(err))
		return
	}
	c.sender.Send(sessionID, models.ServerEvent{Type: models.EventMessageSent, Message: &view})
}

// SendToRoom re-validates membership, appends the message and fans it out to
// every joined session except excludeSession. The append and the fan-out run
// under a per-room lock so delivery order matches append order; nothing is
// delivered unless the append succeeded.
func (c *Coordinator) SendToRoom(ctx context.Context, roomID int, sender models.Identity, content string, excludeSession string) (models.MessageView, error) {
	// membership can change between join and send, never trust a past join
	member, err := c.rooms.IsParticipant(ctx, roomID, sender.UserID)
	if err != nil {
		return models.MessageView{}, err
	}
	if !member {
		return models.MessageView{}, ErrNotParticipant
	}

	lock := c.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := c.messages.CreateMessage(ctx, roomID, sender.UserID, content)
	if err != nil {
		return models.MessageView{}, err
	}

	view := models.MessageView{Message: msg, SenderUsername: sender.Username}
	event := models.ServerEvent{Type: models.EventNewMessage, Message: &view}
	for _, target := range c.registry.SessionsJoinedTo(roomID) {
		if target == excludeSession {
			continue
		}
		if c.sender.Send(target, event) == nil {
			observability.IncMessagesFannedOut()
		}
	}
	return view, nil
}

// sendDirect is the broadcast fan-out policy: the message is persisted in
// the two-user room for the pair, then delivered to every live session.
func (c *Coordinator) sendDirect(sessionID string, sender models.Identity, receiverID int, content string) {
	if receiverID == 0 || content == "" {
		c.emitError(sessionID, "receiver and content are required")
		return
	}
	if receiverID == sender.UserID {
		c.emitError(sessionID, "cannot send message to yourself")
		return
	}

	ctx, cancel := c.storeContext()
	defer cancel()

	if _, err := c.users.GetUser(ctx, receiverID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.emitError(sessionID, "receiver not found")
			return
		}
		log.Printf("direct send receiver lookup failed: %v", err)
		c.emitError(sessionID, "failed to send message")
		return
	}

	room, _, err := c.rooms.CreateRoom(ctx, []int{sender.UserID, receiverID})
	if err != nil {
		log.Printf("direct send room lookup failed: %v", err)
		c.emitError(sessionID, "failed to send message")
		return
	}

	lock := c.roomLock(room.ID)
	lock.Lock()
	msg, err := c.messages.CreateMessage(ctx, room.ID, sender.UserID, content)
	if err != nil {
		lock.Unlock()
		c.emitError(sessionID, sendErrorText(err))
		return
	}

	view := models.MessageView{Message: msg, SenderUsername: sender.Username}
	event := models.ServerEvent{Type: models.EventNewMessage, Message: &view}
	for _, target := range c.registry.Sessions() {
		if target == sessionID {
			continue
		}
		if c.sender.Send(target, event) == nil {
			observability.IncMessagesFannedOut()
		}
	}
	lock.Unlock()

	c.sender.Send(sessionID, models.ServerEvent{Type: models.EventMessageSent, Message: &view})
}

func (c *Coordinator) emitError(sessionID, text string) {
	c.sender.Send(sessionID, models.ServerEvent{Type: models.EventError, Error: text})
}

// storeContext bounds store calls so a stalled store cannot pin a
// connection's event loop forever. It is detached from the connection
// context: a disconnect must not cancel an in-flight append.
func (c *Coordinator) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.storeTimeout)
}

func (c *Coordinator) roomLock(roomID int) *sync.Mutex {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	lock, ok := c.roomLocks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		c.roomLocks[roomID] = lock
	}
	return lock
}

func sendErrorText(err error) string {
	switch {
	case errors.Is(err, ErrNotParticipant):
		return "not a participant in this room"
	case errors.Is(err, repositories.ErrEmptyContent):
		return "message content is empty"
	default:
		log.Printf("send message failed: %v", err)
		return "failed to send message"
	}
}
