// Package xmppconn implements the chat transport over an XMPP connection.
// It owns session setup and the multi-user chat join; stanzas cross the
// boundary as the generic node shape the rest of the bot understands.
package xmppconn

import (
	"context"
	"encoding/xml"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"gosrc.io/xmpp"
	xstanza "gosrc.io/xmpp/stanza"

	"github.com/agyrafa/livecodingtv-bot/internal/stanza"
)

const mucUserNS = "http://jabber.org/protocol/muc#user"

// mucUser is the muc#user presence extension carrying occupant items.
type mucUser struct {
	XMLName xml.Name  `xml:"http://jabber.org/protocol/muc#user x"`
	Items   []mucItem `xml:"item"`
}

type mucItem struct {
	Affiliation string `xml:"affiliation,attr,omitempty"`
	Role        string `xml:"role,attr,omitempty"`
	Jid         string `xml:"jid,attr,omitempty"`
}

func (mucUser) Namespace() string { return mucUserNS }

func init() {
	xstanza.TypeRegistry.MapExtension(xstanza.PKTPresence,
		xml.Name{Space: mucUserNS, Local: "x"}, mucUser{})
}

// Config holds the connection parameters.
type Config struct {
	Address  string // host:port; empty lets the library resolve from the JID
	JID      string
	Password string
	Room     string // room JID, e.g. chat@conf.example.com
	Nickname string
}

// Conn is a live XMPP connection implementing client.Transport.
type Conn struct {
	cfg    Config
	logger zerolog.Logger

	client *xmpp.Client
	sm     *xmpp.StreamManager

	recv      chan stanza.Raw
	connected chan struct{}
	joinOnce  sync.Once
	closeOnce sync.Once
}

// New prepares a connection. Nothing is dialed until Connect.
func New(cfg Config, logger zerolog.Logger) (*Conn, error) {
	if cfg.JID == "" || cfg.Room == "" || cfg.Nickname == "" {
		return nil, fmt.Errorf("xmppconn: jid, room and nickname are required")
	}

	c := &Conn{
		cfg:       cfg,
		logger:    logger,
		recv:      make(chan stanza.Raw, 64),
		connected: make(chan struct{}),
	}

	router := xmpp.NewRouter()
	router.HandleFunc("message", c.handleMessage)
	router.HandleFunc("presence", c.handlePresence)

	xcfg := &xmpp.Config{
		TransportConfiguration: xmpp.TransportConfiguration{Address: cfg.Address},
		Jid:        cfg.JID,
		Credential: xmpp.Password(cfg.Password),
	}

	client, err := xmpp.NewClient(xcfg, router, func(err error) {
		logger.Error().Err(err).Msg("xmpp stream error")
	})
	if err != nil {
		return nil, fmt.Errorf("xmppconn: %w", err)
	}

	c.client = client
	c.sm = xmpp.NewStreamManager(client, c.postConnect)
	return c, nil
}

// postConnect runs on every (re)connect: join the room, then unblock
// Connect the first time around.
func (c *Conn) postConnect(s xmpp.Sender) {
	join := xstanza.Presence{Attrs: xstanza.Attrs{
		To: c.cfg.Room + "/" + c.cfg.Nickname,
	}}
	join.Extensions = append(join.Extensions, xstanza.MucPresence{})

	if err := s.Send(join); err != nil {
		c.logger.Error().Err(err).Str("room", c.cfg.Room).Msg("room join failed")
		return
	}

	c.logger.Info().
		Str("room", c.cfg.Room).
		Str("nick", c.cfg.Nickname).
		Msg("joined room")
	c.joinOnce.Do(func() { close(c.connected) })
}

// Connect dials the server and blocks until the room has been joined or
// ctx expires.
func (c *Conn) Connect(ctx context.Context) error {
	go func() {
		if err := c.sm.Run(); err != nil {
			c.logger.Error().Err(err).Msg("xmpp session ended")
		}
		c.closeOnce.Do(func() { close(c.recv) })
	}()

	select {
	case <-c.connected:
		return nil
	case <-ctx.Done():
		c.sm.Stop()
		return ctx.Err()
	}
}

// Recv yields inbound stanzas converted to the generic node shape.
func (c *Conn) Recv() <-chan stanza.Raw {
	return c.recv
}

// Send delivers an outbound stanza. Only message stanzas go out; the
// transport owns presence itself.
func (c *Conn) Send(ctx context.Context, s stanza.Raw) error {
	if s.Name != "message" {
		return fmt.Errorf("xmppconn: unsupported outbound stanza %q", s.Name)
	}

	var body string
	if b, ok := s.Child("body"); ok {
		for _, t := range b.Text {
			body += t
		}
	}

	msg := xstanza.Message{Attrs: xstanza.Attrs{
		Id:   s.Attr("id"),
		To:   s.Attr("to"),
		Type: xstanza.StanzaType(s.Attr("type")),
	}, Body: body}

	return c.client.Send(msg)
}

// Close tears the session down and closes the receive channel.
func (c *Conn) Close() error {
	c.sm.Stop()
	c.closeOnce.Do(func() { close(c.recv) })
	return nil
}

func (c *Conn) handleMessage(s xmpp.Sender, p xstanza.Packet) {
	msg, ok := p.(xstanza.Message)
	if !ok {
		return
	}

	raw := stanza.Raw{
		Name: "message",
		Attrs: map[string]string{
			"from": msg.From,
			"id":   msg.Id,
			"type": string(msg.Type),
		},
		Children: []stanza.Node{{Name: "body", Text: []string{msg.Body}}},
	}
	c.deliver(raw)
}

func (c *Conn) handlePresence(s xmpp.Sender, p xstanza.Packet) {
	pres, ok := p.(xstanza.Presence)
	if !ok {
		return
	}

	raw := stanza.Raw{
		Name: "presence",
		Attrs: map[string]string{
			"from": pres.From,
			"type": string(pres.Type),
		},
	}

	if items := occupantItems(pres); len(items) > 0 {
		raw.Children = []stanza.Node{{Name: "x", Children: items}}
	}
	c.deliver(raw)
}

// occupantItems pulls muc#user items out of a presence, whichever form the
// decoder produced them in.
func occupantItems(pres xstanza.Presence) []stanza.Node {
	for _, ext := range pres.Extensions {
		var mu mucUser
		switch v := ext.(type) {
		case mucUser:
			mu = v
		case *mucUser:
			mu = *v
		default:
			continue
		}

		items := make([]stanza.Node, 0, len(mu.Items))
		for _, it := range mu.Items {
			items = append(items, stanza.Node{
				Name: "item",
				Attrs: map[string]string{
					"affiliation": it.Affiliation,
					"role":        it.Role,
				},
			})
		}
		return items
	}
	return nil
}

// deliver drops stanzas instead of blocking when the listen loop falls
// behind; the room is chat, not a queue.
func (c *Conn) deliver(raw stanza.Raw) {
	select {
	case c.recv <- raw:
	default:
		c.logger.Warn().Str("kind", raw.Name).Msg("receive buffer full, stanza dropped")
	}
}
