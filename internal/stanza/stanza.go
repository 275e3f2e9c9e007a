// Package stanza models incoming chat protocol stanzas and normalizes them
// into typed events.
package stanza

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedStanza is returned when a stanza is missing a part the parser
// requires (sender nickname, message body).
var ErrMalformedStanza = errors.New("malformed stanza")

// Kind discriminates normalized event types.
type Kind string

const (
	KindMessage  Kind = "message"
	KindPresence Kind = "presence"
)

// Node is a single element within a stanza: a name, attributes, child
// elements, and ordered text fragments.
type Node struct {
	Name     string
	Attrs    map[string]string
	Children []Node
	Text     []string
}

// Child returns the first child with the given name.
func (n Node) Child(name string) (Node, bool) {
	for _, c := range n.Children {
		if c.Name == name {
			return c, true
		}
	}
	return Node{}, false
}

// Attr returns the named attribute, or "" when absent.
func (n Node) Attr(key string) string {
	return n.Attrs[key]
}

// Raw is a stanza as delivered by the transport: a top-level tagged node.
// The bot only ever sees "message" and "presence" stanzas from the room.
type Raw struct {
	Name     string
	Attrs    map[string]string
	Children []Node
}

// Child returns the first child element with the given name.
func (r Raw) Child(name string) (Node, bool) {
	return Node{Name: r.Name, Attrs: r.Attrs, Children: r.Children}.Child(name)
}

// Attr returns the named attribute, or "" when absent.
func (r Raw) Attr(key string) string {
	return r.Attrs[key]
}

// Nickname extracts the room nickname from a full occupant address of the
// form room@host/nickname. Everything after the first '/' is the nickname;
// a nickname may itself contain slashes.
func Nickname(from string) (string, error) {
	i := strings.Index(from, "/")
	if i < 0 {
		return "", fmt.Errorf("%w: no resource part in from address %q", ErrMalformedStanza, from)
	}
	nick := from[i+1:]
	if nick == "" {
		return "", fmt.Errorf("%w: empty nickname in from address %q", ErrMalformedStanza, from)
	}
	return nick, nil
}
