package model

import (
	"sort"
	"strings"
)

// Well-known event names emitted by the automation engine.
const (
	EventApplicationStartup      = "application.startup"
	EventQRCodeUpdated           = "qrcode.updated"
	EventMessagesSet             = "messages.set"
	EventMessagesUpsert          = "messages.upsert"
	EventMessagesEdited          = "messages.edited"
	EventMessagesUpdate          = "messages.update"
	EventMessagesDelete          = "messages.delete"
	EventSendMessage             = "send.message"
	EventContactsSet             = "contacts.set"
	EventContactsUpsert          = "contacts.upsert"
	EventContactsUpdate          = "contacts.update"
	EventPresenceUpdate          = "presence.update"
	EventChatsSet                = "chats.set"
	EventChatsUpsert             = "chats.upsert"
	EventChatsUpdate             = "chats.update"
	EventChatsDelete             = "chats.delete"
	EventGroupsUpsert            = "groups.upsert"
	EventGroupsUpdate            = "groups.update"
	EventGroupParticipantsUpdate = "group-participants.update"
	EventConnectionUpdate        = "connection.update"
	EventLabelsEdit              = "labels.edit"
	EventLabelsAssociation       = "labels.association"
	EventCall                    = "call"
	EventTypebotStart            = "typebot.start"
	EventTypebotChangeStatus     = "typebot.change-status"
	EventRemoveInstance          = "remove.instance"
	EventLogoutInstance          = "logout.instance"
)

// KnownEvents is the catalogue of event names the engine is known to emit.
// Channels accept other names too; the catalogue only drives typed payload
// decoding and CLI help.
var KnownEvents = []string{
	EventApplicationStartup,
	EventQRCodeUpdated,
	EventMessagesSet,
	EventMessagesUpsert,
	EventMessagesEdited,
	EventMessagesUpdate,
	EventMessagesDelete,
	EventSendMessage,
	EventContactsSet,
	EventContactsUpsert,
	EventContactsUpdate,
	EventPresenceUpdate,
	EventChatsSet,
	EventChatsUpsert,
	EventChatsUpdate,
	EventChatsDelete,
	EventGroupsUpsert,
	EventGroupsUpdate,
	EventGroupParticipantsUpdate,
	EventConnectionUpdate,
	EventLabelsEdit,
	EventLabelsAssociation,
	EventCall,
	EventTypebotStart,
	EventTypebotChangeStatus,
	EventRemoveInstance,
	EventLogoutInstance,
}

// legacyEventNames maps the upper-snake spelling (MESSAGES_UPSERT) of every
// known event to its canonical dotted form.
var legacyEventNames = func() map[string]string {
	m := make(map[string]string, len(KnownEvents))
	for _, e := range KnownEvents {
		legacy := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(e))
		m[legacy] = e
	}
	return m
}()

// NormalizeEvent returns the canonical spelling of an event name.
// "MESSAGES_UPSERT" and "messages.upsert" both become "messages.upsert".
// Unknown names are trimmed and lower-cased but otherwise left alone.
func NormalizeEvent(name string) string {
	name = strings.TrimSpace(name)
	if canonical, ok := legacyEventNames[strings.ToUpper(name)]; ok {
		return canonical
	}
	return strings.ToLower(name)
}

// NormalizeEvents canonicalises, de-duplicates and sorts a list of event
// names. Blank entries are dropped. A nil result means "all events".
func NormalizeEvents(events []string) []string {
	if len(events) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(events))
	out := make([]string, 0, len(events))
	for _, e := range events {
		n := NormalizeEvent(e)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// EventPath converts an event name into a URL path segment:
// "messages.upsert" -> "messages-upsert".
func EventPath(event string) string {
	return strings.ReplaceAll(NormalizeEvent(event), ".", "-")
}
