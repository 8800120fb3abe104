package extract

import (
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/kintamahadji/baileys-api/internal/data/store"
	"github.com/kintamahadji/baileys-api/internal/event"
)

// GroupFromInfo converts full group info, as fetched or as carried by a
// join notification.
func GroupFromInfo(info *types.GroupInfo) store.GroupMetadata {
	g := store.GroupMetadata{
		ID:           info.JID.String(),
		Subject:      info.Name,
		Desc:         info.Topic,
		DescID:       info.TopicID,
		Restrict:     info.IsLocked,
		Announce:     info.IsAnnounce,
		Size:         len(info.Participants),
		Participants: make([]store.Participant, 0, len(info.Participants)),
	}
	if !info.OwnerJID.IsEmpty() {
		g.Owner = info.OwnerJID.String()
	}
	if !info.NameSetBy.IsEmpty() {
		g.SubjectOwner = info.NameSetBy.String()
	}
	if !info.NameSetAt.IsZero() {
		g.SubjectTime = info.NameSetAt.Unix()
	}
	if !info.TopicSetBy.IsEmpty() {
		g.DescOwner = info.TopicSetBy.String()
	}
	if !info.GroupCreated.IsZero() {
		g.Creation = info.GroupCreated.Unix()
	}
	if info.IsEphemeral {
		g.EphemeralDuration = int(info.DisappearingTimer)
	}
	for _, p := range info.Participants {
		g.Participants = append(g.Participants, store.Participant{
			ID:           p.JID.String(),
			IsAdmin:      p.IsAdmin || p.IsSuperAdmin,
			IsSuperAdmin: p.IsSuperAdmin,
		})
	}
	return g
}

// GroupInfoEvents converts a group change notification. Metadata changes
// become one group update, membership changes one participant update per
// action.
func GroupInfoEvents(evt *events.GroupInfo) []any {
	id := evt.JID.String()
	u := store.GroupUpdate{ID: id}
	changed := false

	if evt.Name != nil {
		u.Subject = &evt.Name.Name
		if !evt.Name.NameSetBy.IsEmpty() {
			owner := evt.Name.NameSetBy.String()
			u.SubjectOwner = &owner
		}
		if !evt.Name.NameSetAt.IsZero() {
			ts := evt.Name.NameSetAt.Unix()
			u.SubjectTime = &ts
		}
		changed = true
	}
	if evt.Topic != nil {
		desc := evt.Topic.Topic
		if evt.Topic.TopicDeleted {
			desc = ""
		}
		u.Desc = &desc
		u.DescID = &evt.Topic.TopicID
		if !evt.Topic.TopicSetBy.IsEmpty() {
			owner := evt.Topic.TopicSetBy.String()
			u.DescOwner = &owner
		}
		changed = true
	}
	if evt.Locked != nil {
		u.Restrict = &evt.Locked.IsLocked
		changed = true
	}
	if evt.Announce != nil {
		u.Announce = &evt.Announce.IsAnnounce
		changed = true
	}
	if evt.Ephemeral != nil {
		d := 0
		if evt.Ephemeral.IsEphemeral {
			d = int(evt.Ephemeral.DisappearingTimer)
		}
		u.EphemeralDuration = &d
		changed = true
	}

	var out []any
	if changed {
		out = append(out, &event.GroupsUpdate{Updates: []store.GroupUpdate{u}})
	}
	for _, change := range []struct {
		action event.ParticipantAction
		jids   []types.JID
	}{
		{event.ParticipantAdd, evt.Join},
		{leaveAction(evt), evt.Leave},
		{event.ParticipantPromote, evt.Promote},
		{event.ParticipantDemote, evt.Demote},
	} {
		if len(change.jids) == 0 {
			continue
		}
		out = append(out, &event.GroupParticipantsUpdate{
			ID:           id,
			Action:       change.action,
			Participants: jidStrings(change.jids),
		})
	}
	return out
}

// leaveAction tells a member leaving on their own from a removal by an
// admin.
func leaveAction(evt *events.GroupInfo) event.ParticipantAction {
	if evt.Sender != nil && len(evt.Leave) == 1 && evt.Leave[0].User == evt.Sender.User {
		return event.ParticipantLeave
	}
	return event.ParticipantRemove
}

func jidStrings(jids []types.JID) []string {
	out := make([]string, len(jids))
	for i, jid := range jids {
		out[i] = jid.ToNonAD().String()
	}
	return out
}
