package extract

import (
	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"github.com/kintamahadji/baileys-api/internal/data/store"
)

// KeyFromInfo builds the key of a live message.
func KeyFromInfo(info *types.MessageInfo) store.MessageKey {
	key := store.MessageKey{
		RemoteJID: info.Chat.ToNonAD().String(),
		FromMe:    info.IsFromMe,
		ID:        info.ID,
	}
	if info.IsGroup && !info.Sender.IsEmpty() {
		key.Participant = info.Sender.ToNonAD().String()
	}
	return key
}

// KeyFromProto converts a protocol message key. An empty remote JID falls
// back to chat.
func KeyFromProto(k *waCommon.MessageKey, chat string) store.MessageKey {
	key := store.MessageKey{
		RemoteJID:   k.GetRemoteJID(),
		FromMe:      k.GetFromMe(),
		ID:          k.GetID(),
		Participant: k.GetParticipant(),
	}
	if key.RemoteJID == "" {
		key.RemoteJID = chat
	}
	return key
}

// MessageFromEvent converts a live message. The body is kept as protobuf
// bytes next to its extracted text.
func MessageFromEvent(info *types.MessageInfo, msg *waE2E.Message) store.Message {
	m := store.Message{
		Key:         KeyFromInfo(info),
		PushName:    info.PushName,
		MessageType: MessageType(msg),
		Text:        Text(msg),
		Content:     marshal(msg),
	}
	if !info.Timestamp.IsZero() {
		m.MessageTimestamp = info.Timestamp.Unix()
	}
	if info.IsFromMe {
		m.Status = store.StatusServerAck
	} else {
		m.Status = store.StatusDeliveryAck
	}
	return m
}

func marshal(msg *waE2E.Message) []byte {
	if msg == nil {
		return nil
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil
	}
	return data
}

// Text returns the human readable text of a message: its body or the
// caption of its media.
func Text(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	switch {
	case msg.GetConversation() != "":
		return msg.GetConversation()
	case msg.GetExtendedTextMessage() != nil:
		return msg.GetExtendedTextMessage().GetText()
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetCaption()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetCaption()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage().GetCaption()
	case msg.GetLocationMessage() != nil:
		return msg.GetLocationMessage().GetName()
	case msg.GetContactMessage() != nil:
		return msg.GetContactMessage().GetDisplayName()
	case msg.GetPollCreationMessage() != nil:
		return msg.GetPollCreationMessage().GetName()
	case msg.GetPollCreationMessageV3() != nil:
		return msg.GetPollCreationMessageV3().GetName()
	}
	return ""
}

// MessageType names the kind of content a message carries.
func MessageType(msg *waE2E.Message) string {
	if msg == nil {
		return "unknown"
	}

	switch {
	case msg.GetConversation() != "":
		return "text"
	case msg.GetExtendedTextMessage() != nil:
		return "text"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetStickerMessage() != nil:
		return "sticker"
	case msg.GetLocationMessage() != nil:
		return "location"
	case msg.GetLiveLocationMessage() != nil:
		return "live_location"
	case msg.GetContactMessage() != nil:
		return "contact"
	case msg.GetContactsArrayMessage() != nil:
		return "contacts"
	case msg.GetPollCreationMessage() != nil || msg.GetPollCreationMessageV2() != nil || msg.GetPollCreationMessageV3() != nil:
		return "poll"
	case msg.GetPollUpdateMessage() != nil:
		return "poll_update"
	case msg.GetReactionMessage() != nil:
		return "reaction"
	case msg.GetProtocolMessage() != nil:
		return protocolType(msg.GetProtocolMessage())
	case msg.GetButtonsMessage() != nil:
		return "buttons"
	case msg.GetTemplateMessage() != nil:
		return "template"
	case msg.GetListMessage() != nil:
		return "list"
	case msg.GetGroupInviteMessage() != nil:
		return "group_invite"
	default:
		return "unknown"
	}
}

func protocolType(pm *waE2E.ProtocolMessage) string {
	switch pm.GetType() {
	case waE2E.ProtocolMessage_REVOKE:
		return "revoke"
	case waE2E.ProtocolMessage_EPHEMERAL_SETTING:
		return "ephemeral_setting"
	case waE2E.ProtocolMessage_MESSAGE_EDIT:
		return "edit"
	case waE2E.ProtocolMessage_HISTORY_SYNC_NOTIFICATION:
		return "history_sync"
	default:
		return "protocol"
	}
}
