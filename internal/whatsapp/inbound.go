package whatsapp

// Kind tags the variant of an inbound message.
type Kind int

const (
	KindUnknown Kind = iota
	KindText
	KindButtonReply
	KindListReply
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindButtonReply:
		return "button_reply"
	case KindListReply:
		return "list_reply"
	default:
		return "unknown"
	}
}

// InboundMessage is the single message carried by a webhook delivery,
// reduced to what the menu needs.
type InboundMessage struct {
	From string
	Kind Kind
	// Text is set for KindText.
	Text string
	// ID and Title are set for KindButtonReply and KindListReply.
	ID    string
	Title string
}

// Value returns the string the menu routes on. For replies the id is
// preferred over the title; an unknown message yields "".
func (m InboundMessage) Value() string {
	switch m.Kind {
	case KindText:
		return m.Text
	case KindButtonReply, KindListReply:
		if m.ID != "" {
			return m.ID
		}
		return m.Title
	case KindUnknown:
		return ""
	}
	return ""
}

// FirstMessage returns the first message of the first change of the first
// entry. The second result is false when the delivery carries no message,
// e.g. a status update.
func FirstMessage(p *WebhookPayload) (InboundMessage, bool) {
	if p == nil || len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return InboundMessage{}, false
	}
	messages := p.Entry[0].Changes[0].Value.Messages
	if len(messages) == 0 {
		return InboundMessage{}, false
	}
	return Classify(messages[0]), true
}

// Classify maps a wire message onto its variant. A non-empty text body wins,
// then a button reply, then a list reply.
func Classify(msg Message) InboundMessage {
	in := InboundMessage{From: msg.From}

	if msg.Text != nil && msg.Text.Body != "" {
		in.Kind = KindText
		in.Text = msg.Text.Body
		return in
	}
	if msg.Interactive == nil {
		return in
	}
	if r := msg.Interactive.ButtonReply; r != nil && (r.ID != "" || r.Title != "") {
		in.Kind = KindButtonReply
		in.ID, in.Title = r.ID, r.Title
		return in
	}
	if r := msg.Interactive.ListReply; r != nil && (r.ID != "" || r.Title != "") {
		in.Kind = KindListReply
		in.ID, in.Title = r.ID, r.Title
		return in
	}
	return in
}
