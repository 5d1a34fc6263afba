package push

// Data payload keys understood by the mobile client.
const (
	DataEventID        = "eventId"
	DataNotificationID = "notificationId"
	DataType           = "type"
	DataRelatedItemID  = "relatedItemId"
)

// Message is the provider-neutral payload handed to every dispatcher.
type Message struct {
	Title string
	Body  string
	Data  map[string]string

	// Delivery options applied by each provider in its own shape.
	Priority  string
	Sound     string
	ChannelID string
}

// DefaultMessage fills in the delivery options the app expects.
func DefaultMessage(title, body string, data map[string]string) Message {
	if data == nil {
		data = map[string]string{}
	}
	return Message{
		Title:     title,
		Body:      body,
		Data:      data,
		Priority:  "high",
		Sound:     "default",
		ChannelID: "default",
	}
}
