package expo

// Wire types of the Expo push API (POST /--/api/v2/push/send).

// PushMessage is one entry of the request array.
type PushMessage struct {
	To        string            `json:"to"`
	Title     string            `json:"title,omitempty"`
	Body      string            `json:"body,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	Sound     string            `json:"sound,omitempty"`
	Priority  string            `json:"priority,omitempty"`
	ChannelID string            `json:"channelId,omitempty"`
}

// Ticket statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ErrDeviceNotRegistered is the ticket error for a dead token.
const ErrDeviceNotRegistered = "DeviceNotRegistered"

// PushTicket is the per-message answer, in request order.
type PushTicket struct {
	Status  string         `json:"status"`
	ID      string         `json:"id,omitempty"`
	Message string         `json:"message,omitempty"`
	Details *TicketDetails `json:"details,omitempty"`
}

type TicketDetails struct {
	Error string `json:"error,omitempty"`
}

// APIError is a request-level error reported alongside or instead of tickets.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PushResponse is the body of a 2xx answer.
type PushResponse struct {
	Data   []PushTicket `json:"data"`
	Errors []APIError   `json:"errors,omitempty"`
}
