package store

// Credentials is the persisted sign-in of a session: a single bearer token
// and the account it belongs to.
type Credentials struct {
	Token     string
	UserID    string
	UserName  string
	UserEmail string
	UserRole  string
	UpdatedAt int64
}

// Deal is a cached row of the deal list with its latest message activity.
type Deal struct {
	ID                 string
	Title              string
	Status             string
	CurrentPrice       float64
	BuyerName          string
	SellerName         string
	UnreadCount        int
	LastMessageAt      int64
	LastMessagePreview string
}

// Message is an archived conversation message. Timestamps are unix milliseconds.
type Message struct {
	ID          int64
	DealID      string
	MsgID       string
	ClientID    string
	SenderID    string
	SenderName  string
	SenderEmail string
	Body        string
	FromMe      bool
	Timestamp   int64
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
