package api

import (
	"encoding/json"
	"time"
)

// User is the signed-in account as returned by the auth endpoints.
// The API emits the id as either "id" or "_id" depending on the route.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

func (u *User) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    string `json:"id"`
		OID   string `json:"_id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u.ID = raw.ID
	if u.ID == "" {
		u.ID = raw.OID
	}
	u.Name, u.Email, u.Role = raw.Name, raw.Email, raw.Role
	return nil
}

// Person is an embedded participant reference (sender, buyer, seller, proposer).
// Unpopulated references arrive as a bare id string.
type Person struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

func (p *Person) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*p = Person{ID: id}
		return nil
	}
	type plain Person
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Person(v)
	return nil
}

// Ref is a document id that may arrive populated as an object with "_id".
type Ref string

func (r *Ref) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*r = Ref(id)
		return nil
	}
	var obj struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*r = Ref(obj.ID)
	return nil
}

// Message is one persisted chat entry of a deal conversation.
type Message struct {
	ID        string    `json:"_id"`
	Deal      Ref       `json:"deal"`
	Sender    Person    `json:"sender"`
	Content   string    `json:"content"`
	ReadBy    []string  `json:"readBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	// ClientID echoes the correlation id supplied on create, when the server keeps it.
	ClientID string `json:"clientId,omitempty"`
}

// Deal statuses.
const (
	DealPending    = "pending"
	DealInProgress = "in-progress"
	DealCompleted  = "completed"
	DealCancelled  = "cancelled"
)

// PriceChange is one entry of a deal's negotiation history.
type PriceChange struct {
	Price      float64   `json:"price"`
	ProposedBy Person    `json:"proposedBy"`
	Timestamp  time.Time `json:"timestamp"`
}

type Deal struct {
	ID           string        `json:"_id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	InitialPrice float64       `json:"initialPrice"`
	CurrentPrice float64       `json:"currentPrice"`
	Status       string        `json:"status"`
	Buyer        Person        `json:"buyer"`
	Seller       Person        `json:"seller"`
	PriceHistory []PriceChange `json:"priceHistory,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

type Document struct {
	ID           string    `json:"_id"`
	Deal         Ref       `json:"deal"`
	UploadedBy   Person    `json:"uploadedBy"`
	FileName     string    `json:"fileName"`
	FileType     string    `json:"fileType"`
	FileSize     int64     `json:"fileSize"`
	AccessibleTo []string  `json:"accessibleTo,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
