package models

// Request bodies accepted by the HTTP API. Validation tags are checked by
// internal/validation before the handlers touch the store.

type NewClient struct {
	Name  string `json:"name" validate:"required,max=200"`
	Phone string `json:"phone" validate:"required,phone"`
	Email string `json:"email,omitempty" validate:"omitempty,email,max=254"`
}

type NewWorker struct {
	Code  string `json:"code" validate:"required,max=64"`
	Name  string `json:"name" validate:"required,max=200"`
	Phone string `json:"phone" validate:"required,phone"`
}

type NewEmployee struct {
	Code  string `json:"code" validate:"required,max=64"`
	Name  string `json:"name" validate:"required,max=200"`
	Phone string `json:"phone,omitempty" validate:"omitempty,phone"`
}

// NewMessage is posted to an order conversation. Either Content or MediaID
// must be set.
type NewMessage struct {
	Content    string `json:"content" validate:"max=4096,required_without=MediaID"`
	SenderType string `json:"senderType" validate:"required,sender_type"`
	MediaID    string `json:"mediaId,omitempty" validate:"omitempty,max=256,media_id"`
}

type ForwardMessage struct {
	TargetOrderID int64  `json:"targetOrderId" validate:"required,gt=0"`
	Recipient     string `json:"recipient" validate:"required,phone"`
	SenderType    string `json:"senderType" validate:"required,sender_type"`
}

type StatusUpdate struct {
	Status string `json:"status" validate:"required,order_status"`
}

type PermanentMediaRequest struct {
	MediaID string `json:"mediaId" validate:"required,max=256,media_id"`
}
