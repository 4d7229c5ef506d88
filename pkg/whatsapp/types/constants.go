package types

const (
	MessagingProduct    = "whatsapp"
	RecipientIndividual = "individual"
	MessageTypeText     = "text"
	EndpointMessages    = "/messages"
)
