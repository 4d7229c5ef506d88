package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaDetailsResponse_FileSizeForms(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected FileSize
		wantErr  bool
	}{
		{name: "number", body: `{"id":"m1","file_size":2048}`, expected: 2048},
		{name: "string", body: `{"id":"m1","file_size":"2048"}`, expected: 2048},
		{name: "null", body: `{"id":"m1","file_size":null}`, expected: 0},
		{name: "missing", body: `{"id":"m1"}`, expected: 0},
		{name: "garbage", body: `{"id":"m1","file_size":"lots"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp MediaDetailsResponse
			err := json.Unmarshal([]byte(tt.body), &resp)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, resp.FileSize)
		})
	}
}

func TestSendMessageRequest_TextShape(t *testing.T) {
	req := SendMessageRequest{
		MessagingProduct: MessagingProduct,
		RecipientType:    RecipientIndividual,
		To:               "5215512345678",
		Type:             MessageTypeText,
		Text:             &TextBody{PreviewURL: true, Body: "hello"},
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"messaging_product":"whatsapp",
		"recipient_type":"individual",
		"to":"5215512345678",
		"type":"text",
		"text":{"preview_url":true,"body":"hello"}
	}`, string(data))
}

func TestSendResponse_MessageID(t *testing.T) {
	var resp SendResponse
	require.NoError(t, json.Unmarshal([]byte(`{"messaging_product":"whatsapp","contacts":[{"input":"1","wa_id":"1"}],"messages":[{"id":"wamid.ABC"}]}`), &resp))

	assert.Equal(t, "wamid.ABC", resp.MessageID())

	var empty *SendResponse
	assert.Empty(t, empty.MessageID())
	assert.Empty(t, (&SendResponse{}).MessageID())
}
