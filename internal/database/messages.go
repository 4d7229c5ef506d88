package database

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "orderbridge/internal/errors"
	"orderbridge/internal/models"
)

// InsertMessage stores a chat message and returns it with its assigned ID
// and creation time. Messages are immutable once stored.
func (d *Database) InsertMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if !msg.SenderType.Valid() {
		return nil, apperrors.NewValidationError("senderType", fmt.Sprintf("unknown sender type %q", msg.SenderType))
	}
	if msg.ForwardedFrom != nil && !msg.ForwardedFrom.Valid() {
		return nil, apperrors.NewValidationError("forwardedFrom", fmt.Sprintf("unknown sender type %q", *msg.ForwardedFrom))
	}

	ok, err := d.exists(ctx, OrderExistsQuery, msg.OrderID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("lookup order", err)
	}
	if !ok {
		return nil, apperrors.NewNotFoundError("order", fmt.Sprint(msg.OrderID))
	}

	stored := *msg
	stored.CreatedAt = d.now()

	var forwardedFrom interface{}
	if msg.ForwardedFrom != nil {
		forwardedFrom = string(*msg.ForwardedFrom)
	}

	err = d.withRetry(ctx, "insert_message", func(ctx context.Context) error {
		result, err := d.db.ExecContext(ctx, InsertMessageQuery,
			stored.OrderID,
			stored.Content,
			string(stored.SenderType),
			nullableString(stored.MediaID),
			forwardedFrom,
			nullableInt64(stored.OriginalMessageID),
			stored.CreatedAt,
		)
		if err != nil {
			return err
		}
		stored.ID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, apperrors.NewValidationError("message", "message references a record that no longer exists")
		}
		return nil, apperrors.NewDatabaseError("insert message", err)
	}

	return &stored, nil
}

func (d *Database) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	msg, err := scanMessage(d.db.QueryRowContext(ctx, SelectMessageByIDQuery, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("message", fmt.Sprint(id))
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get message", err)
	}
	return msg, nil
}

// ListMessagesByOrder returns an order's conversation, oldest first
func (d *Database) ListMessagesByOrder(ctx context.Context, orderID int64) ([]*models.Message, error) {
	rows, err := d.db.QueryContext(ctx, SelectMessagesByOrderQuery, orderID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list messages", err)
	}
	defer rows.Close()

	messages := []*models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError("list messages", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list messages", err)
	}
	return messages, nil
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var m models.Message
	var senderType string
	var mediaID, forwardedFrom sql.NullString
	var originalID sql.NullInt64

	if err := row.Scan(
		&m.ID,
		&m.OrderID,
		&m.Content,
		&senderType,
		&mediaID,
		&forwardedFrom,
		&originalID,
		&m.CreatedAt,
	); err != nil {
		return nil, err
	}

	m.SenderType = models.SenderType(senderType)
	if mediaID.Valid {
		id := mediaID.String
		m.MediaID = &id
	}
	if forwardedFrom.Valid {
		from := models.SenderType(forwardedFrom.String)
		m.ForwardedFrom = &from
	}
	m.OriginalMessageID = int64Ptr(originalID)
	return &m, nil
}
