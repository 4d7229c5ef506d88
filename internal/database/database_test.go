package database

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "orderbridge/internal/errors"
	"orderbridge/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setupTestDB(t *testing.T, encrypt bool) *Database {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := models.DatabaseConfig{
		Path:             filepath.Join(t.TempDir(), "orderbridge.db"),
		EncryptPhones:    encrypt,
		EncryptionSecret: testSecret,
	}

	db, err := New(context.Background(), cfg, models.RetryConfig{InitialBackoffMs: 1, MaxBackoffMs: 5}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// seedOrder creates a client, a worker, an employee and an order referencing them
func seedOrder(t *testing.T, db *Database) *models.Order {
	t.Helper()
	ctx := context.Background()

	client, err := db.CreateClient(ctx, &models.Client{Name: "Ana", Phone: "+15550001111", Email: "ana@example.com"})
	require.NoError(t, err)
	_, err = db.CreateWorker(ctx, &models.Worker{Code: "W1", Name: "Luis", Phone: "+15550002222"})
	require.NoError(t, err)
	_, err = db.CreateEmployee(ctx, &models.Employee{Code: "E1", Name: "Marta", Phone: "+15550003333"})
	require.NoError(t, err)

	order, err := db.CreateOrder(ctx, models.NewOrder{
		Code:         "ORD-1",
		ClientID:     client.ID,
		WorkerCode:   "W1",
		EmployeeCode: "E1",
		Description:  "Gold ring resize",
	})
	require.NoError(t, err)
	return order
}

func TestNewRejectsInvalidPath(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"nul byte", "\x00db"},
		{"traversal", "../../etc/orderbridge.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), models.DatabaseConfig{Path: tt.path}, models.RetryConfig{}, nil)
			assert.Error(t, err)
		})
	}
}

func TestNewRequiresSecretWhenEncrypting(t *testing.T) {
	cfg := models.DatabaseConfig{
		Path:          filepath.Join(t.TempDir(), "x.db"),
		EncryptPhones: true,
	}
	_, err := New(context.Background(), cfg, models.RetryConfig{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORDERBRIDGE_ENCRYPTION_SECRET")
}

func TestNewIsIdempotentOnExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orderbridge.db")
	ctx := context.Background()

	first, err := New(ctx, models.DatabaseConfig{Path: path}, models.RetryConfig{}, nil)
	require.NoError(t, err)
	_, err = first.CreateClient(ctx, &models.Client{Name: "Ana", Phone: "1"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(ctx, models.DatabaseConfig{Path: path}, models.RetryConfig{}, nil)
	require.NoError(t, err)
	defer second.Close()

	clients, err := second.ListClients(ctx)
	require.NoError(t, err)
	assert.Len(t, clients, 1)
}

func TestCreateOrderResolvesCodes(t *testing.T) {
	db := setupTestDB(t, false)
	order := seedOrder(t, db)

	got, err := db.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", got.Code)
	assert.Equal(t, models.OrderStatusPending, got.Status)
	require.NotNil(t, got.WorkerID)
	require.NotNil(t, got.EmployeeID)
	assert.Equal(t, order.WorkerID, got.WorkerID)
	assert.WithinDuration(t, order.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestCreateOrderStrictReferences(t *testing.T) {
	db := setupTestDB(t, false)
	ctx := context.Background()
	order := seedOrder(t, db)

	tests := []struct {
		name  string
		in    models.NewOrder
		field string
	}{
		{"unknown client", models.NewOrder{Code: "ORD-2", ClientID: 999}, "clientId"},
		{"unknown worker", models.NewOrder{Code: "ORD-2", ClientID: order.ClientID, WorkerCode: "NOPE"}, "workerCode"},
		{"unknown employee", models.NewOrder{Code: "ORD-2", ClientID: order.ClientID, EmployeeCode: "NOPE"}, "employeeCode"},
		{"duplicate code", models.NewOrder{Code: "ORD-1", ClientID: order.ClientID}, "code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created, err := db.CreateOrder(ctx, tt.in)
			require.Error(t, err)
			assert.Nil(t, created)

			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.ErrCodeValidationFailed, appErr.Code)
			assert.Equal(t, tt.field, appErr.Context["field"])
		})
	}

	orders, err := db.ListOrders(ctx, "")
	require.NoError(t, err)
	assert.Len(t, orders, 1, "rejected orders must not be stored")
}

func TestCreateOrderWithoutAssignments(t *testing.T) {
	db := setupTestDB(t, false)
	ctx := context.Background()

	client, err := db.CreateClient(ctx, &models.Client{Name: "Ana", Phone: "1"})
	require.NoError(t, err)

	order, err := db.CreateOrder(ctx, models.NewOrder{Code: "ORD-9", ClientID: client.ID})
	require.NoError(t, err)
	assert.Nil(t, order.WorkerID)
	assert.Nil(t, order.EmployeeID)
}

func TestUpdateOrderStatus(t *testing.T) {
	db := setupTestDB(t, false)
	ctx := context.Background()
	order := seedOrder(t, db)

	updated, err := db.UpdateOrderStatus(ctx, order.ID, models.OrderStatusReady)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReady, updated.Status)
	assert.False(t, updated.UpdatedAt.Before(order.UpdatedAt))

	_, err = db.UpdateOrderStatus(ctx, order.ID, "shipped")
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))

	_, err = db.UpdateOrderStatus(ctx, 999, models.OrderStatusReady)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))

	ready, err := db.ListOrders(ctx, models.OrderStatusReady)
	require.NoError(t, err)
	assert.Len(t, ready, 1)

	pending, err := db.ListOrders(ctx, models.OrderStatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeleteOrderCascadesMessages(t *testing.T) {
	db := setupTestDB(t, false)
	ctx := context.Background()
	order := seedOrder(t, db)

	msg, err := db.InsertMessage(ctx, &models.Message{OrderID: order.ID, Content: "hi", SenderType: models.SenderClient})
	require.NoError(t, err)

	require.NoError(t, db.DeleteOrder(ctx, order.ID))

	_, err = db.GetMessage(ctx, msg.ID)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))

	err = db.DeleteOrder(ctx, order.ID)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
}

func TestDeleteReferencedClientFails(t *testing.T) {
	db := setupTestDB(t, false)
	ctx := context.Background()
	order := seedOrder(t, db)

	err := db.DeleteClient(ctx, order.ClientID)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))

	_, err = db.GetClient(ctx, order.ClientID)
	assert.NoError(t, err)
}

func TestDeleteWorkerClearsAssignment(t *testing.T) {
	db := setupTestDB(t, false)
	ctx := context.Background()
	order := seedOrder(t, db)

	require.NoError(t, db.DeleteWorker(ctx, *order.WorkerID))

	got, err := db.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, got.WorkerID)
}

func TestWorkerCodesAreUnique(t *testing.T) {
	db := setupTestDB(t, false)
	ctx := context.Background()

	_, err := db.CreateWorker(ctx, &models.Worker{Code: "W1", Name: "A", Phone: "1"})
	require.NoError(t, err)
	_, err = db.CreateWorker(ctx, &models.Worker{Code: "W1", Name: "B", Phone: "2"})
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))

	_, err = db.CreateEmployee(ctx, &models.Employee{Code: "W1", Name: "C", Phone: "3"})
	assert.NoError(t, err, "worker and employee codes are separate namespaces")
}

func TestPeopleCRUD(t *testing.T) {
	db := setupTestDB(t, false)
	ctx := context.Background()

	w, err := db.CreateWorker(ctx, &models.Worker{Code: "W2", Name: "Luis", Phone: "+1555"})
	require.NoError(t, err)
	gotW, err := db.GetWorker(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Luis", gotW.Name)
	assert.Equal(t, "+1555", gotW.Phone)

	e, err := db.CreateEmployee(ctx, &models.Employee{Code: "E2", Name: "Marta", Phone: "+1666"})
	require.NoError(t, err)
	gotE, err := db.GetEmployee(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "E2", gotE.Code)

	workers, err := db.ListWorkers(ctx)
	require.NoError(t, err)
	assert.Len(t, workers, 1)
	employees, err := db.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Len(t, employees, 1)

	require.NoError(t, db.DeleteEmployee(ctx, e.ID))
	_, err = db.GetEmployee(ctx, e.ID)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))

	_, err = db.GetWorker(ctx, 404)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	_, err = db.GetClient(ctx, 404)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
}

func TestPhonesEncryptedAtRest(t *testing.T) {
	db := setupTestDB(t, true)
	ctx := context.Background()

	client, err := db.CreateClient(ctx, &models.Client{Name: "Ana", Phone: "+15550001111"})
	require.NoError(t, err)

	var raw string
	require.NoError(t, db.db.QueryRowContext(ctx, "SELECT phone FROM clients WHERE id = ?", client.ID).Scan(&raw))
	assert.NotEqual(t, "+15550001111", raw)
	assert.False(t, strings.Contains(raw, "5550001111"))

	got, err := db.GetClient(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "+15550001111", got.Phone)

	worker, err := db.CreateWorker(ctx, &models.Worker{Code: "W1", Name: "Luis", Phone: "+15550002222"})
	require.NoError(t, err)
	gotW, err := db.GetWorker(ctx, worker.ID)
	require.NoError(t, err)
	assert.Equal(t, "+15550002222", gotW.Phone)
}

func TestMessages(t *testing.T) {
	db := setupTestDB(t, false)
	ctx := context.Background()
	order := seedOrder(t, db)

	mediaID := "m1"
	source, err := db.InsertMessage(ctx, &models.Message{
		OrderID:    order.ID,
		Content:    "see photo",
		SenderType: models.SenderClient,
		MediaID:    &mediaID,
	})
	require.NoError(t, err)
	assert.NotZero(t, source.ID)
	assert.False(t, source.CreatedAt.IsZero())

	from := source.SenderType
	forward, err := db.InsertMessage(ctx, &models.Message{
		OrderID:           order.ID,
		Content:           "see photo\n[Media: image/jpeg] https://x/uploads/media/a.jpg",
		SenderType:        models.SenderEnterprise,
		ForwardedFrom:     &from,
		OriginalMessageID: &source.ID,
	})
	require.NoError(t, err)

	got, err := db.GetMessage(ctx, forward.ID)
	require.NoError(t, err)
	assert.True(t, got.IsForward())
	assert.False(t, got.HasMedia())
	require.NotNil(t, got.ForwardedFrom)
	assert.Equal(t, models.SenderClient, *got.ForwardedFrom)
	assert.Equal(t, source.ID, *got.OriginalMessageID)

	gotSource, err := db.GetMessage(ctx, source.ID)
	require.NoError(t, err)
	assert.True(t, gotSource.HasMedia())
	assert.Nil(t, gotSource.ForwardedFrom)

	list, err := db.ListMessagesByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, source.ID, list[0].ID)
	assert.Equal(t, forward.ID, list[1].ID)

	empty, err := db.ListMessagesByOrder(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInsertMessageValidation(t *testing.T) {
	db := setupTestDB(t, false)
	ctx := context.Background()
	order := seedOrder(t, db)

	_, err := db.InsertMessage(ctx, &models.Message{OrderID: 999, SenderType: models.SenderClient})
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))

	_, err = db.InsertMessage(ctx, &models.Message{OrderID: order.ID, SenderType: "robot"})
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))

	bad := models.SenderType("robot")
	_, err = db.InsertMessage(ctx, &models.Message{OrderID: order.ID, SenderType: models.SenderClient, ForwardedFrom: &bad})
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))
}
