package database

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "orderbridge/internal/errors"
	"orderbridge/internal/models"
)

// CreateOrder validates every reference before inserting. Unknown clients,
// worker codes or employee codes are rejected; nothing is substituted.
func (d *Database) CreateOrder(ctx context.Context, in models.NewOrder) (*models.Order, error) {
	ok, err := d.exists(ctx, ClientExistsQuery, in.ClientID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("lookup client", err)
	}
	if !ok {
		return nil, apperrors.NewValidationError("clientId", fmt.Sprintf("unknown client %d", in.ClientID))
	}

	workerID, err := d.lookupCode(ctx, SelectWorkerIDByCodeQuery, "workerCode", in.WorkerCode)
	if err != nil {
		return nil, err
	}
	employeeID, err := d.lookupCode(ctx, SelectEmployeeIDByCodeQuery, "employeeCode", in.EmployeeCode)
	if err != nil {
		return nil, err
	}

	now := d.now()
	order := &models.Order{
		Code:        in.Code,
		ClientID:    in.ClientID,
		WorkerID:    workerID,
		EmployeeID:  employeeID,
		Description: in.Description,
		Status:      models.OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = d.withRetry(ctx, "insert_order", func(ctx context.Context) error {
		result, err := d.db.ExecContext(ctx, InsertOrderQuery,
			order.Code,
			order.ClientID,
			nullableInt64(order.WorkerID),
			nullableInt64(order.EmployeeID),
			order.Description,
			string(order.Status),
			order.CreatedAt,
			order.UpdatedAt,
		)
		if err != nil {
			return err
		}
		order.ID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.NewValidationError("code", fmt.Sprintf("order code %q already exists", in.Code))
		}
		if isForeignKeyViolation(err) {
			return nil, apperrors.NewValidationError("order", "order references a record that no longer exists")
		}
		return nil, apperrors.NewDatabaseError("insert order", err)
	}

	return order, nil
}

// lookupCode resolves an optional worker or employee code to its row ID
func (d *Database) lookupCode(ctx context.Context, query, field, code string) (*int64, error) {
	if code == "" {
		return nil, nil
	}

	var id int64
	err := d.db.QueryRowContext(ctx, query, code).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewValidationError(field, fmt.Sprintf("unknown code %q", code))
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("lookup "+field, err)
	}
	return &id, nil
}

func (d *Database) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	order, err := scanOrder(d.db.QueryRowContext(ctx, SelectOrderByIDQuery, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("order", fmt.Sprint(id))
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get order", err)
	}
	return order, nil
}

// ListOrders returns newest orders first, optionally filtered by status
func (d *Database) ListOrders(ctx context.Context, status models.OrderStatus) ([]*models.Order, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = d.db.QueryContext(ctx, SelectOrdersQuery)
	} else {
		rows, err = d.db.QueryContext(ctx, SelectOrdersByStatusQuery, string(status))
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("list orders", err)
	}
	defer rows.Close()

	orders := []*models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError("list orders", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list orders", err)
	}
	return orders, nil
}

func (d *Database) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("status", fmt.Sprintf("unknown order status %q", status))
	}

	var affected int64
	err := d.withRetry(ctx, "update_order_status", func(ctx context.Context) error {
		result, err := d.db.ExecContext(ctx, UpdateOrderStatusQuery, string(status), d.now(), id)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("update order status", err)
	}
	if affected == 0 {
		return nil, apperrors.NewNotFoundError("order", fmt.Sprint(id))
	}

	return d.GetOrder(ctx, id)
}

// DeleteOrder removes the order and, by cascade, its messages
func (d *Database) DeleteOrder(ctx context.Context, id int64) error {
	return d.deleteByID(ctx, DeleteOrderQuery, "order", id)
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var workerID, employeeID sql.NullInt64
	var status string

	if err := row.Scan(
		&o.ID,
		&o.Code,
		&o.ClientID,
		&workerID,
		&employeeID,
		&o.Description,
		&status,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}

	o.WorkerID = int64Ptr(workerID)
	o.EmployeeID = int64Ptr(employeeID)
	o.Status = models.OrderStatus(status)
	return &o, nil
}
