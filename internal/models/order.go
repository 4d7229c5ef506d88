package models

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusInProgress, OrderStatusReady, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Order is a jewelry work order; its ID doubles as the chat conversation ID
type Order struct {
	ID          int64       `json:"id"`
	Code        string      `json:"code"`
	ClientID    int64       `json:"clientId"`
	WorkerID    *int64      `json:"workerId,omitempty"`
	EmployeeID  *int64      `json:"employeeId,omitempty"`
	Description string      `json:"description"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Worker is a craftsperson orders are assigned to. One phone per worker.
type Worker struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
}

// Client is a customer placing orders
type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Employee is a shop employee who takes and manages orders
type Employee struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewOrder is the input for order creation. Worker and employee are
// referenced by their codes and must exist when given.
type NewOrder struct {
	Code         string `json:"code" validate:"required,max=64"`
	ClientID     int64  `json:"clientId" validate:"required,gt=0"`
	WorkerCode   string `json:"workerCode,omitempty" validate:"omitempty,max=64"`
	EmployeeCode string `json:"employeeCode,omitempty" validate:"omitempty,max=64"`
	Description  string `json:"description" validate:"max=2000"`
}
