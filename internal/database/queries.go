package database

// Client queries
const (
	InsertClientQuery = `
		INSERT INTO clients (name, phone, email, created_at)
		VALUES (?, ?, ?, ?)
	`

	SelectClientByIDQuery = `
		SELECT id, name, phone, email, created_at
		FROM clients
		WHERE id = ?
	`

	SelectClientsQuery = `
		SELECT id, name, phone, email, created_at
		FROM clients
		ORDER BY id
	`

	DeleteClientQuery = `DELETE FROM clients WHERE id = ?`

	ClientExistsQuery = `SELECT 1 FROM clients WHERE id = ?`
)

// Worker queries
const (
	InsertWorkerQuery = `
		INSERT INTO workers (code, name, phone, created_at)
		VALUES (?, ?, ?, ?)
	`

	SelectWorkerByIDQuery = `
		SELECT id, code, name, phone, created_at
		FROM workers
		WHERE id = ?
	`

	SelectWorkersQuery = `
		SELECT id, code, name, phone, created_at
		FROM workers
		ORDER BY code
	`

	SelectWorkerIDByCodeQuery = `SELECT id FROM workers WHERE code = ?`

	DeleteWorkerQuery = `DELETE FROM workers WHERE id = ?`
)

// Employee queries
const (
	InsertEmployeeQuery = `
		INSERT INTO employees (code, name, phone, created_at)
		VALUES (?, ?, ?, ?)
	`

	SelectEmployeeByIDQuery = `
		SELECT id, code, name, phone, created_at
		FROM employees
		WHERE id = ?
	`

	SelectEmployeesQuery = `
		SELECT id, code, name, phone, created_at
		FROM employees
		ORDER BY code
	`

	SelectEmployeeIDByCodeQuery = `SELECT id FROM employees WHERE code = ?`

	DeleteEmployeeQuery = `DELETE FROM employees WHERE id = ?`
)

// Order queries
const (
	InsertOrderQuery = `
		INSERT INTO orders (
			code, client_id, worker_id, employee_id,
			description, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectOrderColumns = `
		SELECT id, code, client_id, worker_id, employee_id,
			   description, status, created_at, updated_at
		FROM orders
	`

	SelectOrderByIDQuery = selectOrderColumns + `WHERE id = ?`

	SelectOrdersQuery = selectOrderColumns + `ORDER BY created_at DESC, id DESC`

	SelectOrdersByStatusQuery = selectOrderColumns + `WHERE status = ? ORDER BY created_at DESC, id DESC`

	UpdateOrderStatusQuery = `
		UPDATE orders
		SET status = ?, updated_at = ?
		WHERE id = ?
	`

	DeleteOrderQuery = `DELETE FROM orders WHERE id = ?`

	OrderExistsQuery = `SELECT 1 FROM orders WHERE id = ?`
)

// Message queries
const (
	InsertMessageQuery = `
		INSERT INTO messages (
			order_id, content, sender_type, media_id,
			forwarded_from, original_message_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	selectMessageColumns = `
		SELECT id, order_id, content, sender_type, media_id,
			   forwarded_from, original_message_id, created_at
		FROM messages
	`

	SelectMessageByIDQuery = selectMessageColumns + `WHERE id = ?`

	SelectMessagesByOrderQuery = selectMessageColumns + `WHERE order_id = ? ORDER BY created_at, id`
)
