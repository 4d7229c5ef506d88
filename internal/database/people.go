package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "orderbridge/internal/errors"
	"orderbridge/internal/models"
)

// CreateClient stores a client and returns it with its assigned ID
func (d *Database) CreateClient(ctx context.Context, client *models.Client) (*models.Client, error) {
	phone, err := d.encryptor.Encrypt(client.Phone)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt client phone: %w", err)
	}

	created := *client
	created.CreatedAt = d.now()

	err = d.withRetry(ctx, "insert_client", func(ctx context.Context) error {
		result, err := d.db.ExecContext(ctx, InsertClientQuery, created.Name, phone, created.Email, created.CreatedAt)
		if err != nil {
			return err
		}
		created.ID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("insert client", err)
	}

	return &created, nil
}

func (d *Database) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	client, err := d.scanClient(d.db.QueryRowContext(ctx, SelectClientByIDQuery, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("client", fmt.Sprint(id))
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get client", err)
	}
	return client, nil
}

func (d *Database) ListClients(ctx context.Context) ([]*models.Client, error) {
	rows, err := d.db.QueryContext(ctx, SelectClientsQuery)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list clients", err)
	}
	defer rows.Close()

	clients := []*models.Client{}
	for rows.Next() {
		client, err := d.scanClient(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError("list clients", err)
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list clients", err)
	}
	return clients, nil
}

// DeleteClient fails while orders still reference the client
func (d *Database) DeleteClient(ctx context.Context, id int64) error {
	return d.deleteByID(ctx, DeleteClientQuery, "client", id)
}

// CreateWorker stores a worker. Worker codes are unique.
func (d *Database) CreateWorker(ctx context.Context, worker *models.Worker) (*models.Worker, error) {
	id, createdAt, err := d.insertCoded(ctx, InsertWorkerQuery, "worker", worker.Code, worker.Name, worker.Phone)
	if err != nil {
		return nil, err
	}
	created := *worker
	created.ID = id
	created.CreatedAt = createdAt
	return &created, nil
}

func (d *Database) GetWorker(ctx context.Context, id int64) (*models.Worker, error) {
	var w models.Worker
	err := d.scanCoded(d.db.QueryRowContext(ctx, SelectWorkerByIDQuery, id), &w.ID, &w.Code, &w.Name, &w.Phone, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("worker", fmt.Sprint(id))
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get worker", err)
	}
	return &w, nil
}

func (d *Database) ListWorkers(ctx context.Context) ([]*models.Worker, error) {
	rows, err := d.db.QueryContext(ctx, SelectWorkersQuery)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list workers", err)
	}
	defer rows.Close()

	workers := []*models.Worker{}
	for rows.Next() {
		var w models.Worker
		if err := d.scanCoded(rows, &w.ID, &w.Code, &w.Name, &w.Phone, &w.CreatedAt); err != nil {
			return nil, apperrors.NewDatabaseError("list workers", err)
		}
		workers = append(workers, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list workers", err)
	}
	return workers, nil
}

func (d *Database) DeleteWorker(ctx context.Context, id int64) error {
	return d.deleteByID(ctx, DeleteWorkerQuery, "worker", id)
}

// CreateEmployee stores an employee. Employee codes are unique.
func (d *Database) CreateEmployee(ctx context.Context, employee *models.Employee) (*models.Employee, error) {
	id, createdAt, err := d.insertCoded(ctx, InsertEmployeeQuery, "employee", employee.Code, employee.Name, employee.Phone)
	if err != nil {
		return nil, err
	}
	created := *employee
	created.ID = id
	created.CreatedAt = createdAt
	return &created, nil
}

func (d *Database) GetEmployee(ctx context.Context, id int64) (*models.Employee, error) {
	var e models.Employee
	err := d.scanCoded(d.db.QueryRowContext(ctx, SelectEmployeeByIDQuery, id), &e.ID, &e.Code, &e.Name, &e.Phone, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("employee", fmt.Sprint(id))
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get employee", err)
	}
	return &e, nil
}

func (d *Database) ListEmployees(ctx context.Context) ([]*models.Employee, error) {
	rows, err := d.db.QueryContext(ctx, SelectEmployeesQuery)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list employees", err)
	}
	defer rows.Close()

	employees := []*models.Employee{}
	for rows.Next() {
		var e models.Employee
		if err := d.scanCoded(rows, &e.ID, &e.Code, &e.Name, &e.Phone, &e.CreatedAt); err != nil {
			return nil, apperrors.NewDatabaseError("list employees", err)
		}
		employees = append(employees, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list employees", err)
	}
	return employees, nil
}

func (d *Database) DeleteEmployee(ctx context.Context, id int64) error {
	return d.deleteByID(ctx, DeleteEmployeeQuery, "employee", id)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (d *Database) scanClient(row rowScanner) (*models.Client, error) {
	var c models.Client
	var phone string
	if err := row.Scan(&c.ID, &c.Name, &phone, &c.Email, &c.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	c.Phone, err = d.encryptor.Decrypt(phone)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt client phone: %w", err)
	}
	return &c, nil
}

// insertCoded inserts a worker or employee row, both of which share the
// (code, name, phone, created_at) shape.
func (d *Database) insertCoded(ctx context.Context, query, resource, code, name, phone string) (int64, time.Time, error) {
	encryptedPhone, err := d.encryptor.Encrypt(phone)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to encrypt %s phone: %w", resource, err)
	}

	createdAt := d.now()
	var id int64
	err = d.withRetry(ctx, "insert_"+resource, func(ctx context.Context) error {
		result, err := d.db.ExecContext(ctx, query, code, name, encryptedPhone, createdAt)
		if err != nil {
			return err
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return 0, time.Time{}, apperrors.NewValidationError("code", fmt.Sprintf("%s code %q already exists", resource, code))
		}
		return 0, time.Time{}, apperrors.NewDatabaseError("insert "+resource, err)
	}
	return id, createdAt, nil
}

func (d *Database) scanCoded(row rowScanner, id *int64, code, name, phone *string, createdAt *time.Time) error {
	var encryptedPhone string
	if err := row.Scan(id, code, name, &encryptedPhone, createdAt); err != nil {
		return err
	}

	decrypted, err := d.encryptor.Decrypt(encryptedPhone)
	if err != nil {
		return fmt.Errorf("failed to decrypt phone: %w", err)
	}
	*phone = decrypted
	return nil
}
