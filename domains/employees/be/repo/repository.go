package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/amianGO/Store-Application/platform/go/persistence"
)

// ErrNotFound is returned when no employee matches the lookup.
var ErrNotFound = errors.New("employee not found")

// Employee is the persistence view of a tenant staff member. All queries run
// against the schema the broker switched the connection to, so table names
// stay unqualified.
type Employee struct {
	ID           int64
	Username     string
	FullName     string
	Email        string
	PasswordHash string
	Role         string
	Active       bool
	CreatedAt    time.Time
}

// CreateParams carries the fields needed to add an employee.
type CreateParams struct {
	Username     string
	FullName     string
	Email        string
	PasswordHash string
	Role         string
}

// Repository defines the persistence operations required by the employees service.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Employee, error)
	FindByUsername(ctx context.Context, username string) (Employee, error)
	List(ctx context.Context) ([]Employee, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

type brokerRepository struct {
	broker *persistence.Broker
}

// NewBrokerRepository constructs a repository that routes every query through
// the schema-switching broker.
func NewBrokerRepository(broker *persistence.Broker) Repository {
	if broker == nil {
		panic("broker is required")
	}
	return &brokerRepository{broker: broker}
}

const employeeColumns = "id, username, full_name, COALESCE(email, ''), password_hash, role, active, created_at"

func (r *brokerRepository) Create(ctx context.Context, params CreateParams) (Employee, error) {
	var emp Employee
	err := r.broker.WithConn(ctx, func(q persistence.Querier) error {
		row := q.QueryRow(ctx,
			`INSERT INTO employees (username, full_name, email, password_hash, role)
			 VALUES ($1, $2, NULLIF($3, ''), $4, $5)
			 RETURNING `+employeeColumns,
			params.Username, params.FullName, params.Email, params.PasswordHash, params.Role,
		)
		return scanEmployee(row, &emp)
	})
	if err != nil {
		return Employee{}, fmt.Errorf("create employee: %w", err)
	}
	return emp, nil
}

func (r *brokerRepository) FindByUsername(ctx context.Context, username string) (Employee, error) {
	var emp Employee
	err := r.broker.WithConn(ctx, func(q persistence.Querier) error {
		row := q.QueryRow(ctx,
			"SELECT "+employeeColumns+" FROM employees WHERE username = $1",
			username,
		)
		return scanEmployee(row, &emp)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrNotFound
	}
	if err != nil {
		return Employee{}, fmt.Errorf("find employee %s: %w", username, err)
	}
	return emp, nil
}

func (r *brokerRepository) List(ctx context.Context) ([]Employee, error) {
	var out []Employee
	err := r.broker.WithConn(ctx, func(q persistence.Querier) error {
		rows, err := q.Query(ctx, "SELECT "+employeeColumns+" FROM employees ORDER BY id")
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var emp Employee
			if err := scanEmployee(rows, &emp); err != nil {
				return err
			}
			out = append(out, emp)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	return out, nil
}

func (r *brokerRepository) SetActive(ctx context.Context, id int64, active bool) error {
	err := r.broker.WithConn(ctx, func(q persistence.Querier) error {
		tag, err := q.Exec(ctx, "UPDATE employees SET active = $2 WHERE id = $1", id, active)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("set employee %d active: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner, emp *Employee) error {
	return row.Scan(
		&emp.ID, &emp.Username, &emp.FullName, &emp.Email,
		&emp.PasswordHash, &emp.Role, &emp.Active, &emp.CreatedAt,
	)
}
