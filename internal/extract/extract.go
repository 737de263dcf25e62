// Package extract pulls flat invoice rows out of the source SQL Server
// database. One row per invoice line; the transform package groups rows
// back into per-invoice documents.
package extract

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Row is one line of the invoice extraction query. Header columns repeat
// on every line of the same invoice. Null-able columns use sql.Null types
// so NULLs survive into the JSON documents as null.
type Row struct {
	ID                 sql.NullInt64
	InvoiceNumber      sql.NullInt64
	InvoiceYear        sql.NullInt64
	InvoiceDate        sql.NullTime
	Notes              sql.NullString
	DeliveryNoteNumber sql.NullInt64
	DeliveryNoteDate   sql.NullTime
	OrderID            sql.NullInt64
	OrderNumber        sql.NullInt64
	OrderYear          sql.NullInt64
	OrderDate          sql.NullTime
	CustomerOrderID    sql.NullString
	CustomerID         sql.NullInt64
	CustomerName       sql.NullString
	Address            sql.NullString
	PostalCode         sql.NullString
	City               sql.NullString
	Province           sql.NullString
	Country            sql.NullString
	TaxID              sql.NullString
	ProductID          sql.NullString
	Description        sql.NullString
	Quantity           sql.NullFloat64
	Price              sql.NullFloat64
	Discount           sql.NullFloat64
	Total              sql.NullFloat64
	VATRate            sql.NullFloat64
}

// Extractor runs the invoice query against an open database handle.
type Extractor struct {
	db     *sql.DB
	query  string
	logger *slog.Logger
}

// NewExtractor wraps an open database handle. The query's column order
// must match Row's field order.
func NewExtractor(db *sql.DB, query string, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Extractor{db: db, query: query, logger: logger}
}

// Ping verifies the database connection with a round trip.
func (e *Extractor) Ping(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return fmt.Errorf("extract: database ping failed: %w", err)
	}

	return nil
}

// Extract runs the invoice query and returns all rows in query order.
// An empty result is not an error; the caller decides what an empty
// batch means.
func (e *Extractor) Extract(ctx context.Context) ([]Row, error) {
	e.logger.Info("executing invoice query")

	rows, err := e.db.QueryContext(ctx, e.query)
	if err != nil {
		return nil, fmt.Errorf("extract: query failed: %w", err)
	}
	defer rows.Close()

	var out []Row

	for rows.Next() {
		var r Row

		if err := rows.Scan(
			&r.ID, &r.InvoiceNumber, &r.InvoiceYear, &r.InvoiceDate, &r.Notes,
			&r.DeliveryNoteNumber, &r.DeliveryNoteDate,
			&r.OrderID, &r.OrderNumber, &r.OrderYear, &r.OrderDate, &r.CustomerOrderID,
			&r.CustomerID, &r.CustomerName, &r.Address, &r.PostalCode, &r.City,
			&r.Province, &r.Country, &r.TaxID,
			&r.ProductID, &r.Description, &r.Quantity, &r.Price, &r.Discount,
			&r.Total, &r.VATRate,
		); err != nil {
			return nil, fmt.Errorf("extract: scanning row: %w", err)
		}

		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("extract: reading rows: %w", err)
	}

	e.logger.Info("extraction complete", slog.Int("rows", len(out)))

	return out, nil
}
