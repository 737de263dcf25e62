// Package transform reshapes flat invoice rows into nested per-invoice
// documents: header fields plus a list of product lines, with totals
// computed across lines. JSON field names are the wire format consumed
// downstream and must not change.
package transform

import (
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/martagh/invoicedrive/internal/extract"
)

// dateLayout is the wire format for invoice dates.
const dateLayout = "2006-01-02"

// Invoice is one nested invoice document. Pointer fields serialize NULL
// database columns as JSON null.
type Invoice struct {
	ID                 int64         `json:"id"`
	InvoiceNumber      *int64        `json:"num_factura"`
	InvoiceYear        *int64        `json:"año_factura"`
	InvoiceDate        *string       `json:"fecha_factura"`
	TotalExclVAT       float64       `json:"total_iva_excl"`
	TotalVAT           float64       `json:"total_iva"`
	TotalInclVAT       float64       `json:"total_iva_incl"`
	Notes              string        `json:"observaciones"`
	DeliveryNoteNumber *int64        `json:"num_albaran"`
	DeliveryNoteDate   *string       `json:"fecha_albaran"`
	OrderID            *int64        `json:"id_pedido"`
	OrderNumber        *int64        `json:"num_pedido"`
	OrderYear          *int64        `json:"año_pedido"`
	OrderDate          *string       `json:"fecha_pedido"`
	CustomerOrderID    *string       `json:"id_pedido_cliente"`
	CustomerID         *int64        `json:"id_cliente"`
	CustomerName       *string       `json:"cliente"`
	Address            *string       `json:"direccion"`
	PostalCode         *string       `json:"cod_postal"`
	City               *string       `json:"ciudad"`
	Province           *string       `json:"provincia"`
	Country            *string       `json:"pais"`
	TaxID              *string       `json:"nif"`
	Products           []ProductLine `json:"products"`
}

// ProductLine wraps one product entry, preserving the nested
// {"product": {...}} shape of the document format.
type ProductLine struct {
	Product Product `json:"product"`
}

// Product is one invoice line item.
type Product struct {
	ProductID   *string  `json:"id_articulo"`
	Description *string  `json:"descripcion"`
	Quantity    *float64 `json:"cantidad"`
	Price       *float64 `json:"precio"`
	Discount    *float64 `json:"descuento"`
	Total       *float64 `json:"total"`
}

// Reference returns the string used to derive the document filename:
// the customer order ID when present, otherwise a synthesized identifier
// from the invoice ID.
func (inv *Invoice) Reference() string {
	if inv.CustomerOrderID != nil && *inv.CustomerOrderID != "" {
		return *inv.CustomerOrderID
	}

	return fmt.Sprintf("id_factura_%d", inv.ID)
}

// Filename substitutes the invoice reference into the configured
// filename template.
func Filename(template, reference string) string {
	return strings.ReplaceAll(template, "{reference}", reference)
}

// ToInvoices groups flat rows into one Invoice per distinct invoice ID,
// preserving first-seen order. Rows without an invoice ID are skipped.
// Totals: total_iva_excl is the sum of line totals, total_iva_incl the
// sum of line totals multiplied by each line's VAT factor (1.0 when
// NULL), total_iva the difference. All rounded to 2 decimals.
func ToInvoices(rows []extract.Row, logger *slog.Logger) []*Invoice {
	if logger == nil {
		logger = slog.Default()
	}

	byID := make(map[int64]*Invoice)

	var invoices []*Invoice

	for _, row := range rows {
		if !row.ID.Valid {
			logger.Warn("skipping row without invoice id")
			continue
		}

		inv, ok := byID[row.ID.Int64]
		if !ok {
			inv = headerFromRow(row)
			byID[row.ID.Int64] = inv
			invoices = append(invoices, inv)
		}

		inv.Products = append(inv.Products, ProductLine{Product: Product{
			ProductID:   nullString(row.ProductID),
			Description: nullString(row.Description),
			Quantity:    nullFloat(row.Quantity),
			Price:       nullFloat(row.Price),
			Discount:    nullFloat(row.Discount),
			Total:       nullFloat(row.Total),
		}})

		lineTotal := row.Total.Float64

		vat := 1.0
		if row.VATRate.Valid {
			vat = row.VATRate.Float64
		}

		inv.TotalExclVAT += lineTotal
		inv.TotalInclVAT += lineTotal * vat
	}

	for _, inv := range invoices {
		inv.TotalExclVAT = round2(inv.TotalExclVAT)
		inv.TotalInclVAT = round2(inv.TotalInclVAT)
		inv.TotalVAT = round2(inv.TotalInclVAT - inv.TotalExclVAT)
	}

	logger.Info("transformation complete",
		slog.Int("rows", len(rows)),
		slog.Int("invoices", len(invoices)),
	)

	return invoices
}

// headerFromRow builds the invoice header from the first row seen for an
// invoice. Header columns repeat on every line, so any row would do.
func headerFromRow(row extract.Row) *Invoice {
	return &Invoice{
		ID:                 row.ID.Int64,
		InvoiceNumber:      nullInt(row.InvoiceNumber),
		InvoiceYear:        nullInt(row.InvoiceYear),
		InvoiceDate:        nullDate(row.InvoiceDate),
		Notes:              row.Notes.String,
		DeliveryNoteNumber: nullInt(row.DeliveryNoteNumber),
		DeliveryNoteDate:   nullDate(row.DeliveryNoteDate),
		OrderID:            nullInt(row.OrderID),
		OrderNumber:        nullInt(row.OrderNumber),
		OrderYear:          nullInt(row.OrderYear),
		OrderDate:          nullDate(row.OrderDate),
		CustomerOrderID:    nullString(row.CustomerOrderID),
		CustomerID:         nullInt(row.CustomerID),
		CustomerName:       nullString(row.CustomerName),
		Address:            nullString(row.Address),
		PostalCode:         nullString(row.PostalCode),
		City:               nullString(row.City),
		Province:           nullString(row.Province),
		Country:            nullString(row.Country),
		TaxID:              nullString(row.TaxID),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}

	return &v.Int64
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}

	return &v.Float64
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}

	return &v.String
}

func nullDate(v sql.NullTime) *string {
	if !v.Valid {
		return nil
	}

	s := v.Time.Format(dateLayout)

	return &s
}
