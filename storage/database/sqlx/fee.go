package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core/fee"
)

const (
	headColumns    = "id, school_id, name, description, type, created_at, updated_at"
	paymentColumns = "id, school_id, student_id, class_id, payment_date, payment_mode, transaction_id, " +
		"discount, fine, total_amount, receipt_number, remarks, created_at"
)

type headRow struct {
	ID          string    `db:"id"`
	SchoolID    string    `db:"school_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Type        string    `db:"type"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r headRow) head() fee.Head {
	return fee.Head{
		ID:          r.ID,
		SchoolID:    r.SchoolID,
		Name:        r.Name,
		Description: r.Description,
		Type:        r.Type,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type structureEntryRow struct {
	FeeHeadID string          `db:"fee_head_id"`
	Amount    decimal.Decimal `db:"amount"`
}

type paymentRow struct {
	ID            string          `db:"id"`
	SchoolID      string          `db:"school_id"`
	StudentID     string          `db:"student_id"`
	ClassID       string          `db:"class_id"`
	PaymentDate   time.Time       `db:"payment_date"`
	PaymentMode   string          `db:"payment_mode"`
	TransactionID string          `db:"transaction_id"`
	Discount      decimal.Decimal `db:"discount"`
	Fine          decimal.Decimal `db:"fine"`
	TotalAmount   decimal.Decimal `db:"total_amount"`
	ReceiptNumber string          `db:"receipt_number"`
	Remarks       string          `db:"remarks"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (r paymentRow) payment(items []fee.PaidFor) fee.Payment {
	if items == nil {
		items = make([]fee.PaidFor, 0)
	}
	return fee.Payment{
		ID:            r.ID,
		SchoolID:      r.SchoolID,
		StudentID:     r.StudentID,
		ClassID:       r.ClassID,
		PaymentDate:   r.PaymentDate.UTC(),
		PaymentMode:   r.PaymentMode,
		TransactionID: r.TransactionID,
		PaidFor:       items,
		Discount:      r.Discount,
		Fine:          r.Fine,
		TotalAmount:   r.TotalAmount,
		ReceiptNumber: r.ReceiptNumber,
		Remarks:       r.Remarks,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

type paymentItemRow struct {
	PaymentID   string          `db:"payment_id"`
	Position    int             `db:"position"`
	FeeHeadID   string          `db:"fee_head_id"`
	FeeHeadName string          `db:"fee_head_name"`
	Amount      decimal.Decimal `db:"amount"`
}

type feeRepository struct {
	db *sqlx.DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *sqlx.DB) *feeRepository {
	return &feeRepository{db: db}
}

// Heads

func (repo *feeRepository) CreateHead(ctx context.Context, head fee.Head) (fee.Head, error) {
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO fee_heads ("+headColumns+") VALUES (:id, :school_id, :name, :description, :type, :created_at, :updated_at)",
		headRow{
			ID:          head.ID,
			SchoolID:    head.SchoolID,
			Name:        head.Name,
			Description: head.Description,
			Type:        head.Type,
			CreatedAt:   head.CreatedAt,
			UpdatedAt:   head.UpdatedAt,
		})
	if err != nil {
		return fee.Head{}, errors.Wrap(err, "inserting fee head")
	}
	return head, nil
}

func (repo *feeRepository) UpdateHead(ctx context.Context, head fee.Head) (fee.Head, error) {
	res, err := repo.db.ExecContext(ctx,
		"UPDATE fee_heads SET name = $1, description = $2, type = $3, updated_at = $4 WHERE school_id = $5 AND id::text = $6",
		head.Name, head.Description, head.Type, head.UpdatedAt, head.SchoolID, head.ID)
	if err != nil {
		return fee.Head{}, errors.Wrap(err, "updating fee head")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fee.Head{}, fee.ErrHeadNotFound
	}
	return repo.GetHead(ctx, head.SchoolID, head.ID)
}

func (repo *feeRepository) GetHead(ctx context.Context, schoolID, id string) (fee.Head, error) {
	var row headRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+headColumns+" FROM fee_heads WHERE school_id = $1 AND id::text = $2", schoolID, id)
	if err != nil {
		return fee.Head{}, trapNoRowsErr(err, fee.ErrHeadNotFound, "getting fee head")
	}
	return row.head(), nil
}

func (repo *feeRepository) QueryHeads(ctx context.Context, schoolID string) ([]fee.Head, error) {
	var rows []headRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT "+headColumns+" FROM fee_heads WHERE school_id = $1 ORDER BY name, id", schoolID); err != nil {
		return nil, errors.Wrap(err, "querying fee heads")
	}
	heads := make([]fee.Head, 0, len(rows))
	for _, r := range rows {
		heads = append(heads, r.head())
	}
	return heads, nil
}

func (repo *feeRepository) HeadReferenced(ctx context.Context, schoolID, headID string) (bool, error) {
	var used bool
	err := repo.db.GetContext(ctx, &used,
		"SELECT EXISTS (SELECT 1 FROM fee_structure_entries WHERE school_id = $1 AND fee_head_id::text = $2)", schoolID, headID)
	return used, errors.Wrap(err, "checking fee head references")
}

// Structures

func (repo *feeRepository) SaveStructure(ctx context.Context, cs fee.ClassStructure) (fee.ClassStructure, error) {
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO fee_structures (school_id, class_id, updated_at) VALUES ($1, $2, $3) "+
				"ON CONFLICT (school_id, class_id) DO UPDATE SET updated_at = EXCLUDED.updated_at",
			cs.SchoolID, cs.ClassID, cs.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, "upserting fee structure")
		}
		if _, err = tx.ExecContext(ctx, "DELETE FROM fee_structure_entries WHERE school_id = $1 AND class_id = $2", cs.SchoolID, cs.ClassID); err != nil {
			return errors.Wrap(err, "clearing fee structure entries")
		}
		for i, e := range cs.Entries {
			_, err = tx.ExecContext(ctx,
				"INSERT INTO fee_structure_entries (school_id, class_id, position, fee_head_id, amount) VALUES ($1, $2, $3, $4, $5)",
				cs.SchoolID, cs.ClassID, i, e.FeeHeadID, e.Amount)
			if err != nil {
				return errors.Wrap(err, "inserting fee structure entry")
			}
		}
		return nil
	})
	if err != nil {
		return fee.ClassStructure{}, err
	}
	return cs, nil
}

func (repo *feeRepository) GetStructure(ctx context.Context, schoolID, classID string) (fee.ClassStructure, error) {
	var updatedAt time.Time
	err := repo.db.GetContext(ctx, &updatedAt, "SELECT updated_at FROM fee_structures WHERE school_id = $1 AND class_id = $2", schoolID, classID)
	if err != nil {
		return fee.ClassStructure{}, trapNoRowsErr(err, fee.ErrStructureNotFound, "getting fee structure")
	}

	var rows []structureEntryRow
	err = repo.db.SelectContext(ctx, &rows,
		"SELECT fee_head_id, amount FROM fee_structure_entries WHERE school_id = $1 AND class_id = $2 ORDER BY position",
		schoolID, classID)
	if err != nil {
		return fee.ClassStructure{}, errors.Wrap(err, "getting fee structure entries")
	}
	entries := make([]fee.StructureEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, fee.StructureEntry{FeeHeadID: r.FeeHeadID, Amount: r.Amount})
	}
	return fee.ClassStructure{SchoolID: schoolID, ClassID: classID, Entries: entries, UpdatedAt: updatedAt.UTC()}, nil
}

// Payments

func (repo *feeRepository) NextReceiptSeq(ctx context.Context, schoolID string, year int) (int, error) {
	var seq int
	err := repo.db.GetContext(ctx, &seq,
		"INSERT INTO receipt_sequences (school_id, year, seq) VALUES ($1, $2, 1) "+
			"ON CONFLICT (school_id, year) DO UPDATE SET seq = receipt_sequences.seq + 1 RETURNING seq",
		schoolID, year)
	return seq, errors.Wrap(err, "incrementing receipt sequence")
}

func (repo *feeRepository) CreatePayment(ctx context.Context, p fee.Payment) (fee.Payment, error) {
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx,
			"INSERT INTO payments ("+paymentColumns+") VALUES (:id, :school_id, :student_id, :class_id, :payment_date, "+
				":payment_mode, :transaction_id, :discount, :fine, :total_amount, :receipt_number, :remarks, :created_at)",
			paymentRow{
				ID:            p.ID,
				SchoolID:      p.SchoolID,
				StudentID:     p.StudentID,
				ClassID:       p.ClassID,
				PaymentDate:   p.PaymentDate,
				PaymentMode:   p.PaymentMode,
				TransactionID: p.TransactionID,
				Discount:      p.Discount,
				Fine:          p.Fine,
				TotalAmount:   p.TotalAmount,
				ReceiptNumber: p.ReceiptNumber,
				Remarks:       p.Remarks,
				CreatedAt:     p.CreatedAt,
			})
		if err != nil {
			return errors.Wrap(err, "inserting payment")
		}
		for i, pf := range p.PaidFor {
			_, err = tx.NamedExecContext(ctx,
				"INSERT INTO payment_items (payment_id, position, fee_head_id, fee_head_name, amount) "+
					"VALUES (:payment_id, :position, :fee_head_id, :fee_head_name, :amount)",
				paymentItemRow{PaymentID: p.ID, Position: i, FeeHeadID: pf.FeeHeadID, FeeHeadName: pf.FeeHeadName, Amount: pf.Amount})
			if err != nil {
				return errors.Wrap(err, "inserting payment item")
			}
		}
		return nil
	})
	if err != nil {
		return fee.Payment{}, err
	}
	return p, nil
}

func (repo *feeRepository) GetPayment(ctx context.Context, schoolID, id string) (fee.Payment, error) {
	var row paymentRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+paymentColumns+" FROM payments WHERE school_id = $1 AND id::text = $2", schoolID, id)
	if err != nil {
		return fee.Payment{}, trapNoRowsErr(err, fee.ErrPaymentNotFound, "getting payment")
	}
	payments, err := repo.withItems(ctx, []paymentRow{row})
	if err != nil {
		return fee.Payment{}, err
	}
	return payments[0], nil
}

func (repo *feeRepository) QueryPayments(ctx context.Context, schoolID string, filter fee.PaymentFilter) ([]fee.Payment, error) {
	q, args := paymentsQuery(schoolID, filter)
	var rows []paymentRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	return repo.withItems(ctx, rows)
}

// paymentsQuery builds the payments select with '?' bindvars.
func paymentsQuery(schoolID string, filter fee.PaymentFilter) (string, []interface{}) {
	where := []string{"school_id = ?"}
	args := []interface{}{schoolID}
	if filter.StudentID != "" {
		where = append(where, "student_id::text = ?")
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		where = append(where, "class_id = ?")
		args = append(args, filter.ClassID)
	}
	if !filter.From.IsZero() {
		where = append(where, "payment_date >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		where = append(where, "payment_date < ?")
		args = append(args, filter.To)
	}
	return "SELECT " + paymentColumns + " FROM payments WHERE " + strings.Join(where, " AND ") +
		" ORDER BY payment_date, created_at, id", args
}

// withItems loads the paid-for items of rows in one query.
func (repo *feeRepository) withItems(ctx context.Context, rows []paymentRow) ([]fee.Payment, error) {
	payments := make([]fee.Payment, 0, len(rows))
	if len(rows) == 0 {
		return payments, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	q, args, err := paymentItemsQuery(ids)
	if err != nil {
		return nil, err
	}
	var itemRows []paymentItemRow
	if err = repo.db.SelectContext(ctx, &itemRows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying payment items")
	}

	items := make(map[string][]fee.PaidFor, len(rows))
	for _, it := range itemRows {
		items[it.PaymentID] = append(items[it.PaymentID], fee.PaidFor{FeeHeadID: it.FeeHeadID, FeeHeadName: it.FeeHeadName, Amount: it.Amount})
	}
	for _, r := range rows {
		payments = append(payments, r.payment(items[r.ID]))
	}
	return payments, nil
}

func paymentItemsQuery(paymentIDs []string) (string, []interface{}, error) {
	q, args, err := sqlx.In("SELECT payment_id, position, fee_head_id, fee_head_name, amount FROM payment_items "+
		"WHERE payment_id::text IN (?) ORDER BY payment_id, position", paymentIDs)
	return q, args, errors.Wrap(err, "building payment items query")
}
