package mongorepos

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/shule/core/fee"
)

// amounts are stored as decimal strings so that no precision is lost.

type headDoc struct {
	ID          string    `bson:"_id"`
	SchoolID    string    `bson:"school_id"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	Type        string    `bson:"type"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func newHeadDoc(h fee.Head) headDoc {
	return headDoc{
		ID:          h.ID,
		SchoolID:    h.SchoolID,
		Name:        h.Name,
		Description: h.Description,
		Type:        h.Type,
		CreatedAt:   h.CreatedAt,
		UpdatedAt:   h.UpdatedAt,
	}
}

func (d headDoc) head() fee.Head {
	return fee.Head{
		ID:          d.ID,
		SchoolID:    d.SchoolID,
		Name:        d.Name,
		Description: d.Description,
		Type:        d.Type,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

type structureEntryDoc struct {
	FeeHeadID string `bson:"fee_head_id"`
	Amount    string `bson:"amount"`
}

type structureDoc struct {
	SchoolID  string              `bson:"school_id"`
	ClassID   string              `bson:"class_id"`
	Entries   []structureEntryDoc `bson:"entries"`
	UpdatedAt time.Time           `bson:"updated_at"`
}

type paidForDoc struct {
	FeeHeadID   string `bson:"fee_head_id"`
	FeeHeadName string `bson:"fee_head_name"`
	Amount      string `bson:"amount"`
}

type paymentDoc struct {
	ID            string       `bson:"_id"`
	SchoolID      string       `bson:"school_id"`
	StudentID     string       `bson:"student_id"`
	ClassID       string       `bson:"class_id"`
	PaymentDate   time.Time    `bson:"payment_date"`
	PaymentMode   string       `bson:"payment_mode"`
	TransactionID string       `bson:"transaction_id"`
	PaidFor       []paidForDoc `bson:"paid_for"`
	Discount      string       `bson:"discount"`
	Fine          string       `bson:"fine"`
	TotalAmount   string       `bson:"total_amount"`
	ReceiptNumber string       `bson:"receipt_number"`
	Remarks       string       `bson:"remarks"`
	CreatedAt     time.Time    `bson:"created_at"`
}

func newPaymentDoc(p fee.Payment) paymentDoc {
	doc := paymentDoc{
		ID:            p.ID,
		SchoolID:      p.SchoolID,
		StudentID:     p.StudentID,
		ClassID:       p.ClassID,
		PaymentDate:   p.PaymentDate,
		PaymentMode:   p.PaymentMode,
		TransactionID: p.TransactionID,
		PaidFor:       make([]paidForDoc, 0, len(p.PaidFor)),
		Discount:      p.Discount.String(),
		Fine:          p.Fine.String(),
		TotalAmount:   p.TotalAmount.String(),
		ReceiptNumber: p.ReceiptNumber,
		Remarks:       p.Remarks,
		CreatedAt:     p.CreatedAt,
	}
	for _, pf := range p.PaidFor {
		doc.PaidFor = append(doc.PaidFor, paidForDoc{FeeHeadID: pf.FeeHeadID, FeeHeadName: pf.FeeHeadName, Amount: pf.Amount.String()})
	}
	return doc
}

func (d paymentDoc) payment() (fee.Payment, error) {
	p := fee.Payment{
		ID:            d.ID,
		SchoolID:      d.SchoolID,
		StudentID:     d.StudentID,
		ClassID:       d.ClassID,
		PaymentDate:   d.PaymentDate.UTC(),
		PaymentMode:   d.PaymentMode,
		TransactionID: d.TransactionID,
		PaidFor:       make([]fee.PaidFor, 0, len(d.PaidFor)),
		ReceiptNumber: d.ReceiptNumber,
		Remarks:       d.Remarks,
		CreatedAt:     d.CreatedAt.UTC(),
	}

	var err error
	if p.Discount, err = decimal.NewFromString(d.Discount); err != nil {
		return fee.Payment{}, errors.Wrapf(err, "payment %s: discount", d.ID)
	}
	if p.Fine, err = decimal.NewFromString(d.Fine); err != nil {
		return fee.Payment{}, errors.Wrapf(err, "payment %s: fine", d.ID)
	}
	if p.TotalAmount, err = decimal.NewFromString(d.TotalAmount); err != nil {
		return fee.Payment{}, errors.Wrapf(err, "payment %s: total amount", d.ID)
	}
	for _, pf := range d.PaidFor {
		amount, err := decimal.NewFromString(pf.Amount)
		if err != nil {
			return fee.Payment{}, errors.Wrapf(err, "payment %s: paid for %s", d.ID, pf.FeeHeadID)
		}
		p.PaidFor = append(p.PaidFor, fee.PaidFor{FeeHeadID: pf.FeeHeadID, FeeHeadName: pf.FeeHeadName, Amount: amount})
	}
	return p, nil
}

type feeRepository struct {
	heads      *mongo.Collection
	structures *mongo.Collection
	payments   *mongo.Collection
	sequences  *mongo.Collection
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *mongo.Database) *feeRepository {
	return &feeRepository{
		heads:      db.Collection(feeHeadsCol),
		structures: db.Collection(feeStructuresCol),
		payments:   db.Collection(paymentsCol),
		sequences:  db.Collection(receiptSequencesCol),
	}
}

func (repo *feeRepository) CreateHead(ctx context.Context, head fee.Head) (fee.Head, error) {
	if _, err := repo.heads.InsertOne(ctx, newHeadDoc(head)); err != nil {
		return fee.Head{}, errors.Wrap(err, "inserting fee head")
	}
	return head, nil
}

func (repo *feeRepository) UpdateHead(ctx context.Context, head fee.Head) (fee.Head, error) {
	res, err := repo.heads.ReplaceOne(ctx, bson.M{"_id": head.ID, "school_id": head.SchoolID}, newHeadDoc(head))
	if err != nil {
		return fee.Head{}, errors.Wrap(err, "updating fee head")
	}
	if res.MatchedCount == 0 {
		return fee.Head{}, fee.ErrHeadNotFound
	}
	return head, nil
}

func (repo *feeRepository) GetHead(ctx context.Context, schoolID, id string) (fee.Head, error) {
	var doc headDoc
	if err := repo.heads.FindOne(ctx, bson.M{"_id": id, "school_id": schoolID}).Decode(&doc); err != nil {
		return fee.Head{}, trapNoDocsErr(err, fee.ErrHeadNotFound, "getting fee head")
	}
	return doc.head(), nil
}

func (repo *feeRepository) QueryHeads(ctx context.Context, schoolID string) ([]fee.Head, error) {
	cur, err := repo.heads.Find(ctx, bson.M{"school_id": schoolID}, options.Find().SetSort(sortAsc("name", "_id")))
	if err != nil {
		return nil, errors.Wrap(err, "querying fee heads")
	}
	var docs []headDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding fee heads")
	}

	heads := make([]fee.Head, 0, len(docs))
	for _, d := range docs {
		heads = append(heads, d.head())
	}
	return heads, nil
}

func (repo *feeRepository) HeadReferenced(ctx context.Context, schoolID, headID string) (bool, error) {
	n, err := repo.structures.CountDocuments(ctx, bson.M{"school_id": schoolID, "entries.fee_head_id": headID})
	if err != nil {
		return false, errors.Wrap(err, "checking fee head references")
	}
	return n > 0, nil
}

func (repo *feeRepository) SaveStructure(ctx context.Context, cs fee.ClassStructure) (fee.ClassStructure, error) {
	doc := structureDoc{
		SchoolID:  cs.SchoolID,
		ClassID:   cs.ClassID,
		Entries:   make([]structureEntryDoc, 0, len(cs.Entries)),
		UpdatedAt: cs.UpdatedAt,
	}
	for _, e := range cs.Entries {
		doc.Entries = append(doc.Entries, structureEntryDoc{FeeHeadID: e.FeeHeadID, Amount: e.Amount.String()})
	}

	_, err := repo.structures.ReplaceOne(ctx,
		bson.M{"school_id": cs.SchoolID, "class_id": cs.ClassID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fee.ClassStructure{}, errors.Wrap(err, "saving fee structure")
	}
	return cs, nil
}

func (repo *feeRepository) GetStructure(ctx context.Context, schoolID, classID string) (fee.ClassStructure, error) {
	var doc structureDoc
	if err := repo.structures.FindOne(ctx, bson.M{"school_id": schoolID, "class_id": classID}).Decode(&doc); err != nil {
		return fee.ClassStructure{}, trapNoDocsErr(err, fee.ErrStructureNotFound, "getting fee structure")
	}

	cs := fee.ClassStructure{
		SchoolID:  doc.SchoolID,
		ClassID:   doc.ClassID,
		Entries:   make([]fee.StructureEntry, 0, len(doc.Entries)),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
	for _, e := range doc.Entries {
		amount, err := decimal.NewFromString(e.Amount)
		if err != nil {
			return fee.ClassStructure{}, errors.Wrapf(err, "fee structure %s/%s: amount of %s", schoolID, classID, e.FeeHeadID)
		}
		cs.Entries = append(cs.Entries, fee.StructureEntry{FeeHeadID: e.FeeHeadID, Amount: amount})
	}
	return cs, nil
}

func (repo *feeRepository) NextReceiptSeq(ctx context.Context, schoolID string, year int) (int, error) {
	var doc struct {
		Seq int `bson:"seq"`
	}
	err := repo.sequences.FindOneAndUpdate(ctx,
		bson.M{"_id": schoolID + "/" + strconv.Itoa(year)},
		bson.M{"$inc": bson.M{"seq": 1}, "$setOnInsert": bson.M{"school_id": schoolID, "year": year}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, errors.Wrap(err, "incrementing receipt sequence")
	}
	return doc.Seq, nil
}

func (repo *feeRepository) CreatePayment(ctx context.Context, p fee.Payment) (fee.Payment, error) {
	if _, err := repo.payments.InsertOne(ctx, newPaymentDoc(p)); err != nil {
		return fee.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return p, nil
}

func (repo *feeRepository) GetPayment(ctx context.Context, schoolID, id string) (fee.Payment, error) {
	var doc paymentDoc
	if err := repo.payments.FindOne(ctx, bson.M{"_id": id, "school_id": schoolID}).Decode(&doc); err != nil {
		return fee.Payment{}, trapNoDocsErr(err, fee.ErrPaymentNotFound, "getting payment")
	}
	return doc.payment()
}

func (repo *feeRepository) QueryPayments(ctx context.Context, schoolID string, filter fee.PaymentFilter) ([]fee.Payment, error) {
	query := paymentsFilter(schoolID, filter)
	cur, err := repo.payments.Find(ctx, query, options.Find().SetSort(sortAsc("payment_date", "created_at", "_id")))
	if err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	var docs []paymentDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding payments")
	}

	payments := make([]fee.Payment, 0, len(docs))
	for _, d := range docs {
		p, err := d.payment()
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func paymentsFilter(schoolID string, filter fee.PaymentFilter) bson.M {
	query := bson.M{"school_id": schoolID}
	if filter.StudentID != "" {
		query["student_id"] = filter.StudentID
	}
	if filter.ClassID != "" {
		query["class_id"] = filter.ClassID
	}
	dateRange := bson.M{}
	if !filter.From.IsZero() {
		dateRange["$gte"] = filter.From
	}
	if !filter.To.IsZero() {
		dateRange["$lt"] = filter.To
	}
	if len(dateRange) > 0 {
		query["payment_date"] = dateRange
	}
	return query
}
