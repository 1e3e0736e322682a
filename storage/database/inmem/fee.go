package inmemdb

import (
	"context"
	"sort"
	"strconv"

	"github.com/trezcool/shule/core/fee"
)

type feeRepository struct {
	db *feeTables
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *DB) *feeRepository {
	return &feeRepository{db: db.fee}
}

func (repo *feeRepository) CreateHead(_ context.Context, head fee.Head) (fee.Head, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.heads[head.ID] = &head
	return head, nil
}

func (repo *feeRepository) UpdateHead(_ context.Context, head fee.Head) (fee.Head, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.heads[head.ID]
	if !ok || orig.SchoolID != head.SchoolID {
		return fee.Head{}, fee.ErrHeadNotFound
	}
	orig.Name = head.Name
	orig.Description = head.Description
	orig.Type = head.Type
	orig.UpdatedAt = head.UpdatedAt
	return *orig, nil
}

func (repo *feeRepository) GetHead(_ context.Context, schoolID, id string) (fee.Head, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if head, ok := repo.db.heads[id]; ok && head.SchoolID == schoolID {
		return *head, nil
	}
	return fee.Head{}, fee.ErrHeadNotFound
}

func (repo *feeRepository) QueryHeads(_ context.Context, schoolID string) ([]fee.Head, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	heads := make([]fee.Head, 0)
	for _, head := range repo.db.heads {
		if head.SchoolID == schoolID {
			heads = append(heads, *head)
		}
	}
	sort.Slice(heads, func(i, j int) bool {
		if heads[i].Name == heads[j].Name {
			return heads[i].ID < heads[j].ID
		}
		return heads[i].Name < heads[j].Name
	})
	return heads, nil
}

func (repo *feeRepository) HeadReferenced(_ context.Context, schoolID, headID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, cs := range repo.db.structures {
		if cs.SchoolID != schoolID {
			continue
		}
		for _, e := range cs.Entries {
			if e.FeeHeadID == headID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (repo *feeRepository) SaveStructure(_ context.Context, cs fee.ClassStructure) (fee.ClassStructure, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	cs.Entries = append(make([]fee.StructureEntry, 0, len(cs.Entries)), cs.Entries...)
	repo.db.structures[compositeKey(cs.SchoolID, cs.ClassID)] = &cs
	return copyStructure(cs), nil
}

func (repo *feeRepository) GetStructure(_ context.Context, schoolID, classID string) (fee.ClassStructure, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cs, ok := repo.db.structures[compositeKey(schoolID, classID)]; ok {
		return copyStructure(*cs), nil
	}
	return fee.ClassStructure{}, fee.ErrStructureNotFound
}

func (repo *feeRepository) NextReceiptSeq(_ context.Context, schoolID string, year int) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := compositeKey(schoolID, strconv.Itoa(year))
	repo.db.receiptSeq[key]++
	return repo.db.receiptSeq[key], nil
}

func (repo *feeRepository) CreatePayment(_ context.Context, p fee.Payment) (fee.Payment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	p = copyPayment(p)
	repo.db.payments = append(repo.db.payments, &p)
	return copyPayment(p), nil
}

func (repo *feeRepository) GetPayment(_ context.Context, schoolID, id string) (fee.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, p := range repo.db.payments {
		if p.ID == id && p.SchoolID == schoolID {
			return copyPayment(*p), nil
		}
	}
	return fee.Payment{}, fee.ErrPaymentNotFound
}

func (repo *feeRepository) QueryPayments(_ context.Context, schoolID string, filter fee.PaymentFilter) ([]fee.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	payments := make([]fee.Payment, 0)
	for _, p := range repo.db.payments {
		if p.SchoolID == schoolID && filter.Match(*p) {
			payments = append(payments, copyPayment(*p))
		}
	}
	sort.SliceStable(payments, func(i, j int) bool {
		if payments[i].PaymentDate.Equal(payments[j].PaymentDate) {
			return payments[i].CreatedAt.Before(payments[j].CreatedAt)
		}
		return payments[i].PaymentDate.Before(payments[j].PaymentDate)
	})
	return payments, nil
}

func copyStructure(cs fee.ClassStructure) fee.ClassStructure {
	cs.Entries = append(make([]fee.StructureEntry, 0, len(cs.Entries)), cs.Entries...)
	return cs
}

func copyPayment(p fee.Payment) fee.Payment {
	p.PaidFor = append(make([]fee.PaidFor, 0, len(p.PaidFor)), p.PaidFor...)
	return p
}
