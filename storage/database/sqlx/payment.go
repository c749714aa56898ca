package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/payment"
)

var paymentColumns = []string{
	"id", "school_id", "student_id", "receipt_number", "amount", "payment_type", "payment_method",
	"payment_date", "payment_period", "academic_year", "reference", "notes", "recorded_by", "created_at",
}

type paymentRow struct {
	ID            string          `db:"id"`
	SchoolID      string          `db:"school_id"`
	StudentID     string          `db:"student_id"`
	ReceiptNumber string          `db:"receipt_number"`
	Amount        decimal.Decimal `db:"amount"`
	PaymentType   string          `db:"payment_type"`
	PaymentMethod string          `db:"payment_method"`
	PaymentDate   core.Date       `db:"payment_date"`
	PaymentPeriod string          `db:"payment_period"`
	AcademicYear  string          `db:"academic_year"`
	Reference     string          `db:"reference"`
	Notes         string          `db:"notes"`
	RecordedBy    null.String     `db:"recorded_by"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (r paymentRow) toPayment() payment.Payment {
	return payment.Payment{
		ID:            r.ID,
		SchoolID:      r.SchoolID,
		StudentID:     r.StudentID,
		ReceiptNumber: r.ReceiptNumber,
		Amount:        r.Amount,
		PaymentType:   r.PaymentType,
		PaymentMethod: r.PaymentMethod,
		PaymentDate:   r.PaymentDate,
		PaymentPeriod: r.PaymentPeriod,
		AcademicYear:  r.AcademicYear,
		Reference:     r.Reference,
		Notes:         r.Notes,
		RecordedBy:    r.RecordedBy.String,
		CreatedAt:     r.CreatedAt,
	}
}

type paymentRepository struct {
	repository
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(exec core.DBExecutor) *paymentRepository {
	return &paymentRepository{repository{exec: exec}}
}

// GenerateReceiptNumber calls the generate_receipt_number stored function.
func (repo paymentRepository) GenerateReceiptNumber(ctx context.Context, schoolID, defaultPrefix string, exec ...core.DBExecutor) (string, error) {
	if defaultPrefix == "" {
		defaultPrefix = "REC"
	}
	var receipt null.String
	q := psql.Select().Column(sq.Expr("generate_receipt_number(?, ?)", schoolID, defaultPrefix))
	if err := repo.get(ctx, exec, &receipt, q); err != nil {
		return "", errors.Wrap(err, "generating receipt number")
	}
	if !receipt.Valid {
		return "", errors.Errorf("no school %s to number receipts for", schoolID)
	}
	return receipt.String, nil
}

func (repo paymentRepository) CreatePayment(ctx context.Context, p payment.Payment, exec ...core.DBExecutor) (payment.Payment, error) {
	p.ID = newID()
	_, err := repo.execute(ctx, exec, psql.Insert("payments").Columns(paymentColumns...).Values(
		p.ID, p.SchoolID, p.StudentID, p.ReceiptNumber, p.Amount, p.PaymentType, p.PaymentMethod,
		p.PaymentDate, p.PaymentPeriod, p.AcademicYear, p.Reference, p.Notes, nullString(p.RecordedBy), p.CreatedAt,
	))
	if err != nil {
		return payment.Payment{}, translateErr(err, "inserting payment")
	}
	return p, nil
}

func (repo paymentRepository) getOne(ctx context.Context, exec []core.DBExecutor, where sq.Eq) (payment.Payment, error) {
	var row paymentRow
	if err := repo.get(ctx, exec, &row, psql.Select(paymentColumns...).From("payments").Where(where)); err != nil {
		return payment.Payment{}, trapNoRowsErr(err, payment.ErrNotFound, "getting payment")
	}
	return row.toPayment(), nil
}

func (repo paymentRepository) GetPayment(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (payment.Payment, error) {
	if !validUUID(id) {
		return payment.Payment{}, payment.ErrNotFound
	}
	return repo.getOne(ctx, exec, sq.Eq{"school_id": schoolID, "id": id})
}

func (repo paymentRepository) GetPaymentByReceipt(ctx context.Context, schoolID, receipt string, exec ...core.DBExecutor) (payment.Payment, error) {
	return repo.getOne(ctx, exec, sq.Eq{"school_id": schoolID, "receipt_number": receipt})
}

func (repo paymentRepository) QueryPayments(ctx context.Context, schoolID string, filter *payment.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]payment.Payment, error) {
	q := psql.Select(paymentColumns...).From("payments").Where(sq.Eq{"school_id": schoolID})
	if filter != nil {
		if filter.StudentID != "" {
			if !validUUID(filter.StudentID) {
				return []payment.Payment{}, nil
			}
			q = q.Where(sq.Eq{"student_id": filter.StudentID})
		}
		if len(filter.Types) > 0 {
			q = q.Where(sq.Eq{"payment_type": lowerAll(filter.Types)})
		}
		if len(filter.Methods) > 0 {
			q = q.Where(sq.Eq{"payment_method": lowerAll(filter.Methods)})
		}
		if filter.Period != "" {
			q = q.Where(sq.Eq{"payment_period": filter.Period})
		}
		if filter.AcademicYear != "" {
			q = q.Where(sq.Eq{"academic_year": filter.AcademicYear})
		}
		if !filter.DateFrom.IsZero() {
			q = q.Where(sq.GtOrEq{"payment_date": filter.DateFrom})
		}
		if !filter.DateTo.IsZero() {
			q = q.Where(sq.LtOrEq{"payment_date": filter.DateTo})
		}
	}
	q = orderBy(q, ordering, "payment_date DESC, created_at DESC",
		"payment_date", "amount", "receipt_number", "payment_type", "payment_method", "created_at")

	var rows []paymentRow
	if err := repo.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	payments := make([]payment.Payment, 0, len(rows))
	for _, r := range rows {
		payments = append(payments, r.toPayment())
	}
	return payments, nil
}

func (repo paymentRepository) DeletePayment(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error {
	n, err := repo.execute(ctx, exec, psql.Delete("payments").Where(sq.Eq{"school_id": schoolID, "id": id}))
	if err != nil {
		return translateErr(err, "deleting payment")
	}
	if n == 0 {
		return payment.ErrNotFound
	}
	return nil
}

func (repo paymentRepository) SumStudentPayments(ctx context.Context, schoolID, studentID string, exec ...core.DBExecutor) (decimal.Decimal, error) {
	var total decimal.Decimal
	q := psql.Select("coalesce(sum(amount), 0)").From("payments").Where(sq.Eq{"school_id": schoolID, "student_id": studentID})
	if err := repo.get(ctx, exec, &total, q); err != nil {
		return decimal.Zero, errors.Wrap(err, "summing student payments")
	}
	return total, nil
}

func (repo paymentRepository) PeriodPaid(ctx context.Context, schoolID, studentID, academicYear, period string, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	sub := psql.Select("1").From("payments").Where(sq.Eq{
		"school_id":      schoolID,
		"student_id":     studentID,
		"academic_year":  academicYear,
		"payment_period": period,
		"payment_type":   payment.TypeMonthlyTuition,
	})
	if err := repo.get(ctx, exec, &exists, psql.Select().Column(sq.Expr("EXISTS (?)", sub))); err != nil {
		return false, errors.Wrap(err, "checking payment period")
	}
	return exists, nil
}
