package ledger

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/models"
)

// Tx is the transaction-scoped repository handed to callers of Store.InTx.
// Every ...ForUpdate read takes a row lock that is held until the
// transaction ends.
type Tx interface {
	PaymentByOrderForUpdate(orderID string) (*models.Payment, error)
	InsertPayment(p *models.Payment) error
	SavePayment(p *models.Payment) error

	BookingByOrderForUpdate(orderID string) (*models.Booking, error)
	InsertBooking(b *models.Booking) error
	SaveBooking(b *models.Booking) error

	SessionByOrderForUpdate(orderID string) (*models.CheckoutSession, error)
	SaveSession(s *models.CheckoutSession) error

	Property(id uint) (*models.Property, error)
	// SetPropertyUnavailable clears the availability flag and reports whether
	// this call was the one that flipped it.
	SetPropertyUnavailable(id uint) (bool, error)

	// CreateAgreement inserts the rental agreement for a booking unless one
	// exists and reports whether a row was created.
	CreateAgreement(bookingID uint) (bool, error)
	AgreementCount(bookingID uint) (int64, error)
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) locked() *gorm.DB {
	return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *gormTx) PaymentByOrderForUpdate(orderID string) (*models.Payment, error) {
	var p models.Payment
	if err := t.locked().Where("order_id = ?", orderID).Take(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (t *gormTx) InsertPayment(p *models.Payment) error {
	return translate(t.db.Create(p).Error)
}

func (t *gormTx) SavePayment(p *models.Payment) error {
	return translate(t.db.Save(p).Error)
}

func (t *gormTx) BookingByOrderForUpdate(orderID string) (*models.Booking, error) {
	var b models.Booking
	if err := t.locked().Where("order_id = ?", orderID).Take(&b).Error; err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (t *gormTx) InsertBooking(b *models.Booking) error {
	return translate(t.db.Create(b).Error)
}

func (t *gormTx) SaveBooking(b *models.Booking) error {
	return translate(t.db.Save(b).Error)
}

func (t *gormTx) SessionByOrderForUpdate(orderID string) (*models.CheckoutSession, error) {
	var s models.CheckoutSession
	if err := t.locked().Where("order_id = ?", orderID).Take(&s).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (t *gormTx) SaveSession(s *models.CheckoutSession) error {
	return translate(t.db.Save(s).Error)
}

func (t *gormTx) Property(id uint) (*models.Property, error) {
	var p models.Property
	if err := t.db.Take(&p, id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (t *gormTx) SetPropertyUnavailable(id uint) (bool, error) {
	res := t.db.Model(&models.Property{}).
		Where("id = ? AND is_available = ?", id, true).
		Update("is_available", false)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (t *gormTx) CreateAgreement(bookingID uint) (bool, error) {
	res := t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "booking_id"}},
		DoNothing: true,
	}).Create(&models.RentalAgreement{BookingID: bookingID})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (t *gormTx) AgreementCount(bookingID uint) (int64, error) {
	var n int64
	err := t.db.Model(&models.RentalAgreement{}).Where("booking_id = ?", bookingID).Count(&n).Error
	return n, translate(err)
}
