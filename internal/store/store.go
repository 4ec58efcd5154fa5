// Package store is the persistence layer. All business writes with
// correctness requirements (unit acquisition, status transitions, add-on
// accumulation) are expressed as single conditional statements here so that
// callers never do read-modify-write on shared rows.
package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"ps-rental-backend/internal/model"
)

// Sentinel errors surfaced to callers as business-rule violations.
var (
	ErrNotFound         = errors.New("record not found")
	ErrUnitNotAvailable = errors.New("unit not available")
	ErrStaleTransition  = errors.New("rental was modified concurrently or is in the wrong state")
	ErrShiftAlreadyOpen = errors.New("another shift is already active")
)

// LivenessReport is one bridge-reported unit status tuple.
type LivenessReport struct {
	Address     string `json:"address" binding:"required"`
	IsOnline    bool   `json:"isOnline"`
	IsReachable bool   `json:"isReachable"`
}

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// TV units
	CreateTVUnit(ctx context.Context, u *model.TVUnit) error
	GetTVUnit(ctx context.Context, id int64) (*model.TVUnit, error)
	GetTVUnitByAddress(ctx context.Context, ip string) (*model.TVUnit, error)
	ListTVUnits(ctx context.Context) ([]model.TVUnit, error)
	ListUnitsInUse(ctx context.Context) ([]model.TVUnit, error)
	UpdateTVUnit(ctx context.Context, id int64, fields map[string]any) error
	AcquireTVUnit(ctx context.Context, unitID int64, countdownMs int64) error
	ReleaseTVUnit(ctx context.Context, unitID int64) error
	UpdateUnitLiveness(ctx context.Context, now time.Time, reports []LivenessReport) (int64, error)

	// Rentals
	CreateRental(ctx context.Context, r *model.Rental, mintKey func(rentalID int64) string) error
	GetRental(ctx context.Context, id int64) (*model.Rental, error)
	GetRentalByAccessKey(ctx context.Context, key string) (*model.Rental, error)
	ListRentals(ctx context.Context, statuses ...string) ([]model.Rental, error)
	TransitionRental(ctx context.Context, id int64, fromStatus string, fields map[string]any) error
	AppendAddOns(ctx context.Context, rentalID int64, items []model.AddOn) error

	// Payments
	CreatePayment(ctx context.Context, p *model.Payment) error
	GetPaymentByRental(ctx context.Context, rentalID int64) (*model.Payment, error)
	SetPaymentAmountByRental(ctx context.Context, rentalID int64, amount float64) error
	IncrementPaymentAmountByRental(ctx context.Context, rentalID int64, delta float64) error
	UpdatePayment(ctx context.Context, id int64, fields map[string]any) error
	ListPaymentsByShift(ctx context.Context, shiftID int64) ([]model.Payment, error)

	// Shifts
	OpenShift(ctx context.Context, s *model.Shift) error
	CloseShift(ctx context.Context, shiftID int64, now time.Time) (*model.Shift, error)
	GetActiveShift(ctx context.Context) (*model.Shift, error)

	// Menu
	CreateMenuItem(ctx context.Context, m *model.MenuItem) error
	ListMenuItems(ctx context.Context) ([]model.MenuItem, error)
	GetMenuItems(ctx context.Context, ids []int64) (map[int64]model.MenuItem, error)
	UpdateMenuItem(ctx context.Context, id int64, fields map[string]any) error

	// Users
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// Licenses
	CreateLicense(ctx context.Context, l *model.License) error
	GetLicenseByKey(ctx context.Context, key string) (*model.License, error)
	ListLicenses(ctx context.Context) ([]model.License, error)
	ListActiveLicenses(ctx context.Context, now time.Time) ([]model.License, error)
	RevokeLicense(ctx context.Context, id int64) error
	TouchLicense(ctx context.Context, id int64, now time.Time) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying handle for the notification pool and the
// subscription handlers.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
