package addresses

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shirly.shop/app/pkg/view"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

type Input struct {
	FullName   string
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
	Phone      string
	IsDefault  bool
}

func InputFromRequest(r view.AddressRequest) Input {
	return Input(r)
}

func (in Input) normalize() (Input, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Line1 = strings.TrimSpace(in.Line1)
	in.Line2 = strings.TrimSpace(in.Line2)
	in.City = strings.TrimSpace(in.City)
	in.Region = strings.TrimSpace(in.Region)
	in.PostalCode = strings.TrimSpace(in.PostalCode)
	in.Country = strings.ToUpper(strings.TrimSpace(in.Country))
	in.Phone = strings.TrimSpace(in.Phone)
	if in.FullName == "" || in.Line1 == "" || in.City == "" || in.PostalCode == "" || len(in.Country) != 2 {
		return in, ErrInvalid
	}
	return in, nil
}

// List returns the default address first, then newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Address, error) {
	var out []Address
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

func (s *Service) Get(ctx context.Context, userID, id string) (Address, error) {
	var a Address
	err := s.db.WithContext(ctx).First(&a, "id = ? AND user_id = ?", id, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Address{}, ErrNotFound
	}
	return a, err
}

// Default returns the user's default address, or ErrNotFound.
func (s *Service) Default(ctx context.Context, userID string) (Address, error) {
	var a Address
	err := s.db.WithContext(ctx).First(&a, "user_id = ? AND is_default = ?", userID, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Address{}, ErrNotFound
	}
	return a, err
}

// Create stores a new address. The user's first address is always the default.
func (s *Service) Create(ctx context.Context, userID string, in Input) (Address, error) {
	in, err := in.normalize()
	if err != nil {
		return Address{}, err
	}

	now := time.Now().UTC()
	a := Address{
		ID:         uuid.NewString(),
		UserID:     userID,
		FullName:   in.FullName,
		Line1:      in.Line1,
		Line2:      in.Line2,
		City:       in.City,
		Region:     in.Region,
		PostalCode: in.PostalCode,
		Country:    in.Country,
		Phone:      in.Phone,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Address{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
			return err
		}
		a.IsDefault = in.IsDefault || n == 0
		if a.IsDefault {
			if err := clearDefault(tx, userID); err != nil {
				return err
			}
		}
		return tx.Create(&a).Error
	})
	return a, err
}

func (s *Service) Update(ctx context.Context, userID, id string, in Input) (Address, error) {
	in, err := in.normalize()
	if err != nil {
		return Address{}, err
	}
	var a Address
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&a, "id = ? AND user_id = ?", id, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if in.IsDefault && !a.IsDefault {
			if err := clearDefault(tx, userID); err != nil {
				return err
			}
			a.IsDefault = true
		}
		a.FullName, a.Line1, a.Line2 = in.FullName, in.Line1, in.Line2
		a.City, a.Region, a.PostalCode = in.City, in.Region, in.PostalCode
		a.Country, a.Phone = in.Country, in.Phone
		a.UpdatedAt = time.Now().UTC()
		return tx.Save(&a).Error
	})
	return a, err
}

// Delete removes an address. Deleting the default promotes the most recent remaining one.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a Address
		if err := tx.First(&a, "id = ? AND user_id = ?", id, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Delete(&a).Error; err != nil {
			return err
		}
		if !a.IsDefault {
			return nil
		}
		var next Address
		err := tx.Where("user_id = ?", userID).Order("created_at DESC, id DESC").First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Model(&Address{}).Where("id = ?", next.ID).Update("is_default", true).Error
	})
}

func (s *Service) SetDefault(ctx context.Context, userID, id string) (Address, error) {
	var a Address
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&a, "id = ? AND user_id = ?", id, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := clearDefault(tx, userID); err != nil {
			return err
		}
		a.IsDefault = true
		return tx.Model(&Address{}).Where("id = ?", a.ID).
			Updates(map[string]any{"is_default": true, "updated_at": time.Now().UTC()}).Error
	})
	return a, err
}

func clearDefault(tx *gorm.DB, userID string) error {
	return tx.Model(&Address{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
}

func ToViews(as []Address) []view.Address {
	out := make([]view.Address, 0, len(as))
	for _, a := range as {
		out = append(out, a.View())
	}
	return out
}
