package checkout

import (
	"errors"
	"fmt"
	"strings"
	"time"

	domainbooking "rentacar/internal/domain/booking"
	domaincars "rentacar/internal/domain/cars"
	"rentacar/internal/domain/shared/daterange"
	"rentacar/internal/domain/shared/money"
)

// Metadata keys as they travel through the payment provider. All values are
// strings; dates are RFC 3339 and totalAmount has two decimals.
const (
	KeyCarID          = "carId"
	KeyPickupDate     = "pickupDate"
	KeyReturnDate     = "returnDate"
	KeyCollectionDate = "collectionDate"
	KeyName           = "name"
	KeySurname        = "surname"
	KeyEmail          = "email"
	KeyPhone          = "phone"
	KeyUserID         = "userId"
	KeyTotalAmount    = "totalAmount"
	KeyCurrency       = "currency"
)

const (
	PlaceholderName  = "Guest"
	PlaceholderEmail = "unknown@invalid"
	PlaceholderPhone = "N/A"
)

// ErrMalformedMetadata matches every *MetadataError.
var ErrMalformedMetadata = errors.New("checkout: malformed payment metadata")

type MetadataError struct {
	Field  string
	Reason string
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("checkout: metadata %s %s", e.Field, e.Reason)
}

func (e *MetadataError) Is(target error) bool {
	return target == ErrMalformedMetadata
}

// Metadata is the booking intent carried through hosted checkout.
type Metadata struct {
	CarID  domaincars.CarID
	Range  daterange.DateRange
	Renter domainbooking.RenterSnapshot
	UserID string
	Total  money.Money
}

func (m Metadata) Encode() map[string]string {
	out := map[string]string{
		KeyCarID:       string(m.CarID),
		KeyPickupDate:  m.Range.Start.UTC().Format(time.RFC3339),
		KeyReturnDate:  m.Range.End.UTC().Format(time.RFC3339),
		KeyName:        m.Renter.Name,
		KeySurname:     m.Renter.Surname,
		KeyEmail:       m.Renter.Email,
		KeyPhone:       m.Renter.Phone,
		KeyUserID:      m.UserID,
		KeyTotalAmount: m.Total.Decimal(),
		KeyCurrency:    m.Total.Currency,
	}
	for k, v := range out {
		if v == "" {
			delete(out, k)
		}
	}
	return out
}

// DecodeMetadata parses provider metadata. carId, both dates and
// totalAmount are required; collectionDate is accepted for returnDate.
// Missing renter contact fields become placeholders because the payment has
// already been captured. defaultCurrency applies when no currency key is
// present.
func DecodeMetadata(raw map[string]string, defaultCurrency string) (Metadata, error) {
	get := func(key string) string { return strings.TrimSpace(raw[key]) }

	carID := get(KeyCarID)
	if carID == "" {
		return Metadata{}, &MetadataError{Field: KeyCarID, Reason: "missing"}
	}
	pickup, err := parseInstant(KeyPickupDate, get(KeyPickupDate))
	if err != nil {
		return Metadata{}, err
	}
	returnKey := KeyReturnDate
	if get(KeyReturnDate) == "" && get(KeyCollectionDate) != "" {
		returnKey = KeyCollectionDate
	}
	ret, err := parseInstant(returnKey, get(returnKey))
	if err != nil {
		return Metadata{}, err
	}
	rng, err := daterange.New(pickup, ret)
	if err != nil {
		return Metadata{}, &MetadataError{Field: returnKey, Reason: "not after pickupDate"}
	}

	currency := get(KeyCurrency)
	if currency == "" {
		currency = defaultCurrency
	}
	rawTotal := get(KeyTotalAmount)
	if rawTotal == "" {
		return Metadata{}, &MetadataError{Field: KeyTotalAmount, Reason: "missing"}
	}
	total, err := money.ParseDecimal(rawTotal, currency)
	if err != nil || total.Amount <= 0 {
		return Metadata{}, &MetadataError{Field: KeyTotalAmount, Reason: "not a positive amount"}
	}

	return Metadata{
		CarID: domaincars.CarID(carID),
		Range: rng,
		Renter: domainbooking.RenterSnapshot{
			Name:    orDefault(get(KeyName), PlaceholderName),
			Surname: get(KeySurname),
			Email:   orDefault(get(KeyEmail), PlaceholderEmail),
			Phone:   orDefault(get(KeyPhone), PlaceholderPhone),
		},
		UserID: get(KeyUserID),
		Total:  total,
	}, nil
}

func parseInstant(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, &MetadataError{Field: field, Reason: "missing"}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, &MetadataError{Field: field, Reason: "not an RFC 3339 timestamp"}
	}
	return t.UTC(), nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
