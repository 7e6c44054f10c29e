package service

import (
	"resto_crm_backend/internal/crm/domain"
	"resto_crm_backend/platform/phone"
	"resto_crm_backend/platform/textnorm"
)

// SeedFromReservation extracts and normalizes the client identity material
// carried by a reservation. The phone key is the deduplication key; an empty
// key means the reservation cannot be attributed to a client at all.
func SeedFromReservation(res domain.Reservation) (domain.ClientSeed, bool) {
	phoneKey := phone.NormalizeKey(res.Phone)
	if phoneKey == "" {
		return domain.ClientSeed{}, false
	}

	return domain.ClientSeed{
		PhoneKey:          phoneKey,
		Email:             textnorm.Email(res.Email),
		FirstName:         res.FirstName,
		LastName:          res.LastName,
		PreferredLanguage: res.PreferredLanguage,
		AcquisitionSource: res.AcquisitionSource,
	}, true
}
