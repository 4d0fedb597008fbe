package service

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/smallbiznis/procura/internal/vendors/domain"
)

var (
	gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z]{1}[1-9A-Z]{1}Z[0-9A-Z]{1}$`)
	panPattern   = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	ifscPattern  = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	digitsOnly   = regexp.MustCompile(`^[0-9]+$`)
	phoneNoise   = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// normalize trims and canonicalizes every identifier of v in place.
func normalize(v *domain.Vendor) error {
	v.Name = strings.TrimSpace(v.Name)
	if v.Name == "" {
		return domain.ErrInvalidName
	}

	v.ContactPerson = trimmed(v.ContactPerson)
	v.Address = trimmed(v.Address)

	if v.Email = trimmed(v.Email); v.Email != nil {
		addr, err := mail.ParseAddress(*v.Email)
		if err != nil || addr.Address != *v.Email {
			return domain.ErrInvalidEmail
		}
		lower := strings.ToLower(addr.Address)
		v.Email = &lower
	}

	if v.Phone = trimmed(v.Phone); v.Phone != nil {
		phone := phoneNoise.Replace(*v.Phone)
		digits := strings.TrimPrefix(phone, "+")
		if !digitsOnly.MatchString(digits) || len(digits) < 7 || len(digits) > 15 {
			return domain.ErrInvalidPhone
		}
		v.Phone = &phone
	}

	if v.GSTIN = upper(v.GSTIN); v.GSTIN != nil && !gstinPattern.MatchString(*v.GSTIN) {
		return domain.ErrInvalidGSTIN
	}
	if v.PAN = upper(v.PAN); v.PAN != nil && !panPattern.MatchString(*v.PAN) {
		return domain.ErrInvalidPAN
	}
	if v.IFSC = upper(v.IFSC); v.IFSC != nil && !ifscPattern.MatchString(*v.IFSC) {
		return domain.ErrInvalidIFSC
	}

	if v.BankAccount = trimmed(v.BankAccount); v.BankAccount != nil {
		account := strings.ReplaceAll(*v.BankAccount, " ", "")
		if !digitsOnly.MatchString(account) || len(account) < 9 || len(account) > 18 {
			return domain.ErrInvalidBankAccount
		}
		v.BankAccount = &account
	}

	if _, ok := domain.ParseVendorType(string(v.VendorType)); !ok {
		return domain.ErrInvalidVendorType
	}
	if v.VendorType == "" {
		v.VendorType = domain.VendorTypeGoods
	}
	return nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	out := strings.TrimSpace(*value)
	if out == "" {
		return nil
	}
	return &out
}

func upper(value *string) *string {
	out := trimmed(value)
	if out == nil {
		return nil
	}
	up := strings.ToUpper(*out)
	return &up
}
