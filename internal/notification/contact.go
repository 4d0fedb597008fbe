package notification

import vendordomain "github.com/smallbiznis/procura/internal/vendors/domain"

// ContactOf copies the vendor fields that appear on outgoing documents.
func ContactOf(v *vendordomain.Vendor) VendorContact {
	contact := VendorContact{Name: v.Name}
	if v.Email != nil {
		contact.Email = *v.Email
	}
	if v.GSTIN != nil {
		contact.GSTIN = *v.GSTIN
	}
	if v.Address != nil {
		contact.Address = *v.Address
	}
	return contact
}
