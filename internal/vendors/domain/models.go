// Package domain contains the vendor master model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type VendorType string

const (
	VendorTypeGoods    VendorType = "GOODS"
	VendorTypeServices VendorType = "SERVICES"
	VendorTypeBoth     VendorType = "BOTH"
)

func ParseVendorType(raw string) (VendorType, bool) {
	switch t := VendorType(raw); t {
	case VendorTypeGoods, VendorTypeServices, VendorTypeBoth:
		return t, true
	case "":
		return VendorTypeGoods, true
	default:
		return "", false
	}
}

type Vendor struct {
	ID            snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CompanyID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_vendors_company_name,priority:1;uniqueIndex:ux_vendors_company_gstin,priority:1;uniqueIndex:ux_vendors_company_pan,priority:1;uniqueIndex:ux_vendors_company_email,priority:1;uniqueIndex:ux_vendors_company_phone,priority:1" json:"company_id"`
	Name          string       `gorm:"type:varchar(255);not null;uniqueIndex:ux_vendors_company_name,priority:2" json:"name"`
	ContactPerson *string      `gorm:"type:varchar(255)" json:"contact_person,omitempty"`
	Email         *string      `gorm:"type:varchar(320);uniqueIndex:ux_vendors_company_email,priority:2" json:"email,omitempty"`
	Phone         *string      `gorm:"type:varchar(32);uniqueIndex:ux_vendors_company_phone,priority:2" json:"phone,omitempty"`
	GSTIN         *string      `gorm:"column:gstin;type:varchar(15);uniqueIndex:ux_vendors_company_gstin,priority:2" json:"gstin,omitempty"`
	PAN           *string      `gorm:"column:pan;type:varchar(10);uniqueIndex:ux_vendors_company_pan,priority:2" json:"pan,omitempty"`
	BankAccount   *string      `gorm:"type:varchar(34)" json:"bank_account,omitempty"`
	IFSC          *string      `gorm:"column:ifsc;type:varchar(11)" json:"ifsc,omitempty"`
	Address       *string      `gorm:"type:text" json:"address,omitempty"`
	VendorType    VendorType   `gorm:"type:varchar(16);not null" json:"vendor_type"`
	IsActive      bool         `gorm:"not null" json:"is_active"`
	CreatedByID   snowflake.ID `gorm:"not null" json:"created_by_id"`
	CreatedAt     time.Time    `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null" json:"updated_at"`
}

func (Vendor) TableName() string { return "vendors" }
